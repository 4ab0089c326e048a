//go:build windows

package procgroup

import (
	"encoding/binary"
	"fmt"
	"os"
	"strings"
	"unsafe"

	ps "github.com/mitchellh/go-ps"
	"golang.org/x/sys/windows"
)

// handleRetreiver pulls the unexported process handle out of os.Process
// via an identical field layout, so it can be assigned to a Job Object.
type handleRetreiver struct {
	Pid    int
	Handle uintptr
}

type processGroup windows.Handle

type ProcessTreeRoot struct {
	Children []*ProcessTreeNode
}

func (tree *ProcessTreeRoot) AddChild(child *ProcessTreeNode) error {
	tree.Children = append(tree.Children, child)
	return nil
}

func (tree *ProcessTreeRoot) String() string {
	result := ""
	for _, childNode := range tree.Children {
		result += childNode.String(1)
	}
	return result
}

type ProcessTreeNode struct {
	Pid        int
	PPid       int
	Executable string
	Children   []*ProcessTreeNode
}

func (node *ProcessTreeNode) AddChild(child *ProcessTreeNode) error {
	node.Children = append(node.Children, child)
	return nil
}

func (node *ProcessTreeNode) String(depth int) string {
	result := strings.Repeat(" ", depth*2) + fmt.Sprintf("%d - %s\n", node.Pid, node.Executable)
	for _, childNode := range node.Children {
		result += childNode.String(depth + 1)
	}
	return result
}

func newProcessGroup(name string) (processGroup, error) {
	var namePtr *uint16
	if name != "" {
		p, err := windows.UTF16PtrFromString(name)
		if err != nil {
			return 0, err
		}
		namePtr = p
	}

	handle, err := windows.CreateJobObject(nil, namePtr)
	if err != nil {
		return 0, err
	}
	return processGroup(handle), nil
}

func (g processGroup) dispose() error {
	return windows.CloseHandle(windows.Handle(g))
}

func (g processGroup) addProcess(p *os.Process) error {
	return windows.AssignProcessToJobObject(
		windows.Handle(g),
		windows.Handle((*handleRetreiver)(unsafe.Pointer(p)).Handle))
}

// jobObjectBasicProcessIDList mirrors JOBOBJECT_BASIC_PROCESS_ID_LIST,
// which the windows package doesn't expose directly.
type jobObjectBasicProcessIDList struct {
	NumberOfAssignedProcesses uint32
	NumberOfProcessIdsInList  uint32
	ProcessIdList             [1024]byte
}

// listProcesses returns the processes currently assigned to the job
// object. No kill path calls it (or processTree): when TerminateJobObject
// fails, terminateProcessGroup falls back to TASKKILL /F /T instead.
func (g processGroup) listProcesses() ([]ps.Process, error) {
	const jobObjectBasicProcessIDListClass = int32(3)
	var list jobObjectBasicProcessIDList

	err := windows.QueryInformationJobObject(
		windows.Handle(g),
		jobObjectBasicProcessIDListClass,
		uintptr(unsafe.Pointer(&list)),
		uint32(unsafe.Sizeof(list)),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("QueryInformationJobObject failed: %w", err)
	}

	if list.NumberOfProcessIdsInList < list.NumberOfAssignedProcesses {
		return nil, fmt.Errorf("job object process id list buffer too small: got %d pids, wanted %d",
			list.NumberOfProcessIdsInList, list.NumberOfAssignedProcesses)
	}

	processes := make([]ps.Process, 0, list.NumberOfProcessIdsInList)
	for i := 0; i < int(list.NumberOfProcessIdsInList); i++ {
		pid := binary.LittleEndian.Uint64(list.ProcessIdList[8*i : 8*(i+1)])
		process, err := ps.FindProcess(int(pid))
		if process != nil && err == nil {
			processes = append(processes, process)
		}
	}
	return processes, nil
}

func (g processGroup) processTree() (ProcessTreeRoot, error) {
	root := ProcessTreeRoot{}
	processMap := make(map[int]*ProcessTreeNode)
	processes, err := g.listProcesses()
	if err != nil {
		return root, fmt.Errorf("fetching process tree: %w", err)
	}

	for _, p := range processes {
		processMap[p.Pid()] = &ProcessTreeNode{
			Pid:        p.Pid(),
			PPid:       p.PPid(),
			Executable: p.Executable(),
		}
	}

	for _, node := range processMap {
		if parentNode, ok := processMap[node.PPid]; ok {
			parentNode.AddChild(node)
		} else {
			root.AddChild(node)
		}
	}

	return root, nil
}
