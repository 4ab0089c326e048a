//go:build windows

package exlog

import (
	"os"

	"golang.org/x/sys/windows"
)

// Recent Windows versions support ANSI color output once virtual-terminal
// processing is explicitly enabled on the console; diagnostics go to
// stderr, so that's the handle we configure.
func init() {
	stderr := windows.Handle(os.Stderr.Fd())
	_ = windows.SetConsoleMode(stderr, windows.ENABLE_VIRTUAL_TERMINAL_PROCESSING|windows.ENABLE_PROCESSED_OUTPUT|windows.ENABLE_WRAP_AT_EOL_OUTPUT)
}
