package cli

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// createRootLocked creates the jobs root directory, guarded by a file
// lock on a sibling ".lock" file so two agent-exec processes racing to
// create a brand-new root don't both half-create it. State.json writes
// within an existing root never take a lock - they're already made
// atomic by tempfile-plus-rename.
func createRootLocked(root string) error {
	if _, err := os.Stat(root); err == nil {
		return nil
	}

	parent := filepath.Dir(root)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return err
	}

	lockPath := filepath.Join(parent, ".agent-exec.lock")
	lock := flock.New(lockPath)
	if err := lock.Lock(); err != nil {
		return err
	}
	defer lock.Unlock()

	return os.MkdirAll(root, 0o755)
}
