package engine

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/twinsync/twinsync/pkg/paths"
)

// Lock is the advisory repository lock held for the duration of a
// mutating run. It only guards against concurrent twinsync processes
// on the same host, not against outside modification of the files.
type Lock struct {
	path string
}

// AcquireLock takes the repository lock, writing the holder pid into
// the lock file. A lock file whose recorded process no longer exists is
// treated as stale and replaced.
func AcquireLock(repoRoot string) (*Lock, error) {
	path := paths.LockFile(repoRoot)
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_, werr := fmt.Fprintf(f, "%d\n", os.Getpid())
			if cerr := f.Close(); werr == nil {
				werr = cerr
			}
			if werr != nil {
				os.Remove(path)
				return nil, NewInternalError("write lock file", werr).WithOperation("lock")
			}
			return &Lock{path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, NewInternalError("create lock file", err).WithOperation("lock")
		}

		pid := readLockPid(path)
		if pid > 0 && processAlive(pid) {
			return nil, NewValidationError(
				fmt.Sprintf("another run holds the repository lock (pid %d)", pid), nil).
				WithOperation("lock").WithCode(ErrCodeLockHeld)
		}
		// stale lock from a dead process
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, NewInternalError("remove stale lock file", err).WithOperation("lock")
		}
	}
	return nil, NewValidationError("could not acquire repository lock", nil).
		WithOperation("lock").WithCode(ErrCodeLockHeld)
}

// Release drops the lock. Safe to call once after a successful acquire.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return NewInternalError("remove lock file", err).WithOperation("lock")
	}
	return nil
}

func readLockPid(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
