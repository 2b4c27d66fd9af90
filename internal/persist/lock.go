package persist

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"syscall"
)

// DriverLock is an exclusive, cross-process claim on driving one plan. It
// complements the in-process execution lock when several chainplan
// processes share a state dir.
type DriverLock struct {
	planID   string
	lockFile *os.File
	lockPath string
}

// AcquireDriverLock claims planID for this process. It fails immediately if
// another process holds the claim.
func AcquireDriverLock(stateDir, planID string) (*DriverLock, error) {
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("creating state dir: %w", err)
	}

	lockPath := filepath.Join(stateDir, lockFileName(planID))
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening plan lock file: %w", err)
	}

	if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		lockFile.Close()
		return nil, fmt.Errorf("plan %s is being driven by another process: %w", planID, err)
	}

	lockFile.Truncate(0)
	fmt.Fprintf(lockFile, "%d\n", os.Getpid())

	return &DriverLock{planID: planID, lockFile: lockFile, lockPath: lockPath}, nil
}

// PlanID returns the claimed plan.
func (l *DriverLock) PlanID() string {
	return l.planID
}

// Release gives up the claim and removes the lock file.
func (l *DriverLock) Release() error {
	if l.lockFile == nil {
		return nil
	}
	syscall.Flock(int(l.lockFile.Fd()), syscall.LOCK_UN)
	err := l.lockFile.Close()
	l.lockFile = nil
	os.Remove(l.lockPath)
	return err
}

// lockFileName maps an opaque plan id to a single path element.
func lockFileName(planID string) string {
	return "plan-" + url.PathEscape(planID) + ".lock"
}
