package cards

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// FileLock is a lock file named .<job>-lock. Creating the file is the
// acquisition, so two processes on one host never run the same job at once.
type FileLock struct {
	path string
	held bool
}

// NewFileLock returns the lock for job inside dir.
func NewFileLock(dir, job string) *FileLock {
	return &FileLock{path: filepath.Join(dir, "."+job+"-lock")}
}

// Path is the lock file location.
func (l *FileLock) Path() string { return l.path }

// Acquire creates the lock file. It reports false without error when another
// holder already owns it.
func (l *FileLock) Acquire() (bool, error) {
	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create lock %s: %w", l.path, err)
	}
	defer f.Close()

	l.held = true
	if _, err := fmt.Fprintf(f, "Job started at %s\n", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return true, fmt.Errorf("write lock %s: %w", l.path, err)
	}
	return true, nil
}

// Release removes the lock file if this FileLock created it.
func (l *FileLock) Release() error {
	if !l.held {
		return nil
	}
	l.held = false
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove lock %s: %w", l.path, err)
	}
	return nil
}
