// pattern: Imperative Shell

// Package instance keeps a single `wtctl watch` running per context store.
package instance

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gofrs/flock"
)

const (
	lockFileName = "wtctl-watch.lock"
	pidFileName  = "wtctl-watch.pid"
)

// ErrRunning is returned by Lock when another instance holds the lock.
var ErrRunning = errors.New("another wtctl watch is already running")

// Lock acquires an exclusive file lock under root and records the current
// pid. The caller must defer Cleanup.
func Lock(root string) (*flock.Flock, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", root, err)
	}
	fl := flock.New(filepath.Join(root, lockFileName))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		if pid, err := readPID(root); err == nil {
			return nil, fmt.Errorf("%w (pid %d)", ErrRunning, pid)
		}
		return nil, ErrRunning
	}
	if err := writePID(root, os.Getpid()); err != nil {
		_ = fl.Unlock()
		return nil, fmt.Errorf("failed to write pid file: %w", err)
	}
	return fl, nil
}

func writePID(root string, pid int) error {
	return os.WriteFile(filepath.Join(root, pidFileName), []byte(strconv.Itoa(pid)), 0600)
}

// Cleanup removes the pid file and releases the file lock.
func Cleanup(root string, fl *flock.Flock) {
	_ = os.Remove(filepath.Join(root, pidFileName))
	if fl != nil {
		_ = fl.Unlock()
	}
}
