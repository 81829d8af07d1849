// pattern: Imperative Shell

package instance

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
)

// ErrNotRunning is returned by Discover when no instance holds the lock.
var ErrNotRunning = errors.New("no running wtctl watch found")

// Discover returns the pid of the running watch instance under root.
func Discover(root string) (int, error) {
	path := filepath.Join(root, lockFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return 0, ErrNotRunning
	}
	// If we can take the lock, nobody else holds it.
	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return 0, fmt.Errorf("failed to check lock: %w", err)
	}
	if locked {
		_ = fl.Unlock()
		return 0, ErrNotRunning
	}

	pid, err := readPID(root)
	if err != nil {
		return 0, fmt.Errorf("watch instance detected but pid file unreadable: %w", err)
	}
	return pid, nil
}

func readPID(root string) (int, error) {
	data, err := os.ReadFile(filepath.Join(root, pidFileName))
	if err != nil {
		return 0, err
	}
	s := strings.TrimSpace(string(data))
	if s == "" {
		return 0, fmt.Errorf("pid file is empty")
	}
	pid, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid pid %q: %w", s, err)
	}
	return pid, nil
}
