// pattern: Imperative Shell

// Package provision tracks and performs per-worktree provisioning.
//
// The marker lives in the worktree's resolved git directory, so it follows
// the worktree itself rather than whichever path or symlink points at it.
package provision

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"

	"wtctl/internal/git"
	"wtctl/internal/logging"
)

const (
	// MarkerFile is the marker's name inside the git directory.
	MarkerFile = "wt-provisioned"
	// ToolID is recorded as provisioned_by.
	ToolID = "wtctl"

	lockSuffix = ".lock"
)

// ErrNoGitDir is returned when a path has no resolvable git directory.
var ErrNoGitDir = errors.New("no git directory")

// Entry records one context's provisioning of a worktree.
type Entry struct {
	Context       string `json:"context"`
	ProvisionedAt string `json:"provisioned_at"`
	ProvisionedBy string `json:"provisioned_by"`
}

// Marker is the on-disk provisioning record. Provisions keeps insertion
// order and holds at most one entry per context.
type Marker struct {
	Current    string  `json:"current"`
	Provisions []Entry `json:"provisions"`
}

// Has reports whether name has an entry.
func (m Marker) Has(name string) bool {
	for _, e := range m.Provisions {
		if e.Context == name {
			return true
		}
	}
	return false
}

func (m Marker) without(name string) []Entry {
	out := make([]Entry, 0, len(m.Provisions))
	for _, e := range m.Provisions {
		if e.Context != name {
			out = append(out, e)
		}
	}
	return out
}

// MarkerStore reads and writes provision markers.
type MarkerStore struct {
	logger *logging.ScopedLogger
	now    func() time.Time
}

// NewMarkerStore creates a store. A nil logger discards output.
func NewMarkerStore(logger *logging.ScopedLogger) *MarkerStore {
	return &MarkerStore{logger: logging.OrNop(logger), now: time.Now}
}

// MarkerPath returns the marker location for worktreePath.
func MarkerPath(worktreePath string) (string, error) {
	gitDir, ok := git.ResolveGitDir(worktreePath)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoGitDir, worktreePath)
	}
	return filepath.Join(gitDir, MarkerFile), nil
}

// IsProvisioned reports whether any context has provisioned worktreePath.
func (s *MarkerStore) IsProvisioned(worktreePath string) bool {
	_, ok := s.Read(worktreePath)
	return ok
}

// IsProvisionedByContext reports whether name is the marker's current context.
func (s *MarkerStore) IsProvisionedByContext(worktreePath, name string) bool {
	m, ok := s.Read(worktreePath)
	return ok && m.Current == name
}

// Read returns the marker for worktreePath. A missing, unreadable or
// malformed marker reads as absent.
func (s *MarkerStore) Read(worktreePath string) (Marker, bool) {
	path, err := MarkerPath(worktreePath)
	if err != nil {
		return Marker{}, false
	}
	return s.readFile(path)
}

func (s *MarkerStore) readFile(path string) (Marker, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("reading provision marker failed", "path", path, "error", err)
		}
		return Marker{}, false
	}
	m, err := decodeMarker(data)
	if err != nil {
		s.logger.Warn("ignoring corrupt provision marker", "path", path, "error", err)
		return Marker{}, false
	}
	return m, true
}

// decodeMarker requires both "current" and "provisions" to be present.
func decodeMarker(data []byte) (Marker, error) {
	var raw struct {
		Current    *string  `json:"current"`
		Provisions *[]Entry `json:"provisions"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Marker{}, err
	}
	if raw.Current == nil || raw.Provisions == nil {
		return Marker{}, errors.New("missing required field")
	}
	for _, e := range *raw.Provisions {
		if e.Context == "" {
			return Marker{}, errors.New("provision entry without context")
		}
	}
	return Marker{Current: *raw.Current, Provisions: *raw.Provisions}, nil
}

// Write records name as the current provisioner of worktreePath. An existing
// entry for name is replaced by a fresh one at the end of the list.
func (s *MarkerStore) Write(worktreePath, name string) error {
	path, err := MarkerPath(worktreePath)
	if err != nil {
		return err
	}
	return s.withLock(path, func() error {
		m, _ := s.readFile(path)
		m.Provisions = append(m.without(name), Entry{
			Context:       name,
			ProvisionedAt: s.now().UTC().Format(time.RFC3339),
			ProvisionedBy: ToolID,
		})
		m.Current = name
		if err := writeMarker(path, m); err != nil {
			return fmt.Errorf("writing provision marker: %w", err)
		}
		s.logger.Debug("provision marker written", "path", path, "context", name)
		return nil
	})
}

// Remove drops name's entry. When that entry was current, the last remaining
// entry becomes current. When nothing remains the marker is deleted.
func (s *MarkerStore) Remove(worktreePath, name string) error {
	path, err := MarkerPath(worktreePath)
	if err != nil {
		return err
	}
	return s.withLock(path, func() error {
		m, ok := s.readFile(path)
		if !ok {
			return nil
		}
		m.Provisions = m.without(name)
		if len(m.Provisions) == 0 {
			return removeFile(path)
		}
		if m.Current == name {
			m.Current = m.Provisions[len(m.Provisions)-1].Context
		}
		if err := writeMarker(path, m); err != nil {
			return fmt.Errorf("writing provision marker: %w", err)
		}
		s.logger.Debug("provision entry removed", "path", path, "context", name, "current", m.Current)
		return nil
	})
}

// RemoveAll deletes the marker regardless of its contents.
func (s *MarkerStore) RemoveAll(worktreePath string) error {
	path, err := MarkerPath(worktreePath)
	if err != nil {
		return err
	}
	return s.withLock(path, func() error {
		return removeFile(path)
	})
}

// withLock serializes read-merge-write cycles on one marker across
// processes.
func (s *MarkerStore) withLock(path string, fn func() error) error {
	fl := flock.New(path + lockSuffix)
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("locking provision marker: %w", err)
	}
	defer func() { _ = fl.Unlock() }()
	return fn()
}

func writeMarker(path string, m Marker) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return atomic.WriteFile(path, bytes.NewReader(data))
}

func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing provision marker: %w", err)
	}
	return nil
}

// metadataDirs are IDE directories whose presence means a worktree already
// carries metadata of its own.
var metadataDirs = []string{".idea", ".ijwb", ".aswb", ".clwb", ".vscode"}

// HasExistingMetadata reports whether worktreePath already contains an IDE
// metadata directory.
func HasExistingMetadata(worktreePath string) bool {
	for _, name := range metadataDirs {
		if info, err := os.Stat(filepath.Join(worktreePath, name)); err == nil && info.IsDir() {
			return true
		}
	}
	return false
}
