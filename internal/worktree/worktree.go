// pattern: Functional Core

// Package worktree holds the worktree record the inventory publishes and the
// naming rules for branches and their worktree directories.
package worktree

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Status is the per-worktree detail fetched after a snapshot is published.
// The zero value is NotLoaded.
type Status struct {
	Loaded    bool `json:"loaded"`
	Staged    int  `json:"staged"`
	Modified  int  `json:"modified"`
	Untracked int  `json:"untracked"`
	Conflicts int  `json:"conflicts"`
	Ahead     *int `json:"ahead,omitempty"`
	Behind    *int `json:"behind,omitempty"`
}

// NotLoaded is the initial status of every worktree in a fresh snapshot.
var NotLoaded = Status{}

// Loaded builds a loaded status from category counts.
func Loaded(staged, modified, untracked, conflicts int, ahead, behind *int) Status {
	return Status{
		Loaded:    true,
		Staged:    staged,
		Modified:  modified,
		Untracked: untracked,
		Conflicts: conflicts,
		Ahead:     ahead,
		Behind:    behind,
	}
}

// Clean reports whether a loaded status has no local changes.
func (s Status) Clean() bool {
	return s.Loaded && s.Staged == 0 && s.Modified == 0 && s.Untracked == 0 && s.Conflicts == 0
}

// Worktree is one entry of an inventory snapshot.
type Worktree struct {
	Path       string `json:"path"`
	Branch     string `json:"branch,omitempty"` // empty when HEAD is detached
	Head       string `json:"head"`
	IsMain     bool   `json:"is_main"`
	IsLinked   bool   `json:"is_linked"`
	IsPrunable bool   `json:"is_prunable"`
	Status     Status `json:"status"`

	IsProvisioned                 bool     `json:"is_provisioned"`
	IsProvisionedByCurrentContext bool     `json:"is_provisioned_by_current_context"`
	ActiveAgentSessionIDs         []string `json:"active_agent_session_ids,omitempty"`
}

// Detached reports whether the worktree has no branch checked out.
func (w Worktree) Detached() bool {
	return w.Branch == ""
}

// DisplayName is the branch, or the abbreviated HEAD when detached.
func (w Worktree) DisplayName() string {
	if w.Branch != "" {
		return w.Branch
	}
	if len(w.Head) > 8 {
		return w.Head[:8]
	}
	return w.Head
}

// ShortPath is the last element of the worktree path.
func (w Worktree) ShortPath() string {
	base := filepath.Base(w.Path)
	if base == "." || base == string(filepath.Separator) {
		return w.Path
	}
	return base
}

// RelativePath returns the path relative to base, or the absolute path
// when it does not live under base.
func (w Worktree) RelativePath(base string) string {
	rel, err := filepath.Rel(base, w.Path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return w.Path
	}
	return rel
}

// HasActiveAgent reports whether any agent session is attached.
func (w Worktree) HasActiveAgent() bool {
	return len(w.ActiveAgentSessionIDs) > 0
}

// Dirty reports local changes. known is false until status is loaded.
func (w Worktree) Dirty() (dirty, known bool) {
	if !w.Status.Loaded {
		return false, false
	}
	return !w.Status.Clean(), true
}

// ValidateBranchName checks a branch name typed by a user.
// Names are trimmed; blank names, names starting with "-" and names
// containing ".." are rejected. Slashes are allowed.
func ValidateBranchName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("branch name cannot be empty")
	}
	if strings.HasPrefix(name, "-") {
		return fmt.Errorf("invalid branch name %q: cannot start with '-'", name)
	}
	// Disallow ".." path traversal
	if strings.Contains(name, "..") {
		return fmt.Errorf("branch name cannot contain '..'")
	}
	if strings.ContainsAny(name, " \t\n~^:?*[\\") {
		return fmt.Errorf("invalid branch name %q: contains characters git does not allow", name)
	}
	return nil
}

// PathForBranch returns the directory a new worktree for branch is created in.
// Slashes become dashes in the directory name only; the branch ref keeps them.
func PathForBranch(base, branch string) string {
	return filepath.Join(base, strings.ReplaceAll(strings.TrimSpace(branch), "/", "-"))
}

// FindByPath returns the index of the worktree at path, or -1.
func FindByPath(list []Worktree, path string) int {
	clean := filepath.Clean(path)
	for i, wt := range list {
		if filepath.Clean(wt.Path) == clean {
			return i
		}
	}
	return -1
}

// FindByBranch returns the index of the worktree with branch checked out, or -1.
func FindByBranch(list []Worktree, branch string) int {
	for i, wt := range list {
		if wt.Branch != "" && wt.Branch == branch {
			return i
		}
	}
	return -1
}

// Main returns the main worktree of a snapshot.
func Main(list []Worktree) (Worktree, bool) {
	for _, wt := range list {
		if wt.IsMain {
			return wt, true
		}
	}
	return Worktree{}, false
}

// Canonical resolves symlinks in p, falling back to the cleaned absolute
// path when p does not exist.
func Canonical(p string) string {
	if p == "" {
		return ""
	}
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		if abs, err := filepath.Abs(resolved); err == nil {
			return abs
		}
		return resolved
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

// SamePath reports whether a and b name the same location after
// symlink resolution.
func SamePath(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return Canonical(a) == Canonical(b)
}
