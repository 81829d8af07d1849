// pattern: Functional Core

package watcher

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/fsnotify/fsnotify"

	"wtctl/internal/contexts"
)

// WatchSet is the set of directories watched for one context, and what
// counts as a relevant change inside them.
type WatchSet struct {
	// Context is the context name the set was built for ("" for none).
	Context string
	// Dirs are the directories to watch, without duplicates.
	Dirs []string
	// LinkName is the base name of the active link.
	LinkName string
	// WorktreesDir is the main repository's .git/worktrees directory.
	WorktreesDir string
}

// PlanWatchSet builds the watch set for layout and the current context.
// With ok false only the store itself is watched.
func PlanWatchSet(layout contexts.Layout, cur contexts.Context, ok bool) WatchSet {
	set := WatchSet{}
	add := func(dir string) {
		dir = filepath.Clean(dir)
		if !slices.Contains(set.Dirs, dir) {
			set.Dirs = append(set.Dirs, dir)
		}
	}
	add(layout.Root)
	add(layout.ReposDir())

	if ok {
		set.Context = cur.Name
		set.LinkName = filepath.Base(cur.ActiveWorktree)
		set.WorktreesDir = filepath.Join(cur.MainRepoRoot, ".git", "worktrees")
		add(filepath.Dir(cur.ActiveWorktree))
		add(set.WorktreesDir)
	}
	return set
}

// Relevant reports whether ev should trigger a refresh: a change to the
// current pointer, a context file, or the active link, or anything at all
// inside the worktrees metadata directory.
func (s WatchSet) Relevant(ev fsnotify.Event) bool {
	if s.WorktreesDir != "" && filepath.Dir(ev.Name) == s.WorktreesDir {
		return true
	}
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Base(ev.Name)
	switch {
	case name == "current":
		return true
	case strings.HasSuffix(name, ".conf"):
		return true
	case s.LinkName != "" && name == s.LinkName:
		return true
	}
	return false
}

// LostWatch reports whether ev removed one of the watched directories.
func (s WatchSet) LostWatch(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	return slices.Contains(s.Dirs, filepath.Clean(ev.Name))
}
