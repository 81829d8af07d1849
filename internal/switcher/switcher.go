// pattern: Imperative Shell

// Package switcher moves a context's active link to another worktree and
// refreshes the state that depends on it.
package switcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"wtctl/internal/contexts"
	"wtctl/internal/logging"
	"wtctl/internal/notify"
	"wtctl/internal/task"
)

// ErrTargetMissing is returned when the switch target is not a directory.
var ErrTargetMissing = errors.New("switch target does not exist")

// ContextSource resolves the active context.
type ContextSource interface {
	Current() (contexts.Context, error)
}

// Refresher rebuilds the worktree snapshot.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Hooks are the collaborators around the swap. Any of them may be nil.
type Hooks struct {
	// FlushUnsaved runs before the swap. An error aborts the switch.
	FlushUnsaved func(ctx context.Context, c contexts.Context) error
	// ReloadEditors, RefreshFiles and RefreshVCS run after the swap against
	// the new target. Their errors are reported, not returned.
	ReloadEditors func(ctx context.Context, target string) error
	RefreshFiles  func(ctx context.Context, target string) error
	RefreshVCS    func(ctx context.Context, target string) error
}

// Switcher performs active-worktree switches.
type Switcher struct {
	contexts  ContextSource
	inventory Refresher
	hooks     Hooks
	notifier  notify.Notifier
	logger    *logging.ScopedLogger
}

// New creates a switcher. A nil inventory skips the list refresh.
func New(source ContextSource, inventory Refresher, hooks Hooks, notifier notify.Notifier, logger *logging.ScopedLogger) *Switcher {
	logger = logging.OrNop(logger)
	return &Switcher{
		contexts:  source,
		inventory: inventory,
		hooks:     hooks,
		notifier:  notify.OrLog(notifier, logger),
		logger:    logger,
	}
}

// Switch points the active link of the current context at target.
//
// The rename of the link is the commit point. An error before it leaves the
// link untouched and is returned. After it, Switch returns nil and later
// phase failures are only reported.
func (s *Switcher) Switch(scope *task.Scope, target string) error {
	if err := s.swap(scope, target); err != nil {
		s.notifier.Notify("Switch Failed", "Failed to switch worktree: "+err.Error(), notify.Error)
		return err
	}

	ctx := context.WithoutCancel(scope.Context())
	var issues []string
	phases := []struct {
		at   float64
		text string
		fn   func(context.Context, string) error
	}{
		{0.20, "Reloading editors...", s.hooks.ReloadEditors},
		{0.40, "Refreshing file system...", s.hooks.RefreshFiles},
		{0.65, "Updating git state...", s.hooks.RefreshVCS},
	}
	for _, ph := range phases {
		scope.Fraction(ph.at)
		scope.Text(ph.text)
		if ph.fn == nil {
			continue
		}
		if err := ph.fn(ctx, target); err != nil {
			s.logger.Warn("post-switch phase failed", "phase", ph.text, "error", err)
			issues = append(issues, err.Error())
		}
	}

	scope.Fraction(0.85)
	scope.Text("Refreshing worktree list...")
	if s.inventory != nil {
		if err := s.inventory.Refresh(ctx); err != nil {
			s.logger.Warn("post-switch refresh failed", "error", err)
			issues = append(issues, "refresh: "+err.Error())
		}
	}
	scope.Fraction(1)

	name := filepath.Base(target)
	if len(issues) > 0 {
		s.notifier.Notify("Worktree Switched",
			fmt.Sprintf("Switched to %s with issues:\n• %s", name, strings.Join(issues, "\n• ")),
			notify.Warning)
		return nil
	}
	s.notifier.Notify("Worktree Switched", "Switched to "+name, notify.Info)
	return nil
}

// swap runs everything up to and including the commit point.
func (s *Switcher) swap(scope *task.Scope, target string) error {
	cur, err := s.contexts.Current()
	if err != nil {
		return err
	}

	abs, err := filepath.Abs(target)
	if err != nil {
		return err
	}
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrTargetMissing, target)
	}

	scope.Fraction(0)
	scope.Text("Saving documents...")
	if s.hooks.FlushUnsaved != nil {
		if err := s.hooks.FlushUnsaved(scope.Context(), cur); err != nil {
			return fmt.Errorf("flushing unsaved state: %w", err)
		}
	}

	if err := scope.Checkpoint(); err != nil {
		return err
	}
	scope.Fraction(0.10)
	scope.Text("Swapping symlink...")
	previous := ReadLink(cur.ActiveWorktree)
	if err := AtomicSetSymlink(cur.ActiveWorktree, abs); err != nil {
		return err
	}
	s.logger.Info("active worktree switched", "context", cur.Name, "link", cur.ActiveWorktree, "from", previous, "to", abs)
	return nil
}
