// pattern: Imperative Shell

// Package workflow runs the multi-step worktree operations: create, remove,
// remove-merged, provision, provision-and-switch and context creation.
//
// Each operation reports progress through a task.Scope and ends with one
// notification describing the outcome. Operations return an error only when
// they did not complete.
package workflow

import (
	"context"
	"errors"

	"wtctl/internal/contexts"
	"wtctl/internal/logging"
	"wtctl/internal/notify"
	"wtctl/internal/task"
	"wtctl/internal/worktree"
)

var (
	// ErrMainWorktree is returned when an operation refuses the main worktree.
	ErrMainWorktree = errors.New("cannot remove the main repository worktree")
	// ErrUnknownWorktree is returned when a path is not one of the context's worktrees.
	ErrUnknownWorktree = errors.New("not a worktree of the current context")
	// ErrDirty is returned when removing a worktree with local changes without force.
	ErrDirty = errors.New("worktree has uncommitted changes")
)

// Git is the part of the git gateway the workflows drive.
type Git interface {
	ListWorktrees(ctx context.Context, repoRoot, linkedPath string) ([]worktree.Worktree, error)
	AddWorktree(ctx context.Context, repoRoot, path, branch string, newBranch bool, onProgress func(float64)) error
	RemoveWorktree(ctx context.Context, repoRoot, path string, force bool) error
	MergedBranches(ctx context.Context, repoRoot, base string) ([]string, error)
	HasUncommittedChanges(ctx context.Context, dir string) (bool, error)
	StashPush(ctx context.Context, dir, name string) error
	StashPop(ctx context.Context, dir, name string) error
	Checkout(ctx context.Context, dir, rev string) error
	PullFastForward(ctx context.Context, dir string, onProgress func(float64)) error
	CurrentBranch(ctx context.Context, dir string) (string, error)
	CurrentRevision(ctx context.Context, dir string) (string, error)
}

// Registry is the part of the context registry the workflows use.
type Registry interface {
	Current() (contexts.Context, error)
	Add(c contexts.Context) error
	Switch(name string) error
}

// Provisioner runs the provision sequence.
type Provisioner interface {
	Provision(scope *task.Scope, worktreePath string, c contexts.Context, keepExisting bool) error
}

// Markers reads and writes provision markers.
type Markers interface {
	Write(worktreePath, name string) error
	IsProvisionedByContext(worktreePath, name string) bool
}

// Switcher moves the active link.
type Switcher interface {
	Switch(scope *task.Scope, target string) error
}

// Refresher rebuilds the worktree snapshot.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Exporter links metadata from a worktree into a vault.
type Exporter interface {
	Export(source, vaultDir string, patterns []string) (int, error)
}

// Deps are the collaborators of Workflows. Notifier and Logger may be nil.
type Deps struct {
	Git         Git
	Contexts    Registry
	Provisioner Provisioner
	Markers     Markers
	Switcher    Switcher
	Inventory   Refresher
	Exporter    Exporter
	Notifier    notify.Notifier
	Logger      *logging.ScopedLogger
}

// Workflows runs operations against the current context.
type Workflows struct {
	git         Git
	contexts    Registry
	provisioner Provisioner
	markers     Markers
	switcher    Switcher
	inventory   Refresher
	exporter    Exporter
	notifier    notify.Notifier
	logger      *logging.ScopedLogger

	// pid and now feed the stash name. Replaced in tests.
	pid func() int
	now func() int64
}

// New wires the workflows.
func New(d Deps) *Workflows {
	logger := logging.OrNop(d.Logger)
	return &Workflows{
		git:         d.Git,
		contexts:    d.Contexts,
		provisioner: d.Provisioner,
		markers:     d.Markers,
		switcher:    d.Switcher,
		inventory:   d.Inventory,
		exporter:    d.Exporter,
		notifier:    notify.OrLog(d.Notifier, logger),
		logger:      logger,
		pid:         defaultPID,
		now:         defaultNowMillis,
	}
}

func (w *Workflows) refresh(ctx context.Context) {
	if w.inventory == nil {
		return
	}
	if err := w.inventory.Refresh(ctx); err != nil {
		w.logger.Warn("refresh failed", "error", err)
	}
}

// fail notifies title with err and returns err.
func (w *Workflows) fail(title string, err error) error {
	w.notifier.Notify(title, err.Error(), notify.Error)
	return err
}
