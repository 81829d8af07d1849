// pattern: Imperative Shell

package contexts

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"wtctl/internal/git"
	"wtctl/internal/logging"
	"wtctl/internal/worktree"
)

var (
	// ErrNoContext is returned when no context is selected or detected.
	ErrNoContext = errors.New("no active context")
	// ErrNotFound is returned for an unknown context name.
	ErrNotFound = errors.New("context not found")
	// ErrExists is returned when adding a context whose name is taken.
	ErrExists = errors.New("context already exists")
)

// Registry is the in-process view of the context store.
//
// The store on disk is authoritative; Reload re-reads it. Reads between
// reloads are served from the cached list.
type Registry struct {
	layout Layout
	logger *logging.ScopedLogger

	mu          sync.RWMutex
	currentName string
	contexts    []Context
	workDir     string
}

// NewRegistry creates a registry over layout. Call Reload before use.
func NewRegistry(layout Layout, logger *logging.ScopedLogger) *Registry {
	return &Registry{layout: layout, logger: logging.OrNop(logger)}
}

// Layout returns the store layout.
func (r *Registry) Layout() Layout {
	return r.layout
}

// SetWorkDir sets the directory Current falls back to when the current
// pointer is empty or names a missing context. An empty dir clears it.
func (r *Registry) SetWorkDir(dir string) {
	r.mu.Lock()
	r.workDir = dir
	r.mu.Unlock()
}

// Reload re-reads the current pointer and all context files. A bad file is
// logged and skipped; only an unreadable store is an error.
func (r *Registry) Reload() error {
	name, err := readCurrentName(r.layout.CurrentFile())
	if err != nil {
		r.logger.Warn("reading current context pointer failed", "path", r.layout.CurrentFile(), "error", err)
	}

	list, listErr := r.readAll()

	r.mu.Lock()
	r.currentName = name
	r.contexts = list
	r.mu.Unlock()

	r.logger.Debug("contexts reloaded", "current", name, "count", len(list))
	return listErr
}

func (r *Registry) readAll() ([]Context, error) {
	files, err := listConfigFiles(r.layout.ReposDir())
	if err != nil {
		return nil, fmt.Errorf("listing contexts: %w", err)
	}
	list := make([]Context, 0, len(files))
	for _, path := range files {
		ctx, err := ReadConfigFile(path)
		if err != nil {
			r.logger.Warn("skipping context config", "path", path, "error", err)
			continue
		}
		list = append(list, ctx)
	}
	return list, nil
}

// List returns every parseable context as of the last reload.
func (r *Registry) List() []Context {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Context(nil), r.contexts...)
}

// CurrentName returns the name stored in the current pointer.
func (r *Registry) CurrentName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.currentName
}

// Get reads the named context from disk.
func (r *Registry) Get(name string) (Context, error) {
	if err := ValidateName(name); err != nil {
		return Context{}, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	path := r.layout.ConfPath(name)
	if _, err := os.Stat(path); err != nil {
		return Context{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return ReadConfigFile(path)
}

// Current returns the context named by the current pointer. When the pointer
// is empty or its context is gone, the context owning the work dir is used.
func (r *Registry) Current() (Context, error) {
	r.mu.RLock()
	workDir, name := r.workDir, r.currentName
	r.mu.RUnlock()

	var pointerErr error
	if name != "" {
		ctx, err := r.named(name)
		if err == nil {
			return ctx, nil
		}
		pointerErr = fmt.Errorf("%w: current context %q is unreadable: %v", ErrNoContext, name, err)
	}
	if workDir != "" {
		if ctx, ok := r.Resolve(workDir); ok {
			return ctx, nil
		}
	}
	if pointerErr != nil {
		return Context{}, pointerErr
	}
	return Context{}, ErrNoContext
}

func (r *Registry) named(name string) (Context, error) {
	for _, ctx := range r.List() {
		if ctx.Name == name {
			return ctx, nil
		}
	}
	return r.Get(name)
}

// Switch makes name the current context.
func (r *Registry) Switch(name string) error {
	if _, err := r.Get(name); err != nil {
		return err
	}
	if err := writeCurrentName(r.layout.CurrentFile(), name); err != nil {
		return fmt.Errorf("writing current context: %w", err)
	}
	r.mu.Lock()
	r.currentName = name
	r.mu.Unlock()
	r.logger.Info("context switched", "context", name)
	return nil
}

// Add writes a new context file and reloads.
func (r *Registry) Add(ctx Context) error {
	if err := ctx.Validate(); err != nil {
		return err
	}
	path := r.layout.ConfPath(ctx.Name)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrExists, ctx.Name)
	}
	if err := WriteConfigFile(path, ctx); err != nil {
		return fmt.Errorf("writing context %s: %w", ctx.Name, err)
	}
	r.logger.Info("context added", "context", ctx.Name, "repo", ctx.MainRepoRoot)
	return r.Reload()
}

// Resolve returns the context whose main repository contains path.
//
// It walks up from path to the nearest git root. When that root is a linked
// worktree, its .git pointer is followed back to the main repository. Both
// sides are compared after symlink resolution.
func (r *Registry) Resolve(path string) (Context, bool) {
	root, ok := git.FindRoot(path)
	if !ok {
		return Context{}, false
	}

	candidates := []string{worktree.Canonical(root)}
	if mainRoot, ok := git.MainRepoRoot(root); ok {
		candidates = append(candidates, worktree.Canonical(mainRoot))
	}

	for _, ctx := range r.List() {
		want := worktree.Canonical(ctx.MainRepoRoot)
		for _, c := range candidates {
			if c == want {
				return ctx, true
			}
		}
	}
	return Context{}, false
}
