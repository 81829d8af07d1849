// pattern: Imperative Shell

// Package watcher refreshes the context registry and worktree inventory when
// the store, the active link, or git's worktree metadata change on disk.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"

	"wtctl/internal/contexts"
	"wtctl/internal/logging"
)

// DefaultDebounce is the quiet period before a refresh.
const DefaultDebounce = 500 * time.Millisecond

// Registry is the part of the context registry the watcher drives.
type Registry interface {
	Layout() contexts.Layout
	Reload() error
	Current() (contexts.Context, error)
}

// Refresher rebuilds the worktree snapshot.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Watcher runs the watch loop.
type Watcher struct {
	registry  Registry
	inventory Refresher
	debounce  time.Duration
	logger    *logging.ScopedLogger

	topology chan struct{}
	// onRefresh is called after each debounced refresh. Used by tests.
	onRefresh func()
}

// New creates a watcher. A non-positive debounce uses DefaultDebounce.
func New(registry Registry, inventory Refresher, debounce time.Duration, logger *logging.ScopedLogger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		registry:  registry,
		inventory: inventory,
		debounce:  debounce,
		logger:    logging.OrNop(logger),
		topology:  make(chan struct{}, 1),
	}
}

// Rewatch asks the loop to tear down and rebuild its watches.
func (w *Watcher) Rewatch() {
	select {
	case w.topology <- struct{}{}:
	default:
	}
}

// Run watches until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		set := w.plan()
		err := w.watch(ctx, set)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return err
		}
		w.logger.Info("re-registering watches", "context", set.Context)
	}
}

func (w *Watcher) plan() WatchSet {
	cur, err := w.registry.Current()
	return PlanWatchSet(w.registry.Layout(), cur, err == nil)
}

// watch runs one watch generation. It returns nil when the watch set must be
// rebuilt or ctx is done.
func (w *Watcher) watch(ctx context.Context, set WatchSet) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fsw.Close()

	var watched []string
	for _, dir := range set.Dirs {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		if err := fsw.Add(dir); err != nil {
			w.logger.Warn("failed to watch directory", "dir", dir, "error", err)
			continue
		}
		watched = append(watched, dir)
	}
	w.logger.Info("watching for external changes", "context", set.Context, "dirs", watched)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-w.topology:
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return errors.New("watcher closed")
			}
			if set.LostWatch(ev) {
				w.logger.Info("watched directory removed", "dir", ev.Name)
				return nil
			}
			if set.Relevant(ev) {
				w.logger.Debug("relevant change", "path", ev.Name, "op", ev.Op.String())
				timer.Reset(w.debounce)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return errors.New("watcher closed")
			}
			w.logger.Warn("watcher error", "error", err)

		case <-timer.C:
			w.refresh(ctx, set.Context)
		}
	}
}

// refresh reloads contexts and the inventory, and signals a topology change
// when the resolved context is no longer the one being watched.
func (w *Watcher) refresh(ctx context.Context, watchedContext string) {
	w.logger.Info("external change detected, refreshing")
	if err := w.registry.Reload(); err != nil {
		w.logger.Warn("reloading contexts failed", "error", err)
	}
	if w.inventory != nil {
		if err := w.inventory.Refresh(ctx); err != nil && ctx.Err() == nil {
			w.logger.Warn("refresh failed", "error", err)
		}
	}

	name := ""
	if cur, err := w.registry.Current(); err == nil {
		name = cur.Name
	}
	if name != watchedContext {
		w.logger.Info("context changed", "from", watchedContext, "to", name)
		w.Rewatch()
	}
	if w.onRefresh != nil {
		w.onRefresh()
	}
}
