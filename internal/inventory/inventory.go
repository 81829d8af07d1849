// pattern: Imperative Shell

// Package inventory owns the worktree snapshot of the active context.
//
// Refresh lists worktrees, enriches them, publishes the result, and then
// fetches per-worktree status in the background. Each background result is
// merged into the live snapshot only if it still belongs to it: the snapshot
// version must be unchanged and the slot must still hold the same path.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"wtctl/internal/contexts"
	"wtctl/internal/enrich"
	"wtctl/internal/logging"
	"wtctl/internal/worktree"
)

// DefaultConcurrency bounds parallel status fetches.
const DefaultConcurrency = 8

// Git is the part of the git gateway the inventory drives.
type Git interface {
	ListWorktrees(ctx context.Context, repoRoot, linkedPath string) ([]worktree.Worktree, error)
	Details(ctx context.Context, dir string) (worktree.Status, error)
}

// ContextSource resolves the active context.
type ContextSource interface {
	Current() (contexts.Context, error)
}

// Snapshot is one published worktree list. Version increases with every
// publication from Refresh.
type Snapshot struct {
	Version   uint64
	Context   string
	Worktrees []worktree.Worktree
}

// Options tunes an Inventory.
type Options struct {
	// FetchStatus enables the background status fetch.
	FetchStatus bool
	// Concurrency bounds parallel status fetches; zero uses DefaultConcurrency.
	Concurrency int
}

// Inventory holds the current snapshot.
type Inventory struct {
	git      Git
	contexts ContextSource
	pipeline *enrich.Pipeline
	opts     Options
	logger   *logging.ScopedLogger

	mu      sync.Mutex
	snap    Snapshot
	loading atomic.Bool

	refreshMu     sync.Mutex
	cancelDetails context.CancelFunc
	details       sync.WaitGroup

	subMu  sync.Mutex
	subs   map[int]chan Snapshot
	nextID int
}

// New creates an empty inventory.
func New(git Git, source ContextSource, pipeline *enrich.Pipeline, opts Options, logger *logging.ScopedLogger) *Inventory {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if pipeline == nil {
		pipeline = enrich.NewPipeline(logger)
	}
	return &Inventory{
		git:      git,
		contexts: source,
		pipeline: pipeline,
		opts:     opts,
		logger:   logging.OrNop(logger),
		subs:     make(map[int]chan Snapshot),
	}
}

// Snapshot returns a copy of the current snapshot.
func (inv *Inventory) Snapshot() Snapshot {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return copySnapshot(inv.snap)
}

// Loading reports whether a refresh is between start and publication.
func (inv *Inventory) Loading() bool {
	return inv.loading.Load()
}

// Subscribe returns a channel receiving every published or merged snapshot,
// and a function that ends the subscription. Slow subscribers miss
// intermediate snapshots rather than blocking writers.
func (inv *Inventory) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	inv.subMu.Lock()
	id := inv.nextID
	inv.nextID++
	inv.subs[id] = ch
	inv.subMu.Unlock()

	return ch, func() {
		inv.subMu.Lock()
		if _, ok := inv.subs[id]; ok {
			delete(inv.subs, id)
			close(ch)
		}
		inv.subMu.Unlock()
	}
}

// broadcast is called with mu held so subscribers see snapshots in order.
func (inv *Inventory) broadcast(s Snapshot) {
	inv.subMu.Lock()
	defer inv.subMu.Unlock()
	for _, ch := range inv.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- copySnapshot(s):
		default:
		}
	}
}

// Refresh rebuilds the snapshot for the active context. Status details of a
// previous refresh still in flight are cancelled. With no active context an
// empty snapshot is published and the context error returned.
func (inv *Inventory) Refresh(ctx context.Context) error {
	inv.refreshMu.Lock()
	defer inv.refreshMu.Unlock()

	if inv.cancelDetails != nil {
		inv.cancelDetails()
		inv.cancelDetails = nil
	}

	inv.loading.Store(true)

	cur, err := inv.contexts.Current()
	if err != nil {
		inv.publish("", []worktree.Worktree{})
		return fmt.Errorf("resolving context: %w", err)
	}

	list, err := inv.git.ListWorktrees(ctx, cur.MainRepoRoot, LinkedPath(cur.ActiveWorktree))
	if err != nil {
		inv.logger.Warn("listing worktrees failed", "context", cur.Name, "error", err)
		inv.publish(cur.Name, []worktree.Worktree{})
		return err
	}

	list = inv.pipeline.Run(ctx, list)
	version := inv.publish(cur.Name, list)
	inv.logger.Debug("snapshot published", "context", cur.Name, "version", version, "count", len(list))

	if inv.opts.FetchStatus && len(list) > 0 {
		detailCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		inv.cancelDetails = cancel
		inv.startDetails(detailCtx, version, list)
	}
	return nil
}

func (inv *Inventory) publish(name string, list []worktree.Worktree) uint64 {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.snap = Snapshot{Version: inv.snap.Version + 1, Context: name, Worktrees: list}
	inv.loading.Store(false)
	inv.broadcast(inv.snap)
	return inv.snap.Version
}

func (inv *Inventory) startDetails(ctx context.Context, version uint64, list []worktree.Worktree) {
	targets := make([]string, len(list))
	for i, w := range list {
		targets[i] = w.Path
	}

	inv.details.Add(1)
	go func() {
		defer inv.details.Done()

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(inv.opts.Concurrency)
		for i, path := range targets {
			g.Go(func() error {
				if gctx.Err() != nil {
					return nil
				}
				status, err := inv.git.Details(gctx, path)
				if err != nil {
					inv.logger.Debug("status fetch failed", "path", path, "error", err)
					return nil
				}
				inv.merge(version, i, path, status)
				return nil
			})
		}
		_ = g.Wait()
	}()
}

// merge applies status to slot i if the snapshot is still the one the fetch
// was started for. It reports whether the merge applied.
func (inv *Inventory) merge(version uint64, i int, path string, status worktree.Status) bool {
	inv.mu.Lock()
	if inv.snap.Version != version || i >= len(inv.snap.Worktrees) || inv.snap.Worktrees[i].Path != path {
		inv.mu.Unlock()
		inv.logger.Debug("dropping stale status", "path", path, "version", version)
		return false
	}
	list := append([]worktree.Worktree(nil), inv.snap.Worktrees...)
	list[i].Status = status
	inv.snap.Worktrees = list
	inv.broadcast(inv.snap)
	inv.mu.Unlock()
	return true
}

// Wait blocks until background status fetches have finished.
func (inv *Inventory) Wait() {
	inv.details.Wait()
}

// Close cancels background fetches and waits for them.
func (inv *Inventory) Close() {
	inv.refreshMu.Lock()
	if inv.cancelDetails != nil {
		inv.cancelDetails()
		inv.cancelDetails = nil
	}
	inv.refreshMu.Unlock()
	inv.details.Wait()
}

// StartPeriodic refreshes every interval until ctx is done. A non-positive
// interval does nothing.
func (inv *Inventory) StartPeriodic(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := inv.Refresh(ctx); err != nil && !errors.Is(err, context.Canceled) {
					inv.logger.Debug("periodic refresh failed", "error", err)
				}
			}
		}
	}()
}

// LinkedPath returns the worktree the active link points at, or "" when the
// link is not a symlink.
func LinkedPath(activeLink string) string {
	info, err := os.Lstat(activeLink)
	if err != nil || info.Mode()&os.ModeSymlink == 0 {
		return ""
	}
	if resolved, err := filepath.EvalSymlinks(activeLink); err == nil {
		return resolved
	}
	target, err := os.Readlink(activeLink)
	if err != nil {
		return ""
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(activeLink), target)
	}
	return filepath.Clean(target)
}

func copySnapshot(s Snapshot) Snapshot {
	list := make([]worktree.Worktree, len(s.Worktrees))
	copy(list, s.Worktrees)
	s.Worktrees = list
	return s
}
