// pattern: Imperative Shell
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wtctl/internal/instance"
	"wtctl/internal/inventory"
	"wtctl/internal/watcher"
)

// printQuiet coalesces a snapshot and its status merges into one table.
const printQuiet = 150 * time.Millisecond

// runWatch keeps the inventory in sync with the disk and prints every change
// until interrupted.
func runWatch(env *Env) error {
	root := env.Root()
	fl, err := instance.Lock(root)
	if err != nil {
		return err
	}
	defer instance.Cleanup(root, fl)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := env.Logs.For("watch")
	logger.Info("watch started", "root", root, "pid", os.Getpid())

	snaps, cancel := env.Inventory.Subscribe()
	defer cancel()
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		printSnapshots(ctx, env, snaps)
	}()

	if err := env.Inventory.Refresh(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("initial refresh failed", "error", err)
		fmt.Fprintf(env.Stderr, "Warning: %v\n", err)
	}
	env.Inventory.StartPeriodic(ctx, env.Config.RefreshInterval())

	w := watcher.New(env.Contexts, env.Inventory, env.Config.Debounce(), env.Logs.For("watcher"))
	err = w.Run(ctx)
	stop()
	<-printed
	logger.Info("watch stopped")
	return err
}

// printWatchStatus reports the pid of the running watch, if any.
func printWatchStatus(env *Env) error {
	pid, err := instance.Discover(env.Root())
	if errors.Is(err, instance.ErrNotRunning) {
		fmt.Fprintln(env.Stdout, "not running")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(env.Stdout, "running (pid %d)\n", pid)
	return nil
}

// printSnapshots renders the latest snapshot once the stream has been quiet
// for printQuiet.
func printSnapshots(ctx context.Context, env *Env, snaps <-chan inventory.Snapshot) {
	timer := time.NewTimer(printQuiet)
	timer.Stop()
	defer timer.Stop()

	var latest inventory.Snapshot
	var pending bool
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-snaps:
			if !ok {
				return
			}
			latest, pending = s, true
			timer.Reset(printQuiet)
		case <-timer.C:
			if pending {
				writeSnapshot(env.Stdout, env, latest)
				pending = false
			}
		}
	}
}

func writeSnapshot(w io.Writer, env *Env, s inventory.Snapshot) {
	header := fmt.Sprintf("[%s] %s  #%d", time.Now().Format("15:04:05"), s.Context, s.Version)
	if s.Context == "" {
		header = fmt.Sprintf("[%s] no active context", time.Now().Format("15:04:05"))
	}
	fmt.Fprintln(w, env.Styles.TitleStyle().Render(header))
	if len(s.Worktrees) == 0 {
		fmt.Fprintln(w, env.Styles.MutedStyle().Render("  no worktrees"))
		return
	}
	base := ""
	if cur, err := env.Contexts.Get(s.Context); err == nil {
		base = cur.WorktreesBase
	}
	fmt.Fprint(w, env.Styles.RenderWorktrees(s.Worktrees, base))
	fmt.Fprintln(w)
}
