// pattern: Imperative Shell

package workflow

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"wtctl/internal/contexts"
	"wtctl/internal/inventory"
	"wtctl/internal/notify"
	"wtctl/internal/task"
	"wtctl/internal/worktree"
)

// removalPollInterval is how often removal progress is sampled.
const removalPollInterval = 250 * time.Millisecond

// listCurrent lists the worktrees of cur with the linked one marked.
func (w *Workflows) listCurrent(ctx context.Context, cur contexts.Context) ([]worktree.Worktree, error) {
	return w.git.ListWorktrees(ctx, cur.MainRepoRoot, inventory.LinkedPath(cur.ActiveWorktree))
}

// RemoveWorktree removes the worktree at path.
//
// The main worktree is refused. When path is the linked worktree, the
// active link is first switched back to the main repository. A worktree with
// local changes is only removed when force is set.
func (w *Workflows) RemoveWorktree(scope *task.Scope, path string, force bool) error {
	cur, err := w.contexts.Current()
	if err != nil {
		return w.fail("Remove Failed", err)
	}
	if worktree.SamePath(path, cur.MainRepoRoot) {
		return w.fail("Cannot Remove", ErrMainWorktree)
	}

	ctx := scope.Context()
	list, err := w.listCurrent(ctx, cur)
	if err != nil {
		return w.fail("Remove Failed", err)
	}
	i := worktree.FindByPath(list, path)
	if i < 0 {
		return w.fail("Remove Failed", fmt.Errorf("%w: %s", ErrUnknownWorktree, path))
	}
	wt := list[i]
	if wt.IsMain {
		return w.fail("Cannot Remove", ErrMainWorktree)
	}

	dirty, err := w.git.HasUncommittedChanges(ctx, wt.Path)
	if err != nil {
		w.logger.Warn("dirty check failed", "path", wt.Path, "error", err)
		dirty = true
	}
	if dirty && !force {
		return w.fail("Remove Failed", fmt.Errorf("%w: %s (use --force)", ErrDirty, wt.DisplayName()))
	}

	if wt.IsLinked {
		scope.Text("Switching to main worktree...")
		if err := w.switcher.Switch(scope.Sub(0, 0.10), cur.MainRepoRoot); err != nil {
			return err
		}
	}

	if err := scope.Checkpoint(); err != nil {
		return err
	}
	scope.Fraction(0.10)
	scope.Text(fmt.Sprintf("Removing %s...", wt.DisplayName()))
	if err := w.removeWithProgress(scope.Sub(0.10, 0.85), cur.MainRepoRoot, wt.Path, force); err != nil {
		return w.fail("Remove Failed", err)
	}

	scope.Fraction(0.95)
	scope.Text("Refreshing worktree list...")
	w.refresh(ctx)
	scope.Fraction(1)

	w.logger.Info("worktree removed", "path", wt.Path, "forced", force)
	w.notifier.Notify("Worktree Removed", "Removed "+wt.DisplayName(), notify.Info)
	return nil
}

// removeWithProgress runs `git worktree remove` while sampling how many
// entries of path are left.
func (w *Workflows) removeWithProgress(scope *task.Scope, repo, path string, force bool) error {
	total := countEntries(path)
	if total == 0 {
		return w.git.RemoveWorktree(scope.Context(), repo, path, force)
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(removalPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				remaining := countEntries(path)
				if deleted := total - remaining; deleted > 0 {
					scope.Fraction(float64(deleted) / float64(total))
					scope.Detail(fmt.Sprintf("%d / %d files removed", deleted, total))
				}
				if remaining == 0 {
					return
				}
			}
		}
	}()

	err := w.git.RemoveWorktree(scope.Context(), repo, path, force)
	close(done)
	wg.Wait()
	scope.Detail("")
	scope.Fraction(1)
	return err
}

// countEntries counts everything under dir, dir included. Unreadable
// trees count as empty.
func countEntries(dir string) int {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return 0
	}
	n := 0
	_ = filepath.WalkDir(dir, func(_ string, _ fs.DirEntry, err error) error {
		if err == nil {
			n++
		}
		return nil
	})
	return n
}

// MergedPlan lists the worktrees whose branch is merged into the base.
type MergedPlan struct {
	Clean []worktree.Worktree
	Dirty []worktree.Worktree
}

// Empty reports whether no merged worktree was found.
func (p MergedPlan) Empty() bool {
	return len(p.Clean) == 0 && len(p.Dirty) == 0
}

// Summary describes the plan for confirmation.
func (p MergedPlan) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Remove %d merged worktree(s)?", len(p.Clean))
	for _, wt := range p.Clean {
		fmt.Fprintf(&b, "\n  - %s (%s)", wt.DisplayName(), wt.ShortPath())
	}
	if len(p.Dirty) > 0 {
		fmt.Fprintf(&b, "\n\nSkipping %d dirty worktree(s):", len(p.Dirty))
		for _, wt := range p.Dirty {
			fmt.Fprintf(&b, "\n  - %s (%s) [dirty]", wt.DisplayName(), wt.ShortPath())
		}
	}
	return b.String()
}

// PlanRemoveMerged finds the non-main, non-linked worktrees whose branch is
// merged into the context's base branch, split by whether they are dirty.
func (w *Workflows) PlanRemoveMerged(scope *task.Scope) (MergedPlan, error) {
	cur, err := w.contexts.Current()
	if err != nil {
		return MergedPlan{}, err
	}
	ctx := scope.Context()
	scope.Text("Checking merged branches...")

	list, err := w.listCurrent(ctx, cur)
	if err != nil {
		return MergedPlan{}, err
	}
	merged, err := w.git.MergedBranches(ctx, cur.MainRepoRoot, cur.BaseBranch)
	if err != nil {
		return MergedPlan{}, err
	}
	set := make(map[string]bool, len(merged))
	for _, b := range merged {
		set[b] = true
	}

	var plan MergedPlan
	for _, wt := range list {
		if wt.IsMain || wt.IsLinked || wt.Branch == "" || !set[wt.Branch] {
			continue
		}
		dirty, err := w.git.HasUncommittedChanges(ctx, wt.Path)
		if err != nil {
			w.logger.Warn("dirty check failed", "path", wt.Path, "error", err)
			dirty = true
		}
		if dirty {
			plan.Dirty = append(plan.Dirty, wt)
		} else {
			plan.Clean = append(plan.Clean, wt)
		}
	}
	return plan, nil
}

// RemoveMerged removes every clean worktree of plan and reports the counts.
func (w *Workflows) RemoveMerged(scope *task.Scope, plan MergedPlan) (removed, failed int, err error) {
	if plan.Empty() {
		w.notifier.Notify("No Merged Worktrees", "No worktrees with merged branches found", notify.Info)
		return 0, 0, nil
	}
	cur, err := w.contexts.Current()
	if err != nil {
		return 0, 0, w.fail("Remove Failed", err)
	}

	n := len(plan.Clean)
	for i, wt := range plan.Clean {
		if err := scope.Checkpoint(); err != nil {
			return removed, failed, err
		}
		size := 0.95 / float64(n)
		scope.Text(fmt.Sprintf("Removing %s...", wt.DisplayName()))
		if err := w.removeWithProgress(scope.Sub(float64(i)*size, size), cur.MainRepoRoot, wt.Path, false); err != nil {
			w.logger.Warn("removing merged worktree failed", "path", wt.Path, "error", err)
			failed++
			continue
		}
		removed++
	}

	scope.Fraction(0.95)
	scope.Text("Refreshing worktree list...")
	scope.Detail("")
	w.refresh(scope.Context())
	scope.Fraction(1)

	w.notifier.Notify("Merged Worktrees Removed", MergedMessage(removed, failed, len(plan.Dirty)), notify.Info)
	return removed, failed, nil
}

// MergedMessage formats the remove-merged summary.
func MergedMessage(removed, failed, skipped int) string {
	msg := fmt.Sprintf("Removed %d worktree(s)", removed)
	if failed > 0 {
		msg += fmt.Sprintf(", %d failed", failed)
	}
	if skipped > 0 {
		msg += fmt.Sprintf(", %d skipped (dirty)", skipped)
	}
	return msg
}
