// pattern: Imperative Shell

package workflow

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"wtctl/internal/contexts"
	"wtctl/internal/notify"
	"wtctl/internal/task"
	"wtctl/internal/worktree"
)

func defaultPID() int         { return os.Getpid() }
func defaultNowMillis() int64 { return time.Now().UnixMilli() }

// CreateRequest describes a worktree to create.
type CreateRequest struct {
	Branch string
	// Path defaults to the branch's directory under the worktrees base.
	Path string
	// NewBranch creates Branch from the freshly pulled base branch.
	NewBranch bool
	// Provision runs the provision sequence on the new worktree.
	Provision bool
}

// CreateWorktree adds a worktree to the current context and returns its path.
//
// With NewBranch the main repository is temporarily moved to the base branch
// and pulled. Its original branch and any stashed changes are restored
// afterwards, whether the creation succeeded, failed or was cancelled.
func (w *Workflows) CreateWorktree(scope *task.Scope, req CreateRequest) (string, error) {
	cur, err := w.contexts.Current()
	if err != nil {
		return "", w.fail("Create Failed", err)
	}
	if err := worktree.ValidateBranchName(req.Branch); err != nil {
		return "", w.fail("Create Failed", err)
	}
	branch := strings.TrimSpace(req.Branch)
	path := req.Path
	if path == "" {
		path = worktree.PathForBranch(cur.WorktreesBase, branch)
	}

	if req.NewBranch {
		err = w.createNewBranch(scope, cur, branch, path, req.Provision)
	} else {
		err = w.createExistingBranch(scope, cur, branch, path, req.Provision)
	}
	if err != nil {
		return "", w.fail("Create Failed", err)
	}

	w.logger.Info("worktree created", "path", path, "branch", branch, "new_branch", req.NewBranch)
	w.notifier.Notify("Worktree Created", fmt.Sprintf("Created worktree '%s' at %s", branch, path), notify.Info)
	return path, nil
}

func (w *Workflows) createExistingBranch(scope *task.Scope, cur contexts.Context, branch, path string, provision bool) error {
	if err := scope.Checkpoint(); err != nil {
		return err
	}
	scope.Fraction(0)
	scope.Text("Creating worktree...")
	add := scope.Sub(0, 0.85)
	if err := w.git.AddWorktree(scope.Context(), cur.MainRepoRoot, path, branch, false, add.Fraction); err != nil {
		return err
	}
	return w.finishCreate(scope, cur, path, provision)
}

func (w *Workflows) createNewBranch(scope *task.Scope, cur contexts.Context, branch, path string, provision bool) error {
	ctx := scope.Context()
	repo := cur.MainRepoRoot
	stash := fmt.Sprintf("wta-%d-%d", w.now(), w.pid())
	orig := w.originalRef(ctx, repo)

	stashed := false
	defer func() {
		w.restore(scope, repo, orig, stash, stashed)
	}()

	if err := scope.Checkpoint(); err != nil {
		return err
	}
	scope.Fraction(0)
	scope.Text("Stashing uncommitted changes...")
	dirty, err := w.git.HasUncommittedChanges(ctx, repo)
	if err != nil {
		return err
	}
	if dirty {
		if err := w.git.StashPush(ctx, repo, stash); err != nil {
			return fmt.Errorf("stashing changes: %w", err)
		}
		stashed = true
	}

	if err := scope.Checkpoint(); err != nil {
		return err
	}
	scope.Fraction(0.02)
	scope.Text(fmt.Sprintf("Checking out %s...", cur.BaseBranch))
	if err := w.git.Checkout(ctx, repo, cur.BaseBranch); err != nil {
		return err
	}

	if err := scope.Checkpoint(); err != nil {
		return err
	}
	scope.Fraction(0.05)
	scope.Text("Pulling latest changes...")
	pull := scope.Sub(0.05, 0.40)
	if err := w.git.PullFastForward(ctx, repo, pull.Fraction); err != nil {
		return err
	}

	if err := scope.Checkpoint(); err != nil {
		return err
	}
	scope.Fraction(0.45)
	scope.Text("Creating worktree...")
	add := scope.Sub(0.45, 0.40)
	if err := w.git.AddWorktree(ctx, repo, path, branch, true, add.Fraction); err != nil {
		return err
	}

	return w.finishCreate(scope, cur, path, provision)
}

// finishCreate provisions (85-95%) and refreshes (95-100%).
func (w *Workflows) finishCreate(scope *task.Scope, cur contexts.Context, path string, provision bool) error {
	scope.Fraction(0.85)
	if provision && w.provisioner != nil {
		if err := w.provisioner.Provision(scope.Sub(0.85, 0.10), path, cur, false); err != nil {
			return err
		}
	}
	scope.Fraction(0.95)
	scope.Text("Refreshing worktree list...")
	scope.Detail("")
	w.refresh(scope.Context())
	scope.Fraction(1)
	return nil
}

// originalRef is the branch checked out in repo, its revision when
// detached, or "HEAD" when neither can be read.
func (w *Workflows) originalRef(ctx context.Context, repo string) string {
	if b, err := w.git.CurrentBranch(ctx, repo); err == nil && b != "" && b != "HEAD" {
		return b
	}
	if rev, err := w.git.CurrentRevision(ctx, repo); err == nil && rev != "" {
		return rev
	}
	return "HEAD"
}

// restore checks out orig and pops the named stash. It ignores cancellation.
// The stash is only popped onto the original branch.
func (w *Workflows) restore(scope *task.Scope, repo, orig, stash string, stashed bool) {
	ctx := context.WithoutCancel(scope.Context())
	scope.Detail("")
	scope.Text("Restoring original state...")

	if err := w.git.Checkout(ctx, repo, orig); err != nil {
		w.logger.Error("restoring original branch failed", "repo", repo, "ref", orig, "error", err)
		msg := fmt.Sprintf("Could not check out %s in %s: %v", orig, repo, err)
		if stashed {
			msg += fmt.Sprintf("\nYour changes are kept in stash %q.", stash)
		}
		w.notifier.Notify("Restore Failed", msg, notify.Warning)
		return
	}
	if !stashed {
		return
	}
	if err := w.git.StashPop(ctx, repo, stash); err != nil {
		w.logger.Error("restoring stash failed", "repo", repo, "stash", stash, "error", err)
		w.notifier.Notify("Restore Failed",
			fmt.Sprintf("Could not pop stash %q in %s: %v", stash, repo, err), notify.Warning)
	}
}
