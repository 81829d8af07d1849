// pattern: Imperative Shell

// Package git wraps the git binary for every worktree operation the tool
// performs and parses its porcelain output.
package git

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"wtctl/internal/logging"
	"wtctl/internal/worktree"
)

// Options configures the default exec-backed runner.
type Options struct {
	Binary          string
	Timeout         time.Duration
	ProgressTimeout time.Duration
}

// Gateway runs git commands through a Runner.
type Gateway struct {
	runner Runner
	logger *logging.ScopedLogger
}

// NewGateway creates a Gateway that executes the git binary.
func NewGateway(opts Options, logger *logging.ScopedLogger) *Gateway {
	return &Gateway{
		runner: NewExecRunner(opts.Binary, opts.Timeout, opts.ProgressTimeout, logger),
		logger: logging.OrNop(logger),
	}
}

// NewGatewayWithRunner creates a Gateway with a custom runner (for testing).
func NewGatewayWithRunner(runner Runner, logger *logging.ScopedLogger) *Gateway {
	return &Gateway{runner: runner, logger: logging.OrNop(logger)}
}

func (g *Gateway) run(ctx context.Context, dir string, args ...string) (Result, error) {
	res := g.runner.Run(ctx, dir, args, RunOptions{})
	return res, errorFor(args, res)
}

func (g *Gateway) runWithProgress(ctx context.Context, dir string, onProgress func(float64), args ...string) (Result, error) {
	res := g.runner.Run(ctx, dir, args, RunOptions{OnProgress: onProgress})
	return res, errorFor(args, res)
}

// ListWorktrees lists the worktrees of repoRoot. linkedPath marks the entry
// the active pointer resolves to.
func (g *Gateway) ListWorktrees(ctx context.Context, repoRoot, linkedPath string) ([]worktree.Worktree, error) {
	res, err := g.run(ctx, repoRoot, "worktree", "list", "--porcelain")
	if err != nil {
		g.logger.Warn("git worktree list failed", "repo", repoRoot, "exit_code", res.ExitCode, "stderr", strings.TrimSpace(res.Stderr))
		return nil, err
	}
	return ParsePorcelain(res.Stdout, linkedPath), nil
}

// AddWorktree creates a worktree at path. With newBranch set, branch is
// created from the current HEAD of repoRoot; otherwise it must exist.
func (g *Gateway) AddWorktree(ctx context.Context, repoRoot, path, branch string, newBranch bool, onProgress func(float64)) error {
	args := []string{"worktree", "add"}
	if onProgress != nil {
		args = append(args, "--progress")
	}
	if newBranch {
		args = append(args, "-b", branch, path)
	} else {
		args = append(args, path, branch)
	}
	_, err := g.runWithProgress(ctx, repoRoot, onProgress, args...)
	return err
}

// RemoveWorktree removes the worktree at path.
func (g *Gateway) RemoveWorktree(ctx context.Context, repoRoot, path string, force bool) error {
	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, path)
	_, err := g.run(ctx, repoRoot, args...)
	return err
}

// MergedBranches lists branches merged into base, excluding base.
func (g *Gateway) MergedBranches(ctx context.Context, repoRoot, base string) ([]string, error) {
	res, err := g.run(ctx, repoRoot, "branch", "--merged", base)
	if err != nil {
		return nil, err
	}
	return parseMergedBranches(res.Stdout, base), nil
}

// Status counts the local changes of the worktree at dir.
func (g *Gateway) Status(ctx context.Context, dir string) (StatusCounts, error) {
	res, err := g.run(ctx, dir, "status", "--porcelain")
	if err != nil {
		return StatusCounts{}, err
	}
	return ClassifyStatus(res.Stdout), nil
}

// RefreshIndex refreshes the stat information in the index of dir so that
// later status reads do not see files as modified after a checkout.
func (g *Gateway) RefreshIndex(ctx context.Context, dir string) error {
	_, err := g.run(ctx, dir, "update-index", "-q", "--refresh")
	return err
}

// HasUncommittedChanges reports whether `status --porcelain` prints anything.
func (g *Gateway) HasUncommittedChanges(ctx context.Context, dir string) (bool, error) {
	res, err := g.run(ctx, dir, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(res.Stdout) != "", nil
}

// AheadBehind counts commits relative to the upstream branch. Both values
// are nil when there is no upstream.
func (g *Gateway) AheadBehind(ctx context.Context, dir string) (ahead, behind *int, err error) {
	res, err := g.run(ctx, dir, "rev-list", "--left-right", "--count", "@{upstream}...HEAD")
	if err != nil {
		return nil, nil, err
	}
	ahead, behind, ok := parseAheadBehind(res.Stdout)
	if !ok {
		return nil, nil, fmt.Errorf("unexpected rev-list output %q", strings.TrimSpace(res.Stdout))
	}
	return ahead, behind, nil
}

// Details fetches the full status of one worktree. A failed status leaves
// the result NotLoaded; a missing upstream only drops ahead/behind.
func (g *Gateway) Details(ctx context.Context, dir string) (worktree.Status, error) {
	counts, err := g.Status(ctx, dir)
	if err != nil {
		return worktree.NotLoaded, err
	}
	ahead, behind, abErr := g.AheadBehind(ctx, dir)
	if abErr != nil {
		g.logger.Debug("ahead/behind unavailable", "dir", dir, "error", abErr)
	}
	return worktree.Loaded(counts.Staged, counts.Modified, counts.Untracked, counts.Conflicts, ahead, behind), nil
}

// StashPush stashes local changes under a message.
func (g *Gateway) StashPush(ctx context.Context, dir, name string) error {
	_, err := g.run(ctx, dir, "stash", "push", "-m", name)
	return err
}

// StashPop pops the stash whose message contains name. A missing stash is
// not an error.
func (g *Gateway) StashPop(ctx context.Context, dir, name string) error {
	res, err := g.run(ctx, dir, "stash", "list")
	if err != nil {
		return err
	}
	idx := findStashIndex(res.Stdout, name)
	if idx < 0 {
		g.logger.Debug("stash not found", "dir", dir, "name", name)
		return nil
	}
	_, err = g.run(ctx, dir, "stash", "pop", fmt.Sprintf("stash@{%d}", idx))
	return err
}

// Checkout checks out a branch or revision.
func (g *Gateway) Checkout(ctx context.Context, dir, rev string) error {
	_, err := g.run(ctx, dir, "checkout", rev)
	return err
}

// PullFastForward runs `pull --ff-only`, streaming progress when asked.
func (g *Gateway) PullFastForward(ctx context.Context, dir string, onProgress func(float64)) error {
	_, err := g.runWithProgress(ctx, dir, onProgress, "pull", "--ff-only", "--progress")
	return err
}

// CurrentBranch returns the checked-out branch, "HEAD" when detached.
func (g *Gateway) CurrentBranch(ctx context.Context, dir string) (string, error) {
	res, err := g.run(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

// CurrentRevision returns the full HEAD sha.
func (g *Gateway) CurrentRevision(ctx context.Context, dir string) (string, error) {
	res, err := g.run(ctx, dir, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

// IsRepository reports whether dir is inside a git work tree.
func (g *Gateway) IsRepository(ctx context.Context, dir string) bool {
	_, err := g.run(ctx, dir, "rev-parse", "--git-dir")
	return err == nil
}

// DetectBaseBranch guesses the default branch of repo: origin's HEAD, then
// a local main or master, then "main".
func (g *Gateway) DetectBaseBranch(ctx context.Context, repo string) string {
	if res, err := g.run(ctx, repo, "symbolic-ref", "refs/remotes/origin/HEAD"); err == nil {
		if ref := strings.TrimSpace(res.Stdout); ref != "" {
			return path.Base(ref)
		}
	}
	for _, candidate := range []string{"main", "master"} {
		if _, err := g.run(ctx, repo, "rev-parse", "--verify", "refs/heads/"+candidate); err == nil {
			return candidate
		}
	}
	return "main"
}
