// pattern: Imperative Shell
package cli

import (
	"fmt"

	flag "github.com/spf13/pflag"

	"wtctl/internal/inventory"
	"wtctl/internal/worktree"
	"wtctl/internal/workflow"
)

// RegisterWorktreeCommands registers the worktree command group commands.
func RegisterWorktreeCommands(group *Group, opts Options) {
	group.AddCommand(&Command{
		Name:    "list",
		Summary: "List worktrees of the current context",
		Usage:   "Usage: wtctl worktree list [--json] [--no-status]",
		Run: func(args []string) error {
			fs := flag.NewFlagSet("worktree list", flag.ContinueOnError)
			asJSON := fs.Bool("json", false, "print as JSON")
			noStatus := fs.Bool("no-status", false, "skip the per-worktree git status")
			if _, err := parseFlags(fs, args, 0, 0); err != nil {
				return err
			}
			opts.NoStatus = *noStatus
			return withEnv(opts, func(env *Env) error {
				cur, err := env.Contexts.Current()
				if err != nil {
					return err
				}
				if err := env.Inventory.Refresh(background()); err != nil {
					return err
				}
				env.Inventory.Wait()
				snap := env.Inventory.Snapshot()
				if *asJSON {
					return PrintJSON(env.Stdout, snap.Worktrees)
				}
				fmt.Fprint(env.Stdout, env.Styles.RenderWorktrees(snap.Worktrees, cur.WorktreesBase))
				return nil
			})
		},
	})

	group.AddCommand(&Command{
		Name:    "create",
		Summary: "Create a worktree for a branch",
		Usage:   "Usage: wtctl worktree create <branch> [--new] [--path DIR] [--no-provision]",
		Run: func(args []string) error {
			fs := flag.NewFlagSet("worktree create", flag.ContinueOnError)
			newBranch := fs.Bool("new", false, "create the branch from the updated base branch")
			path := fs.String("path", "", "worktree directory (default: under the context's worktrees base)")
			noProvision := fs.Bool("no-provision", false, "do not copy IDE metadata into the new worktree")
			rest, err := parseFlags(fs, args, 1, 1)
			if err != nil {
				return err
			}
			req := workflow.CreateRequest{
				Branch:    rest[0],
				NewBranch: *newBranch,
				Provision: !*noProvision,
			}
			if *path != "" {
				abs, err := absPath(*path)
				if err != nil {
					return err
				}
				req.Path = abs
			}
			return withEnv(opts, func(env *Env) error {
				created, err := env.Workflows.CreateWorktree(env.Scope(background()), req)
				if err != nil {
					return err
				}
				fmt.Fprintln(env.Stdout, created)
				return nil
			})
		},
	})

	group.AddCommand(&Command{
		Name:    "remove",
		Summary: "Remove a worktree",
		Usage:   "Usage: wtctl worktree remove <path|branch> [--force]",
		Run: func(args []string) error {
			fs := flag.NewFlagSet("worktree remove", flag.ContinueOnError)
			force := fs.BoolP("force", "f", false, "remove even with uncommitted changes")
			rest, err := parseFlags(fs, args, 1, 1)
			if err != nil {
				return err
			}
			return withEnv(opts, func(env *Env) error {
				wt, err := resolveWorktree(env, rest[0])
				if err != nil {
					return err
				}
				return env.Workflows.RemoveWorktree(env.Scope(background()), wt.Path, *force)
			})
		},
	})

	group.AddCommand(&Command{
		Name:    "remove-merged",
		Summary: "Remove worktrees whose branch is merged into the base branch",
		Usage:   "Usage: wtctl worktree remove-merged [--yes]",
		Run: func(args []string) error {
			fs := flag.NewFlagSet("worktree remove-merged", flag.ContinueOnError)
			yes := fs.BoolP("yes", "y", false, "remove without printing the plan first")
			if _, err := parseFlags(fs, args, 0, 0); err != nil {
				return err
			}
			return withEnv(opts, func(env *Env) error {
				scope := env.Scope(background())
				plan, err := env.Workflows.PlanRemoveMerged(scope)
				if err != nil {
					return err
				}
				if !*yes && !plan.Empty() {
					fmt.Fprintln(env.Stdout, plan.Summary())
					fmt.Fprintln(env.Stdout, "Run again with --yes to remove them.")
					return nil
				}
				_, failed, err := env.Workflows.RemoveMerged(scope, plan)
				if err != nil {
					return err
				}
				if failed > 0 {
					return fmt.Errorf("%d worktree(s) could not be removed", failed)
				}
				return nil
			})
		},
	})

	group.AddCommand(&Command{
		Name:    "switch",
		Summary: "Point the active link at a worktree",
		Usage:   "Usage: wtctl worktree switch <path|branch> [--provision keep|overwrite|none]",
		Run: func(args []string) error {
			fs := flag.NewFlagSet("worktree switch", flag.ContinueOnError)
			provision := fs.String("provision", "none", "prepare the worktree first: keep, overwrite or none")
			rest, err := parseFlags(fs, args, 1, 1)
			if err != nil {
				return err
			}
			mode, err := workflow.ParseProvisionMode(*provision)
			if err != nil {
				return usageErr("%v", err)
			}
			return withEnv(opts, func(env *Env) error {
				wt, err := resolveWorktree(env, rest[0])
				if err != nil {
					return err
				}
				return env.Workflows.ProvisionAndSwitch(env.Scope(background()), wt.Path, mode)
			})
		},
	})

	group.AddCommand(&Command{
		Name:    "provision",
		Summary: "Copy the context's IDE metadata into a worktree",
		Usage:   "Usage: wtctl worktree provision <path|branch> [--keep]",
		Run: func(args []string) error {
			fs := flag.NewFlagSet("worktree provision", flag.ContinueOnError)
			keep := fs.Bool("keep", false, "keep metadata already present in the worktree")
			rest, err := parseFlags(fs, args, 1, 1)
			if err != nil {
				return err
			}
			return withEnv(opts, func(env *Env) error {
				wt, err := resolveWorktree(env, rest[0])
				if err != nil {
					return err
				}
				return env.Workflows.ProvisionWorktree(env.Scope(background()), wt.Path, *keep)
			})
		},
	})
}

// resolveWorktree finds a worktree of the current context by branch name,
// path, or directory name, in that order.
func resolveWorktree(env *Env, ref string) (worktree.Worktree, error) {
	cur, err := env.Contexts.Current()
	if err != nil {
		return worktree.Worktree{}, err
	}
	list, err := env.Git.ListWorktrees(background(), cur.MainRepoRoot, inventory.LinkedPath(cur.ActiveWorktree))
	if err != nil {
		return worktree.Worktree{}, err
	}
	return matchWorktree(list, ref)
}

func matchWorktree(list []worktree.Worktree, ref string) (worktree.Worktree, error) {
	if i := worktree.FindByBranch(list, ref); i >= 0 {
		return list[i], nil
	}
	for _, wt := range list {
		if worktree.SamePath(wt.Path, ref) {
			return wt, nil
		}
	}
	var match []worktree.Worktree
	for _, wt := range list {
		if wt.ShortPath() == ref {
			match = append(match, wt)
		}
	}
	switch len(match) {
	case 0:
		return worktree.Worktree{}, fmt.Errorf("%w: %s", workflow.ErrUnknownWorktree, ref)
	case 1:
		return match[0], nil
	}
	return worktree.Worktree{}, fmt.Errorf("%q matches %d worktrees; pass the full path", ref, len(match))
}
