// pattern: Imperative Shell
package cli

import (
	"fmt"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"wtctl/internal/contexts"
)

// RegisterContextCommands registers the context command group commands.
func RegisterContextCommands(group *Group, opts Options) {
	group.AddCommand(&Command{
		Name:    "list",
		Summary: "List configured contexts",
		Usage:   "Usage: wtctl context list [--json]",
		Run: func(args []string) error {
			fs := flag.NewFlagSet("context list", flag.ContinueOnError)
			asJSON := fs.Bool("json", false, "print as JSON")
			if _, err := parseFlags(fs, args, 0, 0); err != nil {
				return err
			}
			return withEnv(opts, func(env *Env) error {
				list := env.Contexts.List()
				if *asJSON {
					return PrintJSON(env.Stdout, list)
				}
				if len(list) == 0 {
					fmt.Fprintln(env.Stdout, "No contexts configured. Use \"wtctl context add <repo>\".")
					return nil
				}
				fmt.Fprint(env.Stdout, env.Styles.RenderContexts(list, env.Contexts.CurrentName()))
				return nil
			})
		},
	})

	group.AddCommand(&Command{
		Name:    "current",
		Summary: "Show the active context",
		Usage:   "Usage: wtctl context current [--json]",
		Run: func(args []string) error {
			fs := flag.NewFlagSet("context current", flag.ContinueOnError)
			asJSON := fs.Bool("json", false, "print as JSON")
			if _, err := parseFlags(fs, args, 0, 0); err != nil {
				return err
			}
			return withEnv(opts, func(env *Env) error {
				cur, err := env.Contexts.Current()
				if err != nil {
					return err
				}
				if *asJSON {
					return PrintJSON(env.Stdout, cur)
				}
				printContext(env, cur)
				return nil
			})
		},
	})

	group.AddCommand(&Command{
		Name:    "switch",
		Summary: "Make a context the current one",
		Usage:   "Usage: wtctl context switch <name>",
		Run: func(args []string) error {
			fs := flag.NewFlagSet("context switch", flag.ContinueOnError)
			rest, err := parseFlags(fs, args, 1, 1)
			if err != nil {
				return err
			}
			return withEnv(opts, func(env *Env) error {
				if err := env.Contexts.Switch(rest[0]); err != nil {
					return err
				}
				fmt.Fprintf(env.Stdout, "Switched to context '%s'\n", rest[0])
				return nil
			})
		},
	})

	group.AddCommand(&Command{
		Name:    "add",
		Summary: "Create a context for a repository",
		Usage:   "Usage: wtctl context add <repo> [--name NAME] [--base-branch BRANCH] [--patterns P1,P2] [--active-link PATH]",
		Run: func(args []string) error {
			fs := flag.NewFlagSet("context add", flag.ContinueOnError)
			name := fs.String("name", "", "context name (default: derived from the repository directory)")
			base := fs.String("base-branch", "", "base branch for new worktrees (default: detected)")
			patterns := fs.String("patterns", "", "metadata patterns, comma or space separated (default: detected)")
			link := fs.String("active-link", "", "active worktree symlink (default: the repository path)")
			rest, err := parseFlags(fs, args, 1, 1)
			if err != nil {
				return err
			}
			repo, err := absPath(rest[0])
			if err != nil {
				return err
			}
			return withEnv(opts, func(env *Env) error {
				ctx := background()
				baseBranch := strings.TrimSpace(*base)
				if baseBranch == "" && env.Git.IsRepository(ctx, repo) {
					baseBranch = env.Git.DetectBaseBranch(ctx, repo)
				}

				var names []string
				if fs.Changed("patterns") {
					names = splitPatterns(*patterns)
				} else {
					names = contexts.PatternNames(contexts.DetectPatterns(repo))
				}

				c := contexts.DeriveContext(env.Contexts.Layout(), repo, strings.TrimSpace(*name), baseBranch, names)
				if *link != "" {
					abs, err := absPath(*link)
					if err != nil {
						return err
					}
					c.ActiveWorktree = abs
				}
				if err := env.Workflows.AddContext(env.Scope(ctx), c); err != nil {
					return err
				}
				printContext(env, c)
				return nil
			})
		},
	})

	group.AddCommand(&Command{
		Name:    "detect",
		Summary: "Show which context owns a directory",
		Usage:   "Usage: wtctl context detect [path]",
		Run: func(args []string) error {
			fs := flag.NewFlagSet("context detect", flag.ContinueOnError)
			rest, err := parseFlags(fs, args, 0, 1)
			if err != nil {
				return err
			}
			path := opts.WorkDir
			if len(rest) == 1 {
				path = rest[0]
			}
			if path == "" {
				if path, err = os.Getwd(); err != nil {
					return err
				}
			}
			return withEnv(opts, func(env *Env) error {
				c, ok := env.Contexts.Resolve(path)
				if !ok {
					return fmt.Errorf("no context owns %s", path)
				}
				fmt.Fprintln(env.Stdout, c.Name)
				return nil
			})
		},
	})
}

func printContext(env *Env, c contexts.Context) {
	label := env.Styles.MutedStyle()
	fmt.Fprintf(env.Stdout, "%s\n", env.Styles.TitleStyle().Render(c.Name))
	rows := [][2]string{
		{"repository", c.MainRepoRoot},
		{"worktrees", c.WorktreesBase},
		{"active", c.ActiveWorktree},
		{"vault", c.MetadataVault},
		{"base", c.BaseBranch},
		{"patterns", strings.Join(c.MetadataPatterns, " ")},
	}
	for _, r := range rows {
		fmt.Fprintf(env.Stdout, "  %s %s\n", label.Render(fmt.Sprintf("%-10s", r[0])), r[1])
	}
}

// splitPatterns accepts comma and whitespace separated pattern names.
func splitPatterns(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	out := make([]string, 0, len(fields))
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}
