// pattern: Imperative Shell
package cli

import (
	"fmt"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"wtctl/internal/config"
	"wtctl/internal/contexts"
	"wtctl/internal/inventory"
)

// RegisterMetadataCommands registers the metadata command group commands.
func RegisterMetadataCommands(group *Group, opts Options) {
	group.AddCommand(&Command{
		Name:    "export",
		Summary: "Link a worktree's IDE metadata into the context vault",
		Usage:   "Usage: wtctl metadata export [source]",
		Run: func(args []string) error {
			fs := flag.NewFlagSet("metadata export", flag.ContinueOnError)
			rest, err := parseFlags(fs, args, 0, 1)
			if err != nil {
				return err
			}
			return withEnv(opts, func(env *Env) error {
				cur, err := env.Contexts.Current()
				if err != nil {
					return err
				}
				source := activeSource(cur)
				if len(rest) == 1 {
					if source, err = absPath(rest[0]); err != nil {
						return err
					}
				}
				n, err := env.Vault.Export(source, cur.MetadataVault, cur.MetadataPatterns)
				if err != nil && n == 0 {
					return err
				}
				fmt.Fprintf(env.Stdout, "Exported %d metadata director%s from %s\n", n, plural(n, "y", "ies"), source)
				if err != nil {
					fmt.Fprintf(env.Stderr, "Warning: some entries were skipped: %v\n", err)
				}
				return nil
			})
		},
	})

	group.AddCommand(&Command{
		Name:    "import",
		Summary: "Copy the context vault into a worktree",
		Usage:   "Usage: wtctl metadata import <target>",
		Run: func(args []string) error {
			fs := flag.NewFlagSet("metadata import", flag.ContinueOnError)
			rest, err := parseFlags(fs, args, 1, 1)
			if err != nil {
				return err
			}
			target, err := absPath(rest[0])
			if err != nil {
				return err
			}
			return withEnv(opts, func(env *Env) error {
				cur, err := env.Contexts.Current()
				if err != nil {
					return err
				}
				n, err := env.Vault.Import(env.Scope(background()), cur.MetadataVault, target)
				if err != nil {
					return err
				}
				fmt.Fprintf(env.Stdout, "Imported %d metadata director%s into %s\n", n, plural(n, "y", "ies"), target)
				return nil
			})
		},
	})

	group.AddCommand(&Command{
		Name:    "detect",
		Summary: "List known IDE metadata present in a repository",
		Usage:   "Usage: wtctl metadata detect [repo]",
		Run: func(args []string) error {
			fs := flag.NewFlagSet("metadata detect", flag.ContinueOnError)
			rest, err := parseFlags(fs, args, 0, 1)
			if err != nil {
				return err
			}
			repo := opts.WorkDir
			if len(rest) == 1 {
				if repo, err = absPath(rest[0]); err != nil {
					return err
				}
			}
			if repo == "" {
				return usageErr("no repository given")
			}
			found := contexts.DetectPatterns(repo)
			if len(found) == 0 {
				fmt.Fprintf(opts.Stdout, "No known metadata found in %s\n", repo)
				return nil
			}
			for _, p := range found {
				fmt.Fprintf(opts.Stdout, "%-14s %s\n", p.Name, p.Description)
			}
			return nil
		},
	})
}

// activeSource is the worktree the active link resolves to, or the active
// path itself when it is not a link.
func activeSource(c contexts.Context) string {
	if linked := inventory.LinkedPath(c.ActiveWorktree); linked != "" {
		return linked
	}
	return c.ActiveWorktree
}

func absPath(p string) (string, error) {
	return filepath.Abs(config.ExpandHome(p))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
