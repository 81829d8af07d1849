// pattern: Imperative Shell
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"
)

// BuildApp creates and configures the CLI application with all commands and groups.
func BuildApp(version string, opts Options) *App {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	app := NewApp(version, opts.Stdout, opts.Stderr)

	app.AddCommand(&Command{
		Name:    "version",
		Summary: "Print version and exit",
		Usage:   "Usage: wtctl version",
		Run: func(args []string) error {
			fmt.Fprintln(opts.Stdout, version)
			return nil
		},
	})

	app.AddCommand(&Command{
		Name:    "watch",
		Summary: "Watch the current context and print worktree changes",
		Usage:   "Usage: wtctl watch [--status]",
		Run: func(args []string) error {
			fs := flag.NewFlagSet("watch", flag.ContinueOnError)
			status := fs.Bool("status", false, "report whether a watch is running and exit")
			if _, err := parseFlags(fs, args, 0, 0); err != nil {
				return err
			}
			if *status {
				return withEnv(opts, printWatchStatus)
			}
			return withEnv(opts, runWatch)
		},
	})

	RegisterContextCommands(app.AddGroup("context", "Manage worktree contexts"), opts)
	RegisterWorktreeCommands(app.AddGroup("worktree", "Manage git worktrees"), opts)
	RegisterMetadataCommands(app.AddGroup("metadata", "Export and import IDE metadata"), opts)

	return app
}

// withEnv wires an Env for the duration of fn.
func withEnv(opts Options, fn func(*Env) error) error {
	env, err := NewEnv(opts)
	if err != nil {
		return err
	}
	defer env.Close()
	return fn(env)
}

// parseFlags parses args with fs and returns the positional arguments.
// The number of positionals must lie in [lo, hi].
func parseFlags(fs *flag.FlagSet, args []string, lo, hi int) ([]string, error) {
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return nil, usageErr("%v", err)
	}
	rest := fs.Args()
	if len(rest) < lo || len(rest) > hi {
		if lo == hi {
			return nil, usageErr("expected %d argument(s), got %d", lo, len(rest))
		}
		return nil, usageErr("expected %d to %d argument(s), got %d", lo, hi, len(rest))
	}
	return rest, nil
}

// background is the root context of a one-shot command.
func background() context.Context {
	return context.Background()
}
