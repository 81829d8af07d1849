// pattern: Functional Core
package cli

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
)

// Command represents a single CLI command with its metadata and handler.
type Command struct {
	Name    string
	Summary string
	Usage   string
	Run     func(args []string) error
}

// Group represents a group of related commands.
type Group struct {
	Name     string
	Summary  string
	Commands map[string]*Command
}

// UsageError makes Execute print the command's usage and exit with 2.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string { return e.Msg }

func usageErr(format string, args ...any) error {
	return &UsageError{Msg: fmt.Sprintf(format, args...)}
}

// App represents the top-level CLI application with groups and ungrouped commands.
type App struct {
	groups   map[string]*Group
	commands map[string]*Command
	version  string
	stdout   io.Writer
	stderr   io.Writer
}

// NewApp creates a new CLI application with the given version.
func NewApp(version string, stdout, stderr io.Writer) *App {
	return &App{
		groups:   make(map[string]*Group),
		commands: make(map[string]*Command),
		version:  version,
		stdout:   stdout,
		stderr:   stderr,
	}
}

// AddGroup creates and registers a new command group.
func (a *App) AddGroup(name, summary string) *Group {
	g := &Group{
		Name:     name,
		Summary:  summary,
		Commands: make(map[string]*Command),
	}
	a.groups[name] = g
	return g
}

// AddCommand registers an ungrouped (top-level) command.
func (a *App) AddCommand(cmd *Command) {
	a.commands[cmd.Name] = cmd
}

// AddCommand registers a command in the group.
func (g *Group) AddCommand(cmd *Command) {
	g.Commands[cmd.Name] = cmd
}

// Execute dispatches the CLI arguments to the appropriate command and
// returns the process exit code.
func (a *App) Execute(args []string) int {
	if len(args) == 0 || isHelp(args[0]) {
		a.PrintHelp(a.stderr)
		if len(args) == 0 {
			return 2
		}
		return 0
	}

	cmdName := args[0]

	if cmd, ok := a.commands[cmdName]; ok {
		return a.run(cmd, args[1:])
	}

	if group, ok := a.groups[cmdName]; ok {
		// Group with no subcommand, "help", or --help/-h
		if len(args) < 2 || isHelp(args[1]) {
			group.PrintHelp(a.stderr)
			return 0
		}
		if cmd, ok := group.Commands[args[1]]; ok {
			return a.run(cmd, args[2:])
		}
		fmt.Fprintf(a.stderr, "unknown command %q\n\n", cmdName+" "+args[1])
		group.PrintHelp(a.stderr)
		return 2
	}

	fmt.Fprintf(a.stderr, "unknown command %q\n\n", cmdName)
	a.PrintHelp(a.stderr)
	return 2
}

func (a *App) run(cmd *Command, args []string) int {
	for _, arg := range args {
		if isHelp(arg) {
			fmt.Fprintf(a.stderr, "%s\n", cmd.Usage)
			return 0
		}
	}
	err := cmd.Run(args)
	if err == nil {
		return 0
	}
	var usage *UsageError
	if errors.As(err, &usage) {
		fmt.Fprintf(a.stderr, "error: %v\n%s\n", err, cmd.Usage)
		return 2
	}
	fmt.Fprintf(a.stderr, "error: %v\n", err)
	return 1
}

func isHelp(arg string) bool {
	return arg == "help" || arg == "--help" || arg == "-h"
}

// PrintHelp prints the top-level help text.
func (a *App) PrintHelp(w io.Writer) {
	fmt.Fprintf(w, "Usage: wtctl [options] <command>\n\n")

	if len(a.groups) > 0 {
		fmt.Fprintf(w, "Command Groups:\n")
		for _, name := range slices.Sorted(maps.Keys(a.groups)) {
			group := a.groups[name]
			fmt.Fprintf(w, "  %-10s %s\n", group.Name, group.Summary)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Commands:\n")
	for _, name := range slices.Sorted(maps.Keys(a.commands)) {
		cmd := a.commands[name]
		fmt.Fprintf(w, "  %-10s %s\n", cmd.Name, cmd.Summary)
	}

	fmt.Fprintf(w, "\nUse \"wtctl <group> help\" for group details.\n")
}

// PrintHelp prints help for a specific group.
func (g *Group) PrintHelp(w io.Writer) {
	fmt.Fprintf(w, "Usage: wtctl %s <command>\n\n", g.Name)
	fmt.Fprintf(w, "Commands:\n")
	// Sort command names for deterministic output
	names := slices.Sorted(maps.Keys(g.Commands))
	for _, name := range names {
		cmd := g.Commands[name]
		fmt.Fprintf(w, "  %-14s %s\n", cmd.Name, cmd.Summary)
	}
	fmt.Fprintf(w, "\nUse \"wtctl %s <command> --help\" for command details.\n", g.Name)
}
