// pattern: Imperative Shell
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"wtctl/internal/cli"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

// run parses the global flags and dispatches the rest to the CLI app.
func run(args []string) int {
	fs := flag.NewFlagSet("wtctl", flag.ContinueOnError)
	// Stop parsing flags after the first non-flag arg (the command),
	// so that --help after a command is handled by the command.
	fs.SetInterspersed(false)

	configDir := fs.StringP("config-dir", "c", "", "config directory (default: ~/.config/wtctl)")
	verbose := fs.BoolP("verbose", "v", false, "log debug output to stderr")
	noColor := fs.Bool("no-color", false, "disable coloured output")

	opts := cli.Options{Stdout: os.Stdout, Stderr: os.Stderr}
	fs.Usage = func() {
		cli.BuildApp(version, opts).PrintHelp(os.Stderr)
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	opts.ConfigDir = *configDir
	opts.Verbose = *verbose
	opts.NoColor = *noColor || os.Getenv("NO_COLOR") != ""
	if wd, err := os.Getwd(); err == nil {
		opts.WorkDir = wd
	}

	return cli.BuildApp(version, opts).Execute(fs.Args())
}
