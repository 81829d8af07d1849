// pattern: Imperative Shell
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"wtctl/internal/agent"
	"wtctl/internal/config"
	"wtctl/internal/contexts"
	"wtctl/internal/enrich"
	"wtctl/internal/git"
	"wtctl/internal/inventory"
	"wtctl/internal/logging"
	"wtctl/internal/notify"
	"wtctl/internal/provision"
	"wtctl/internal/switcher"
	"wtctl/internal/task"
	"wtctl/internal/vault"
	"wtctl/internal/workflow"
)

// LogFileName is the log file under the context-store root.
const LogFileName = "wtctl.log"

// Options are the global flags.
type Options struct {
	ConfigDir string
	Verbose   bool
	NoColor   bool
	// WorkDir selects the context owning this directory over the current
	// pointer. Empty disables auto-detection.
	WorkDir string
	// NoStatus skips the background git status fetch.
	NoStatus bool
	Stdout   io.Writer
	Stderr   io.Writer
}

// Env is the wired object graph every command runs against.
type Env struct {
	Config      config.Config
	Logs        *logging.Manager
	Contexts    *contexts.Registry
	Git         *git.Gateway
	Markers     *provision.MarkerStore
	Vault       *vault.Vault
	Provisioner *provision.Provisioner
	Inventory   *inventory.Inventory
	Switcher    *switcher.Switcher
	Workflows   *workflow.Workflows
	Notifier    notify.Notifier
	Styles      *Styles
	Stdout      io.Writer
	Stderr      io.Writer
}

// NewEnv loads configuration, opens the log file and wires the engine.
func NewEnv(opts Options) (*Env, error) {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	cfg, err := config.LoadDir(opts.ConfigDir)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "Warning: failed to load config: %v\n", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	root := cfg.RootDir()

	consoleLevel := "warn"
	if opts.Verbose {
		consoleLevel = "debug"
	}
	logs, err := logging.NewManager(logging.Config{
		FilePath:     filepath.Join(root, LogFileName),
		MaxSizeMB:    10,
		MaxBackups:   3,
		MaxAgeDays:   7,
		Level:        cfg.LogLevel,
		Console:      opts.Stderr,
		ConsoleLevel: consoleLevel,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	styles := NewStyles(cfg.Flavor(), opts.NoColor)
	notifier := notify.Multi{
		notify.Log{Logger: logs.For("notify")},
		NewNotifier(opts.Stderr, styles),
	}

	registry := contexts.NewRegistry(contexts.Layout{Root: root}, logs.For("contexts"))
	registry.SetWorkDir(opts.WorkDir)
	if err := registry.Reload(); err != nil {
		logs.For("contexts").Warn("initial reload failed", "error", err)
	}

	gateway := git.NewGateway(git.Options{
		Binary:          cfg.Git.Binary,
		Timeout:         cfg.GitTimeout(),
		ProgressTimeout: cfg.GitProgressTimeout(),
	}, logs.For("git"))

	markers := provision.NewMarkerStore(logs.For("provision"))
	metaVault := vault.New(logs.For("vault"))
	provisioner := provision.NewProvisioner(markers, metaVault, notifier, logs.For("provision"))

	steps := []enrich.Enricher{
		enrich.ProvisionStatus{Markers: markers, Current: currentNameFunc(registry)},
	}
	if cfg.Agents.Enabled {
		detector := agent.NewDetector(cfg.SessionThreshold(), logs.For("agent"))
		steps = append(steps, enrich.AgentStatus{Detection: detector})
	}
	pipeline := enrich.NewPipeline(logs.For("enrich"), steps...)

	inv := inventory.New(gateway, registry, pipeline, inventory.Options{
		FetchStatus: cfg.Status.Enabled && !opts.NoStatus,
		Concurrency: cfg.Status.Concurrency,
	}, logs.For("inventory"))

	hooks := switcher.Hooks{
		RefreshVCS: gateway.RefreshIndex,
	}
	if cfg.Metadata.AutoExportOnSwitch {
		hooks.FlushUnsaved = switcher.AutoExport(metaVault, logs.For("switcher"))
	}
	sw := switcher.New(registry, inv, hooks, notifier, logs.For("switcher"))

	wf := workflow.New(workflow.Deps{
		Git:         gateway,
		Contexts:    registry,
		Provisioner: provisioner,
		Markers:     markers,
		Switcher:    sw,
		Inventory:   inv,
		Exporter:    metaVault,
		Notifier:    notifier,
		Logger:      logs.For("workflow"),
	})

	logs.For("app").Debug("environment ready", "root", root, "config_dir", opts.ConfigDir)

	return &Env{
		Config:      cfg,
		Logs:        logs,
		Contexts:    registry,
		Git:         gateway,
		Markers:     markers,
		Vault:       metaVault,
		Provisioner: provisioner,
		Inventory:   inv,
		Switcher:    sw,
		Workflows:   wf,
		Notifier:    notifier,
		Styles:      styles,
		Stdout:      opts.Stdout,
		Stderr:      opts.Stderr,
	}, nil
}

func currentNameFunc(r *contexts.Registry) func() string {
	return func() string {
		c, err := r.Current()
		if err != nil {
			return ""
		}
		return c.Name
	}
}

// Scope returns a task scope that prints progress lines to stderr.
func (e *Env) Scope(ctx context.Context) *task.Scope {
	return task.NewScope(ctx, task.NewLineReporter(e.Stderr))
}

// Root is the context-store root.
func (e *Env) Root() string {
	return e.Contexts.Layout().Root
}

// Close waits for background status fetches and flushes the log.
func (e *Env) Close() {
	e.Inventory.Close()
	_ = e.Logs.Close()
}
