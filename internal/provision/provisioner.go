// pattern: Imperative Shell

package provision

import (
	"strings"

	"wtctl/internal/contexts"
	"wtctl/internal/logging"
	"wtctl/internal/notify"
	"wtctl/internal/task"
)

// Importer copies vault metadata into a worktree.
type Importer interface {
	Import(scope *task.Scope, vaultDir, target string) (int, error)
}

// Provisioner runs the provision sequence for one worktree: marker, vault
// import, Bazel symlinks.
type Provisioner struct {
	markers  *MarkerStore
	importer Importer
	notifier notify.Notifier
	logger   *logging.ScopedLogger
}

// NewProvisioner wires a provisioner. A nil notifier logs instead.
func NewProvisioner(markers *MarkerStore, importer Importer, notifier notify.Notifier, logger *logging.ScopedLogger) *Provisioner {
	logger = logging.OrNop(logger)
	return &Provisioner{
		markers:  markers,
		importer: importer,
		notifier: notify.OrLog(notifier, logger),
		logger:   logger,
	}
}

// Markers returns the marker store the provisioner writes through.
func (p *Provisioner) Markers() *MarkerStore {
	return p.markers
}

// Provision marks worktreePath as provisioned by ctx and, unless
// keepExisting is set, imports vault metadata and installs Bazel symlinks.
//
// Step failures are collected into a single warning. The returned error is
// non-nil only when the scope is cancelled.
func (p *Provisioner) Provision(scope *task.Scope, worktreePath string, ctx contexts.Context, keepExisting bool) error {
	var issues []string

	if err := scope.Checkpoint(); err != nil {
		return err
	}
	scope.Text("Writing provision marker...")
	scope.Fraction(0)
	if err := p.markers.Write(worktreePath, ctx.Name); err != nil {
		p.logger.Warn("writing provision marker failed", "path", worktreePath, "error", err)
		issues = append(issues, "Failed to write provision marker: "+err.Error())
	}

	if !keepExisting {
		if err := scope.Checkpoint(); err != nil {
			return err
		}
		scope.Fraction(0.05)
		scope.Text("Importing metadata...")
		if _, err := p.importer.Import(scope.Sub(0.05, 0.80), ctx.MetadataVault, worktreePath); err != nil {
			if cerr := scope.Checkpoint(); cerr != nil {
				return cerr
			}
			p.logger.Warn("metadata import failed", "path", worktreePath, "error", err)
			issues = append(issues, "Metadata import: "+err.Error())
		}

		if err := scope.Checkpoint(); err != nil {
			return err
		}
		scope.Fraction(0.85)
		scope.Text("Installing Bazel symlinks...")
		if _, err := InstallBazelSymlinks(ctx.MainRepoRoot, worktreePath, p.logger); err != nil {
			p.logger.Warn("bazel symlink install failed", "path", worktreePath, "error", err)
			issues = append(issues, "Bazel symlinks: "+err.Error())
		}
	}

	scope.Fraction(1)

	if len(issues) > 0 {
		p.notifier.Notify("Provisioning Warnings", IssuesMessage(issues), notify.Warning)
	}
	p.logger.Info("worktree provisioned", "path", worktreePath, "context", ctx.Name, "keep_existing", keepExisting, "issues", len(issues))
	return nil
}

// IssuesMessage formats collected step failures as a bulleted list.
func IssuesMessage(issues []string) string {
	return "Provisioned with issues:\n• " + strings.Join(issues, "\n• ")
}
