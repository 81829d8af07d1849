// pattern: Imperative Shell

package workflow

import (
	"fmt"
	"os"
	"path/filepath"

	"wtctl/internal/contexts"
	"wtctl/internal/notify"
	"wtctl/internal/task"
)

// AddContext creates the directories of c, links its active pointer to the
// main repository when the pointer does not exist yet, stores c, makes it
// current and exports the repository's metadata into the vault.
func (w *Workflows) AddContext(scope *task.Scope, c contexts.Context) error {
	if err := c.Validate(); err != nil {
		return w.fail("Context Creation Failed", err)
	}

	scope.Fraction(0)
	scope.Text("Creating directories...")
	for _, dir := range []string{c.WorktreesBase, c.MetadataVault, filepath.Dir(c.ActiveWorktree)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return w.fail("Context Creation Failed", fmt.Errorf("creating %s: %w", dir, err))
		}
	}

	if _, err := os.Lstat(c.ActiveWorktree); os.IsNotExist(err) {
		if info, err := os.Stat(c.MainRepoRoot); err == nil && info.IsDir() {
			scope.Text("Creating symlink...")
			if err := os.Symlink(c.MainRepoRoot, c.ActiveWorktree); err != nil {
				return w.fail("Context Creation Failed", fmt.Errorf("linking %s: %w", c.ActiveWorktree, err))
			}
		}
	}

	scope.Fraction(0.30)
	scope.Text("Writing configuration...")
	if err := w.contexts.Add(c); err != nil {
		return w.fail("Context Creation Failed", err)
	}
	if err := w.contexts.Switch(c.Name); err != nil {
		return w.fail("Context Creation Failed", err)
	}

	if len(c.MetadataPatterns) > 0 && w.exporter != nil {
		scope.Fraction(0.50)
		scope.Text("Exporting metadata...")
		if n, err := w.exporter.Export(c.MainRepoRoot, c.MetadataVault, c.MetadataPatterns); err != nil {
			w.logger.Warn("metadata export failed", "context", c.Name, "error", err)
			w.notifier.Notify("Metadata Export Failed", err.Error(), notify.Warning)
		} else {
			w.logger.Info("metadata exported", "context", c.Name, "count", n)
		}
	}

	scope.Fraction(0.90)
	scope.Text("Refreshing worktree list...")
	w.refresh(scope.Context())
	scope.Fraction(1)

	w.logger.Info("context created", "context", c.Name, "repo", c.MainRepoRoot)
	w.notifier.Notify("Context Created", fmt.Sprintf("Context '%s' created", c.Name), notify.Info)
	return nil
}
