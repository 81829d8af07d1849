// pattern: Imperative Shell

package switcher

import (
	"context"
	"os"
	"path/filepath"

	"wtctl/internal/contexts"
	"wtctl/internal/logging"
)

// Exporter links metadata from a worktree into a vault.
type Exporter interface {
	Export(source, vaultDir string, patterns []string) (int, error)
}

// AutoExport returns a FlushUnsaved hook that exports the metadata of the
// worktree the active link currently points at. Export failures are logged
// and never block the switch.
func AutoExport(exp Exporter, logger *logging.ScopedLogger) func(context.Context, contexts.Context) error {
	logger = logging.OrNop(logger)
	return func(_ context.Context, c contexts.Context) error {
		if len(c.MetadataPatterns) == 0 {
			return nil
		}
		source := c.ActiveWorktree
		if info, err := os.Lstat(source); err == nil && info.Mode()&os.ModeSymlink != 0 {
			if resolved, err := filepath.EvalSymlinks(source); err == nil {
				source = resolved
			}
		}
		if info, err := os.Stat(source); err != nil || !info.IsDir() {
			return nil
		}

		n, err := exp.Export(source, c.MetadataVault, c.MetadataPatterns)
		if err != nil {
			logger.Warn("auto-export failed", "source", source, "error", err)
			return nil
		}
		logger.Info("auto-exported metadata", "source", source, "count", n)
		return nil
	}
}
