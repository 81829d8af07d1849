// pattern: Imperative Shell

package provision

import (
	"fmt"
	"os"
	"path/filepath"

	"wtctl/internal/logging"
)

// BazelSymlinks are the convenience links Bazel leaves in a workspace root.
var BazelSymlinks = []string{"bazel-out", "bazel-bin", "bazel-testlogs", "bazel-genfiles"}

// InstallBazelSymlinks copies each Bazel convenience symlink present in
// mainRepo into worktreePath, replacing whatever is there. Entries that are
// not symlinks in mainRepo are ignored. It returns the number installed.
func InstallBazelSymlinks(mainRepo, worktreePath string, logger *logging.ScopedLogger) (int, error) {
	logger = logging.OrNop(logger)
	count := 0
	for _, name := range BazelSymlinks {
		mainLink := filepath.Join(mainRepo, name)
		info, err := os.Lstat(mainLink)
		if err != nil || info.Mode()&os.ModeSymlink == 0 {
			continue
		}
		target, err := os.Readlink(mainLink)
		if err != nil {
			return count, fmt.Errorf("reading %s: %w", mainLink, err)
		}

		link := filepath.Join(worktreePath, name)
		if _, err := os.Lstat(link); err == nil {
			if err := os.RemoveAll(link); err != nil {
				return count, fmt.Errorf("removing %s: %w", link, err)
			}
		}
		if err := os.Symlink(target, link); err != nil {
			return count, fmt.Errorf("linking %s: %w", name, err)
		}
		count++
		logger.Info("installed bazel symlink", "name", name, "target", target)
	}
	return count, nil
}
