// pattern: Imperative Shell

// Package vault exports IDE metadata directories from a worktree into a
// shared per-context vault and imports them back into other worktrees.
package vault

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/natefinch/atomic"

	"wtctl/internal/logging"
	"wtctl/internal/task"
)

// MaxDepth bounds how deep Export searches for metadata directories.
const MaxDepth = 5

// ErrNoVault is returned by Import when the vault directory is missing.
var ErrNoVault = errors.New("vault directory does not exist")

// Vault moves metadata between worktrees and a vault directory.
type Vault struct {
	logger *logging.ScopedLogger
}

// New creates a Vault. A nil logger discards output.
func New(logger *logging.ScopedLogger) *Vault {
	return &Vault{logger: logging.OrNop(logger)}
}

// Export links every metadata directory under source matching patterns into
// vaultDir at the same relative location. An entry that cannot be linked is
// skipped; the failures are joined into the returned error. It returns the
// number of links created.
func (v *Vault) Export(source, vaultDir string, patterns []string) (int, error) {
	if err := os.MkdirAll(vaultDir, 0755); err != nil {
		return 0, fmt.Errorf("creating vault: %w", err)
	}

	found, err := findMetadataDirs(source, patterns, MaxDepth)
	if err != nil {
		return 0, fmt.Errorf("scanning %s: %w", source, err)
	}

	count := 0
	var errs []error
	for _, rel := range Dedupe(found) {
		metaPath := filepath.Join(source, rel)
		if err := linkEntry(metaPath, filepath.Join(vaultDir, rel)); err != nil {
			v.logger.Warn("skipping metadata export", "entry", rel, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", rel, err))
			continue
		}
		count++
		v.logger.Info("exported metadata", "entry", rel, "target", metaPath)
	}
	return count, errors.Join(errs...)
}

// linkEntry points link at target, replacing an existing symlink.
func linkEntry(target, link string) error {
	if err := os.MkdirAll(filepath.Dir(link), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(link), err)
	}
	if info, err := os.Lstat(link); err == nil && info.Mode()&os.ModeSymlink != 0 {
		if err := os.Remove(link); err != nil {
			return fmt.Errorf("replacing %s: %w", link, err)
		}
	}
	if err := os.Symlink(target, link); err != nil {
		return fmt.Errorf("linking: %w", err)
	}
	return nil
}

// findMetadataDirs returns source-relative paths of directories whose name is
// in patterns. Directories at depth maxDepth or deeper are not considered, and
// a match is not descended into.
func findMetadataDirs(source string, patterns []string, maxDepth int) ([]string, error) {
	var found []string
	err := filepath.WalkDir(source, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == source {
				return err
			}
			return nil
		}
		if !d.IsDir() || path == source {
			return nil
		}
		rel, relErr := filepath.Rel(source, path)
		if relErr != nil {
			return nil
		}
		if segments(rel) >= maxDepth {
			return filepath.SkipDir
		}
		if slices.Contains(patterns, d.Name()) {
			found = append(found, rel)
			return filepath.SkipDir
		}
		if d.Name() == ".git" {
			return filepath.SkipDir
		}
		return nil
	})
	return found, err
}

// Dedupe drops paths nested under another path in the list. Shallower paths
// win; the result is ordered by depth.
func Dedupe(paths []string) []string {
	sorted := slices.Clone(paths)
	slices.SortStableFunc(sorted, func(a, b string) int {
		return segments(a) - segments(b)
	})

	var kept []string
	for _, p := range sorted {
		nested := slices.ContainsFunc(kept, func(k string) bool {
			return isUnder(p, k)
		})
		if !nested {
			kept = append(kept, p)
		}
	}
	return kept
}

func segments(p string) int {
	p = filepath.Clean(p)
	if p == "." || p == "" {
		return 0
	}
	return len(strings.Split(strings.Trim(p, string(filepath.Separator)), string(filepath.Separator)))
}

// isUnder reports whether p equals base or lies beneath it, comparing whole
// path segments.
func isUnder(p, base string) bool {
	p, base = filepath.Clean(p), filepath.Clean(base)
	return p == base || strings.HasPrefix(p, base+string(filepath.Separator))
}

// Import copies every top-level vault entry into target. Symlinked entries
// are followed; broken ones are deleted. Files that vanish during the copy
// are skipped. It returns the number of entries imported.
func (v *Vault) Import(scope *task.Scope, vaultDir, target string) (int, error) {
	info, err := os.Stat(vaultDir)
	if err != nil || !info.IsDir() {
		return 0, fmt.Errorf("%w: %s", ErrNoVault, vaultDir)
	}

	entries, err := os.ReadDir(vaultDir)
	if err != nil {
		return 0, fmt.Errorf("reading vault: %w", err)
	}

	total := len(entries)
	count := 0
	var errs []error
	for i, entry := range entries {
		if err := scope.Checkpoint(); err != nil {
			return count, err
		}
		scope.Fraction(float64(i) / float64(max(total, 1)))
		scope.Detail(fmt.Sprintf("%d / %d directories", i+1, total))

		entryPath := filepath.Join(vaultDir, entry.Name())
		src := entryPath
		if entry.Type()&os.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(entryPath)
			if err != nil {
				v.logger.Warn("removing broken vault link", "path", entryPath, "error", err)
				_ = os.Remove(entryPath)
				continue
			}
			src = resolved
		}

		if info, err := os.Stat(src); err != nil || !info.IsDir() {
			continue
		}

		if err := v.copyTree(src, filepath.Join(target, entry.Name())); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", entry.Name(), err))
			continue
		}
		count++
		v.logger.Info("imported metadata", "entry", entry.Name(), "target", target)
	}

	scope.Detail("")
	scope.Fraction(1)
	return count, errors.Join(errs...)
}

// copyTree copies src into dst, following symlinks. Entries that cannot be
// read are logged and skipped; only failing to create a directory is an
// error.
func (v *Vault) copyTree(src, dst string) error {
	return v.copyDir(src, dst, map[string]bool{})
}

func (v *Vault) copyDir(src, dst string, seen map[string]bool) error {
	resolved, err := filepath.EvalSymlinks(src)
	if err == nil {
		if seen[resolved] {
			return nil
		}
		seen[resolved] = true
	}

	if err := os.MkdirAll(dst, 0755); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		v.logger.Warn("skipping unreadable directory", "path", src, "error", err)
		return nil
	}

	for _, e := range entries {
		from := filepath.Join(src, e.Name())
		to := filepath.Join(dst, e.Name())

		info, err := os.Stat(from)
		if err != nil {
			v.logger.Warn("skipping vanished file", "path", from, "error", err)
			continue
		}
		if info.IsDir() {
			if err := v.copyDir(from, to, seen); err != nil {
				return err
			}
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}
		if err := copyFile(from, to, info.Mode().Perm()); err != nil {
			v.logger.Warn("skipping file", "path", from, "error", err)
		}
	}
	return nil
}

func copyFile(from, to string, perm os.FileMode) error {
	in, err := os.Open(from)
	if err != nil {
		return err
	}
	defer in.Close()

	if info, err := os.Lstat(to); err == nil && info.IsDir() {
		return fmt.Errorf("%s is a directory", to)
	}
	if err := atomic.WriteFile(to, in); err != nil {
		return err
	}
	return os.Chmod(to, perm)
}
