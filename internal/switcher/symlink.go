// pattern: Imperative Shell

package switcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// ErrNotSymlink is returned when the active link exists but is not a symlink.
var ErrNotSymlink = errors.New("active link exists and is not a symlink")

// AtomicSetSymlink points link at target. The new link is created under a
// temporary sibling name and renamed over link, so a concurrent reader sees
// either the old target or the new one.
func AtomicSetSymlink(link, target string) error {
	parent := filepath.Dir(link)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", parent, err)
	}
	if info, err := os.Lstat(link); err == nil && info.Mode()&os.ModeSymlink == 0 {
		return fmt.Errorf("%w: %s", ErrNotSymlink, link)
	}

	tmp := filepath.Join(parent, fmt.Sprintf(".%s.%s.tmp", filepath.Base(link), uuid.NewString()))
	if err := os.Symlink(target, tmp); err != nil {
		return fmt.Errorf("creating temporary link: %w", err)
	}
	if err := os.Rename(tmp, link); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing %s: %w", link, err)
	}
	return nil
}

// ReadLink returns the target of link, or "" when link is not a symlink.
func ReadLink(link string) string {
	info, err := os.Lstat(link)
	if err != nil || info.Mode()&os.ModeSymlink == 0 {
		return ""
	}
	target, err := os.Readlink(link)
	if err != nil {
		return ""
	}
	return target
}
