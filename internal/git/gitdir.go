// pattern: Imperative Shell

package git

import (
	"os"
	"path/filepath"
	"strings"
)

const gitdirPrefix = "gitdir: "

// ResolveGitDir returns the private git directory of the worktree at path.
//
// For a main worktree this is <path>/.git. For a linked worktree .git is a
// file holding "gitdir: <target>", where target may be relative to path.
// No subprocess is run.
func ResolveGitDir(worktreePath string) (string, bool) {
	dotGit := filepath.Join(worktreePath, ".git")
	info, err := os.Stat(dotGit)
	if err != nil {
		return "", false
	}
	if info.IsDir() {
		return dotGit, true
	}
	if !info.Mode().IsRegular() {
		return "", false
	}

	data, err := os.ReadFile(dotGit)
	if err != nil {
		return "", false
	}
	content := strings.TrimSpace(string(data))
	if !strings.HasPrefix(content, gitdirPrefix) {
		return "", false
	}
	target := strings.TrimSpace(strings.TrimPrefix(content, gitdirPrefix))
	if target == "" {
		return "", false
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(worktreePath, target)
	}
	return filepath.Clean(target), true
}

// CommonDir returns the shared git directory for gitDir. Linked worktree
// directories carry a "commondir" file pointing back at the main .git;
// anything else is its own common dir.
func CommonDir(gitDir string) string {
	data, err := os.ReadFile(filepath.Join(gitDir, "commondir"))
	if err != nil {
		return gitDir
	}
	target := strings.TrimSpace(string(data))
	if target == "" {
		return gitDir
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(gitDir, target)
	}
	return filepath.Clean(target)
}

// MainRepoRoot returns the main worktree root for any worktree path.
func MainRepoRoot(worktreePath string) (string, bool) {
	gitDir, ok := ResolveGitDir(worktreePath)
	if !ok {
		return "", false
	}
	common := CommonDir(gitDir)
	if filepath.Base(common) != ".git" {
		// Bare repository or unusual layout
		return "", false
	}
	return filepath.Dir(common), true
}

// FindRoot walks upward from start to the nearest directory holding .git.
func FindRoot(start string) (string, bool) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", false
	}
	for {
		if _, err := os.Lstat(filepath.Join(dir, ".git")); err == nil {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}
