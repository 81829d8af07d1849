// pattern: Functional Core

// Package contexts discovers, reads, writes and resolves named worktree
// contexts stored as flat config files under the context-store root.
package contexts

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Context binds a main repository to its worktree pool, active pointer and
// metadata vault.
type Context struct {
	Name             string   `json:"name"`
	MainRepoRoot     string   `json:"main_repo_root"`
	WorktreesBase    string   `json:"worktrees_base"`
	ActiveWorktree   string   `json:"active_worktree"`
	MetadataVault    string   `json:"metadata_vault"`
	BaseBranch       string   `json:"base_branch"`
	MetadataPatterns []string `json:"metadata_patterns"`
}

// Layout locates files under the context-store root.
type Layout struct {
	Root string
}

func (l Layout) ReposDir() string    { return filepath.Join(l.Root, "repos") }
func (l Layout) CurrentFile() string { return filepath.Join(l.Root, "current") }

// ConfPath is <root>/repos/<name>.conf.
func (l Layout) ConfPath(name string) string {
	return filepath.Join(l.ReposDir(), name+confSuffix)
}

// ContextDir is <root>/repos/<name>.
func (l Layout) ContextDir(name string) string {
	return filepath.Join(l.ReposDir(), name)
}

func (l Layout) WorktreesBase(name string) string {
	return filepath.Join(l.ContextDir(name), "worktrees")
}

func (l Layout) VaultDir(name string) string {
	return filepath.Join(l.ContextDir(name), "idea-files")
}

var validNameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateName checks a context name. Names become file names, so only
// letters, digits, hyphens and underscores are allowed.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("context name cannot be empty")
	}
	if !validNameRe.MatchString(name) {
		return fmt.Errorf("invalid context name %q: may contain only a-z A-Z 0-9 _ -", name)
	}
	return nil
}

// Validate checks that ctx can be written.
func (c Context) Validate() error {
	if err := ValidateName(c.Name); err != nil {
		return err
	}
	for _, f := range []struct{ key, val string }{
		{"main repo root", c.MainRepoRoot},
		{"worktrees base", c.WorktreesBase},
		{"active worktree", c.ActiveWorktree},
		{"metadata vault", c.MetadataVault},
		{"base branch", c.BaseBranch},
	} {
		if strings.TrimSpace(f.val) == "" {
			return fmt.Errorf("context %s: %s is required", c.Name, f.key)
		}
	}
	return nil
}

// NameFromRepo derives a context name from a repository directory:
// its base name with a trailing "-master" or "-main" removed.
func NameFromRepo(repo string) string {
	name := filepath.Base(filepath.Clean(repo))
	name = strings.TrimSuffix(name, "-master")
	name = strings.TrimSuffix(name, "-main")
	return name
}

// DeriveContext builds the default context for repo under layout.
// The active pointer defaults to the repository path itself.
func DeriveContext(layout Layout, repo, name, baseBranch string, patterns []string) Context {
	if name == "" {
		name = NameFromRepo(repo)
	}
	if baseBranch == "" {
		baseBranch = "main"
	}
	return Context{
		Name:             name,
		MainRepoRoot:     repo,
		WorktreesBase:    layout.WorktreesBase(name),
		ActiveWorktree:   repo,
		MetadataVault:    layout.VaultDir(name),
		BaseBranch:       baseBranch,
		MetadataPatterns: patterns,
	}
}

// MetadataPattern is a well-known IDE metadata entry name.
type MetadataPattern struct {
	Name        string
	Description string
}

// KnownPatterns are the IDE metadata names offered for detection.
var KnownPatterns = []MetadataPattern{
	{".idea", "IntelliJ IDEA project settings"},
	{".ijwb", "IntelliJ with Bazel plugin settings"},
	{".aswb", "Android Studio with Bazel plugin settings"},
	{".clwb", "CLion with Bazel plugin settings"},
	{".bazelproject", "Bazel project view file"},
	{".xcodeproj", "Xcode project"},
	{".xcworkspace", "Xcode workspace"},
	{".swiftpm", "Swift Package Manager settings"},
	{".vscode", "VS Code settings"},
	{".bsp", "Build Server Protocol settings"},
	{".metals", "Metals (Scala) settings"},
	{".eclipse", "Eclipse project settings"},
	{".classpath", "Eclipse classpath file"},
	{".project", "Eclipse project file"},
	{".settings", "Eclipse workspace settings"},
}

// DetectPatterns returns the known metadata patterns present at the top
// level of repo.
func DetectPatterns(repo string) []MetadataPattern {
	var found []MetadataPattern
	for _, p := range KnownPatterns {
		if _, err := os.Lstat(filepath.Join(repo, p.Name)); err == nil {
			found = append(found, p)
		}
	}
	return found
}

// PatternNames returns just the names of patterns.
func PatternNames(patterns []MetadataPattern) []string {
	names := make([]string, 0, len(patterns))
	for _, p := range patterns {
		names = append(names, p.Name)
	}
	return names
}
