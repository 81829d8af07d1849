package contexts

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"wtctl/internal/logging"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func confBody(repo string) string {
	return `WT_MAIN_REPO_ROOT="` + repo + `"
WT_WORKTREES_BASE="/wt/worktrees"
WT_ACTIVE_WORKTREE="/wt/active"
WT_IDEA_FILES_BASE="/wt/idea-files"
`
}

func TestReadConfigFile(t *testing.T) {
	dir := t.TempDir()
	home, _ := os.UserHomeDir()

	path := filepath.Join(dir, "java.conf")
	writeFile(t, path, `# comment
WT_MAIN_REPO_ROOT="~/src/java"
WT_WORKTREES_BASE='/wt/java/worktrees'
WT_ACTIVE_WORKTREE=/wt/java/active
WT_IDEA_FILES_BASE="/wt/java/idea-files"
WT_BASE_BRANCH="develop"
WT_METADATA_PATTERNS=".idea  .ijwb .vscode"
UNRELATED=1
`)

	ctx, err := ReadConfigFile(path)
	if err != nil {
		t.Fatalf("ReadConfigFile() error = %v", err)
	}

	if ctx.Name != "java" {
		t.Errorf("Name = %q, want java", ctx.Name)
	}
	if ctx.MainRepoRoot != filepath.Join(home, "src/java") {
		t.Errorf("MainRepoRoot = %q, want tilde expanded", ctx.MainRepoRoot)
	}
	if ctx.WorktreesBase != "/wt/java/worktrees" {
		t.Errorf("WorktreesBase = %q", ctx.WorktreesBase)
	}
	if ctx.ActiveWorktree != "/wt/java/active" {
		t.Errorf("ActiveWorktree = %q", ctx.ActiveWorktree)
	}
	if ctx.BaseBranch != "develop" {
		t.Errorf("BaseBranch = %q", ctx.BaseBranch)
	}
	if strings.Join(ctx.MetadataPatterns, ",") != ".idea,.ijwb,.vscode" {
		t.Errorf("MetadataPatterns = %v", ctx.MetadataPatterns)
	}
}

func TestReadConfigFile_MissingKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.conf")
	writeFile(t, path, `WT_MAIN_REPO_ROOT="/r"`+"\n")

	_, err := ReadConfigFile(path)
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("ReadConfigFile() error = %v, want *ConfigError", err)
	}
	if !errors.Is(err, errMissingKey) {
		t.Errorf("error should wrap errMissingKey, got %v", err)
	}
}

func TestReadConfigFile_DefaultBaseBranch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.conf")
	writeFile(t, path, confBody("/r"))

	ctx, err := ReadConfigFile(path)
	if err != nil {
		t.Fatalf("ReadConfigFile() error = %v", err)
	}
	if ctx.BaseBranch != "main" {
		t.Errorf("BaseBranch = %q, want main", ctx.BaseBranch)
	}
	if len(ctx.MetadataPatterns) != 0 {
		t.Errorf("MetadataPatterns = %v, want empty", ctx.MetadataPatterns)
	}
}

func TestWriteConfigFile_ReadBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repos", "go.conf")
	in := Context{
		Name:             "go",
		MainRepoRoot:     "/src/go",
		WorktreesBase:    "/wt/go/worktrees",
		ActiveWorktree:   "/wt/go/active",
		MetadataVault:    "/wt/go/idea-files",
		BaseBranch:       "master",
		MetadataPatterns: []string{".idea", ".vscode"},
	}

	if err := WriteConfigFile(path, in); err != nil {
		t.Fatalf("WriteConfigFile() error = %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), `WT_METADATA_PATTERNS=".idea .vscode"`) {
		t.Errorf("file content = %s", data)
	}

	out, err := ReadConfigFile(path)
	if err != nil {
		t.Fatalf("ReadConfigFile() error = %v", err)
	}
	if out.MainRepoRoot != in.MainRepoRoot || out.BaseBranch != in.BaseBranch || len(out.MetadataPatterns) != 2 {
		t.Errorf("read back %+v, want %+v", out, in)
	}
}

func TestRegistry_ReloadSkipsBadFiles(t *testing.T) {
	root := t.TempDir()
	layout := Layout{Root: root}
	writeFile(t, layout.ConfPath("good"), confBody("/r/good"))
	writeFile(t, layout.ConfPath("bad"), "garbage\n")
	writeFile(t, filepath.Join(layout.ReposDir(), "notes.txt"), "ignored")
	writeFile(t, layout.CurrentFile(), "good\n")

	tlm := logging.NewTestLogManager()
	reg := NewRegistry(layout, tlm.For("contexts"))
	if err := reg.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	list := reg.List()
	if len(list) != 1 || list[0].Name != "good" {
		t.Fatalf("List() = %+v, want only good", list)
	}
	if reg.CurrentName() != "good" {
		t.Errorf("CurrentName() = %q", reg.CurrentName())
	}
	if !tlm.Has("WARN", "skipping context config") {
		t.Error("bad file should be logged")
	}

	cur, err := reg.Current()
	if err != nil || cur.Name != "good" {
		t.Errorf("Current() = %+v, %v", cur, err)
	}
}

func TestRegistry_EmptyStore(t *testing.T) {
	reg := NewRegistry(Layout{Root: filepath.Join(t.TempDir(), "missing")}, nil)
	if err := reg.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if len(reg.List()) != 0 {
		t.Error("List() should be empty")
	}
	if _, err := reg.Current(); !errors.Is(err, ErrNoContext) {
		t.Errorf("Current() error = %v, want ErrNoContext", err)
	}
}

func TestRegistry_AddAndSwitch(t *testing.T) {
	layout := Layout{Root: t.TempDir()}
	reg := NewRegistry(layout, nil)

	ctx := DeriveContext(layout, "/src/java-master", "", "", []string{".idea"})
	if ctx.Name != "java" {
		t.Fatalf("DeriveContext name = %q, want java", ctx.Name)
	}
	if err := reg.Add(ctx); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := reg.Add(ctx); !errors.Is(err, ErrExists) {
		t.Errorf("second Add() error = %v, want ErrExists", err)
	}
	if len(reg.List()) != 1 {
		t.Fatalf("List() after Add = %d entries", len(reg.List()))
	}

	if err := reg.Switch("java"); err != nil {
		t.Fatalf("Switch() error = %v", err)
	}
	data, _ := os.ReadFile(layout.CurrentFile())
	if string(data) != "java\n" {
		t.Errorf("current file = %q, want %q", data, "java\n")
	}

	if err := reg.Switch("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Switch(nope) error = %v, want ErrNotFound", err)
	}
	if reg.CurrentName() != "java" {
		t.Error("failed switch must not change the current context")
	}
}

func TestRegistry_AddRejectsInvalid(t *testing.T) {
	reg := NewRegistry(Layout{Root: t.TempDir()}, nil)
	tests := []Context{
		{Name: "bad name", MainRepoRoot: "/r", WorktreesBase: "/w", ActiveWorktree: "/a", MetadataVault: "/v", BaseBranch: "main"},
		{Name: "ok", MainRepoRoot: "", WorktreesBase: "/w", ActiveWorktree: "/a", MetadataVault: "/v", BaseBranch: "main"},
		{Name: "../escape", MainRepoRoot: "/r", WorktreesBase: "/w", ActiveWorktree: "/a", MetadataVault: "/v", BaseBranch: "main"},
	}
	for _, ctx := range tests {
		if err := reg.Add(ctx); err == nil {
			t.Errorf("Add(%+v) should fail", ctx)
		}
	}
}

func TestRegistry_Resolve(t *testing.T) {
	root := t.TempDir()

	mainRepo := filepath.Join(root, "src", "java")
	wtGitDir := filepath.Join(mainRepo, ".git", "worktrees", "feature")
	writeFile(t, filepath.Join(wtGitDir, "commondir"), "../..\n")
	writeFile(t, filepath.Join(mainRepo, "pkg", "a.go"), "package a\n")

	linked := filepath.Join(root, "worktrees", "feature")
	writeFile(t, filepath.Join(linked, ".git"), "gitdir: "+wtGitDir+"\n")
	writeFile(t, filepath.Join(linked, "pkg", "a.go"), "package a\n")

	// The active pointer is a symlink onto the linked worktree.
	active := filepath.Join(root, "active")
	if err := os.Symlink(linked, active); err != nil {
		t.Fatal(err)
	}

	other := filepath.Join(root, "src", "other")
	writeFile(t, filepath.Join(other, ".git", "HEAD"), "ref: refs/heads/main\n")

	layout := Layout{Root: filepath.Join(root, "store")}
	writeFile(t, layout.ConfPath("java"), confBody(mainRepo))

	reg := NewRegistry(layout, nil)
	if err := reg.Reload(); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		path   string
		wantOK bool
	}{
		{"main repo subdir", filepath.Join(mainRepo, "pkg"), true},
		{"linked worktree", filepath.Join(linked, "pkg"), true},
		{"through active symlink", filepath.Join(active, "pkg"), true},
		{"unrelated repo", other, false},
		{"outside any repo", root, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, ok := reg.Resolve(tt.path)
			if ok != tt.wantOK {
				t.Fatalf("Resolve(%s) ok = %v, want %v", tt.path, ok, tt.wantOK)
			}
			if ok && ctx.Name != "java" {
				t.Errorf("Resolve() = %q, want java", ctx.Name)
			}
		})
	}

	reg.SetWorkDir(filepath.Join(linked, "pkg"))
	cur, err := reg.Current()
	if err != nil || cur.Name != "java" {
		t.Errorf("Current() with work dir = %+v, %v", cur, err)
	}
}

func TestNameFromRepo(t *testing.T) {
	tests := map[string]string{
		"/src/java-master": "java",
		"/src/java-main":   "java",
		"/src/java":        "java",
		"/src/main":        "main",
		"/src/repo/":       "repo",
	}
	for in, want := range tests {
		if got := NameFromRepo(in); got != want {
			t.Errorf("NameFromRepo(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDetectPatterns(t *testing.T) {
	repo := t.TempDir()
	writeFile(t, filepath.Join(repo, ".idea", "workspace.xml"), "<x/>")
	writeFile(t, filepath.Join(repo, ".bazelproject"), "")
	writeFile(t, filepath.Join(repo, "nested", ".vscode", "settings.json"), "{}")

	got := PatternNames(DetectPatterns(repo))
	if strings.Join(got, ",") != ".idea,.bazelproject" {
		t.Errorf("DetectPatterns() = %v", got)
	}
}

func TestLayout(t *testing.T) {
	l := Layout{Root: "/home/me/.wt"}
	if l.ConfPath("java") != "/home/me/.wt/repos/java.conf" {
		t.Errorf("ConfPath = %q", l.ConfPath("java"))
	}
	if l.WorktreesBase("java") != "/home/me/.wt/repos/java/worktrees" {
		t.Errorf("WorktreesBase = %q", l.WorktreesBase("java"))
	}
	if l.VaultDir("java") != "/home/me/.wt/repos/java/idea-files" {
		t.Errorf("VaultDir = %q", l.VaultDir("java"))
	}
	if l.CurrentFile() != "/home/me/.wt/current" {
		t.Errorf("CurrentFile = %q", l.CurrentFile())
	}
}

func TestRegistry_SwitchWinsOverWorkDir(t *testing.T) {
	root := t.TempDir()
	repoA := filepath.Join(root, "src", "a")
	repoB := filepath.Join(root, "src", "b")
	for _, repo := range []string{repoA, repoB} {
		writeFile(t, filepath.Join(repo, ".git", "HEAD"), "ref: refs/heads/main\n")
	}

	layout := Layout{Root: filepath.Join(root, "store")}
	writeFile(t, layout.ConfPath("a"), confBody(repoA))
	writeFile(t, layout.ConfPath("b"), confBody(repoB))

	reg := NewRegistry(layout, nil)
	reg.SetWorkDir(repoA)
	if err := reg.Reload(); err != nil {
		t.Fatal(err)
	}

	cur, err := reg.Current()
	if err != nil || cur.Name != "a" {
		t.Fatalf("Current() without pointer = %+v, %v, want a from work dir", cur, err)
	}

	if err := reg.Switch("b"); err != nil {
		t.Fatal(err)
	}
	cur, err = reg.Current()
	if err != nil || cur.Name != "b" {
		t.Errorf("Current() after Switch(b) = %+v, %v, want b", cur, err)
	}
	if reg.CurrentName() != cur.Name {
		t.Errorf("CurrentName() = %q, Current().Name = %q", reg.CurrentName(), cur.Name)
	}

	// A pointer at a deleted context falls back to the work dir.
	if err := os.Remove(layout.ConfPath("b")); err != nil {
		t.Fatal(err)
	}
	if err := reg.Reload(); err != nil {
		t.Fatal(err)
	}
	cur, err = reg.Current()
	if err != nil || cur.Name != "a" {
		t.Errorf("Current() with stale pointer = %+v, %v, want a", cur, err)
	}
}
