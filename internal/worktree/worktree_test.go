package worktree

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidateBranchName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"feature-x", false},
		{"feature/new-model", false},
		{"fix_bug_123", false},
		{"v2.0", false},
		{"  padded  ", false},
		{"", true},           // empty
		{"   ", true},        // blank
		{"-flag", true},      // looks like an option
		{"has..dots", true},  // path traversal
		{"../escape", true},  // path traversal
		{"has spaces", true}, // git rejects spaces
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBranchName(tt.name)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateBranchName(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
		})
	}
}

func TestPathForBranch(t *testing.T) {
	tests := []struct {
		branch string
		want   string
	}{
		{"feature-x", "/wt/feature-x"},
		{"feature/foo", "/wt/feature-foo"},
		{"a/b/c", "/wt/a-b-c"},
	}

	for _, tt := range tests {
		t.Run(tt.branch, func(t *testing.T) {
			if got := PathForBranch("/wt", tt.branch); got != tt.want {
				t.Errorf("PathForBranch(%q) = %q, want %q", tt.branch, got, tt.want)
			}
		})
	}
}

func TestWorktree_DisplayName(t *testing.T) {
	if got := (Worktree{Branch: "main", Head: "abcdef0123"}).DisplayName(); got != "main" {
		t.Errorf("DisplayName() = %q, want main", got)
	}
	if got := (Worktree{Head: "abcdef0123"}).DisplayName(); got != "abcdef01" {
		t.Errorf("detached DisplayName() = %q, want abcdef01", got)
	}
	if got := (Worktree{Head: "abc"}).DisplayName(); got != "abc" {
		t.Errorf("short head DisplayName() = %q, want abc", got)
	}
}

func TestWorktree_ShortPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/home/me/src/repo-feature", "repo-feature"},
		{"/", "/"},
	}
	for _, tt := range tests {
		if got := (Worktree{Path: tt.path}).ShortPath(); got != tt.want {
			t.Errorf("ShortPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestWorktree_RelativePath(t *testing.T) {
	wt := Worktree{Path: "/base/worktrees/feature"}
	if got := wt.RelativePath("/base"); got != "worktrees/feature" {
		t.Errorf("RelativePath() = %q", got)
	}
	if got := wt.RelativePath("/other"); got != "/base/worktrees/feature" {
		t.Errorf("RelativePath() outside base = %q", got)
	}
}

func TestWorktree_Dirty(t *testing.T) {
	one := 1
	tests := []struct {
		name      string
		status    Status
		wantDirty bool
		wantKnown bool
	}{
		{"not loaded", NotLoaded, false, false},
		{"clean", Loaded(0, 0, 0, 0, nil, nil), false, true},
		{"clean but ahead", Loaded(0, 0, 0, 0, &one, nil), false, true},
		{"modified", Loaded(0, 2, 0, 0, nil, nil), true, true},
		{"untracked", Loaded(0, 0, 1, 0, nil, nil), true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dirty, known := Worktree{Status: tt.status}.Dirty()
			if dirty != tt.wantDirty || known != tt.wantKnown {
				t.Errorf("Dirty() = (%v, %v), want (%v, %v)", dirty, known, tt.wantDirty, tt.wantKnown)
			}
		})
	}
}

func TestFind(t *testing.T) {
	list := []Worktree{
		{Path: "/r", Branch: "main", IsMain: true},
		{Path: "/r/w", Branch: "feature/foo"},
		{Path: "/r/d"},
	}

	if i := FindByPath(list, "/r/w/"); i != 1 {
		t.Errorf("FindByPath() = %d, want 1", i)
	}
	if i := FindByBranch(list, "feature/foo"); i != 1 {
		t.Errorf("FindByBranch() = %d, want 1", i)
	}
	if i := FindByBranch(list, ""); i != -1 {
		t.Errorf("FindByBranch(\"\") = %d, want -1", i)
	}
	if m, ok := Main(list); !ok || m.Path != "/r" {
		t.Errorf("Main() = %+v, %v", m, ok)
	}
}

func TestSamePath(t *testing.T) {
	dir := t.TempDir()
	real := filepath.Join(dir, "real")
	if err := os.Mkdir(real, 0755); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "link")
	if err := os.Symlink(real, link); err != nil {
		t.Fatal(err)
	}

	if !SamePath(real, link) {
		t.Error("SamePath(real, link) = false, want true")
	}
	if got := Canonical("/does-not-exist/a/../b"); got != "/does-not-exist/b" {
		t.Errorf("Canonical(missing) = %q, want cleaned path", got)
	}
	if SamePath(real, "") {
		t.Error("SamePath with empty path should be false")
	}
	if SamePath(real, filepath.Join(dir, "other")) {
		t.Error("SamePath(real, other) = true, want false")
	}
}
