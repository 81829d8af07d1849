package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"wtctl/internal/contexts"
	"wtctl/internal/notify"
	"wtctl/internal/task"
	"wtctl/internal/worktree"
)

// fakeGit records every call as "verb arg..." and fails the verbs listed in
// fail.
type fakeGit struct {
	mu       sync.Mutex
	calls    []string
	fail     map[string]error
	dirty    map[string]bool
	branch   string
	list     []worktree.Worktree
	merged   []string
	onPull   func()
	restored context.Context
}

func (g *fakeGit) record(verb string, args ...string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, strings.TrimSpace(verb+" "+strings.Join(args, " ")))
	return g.fail[verb]
}

func (g *fakeGit) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

func (g *fakeGit) ListWorktrees(_ context.Context, _, linked string) ([]worktree.Worktree, error) {
	if err := g.record("list"); err != nil {
		return nil, err
	}
	out := make([]worktree.Worktree, len(g.list))
	copy(out, g.list)
	return out, nil
}

func (g *fakeGit) AddWorktree(_ context.Context, _, path, branch string, newBranch bool, onProgress func(float64)) error {
	verb := "add"
	if newBranch {
		verb = "add-b"
	}
	onProgress(0.5)
	return g.record(verb, branch, path)
}

func (g *fakeGit) RemoveWorktree(_ context.Context, _, path string, force bool) error {
	if force {
		return g.record("remove-f", path)
	}
	return g.record("remove", path)
}

func (g *fakeGit) MergedBranches(context.Context, string, string) ([]string, error) {
	return g.merged, g.record("merged")
}

func (g *fakeGit) HasUncommittedChanges(_ context.Context, dir string) (bool, error) {
	if err := g.record("dirty?", dir); err != nil {
		return false, err
	}
	return g.dirty[dir], nil
}

func (g *fakeGit) StashPush(_ context.Context, _, name string) error {
	return g.record("stash-push", name)
}

func (g *fakeGit) StashPop(_ context.Context, _, name string) error {
	return g.record("stash-pop", name)
}

func (g *fakeGit) Checkout(ctx context.Context, _, rev string) error {
	if rev != "main" {
		g.mu.Lock()
		g.restored = ctx
		g.mu.Unlock()
	}
	return g.record("checkout", rev)
}

func (g *fakeGit) PullFastForward(_ context.Context, _ string, onProgress func(float64)) error {
	if g.onPull != nil {
		g.onPull()
	}
	onProgress(1)
	return g.record("pull")
}

func (g *fakeGit) CurrentBranch(context.Context, string) (string, error) {
	if g.branch == "" {
		return "HEAD", nil
	}
	return g.branch, nil
}

func (g *fakeGit) CurrentRevision(context.Context, string) (string, error) {
	return "abc123", nil
}

type fakeRegistry struct {
	cur      contexts.Context
	err      error
	added    []contexts.Context
	switched []string
}

func (r *fakeRegistry) Current() (contexts.Context, error) { return r.cur, r.err }

func (r *fakeRegistry) Add(c contexts.Context) error {
	r.added = append(r.added, c)
	return nil
}

func (r *fakeRegistry) Switch(name string) error {
	r.switched = append(r.switched, name)
	return nil
}

type fakeProvisioner struct {
	calls []string
	err   error
}

func (p *fakeProvisioner) Provision(_ *task.Scope, path string, c contexts.Context, keep bool) error {
	mode := "full"
	if keep {
		mode = "keep"
	}
	p.calls = append(p.calls, mode+" "+path+" "+c.Name)
	return p.err
}

type fakeMarkers struct {
	written     []string
	provisioned map[string]bool
}

func (m *fakeMarkers) Write(path, name string) error {
	m.written = append(m.written, path+" "+name)
	return nil
}

func (m *fakeMarkers) IsProvisionedByContext(path, _ string) bool {
	return m.provisioned[path]
}

type fakeSwitcher struct {
	targets []string
	err     error
}

func (s *fakeSwitcher) Switch(_ *task.Scope, target string) error {
	s.targets = append(s.targets, target)
	return s.err
}

type countingRefresher struct{ n int }

func (r *countingRefresher) Refresh(context.Context) error {
	r.n++
	return nil
}

type fakeExporter struct {
	calls int
	err   error
}

func (e *fakeExporter) Export(string, string, []string) (int, error) {
	e.calls++
	return 1, e.err
}

type harness struct {
	git   *fakeGit
	reg   *fakeRegistry
	prov  *fakeProvisioner
	mark  *fakeMarkers
	sw    *fakeSwitcher
	inv   *countingRefresher
	exp   *fakeExporter
	notes *notify.Recorder
	wf    *Workflows
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	root := t.TempDir()
	h := &harness{
		git: &fakeGit{fail: map[string]error{}, dirty: map[string]bool{}, branch: "feature/old"},
		reg: &fakeRegistry{cur: contexts.Context{
			Name:           "demo",
			MainRepoRoot:   filepath.Join(root, "demo-master"),
			WorktreesBase:  filepath.Join(root, "worktrees"),
			ActiveWorktree: filepath.Join(root, "demo"),
			MetadataVault:  filepath.Join(root, "vault"),
			BaseBranch:     "main",
		}},
		prov:  &fakeProvisioner{},
		mark:  &fakeMarkers{provisioned: map[string]bool{}},
		sw:    &fakeSwitcher{},
		inv:   &countingRefresher{},
		exp:   &fakeExporter{},
		notes: &notify.Recorder{},
	}
	h.wf = New(Deps{
		Git:         h.git,
		Contexts:    h.reg,
		Provisioner: h.prov,
		Markers:     h.mark,
		Switcher:    h.sw,
		Inventory:   h.inv,
		Exporter:    h.exp,
		Notifier:    h.notes,
	})
	h.wf.pid = func() int { return 42 }
	h.wf.now = func() int64 { return 1000 }
	return h
}

func TestCreateWorktree_NewBranchFlow(t *testing.T) {
	h := newHarness(t)
	repo := h.reg.cur.MainRepoRoot
	h.git.dirty[repo] = true

	path, err := h.wf.CreateWorktree(nil, CreateRequest{Branch: "feature/x", NewBranch: true, Provision: true})
	if err != nil {
		t.Fatalf("CreateWorktree() error = %v", err)
	}
	if want := filepath.Join(h.reg.cur.WorktreesBase, "feature-x"); path != want {
		t.Errorf("path = %s, want %s", path, want)
	}

	want := []string{
		"dirty? " + repo,
		"stash-push wta-1000-42",
		"checkout main",
		"pull",
		"add-b feature/x " + path,
		"checkout feature/old",
		"stash-pop wta-1000-42",
	}
	if got := h.git.Calls(); !slices.Equal(got, want) {
		t.Errorf("calls =\n%v\nwant\n%v", got, want)
	}
	if len(h.prov.calls) != 1 || h.inv.n != 1 {
		t.Errorf("provision calls = %v, refreshes = %d", h.prov.calls, h.inv.n)
	}
	if note, ok := h.notes.Find("Worktree Created"); !ok || !strings.Contains(note.Message, "feature/x") {
		t.Errorf("notes = %+v", h.notes.Notes())
	}
}

func TestCreateWorktree_RestoreAlwaysRuns(t *testing.T) {
	tests := []struct {
		name      string
		dirty     bool
		branch    string
		fail      map[string]error
		wantCalls []string
		wantNote  string
	}{
		{
			name:      "pull fails",
			dirty:     true,
			branch:    "dev",
			fail:      map[string]error{"pull": errors.New("not fast-forward")},
			wantCalls: []string{"stash-push wta-1000-42", "checkout main", "pull", "checkout dev", "stash-pop wta-1000-42"},
			wantNote:  "Create Failed",
		},
		{
			name:      "clean repo skips stash",
			branch:    "dev",
			fail:      map[string]error{"add-b": errors.New("branch exists")},
			wantCalls: []string{"checkout main", "pull", "add-b feature/x", "checkout dev"},
			wantNote:  "Create Failed",
		},
		{
			name:      "detached head restores revision",
			dirty:     false,
			fail:      map[string]error{"checkout": nil},
			wantCalls: []string{"checkout main", "pull", "add-b feature/x", "checkout abc123"},
			wantNote:  "Worktree Created",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.git.branch = tt.branch
			h.git.fail = tt.fail
			h.git.dirty[h.reg.cur.MainRepoRoot] = tt.dirty

			_, _ = h.wf.CreateWorktree(nil, CreateRequest{Branch: "feature/x", NewBranch: true})

			var got []string
			for _, c := range h.git.Calls() {
				if strings.HasPrefix(c, "dirty?") {
					continue
				}
				// Drop the path argument of add-b.
				if strings.HasPrefix(c, "add-b") {
					c = strings.Join(strings.Fields(c)[:2], " ")
				}
				got = append(got, c)
			}
			if !slices.Equal(got, tt.wantCalls) {
				t.Errorf("calls = %v, want %v", got, tt.wantCalls)
			}
			if _, ok := h.notes.Find(tt.wantNote); !ok {
				t.Errorf("missing %q note in %+v", tt.wantNote, h.notes.Notes())
			}
		})
	}
}

func TestCreateWorktree_CancelledStillRestores(t *testing.T) {
	h := newHarness(t)
	h.git.branch = "dev"
	h.git.dirty[h.reg.cur.MainRepoRoot] = true

	ctx, cancel := context.WithCancel(context.Background())
	h.git.onPull = cancel

	_, err := h.wf.CreateWorktree(task.NewScope(ctx, nil), CreateRequest{Branch: "x", NewBranch: true})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	calls := h.git.Calls()
	if slices.ContainsFunc(calls, func(c string) bool { return strings.HasPrefix(c, "add") }) {
		t.Errorf("worktree added after cancellation: %v", calls)
	}
	if !slices.Contains(calls, "checkout dev") || !slices.Contains(calls, "stash-pop wta-1000-42") {
		t.Errorf("restore did not run: %v", calls)
	}
	if h.git.restored == nil || h.git.restored.Err() != nil {
		t.Error("restore must run on a live context")
	}
}

func TestCreateWorktree_FailedCheckoutKeepsStash(t *testing.T) {
	h := newHarness(t)
	h.git.branch = "dev"
	h.git.dirty[h.reg.cur.MainRepoRoot] = true
	h.git.fail["pull"] = errors.New("offline")

	// Checkout of the base branch succeeds; the restore checkout fails.
	h.wf.git = &failingRestoreGit{fakeGit: h.git}

	_, _ = h.wf.CreateWorktree(nil, CreateRequest{Branch: "x", NewBranch: true})

	if slices.Contains(h.git.Calls(), "stash-pop wta-1000-42") {
		t.Error("stash must not be popped onto the wrong branch")
	}
	note, ok := h.notes.Find("Restore Failed")
	if !ok || note.Severity != notify.Warning || !strings.Contains(note.Message, "wta-1000-42") {
		t.Errorf("notes = %+v", h.notes.Notes())
	}
}

type failingRestoreGit struct{ *fakeGit }

func (g *failingRestoreGit) Checkout(ctx context.Context, dir, rev string) error {
	if rev == "dev" {
		_ = g.record("checkout", rev)
		return errors.New("local changes would be overwritten")
	}
	return g.fakeGit.Checkout(ctx, dir, rev)
}

func TestCreateWorktree_ExistingBranch(t *testing.T) {
	h := newHarness(t)

	path, err := h.wf.CreateWorktree(nil, CreateRequest{Branch: " release ", Path: "/tmp/rel"})
	if err != nil {
		t.Fatalf("CreateWorktree() error = %v", err)
	}
	if path != "/tmp/rel" {
		t.Errorf("path = %s", path)
	}
	if got := h.git.Calls(); !slices.Equal(got, []string{"add release /tmp/rel"}) {
		t.Errorf("calls = %v", got)
	}
	if len(h.prov.calls) != 0 {
		t.Error("provision not requested")
	}
}

func TestCreateWorktree_RejectsBadInput(t *testing.T) {
	h := newHarness(t)
	if _, err := h.wf.CreateWorktree(nil, CreateRequest{Branch: "-oops"}); err == nil {
		t.Error("invalid branch name should fail")
	}
	h.reg.err = contexts.ErrNoContext
	if _, err := h.wf.CreateWorktree(nil, CreateRequest{Branch: "ok"}); !errors.Is(err, contexts.ErrNoContext) {
		t.Errorf("error = %v, want ErrNoContext", err)
	}
	if len(h.git.Calls()) != 0 {
		t.Errorf("git called: %v", h.git.Calls())
	}
}

func removeHarness(t *testing.T) (*harness, worktree.Worktree, worktree.Worktree) {
	t.Helper()
	h := newHarness(t)
	base := h.reg.cur.WorktreesBase
	linked := worktree.Worktree{Path: filepath.Join(base, "a"), Branch: "a", IsLinked: true}
	other := worktree.Worktree{Path: filepath.Join(base, "b"), Branch: "b"}
	for _, wt := range []worktree.Worktree{linked, other} {
		if err := os.MkdirAll(filepath.Join(wt.Path, "src"), 0755); err != nil {
			t.Fatal(err)
		}
	}
	h.git.list = []worktree.Worktree{
		{Path: h.reg.cur.MainRepoRoot, Branch: "main", IsMain: true},
		linked,
		other,
	}
	return h, linked, other
}

func TestRemoveWorktree(t *testing.T) {
	t.Run("plain", func(t *testing.T) {
		h, _, other := removeHarness(t)
		if err := h.wf.RemoveWorktree(nil, other.Path, false); err != nil {
			t.Fatalf("RemoveWorktree() error = %v", err)
		}
		if !slices.Contains(h.git.Calls(), "remove "+other.Path) {
			t.Errorf("calls = %v", h.git.Calls())
		}
		if len(h.sw.targets) != 0 || h.inv.n != 1 {
			t.Errorf("switches = %v, refreshes = %d", h.sw.targets, h.inv.n)
		}
		if note, ok := h.notes.Find("Worktree Removed"); !ok || note.Message != "Removed b" {
			t.Errorf("notes = %+v", h.notes.Notes())
		}
	})

	t.Run("linked switches to main first", func(t *testing.T) {
		h, linked, _ := removeHarness(t)
		if err := h.wf.RemoveWorktree(nil, linked.Path, false); err != nil {
			t.Fatalf("RemoveWorktree() error = %v", err)
		}
		if !slices.Equal(h.sw.targets, []string{h.reg.cur.MainRepoRoot}) {
			t.Errorf("switch targets = %v", h.sw.targets)
		}
	})

	t.Run("dirty needs force", func(t *testing.T) {
		h, _, other := removeHarness(t)
		h.git.dirty[other.Path] = true
		if err := h.wf.RemoveWorktree(nil, other.Path, false); !errors.Is(err, ErrDirty) {
			t.Fatalf("error = %v, want ErrDirty", err)
		}
		if err := h.wf.RemoveWorktree(nil, other.Path, true); err != nil {
			t.Fatalf("forced RemoveWorktree() error = %v", err)
		}
		if !slices.Contains(h.git.Calls(), "remove-f "+other.Path) {
			t.Errorf("calls = %v", h.git.Calls())
		}
	})

	t.Run("main refused", func(t *testing.T) {
		h, _, _ := removeHarness(t)
		if err := h.wf.RemoveWorktree(nil, h.reg.cur.MainRepoRoot, true); !errors.Is(err, ErrMainWorktree) {
			t.Fatalf("error = %v, want ErrMainWorktree", err)
		}
		if note, ok := h.notes.Find("Cannot Remove"); !ok || note.Severity != notify.Error {
			t.Errorf("notes = %+v", h.notes.Notes())
		}
	})

	t.Run("unknown path", func(t *testing.T) {
		h, _, _ := removeHarness(t)
		if err := h.wf.RemoveWorktree(nil, "/nowhere", false); !errors.Is(err, ErrUnknownWorktree) {
			t.Fatalf("error = %v, want ErrUnknownWorktree", err)
		}
	})
}

func TestCountEntries(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "a", "b"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a", "f"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	if n := countEntries(dir); n != 4 {
		t.Errorf("countEntries() = %d, want 4", n)
	}
	if n := countEntries(filepath.Join(dir, "missing")); n != 0 {
		t.Errorf("countEntries(missing) = %d", n)
	}
}

func TestRemoveMerged(t *testing.T) {
	h, linked, other := removeHarness(t)
	dirtyWt := worktree.Worktree{Path: filepath.Join(h.reg.cur.WorktreesBase, "c"), Branch: "c"}
	unmerged := worktree.Worktree{Path: filepath.Join(h.reg.cur.WorktreesBase, "d"), Branch: "d"}
	h.git.list = append(h.git.list, dirtyWt, unmerged, worktree.Worktree{Path: "/detached", Head: "abc"})
	h.git.merged = []string{"main", linked.Branch, other.Branch, dirtyWt.Branch}
	h.git.dirty[dirtyWt.Path] = true

	plan, err := h.wf.PlanRemoveMerged(nil)
	if err != nil {
		t.Fatalf("PlanRemoveMerged() error = %v", err)
	}
	if len(plan.Clean) != 1 || plan.Clean[0].Path != other.Path {
		t.Errorf("Clean = %+v", plan.Clean)
	}
	if len(plan.Dirty) != 1 || plan.Dirty[0].Path != dirtyWt.Path {
		t.Errorf("Dirty = %+v", plan.Dirty)
	}
	if s := plan.Summary(); !strings.Contains(s, "Remove 1 merged worktree(s)?") || !strings.Contains(s, "c (c) [dirty]") {
		t.Errorf("Summary() = %q", s)
	}

	removed, failed, err := h.wf.RemoveMerged(nil, plan)
	if err != nil || removed != 1 || failed != 0 {
		t.Fatalf("RemoveMerged() = %d, %d, %v", removed, failed, err)
	}
	note, ok := h.notes.Find("Merged Worktrees Removed")
	if !ok || note.Message != "Removed 1 worktree(s), 1 skipped (dirty)" {
		t.Errorf("notes = %+v", h.notes.Notes())
	}
}

func TestRemoveMerged_Empty(t *testing.T) {
	h := newHarness(t)
	if _, _, err := h.wf.RemoveMerged(nil, MergedPlan{}); err != nil {
		t.Fatal(err)
	}
	if _, ok := h.notes.Find("No Merged Worktrees"); !ok {
		t.Errorf("notes = %+v", h.notes.Notes())
	}
}

func TestMergedMessage(t *testing.T) {
	tests := []struct {
		removed, failed, skipped int
		want                     string
	}{
		{3, 0, 0, "Removed 3 worktree(s)"},
		{2, 1, 0, "Removed 2 worktree(s), 1 failed"},
		{0, 0, 2, "Removed 0 worktree(s), 2 skipped (dirty)"},
		{1, 2, 3, "Removed 1 worktree(s), 2 failed, 3 skipped (dirty)"},
	}
	for _, tt := range tests {
		if got := MergedMessage(tt.removed, tt.failed, tt.skipped); got != tt.want {
			t.Errorf("MergedMessage(%d, %d, %d) = %q, want %q", tt.removed, tt.failed, tt.skipped, got, tt.want)
		}
	}
}

func TestProvisionAndSwitch(t *testing.T) {
	tests := []struct {
		mode       ProvisionMode
		wantProv   int
		wantMarker int
	}{
		{ProvisionNone, 0, 0},
		{ProvisionKeep, 0, 1},
		{ProvisionOverwrite, 1, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			h := newHarness(t)
			if err := h.wf.ProvisionAndSwitch(nil, "/wt/x", tt.mode); err != nil {
				t.Fatalf("ProvisionAndSwitch() error = %v", err)
			}
			if len(h.prov.calls) != tt.wantProv || len(h.mark.written) != tt.wantMarker {
				t.Errorf("provisions = %v, markers = %v", h.prov.calls, h.mark.written)
			}
			if !slices.Equal(h.sw.targets, []string{"/wt/x"}) {
				t.Errorf("switch targets = %v", h.sw.targets)
			}
		})
	}
}

func TestProvisionAndSwitch_CancelledProvisionSkipsSwitch(t *testing.T) {
	h := newHarness(t)
	h.prov.err = context.Canceled
	if err := h.wf.ProvisionAndSwitch(nil, "/wt/x", ProvisionOverwrite); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v", err)
	}
	if len(h.sw.targets) != 0 {
		t.Error("switch ran after a cancelled provision")
	}
}

func TestParseProvisionMode(t *testing.T) {
	for in, want := range map[string]ProvisionMode{"": ProvisionNone, "none": ProvisionNone, "keep": ProvisionKeep, "overwrite": ProvisionOverwrite} {
		got, err := ParseProvisionMode(in)
		if err != nil || got != want {
			t.Errorf("ParseProvisionMode(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseProvisionMode("always"); err == nil {
		t.Error("unknown mode should fail")
	}
}

func TestProvisionWorktree(t *testing.T) {
	h := newHarness(t)
	if err := h.wf.ProvisionWorktree(nil, "/wt/x", false); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(h.prov.calls, []string{"full /wt/x demo"}) || h.inv.n != 1 {
		t.Errorf("provisions = %v, refreshes = %d", h.prov.calls, h.inv.n)
	}
	if note, ok := h.notes.Find("Worktree Provisioned"); !ok || note.Message != "Provisioned x for context 'demo'" {
		t.Errorf("notes = %+v", h.notes.Notes())
	}

	h.mark.provisioned["/wt/x"] = true
	if err := h.wf.ProvisionWorktree(nil, "/wt/x", false); err != nil {
		t.Fatal(err)
	}
	if len(h.prov.calls) != 1 {
		t.Error("an already provisioned worktree must not be provisioned again")
	}
	if _, ok := h.notes.Find("Already Provisioned"); !ok {
		t.Errorf("notes = %+v", h.notes.Notes())
	}
}

func TestAddContext(t *testing.T) {
	h := newHarness(t)
	root := t.TempDir()
	repo := filepath.Join(root, "java-master")
	if err := os.Mkdir(repo, 0755); err != nil {
		t.Fatal(err)
	}
	c := contexts.Context{
		Name:             "java",
		MainRepoRoot:     repo,
		WorktreesBase:    filepath.Join(root, "repos", "java", "worktrees"),
		ActiveWorktree:   filepath.Join(root, "links", "java"),
		MetadataVault:    filepath.Join(root, "repos", "java", "idea-files"),
		BaseBranch:       "main",
		MetadataPatterns: []string{".idea"},
	}

	if err := h.wf.AddContext(nil, c); err != nil {
		t.Fatalf("AddContext() error = %v", err)
	}
	for _, dir := range []string{c.WorktreesBase, c.MetadataVault} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("%s not created", dir)
		}
	}
	if target, err := os.Readlink(c.ActiveWorktree); err != nil || target != repo {
		t.Errorf("active link -> %q, %v", target, err)
	}
	if len(h.reg.added) != 1 || !slices.Equal(h.reg.switched, []string{"java"}) {
		t.Errorf("added = %v, switched = %v", h.reg.added, h.reg.switched)
	}
	if h.exp.calls != 1 || h.inv.n != 1 {
		t.Errorf("exports = %d, refreshes = %d", h.exp.calls, h.inv.n)
	}
	if note, ok := h.notes.Find("Context Created"); !ok || note.Message != "Context 'java' created" {
		t.Errorf("notes = %+v", h.notes.Notes())
	}
}

func TestAddContext_ExportFailureWarns(t *testing.T) {
	h := newHarness(t)
	h.exp.err = errors.New("permission denied")
	root := t.TempDir()
	c := contexts.Context{
		Name:             "x",
		MainRepoRoot:     root,
		WorktreesBase:    filepath.Join(root, "wt"),
		ActiveWorktree:   root,
		MetadataVault:    filepath.Join(root, "vault"),
		BaseBranch:       "main",
		MetadataPatterns: []string{".vscode"},
	}
	if err := h.wf.AddContext(nil, c); err != nil {
		t.Fatalf("AddContext() error = %v", err)
	}
	if note, ok := h.notes.Find("Metadata Export Failed"); !ok || note.Severity != notify.Warning {
		t.Errorf("notes = %+v", h.notes.Notes())
	}
	if _, ok := h.notes.Find("Context Created"); !ok {
		t.Error("context should still be created")
	}
}

func TestAddContext_Invalid(t *testing.T) {
	h := newHarness(t)
	if err := h.wf.AddContext(nil, contexts.Context{Name: "bad name"}); err == nil {
		t.Fatal("invalid context should fail")
	}
	if len(h.reg.added) != 0 {
		t.Error("invalid context was stored")
	}
	if _, ok := h.notes.Find("Context Creation Failed"); !ok {
		t.Errorf("notes = %+v", h.notes.Notes())
	}
}
