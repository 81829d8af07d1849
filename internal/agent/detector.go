// pattern: Imperative Shell

// Package agent detects coding-agent activity in worktrees, from running
// processes and from recently written session transcripts.
package agent

import (
	"bufio"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"strings"
	"time"

	"wtctl/internal/logging"
)

// DefaultThreshold is how recently a session file must have been written to
// count as active.
const DefaultThreshold = 30 * time.Minute

const (
	processName    = "claude"
	projectsSubdir = ".claude/projects"
	sessionExt     = ".jsonl"
	lsofTimeout    = 5 * time.Second
)

// Detection reports agent activity.
type Detection interface {
	// ActiveDirs returns directories with a running agent process or a
	// recent session.
	ActiveDirs(ctx context.Context) []string
	// SessionIDs returns recent session ids for path, newest name first.
	SessionIDs(path string) []string
}

// Executor runs a command and returns its stdout.
type Executor func(ctx context.Context, name string, args ...string) (string, error)

// Detector is the production Detection, backed by lsof and the agent's
// projects directory.
type Detector struct {
	exec        Executor
	projectsDir string
	threshold   time.Duration
	now         func() time.Time
	logger      *logging.ScopedLogger
}

// NewDetector creates a detector for the current user. A zero threshold
// uses DefaultThreshold.
func NewDetector(threshold time.Duration, logger *logging.ScopedLogger) *Detector {
	home, _ := os.UserHomeDir()
	return NewDetectorWithExecutor(execCommand, filepath.Join(home, projectsSubdir), threshold, logger)
}

// NewDetectorWithExecutor creates a detector with the given executor and
// projects directory (for testing).
func NewDetectorWithExecutor(exec Executor, projectsDir string, threshold time.Duration, logger *logging.ScopedLogger) *Detector {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Detector{
		exec:        exec,
		projectsDir: projectsDir,
		threshold:   threshold,
		now:         time.Now,
		logger:      logging.OrNop(logger),
	}
}

func execCommand(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	return string(out), err
}

// ActiveDirs returns the union of process working directories and directories
// decoded from recent session folders.
func (d *Detector) ActiveDirs(ctx context.Context) []string {
	seen := make(map[string]bool)
	var dirs []string
	for _, dir := range append(d.fromProcesses(ctx), d.fromSessions()...) {
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

// SessionIDs lists session transcripts for path modified within the
// threshold.
func (d *Detector) SessionIDs(path string) []string {
	dir := filepath.Join(d.projectsDir, EncodePath(path))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	cutoff := d.now().Add(-d.threshold)

	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), sessionExt) {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().After(cutoff) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), sessionExt))
	}
	slices.Sort(ids)
	slices.Reverse(ids)
	return ids
}

func (d *Detector) fromProcesses(ctx context.Context) []string {
	if runtime.GOOS == "windows" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, lsofTimeout)
	defer cancel()

	out, err := d.exec(ctx, lsofBinary(), "-a", "-d", "cwd", "-c", processName, "-Fn")
	if err != nil {
		d.logger.Debug("lsof detection failed", "error", err)
		return nil
	}
	return ParseLsof(out)
}

func lsofBinary() string {
	for _, p := range []string{"/usr/sbin/lsof", "/usr/bin/lsof"} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return "lsof"
}

// ParseLsof extracts working directories from `lsof -Fn` output. The root
// directory is ignored.
func ParseLsof(out string) []string {
	var dirs []string
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) < 2 || line[0] != 'n' {
			continue
		}
		p := line[1:]
		if p == "/" {
			continue
		}
		dirs = append(dirs, filepath.Clean(p))
	}
	return dirs
}

func (d *Detector) fromSessions() []string {
	entries, err := os.ReadDir(d.projectsDir)
	if err != nil {
		return nil
	}
	cutoff := d.now().Add(-d.threshold)

	var dirs []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if !hasRecentSession(filepath.Join(d.projectsDir, e.Name()), cutoff) {
			continue
		}
		if p, ok := decodeDir(e.Name()); ok {
			dirs = append(dirs, p)
		}
	}
	return dirs
}

func hasRecentSession(dir string, cutoff time.Time) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), sessionExt) {
			continue
		}
		if info, err := e.Info(); err == nil && info.ModTime().After(cutoff) {
			return true
		}
	}
	return false
}

var nonAlnumRe = regexp.MustCompile(`[^a-zA-Z0-9]`)

// EncodePath maps a directory to its session folder name: every
// non-alphanumeric character becomes "-".
func EncodePath(path string) string {
	return nonAlnumRe.ReplaceAllString(path, "-")
}

// decodeDir reverses EncodePath when the result is an existing directory
// that encodes back to the same name. The encoding is lossy, so paths whose
// names contain "-" or "." are not recovered.
func decodeDir(encoded string) (string, bool) {
	if runtime.GOOS == "windows" {
		return "", false
	}
	candidate := filepath.Clean("/" + strings.ReplaceAll(encoded, "-", "/"))
	info, err := os.Stat(candidate)
	if err != nil || !info.IsDir() || EncodePath(candidate) != encoded {
		return "", false
	}
	return candidate, true
}
