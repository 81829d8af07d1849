// pattern: Imperative Shell

package contexts

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/natefinch/atomic"

	"wtctl/internal/config"
)

// Keys of a context config file.
const (
	keyMainRepoRoot     = "WT_MAIN_REPO_ROOT"
	keyWorktreesBase    = "WT_WORKTREES_BASE"
	keyActiveWorktree   = "WT_ACTIVE_WORKTREE"
	keyMetadataVault    = "WT_IDEA_FILES_BASE"
	keyBaseBranch       = "WT_BASE_BRANCH"
	keyMetadataPatterns = "WT_METADATA_PATTERNS"
)

const confSuffix = ".conf"

var keyLineRe = regexp.MustCompile(`^(WT_[A-Z_]+)=["']?(.*?)["']?\s*$`)

// ConfigError reports a context file that could not be used.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("context config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

var errMissingKey = errors.New("missing required key")

// ReadConfigFile parses a context file. The context name is the file name
// without ".conf".
func ReadConfigFile(path string) (Context, error) {
	f, err := os.Open(path)
	if err != nil {
		return Context{}, &ConfigError{Path: path, Err: err}
	}
	defer f.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		m := keyLineRe.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		values[m[1]] = m[2]
	}
	if err := scanner.Err(); err != nil {
		return Context{}, &ConfigError{Path: path, Err: err}
	}

	ctx := Context{
		Name:       strings.TrimSuffix(filepath.Base(path), confSuffix),
		BaseBranch: "main",
	}

	required := []struct {
		key string
		dst *string
	}{
		{keyMainRepoRoot, &ctx.MainRepoRoot},
		{keyWorktreesBase, &ctx.WorktreesBase},
		{keyActiveWorktree, &ctx.ActiveWorktree},
		{keyMetadataVault, &ctx.MetadataVault},
	}
	for _, r := range required {
		v, ok := values[r.key]
		if !ok {
			return Context{}, &ConfigError{Path: path, Err: fmt.Errorf("%w %s", errMissingKey, r.key)}
		}
		*r.dst = config.ExpandHome(v)
	}

	if v, ok := values[keyBaseBranch]; ok && v != "" {
		ctx.BaseBranch = v
	}
	ctx.MetadataPatterns = strings.Fields(values[keyMetadataPatterns])

	return ctx, nil
}

// WriteConfigFile writes ctx atomically to path.
func WriteConfigFile(path string, ctx Context) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s=\"%s\"\n", keyMainRepoRoot, ctx.MainRepoRoot)
	fmt.Fprintf(&b, "%s=\"%s\"\n", keyWorktreesBase, ctx.WorktreesBase)
	fmt.Fprintf(&b, "%s=\"%s\"\n", keyActiveWorktree, ctx.ActiveWorktree)
	fmt.Fprintf(&b, "%s=\"%s\"\n", keyMetadataVault, ctx.MetadataVault)
	fmt.Fprintf(&b, "%s=\"%s\"\n", keyBaseBranch, ctx.BaseBranch)
	fmt.Fprintf(&b, "%s=\"%s\"\n", keyMetadataPatterns, strings.Join(ctx.MetadataPatterns, " "))

	return atomic.WriteFile(path, strings.NewReader(b.String()))
}

// readCurrentName returns the trimmed content of the current pointer, or ""
// when it is absent or blank.
func readCurrentName(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func writeCurrentName(path, name string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return atomic.WriteFile(path, strings.NewReader(name+"\n"))
}

// listConfigFiles returns the *.conf files in dir, sorted by name.
func listConfigFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), confSuffix) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}
