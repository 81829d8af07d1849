// pattern: Imperative Shell

package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"wtctl/internal/logging"
)

// Default per-call timeouts.
const (
	DefaultTimeout         = 60 * time.Second
	DefaultProgressTimeout = 300 * time.Second
)

// TimedOutExitCode is reported when a command was killed by its timeout.
const TimedOutExitCode = -1

// Result is the outcome of one git invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
}

// OK reports whether the command exited zero.
func (r Result) OK() bool {
	return r.ExitCode == 0 && !r.TimedOut
}

// CommandError describes a failed git invocation.
type CommandError struct {
	Args     []string
	ExitCode int
	Stderr   string
	TimedOut bool
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = fmt.Sprintf("exit status %d", e.ExitCode)
	}
	return fmt.Sprintf("git %s: %s", strings.Join(e.Args, " "), msg)
}

// errorFor returns nil for a successful result, else a *CommandError.
func errorFor(args []string, r Result) error {
	if r.OK() {
		return nil
	}
	return &CommandError{Args: args, ExitCode: r.ExitCode, Stderr: r.Stderr, TimedOut: r.TimedOut}
}

// IsTimeout reports whether err is a git command that timed out.
func IsTimeout(err error) bool {
	var ce *CommandError
	return errors.As(err, &ce) && ce.TimedOut
}

// RunOptions tunes a single invocation.
type RunOptions struct {
	// Timeout overrides the runner's default when positive.
	Timeout time.Duration
	// OnProgress, when set, receives percentages parsed from stderr as 0..1.
	OnProgress func(float64)
}

// Runner executes git in a working directory.
// Implementations never return a Go error: failures are encoded in Result.
type Runner interface {
	Run(ctx context.Context, dir string, args []string, opts RunOptions) Result
}

// ExecRunner runs the git binary with os/exec.
type ExecRunner struct {
	Binary          string
	Timeout         time.Duration
	ProgressTimeout time.Duration
	Logger          *logging.ScopedLogger
}

// NewExecRunner returns a runner for binary ("git" when empty).
func NewExecRunner(binary string, timeout, progressTimeout time.Duration, logger *logging.ScopedLogger) *ExecRunner {
	if binary == "" {
		binary = "git"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if progressTimeout <= 0 {
		progressTimeout = DefaultProgressTimeout
	}
	return &ExecRunner{
		Binary:          binary,
		Timeout:         timeout,
		ProgressTimeout: progressTimeout,
		Logger:          logging.OrNop(logger),
	}
}

// Run executes git with args in dir.
func (r *ExecRunner) Run(ctx context.Context, dir string, args []string, opts RunOptions) Result {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = r.Timeout
		if opts.OnProgress != nil {
			timeout = r.ProgressTimeout
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.Binary, args...)
	cmd.Dir = dir
	// Keep git from opening an editor or a credential prompt.
	cmd.Env = append(cmd.Environ(), "GIT_TERMINAL_PROMPT=0", "GIT_EDITOR=true")

	var stdout bytes.Buffer
	stderr := &progressWriter{onProgress: opts.OnProgress}
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	start := time.Now()
	err := cmd.Run()
	stderr.flush()

	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	switch {
	case err == nil:
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		res.ExitCode = TimedOutExitCode
		res.TimedOut = true
		res.Stderr = fmt.Sprintf("Process timed out after %ds", int(timeout.Seconds()))
		r.Logger.Warn("git command timed out", "args", strings.Join(args, " "), "dir", dir, "timeout", timeout.String())
		return res
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = TimedOutExitCode
			if res.Stderr == "" {
				res.Stderr = err.Error()
			}
		}
	}

	if res.ExitCode != 0 {
		r.Logger.Debug("git command failed",
			"args", strings.Join(args, " "),
			"dir", dir,
			"exit_code", res.ExitCode,
			"stderr", strings.TrimSpace(res.Stderr),
		)
	} else {
		r.Logger.Debug("git command", "args", strings.Join(args, " "), "dir", dir, "elapsed", time.Since(start).String())
	}
	return res
}

var progressRe = regexp.MustCompile(`\b(\d{1,3})%`)

// ParseProgress extracts the last percentage token in s as 0..1.
func ParseProgress(s string) (float64, bool) {
	matches := progressRe.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return 0, false
	}
	pct, err := strconv.Atoi(matches[len(matches)-1][1])
	if err != nil {
		return 0, false
	}
	pct = max(0, min(pct, 100))
	return float64(pct) / 100, true
}

// progressWriter captures stderr and, when a callback is set, parses each
// \r or \n terminated segment for a percentage.
type progressWriter struct {
	mu         sync.Mutex
	buf        bytes.Buffer
	pending    []byte
	onProgress func(float64)
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	if w.onProgress == nil {
		return len(p), nil
	}

	w.pending = append(w.pending, p...)
	for {
		i := bytes.IndexAny(w.pending, "\r\n")
		if i < 0 {
			break
		}
		w.emit(w.pending[:i])
		w.pending = w.pending[i+1:]
	}
	return len(p), nil
}

func (w *progressWriter) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.onProgress != nil && len(w.pending) > 0 {
		w.emit(w.pending)
		w.pending = nil
	}
}

func (w *progressWriter) emit(segment []byte) {
	if f, ok := ParseProgress(string(segment)); ok {
		w.onProgress(f)
	}
}

func (w *progressWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}
