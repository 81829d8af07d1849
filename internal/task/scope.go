// pattern: Functional Core

// Package task provides the cooperative cancellation and progress contract
// that multi-phase operations report through.
package task

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Reporter receives progress from a running task.
type Reporter interface {
	Fraction(f float64)
	Text(s string)
	Detail(s string)
}

// Scope maps a sub-range of a Reporter's fraction onto 0..1.
//
// A scope covering 0.40..0.80 of the overall bar turns Fraction(0.5) into
// an overall fraction of 0.60. All methods are safe on a nil *Scope.
type Scope struct {
	ctx      context.Context
	reporter Reporter
	start    float64
	size     float64
}

// NewScope returns a scope covering the whole 0..1 range of r.
func NewScope(ctx context.Context, r Reporter) *Scope {
	if r == nil {
		r = NopReporter{}
	}
	return &Scope{ctx: ctx, reporter: r, start: 0, size: 1}
}

// Fraction reports progress within this scope's range.
func (s *Scope) Fraction(p float64) {
	if s == nil {
		return
	}
	s.reporter.Fraction(s.start + clamp(p)*s.size)
}

// Text sets the primary status line.
func (s *Scope) Text(v string) {
	if s != nil {
		s.reporter.Text(v)
	}
}

// Detail sets the secondary status line.
func (s *Scope) Detail(v string) {
	if s != nil {
		s.reporter.Detail(v)
	}
}

// Checkpoint returns the context error if the task has been cancelled.
func (s *Scope) Checkpoint() error {
	if s == nil || s.ctx == nil {
		return nil
	}
	return s.ctx.Err()
}

// Context returns the scope's context, or Background for a nil scope.
func (s *Scope) Context() context.Context {
	if s == nil || s.ctx == nil {
		return context.Background()
	}
	return s.ctx
}

// Sub returns a scope for [subStart, subStart+subSize] of this scope.
func (s *Scope) Sub(subStart, subSize float64) *Scope {
	if s == nil {
		return nil
	}
	return &Scope{
		ctx:      s.ctx,
		reporter: s.reporter,
		start:    s.start + subStart*s.size,
		size:     subSize * s.size,
	}
}

func clamp(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}

// NopReporter discards progress.
type NopReporter struct{}

func (NopReporter) Fraction(float64) {}
func (NopReporter) Text(string)      {}
func (NopReporter) Detail(string)    {}

// LineReporter prints status text changes as lines, with the current
// percentage. Fractions alone are not printed to keep output readable.
type LineReporter struct {
	mu       sync.Mutex
	w        io.Writer
	fraction float64
	last     string
}

// NewLineReporter writes to w.
func NewLineReporter(w io.Writer) *LineReporter {
	return &LineReporter{w: w}
}

func (r *LineReporter) Fraction(f float64) {
	r.mu.Lock()
	r.fraction = f
	r.mu.Unlock()
}

func (r *LineReporter) Text(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s == "" || s == r.last {
		return
	}
	r.last = s
	fmt.Fprintf(r.w, "[%3.0f%%] %s\n", r.fraction*100, s)
}

func (r *LineReporter) Detail(string) {}
