// pattern: Functional Core

// Package enrich annotates worktree lists with derived state.
//
// Each Enricher maps a list to a list of the same length and order. The
// Pipeline runs them in sequence and isolates a failing step so the others
// still apply.
package enrich

import (
	"context"
	"fmt"

	"wtctl/internal/logging"
	"wtctl/internal/worktree"
)

// Enricher annotates a worktree list.
type Enricher interface {
	Name() string
	Enrich(ctx context.Context, list []worktree.Worktree) ([]worktree.Worktree, error)
}

// Func adapts a function to Enricher.
type Func struct {
	ID string
	Fn func(ctx context.Context, list []worktree.Worktree) ([]worktree.Worktree, error)
}

func (f Func) Name() string { return f.ID }

func (f Func) Enrich(ctx context.Context, list []worktree.Worktree) ([]worktree.Worktree, error) {
	return f.Fn(ctx, list)
}

// Pipeline is an ordered list of enrichers.
type Pipeline struct {
	steps  []Enricher
	logger *logging.ScopedLogger
}

// NewPipeline creates a pipeline running steps in order.
func NewPipeline(logger *logging.ScopedLogger, steps ...Enricher) *Pipeline {
	return &Pipeline{steps: steps, logger: logging.OrNop(logger)}
}

// Run applies every step. A step that errors, panics, or changes the list's
// length or order is logged and its output discarded.
func (p *Pipeline) Run(ctx context.Context, list []worktree.Worktree) []worktree.Worktree {
	for _, step := range p.steps {
		out, err := p.apply(ctx, step, list)
		if err != nil {
			p.logger.Warn("enricher failed", "enricher", step.Name(), "error", err)
			continue
		}
		list = out
	}
	return list
}

func (p *Pipeline) apply(ctx context.Context, step Enricher, list []worktree.Worktree) (out []worktree.Worktree, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	in := append([]worktree.Worktree(nil), list...)
	out, err = step.Enrich(ctx, in)
	if err != nil {
		return nil, err
	}
	if len(out) != len(list) {
		return nil, fmt.Errorf("returned %d entries for %d", len(out), len(list))
	}
	for i := range out {
		if out[i].Path != list[i].Path {
			return nil, fmt.Errorf("entry %d moved from %s to %s", i, list[i].Path, out[i].Path)
		}
	}
	return out, nil
}
