// Package pipeline runs a fixed, ordered list of steps over one state value.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrNoSteps is returned by New when the runner would do nothing.
var ErrNoSteps = errors.New("pipeline: at least one step is required")

// Step is one named stage. When is an optional guard; a nil guard always runs.
type Step[S any] struct {
	Name string
	Run  func(ctx context.Context, state *S) error
	When func(state *S) bool
}

// Runner executes its steps in order and stops at the first error.
type Runner[S any] struct {
	name   string
	steps  []Step[S]
	logger *slog.Logger
}

// New builds a runner. Step names must be unique and non-empty.
func New[S any](name string, steps ...Step[S]) (*Runner[S], error) {
	if len(steps) == 0 {
		return nil, ErrNoSteps
	}
	seen := make(map[string]bool, len(steps))
	for i, step := range steps {
		if step.Name == "" {
			return nil, fmt.Errorf("pipeline %s: step %d has no name", name, i)
		}
		if step.Run == nil {
			return nil, fmt.Errorf("pipeline %s: step %s has no run func", name, step.Name)
		}
		if seen[step.Name] {
			return nil, fmt.Errorf("pipeline %s: duplicate step %s", name, step.Name)
		}
		seen[step.Name] = true
	}
	return &Runner[S]{
		name:   name,
		steps:  steps,
		logger: slog.Default().With("component", "pipeline", "pipeline", name),
	}, nil
}

// Steps returns the step names in execution order.
func (r *Runner[S]) Steps() []string {
	names := make([]string, len(r.steps))
	for i, step := range r.steps {
		names[i] = step.Name
	}
	return names
}

// Run passes state through every step whose guard allows it.
func (r *Runner[S]) Run(ctx context.Context, state *S) error {
	for _, step := range r.steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s before %s: %w", r.name, step.Name, err)
		}
		if step.When != nil && !step.When(state) {
			r.logger.Debug("step skipped", "step", step.Name)
			continue
		}

		start := time.Now()
		if err := step.Run(ctx, state); err != nil {
			r.logger.Error("step failed", "step", step.Name, "error", err)
			return fmt.Errorf("%s: %w", step.Name, err)
		}
		r.logger.Info("step completed", "step", step.Name, "duration", time.Since(start))
	}
	return nil
}
