package scheduler

import (
	"errors"
	"log/slog"
)

// Errors
var (
	ErrInvalidWorkerCount = errors.New("worker count must be at least 1")
)

// Task is a unit of work executed exactly once by the pool. Tasks are never
// resubmitted automatically on failure.
type Task interface {
	Execute() error
}

// TaskFunc is a function adapter for Task.
type TaskFunc func() error

func (f TaskFunc) Execute() error { return f() }

// Priority classifies a task for dequeue ordering.
type Priority int

const (
	Low Priority = iota
	Normal
	High
)

func (p Priority) String() string {
	switch p {
	case Low:
		return "low"
	case Normal:
		return "normal"
	case High:
		return "high"
	}
	return "unknown"
}

// DefaultRestartBudget is the total number of worker replacements a pool will
// perform after unhandled task failures.
const DefaultRestartBudget = 8

// Option configures a Pool.
type Option func(*Pool)

// WithErrorHandler registers a handler for task failures. With a handler
// installed, a failing task is reported and the worker continues. Without one,
// the failure costs the pool that worker (see WithRestartBudget).
func WithErrorHandler(h func(error)) Option {
	return func(p *Pool) { p.errHandler = h }
}

// WithLogger sets the pool's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithRestartBudget caps how many workers lost to unhandled task failures are
// replaced over the pool's lifetime. Once exhausted, the pool runs with
// reduced capacity.
func WithRestartBudget(n int) Option {
	return func(p *Pool) { p.restartBudget = n }
}
