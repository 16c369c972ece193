package scheduler

import (
	"context"
	"io"
)

// TaskStatus represents the current state of a task within one run.
type TaskStatus int

const (
	StatusPending            TaskStatus = iota // Waiting for dependencies
	StatusReady                                // All dependencies succeeded, waiting for a slot
	StatusRunning                              // Currently executing
	StatusSuccess                              // Finished cleanly
	StatusSuccessWithWarning                   // Finished, but wrote warnings
	StatusFailure                              // Finished with an error
	StatusBlocked                              // Never ran: a dependency failed or was blocked
)

// Terminal reports whether the status is a final outcome.
func (s TaskStatus) Terminal() bool {
	switch s {
	case StatusSuccess, StatusSuccessWithWarning, StatusFailure, StatusBlocked:
		return true
	}
	return false
}

// OK reports whether the status unblocks dependents.
func (s TaskStatus) OK() bool {
	return s == StatusSuccess || s == StatusSuccessWithWarning
}

// String returns the human-readable status name.
func (s TaskStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusReady:
		return "ready"
	case StatusRunning:
		return "running"
	case StatusSuccess:
		return "success"
	case StatusSuccessWithWarning:
		return "success with warnings"
	case StatusFailure:
		return "failure"
	case StatusBlocked:
		return "blocked"
	}
	return "unknown"
}

// OutputSink is the write-only capture handed to a running task.
// The standard and error streams are buffered separately so the
// collator can choose which one to surface.
type OutputSink interface {
	Stdout() io.Writer
	Stderr() io.Writer
}

// Runner is the single asynchronous operation a task performs.
// Run is invoked at most once per execution and must return one of
// the terminal statuses.
type Runner interface {
	Run(ctx context.Context, out OutputSink) TaskStatus
}

// RunnerFunc adapts a plain function to the Runner interface.
type RunnerFunc func(ctx context.Context, out OutputSink) TaskStatus

func (f RunnerFunc) Run(ctx context.Context, out OutputSink) TaskStatus {
	return f(ctx, out)
}

// Task represents a unit of work in the dependency graph.
type Task struct {
	Name                      string     // Unique identifier
	Runner                    Runner     // The work itself
	DependsOn                 []string   // Task names this task depends on
	IsIncrementalBuildAllowed bool       // Forwarded to the runner, never interpreted here
	HadEmptyScript            bool       // Display hint: the task has nothing to do
	Status                    TaskStatus // Current state, maintained by the registry
}

func cloneTask(task *Task) *Task {
	if task == nil {
		return nil
	}

	cp := *task
	if task.DependsOn != nil {
		cp.DependsOn = append([]string(nil), task.DependsOn...)
	}
	return &cp
}
