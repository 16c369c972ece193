// Package runner contains the concurrency-bounded execution engine. It
// walks the registry's graph in dependency order, dispatches ready tasks
// to a bounded pool of slots, and hands each finished task's capture to
// the collator in completion order.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aristath/buildrunner/internal/collate"
	"github.com/aristath/buildrunner/internal/ctxlog"
	"github.com/aristath/buildrunner/internal/events"
	"github.com/aristath/buildrunner/internal/scheduler"
	"github.com/aristath/buildrunner/internal/terminal"
)

// Options is the immutable run configuration, fixed at construction.
type Options struct {
	Quiet               bool              // Suppress non-failure output
	Parallelism         string            // Positive integer literal or "max"
	ChangedProjectsOnly bool              // Opaque passthrough for task runners
	AllowWarnings       bool              // Warnings do not fail the run
	Terminal            terminal.Terminal // Defaults to a console on the process streams
	Bus                 *events.Bus       // Optional lifecycle event bus
}

// TaskResult is the recorded outcome of one task.
type TaskResult struct {
	Name     string
	Status   scheduler.TaskStatus
	Duration time.Duration
}

// completion travels from a worker slot back to the scheduling loop.
type completion struct {
	name     string
	status   scheduler.TaskStatus
	capture  *collate.Capture
	duration time.Duration
}

// Engine executes a sealed registry with bounded parallelism.
type Engine struct {
	registry *scheduler.Registry
	collator *collate.Collator
	opts     Options
	slots    int // 0 = unbounded

	mu       sync.Mutex
	results  []TaskResult
	executed bool
}

// New creates an engine for the given registry. Parallelism is parsed
// here, not at Execute time: an invalid value fails construction.
func New(registry *scheduler.Registry, opts Options) (*Engine, error) {
	slots, err := ParseParallelism(opts.Parallelism)
	if err != nil {
		return nil, err
	}

	term := opts.Terminal
	if term == nil {
		term = terminal.NewConsole(os.Stdout, os.Stderr)
	}

	return &Engine{
		registry: registry,
		collator: collate.New(term, collate.Options{
			Quiet:         opts.Quiet,
			AllowWarnings: opts.AllowWarnings,
		}),
		opts:  opts,
		slots: slots,
	}, nil
}

// Execute runs every task to a terminal state and returns the composed
// run verdict. Cycle detection happens synchronously before any task is
// dispatched; a CyclicDependencyError means nothing ran.
func (e *Engine) Execute(ctx context.Context) error {
	e.mu.Lock()
	if e.executed {
		e.mu.Unlock()
		return errors.New("engine already executed: build a new engine per run")
	}
	e.executed = true
	e.mu.Unlock()

	logger := ctxlog.FromContext(ctx)

	order, err := e.registry.Validate()
	if err != nil {
		return err
	}
	e.registry.Seal()

	total := e.registry.Len()
	logger.Debug("executing task graph", "tasks", total, "slots", e.slots)
	if total == 0 {
		return e.collator.Report().Err()
	}

	remaining := make(map[string]int, total)
	for _, task := range e.registry.Tasks() {
		remaining[task.Name] = len(task.DependsOn)
	}

	readyCh := make(chan string, total)
	doneCh := make(chan completion, total)

	// Seed dependency-free tasks in topological order so the tie-break
	// among independent roots is deterministic.
	for _, name := range order {
		if remaining[name] == 0 {
			_ = e.registry.MarkStatus(name, scheduler.StatusReady)
			readyCh <- name
		}
	}

	// The dispatcher feeds ready tasks into the slot pool. With a slot
	// limit, g.Go blocks until a slot frees; only the dispatcher blocks,
	// never the scheduling loop.
	var g errgroup.Group
	if e.slots > 0 {
		g.SetLimit(e.slots)
	}
	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		for name := range readyCh {
			name := name
			g.Go(func() error {
				doneCh <- e.runTask(ctx, name)
				return nil
			})
		}
	}()

	finished := 0
	for finished < total {
		c := <-doneCh
		finished++

		_ = e.registry.MarkStatus(c.name, c.status)
		task, _ := e.registry.Get(c.name)
		e.collator.TaskFinished(task, c.capture)
		e.record(TaskResult{Name: c.name, Status: c.status, Duration: c.duration})
		e.publishFinished(c)

		if c.status.OK() {
			for _, dep := range e.registry.Dependents(c.name) {
				remaining[dep]--
				if remaining[dep] > 0 {
					continue
				}
				if status, _ := e.registry.Status(dep); status != scheduler.StatusPending {
					continue
				}
				_ = e.registry.MarkStatus(dep, scheduler.StatusReady)
				readyCh <- dep
			}
		} else {
			finished += e.blockDependents(ctx, c.name)
		}

		e.publishProgress(total)
	}

	close(readyCh)
	<-dispatchDone
	_ = g.Wait()

	logger.Debug("task graph complete", "tasks", total)
	return e.collator.Report().Err()
}

// runTask executes one task inside a worker slot.
func (e *Engine) runTask(ctx context.Context, name string) completion {
	logger := ctxlog.FromContext(ctx).With("task", name)

	_ = e.registry.MarkStatus(name, scheduler.StatusRunning)
	if e.opts.Bus != nil {
		e.opts.Bus.Publish(events.TopicTask, events.TaskStartedEvent{
			Name:      name,
			Timestamp: time.Now(),
		})
	}

	task, _ := e.registry.Get(name)
	capture := collate.NewCapture()

	logger.Debug("task started")
	start := time.Now()
	status := task.Runner.Run(ctx, capture)
	duration := time.Since(start)

	if !status.Terminal() || status == scheduler.StatusBlocked {
		// The runner contract requires a run outcome; anything else is
		// treated as a failure of the task itself.
		fmt.Fprintf(capture.Stderr(), "task returned invalid status %q\n", status)
		status = scheduler.StatusFailure
	}

	logger.Debug("task finished", "status", status.String(), "duration", duration)
	return completion{name: name, status: status, capture: capture, duration: duration}
}

// blockDependents transitively marks every non-terminal dependent of the
// given task as blocked. Returns the number of tasks it finished.
func (e *Engine) blockDependents(ctx context.Context, name string) int {
	logger := ctxlog.FromContext(ctx)
	blocked := 0

	queue := []string{name}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, dep := range e.registry.Dependents(current) {
			status, ok := e.registry.Status(dep)
			if !ok || status.Terminal() {
				continue
			}

			logger.Debug("blocking task", "task", dep, "blockedBy", current)
			_ = e.registry.MarkStatus(dep, scheduler.StatusBlocked)
			task, _ := e.registry.Get(dep)
			e.collator.TaskFinished(task, nil)
			e.record(TaskResult{Name: dep, Status: scheduler.StatusBlocked})
			if e.opts.Bus != nil {
				e.opts.Bus.Publish(events.TopicTask, events.TaskBlockedEvent{
					Name:      dep,
					BlockedBy: current,
					Timestamp: time.Now(),
				})
			}
			blocked++
			queue = append(queue, dep)
		}
	}

	return blocked
}

func (e *Engine) record(result TaskResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.results = append(e.results, result)
}

// Results returns per-task outcomes in completion order. Only meaningful
// after Execute has returned.
func (e *Engine) Results() []TaskResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]TaskResult(nil), e.results...)
}

// Report returns the collator's aggregate report.
func (e *Engine) Report() *collate.Report {
	return e.collator.Report()
}

func (e *Engine) publishFinished(c completion) {
	if e.opts.Bus == nil {
		return
	}
	e.opts.Bus.Publish(events.TopicTask, events.TaskFinishedEvent{
		Name:      c.name,
		Status:    c.status,
		Duration:  c.duration,
		Timestamp: time.Now(),
	})
}

func (e *Engine) publishProgress(total int) {
	if e.opts.Bus == nil {
		return
	}

	progress := events.RunProgressEvent{Total: total, Timestamp: time.Now()}
	for _, task := range e.registry.Tasks() {
		switch task.Status {
		case scheduler.StatusRunning:
			progress.Running++
		case scheduler.StatusSuccess:
			progress.Succeeded++
		case scheduler.StatusSuccessWithWarning:
			progress.Warned++
		case scheduler.StatusFailure:
			progress.Failed++
		case scheduler.StatusBlocked:
			progress.Blocked++
		}
	}
	e.opts.Bus.Publish(events.TopicRun, progress)
}
