package runner

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aristath/buildrunner/internal/scheduler"
	"github.com/aristath/buildrunner/internal/terminal"
)

// succeed returns a runner that records its completion in done.
func succeed(mu *sync.Mutex, done map[string]bool, name string, deps []string, t *testing.T) scheduler.Runner {
	return scheduler.RunnerFunc(func(ctx context.Context, out scheduler.OutputSink) scheduler.TaskStatus {
		mu.Lock()
		for _, dep := range deps {
			if !done[dep] {
				t.Errorf("task %q dispatched before dependency %q finished", name, dep)
			}
		}
		mu.Unlock()

		time.Sleep(time.Millisecond)

		mu.Lock()
		done[name] = true
		mu.Unlock()
		return scheduler.StatusSuccess
	})
}

func newTestEngine(t *testing.T, reg *scheduler.Registry, opts Options) (*Engine, *terminal.Memory) {
	t.Helper()
	term := terminal.NewMemory()
	opts.Terminal = term
	if opts.Parallelism == "" {
		opts.Parallelism = ParallelismMax
	}
	engine, err := New(reg, opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return engine, term
}

// TestEngineDependencyOrdering tests that no task starts before its
// dependencies are terminal-successful.
func TestEngineDependencyOrdering(t *testing.T) {
	graph := map[string][]string{
		"a": nil,
		"b": {"a"},
		"c": {"a"},
		"d": {"b", "c"},
		"e": nil,
		"f": {"d", "e"},
	}

	reg := scheduler.NewRegistry()
	var mu sync.Mutex
	done := make(map[string]bool)
	for name, deps := range graph {
		reg.AddTask(&scheduler.Task{Name: name, Runner: succeed(&mu, done, name, deps, t)})
	}
	for name, deps := range graph {
		if len(deps) > 0 {
			reg.AddDependencies(name, deps)
		}
	}

	engine, _ := newTestEngine(t, reg, Options{Parallelism: "2"})
	if err := engine.Execute(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if len(done) != len(graph) {
		t.Errorf("%d tasks completed, want %d", len(done), len(graph))
	}
}

// TestEngineRandomDAGs exercises dependency ordering over random graphs.
func TestEngineRandomDAGs(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		seed := seed
		t.Run(fmt.Sprintf("seed %d", seed), func(t *testing.T) {
			rng := rand.New(rand.NewSource(seed))
			const n = 16

			graph := make(map[string][]string, n)
			names := make([]string, n)
			for i := 0; i < n; i++ {
				names[i] = fmt.Sprintf("task-%02d", i)
			}
			// Edges only point backwards, so the graph is acyclic by
			// construction.
			for i := 1; i < n; i++ {
				var deps []string
				for j := 0; j < i; j++ {
					if rng.Intn(4) == 0 {
						deps = append(deps, names[j])
					}
				}
				graph[names[i]] = deps
			}
			graph[names[0]] = nil

			reg := scheduler.NewRegistry()
			var mu sync.Mutex
			done := make(map[string]bool)
			for _, name := range names {
				reg.AddTask(&scheduler.Task{Name: name, Runner: succeed(&mu, done, name, graph[name], t)})
			}
			for _, name := range names {
				if deps := graph[name]; len(deps) > 0 {
					reg.AddDependencies(name, deps)
				}
			}

			engine, _ := newTestEngine(t, reg, Options{Parallelism: "3"})
			if err := engine.Execute(context.Background()); err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if len(done) != n {
				t.Errorf("%d tasks completed, want %d", len(done), n)
			}
		})
	}
}

// TestEngineIndependentTasksRunOnce tests that unrelated tasks each run
// exactly once regardless of registration order.
func TestEngineIndependentTasksRunOnce(t *testing.T) {
	var first, second atomic.Int32

	reg := scheduler.NewRegistry()
	reg.AddTask(&scheduler.Task{Name: "first", Runner: scheduler.RunnerFunc(
		func(ctx context.Context, out scheduler.OutputSink) scheduler.TaskStatus {
			first.Add(1)
			return scheduler.StatusSuccess
		})})
	reg.AddTask(&scheduler.Task{Name: "second", Runner: scheduler.RunnerFunc(
		func(ctx context.Context, out scheduler.OutputSink) scheduler.TaskStatus {
			second.Add(1)
			return scheduler.StatusSuccess
		})})

	engine, _ := newTestEngine(t, reg, Options{})
	if err := engine.Execute(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if first.Load() != 1 || second.Load() != 1 {
		t.Errorf("runs = (%d, %d), want (1, 1)", first.Load(), second.Load())
	}
}

// TestEngineParallelismLimit tests that no more than the configured
// number of tasks run at once.
func TestEngineParallelismLimit(t *testing.T) {
	var current, peak atomic.Int32

	reg := scheduler.NewRegistry()
	for i := 0; i < 6; i++ {
		reg.AddTask(&scheduler.Task{Name: fmt.Sprintf("task-%d", i), Runner: scheduler.RunnerFunc(
			func(ctx context.Context, out scheduler.OutputSink) scheduler.TaskStatus {
				n := current.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				current.Add(-1)
				return scheduler.StatusSuccess
			})})
	}

	engine, _ := newTestEngine(t, reg, Options{Parallelism: "2"})
	if err := engine.Execute(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if peak.Load() > 2 {
		t.Errorf("observed %d concurrent tasks, limit is 2", peak.Load())
	}
}

// TestEngineCycleFailsSynchronously tests that a cyclic graph fails
// before any task is dispatched.
func TestEngineCycleFailsSynchronously(t *testing.T) {
	var dispatched atomic.Int32
	count := scheduler.RunnerFunc(func(ctx context.Context, out scheduler.OutputSink) scheduler.TaskStatus {
		dispatched.Add(1)
		return scheduler.StatusSuccess
	})

	reg := scheduler.NewRegistry()
	reg.AddTask(&scheduler.Task{Name: "a", Runner: count})
	reg.AddTask(&scheduler.Task{Name: "b", Runner: count})
	reg.AddDependencies("a", []string{"b"})
	reg.AddDependencies("b", []string{"a"})

	engine, _ := newTestEngine(t, reg, Options{})
	err := engine.Execute(context.Background())

	var cyc *scheduler.CyclicDependencyError
	if !errors.As(err, &cyc) {
		t.Fatalf("Execute() error = %v, want CyclicDependencyError", err)
	}
	if dispatched.Load() != 0 {
		t.Errorf("%d tasks dispatched despite cycle, want 0", dispatched.Load())
	}
}

// TestEngineBlockingPropagation tests that a failure blocks dependents
// transitively while unrelated tasks still run.
func TestEngineBlockingPropagation(t *testing.T) {
	var unrelatedRan atomic.Bool

	reg := scheduler.NewRegistry()
	reg.AddTask(&scheduler.Task{Name: "a", Runner: scheduler.RunnerFunc(
		func(ctx context.Context, out scheduler.OutputSink) scheduler.TaskStatus {
			fmt.Fprintln(out.Stderr(), "a exploded")
			return scheduler.StatusFailure
		})})
	reg.AddTask(&scheduler.Task{Name: "b", Runner: scheduler.RunnerFunc(
		func(ctx context.Context, out scheduler.OutputSink) scheduler.TaskStatus {
			t.Error("blocked task b was dispatched")
			return scheduler.StatusSuccess
		})})
	reg.AddTask(&scheduler.Task{Name: "c", Runner: scheduler.RunnerFunc(
		func(ctx context.Context, out scheduler.OutputSink) scheduler.TaskStatus {
			t.Error("blocked task c was dispatched")
			return scheduler.StatusSuccess
		})})
	reg.AddTask(&scheduler.Task{Name: "d", Runner: scheduler.RunnerFunc(
		func(ctx context.Context, out scheduler.OutputSink) scheduler.TaskStatus {
			unrelatedRan.Store(true)
			return scheduler.StatusSuccess
		})})
	reg.AddDependencies("b", []string{"a"})
	reg.AddDependencies("c", []string{"b"})

	engine, _ := newTestEngine(t, reg, Options{})
	err := engine.Execute(context.Background())
	if err == nil {
		t.Fatal("Execute() error = nil, want build failure")
	}
	if !strings.Contains(err.Error(), "a exploded") {
		t.Errorf("composed error missing failure diagnostics: %v", err)
	}
	if !unrelatedRan.Load() {
		t.Error("unrelated task d never ran")
	}

	statuses := make(map[string]scheduler.TaskStatus)
	for _, r := range engine.Results() {
		statuses[r.Name] = r.Status
	}
	want := map[string]scheduler.TaskStatus{
		"a": scheduler.StatusFailure,
		"b": scheduler.StatusBlocked,
		"c": scheduler.StatusBlocked,
		"d": scheduler.StatusSuccess,
	}
	for name, wantStatus := range want {
		if statuses[name] != wantStatus {
			t.Errorf("task %q status = %v, want %v", name, statuses[name], wantStatus)
		}
	}
}

// TestEngineFailureDoesNotAbortSiblings tests that an already-running
// sibling finishes after another task fails.
func TestEngineFailureDoesNotAbortSiblings(t *testing.T) {
	var slowFinished atomic.Bool

	reg := scheduler.NewRegistry()
	reg.AddTask(&scheduler.Task{Name: "fast-fail", Runner: scheduler.RunnerFunc(
		func(ctx context.Context, out scheduler.OutputSink) scheduler.TaskStatus {
			return scheduler.StatusFailure
		})})
	reg.AddTask(&scheduler.Task{Name: "slow", Runner: scheduler.RunnerFunc(
		func(ctx context.Context, out scheduler.OutputSink) scheduler.TaskStatus {
			time.Sleep(30 * time.Millisecond)
			slowFinished.Store(true)
			return scheduler.StatusSuccess
		})})

	engine, _ := newTestEngine(t, reg, Options{})
	if err := engine.Execute(context.Background()); err == nil {
		t.Fatal("Execute() error = nil, want build failure")
	}

	if !slowFinished.Load() {
		t.Error("sibling task was aborted by an unrelated failure")
	}
}

// TestEngineWarningPolicy tests the allowWarnings verdict switch.
func TestEngineWarningPolicy(t *testing.T) {
	build := func() *scheduler.Registry {
		reg := scheduler.NewRegistry()
		reg.AddTask(&scheduler.Task{Name: "lint", Runner: scheduler.RunnerFunc(
			func(ctx context.Context, out scheduler.OutputSink) scheduler.TaskStatus {
				fmt.Fprintln(out.Stderr(), "unused variable x")
				return scheduler.StatusSuccessWithWarning
			})})
		return reg
	}

	t.Run("warnings fail the run by default", func(t *testing.T) {
		engine, _ := newTestEngine(t, build(), Options{})
		err := engine.Execute(context.Background())
		if err == nil || !strings.Contains(err.Error(), "unused variable x") {
			t.Errorf("Execute() error = %v, want warning report", err)
		}
	})

	t.Run("warnings pass when allowed", func(t *testing.T) {
		engine, term := newTestEngine(t, build(), Options{AllowWarnings: true})
		if err := engine.Execute(context.Background()); err != nil {
			t.Fatalf("Execute() error = %v, want nil", err)
		}
		if !strings.Contains(term.Text(), "unused variable x") {
			t.Error("allowed warning text not surfaced")
		}
	})
}

// TestEngineCompletionOrderEmission tests that surfaced blocks follow
// completion order, not registration order.
func TestEngineCompletionOrderEmission(t *testing.T) {
	reg := scheduler.NewRegistry()
	reg.AddTask(&scheduler.Task{Name: "slow", Runner: scheduler.RunnerFunc(
		func(ctx context.Context, out scheduler.OutputSink) scheduler.TaskStatus {
			time.Sleep(50 * time.Millisecond)
			fmt.Fprintln(out.Stderr(), "slow failed")
			return scheduler.StatusFailure
		})})
	reg.AddTask(&scheduler.Task{Name: "quick", Runner: scheduler.RunnerFunc(
		func(ctx context.Context, out scheduler.OutputSink) scheduler.TaskStatus {
			fmt.Fprintln(out.Stderr(), "quick failed")
			return scheduler.StatusFailure
		})})

	engine, term := newTestEngine(t, reg, Options{})
	if err := engine.Execute(context.Background()); err == nil {
		t.Fatal("Execute() error = nil, want build failure")
	}

	blocks := term.Errors()
	if len(blocks) != 2 {
		t.Fatalf("got %d failure blocks, want 2", len(blocks))
	}
	if !strings.Contains(blocks[0], "quick failed") {
		t.Errorf("first emitted block is not the first completion: %q", blocks[0])
	}
}

// TestEngineConstruction tests eager parallelism validation and reuse
// protection.
func TestEngineConstruction(t *testing.T) {
	t.Run("invalid parallelism fails construction", func(t *testing.T) {
		_, err := New(scheduler.NewRegistry(), Options{Parallelism: "plenty"})
		var invalid *InvalidParallelismError
		if !errors.As(err, &invalid) {
			t.Fatalf("New() error = %v, want InvalidParallelismError", err)
		}
	})

	t.Run("empty registry resolves", func(t *testing.T) {
		engine, _ := newTestEngine(t, scheduler.NewRegistry(), Options{})
		if err := engine.Execute(context.Background()); err != nil {
			t.Errorf("Execute() error = %v, want nil", err)
		}
	})

	t.Run("execute is single use", func(t *testing.T) {
		engine, _ := newTestEngine(t, scheduler.NewRegistry(), Options{})
		if err := engine.Execute(context.Background()); err != nil {
			t.Fatalf("first Execute() error = %v", err)
		}
		if err := engine.Execute(context.Background()); err == nil {
			t.Error("second Execute() succeeded, want error")
		}
	})

	t.Run("execution seals the registry", func(t *testing.T) {
		reg := scheduler.NewRegistry()
		reg.AddTask(&scheduler.Task{Name: "only", Runner: scheduler.RunnerFunc(
			func(ctx context.Context, out scheduler.OutputSink) scheduler.TaskStatus {
				return scheduler.StatusSuccess
			})})

		engine, _ := newTestEngine(t, reg, Options{})
		if err := engine.Execute(context.Background()); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if err := reg.AddTask(&scheduler.Task{Name: "late"}); !errors.Is(err, scheduler.ErrSealed) {
			t.Errorf("AddTask() after Execute error = %v, want ErrSealed", err)
		}
	})
}
