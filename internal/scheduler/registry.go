package scheduler

import (
	"sync"

	"github.com/gammazero/toposort"
)

// Registry holds the task definitions and the dependency graph for one run.
// The graph is mutable until Seal is called; after that every mutation
// fails with ErrSealed.
type Registry struct {
	mu         sync.RWMutex
	tasks      map[string]*Task    // All tasks indexed by name
	order      []string            // Registration order, used as the dispatch tie-break
	dependents map[string][]string // Maps task name -> tasks that depend on it
	sealed     bool
}

// NewRegistry creates an empty task registry.
func NewRegistry() *Registry {
	return &Registry{
		tasks:      make(map[string]*Task),
		dependents: make(map[string][]string),
	}
}

// AddTask registers a task by name. Dependencies already present on the
// task are recorded as edges; their endpoints are validated later, by
// Validate, since the dependency may not be registered yet.
func (r *Registry) AddTask(task *Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return ErrSealed
	}
	if _, exists := r.tasks[task.Name]; exists {
		return &DuplicateTaskError{Name: task.Name}
	}

	r.tasks[task.Name] = task
	r.order = append(r.order, task.Name)

	for _, dep := range task.DependsOn {
		r.dependents[dep] = append(r.dependents[dep], task.Name)
	}

	return nil
}

// AddDependencies adds one edge per dependency name to the named task.
// Every name is validated before any edge is inserted, so a failed call
// leaves the graph unchanged.
func (r *Registry) AddDependencies(taskName string, dependencyNames []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return ErrSealed
	}

	task, exists := r.tasks[taskName]
	if !exists {
		return &UnknownTaskError{Name: taskName}
	}
	for _, dep := range dependencyNames {
		if _, exists := r.tasks[dep]; !exists {
			return &UnknownDependencyError{Task: taskName, Dependency: dep}
		}
	}

	for _, dep := range dependencyNames {
		task.DependsOn = append(task.DependsOn, dep)
		r.dependents[dep] = append(r.dependents[dep], taskName)
	}

	return nil
}

// Seal freezes the graph. Called by the engine when execution starts.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// Validate checks that every dependency endpoint exists and that the
// graph is acyclic. Returns the task names in topological order, or a
// CyclicDependencyError naming the tasks on one detected cycle.
func (r *Registry) Validate() ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for name, task := range r.tasks {
		for _, dep := range task.DependsOn {
			if _, exists := r.tasks[dep]; !exists {
				return nil, &UnknownDependencyError{Task: name, Dependency: dep}
			}
		}
	}

	var edges []toposort.Edge
	for name, task := range r.tasks {
		if len(task.DependsOn) == 0 {
			// Dependency-free task: edge from nil keeps it in the sort
			edges = append(edges, toposort.Edge{nil, name})
		} else {
			for _, dep := range task.DependsOn {
				edges = append(edges, toposort.Edge{dep, name})
			}
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, &CyclicDependencyError{Cycle: r.findCycle()}
	}

	order := make([]string, 0, len(sorted))
	for _, name := range sorted {
		if name != nil {
			order = append(order, name.(string))
		}
	}

	return order, nil
}

// findCycle runs a depth-first search over the snapshotted edges and
// returns the names on the first cycle it encounters. Caller holds r.mu.
func (r *Registry) findCycle() []string {
	const (
		unvisited = iota
		onStack
		done
	)
	state := make(map[string]int, len(r.tasks))
	var stack []string
	var cycle []string

	var visit func(name string) bool
	visit = func(name string) bool {
		state[name] = onStack
		stack = append(stack, name)

		for _, dep := range r.tasks[name].DependsOn {
			switch state[dep] {
			case onStack:
				// Walk back up the stack to the revisited node
				for i := len(stack) - 1; i >= 0; i-- {
					cycle = append([]string{stack[i]}, cycle...)
					if stack[i] == dep {
						break
					}
				}
				cycle = append(cycle, dep)
				return true
			case unvisited:
				if visit(dep) {
					return true
				}
			}
		}

		stack = stack[:len(stack)-1]
		state[name] = done
		return false
	}

	for _, name := range r.order {
		if state[name] == unvisited && visit(name) {
			break
		}
	}
	return cycle
}

// Get returns a copy of the task by name.
func (r *Registry) Get(name string) (*Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	task, exists := r.tasks[name]
	if !exists {
		return nil, false
	}
	return cloneTask(task), true
}

// Tasks returns copies of all tasks in registration order.
func (r *Registry) Tasks() []*Task {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tasks := make([]*Task, 0, len(r.tasks))
	for _, name := range r.order {
		tasks = append(tasks, cloneTask(r.tasks[name]))
	}
	return tasks
}

// Len returns the number of registered tasks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}

// Dependents returns the names of the tasks that depend on the given task.
func (r *Registry) Dependents(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.dependents[name]...)
}

// Dependencies returns the dependency names of the given task.
func (r *Registry) Dependencies(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	task, exists := r.tasks[name]
	if !exists {
		return nil
	}
	return append([]string(nil), task.DependsOn...)
}

// MarkStatus records a task's state transition.
func (r *Registry) MarkStatus(name string, status TaskStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, exists := r.tasks[name]
	if !exists {
		return &UnknownTaskError{Name: name}
	}

	task.Status = status
	return nil
}

// Status returns the current status of the named task.
func (r *Registry) Status(name string) (TaskStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	task, exists := r.tasks[name]
	if !exists {
		return StatusPending, false
	}
	return task.Status, true
}
