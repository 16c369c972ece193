package scheduler

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSealed is returned when the graph is mutated after execution has started.
var ErrSealed = errors.New("task registry is sealed: execution has started")

// DuplicateTaskError is returned by AddTask when the name is already registered.
type DuplicateTaskError struct {
	Name string
}

func (e *DuplicateTaskError) Error() string {
	return fmt.Sprintf("task %q is already registered", e.Name)
}

// UnknownTaskError is returned by AddDependencies when the dependent task
// has not been registered.
type UnknownTaskError struct {
	Name string
}

func (e *UnknownTaskError) Error() string {
	return fmt.Sprintf("unknown task %q", e.Name)
}

// UnknownDependencyError is returned by AddDependencies when a named
// dependency has not been registered.
type UnknownDependencyError struct {
	Task       string
	Dependency string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("task %q depends on unknown task %q", e.Task, e.Dependency)
}

// CyclicDependencyError is returned by Validate when the graph contains a
// dependency cycle. Cycle holds the names of the tasks on one detected
// cycle, in traversal order.
type CyclicDependencyError struct {
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	if len(e.Cycle) == 0 {
		return "dependency cycle detected"
	}
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}
