package collate

import (
	"fmt"
	"strings"
	"sync"
)

// Report accumulates per-task verdicts over a run and composes the
// overall result.
type Report struct {
	mu            sync.Mutex
	allowWarnings bool
	failed        []string
	warned        []string
	blocked       []string
	sections      []string // Failure/warning sections in completion order
}

func newReport(allowWarnings bool) *Report {
	return &Report{allowWarnings: allowWarnings}
}

func (r *Report) addFailure(name, section string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, name)
	r.sections = append(r.sections, section)
}

func (r *Report) addWarning(name, section string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warned = append(r.warned, name)
	if !r.allowWarnings {
		r.sections = append(r.sections, section)
	}
}

func (r *Report) addBlocked(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blocked = append(r.blocked, name)
}

// Failed returns the names of tasks that ended in failure.
func (r *Report) Failed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.failed...)
}

// Warned returns the names of tasks that completed with warnings.
func (r *Report) Warned() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.warned...)
}

// Blocked returns the names of tasks that never ran.
func (r *Report) Blocked() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.blocked...)
}

// BuildFailedError is the aggregate failure for a run. Its message holds
// one section per offending task, each abridged.
type BuildFailedError struct {
	Failed  []string
	Warned  []string
	Blocked []string
	Message string
}

func (e *BuildFailedError) Error() string {
	return e.Message
}

// Err returns nil when the run succeeded, or a BuildFailedError when any
// task failed, or warned while warnings are not allowed.
func (r *Report) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	warningsFail := !r.allowWarnings && len(r.warned) > 0
	if len(r.failed) == 0 && !warningsFail {
		return nil
	}

	var b strings.Builder
	b.WriteString(r.summaryLine())
	for _, section := range r.sections {
		b.WriteString("\n\n")
		b.WriteString(section)
	}
	if len(r.blocked) > 0 {
		b.WriteString(fmt.Sprintf("\n\nskipped (blocked by failed dependencies): %s",
			strings.Join(r.blocked, ", ")))
	}

	return &BuildFailedError{
		Failed:  append([]string(nil), r.failed...),
		Warned:  append([]string(nil), r.warned...),
		Blocked: append([]string(nil), r.blocked...),
		Message: b.String(),
	}
}

func (r *Report) summaryLine() string {
	var parts []string
	if n := len(r.failed); n > 0 {
		parts = append(parts, fmt.Sprintf("%d %s failed", n, plural(n, "task")))
	}
	if n := len(r.warned); n > 0 && !r.allowWarnings {
		parts = append(parts, fmt.Sprintf("%d %s completed with warnings", n, plural(n, "task")))
	}
	return "build failed: " + strings.Join(parts, ", ")
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
