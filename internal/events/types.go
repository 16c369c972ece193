package events

import (
	"time"

	"github.com/aristath/buildrunner/internal/scheduler"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	TaskName() string
}

// Topic constants
const (
	TopicTask = "task"
	TopicRun  = "run"
)

// Event type constants
const (
	EventTypeTaskStarted  = "task.started"
	EventTypeTaskFinished = "task.finished"
	EventTypeTaskBlocked  = "task.blocked"
	EventTypeRunProgress  = "run.progress"
)

// TaskStartedEvent is published when a task is dispatched to a slot.
type TaskStartedEvent struct {
	Name      string
	Timestamp time.Time
}

func (e TaskStartedEvent) EventType() string { return EventTypeTaskStarted }
func (e TaskStartedEvent) TaskName() string  { return e.Name }

// TaskFinishedEvent is published when a task's run resolves.
type TaskFinishedEvent struct {
	Name      string
	Status    scheduler.TaskStatus
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskFinishedEvent) EventType() string { return EventTypeTaskFinished }
func (e TaskFinishedEvent) TaskName() string  { return e.Name }

// TaskBlockedEvent is published when a task is marked blocked because a
// dependency did not succeed.
type TaskBlockedEvent struct {
	Name      string
	BlockedBy string
	Timestamp time.Time
}

func (e TaskBlockedEvent) EventType() string { return EventTypeTaskBlocked }
func (e TaskBlockedEvent) TaskName() string  { return e.Name }

// RunProgressEvent is published after every terminal transition.
type RunProgressEvent struct {
	Total     int
	Running   int
	Succeeded int
	Warned    int
	Failed    int
	Blocked   int
	Timestamp time.Time
}

func (e RunProgressEvent) EventType() string { return EventTypeRunProgress }
func (e RunProgressEvent) TaskName() string  { return "" }

// Done reports whether every task has reached a terminal state.
func (e RunProgressEvent) Done() bool {
	return e.Succeeded+e.Warned+e.Failed+e.Blocked == e.Total
}
