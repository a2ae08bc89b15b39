// Package scheduler implements a single threaded cooperative task engine.
// Tasks are explicit state machines that return a Wait describing when they
// want to be resumed next: after a duration, when an event is raised, on
// the next tick, or never again.
package scheduler

import (
	"fmt"
	"time"
)

// WaitKind is the suspension reason of a task.
type WaitKind int

const (
	// Ready tasks are resumed on the next tick.
	Ready WaitKind = iota
	// Delay tasks are resumed once their deadline has passed.
	Delay
	// OnRaise tasks are resumed when their event is raised.
	OnRaise
	// Done tasks are deregistered.
	Done
)

func (k WaitKind) String() string {
	switch k {
	case Ready:
		return "ready"
	case Delay:
		return "delay"
	case OnRaise:
		return "event"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("WaitKind(%d)", int(k))
	}
}

// Wait is the suspension descriptor returned by a task resume.
type Wait struct {
	Kind     WaitKind
	Duration time.Duration
	Event    *Event
}

// Yield resumes the task on the next tick.
func Yield() Wait {
	return Wait{Kind: Ready}
}

// Sleep resumes the task once the duration has elapsed.
func Sleep(d time.Duration) Wait {
	return Wait{Kind: Delay, Duration: d}
}

// WaitFor resumes the task the next time the event is raised.
func WaitFor(e *Event) Wait {
	return Wait{Kind: OnRaise, Event: e}
}

// Finish ends the task.
func Finish() Wait {
	return Wait{Kind: Done}
}

// Task is a resumable unit of work. Every call to Resume runs the task up to
// its next suspension point.
type Task interface {
	Resume() (Wait, error)
}

// TaskFunc adapts a function to the Task interface.
type TaskFunc func() (Wait, error)

// Resume calls f.
func (f TaskFunc) Resume() (Wait, error) {
	return f()
}

// Event is a named synchronization point. Events are compared by identity.
type Event struct {
	name string
}

// NewEvent returns a new event with the given name.
func NewEvent(name string) *Event {
	return &Event{name: name}
}

// Name returns the event name.
func (e *Event) Name() string {
	return e.name
}

func (e *Event) String() string {
	return e.name
}

// TaskFault is the error reported for a task that returned an error or panicked.
type TaskFault struct {
	Task  string
	Panic bool
	Err   error
}

func (f *TaskFault) Error() string {
	if f.Panic {
		return fmt.Sprintf("task %s panicked: %v", f.Task, f.Err)
	}
	return fmt.Sprintf("task %s failed: %v", f.Task, f.Err)
}

func (f *TaskFault) Unwrap() error {
	return f.Err
}
