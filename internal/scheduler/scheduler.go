package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultMaxEventsPerTick bounds the events delivered in one tick.
const DefaultMaxEventsPerTick = 1024

// Config configures a scheduler. Zero values select the defaults.
type Config struct {
	Clock            Clock
	Sink             DiagnosticSink
	MaxEventsPerTick int
}

type entry struct {
	id       uint64
	name     string
	task     Task
	kind     WaitKind
	deadline time.Time
	done     bool
}

// Scheduler drives registered tasks. Tick must only be called from one
// goroutine; Register and Raise may also be called from other goroutines
// and from inside a resumed task.
type Scheduler struct {
	clock     Clock
	sink      DiagnosticSink
	maxEvents int

	mu      sync.Mutex
	nextID  uint64
	tasks   []*entry // registration order
	waiters map[*Event][]*entry
	queue   []*Event
}

// New returns a new scheduler.
func New(cfg Config) *Scheduler {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Sink == nil {
		cfg.Sink = nopSink{}
	}
	if cfg.MaxEventsPerTick <= 0 {
		cfg.MaxEventsPerTick = DefaultMaxEventsPerTick
	}
	return &Scheduler{
		clock:     cfg.Clock,
		sink:      cfg.Sink,
		maxEvents: cfg.MaxEventsPerTick,
		waiters:   map[*Event][]*entry{},
	}
}

// Clock returns the clock of the scheduler.
func (s *Scheduler) Clock() Clock {
	return s.clock
}

// Sink returns the diagnostic sink of the scheduler.
func (s *Scheduler) Sink() DiagnosticSink {
	return s.sink
}

// Register adds a task in the ready state, it is first resumed on the next tick.
func (s *Scheduler) Register(name string, task Task) {
	s.register(name, task, Yield())
}

// RegisterWaiting adds a task that is first resumed when the wait completes.
func (s *Scheduler) RegisterWaiting(name string, task Task, wait Wait) {
	s.register(name, task, wait)
}

func (s *Scheduler) register(name string, task Task, wait Wait) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	e := &entry{
		id:   s.nextID,
		name: name,
		task: task,
	}
	s.tasks = append(s.tasks, e)
	s.suspend(e, wait, s.clock.Now())
}

// suspend stores the wait of the entry. Must be called with mu held.
func (s *Scheduler) suspend(e *entry, wait Wait, now time.Time) {
	e.kind = wait.Kind
	switch wait.Kind {
	case Ready:
	case Delay:
		e.deadline = now.Add(wait.Duration)
	case OnRaise:
		if wait.Event == nil {
			s.deregister(e)
			s.sink.TaskFault(e.name, &TaskFault{Task: e.name, Err: errors.New("wait for nil event")})
			return
		}
		s.waiters[wait.Event] = append(s.waiters[wait.Event], e)
	case Done:
		s.deregister(e)
	default:
		s.deregister(e)
		s.sink.TaskFault(e.name, &TaskFault{Task: e.name, Err: fmt.Errorf("unsupported wait kind %s", wait.Kind)})
	}
}

// deregister removes the entry from the task list. Event waiter lists drop
// done entries when they are delivered. Must be called with mu held.
func (s *Scheduler) deregister(e *entry) {
	e.done = true
	e.kind = Done
	for i, t := range s.tasks {
		if t == e {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			return
		}
	}
}

// Raise queues the event, waiting tasks are resumed by the current or next
// tick in registration order.
func (s *Scheduler) Raise(e *Event) {
	s.mu.Lock()
	s.queue = append(s.queue, e)
	s.mu.Unlock()
}

// Len returns the number of registered tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Waiting returns the number of tasks waiting for the event.
func (s *Scheduler) Waiting(e *Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, w := range s.waiters[e] {
		if !w.done {
			n++
		}
	}
	return n
}

// Tick runs one scheduler pass. First all ready tasks and delayed tasks past
// their deadline are resumed in registration order, then the event queue is
// drained breadth first: events raised by resumed tasks are delivered in the
// same tick after the already queued ones.
func (s *Scheduler) Tick() {
	now := s.clock.Now()

	s.mu.Lock()
	var due []*entry
	for _, e := range s.tasks {
		switch e.kind {
		case Ready:
			due = append(due, e)
		case Delay:
			if !now.Before(e.deadline) {
				due = append(due, e)
			}
		default:
		}
	}
	s.mu.Unlock()

	for _, e := range due {
		s.resume(e)
	}

	for delivered := 0; ; delivered++ {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		if delivered >= s.maxEvents {
			pending := len(s.queue)
			s.mu.Unlock()
			s.sink.EventBacklog(pending)
			return
		}

		ev := s.queue[0]
		s.queue = s.queue[1:]
		// tasks registering for the event while it is delivered wait for the next raise
		waiters := s.waiters[ev]
		delete(s.waiters, ev)
		s.mu.Unlock()

		for _, e := range waiters {
			s.resume(e)
		}
	}
}

// resume runs the task up to its next suspension point and stores the new
// wait. A returned error or a panic deregisters the task.
func (s *Scheduler) resume(e *entry) {
	s.mu.Lock()
	if e.done {
		s.mu.Unlock()
		return
	}
	e.kind = Ready
	s.mu.Unlock()

	wait, err := s.call(e)

	s.mu.Lock()
	if e.done {
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.deregister(e)
		s.mu.Unlock()
		s.sink.TaskFault(e.name, err)
		return
	}
	s.suspend(e, wait, s.clock.Now())
	s.mu.Unlock()
}

func (s *Scheduler) call(e *entry) (wait Wait, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &TaskFault{Task: e.name, Panic: true, Err: fmt.Errorf("%v", r)}
		}
	}()

	wait, err = e.task.Resume()
	if err != nil {
		return wait, &TaskFault{Task: e.name, Err: err}
	}
	return wait, nil
}

// Run ticks the scheduler at the interval until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("invalid tick interval %s", interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Tick()
		}
	}
}
