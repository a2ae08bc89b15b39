package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

type recordingSink struct {
	mu      sync.Mutex
	faults  []string
	errs    []error
	backlog []int
	reports []string
}

func (r *recordingSink) TaskFault(task string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.faults = append(r.faults, task)
	r.errs = append(r.errs, err)
}

func (r *recordingSink) EventBacklog(pending int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backlog = append(r.backlog, pending)
}

func (r *recordingSink) Report(source string, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, source)
}

func newTestScheduler(t *testing.T) (*Scheduler, *ManualClock, *recordingSink) {
	t.Helper()
	clock := NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	sink := &recordingSink{}
	return New(Config{Clock: clock, Sink: sink}), clock, sink
}

func TestRaiseResumesWaitersOnceInRegistrationOrder(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	ev := NewEvent("changed")

	var order []int
	for i := range 5 {
		s.RegisterWaiting("waiter", TaskFunc(func() (Wait, error) {
			order = append(order, i)
			return Finish(), nil
		}), WaitFor(ev))
	}
	assert.Equal(t, 5, s.Waiting(ev))

	s.Raise(ev)
	s.Tick()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
	assert.Equal(t, 0, s.Len())

	s.Raise(ev)
	s.Tick()
	assert.Len(t, order, 5)
}

func TestReregisterDuringRaiseIsNotResumedAgain(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	ev := NewEvent("changed")

	resumes := 0
	s.RegisterWaiting("repeat", TaskFunc(func() (Wait, error) {
		resumes++
		return WaitFor(ev), nil
	}), WaitFor(ev))

	s.Raise(ev)
	s.Tick()
	assert.Equal(t, 1, resumes)
	assert.Equal(t, 1, s.Waiting(ev))

	s.Raise(ev)
	s.Tick()
	assert.Equal(t, 2, resumes)
}

func TestEventsRaisedInsideTaskAreDeliveredBreadthFirst(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	first := NewEvent("first")
	second := NewEvent("second")
	third := NewEvent("third")

	var order []string
	s.RegisterWaiting("a", TaskFunc(func() (Wait, error) {
		order = append(order, "a")
		s.Raise(third)
		return Finish(), nil
	}), WaitFor(first))
	s.RegisterWaiting("b", TaskFunc(func() (Wait, error) {
		order = append(order, "b")
		return Finish(), nil
	}), WaitFor(second))
	s.RegisterWaiting("c", TaskFunc(func() (Wait, error) {
		order = append(order, "c")
		return Finish(), nil
	}), WaitFor(third))

	s.Raise(first)
	s.Raise(second)
	s.Tick()
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestDelayedTasks(t *testing.T) {
	s, clock, _ := newTestScheduler(t)

	runs := 0
	s.Every("poll", time.Second, func() (bool, error) {
		runs++
		return runs < 3, nil
	})

	s.Tick()
	assert.Equal(t, 0, runs)

	clock.Advance(999 * time.Millisecond)
	s.Tick()
	assert.Equal(t, 0, runs)

	for range 5 {
		clock.Advance(time.Second)
		s.Tick()
	}
	assert.Equal(t, 3, runs)
	assert.Equal(t, 0, s.Len())
}

func TestAfterFiresOnce(t *testing.T) {
	s, clock, _ := newTestScheduler(t)

	fired := 0
	s.After("cleanup", 2*time.Second, func() { fired++ })
	assert.Equal(t, 1, s.Len())

	clock.Advance(time.Second)
	s.Tick()
	assert.Equal(t, 0, fired)

	clock.Advance(time.Second)
	s.Tick()
	s.Tick()
	assert.Equal(t, 1, fired)
	assert.Equal(t, 0, s.Len())
}

func TestRegisteredTaskResumesOnNextTick(t *testing.T) {
	s, _, _ := newTestScheduler(t)

	var steps []string
	step := 0
	s.Register("steps", TaskFunc(func() (Wait, error) {
		step++
		steps = append(steps, "step")
		if step == 2 {
			return Finish(), nil
		}
		return Yield(), nil
	}))

	s.Tick()
	assert.Len(t, steps, 1)
	s.Tick()
	assert.Len(t, steps, 2)
	s.Tick()
	assert.Len(t, steps, 2)
}

func TestFaultDeregistersOnlyFaultingTask(t *testing.T) {
	s, clock, sink := newTestScheduler(t)
	errBroken := errors.New("broken")

	healthy := 0
	s.Every("healthy", time.Second, func() (bool, error) {
		healthy++
		return true, nil
	})
	s.Every("failing", time.Second, func() (bool, error) {
		return false, errBroken
	})
	s.Every("panicking", time.Second, func() (bool, error) {
		panic("boom")
	})

	for range 3 {
		clock.Advance(time.Second)
		s.Tick()
	}

	assert.Equal(t, 3, healthy)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, []string{"failing", "panicking"}, sink.faults)
	assert.True(t, errors.Is(sink.errs[0], errBroken))

	var fault *TaskFault
	assert.True(t, errors.As(sink.errs[1], &fault))
	assert.True(t, fault.Panic)
}

func TestOnEvent(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	ev := NewEvent("area")

	calls := 0
	s.OnEvent("subscriber", ev, func() bool {
		calls++
		return calls < 2
	})

	s.Tick()
	assert.Equal(t, 0, calls)

	for range 3 {
		s.Raise(ev)
		s.Tick()
	}
	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, s.Len())
}

func TestEventBacklogIsCarriedOver(t *testing.T) {
	clock := NewManualClock(time.Now())
	sink := &recordingSink{}
	s := New(Config{Clock: clock, Sink: sink, MaxEventsPerTick: 2})

	ev := NewEvent("noisy")
	delivered := 0
	s.OnEvent("counter", ev, func() bool {
		delivered++
		return true
	})

	for range 5 {
		s.Raise(ev)
	}
	s.Tick()
	assert.Equal(t, 2, delivered)
	assert.Equal(t, []int{3}, sink.backlog)

	s.Tick()
	s.Tick()
	assert.Equal(t, 5, delivered)
}

func TestWaitForNilEventFaults(t *testing.T) {
	s, _, sink := newTestScheduler(t)
	s.Register("bad", TaskFunc(func() (Wait, error) {
		return WaitFor(nil), nil
	}))

	s.Tick()
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, []string{"bad"}, sink.faults)
}

func TestRunStopsOnCancel(t *testing.T) {
	s := New(Config{Sink: NewLogSink(log.NewTestLogger(t))})
	ctx, cancel := context.WithCancel(context.Background())

	ticked := make(chan struct{})
	var once sync.Once
	s.Register("signal", TaskFunc(func() (Wait, error) {
		once.Do(func() { close(ticked) })
		return Finish(), nil
	}))

	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, time.Millisecond)
	}()

	<-ticked
	cancel()
	assert.NoError(t, <-done)

	assert.Error(t, s.Run(context.Background(), 0))
}
