// Package bound implements objects that mirror one foreign object at an address.
package bound

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/retroenv/procmirror/internal/memory"
	"github.com/retroenv/procmirror/internal/scheduler"
)

// Transition is the result of a bind call.
type Transition int

const (
	// NoChange means the address was already bound.
	NoChange Transition = iota
	// Bound means an unbound object was bound to an address.
	Bound
	// Rebound means a bound object moved to a different address.
	Rebound
	// Unbound means a bound object was reset to its defaults.
	Unbound
)

func (t Transition) String() string {
	switch t {
	case NoChange:
		return "no change"
	case Bound:
		return "bound"
	case Rebound:
		return "rebound"
	case Unbound:
		return "unbound"
	default:
		return fmt.Sprintf("Transition(%d)", int(t))
	}
}

// Populator is implemented by the mirrored objects.
type Populator interface {
	// Populate reads the foreign object at the address and updates the
	// public fields. On error the previous field values are kept.
	Populate(addr memory.Address) error
	// Reset sets all fields to their documented defaults.
	Reset()
}

// Scheduled is implemented by populators that keep themselves fresh.
// ScheduleRefresh is called after every bind to a non zero address, the
// registered tasks have to finish once alive returns false.
type Scheduled interface {
	ScheduleRefresh(alive func() bool)
}

// Binding holds the address of a populator and runs the bind transitions.
type Binding struct {
	name       string
	target     Populator
	addr       atomic.Uint64
	generation atomic.Uint64
}

// New returns an unbound binding for the target. The target is reset so
// that its fields start at their defaults.
func New(name string, target Populator) *Binding {
	target.Reset()
	return &Binding{
		name:   name,
		target: target,
	}
}

// Name returns the name of the binding.
func (b *Binding) Name() string {
	return b.name
}

// Address returns the bound address, 0 when unbound.
func (b *Binding) Address() memory.Address {
	return memory.Address(b.addr.Load())
}

// IsBound returns whether the binding has a non zero address.
func (b *Binding) IsBound() bool {
	return b.addr.Load() != 0
}

// Generation returns a counter that changes with every transition.
func (b *Binding) Generation() uint64 {
	return b.generation.Load()
}

// Bind assigns a new address. Binding the current address is a no-op,
// binding 0 resets the target to its defaults. Any other address resets the
// target and runs one immediate populate pass; a failed pass keeps the new
// address bound with default fields and is returned as error.
func (b *Binding) Bind(addr memory.Address) (Transition, error) {
	prev := memory.Address(b.addr.Load())
	if addr == prev {
		return NoChange, nil
	}

	b.generation.Add(1)
	b.addr.Store(uint64(addr))
	b.target.Reset()
	if addr == 0 {
		return Unbound, nil
	}

	transition := Bound
	if prev != 0 {
		transition = Rebound
	}

	err := b.target.Populate(addr)
	if s, ok := b.target.(Scheduled); ok {
		s.ScheduleRefresh(b.Guard())
	}
	if err != nil {
		return transition, fmt.Errorf("populating %s at %s: %w", b.name, addr, err)
	}
	return transition, nil
}

// Unbind resets the binding to address 0.
func (b *Binding) Unbind() {
	_, _ = b.Bind(0)
}

// Refresh runs a populate pass for the bound address, it does nothing while unbound.
func (b *Binding) Refresh() error {
	addr := b.Address()
	if addr == 0 {
		return nil
	}
	if err := b.target.Populate(addr); err != nil {
		return fmt.Errorf("refreshing %s at %s: %w", b.name, addr, err)
	}
	return nil
}

// Guard returns a function that reports whether the binding is still in the
// state it had when Guard was called.
func (b *Binding) Guard() func() bool {
	generation := b.generation.Load()
	return func() bool {
		return b.generation.Load() == generation && b.addr.Load() != 0
	}
}

// RefreshEvery registers a task that refreshes the binding every interval
// while alive holds. Failed passes are reported to the scheduler sink.
func RefreshEvery(s *scheduler.Scheduler, b *Binding, interval time.Duration, alive func() bool) {
	s.Every(b.name+" refresh", interval, func() (bool, error) {
		if !alive() {
			return false, nil
		}
		if err := b.Refresh(); err != nil {
			s.Sink().Report(b.name, err)
		}
		return true, nil
	})
}

// RefreshOn registers a task that refreshes the binding every time the event
// is raised while alive holds.
func RefreshOn(s *scheduler.Scheduler, b *Binding, e *scheduler.Event, alive func() bool) {
	s.OnEvent(b.name+" refresh on "+e.Name(), e, func() bool {
		if !alive() {
			return false
		}
		if err := b.Refresh(); err != nil {
			s.Sink().Report(b.name, err)
		}
		return true
	})
}
