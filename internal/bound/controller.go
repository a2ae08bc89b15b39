package bound

import (
	"sync/atomic"

	"github.com/retroenv/procmirror/internal/memory"
	"github.com/retroenv/procmirror/internal/scheduler"
)

// Controller is a binding whose one time discovery ends with a ready event.
// Controller data is read once per process run and not refreshed.
type Controller struct {
	*Binding

	sched *scheduler.Scheduler
	event *scheduler.Event
	ready atomic.Bool
}

// NewController returns an unbound controller raising event when ready.
func NewController(name string, target Populator, sched *scheduler.Scheduler, event *scheduler.Event) *Controller {
	return &Controller{
		Binding: New(name, target),
		sched:   sched,
		event:   event,
	}
}

// Bind assigns a new address, every transition clears the ready flag.
func (c *Controller) Bind(addr memory.Address) (Transition, error) {
	transition, err := c.Binding.Bind(addr)
	if transition != NoChange {
		c.ready.Store(false)
	}
	return transition, err
}

// Unbind resets the controller to address 0.
func (c *Controller) Unbind() {
	_, _ = c.Bind(0)
}

// MarkReady raises the ready event once per bind.
func (c *Controller) MarkReady() {
	if !c.IsBound() || c.ready.Swap(true) {
		return
	}
	c.sched.Raise(c.event)
}

// Ready returns whether the discovery of the bound address completed.
func (c *Controller) Ready() bool {
	return c.ready.Load()
}

// Event returns the ready event.
func (c *Controller) Event() *scheduler.Event {
	return c.event
}
