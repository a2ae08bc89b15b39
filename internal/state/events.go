// Package state contains the controllers at the top of the mirrored object
// hierarchy and the context that ties them to one attached process.
package state

import "github.com/retroenv/procmirror/internal/scheduler"

// Events are the lifecycle events of the mirror. Collaborators subscribe
// to them through the scheduler.
type Events struct {
	ProcessOpened        *scheduler.Event
	ProcessClosed        *scheduler.Event
	ProcessMoved         *scheduler.Event
	ForegroundChanged    *scheduler.Event
	StaticAddressesFound *scheduler.Event
	StatesReady          *scheduler.Event
	StateChanged         *scheduler.Event
	AreaChanged          *scheduler.Event
	AreaInstanceUpdated  *scheduler.Event
}

// NewEvents returns a new set of lifecycle events.
func NewEvents() *Events {
	return &Events{
		ProcessOpened:        scheduler.NewEvent("ProcessOpened"),
		ProcessClosed:        scheduler.NewEvent("ProcessClosed"),
		ProcessMoved:         scheduler.NewEvent("ProcessMoved"),
		ForegroundChanged:    scheduler.NewEvent("ForegroundChanged"),
		StaticAddressesFound: scheduler.NewEvent("StaticAddressesFound"),
		StatesReady:          scheduler.NewEvent("StatesReady"),
		StateChanged:         scheduler.NewEvent("StateChanged"),
		AreaChanged:          scheduler.NewEvent("AreaChanged"),
		AreaInstanceUpdated:  scheduler.NewEvent("AreaInstanceUpdated"),
	}
}

// All returns all events.
func (e *Events) All() []*scheduler.Event {
	return []*scheduler.Event{
		e.ProcessOpened,
		e.ProcessClosed,
		e.ProcessMoved,
		e.ForegroundChanged,
		e.StaticAddressesFound,
		e.StatesReady,
		e.StateChanged,
		e.AreaChanged,
		e.AreaInstanceUpdated,
	}
}
