package state

import (
	"fmt"
	"time"

	"github.com/retroenv/procmirror/internal/bound"
	"github.com/retroenv/procmirror/internal/container"
	"github.com/retroenv/procmirror/internal/layout"
	"github.com/retroenv/procmirror/internal/memory"
	"github.com/retroenv/procmirror/internal/scheduler"
)

// NoState is the current state while unbound or unknown.
const NoState layout.StateKind = -1

// Registry is the controller of the game state registry found through the
// GameStates static address. It binds the area loading and in game states
// and tracks the active state.
type Registry struct {
	reader   memory.Reader
	sched    *scheduler.Scheduler
	events   *Events
	interval time.Duration

	areaLoading *bound.Binding
	inGame      *bound.Binding
	ctrl        *bound.Controller

	registry memory.Address
	States   [layout.StateCount]memory.Address
	Current  layout.StateKind
}

func newRegistry(reader memory.Reader, sched *scheduler.Scheduler, events *Events, interval time.Duration,
	areaLoading, inGame *bound.Binding) *Registry {

	r := &Registry{
		reader:      reader,
		sched:       sched,
		events:      events,
		interval:    interval,
		areaLoading: areaLoading,
		inGame:      inGame,
	}
	r.ctrl = bound.NewController("state registry", r, sched, events.StatesReady)
	return r
}

// Controller returns the controller binding of the registry.
func (r *Registry) Controller() *bound.Controller {
	return r.ctrl
}

// Populate reads the registry behind the static address and binds the
// state objects.
func (r *Registry) Populate(addr memory.Address) error {
	static, err := memory.Read[layout.StaticGameStates](r.reader, addr)
	if err != nil {
		return fmt.Errorf("reading game states pointer: %w", err)
	}
	view, err := memory.Read[layout.StateRegistry](r.reader, static.Registry)
	if err != nil {
		return fmt.Errorf("reading state registry: %w", err)
	}

	var states [layout.StateCount]memory.Address
	for i, pair := range view.States {
		states[i] = pair.State
	}
	current, err := currentState(r.reader, view, states)
	if err != nil {
		return err
	}

	r.registry = static.Registry
	r.States = states
	r.Current = current

	var errs []error
	if _, err := r.areaLoading.Bind(states[layout.AreaLoadingState]); err != nil {
		errs = append(errs, err)
	}
	if _, err := r.inGame.Bind(states[layout.InGameState]); err != nil {
		errs = append(errs, err)
	}
	for _, err := range errs {
		r.sched.Sink().Report(r.ctrl.Name(), err)
	}
	return nil
}

// Reset clears the states and unbinds the state objects.
func (r *Registry) Reset() {
	r.registry = 0
	r.States = [layout.StateCount]memory.Address{}
	r.Current = NoState
	if r.areaLoading != nil {
		r.areaLoading.Unbind()
	}
	if r.inGame != nil {
		r.inGame.Unbind()
	}
}

// ScheduleRefresh tracks the active state while the registry stays bound.
func (r *Registry) ScheduleRefresh(alive func() bool) {
	r.sched.Every("state registry", r.interval, func() (bool, error) {
		if !alive() {
			return false, nil
		}
		view, err := memory.Read[layout.StateRegistry](r.reader, r.registry)
		if err != nil {
			r.sched.Sink().Report(r.ctrl.Name(), err)
			return true, nil
		}
		current, err := currentState(r.reader, view, r.States)
		if err != nil {
			r.sched.Sink().Report(r.ctrl.Name(), err)
			return true, nil
		}
		if current != r.Current {
			r.Current = current
			r.sched.Raise(r.events.StateChanged)
		}
		return true, nil
	})
}

// currentState returns the state on top of the active state stack.
func currentState(reader memory.Reader, view layout.StateRegistry,
	states [layout.StateCount]memory.Address) (layout.StateKind, error) {

	active, err := container.DecodeArray[layout.StatePair](reader, view.Current)
	if err != nil {
		return NoState, fmt.Errorf("reading active states: %w", err)
	}
	if len(active) == 0 {
		return NoState, nil
	}

	top := active[len(active)-1].State
	for i, addr := range states {
		if addr != 0 && addr == top {
			return layout.StateKind(i), nil
		}
	}
	return NoState, nil
}
