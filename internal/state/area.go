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

// AreaChange mirrors the area change counter. Every counter change raises
// AreaChanged.
type AreaChange struct {
	reader   memory.Reader
	sched    *scheduler.Scheduler
	events   *Events
	interval time.Duration
	binding  *bound.Binding

	Counter uint32
}

func newAreaChange(reader memory.Reader, sched *scheduler.Scheduler, events *Events,
	interval time.Duration) *AreaChange {

	a := &AreaChange{
		reader:   reader,
		sched:    sched,
		events:   events,
		interval: interval,
	}
	a.binding = bound.New("area change counter", a)
	return a
}

// Binding returns the binding of the counter.
func (a *AreaChange) Binding() *bound.Binding {
	return a.binding
}

// Populate reads the counter.
func (a *AreaChange) Populate(addr memory.Address) error {
	view, err := memory.Read[layout.AreaChangeCounter](a.reader, addr)
	if err != nil {
		return fmt.Errorf("reading area change counter: %w", err)
	}
	a.Counter = view.Counter
	return nil
}

// Reset sets the counter to 0.
func (a *AreaChange) Reset() {
	a.Counter = 0
}

// ScheduleRefresh polls the counter while bound.
func (a *AreaChange) ScheduleRefresh(alive func() bool) {
	a.sched.Every("area change counter", a.interval, func() (bool, error) {
		if !alive() {
			return false, nil
		}
		view, err := memory.Read[layout.AreaChangeCounter](a.reader, a.binding.Address())
		if err != nil {
			a.sched.Sink().Report(a.binding.Name(), err)
			return true, nil
		}
		if view.Counter != a.Counter {
			a.Counter = view.Counter
			a.sched.Raise(a.events.AreaChanged)
		}
		return true, nil
	})
}

// AreaLoading mirrors the area loading state.
type AreaLoading struct {
	reader   memory.Reader
	sched    *scheduler.Scheduler
	events   *Events
	interval time.Duration
	binding  *bound.Binding

	IsLoading        bool
	LoadingStartTime uint64
	AreaName         string
}

func newAreaLoading(reader memory.Reader, sched *scheduler.Scheduler, events *Events,
	interval time.Duration) *AreaLoading {

	a := &AreaLoading{
		reader:   reader,
		sched:    sched,
		events:   events,
		interval: interval,
	}
	a.binding = bound.New("area loading state", a)
	return a
}

// Populate reads the loading flag and the area name.
func (a *AreaLoading) Populate(addr memory.Address) error {
	view, err := memory.Read[layout.AreaLoadingView](a.reader, addr)
	if err != nil {
		return fmt.Errorf("reading area loading state: %w", err)
	}
	name, err := container.DecodeWideString(a.reader, view.AreaName)
	if err != nil {
		return fmt.Errorf("reading area name: %w", err)
	}

	a.IsLoading = view.IsLoading != 0
	a.LoadingStartTime = view.LoadingStartTime
	a.AreaName = name
	return nil
}

// Reset sets all fields to their defaults.
func (a *AreaLoading) Reset() {
	a.IsLoading = false
	a.LoadingStartTime = 0
	a.AreaName = ""
}

// ScheduleRefresh rereads the state every interval and on every state
// change while bound.
func (a *AreaLoading) ScheduleRefresh(alive func() bool) {
	bound.RefreshEvery(a.sched, a.binding, a.interval, alive)
	bound.RefreshOn(a.sched, a.binding, a.events.StateChanged, alive)
}

// InGame mirrors the in game state and binds the current area instance.
type InGame struct {
	reader   memory.Reader
	sched    *scheduler.Scheduler
	interval time.Duration
	binding  *bound.Binding
	instance *AreaInstance

	UIRoot    memory.Address
	WorldData memory.Address
}

func newInGame(reader memory.Reader, sched *scheduler.Scheduler, interval time.Duration,
	instance *AreaInstance) *InGame {

	g := &InGame{
		reader:   reader,
		sched:    sched,
		interval: interval,
		instance: instance,
	}
	g.binding = bound.New("in game state", g)
	return g
}

// Populate reads the in game state and binds the area instance. A failed
// area instance pass is reported, it is retried by its own refresh.
func (g *InGame) Populate(addr memory.Address) error {
	view, err := memory.Read[layout.InGameView](g.reader, addr)
	if err != nil {
		return fmt.Errorf("reading in game state: %w", err)
	}
	g.UIRoot = view.UIRoot
	g.WorldData = view.WorldData

	if _, err := g.instance.binding.Bind(view.AreaInstance); err != nil {
		g.sched.Sink().Report(g.instance.binding.Name(), err)
	}
	return nil
}

// Reset sets all fields to their defaults and unbinds the area instance.
func (g *InGame) Reset() {
	g.UIRoot = 0
	g.WorldData = 0
	if g.instance != nil {
		g.instance.binding.Unbind()
	}
}

// ScheduleRefresh rereads the state every interval while bound.
func (g *InGame) ScheduleRefresh(alive func() bool) {
	bound.RefreshEvery(g.sched, g.binding, g.interval, alive)
}
