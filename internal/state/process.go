package state

import (
	"time"

	"github.com/retroenv/procmirror/internal/scheduler"
	"github.com/retroenv/retrogolib/log"
)

// DefaultRetryInterval is the delay between attach attempts.
const DefaultRetryInterval = 2 * time.Second

// Attacher finds and opens the target process.
type Attacher interface {
	Attach() (*Attachment, error)
}

// Window is the position and focus of the target window.
type Window struct {
	X, Y          int
	Width, Height int
	Foreground    bool
}

// WindowProbe reports the target window. It is optional, without it no
// window events are raised.
type WindowProbe interface {
	Window(pid int) (Window, error)
}

// ProcessInfo is the discovery loop task. While detached it tries to attach
// on every retry interval, while attached it watches the process liveness
// and the window.
type ProcessInfo struct {
	logger   *log.Logger
	ctx      *Context
	attacher Attacher
	alive    func(pid int) bool
	probe    WindowProbe
	retry    time.Duration
	poll     time.Duration

	Window   Window
	Attempts int
}

// NewProcessInfo returns the discovery task. alive reports whether the
// attached process still exists, probe may be nil.
func NewProcessInfo(logger *log.Logger, ctx *Context, attacher Attacher, alive func(pid int) bool,
	probe WindowProbe, retry time.Duration) *ProcessInfo {

	if retry <= 0 {
		retry = DefaultRetryInterval
	}
	return &ProcessInfo{
		logger:   logger,
		ctx:      ctx,
		attacher: attacher,
		alive:    alive,
		probe:    probe,
		retry:    retry,
		poll:     ctx.cfg.RefreshInterval,
	}
}

// Start registers the discovery task with the scheduler.
func (p *ProcessInfo) Start() {
	p.ctx.sched.Register("process discovery", p)
}

// Resume runs one discovery step.
func (p *ProcessInfo) Resume() (scheduler.Wait, error) {
	a := p.ctx.Attached()
	if a == nil {
		return p.attach(), nil
	}

	if p.alive != nil && !p.alive(a.PID) {
		p.logger.Info("Target process exited", log.Int("pid", a.PID))
		if err := p.ctx.Detach(); err != nil {
			p.logger.Warn("Detaching failed", log.Err(err))
		}
		p.Window = Window{}
		return scheduler.Sleep(p.retry), nil
	}

	p.checkWindow(a.PID)
	return scheduler.Sleep(p.poll), nil
}

func (p *ProcessInfo) attach() scheduler.Wait {
	p.Attempts++
	a, err := p.attacher.Attach()
	if err != nil {
		p.logger.Debug("Attaching failed",
			log.Int("attempt", p.Attempts),
			log.Err(err))
		return scheduler.Sleep(p.retry)
	}

	p.Attempts = 0
	if err := p.ctx.Attach(a); err != nil {
		p.logger.Warn("Controllers unbound after attach", log.Err(err))
	}
	return scheduler.Sleep(p.poll)
}

func (p *ProcessInfo) checkWindow(pid int) {
	if p.probe == nil {
		return
	}
	w, err := p.probe.Window(pid)
	if err != nil {
		p.ctx.sched.Sink().Report("window probe", err)
		return
	}

	prev := p.Window
	p.Window = w
	if w.X != prev.X || w.Y != prev.Y || w.Width != prev.Width || w.Height != prev.Height {
		p.ctx.sched.Raise(p.ctx.Events.ProcessMoved)
	}
	if w.Foreground != prev.Foreground {
		p.ctx.sched.Raise(p.ctx.Events.ForegroundChanged)
	}
}
