package state

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/retroenv/procmirror/internal/entity"
	"github.com/retroenv/procmirror/internal/memory"
	"github.com/retroenv/procmirror/internal/scheduler"
	"github.com/retroenv/procmirror/internal/signature"
	"github.com/retroenv/retrogolib/log"
)

// ErrAttached is returned when attaching a context that is already attached.
var ErrAttached = errors.New("context already attached")

// Config configures the controllers.
type Config struct {
	RefreshInterval time.Duration
	CleanupDelay    time.Duration
	Workers         int
	CacheRules      []entity.CacheRule
}

// DefaultConfig returns the default controller configuration.
func DefaultConfig() Config {
	return Config{
		RefreshInterval: 100 * time.Millisecond,
		CleanupDelay:    entity.DefaultCleanupDelay,
	}
}

// Attachment is an opened target process with its resolved static addresses.
type Attachment struct {
	PID     int
	Reader  memory.Reader
	Statics *signature.Table
	Close   func() error
}

// Context owns everything that belongs to one attached process: the reader,
// the static address table, the controllers and the entity table. It is
// created once, Attach and Detach bind and unbind the controllers.
type Context struct {
	logger *log.Logger
	sched  *scheduler.Scheduler
	cfg    Config
	reader *switchReader

	Events       *Events
	Entities     *entity.Table
	Registry     *Registry
	AreaChange   *AreaChange
	AreaLoading  *AreaLoading
	InGame       *InGame
	AreaInstance *AreaInstance

	mu         sync.Mutex
	attachment *Attachment
	snapshot   atomic.Pointer[Snapshot]
}

// NewContext creates the unbound controllers in their dependency order.
func NewContext(logger *log.Logger, sched *scheduler.Scheduler, cfg Config) *Context {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultConfig().RefreshInterval
	}

	c := &Context{
		logger:   logger,
		sched:    sched,
		cfg:      cfg,
		reader:   &switchReader{},
		Events:   NewEvents(),
		Entities: entity.NewTable(),
	}

	c.AreaInstance = newAreaInstance(logger, c.reader, sched, c.Events, cfg, c.Entities)
	c.InGame = newInGame(c.reader, sched, cfg.RefreshInterval, c.AreaInstance)
	c.AreaLoading = newAreaLoading(c.reader, sched, c.Events, cfg.RefreshInterval)
	c.Registry = newRegistry(c.reader, sched, c.Events, cfg.RefreshInterval,
		c.AreaLoading.binding, c.InGame.binding)
	c.AreaChange = newAreaChange(c.reader, sched, c.Events, cfg.RefreshInterval)

	sched.OnEvent("area change", c.Events.AreaChanged, c.onAreaChanged)
	sched.Every("publish snapshot", cfg.RefreshInterval, func() (bool, error) {
		c.Publish()
		return true, nil
	})

	c.Publish()
	return c
}

// onAreaChanged invalidates all entity keys and reloads the area, the area
// instance may be reallocated at its previous address.
func (c *Context) onAreaChanged() bool {
	c.AreaInstance.ClearEntities()
	if err := c.InGame.binding.Refresh(); err != nil {
		c.sched.Sink().Report(c.InGame.binding.Name(), err)
	}
	if err := c.AreaInstance.binding.Refresh(); err != nil {
		c.sched.Sink().Report(c.AreaInstance.binding.Name(), err)
	}
	return true
}

// Scheduler returns the scheduler driving the context.
func (c *Context) Scheduler() *scheduler.Scheduler {
	return c.sched
}

// Attached returns the current attachment or nil.
func (c *Context) Attached() *Attachment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attachment
}

// Attach switches the reader to the attachment and hands the static
// addresses to the controllers. A controller whose static address was not
// resolved stays unbound.
func (c *Context) Attach(a *Attachment) error {
	c.mu.Lock()
	if c.attachment != nil {
		c.mu.Unlock()
		return ErrAttached
	}
	c.attachment = a
	c.mu.Unlock()

	c.reader.set(a.Reader)
	c.sched.Raise(c.Events.ProcessOpened)
	c.sched.Raise(c.Events.StaticAddressesFound)

	var errs []error
	if _, err := c.AreaChange.binding.Bind(staticAddress(a.Statics, signature.AreaChangeCounter)); err != nil {
		errs = append(errs, err)
	}

	ctrl := c.Registry.Controller()
	if _, err := ctrl.Bind(staticAddress(a.Statics, signature.GameStates)); err != nil {
		errs = append(errs, err)
	} else {
		ctrl.MarkReady()
	}

	c.logger.Info("Attached to process",
		log.Int("pid", a.PID),
		log.Int("static_addresses", len(a.Statics.Resolved())),
		log.Int("entities", c.Entities.Len()))

	c.Publish()
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("binding controllers: %w", err)
	}
	return nil
}

// staticAddress returns the resolved address or 0, which leaves the
// dependent controller unbound.
func staticAddress(t *signature.Table, name string) memory.Address {
	addr, _ := t.Get(name)
	return addr
}

// Detach unbinds all controllers in reverse order, closes the attachment
// and switches the reader off.
func (c *Context) Detach() error {
	c.mu.Lock()
	a := c.attachment
	c.attachment = nil
	c.mu.Unlock()
	if a == nil {
		return nil
	}

	c.Registry.Controller().Unbind()
	c.AreaChange.binding.Unbind()
	c.reader.set(nil)
	c.sched.Raise(c.Events.ProcessClosed)
	c.Publish()

	c.logger.Info("Detached from process", log.Int("pid", a.PID))
	if a.Close != nil {
		if err := a.Close(); err != nil {
			return fmt.Errorf("closing process: %w", err)
		}
	}
	return nil
}

// Subscribe calls fn on the scheduler goroutine for every raised lifecycle event.
func (c *Context) Subscribe(fn func(e *scheduler.Event)) {
	for _, e := range c.Events.All() {
		c.sched.OnEvent("subscriber "+e.Name(), e, func() bool {
			fn(e)
			return true
		})
	}
}
