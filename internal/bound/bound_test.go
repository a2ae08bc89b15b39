package bound

import (
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/retroenv/procmirror/internal/memory"
	"github.com/retroenv/procmirror/internal/scheduler"
	"github.com/retroenv/retrogolib/assert"
)

type counter struct {
	reader memory.Reader
	Value  uint32
	Loaded bool
}

func (c *counter) Populate(addr memory.Address) error {
	v, err := memory.Read[uint32](c.reader, addr)
	if err != nil {
		return err
	}
	c.Value = v
	c.Loaded = true
	return nil
}

func (c *counter) Reset() {
	c.Value = 0
	c.Loaded = false
}

type refreshingCounter struct {
	counter
	sched    *scheduler.Scheduler
	binding  *Binding
	interval time.Duration
}

func (c *refreshingCounter) ScheduleRefresh(alive func() bool) {
	RefreshEvery(c.sched, c.binding, c.interval, alive)
}

func newSpace(t *testing.T) *memory.Buffer {
	t.Helper()
	buf := memory.NewBuffer()
	data := make([]byte, 16)
	binary.LittleEndian.PutUint32(data, 11)
	binary.LittleEndian.PutUint32(data[8:], 22)
	assert.NoError(t, buf.Map(0x1000, data))
	return buf
}

func TestBindRoundTripRestoresDefaults(t *testing.T) {
	c := &counter{reader: newSpace(t), Value: 99, Loaded: true}
	b := New("counter", c)
	assert.Equal(t, counter{reader: c.reader}, *c)
	assert.False(t, b.IsBound())

	transition, err := b.Bind(0x1000)
	assert.NoError(t, err)
	assert.Equal(t, Bound, transition)
	assert.Equal(t, uint32(11), c.Value)
	assert.True(t, c.Loaded)

	transition, err = b.Bind(0x1008)
	assert.NoError(t, err)
	assert.Equal(t, Rebound, transition)
	assert.Equal(t, uint32(22), c.Value)

	transition, err = b.Bind(0x1008)
	assert.NoError(t, err)
	assert.Equal(t, NoChange, transition)

	transition, err = b.Bind(0)
	assert.NoError(t, err)
	assert.Equal(t, Unbound, transition)
	assert.Equal(t, counter{reader: c.reader}, *c)
	assert.Equal(t, memory.Address(0), b.Address())
}

func TestBindFailedPopulateKeepsDefaults(t *testing.T) {
	c := &counter{reader: newSpace(t)}
	b := New("counter", c)

	transition, err := b.Bind(0x9000)
	assert.Equal(t, Bound, transition)
	assert.True(t, errors.Is(err, memory.ErrReadFault))
	assert.Equal(t, memory.Address(0x9000), b.Address())
	assert.False(t, c.Loaded)
}

func TestRefreshKeepsValueOnReadFault(t *testing.T) {
	buf := newSpace(t)
	c := &counter{reader: buf}
	b := New("counter", c)
	_, err := b.Bind(0x1000)
	assert.NoError(t, err)

	assert.NoError(t, buf.Write(0x1000, []byte{42, 0, 0, 0}))
	assert.NoError(t, b.Refresh())
	assert.Equal(t, uint32(42), c.Value)

	c.reader = memory.NewBuffer()
	assert.Error(t, b.Refresh())
	assert.Equal(t, uint32(42), c.Value)
}

func TestStaleRefreshTaskBecomesNoop(t *testing.T) {
	clock := scheduler.NewManualClock(time.Now())
	sched := scheduler.New(scheduler.Config{Clock: clock})
	buf := newSpace(t)

	c := &refreshingCounter{
		counter:  counter{reader: buf},
		sched:    sched,
		interval: time.Second,
	}
	b := New("counter", c)
	c.binding = b

	_, err := b.Bind(0x1000)
	assert.NoError(t, err)
	assert.Equal(t, 1, sched.Len())

	assert.NoError(t, buf.Write(0x1000, []byte{5, 0, 0, 0}))
	clock.Advance(time.Second)
	sched.Tick()
	assert.Equal(t, uint32(5), c.Value)

	_, err = b.Bind(0x1008)
	assert.NoError(t, err)
	assert.Equal(t, 2, sched.Len())

	clock.Advance(time.Second)
	sched.Tick()
	assert.Equal(t, 1, sched.Len())
	assert.Equal(t, uint32(22), c.Value)

	b.Unbind()
	clock.Advance(time.Second)
	sched.Tick()
	assert.Equal(t, 0, sched.Len())
	assert.Equal(t, uint32(0), c.Value)
}

func TestControllerReady(t *testing.T) {
	sched := scheduler.New(scheduler.Config{})
	ready := scheduler.NewEvent("ready")

	raised := 0
	sched.OnEvent("listener", ready, func() bool {
		raised++
		return true
	})

	c := NewController("registry", &counter{reader: newSpace(t)}, sched, ready)
	c.MarkReady()
	sched.Tick()
	assert.Equal(t, 0, raised)

	_, err := c.Bind(0x1000)
	assert.NoError(t, err)
	c.MarkReady()
	c.MarkReady()
	sched.Tick()
	assert.Equal(t, 1, raised)
	assert.True(t, c.Ready())

	c.Unbind()
	assert.False(t, c.Ready())
	assert.False(t, c.IsBound())

	_, err = c.Bind(0x1000)
	assert.NoError(t, err)
	c.MarkReady()
	sched.Tick()
	assert.Equal(t, 2, raised)
}
