package entity

import (
	"testing"
	"time"

	"github.com/retroenv/procmirror/internal/bound"
	"github.com/retroenv/procmirror/internal/layout"
	"github.com/retroenv/procmirror/internal/memory"
	"github.com/retroenv/procmirror/internal/memtest"
	"github.com/retroenv/procmirror/internal/scheduler"
	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

func assertDefaults(t *testing.T, e *Entity) {
	t.Helper()
	assert.Equal(t, memory.Address(0), e.Address())
	assert.Equal(t, "", e.Path)
	assert.Equal(t, uint32(0), e.ID)
	assert.False(t, e.IsValid)
	assert.False(t, e.InRange)
	assert.Nil(t, e.Components)
	assert.Equal(t, Vital{}, e.Life.Health)
	assert.Equal(t, int32(0), e.Positioned.GridX)
	assert.Equal(t, int32(0), e.Positioned.GridY)
}

func TestEntityBindRoundTrip(t *testing.T) {
	space := memtest.New(t)
	addr := space.Entity(memtest.EntitySpec{
		ID:     17,
		Path:   "Metadata/Monsters/Zombies/ZombieBoss",
		Health: 500,
		GridX:  120,
		GridY:  340,
	})

	e := New(17, space.Buf)
	assertDefaults(t, e)

	transition, err := e.Bind(addr)
	assert.NoError(t, err)
	assert.Equal(t, bound.Bound, transition)
	assert.Equal(t, "Metadata/Monsters/Zombies/ZombieBoss", e.Path)
	assert.Equal(t, uint32(17), e.ID)
	assert.True(t, e.IsValid)
	assert.True(t, e.HasComponent(LifeComponent))
	assert.True(t, e.HasComponent(PositionedComponent))
	assert.Equal(t, int32(500), e.Life.Health.Current)
	assert.Equal(t, int32(120), e.Positioned.GridX)
	assert.Equal(t, int32(340), e.Positioned.GridY)

	e.Unbind()
	assertDefaults(t, e)
}

func TestEntityUpdateRefreshesVitals(t *testing.T) {
	space := memtest.New(t)
	addr := space.Entity(memtest.EntitySpec{ID: 3, Path: "Metadata/Chest", Health: 10})

	e := New(3, space.Buf)
	assert.NoError(t, e.Update(addr))
	assert.Equal(t, int32(10), e.Life.Health.Current)

	life := e.Components[LifeComponent]
	view, err := memory.Read[layout.LifeView](space.Buf, life)
	assert.NoError(t, err)
	view.Health.Current = 4
	space.Put(life, view)

	assert.NoError(t, e.Update(addr))
	assert.Equal(t, int32(4), e.Life.Health.Current)
	assert.Equal(t, int32(10), e.Life.Health.Max)
}

func TestEntityComponentOwnerMismatch(t *testing.T) {
	space := memtest.New(t)
	addr := space.Entity(memtest.EntitySpec{ID: 3, Path: "Metadata/Chest", Health: 10})
	other := space.Entity(memtest.EntitySpec{ID: 4, Path: "Metadata/Chest"})

	view, err := memory.Read[layout.EntityView](space.Buf, addr)
	assert.NoError(t, err)
	otherView, err := memory.Read[layout.EntityView](space.Buf, other)
	assert.NoError(t, err)
	view.Components = otherView.Components
	space.Put(addr, view)

	e := New(3, space.Buf)
	_, err = e.Bind(addr)
	assert.ErrorContains(t, err, "component owner")
	assert.Equal(t, Vital{}, e.Life.Health)
}

func TestTable(t *testing.T) {
	space := memtest.New(t)
	table := NewTable()

	for _, key := range []Key{5, 1, 3} {
		assert.True(t, table.Add(New(key, space.Buf)))
	}
	assert.False(t, table.Add(New(3, space.Buf)))
	assert.Equal(t, 3, table.Len())

	var keys []Key
	for _, e := range table.Snapshot() {
		keys = append(keys, e.Key())
	}
	assert.Equal(t, []Key{1, 3, 5}, keys)

	e, ok := table.Get(3)
	assert.True(t, ok)
	assert.Equal(t, Key(3), e.Key())

	assert.True(t, table.Remove(3))
	assert.False(t, table.Remove(3))
	_, ok = table.Get(3)
	assert.False(t, ok)
	assert.Equal(t, 2, table.Len())

	table.Clear()
	assert.Equal(t, 0, table.Len())
	assert.Len(t, table.Snapshot(), 0)
}

func TestTableConcurrentInserts(t *testing.T) {
	table := NewTable()
	done := make(chan struct{})
	for w := range 4 {
		go func() {
			defer func() { done <- struct{}{} }()
			for i := range 100 {
				table.Add(New(Key(w*100+i), nil))
			}
		}()
	}
	for range 4 {
		<-done
	}
	assert.Equal(t, 400, table.Len())
}

func newTestCache(t *testing.T) (*DisappearingCache, *Table, *scheduler.Scheduler, *scheduler.ManualClock) {
	t.Helper()
	clock := scheduler.NewManualClock(time.Now())
	sched := scheduler.New(scheduler.Config{Clock: clock})
	table := NewTable()
	rule := CacheRule{
		Name:       "delirium",
		PathPrefix: "Metadata/Monsters/LeagueAffliction",
		MinKey:     10,
		MaxKey:     20,
	}
	cache := NewDisappearingCache(log.NewTestLogger(t), rule, 2*time.Second, sched, table)
	return cache, table, sched, clock
}

func TestDisappearingCacheCleanup(t *testing.T) {
	cache, table, sched, clock := newTestCache(t)

	cache.Update([]uint16{3, 15})
	assert.True(t, cache.Active())

	for key := range Key(3) {
		e := New(key, nil)
		e.Path = "Metadata/Monsters/LeagueAffliction/Spawn"
		table.Add(e)
		cache.Observe(e)
	}
	other := New(99, nil)
	other.Path = "Metadata/Monsters/Zombie"
	table.Add(other)
	cache.Observe(other)
	assert.Equal(t, 3, cache.Len())

	cache.Update([]uint16{3})
	assert.False(t, cache.Active())
	assert.True(t, cache.Pending())
	assert.Equal(t, 1, sched.Len())

	cache.Update([]uint16{12})
	cache.Update(nil)
	assert.Equal(t, 1, sched.Len())

	clock.Advance(2 * time.Second)
	sched.Tick()

	assert.False(t, cache.Pending())
	assert.Equal(t, 0, cache.Len())
	for key := range Key(3) {
		assert.False(t, cache.Contains(key))
		_, ok := table.Get(key)
		assert.False(t, ok)
	}
	assert.Equal(t, 1, table.Len())
}

func TestDisappearingCacheInactiveIgnoresEntities(t *testing.T) {
	cache, _, sched, _ := newTestCache(t)

	e := New(1, nil)
	e.Path = "Metadata/Monsters/LeagueAffliction/Spawn"
	cache.Observe(e)
	assert.Equal(t, 0, cache.Len())

	cache.Update([]uint16{10})
	cache.Update(nil)
	assert.False(t, cache.Pending())
	assert.Equal(t, 0, sched.Len())
}

func TestDisappearingCacheClearSkipsCleanup(t *testing.T) {
	cache, table, sched, clock := newTestCache(t)

	cache.Update([]uint16{20})
	e := New(1, nil)
	e.Path = "Metadata/Monsters/LeagueAffliction/Spawn"
	table.Add(e)
	cache.Observe(e)
	cache.Update(nil)
	assert.True(t, cache.Pending())

	cache.Clear()
	assert.False(t, cache.Pending())
	assert.False(t, cache.Active())
	assert.Equal(t, 0, cache.Len())

	table.Add(New(1, nil))
	clock.Advance(2 * time.Second)
	sched.Tick()
	assert.Equal(t, 0, sched.Len())
	assert.Equal(t, 1, table.Len())
}
