package state

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/retroenv/procmirror/internal/bound"
	"github.com/retroenv/procmirror/internal/container"
	"github.com/retroenv/procmirror/internal/entity"
	"github.com/retroenv/procmirror/internal/layout"
	"github.com/retroenv/procmirror/internal/memory"
	"github.com/retroenv/procmirror/internal/scheduler"
	"github.com/retroenv/retrogolib/log"
)

// AreaInstance mirrors the loaded area and keeps the entity table in sync
// with the foreign entity map.
type AreaInstance struct {
	logger   *log.Logger
	reader   memory.Reader
	sched    *scheduler.Scheduler
	events   *Events
	interval time.Duration
	workers  int
	binding  *bound.Binding

	table  *entity.Table
	caches []*entity.DisappearingCache

	AreaLevel       int
	AreaHash        uint32
	EnvironmentKeys []uint16
	LocalPlayer     memory.Address
	Players         []Player
}

// Player is one player of the area.
type Player struct {
	Name   string
	Entity memory.Address
}

func newAreaInstance(logger *log.Logger, reader memory.Reader, sched *scheduler.Scheduler, events *Events,
	cfg Config, table *entity.Table) *AreaInstance {

	a := &AreaInstance{
		logger:   logger,
		reader:   reader,
		sched:    sched,
		events:   events,
		interval: cfg.RefreshInterval,
		workers:  cfg.Workers,
		table:    table,
	}
	if a.workers < 1 {
		a.workers = runtime.NumCPU()
	}
	for _, rule := range cfg.CacheRules {
		cache := entity.NewDisappearingCache(logger, rule, cfg.CleanupDelay, sched, table)
		a.caches = append(a.caches, cache)
	}
	a.binding = bound.New("area instance", a)
	return a
}

// Populate reads the area header and updates the entity table. The table is
// only changed after the entity map was decoded completely.
func (a *AreaInstance) Populate(addr memory.Address) error {
	view, err := memory.Read[layout.AreaInstanceView](a.reader, addr)
	if err != nil {
		return fmt.Errorf("reading area instance: %w", err)
	}
	environments, err := container.DecodeArray[layout.EnvironmentView](a.reader, view.EnvironmentKeys)
	if err != nil {
		return fmt.Errorf("reading environments: %w", err)
	}
	players, err := a.readPlayers(view.Players)
	if err != nil {
		return fmt.Errorf("reading player list: %w", err)
	}
	pairs, err := container.DecodeOrderedMap[layout.EntityNodeKey, memory.Address](a.reader, view.AwakeEntities)
	if err != nil {
		return fmt.Errorf("reading entity map: %w", err)
	}

	keys := make([]uint16, len(environments))
	for i, env := range environments {
		keys[i] = env.Key
	}

	a.AreaLevel = int(view.AreaLevel)
	a.AreaHash = view.AreaHash
	a.EnvironmentKeys = keys
	a.LocalPlayer = view.LocalPlayer
	a.Players = players

	for _, cache := range a.caches {
		cache.Update(keys)
	}
	a.updateEntities(pairs)
	a.sched.Raise(a.events.AreaInstanceUpdated)
	return nil
}

func (a *AreaInstance) readPlayers(l container.List) ([]Player, error) {
	views, err := container.DecodeLinkedListParallel[layout.PlayerView](a.reader, l, a.workers)
	if err != nil {
		return nil, err
	}
	players := make([]Player, len(views))
	for i, view := range views {
		name, err := container.DecodeWideString(a.reader, view.Name)
		if err != nil {
			return nil, fmt.Errorf("reading name of player %d: %w", i, err)
		}
		players[i] = Player{Name: name, Entity: view.Entity}
	}
	return players, nil
}

type entityJob struct {
	entity *entity.Entity
	addr   memory.Address
	isNew  bool
	err    error
}

// updateEntities refreshes all entities of the map on parallel workers.
// New entities are inserted by the workers once their first pass succeeded.
func (a *AreaInstance) updateEntities(pairs []container.Pair[layout.EntityNodeKey, memory.Address]) {
	jobs := make([]entityJob, len(pairs))
	for i, pair := range pairs {
		key := entity.Key(pair.Key.ID)
		e, ok := a.table.Get(key)
		if !ok {
			e = entity.New(key, a.reader)
		}
		jobs[i] = entityJob{entity: e, addr: pair.Value, isNew: !ok}
	}

	workers := min(a.workers, len(jobs))
	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := w; i < len(jobs); i += workers {
				job := &jobs[i]
				job.err = job.entity.Update(job.addr)
				if job.err == nil && job.isNew && job.entity.IsValid {
					a.table.Add(job.entity)
				}
			}
		}()
	}
	wg.Wait()

	seen := make(map[entity.Key]struct{}, len(jobs))
	failed := 0
	for _, job := range jobs {
		e := job.entity
		seen[e.Key()] = struct{}{}

		if job.err != nil {
			failed++
			a.sched.Sink().Report("entity "+e.Key().String(), job.err)
			continue
		}
		if !e.IsValid {
			if !job.isNew {
				a.table.Remove(e.Key())
			}
			e.Unbind()
			continue
		}

		e.InRange = true
		if job.isNew {
			for _, cache := range a.caches {
				cache.Observe(e)
			}
		}
	}

	a.table.Range(func(e *entity.Entity) bool {
		if _, ok := seen[e.Key()]; !ok {
			e.InRange = false
		}
		return true
	})

	if failed > 0 {
		a.logger.Debug("Entity updates failed",
			log.Int("failed", failed),
			log.Int("entities", len(jobs)))
	}
}

// Reset sets all fields to their defaults and invalidates all entities.
func (a *AreaInstance) Reset() {
	a.AreaLevel = 0
	a.AreaHash = 0
	a.EnvironmentKeys = nil
	a.LocalPlayer = 0
	a.Players = nil
	a.ClearEntities()
}

// ClearEntities unbinds and removes all entities and clears the caches.
func (a *AreaInstance) ClearEntities() {
	a.table.Range(func(e *entity.Entity) bool {
		e.Unbind()
		return true
	})
	a.table.Clear()
	for _, cache := range a.caches {
		cache.Clear()
	}
}

// Caches returns the disappearing entity caches.
func (a *AreaInstance) Caches() []*entity.DisappearingCache {
	return a.caches
}

// ScheduleRefresh rereads the area every interval while bound.
func (a *AreaInstance) ScheduleRefresh(alive func() bool) {
	bound.RefreshEvery(a.sched, a.binding, a.interval, alive)
}
