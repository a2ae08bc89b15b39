package entity

import (
	"strings"
	"time"

	"github.com/retroenv/procmirror/internal/scheduler"
	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrogolib/set"
)

// DefaultCleanupDelay is the delay between deactivation and cleanup.
const DefaultCleanupDelay = 5 * time.Second

// CacheRule selects the entities that a disappearing entity cache tracks.
// The cache is active while one of the area environment keys is in
// [MinKey, MaxKey].
type CacheRule struct {
	Name       string `yaml:"name"`
	PathPrefix string `yaml:"path_prefix"`
	MinKey     uint16 `yaml:"min_key"`
	MaxKey     uint16 `yaml:"max_key"`
}

// Matches returns whether the entity path passes the rule filter.
func (r CacheRule) Matches(path string) bool {
	return r.PathPrefix != "" && strings.HasPrefix(path, r.PathPrefix)
}

// ActiveFor returns whether one of the environment keys is in range.
func (r CacheRule) ActiveFor(keys []uint16) bool {
	for _, key := range keys {
		if key >= r.MinKey && key <= r.MaxKey {
			return true
		}
	}
	return false
}

// DisappearingCache tracks entities whose despawn never reaches the entity
// update channel and removes them from the table after the environment
// that spawned them ended. It is not safe for concurrent use, all methods
// have to be called from the scheduler goroutine.
type DisappearingCache struct {
	logger *log.Logger
	rule   CacheRule
	delay  time.Duration
	sched  *scheduler.Scheduler
	table  *Table

	active     bool
	pending    bool
	generation uint64
	members    set.Set[Key]
}

// NewDisappearingCache returns an inactive cache for the rule.
func NewDisappearingCache(logger *log.Logger, rule CacheRule, delay time.Duration,
	sched *scheduler.Scheduler, table *Table) *DisappearingCache {

	if delay <= 0 {
		delay = DefaultCleanupDelay
	}
	return &DisappearingCache{
		logger:  logger,
		rule:    rule,
		delay:   delay,
		sched:   sched,
		table:   table,
		members: set.New[Key](),
	}
}

// Update sets the activation state from the current environment keys.
// A transition to inactive with members schedules one delayed cleanup
// unless one is already pending.
func (c *DisappearingCache) Update(environmentKeys []uint16) {
	active := c.rule.ActiveFor(environmentKeys)
	wasActive := c.active
	c.active = active

	if !wasActive || active || len(c.members) == 0 || c.pending {
		return
	}

	c.pending = true
	generation := c.generation
	c.logger.Debug("Scheduling disappearing entity cleanup",
		log.String("rule", c.rule.Name),
		log.Int("members", len(c.members)))

	c.sched.After("cleanup "+c.rule.Name, c.delay, func() {
		c.cleanup(generation)
	})
}

// Observe adds a matching entity to the members while the cache is active.
// It is called once per entity, on the pass that first inserts it.
func (c *DisappearingCache) Observe(e *Entity) {
	if !c.active || !c.rule.Matches(e.Path) {
		return
	}
	c.members.Add(e.Key())
}

// Clear empties the members and resets the activation state. A pending
// cleanup becomes a no-op.
func (c *DisappearingCache) Clear() {
	c.generation++
	c.active = false
	c.pending = false
	c.members = set.New[Key]()
}

// Active returns whether the cache is active.
func (c *DisappearingCache) Active() bool {
	return c.active
}

// Pending returns whether a cleanup is scheduled.
func (c *DisappearingCache) Pending() bool {
	return c.pending
}

// Contains returns whether the key is a member.
func (c *DisappearingCache) Contains(key Key) bool {
	return c.members.Contains(key)
}

// Len returns the number of members.
func (c *DisappearingCache) Len() int {
	return len(c.members)
}

func (c *DisappearingCache) cleanup(generation uint64) {
	if generation != c.generation {
		return
	}

	removed := 0
	for key := range c.members {
		if c.table.Remove(key) {
			removed++
		}
	}
	c.members = set.New[Key]()
	c.pending = false

	c.logger.Debug("Removed disappeared entities",
		log.String("rule", c.rule.Name),
		log.Int("removed", removed))
}
