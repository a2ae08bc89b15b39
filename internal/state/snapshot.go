package state

import (
	"time"
)

// Snapshot is an immutable copy of the mirrored state for readers outside
// of the scheduler goroutine.
type Snapshot struct {
	Time      time.Time `json:"time"`
	PID       int       `json:"pid"`
	Attached  bool      `json:"attached"`
	State     string    `json:"state"`
	AreaName  string    `json:"area_name"`
	IsLoading bool      `json:"is_loading"`
	AreaLevel int       `json:"area_level"`
	AreaHash  uint32    `json:"area_hash"`

	EnvironmentKeys []uint16         `json:"environment_keys"`
	Players         []string         `json:"players"`
	Entities        []EntitySnapshot `json:"entities"`
}

// EntitySnapshot is the copy of one entity.
type EntitySnapshot struct {
	ID        uint32 `json:"id"`
	Path      string `json:"path"`
	Address   string `json:"address"`
	IsValid   bool   `json:"is_valid"`
	InRange   bool   `json:"in_range"`
	Health    int32  `json:"health"`
	MaxHealth int32  `json:"max_health"`
	GridX     int32  `json:"grid_x"`
	GridY     int32  `json:"grid_y"`
}

// Publish builds a snapshot of the current state. It has to be called from
// the scheduler goroutine.
func (c *Context) Publish() {
	s := &Snapshot{
		Time:            c.sched.Clock().Now(),
		AreaName:        c.AreaLoading.AreaName,
		IsLoading:       c.AreaLoading.IsLoading,
		AreaLevel:       c.AreaInstance.AreaLevel,
		AreaHash:        c.AreaInstance.AreaHash,
		EnvironmentKeys: append([]uint16(nil), c.AreaInstance.EnvironmentKeys...),
	}
	for _, player := range c.AreaInstance.Players {
		s.Players = append(s.Players, player.Name)
	}
	if a := c.Attached(); a != nil {
		s.Attached = true
		s.PID = a.PID
	}
	if c.Registry.Current != NoState {
		s.State = c.Registry.Current.String()
	}

	entities := c.Entities.Snapshot()
	s.Entities = make([]EntitySnapshot, 0, len(entities))
	for _, e := range entities {
		s.Entities = append(s.Entities, EntitySnapshot{
			ID:        uint32(e.Key()),
			Path:      e.Path,
			Address:   e.Address().String(),
			IsValid:   e.IsValid,
			InRange:   e.InRange,
			Health:    e.Life.Health.Current,
			MaxHealth: e.Life.Health.Max,
			GridX:     e.Positioned.GridX,
			GridY:     e.Positioned.GridY,
		})
	}

	c.snapshot.Store(s)
}

// Snapshot returns the latest published snapshot. It is safe to call from
// any goroutine.
func (c *Context) Snapshot() *Snapshot {
	return c.snapshot.Load()
}
