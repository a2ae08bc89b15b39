package memtest

import (
	"github.com/retroenv/procmirror/internal/container"
	"github.com/retroenv/procmirror/internal/layout"
	"github.com/retroenv/procmirror/internal/memory"
)

// EntitySpec describes a synthetic entity.
type EntitySpec struct {
	ID      uint32
	Path    string
	Invalid bool
	Health  int32
	GridX   int32
	GridY   int32
}

// Entity stores an entity with a life and a positioned component and
// returns its address.
func (s *Space) Entity(spec EntitySpec) memory.Address {
	s.t.Helper()
	addr := s.Alloc(memory.SizeOf[layout.EntityView]())

	life := layout.LifeView{Header: layout.ComponentHeader{Owner: addr}}
	life.Health.Current = spec.Health
	life.Health.Max = spec.Health
	positioned := layout.PositionedView{
		Header: layout.ComponentHeader{Owner: addr},
		GridX:  spec.GridX,
		GridY:  spec.GridY,
	}
	components := s.Array([]memory.Address{s.Store(life), s.Store(positioned)})

	names := Tree(s,
		[]container.String{s.NarrowString("Life"), s.NarrowString("Positioned")},
		[]uint64{0, 1})
	lookup := s.Store(layout.ComponentLookupView{Names: names})
	details := s.Store(layout.EntityDetailsView{
		Path:            s.WideString(spec.Path),
		ComponentLookup: lookup,
	})

	view := layout.EntityView{
		Details:    details,
		Components: components,
		ID:         spec.ID,
	}
	if !spec.Invalid {
		view.IsValid = 1
	}
	s.Put(addr, view)
	return addr
}

// EntityMap stores the entity map of an area for the entity addresses keyed
// by ascending ids.
func (s *Space) EntityMap(ids []uint32, entities []memory.Address) container.Map {
	s.t.Helper()
	keys := make([]layout.EntityNodeKey, len(ids))
	for i, id := range ids {
		keys[i] = layout.EntityNodeKey{ID: id}
	}
	return Tree(s, keys, entities)
}

// Players stores the player list of an area for the names and entity
// addresses.
func (s *Space) Players(names []string, entities []memory.Address) container.List {
	s.t.Helper()
	players := make([]layout.PlayerView, len(names))
	for i, name := range names {
		players[i] = layout.PlayerView{Entity: entities[i], Name: s.WideString(name)}
	}
	return List(s, players)
}
