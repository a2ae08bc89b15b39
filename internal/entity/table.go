package entity

import (
	"slices"
	"sync"
	"sync/atomic"
)

// Table is the shared entity table. It is safe for concurrent inserts and
// removals from multiple workers while the scheduler goroutine reads it.
type Table struct {
	entries sync.Map // Key -> *Entity
	count   atomic.Int64
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{}
}

// Add stores the entity and returns false if the key already exists.
func (t *Table) Add(e *Entity) bool {
	if _, loaded := t.entries.LoadOrStore(e.Key(), e); loaded {
		return false
	}
	t.count.Add(1)
	return true
}

// Get returns the entity for the key.
func (t *Table) Get(key Key) (*Entity, bool) {
	v, ok := t.entries.Load(key)
	if !ok {
		return nil, false
	}
	return v.(*Entity), true
}

// Remove deletes the entity for the key and returns whether it existed.
func (t *Table) Remove(key Key) bool {
	if _, loaded := t.entries.LoadAndDelete(key); !loaded {
		return false
	}
	t.count.Add(-1)
	return true
}

// Len returns the number of entities.
func (t *Table) Len() int {
	return int(t.count.Load())
}

// Clear removes all entities.
func (t *Table) Clear() {
	t.entries.Range(func(key, _ any) bool {
		t.Remove(key.(Key))
		return true
	})
}

// Range calls fn for every entity until fn returns false.
func (t *Table) Range(fn func(e *Entity) bool) {
	t.entries.Range(func(_, value any) bool {
		return fn(value.(*Entity))
	})
}

// Snapshot returns all entities sorted by key.
func (t *Table) Snapshot() []*Entity {
	entities := make([]*Entity, 0, t.Len())
	t.Range(func(e *Entity) bool {
		entities = append(entities, e)
		return true
	})
	slices.SortFunc(entities, func(a, b *Entity) int {
		return int(int64(a.Key()) - int64(b.Key()))
	})
	return entities
}
