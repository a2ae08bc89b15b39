// Package entity mirrors the foreign entities of the current area.
package entity

import (
	"errors"
	"fmt"

	"github.com/retroenv/procmirror/internal/bound"
	"github.com/retroenv/procmirror/internal/container"
	"github.com/retroenv/procmirror/internal/layout"
	"github.com/retroenv/procmirror/internal/memory"
)

// Key identifies an entity within one area instance.
type Key uint32

func (k Key) String() string {
	return fmt.Sprintf("%d", uint32(k))
}

// Entity is a bound mirror of one foreign entity. The path and the component
// addresses are read once per bind, the vitals and the position on every
// refresh.
type Entity struct {
	key        Key
	reader     memory.Reader
	binding    *bound.Binding
	life       *bound.Binding
	positioned *bound.Binding

	Path       string
	ID         uint32
	IsValid    bool
	InRange    bool // the entity was part of the latest foreign entity map
	Components map[string]memory.Address

	Life       Life
	Positioned Positioned
}

// New returns an unbound entity.
func New(key Key, reader memory.Reader) *Entity {
	e := &Entity{
		key:    key,
		reader: reader,
	}
	e.Life = Life{reader: reader, owner: e.Address}
	e.Positioned = Positioned{reader: reader, owner: e.Address}
	e.life = bound.New("life", &e.Life)
	e.positioned = bound.New("positioned", &e.Positioned)
	e.binding = bound.New("entity "+key.String(), e)
	return e
}

// Key returns the entity key.
func (e *Entity) Key() Key {
	return e.key
}

// Address returns the bound foreign address, 0 while unbound.
func (e *Entity) Address() memory.Address {
	if e.binding == nil {
		return 0
	}
	return e.binding.Address()
}

// Bind binds the entity to the foreign address.
func (e *Entity) Bind(addr memory.Address) (bound.Transition, error) {
	return e.binding.Bind(addr)
}

// Unbind resets the entity to its defaults.
func (e *Entity) Unbind() {
	e.binding.Unbind()
}

// Refresh rereads the bound entity.
func (e *Entity) Refresh() error {
	return e.binding.Refresh()
}

// Update binds the entity to the address, or refreshes it if it is already
// bound to it.
func (e *Entity) Update(addr memory.Address) error {
	transition, err := e.binding.Bind(addr)
	if err != nil {
		return err
	}
	if transition == bound.NoChange {
		return e.binding.Refresh()
	}
	return nil
}

// Populate reads the entity. The details are only read for the first pass
// after a bind.
func (e *Entity) Populate(addr memory.Address) error {
	view, err := memory.Read[layout.EntityView](e.reader, addr)
	if err != nil {
		return fmt.Errorf("reading entity: %w", err)
	}

	if e.Components == nil {
		path, components, err := e.readDetails(view)
		if err != nil {
			return err
		}
		e.Path = path
		e.Components = components
	}

	e.ID = view.ID
	e.IsValid = view.IsValid != 0

	var errs []error
	if err := updateComponent(e.life, e.Components[LifeComponent]); err != nil {
		errs = append(errs, err)
	}
	if err := updateComponent(e.positioned, e.Components[PositionedComponent]); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Reset sets all fields to their defaults and unbinds the components.
func (e *Entity) Reset() {
	e.Path = ""
	e.ID = 0
	e.IsValid = false
	e.InRange = false
	e.Components = nil
	e.life.Unbind()
	e.positioned.Unbind()
}

func (e *Entity) readDetails(view layout.EntityView) (string, map[string]memory.Address, error) {
	details, err := memory.Read[layout.EntityDetailsView](e.reader, view.Details)
	if err != nil {
		return "", nil, fmt.Errorf("reading entity details: %w", err)
	}
	path, err := container.DecodeWideString(e.reader, details.Path)
	if err != nil {
		return "", nil, fmt.Errorf("reading entity path: %w", err)
	}

	addresses, err := container.DecodeArray[memory.Address](e.reader, view.Components)
	if err != nil {
		return "", nil, fmt.Errorf("reading entity components: %w", err)
	}
	lookup, err := memory.Read[layout.ComponentLookupView](e.reader, details.ComponentLookup)
	if err != nil {
		return "", nil, fmt.Errorf("reading component lookup: %w", err)
	}
	names, err := container.DecodeOrderedMap[container.String, uint64](e.reader, lookup.Names)
	if err != nil {
		return "", nil, fmt.Errorf("reading component names: %w", err)
	}

	components := make(map[string]memory.Address, len(names))
	for _, pair := range names {
		name, err := container.DecodeString(e.reader, pair.Key)
		if err != nil {
			return "", nil, fmt.Errorf("reading component name: %w", err)
		}
		if pair.Value >= uint64(len(addresses)) {
			return "", nil, fmt.Errorf("%w: component %s index %d out of %d",
				container.ErrInvariant, name, pair.Value, len(addresses))
		}
		components[name] = addresses[pair.Value]
	}
	return path, components, nil
}

// updateComponent binds the component binding to the address, a missing
// component unbinds it.
func updateComponent(b *bound.Binding, addr memory.Address) error {
	transition, err := b.Bind(addr)
	if err != nil {
		return err
	}
	if transition == bound.NoChange {
		return b.Refresh()
	}
	return nil
}

// HasComponent returns whether the entity has the named component.
func (e *Entity) HasComponent(name string) bool {
	_, ok := e.Components[name]
	return ok
}
