package entity

import (
	"fmt"

	"github.com/retroenv/procmirror/internal/layout"
	"github.com/retroenv/procmirror/internal/memory"
)

// Component names as used in the entity component lookup.
const (
	LifeComponent       = "Life"
	PositionedComponent = "Positioned"
)

// Vital is one pool of the life component.
type Vital struct {
	Current         int32
	Max             int32
	ReservedFlat    int32
	ReservedPercent int32
	Regeneration    float32
}

// Life is the life component of an entity, all fields are 0 while unbound.
type Life struct {
	reader memory.Reader
	owner  func() memory.Address

	Health       Vital
	Mana         Vital
	EnergyShield Vital
}

// Populate reads the life component.
func (l *Life) Populate(addr memory.Address) error {
	view, err := memory.Read[layout.LifeView](l.reader, addr)
	if err != nil {
		return fmt.Errorf("reading life component: %w", err)
	}
	if err := checkOwner(view.Header, l.owner()); err != nil {
		return err
	}

	l.Health = vitalFromView(view.Health)
	l.Mana = vitalFromView(view.Mana)
	l.EnergyShield = vitalFromView(view.EnergyShield)
	return nil
}

// Reset sets all vitals to 0.
func (l *Life) Reset() {
	l.Health = Vital{}
	l.Mana = Vital{}
	l.EnergyShield = Vital{}
}

func vitalFromView(v layout.VitalView) Vital {
	return Vital{
		Current:         v.Current,
		Max:             v.Max,
		ReservedFlat:    v.ReservedFlat,
		ReservedPercent: v.ReservedPercent,
		Regeneration:    v.Regeneration,
	}
}

// Positioned is the positioned component of an entity, all fields are 0
// while unbound.
type Positioned struct {
	reader memory.Reader
	owner  func() memory.Address

	GridX    int32
	GridY    int32
	Reaction uint8
}

// Populate reads the positioned component.
func (p *Positioned) Populate(addr memory.Address) error {
	view, err := memory.Read[layout.PositionedView](p.reader, addr)
	if err != nil {
		return fmt.Errorf("reading positioned component: %w", err)
	}
	if err := checkOwner(view.Header, p.owner()); err != nil {
		return err
	}

	p.GridX = view.GridX
	p.GridY = view.GridY
	p.Reaction = view.Reaction
	return nil
}

// Reset sets the position to 0.
func (p *Positioned) Reset() {
	p.GridX = 0
	p.GridY = 0
	p.Reaction = 0
}

// Friendly returns whether the reaction flags mark the entity as friendly.
func (p *Positioned) Friendly() bool {
	return p.Reaction&0x7f == 1
}

// checkOwner detects components that were freed and reused for another entity.
func checkOwner(header layout.ComponentHeader, owner memory.Address) error {
	if header.Owner != owner {
		return fmt.Errorf("component owner %s does not match entity %s", header.Owner, owner)
	}
	return nil
}
