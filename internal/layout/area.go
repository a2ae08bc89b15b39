package layout

import (
	"github.com/retroenv/procmirror/internal/container"
	"github.com/retroenv/procmirror/internal/memory"
)

// AreaInstanceView is the currently loaded area.
type AreaInstanceView struct {
	_                [0x40]byte
	AreaLevel        uint8
	_                [3]byte
	AreaHash         uint32
	_                [0x18]byte
	EnvironmentKeys  container.Vector // of EnvironmentView
	LocalPlayer      memory.Address
	Players          container.List // of PlayerView
	AwakeEntities    container.Map // EntityNodeKey -> entity address
	SleepingEntities container.Map // EntityNodeKey -> entity address
}

// PlayerView is one player of the area instance.
type PlayerView struct {
	Entity memory.Address
	Name   container.WideString
}

// EnvironmentView is one active environment of an area.
type EnvironmentView struct {
	Key      uint16
	_        [2]byte
	Strength float32
}

// EntityNodeKey is the key of the entity maps.
type EntityNodeKey struct {
	ID uint32
	_  [4]byte
}

// EntityView is one entity.
type EntityView struct {
	_          [8]byte
	Details    memory.Address
	Components container.Vector // of component addresses
	_          [0x30]byte
	ID         uint32
	_          [4]byte
	IsValid    uint8
	_          [7]byte
}

// EntityDetailsView holds the entity path and component name lookup.
type EntityDetailsView struct {
	_               [8]byte
	Path            container.WideString
	_               [0x18]byte
	ComponentLookup memory.Address
}

// ComponentLookupView maps component names to indices of the entity
// component array.
type ComponentLookupView struct {
	_     [0x28]byte
	Names container.Map // container.String -> uint64 index
}

// ComponentHeader is the common header of all components.
type ComponentHeader struct {
	_     [8]byte
	Owner memory.Address
}

// VitalView is one vital of the life component.
type VitalView struct {
	_               [0x10]byte
	Regeneration    float32
	Max             int32
	ReservedFlat    int32
	Current         int32
	ReservedPercent int32
	_               [4]byte
}

// LifeView is the life component.
type LifeView struct {
	Header       ComponentHeader
	_            [0x40]byte
	Health       VitalView
	Mana         VitalView
	EnergyShield VitalView
}

// PositionedView is the positioned component.
type PositionedView struct {
	Header   ComponentHeader
	_        [0x18]byte
	Reaction uint8
	_        [3]byte
	GridX    int32
	GridY    int32
	_        [4]byte
}
