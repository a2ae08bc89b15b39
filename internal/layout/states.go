package layout

import (
	"fmt"

	"github.com/retroenv/procmirror/internal/container"
	"github.com/retroenv/procmirror/internal/memory"
)

// StateKind is the index of a game state in the state registry.
type StateKind int

// Game states in registry order.
const (
	AreaLoadingState StateKind = iota
	WaitingState
	CreditsState
	EscapeState
	InGameState
	ChangePasswordState
	LoginState
	PreGameState
	CreateCharacterState
	SelectCharacterState
	DeleteCharacterState
	LoadingState

	StateCount = 12
)

var stateNames = [StateCount]string{
	"AreaLoadingState",
	"WaitingState",
	"CreditsState",
	"EscapeState",
	"InGameState",
	"ChangePasswordState",
	"LoginState",
	"PreGameState",
	"CreateCharacterState",
	"SelectCharacterState",
	"DeleteCharacterState",
	"LoadingState",
}

func (k StateKind) String() string {
	if k < 0 || k >= StateCount {
		return fmt.Sprintf("StateKind(%d)", int(k))
	}
	return stateNames[k]
}

// StaticGameStates is the object at the GameStates static address.
type StaticGameStates struct {
	Registry memory.Address
}

// StatePair is a shared pointer to a state object.
type StatePair struct {
	State memory.Address
	_     [8]byte // control block
}

// StateRegistry holds all state objects and the stack of active states.
// The last element of Current is the active state.
type StateRegistry struct {
	_       [8]byte
	Current container.Vector // of StatePair
	_       [0x28]byte
	States  [StateCount]StatePair
}

// AreaChangeCounter is the object at the AreaChangeCounter static address.
type AreaChangeCounter struct {
	Counter uint32
}

// AreaLoadingView is the area loading state.
type AreaLoadingView struct {
	_                [0x10]byte
	IsLoading        uint32
	_                [4]byte
	LoadingStartTime uint64 // milliseconds of the target uptime clock
	_                [0x20]byte
	AreaName         container.WideString
}

// InGameView is the in game state.
type InGameView struct {
	_            [0x20]byte
	AreaInstance memory.Address
	_            [0x10]byte
	UIRoot       memory.Address
	_            [8]byte
	WorldData    memory.Address
}
