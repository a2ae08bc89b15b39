package layout

import (
	"errors"
	"testing"

	"github.com/retroenv/procmirror/internal/memory"
	"github.com/retroenv/retrogolib/assert"
)

func TestViewSizes(t *testing.T) {
	tests := []struct {
		name string
		size int
		want int
	}{
		{"StaticGameStates", memory.SizeOf[StaticGameStates](), 8},
		{"StatePair", memory.SizeOf[StatePair](), 16},
		{"StateRegistry", memory.SizeOf[StateRegistry](), 0x108},
		{"AreaChangeCounter", memory.SizeOf[AreaChangeCounter](), 4},
		{"AreaLoadingView", memory.SizeOf[AreaLoadingView](), 0x60},
		{"InGameView", memory.SizeOf[InGameView](), 0x50},
		{"AreaInstanceView", memory.SizeOf[AreaInstanceView](), 0xB0},
		{"PlayerView", memory.SizeOf[PlayerView](), 0x28},
		{"EnvironmentView", memory.SizeOf[EnvironmentView](), 8},
		{"EntityNodeKey", memory.SizeOf[EntityNodeKey](), 8},
		{"EntityView", memory.SizeOf[EntityView](), 0x68},
		{"EntityDetailsView", memory.SizeOf[EntityDetailsView](), 0x48},
		{"ComponentLookupView", memory.SizeOf[ComponentLookupView](), 0x38},
		{"ComponentHeader", memory.SizeOf[ComponentHeader](), 0x10},
		{"VitalView", memory.SizeOf[VitalView](), 0x28},
		{"LifeView", memory.SizeOf[LifeView](), 0xC8},
		{"PositionedView", memory.SizeOf[PositionedView](), 0x38},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.size)
		})
	}
}

func TestCheck(t *testing.T) {
	assert.NoError(t, Check(""))
	assert.NoError(t, Check(Build))

	err := Check("0.1.0")
	assert.True(t, errors.Is(err, ErrUnknownBuild))
	assert.ErrorContains(t, err, Build)
}

func TestMatch(t *testing.T) {
	assert.NoError(t, Match("", Build))
	assert.NoError(t, Match(Build, ""))
	assert.NoError(t, Match(Build, Build))

	err := Match("3.25.2", Build)
	assert.True(t, errors.Is(err, ErrBuildMismatch))
	assert.ErrorContains(t, err, "3.25.2")
}

func TestStateKindString(t *testing.T) {
	assert.Equal(t, "AreaLoadingState", AreaLoadingState.String())
	assert.Equal(t, "InGameState", InGameState.String())
	assert.Equal(t, "LoadingState", LoadingState.String())
	assert.Equal(t, "StateKind(12)", StateKind(StateCount).String())
}
