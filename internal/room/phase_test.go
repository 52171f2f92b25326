package room

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhaseIndex(t *testing.T) {
	tests := []struct {
		phase Phase
		want  int
	}{
		{PhasePreparation, 0},
		{PhaseCreateCards, 1},
		{PhasePrepareVote, 2},
		{PhaseVote, 3},
		{PhaseDiscussion, 4},
		{PhaseFinish, 5},
		{Phase("Afterparty"), -1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PhaseIndex(tt.phase), string(tt.phase))
	}
}

func TestPhaseMachineStartsUnknown(t *testing.T) {
	m := NewPhaseMachine()

	_, ok := m.Current()
	assert.False(t, ok)
	assert.Equal(t, -1, m.Index())
	assert.False(t, m.Finished())
}

func TestPhaseMachineApply(t *testing.T) {
	m := NewPhaseMachine()

	require.NoError(t, m.apply("Discussion"))
	phase, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, PhaseDiscussion, phase)
	assert.Equal(t, 4, m.Index())

	// Backward moves are legal; the server's broadcast order decides.
	require.NoError(t, m.apply("Create Cards"))
	assert.Equal(t, 1, m.Index())

	require.Error(t, m.apply("Warmup"))
	phase, _ = m.Current()
	assert.Equal(t, PhaseCreateCards, phase)
}

func TestPhaseMachineFinished(t *testing.T) {
	m := NewPhaseMachine()
	require.NoError(t, m.apply("Finish"))
	assert.True(t, m.Finished())

	require.NoError(t, m.apply("Discussion"))
	assert.False(t, m.Finished(), "leaving Finish clears the finished state")
}

func TestRequestPhaseSendsDirectionOnly(t *testing.T) {
	r, transport := newTestRoom(t)

	require.NoError(t, r.RequestNextPhase())
	require.NoError(t, r.RequestPrevPhase())

	emitted := transport.emittedOfType(EventTypeChangePhase)
	require.Len(t, emitted, 2)

	var first, second ChangePhasePayload
	require.NoError(t, json.Unmarshal(emitted[0].Data, &first))
	require.NoError(t, json.Unmarshal(emitted[1].Data, &second))
	assert.Equal(t, DirectionNext, first.Direction)
	assert.Equal(t, DirectionPrev, second.Direction)

	// The request alone never moves the displayed phase.
	_, known := r.Store().Phase().Current()
	assert.False(t, known)

	transport.deliver(t, EventTypePhaseChanged, PhaseChangedPayload{PhaseID: "Prepare Vote"})
	phase, known := r.Store().Phase().Current()
	require.True(t, known)
	assert.Equal(t, PhasePrepareVote, phase)
}
