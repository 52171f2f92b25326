package room

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRaw(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestParseEventPayload(t *testing.T) {
	tests := []struct {
		name  string
		event *Event
		want  interface{}
	}{
		{
			name: "userJoined",
			event: &Event{
				Type: EventTypeUserJoined,
				Data: mustRaw(t, UserJoinedPayload{Users: []User{{UserID: "u1", Username: "ada"}}}),
			},
			want: UserJoinedPayload{Users: []User{{UserID: "u1", Username: "ada"}}},
		},
		{
			name: "cardAdded",
			event: &Event{
				Type: EventTypeCardAdded,
				Data: mustRaw(t, CardAddedPayload{Card: Card{ID: "c1", ColumnID: "col-1", Content: "hi"}}),
			},
			want: CardAddedPayload{Card: Card{ID: "c1", ColumnID: "col-1", Content: "hi"}},
		},
		{
			name: "updateVotes",
			event: &Event{
				Type: EventTypeUpdateVotes,
				Data: mustRaw(t, UpdateVotesPayload{CardID: "c1", Votes: 2, Voters: []string{"u1", "u2"}}),
			},
			want: UpdateVotesPayload{CardID: "c1", Votes: 2, Voters: []string{"u1", "u2"}},
		},
		{
			name: "phaseChanged",
			event: &Event{
				Type: EventTypePhaseChanged,
				Data: mustRaw(t, PhaseChangedPayload{PhaseID: "Vote"}),
			},
			want: PhaseChangedPayload{PhaseID: "Vote"},
		},
		{
			name: "timerUpdate",
			event: &Event{
				Type: EventTypeTimerUpdate,
				Data: mustRaw(t, TimerUpdatePayload{IsRunning: true, RemainingTime: 120, InitialTime: 300, EventType: TimerEventStart}),
			},
			want: TimerUpdatePayload{IsRunning: true, RemainingTime: 120, InitialTime: 300, EventType: TimerEventStart},
		},
		{
			name: "noteAdded",
			event: &Event{
				Type: EventTypeNoteAdded,
				Data: mustRaw(t, NoteAddedPayload{Note: Note{UUID: "n1", Text: "follow up"}}),
			},
			want: NoteAddedPayload{Note: Note{UUID: "n1", Text: "follow up"}},
		},
		{
			name: "error",
			event: &Event{
				Type: EventTypeError,
				Data: mustRaw(t, ErrorPayload{Message: "room is full"}),
			},
			want: ErrorPayload{Message: "room is full"},
		},
		{
			name: "ack",
			event: &Event{
				Type:  EventTypeAck,
				AckID: 7,
				Data:  mustRaw(t, AckPayload{Error: "not allowed"}),
			},
			want: AckPayload{Error: "not allowed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEventPayload(tt.event)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseEventPayloadUnknownType(t *testing.T) {
	got, err := ParseEventPayload(&Event{Type: "somethingNew", Data: json.RawMessage(`{"x":1}`)})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestParseEventPayloadMalformed(t *testing.T) {
	_, err := ParseEventPayload(&Event{
		Type: EventTypeCardAdded,
		Data: json.RawMessage(`{"card": "not-an-object"`),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cardAdded")
}

func TestEventEnvelopeRoundTrip(t *testing.T) {
	evt := &Event{
		ID:     "evt-1",
		RoomID: "room-1",
		Type:   EventTypeVoteCard,
		AckID:  3,
		Data:   mustRaw(t, VotePayload{RoomID: "room-1", CardID: "c1", UserID: "u1"}),
	}

	wire, err := json.Marshal(evt)
	require.NoError(t, err)

	var decoded Event
	require.NoError(t, json.Unmarshal(wire, &decoded))
	assert.Equal(t, EventTypeVoteCard, decoded.Type)
	assert.Equal(t, uint64(3), decoded.AckID)

	var payload VotePayload
	require.NoError(t, json.Unmarshal(decoded.Data, &payload))
	assert.Equal(t, "c1", payload.CardID)
}
