package room

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedFinishedRoom(t *testing.T) (*Room, *fakeTransport) {
	t.Helper()
	r, transport := newTestRoom(t)
	r.Store().Bootstrap("Sprint 12", []Column{
		{ID: "col-1", Name: "Went well", Position: 0},
		{ID: "col-2", Name: "To improve", Position: 1},
	}, nil)

	for _, card := range []Card{
		{ID: "c1", ColumnID: "col-1", Content: "pairing worked", Votes: 5},
		{ID: "c2", ColumnID: "col-2", Content: "standups run long", Votes: 3},
		{ID: "c3", ColumnID: "col-2", Content: "flaky deploys", Votes: 1},
		{ID: "c4", ColumnID: "col-1", Content: "good demos", Votes: 0},
	} {
		transport.deliver(t, EventTypeCardAdded, CardAddedPayload{Card: card})
	}
	transport.deliver(t, EventTypeNoteAdded, NoteAddedPayload{Note: Note{
		UUID: "n1", Text: "timebox standups", Executor: "ada", DueDate: "2026-09-15",
	}})
	transport.deliver(t, EventTypePhaseChanged, PhaseChangedPayload{PhaseID: "Finish"})
	return r, transport
}

func TestSummaryAggregatesVotesAndRanks(t *testing.T) {
	r, _ := seedFinishedRoom(t)

	s := r.Summary()
	assert.Equal(t, "Sprint 12", s.RoomName)
	assert.Equal(t, 9, s.TotalVotes)

	require.Len(t, s.Ranked, 3)
	assert.Equal(t, "c1", s.Ranked[0].Card.ID)
	assert.Equal(t, 1, s.Ranked[0].Rank)
	assert.Equal(t, "c2", s.Ranked[1].Card.ID)
	assert.Equal(t, "c3", s.Ranked[2].Card.ID)

	require.Len(t, s.Columns, 2)
	assert.Equal(t, "Went well", s.Columns[0].Column.Name)
	assert.Len(t, s.Columns[0].Cards, 2)
	assert.Len(t, s.Columns[1].Cards, 2)

	require.Len(t, s.Notes, 1)
}

func TestSummaryText(t *testing.T) {
	r, _ := seedFinishedRoom(t)

	text := r.Summary().Text()
	assert.Contains(t, text, "Retrospective: Sprint 12")
	assert.Contains(t, text, "Total votes: 9")
	assert.Contains(t, text, "1. pairing worked (5 votes)")
	assert.Contains(t, text, "To improve:")
	assert.Contains(t, text, "- timebox standups [ada] due 2026-09-15")
}

func TestSummaryOfEmptyRoom(t *testing.T) {
	r, _ := newTestRoom(t)
	r.Store().Bootstrap("Fresh", nil, nil)

	s := r.Summary()
	assert.Zero(t, s.TotalVotes)
	assert.Empty(t, s.Ranked)
	assert.Contains(t, s.Text(), "Retrospective: Fresh")
}
