package room

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport records emissions and lets tests push inbound events, so the
// reconciliation logic can be driven without a live websocket.
type fakeTransport struct {
	mu        sync.Mutex
	connected bool
	emitted   []*Event
	nextSub   uint64
	subs      map[EventType]map[uint64]EventHandler
	joined    []func()

	// ackErr makes EmitWithAck fail for the given event types.
	ackErr map[EventType]string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		subs:   make(map[EventType]map[uint64]EventHandler),
		ackErr: make(map[EventType]string),
	}
}

func (f *fakeTransport) Connect(ctx context.Context, userID, roomID string) error {
	f.mu.Lock()
	f.connected = true
	joined := append([]func(){}, f.joined...)
	f.mu.Unlock()
	for _, fn := range joined {
		fn()
	}
	return nil
}

func (f *fakeTransport) Disconnect() {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
}

func (f *fakeTransport) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) Emit(t EventType, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.emitted = append(f.emitted, &Event{Type: t, Data: data})
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) EmitWithAck(ctx context.Context, t EventType, payload interface{}) error {
	if err := f.Emit(t, payload); err != nil {
		return err
	}
	f.mu.Lock()
	msg, failed := f.ackErr[t]
	f.mu.Unlock()
	if failed {
		return fmt.Errorf("%s rejected: %s", t, msg)
	}
	return nil
}

func (f *fakeTransport) Subscribe(t EventType, h EventHandler) func() {
	f.mu.Lock()
	f.nextSub++
	id := f.nextSub
	if f.subs[t] == nil {
		f.subs[t] = make(map[uint64]EventHandler)
	}
	f.subs[t][id] = h
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.subs[t], id)
		f.mu.Unlock()
	}
}

func (f *fakeTransport) OnJoined(fn func()) {
	f.mu.Lock()
	f.joined = append(f.joined, fn)
	f.mu.Unlock()
}

// deliver pushes an inbound event to subscribers, as the read loop would.
func (f *fakeTransport) deliver(t *testing.T, eventType EventType, payload interface{}) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)

	f.mu.Lock()
	handlers := make([]EventHandler, 0, len(f.subs[eventType]))
	for _, h := range f.subs[eventType] {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()

	evt := &Event{Type: eventType, Data: data}
	for _, h := range handlers {
		h(evt)
	}
}

// emittedOfType returns the decoded payloads of all emissions of one type.
func (f *fakeTransport) emittedOfType(eventType EventType) []*Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Event
	for _, e := range f.emitted {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func newTestRoom(t *testing.T) (*Room, *fakeTransport) {
	t.Helper()
	transport := newFakeTransport()
	r := New(transport, "user-1", "room-1")
	require.NoError(t, r.Join(context.Background()))
	return r, transport
}

func TestJoinConnectsAndRequestsAuthoritativeState(t *testing.T) {
	_, transport := newTestRoom(t)

	assert.True(t, transport.Connected())
	assert.Len(t, transport.emittedOfType(EventTypeGetCurrentPhase), 1)
	assert.Len(t, transport.emittedOfType(EventTypeGetNotes), 1)
}

func TestJoinTwiceIsNoop(t *testing.T) {
	r, transport := newTestRoom(t)

	require.NoError(t, r.Join(context.Background()))
	assert.Len(t, transport.emittedOfType(EventTypeGetCurrentPhase), 1)
}

func TestLeaveDisposesSubscriptions(t *testing.T) {
	r, transport := newTestRoom(t)

	transport.deliver(t, EventTypeCardAdded, CardAddedPayload{
		Card: Card{ID: "c1", ColumnID: "col-1", Content: "before leave"},
	})
	require.Len(t, r.Store().Cards(), 1)

	r.Leave()
	assert.False(t, transport.Connected())

	transport.deliver(t, EventTypeCardAdded, CardAddedPayload{
		Card: Card{ID: "c2", ColumnID: "col-1", Content: "after leave"},
	})
	assert.Len(t, r.Store().Cards(), 1, "events after leave must not reach the store")
}

func TestAddCardValidatesAndEmits(t *testing.T) {
	r, transport := newTestRoom(t)
	ctx := context.Background()

	assert.ErrorIs(t, r.AddCard(ctx, "col-1", "   "), ErrEmptyContent)
	assert.Empty(t, transport.emittedOfType(EventTypeAddCard))

	require.NoError(t, r.AddCard(ctx, "col-1", "  Great sprint!  "))
	emitted := transport.emittedOfType(EventTypeAddCard)
	require.Len(t, emitted, 1)

	var payload AddCardPayload
	require.NoError(t, json.Unmarshal(emitted[0].Data, &payload))
	assert.Equal(t, "Great sprint!", payload.Content)
	assert.Equal(t, "col-1", payload.ColumnID)
	assert.Equal(t, "user-1", payload.Author)

	// The card shows up only once the broadcast echoes back.
	assert.Empty(t, r.Store().CardsInColumn("col-1"))
	transport.deliver(t, EventTypeCardAdded, CardAddedPayload{
		Card: Card{ID: "c1", ColumnID: "col-1", Author: "user-1", Content: "Great sprint!"},
	})
	cards := r.Store().CardsInColumn("col-1")
	require.Len(t, cards, 1)
	assert.Equal(t, "Great sprint!", cards[0].Content)
}

func TestDeleteCardIsTwoPhase(t *testing.T) {
	r, transport := newTestRoom(t)
	ctx := context.Background()

	transport.deliver(t, EventTypeCardAdded, CardAddedPayload{
		Card: Card{ID: "c1", ColumnID: "col-1", Content: "to delete"},
	})

	assert.ErrorIs(t, r.ConfirmCardDeletion(ctx, "c1"), ErrNotPendingDeletion)

	r.RequestCardDeletion("c1")
	assert.True(t, r.Store().IsPendingDeletion("c1"))

	r.CancelCardDeletion("c1")
	assert.ErrorIs(t, r.ConfirmCardDeletion(ctx, "c1"), ErrNotPendingDeletion)

	r.RequestCardDeletion("c1")
	require.NoError(t, r.ConfirmCardDeletion(ctx, "c1"))

	// Still present until the broadcast confirms.
	assert.Len(t, r.Store().Cards(), 1)
	transport.deliver(t, EventTypeCardDeleted, CardDeletedPayload{CardID: "c1"})
	assert.Empty(t, r.Store().Cards())
	assert.False(t, r.Store().IsPendingDeletion("c1"))
}
