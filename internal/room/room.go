package room

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Transport is the event channel surface the room view depends on. *Session
// is the production implementation.
type Transport interface {
	Connect(ctx context.Context, userID, roomID string) error
	Disconnect()
	Connected() bool
	Emit(t EventType, payload interface{}) error
	EmitWithAck(ctx context.Context, t EventType, payload interface{}) error
	Subscribe(t EventType, h EventHandler) func()
	OnJoined(fn func())
}

// inboundEventTypes is the closed set of server events folded into the
// store.
var inboundEventTypes = []EventType{
	EventTypeUserJoined,
	EventTypeUserLeft,
	EventTypeCardAdded,
	EventTypeCardDeleted,
	EventTypeColumnsUpdated,
	EventTypeUpdateVotes,
	EventTypeCurrentPhase,
	EventTypePhaseChanged,
	EventTypeTimerUpdate,
	EventTypeNotesList,
	EventTypeNoteAdded,
	EventTypeNoteUpdated,
	EventTypeNoteDeleted,
	EventTypeError,
	EventTypeRoomNameUpdated,
}

// Room ties one joined room view together: the transport session, the state
// store it feeds, and the guarded operations the view exposes. It owns the
// store for the lifetime of the view; Leave tears everything down.
type Room struct {
	transport Transport
	store     *Store
	votes     *voteGuard
	clock     clockwork.Clock

	userID string
	roomID string

	mu        sync.Mutex
	disposers []func()
	joined    bool
}

// New creates a room view bound to (userID, roomID) over the given
// transport.
func New(transport Transport, userID, roomID string) *Room {
	return NewWithClock(transport, userID, roomID, clockwork.NewRealClock())
}

// NewWithClock creates a room view with an injected clock for the timer and
// vote cooldown machinery.
func NewWithClock(transport Transport, userID, roomID string, clock clockwork.Clock) *Room {
	r := &Room{
		transport: transport,
		store:     NewStore(roomID, clock),
		votes:     newVoteGuard(clock),
		clock:     clock,
		userID:    userID,
		roomID:    roomID,
	}
	// Re-request authoritative state after every join handshake, including
	// the ones re-run by reconnection.
	transport.OnJoined(r.requestAuthoritativeState)
	return r
}

// Store exposes the room state for rendering.
func (r *Room) Store() *Store { return r.store }

// UserID returns the joined user's id.
func (r *Room) UserID() string { return r.userID }

// RoomID returns the room id.
func (r *Room) RoomID() string { return r.roomID }

// Join registers all inbound event subscriptions and connects the transport.
// Calling Join on a joined room is a no-op.
func (r *Room) Join(ctx context.Context) error {
	r.mu.Lock()
	if r.joined {
		r.mu.Unlock()
		return nil
	}
	for _, t := range inboundEventTypes {
		r.disposers = append(r.disposers, r.transport.Subscribe(t, r.handleEvent))
	}
	r.joined = true
	r.mu.Unlock()

	if err := r.transport.Connect(ctx, r.userID, r.roomID); err != nil {
		r.Leave()
		return err
	}
	return nil
}

// Leave disposes all subscriptions and disconnects the transport. The store
// holds no durable state; the room view is gone after this.
func (r *Room) Leave() {
	r.mu.Lock()
	disposers := r.disposers
	r.disposers = nil
	r.joined = false
	r.mu.Unlock()

	for _, dispose := range disposers {
		dispose()
	}
	r.transport.Disconnect()
}

func (r *Room) handleEvent(evt *Event) {
	if err := r.store.ProcessEvent(evt); err != nil {
		log.Warn().
			Err(err).
			Str("event_type", string(evt.Type)).
			Str("room_id", r.roomID).
			Msg("failed to fold inbound event")
	}
}

// requestAuthoritativeState asks the server for the state that is only
// available over the event channel. The replies arrive as ordinary inbound
// events.
func (r *Room) requestAuthoritativeState() {
	if err := r.transport.Emit(EventTypeGetCurrentPhase, GetCurrentPhasePayload{RoomID: r.roomID}); err != nil {
		log.Warn().Err(err).Msg("could not request current phase")
	}
	if err := r.transport.Emit(EventTypeGetNotes, GetNotesPayload{RoomID: r.roomID}); err != nil {
		log.Warn().Err(err).Msg("could not request notes")
	}
}

// RequestNextPhase sends a directional transition intent. The displayed
// phase changes only when the phaseChanged broadcast comes back.
func (r *Room) RequestNextPhase() error {
	return r.requestPhase(DirectionNext)
}

// RequestPrevPhase sends the backward transition intent.
func (r *Room) RequestPrevPhase() error {
	return r.requestPhase(DirectionPrev)
}

func (r *Room) requestPhase(d Direction) error {
	return r.transport.Emit(EventTypeChangePhase, ChangePhasePayload{
		RoomID:    r.roomID,
		Direction: d,
	})
}

// StartTimer requests a countdown start and applies the best-effort local
// visual update. The next authoritative snapshot supersedes it.
func (r *Room) StartTimer(d time.Duration) error {
	if d <= 0 {
		return ErrEmptyTimer
	}
	payload := StartTimerPayload{
		RoomID:   r.roomID,
		Duration: int(d / time.Second),
	}
	if r.store.Timer().State().Initial == 0 {
		payload.InitialTime = payload.Duration
	}
	if err := r.transport.Emit(EventTypeStartTimer, payload); err != nil {
		return err
	}
	r.store.Timer().localStart(d)
	return nil
}

// PauseTimer requests a pause, reporting the locally extrapolated remaining
// time.
func (r *Room) PauseTimer() error {
	rem := r.store.Timer().localPause()
	return r.transport.Emit(EventTypePauseTimer, PauseTimerPayload{
		RoomID:        r.roomID,
		RemainingTime: int(rem / time.Second),
	})
}

// ResetTimer requests a reset back to idle.
func (r *Room) ResetTimer() error {
	if err := r.transport.Emit(EventTypeResetTimer, ResetTimerPayload{RoomID: r.roomID}); err != nil {
		return err
	}
	r.store.Timer().localReset()
	return nil
}

// AddTimerTime requests extra time on the running or paused countdown.
func (r *Room) AddTimerTime(d time.Duration) error {
	if err := r.transport.Emit(EventTypeAddTime, AddTimePayload{
		RoomID: r.roomID,
		Time:   int(d / time.Second),
	}); err != nil {
		return err
	}
	r.store.Timer().localAdd(d)
	return nil
}
