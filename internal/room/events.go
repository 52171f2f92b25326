package room

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event is the envelope for every frame on the room event channel, in both
// directions. Data carries the type-specific payload.
type Event struct {
	ID        string          `json:"id,omitempty"`
	RoomID    string          `json:"roomId,omitempty"`
	Type      EventType       `json:"type"`
	AckID     uint64          `json:"ackId,omitempty"`
	Timestamp time.Time       `json:"timestamp,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// EventType identifies the kind of room event.
type EventType string

// Events emitted by the client.
const (
	EventTypeJoinRoom           EventType = "joinRoom"
	EventTypeLeaveRoom          EventType = "leaveRoom"
	EventTypeAddCard            EventType = "addCard"
	EventTypeVoteCard           EventType = "voteCard"
	EventTypeRemoveVote         EventType = "removeVote"
	EventTypeDeleteCard         EventType = "deleteCard"
	EventTypeGetCurrentPhase    EventType = "getCurrentPhase"
	EventTypeChangePhase        EventType = "changePhase"
	EventTypeStartTimer         EventType = "startTimer"
	EventTypePauseTimer         EventType = "pauseTimer"
	EventTypeResetTimer         EventType = "resetTimer"
	EventTypeAddTime            EventType = "addTime"
	EventTypeGetNotes           EventType = "getNotes"
	EventTypeAddNote            EventType = "addNote"
	EventTypeEditNote           EventType = "editNote"
	EventTypeDeleteNote         EventType = "deleteNote"
	EventTypeAddCardToNote      EventType = "addCardToNote"
	EventTypeRemoveCardFromNote EventType = "removeCardFromNote"
)

// Events consumed by the client.
const (
	EventTypeUserJoined      EventType = "userJoined"
	EventTypeUserLeft        EventType = "userLeft"
	EventTypeCardAdded       EventType = "cardAdded"
	EventTypeCardDeleted     EventType = "cardDeleted"
	EventTypeColumnsUpdated  EventType = "columnsUpdated"
	EventTypeUpdateVotes     EventType = "updateVotes"
	EventTypeCurrentPhase    EventType = "currentPhase"
	EventTypePhaseChanged    EventType = "phaseChanged"
	EventTypeTimerUpdate     EventType = "timerUpdate"
	EventTypeNotesList       EventType = "notesList"
	EventTypeNoteAdded       EventType = "noteAdded"
	EventTypeNoteUpdated     EventType = "noteUpdated"
	EventTypeNoteDeleted     EventType = "noteDeleted"
	EventTypeError           EventType = "error"
	EventTypeRoomNameUpdated EventType = "roomNameUpdated"

	// EventTypeAck carries the server's acknowledgement for a request frame
	// that was sent with an AckID.
	EventTypeAck EventType = "ack"
)

// Direction is a phase transition intent. The client never computes the next
// phase itself; it only sends the direction and waits for the broadcast.
type Direction string

const (
	DirectionPrev Direction = "prev"
	DirectionNext Direction = "next"
)

// TimerEventType tags an authoritative timer snapshot with what triggered it.
type TimerEventType string

const (
	TimerEventStart  TimerEventType = "start"
	TimerEventPause  TimerEventType = "pause"
	TimerEventReset  TimerEventType = "reset"
	TimerEventUpdate TimerEventType = "update"
	TimerEventDone   TimerEventType = "done"
)

// Client request payloads.

type JoinRoomPayload struct {
	UserID string `json:"userId"`
	RoomID string `json:"roomId"`
}

type LeaveRoomPayload struct {
	UserID string `json:"userId"`
	RoomID string `json:"roomId"`
}

type AddCardPayload struct {
	RoomID   string `json:"roomId"`
	Content  string `json:"content"`
	ColumnID string `json:"columnId"`
	Author   string `json:"author"`
}

type VotePayload struct {
	RoomID string `json:"roomId"`
	CardID string `json:"cardId"`
	UserID string `json:"userId"`
}

type DeleteCardPayload struct {
	RoomID string `json:"roomId"`
	CardID string `json:"cardId"`
}

type GetCurrentPhasePayload struct {
	RoomID string `json:"roomId"`
}

type ChangePhasePayload struct {
	RoomID    string    `json:"roomId"`
	Direction Direction `json:"direction"`
}

type StartTimerPayload struct {
	RoomID      string `json:"roomId"`
	Duration    int    `json:"duration"`
	InitialTime int    `json:"initialTime,omitempty"`
}

type PauseTimerPayload struct {
	RoomID        string `json:"roomId"`
	RemainingTime int    `json:"remainingTime"`
}

type ResetTimerPayload struct {
	RoomID string `json:"roomId"`
}

type AddTimePayload struct {
	RoomID string `json:"roomId"`
	Time   int    `json:"time"`
}

type GetNotesPayload struct {
	RoomID string `json:"roomId"`
}

type AddNotePayload struct {
	RoomID string    `json:"roomId"`
	Note   NoteDraft `json:"note"`
}

type EditNotePayload struct {
	RoomID      string    `json:"roomId"`
	NoteID      string    `json:"noteId"`
	UpdatedData NoteDraft `json:"updatedData"`
}

type DeleteNotePayload struct {
	RoomID string `json:"roomId"`
	NoteID string `json:"noteId"`
}

type AddCardToNotePayload struct {
	RoomID string  `json:"roomId"`
	NoteID string  `json:"noteId"`
	Card   CardRef `json:"card"`
}

type RemoveCardFromNotePayload struct {
	RoomID string `json:"roomId"`
	NoteID string `json:"noteId"`
	CardID string `json:"cardId"`
}

// Server broadcast payloads.

type UserJoinedPayload struct {
	Users []User `json:"users"`
}

type UserLeftPayload struct {
	Users []User `json:"users"`
}

type CardAddedPayload struct {
	Card Card `json:"card"`
}

type CardDeletedPayload struct {
	CardID string `json:"cardId"`
}

// ColumnsUpdatedPayload carries the full column list after any column was
// created, renamed or deleted. The board layout is edited server-side; the
// client only ever replaces its list wholesale.
type ColumnsUpdatedPayload struct {
	Columns []Column `json:"columns"`
}

type UpdateVotesPayload struct {
	CardID string   `json:"cardId"`
	Votes  int      `json:"votes"`
	Voters []string `json:"voters"`
}

type CurrentPhasePayload struct {
	CurrentPhaseID string `json:"currentPhaseId"`
}

type PhaseChangedPayload struct {
	PhaseID string `json:"phaseId"`
}

type TimerUpdatePayload struct {
	IsRunning     bool           `json:"isRunning"`
	RemainingTime int            `json:"remainingTime"`
	InitialTime   int            `json:"initialTime"`
	EventType     TimerEventType `json:"eventType"`
}

type NotesListPayload struct {
	Notes []Note `json:"notes"`
}

type NoteAddedPayload struct {
	Note Note `json:"note"`
}

type NoteUpdatedPayload struct {
	Note Note `json:"note"`
}

type NoteDeletedPayload struct {
	NoteID string `json:"noteId"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type RoomNameUpdatedPayload struct {
	RoomID string `json:"roomId"`
	Name   string `json:"name"`
}

// AckPayload is the server's reply to a request frame carrying an AckID. An
// empty Error means the request was accepted.
type AckPayload struct {
	Error string `json:"error,omitempty"`
}

// ParseEventPayload parses event data into the appropriate payload struct.
// Unknown event types return a nil payload so callers can skip them.
func ParseEventPayload(event *Event) (interface{}, error) {
	switch event.Type {
	case EventTypeUserJoined:
		var payload UserJoinedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, fmt.Errorf("parse %s payload: %w", event.Type, err)
		}
		return payload, nil

	case EventTypeUserLeft:
		var payload UserLeftPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, fmt.Errorf("parse %s payload: %w", event.Type, err)
		}
		return payload, nil

	case EventTypeCardAdded:
		var payload CardAddedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, fmt.Errorf("parse %s payload: %w", event.Type, err)
		}
		return payload, nil

	case EventTypeCardDeleted:
		var payload CardDeletedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, fmt.Errorf("parse %s payload: %w", event.Type, err)
		}
		return payload, nil

	case EventTypeColumnsUpdated:
		var payload ColumnsUpdatedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, fmt.Errorf("parse %s payload: %w", event.Type, err)
		}
		return payload, nil

	case EventTypeUpdateVotes:
		var payload UpdateVotesPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, fmt.Errorf("parse %s payload: %w", event.Type, err)
		}
		return payload, nil

	case EventTypeCurrentPhase:
		var payload CurrentPhasePayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, fmt.Errorf("parse %s payload: %w", event.Type, err)
		}
		return payload, nil

	case EventTypePhaseChanged:
		var payload PhaseChangedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, fmt.Errorf("parse %s payload: %w", event.Type, err)
		}
		return payload, nil

	case EventTypeTimerUpdate:
		var payload TimerUpdatePayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, fmt.Errorf("parse %s payload: %w", event.Type, err)
		}
		return payload, nil

	case EventTypeNotesList:
		var payload NotesListPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, fmt.Errorf("parse %s payload: %w", event.Type, err)
		}
		return payload, nil

	case EventTypeNoteAdded:
		var payload NoteAddedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, fmt.Errorf("parse %s payload: %w", event.Type, err)
		}
		return payload, nil

	case EventTypeNoteUpdated:
		var payload NoteUpdatedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, fmt.Errorf("parse %s payload: %w", event.Type, err)
		}
		return payload, nil

	case EventTypeNoteDeleted:
		var payload NoteDeletedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, fmt.Errorf("parse %s payload: %w", event.Type, err)
		}
		return payload, nil

	case EventTypeError:
		var payload ErrorPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, fmt.Errorf("parse %s payload: %w", event.Type, err)
		}
		return payload, nil

	case EventTypeRoomNameUpdated:
		var payload RoomNameUpdatedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, fmt.Errorf("parse %s payload: %w", event.Type, err)
		}
		return payload, nil

	case EventTypeAck:
		var payload AckPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, fmt.Errorf("parse %s payload: %w", event.Type, err)
		}
		return payload, nil

	default:
		return nil, nil // Unknown event type
	}
}
