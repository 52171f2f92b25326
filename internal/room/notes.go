package room

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// CardRef is a card reference carried inside a note.
type CardRef struct {
	ID      string `json:"_id"`
	Content string `json:"content,omitempty"`
}

// Note is an action item optionally linking cards, round-tripped through the
// server and matched locally by uuid.
type Note struct {
	UUID      string    `json:"uuid"`
	Text      string    `json:"text"`
	Executor  string    `json:"executor,omitempty"`
	DueDate   string    `json:"dueDate,omitempty"`
	Cards     []CardRef `json:"cards"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// NoteDraft is the client-side working copy of a note. It lives entirely in
// the editor until submit; the uuid is generated up front and carried
// through the round trip so the echoed broadcast reconciles the optimistic
// entry instead of duplicating it.
type NoteDraft struct {
	UUID     string    `json:"uuid"`
	Text     string    `json:"text"`
	Executor string    `json:"executor,omitempty"`
	DueDate  string    `json:"dueDate,omitempty"`
	Cards    []CardRef `json:"cards"`
}

// NewNoteDraft creates an empty draft with a fresh uuid.
func NewNoteDraft() *NoteDraft {
	return &NoteDraft{UUID: uuid.New().String()}
}

// DraftFromNote creates a draft pre-filled from an existing note, for the
// edit flow.
func DraftFromNote(n Note) *NoteDraft {
	return &NoteDraft{
		UUID:     n.UUID,
		Text:     n.Text,
		Executor: n.Executor,
		DueDate:  n.DueDate,
		Cards:    append([]CardRef(nil), n.Cards...),
	}
}

// AttachCard links a card to the draft. Attaching a card that is already in
// the list is an idempotent no-op, not an error; it returns false and logs a
// warning.
func (d *NoteDraft) AttachCard(card CardRef) bool {
	for _, ref := range d.Cards {
		if ref.ID == card.ID {
			log.Warn().
				Str("note_id", d.UUID).
				Str("card_id", card.ID).
				Msg("card already attached to note")
			return false
		}
	}
	d.Cards = append(d.Cards, card)
	return true
}

// DetachCard filters the card out of the draft.
func (d *NoteDraft) DetachCard(cardID string) {
	kept := d.Cards[:0]
	for _, ref := range d.Cards {
		if ref.ID != cardID {
			kept = append(kept, ref)
		}
	}
	d.Cards = kept
}

func (d *NoteDraft) note(now time.Time) Note {
	return Note{
		UUID:      d.UUID,
		Text:      d.Text,
		Executor:  d.Executor,
		DueDate:   d.DueDate,
		Cards:     append([]CardRef(nil), d.Cards...),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SubmitNote emits the full draft as an addNote request, with an optimistic
// local insertion that the echoed broadcast replaces. A rejected submission
// rolls the optimistic entry back.
func (r *Room) SubmitNote(ctx context.Context, draft *NoteDraft) error {
	if strings.TrimSpace(draft.Text) == "" {
		return ErrEmptyContent
	}

	r.store.insertDraft(draft.note(r.clock.Now()))
	err := r.transport.EmitWithAck(ctx, EventTypeAddNote, AddNotePayload{
		RoomID: r.roomID,
		Note:   *draft,
	})
	if err != nil {
		r.store.removeDraft(draft.UUID)
		return err
	}
	return nil
}

// EditNote emits the full draft as an editNote request for an existing note.
// The local list changes only when the noteUpdated broadcast arrives.
func (r *Room) EditNote(ctx context.Context, noteID string, draft *NoteDraft) error {
	if strings.TrimSpace(draft.Text) == "" {
		return ErrEmptyContent
	}
	return r.transport.EmitWithAck(ctx, EventTypeEditNote, EditNotePayload{
		RoomID:      r.roomID,
		NoteID:      noteID,
		UpdatedData: *draft,
	})
}

// DeleteNote requests deletion; removal happens on the noteDeleted
// broadcast.
func (r *Room) DeleteNote(ctx context.Context, noteID string) error {
	return r.transport.EmitWithAck(ctx, EventTypeDeleteNote, DeleteNotePayload{
		RoomID: r.roomID,
		NoteID: noteID,
	})
}

// AttachCardToNote links a card to a committed note. If the card is already
// attached in the local working model the request is skipped as an
// idempotent no-op.
func (r *Room) AttachCardToNote(ctx context.Context, noteID string, card CardRef) error {
	if note, ok := r.store.Note(noteID); ok {
		for _, ref := range note.Cards {
			if ref.ID == card.ID {
				log.Warn().
					Str("note_id", noteID).
					Str("card_id", card.ID).
					Msg("card already attached to note")
				return nil
			}
		}
	}
	return r.transport.EmitWithAck(ctx, EventTypeAddCardToNote, AddCardToNotePayload{
		RoomID: r.roomID,
		NoteID: noteID,
		Card:   card,
	})
}

// RemoveCardFromNote unlinks a card from a committed note.
func (r *Room) RemoveCardFromNote(ctx context.Context, noteID, cardID string) error {
	return r.transport.EmitWithAck(ctx, EventTypeRemoveCardFromNote, RemoveCardFromNotePayload{
		RoomID: r.roomID,
		NoteID: noteID,
		CardID: cardID,
	})
}
