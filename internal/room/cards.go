package room

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrEmptyContent blocks empty card or note text before any emission;
	// no network round trip occurs.
	ErrEmptyContent = errors.New("content must not be empty")

	// ErrNotPendingDeletion means the delete confirmation flow was never
	// started for the card.
	ErrNotPendingDeletion = errors.New("card is not marked for deletion")
)

// AddCard validates the content and emits an add request. No local id is
// fabricated; the card appears only when the cardAdded broadcast arrives.
func (r *Room) AddCard(ctx context.Context, columnID, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyContent
	}
	return r.transport.EmitWithAck(ctx, EventTypeAddCard, AddCardPayload{
		RoomID:   r.roomID,
		Content:  content,
		ColumnID: columnID,
		Author:   r.userID,
	})
}

// RequestCardDeletion marks a card pending deletion while the confirmation
// prompt is open. Nothing is emitted yet.
func (r *Room) RequestCardDeletion(cardID string) {
	r.store.MarkPendingDeletion(cardID)
}

// CancelCardDeletion aborts the confirmation flow.
func (r *Room) CancelCardDeletion(cardID string) {
	r.store.ClearPendingDeletion(cardID)
}

// ConfirmCardDeletion emits the delete request for a card that was marked
// pending. The card leaves the store only on the cardDeleted broadcast, so
// every participant converges on the same final list regardless of who
// deleted it.
func (r *Room) ConfirmCardDeletion(ctx context.Context, cardID string) error {
	if !r.store.IsPendingDeletion(cardID) {
		return ErrNotPendingDeletion
	}
	return r.transport.EmitWithAck(ctx, EventTypeDeleteCard, DeleteCardPayload{
		RoomID: r.roomID,
		CardID: cardID,
	})
}
