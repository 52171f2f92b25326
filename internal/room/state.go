package room

import (
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// User is a room participant.
type User struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

// Column is one board column. Columns are created and edited server-side and
// reach the client through the room snapshot.
type Column struct {
	ID       string `json:"_id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
}

// Card is a single sticky-note contribution. Author is a user reference; the
// display name is resolved lazily through the user lookup cache.
type Card struct {
	ID       string   `json:"_id"`
	ColumnID string   `json:"columnId"`
	Author   string   `json:"author"`
	Content  string   `json:"content"`
	Votes    int      `json:"votes"`
	Voters   []string `json:"voters"`
}

// HasVoter reports whether the user id is in the card's voter set.
func (c *Card) HasVoter(userID string) bool {
	for _, v := range c.Voters {
		if v == userID {
			return true
		}
	}
	return false
}

// Store is the in-memory representation of one room for the lifetime of a
// joined view. It is mutated only by inbound events folded through
// ProcessEvent and by the documented optimistic paths; nothing survives
// Leave.
type Store struct {
	mu sync.RWMutex

	roomID  string
	name    string
	users   []User
	columns []Column
	cards   []Card
	notes   []Note

	// Cards locally marked for deletion while the confirmation flow runs.
	// Removal itself happens only on the cardDeleted broadcast.
	pendingDeletion map[string]bool

	phase *PhaseMachine
	timer *TimerSync
}

// NewStore creates an empty store for a room.
func NewStore(roomID string, clock clockwork.Clock) *Store {
	return &Store{
		roomID:          roomID,
		pendingDeletion: make(map[string]bool),
		phase:           NewPhaseMachine(),
		timer:           NewTimerSync(clock),
	}
}

// Bootstrap seeds the store from the room snapshot fetched over HTTP before
// the event channel is up.
func (s *Store) Bootstrap(name string, columns []Column, cards []Card) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
	s.columns = append([]Column(nil), columns...)
	s.cards = append([]Card(nil), cards...)
}

// Phase returns the room's phase state machine.
func (s *Store) Phase() *PhaseMachine { return s.phase }

// Timer returns the room's timer synchronizer.
func (s *Store) Timer() *TimerSync { return s.timer }

// Name returns the current room display name.
func (s *Store) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

// Users returns a snapshot of the current participant list.
func (s *Store) Users() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]User(nil), s.users...)
}

// Columns returns a snapshot of the board columns.
func (s *Store) Columns() []Column {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Column(nil), s.columns...)
}

// Cards returns a snapshot of all cards.
func (s *Store) Cards() []Card {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Card(nil), s.cards...)
}

// CardsInColumn returns a snapshot of the cards belonging to one column, in
// arrival order.
func (s *Store) CardsInColumn(columnID string) []Card {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Card
	for _, c := range s.cards {
		if c.ColumnID == columnID {
			out = append(out, c)
		}
	}
	return out
}

// Card returns one card by id.
func (s *Store) Card(cardID string) (Card, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.cards {
		if c.ID == cardID {
			return c, true
		}
	}
	return Card{}, false
}

// HasVoted reports whether the user id is in the card's authoritative voter
// set. Local vote state always converges on this membership test, never on a
// locally incremented counter.
func (s *Store) HasVoted(cardID, userID string) bool {
	c, ok := s.Card(cardID)
	return ok && c.HasVoter(userID)
}

// Notes returns a snapshot of the room's action-item notes.
func (s *Store) Notes() []Note {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Note(nil), s.notes...)
}

// Note returns one note by uuid.
func (s *Store) Note(noteID string) (Note, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.notes {
		if n.UUID == noteID {
			return n, true
		}
	}
	return Note{}, false
}

// UnattachedCards returns the cards not currently attached to any note, the
// working set for the association editor.
func (s *Store) UnattachedCards() []Card {
	s.mu.RLock()
	defer s.mu.RUnlock()

	attached := make(map[string]bool)
	for _, n := range s.notes {
		for _, ref := range n.Cards {
			attached[ref.ID] = true
		}
	}

	var out []Card
	for _, c := range s.cards {
		if !attached[c.ID] {
			out = append(out, c)
		}
	}
	return out
}

// MarkPendingDeletion flags a card while its confirmation prompt is open.
func (s *Store) MarkPendingDeletion(cardID string) {
	s.mu.Lock()
	s.pendingDeletion[cardID] = true
	s.mu.Unlock()
}

// ClearPendingDeletion drops the deletion flag, e.g. when the prompt is
// cancelled.
func (s *Store) ClearPendingDeletion(cardID string) {
	s.mu.Lock()
	delete(s.pendingDeletion, cardID)
	s.mu.Unlock()
}

// IsPendingDeletion reports whether the card is awaiting delete confirmation.
func (s *Store) IsPendingDeletion(cardID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pendingDeletion[cardID]
}

// ProcessEvent folds one inbound event into the store. Payloads are validated
// at the boundary; a malformed payload is an error and mutates nothing.
func (s *Store) ProcessEvent(evt *Event) error {
	payload, err := ParseEventPayload(evt)
	if err != nil {
		return err
	}
	if payload == nil {
		log.Debug().Str("event_type", string(evt.Type)).Msg("ignoring unknown event type")
		return nil
	}

	switch p := payload.(type) {
	case UserJoinedPayload:
		s.setUsers(p.Users)

	case UserLeftPayload:
		s.setUsers(p.Users)

	case CardAddedPayload:
		s.applyCardAdded(p.Card)

	case CardDeletedPayload:
		s.applyCardDeleted(p.CardID)

	case ColumnsUpdatedPayload:
		s.setColumns(p.Columns)

	case UpdateVotesPayload:
		s.applyVotes(p)

	case CurrentPhasePayload:
		return s.phase.apply(p.CurrentPhaseID)

	case PhaseChangedPayload:
		return s.phase.apply(p.PhaseID)

	case TimerUpdatePayload:
		s.timer.ApplyUpdate(p)

	case NotesListPayload:
		s.setNotes(p.Notes)

	case NoteAddedPayload:
		s.applyNoteAdded(p.Note)

	case NoteUpdatedPayload:
		s.applyNoteUpdated(p.Note)

	case NoteDeletedPayload:
		s.applyNoteDeleted(p.NoteID)

	case RoomNameUpdatedPayload:
		s.applyRoomName(p)

	case ErrorPayload:
		log.Warn().Str("room_id", s.roomID).Str("message", p.Message).Msg("server reported error")

	default:
		return fmt.Errorf("unhandled event type %s", evt.Type)
	}
	return nil
}

func (s *Store) setUsers(users []User) {
	s.mu.Lock()
	s.users = append([]User(nil), users...)
	s.mu.Unlock()
}

func (s *Store) setColumns(columns []Column) {
	s.mu.Lock()
	s.columns = append([]Column(nil), columns...)
	s.mu.Unlock()
}

// applyCardAdded is idempotent: folding the same broadcast twice never
// produces two entries with the same card id.
func (s *Store) applyCardAdded(card Card) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.cards {
		if c.ID == card.ID {
			log.Debug().Str("card_id", card.ID).Msg("duplicate cardAdded broadcast ignored")
			return
		}
	}
	card.Voters = dedupeVoters(card.Voters)
	s.cards = append(s.cards, card)
}

func (s *Store) applyCardDeleted(cardID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.cards[:0]
	for _, c := range s.cards {
		if c.ID != cardID {
			kept = append(kept, c)
		}
	}
	s.cards = kept
	delete(s.pendingDeletion, cardID)
}

func (s *Store) applyVotes(p UpdateVotesPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.cards {
		if s.cards[i].ID == p.CardID {
			s.cards[i].Votes = p.Votes
			s.cards[i].Voters = dedupeVoters(p.Voters)
			return
		}
	}
	log.Debug().Str("card_id", p.CardID).Msg("vote update for unknown card dropped")
}

func (s *Store) setNotes(notes []Note) {
	s.mu.Lock()
	s.notes = append([]Note(nil), notes...)
	s.mu.Unlock()
}

// applyNoteAdded reconciles by uuid: the client-generated uuid carried
// through the round trip replaces the optimistic entry instead of
// duplicating it.
func (s *Store) applyNoteAdded(note Note) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notes {
		if s.notes[i].UUID == note.UUID {
			s.notes[i] = note
			return
		}
	}
	s.notes = append([]Note{note}, s.notes...)
}

func (s *Store) applyNoteUpdated(note Note) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notes {
		if s.notes[i].UUID == note.UUID {
			s.notes[i] = note
			return
		}
	}
	log.Debug().Str("note_id", note.UUID).Msg("update for unknown note dropped")
}

func (s *Store) applyNoteDeleted(noteID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.notes[:0]
	for _, n := range s.notes {
		if n.UUID != noteID {
			kept = append(kept, n)
		}
	}
	s.notes = kept
}

func (s *Store) applyRoomName(p RoomNameUpdatedPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.RoomID != "" && p.RoomID != s.roomID {
		return
	}
	s.name = p.Name
}

// insertDraft adds the optimistic local entry for a submitted note draft.
// The echoed noteAdded broadcast replaces it, keyed by uuid.
func (s *Store) insertDraft(n Note) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notes {
		if s.notes[i].UUID == n.UUID {
			s.notes[i] = n
			return
		}
	}
	s.notes = append([]Note{n}, s.notes...)
}

// removeDraft rolls back an optimistic entry whose submission was rejected.
func (s *Store) removeDraft(noteID string) {
	s.applyNoteDeleted(noteID)
}

// dedupeVoters enforces the voter-set uniqueness invariant: a user id
// appears at most once.
func dedupeVoters(voters []string) []string {
	if len(voters) < 2 {
		return voters
	}
	seen := make(map[string]bool, len(voters))
	out := voters[:0]
	for _, v := range voters {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
