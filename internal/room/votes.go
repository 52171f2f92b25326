package room

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// voteCooldown is the window after a successful vote or unvote during which
// further requests for the same card are rejected client-side.
const voteCooldown = 2 * time.Second

// rankCount is how many top cards receive a rank in the results view.
const rankCount = 3

var (
	// ErrVoteInFlight means a vote request for this card is still awaiting
	// its acknowledgement.
	ErrVoteInFlight = errors.New("vote request already in flight")

	// ErrVoteCooldown means the card's vote cooldown has not elapsed.
	ErrVoteCooldown = errors.New("vote cooldown active")
)

// voteGuard prevents duplicate in-flight vote requests per card and applies
// the fixed cooldown after each acknowledged one.
type voteGuard struct {
	mu        sync.Mutex
	clock     clockwork.Clock
	inFlight  map[string]bool
	coolUntil map[string]time.Time
}

func newVoteGuard(clock clockwork.Clock) *voteGuard {
	return &voteGuard{
		clock:     clock,
		inFlight:  make(map[string]bool),
		coolUntil: make(map[string]time.Time),
	}
}

func (g *voteGuard) begin(cardID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inFlight[cardID] {
		return ErrVoteInFlight
	}
	if until, ok := g.coolUntil[cardID]; ok && g.clock.Now().Before(until) {
		return ErrVoteCooldown
	}
	g.inFlight[cardID] = true
	return nil
}

func (g *voteGuard) finish(cardID string, acknowledged bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inFlight, cardID)
	if acknowledged {
		g.coolUntil[cardID] = g.clock.Now().Add(voteCooldown)
	}
}

// Vote requests a vote on a card. No optimistic vote mutation happens; local
// hasVoted state converges on the authoritative voter set delivered by the
// updateVotes broadcast, so an acknowledgement error leaves prior state
// unchanged.
func (r *Room) Vote(ctx context.Context, cardID string) error {
	if err := r.votes.begin(cardID); err != nil {
		return err
	}
	err := r.transport.EmitWithAck(ctx, EventTypeVoteCard, VotePayload{
		RoomID: r.roomID,
		CardID: cardID,
		UserID: r.userID,
	})
	r.votes.finish(cardID, err == nil)
	return err
}

// Unvote requests removal of the user's vote on a card, under the same guard
// as Vote.
func (r *Room) Unvote(ctx context.Context, cardID string) error {
	if err := r.votes.begin(cardID); err != nil {
		return err
	}
	err := r.transport.EmitWithAck(ctx, EventTypeRemoveVote, VotePayload{
		RoomID: r.roomID,
		CardID: cardID,
		UserID: r.userID,
	})
	r.votes.finish(cardID, err == nil)
	return err
}

// HasVoted reports whether the current user is in the card's authoritative
// voter set.
func (r *Room) HasVoted(cardID string) bool {
	return r.store.HasVoted(cardID, r.userID)
}

// Rankings derives the presentation-only ranking for the discussion and
// finish phases: ranks 1..3 go to the cards with the most votes. The sort is
// stable, so ties are broken by pre-sort order — whichever card appeared
// first in the unsorted list wins.
func Rankings(cards []Card) map[string]int {
	sorted := append([]Card(nil), cards...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Votes > sorted[j].Votes
	})

	ranks := make(map[string]int)
	for i, c := range sorted {
		if i >= rankCount {
			break
		}
		ranks[c.ID] = i + 1
	}
	return ranks
}

// Rankings returns the current ranking over a snapshot of the room's cards.
func (r *Room) Rankings() map[string]int {
	return Rankings(r.store.Cards())
}
