// Package users resolves card author ids to display profiles. Lookups are
// fetch-once and memoized by id; a failed lookup degrades to a placeholder
// instead of failing the room view.
package users

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/insightloop/client-go/internal/room"
)

// fetchTimeout bounds one background profile fetch.
const fetchTimeout = 10 * time.Second

// Status is the tri-state of one cached lookup.
type Status int

const (
	StatusUnknown Status = iota
	StatusLoading
	StatusReady
	StatusFailed
)

// Fetcher is the API surface the cache needs. *api.Client implements it.
type Fetcher interface {
	GetUser(ctx context.Context, userID string) (*room.User, error)
}

type entry struct {
	done chan struct{}
	user room.User
	err  error
}

// Lookup is a memoizing author-profile cache.
type Lookup struct {
	fetcher Fetcher

	mu      sync.Mutex
	entries map[string]*entry
}

// NewLookup creates an empty cache over the given fetcher.
func NewLookup(fetcher Fetcher) *Lookup {
	return &Lookup{
		fetcher: fetcher,
		entries: make(map[string]*entry),
	}
}

// Get returns the profile for a user id, fetching it at most once.
// Concurrent callers for the same id share one fetch.
func (l *Lookup) Get(ctx context.Context, userID string) (room.User, error) {
	e := l.ensure(userID)
	select {
	case <-e.done:
		return e.user, e.err
	case <-ctx.Done():
		return room.User{}, ctx.Err()
	}
}

// Peek reports the cached state without blocking or starting a fetch.
func (l *Lookup) Peek(userID string) (room.User, Status) {
	l.mu.Lock()
	e, ok := l.entries[userID]
	l.mu.Unlock()
	if !ok {
		return room.User{}, StatusUnknown
	}
	select {
	case <-e.done:
		if e.err != nil {
			return room.User{}, StatusFailed
		}
		return e.user, StatusReady
	default:
		return room.User{}, StatusLoading
	}
}

// DisplayName returns the best available name for a user id, starting a
// background fetch on first sight. While loading it returns an ellipsis;
// after a failed fetch it settles on "unknown".
func (l *Lookup) DisplayName(userID string) string {
	l.ensure(userID)
	user, status := l.Peek(userID)
	switch status {
	case StatusReady:
		return user.Username
	case StatusFailed:
		return "unknown"
	default:
		return "…"
	}
}

func (l *Lookup) ensure(userID string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[userID]; ok {
		return e
	}
	e := &entry{done: make(chan struct{})}
	l.entries[userID] = e
	go l.fetch(userID, e)
	return e
}

// fetch runs once per id for the lifetime of the cache. It deliberately uses
// its own context: the result stays useful to later views even if the view
// that triggered it is gone.
func (l *Lookup) fetch(userID string, e *entry) {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	user, err := l.fetcher.GetUser(ctx, userID)
	if err != nil {
		log.Debug().Err(err).Str("user_id", userID).Msg("user lookup failed")
		e.err = err
	} else {
		e.user = *user
	}
	close(e.done)
}
