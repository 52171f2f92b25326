package room

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// ErrEmptyTimer rejects starting a countdown with no time set.
var ErrEmptyTimer = errors.New("timer duration is zero")

// Settle window after the countdown completes: the completed visual fills,
// then fades, before the timer resets to idle.
const (
	timerSettleFill = 3 * time.Second
	timerSettleFade = 3 * time.Second
)

// TimerState is a read-only view of the synchronized countdown.
type TimerState struct {
	IsRunning bool
	Remaining time.Duration
	Initial   time.Duration
	// Progress is always recomputed from Remaining/Initial; it is never
	// stored as its own source of truth.
	Progress  float64
	Completed bool
}

// TimerSync reconciles a locally ticking countdown against authoritative
// server snapshots. The local clock only extrapolates for smooth display
// between snapshots; every inbound snapshot resets the countdown to
// now+remaining and wins over any local state.
type TimerSync struct {
	mu    sync.Mutex
	clock clockwork.Clock

	running   bool
	initial   time.Duration
	deadline  time.Time     // while running
	remaining time.Duration // while paused

	completed   bool
	completedAt time.Time

	// Completion cue is gated behind a prior user gesture because of
	// platform autoplay restrictions.
	audioEnabled bool
	onDone       func()
}

// NewTimerSync creates a timer synchronizer in the idle state.
func NewTimerSync(clock clockwork.Clock) *TimerSync {
	return &TimerSync{clock: clock}
}

// EnableAudio records that a user gesture has unlocked the completion cue.
func (t *TimerSync) EnableAudio() {
	t.mu.Lock()
	t.audioEnabled = true
	t.mu.Unlock()
}

// OnDone registers the completion cue callback.
func (t *TimerSync) OnDone(fn func()) {
	t.mu.Lock()
	t.onDone = fn
	t.mu.Unlock()
}

// ApplyUpdate folds an authoritative timer snapshot. It supersedes any local
// extrapolation or optimistic update immediately.
func (t *TimerSync) ApplyUpdate(p TimerUpdatePayload) {
	t.mu.Lock()

	rem := time.Duration(p.RemainingTime) * time.Second
	init := time.Duration(p.InitialTime) * time.Second

	switch p.EventType {
	case TimerEventReset:
		t.running = false
		t.initial = 0
		t.remaining = 0
		t.completed = false
		t.mu.Unlock()
		return

	case TimerEventDone:
		t.running = false
		t.remaining = 0
		t.initial = init
		t.completed = true
		t.completedAt = t.clock.Now()
		cue := t.audioEnabled
		fn := t.onDone
		t.mu.Unlock()
		if cue && fn != nil {
			fn()
		}
		return

	default: // start, pause, update
		t.running = p.IsRunning
		t.initial = init
		t.completed = false
		if t.running {
			t.deadline = t.clock.Now().Add(rem)
		} else {
			t.remaining = rem
		}
		t.mu.Unlock()
	}
}

// Remaining returns the displayed time left, extrapolated locally while
// running.
func (t *TimerSync) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remainingLocked()
}

// State returns a consistent view of the countdown for display.
func (t *TimerSync) State() TimerState {
	t.mu.Lock()
	defer t.mu.Unlock()

	rem := t.remainingLocked()
	var progress float64
	if t.initial > 0 {
		progress = float64(rem) / float64(t.initial) * 100
	}
	return TimerState{
		IsRunning: t.running,
		Remaining: rem,
		Initial:   t.initial,
		Progress:  progress,
		Completed: t.completed,
	}
}

// Completed reports whether the completed-state visual is being held.
func (t *TimerSync) Completed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.settleLocked()
	return t.completed
}

func (t *TimerSync) remainingLocked() time.Duration {
	t.settleLocked()
	if !t.running {
		return t.remaining
	}
	rem := t.deadline.Sub(t.clock.Now())
	if rem < 0 {
		return 0
	}
	return rem
}

// settleLocked resets the timer to idle once the completed visual has been
// held for the full settle window.
func (t *TimerSync) settleLocked() {
	if !t.completed {
		return
	}
	if t.clock.Now().Sub(t.completedAt) >= timerSettleFill+timerSettleFade {
		t.completed = false
		t.running = false
		t.initial = 0
		t.remaining = 0
	}
}

// The local* helpers apply the immediate best-effort visual updates for user
// actions. They are superseded by the next authoritative snapshot.

func (t *TimerSync) localStart(d time.Duration) {
	t.mu.Lock()
	if t.initial == 0 {
		t.initial = d
	}
	t.running = true
	t.deadline = t.clock.Now().Add(d)
	t.completed = false
	t.mu.Unlock()
}

func (t *TimerSync) localPause() time.Duration {
	t.mu.Lock()
	rem := t.remaining
	if t.running {
		rem = t.deadline.Sub(t.clock.Now())
		if rem < 0 {
			rem = 0
		}
	}
	t.running = false
	t.remaining = rem
	t.mu.Unlock()
	return rem
}

func (t *TimerSync) localReset() {
	t.mu.Lock()
	t.running = false
	t.initial = 0
	t.remaining = 0
	t.completed = false
	t.mu.Unlock()
}

func (t *TimerSync) localAdd(d time.Duration) {
	t.mu.Lock()
	t.initial += d
	if t.running {
		t.deadline = t.deadline.Add(d)
	} else {
		t.remaining += d
	}
	t.mu.Unlock()
}
