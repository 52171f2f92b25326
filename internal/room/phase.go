package room

import (
	"fmt"
	"sync"
)

// Phase is one stage of the retrospective workflow.
type Phase string

const (
	PhasePreparation Phase = "Preparation"
	PhaseCreateCards Phase = "Create Cards"
	PhasePrepareVote Phase = "Prepare Vote"
	PhaseVote        Phase = "Vote"
	PhaseDiscussion  Phase = "Discussion"
	PhaseFinish      Phase = "Finish"
)

// phaseOrder is the workflow order. The client never walks this list on its
// own; transitions are requested directionally and applied only from the
// server's broadcast.
var phaseOrder = []Phase{
	PhasePreparation,
	PhaseCreateCards,
	PhasePrepareVote,
	PhaseVote,
	PhaseDiscussion,
	PhaseFinish,
}

// PhaseIndex returns the position of a phase in the workflow, or -1 for an
// unknown phase.
func PhaseIndex(p Phase) int {
	for i, candidate := range phaseOrder {
		if candidate == p {
			return i
		}
	}
	return -1
}

// Phases returns the ordered workflow.
func Phases() []Phase {
	return append([]Phase(nil), phaseOrder...)
}

// PhaseMachine tracks the room's authoritative phase. Exactly one phase is
// active at a time; until the first currentPhase reply arrives the phase is
// unknown. The server's broadcast order is the sole serialization point for
// concurrent transition requests, so the machine applies whatever phase the
// broadcast names, including moves backward out of Finish.
type PhaseMachine struct {
	mu      sync.RWMutex
	current Phase
	known   bool
}

// NewPhaseMachine creates a machine with no known phase.
func NewPhaseMachine() *PhaseMachine {
	return &PhaseMachine{}
}

// Current returns the active phase. ok is false before the server has
// reported one.
func (m *PhaseMachine) Current() (phase Phase, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current, m.known
}

// Index returns the active phase's position in the workflow, or -1 while the
// phase is unknown.
func (m *PhaseMachine) Index() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.known {
		return -1
	}
	return PhaseIndex(m.current)
}

// Finished reports whether the room has reached the Finish phase.
func (m *PhaseMachine) Finished() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.known && m.current == PhaseFinish
}

// apply sets the phase from a currentPhase or phaseChanged broadcast. A
// phase id outside the closed set is rejected at the boundary.
func (m *PhaseMachine) apply(phaseID string) error {
	p := Phase(phaseID)
	if PhaseIndex(p) < 0 {
		return fmt.Errorf("unknown phase %q", phaseID)
	}
	m.mu.Lock()
	m.current = p
	m.known = true
	m.mu.Unlock()
	return nil
}
