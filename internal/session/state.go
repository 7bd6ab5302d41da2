package session

import (
	"fmt"
	"sync"
)

// State is the lifecycle state of one scan session. The transitions are:
//
// idle     -> starting
// starting -> running | stopped | failed
// running  -> found | stopped | failed
//
// found, stopped and failed are terminal. Transitions outside this set are
// rejected by stateMachine.Set.
type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateFound    State = "found"
	StateStopped  State = "stopped"
	StateFailed   State = "failed"
)

var transitions = map[State][]State{
	StateIdle:     {StateStarting},
	StateStarting: {StateRunning, StateStopped, StateFailed},
	StateRunning:  {StateFound, StateStopped, StateFailed},
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateFound || s == StateStopped || s == StateFailed
}

func canTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type stateMachine struct {
	mu    sync.RWMutex
	state State
}

func newStateMachine() *stateMachine {
	return &stateMachine{state: StateIdle}
}

func (m *stateMachine) Get() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *stateMachine) Set(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !canTransition(m.state, to) {
		return fmt.Errorf("session: invalid transition %s -> %s", m.state, to)
	}
	m.state = to
	return nil
}
