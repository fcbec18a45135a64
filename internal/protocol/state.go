package protocol

import (
	"fmt"
	"sync"
)

// Phase is a stage of the connection lifecycle.
type Phase int32

const (
	Handshaking Phase = iota
	Status
	Login
	Play
	Closed
)

func (p Phase) String() string {
	switch p {
	case Handshaking:
		return "handshake"
	case Status:
		return "status"
	case Login:
		return "login"
	case Play:
		return "play"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

// CanTransition reports whether a connection may move from one phase to another.
func CanTransition(from, to Phase) bool {
	switch to {
	case Closed:
		return from != Closed
	case Status, Login:
		return from == Handshaking
	case Play:
		return from == Login
	default:
		return false
	}
}

// ConnState holds the inbound phase and compression threshold of one
// connection. The I/O goroutine reads it; only the logic goroutine writes it.
type ConnState struct {
	mu        sync.Mutex
	state     Phase
	threshold int
}

func NewConnState() *ConnState {
	return &ConnState{
		threshold: -1,
	}
}

// Set moves to state, rejecting downgrades and skipped phases.
func (cs *ConnState) Set(state Phase) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.state == state {
		return nil
	}
	if !CanTransition(cs.state, state) {
		return fmt.Errorf("%w: %s -> %s", ErrPhaseDowngrade, cs.state, state)
	}
	cs.state = state
	return nil
}

func (cs *ConnState) Get() Phase {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.state
}

func (cs *ConnState) SetThreshold(t int) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.threshold = t
}

func (cs *ConnState) GetThreshold() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.threshold
}
