// File: internal/state/machine.go
// Guarded finite-state machine over the agent's high-level phases. This is
// the single cross-component gate that stops the agent from doing two
// conflicting things at once, e.g. jumping from LISTENING straight into
// EXECUTING without passing through PLANNING.
package state

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/handsfree/api/schemas"
	"github.com/xkilldash9x/handsfree/internal/events"
)

// AgentState is the high-level mode of the agent.
type AgentState string

const (
	Idle      AgentState = "IDLE"      // waiting for the wake word
	Listening AgentState = "LISTENING" // recording the microphone
	Thinking  AgentState = "THINKING"  // the model is generating
	Planning  AgentState = "PLANNING"  // building a step-by-step plan
	Executing AgentState = "EXECUTING" // driving mouse/keyboard
	Speaking  AgentState = "SPEAKING"  // TTS is active
	Errored   AgentState = "ERROR"     // something broke
	Stopped   AgentState = "STOPPED"   // shutdown
)

// allowedTransitions is the static table of legal outgoing transitions per
// state. ERROR and STOPPED are not listed as targets because they are always
// permitted from anywhere (the safety escape hatch).
var allowedTransitions = map[AgentState][]AgentState{
	Idle:      {Listening, Thinking},
	Listening: {Idle, Thinking},
	Thinking:  {Idle, Planning, Speaking},
	Planning:  {Executing, Thinking},
	Executing: {Idle, Speaking, Thinking},
	Speaking:  {Idle, Listening, Executing},
	Errored:   {Idle},
	Stopped:   {},
}

// Machine guards transitions between agent states. All access goes through a
// single mutex; successful transitions are announced on the event bus.
type Machine struct {
	logger *zap.Logger
	bus    *events.Bus

	mu             sync.Mutex
	current        AgentState
	last           AgentState
	lastTransition time.Time
}

// NewMachine creates a machine in the IDLE state. The bus may be nil, in
// which case transitions are not announced (useful in isolated tests).
func NewMachine(logger *zap.Logger, bus *events.Bus) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{
		logger:         logger.Named("state_machine"),
		bus:            bus,
		current:        Idle,
		last:           Stopped,
		lastTransition: time.Now(),
	}
}

// SetState attempts a transition. Setting the current state again is a no-op
// that reports success. ERROR and STOPPED are always permitted; any other
// target must appear in the allowed-transition table for the current state,
// otherwise the state is left unchanged and false is returned.
func (m *Machine) SetState(next AgentState) bool {
	m.mu.Lock()

	if next == m.current {
		m.mu.Unlock()
		return true
	}

	if next != Errored && next != Stopped && !transitionAllowed(m.current, next) {
		m.logger.Warn("blocked illegal state transition",
			zap.String("from", string(m.current)),
			zap.String("to", string(next)))
		m.mu.Unlock()
		return false
	}

	old := m.current
	m.last = old
	m.current = next
	m.lastTransition = time.Now()
	m.mu.Unlock()

	m.logger.Info("state transition",
		zap.String("from", string(old)),
		zap.String("to", string(next)))

	// Emitted outside the lock: bus handlers may read the machine back.
	if m.bus != nil {
		m.bus.EmitSimple(events.StateChanged, "state_machine", schemas.Params{
			"old_state": string(old),
			"new_state": string(next),
		})
	}
	return true
}

func transitionAllowed(from, to AgentState) bool {
	for _, t := range allowedTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// State returns the current state.
func (m *Machine) State() AgentState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// LastState returns the state before the most recent transition.
func (m *Machine) LastState() AgentState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// LastTransition returns when the most recent transition happened.
func (m *Machine) LastTransition() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastTransition
}
