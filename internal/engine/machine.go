package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kartparty/racehost/internal/bus"
	"github.com/kartparty/racehost/pkg/core"
)

// Phase names the engine's top-level states.
type Phase string

const (
	PhaseLoading   Phase = "loading"
	PhaseLobby     Phase = "lobby"
	PhaseCountdown Phase = "countdown"
	PhaseRacing    Phase = "racing"
	PhaseResults   Phase = "results"
)

// State is one phase's behavior. Enter and Exit run exactly once per
// transition; Update runs every fixed tick while the state is current.
type State interface {
	Phase() Phase
	Enter(now time.Time)
	Update(now time.Time)
	Exit(now time.Time)
}

// Guard can veto a requested transition.
type Guard func(from, to Phase) error

// Machine is the phase state machine. Transitions are requested by name and
// rejected if the target is unknown or a guard vetoes them. Not safe for
// concurrent use; the engine goroutine owns it.
type Machine struct {
	states  map[Phase]State
	guards  []Guard
	current State
	bus     *bus.Bus
	log     *slog.Logger
}

// NewMachine creates an empty machine. Register states, then Transition to
// the initial one.
func NewMachine(b *bus.Bus, log *slog.Logger) *Machine {
	if log == nil {
		log = slog.Default()
	}
	return &Machine{
		states: make(map[Phase]State),
		bus:    b,
		log:    log,
	}
}

// Register adds a state. Registering the same phase twice replaces it.
func (m *Machine) Register(s State) {
	m.states[s.Phase()] = s
}

// AddGuard installs a veto hook consulted on every transition request.
func (m *Machine) AddGuard(g Guard) {
	m.guards = append(m.guards, g)
}

// Current returns the current phase, empty before the first transition.
func (m *Machine) Current() Phase {
	if m.current == nil {
		return ""
	}
	return m.current.Phase()
}

// Transition requests a move to the named phase.
func (m *Machine) Transition(to Phase, now time.Time) error {
	target, ok := m.states[to]
	if !ok {
		return fmt.Errorf("unknown phase %q", to)
	}

	from := m.Current()
	if from == to {
		return fmt.Errorf("already in phase %q", to)
	}
	for _, g := range m.guards {
		if err := g(from, to); err != nil {
			return fmt.Errorf("transition %s -> %s vetoed: %w", from, to, err)
		}
	}

	if m.current != nil {
		m.current.Exit(now)
	}
	m.current = target
	m.log.Info("Phase changed", "from", string(from), "to", string(to))
	target.Enter(now)

	if m.bus != nil {
		m.bus.Publish(core.EventPhaseChanged, core.PhaseChanged{
			From: string(from),
			To:   string(to),
		})
	}
	return nil
}

// Update runs the current state's per-tick work.
func (m *Machine) Update(now time.Time) {
	if m.current != nil {
		m.current.Update(now)
	}
}
