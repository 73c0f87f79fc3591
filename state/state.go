package state

import (
	"errors"
	"fmt"
)

// Phase is the lifecycle position of a game table.
type Phase string

const (
	Waiting   Phase = "waiting"
	Started   Phase = "started"
	Completed Phase = "completed"
)

// ErrTransitionNotAllowed is returned when a state transition is not allowed.
var ErrTransitionNotAllowed = errors.New("state transition not allowed")

// Machine tracks the current phase and the transitions permitted out of it.
// It is not safe for concurrent use; the owner serializes access.
type Machine struct {
	current     Phase
	transitions map[Phase]map[Phase]func() bool // from -> to -> guard
	onEnter     map[Phase]func()
}

func NewMachine(initial Phase) *Machine {
	return &Machine{
		current:     initial,
		transitions: make(map[Phase]map[Phase]func() bool),
		onEnter:     make(map[Phase]func()),
	}
}

// NewGameMachine returns a machine with the table lifecycle
// waiting -> started -> completed.
func NewGameMachine() *Machine {
	m := NewMachine(Waiting)
	m.AddTransition(Waiting, Started, nil)
	m.AddTransition(Started, Completed, nil)
	return m
}

// AddTransition allows from -> to. A nil guard always passes.
func (m *Machine) AddTransition(from, to Phase, guard func() bool) {
	if _, exists := m.transitions[from]; !exists {
		m.transitions[from] = make(map[Phase]func() bool)
	}
	m.transitions[from][to] = guard
}

// OnEnter registers a hook run after the machine enters phase.
func (m *Machine) OnEnter(phase Phase, fn func()) {
	m.onEnter[phase] = fn
}

func (m *Machine) Current() Phase {
	return m.current
}

// Is reports whether the machine is in phase.
func (m *Machine) Is(phase Phase) bool {
	return m.current == phase
}

// Transition moves to the next phase if the edge exists and its guard passes.
func (m *Machine) Transition(to Phase) error {
	edges, ok := m.transitions[m.current]
	if !ok {
		return fmt.Errorf("%w: %s -> %s", ErrTransitionNotAllowed, m.current, to)
	}
	guard, ok := edges[to]
	if !ok || (guard != nil && !guard()) {
		return fmt.Errorf("%w: %s -> %s", ErrTransitionNotAllowed, m.current, to)
	}

	m.current = to
	if fn := m.onEnter[to]; fn != nil {
		fn()
	}
	return nil
}
