// Package statemachine implements spec §4.7: three fixed-table state
// machines (Transfer, Connection, Discovery) sharing one generic,
// mutex-guarded transition engine.
package statemachine

import (
	"fmt"
	"sync"
)

// State identifies one node in a transition table. Each concrete machine
// defines its own State constants (see transfer.go, connection.go,
// discovery.go).
type State string

// ErrInvalidTransition is returned by Transition when the target state is
// not in the current state's allowed-next set.
type ErrInvalidTransition struct {
	From State
	To   State
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("statemachine: invalid transition %s -> %s", e.From, e.To)
}

// Table is a fixed state -> allowed-next-states map.
type Table map[State]map[State]struct{}

// NewTable builds a Table from a state -> []next literal, the shape the
// three spec §4.7 diagrams are transcribed as.
func NewTable(edges map[State][]State) Table {
	t := make(Table, len(edges))
	for from, nexts := range edges {
		set := make(map[State]struct{}, len(nexts))
		for _, n := range nexts {
			set[n] = struct{}{}
		}
		t[from] = set
	}
	return t
}

// StateChangedFunc observes every successful transition, forced or
// validated (spec §4.7 state_changed callback).
type StateChangedFunc func(from, to State)

// TerminalFunc observes a transition into a terminal state (Transfer
// machine only, per spec §4.7).
type TerminalFunc func(state State)

// Machine is the generic engine shared by all three concrete machines.
// Spec §4.7: single mutex guards state; callbacks run while the mutex is
// held, so callbacks must not re-enter the same machine.
type Machine struct {
	mu       sync.Mutex
	table    Table
	terminal map[State]struct{}
	initial  State
	current  State

	onStateChanged StateChangedFunc
	onTerminal     TerminalFunc
}

// NewMachine builds a Machine starting in initial, validating transitions
// against table. terminalStates marks states with no allowed next states
// (is_terminal()).
func NewMachine(table Table, terminalStates []State, initial State) *Machine {
	terminal := make(map[State]struct{}, len(terminalStates))
	for _, s := range terminalStates {
		terminal[s] = struct{}{}
	}
	return &Machine{
		table:    table,
		terminal: terminal,
		initial:  initial,
		current:  initial,
	}
}

// OnStateChanged registers the state_changed callback.
func (m *Machine) OnStateChanged(fn StateChangedFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStateChanged = fn
}

// OnTerminal registers the terminal callback.
func (m *Machine) OnTerminal(fn TerminalFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTerminal = fn
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// IsTerminal reports whether the current state has no allowed transitions.
func (m *Machine) IsTerminal() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isTerminalLocked(m.current)
}

func (m *Machine) isTerminalLocked(s State) bool {
	_, ok := m.terminal[s]
	return ok
}

// ValidTransitions returns the states reachable from the current state.
// Empty for a terminal state (spec §8 "all terminal states report
// valid_transitions() empty").
func (m *Machine) ValidTransitions() []State {
	m.mu.Lock()
	defer m.mu.Unlock()
	allowed := m.table[m.current]
	out := make([]State, 0, len(allowed))
	for s := range allowed {
		out = append(out, s)
	}
	return out
}

// Transition validates to against the current state's allowed-next set
// and applies it, firing callbacks while the mutex is held. Returns
// ErrInvalidTransition if to is not allowed.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := m.table[m.current]
	if _, ok := allowed[to]; !ok {
		return &ErrInvalidTransition{From: m.current, To: to}
	}
	m.applyLocked(to)
	return nil
}

// ForceTransition bypasses validation entirely, for recovery paths (spec
// §4.7 force_transition).
func (m *Machine) ForceTransition(to State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyLocked(to)
}

// Reset returns the machine to its initial state, emitting exactly one
// state_changed callback iff the state actually differed (spec §8).
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == m.initial {
		return
	}
	m.applyLocked(m.initial)
}

func (m *Machine) applyLocked(to State) {
	from := m.current
	m.current = to

	if m.onStateChanged != nil {
		m.onStateChanged(from, to)
	}
	if m.isTerminalLocked(to) && m.onTerminal != nil {
		m.onTerminal(to)
	}
}
