package statemachine

import "fmt"

// Transition is one edge of the table.
type Transition[S, E comparable] struct {
	From  S
	Event E
	To    S
}

// Table is an immutable transition table. It is safe for concurrent use.
type Table[S, E comparable] struct {
	edges       map[S]map[E]S
	transitions []Transition[S, E]
}

// New builds a table. Two transitions sharing From and Event are rejected.
func New[S, E comparable](transitions ...Transition[S, E]) (*Table[S, E], error) {
	t := &Table[S, E]{
		edges:       make(map[S]map[E]S),
		transitions: make([]Transition[S, E], 0, len(transitions)),
	}
	for i, tr := range transitions {
		if _, ok := t.edges[tr.From]; !ok {
			t.edges[tr.From] = make(map[E]S)
		}
		if _, dup := t.edges[tr.From][tr.Event]; dup {
			return nil, fmt.Errorf("transition[%d] %v on %v: %w", i, tr.From, tr.Event, ErrDuplicateTransition)
		}
		t.edges[tr.From][tr.Event] = tr.To
		t.transitions = append(t.transitions, tr)
	}
	return t, nil
}

// MustNew is New that panics on error. Use it for package-level tables.
func MustNew[S, E comparable](transitions ...Transition[S, E]) *Table[S, E] {
	t, err := New(transitions...)
	if err != nil {
		panic(fmt.Sprintf("failed to create state machine: %v", err))
	}
	return t
}

// Fire returns the state event leads to from the given state.
func (t *Table[S, E]) Fire(from S, event E) (S, error) {
	if to, ok := t.edges[from][event]; ok {
		return to, nil
	}
	var zero S
	return zero, NewErrNoTransitionAvailable(fmt.Sprint(from), fmt.Sprint(event))
}

// CanFire reports whether event is defined for from.
func (t *Table[S, E]) CanFire(from S, event E) bool {
	_, ok := t.edges[from][event]
	return ok
}

// Sources lists the states event can fire from, in declaration order.
func (t *Table[S, E]) Sources(event E) []S {
	var out []S
	for _, tr := range t.transitions {
		if tr.Event == event {
			out = append(out, tr.From)
		}
	}
	return out
}

// IsTerminal reports whether no event fires from state.
func (t *Table[S, E]) IsTerminal(state S) bool {
	return len(t.edges[state]) == 0
}

// Transitions returns a copy of every edge in declaration order.
func (t *Table[S, E]) Transitions() []Transition[S, E] {
	out := make([]Transition[S, E], len(t.transitions))
	copy(out, t.transitions)
	return out
}
