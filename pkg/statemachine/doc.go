// Package statemachine provides a stateless finite-state transition table.
//
// Records whose state lives in a database do not fit an in-memory machine that
// owns its current state. Table only answers questions: which state an event
// leads to from a given state, and which states an event may fire from. The
// caller persists the result, usually with a conditional update that names the
// allowed source states so concurrent writers cannot skip a guard.
//
// # Usage
//
//	type Status string
//	type Trigger string
//
//	table := statemachine.MustNew(
//	    statemachine.Transition[Status, Trigger]{From: "draft", Event: "send", To: "sent"},
//	    statemachine.Transition[Status, Trigger]{From: "sent", Event: "pay", To: "paid"},
//	)
//
//	next, err := table.Fire("draft", "send") // "sent", nil
//	_, err = table.Fire("paid", "send")      // *ErrNoTransitionAvailable
//	froms := table.Sources("pay")            // ["sent"]
//
// States that appear only as targets are terminal: nothing fires from them.
package statemachine
