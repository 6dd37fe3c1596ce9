package invoice

import "github.com/dmitrymomot/invoicely/pkg/statemachine"

// Status is the lifecycle state of an invoice.
type Status string

const (
	StatusDraft   Status = "draft"
	StatusUnpaid  Status = "unpaid"
	StatusPaid    Status = "paid"
	StatusOverdue Status = "overdue"
	// StatusUnknown marks a stored value outside the known set. Nothing
	// transitions out of it.
	StatusUnknown Status = "unknown"
)

// ParseStatus maps s to a known status or StatusUnknown.
func ParseStatus(s string) Status {
	switch st := Status(s); st {
	case StatusDraft, StatusUnpaid, StatusPaid, StatusOverdue:
		return st
	default:
		return StatusUnknown
	}
}

// Trigger is what moves an invoice between statuses.
type Trigger string

const (
	TriggerSend             Trigger = "send"
	TriggerPaymentConfirmed Trigger = "payment_confirmed"
	TriggerDueDatePassed    Trigger = "due_date_passed"
)

// lifecycle lists every legal transition. Paid has no outgoing edge.
var lifecycle = statemachine.MustNew(
	statemachine.Transition[Status, Trigger]{From: StatusDraft, Event: TriggerSend, To: StatusUnpaid},
	statemachine.Transition[Status, Trigger]{From: StatusDraft, Event: TriggerPaymentConfirmed, To: StatusPaid},
	statemachine.Transition[Status, Trigger]{From: StatusUnpaid, Event: TriggerPaymentConfirmed, To: StatusPaid},
	statemachine.Transition[Status, Trigger]{From: StatusUnpaid, Event: TriggerDueDatePassed, To: StatusOverdue},
	statemachine.Transition[Status, Trigger]{From: StatusOverdue, Event: TriggerPaymentConfirmed, To: StatusPaid},
)

// Next returns the status trigger leads to from s.
func Next(s Status, t Trigger) (Status, error) {
	return lifecycle.Fire(s, t)
}

// CanTransition reports whether trigger is legal from s.
func CanTransition(s Status, t Trigger) bool {
	return lifecycle.CanFire(s, t)
}

// SourcesOf lists the statuses trigger may fire from. Storage uses it as the
// WHERE guard of a conditional status update.
func SourcesOf(t Trigger) []Status {
	return lifecycle.Sources(t)
}
