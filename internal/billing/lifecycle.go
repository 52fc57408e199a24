package billing

import "detention-service/internal/model"

type eventEdge struct {
	from model.EventStatus
	to   model.EventStatus
}

var eventTransitions = map[eventEdge]struct{}{
	{model.EventStatusActive, model.EventStatusCompleted}:    {},
	{model.EventStatusActive, model.EventStatusCancelled}:    {},
	{model.EventStatusCompleted, model.EventStatusCancelled}: {},
	{model.EventStatusCompleted, model.EventStatusInvoiced}:  {},
	{model.EventStatusInvoiced, model.EventStatusPaid}:       {},
	{model.EventStatusInvoiced, model.EventStatusCompleted}:  {},
}

// CheckEventTransition validates a detention event move against the lifecycle table.
// Guards that depend on other records (invoice references, invoice status) are
// enforced by the caller.
func CheckEventTransition(from, to model.EventStatus) error {
	if _, ok := eventTransitions[eventEdge{from, to}]; ok {
		return nil
	}
	return &TransitionError{
		Entity:    "detention event",
		Current:   string(from),
		Requested: string(to),
		Guard:     eventGuard(from, to),
	}
}

func eventGuard(from, to model.EventStatus) string {
	switch {
	case from == to:
		return "event is already " + string(to)
	case from == model.EventStatusPaid:
		return "paid is terminal"
	case from == model.EventStatusCancelled:
		return "cancelled events cannot be reopened"
	case to == model.EventStatusCancelled:
		return "invoiced or paid events cannot be cancelled"
	case to == model.EventStatusInvoiced:
		return "only completed events can be invoiced"
	case to == model.EventStatusPaid:
		return "events are paid only through invoice payment"
	case to == model.EventStatusCompleted:
		return "departure can only be captured on an active event"
	case to == model.EventStatusActive:
		return "events cannot return to active"
	default:
		return "transition not allowed"
	}
}

type invoiceEdge struct {
	from model.InvoiceStatus
	to   model.InvoiceStatus
}

var invoiceTransitions = map[invoiceEdge]struct{}{
	{model.InvoiceStatusDraft, model.InvoiceStatusSent}: {},
	{model.InvoiceStatusSent, model.InvoiceStatusPaid}:  {},
	{model.InvoiceStatusDraft, model.InvoiceStatusPaid}: {},
}

func CheckInvoiceTransition(from, to model.InvoiceStatus) error {
	if _, ok := invoiceTransitions[invoiceEdge{from, to}]; ok {
		return nil
	}
	guard := "transition not allowed"
	switch {
	case from == model.InvoiceStatusPaid:
		guard = "paid is terminal"
	case from == to:
		guard = "invoice is already " + string(to)
	case to == model.InvoiceStatusDraft:
		guard = "invoices cannot return to draft"
	}
	return &TransitionError{
		Entity:    "invoice",
		Current:   string(from),
		Requested: string(to),
		Guard:     guard,
	}
}

// CheckInvoiceDeletable allows removal of draft invoices only.
func CheckInvoiceDeletable(status model.InvoiceStatus) error {
	if status == model.InvoiceStatusDraft {
		return nil
	}
	return ErrInvoiceNotDeletable
}
