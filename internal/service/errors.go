package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrConflict         = errors.New("conflict")

	ErrNoEventsSelected = errors.New("no events selected")
	ErrIneligibleEvent  = errors.New("event is not eligible for invoicing")
	// ErrInvoiceNumberUnavailable is transient: every generated number collided.
	ErrInvoiceNumberUnavailable = errors.New("could not allocate a unique invoice number")
	// ErrReconciliationRequired means a multi-step write failed half way and the
	// compensating steps failed too. Manual repair is needed.
	ErrReconciliationRequired = errors.New("reconciliation required")
	ErrDeliveryUnavailable    = errors.New("delivery is not configured")
	ErrDeliveryFailed         = errors.New("delivery failed")

	ErrInvitationNotFound        = errors.New("invitation not found")
	ErrInvitationExpired         = errors.New("invitation expired")
	ErrInvitationAlreadyAccepted = errors.New("invitation already accepted")
	ErrInvitationCancelled       = errors.New("invitation cancelled")
	ErrInvitationCodeUnavailable = errors.New("could not allocate a unique invitation code")
)

// IneligibleEventError names the first selected event that blocked invoice
// creation.
type IneligibleEventError struct {
	EventID uuid.UUID
	Reason  string
}

func (e *IneligibleEventError) Error() string {
	return fmt.Sprintf("event %s is not eligible for invoicing: %s", e.EventID, e.Reason)
}

func (e *IneligibleEventError) Unwrap() error {
	return ErrIneligibleEvent
}

func invalidInput(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
