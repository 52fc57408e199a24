package billing

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrInvoiceNotDeletable    = errors.New("invoice not deletable")
)

// TransitionError reports a lifecycle move that the transition table does not allow.
type TransitionError struct {
	Entity    string
	Current   string
	Requested string
	Guard     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s %s -> %s: %s", ErrInvalidStateTransition, e.Entity, e.Current, e.Requested, e.Guard)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidStateTransition
}
