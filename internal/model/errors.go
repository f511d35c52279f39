package model

import (
	"errors"
	"fmt"
)

// Error taxonomy surfaced to callers. Services wrap these; handlers match them with errors.Is.
var (
	ErrValidation            = errors.New("validation failed")
	ErrDuplicateRegistration = errors.New("email already registered for this event")
	ErrCapacityExceeded      = errors.New("event is fully booked")
	ErrRegistrationClosed    = errors.New("registration is closed")
	ErrConfiguration         = errors.New("missing configuration")
	ErrNotFound              = errors.New("not found")
	ErrAuthorization         = errors.New("not authorized")
	ErrDevice                = errors.New("capture device unavailable")
	ErrSlotUnavailable       = errors.New("slot is not available")
	ErrInvalidTransition     = errors.New("invalid status transition")
)

var (
	ErrEventNotFound        = fmt.Errorf("event %w", ErrNotFound)
	ErrRegistrationNotFound = fmt.Errorf("registration %w", ErrNotFound)
	ErrTicketNotFound       = fmt.Errorf("ticket %w", ErrNotFound)
	ErrBlockNotFound        = fmt.Errorf("booking block %w", ErrNotFound)
	ErrBookingNotFound      = fmt.Errorf("booking %w", ErrNotFound)
)

// ValidationError names the first form field that failed validation.
type ValidationError struct {
	Field  string
	Label  string
	Reason string
}

func (e *ValidationError) Error() string {
	name := e.Label
	if name == "" {
		name = e.Field
	}
	return fmt.Sprintf("%s: %s", name, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError builds a ValidationError for a field.
func NewValidationError(field, label, reason string) *ValidationError {
	return &ValidationError{Field: field, Label: label, Reason: reason}
}
