package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrEventFull is returned when a confirmed registration would exceed the event's capacity.
var ErrEventFull = errors.New("event is fully booked")

// ErrUniqueViolation is returned when a write hits a uniqueness constraint.
var ErrUniqueViolation = errors.New("unique constraint violated")

// ErrStatusConflict is returned when a conditional state change finds the row in another state.
var ErrStatusConflict = errors.New("status conflict")

// Constraint names shared by every store implementation.
const (
	ConstraintRegistrationEmail  = "registrations_event_email_uniq"
	ConstraintTicketCode         = "tickets_code_key"
	ConstraintTicketRegistration = "tickets_registration_id_key"
	ConstraintBookingSlot        = "bookings_active_slot_uniq"
	constraintEventCapacity      = "events_capacity_check"
)

// UniqueViolationError identifies which constraint rejected a write.
type UniqueViolationError struct {
	Constraint string
}

func (e *UniqueViolationError) Error() string {
	return fmt.Sprintf("unique constraint %q violated", e.Constraint)
}

func (e *UniqueViolationError) Is(target error) bool { return target == ErrUniqueViolation }

// IsUniqueViolation reports whether err is a violation of the named constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var uv *UniqueViolationError
	return errors.As(err, &uv) && uv.Constraint == constraint
}

// mapWriteError turns Postgres constraint failures into store errors callers can match.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505":
		return &UniqueViolationError{Constraint: pgErr.ConstraintName}
	case "23514":
		if pgErr.ConstraintName == constraintEventCapacity {
			return ErrEventFull
		}
	}
	return err
}
