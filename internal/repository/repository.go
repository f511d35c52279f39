// Package repository implements all database queries for the reservation engine.
// It uses pgx directly (no ORM) for transparency and performance.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ElazAzel/inkmax-sub002/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EventRepository handles persistence for events.
type EventRepository struct {
	db *pgxpool.Pool
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

const eventColumns = `id, owner_id, page_id, name, description, starts_at, ends_at, capacity, confirmed_count,
	form_schema, status, registration_closes_at, allow_duplicate_emails, requires_approval, requires_payment, created_at`

func scanEvent(row pgx.Row) (*model.Event, error) {
	var e model.Event
	err := row.Scan(
		&e.ID, &e.OwnerID, &e.PageID, &e.Name, &e.Description, &e.StartsAt, &e.EndsAt, &e.Capacity,
		&e.ConfirmedCount, &e.FormSchema, &e.Status, &e.RegistrationClosesAt, &e.AllowDuplicateEmails,
		&e.RequiresApproval, &e.RequiresPayment, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Create inserts a new event.
func (r *EventRepository) Create(ctx context.Context, e *model.Event) error {
	schema := e.FormSchema
	if len(schema) == 0 {
		schema = []byte("[]")
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO events (`+eventColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		e.ID, e.OwnerID, e.PageID, e.Name, e.Description, e.StartsAt, e.EndsAt, e.Capacity,
		e.ConfirmedCount, schema, e.Status, e.RegistrationClosesAt, e.AllowDuplicateEmails,
		e.RequiresApproval, e.RequiresPayment, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", mapWriteError(err))
	}
	return nil
}

// List returns an owner's events ordered by creation time descending.
func (r *EventRepository) List(ctx context.Context, ownerID string) ([]model.Event, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+eventColumns+`
		 FROM events
		 WHERE owner_id = $1
		 ORDER BY created_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// GetByID returns a single event or ErrNotFound. Every call reads the current row; callers
// that re-check admission at commit time rely on this.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*model.Event, error) {
	e, err := scanEvent(r.db.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// UpdateStatus sets an event's lifecycle status.
func (r *EventRepository) UpdateStatus(ctx context.Context, id string, status model.EventStatus) error {
	tag, err := r.db.Exec(ctx, `UPDATE events SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update event status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RegistrationRepository handles persistence for registrations and the tickets issued with them.
type RegistrationRepository struct {
	db *pgxpool.Pool
}

// NewRegistrationRepository constructs a RegistrationRepository.
func NewRegistrationRepository(db *pgxpool.Pool) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

const registrationColumns = `id, event_id, owner_id, attendee_name, attendee_email, attendee_phone, answers,
	status, payment_status, created_at, updated_at`

func scanRegistration(row pgx.Row) (*model.Registration, error) {
	var reg model.Registration
	err := row.Scan(
		&reg.ID, &reg.EventID, &reg.OwnerID, &reg.AttendeeName, &reg.AttendeeEmail, &reg.AttendeePhone,
		&reg.Answers, &reg.Status, &reg.PaymentStatus, &reg.CreatedAt, &reg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// lockEvent takes a row-level lock on the event for the rest of the transaction.
//
// Two submissions that both read free capacity before either writes would overbook the
// event. SELECT ... FOR UPDATE serialises them: the second blocks here until the first
// commits and then sees the incremented count.
func lockEvent(ctx context.Context, tx pgx.Tx, eventID string) (capacity *int, confirmed int, allowDup bool, err error) {
	err = tx.QueryRow(ctx,
		`SELECT capacity, confirmed_count, allow_duplicate_emails
		 FROM events
		 WHERE id = $1
		 FOR UPDATE`,
		eventID,
	).Scan(&capacity, &confirmed, &allowDup)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, false, ErrNotFound
		}
		return nil, 0, false, fmt.Errorf("lock event row: %w", err)
	}
	return capacity, confirmed, allowDup, nil
}

// takeSeat increments the confirmed count or reports ErrEventFull.
func takeSeat(ctx context.Context, tx pgx.Tx, eventID string, capacity *int, confirmed int) error {
	if capacity != nil && confirmed >= *capacity {
		return ErrEventFull
	}
	if _, err := tx.Exec(ctx,
		`UPDATE events SET confirmed_count = confirmed_count + 1 WHERE id = $1`,
		eventID,
	); err != nil {
		return fmt.Errorf("increment confirmed_count: %w", mapWriteError(err))
	}
	return nil
}

// Create inserts a registration and, for confirmed registrations, its ticket, in one
// transaction. A confirmed registration takes a seat under the event row lock and fails with
// ErrEventFull when none is left. Duplicate emails surface as a UniqueViolationError on
// ConstraintRegistrationEmail; ticket code collisions on ConstraintTicketCode.
func (r *RegistrationRepository) Create(ctx context.Context, reg *model.Registration, ticket *model.Ticket) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	capacity, confirmed, allowDup, err := lockEvent(ctx, tx, reg.EventID)
	if err != nil {
		return err
	}

	if reg.Status == model.RegistrationConfirmed {
		if err = takeSeat(ctx, tx, reg.EventID, capacity, confirmed); err != nil {
			return err
		}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO registrations (`+registrationColumns+`, dedupe)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		reg.ID, reg.EventID, reg.OwnerID, reg.AttendeeName, reg.AttendeeEmail, reg.AttendeePhone,
		answersOrEmpty(reg.Answers), reg.Status, reg.PaymentStatus, reg.CreatedAt, reg.UpdatedAt, !allowDup,
	)
	if err != nil {
		return fmt.Errorf("insert registration: %w", mapWriteError(err))
	}

	if ticket != nil {
		if err = insertTicket(ctx, tx, ticket); err != nil {
			return err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", mapWriteError(err))
	}
	return nil
}

// FindActiveByEmail returns the event's non-cancelled registration for a normalised email.
func (r *RegistrationRepository) FindActiveByEmail(ctx context.Context, eventID, email string) (*model.Registration, error) {
	reg, err := scanRegistration(r.db.QueryRow(ctx,
		`SELECT `+registrationColumns+`
		 FROM registrations
		 WHERE event_id = $1 AND lower(attendee_email) = lower($2) AND status <> 'cancelled'
		 LIMIT 1`,
		eventID, email,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find registration by email: %w", err)
	}
	return reg, nil
}

// GetByID returns a single registration or ErrNotFound.
func (r *RegistrationRepository) GetByID(ctx context.Context, id string) (*model.Registration, error) {
	reg, err := scanRegistration(r.db.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return reg, nil
}

// ListByEvent returns all registrations for a given event.
func (r *RegistrationRepository) ListByEvent(ctx context.Context, eventID string) ([]model.Registration, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+registrationColumns+`
		 FROM registrations
		 WHERE event_id = $1
		 ORDER BY created_at ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var regs []model.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		regs = append(regs, *reg)
	}
	return regs, rows.Err()
}

// lockRegistration locks a registration row and returns its event and status.
func lockRegistration(ctx context.Context, tx pgx.Tx, id string) (eventID string, status model.RegistrationStatus, err error) {
	err = tx.QueryRow(ctx,
		`SELECT event_id, status FROM registrations WHERE id = $1 FOR UPDATE`,
		id,
	).Scan(&eventID, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", ErrNotFound
		}
		return "", "", fmt.Errorf("lock registration row: %w", err)
	}
	return eventID, status, nil
}

// Confirm moves a pending registration to confirmed, taking a seat and inserting its
// ticket atomically. A registration that is not pending yields ErrStatusConflict.
func (r *RegistrationRepository) Confirm(ctx context.Context, id string, ticket *model.Ticket, at time.Time) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	eventID, status, err := lockRegistration(ctx, tx, id)
	if err != nil {
		return err
	}
	if status != model.RegistrationPending {
		return ErrStatusConflict
	}

	capacity, confirmed, _, err := lockEvent(ctx, tx, eventID)
	if err != nil {
		return err
	}
	if err = takeSeat(ctx, tx, eventID, capacity, confirmed); err != nil {
		return err
	}

	if _, err = tx.Exec(ctx,
		`UPDATE registrations SET status = 'confirmed', updated_at = $2 WHERE id = $1`,
		id, at,
	); err != nil {
		return fmt.Errorf("confirm registration: %w", err)
	}
	if ticket != nil {
		if err = insertTicket(ctx, tx, ticket); err != nil {
			return err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", mapWriteError(err))
	}
	return nil
}

// Cancel moves a registration to cancelled, frees its seat if it held one and cancels a
// still-valid ticket. It reports false without error when the registration was already
// cancelled.
func (r *RegistrationRepository) Cancel(ctx context.Context, id string, at time.Time) (changed bool, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	eventID, status, err := lockRegistration(ctx, tx, id)
	if err != nil {
		return false, err
	}
	if status == model.RegistrationCancelled {
		return false, tx.Rollback(ctx)
	}

	if _, err = tx.Exec(ctx,
		`UPDATE registrations SET status = 'cancelled', updated_at = $2 WHERE id = $1`,
		id, at,
	); err != nil {
		return false, fmt.Errorf("cancel registration: %w", err)
	}
	if status == model.RegistrationConfirmed {
		if _, err = tx.Exec(ctx,
			`UPDATE events SET confirmed_count = confirmed_count - 1 WHERE id = $1 AND confirmed_count > 0`,
			eventID,
		); err != nil {
			return false, fmt.Errorf("release seat: %w", err)
		}
	}
	if _, err = tx.Exec(ctx,
		`UPDATE tickets SET status = 'cancelled' WHERE registration_id = $1 AND status = 'valid'`,
		id,
	); err != nil {
		return false, fmt.Errorf("cancel ticket: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit transaction: %w", err)
	}
	return true, nil
}

func answersOrEmpty(a map[string]any) map[string]any {
	if a == nil {
		return map[string]any{}
	}
	return a
}
