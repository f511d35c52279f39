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

// TicketRepository handles persistence for tickets.
type TicketRepository struct {
	db *pgxpool.Pool
}

// NewTicketRepository constructs a TicketRepository.
func NewTicketRepository(db *pgxpool.Pool) *TicketRepository {
	return &TicketRepository{db: db}
}

const ticketColumns = `id, registration_id, event_id, code, status, checked_in_at, created_at`

func scanTicket(row pgx.Row) (*model.Ticket, error) {
	var t model.Ticket
	if err := row.Scan(&t.ID, &t.RegistrationID, &t.EventID, &t.Code, &t.Status, &t.CheckedInAt, &t.CreatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func insertTicket(ctx context.Context, tx pgx.Tx, t *model.Ticket) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO tickets (`+ticketColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.RegistrationID, t.EventID, t.Code, t.Status, t.CheckedInAt, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ticket: %w", mapWriteError(err))
	}
	return nil
}

// CodeExists reports whether a ticket with the given code exists.
func (r *TicketRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	if err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM tickets WHERE code = $1)`,
		code,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("check ticket code: %w", err)
	}
	return exists, nil
}

// GetByRegistration returns the ticket issued for a registration or ErrNotFound.
func (r *TicketRepository) GetByRegistration(ctx context.Context, registrationID string) (*model.Ticket, error) {
	t, err := scanTicket(r.db.QueryRow(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE registration_id = $1`,
		registrationID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get ticket by registration: %w", err)
	}
	return t, nil
}

// GetByCode returns a ticket together with its registration or ErrNotFound.
func (r *TicketRepository) GetByCode(ctx context.Context, code string) (*model.TicketWithRegistration, error) {
	var tr model.TicketWithRegistration
	t, reg := &tr.Ticket, &tr.Registration
	err := r.db.QueryRow(ctx,
		`SELECT t.id, t.registration_id, t.event_id, t.code, t.status, t.checked_in_at, t.created_at,
		        r.id, r.event_id, r.owner_id, r.attendee_name, r.attendee_email, r.attendee_phone, r.answers,
		        r.status, r.payment_status, r.created_at, r.updated_at
		 FROM tickets t
		 JOIN registrations r ON r.id = t.registration_id
		 WHERE t.code = $1`,
		code,
	).Scan(
		&t.ID, &t.RegistrationID, &t.EventID, &t.Code, &t.Status, &t.CheckedInAt, &t.CreatedAt,
		&reg.ID, &reg.EventID, &reg.OwnerID, &reg.AttendeeName, &reg.AttendeeEmail, &reg.AttendeePhone, &reg.Answers,
		&reg.Status, &reg.PaymentStatus, &reg.CreatedAt, &reg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get ticket by code: %w", err)
	}
	return &tr, nil
}

// MarkUsed transitions a valid ticket to used. It reports false when the ticket was no
// longer valid, so concurrent check-ins of one code produce a single transition.
func (r *TicketRepository) MarkUsed(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE tickets SET status = 'used', checked_in_at = $2 WHERE id = $1 AND status = 'valid'`,
		id, at,
	)
	if err != nil {
		return false, fmt.Errorf("mark ticket used: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
