package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ElazAzel/inkmax-sub002/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BlockRepository handles persistence for booking blocks.
type BlockRepository struct {
	db *pgxpool.Pool
}

// NewBlockRepository constructs a BlockRepository.
func NewBlockRepository(db *pgxpool.Pool) *BlockRepository {
	return &BlockRepository{db: db}
}

// blockConfig is the JSONB shape of a block's slot configuration.
type blockConfig struct {
	Slots     []model.ExplicitSlot `json:"slots,omitempty"`
	Templates []model.SlotTemplate `json:"templates,omitempty"`
	Defaults  model.SlotDefaults   `json:"defaults"`
}

// Create inserts a booking block.
func (r *BlockRepository) Create(ctx context.Context, b *model.BookingBlock) error {
	cfg, err := json.Marshal(blockConfig{Slots: b.Slots, Templates: b.Templates, Defaults: b.Defaults})
	if err != nil {
		return fmt.Errorf("encode block config: %w", err)
	}
	if _, err := r.db.Exec(ctx,
		`INSERT INTO booking_blocks (id, owner_id, title, config, created_at) VALUES ($1, $2, $3, $4, $5)`,
		b.ID, b.OwnerID, b.Title, cfg, b.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert booking block: %w", mapWriteError(err))
	}
	return nil
}

// GetByID returns a booking block or ErrNotFound.
func (r *BlockRepository) GetByID(ctx context.Context, id string) (*model.BookingBlock, error) {
	var b model.BookingBlock
	var raw []byte
	err := r.db.QueryRow(ctx,
		`SELECT id, owner_id, title, config, created_at FROM booking_blocks WHERE id = $1`,
		id,
	).Scan(&b.ID, &b.OwnerID, &b.Title, &raw, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get booking block: %w", err)
	}
	var cfg blockConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode block config: %w", err)
	}
	b.Slots, b.Templates, b.Defaults = cfg.Slots, cfg.Templates, cfg.Defaults
	return &b, nil
}

// BookingRepository handles persistence for slot bookings.
type BookingRepository struct {
	db *pgxpool.Pool
}

// NewBookingRepository constructs a BookingRepository.
func NewBookingRepository(db *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = `id, block_id, owner_id, booking_date, start_time, end_time, client_name, client_email,
	client_phone, status, created_at`

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var b model.Booking
	err := row.Scan(&b.ID, &b.BlockID, &b.OwnerID, &b.Date, &b.StartTime, &b.EndTime, &b.ClientName,
		&b.ClientEmail, &b.ClientPhone, &b.Status, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Create inserts an active booking. A second active booking for the same slot instance
// fails with a UniqueViolationError on ConstraintBookingSlot.
func (r *BookingRepository) Create(ctx context.Context, b *model.Booking) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO bookings (`+bookingColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		b.ID, b.BlockID, b.OwnerID, b.Date, b.StartTime, b.EndTime, b.ClientName, b.ClientEmail,
		b.ClientPhone, b.Status, b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert booking: %w", mapWriteError(err))
	}
	return nil
}

// GetByID returns a booking or ErrNotFound.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

// ListActiveByDate returns the block's non-cancelled bookings on a date, ordered by start.
func (r *BookingRepository) ListActiveByDate(ctx context.Context, blockID, date string) ([]model.Booking, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+bookingColumns+`
		 FROM bookings
		 WHERE block_id = $1 AND booking_date = $2 AND status = 'active'
		 ORDER BY start_time ASC`,
		blockID, date,
	)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// Cancel marks a booking cancelled. It reports false when it already was.
func (r *BookingRepository) Cancel(ctx context.Context, id string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE bookings SET status = 'cancelled' WHERE id = $1 AND status = 'active'`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("cancel booking: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}
