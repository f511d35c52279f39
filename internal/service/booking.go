package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ElazAzel/inkmax-sub002/internal/model"
	"github.com/ElazAzel/inkmax-sub002/internal/repository"
	"github.com/ElazAzel/inkmax-sub002/internal/slots"
	"github.com/google/uuid"
)

// BookingService manages booking blocks and the appointments taken in them.
type BookingService struct {
	blocks   BlockStore
	bookings BookingStore
	notify   *Dispatcher
	log      *slog.Logger
	now      func() time.Time
}

// NewBookingService constructs a BookingService.
func NewBookingService(blocks BlockStore, bookings BookingStore, notify *Dispatcher, log *slog.Logger) *BookingService {
	return &BookingService{blocks: blocks, bookings: bookings, notify: notify, log: log, now: time.Now}
}

// CreateBlock validates and stores a booking block for ownerID.
func (s *BookingService) CreateBlock(ctx context.Context, ownerID string, req model.CreateBlockRequest) (*model.BookingBlock, error) {
	if ownerID == "" {
		return nil, model.ErrAuthorization
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	block := &model.BookingBlock{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Title:     strings.TrimSpace(req.Title),
		Slots:     req.Slots,
		Templates: req.Templates,
		Defaults:  req.Defaults,
		CreatedAt: s.now().UTC(),
	}
	if err := slots.CheckBlock(*block); err != nil {
		return nil, err
	}
	if err := s.blocks.Create(ctx, block); err != nil {
		return nil, fmt.Errorf("create block: %w", err)
	}
	return block, nil
}

// Availability resolves the slots of blockID on date (YYYY-MM-DD).
func (s *BookingService) Availability(ctx context.Context, blockID, date string) (slots.Availability, error) {
	block, err := s.block(ctx, blockID)
	if err != nil {
		return slots.Availability{}, err
	}
	return s.resolve(ctx, block, date)
}

func (s *BookingService) resolve(ctx context.Context, block *model.BookingBlock, date string) (slots.Availability, error) {
	day, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return slots.Availability{}, model.NewValidationError("date", "Date", "must match the format 2006-01-02")
	}
	active, err := s.bookings.ListActiveByDate(ctx, block.ID, day.Format(time.DateOnly))
	if err != nil {
		return slots.Availability{}, fmt.Errorf("list bookings: %w", err)
	}
	return slots.Resolve(day, *block, active)
}

// Book reserves the slot starting at req.StartTime. Availability is recomputed from the
// store at commit; the store's one-active-booking-per-slot constraint settles races.
func (s *BookingService) Book(ctx context.Context, blockID string, req model.CreateBookingRequest) (*model.Booking, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	block, err := s.block(ctx, blockID)
	if err != nil {
		return nil, err
	}
	avail, err := s.resolve(ctx, block, req.Date)
	if err != nil {
		return nil, err
	}
	slot, ok := avail.Find(req.StartTime)
	if !ok || !slot.Available {
		return nil, model.ErrSlotUnavailable
	}

	b := &model.Booking{
		ID:          uuid.New().String(),
		BlockID:     block.ID,
		OwnerID:     block.OwnerID,
		Date:        avail.Date,
		StartTime:   slot.Start,
		EndTime:     slot.End,
		ClientName:  strings.TrimSpace(req.ClientName),
		ClientEmail: NormalizeEmail(req.ClientEmail),
		ClientPhone: strings.TrimSpace(req.ClientPhone),
		Status:      model.BookingActive,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.bookings.Create(ctx, b); err != nil {
		if repository.IsUniqueViolation(err, repository.ConstraintBookingSlot) {
			return nil, model.ErrSlotUnavailable
		}
		return nil, fmt.Errorf("create booking: %w", err)
	}

	s.log.InfoContext(ctx, "booking created",
		slog.String("block_id", block.ID),
		slog.String("booking_id", b.ID),
		slog.String("date", b.Date),
		slog.String("start_time", b.StartTime),
	)
	s.notify.Go(ctx, "booking_created", func(ctx context.Context, n Notifier) error {
		return n.BookingCreated(ctx, block, b)
	})
	return b, nil
}

// Cancel frees a booked slot. Only the block owner may cancel; repeated calls are no-ops.
func (s *BookingService) Cancel(ctx context.Context, operatorID, bookingID string) (*model.Booking, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.ErrBookingNotFound
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	if operatorID == "" || b.OwnerID != operatorID {
		return nil, model.ErrAuthorization
	}
	changed, err := s.bookings.Cancel(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("cancel booking: %w", err)
	}
	if changed {
		s.log.InfoContext(ctx, "booking cancelled", slog.String("booking_id", bookingID))
	}
	b.Status = model.BookingCancelled
	return b, nil
}

func (s *BookingService) block(ctx context.Context, id string) (*model.BookingBlock, error) {
	block, err := s.blocks.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.ErrBlockNotFound
		}
		return nil, fmt.Errorf("get block: %w", err)
	}
	return block, nil
}
