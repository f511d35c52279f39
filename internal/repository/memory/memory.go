// Package memory is an in-process store with the same constraint behaviour as the Postgres
// schema: one live registration per normalised email per event, capacity enforced on
// confirmation, unique ticket codes, one ticket per registration, and one active booking
// per slot instance. It backs STORE_DRIVER=memory and the service tests.
package memory

import (
	"context"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ElazAzel/inkmax-sub002/internal/model"
	"github.com/ElazAzel/inkmax-sub002/internal/repository"
)

// DB holds every table behind one lock, standing in for a serialisable database.
type DB struct {
	mu            sync.Mutex
	events        map[string]model.Event
	registrations map[string]model.Registration
	dedupe        map[string]bool
	tickets       map[string]model.Ticket
	blocks        map[string]model.BookingBlock
	bookings      map[string]model.Booking
	seq           map[string]int
	next          int
}

// New constructs an empty DB.
func New() *DB {
	return &DB{
		events:        make(map[string]model.Event),
		registrations: make(map[string]model.Registration),
		dedupe:        make(map[string]bool),
		tickets:       make(map[string]model.Ticket),
		blocks:        make(map[string]model.BookingBlock),
		bookings:      make(map[string]model.Booking),
		seq:           make(map[string]int),
	}
}

func (db *DB) stamp(id string) {
	db.next++
	db.seq[id] = db.next
}

func (db *DB) ordered(ids []string) {
	sort.Slice(ids, func(i, j int) bool { return db.seq[ids[i]] < db.seq[ids[j]] })
}

// Events returns the event table.
func (db *DB) Events() *EventStore { return &EventStore{db: db} }

// Registrations returns the registration table.
func (db *DB) Registrations() *RegistrationStore { return &RegistrationStore{db: db} }

// Tickets returns the ticket table.
func (db *DB) Tickets() *TicketStore { return &TicketStore{db: db} }

// Blocks returns the booking block table.
func (db *DB) Blocks() *BlockStore { return &BlockStore{db: db} }

// Bookings returns the booking table.
func (db *DB) Bookings() *BookingStore { return &BookingStore{db: db} }

// ─── Events ──────────────────────────────────────────────────────────────────

// EventStore stores events.
type EventStore struct{ db *DB }

func (s *EventStore) Create(_ context.Context, e *model.Event) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.events[e.ID]; ok {
		return &repository.UniqueViolationError{Constraint: "events_pkey"}
	}
	s.db.events[e.ID] = *e
	s.db.stamp(e.ID)
	return nil
}

func (s *EventStore) GetByID(_ context.Context, id string) (*model.Event, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	e, ok := s.db.events[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &e, nil
}

func (s *EventStore) List(_ context.Context, ownerID string) ([]model.Event, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var ids []string
	for id, e := range s.db.events {
		if e.OwnerID == ownerID {
			ids = append(ids, id)
		}
	}
	s.db.ordered(ids)
	out := make([]model.Event, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		out = append(out, s.db.events[ids[i]])
	}
	return out, nil
}

func (s *EventStore) UpdateStatus(_ context.Context, id string, status model.EventStatus) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	e, ok := s.db.events[id]
	if !ok {
		return repository.ErrNotFound
	}
	e.Status = status
	s.db.events[id] = e
	return nil
}

// ─── Registrations ───────────────────────────────────────────────────────────

// RegistrationStore stores registrations and issues tickets with them.
type RegistrationStore struct{ db *DB }

func (s *RegistrationStore) Create(_ context.Context, reg *model.Registration, ticket *model.Ticket) error {
	db := s.db
	db.mu.Lock()
	defer db.mu.Unlock()

	e, ok := db.events[reg.EventID]
	if !ok {
		return repository.ErrNotFound
	}
	if !e.AllowDuplicateEmails && db.liveEmailTaken(reg.EventID, reg.AttendeeEmail) {
		return &repository.UniqueViolationError{Constraint: repository.ConstraintRegistrationEmail}
	}
	if reg.Status == model.RegistrationConfirmed && e.Capacity != nil && e.ConfirmedCount >= *e.Capacity {
		return repository.ErrEventFull
	}
	if ticket != nil {
		if err := db.checkTicket(ticket); err != nil {
			return err
		}
	}

	if reg.Status == model.RegistrationConfirmed {
		e.ConfirmedCount++
		db.events[e.ID] = e
	}
	stored := *reg
	stored.Answers = maps.Clone(reg.Answers)
	db.registrations[reg.ID] = stored
	db.dedupe[reg.ID] = !e.AllowDuplicateEmails
	db.stamp(reg.ID)
	if ticket != nil {
		db.tickets[ticket.ID] = *ticket
	}
	return nil
}

func (db *DB) liveEmailTaken(eventID, email string) bool {
	for id, r := range db.registrations {
		if r.EventID == eventID && db.dedupe[id] && r.Status != model.RegistrationCancelled &&
			strings.EqualFold(r.AttendeeEmail, email) {
			return true
		}
	}
	return false
}

func (db *DB) checkTicket(t *model.Ticket) error {
	for _, existing := range db.tickets {
		if existing.Code == t.Code {
			return &repository.UniqueViolationError{Constraint: repository.ConstraintTicketCode}
		}
		if existing.RegistrationID == t.RegistrationID {
			return &repository.UniqueViolationError{Constraint: repository.ConstraintTicketRegistration}
		}
	}
	return nil
}

func (s *RegistrationStore) FindActiveByEmail(_ context.Context, eventID, email string) (*model.Registration, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, r := range s.db.registrations {
		if r.EventID == eventID && r.Status != model.RegistrationCancelled && strings.EqualFold(r.AttendeeEmail, email) {
			return &r, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *RegistrationStore) GetByID(_ context.Context, id string) (*model.Registration, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	r, ok := s.db.registrations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (s *RegistrationStore) ListByEvent(_ context.Context, eventID string) ([]model.Registration, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var ids []string
	for id, r := range s.db.registrations {
		if r.EventID == eventID {
			ids = append(ids, id)
		}
	}
	s.db.ordered(ids)
	out := make([]model.Registration, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.db.registrations[id])
	}
	return out, nil
}

func (s *RegistrationStore) Confirm(_ context.Context, id string, ticket *model.Ticket, at time.Time) error {
	db := s.db
	db.mu.Lock()
	defer db.mu.Unlock()

	r, ok := db.registrations[id]
	if !ok {
		return repository.ErrNotFound
	}
	if r.Status != model.RegistrationPending {
		return repository.ErrStatusConflict
	}
	e, ok := db.events[r.EventID]
	if !ok {
		return repository.ErrNotFound
	}
	if e.Capacity != nil && e.ConfirmedCount >= *e.Capacity {
		return repository.ErrEventFull
	}
	if ticket != nil {
		if err := db.checkTicket(ticket); err != nil {
			return err
		}
	}

	e.ConfirmedCount++
	db.events[e.ID] = e
	r.Status = model.RegistrationConfirmed
	r.UpdatedAt = at
	db.registrations[id] = r
	if ticket != nil {
		db.tickets[ticket.ID] = *ticket
	}
	return nil
}

func (s *RegistrationStore) Cancel(_ context.Context, id string, at time.Time) (bool, error) {
	db := s.db
	db.mu.Lock()
	defer db.mu.Unlock()

	r, ok := db.registrations[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if r.Status == model.RegistrationCancelled {
		return false, nil
	}
	if r.Status == model.RegistrationConfirmed {
		if e, ok := db.events[r.EventID]; ok && e.ConfirmedCount > 0 {
			e.ConfirmedCount--
			db.events[e.ID] = e
		}
	}
	r.Status = model.RegistrationCancelled
	r.UpdatedAt = at
	db.registrations[id] = r
	for tid, t := range db.tickets {
		if t.RegistrationID == id && t.Status == model.TicketValid {
			t.Status = model.TicketCancelled
			db.tickets[tid] = t
		}
	}
	return true, nil
}

// ─── Tickets ─────────────────────────────────────────────────────────────────

// TicketStore stores tickets.
type TicketStore struct{ db *DB }

func (s *TicketStore) CodeExists(_ context.Context, code string) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, t := range s.db.tickets {
		if t.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (s *TicketStore) GetByRegistration(_ context.Context, registrationID string) (*model.Ticket, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, t := range s.db.tickets {
		if t.RegistrationID == registrationID {
			return &t, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *TicketStore) GetByCode(_ context.Context, code string) (*model.TicketWithRegistration, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, t := range s.db.tickets {
		if t.Code != code {
			continue
		}
		r, ok := s.db.registrations[t.RegistrationID]
		if !ok {
			return nil, repository.ErrNotFound
		}
		return &model.TicketWithRegistration{Ticket: t, Registration: r}, nil
	}
	return nil, repository.ErrNotFound
}

func (s *TicketStore) MarkUsed(_ context.Context, id string, at time.Time) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	t, ok := s.db.tickets[id]
	if !ok || !t.Status.CanTransition(model.TicketUsed) {
		return false, nil
	}
	t.Status = model.TicketUsed
	t.CheckedInAt = &at
	s.db.tickets[id] = t
	return true, nil
}

// ─── Booking blocks and bookings ─────────────────────────────────────────────

// BlockStore stores booking blocks.
type BlockStore struct{ db *DB }

func (s *BlockStore) Create(_ context.Context, b *model.BookingBlock) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.blocks[b.ID] = *b
	return nil
}

func (s *BlockStore) GetByID(_ context.Context, id string) (*model.BookingBlock, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	b, ok := s.db.blocks[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &b, nil
}

// BookingStore stores slot bookings.
type BookingStore struct{ db *DB }

func (s *BookingStore) Create(_ context.Context, b *model.Booking) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, existing := range s.db.bookings {
		if existing.Status == model.BookingActive && existing.BlockID == b.BlockID &&
			existing.Date == b.Date && existing.StartTime == b.StartTime {
			return &repository.UniqueViolationError{Constraint: repository.ConstraintBookingSlot}
		}
	}
	s.db.bookings[b.ID] = *b
	s.db.stamp(b.ID)
	return nil
}

func (s *BookingStore) GetByID(_ context.Context, id string) (*model.Booking, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	b, ok := s.db.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &b, nil
}

func (s *BookingStore) ListActiveByDate(_ context.Context, blockID, date string) ([]model.Booking, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []model.Booking
	for _, b := range s.db.bookings {
		if b.BlockID == blockID && b.Date == date && b.Status == model.BookingActive {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out, nil
}

func (s *BookingStore) Cancel(_ context.Context, id string) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	b, ok := s.db.bookings[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if b.Status == model.BookingCancelled {
		return false, nil
	}
	b.Status = model.BookingCancelled
	s.db.bookings[id] = b
	return true, nil
}
