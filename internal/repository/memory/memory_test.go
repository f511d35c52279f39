package memory

import (
	"context"
	"testing"
	"time"

	"github.com/ElazAzel/inkmax-sub002/internal/model"
	"github.com/ElazAzel/inkmax-sub002/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedEvent(t *testing.T, db *DB, capacity *int, allowDup bool) model.Event {
	t.Helper()
	e := model.Event{ID: "e1", OwnerID: "o1", Status: model.EventPublished, Capacity: capacity, AllowDuplicateEmails: allowDup}
	require.NoError(t, db.Events().Create(context.Background(), &e))
	return e
}

func reg(id, email string, status model.RegistrationStatus) *model.Registration {
	return &model.Registration{ID: id, EventID: "e1", OwnerID: "o1", AttendeeEmail: email, Status: status}
}

func TestRegistrationStore_EmailConstraint(t *testing.T) {
	ctx := context.Background()
	db := New()
	seedEvent(t, db, nil, false)
	regs := db.Registrations()

	require.NoError(t, regs.Create(ctx, reg("r1", "a@example.com", model.RegistrationConfirmed), nil))

	err := regs.Create(ctx, reg("r2", "A@Example.com", model.RegistrationPending), nil)
	assert.True(t, repository.IsUniqueViolation(err, repository.ConstraintRegistrationEmail))

	// A cancelled registration releases the email.
	changed, err := regs.Cancel(ctx, "r1", time.Now())
	require.NoError(t, err)
	assert.True(t, changed)
	require.NoError(t, regs.Create(ctx, reg("r3", "a@example.com", model.RegistrationConfirmed), nil))
}

func TestRegistrationStore_DuplicatesAllowed(t *testing.T) {
	ctx := context.Background()
	db := New()
	seedEvent(t, db, nil, true)
	regs := db.Registrations()

	require.NoError(t, regs.Create(ctx, reg("r1", "a@example.com", model.RegistrationConfirmed), nil))
	require.NoError(t, regs.Create(ctx, reg("r2", "a@example.com", model.RegistrationConfirmed), nil))
}

func TestRegistrationStore_CapacityAndCancel(t *testing.T) {
	ctx := context.Background()
	db := New()
	one := 1
	seedEvent(t, db, &one, false)
	regs := db.Registrations()
	tickets := db.Tickets()

	ticket := &model.Ticket{ID: "t1", RegistrationID: "r1", EventID: "e1", Code: "ABCD2345", Status: model.TicketValid}
	require.NoError(t, regs.Create(ctx, reg("r1", "a@example.com", model.RegistrationConfirmed), ticket))

	err := regs.Create(ctx, reg("r2", "b@example.com", model.RegistrationConfirmed), nil)
	assert.ErrorIs(t, err, repository.ErrEventFull)

	// Pending registrations do not take a seat.
	require.NoError(t, regs.Create(ctx, reg("r3", "c@example.com", model.RegistrationPending), nil))
	assert.ErrorIs(t, regs.Confirm(ctx, "r3", nil, time.Now()), repository.ErrEventFull)

	changed, err := regs.Cancel(ctx, "r1", time.Now())
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = regs.Cancel(ctx, "r1", time.Now())
	require.NoError(t, err)
	assert.False(t, changed)

	got, err := tickets.GetByRegistration(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, model.TicketCancelled, got.Status)

	e, err := db.Events().GetByID(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, 0, e.ConfirmedCount)

	require.NoError(t, regs.Confirm(ctx, "r3", nil, time.Now()))
	assert.ErrorIs(t, regs.Confirm(ctx, "r3", nil, time.Now()), repository.ErrStatusConflict)
}

func TestTicketStore_Constraints(t *testing.T) {
	ctx := context.Background()
	db := New()
	seedEvent(t, db, nil, false)
	require.NoError(t, db.Registrations().Create(ctx, reg("r1", "a@example.com", model.RegistrationConfirmed),
		&model.Ticket{ID: "t1", RegistrationID: "r1", Code: "CODE2345", Status: model.TicketValid}))
	tickets := db.Tickets()

	err := db.Registrations().Create(ctx, reg("r2", "b@example.com", model.RegistrationConfirmed),
		&model.Ticket{ID: "t2", RegistrationID: "r2", Code: "CODE2345", Status: model.TicketValid})
	assert.True(t, repository.IsUniqueViolation(err, repository.ConstraintTicketCode))

	exists, err := tickets.CodeExists(ctx, "CODE2345")
	require.NoError(t, err)
	assert.True(t, exists)

	ok, err := tickets.MarkUsed(ctx, "t1", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = tickets.MarkUsed(ctx, "t1", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	tr, err := tickets.GetByCode(ctx, "CODE2345")
	require.NoError(t, err)
	assert.Equal(t, model.TicketUsed, tr.Ticket.Status)
	assert.Equal(t, "a@example.com", tr.Registration.AttendeeEmail)

	_, err = tickets.GetByCode(ctx, "MISSING2")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestBookingStore_OneActivePerSlot(t *testing.T) {
	ctx := context.Background()
	bookings := New().Bookings()

	b := &model.Booking{ID: "b1", BlockID: "k1", Date: "2026-03-02", StartTime: "10:00", Status: model.BookingActive}
	require.NoError(t, bookings.Create(ctx, b))

	err := bookings.Create(ctx, &model.Booking{ID: "b2", BlockID: "k1", Date: "2026-03-02", StartTime: "10:00", Status: model.BookingActive})
	assert.True(t, repository.IsUniqueViolation(err, repository.ConstraintBookingSlot))

	changed, err := bookings.Cancel(ctx, "b1")
	require.NoError(t, err)
	assert.True(t, changed)

	require.NoError(t, bookings.Create(ctx, &model.Booking{ID: "b3", BlockID: "k1", Date: "2026-03-02", StartTime: "10:00", Status: model.BookingActive}))

	active, err := bookings.ListActiveByDate(ctx, "k1", "2026-03-02")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "b3", active[0].ID)

	_, err = bookings.Cancel(ctx, "nope")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestEventStore_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	events := New().Events()
	require.NoError(t, events.Create(ctx, &model.Event{ID: "a", OwnerID: "o1"}))
	require.NoError(t, events.Create(ctx, &model.Event{ID: "b", OwnerID: "o1"}))
	require.NoError(t, events.Create(ctx, &model.Event{ID: "c", OwnerID: "o2"}))

	list, err := events.List(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)
	assert.Equal(t, "a", list[1].ID)
}
