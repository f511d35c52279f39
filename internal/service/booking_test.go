package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/ElazAzel/inkmax-sub002/internal/model"
	"github.com/ElazAzel/inkmax-sub002/internal/slots"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// 2026-03-02 is a Monday.
const monday = "2026-03-02"

func bookingRequest(start string) model.CreateBookingRequest {
	return model.CreateBookingRequest{
		Date:        monday,
		StartTime:   start,
		ClientName:  "Grace",
		ClientEmail: "grace@example.com",
	}
}

func TestCreateBlock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.booking.CreateBlock(ctx, "", model.CreateBlockRequest{Title: "Consults"})
	assert.ErrorIs(t, err, model.ErrAuthorization)

	_, err = f.booking.CreateBlock(ctx, "owner-1", model.CreateBlockRequest{})
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "title", verr.Field)

	_, err = f.booking.CreateBlock(ctx, "owner-1", model.CreateBlockRequest{
		Title: "Consults",
		Slots: []model.ExplicitSlot{{StartTime: "9am", EndTime: "10:00"}},
	})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "slots[0].start_time", verr.Field)

	_, err = f.booking.CreateBlock(ctx, "owner-1", model.CreateBlockRequest{
		Title: "Consults",
		Slots: []model.ExplicitSlot{{StartTime: "11:00", EndTime: "10:00"}},
	})
	assert.ErrorIs(t, err, model.ErrConfiguration)

	block, err := f.booking.CreateBlock(ctx, "owner-1", model.CreateBlockRequest{Title: "  Consults  "})
	require.NoError(t, err)
	assert.Equal(t, "Consults", block.Title)
	assert.Equal(t, "owner-1", block.OwnerID)
}

func TestAvailabilityAndBooking(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	block, err := f.booking.CreateBlock(ctx, "owner-1", model.CreateBlockRequest{Title: "Consults"})
	require.NoError(t, err)

	avail, err := f.booking.Availability(ctx, block.ID, monday)
	require.NoError(t, err)
	assert.Equal(t, slots.SourceDefault, avail.Source)
	require.Len(t, avail.Slots, 9)
	assert.Equal(t, "09:00", avail.Slots[0].Start)

	b, err := f.booking.Book(ctx, block.ID, bookingRequest("10:00"))
	require.NoError(t, err)
	assert.Equal(t, "10:00", b.StartTime)
	assert.Equal(t, "11:00", b.EndTime)
	assert.Equal(t, model.BookingActive, b.Status)

	avail, err = f.booking.Availability(ctx, block.ID, monday)
	require.NoError(t, err)
	slot, ok := avail.Find("10:00")
	require.True(t, ok)
	assert.False(t, slot.Available)

	_, err = f.booking.Book(ctx, block.ID, bookingRequest("10:00"))
	assert.ErrorIs(t, err, model.ErrSlotUnavailable)

	_, err = f.booking.Book(ctx, block.ID, bookingRequest("10:30"))
	assert.ErrorIs(t, err, model.ErrSlotUnavailable, "no slot starts at 10:30")

	_, err = f.booking.Cancel(ctx, "owner-2", b.ID)
	assert.ErrorIs(t, err, model.ErrAuthorization)

	cancelled, err := f.booking.Cancel(ctx, "owner-1", b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, cancelled.Status)
	_, err = f.booking.Cancel(ctx, "owner-1", b.ID)
	require.NoError(t, err, "cancelling twice is a no-op")

	_, err = f.booking.Book(ctx, block.ID, bookingRequest("10:00"))
	require.NoError(t, err, "a cancelled booking frees the slot")

	f.dispatcher.Wait()
	assert.Equal(t, []string{"booking", "booking"}, f.notifier.seen())
}

func TestBooking_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.booking.Availability(ctx, "missing", monday)
	assert.ErrorIs(t, err, model.ErrBlockNotFound)

	block, err := f.booking.CreateBlock(ctx, "owner-1", model.CreateBlockRequest{Title: "Consults"})
	require.NoError(t, err)

	_, err = f.booking.Availability(ctx, block.ID, "03/02/2026")
	assert.ErrorIs(t, err, model.ErrValidation)

	req := bookingRequest("10:00")
	req.ClientEmail = "nope"
	_, err = f.booking.Book(ctx, block.ID, req)
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "client_email", verr.Field)

	_, err = f.booking.Cancel(ctx, "owner-1", "missing")
	assert.ErrorIs(t, err, model.ErrBookingNotFound)
}

func TestBooking_ConcurrentSameSlot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	block, err := f.booking.CreateBlock(ctx, "owner-1", model.CreateBlockRequest{Title: "Consults"})
	require.NoError(t, err)

	var ok, taken atomic.Int32
	var g errgroup.Group
	for range 8 {
		g.Go(func() error {
			_, err := f.booking.Book(ctx, block.ID, bookingRequest("14:00"))
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, model.ErrSlotUnavailable):
				taken.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(7), taken.Load())
}
