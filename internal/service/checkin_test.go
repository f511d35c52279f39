package service

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ElazAzel/inkmax-sub002/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestCheckIn_Outcomes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.publishedEvent(t, "e1")
	f.publishedEvent(t, "e2")
	res := f.register(t, "e1", "a@example.com")
	code := res.Ticket.Code

	t.Run("unknown code", func(t *testing.T) {
		got, err := f.checkin.CheckIn(ctx, "e1", "owner-1", "ZZZZZZZZ")
		require.NoError(t, err)
		assert.Equal(t, OutcomeTicketNotFound, got.Outcome)
	})

	t.Run("blank code", func(t *testing.T) {
		got, err := f.checkin.CheckIn(ctx, "e1", "owner-1", "   ")
		require.NoError(t, err)
		assert.Equal(t, OutcomeTicketNotFound, got.Outcome)
	})

	t.Run("other event", func(t *testing.T) {
		got, err := f.checkin.CheckIn(ctx, "e2", "owner-1", code)
		require.NoError(t, err)
		assert.Equal(t, OutcomeWrongEvent, got.Outcome)
	})

	t.Run("foreign operator", func(t *testing.T) {
		got, err := f.checkin.CheckIn(ctx, "e1", "owner-2", code)
		require.NoError(t, err)
		assert.Equal(t, OutcomeNotAuthorized, got.Outcome)
		assert.Empty(t, got.Attendee)
	})

	t.Run("lowercase code succeeds", func(t *testing.T) {
		got, err := f.checkin.CheckIn(ctx, "e1", "owner-1", " "+strings.ToLower(code)+" ")
		require.NoError(t, err)
		assert.Equal(t, OutcomeSuccess, got.Outcome)
		assert.Equal(t, code, got.Code)
		assert.Equal(t, "Ada", got.Attendee)
		assert.NotNil(t, got.CheckedInAt)
		assert.Equal(t, "Checked in", got.Message)
	})

	t.Run("second scan", func(t *testing.T) {
		got, err := f.checkin.CheckIn(ctx, "e1", "owner-1", code)
		require.NoError(t, err)
		assert.Equal(t, OutcomeAlreadyUsed, got.Outcome)
		assert.NotNil(t, got.CheckedInAt)
	})

	t.Run("missing context", func(t *testing.T) {
		_, err := f.checkin.CheckIn(ctx, "", "owner-1", code)
		assert.ErrorIs(t, err, model.ErrConfiguration)
		_, err = f.checkin.CheckIn(ctx, "e1", "", code)
		assert.ErrorIs(t, err, model.ErrConfiguration)
	})
}

func TestCheckIn_WrongEventBeforeAuthorization(t *testing.T) {
	f := newFixture(t)
	f.publishedEvent(t, "e1")
	f.publishedEvent(t, "e2")
	res := f.register(t, "e1", "a@example.com")

	got, err := f.checkin.CheckIn(context.Background(), "e2", "owner-2", res.Ticket.Code)
	require.NoError(t, err)
	assert.Equal(t, OutcomeWrongEvent, got.Outcome)
}

func TestCheckIn_CancelledTicket(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.publishedEvent(t, "e1")
	res := f.register(t, "e1", "a@example.com")
	_, err := f.registration.Cancel(ctx, "owner-1", res.Registration.ID)
	require.NoError(t, err)

	got, err := f.checkin.CheckIn(ctx, "e1", "owner-1", res.Ticket.Code)
	require.NoError(t, err)
	assert.Equal(t, OutcomeTicketCancelled, got.Outcome)
	assert.Equal(t, "Ticket was cancelled", got.Message)
}

func TestCheckIn_ConcurrentScansAdmitOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.publishedEvent(t, "e1")
	res := f.register(t, "e1", "a@example.com")

	var success, used atomic.Int32
	var g errgroup.Group
	for range 8 {
		g.Go(func() error {
			got, err := f.checkin.CheckIn(ctx, "e1", "owner-1", res.Ticket.Code)
			if err != nil {
				return err
			}
			switch got.Outcome {
			case OutcomeSuccess:
				success.Add(1)
			case OutcomeAlreadyUsed:
				used.Add(1)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), success.Load())
	assert.Equal(t, int32(7), used.Load())
}

func TestDisplayNameFallsBackToEmail(t *testing.T) {
	assert.Equal(t, "a@example.com", displayName(model.Registration{AttendeeEmail: "a@example.com"}))
	assert.Equal(t, "Ada", displayName(model.Registration{AttendeeName: "Ada", AttendeeEmail: "a@example.com"}))
}
