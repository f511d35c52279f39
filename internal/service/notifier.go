package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ElazAzel/inkmax-sub002/internal/model"
)

// LogNotifier writes notifications to the structured log. It stands in for email and
// messaging delivery.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log.With(slog.String("component", "notifier"))}
}

func (n *LogNotifier) RegistrationCreated(ctx context.Context, e *model.Event, r *model.Registration) error {
	n.log.InfoContext(ctx, "notify owner: new registration",
		slog.String("event_id", e.ID),
		slog.String("owner_id", e.OwnerID),
		slog.String("registration_id", r.ID),
		slog.String("status", string(r.Status)),
	)
	return nil
}

func (n *LogNotifier) RegistrationConfirmed(ctx context.Context, e *model.Event, r *model.Registration, t *model.Ticket) error {
	n.log.InfoContext(ctx, "notify attendee: registration confirmed",
		slog.String("event_id", e.ID),
		slog.String("registration_id", r.ID),
		slog.String("ticket_id", t.ID),
	)
	return nil
}

func (n *LogNotifier) RegistrationCancelled(ctx context.Context, e *model.Event, r *model.Registration) error {
	n.log.InfoContext(ctx, "notify attendee: registration cancelled",
		slog.String("event_id", e.ID),
		slog.String("registration_id", r.ID),
	)
	return nil
}

func (n *LogNotifier) BookingCreated(ctx context.Context, block *model.BookingBlock, b *model.Booking) error {
	n.log.InfoContext(ctx, "notify owner: new booking",
		slog.String("block_id", block.ID),
		slog.String("owner_id", block.OwnerID),
		slog.String("booking_id", b.ID),
		slog.String("date", b.Date),
		slog.String("start_time", b.StartTime),
	)
	return nil
}

// Dispatcher runs notifications in the background, detached from request cancellation.
// Failures are logged and never reach the caller.
type Dispatcher struct {
	notifier Notifier
	log      *slog.Logger
	wg       sync.WaitGroup
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(n Notifier, log *slog.Logger) *Dispatcher {
	return &Dispatcher{notifier: n, log: log}
}

// Go schedules fn.
func (d *Dispatcher) Go(ctx context.Context, name string, fn func(ctx context.Context, n Notifier) error) {
	if d == nil || d.notifier == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.log.Error("notification panicked", slog.String("notification", name), slog.Any("panic", r))
			}
		}()
		if err := fn(ctx, d.notifier); err != nil {
			d.log.Warn("notification failed", slog.String("notification", name), slog.Any("error", err))
		}
	}()
}

// Wait blocks until scheduled notifications have finished.
func (d *Dispatcher) Wait() {
	if d != nil {
		d.wg.Wait()
	}
}
