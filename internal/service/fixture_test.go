package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ElazAzel/inkmax-sub002/internal/draft"
	"github.com/ElazAzel/inkmax-sub002/internal/model"
	"github.com/ElazAzel/inkmax-sub002/internal/repository/memory"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) record(name string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, name)
	return nil
}

func (n *recordingNotifier) seen() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

func (n *recordingNotifier) RegistrationCreated(context.Context, *model.Event, *model.Registration) error {
	return n.record("created")
}

func (n *recordingNotifier) RegistrationConfirmed(context.Context, *model.Event, *model.Registration, *model.Ticket) error {
	return n.record("confirmed")
}

func (n *recordingNotifier) RegistrationCancelled(context.Context, *model.Event, *model.Registration) error {
	return n.record("cancelled")
}

func (n *recordingNotifier) BookingCreated(context.Context, *model.BookingBlock, *model.Booking) error {
	return n.record("booking")
}

// fixture wires every service over one in-memory store.
type fixture struct {
	db           *memory.DB
	drafts       *draft.Cache
	notifier     *recordingNotifier
	dispatcher   *Dispatcher
	gate         *CapacityGate
	issuer       *TicketIssuer
	events       *EventService
	registration *RegistrationService
	checkin      *CheckInProcessor
	booking      *BookingService
}

type fixtureOption func(*fixtureDeps)

type fixtureDeps struct {
	registrations func(*memory.DB) RegistrationStore
	tickets       func(*memory.DB) TicketStore
	issuerCfg     TicketIssuerConfig
}

// withRegistrations wraps the registration store the services see.
func withRegistrations(wrap func(*memory.DB) RegistrationStore) fixtureOption {
	return func(d *fixtureDeps) { d.registrations = wrap }
}

// withTickets wraps the ticket store the services see.
func withTickets(wrap func(*memory.DB) TicketStore) fixtureOption {
	return func(d *fixtureDeps) { d.tickets = wrap }
}

func withIssuerConfig(cfg TicketIssuerConfig) fixtureOption {
	return func(d *fixtureDeps) {
		if cfg.Sleep == nil {
			cfg.Sleep = d.issuerCfg.Sleep
		}
		d.issuerCfg = cfg
	}
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	log := discardLogger()
	db := memory.New()
	deps := fixtureDeps{
		registrations: func(db *memory.DB) RegistrationStore { return db.Registrations() },
		tickets:       func(db *memory.DB) TicketStore { return db.Tickets() },
		issuerCfg: TicketIssuerConfig{
			Sleep: func(context.Context, time.Duration) error { return nil },
		},
	}
	for _, opt := range opts {
		opt(&deps)
	}
	registrations := deps.registrations(db)
	tickets := deps.tickets(db)

	f := &fixture{db: db, notifier: &recordingNotifier{}}
	f.drafts = draft.New(draft.NewMemoryStore(), draft.DefaultTTL)
	f.dispatcher = NewDispatcher(f.notifier, log)
	f.gate = NewCapacityGate(db.Events(), registrations, nil)
	f.issuer = NewTicketIssuer(tickets, deps.issuerCfg, log)
	f.events = NewEventService(db.Events(), f.gate, f.drafts, log)
	f.registration = NewRegistrationService(db.Events(), registrations, f.gate, f.issuer, f.drafts, f.dispatcher, log)
	f.checkin = NewCheckInProcessor(tickets, log)
	f.booking = NewBookingService(db.Blocks(), db.Bookings(), f.dispatcher, log)
	return f
}

type eventOption func(*model.Event)

func withCapacity(n int) eventOption {
	return func(e *model.Event) { e.Capacity = &n }
}

func withSchema(raw string) eventOption {
	return func(e *model.Event) { e.FormSchema = json.RawMessage(raw) }
}

// publishedEvent stores a published event owned by "owner-1".
func (f *fixture) publishedEvent(t *testing.T, id string, opts ...eventOption) *model.Event {
	t.Helper()
	e := &model.Event{
		ID:        id,
		OwnerID:   "owner-1",
		PageID:    "page-1",
		Name:      "Launch party",
		StartsAt:  time.Now().Add(48 * time.Hour),
		Status:    model.EventPublished,
		CreatedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(e)
	}
	require.NoError(t, f.db.Events().Create(context.Background(), e))
	return e
}

func (f *fixture) register(t *testing.T, eventID, email string) *RegistrationResult {
	t.Helper()
	res, err := f.registration.Register(context.Background(), eventID, "", model.RegisterRequest{
		AttendeeName:  "Ada",
		AttendeeEmail: email,
	})
	require.NoError(t, err)
	return res
}
