package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ElazAzel/inkmax-sub002/internal/model"
	"github.com/ElazAzel/inkmax-sub002/internal/repository"
	"github.com/google/uuid"
)

// codeAlphabet omits 0/O and 1/I so typed codes are unambiguous.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// ErrTicketCodeExhausted is returned when no unused code was found within the attempt budget.
var ErrTicketCodeExhausted = errors.New("could not generate a unique ticket code")

// CodeGenerator produces a candidate ticket code of the given length.
type CodeGenerator func(length int) (string, error)

// RandomCode draws a code uniformly from codeAlphabet.
func RandomCode(length int) (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// TicketIssuerConfig tunes a TicketIssuer.
type TicketIssuerConfig struct {
	CodeLength     int
	CodeAttempts   int
	VisibilityWait time.Duration
	Generate       CodeGenerator
	Now            func() time.Time
	// Sleep waits for d or until ctx ends. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// TicketIssuer creates tickets for confirmed registrations and owns their code space.
type TicketIssuer struct {
	tickets TicketStore
	cfg     TicketIssuerConfig
	log     *slog.Logger
}

// NewTicketIssuer constructs a TicketIssuer, filling unset config with defaults.
func NewTicketIssuer(tickets TicketStore, cfg TicketIssuerConfig, log *slog.Logger) *TicketIssuer {
	if cfg.CodeLength <= 0 {
		cfg.CodeLength = 8
	}
	if cfg.CodeAttempts <= 0 {
		cfg.CodeAttempts = 5
	}
	if cfg.VisibilityWait <= 0 {
		cfg.VisibilityWait = 500 * time.Millisecond
	}
	if cfg.Generate == nil {
		cfg.Generate = RandomCode
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}
	return &TicketIssuer{tickets: tickets, cfg: cfg, log: log}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Attempts is how many codes a caller may try before giving up.
func (i *TicketIssuer) Attempts() int { return i.cfg.CodeAttempts }

// NewTicket builds a valid ticket for reg with a code not currently in use. The store's
// unique constraint still guards the insert; callers retry on ConstraintTicketCode.
func (i *TicketIssuer) NewTicket(ctx context.Context, reg *model.Registration) (*model.Ticket, error) {
	for attempt := 1; attempt <= i.cfg.CodeAttempts; attempt++ {
		code, err := i.cfg.Generate(i.cfg.CodeLength)
		if err != nil {
			return nil, fmt.Errorf("generate ticket code: %w", err)
		}
		exists, err := i.tickets.CodeExists(ctx, code)
		if err != nil {
			return nil, err
		}
		if exists {
			i.log.Debug("ticket code collision", slog.Int("attempt", attempt))
			continue
		}
		return &model.Ticket{
			ID:             uuid.New().String(),
			RegistrationID: reg.ID,
			EventID:        reg.EventID,
			Code:           code,
			Status:         model.TicketValid,
			CreatedAt:      i.cfg.Now().UTC(),
		}, nil
	}
	return nil, ErrTicketCodeExhausted
}

// Lookup returns the ticket of a registration without waiting.
func (i *TicketIssuer) Lookup(ctx context.Context, registrationID string) (*model.Ticket, bool, error) {
	t, err := i.tickets.GetByRegistration(ctx, registrationID)
	switch {
	case err == nil:
		return t, true, nil
	case errors.Is(err, repository.ErrNotFound):
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("get ticket: %w", err)
	}
}

// Await returns the ticket of a registration. When it is not yet visible it waits once
// for the configured interval and looks again; a ticket still missing then is reported as
// not yet propagated (nil, false), not as an error.
func (i *TicketIssuer) Await(ctx context.Context, registrationID string) (*model.Ticket, bool, error) {
	t, ok, err := i.Lookup(ctx, registrationID)
	if err != nil || ok {
		return t, ok, err
	}

	if err := i.cfg.Sleep(ctx, i.cfg.VisibilityWait); err != nil {
		return nil, false, err
	}

	t, ok, err = i.Lookup(ctx, registrationID)
	if err != nil || ok {
		return t, ok, err
	}
	i.log.Warn("ticket not visible after wait",
		slog.String("registration_id", registrationID),
		slog.Duration("wait", i.cfg.VisibilityWait),
	)
	return nil, false, nil
}
