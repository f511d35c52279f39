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
)

// Outcome names the result of a check-in attempt.
type Outcome string

const (
	OutcomeSuccess         Outcome = "success"
	OutcomeTicketNotFound  Outcome = "ticket_not_found"
	OutcomeWrongEvent      Outcome = "wrong_event"
	OutcomeNotAuthorized   Outcome = "not_authorized"
	OutcomeAlreadyUsed     Outcome = "already_used"
	OutcomeTicketCancelled Outcome = "ticket_cancelled"
)

// Message is the operator-facing text for the outcome.
func (o Outcome) Message() string {
	switch o {
	case OutcomeSuccess:
		return "Checked in"
	case OutcomeTicketNotFound:
		return "Ticket not found"
	case OutcomeWrongEvent:
		return "Ticket is for a different event"
	case OutcomeNotAuthorized:
		return "You are not allowed to check in this ticket"
	case OutcomeAlreadyUsed:
		return "Ticket already used"
	case OutcomeTicketCancelled:
		return "Ticket was cancelled"
	}
	return string(o)
}

// CheckInResult is reported back to the scanning operator.
type CheckInResult struct {
	Outcome     Outcome    `json:"outcome"`
	Message     string     `json:"message"`
	Code        string     `json:"code"`
	TicketID    string     `json:"ticket_id,omitempty"`
	Attendee    string     `json:"attendee,omitempty"`
	CheckedInAt *time.Time `json:"checked_in_at,omitempty"`
}

// CheckInProcessor validates and consumes tickets at the door.
type CheckInProcessor struct {
	tickets TicketStore
	log     *slog.Logger
	now     func() time.Time
}

// NewCheckInProcessor constructs a CheckInProcessor.
func NewCheckInProcessor(tickets TicketStore, log *slog.Logger) *CheckInProcessor {
	return &CheckInProcessor{tickets: tickets, log: log, now: time.Now}
}

// NormalizeCode is the form ticket codes are looked up under.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CheckIn runs the ordered checks for code at eventID on behalf of operatorID. Every
// business result is an Outcome; the error is reserved for missing context and store
// failures.
func (p *CheckInProcessor) CheckIn(ctx context.Context, eventID, operatorID, code string) (CheckInResult, error) {
	if eventID == "" || operatorID == "" {
		return CheckInResult{}, fmt.Errorf("%w: check-in needs an event and an operator", model.ErrConfiguration)
	}
	code = NormalizeCode(code)
	res := CheckInResult{Code: code}
	if code == "" {
		return res.with(OutcomeTicketNotFound), nil
	}

	tr, err := p.tickets.GetByCode(ctx, code)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return res.with(OutcomeTicketNotFound), nil
	case err != nil:
		return CheckInResult{}, fmt.Errorf("lookup ticket: %w", err)
	}
	res.TicketID = tr.Ticket.ID

	switch {
	case tr.Ticket.EventID != eventID:
		return res.with(OutcomeWrongEvent), nil
	case tr.Registration.OwnerID != operatorID:
		return res.with(OutcomeNotAuthorized), nil
	}
	res.Attendee = displayName(tr.Registration)

	if o, done := terminalOutcome(tr.Ticket); done {
		res.CheckedInAt = tr.Ticket.CheckedInAt
		return res.with(o), nil
	}

	at := p.now().UTC()
	ok, err := p.tickets.MarkUsed(ctx, tr.Ticket.ID, at)
	if err != nil {
		return CheckInResult{}, fmt.Errorf("mark ticket used: %w", err)
	}
	if !ok {
		// Lost a race with another scan or a cancellation.
		tr, err = p.tickets.GetByCode(ctx, code)
		if err != nil {
			return CheckInResult{}, fmt.Errorf("reload ticket: %w", err)
		}
		o, _ := terminalOutcome(tr.Ticket)
		res.CheckedInAt = tr.Ticket.CheckedInAt
		return res.with(o), nil
	}

	p.log.InfoContext(ctx, "ticket checked in",
		slog.String("event_id", eventID),
		slog.String("ticket_id", tr.Ticket.ID),
	)
	res.CheckedInAt = &at
	return res.with(OutcomeSuccess), nil
}

func terminalOutcome(t model.Ticket) (Outcome, bool) {
	switch t.Status {
	case model.TicketUsed:
		return OutcomeAlreadyUsed, true
	case model.TicketCancelled:
		return OutcomeTicketCancelled, true
	}
	return "", false
}

func (r CheckInResult) with(o Outcome) CheckInResult {
	r.Outcome = o
	r.Message = o.Message()
	return r
}

func displayName(r model.Registration) string {
	if r.AttendeeName != "" {
		return r.AttendeeName
	}
	return r.AttendeeEmail
}
