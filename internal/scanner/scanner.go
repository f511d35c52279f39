// Package scanner drives door check-in from a capture device or manual entry.
//
// A Session owns one scanning view: it acquires the device on entry and releases it on
// every exit path, keeps at most one check-in request in flight, drops codes decoded
// while that request is pending, and never resubmits a code already resolved in the
// session.
package scanner

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
)

// Cue is the audible or haptic signal for an outcome.
type Cue string

const (
	CueSuccess Cue = "success"
	CueReject  Cue = "reject"
)

// Result is a resolved check-in as reported by the server.
type Result struct {
	Outcome  string `json:"outcome"`
	Message  string `json:"message"`
	Code     string `json:"code"`
	Attendee string `json:"attendee,omitempty"`
}

// Accepted reports whether the attendee may enter.
func (r Result) Accepted() bool { return r.Outcome == "success" }

// Cue returns the signal for r.
func (r Result) Cue() Cue {
	if r.Accepted() {
		return CueSuccess
	}
	return CueReject
}

// Checker submits a code for check-in.
type Checker interface {
	Check(ctx context.Context, code string) (Result, error)
}

// Feedback receives everything the operator should see or hear.
type Feedback interface {
	Result(r Result)
	Cue(c Cue)
	// Failed reports a request that did not resolve; the code may be scanned again.
	Failed(code string, err error)
	// Fallback announces the switch to manual entry after a device failure.
	Fallback(err *DeviceError)
}

// Session is one scanning view.
type Session struct {
	checker  Checker
	feedback Feedback
	log      *slog.Logger

	busy atomic.Bool
	mu   sync.Mutex
	seen map[string]Result
	wg   sync.WaitGroup
}

// NewSession constructs a Session.
func NewSession(checker Checker, feedback Feedback, log *slog.Logger) *Session {
	return &Session{checker: checker, feedback: feedback, log: log, seen: make(map[string]Result)}
}

// Resolved returns the outcome already recorded for code in this session.
func (s *Session) Resolved(code string) (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.seen[normalize(code)]
	return r, ok
}

// Submit checks in code unless a request is already in flight or the code was resolved
// earlier in the session. It reports whether the code was submitted.
func (s *Session) Submit(ctx context.Context, code string) bool {
	code = normalize(code)
	if code == "" {
		return false
	}
	if _, done := s.Resolved(code); done {
		s.log.Debug("ignoring resolved code", slog.String("code", code))
		return false
	}
	if !s.busy.CompareAndSwap(false, true) {
		s.log.Debug("dropping code while busy", slog.String("code", code))
		return false
	}
	defer s.busy.Store(false)
	// The previous holder may have resolved this code after the first check.
	if _, done := s.Resolved(code); done {
		return false
	}

	res, err := s.checker.Check(ctx, code)
	if err != nil {
		s.feedback.Failed(code, err)
		return true
	}
	s.mu.Lock()
	s.seen[code] = res
	s.mu.Unlock()

	s.feedback.Result(res)
	s.feedback.Cue(res.Cue())
	return true
}

// Run scans from camera until ctx ends or input runs out. If the camera cannot be
// acquired or fails while streaming, the failure is reported through Feedback.Fallback
// and scanning continues from manual.
func (s *Session) Run(ctx context.Context, camera, manual Device) error {
	err := s.scan(ctx, camera, true)
	var derr *DeviceError
	if !errors.As(err, &derr) {
		return err
	}
	s.log.Warn("camera unavailable, falling back to manual entry", slog.String("kind", string(derr.Kind)))
	s.feedback.Fallback(derr)
	if manual == nil {
		return derr
	}
	return s.scan(ctx, manual, false)
}

// RunManual processes typed codes from dev in order until ctx ends or input runs out.
func (s *Session) RunManual(ctx context.Context, dev Device) error {
	return s.scan(ctx, dev, false)
}

// scan holds dev for the duration of the call. Camera frames are decoded continuously,
// so while a request is pending they are dropped; manual entries are processed in order.
func (s *Session) scan(ctx context.Context, dev Device, dropWhenBusy bool) error {
	stream, err := dev.Open(ctx)
	if err != nil {
		return ClassifyDeviceError(err)
	}
	defer stream.Close()
	defer s.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case code, ok := <-stream.Codes():
			if !ok {
				return stream.Err()
			}
			if !dropWhenBusy {
				s.Submit(ctx, code)
				continue
			}
			if s.busy.Load() {
				s.log.Debug("dropping frame while busy")
				continue
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.Submit(ctx, code)
			}()
		}
	}
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
