package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/ElazAzel/inkmax-sub002/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeChecker struct {
	mu      sync.Mutex
	calls   []string
	started chan string
	release chan struct{}
	fail    error
}

func (c *fakeChecker) Check(ctx context.Context, code string) (Result, error) {
	c.mu.Lock()
	c.calls = append(c.calls, code)
	fail := c.fail
	c.mu.Unlock()
	if c.started != nil {
		c.started <- code
	}
	if c.release != nil {
		<-c.release
	}
	if fail != nil {
		return Result{}, fail
	}
	outcome := "success"
	if strings.HasPrefix(code, "BAD") {
		outcome = "ticket_not_found"
	}
	return Result{Outcome: outcome, Code: code}, nil
}

func (c *fakeChecker) seen() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

type recordingFeedback struct {
	mu        sync.Mutex
	results   []Result
	cues      []Cue
	failed    []string
	fallbacks []*DeviceError
}

func (f *recordingFeedback) Result(r Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, r)
}

func (f *recordingFeedback) Cue(c Cue) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cues = append(f.cues, c)
}

func (f *recordingFeedback) Failed(code string, _ error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, code)
}

func (f *recordingFeedback) Fallback(err *DeviceError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fallbacks = append(f.fallbacks, err)
}

// chanDevice hands out a stream fed by the test.
type chanDevice struct {
	codes   chan string
	openErr error
	err     error

	mu     sync.Mutex
	opened int
	closed int
}

func newChanDevice() *chanDevice {
	return &chanDevice{codes: make(chan string)}
}

func (d *chanDevice) Open(context.Context) (Stream, error) {
	if d.openErr != nil {
		return nil, d.openErr
	}
	d.mu.Lock()
	d.opened++
	d.mu.Unlock()
	return &chanStream{dev: d}, nil
}

func (d *chanDevice) closes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

type chanStream struct {
	dev *chanDevice
}

func (s *chanStream) Codes() <-chan string { return s.dev.codes }
func (s *chanStream) Err() error           { return s.dev.err }
func (s *chanStream) Close() error {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	s.dev.closed++
	return nil
}

func TestSession_SubmitDedupesResolvedCodes(t *testing.T) {
	ctx := context.Background()
	checker := &fakeChecker{}
	fb := &recordingFeedback{}
	s := NewSession(checker, fb, discardLogger())

	assert.True(t, s.Submit(ctx, "abcd2345"))
	assert.False(t, s.Submit(ctx, " ABCD2345 "), "resolved codes are ignored")
	assert.False(t, s.Submit(ctx, "   "))

	assert.Equal(t, []string{"ABCD2345"}, checker.seen())
	require.Len(t, fb.results, 1)
	assert.Equal(t, []Cue{CueSuccess}, fb.cues)

	r, ok := s.Resolved("abcd2345")
	require.True(t, ok)
	assert.True(t, r.Accepted())
}

func TestSession_ConcurrentDecodesResolveOnce(t *testing.T) {
	for range 200 {
		checker := &fakeChecker{}
		fb := &recordingFeedback{}
		s := NewSession(checker, fb, discardLogger())

		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range 4 {
					s.Submit(context.Background(), "abcd2345")
					runtime.Gosched()
				}
			}()
		}
		wg.Wait()

		require.Len(t, checker.seen(), 1)
		require.Len(t, fb.results, 1)
	}
}

func TestSession_RejectCue(t *testing.T) {
	fb := &recordingFeedback{}
	s := NewSession(&fakeChecker{}, fb, discardLogger())
	s.Submit(context.Background(), "BAD23456")
	assert.Equal(t, []Cue{CueReject}, fb.cues)
}

func TestSession_FailedRequestIsNotResolved(t *testing.T) {
	ctx := context.Background()
	checker := &fakeChecker{fail: errors.New("network down")}
	fb := &recordingFeedback{}
	s := NewSession(checker, fb, discardLogger())

	assert.True(t, s.Submit(ctx, "ABCD2345"))
	assert.Equal(t, []string{"ABCD2345"}, fb.failed)
	assert.Empty(t, fb.cues)

	checker.mu.Lock()
	checker.fail = nil
	checker.mu.Unlock()
	assert.True(t, s.Submit(ctx, "ABCD2345"), "an unresolved code may be retried")
	assert.Len(t, checker.seen(), 2)
}

func TestSession_DropsFramesWhileBusy(t *testing.T) {
	checker := &fakeChecker{started: make(chan string, 1), release: make(chan struct{})}
	fb := &recordingFeedback{}
	s := NewSession(checker, fb, discardLogger())
	camera := newChanDevice()

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background(), camera, nil) }()

	camera.codes <- "FIRST234"
	assert.Equal(t, "FIRST234", <-checker.started)
	camera.codes <- "STALE234"
	camera.codes <- "STALE567"
	close(checker.release)
	close(camera.codes)

	require.NoError(t, <-done)
	assert.Equal(t, []string{"FIRST234"}, checker.seen())
	assert.Equal(t, 1, camera.closes())
}

func TestSession_ReleasesDeviceOnEveryExit(t *testing.T) {
	t.Run("cancelled", func(t *testing.T) {
		camera := newChanDevice()
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		s := NewSession(&fakeChecker{}, &recordingFeedback{}, discardLogger())
		go func() { done <- s.Run(ctx, camera, nil) }()
		camera.codes <- "ABCD2345"
		cancel()
		require.NoError(t, <-done)
		assert.Equal(t, 1, camera.closes())
	})

	t.Run("stream failure", func(t *testing.T) {
		camera := newChanDevice()
		camera.err = &DeviceError{Kind: DeviceFailed, Err: errors.New("unplugged")}
		close(camera.codes)
		fb := &recordingFeedback{}
		s := NewSession(&fakeChecker{}, fb, discardLogger())

		err := s.Run(context.Background(), camera, nil)
		assert.ErrorIs(t, err, model.ErrDevice)
		assert.Equal(t, 1, camera.closes())
		require.Len(t, fb.fallbacks, 1)
	})
}

func TestSession_FallsBackToManualEntry(t *testing.T) {
	camera := &chanDevice{openErr: fmt.Errorf("open camera: %w", syscall.EBUSY)}
	checker := &fakeChecker{}
	fb := &recordingFeedback{}
	s := NewSession(checker, fb, discardLogger())

	manual := ReaderDevice{R: strings.NewReader("abcd2345\nabcd2345\nwxyz6789\n")}
	require.NoError(t, s.Run(context.Background(), camera, manual))

	require.Len(t, fb.fallbacks, 1)
	assert.Equal(t, DeviceBusy, fb.fallbacks[0].Kind)
	assert.Equal(t, []string{"ABCD2345", "WXYZ6789"}, checker.seen())
	assert.Len(t, fb.results, 2)
}

func TestSession_RunManualProcessesEveryEntry(t *testing.T) {
	checker := &fakeChecker{}
	fb := &recordingFeedback{}
	s := NewSession(checker, fb, discardLogger())

	manual := ReaderDevice{R: strings.NewReader("abcd2345\n\nbad23456\nqrst7890\n")}
	require.NoError(t, s.RunManual(context.Background(), manual))

	assert.Equal(t, []string{"ABCD2345", "BAD23456", "QRST7890"}, checker.seen())
	assert.Equal(t, []Cue{CueSuccess, CueReject, CueSuccess}, fb.cues)
	assert.Empty(t, fb.fallbacks)
}

func TestClassifyDeviceError(t *testing.T) {
	tests := []struct {
		err  error
		kind DeviceErrorKind
	}{
		{fs.ErrPermission, DevicePermissionDenied},
		{&fs.PathError{Op: "open", Path: "/dev/video0", Err: fs.ErrNotExist}, DeviceAbsent},
		{syscall.ENODEV, DeviceAbsent},
		{syscall.EBUSY, DeviceBusy},
		{errors.New("boom"), DeviceFailed},
	}
	messages := make(map[string]struct{})
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			derr := ClassifyDeviceError(tt.err)
			assert.Equal(t, tt.kind, derr.Kind)
			assert.ErrorIs(t, derr, model.ErrDevice)
			assert.ErrorIs(t, derr, tt.err)
			messages[derr.Message()] = struct{}{}
		})
	}
	assert.Len(t, messages, 4, "every kind has its own message")

	already := &DeviceError{Kind: DeviceBusy}
	assert.Same(t, already, ClassifyDeviceError(fmt.Errorf("wrapped: %w", already)))
}

func TestLineDevice(t *testing.T) {
	_, err := LineDevice{Path: filepath.Join(t.TempDir(), "missing")}.Open(context.Background())
	var derr *DeviceError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, DeviceAbsent, derr.Kind)

	stream, err := ReaderDevice{R: strings.NewReader("one\ntwo\n")}.Open(context.Background())
	require.NoError(t, err)
	defer stream.Close()

	var got []string
	timeout := time.After(time.Second)
	for {
		select {
		case code, ok := <-stream.Codes():
			if !ok {
				assert.Equal(t, []string{"one", "two"}, got)
				assert.NoError(t, stream.Err())
				return
			}
			got = append(got, code)
		case <-timeout:
			t.Fatal("stream did not finish")
		}
	}
}
