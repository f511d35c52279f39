package scanner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
	"syscall"

	"github.com/ElazAzel/inkmax-sub002/internal/model"
)

// DeviceErrorKind classifies why a capture device is unusable.
type DeviceErrorKind string

const (
	DevicePermissionDenied DeviceErrorKind = "permission_denied"
	DeviceAbsent           DeviceErrorKind = "absent"
	DeviceBusy             DeviceErrorKind = "busy"
	DeviceFailed           DeviceErrorKind = "failed"
)

// DeviceError reports a capture device failure. It matches model.ErrDevice.
type DeviceError struct {
	Kind DeviceErrorKind
	Err  error
}

func (e *DeviceError) Error() string {
	if e.Err == nil {
		return "scanner device: " + string(e.Kind)
	}
	return fmt.Sprintf("scanner device: %s: %v", e.Kind, e.Err)
}

func (e *DeviceError) Unwrap() []error {
	if e.Err == nil {
		return []error{model.ErrDevice}
	}
	return []error{model.ErrDevice, e.Err}
}

// Message is the operator-facing explanation. Each kind reads differently.
func (e *DeviceError) Message() string {
	switch e.Kind {
	case DevicePermissionDenied:
		return "Camera access was denied. Enter ticket codes manually."
	case DeviceAbsent:
		return "No camera was found. Enter ticket codes manually."
	case DeviceBusy:
		return "The camera is in use by another application. Enter ticket codes manually."
	}
	return "The camera stopped working. Enter ticket codes manually."
}

// ClassifyDeviceError wraps err as a *DeviceError of the matching kind.
func ClassifyDeviceError(err error) *DeviceError {
	var derr *DeviceError
	if errors.As(err, &derr) {
		return derr
	}
	kind := DeviceFailed
	switch {
	case errors.Is(err, fs.ErrPermission):
		kind = DevicePermissionDenied
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENODEV), errors.Is(err, syscall.ENXIO):
		kind = DeviceAbsent
	case errors.Is(err, syscall.EBUSY):
		kind = DeviceBusy
	}
	return &DeviceError{Kind: kind, Err: err}
}

// Device is a source of decoded ticket codes that must be acquired before use.
type Device interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream delivers decoded codes until it is closed or the device fails. Close releases
// the underlying handle and is safe to call more than once.
type Stream interface {
	Codes() <-chan string
	// Err reports why Codes was closed; nil after a clean end of input.
	Err() error
	Close() error
}

// LineDevice reads one code per line from a file, such as a FIFO fed by a barcode
// decoder or a keyboard-wedge scanner's character device.
type LineDevice struct {
	Path string
}

func (d LineDevice) Open(ctx context.Context) (Stream, error) {
	f, err := os.Open(d.Path)
	if err != nil {
		return nil, ClassifyDeviceError(err)
	}
	return newLineStream(ctx, f, f), nil
}

// ReaderDevice reads one code per line from r. It is used for manual entry.
type ReaderDevice struct {
	R io.Reader
}

func (d ReaderDevice) Open(ctx context.Context) (Stream, error) {
	return newLineStream(ctx, d.R, nil), nil
}

type lineStream struct {
	codes  chan string
	closer io.Closer
	done   chan struct{}
	once   sync.Once
	mu     sync.Mutex
	err    error
}

func newLineStream(ctx context.Context, r io.Reader, closer io.Closer) *lineStream {
	s := &lineStream{codes: make(chan string), closer: closer, done: make(chan struct{})}
	go s.pump(ctx, r)
	return s
}

func (s *lineStream) pump(ctx context.Context, r io.Reader) {
	defer close(s.codes)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		select {
		case s.codes <- sc.Text():
		case <-s.done:
			return
		case <-ctx.Done():
			return
		}
	}
	if err := sc.Err(); err != nil && !errors.Is(err, fs.ErrClosed) {
		s.mu.Lock()
		s.err = ClassifyDeviceError(err)
		s.mu.Unlock()
	}
}

func (s *lineStream) Codes() <-chan string { return s.codes }

func (s *lineStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *lineStream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		if s.closer != nil {
			err = s.closer.Close()
		}
	})
	return err
}
