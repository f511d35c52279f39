// scanner is the door check-in client. It reads ticket codes from a capture device (a
// file or FIFO fed by a barcode decoder) and falls back to typed entry on stdin when the
// device cannot be used.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ElazAzel/inkmax-sub002/internal/scanner"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		serverURL string
		eventID   string
		operator  string
		device    string
		verbose   bool
	)
	flagSet := pflag.NewFlagSet("scanner", pflag.ContinueOnError)
	flagSet.StringVar(&serverURL, "server", "http://localhost:8080", "base URL of the ticketing API")
	flagSet.StringVarP(&eventID, "event", "e", "", "event to check attendees into (required)")
	flagSet.StringVarP(&operator, "operator", "o", os.Getenv("SCANNER_OPERATOR_ID"), "operator id sent as X-Operator-ID")
	flagSet.StringVarP(&device, "device", "d", "", "capture device path; empty means manual entry only")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log dropped and ignored codes")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if eventID == "" || operator == "" {
		return fmt.Errorf("--event and --operator are required")
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checker := &scanner.HTTPChecker{BaseURL: serverURL, EventID: eventID, OperatorID: operator}
	session := scanner.NewSession(checker, terminal{out: os.Stdout}, log)

	manual := scanner.ReaderDevice{R: os.Stdin}
	if device == "" {
		fmt.Fprintln(os.Stdout, "Enter ticket codes, one per line.")
		return session.RunManual(ctx, manual)
	}
	return ignoreDevice(session.Run(ctx, scanner.LineDevice{Path: device}, manual))
}

// ignoreDevice drops device errors already reported to the operator.
func ignoreDevice(err error) error {
	var derr *scanner.DeviceError
	if errors.As(err, &derr) {
		return nil
	}
	return err
}

// terminal prints outcomes and rings the bell: once for entry, twice for a rejection.
type terminal struct {
	out io.Writer
}

func (t terminal) Result(r scanner.Result) {
	mark := "✗"
	if r.Accepted() {
		mark = "✓"
	}
	if r.Attendee != "" {
		fmt.Fprintf(t.out, "%s %s  %s (%s)\n", mark, r.Code, r.Message, r.Attendee)
		return
	}
	fmt.Fprintf(t.out, "%s %s  %s\n", mark, r.Code, r.Message)
}

func (t terminal) Cue(c scanner.Cue) {
	if c == scanner.CueSuccess {
		fmt.Fprint(t.out, "\a")
		return
	}
	fmt.Fprint(t.out, "\a\a")
}

func (t terminal) Failed(code string, err error) {
	fmt.Fprintf(t.out, "! %s  not checked, try again: %v\n", code, err)
}

func (t terminal) Fallback(err *scanner.DeviceError) {
	fmt.Fprintf(t.out, "! %s\n", err.Message())
}
