// Package slots derives the bookable time slots of a booking block for one calendar date.
//
// Resolution is pure: the same block, date and bookings always produce the same ordered
// result. Slot sources are never merged. Explicit slots win; otherwise templates matching the
// date apply; otherwise slots are generated from the block's working hours.
package slots

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ElazAzel/inkmax-sub002/internal/model"
)

// Source names where a date's slots came from.
type Source string

const (
	SourceExplicit  Source = "explicit"
	SourceTemplates Source = "templates"
	SourceDefault   Source = "default"
)

// Status distinguishes a date with slots from a date with none.
type Status string

const (
	StatusAvailable Status = "available"
	StatusNoSlots   Status = "no_slots"
)

// DefaultWorkingHours applies when a block leaves its generation parameters unset.
var DefaultWorkingHours = model.SlotDefaults{StartHour: 9, EndHour: 18, DurationMin: 60}

// Availability is the resolved slot list for one date.
type Availability struct {
	Date   string               `json:"date"`
	Source Source               `json:"source"`
	Status Status               `json:"status"`
	Slots  []model.SlotInstance `json:"slots"`
}

// Find returns the slot starting at start.
func (a Availability) Find(start string) (model.SlotInstance, bool) {
	c, err := ParseClock(start)
	if err != nil {
		return model.SlotInstance{}, false
	}
	for _, s := range a.Slots {
		if s.Start == c.String() {
			return s, true
		}
	}
	return model.SlotInstance{}, false
}

// Clock is a wall-clock time of day in minutes since midnight.
type Clock int

const endOfDay Clock = 24 * 60

// ParseClock parses "HH:MM". "24:00" is accepted as the end of the day.
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	if s == "24:00" {
		return endOfDay, nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid time %q", model.ErrConfiguration, s)
	}
	return Clock(t.Hour()*60 + t.Minute()), nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

type span struct{ start, end Clock }

// Resolve computes the slot instances of block on date. Bookings for other dates and
// cancelled bookings are ignored. A slot is unavailable iff an active booking starts at
// exactly the slot's start time.
func Resolve(date time.Time, block model.BookingBlock, bookings []model.Booking) (Availability, error) {
	day := date.Format(time.DateOnly)
	spans, source, err := resolveSpans(date, block)
	if err != nil {
		return Availability{}, err
	}

	booked := make(map[Clock]struct{}, len(bookings))
	for _, b := range bookings {
		if b.Status == model.BookingCancelled || b.Date != day {
			continue
		}
		c, err := ParseClock(b.StartTime)
		if err != nil {
			continue
		}
		booked[c] = struct{}{}
	}

	out := Availability{Date: day, Source: source, Status: StatusNoSlots, Slots: []model.SlotInstance{}}
	for _, sp := range spans {
		_, taken := booked[sp.start]
		out.Slots = append(out.Slots, model.SlotInstance{
			Start:     sp.start.String(),
			End:       sp.end.String(),
			Available: !taken,
		})
	}
	if len(out.Slots) > 0 {
		out.Status = StatusAvailable
	}
	return out, nil
}

func resolveSpans(date time.Time, block model.BookingBlock) ([]span, Source, error) {
	if len(block.Slots) > 0 {
		spans := make([]span, 0, len(block.Slots))
		for _, s := range block.Slots {
			sp, err := parseSpan(s.StartTime, s.EndTime)
			if err != nil {
				return nil, SourceExplicit, err
			}
			spans = append(spans, sp)
		}
		return normalize(spans), SourceExplicit, nil
	}

	day := date.Format(time.DateOnly)
	var spans []span
	for _, t := range block.Templates {
		matches := t.Date == day || (t.Date == "" && t.DayOfWeek != nil && *t.DayOfWeek == date.Weekday())
		if !matches {
			continue
		}
		sp, err := parseSpan(t.StartTime, t.EndTime)
		if err != nil {
			return nil, SourceTemplates, err
		}
		spans = append(spans, sp)
	}
	if len(spans) > 0 {
		return normalize(spans), SourceTemplates, nil
	}

	return generate(block.Defaults), SourceDefault, nil
}

// generate walks the working hours in duration steps. A slot that would end after the
// closing hour is dropped.
func generate(d model.SlotDefaults) []span {
	if d == (model.SlotDefaults{}) {
		d = DefaultWorkingHours
	}
	if d.DurationMin <= 0 || d.EndHour <= d.StartHour {
		return nil
	}
	start, end, step := Clock(d.StartHour*60), Clock(d.EndHour*60), Clock(d.DurationMin)
	if end > endOfDay {
		end = endOfDay
	}
	var spans []span
	for c := start; c+step <= end; c += step {
		spans = append(spans, span{start: c, end: c + step})
	}
	return spans
}

func parseSpan(start, end string) (span, error) {
	s, err := ParseClock(start)
	if err != nil {
		return span{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return span{}, err
	}
	if e <= s {
		return span{}, fmt.Errorf("%w: slot %s-%s ends before it starts", model.ErrConfiguration, start, end)
	}
	return span{start: s, end: e}, nil
}

// normalize orders spans by start then end and drops exact duplicates.
func normalize(spans []span) []span {
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].end < spans[j].end
	})
	out := make([]span, 0, len(spans))
	for _, sp := range spans {
		if len(out) > 0 && sp == out[len(out)-1] {
			continue
		}
		out = append(out, sp)
	}
	return out
}

// CheckBlock reports configuration errors in a block before it is stored.
func CheckBlock(block model.BookingBlock) error {
	for _, s := range block.Slots {
		if _, err := parseSpan(s.StartTime, s.EndTime); err != nil {
			return err
		}
	}
	for _, t := range block.Templates {
		if (t.DayOfWeek == nil) == (t.Date == "") {
			return fmt.Errorf("%w: template needs exactly one of day_of_week or date", model.ErrConfiguration)
		}
		if _, err := parseSpan(t.StartTime, t.EndTime); err != nil {
			return err
		}
	}
	d := block.Defaults
	if d != (model.SlotDefaults{}) && (d.DurationMin <= 0 || d.EndHour <= d.StartHour) {
		return fmt.Errorf("%w: working hours %d-%d with %d minute slots produce no slots",
			model.ErrConfiguration, d.StartHour, d.EndHour, d.DurationMin)
	}
	return nil
}
