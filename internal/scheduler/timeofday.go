package scheduler

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTimeOfDay is matched by every ParseError produced by ParseTimeOfDay.
var ErrInvalidTimeOfDay = errors.New("invalid time of day")

// ErrInvalidDate is matched by every ParseError produced by ParseDate.
var ErrInvalidDate = errors.New("invalid date")

// ParseError reports the rejected input together with the reason.
type ParseError struct {
	Input  string
	Reason string
	kind   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s %q: %s", e.kind, e.Input, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.kind
}

// TimeOfDay is a wall-clock time expressed as minutes since midnight.
type TimeOfDay int

const (
	minutesPerHour = 60
	// EndOfDay is the latest representable time of day, 23:59.
	EndOfDay TimeOfDay = 23*minutesPerHour + 59
)

// NewTimeOfDay builds a TimeOfDay from hour and minute without validation.
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*minutesPerHour + minute)
}

// ParseTimeOfDay parses a zero-padded "HH:MM" string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, &ParseError{Input: s, Reason: "expected HH:MM", kind: ErrInvalidTimeOfDay}
	}
	hour, ok := twoDigits(s[0], s[1])
	if !ok {
		return 0, &ParseError{Input: s, Reason: "hour must be two digits", kind: ErrInvalidTimeOfDay}
	}
	minute, ok := twoDigits(s[3], s[4])
	if !ok {
		return 0, &ParseError{Input: s, Reason: "minute must be two digits", kind: ErrInvalidTimeOfDay}
	}
	if hour > 23 {
		return 0, &ParseError{Input: s, Reason: "hour out of range", kind: ErrInvalidTimeOfDay}
	}
	if minute > 59 {
		return 0, &ParseError{Input: s, Reason: "minute out of range", kind: ErrInvalidTimeOfDay}
	}
	return NewTimeOfDay(hour, minute), nil
}

// MustParseTimeOfDay is ParseTimeOfDay for literals known to be valid.
func MustParseTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func twoDigits(hi, lo byte) (int, bool) {
	if hi < '0' || hi > '9' || lo < '0' || lo > '9' {
		return 0, false
	}
	return int(hi-'0')*10 + int(lo-'0'), true
}

// Hour returns the hour component.
func (t TimeOfDay) Hour() int { return int(t) / minutesPerHour }

// Minute returns the minute component.
func (t TimeOfDay) Minute() int { return int(t) % minutesPerHour }

// String renders the zero-padded HH:MM form, which sorts lexically in time order.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// Date is a calendar day without time or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

const dateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, &ParseError{Input: s, Reason: "expected YYYY-MM-DD", kind: ErrInvalidDate}
	}
	return DateOf(t), nil
}

// MustParseDate is ParseDate for literals known to be valid.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// DateOf returns the calendar day of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool { return d == Date{} }

// Equal reports whether d and other name the same day.
func (d Date) Equal(other Date) bool { return d == other }

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}
