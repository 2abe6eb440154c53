// Package temporal holds the calendar-day arithmetic shared by every other
// package. Dates are civil (year, month, day) values; whenever one has to be
// turned into an instant it is anchored at noon so that rendering it in a
// neighbouring timezone never moves it to another day.
package temporal

import (
	"errors"
	"fmt"
	"time"
)

// NeutralHour is the time-of-day used when a Date is materialized as a
// time.Time.
const NeutralHour = 12

const (
	dateLayout  = "2006-01-02"
	monthLayout = "2006-01"
)

var (
	ErrMalformedDate  = errors.New("temporal: malformed date")
	ErrMalformedMonth = errors.New("temporal: malformed month")
)

// Clock supplies the current instant. Tests use FixedClock.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// ZoneClock reports the wall clock in Loc, so "today" follows the
// configured zone rather than the host's.
type ZoneClock struct {
	Loc *time.Location
}

func (c ZoneClock) Now() time.Time {
	if c.Loc == nil {
		return time.Now()
	}
	return time.Now().In(c.Loc)
}

// FixedClock always reports the same instant.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }

// DaysInMonth returns the number of days in the given month. Day 0 of the
// following month is the last day of this one; out-of-range months are
// normalized by time.Date.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, NeutralHour, 0, 0, 0, time.UTC).Day()
}

// FirstWeekday returns the weekday of the 1st of the month, 0=Sunday.
func FirstWeekday(year int, month time.Month) int {
	return int(time.Date(year, month, 1, NeutralHour, 0, 0, 0, time.UTC).Weekday())
}

// IsSameDay compares the calendar components of a and b in their own
// locations, ignoring time-of-day.
func IsSameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// IsToday reports whether (year, month, day) is the clock's local date.
func IsToday(clock Clock, year int, month time.Month, day int) bool {
	return Today(clock) == NewDate(year, month, day)
}

// Today returns the clock's current local calendar date.
func Today(clock Clock) Date {
	if clock == nil {
		clock = RealClock{}
	}
	return DateOf(clock.Now())
}

// Date is a calendar day with no time-of-day or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate builds a Date without normalizing; use Valid to check it.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// DateOf extracts the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses YYYY-MM-DD. A trailing time component (as produced by
// RFC 3339 encoders) is rejected rather than converted, since converting an
// instant is what shifts days across zones.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrMalformedDate, s)
	}
	return DateOf(t), nil
}

// Valid reports whether d names a real calendar day.
func (d Date) Valid() bool {
	if d.Year < 1 || d.Month < time.January || d.Month > time.December {
		return false
	}
	return d.Day >= 1 && d.Day <= DaysInMonth(d.Year, d.Month)
}

func (d Date) IsZero() bool { return d == Date{} }

// String formats d as YYYY-MM-DD from its components.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// In materializes d at the neutral hour in loc.
func (d Date) In(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(d.Year, d.Month, d.Day, NeutralHour, 0, 0, 0, loc)
}

func (d Date) YearMonth() YearMonth {
	return YearMonth{Year: d.Year, Month: d.Month}
}

// Ordinal is the number of days since 1970-01-01. It is only meaningful for
// valid dates.
func (d Date) Ordinal() int {
	return int(time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}

// AddDays returns the date n days after d.
func (d Date) AddDays(n int) Date {
	return DateOf(time.Date(d.Year, d.Month, d.Day+n, NeutralHour, 0, 0, 0, time.UTC))
}

// Compare returns -1, 0 or +1.
func (d Date) Compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return cmpInt(d.Year, o.Year)
	case d.Month != o.Month:
		return cmpInt(int(d.Month), int(o.Month))
	default:
		return cmpInt(d.Day, o.Day)
	}
}

func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// YearMonth identifies a displayed month.
type YearMonth struct {
	Year  int
	Month time.Month
}

// NormalizeYearMonth folds an out-of-range month into the right year, so
// (2025, 13) is January 2026 and (2025, 0) is December 2024.
func NormalizeYearMonth(year, month int) YearMonth {
	t := time.Date(year, time.Month(month), 1, NeutralHour, 0, 0, 0, time.UTC)
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

// Normalize folds an out-of-range Month into the right year.
func (ym YearMonth) Normalize() YearMonth {
	return NormalizeYearMonth(ym.Year, int(ym.Month))
}

// ParseYearMonth parses YYYY-MM.
func ParseYearMonth(s string) (YearMonth, error) {
	t, err := time.Parse(monthLayout, s)
	if err != nil {
		return YearMonth{}, fmt.Errorf("%w: %q", ErrMalformedMonth, s)
	}
	return YearMonth{Year: t.Year(), Month: t.Month()}, nil
}

func (ym YearMonth) Shift(delta int) YearMonth {
	return NormalizeYearMonth(ym.Year, int(ym.Month)+delta)
}

func (ym YearMonth) Days() int { return DaysInMonth(ym.Year, ym.Month) }

func (ym YearMonth) FirstWeekday() int { return FirstWeekday(ym.Year, ym.Month) }

// Date returns the given day of the month. It does not validate day.
func (ym YearMonth) Date(day int) Date {
	return Date{Year: ym.Year, Month: ym.Month, Day: day}
}

func (ym YearMonth) ValidDay(day int) bool {
	return day >= 1 && day <= ym.Days()
}

func (ym YearMonth) Contains(d Date) bool {
	return d.Year == ym.Year && d.Month == ym.Month
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

func (ym YearMonth) MarshalText() ([]byte, error) {
	return []byte(ym.String()), nil
}

func (ym *YearMonth) UnmarshalText(b []byte) error {
	parsed, err := ParseYearMonth(string(b))
	if err != nil {
		return err
	}
	*ym = parsed
	return nil
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
