// Package timeutil provides calendar-day arithmetic for streak and
// statistics calculations. Every user studies in their own timezone, so all
// day-level operations take an explicit *time.Location; comparing by
// calendar date (never by elapsed hours) keeps the math correct across DST
// boundaries.
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"time"
)

// DefaultLocation is the reference timezone used when a user has not
// configured one. Daily rollups are bucketed in this zone by default.
var DefaultLocation = time.UTC

// LoadLocation resolves an IANA timezone name, falling back to
// DefaultLocation for an empty name.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return DefaultLocation, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("timeutil: unknown timezone %q: %w", name, err)
	}
	return loc, nil
}

// StartOfDay returns midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// EndOfDay returns the last instant of t's calendar day in loc.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 23, 59, 59, 999999999, loc)
}

// DateOnly returns t's calendar date in loc with zeroed time components.
// Equivalent to StartOfDay; named separately to make intent explicit when
// the value is used as a map key or bucket label.
func DateOnly(t time.Time, loc *time.Location) time.Time {
	return StartOfDay(t, loc)
}

// IsSameDay checks if two times fall on the same calendar day in loc.
func IsSameDay(t1, t2 time.Time, loc *time.Location) bool {
	a, b := t1.In(loc), t2.In(loc)
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// IsConsecutiveDay checks if t2 is the calendar day immediately after t1.
// Comparison is by date, so a 23- or 25-hour DST day still counts as one day.
func IsConsecutiveDay(t1, t2 time.Time, loc *time.Location) bool {
	next := t1.In(loc).AddDate(0, 0, 1)
	return IsSameDay(next, t2, loc)
}

// DaysBetween returns the number of calendar days from t1 to t2 in loc.
// Negative when t2 is before t1. AddDate is used instead of duration
// division so DST transitions cannot skew the count.
func DaysBetween(t1, t2 time.Time, loc *time.Location) int {
	a := StartOfDay(t1, loc)
	b := StartOfDay(t2, loc)

	sign := 1
	if b.Before(a) {
		a, b = b, a
		sign = -1
	}

	days := 0
	for a.Before(b) {
		a = a.AddDate(0, 0, 1)
		days++
	}
	return days * sign
}

// IsToday checks if t falls on the same calendar day as now in loc.
func IsToday(t, now time.Time, loc *time.Location) bool {
	return IsSameDay(t, now, loc)
}

// IsYesterday checks if t falls on the calendar day before now in loc.
func IsYesterday(t, now time.Time, loc *time.Location) bool {
	return IsSameDay(t, now.In(loc).AddDate(0, 0, -1), loc)
}

// MinutesBetween returns the wall-clock distance from start to end rounded
// to the nearest whole minute. This is the duration rule for completed
// sessions: round((end-start)/1m).
func MinutesBetween(start, end time.Time) int {
	return int(end.Sub(start).Round(time.Minute) / time.Minute)
}

// Common date/time formats.
const (
	// FormatDate is the standard date format (YYYY-MM-DD).
	FormatDate = "2006-01-02"
	// FormatDateTime is the standard datetime format.
	FormatDateTime = "2006-01-02 15:04"
)

// FormatDateStr formats a time as a date string (YYYY-MM-DD) in loc.
func FormatDateStr(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(FormatDate)
}

// ParseDate parses a date string (YYYY-MM-DD) in loc.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(FormatDate, value, loc)
}
