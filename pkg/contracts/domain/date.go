package domain

import (
	"fmt"
	"time"
)

// DateLayout is the ISO calendar date format used for every date cell
const DateLayout = "2006-01-02"

// Date is a calendar date without time of day or zone, held in ISO form.
// ISO strings order lexically the same way the dates order in time.
type Date string

// DateOf returns the calendar date of t in t's own location
func DateOf(t time.Time) Date {
	return Date(t.Format(DateLayout))
}

// ParseDate parses an ISO calendar date
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return "", fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// Time returns midnight UTC of the date
func (d Date) Time() time.Time {
	t, _ := time.Parse(DateLayout, string(d))
	return t
}

// String returns the ISO form
func (d Date) String() string { return string(d) }

// WeekStart returns the first day of the calendar week containing d,
// where weeks begin on the given weekday.
func (d Date) WeekStart(first time.Weekday) Date {
	t := d.Time()
	offset := (int(t.Weekday()) - int(first) + 7) % 7
	return DateOf(t.AddDate(0, 0, -offset))
}
