package model

import "time"

// DayOf normalizes a timestamp to its calendar day: midnight UTC with
// the original year/month/day. All per-day maps and Task.Day values use
// this form so days compare with ==.
func DayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WeekdayIndex maps a day to the 0=Monday..6=Sunday convention used by
// Settings.RestDays.
func WeekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
