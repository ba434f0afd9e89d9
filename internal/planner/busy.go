package planner

import (
	"time"

	"study-planner/internal/model"
)

// BusyMinutesByDay buckets events into per-day busy minutes over a
// window of numDays starting at start. Every day in the window gets an
// entry (0 when free). Overlap is computed against each day's
// [00:00, 24:00) span in the event's own wall clock; minutes are floor
// divided from overlap seconds. Non-positive-duration events are
// skipped.
func BusyMinutesByDay(events []model.Event, start time.Time, numDays int) map[time.Time]int {
	busy := make(map[time.Time]int, numDays)
	startDay := model.DayOf(start)
	for i := 0; i < numDays; i++ {
		busy[startDay.AddDate(0, 0, i)] = 0
	}

	for _, ev := range events {
		if !ev.End.After(ev.Start) {
			continue
		}
		loc := ev.Start.Location()
		for i := 0; i < numDays; i++ {
			key := startDay.AddDate(0, 0, i)
			dayStart := time.Date(key.Year(), key.Month(), key.Day(), 0, 0, 0, 0, loc)
			dayEnd := dayStart.AddDate(0, 0, 1)

			overlapStart := ev.Start
			if dayStart.After(overlapStart) {
				overlapStart = dayStart
			}
			overlapEnd := ev.End
			if dayEnd.Before(overlapEnd) {
				overlapEnd = dayEnd
			}
			if overlapEnd.After(overlapStart) {
				busy[key] += int(overlapEnd.Sub(overlapStart).Seconds()) / 60
			}
		}
	}
	return busy
}
