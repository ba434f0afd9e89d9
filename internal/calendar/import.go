// Package calendar converts between the planner's entities and the
// iCalendar wire format. Import turns an external ICS stream into
// events; export packs a task list into the user's preferred daily time
// window.
package calendar

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	ics "github.com/arran4/golang-ical"

	"study-planner/internal/model"
)

// ImportICS parses an ICS byte stream into events for the given user.
// Entries without usable start/end times and entries with end <= start
// are skipped; all-day entries come back midnight-anchored. The result
// is sorted by start time.
func ImportICS(userID uint, data []byte) ([]model.Event, error) {
	cal, err := ics.ParseCalendar(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse ics: %w", err)
	}

	var out []model.Event
	for _, component := range cal.Events() {
		start, ok := eventTime(component.GetStartAt, component.GetAllDayStartAt)
		if !ok {
			continue
		}
		end, ok := eventTime(component.GetEndAt, component.GetAllDayEndAt)
		if !ok {
			continue
		}
		if !end.After(start) {
			continue
		}

		title := ""
		if prop := component.GetProperty(ics.ComponentPropertySummary); prop != nil {
			title = prop.Value
		}

		ev, err := model.NewEvent(userID, title, start, end)
		if err != nil {
			continue
		}
		out = append(out, ev)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// eventTime resolves a timed value, falling back to the all-day variant
// (which yields a midnight-anchored timestamp).
func eventTime(timed, allDay func() (time.Time, error)) (time.Time, bool) {
	if t, err := timed(); err == nil {
		return t, true
	}
	if t, err := allDay(); err == nil {
		return t, true
	}
	return time.Time{}, false
}
