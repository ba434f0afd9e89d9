package calendar

import (
	"fmt"
	"sort"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"study-planner/internal/model"
	"study-planner/internal/planner"
)

const (
	calendarProdID = "-//Study Planner//Local//"
	calendarName   = "Study Plan"
)

// dayWindow tracks the remaining export capacity of one day.
type dayWindow struct {
	cursor    time.Time
	end       time.Time
	available int
}

// ExportICS renders tasks as calendar entries packed into each day's
// preferred time window. Availability per day is the smaller of the
// window length and the capacity model's output, so exports respect the
// same rest-day/busy/buffer rules as planning. Task minutes that do not
// fit a day spill to later days inside the export range; minutes that
// fit nowhere produce a warning per task plus one all-day "Unscheduled
// Study" marker entry.
func ExportICS(tasks []model.Task, weekStart time.Time, st model.Settings, events []model.Event) ([]byte, []string) {
	cal := ics.NewCalendar()
	cal.SetProductId(calendarProdID)
	cal.SetVersion("2.0")
	cal.SetXWRCalName(calendarName)

	var warnings []string
	if len(tasks) == 0 {
		return []byte(cal.Serialize()), warnings
	}

	startHour, endHour := st.ExportWindow()

	startDay := model.DayOf(weekStart)
	endDay := startDay.AddDate(0, 0, 6)
	for _, t := range tasks {
		d := model.DayOf(t.Day)
		if d.Before(startDay) {
			startDay = d
		}
		if d.After(endDay) {
			endDay = d
		}
	}
	windowDays := int(endDay.Sub(startDay).Hours()/24) + 1

	busy := planner.BusyMinutesByDay(events, startDay, windowDays)
	days := make(map[time.Time]*dayWindow, windowDays)
	for i := 0; i < windowDays; i++ {
		d := startDay.AddDate(0, 0, i)
		winStart := time.Date(d.Year(), d.Month(), d.Day(), startHour, 0, 0, 0, d.Location())
		winEnd := time.Date(d.Year(), d.Month(), d.Day(), endHour, 0, 0, 0, d.Location())
		if !winEnd.After(winStart) {
			winEnd = winStart.Add(time.Hour)
		}
		windowMinutes := int(winEnd.Sub(winStart).Minutes())

		avail := planner.DayCapacity(d, st, busy[d])
		if windowMinutes < avail {
			avail = windowMinutes
		}
		days[d] = &dayWindow{cursor: winStart, end: winEnd, available: avail}
	}

	sorted := make([]model.Task, len(tasks))
	copy(sorted, tasks)
	sort.SliceStable(sorted, func(i, j int) bool {
		di, dj := model.DayOf(sorted[i].Day), model.DayOf(sorted[j].Day)
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return strings.ToLower(sorted[i].SubjectName) < strings.ToLower(sorted[j].SubjectName)
	})

	pendingUnscheduled := 0
	for _, task := range sorted {
		left := task.Minutes
		dayPtr := model.DayOf(task.Day)
		for left > 0 && !dayPtr.After(endDay) {
			info := days[dayPtr]
			if info == nil || info.available <= 0 {
				dayPtr = dayPtr.AddDate(0, 0, 1)
				continue
			}

			potential := left
			if info.available < potential {
				potential = info.available
			}
			startTime := info.cursor
			endTime := startTime.Add(time.Duration(potential) * time.Minute)
			if endTime.After(info.end) {
				endTime = info.end
			}
			actual := int(endTime.Sub(startTime).Minutes())
			if actual <= 0 {
				dayPtr = dayPtr.AddDate(0, 0, 1)
				continue
			}

			entry := cal.AddEvent(fmt.Sprintf("%s-%s@study-planner", task.ID, startTime.Format("20060102T1504")))
			entry.SetSummary("Study: " + task.SubjectName)
			entry.SetStartAt(startTime)
			entry.SetEndAt(endTime)
			desc := fmt.Sprintf("%d minutes planned", task.Minutes)
			if !dayPtr.Equal(model.DayOf(task.Day)) {
				desc += fmt.Sprintf(" (moved from %s)", model.DayOf(task.Day).Format("2006-01-02"))
			}
			entry.SetDescription(desc + ".")

			info.cursor = endTime
			info.available -= actual
			left -= actual
			if !info.cursor.Before(info.end) || info.available <= 0 {
				dayPtr = dayPtr.AddDate(0, 0, 1)
			}
		}

		if left > 0 {
			pendingUnscheduled += left
			warnings = append(warnings, fmt.Sprintf(
				"%s had %d minutes that could not be placed within the planning window.",
				task.SubjectName, left))
		}
	}

	if pendingUnscheduled > 0 {
		marker := cal.AddEvent(fmt.Sprintf("unscheduled-%s@study-planner", uuid.NewString()))
		marker.SetSummary(fmt.Sprintf("Unscheduled Study (%d minutes)", pendingUnscheduled))
		marker.SetAllDayStartAt(endDay)
		marker.SetAllDayEndAt(endDay.AddDate(0, 0, 1))
		marker.SetDescription("No capacity remained in this window; please reschedule.")
	}

	return []byte(cal.Serialize()), warnings
}
