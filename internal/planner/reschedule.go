package planner

import (
	"sort"
	"strings"
	"time"

	"study-planner/internal/model"
)

// HorizonDays bounds how far ahead the rescheduler looks for capacity.
const HorizonDays = 180

// overflowNote is appended to tasks the rescheduler could not place
// within the horizon.
const overflowNote = " (overflow, please reschedule)"

// RescheduleOverdue pushes undone past-due tasks forward into future
// capacity. Done tasks and tasks on or after today are kept unchanged.
// Each overdue task is split across days starting from a shared cursor
// at today, respecting rest days, busy time, buffer and minutes already
// committed to undone kept tasks. Minutes that cannot be placed within
// the horizon degrade to a single capacity-exempt overflow task instead
// of being dropped: the sum of emitted minutes always equals the
// original task's minutes.
//
// The returned list is sorted by (day, subject name case-insensitive).
func RescheduleOverdue(tasks []model.Task, st model.Settings, today time.Time, events []model.Event) []model.Task {
	todayDay := model.DayOf(today)

	var overdue, keep []model.Task
	for _, t := range tasks {
		if !t.Done && model.DayOf(t.Day).Before(todayDay) {
			overdue = append(overdue, t)
		} else {
			keep = append(keep, t)
		}
	}

	busy := BusyMinutesByDay(events, todayDay, HorizonDays)
	planned := make(map[time.Time]int)
	for _, t := range keep {
		if !t.Done {
			planned[model.DayOf(t.Day)] += t.Minutes
		}
	}

	// One cursor shared across all overdue tasks, so earlier tasks fill
	// earlier days and later ones continue from where they left off.
	cursor := todayDay
	for _, t := range overdue {
		left := t.Minutes
		attempts := 0
		for left > 0 && attempts < HorizonDays {
			cap := AvailableMinutes(cursor, st, busy, planned)
			if cap <= 0 {
				cursor = cursor.AddDate(0, 0, 1)
				attempts++
				continue
			}

			take := left
			if cap < take {
				take = cap
			}
			moved, err := model.NewTask(t.UserID, t.SubjectID, t.SubjectName, cursor, take, t.Notes)
			if err != nil {
				break
			}
			moved.Generated = t.Generated
			keep = append(keep, moved)
			planned[cursor] += take
			left -= take
			if cap-take <= 0 {
				cursor = cursor.AddDate(0, 0, 1)
			}
			attempts++
		}

		if left > 0 {
			day := cursor
			if day.Before(todayDay) {
				day = todayDay
			}
			overflow, err := model.NewTask(t.UserID, t.SubjectID, t.SubjectName, day, left, t.Notes+overflowNote)
			if err == nil {
				overflow.Overflow = true
				keep = append(keep, overflow)
			}
		}
	}

	sort.SliceStable(keep, func(i, j int) bool {
		di, dj := model.DayOf(keep[i].Day), model.DayOf(keep[j].Day)
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return strings.ToLower(keep[i].SubjectName) < strings.ToLower(keep[j].SubjectName)
	})
	return keep
}
