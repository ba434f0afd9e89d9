package planner

import (
	"time"

	"study-planner/internal/model"
)

// day builds a UTC midnight date. 2026-08-24 is a Monday; several tests
// rely on that to exercise rest days.
func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func at(y int, m time.Month, d, hour, min int) time.Time {
	return time.Date(y, m, d, hour, min, 0, 0, time.UTC)
}

// testSettings is a plain 60-minute day: no rest days, no buffer,
// 25-minute chunks.
func testSettings() model.Settings {
	s := model.DefaultSettings(1)
	s.MinutesPerDay = 60
	s.DailyBufferMinutes = 0
	s.ChunkMinutes = 25
	return s
}

func subject(id, name string, deadline time.Time, difficulty int, estHours float64) model.Subject {
	return model.Subject{
		ID:         id,
		UserID:     1,
		Name:       name,
		Deadline:   deadline,
		Difficulty: difficulty,
		EstHours:   estHours,
	}
}

func task(subjectID, name string, d time.Time, minutes int, done bool) model.Task {
	return model.Task{
		ID:          "task-" + subjectID + d.Format("20060102"),
		UserID:      1,
		SubjectID:   subjectID,
		SubjectName: name,
		Day:         d,
		Minutes:     minutes,
		Done:        done,
	}
}

func event(title string, start, end time.Time) model.Event {
	return model.Event{ID: "ev-" + title, UserID: 1, Title: title, Start: start, End: end}
}
