package planner

import (
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"study-planner/internal/model"
)

func TestRescheduleOverdue_MovesUndonePastTasksForward(t *testing.T) {
	today := day(2026, time.August, 25)
	tasks := []model.Task{task("s1", "Math", today.AddDate(0, 0, -2), 40, false)}
	st := testSettings() // 60 min/day

	out := RescheduleOverdue(tasks, st, today, nil)

	require.Len(t, out, 1)
	assert.True(t, out[0].Day.Equal(today))
	assert.Equal(t, 40, out[0].Minutes)
	assert.False(t, out[0].Done)
	assert.False(t, out[0].Overflow)
}

func TestRescheduleOverdue_KeepsDoneAndFutureTasks(t *testing.T) {
	today := day(2026, time.August, 25)
	donePast := task("s1", "Math", today.AddDate(0, 0, -5), 30, true)
	future := task("s2", "Physics", today.AddDate(0, 0, 2), 45, false)
	tasks := []model.Task{donePast, future}

	out := RescheduleOverdue(tasks, testSettings(), today, nil)

	require.Len(t, out, 2)
	ids := []string{out[0].ID, out[1].ID}
	assert.Contains(t, ids, donePast.ID)
	assert.Contains(t, ids, future.ID)
}

func TestRescheduleOverdue_SplitsAcrossDays(t *testing.T) {
	today := day(2026, time.August, 25)
	tasks := []model.Task{task("s1", "Math", today.AddDate(0, 0, -1), 100, false)}
	st := testSettings()
	st.MinutesPerDay = 30

	out := RescheduleOverdue(tasks, st, today, nil)

	require.Len(t, out, 4) // 30+30+30+10
	total := 0
	for i, moved := range out {
		assert.True(t, moved.Day.Equal(today.AddDate(0, 0, i)))
		total += moved.Minutes
	}
	assert.Equal(t, 100, total, "minutes are conserved exactly")
}

func TestRescheduleOverdue_SkipsRestDayToday(t *testing.T) {
	monday := day(2026, time.August, 24)
	tasks := []model.Task{task("s1", "Math", monday.AddDate(0, 0, -3), 40, false)}
	st := testSettings()
	st.SetRestDays([]int{0}) // Monday rest

	out := RescheduleOverdue(tasks, st, monday, nil)

	require.Len(t, out, 1)
	assert.True(t, out[0].Day.Equal(monday.AddDate(0, 0, 1)), "placed tomorrow, never on the rest day")
	assert.Equal(t, 40, out[0].Minutes)
}

func TestRescheduleOverdue_RespectsExistingCommitments(t *testing.T) {
	today := day(2026, time.August, 25)
	// Today already carries 50 undone minutes, leaving 10 of 60.
	kept := task("s2", "Physics", today, 50, false)
	overdue := task("s1", "Math", today.AddDate(0, 0, -1), 30, false)
	tasks := []model.Task{kept, overdue}

	out := RescheduleOverdue(tasks, testSettings(), today, nil)

	require.Len(t, out, 3)
	var moved []model.Task
	for _, x := range out {
		if x.SubjectID == "s1" {
			moved = append(moved, x)
		}
	}
	require.Len(t, moved, 2)
	sort.Slice(moved, func(i, j int) bool { return moved[i].Day.Before(moved[j].Day) })
	assert.True(t, moved[0].Day.Equal(today))
	assert.Equal(t, 10, moved[0].Minutes)
	assert.True(t, moved[1].Day.Equal(today.AddDate(0, 0, 1)))
	assert.Equal(t, 20, moved[1].Minutes)
}

func TestRescheduleOverdue_OverflowWhenNoCapacity(t *testing.T) {
	today := day(2026, time.August, 24)
	tasks := []model.Task{task("s1", "Math", today.AddDate(0, 0, -1), 75, false)}
	st := testSettings()
	st.SetRestDays([]int{0, 1, 2, 3, 4, 5, 6}) // every day rests

	out := RescheduleOverdue(tasks, st, today, nil)

	require.Len(t, out, 1)
	overflow := out[0]
	assert.True(t, overflow.Overflow)
	assert.Equal(t, 75, overflow.Minutes)
	assert.False(t, overflow.Day.Before(today))
	assert.Contains(t, overflow.Notes, "overflow, please reschedule")
}

func TestRescheduleOverdue_PartialOverflowConservesMinutes(t *testing.T) {
	today := day(2026, time.August, 25)
	tasks := []model.Task{task("s1", "Math", today.AddDate(0, 0, -1), 10*HorizonDays+35, false)}
	st := testSettings()
	st.MinutesPerDay = 25 // 10 usable after buffer
	st.DailyBufferMinutes = 15

	out := RescheduleOverdue(tasks, st, today, nil)

	total := 0
	overflows := 0
	for _, x := range out {
		total += x.Minutes
		if x.Overflow {
			overflows++
		}
	}
	assert.Equal(t, 10*HorizonDays+35, total)
	assert.Equal(t, 1, overflows)
}

func TestRescheduleOverdue_SharedCursorAcrossTasks(t *testing.T) {
	today := day(2026, time.August, 25)
	tasks := []model.Task{
		task("s1", "Math", today.AddDate(0, 0, -2), 60, false),
		task("s2", "Physics", today.AddDate(0, 0, -1), 60, false),
	}

	out := RescheduleOverdue(tasks, testSettings(), today, nil)

	require.Len(t, out, 2)
	byID := map[string]model.Task{}
	for _, x := range out {
		byID[x.SubjectID] = x
	}
	assert.True(t, byID["s1"].Day.Equal(today))
	assert.True(t, byID["s2"].Day.Equal(today.AddDate(0, 0, 1)), "second task continues after the filled day")
}

func TestRescheduleOverdue_SortsByDayThenName(t *testing.T) {
	today := day(2026, time.August, 25)
	tasks := []model.Task{
		task("s2", "physics", today.AddDate(0, 0, 1), 20, false),
		task("s1", "Math", today.AddDate(0, 0, 1), 20, false),
		task("s3", "Art", today, 20, false),
	}

	out := RescheduleOverdue(tasks, testSettings(), today, nil)

	require.Len(t, out, 3)
	assert.Equal(t, "Art", out[0].SubjectName)
	assert.Equal(t, "Math", out[1].SubjectName)
	assert.Equal(t, "physics", out[2].SubjectName)
	for i := 1; i < len(out); i++ {
		if out[i-1].Day.Equal(out[i].Day) {
			assert.LessOrEqual(t, strings.ToLower(out[i-1].SubjectName), strings.ToLower(out[i].SubjectName))
		} else {
			assert.True(t, out[i-1].Day.Before(out[i].Day))
		}
	}
}

func TestRescheduleOverdue_CarriesNotes(t *testing.T) {
	today := day(2026, time.August, 25)
	overdue := task("s1", "Math", today.AddDate(0, 0, -1), 30, false)
	overdue.Notes = "chapter 4"

	out := RescheduleOverdue([]model.Task{overdue}, testSettings(), today, nil)

	require.Len(t, out, 1)
	assert.Equal(t, "chapter 4", out[0].Notes)
}
