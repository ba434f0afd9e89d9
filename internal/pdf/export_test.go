package pdf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"study-planner/internal/model"
	"study-planner/internal/planner"
)

func TestWeekPlan_RendersDocument(t *testing.T) {
	weekStart := time.Date(2026, time.August, 24, 0, 0, 0, 0, time.UTC)
	tasks := []model.Task{
		{ID: "t1", UserID: 1, SubjectID: "s1", SubjectName: "Math", Day: weekStart, Minutes: 25, Notes: "ch. 3"},
		{ID: "t2", UserID: 1, SubjectID: "s1", SubjectName: "Math", Day: weekStart.AddDate(0, 0, 1), Minutes: 45, Done: true},
	}
	risks := []planner.RiskItem{
		{
			SubjectID:        "s1",
			Subject:          "Math",
			Deadline:         weekStart.AddDate(0, 0, 10),
			DaysLeft:         10,
			RemainingMinutes: 300,
			Difficulty:       4,
			Score:            120,
			Level:            planner.RiskLow,
		},
	}

	data, err := WeekPlan(tasks, model.DefaultSettings(1), weekStart, risks)

	require.NoError(t, err)
	require.NotEmpty(t, data)
	assert.Equal(t, "%PDF", string(data[:4]))
}

func TestWeekPlan_EmptyPlan(t *testing.T) {
	weekStart := time.Date(2026, time.August, 24, 0, 0, 0, 0, time.UTC)

	data, err := WeekPlan(nil, model.DefaultSettings(1), weekStart, nil)

	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data[:4]))
}
