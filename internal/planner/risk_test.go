package planner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"study-planner/internal/model"
)

func TestBuildRiskList_ExcludesFullyPlannedSubjects(t *testing.T) {
	today := day(2026, time.August, 25)
	subjects := []model.Subject{
		subject("s1", "Math", today.AddDate(0, 0, 3), 4, 1), // 60 min target
	}
	tasks := []model.Task{task("s1", "Math", today, 60, false)}

	risks := BuildRiskList(subjects, tasks, today, 0)

	assert.Empty(t, risks)
}

func TestBuildRiskList_Levels(t *testing.T) {
	today := day(2026, time.August, 25)
	deadline := today.AddDate(0, 0, 1) // one day left
	subjects := []model.Subject{
		subject("high", "High", deadline, 1, 10),  // 600 * 1/1 * 1 = 600
		subject("med", "Med", deadline, 1, 5),     // 300
		subject("low", "Low", deadline, 1, 5.0/3), // 100
	}

	risks := BuildRiskList(subjects, nil, today, 0)

	require.Len(t, risks, 3)
	byID := map[string]RiskItem{}
	for _, r := range risks {
		byID[r.SubjectID] = r
	}
	assert.Equal(t, RiskHigh, byID["high"].Level)
	assert.Equal(t, RiskMed, byID["med"].Level)
	assert.Equal(t, RiskLow, byID["low"].Level)
}

func TestBuildRiskList_SortedDescendingAndTruncated(t *testing.T) {
	today := day(2026, time.August, 25)
	deadline := today.AddDate(0, 0, 2)
	var subjects []model.Subject
	for i := 1; i <= 7; i++ {
		subjects = append(subjects, subject(
			string(rune('a'+i)), "Subj", deadline, (i%5)+1, float64(i)))
	}

	risks := BuildRiskList(subjects, nil, today, 0)

	require.Len(t, risks, DefaultRiskLimit)
	for i := 1; i < len(risks); i++ {
		assert.GreaterOrEqual(t, risks[i-1].Score, risks[i].Score)
	}
}

func TestBuildRiskList_PastDeadlineCountsAsOneDay(t *testing.T) {
	today := day(2026, time.August, 25)
	subjects := []model.Subject{
		subject("s1", "Late", today.AddDate(0, 0, -4), 2, 1),
	}

	risks := BuildRiskList(subjects, nil, today, 0)

	require.Len(t, risks, 1)
	assert.Equal(t, 1, risks[0].DaysLeft)
	assert.Equal(t, 120.0, risks[0].Score) // 60 * 1/1 * 2
}

func TestBuildRiskList_SuggestedMinutesAndHours(t *testing.T) {
	today := day(2026, time.August, 25)
	subjects := []model.Subject{
		subject("s1", "Math", today.AddDate(0, 0, 3), 3, 5), // 300 min over 3 days
	}
	tasks := []model.Task{task("s1", "Math", today, 200, false)}

	risks := BuildRiskList(subjects, tasks, today, 0)

	require.Len(t, risks, 1)
	assert.Equal(t, 100, risks[0].RemainingMinutes)
	assert.InDelta(t, 1.7, risks[0].RemainingHours, 0.001)
	assert.Equal(t, 33, risks[0].SuggestedTodayMinutes)
}

func TestBuildRiskList_SuggestedMinutesRoundHalfUp(t *testing.T) {
	today := day(2026, time.August, 25)
	subjects := []model.Subject{
		subject("s1", "Math", today.AddDate(0, 0, 2), 3, 1.5), // 90 min target
	}
	tasks := []model.Task{task("s1", "Math", today, 77, false)}

	risks := BuildRiskList(subjects, tasks, today, 0)

	require.Len(t, risks, 1)
	assert.Equal(t, 13, risks[0].RemainingMinutes)
	assert.Equal(t, 7, risks[0].SuggestedTodayMinutes) // 13/2 = 6.5
}

func TestBuildRiskList_DoneMinutesStillCountAsPlanned(t *testing.T) {
	today := day(2026, time.August, 25)
	subjects := []model.Subject{
		subject("s1", "Math", today.AddDate(0, 0, 2), 3, 1),
	}
	tasks := []model.Task{task("s1", "Math", today.AddDate(0, 0, -1), 60, true)}

	risks := BuildRiskList(subjects, tasks, today, 0)

	assert.Empty(t, risks, "planned includes completed tasks")
}

func TestBuildRiskList_CustomLimit(t *testing.T) {
	today := day(2026, time.August, 25)
	deadline := today.AddDate(0, 0, 2)
	subjects := []model.Subject{
		subject("s1", "A", deadline, 3, 2),
		subject("s2", "B", deadline, 4, 2),
		subject("s3", "C", deadline, 5, 2),
	}

	risks := BuildRiskList(subjects, nil, today, 2)

	require.Len(t, risks, 2)
	assert.Equal(t, "s3", risks[0].SubjectID)
	assert.Equal(t, "s2", risks[1].SubjectID)
}
