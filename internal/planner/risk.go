package planner

import (
	"math"
	"sort"
	"time"

	"study-planner/internal/model"
)

// RiskLevel classifies a risk score for user-facing triage.
type RiskLevel string

const (
	RiskHigh RiskLevel = "HIGH"
	RiskMed  RiskLevel = "MED"
	RiskLow  RiskLevel = "LOW"
)

// Risk score thresholds.
const (
	riskHighThreshold = 500
	riskMedThreshold  = 200
)

// DefaultRiskLimit is how many entries a risk list carries unless the
// caller asks otherwise.
const DefaultRiskLimit = 5

// RiskItem is one row of the triage list. Score is remaining work
// weighted by urgency and difficulty; it is independent of the
// allocation priority used by the generator.
type RiskItem struct {
	SubjectID             string
	Subject               string
	Deadline              time.Time
	DaysLeft              int
	RemainingMinutes      int
	RemainingHours        float64
	SuggestedTodayMinutes int
	Difficulty            int
	Score                 float64
	Level                 RiskLevel
}

// BuildRiskList scores subjects by remaining workload against their
// deadlines. Fully planned subjects (remaining <= 0) are excluded. The
// result is sorted by score descending and truncated to limit
// (DefaultRiskLimit when limit is not positive).
func BuildRiskList(subjects []model.Subject, tasks []model.Task, today time.Time, limit int) []RiskItem {
	if limit <= 0 {
		limit = DefaultRiskLimit
	}

	plannedMinutes := make(map[string]int)
	for _, t := range tasks {
		plannedMinutes[t.SubjectID] += t.Minutes
	}

	var risks []RiskItem
	for _, s := range subjects {
		remaining := s.TargetMinutes() - plannedMinutes[s.ID]
		if remaining < 0 {
			remaining = 0
		}
		dl := daysLeft(today, s.Deadline)
		score := float64(remaining) * (1.0 / float64(dl)) * float64(s.Difficulty)
		if score <= 0 {
			continue
		}

		level := RiskLow
		switch {
		case score >= riskHighThreshold:
			level = RiskHigh
		case score >= riskMedThreshold:
			level = RiskMed
		}

		risks = append(risks, RiskItem{
			SubjectID:             s.ID,
			Subject:               s.Name,
			Deadline:              s.Deadline,
			DaysLeft:              dl,
			RemainingMinutes:      remaining,
			RemainingHours:        math.Round(float64(remaining)/60.0*10) / 10,
			// rounds half up: 6.5 -> 7
			SuggestedTodayMinutes: int(float64(remaining)/float64(dl) + 0.5),
			Difficulty:            s.Difficulty,
			Score:                 score,
			Level:                 level,
		})
	}

	sort.SliceStable(risks, func(i, j int) bool { return risks[i].Score > risks[j].Score })
	if len(risks) > limit {
		risks = risks[:limit]
	}
	return risks
}
