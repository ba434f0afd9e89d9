// Package planner is the pure planning core: busy-time aggregation, the
// day capacity model, priority/risk scoring, the greedy week plan
// generator and the overdue rescheduler. Everything here is synchronous,
// side-effect-free and deterministic given its inputs; persistence and
// transport live in the surrounding services.
package planner

import (
	"time"

	"study-planner/internal/model"
)

// daysLeft is the urgency horizon for a deadline: at least 1, so
// deadlines today or in the past count as one day of urgency and never
// divide by zero.
func daysLeft(today, deadline time.Time) int {
	d := int(model.DayOf(deadline).Sub(model.DayOf(today)).Hours() / 24)
	if d < 1 {
		return 1
	}
	return d
}

// priority orders subjects for allocation: higher means allocate first.
// It depends only on difficulty and deadline, not on remaining work.
func priority(today time.Time, s model.Subject) float64 {
	return float64(s.Difficulty) * 10.0 / float64(daysLeft(today, s.Deadline))
}
