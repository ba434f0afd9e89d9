package planner

import (
	"time"

	"study-planner/internal/model"
)

// DayCapacity is the base study capacity of a day: zero on rest days,
// otherwise minutes-per-day minus busy time and the daily buffer,
// floored at zero.
func DayCapacity(day time.Time, st model.Settings, busyMinutes int) int {
	if st.IsRestDay(day) {
		return 0
	}
	cap := st.MinutesPerDay - busyMinutes - st.DailyBufferMinutes
	if cap < 0 {
		cap = 0
	}
	return cap
}

// AvailableMinutes is DayCapacity further reduced by minutes already
// planned on the day. Planned covers both persisted undone tasks and
// allocations made earlier in the same run, so one pass cannot overbook
// a day via its own output.
func AvailableMinutes(day time.Time, st model.Settings, busy, planned map[time.Time]int) int {
	key := model.DayOf(day)
	avail := DayCapacity(key, st, busy[key]) - planned[key]
	if avail < 0 {
		avail = 0
	}
	return avail
}
