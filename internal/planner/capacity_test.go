package planner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"study-planner/internal/model"
)

func TestDayCapacity_RestDayIsZero(t *testing.T) {
	st := testSettings()
	st.SetRestDays([]int{0}) // Monday

	monday := day(2026, time.August, 24)
	assert.Zero(t, DayCapacity(monday, st, 0))
	assert.Zero(t, DayCapacity(monday, st, 500), "busy time does not matter on rest days")
}

func TestDayCapacity_SubtractsBusyAndBuffer(t *testing.T) {
	st := testSettings()
	st.MinutesPerDay = 120
	st.DailyBufferMinutes = 20

	tuesday := day(2026, time.August, 25)
	assert.Equal(t, 70, DayCapacity(tuesday, st, 30))
}

func TestDayCapacity_NeverNegative(t *testing.T) {
	st := testSettings()
	st.MinutesPerDay = 60

	tuesday := day(2026, time.August, 25)
	assert.Zero(t, DayCapacity(tuesday, st, 999))
}

func TestAvailableMinutes_SubtractsPlanned(t *testing.T) {
	st := testSettings()
	st.MinutesPerDay = 90

	tuesday := day(2026, time.August, 25)
	busy := map[time.Time]int{tuesday: 10}
	planned := map[time.Time]int{tuesday: 30}

	assert.Equal(t, 50, AvailableMinutes(tuesday, st, busy, planned))
}

func TestAvailableMinutes_FlooredAtZero(t *testing.T) {
	st := testSettings()
	st.MinutesPerDay = 60

	tuesday := day(2026, time.August, 25)
	planned := map[time.Time]int{tuesday: 500}

	assert.Zero(t, AvailableMinutes(tuesday, st, map[time.Time]int{}, planned))
}

func TestAvailableMinutes_NormalizesDay(t *testing.T) {
	st := testSettings()
	st.MinutesPerDay = 60

	noon := time.Date(2026, time.August, 25, 12, 30, 0, 0, time.UTC)
	planned := map[time.Time]int{model.DayOf(noon): 20}

	assert.Equal(t, 40, AvailableMinutes(noon, st, map[time.Time]int{}, planned))
}
