package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Chunk sizes the generator may allocate per task, in minutes.
var allowedChunks = map[int]bool{25: true, 45: true, 60: true}

// minChunkMinutes is the floor below which the generator refuses to
// place a task.
const minChunkMinutes = 10

// Settings holds one user's planning knobs. Degenerate values (chunk
// outside the allowed set, export window of zero length) are corrected
// by the Effective* accessors instead of failing, so planning output is
// always available.
type Settings struct {
	ID                 uint `gorm:"primaryKey"`
	UserID             uint `gorm:"uniqueIndex"`
	MinutesPerDay      int
	RestDays           string // comma-separated weekday indices, 0=Mon..6=Sun
	ChunkMinutes       int
	DailyBufferMinutes int
	PreferredStartHour int
	PreferredEndHour   int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// DefaultSettings returns the settings a new user starts with.
func DefaultSettings(userID uint) Settings {
	return Settings{
		UserID:             userID,
		MinutesPerDay:      90,
		RestDays:           "",
		ChunkMinutes:       25,
		DailyBufferMinutes: 15,
		PreferredStartHour: 18,
		PreferredEndHour:   22,
	}
}

// Validate checks hard range limits. Callers applying user edits reject
// invalid values here; stored settings always pass.
func (s Settings) Validate() error {
	if s.MinutesPerDay < 15 || s.MinutesPerDay > 600 {
		return fmt.Errorf("minutes per day must be between 15 and 600, got %d", s.MinutesPerDay)
	}
	if s.DailyBufferMinutes < 0 || s.DailyBufferMinutes > 180 {
		return fmt.Errorf("daily buffer must be between 0 and 180 minutes, got %d", s.DailyBufferMinutes)
	}
	if s.PreferredStartHour < 0 || s.PreferredStartHour > 23 {
		return fmt.Errorf("start hour must be between 0 and 23, got %d", s.PreferredStartHour)
	}
	if s.PreferredEndHour < 0 || s.PreferredEndHour > 23 {
		return fmt.Errorf("end hour must be between 0 and 23, got %d", s.PreferredEndHour)
	}
	for _, d := range s.RestDaySlice() {
		if d < 0 || d > 6 {
			return fmt.Errorf("rest day index must be between 0 and 6, got %d", d)
		}
	}
	return nil
}

// EffectiveChunk returns the chunk size the generator uses: values
// outside the allowed set fall back to 25, floored at 10 minutes.
func (s Settings) EffectiveChunk() int {
	chunk := s.ChunkMinutes
	if !allowedChunks[chunk] {
		chunk = 25
	}
	if chunk < minChunkMinutes {
		chunk = minChunkMinutes
	}
	return chunk
}

// ExportWindow returns the preferred daily time window for calendar
// export. A window of zero or negative length is stretched to one hour.
func (s Settings) ExportWindow() (startHour, endHour int) {
	startHour = s.PreferredStartHour
	endHour = s.PreferredEndHour
	if endHour <= startHour {
		endHour = startHour + 1
		if endHour > 23 {
			endHour = 23
		}
	}
	return startHour, endHour
}

// IsRestDay reports whether the day's weekday is in the rest-day set.
func (s Settings) IsRestDay(day time.Time) bool {
	idx := WeekdayIndex(day)
	for _, d := range s.RestDaySlice() {
		if d == idx {
			return true
		}
	}
	return false
}

// RestDaySlice parses the stored rest-day CSV into weekday indices.
func (s Settings) RestDaySlice() []int {
	if strings.TrimSpace(s.RestDays) == "" {
		return nil
	}
	var out []int
	for _, part := range strings.Split(s.RestDays, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

// SetRestDays stores the given weekday indices, deduplicated and sorted.
func (s *Settings) SetRestDays(days []int) {
	seen := make(map[int]bool)
	var uniq []int
	for _, d := range days {
		if d < 0 || d > 6 || seen[d] {
			continue
		}
		seen[d] = true
		uniq = append(uniq, d)
	}
	sort.Ints(uniq)
	parts := make([]string, len(uniq))
	for i, d := range uniq {
		parts[i] = strconv.Itoa(d)
	}
	s.RestDays = strings.Join(parts, ",")
}
