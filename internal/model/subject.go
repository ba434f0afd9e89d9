package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Subject is a study area with a deadline. The planner allocates chunks
// of its estimated workload across days; tasks reference it by ID and
// carry a name snapshot.
type Subject struct {
	ID         string `gorm:"primaryKey"`
	UserID     uint   `gorm:"index;index:idx_user_subject_name,unique"`
	Name       string `gorm:"index:idx_user_subject_name,unique"`
	Deadline   time.Time
	Difficulty int
	EstHours   float64
	Notes      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewSubject builds a validated subject. Difficulty must be 1..5 and the
// estimated hours positive; out-of-range values are rejected here so the
// planning core never sees them.
func NewSubject(userID uint, name string, deadline time.Time, difficulty int, estHours float64, notes string) (Subject, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Subject{}, fmt.Errorf("subject name is required")
	}
	if difficulty < 1 || difficulty > 5 {
		return Subject{}, fmt.Errorf("difficulty must be between 1 and 5, got %d", difficulty)
	}
	if estHours <= 0 {
		return Subject{}, fmt.Errorf("estimated hours must be positive, got %g", estHours)
	}
	return Subject{
		ID:         uuid.NewString(),
		UserID:     userID,
		Name:       name,
		Deadline:   DayOf(deadline),
		Difficulty: difficulty,
		EstHours:   estHours,
		Notes:      notes,
	}, nil
}

// TargetMinutes is the subject's total workload in minutes.
func (s Subject) TargetMinutes() int {
	return int(s.EstHours*60 + 0.5)
}
