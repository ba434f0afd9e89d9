package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Task is one planned block of study time on a single calendar day.
// SubjectName is a denormalized snapshot; renaming a subject cascades
// through SubjectRepository to keep it consistent.
type Task struct {
	ID          string `gorm:"primaryKey"`
	UserID      uint   `gorm:"index"`
	SubjectID   string `gorm:"index"`
	SubjectName string
	Day         time.Time `gorm:"index"`
	Minutes     int
	Done        bool `gorm:"default:false"`
	Notes       string
	// Generated marks tasks created by the week plan generator, so a
	// regeneration can purge its own previous output without touching
	// manual tasks.
	Generated bool `gorm:"default:false"`
	// Overflow marks tasks that intentionally bypass capacity checks:
	// work the rescheduler could not place within its horizon.
	Overflow  bool `gorm:"default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTask builds a validated task on the given day.
func NewTask(userID uint, subjectID, subjectName string, day time.Time, minutes int, notes string) (Task, error) {
	if minutes <= 0 {
		return Task{}, fmt.Errorf("task minutes must be positive, got %d", minutes)
	}
	return Task{
		ID:          uuid.NewString(),
		UserID:      userID,
		SubjectID:   subjectID,
		SubjectName: subjectName,
		Day:         DayOf(day),
		Minutes:     minutes,
		Notes:       notes,
	}, nil
}
