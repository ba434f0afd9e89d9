package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event is externally-imported busy time (a calendar appointment). It is
// a read-only input to capacity computation; the planner never creates
// or mutates events.
type Event struct {
	ID        string `gorm:"primaryKey"`
	UserID    uint   `gorm:"index"`
	Title     string
	Start     time.Time
	End       time.Time
	CreatedAt time.Time
}

// NewEvent builds a validated event. End must be after start.
func NewEvent(userID uint, title string, start, end time.Time) (Event, error) {
	if !end.After(start) {
		return Event{}, fmt.Errorf("event end must be after start")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Untitled"
	}
	return Event{
		ID:     uuid.NewString(),
		UserID: userID,
		Title:  title,
		Start:  start,
		End:    end,
	}, nil
}
