package model

import "time"

// User stores Telegram user metadata. Each user owns an independent
// planning profile: subjects, tasks, events and settings.
type User struct {
	ID         uint  `gorm:"primaryKey"`
	TelegramID int64 `gorm:"uniqueIndex"`
	FirstName  string
	LastName   string
	Username   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
