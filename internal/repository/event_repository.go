package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"study-planner/internal/model"
)

// EventRepository stores imported calendar events.
type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) ListByUser(ctx context.Context, userID uint) ([]model.Event, error) {
	var events []model.Event
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("start").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// ReplaceForUser swaps the user's imported events for a fresh import.
func (r *EventRepository) ReplaceForUser(ctx context.Context, userID uint, events []model.Event) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&model.Event{}).Error; err != nil {
			return fmt.Errorf("clear events: %w", err)
		}
		if len(events) == 0 {
			return nil
		}
		if err := tx.Create(&events).Error; err != nil {
			return fmt.Errorf("insert events: %w", err)
		}
		return nil
	})
}

func (r *EventRepository) Clear(ctx context.Context, userID uint) error {
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Delete(&model.Event{}).Error; err != nil {
		return fmt.Errorf("clear events: %w", err)
	}
	return nil
}
