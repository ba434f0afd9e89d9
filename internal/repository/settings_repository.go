package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"study-planner/internal/model"
)

// SettingsRepository stores per-user planning settings.
type SettingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetOrCreate returns the user's settings, creating defaults on first
// access.
func (r *SettingsRepository) GetOrCreate(ctx context.Context, userID uint) (*model.Settings, error) {
	db := r.db.WithContext(ctx)

	var settings model.Settings
	err := db.Where("user_id = ?", userID).First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		settings = model.DefaultSettings(userID)
		if err := db.Create(&settings).Error; err != nil {
			return nil, fmt.Errorf("create settings: %w", err)
		}
		return &settings, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find settings: %w", err)
	}
	return &settings, nil
}

func (r *SettingsRepository) Save(ctx context.Context, settings *model.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Save(settings).Error; err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
