package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"study-planner/internal/model"
)

// UserRepository handles CRUD for users (planning profiles).
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// UpsertFromTelegram finds or creates a user by TelegramID and refreshes
// the basic profile fields.
func (r *UserRepository) UpsertFromTelegram(ctx context.Context, telegramID int64, firstName, lastName, username string) (*model.User, error) {
	db := r.db.WithContext(ctx)

	var user model.User
	err := db.Where("telegram_id = ?", telegramID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = model.User{
			TelegramID: telegramID,
			FirstName:  firstName,
			LastName:   lastName,
			Username:   username,
		}
		if err := db.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		return &user, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	updates := map[string]interface{}{
		"first_name": firstName,
		"last_name":  lastName,
		"username":   username,
	}
	if err := db.Model(&user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return &user, nil
}

func (r *UserRepository) FindByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// ResetProfile clears the user's subjects, tasks, and events in one
// transaction. Settings are kept.
func (r *UserRepository) ResetProfile(ctx context.Context, userID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&model.Task{}).Error; err != nil {
			return fmt.Errorf("reset tasks: %w", err)
		}
		if err := tx.Where("user_id = ?", userID).Delete(&model.Event{}).Error; err != nil {
			return fmt.Errorf("reset events: %w", err)
		}
		if err := tx.Where("user_id = ?", userID).Delete(&model.Subject{}).Error; err != nil {
			return fmt.Errorf("reset subjects: %w", err)
		}
		return nil
	})
}

// ListAll returns every user; the daily report job iterates over this.
func (r *UserRepository) ListAll(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}
