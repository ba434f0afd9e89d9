package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"study-planner/internal/model"
)

// SubjectRepository handles CRUD for subjects, including the cascades
// that keep tasks consistent (name snapshots, delete).
type SubjectRepository struct {
	db *gorm.DB
}

func NewSubjectRepository(db *gorm.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

func (r *SubjectRepository) Create(ctx context.Context, subject *model.Subject) error {
	if err := r.db.WithContext(ctx).Create(subject).Error; err != nil {
		return fmt.Errorf("create subject: %w", err)
	}
	return nil
}

func (r *SubjectRepository) ListByUser(ctx context.Context, userID uint) ([]model.Subject, error) {
	var subjects []model.Subject
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("deadline, name").
		Find(&subjects).Error; err != nil {
		return nil, err
	}
	return subjects, nil
}

func (r *SubjectRepository) FindByID(ctx context.Context, userID uint, id string) (*model.Subject, error) {
	var subject model.Subject
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).
		First(&subject).Error; err != nil {
		return nil, err
	}
	return &subject, nil
}

func (r *SubjectRepository) Update(ctx context.Context, subject *model.Subject) error {
	if err := r.db.WithContext(ctx).Save(subject).Error; err != nil {
		return fmt.Errorf("update subject: %w", err)
	}
	return nil
}

// Rename changes a subject's name and cascades the denormalized name
// snapshot to its tasks in one transaction.
func (r *SubjectRepository) Rename(ctx context.Context, userID uint, id, newName string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Subject{}).
			Where("user_id = ? AND id = ?", userID, id).
			Update("name", newName)
		if res.Error != nil {
			return fmt.Errorf("rename subject: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if err := tx.Model(&model.Task{}).
			Where("user_id = ? AND subject_id = ?", userID, id).
			Update("subject_name", newName).Error; err != nil {
			return fmt.Errorf("cascade task names: %w", err)
		}
		return nil
	})
}

// Delete removes a subject and all of its tasks in one transaction.
func (r *SubjectRepository) Delete(ctx context.Context, userID uint, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND subject_id = ?", userID, id).
			Delete(&model.Task{}).Error; err != nil {
			return fmt.Errorf("delete subject tasks: %w", err)
		}
		if err := tx.Where("user_id = ? AND id = ?", userID, id).
			Delete(&model.Subject{}).Error; err != nil {
			return fmt.Errorf("delete subject: %w", err)
		}
		return nil
	})
}
