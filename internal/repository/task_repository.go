package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"study-planner/internal/model"
)

// TaskRepository handles CRUD and bulk operations for tasks.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// CreateBatch inserts the generator's new tasks in one statement.
func (r *TaskRepository) CreateBatch(ctx context.Context, tasks []model.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&tasks).Error; err != nil {
		return fmt.Errorf("create tasks: %w", err)
	}
	return nil
}

func (r *TaskRepository) ListByUser(ctx context.Context, userID uint) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("day, subject_name COLLATE NOCASE").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListWindow returns tasks with day in [start, end).
func (r *TaskRepository) ListWindow(ctx context.Context, userID uint, start, end time.Time) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND day >= ? AND day < ?", userID, start, end).
		Order("day, subject_name COLLATE NOCASE").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *TaskRepository) FindByID(ctx context.Context, userID uint, id string) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).
		First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *TaskRepository) SetDone(ctx context.Context, userID uint, id string, done bool) error {
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("user_id = ? AND id = ?", userID, id).
		Update("done", done)
	if res.Error != nil {
		return fmt.Errorf("set task done: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *TaskRepository) UpdateNotes(ctx context.Context, userID uint, id, notes string) error {
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("user_id = ? AND id = ?", userID, id).
		Update("notes", notes)
	if res.Error != nil {
		return fmt.Errorf("update task notes: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *TaskRepository) Delete(ctx context.Context, userID uint, id string) error {
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).
		Delete(&model.Task{}).Error; err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// DeleteGeneratedInWindow removes undone generator-created tasks with
// day in [start, end). Used by the regenerate-week policy; manual and
// completed tasks are never touched.
func (r *TaskRepository) DeleteGeneratedInWindow(ctx context.Context, userID uint, start, end time.Time) error {
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND generated = ? AND done = ? AND day >= ? AND day < ?",
			userID, true, false, start, end).
		Delete(&model.Task{}).Error; err != nil {
		return fmt.Errorf("purge generated tasks: %w", err)
	}
	return nil
}

// ReplaceForUser swaps the user's entire task list in one transaction.
// The rescheduler returns a full new list, so persistence is
// delete-then-insert.
func (r *TaskRepository) ReplaceForUser(ctx context.Context, userID uint, tasks []model.Task) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&model.Task{}).Error; err != nil {
			return fmt.Errorf("clear tasks: %w", err)
		}
		if len(tasks) == 0 {
			return nil
		}
		if err := tx.Create(&tasks).Error; err != nil {
			return fmt.Errorf("insert tasks: %w", err)
		}
		return nil
	})
}
