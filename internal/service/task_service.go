package service

import (
	"context"
	"time"

	"study-planner/internal/model"
	"study-planner/internal/repository"
)

// TaskService wraps task-level edits: completion, notes, manual tasks.
type TaskService struct {
	taskRepo    *repository.TaskRepository
	subjectRepo *repository.SubjectRepository
}

func NewTaskService(taskRepo *repository.TaskRepository, subjectRepo *repository.SubjectRepository) *TaskService {
	return &TaskService{taskRepo: taskRepo, subjectRepo: subjectRepo}
}

// Add creates a manual task for a subject on the given day, snapshotting
// the subject's current name.
func (s *TaskService) Add(ctx context.Context, user *model.User, subjectID string, day time.Time, minutes int, notes string) (*model.Task, error) {
	subject, err := s.subjectRepo.FindByID(ctx, user.ID, subjectID)
	if err != nil {
		return nil, err
	}
	task, err := model.NewTask(user.ID, subject.ID, subject.Name, day, minutes, notes)
	if err != nil {
		return nil, err
	}
	if err := s.taskRepo.Create(ctx, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *TaskService) Get(ctx context.Context, user *model.User, id string) (*model.Task, error) {
	return s.taskRepo.FindByID(ctx, user.ID, id)
}

// SetDone flips a task's completion flag.
func (s *TaskService) SetDone(ctx context.Context, user *model.User, id string, done bool) error {
	return s.taskRepo.SetDone(ctx, user.ID, id, done)
}

func (s *TaskService) UpdateNotes(ctx context.Context, user *model.User, id, notes string) error {
	return s.taskRepo.UpdateNotes(ctx, user.ID, id, notes)
}

func (s *TaskService) Delete(ctx context.Context, user *model.User, id string) error {
	return s.taskRepo.Delete(ctx, user.ID, id)
}
