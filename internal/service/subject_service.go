package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"study-planner/internal/model"
	"study-planner/internal/repository"
)

// SubjectInput represents data required to create a subject.
type SubjectInput struct {
	Name       string
	Deadline   time.Time
	Difficulty int
	EstHours   float64
	Notes      string
}

// SubjectService wraps subject-related business logic, including the
// cascades that keep task snapshots consistent.
type SubjectService struct {
	subjectRepo *repository.SubjectRepository
}

func NewSubjectService(subjectRepo *repository.SubjectRepository) *SubjectService {
	return &SubjectService{subjectRepo: subjectRepo}
}

func (s *SubjectService) Create(ctx context.Context, user *model.User, input SubjectInput) (*model.Subject, error) {
	subject, err := model.NewSubject(user.ID, input.Name, input.Deadline, input.Difficulty, input.EstHours, input.Notes)
	if err != nil {
		return nil, err
	}
	if err := s.subjectRepo.Create(ctx, &subject); err != nil {
		return nil, err
	}
	return &subject, nil
}

func (s *SubjectService) List(ctx context.Context, user *model.User) ([]model.Subject, error) {
	return s.subjectRepo.ListByUser(ctx, user.ID)
}

func (s *SubjectService) Get(ctx context.Context, user *model.User, id string) (*model.Subject, error) {
	return s.subjectRepo.FindByID(ctx, user.ID, id)
}

// Update rewrites the subject's planning fields. The name is changed
// through Rename so task snapshots stay consistent.
func (s *SubjectService) Update(ctx context.Context, user *model.User, id string, deadline time.Time, difficulty int, estHours float64, notes string) (*model.Subject, error) {
	subject, err := s.subjectRepo.FindByID(ctx, user.ID, id)
	if err != nil {
		return nil, err
	}
	updated, err := model.NewSubject(user.ID, subject.Name, deadline, difficulty, estHours, notes)
	if err != nil {
		return nil, err
	}
	subject.Deadline = updated.Deadline
	subject.Difficulty = updated.Difficulty
	subject.EstHours = updated.EstHours
	subject.Notes = updated.Notes
	if err := s.subjectRepo.Update(ctx, subject); err != nil {
		return nil, err
	}
	return subject, nil
}

// Rename changes the subject's name and cascades the snapshot on its
// tasks.
func (s *SubjectService) Rename(ctx context.Context, user *model.User, id, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return fmt.Errorf("subject name is required")
	}
	return s.subjectRepo.Rename(ctx, user.ID, id, newName)
}

// Delete removes the subject and every task that references it.
func (s *SubjectService) Delete(ctx context.Context, user *model.User, id string) error {
	return s.subjectRepo.Delete(ctx, user.ID, id)
}
