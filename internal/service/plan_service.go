package service

import (
	"context"
	"time"

	"study-planner/internal/model"
	"study-planner/internal/planner"
	"study-planner/internal/repository"
)

// PlanService runs the pure planning core inside read-modify-write
// persistence transactions. The core itself never touches storage.
type PlanService struct {
	subjectRepo  *repository.SubjectRepository
	taskRepo     *repository.TaskRepository
	eventRepo    *repository.EventRepository
	settingsRepo *repository.SettingsRepository
}

func NewPlanService(
	subjectRepo *repository.SubjectRepository,
	taskRepo *repository.TaskRepository,
	eventRepo *repository.EventRepository,
	settingsRepo *repository.SettingsRepository,
) *PlanService {
	return &PlanService{
		subjectRepo:  subjectRepo,
		taskRepo:     taskRepo,
		eventRepo:    eventRepo,
		settingsRepo: settingsRepo,
	}
}

// GenerateWeek creates a 7-day plan starting at today and persists the
// new tasks. With replace set, undone tasks the generator created
// earlier inside that window are purged first; manual and completed
// tasks always survive. Returns the newly created tasks.
func (s *PlanService) GenerateWeek(ctx context.Context, user *model.User, today time.Time, replace bool) ([]model.Task, error) {
	start := model.DayOf(today)
	if replace {
		if err := s.taskRepo.DeleteGeneratedInWindow(ctx, user.ID, start, start.AddDate(0, 0, 7)); err != nil {
			return nil, err
		}
	}

	subjects, settings, events, tasks, err := s.loadState(ctx, user)
	if err != nil {
		return nil, err
	}

	out := planner.GenerateWeekPlan(subjects, *settings, start, tasks, events)
	created := out[len(tasks):]
	if err := s.taskRepo.CreateBatch(ctx, created); err != nil {
		return nil, err
	}
	return created, nil
}

// RescheduleOverdue pushes the user's undone past-due tasks into future
// capacity and replaces the stored task list with the result. Returns
// how many tasks were overdue and how many overflow tasks were emitted.
func (s *PlanService) RescheduleOverdue(ctx context.Context, user *model.User, today time.Time) (overdue, overflows int, err error) {
	_, settings, events, tasks, err := s.loadState(ctx, user)
	if err != nil {
		return 0, 0, err
	}

	start := model.DayOf(today)
	for _, t := range tasks {
		if !t.Done && model.DayOf(t.Day).Before(start) {
			overdue++
		}
	}
	if overdue == 0 {
		return 0, 0, nil
	}

	out := planner.RescheduleOverdue(tasks, *settings, start, events)
	for _, t := range out {
		if t.Overflow {
			overflows++
		}
	}
	if err := s.taskRepo.ReplaceForUser(ctx, user.ID, out); err != nil {
		return 0, 0, err
	}
	return overdue, overflows, nil
}

// RiskList builds the triage list over the user's current state.
func (s *PlanService) RiskList(ctx context.Context, user *model.User, today time.Time, limit int) ([]planner.RiskItem, error) {
	subjects, err := s.subjectRepo.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	tasks, err := s.taskRepo.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return planner.BuildRiskList(subjects, tasks, model.DayOf(today), limit), nil
}

// WeekTasks lists the tasks of the 7 days starting at start.
func (s *PlanService) WeekTasks(ctx context.Context, user *model.User, start time.Time) ([]model.Task, error) {
	d := model.DayOf(start)
	return s.taskRepo.ListWindow(ctx, user.ID, d, d.AddDate(0, 0, 7))
}

// DayTasks lists the tasks of a single day.
func (s *PlanService) DayTasks(ctx context.Context, user *model.User, day time.Time) ([]model.Task, error) {
	d := model.DayOf(day)
	return s.taskRepo.ListWindow(ctx, user.ID, d, d.AddDate(0, 0, 1))
}

func (s *PlanService) loadState(ctx context.Context, user *model.User) ([]model.Subject, *model.Settings, []model.Event, []model.Task, error) {
	subjects, err := s.subjectRepo.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	settings, err := s.settingsRepo.GetOrCreate(ctx, user.ID)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	events, err := s.eventRepo.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	tasks, err := s.taskRepo.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return subjects, settings, events, tasks, nil
}
