package service

import (
	"context"
	"time"

	"study-planner/internal/calendar"
	"study-planner/internal/model"
	"study-planner/internal/pdf"
	"study-planner/internal/planner"
	"study-planner/internal/repository"
)

// CalendarService orchestrates the ICS/PDF collaborators around stored
// state.
type CalendarService struct {
	subjectRepo  *repository.SubjectRepository
	taskRepo     *repository.TaskRepository
	eventRepo    *repository.EventRepository
	settingsRepo *repository.SettingsRepository
}

func NewCalendarService(
	subjectRepo *repository.SubjectRepository,
	taskRepo *repository.TaskRepository,
	eventRepo *repository.EventRepository,
	settingsRepo *repository.SettingsRepository,
) *CalendarService {
	return &CalendarService{
		subjectRepo:  subjectRepo,
		taskRepo:     taskRepo,
		eventRepo:    eventRepo,
		settingsRepo: settingsRepo,
	}
}

// ImportICS replaces the user's imported events with the content of an
// uploaded ICS file. Returns how many events were imported.
func (s *CalendarService) ImportICS(ctx context.Context, user *model.User, data []byte) (int, error) {
	events, err := calendar.ImportICS(user.ID, data)
	if err != nil {
		return 0, err
	}
	if err := s.eventRepo.ReplaceForUser(ctx, user.ID, events); err != nil {
		return 0, err
	}
	return len(events), nil
}

// ClearEvents drops all imported events.
func (s *CalendarService) ClearEvents(ctx context.Context, user *model.User) error {
	return s.eventRepo.Clear(ctx, user.ID)
}

// ExportICS renders the user's full task list as an ICS calendar packed
// into the preferred daily window, with warnings for unplaceable
// minutes.
func (s *CalendarService) ExportICS(ctx context.Context, user *model.User, weekStart time.Time) ([]byte, []string, error) {
	settings, err := s.settingsRepo.GetOrCreate(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	tasks, err := s.taskRepo.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	events, err := s.eventRepo.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	data, warnings := calendar.ExportICS(tasks, model.DayOf(weekStart), *settings, events)
	return data, warnings, nil
}

// ExportPDF renders the week starting at weekStart as a PDF, including
// the current risk list.
func (s *CalendarService) ExportPDF(ctx context.Context, user *model.User, weekStart time.Time, riskLimit int) ([]byte, error) {
	settings, err := s.settingsRepo.GetOrCreate(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	start := model.DayOf(weekStart)
	weekTasks, err := s.taskRepo.ListWindow(ctx, user.ID, start, start.AddDate(0, 0, 7))
	if err != nil {
		return nil, err
	}
	subjects, err := s.subjectRepo.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	allTasks, err := s.taskRepo.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	risks := planner.BuildRiskList(subjects, allTasks, start, riskLimit)
	return pdf.WeekPlan(weekTasks, *settings, start, risks)
}
