package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"study-planner/internal/model"
	"study-planner/internal/repository"
)

type testEnv struct {
	subjects *repository.SubjectRepository
	tasks    *repository.TaskRepository
	events   *repository.EventRepository
	settings *repository.SettingsRepository
	user     *model.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(
		&model.User{},
		&model.Subject{},
		&model.Task{},
		&model.Event{},
		&model.Settings{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	users := repository.NewUserRepository(db)
	user, err := users.UpsertFromTelegram(context.Background(), 100, "Test", "", "test")
	require.NoError(t, err)

	return &testEnv{
		subjects: repository.NewSubjectRepository(db),
		tasks:    repository.NewTaskRepository(db),
		events:   repository.NewEventRepository(db),
		settings: repository.NewSettingsRepository(db),
		user:     user,
	}
}

func (e *testEnv) planService() *PlanService {
	return NewPlanService(e.subjects, e.tasks, e.events, e.settings)
}

func (e *testEnv) addSubject(t *testing.T, name string, deadline time.Time, difficulty int, hours float64) *model.Subject {
	t.Helper()
	svc := NewSubjectService(e.subjects)
	subject, err := svc.Create(context.Background(), e.user, SubjectInput{
		Name:       name,
		Deadline:   deadline,
		Difficulty: difficulty,
		EstHours:   hours,
	})
	require.NoError(t, err)
	return subject
}

var testToday = time.Date(2026, time.August, 25, 0, 0, 0, 0, time.UTC)

func TestPlanService_GenerateWeekPersistsTasks(t *testing.T) {
	env := newTestEnv(t)
	env.addSubject(t, "Math", testToday.AddDate(0, 0, 5), 4, 2) // 120 min target
	ctx := context.Background()

	created, err := env.planService().GenerateWeek(ctx, env.user, testToday, false)
	require.NoError(t, err)
	require.NotEmpty(t, created)

	stored, err := env.tasks.ListByUser(ctx, env.user.ID)
	require.NoError(t, err)
	assert.Len(t, stored, len(created))

	total := 0
	for _, task := range stored {
		assert.True(t, task.Generated)
		assert.GreaterOrEqual(t, task.Minutes, 10)
		total += task.Minutes
	}
	assert.Equal(t, 120, total)
}

func TestPlanService_RegenerateReplacesGeneratedTasks(t *testing.T) {
	env := newTestEnv(t)
	env.addSubject(t, "Math", testToday.AddDate(0, 0, 5), 4, 2)
	ctx := context.Background()
	svc := env.planService()

	_, err := svc.GenerateWeek(ctx, env.user, testToday, false)
	require.NoError(t, err)
	before, err := env.tasks.ListByUser(ctx, env.user.ID)
	require.NoError(t, err)

	_, err = svc.GenerateWeek(ctx, env.user, testToday, true)
	require.NoError(t, err)
	after, err := env.tasks.ListByUser(ctx, env.user.ID)
	require.NoError(t, err)

	assert.Len(t, after, len(before), "regeneration does not duplicate tasks")
	total := 0
	for _, task := range after {
		total += task.Minutes
	}
	assert.Equal(t, 120, total)
}

func TestPlanService_GenerateWithoutReplaceAddsNothingWhenPlanned(t *testing.T) {
	env := newTestEnv(t)
	env.addSubject(t, "Math", testToday.AddDate(0, 0, 5), 4, 2)
	ctx := context.Background()
	svc := env.planService()

	_, err := svc.GenerateWeek(ctx, env.user, testToday, false)
	require.NoError(t, err)

	created, err := svc.GenerateWeek(ctx, env.user, testToday, false)
	require.NoError(t, err)
	assert.Empty(t, created, "fully planned subject gets no new tasks")
}

func TestPlanService_RegeneratePreservesManualAndDoneTasks(t *testing.T) {
	env := newTestEnv(t)
	subject := env.addSubject(t, "Math", testToday.AddDate(0, 0, 5), 4, 2)
	ctx := context.Background()
	svc := env.planService()

	taskSvc := NewTaskService(env.tasks, env.subjects)
	manual, err := taskSvc.Add(ctx, env.user, subject.ID, testToday, 30, "manual block")
	require.NoError(t, err)

	created, err := svc.GenerateWeek(ctx, env.user, testToday, false)
	require.NoError(t, err)
	require.NotEmpty(t, created)
	require.NoError(t, taskSvc.SetDone(ctx, env.user, created[0].ID, true))

	_, err = svc.GenerateWeek(ctx, env.user, testToday, true)
	require.NoError(t, err)

	stored, err := env.tasks.ListByUser(ctx, env.user.ID)
	require.NoError(t, err)
	ids := map[string]bool{}
	for _, task := range stored {
		ids[task.ID] = true
	}
	assert.True(t, ids[manual.ID], "manual task survives regeneration")
	assert.True(t, ids[created[0].ID], "completed generated task survives regeneration")
}

func TestPlanService_RescheduleOverdue(t *testing.T) {
	env := newTestEnv(t)
	subject := env.addSubject(t, "Math", testToday.AddDate(0, 0, 10), 3, 5)
	ctx := context.Background()

	past, err := model.NewTask(env.user.ID, subject.ID, subject.Name, testToday.AddDate(0, 0, -2), 40, "late work")
	require.NoError(t, err)
	require.NoError(t, env.tasks.Create(ctx, &past))

	overdue, overflows, err := env.planService().RescheduleOverdue(ctx, env.user, testToday)
	require.NoError(t, err)
	assert.Equal(t, 1, overdue)
	assert.Zero(t, overflows)

	stored, err := env.tasks.ListByUser(ctx, env.user.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.False(t, model.DayOf(stored[0].Day).Before(testToday))
	assert.Equal(t, 40, stored[0].Minutes)
	assert.Equal(t, "late work", stored[0].Notes)
}

func TestPlanService_RescheduleNoOverdueIsNoop(t *testing.T) {
	env := newTestEnv(t)
	subject := env.addSubject(t, "Math", testToday.AddDate(0, 0, 10), 3, 5)
	ctx := context.Background()

	future, err := model.NewTask(env.user.ID, subject.ID, subject.Name, testToday.AddDate(0, 0, 2), 40, "")
	require.NoError(t, err)
	require.NoError(t, env.tasks.Create(ctx, &future))

	overdue, overflows, err := env.planService().RescheduleOverdue(ctx, env.user, testToday)
	require.NoError(t, err)
	assert.Zero(t, overdue)
	assert.Zero(t, overflows)

	stored, err := env.tasks.ListByUser(ctx, env.user.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, future.ID, stored[0].ID, "untouched list keeps original IDs")
}

func TestPlanService_RiskList(t *testing.T) {
	env := newTestEnv(t)
	env.addSubject(t, "Math", testToday.AddDate(0, 0, 1), 5, 10)
	env.addSubject(t, "Art", testToday.AddDate(0, 0, 30), 1, 1)

	risks, err := env.planService().RiskList(context.Background(), env.user, testToday, 5)
	require.NoError(t, err)
	require.Len(t, risks, 2)
	assert.Equal(t, "Math", risks[0].Subject)
}

func TestSubjectService_CreateRejectsInvalid(t *testing.T) {
	env := newTestEnv(t)
	svc := NewSubjectService(env.subjects)

	_, err := svc.Create(context.Background(), env.user, SubjectInput{
		Name:       "Math",
		Deadline:   testToday,
		Difficulty: 9,
		EstHours:   1,
	})
	assert.Error(t, err)
}

func TestSubjectService_UpdateRewritesPlanningFields(t *testing.T) {
	env := newTestEnv(t)
	subject := env.addSubject(t, "Math", testToday.AddDate(0, 0, 5), 3, 1)
	ctx := context.Background()
	svc := NewSubjectService(env.subjects)

	updated, err := svc.Update(ctx, env.user, subject.ID, testToday.AddDate(0, 0, 9), 5, 2.5, "focus on integrals")
	require.NoError(t, err)
	assert.Equal(t, 5, updated.Difficulty)
	assert.Equal(t, 150, updated.TargetMinutes())

	got, err := svc.Get(ctx, env.user, subject.ID)
	require.NoError(t, err)
	assert.Equal(t, "Math", got.Name)
	assert.True(t, got.Deadline.Equal(testToday.AddDate(0, 0, 9)))
	assert.Equal(t, "focus on integrals", got.Notes)

	_, err = svc.Update(ctx, env.user, subject.ID, testToday, 0, 2.5, "")
	assert.Error(t, err, "invalid difficulty is rejected")
}

func TestSubjectService_RenameCascades(t *testing.T) {
	env := newTestEnv(t)
	subject := env.addSubject(t, "Math", testToday.AddDate(0, 0, 5), 3, 1)
	ctx := context.Background()

	taskSvc := NewTaskService(env.tasks, env.subjects)
	task, err := taskSvc.Add(ctx, env.user, subject.ID, testToday, 25, "")
	require.NoError(t, err)

	svc := NewSubjectService(env.subjects)
	require.NoError(t, svc.Rename(ctx, env.user, subject.ID, "Mathematics"))

	got, err := taskSvc.Get(ctx, env.user, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mathematics", got.SubjectName)
}

func TestReminderService_DailySummary(t *testing.T) {
	env := newTestEnv(t)
	subject := env.addSubject(t, "Math", testToday.AddDate(0, 0, 2), 5, 5)
	ctx := context.Background()

	taskSvc := NewTaskService(env.tasks, env.subjects)
	_, err := taskSvc.Add(ctx, env.user, subject.ID, testToday, 45, "chapter 2")
	require.NoError(t, err)

	svc := NewReminderService(env.subjects, env.tasks)
	summary, err := svc.DailySummary(ctx, *env.user, testToday)
	require.NoError(t, err)

	assert.Contains(t, summary, "Math")
	assert.Contains(t, summary, "45 min")
	assert.Contains(t, summary, "At risk")
}

func TestReminderService_ProgressReport(t *testing.T) {
	env := newTestEnv(t)
	maths := env.addSubject(t, "Math", testToday.AddDate(0, 0, 5), 4, 2)
	art := env.addSubject(t, "Art", testToday.AddDate(0, 0, 9), 2, 1)
	ctx := context.Background()

	taskSvc := NewTaskService(env.tasks, env.subjects)
	done, err := taskSvc.Add(ctx, env.user, maths.ID, testToday, 60, "")
	require.NoError(t, err)
	require.NoError(t, taskSvc.SetDone(ctx, env.user, done.ID, true))
	_, err = taskSvc.Add(ctx, env.user, maths.ID, testToday.AddDate(0, 0, 1), 60, "")
	require.NoError(t, err)
	_, err = taskSvc.Add(ctx, env.user, art.ID, testToday, 30, "")
	require.NoError(t, err)

	svc := NewReminderService(env.subjects, env.tasks)
	report, err := svc.ProgressReport(ctx, *env.user)
	require.NoError(t, err)

	assert.Contains(t, report, "150 min planned · 60 done · 90 left")
	assert.Contains(t, report, "50.0%")
	assert.Contains(t, report, "0.0%")
	assert.Less(t, strings.Index(report, "Art"), strings.Index(report, "Math"),
		"least complete subject comes first")
}

func TestReminderService_ProgressReportWithoutSubjects(t *testing.T) {
	env := newTestEnv(t)
	svc := NewReminderService(env.subjects, env.tasks)

	report, err := svc.ProgressReport(context.Background(), *env.user)
	require.NoError(t, err)
	assert.Contains(t, report, "0 min planned")
	assert.Contains(t, report, "No subjects yet")
}

func TestBuildDailySpec(t *testing.T) {
	spec, err := buildDailySpec("08:30")
	require.NoError(t, err)
	assert.Equal(t, "30 8 * * *", spec)

	for _, bad := range []string{"8", "25:00", "12:61", "aa:bb"} {
		_, err := buildDailySpec(bad)
		assert.Error(t, err, bad)
	}
}
