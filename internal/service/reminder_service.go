package service

import (
	"context"
	"fmt"
	"html"
	"math"
	"sort"
	"strings"
	"time"

	"study-planner/internal/model"
	"study-planner/internal/planner"
	"study-planner/internal/repository"
)

// reportRiskCount is how many risk lines the daily summary shows.
const reportRiskCount = 3

// ReminderService builds human-readable summaries for daily
// notifications.
type ReminderService struct {
	subjectRepo *repository.SubjectRepository
	taskRepo    *repository.TaskRepository
}

func NewReminderService(subjectRepo *repository.SubjectRepository, taskRepo *repository.TaskRepository) *ReminderService {
	return &ReminderService{subjectRepo: subjectRepo, taskRepo: taskRepo}
}

// DailySummary renders today's plan and the top risks as Telegram HTML.
func (s *ReminderService) DailySummary(ctx context.Context, user model.User, now time.Time) (string, error) {
	today := model.DayOf(now)
	todayTasks, err := s.taskRepo.ListWindow(ctx, user.ID, today, today.AddDate(0, 0, 1))
	if err != nil {
		return "", err
	}
	subjects, err := s.subjectRepo.ListByUser(ctx, user.ID)
	if err != nil {
		return "", err
	}
	allTasks, err := s.taskRepo.ListByUser(ctx, user.ID)
	if err != nil {
		return "", err
	}
	risks := planner.BuildRiskList(subjects, allTasks, today, reportRiskCount)

	var builder strings.Builder
	builder.WriteString("📚 <b>Study plan for today</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", today.Format("Mon, 02 Jan 2006")))

	if len(todayTasks) == 0 {
		builder.WriteString("— nothing scheduled today\n")
	} else {
		total := 0
		for _, task := range todayTasks {
			builder.WriteString(formatTaskLine(task))
			if !task.Done {
				total += task.Minutes
			}
		}
		builder.WriteString(fmt.Sprintf("\n⏱ %d minutes left today\n", total))
	}

	if len(risks) > 0 {
		builder.WriteString("\n🚨 <b>At risk</b>\n")
		for _, r := range risks {
			builder.WriteString(formatRiskLine(r))
		}
	}

	return strings.TrimSpace(builder.String()), nil
}

// ProgressReport renders overall and per-subject completion as Telegram
// HTML. Subjects are listed least complete first.
func (s *ReminderService) ProgressReport(ctx context.Context, user model.User) (string, error) {
	subjects, err := s.subjectRepo.ListByUser(ctx, user.ID)
	if err != nil {
		return "", err
	}
	tasks, err := s.taskRepo.ListByUser(ctx, user.ID)
	if err != nil {
		return "", err
	}

	totalMinutes, doneMinutes := 0, 0
	for _, t := range tasks {
		totalMinutes += t.Minutes
		if t.Done {
			doneMinutes += t.Minutes
		}
	}

	var builder strings.Builder
	builder.WriteString("📊 <b>Progress</b>\n")
	builder.WriteString(fmt.Sprintf("⏱ %d min planned · %d done · %d left\n", totalMinutes, doneMinutes, totalMinutes-doneMinutes))

	if len(subjects) == 0 {
		builder.WriteString("\nNo subjects yet.")
		return builder.String(), nil
	}

	rows := make([]progressRow, 0, len(subjects))
	for _, subj := range subjects {
		row := progressRow{subject: subj}
		for _, t := range tasks {
			if t.SubjectID != subj.ID {
				continue
			}
			row.total += t.Minutes
			if t.Done {
				row.done += t.Minutes
			}
		}
		if row.total > 0 {
			row.completion = math.Round(float64(row.done)/float64(row.total)*1000) / 10
		}
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].completion < rows[j].completion })

	builder.WriteString("\n<b>By subject</b>\n")
	for _, row := range rows {
		builder.WriteString(fmt.Sprintf("▫️ %s — %.1f%% · %d/%d min · %d left · due %s\n",
			html.EscapeString(row.subject.Name),
			row.completion,
			row.done,
			row.total,
			row.total-row.done,
			row.subject.Deadline.Format("2006-01-02"),
		))
	}
	return strings.TrimSpace(builder.String()), nil
}

type progressRow struct {
	subject    model.Subject
	total      int
	done       int
	completion float64
}

func formatTaskLine(task model.Task) string {
	icon := "▫️"
	switch {
	case task.Done:
		icon = "✅"
	case task.Overflow:
		icon = "⚠️"
	}
	line := fmt.Sprintf("%s %s — %d min", icon, html.EscapeString(task.SubjectName), task.Minutes)
	if notes := strings.TrimSpace(task.Notes); notes != "" {
		line += fmt.Sprintf(" <i>(%s)</i>", html.EscapeString(notes))
	}
	return line + "\n"
}

func formatRiskLine(r planner.RiskItem) string {
	icon := "🟡"
	switch r.Level {
	case planner.RiskHigh:
		icon = "🔴"
	case planner.RiskLow:
		icon = "🟢"
	}
	return fmt.Sprintf("%s %s — %d min left, %d day(s) to %s; try %d min today\n",
		icon,
		html.EscapeString(r.Subject),
		r.RemainingMinutes,
		r.DaysLeft,
		r.Deadline.Format("02 Jan"),
		r.SuggestedTodayMinutes,
	)
}
