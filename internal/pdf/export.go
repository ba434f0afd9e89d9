// Package pdf renders a week plan as a printable PDF document.
package pdf

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"study-planner/internal/model"
	"study-planner/internal/planner"
)

// WeekPlan renders the plan for the week starting at weekStart: a
// header with the settings summary, the risk list and one table per day
// with a total row.
func WeekPlan(tasks []model.Task, st model.Settings, weekStart time.Time, risks []planner.RiskItem) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetAutoPageBreak(true, 15)
	doc.AddPage()

	weekStart = model.DayOf(weekStart)
	weekEnd := weekStart.AddDate(0, 0, 6)

	doc.SetFont("Helvetica", "B", 16)
	doc.CellFormat(0, 10, fmt.Sprintf("Study Plan: %s - %s",
		weekStart.Format("2006-01-02"), weekEnd.Format("2006-01-02")), "", 1, "L", false, 0, "")
	doc.Ln(2)

	restDays := "None"
	if rd := st.RestDaySlice(); len(rd) > 0 {
		parts := make([]string, len(rd))
		for i, d := range rd {
			parts[i] = fmt.Sprintf("%d", d)
		}
		restDays = strings.Join(parts, ", ")
	}
	startHour, endHour := st.ExportWindow()

	doc.SetFont("Helvetica", "", 10)
	doc.CellFormat(0, 6, fmt.Sprintf("Minutes/day: %d | Rest days: %s | Chunk: %d | Buffer: %dm",
		st.MinutesPerDay, restDays, st.EffectiveChunk(), st.DailyBufferMinutes), "", 1, "L", false, 0, "")
	doc.CellFormat(0, 6, fmt.Sprintf("Preferred window: %d:00 - %d:00", startHour, endHour),
		"", 1, "L", false, 0, "")
	doc.Ln(4)

	if len(risks) > 0 {
		writeRiskTable(doc, risks)
	}
	writeDayTables(doc, tasks)

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRiskTable(doc *fpdf.Fpdf, risks []planner.RiskItem) {
	doc.SetFont("Helvetica", "B", 12)
	doc.CellFormat(0, 8, "Risk list", "", 1, "L", false, 0, "")

	widths := []float64{55, 28, 20, 28, 22, 17}
	headers := []string{"Subject", "Deadline", "Days left", "Remaining (m)", "Difficulty", "Level"}

	doc.SetFont("Helvetica", "B", 9)
	doc.SetFillColor(230, 230, 230)
	for i, h := range headers {
		doc.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	doc.Ln(-1)

	doc.SetFont("Helvetica", "", 9)
	for _, r := range risks {
		cells := []string{
			r.Subject,
			r.Deadline.Format("2006-01-02"),
			fmt.Sprintf("%d", r.DaysLeft),
			fmt.Sprintf("%d", r.RemainingMinutes),
			fmt.Sprintf("%d", r.Difficulty),
			string(r.Level),
		}
		for i, c := range cells {
			align := "L"
			if i == 2 || i == 3 {
				align = "R"
			}
			doc.CellFormat(widths[i], 7, c, "1", 0, align, false, 0, "")
		}
		doc.Ln(-1)
	}
	doc.Ln(4)
}

func writeDayTables(doc *fpdf.Fpdf, tasks []model.Task) {
	byDay := make(map[time.Time][]model.Task)
	for _, t := range tasks {
		d := model.DayOf(t.Day)
		byDay[d] = append(byDay[d], t)
	}
	days := make([]time.Time, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	widths := []float64{60, 25, 20, 65}
	headers := []string{"Subject", "Minutes", "Done", "Notes"}

	for _, d := range days {
		doc.SetFont("Helvetica", "B", 12)
		doc.CellFormat(0, 8, d.Format("Monday, 2006-01-02"), "", 1, "L", false, 0, "")

		doc.SetFont("Helvetica", "B", 9)
		doc.SetFillColor(230, 230, 230)
		for i, h := range headers {
			doc.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
		}
		doc.Ln(-1)

		dayTasks := byDay[d]
		sort.SliceStable(dayTasks, func(i, j int) bool {
			return strings.ToLower(dayTasks[i].SubjectName) < strings.ToLower(dayTasks[j].SubjectName)
		})

		doc.SetFont("Helvetica", "", 9)
		total := 0
		for _, task := range dayTasks {
			total += task.Minutes
			done := "No"
			if task.Done {
				done = "Yes"
			}
			doc.CellFormat(widths[0], 7, task.SubjectName, "1", 0, "L", false, 0, "")
			doc.CellFormat(widths[1], 7, fmt.Sprintf("%d", task.Minutes), "1", 0, "R", false, 0, "")
			doc.CellFormat(widths[2], 7, done, "1", 0, "R", false, 0, "")
			doc.CellFormat(widths[3], 7, task.Notes, "1", 0, "L", false, 0, "")
			doc.Ln(-1)
		}

		doc.SetFont("Helvetica", "B", 9)
		doc.SetFillColor(245, 245, 245)
		doc.CellFormat(widths[0], 7, "Total", "1", 0, "L", true, 0, "")
		doc.CellFormat(widths[1], 7, fmt.Sprintf("%d", total), "1", 0, "R", true, 0, "")
		doc.CellFormat(widths[2], 7, "", "1", 0, "L", true, 0, "")
		doc.CellFormat(widths[3], 7, "", "1", 0, "L", true, 0, "")
		doc.Ln(-1)
		doc.Ln(3)
	}
}
