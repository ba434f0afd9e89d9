package planner

import (
	"time"

	"study-planner/internal/model"
)

// minAllocation is the smallest task the generator will place; an
// allocation below this floor ends the day instead.
const minAllocation = 10

// planWindowDays is the length of the generated plan window.
const planWindowDays = 7

// GenerateWeekPlan greedily assigns chunks of subject time to the seven
// days starting at today. Existing tasks are preserved untouched: their
// undone minutes reduce day capacity inside the window, and their
// minutes count against subject targets regardless of day. The result
// is the existing list followed by the newly created tasks, which carry
// Generated=true.
//
// Whether a regeneration should first purge previously generated tasks
// is caller policy; see PlanService.
func GenerateWeekPlan(subjects []model.Subject, st model.Settings, today time.Time, existing []model.Task, events []model.Event) []model.Task {
	start := model.DayOf(today)
	days := make([]time.Time, planWindowDays)
	for i := range days {
		days[i] = start.AddDate(0, 0, i)
	}

	busy := BusyMinutesByDay(events, start, planWindowDays)
	capacity := make(map[time.Time]int, planWindowDays)
	for _, d := range days {
		capacity[d] = DayCapacity(d, st, busy[d])
	}

	// Undone tasks already scheduled inside the window consume capacity.
	for _, t := range existing {
		if t.Done {
			continue
		}
		day := model.DayOf(t.Day)
		if cap, ok := capacity[day]; ok {
			cap -= t.Minutes
			if cap < 0 {
				cap = 0
			}
			capacity[day] = cap
		}
	}

	// Remaining minutes per subject: target minus everything already
	// allocated to it anywhere in the task list.
	allocated := make(map[string]int, len(subjects))
	for _, s := range subjects {
		allocated[s.ID] = 0
	}
	for _, t := range existing {
		if _, ok := allocated[t.SubjectID]; ok {
			allocated[t.SubjectID] += t.Minutes
		}
	}
	remaining := make(map[string]int, len(subjects))
	for _, s := range subjects {
		r := s.TargetMinutes() - allocated[s.ID]
		if r < 0 {
			r = 0
		}
		remaining[s.ID] = r
	}

	chunk := st.EffectiveChunk()

	var created []model.Task
	for _, d := range days {
		cap := capacity[d]
		for cap >= minAllocation {
			s := pickSubject(subjects, remaining, today)
			if s == nil {
				break
			}
			give := chunk
			if cap < give {
				give = cap
			}
			if remaining[s.ID] < give {
				give = remaining[s.ID]
			}
			if give < minAllocation {
				break
			}

			task, err := model.NewTask(s.UserID, s.ID, s.Name, d, give, "")
			if err != nil {
				break
			}
			task.Generated = true
			created = append(created, task)
			remaining[s.ID] -= give
			cap -= give
		}
	}

	out := make([]model.Task, 0, len(existing)+len(created))
	out = append(out, existing...)
	out = append(out, created...)
	return out
}

// pickSubject returns the subject with the highest priority among those
// with remaining work. Equal priorities are broken by subject ID
// ascending so the output is deterministic regardless of input order.
func pickSubject(subjects []model.Subject, remaining map[string]int, today time.Time) *model.Subject {
	var best *model.Subject
	var bestPriority float64
	for i := range subjects {
		s := &subjects[i]
		if remaining[s.ID] <= 0 {
			continue
		}
		p := priority(today, *s)
		if best == nil || p > bestPriority || (p == bestPriority && s.ID < best.ID) {
			best = s
			bestPriority = p
		}
	}
	return best
}
