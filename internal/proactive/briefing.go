package proactive

import (
	"fmt"
	"strings"
	"time"
)

// MorningBriefing renders the daily digest: today's priorities, urgent
// deadlines, progress health, goal streaks, recommendations, and
// critical alerts. Every line derives from stored state.
func (e *Evaluator) MorningBriefing() string {
	now := e.clock.Now()
	var b strings.Builder

	fmt.Fprintf(&b, "GOOD MORNING - %s\n", now.Format("Monday, January 2, 2006"))
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	if priorities := e.TodaysPriorities(); len(priorities) > 0 {
		b.WriteString("TODAY'S PRIORITIES\n")
		for i, item := range priorities {
			fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, item.Name, item.Category)
			if item.Due != "" {
				fmt.Fprintf(&b, "   due %s\n", item.Due)
			}
			if item.Status != "" {
				fmt.Fprintf(&b, "   %s\n", item.Status)
			}
		}
		b.WriteString("\n")
	}

	if urgent := e.source.Urgent(7); len(urgent) > 0 {
		b.WriteString("URGENT DEADLINES\n")
		for _, d := range urgent {
			fmt.Fprintf(&b, "- %s: %d days left (%.0f%% complete)\n",
				d.Name, d.DaysUntilDue(now), d.Progress*100)
		}
		b.WriteString("\n")
	}

	if progress := e.ProgressSummary(); len(progress) > 0 {
		b.WriteString("PROGRESS\n")
		for _, p := range progress {
			fmt.Fprintf(&b, "- %s: %d%% complete\n", p.Name, p.ProgressPct)
			if p.BehindSchedule {
				fmt.Fprintf(&b, "  behind schedule by %d days\n", p.DaysBehind)
			}
		}
		b.WriteString("\n")
	}

	var goalLines []string
	for _, g := range e.source.Goals() {
		if g.DailyRequirement == "" {
			continue
		}
		line := fmt.Sprintf("- %s: streak %d", g.Name, g.Streak)
		if g.StreakAtRisk(now) {
			line += " (at risk - don't break it)"
		}
		goalLines = append(goalLines, line)
	}
	if len(goalLines) > 0 {
		b.WriteString("DAILY GOALS\n")
		b.WriteString(strings.Join(goalLines, "\n") + "\n\n")
	}

	if recs := e.Recommendations(); len(recs) > 0 {
		b.WriteString("RECOMMENDATIONS\n")
		for _, r := range recs {
			fmt.Fprintf(&b, "- %s\n", r)
		}
		b.WriteString("\n")
	}

	if alerts := e.CriticalAlerts(); len(alerts) > 0 {
		b.WriteString("CRITICAL ALERTS\n")
		for _, a := range alerts {
			fmt.Fprintf(&b, "- %s\n", a.Message)
		}
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

// WeekOverview renders this week's deadlines (Monday through Sunday)
// and overall goal progress.
func (e *Evaluator) WeekOverview() string {
	now := e.clock.Now()
	weekday := int(now.Weekday()+6) % 7 // Monday = 0
	weekStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, -weekday)
	weekEnd := weekStart.AddDate(0, 0, 7)

	var b strings.Builder
	fmt.Fprintf(&b, "WEEK OVERVIEW (%s - %s)\n\n",
		weekStart.Format("January 2"), weekEnd.AddDate(0, 0, -1).Format("January 2"))

	var lines []string
	for _, d := range e.source.Deadlines() {
		if d.DueAt.Before(weekStart) || !d.DueAt.Before(weekEnd) {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", d.Name, d.DueAt.Format("Monday 3:04 PM")))
	}
	if len(lines) > 0 {
		b.WriteString("THIS WEEK'S DEADLINES\n")
		b.WriteString(strings.Join(lines, "\n") + "\n\n")
	}

	goals := e.source.Goals()
	if len(goals) > 0 {
		b.WriteString("GOALS\n")
		for _, g := range goals {
			fmt.Fprintf(&b, "- %s: %.0f%% complete\n", g.Name, g.Progress*100)
		}
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}
