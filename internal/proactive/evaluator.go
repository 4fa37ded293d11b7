// Package proactive turns stored deadlines and goals into alerts,
// recommendations, and briefings. It is a read-only projection: every
// alert traces back to a stored entity, and nothing here may invent one.
package proactive

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/bowenhq/bowen/internal/memory"
	"github.com/bowenhq/bowen/internal/tracker"
)

// AlertPriority ranks alerts for display.
type AlertPriority string

const (
	PriorityLow      AlertPriority = "low"
	PriorityMedium   AlertPriority = "medium"
	PriorityHigh     AlertPriority = "high"
	PriorityCritical AlertPriority = "critical"
)

// Alert is a system-initiated notice derived from stored state.
type Alert struct {
	ID             string        `json:"id"`
	Message        string        `json:"message"`
	Priority       AlertPriority `json:"priority"`
	Category       string        `json:"category"`
	ActionRequired bool          `json:"action_required"`
	Deadline       *time.Time    `json:"deadline,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// PriorityItem is the common ranking shape deadlines and goals map to
// for "what matters today" views.
type PriorityItem struct {
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Priority float64 `json:"priority"`
	Due      string  `json:"due,omitempty"`
	Status   string  `json:"status,omitempty"`
}

// ProgressItem reports schedule health for an in-progress deadline.
type ProgressItem struct {
	Name           string `json:"name"`
	ProgressPct    int    `json:"progress_pct"`
	BehindSchedule bool   `json:"behind_schedule"`
	DaysBehind     int    `json:"days_behind"`
}

// TrackerSource is the read surface the evaluator needs from the
// tracker store.
type TrackerSource interface {
	Deadlines() []tracker.Deadline
	Goals() []tracker.Goal
	Urgent(daysThreshold int) []tracker.Deadline
}

// StaleSource surfaces memory facts needing re-verification, for
// recommendation output.
type StaleSource interface {
	IdentifyStale() []memory.Record
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Evaluator derives alerts and briefings from tracker (and optionally
// memory) state.
type Evaluator struct {
	source TrackerSource
	stale  StaleSource // optional
	clock  Clock
}

// NewEvaluator creates an Evaluator over the given tracker source.
// stale may be nil.
func NewEvaluator(source TrackerSource, stale StaleSource) *Evaluator {
	return NewEvaluatorWithClock(source, stale, realClock{})
}

// NewEvaluatorWithClock is NewEvaluator with an injected clock.
func NewEvaluatorWithClock(source TrackerSource, stale StaleSource, clock Clock) *Evaluator {
	return &Evaluator{source: source, stale: stale, clock: clock}
}

// CriticalAlerts returns one critical alert per overdue deadline and one
// high alert per daily-requirement goal whose last completion is more
// than a day old.
func (e *Evaluator) CriticalAlerts() []Alert {
	now := e.clock.Now()
	var alerts []Alert

	for _, d := range e.source.Deadlines() {
		if !d.Overdue(now) {
			continue
		}
		due := d.DueAt
		alerts = append(alerts, Alert{
			ID:             uuid.New().String(),
			Message:        fmt.Sprintf("%s is overdue", d.Name),
			Priority:       PriorityCritical,
			Category:       d.Category,
			ActionRequired: true,
			Deadline:       &due,
			CreatedAt:      now,
		})
	}

	for _, g := range e.source.Goals() {
		if !g.StreakAtRisk(now) {
			continue
		}
		alerts = append(alerts, Alert{
			ID:             uuid.New().String(),
			Message:        fmt.Sprintf("%s streak at risk - complete today's requirement", g.Name),
			Priority:       PriorityHigh,
			Category:       g.Category,
			ActionRequired: true,
			CreatedAt:      now,
		})
	}

	return alerts
}

// Recommendations derives suggestions purely from current deadline and
// goal state. Entities never present in the store never appear here.
func (e *Evaluator) Recommendations() []string {
	now := e.clock.Now()
	var recs []string

	// Highest-priority incomplete item due today.
	var dueToday []tracker.Deadline
	for _, d := range e.source.Deadlines() {
		if d.Status == tracker.StatusCompleted {
			continue
		}
		if sameDay(d.DueAt, now) {
			dueToday = append(dueToday, d)
		}
	}
	if len(dueToday) > 0 {
		sort.SliceStable(dueToday, func(i, j int) bool {
			return dueToday[i].Priority > dueToday[j].Priority
		})
		top := dueToday[0]
		recs = append(recs, fmt.Sprintf("%s is due today at %s - make it the first block of the day",
			top.Name, top.DueAt.Format("3:04 PM")))
	}

	// In-progress items behind schedule.
	for _, p := range e.ProgressSummary() {
		if p.BehindSchedule {
			recs = append(recs, fmt.Sprintf("%s is %d%% done and %d days behind - schedule focused time today",
				p.Name, p.ProgressPct, p.DaysBehind))
		}
	}

	// Daily requirements not yet done today.
	for _, g := range e.source.Goals() {
		if g.DailyRequirement == "" {
			continue
		}
		if g.LastCompleted == nil || !sameDay(*g.LastCompleted, now) {
			recs = append(recs, fmt.Sprintf("%s: today's requirement not yet done (%s)",
				g.Name, g.DailyRequirement))
		}
	}

	// Stale facts worth re-verifying.
	if e.stale != nil && len(recs) < 5 {
		if len(e.stale.IdentifyStale()) > 0 {
			recs = append(recs, "Some remembered facts are getting stale - run a weekly refresh")
		}
	}

	if len(recs) > 5 {
		recs = recs[:5]
	}
	return recs
}

// TodaysPriorities maps deadlines due today and daily-requirement goals
// to the common ranking shape, highest priority first, top five.
func (e *Evaluator) TodaysPriorities() []PriorityItem {
	now := e.clock.Now()
	var items []PriorityItem

	for _, d := range e.source.Deadlines() {
		if !sameDay(d.DueAt, now) {
			continue
		}
		items = append(items, PriorityItem{
			Name:     d.Name,
			Category: d.Category,
			Priority: d.Priority,
			Due:      d.DueAt.Format("3:04 PM"),
			Status:   fmt.Sprintf("%.0f%% complete", d.Progress*100),
		})
	}

	for _, g := range e.source.Goals() {
		if g.DailyRequirement == "" {
			continue
		}
		items = append(items, PriorityItem{
			Name:     g.Name,
			Category: g.Category,
			Priority: 0.8,
			Status:   g.DailyRequirement,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Priority > items[j].Priority
	})
	if len(items) > 5 {
		items = items[:5]
	}
	return items
}

// ProgressSummary reports schedule health for in-progress deadlines,
// comparing actual progress with time elapsed since creation.
func (e *Evaluator) ProgressSummary() []ProgressItem {
	now := e.clock.Now()
	var items []ProgressItem

	for _, d := range e.source.Deadlines() {
		if d.Status != tracker.StatusInProgress {
			continue
		}
		total := d.DueAt.Sub(d.CreatedAt)
		if total <= 0 {
			continue
		}
		elapsed := now.Sub(d.CreatedAt)
		expected := float64(elapsed) / float64(total)
		if expected > 1 {
			expected = 1
		}

		behind := d.Progress < expected
		daysBehind := 0
		if behind {
			daysBehind = int((expected - d.Progress) * total.Hours() / 24)
		}
		items = append(items, ProgressItem{
			Name:           d.Name,
			ProgressPct:    int(d.Progress * 100),
			BehindSchedule: behind,
			DaysBehind:     daysBehind,
		})
	}
	return items
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
