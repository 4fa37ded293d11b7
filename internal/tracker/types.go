// Package tracker is the durable store of time-bound obligations:
// deadlines and goals, keyed by normalized name.
package tracker

import (
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned when a requested deadline or goal key does not
// exist. Callers treat it as a no-op signal, never as fatal.
var ErrNotFound = errors.New("not found")

// ErrExists is returned when adding a deadline or goal whose normalized
// name collides with an existing key. Use Put-style replacement to
// overwrite deliberately.
var ErrExists = errors.New("already exists")

// Status is a deadline's lifecycle state. Overdue is deliberately absent:
// it is derived at read time so a corrected due date needs no migration.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Valid reports whether s is a storable status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Deadline is a tracked obligation with a due date.
type Deadline struct {
	Name           string      `json:"name"`
	DueAt          time.Time   `json:"due_at"`
	Category       string      `json:"category"`
	Priority       float64     `json:"priority"` // [0,1]
	Description    string      `json:"description,omitempty"`
	Status         Status      `json:"status"`
	EstimatedHours float64     `json:"estimated_hours"`
	Progress       float64     `json:"progress"` // [0,1]
	Reminders      []time.Time `json:"reminders,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// Overdue reports whether the deadline has passed without completion.
// Derived, never persisted.
func (d Deadline) Overdue(now time.Time) bool {
	return d.DueAt.Before(now) && d.Status != StatusCompleted
}

// DaysUntilDue returns whole days remaining, truncated. Negative once
// the due date has passed.
func (d Deadline) DaysUntilDue(now time.Time) int {
	return int(d.DueAt.Sub(now).Hours() / 24)
}

// Milestone is a named progress marker on a goal.
type Milestone struct {
	Marker      string `json:"marker"`
	Description string `json:"description"`
}

// Goal is a longer-horizon objective, optionally with a daily requirement
// whose completion feeds a streak counter.
type Goal struct {
	Name             string      `json:"name"`
	Category         string      `json:"category"`
	TargetDate       time.Time   `json:"target_date"`
	Description      string      `json:"description,omitempty"`
	Progress         float64     `json:"progress"` // [0,1]
	Milestones       []Milestone `json:"milestones,omitempty"`
	DailyRequirement string      `json:"daily_requirement,omitempty"`
	Streak           int         `json:"streak"`
	LastCompleted    *time.Time  `json:"last_completed,omitempty"`
}

// StreakAtRisk reports whether the daily requirement has gone more than
// one day without completion. The streak itself is never reset
// automatically; a miss freezes it and flags risk until the user acts.
func (g Goal) StreakAtRisk(now time.Time) bool {
	if g.DailyRequirement == "" || g.LastCompleted == nil {
		return false
	}
	return now.Sub(*g.LastCompleted) > 24*time.Hour
}

// Key normalizes a name into a storage key: lowercase, spaces to
// underscores.
func Key(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}
