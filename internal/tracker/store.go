package tracker

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// snapshot is the on-disk document: both collections keyed by normalized
// name, rewritten in full on every mutation.
type snapshot struct {
	Deadlines map[string]Deadline `json:"deadlines"`
	Goals     map[string]Goal     `json:"goals"`
}

// Store holds deadlines and goals behind a single-writer mutex with
// write-through JSON persistence. Persistence failures are logged and
// swallowed: availability of the assistant loop wins over perfect
// durability for a single-user local tool.
type Store struct {
	mu    sync.Mutex
	clock Clock
	path  string // empty disables persistence (tests)

	deadlines map[string]Deadline
	goals     map[string]Goal
}

// Open loads (or initializes) the tracker file at path.
func Open(path string) *Store {
	return openWithClock(path, realClock{})
}

// NewInMemory creates a Store without persistence, for tests.
func NewInMemory(clock Clock) *Store {
	return openWithClock("", clock)
}

func openWithClock(path string, clock Clock) *Store {
	s := &Store{
		clock:     clock,
		path:      path,
		deadlines: make(map[string]Deadline),
		goals:     make(map[string]Goal),
	}
	if path == "" {
		return s
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("tracker: could not read persisted state, starting fresh", "path", path, "error", err)
		}
		return s
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		slog.Warn("tracker: persisted state malformed, starting fresh", "path", path, "error", err)
		return s
	}
	if snap.Deadlines != nil {
		s.deadlines = snap.Deadlines
	}
	if snap.Goals != nil {
		s.goals = snap.Goals
	}
	return s
}

// AddDeadline creates a deadline with status pending and zero progress,
// returning its normalized key. A key collision is an explicit error,
// not a silent overwrite.
func (s *Store) AddDeadline(name string, dueAt time.Time, category string, priority float64, description string, estimatedHours float64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := Key(name)
	if key == "" {
		return "", fmt.Errorf("deadline name is empty")
	}
	if _, ok := s.deadlines[key]; ok {
		return "", fmt.Errorf("deadline %q: %w", key, ErrExists)
	}

	s.deadlines[key] = Deadline{
		Name:           name,
		DueAt:          dueAt,
		Category:       category,
		Priority:       clamp01(priority),
		Description:    description,
		Status:         StatusPending,
		EstimatedHours: estimatedHours,
		Progress:       0.0,
		CreatedAt:      s.clock.Now(),
	}
	s.save()
	return key, nil
}

// PutDeadline stores a deadline under its normalized key, replacing any
// existing entry. The deliberate-overwrite counterpart to AddDeadline.
func (s *Store) PutDeadline(d Deadline) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := Key(d.Name)
	if d.Status == "" {
		d.Status = StatusPending
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = s.clock.Now()
	}
	d.Priority = clamp01(d.Priority)
	d.Progress = clamp01(d.Progress)
	s.deadlines[key] = d
	s.save()
	return key
}

// UpdateDeadline applies a partial update. Nil fields are left untouched;
// when both are nil the call is a no-op. Unknown keys return ErrNotFound.
func (s *Store) UpdateDeadline(key string, progress *float64, status *Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.deadlines[key]
	if !ok {
		return fmt.Errorf("deadline %q: %w", key, ErrNotFound)
	}
	if progress == nil && status == nil {
		return nil
	}
	if progress != nil {
		d.Progress = clamp01(*progress)
	}
	if status != nil {
		if !status.Valid() {
			return fmt.Errorf("invalid status %q", *status)
		}
		d.Status = *status
	}
	s.deadlines[key] = d
	s.save()
	return nil
}

// RemoveDeadline deletes by key. Removal is only ever explicit; overdue
// deadlines are never dropped automatically.
func (s *Store) RemoveDeadline(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.deadlines[key]; !ok {
		return fmt.Errorf("deadline %q: %w", key, ErrNotFound)
	}
	delete(s.deadlines, key)
	s.save()
	return nil
}

// GetDeadline returns the deadline stored under key.
func (s *Store) GetDeadline(key string) (Deadline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.deadlines[key]
	if !ok {
		return Deadline{}, fmt.Errorf("deadline %q: %w", key, ErrNotFound)
	}
	return d, nil
}

// Deadlines returns all deadlines sorted by due date ascending.
func (s *Store) Deadlines() []Deadline {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Deadline, 0, len(s.deadlines))
	for _, d := range s.deadlines {
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DueAt.Before(out[j].DueAt)
	})
	return out
}

// Urgent returns pending or in-progress deadlines due within
// daysThreshold days, soonest first, higher priority breaking same-day
// ties. Already-overdue items are excluded; they surface as alerts.
func (s *Store) Urgent(daysThreshold int) []Deadline {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	var urgent []Deadline
	for _, d := range s.deadlines {
		if d.Status != StatusPending && d.Status != StatusInProgress {
			continue
		}
		days := d.DaysUntilDue(now)
		if days < 0 || days > daysThreshold || d.DueAt.Before(now) {
			continue
		}
		urgent = append(urgent, d)
	}
	sort.SliceStable(urgent, func(i, j int) bool {
		di, dj := urgent[i].DaysUntilDue(now), urgent[j].DaysUntilDue(now)
		if di != dj {
			return di < dj
		}
		return urgent[i].Priority > urgent[j].Priority
	})
	return urgent
}

// AddGoal stores a goal under its normalized name.
func (s *Store) AddGoal(g Goal) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := Key(g.Name)
	if key == "" {
		return "", fmt.Errorf("goal name is empty")
	}
	if _, ok := s.goals[key]; ok {
		return "", fmt.Errorf("goal %q: %w", key, ErrExists)
	}
	g.Progress = clamp01(g.Progress)
	if g.Streak < 0 {
		g.Streak = 0
	}
	s.goals[key] = g
	s.save()
	return key, nil
}

// GetGoal returns the goal stored under key.
func (s *Store) GetGoal(key string) (Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.goals[key]
	if !ok {
		return Goal{}, fmt.Errorf("goal %q: %w", key, ErrNotFound)
	}
	return g, nil
}

// Goals returns all goals sorted by target date ascending.
func (s *Store) Goals() []Goal {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Goal, 0, len(s.goals))
	for _, g := range s.goals {
		out = append(out, g)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TargetDate.Before(out[j].TargetDate)
	})
	return out
}

// UpdateGoalProgress sets a goal's overall progress fraction.
func (s *Store) UpdateGoalProgress(key string, progress float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.goals[key]
	if !ok {
		return fmt.Errorf("goal %q: %w", key, ErrNotFound)
	}
	g.Progress = clamp01(progress)
	s.goals[key] = g
	s.save()
	return nil
}

// CompleteDailyGoal marks today's requirement done: lastCompleted moves
// to now and the streak increments. No upper bound on streak.
func (s *Store) CompleteDailyGoal(key string) (Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.goals[key]
	if !ok {
		return Goal{}, fmt.Errorf("goal %q: %w", key, ErrNotFound)
	}
	now := s.clock.Now()
	g.LastCompleted = &now
	g.Streak++
	s.goals[key] = g
	s.save()
	return g, nil
}

// ResetStreak zeroes a goal's streak. Missing a day never resets the
// streak automatically; this is the explicit reset for users who want
// strict rules.
func (s *Store) ResetStreak(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.goals[key]
	if !ok {
		return fmt.Errorf("goal %q: %w", key, ErrNotFound)
	}
	g.Streak = 0
	s.goals[key] = g
	s.save()
	return nil
}

// save rewrites the full document atomically. Caller must hold mu.
func (s *Store) save() {
	if s.path == "" {
		return
	}
	snap := snapshot{Deadlines: s.deadlines, Goals: s.goals}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		slog.Error("tracker: encoding state failed", "error", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		slog.Error("tracker: creating data directory failed", "error", err)
		return
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		slog.Error("tracker: writing state failed", "error", err)
		return
	}
	if err := os.Rename(tmp, s.path); err != nil {
		slog.Error("tracker: replacing state file failed", "error", err)
	}
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
