package tracker

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}

type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func newMockClock() *mockClock {
	return &mockClock{now: time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)}
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func days(n int) time.Duration { return time.Duration(n) * 24 * time.Hour }

func TestKeyNormalization(t *testing.T) {
	if got := Key("Database Systems Exam"); got != "database_systems_exam" {
		t.Errorf("Key = %q", got)
	}
	if got := Key("  Trim Me  "); got != "trim_me" {
		t.Errorf("Key = %q", got)
	}
}

func TestAddDeadlineDefaults(t *testing.T) {
	clock := newMockClock()
	s := NewInMemory(clock)

	key, err := s.AddDeadline("Exam", clock.Now().Add(days(2)), "academic", 0.9, "", 2.0)
	if err != nil {
		t.Fatalf("AddDeadline: %v", err)
	}

	d, err := s.GetDeadline(key)
	if err != nil {
		t.Fatalf("GetDeadline: %v", err)
	}
	if d.Status != StatusPending {
		t.Errorf("status = %s, want pending", d.Status)
	}
	if d.Progress != 0.0 {
		t.Errorf("progress = %v, want 0", d.Progress)
	}
}

func TestAddDeadlineCollisionErrors(t *testing.T) {
	s := NewInMemory(newMockClock())

	if _, err := s.AddDeadline("Exam", time.Now(), "academic", 0.5, "", 1); err != nil {
		t.Fatal(err)
	}
	_, err := s.AddDeadline("exam", time.Now(), "academic", 0.5, "", 1)
	if !errors.Is(err, ErrExists) {
		t.Errorf("expected ErrExists for colliding key, got %v", err)
	}
}

func TestPutDeadlineOverwrites(t *testing.T) {
	clock := newMockClock()
	s := NewInMemory(clock)

	s.PutDeadline(Deadline{Name: "Exam", DueAt: clock.Now().Add(days(2)), Priority: 0.5})
	s.PutDeadline(Deadline{Name: "Exam", DueAt: clock.Now().Add(days(3)), Priority: 0.9})

	d, err := s.GetDeadline("exam")
	if err != nil {
		t.Fatal(err)
	}
	if d.Priority != 0.9 {
		t.Errorf("overwrite did not take: priority = %v", d.Priority)
	}
}

func TestUpdateDeadlineNotFound(t *testing.T) {
	s := NewInMemory(newMockClock())
	p := 0.5
	if err := s.UpdateDeadline("ghost", &p, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateDeadlineBothNilIsNoOp(t *testing.T) {
	clock := newMockClock()
	s := NewInMemory(clock)
	key, _ := s.AddDeadline("Exam", clock.Now().Add(days(2)), "academic", 0.9, "", 2.0)

	if err := s.UpdateDeadline(key, nil, nil); err != nil {
		t.Fatalf("no-op update errored: %v", err)
	}
	d, _ := s.GetDeadline(key)
	if d.Progress != 0 || d.Status != StatusPending {
		t.Error("no-op update mutated the deadline")
	}
}

func TestUrgentOrdering(t *testing.T) {
	clock := newMockClock()
	s := NewInMemory(clock)

	// Same-day ties break by priority descending; otherwise soonest first.
	s.PutDeadline(Deadline{Name: "later", DueAt: clock.Now().Add(days(5)), Priority: 1.0, Status: StatusPending})
	s.PutDeadline(Deadline{Name: "soon low", DueAt: clock.Now().Add(days(2)), Priority: 0.3, Status: StatusPending})
	s.PutDeadline(Deadline{Name: "soon high", DueAt: clock.Now().Add(days(2)).Add(time.Hour), Priority: 0.9, Status: StatusInProgress})
	s.PutDeadline(Deadline{Name: "done", DueAt: clock.Now().Add(days(1)), Priority: 1.0, Status: StatusCompleted})
	s.PutDeadline(Deadline{Name: "far", DueAt: clock.Now().Add(days(30)), Priority: 1.0, Status: StatusPending})

	got := s.Urgent(7)
	want := []string{"soon high", "soon low", "later"}
	if len(got) != len(want) {
		t.Fatalf("Urgent returned %d items, want %d", len(got), len(want))
	}
	for i, name := range want {
		if got[i].Name != name {
			t.Errorf("position %d = %q, want %q", i, got[i].Name, name)
		}
	}
}

func TestUrgentScenario(t *testing.T) {
	clock := newMockClock()
	s := NewInMemory(clock)

	key, err := s.AddDeadline("Exam", clock.Now().Add(days(2)), "academic", 0.9, "", 2.0)
	if err != nil {
		t.Fatal(err)
	}

	urgent := s.Urgent(7)
	if len(urgent) != 1 {
		t.Fatalf("expected exactly one urgent deadline, got %d", len(urgent))
	}
	if d := urgent[0].DaysUntilDue(clock.Now()); d != 2 {
		t.Errorf("daysUntilDue = %d, want 2", d)
	}

	done := StatusCompleted
	if err := s.UpdateDeadline(key, nil, &done); err != nil {
		t.Fatal(err)
	}
	if got := s.Urgent(7); len(got) != 0 {
		t.Errorf("completed deadline still urgent: %d items", len(got))
	}
}

func TestOverdueIsDerivedNotPersisted(t *testing.T) {
	clock := newMockClock()
	dir := t.TempDir()
	path := filepath.Join(dir, "tracker.json")

	s := openWithClock(path, clock)
	key, _ := s.AddDeadline("Pay salary", clock.Now().Add(days(1)), "business", 1.0, "", 0.5)

	clock.Advance(days(2))
	d, _ := s.GetDeadline(key)
	if !d.Overdue(clock.Now()) {
		t.Fatal("expected overdue after due date passed")
	}
	if d.Status != StatusPending {
		t.Errorf("stored status mutated to %s; overdue must stay derived", d.Status)
	}

	// Reload from disk: status on disk is still pending.
	reloaded := openWithClock(path, clock)
	d2, err := reloaded.GetDeadline(key)
	if err != nil {
		t.Fatal(err)
	}
	if d2.Status != StatusPending {
		t.Errorf("persisted status = %s, want pending", d2.Status)
	}
}

func TestCompleteDailyGoalIncrementsStreak(t *testing.T) {
	clock := newMockClock()
	s := NewInMemory(clock)

	key, err := s.AddGoal(Goal{
		Name:             "75 Hard",
		Category:         "personal",
		TargetDate:       clock.Now().Add(days(50)),
		DailyRequirement: "workout, read, hydrate",
		Streak:           24,
	})
	if err != nil {
		t.Fatal(err)
	}

	g, err := s.CompleteDailyGoal(key)
	if err != nil {
		t.Fatal(err)
	}
	if g.Streak != 25 {
		t.Errorf("streak = %d, want 25", g.Streak)
	}
	if g.LastCompleted == nil || !g.LastCompleted.Equal(clock.Now()) {
		t.Errorf("lastCompleted = %v, want %v", g.LastCompleted, clock.Now())
	}
}

func TestStreakAtRiskDoesNotReset(t *testing.T) {
	clock := newMockClock()
	s := NewInMemory(clock)

	key, _ := s.AddGoal(Goal{
		Name:             "75 Hard",
		TargetDate:       clock.Now().Add(days(50)),
		DailyRequirement: "workout",
	})
	if _, err := s.CompleteDailyGoal(key); err != nil {
		t.Fatal(err)
	}

	clock.Advance(days(3))
	g, _ := s.GetGoal(key)
	if !g.StreakAtRisk(clock.Now()) {
		t.Error("expected streak at risk after 3-day gap")
	}
	if g.Streak != 1 {
		t.Errorf("streak auto-reset to %d; policy is freeze-and-flag", g.Streak)
	}

	if err := s.ResetStreak(key); err != nil {
		t.Fatal(err)
	}
	g, _ = s.GetGoal(key)
	if g.Streak != 0 {
		t.Errorf("explicit reset failed, streak = %d", g.Streak)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	clock := newMockClock()
	path := filepath.Join(t.TempDir(), "tracker.json")

	s := openWithClock(path, clock)
	if _, err := s.AddDeadline("Exam", clock.Now().Add(days(2)), "academic", 0.9, "final exam", 2.0); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddGoal(Goal{Name: "Graduate", TargetDate: clock.Now().Add(days(120))}); err != nil {
		t.Fatal(err)
	}

	reloaded := openWithClock(path, clock)
	if got := len(reloaded.Deadlines()); got != 1 {
		t.Errorf("reloaded %d deadlines, want 1", got)
	}
	if got := len(reloaded.Goals()); got != 1 {
		t.Errorf("reloaded %d goals, want 1", got)
	}
}

func TestMalformedStateFileStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker.json")
	if err := writeFile(path, "{broken"); err != nil {
		t.Fatal(err)
	}

	s := openWithClock(path, newMockClock())
	if got := len(s.Deadlines()); got != 0 {
		t.Errorf("expected empty store from malformed file, got %d deadlines", got)
	}
	// Store must remain usable.
	if _, err := s.AddDeadline("Recovered", time.Now().Add(days(1)), "x", 0.5, "", 1); err != nil {
		t.Errorf("store unusable after malformed load: %v", err)
	}
}
