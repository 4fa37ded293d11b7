package memory

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// --- Mock clock ---

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

// --- Mock snapshotter ---

type mockSnapshotter struct {
	mu        sync.Mutex
	saved     Snapshot
	saveCalls int
	loadSnap  Snapshot
	loadErr   error
	saveErr   error
}

func (s *mockSnapshotter) Save(snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveCalls++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = snap
	return nil
}

func (s *mockSnapshotter) Load() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadSnap, s.loadErr
}

func days(n int) time.Duration { return time.Duration(n) * 24 * time.Hour }

// --- Staleness ---

func TestStaleThresholdByCategory(t *testing.T) {
	cases := []struct {
		category Category
		want     int
	}{
		{CategoryIdentity, 365},
		{CategoryValues, 180},
		{CategoryGoals, 30},
		{CategoryStatus, 7},
		{CategoryTask, 1},
		{CategoryKnowledge, 30},
		{Category("unmapped"), 30},
	}
	for _, tc := range cases {
		if got := tc.category.StaleDays(); got != tc.want {
			t.Errorf("StaleDays(%s) = %d, want %d", tc.category, got, tc.want)
		}
	}
}

func TestIsStaleTransitionsOnce(t *testing.T) {
	clock := newMockClock()
	rec := Record{Category: CategoryStatus, LastVerified: clock.Now()}

	// Fresh through the whole 7-day window.
	for day := 0; day <= 7; day++ {
		if rec.IsStale(rec.LastVerified.Add(days(day))) {
			t.Fatalf("record stale at day %d, threshold is 7", day)
		}
	}
	// Stale from day 8 onward, and it never reverts.
	for day := 8; day <= 30; day++ {
		if !rec.IsStale(rec.LastVerified.Add(days(day))) {
			t.Fatalf("record fresh at day %d, expected stale", day)
		}
	}
}

func TestIsStaleAfterRefresh(t *testing.T) {
	clock := newMockClock()
	mgr := NewManagerWithClock(&mockSnapshotter{}, Limits{}, clock)

	rec := mgr.AddSemantic("currently a senior taking 6 classes", CategoryStatus, 0.7, "user")
	clock.Advance(days(8))

	stale := mgr.IdentifyStale()
	if len(stale) != 1 || stale[0].ID != rec.ID {
		t.Fatalf("expected 1 stale record, got %d", len(stale))
	}

	refreshed, ok := mgr.Refresh(rec.ID, "", true)
	if !ok {
		t.Fatal("Refresh reported record not found")
	}
	if refreshed.IsStale(clock.Now()) {
		t.Error("record still stale after refresh")
	}
	if got := mgr.IdentifyStale(); len(got) != 0 {
		t.Errorf("expected no stale records after refresh, got %d", len(got))
	}
}

// --- Working tier capacity ---

func TestWorkingCapacityEvictsOldestToEpisodic(t *testing.T) {
	clock := newMockClock()
	store := &mockSnapshotter{}
	mgr := NewManagerWithClock(store, Limits{WorkingCapacity: 10}, clock)

	var first Record
	for i := 0; i < 11; i++ {
		rec := mgr.AddWorking(fmt.Sprintf("task %d", i), CategoryTask, 0.5, "test")
		if i == 0 {
			first = rec
		}
		clock.Advance(time.Minute)

		if w, _, _ := mgr.Counts(); w > 10 {
			t.Fatalf("working tier exceeded capacity after add %d: %d", i, w)
		}
	}

	working, episodic, _ := mgr.Counts()
	if working != 10 {
		t.Errorf("working tier = %d, want 10", working)
	}
	if episodic != 1 {
		t.Fatalf("episodic tier = %d, want 1", episodic)
	}

	moved := mgr.Records(TierEpisodic)[0]
	if moved.ID != first.ID {
		t.Errorf("evicted record is not the oldest: got %q", moved.Content)
	}
	if moved.Tier != TierEpisodic {
		t.Errorf("evicted record tier = %s, want episodic", moved.Tier)
	}

	remaining := mgr.Records(TierWorking)
	if remaining[0].Content != "task 1" {
		t.Errorf("working tier head = %q, want \"task 1\"", remaining[0].Content)
	}
}

// --- Retention ---

func TestEpisodicRetentionDropsOldest(t *testing.T) {
	clock := newMockClock()
	mgr := NewManagerWithClock(&mockSnapshotter{}, Limits{EpisodicRetention: 3}, clock)

	for i := 0; i < 5; i++ {
		mgr.AddEpisodic(fmt.Sprintf("interaction %d", i), CategoryTask, 0.5, "test")
		clock.Advance(time.Minute)
	}

	got := mgr.Records(TierEpisodic)
	if len(got) != 3 {
		t.Fatalf("episodic tier = %d records, want 3", len(got))
	}
	if got[0].Content != "interaction 2" {
		t.Errorf("oldest surviving record = %q, want \"interaction 2\"", got[0].Content)
	}
}

func TestSemanticRetentionKeepsMostImportant(t *testing.T) {
	clock := newMockClock()
	mgr := NewManagerWithClock(&mockSnapshotter{}, Limits{SemanticRetention: 2}, clock)

	mgr.AddSemantic("low", CategoryKnowledge, 0.2, "test")
	mgr.AddSemantic("high", CategoryKnowledge, 0.9, "test")
	mgr.AddSemantic("mid", CategoryKnowledge, 0.5, "test")

	got := mgr.Records(TierSemantic)
	if len(got) != 2 {
		t.Fatalf("semantic tier = %d records, want 2", len(got))
	}
	for _, r := range got {
		if r.Content == "low" {
			t.Error("least important record survived retention")
		}
	}
}

// --- Refresh ---

func TestRefreshIdempotent(t *testing.T) {
	clock := newMockClock()
	mgr := NewManagerWithClock(&mockSnapshotter{}, Limits{}, clock)

	rec := mgr.AddSemantic("ships products under the family name", CategoryValues, 0.9, "user")

	first, ok := mgr.Refresh(rec.ID, "", true)
	if !ok {
		t.Fatal("first refresh: record not found")
	}
	second, ok := mgr.Refresh(rec.ID, "", true)
	if !ok {
		t.Fatal("second refresh: record not found")
	}

	if first.Confidence != second.Confidence {
		t.Errorf("confidence changed on repeat refresh: %v → %v", first.Confidence, second.Confidence)
	}
	if !first.LastVerified.Equal(second.LastVerified) {
		t.Errorf("lastVerified changed on repeat refresh: %v → %v", first.LastVerified, second.LastVerified)
	}
}

func TestRefreshUnverifiedLowersConfidence(t *testing.T) {
	mgr := NewManagerWithClock(&mockSnapshotter{}, Limits{}, newMockClock())

	rec := mgr.AddSemantic("graduating in May", CategoryGoals, 0.8, "user")
	got, ok := mgr.Refresh(rec.ID, "graduation pushed to December", false)
	if !ok {
		t.Fatal("record not found")
	}
	if got.Confidence != 0.5 {
		t.Errorf("confidence = %v, want 0.5", got.Confidence)
	}
	if got.Content != "graduation pushed to December" {
		t.Errorf("content not replaced: %q", got.Content)
	}
}

func TestRefreshUnknownIDIsNoOp(t *testing.T) {
	store := &mockSnapshotter{}
	mgr := NewManagerWithClock(store, Limits{}, newMockClock())
	mgr.AddSemantic("a fact", CategoryKnowledge, 0.5, "user")

	before := store.saveCalls
	if _, ok := mgr.Refresh("no-such-id", "new content", true); ok {
		t.Fatal("Refresh of unknown ID reported found")
	}
	if store.saveCalls != before {
		t.Error("no-op refresh triggered a save")
	}
}

// --- Persistence behavior ---

func TestManagerLoadsPersistedState(t *testing.T) {
	clock := newMockClock()
	store := &mockSnapshotter{
		loadSnap: Snapshot{
			Semantic: []Record{{
				ID:           "abc",
				Content:      "persisted fact",
				Tier:         TierSemantic,
				Category:     CategoryIdentity,
				Importance:   1.0,
				Confidence:   1.0,
				CreatedAt:    clock.Now().Add(-days(2)),
				LastVerified: clock.Now().Add(-days(2)),
			}},
		},
	}

	mgr := NewManagerWithClock(store, Limits{}, clock)
	_, _, semantic := mgr.Counts()
	if semantic != 1 {
		t.Fatalf("semantic tier = %d after load, want 1", semantic)
	}
}

func TestManagerStartsEmptyOnLoadFailure(t *testing.T) {
	store := &mockSnapshotter{loadErr: fmt.Errorf("corrupt json")}
	mgr := NewManagerWithClock(store, Limits{}, newMockClock())

	w, e, s := mgr.Counts()
	if w+e+s != 0 {
		t.Errorf("expected empty state after load failure, got %d/%d/%d", w, e, s)
	}

	// The manager must stay usable.
	mgr.AddSemantic("fresh start", CategoryKnowledge, 0.5, "user")
	if _, _, s := mgr.Counts(); s != 1 {
		t.Error("manager unusable after load failure")
	}
}

func TestSaveFailureDoesNotPropagate(t *testing.T) {
	store := &mockSnapshotter{saveErr: fmt.Errorf("disk full")}
	mgr := NewManagerWithClock(store, Limits{}, newMockClock())

	// No panic, no error surface: the record is still held in memory.
	rec := mgr.AddWorking("unsaved", CategoryTask, 0.5, "user")
	if rec.ID == "" {
		t.Fatal("record not created despite save failure")
	}
	if w, _, _ := mgr.Counts(); w != 1 {
		t.Error("record lost on save failure")
	}
}

func TestWeeklyQuestionsIncludeStaleFacts(t *testing.T) {
	clock := newMockClock()
	mgr := NewManagerWithClock(&mockSnapshotter{}, Limits{}, clock)

	mgr.AddSemantic("team salaries due monthly", CategoryStatus, 0.9, "user")
	clock.Advance(days(10))

	questions := mgr.WeeklyQuestions()
	if len(questions) != 6 {
		t.Fatalf("expected 6 questions (1 stale + 5 standing), got %d", len(questions))
	}
	if questions[0] != "Still true: team salaries due monthly?" {
		t.Errorf("unexpected stale prompt: %q", questions[0])
	}
}
