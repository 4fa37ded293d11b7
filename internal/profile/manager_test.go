package profile

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type mockClock struct {
	mu  sync.Mutex
	now time.Time
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

type mockStore struct {
	mu       sync.Mutex
	keys     map[string]string
	getAll   int
	getErr   error
	setErr   error
	setCalls []string
}

func newMockStore() *mockStore {
	return &mockStore{keys: make(map[string]string)}
}

func (s *mockStore) SetProfileKey(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.keys[key] = value
	s.setCalls = append(s.setCalls, key)
	return nil
}

func (s *mockStore) GetProfileKey(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.keys[key]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}

func (s *mockStore) GetAllProfileKeys() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getAll++
	if s.getErr != nil {
		return nil, s.getErr
	}
	out := make(map[string]string, len(s.keys))
	for k, v := range s.keys {
		out[k] = v
	}
	return out, nil
}

func TestGetProfileAssemblesFromFlatKeys(t *testing.T) {
	store := newMockStore()
	store.keys["identity.preferred_name"] = "Bowen"
	store.keys["identity.roles"] = `["student","runner"]`
	store.keys["identity.timezone"] = "America/New_York"
	store.keys["persona"] = "coach"
	store.keys["values"] = `["discipline","curiosity"]`
	store.keys["focus_areas"] = `["CS 301","marathon training"]`
	store.keys["communication.tone"] = "direct"
	store.keys["communication.detail_level"] = "concise"

	m := NewManager(store)
	p, err := m.GetProfile()
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}

	if p.Identity.PreferredName != "Bowen" {
		t.Errorf("preferred name = %q, want Bowen", p.Identity.PreferredName)
	}
	if len(p.Identity.Roles) != 2 || p.Identity.Roles[0] != "student" {
		t.Errorf("roles = %v", p.Identity.Roles)
	}
	if p.ActivePersona != "coach" {
		t.Errorf("persona = %q", p.ActivePersona)
	}
	if len(p.Values) != 2 || p.Values[1] != "curiosity" {
		t.Errorf("values = %v", p.Values)
	}
	if p.Communication.Tone != "direct" || p.Communication.DetailLevel != "concise" {
		t.Errorf("communication = %+v", p.Communication)
	}
}

func TestGetProfileUsesCacheWithinTTL(t *testing.T) {
	store := newMockStore()
	store.keys["persona"] = "coach"
	clock := &mockClock{now: time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)}
	m := NewManagerWithClock(store, clock, time.Minute)

	if _, err := m.GetProfile(); err != nil {
		t.Fatalf("first GetProfile: %v", err)
	}
	if _, err := m.GetProfile(); err != nil {
		t.Fatalf("second GetProfile: %v", err)
	}
	if store.getAll != 1 {
		t.Errorf("store reads = %d, want 1 (cached)", store.getAll)
	}

	clock.Advance(2 * time.Minute)
	if _, err := m.GetProfile(); err != nil {
		t.Fatalf("third GetProfile: %v", err)
	}
	if store.getAll != 2 {
		t.Errorf("store reads = %d, want 2 (TTL expired)", store.getAll)
	}
}

func TestSetFieldInvalidatesCache(t *testing.T) {
	store := newMockStore()
	clock := &mockClock{now: time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)}
	m := NewManagerWithClock(store, clock, time.Hour)

	if _, err := m.GetProfile(); err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if err := m.SetField("persona", "tutor"); err != nil {
		t.Fatalf("SetField: %v", err)
	}

	p, err := m.GetProfile()
	if err != nil {
		t.Fatalf("GetProfile after set: %v", err)
	}
	if p.ActivePersona != "tutor" {
		t.Errorf("persona = %q, want tutor", p.ActivePersona)
	}
}

func TestSetFieldMarshalsNonStrings(t *testing.T) {
	store := newMockStore()
	m := NewManager(store)

	if err := m.SetField("values", []string{"honesty", "grit"}); err != nil {
		t.Fatalf("SetField: %v", err)
	}
	if got := store.keys["values"]; got != `["honesty","grit"]` {
		t.Errorf("stored value = %q", got)
	}
}

func TestSetFieldPropagatesStoreError(t *testing.T) {
	store := newMockStore()
	store.setErr = errors.New("disk full")
	m := NewManager(store)

	if err := m.SetField("persona", "coach"); err == nil {
		t.Fatal("expected error")
	}
}

func TestMalformedJSONKeyIsSkipped(t *testing.T) {
	store := newMockStore()
	store.keys["values"] = "{not json"
	store.keys["persona"] = "coach"
	m := NewManager(store)

	p, err := m.GetProfile()
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if p.Values != nil {
		t.Errorf("values = %v, want nil", p.Values)
	}
	if p.ActivePersona != "coach" {
		t.Errorf("persona = %q", p.ActivePersona)
	}
}

func TestSummaryMentionsConfiguredFields(t *testing.T) {
	store := newMockStore()
	store.keys["identity.preferred_name"] = "Bowen"
	store.keys["persona"] = "coach"
	store.keys["focus_areas"] = `["CS 301"]`
	m := NewManager(store)

	s, err := m.Summary()
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	for _, want := range []string{"Bowen", "coach", "CS 301"} {
		if !strings.Contains(s, want) {
			t.Errorf("summary %q missing %q", s, want)
		}
	}
}

func TestSummaryEmptyProfile(t *testing.T) {
	m := NewManager(newMockStore())
	s, err := m.Summary()
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if s != "User profile: not yet configured." {
		t.Errorf("summary = %q", s)
	}
}

func TestSummaryCappedForPromptInjection(t *testing.T) {
	store := newMockStore()
	long := strings.Repeat("a very long value statement, ", 200)
	store.keys["values"] = `["` + long + `"]`
	m := NewManager(store)

	s, err := m.Summary()
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if len(s) > maxSummaryChars {
		t.Errorf("summary length = %d, want <= %d", len(s), maxSummaryChars)
	}
}
