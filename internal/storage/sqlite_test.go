package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening in-memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInteractionRoundTrip(t *testing.T) {
	s := openTestStore(t)

	i := Interaction{
		ID:             ulid.Make().String(),
		CreatedAt:      time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC),
		Persona:        "captain",
		UserInput:      "what's due this week?",
		AssistantReply: "two deadlines",
		ContextChars:   420,
	}
	if err := s.SaveInteraction(i); err != nil {
		t.Fatalf("SaveInteraction: %v", err)
	}

	got, err := s.RecentInteractions(10)
	if err != nil {
		t.Fatalf("RecentInteractions: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 interaction, got %d", len(got))
	}
	if got[0].UserInput != i.UserInput || got[0].ContextChars != 420 {
		t.Errorf("round trip mismatch: %+v", got[0])
	}
}

func TestConversationContextOrderAndFilter(t *testing.T) {
	s := openTestStore(t)

	for idx, input := range []string{"first", "second", "third"} {
		err := s.SaveInteraction(Interaction{
			ID:        ulid.Make().String(),
			CreatedAt: time.Now().UTC(),
			Persona:   "captain",
			UserInput: input,
		})
		if err != nil {
			t.Fatalf("save %d: %v", idx, err)
		}
	}
	if err := s.SaveInteraction(Interaction{
		ID:        ulid.Make().String(),
		CreatedAt: time.Now().UTC(),
		Persona:   "scout",
		UserInput: "other persona",
	}); err != nil {
		t.Fatal(err)
	}

	got, err := s.ConversationContext("captain", 2)
	if err != nil {
		t.Fatalf("ConversationContext: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(got))
	}
	// Oldest-first within the window: the last two saved were second, third.
	if got[0].UserInput != "second" || got[1].UserInput != "third" {
		t.Errorf("wrong order: %q, %q", got[0].UserInput, got[1].UserInput)
	}
	for _, i := range got {
		if i.Persona != "captain" {
			t.Errorf("persona filter leaked: %s", i.Persona)
		}
	}
}

func TestAlertRoundTrip(t *testing.T) {
	s := openTestStore(t)

	due := time.Date(2026, 1, 14, 17, 0, 0, 0, time.UTC)
	a := AlertRecord{
		ID:             ulid.Make().String(),
		CreatedAt:      time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC),
		Message:        "Pay salary is overdue",
		Priority:       "critical",
		Category:       "business",
		ActionRequired: true,
		Deadline:       &due,
	}
	if err := s.LogAlert(a); err != nil {
		t.Fatalf("LogAlert: %v", err)
	}

	got, err := s.RecentAlerts(5)
	if err != nil {
		t.Fatalf("RecentAlerts: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(got))
	}
	if !got[0].ActionRequired {
		t.Error("action_required lost in round trip")
	}
	if got[0].Deadline == nil || !got[0].Deadline.Equal(due) {
		t.Errorf("deadline lost in round trip: %v", got[0].Deadline)
	}
}

func TestAlertWithoutDeadline(t *testing.T) {
	s := openTestStore(t)

	if err := s.LogAlert(AlertRecord{
		ID:        ulid.Make().String(),
		CreatedAt: time.Now().UTC(),
		Message:   "streak at risk",
		Priority:  "high",
	}); err != nil {
		t.Fatalf("LogAlert: %v", err)
	}
	got, err := s.RecentAlerts(1)
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Deadline != nil {
		t.Errorf("expected nil deadline, got %v", got[0].Deadline)
	}
}

func TestProfileKeys(t *testing.T) {
	s := openTestStore(t)

	if err := s.SetProfileKey("identity.preferred_name", "Yimi"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetProfileKey("identity.preferred_name", "Praise"); err != nil {
		t.Fatal(err)
	}

	v, err := s.GetProfileKey("identity.preferred_name")
	if err != nil {
		t.Fatal(err)
	}
	if v != "Praise" {
		t.Errorf("upsert did not replace: %q", v)
	}

	if _, err := s.GetProfileKey("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	all, err := s.GetAllProfileKeys()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("expected 1 key, got %d", len(all))
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	s := openTestStore(t)
	if err := s.migrate(); err != nil {
		t.Fatalf("second migrate pass failed: %v", err)
	}
}
