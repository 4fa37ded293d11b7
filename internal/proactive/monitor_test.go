package proactive

import (
	"errors"
	"testing"
	"time"

	"github.com/bowenhq/bowen/internal/storage"
	"github.com/bowenhq/bowen/internal/tracker"
)

type mockAlertLog struct {
	records []storage.AlertRecord
	logErr  error
}

func (l *mockAlertLog) LogAlert(a storage.AlertRecord) error {
	if l.logErr != nil {
		return l.logErr
	}
	l.records = append(l.records, a)
	return nil
}

func (l *mockAlertLog) AlertLoggedSince(message string, since time.Time) (bool, error) {
	for _, r := range l.records {
		if r.Message == message && !r.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func TestMonitorRecordsNewAlerts(t *testing.T) {
	clock := newMockClock()
	store := newStore(clock)
	store.PutDeadline(tracker.Deadline{
		Name:     "Pay rent",
		DueAt:    clock.Now().Add(-days(1)),
		Priority: 1.0,
		Status:   tracker.StatusPending,
	})

	log := &mockAlertLog{}
	m := NewMonitorWithClock(NewEvaluatorWithClock(store, nil, clock), log, time.Minute, clock)

	logged, err := m.RunOnce()
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if logged != 1 || len(log.records) != 1 {
		t.Fatalf("logged = %d, records = %d, want 1/1", logged, len(log.records))
	}
	if log.records[0].Priority != string(PriorityCritical) {
		t.Errorf("priority = %q", log.records[0].Priority)
	}
}

func TestMonitorSuppressesRepeats(t *testing.T) {
	clock := newMockClock()
	store := newStore(clock)
	store.PutDeadline(tracker.Deadline{
		Name:     "Pay rent",
		DueAt:    clock.Now().Add(-days(1)),
		Priority: 1.0,
		Status:   tracker.StatusPending,
	})

	log := &mockAlertLog{}
	m := NewMonitorWithClock(NewEvaluatorWithClock(store, nil, clock), log, time.Minute, clock)

	if _, err := m.RunOnce(); err != nil {
		t.Fatalf("first RunOnce: %v", err)
	}

	// An hour later the condition is unchanged; nothing new to record.
	clock.Advance(time.Hour)
	logged, err := m.RunOnce()
	if err != nil {
		t.Fatalf("second RunOnce: %v", err)
	}
	if logged != 0 || len(log.records) != 1 {
		t.Errorf("logged = %d, records = %d, want 0/1", logged, len(log.records))
	}

	// Past the suppression window it is recorded again.
	clock.Advance(25 * time.Hour)
	logged, err = m.RunOnce()
	if err != nil {
		t.Fatalf("third RunOnce: %v", err)
	}
	if logged != 1 || len(log.records) != 2 {
		t.Errorf("logged = %d, records = %d, want 1/2", logged, len(log.records))
	}
}

func TestMonitorNothingToRecord(t *testing.T) {
	clock := newMockClock()
	store := newStore(clock)

	log := &mockAlertLog{}
	m := NewMonitorWithClock(NewEvaluatorWithClock(store, nil, clock), log, time.Minute, clock)

	logged, err := m.RunOnce()
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if logged != 0 || len(log.records) != 0 {
		t.Errorf("logged = %d, records = %d, want 0/0", logged, len(log.records))
	}
}

func TestMonitorPropagatesLogError(t *testing.T) {
	clock := newMockClock()
	store := newStore(clock)
	store.PutDeadline(tracker.Deadline{
		Name:     "Pay rent",
		DueAt:    clock.Now().Add(-days(1)),
		Priority: 1.0,
		Status:   tracker.StatusPending,
	})

	log := &mockAlertLog{logErr: errors.New("disk full")}
	m := NewMonitorWithClock(NewEvaluatorWithClock(store, nil, clock), log, time.Minute, clock)

	if _, err := m.RunOnce(); err == nil {
		t.Fatal("expected error")
	}
}
