package proactive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bowenhq/bowen/internal/storage"
)

// AlertLog abstracts the alert history the monitor writes to.
// Implemented by storage.Store.
type AlertLog interface {
	LogAlert(storage.AlertRecord) error
	AlertLoggedSince(message string, since time.Time) (bool, error)
}

// Monitor periodically evaluates alerts and records new ones in the
// alert history. An alert with the same message is recorded at most
// once per suppression window, so an unchanged overdue deadline does
// not flood the log.
type Monitor struct {
	evaluator *Evaluator
	log       AlertLog
	poll      time.Duration
	suppress  time.Duration
	clock     Clock
	logger    *slog.Logger
}

// NewMonitor creates a Monitor. If pollInterval is <= 0, it defaults to
// 15 minutes; the suppression window is 24 hours.
func NewMonitor(evaluator *Evaluator, log AlertLog, pollInterval time.Duration) *Monitor {
	if pollInterval <= 0 {
		pollInterval = 15 * time.Minute
	}
	return &Monitor{
		evaluator: evaluator,
		log:       log,
		poll:      pollInterval,
		suppress:  24 * time.Hour,
		clock:     realClock{},
		logger:    slog.Default(),
	}
}

// NewMonitorWithClock creates a Monitor with a custom clock (for testing).
func NewMonitorWithClock(evaluator *Evaluator, log AlertLog, pollInterval time.Duration, clock Clock) *Monitor {
	m := NewMonitor(evaluator, log, pollInterval)
	m.clock = clock
	return m
}

// Run evaluates on an interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		logged, err := m.RunOnce()
		if err != nil {
			m.logger.Error("alert sweep failed", "error", err)
		} else if logged > 0 {
			m.logger.Info("alerts recorded", "count", logged)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(m.poll):
		}
	}
}

// RunOnce evaluates current alerts and records those not already logged
// within the suppression window. Returns the number recorded.
func (m *Monitor) RunOnce() (int, error) {
	since := m.clock.Now().Add(-m.suppress)
	return RecordAlerts(m.evaluator.CriticalAlerts(), m.log, since)
}

// RecordAlerts writes alerts to the history, skipping any whose message
// was already logged at or after since. Returns the number recorded.
func RecordAlerts(alerts []Alert, log AlertLog, since time.Time) (int, error) {
	logged := 0
	for _, a := range alerts {
		seen, err := log.AlertLoggedSince(a.Message, since)
		if err != nil {
			return logged, fmt.Errorf("checking alert history: %w", err)
		}
		if seen {
			continue
		}

		rec := storage.AlertRecord{
			ID:             a.ID,
			CreatedAt:      a.CreatedAt,
			Message:        a.Message,
			Priority:       string(a.Priority),
			Category:       a.Category,
			ActionRequired: a.ActionRequired,
			Deadline:       a.Deadline,
		}
		if err := log.LogAlert(rec); err != nil {
			return logged, fmt.Errorf("recording alert: %w", err)
		}
		logged++
	}
	return logged, nil
}
