// Package profile provides cached, structured access to the user profile
// stored as flat key-value pairs in SQLite.
package profile

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// ProfileStore defines the storage operations the Manager needs.
// Implemented by storage.Store.
type ProfileStore interface {
	SetProfileKey(key, value string) error
	GetProfileKey(key string) (string, error)
	GetAllProfileKeys() (map[string]string, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Manager caches the assembled Profile with a short TTL so per-turn
// prompt construction doesn't hit SQLite every time.
type Manager struct {
	store ProfileStore
	clock Clock
	ttl   time.Duration

	mu       sync.RWMutex
	cached   *Profile
	cachedAt time.Time
}

// NewManager creates a Manager with a 60-second cache TTL.
func NewManager(store ProfileStore) *Manager {
	return &Manager{store: store, clock: realClock{}, ttl: 60 * time.Second}
}

// NewManagerWithClock creates a Manager with a custom clock (for testing).
func NewManagerWithClock(store ProfileStore, clock Clock, ttl time.Duration) *Manager {
	return &Manager{store: store, clock: clock, ttl: ttl}
}

// GetProfile reads all profile keys from storage (or cache) and
// assembles a structured Profile. An empty store yields a zero Profile.
func (m *Manager) GetProfile() (Profile, error) {
	m.mu.RLock()
	if m.cached != nil && m.clock.Now().Before(m.cachedAt.Add(m.ttl)) {
		p := copyProfile(m.cached)
		m.mu.RUnlock()
		return p, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cached != nil && m.clock.Now().Before(m.cachedAt.Add(m.ttl)) {
		return copyProfile(m.cached), nil
	}

	keys, err := m.store.GetAllProfileKeys()
	if err != nil {
		return Profile{}, fmt.Errorf("loading profile keys: %w", err)
	}

	p := buildProfile(keys)
	m.cached = &p
	m.cachedAt = m.clock.Now()
	return copyProfile(&p), nil
}

// SetField persists a profile key and invalidates the cache. Non-string
// values are stored as JSON.
func (m *Manager) SetField(key string, value any) error {
	var str string
	switch v := value.(type) {
	case string:
		str = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshalling value for key %q: %w", key, err)
		}
		str = string(b)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.SetProfileKey(key, str); err != nil {
		return fmt.Errorf("setting profile key %q: %w", key, err)
	}
	m.cached = nil
	return nil
}

// Summary returns a compact one-block rendering of the profile for
// prompt injection, capped at ~500 tokens.
func (m *Manager) Summary() (string, error) {
	p, err := m.GetProfile()
	if err != nil {
		return "", fmt.Errorf("getting profile for summary: %w", err)
	}
	return summarize(p), nil
}

const maxSummaryChars = 2000 // ~500 tokens at 4 chars/token

func summarize(p Profile) string {
	var parts []string

	if p.Identity.PreferredName != "" {
		line := "User: " + p.Identity.PreferredName
		if len(p.Identity.Roles) > 0 {
			line += " (" + strings.Join(p.Identity.Roles, ", ") + ")"
		}
		parts = append(parts, line+".")
	}

	if p.ActivePersona != "" {
		parts = append(parts, "Speak as the "+p.ActivePersona+" persona.")
	}

	if len(p.Values) > 0 {
		parts = append(parts, "Values: "+strings.Join(p.Values, "; ")+".")
	}

	if len(p.FocusAreas) > 0 {
		parts = append(parts, "Current focus: "+strings.Join(p.FocusAreas, ", ")+".")
	}

	var comm []string
	if p.Communication.Tone != "" {
		comm = append(comm, p.Communication.Tone+" tone")
	}
	if p.Communication.Format != "" {
		comm = append(comm, p.Communication.Format)
	}
	if p.Communication.DetailLevel != "" {
		comm = append(comm, p.Communication.DetailLevel)
	}
	if len(comm) > 0 {
		parts = append(parts, "Prefers: "+strings.Join(comm, ", ")+".")
	}

	if len(parts) == 0 {
		return "User profile: not yet configured."
	}

	summary := strings.Join(parts, " ")
	if len(summary) > maxSummaryChars {
		end := maxSummaryChars
		for end > 0 && !utf8.RuneStart(summary[end]) {
			end--
		}
		if idx := strings.LastIndex(summary[:end], " "); idx > 0 {
			summary = summary[:idx]
		} else {
			summary = summary[:end]
		}
	}
	return summary
}

func copyProfile(p *Profile) Profile {
	if p == nil {
		return Profile{}
	}
	cp := *p
	if p.Identity.Roles != nil {
		cp.Identity.Roles = append([]string(nil), p.Identity.Roles...)
	}
	if p.Identity.Details != nil {
		cp.Identity.Details = make(map[string]string, len(p.Identity.Details))
		for k, v := range p.Identity.Details {
			cp.Identity.Details[k] = v
		}
	}
	if p.Values != nil {
		cp.Values = append([]string(nil), p.Values...)
	}
	if p.FocusAreas != nil {
		cp.FocusAreas = append([]string(nil), p.FocusAreas...)
	}
	return cp
}

// buildProfile assembles a Profile from flat dot-notation keys:
// "identity.preferred_name", "identity.roles" (JSON array),
// "identity.timezone", "identity.details" (JSON object), "persona",
// "values", "focus_areas", "communication.tone" / .format /
// .detail_level.
func buildProfile(keys map[string]string) Profile {
	var p Profile

	if v, ok := keys["identity.preferred_name"]; ok {
		p.Identity.PreferredName = v
	}
	if v, ok := keys["identity.timezone"]; ok {
		p.Identity.Timezone = v
	}
	unmarshalKey(keys, "identity.roles", &p.Identity.Roles)
	unmarshalKey(keys, "identity.details", &p.Identity.Details)

	if v, ok := keys["persona"]; ok {
		p.ActivePersona = v
	}
	unmarshalKey(keys, "values", &p.Values)
	unmarshalKey(keys, "focus_areas", &p.FocusAreas)

	if v, ok := keys["communication.tone"]; ok {
		p.Communication.Tone = v
	}
	if v, ok := keys["communication.format"]; ok {
		p.Communication.Format = v
	}
	if v, ok := keys["communication.detail_level"]; ok {
		p.Communication.DetailLevel = v
	}

	return p
}

// unmarshalKey unmarshals a JSON value into target, logging a warning if
// the value is present but malformed.
func unmarshalKey(keys map[string]string, key string, target any) {
	v, ok := keys[key]
	if !ok {
		return
	}
	if err := json.Unmarshal([]byte(v), target); err != nil {
		slog.Warn("malformed profile key, skipping", "key", key, "error", err)
	}
}
