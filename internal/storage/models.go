package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Interaction is one user exchange recorded in the journal. The journal
// backs conversation-context reads and feeds the episodic memory tier.
type Interaction struct {
	ID             string    `json:"id"` // ULID, so lexical order is creation order
	CreatedAt      time.Time `json:"created_at"`
	Persona        string    `json:"persona"`
	UserInput      string    `json:"user_input"`
	AssistantReply string    `json:"assistant_reply"`
	ContextChars   int       `json:"context_chars"` // size of the memory context injected for this turn
}

// AlertRecord is a persisted copy of an emitted proactive alert, kept so
// briefings can show what was already raised and when.
type AlertRecord struct {
	ID             string     `json:"id"`
	CreatedAt      time.Time  `json:"created_at"`
	Message        string     `json:"message"`
	Priority       string     `json:"priority"`
	Category       string     `json:"category"`
	ActionRequired bool       `json:"action_required"`
	Deadline       *time.Time `json:"deadline,omitempty"`
}
