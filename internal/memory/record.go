// Package memory implements the three-tier memory system: working memory
// for the current session, episodic memory for interaction history, and
// semantic memory for durable facts about the user.
package memory

import (
	"time"
)

// Tier identifies which memory partition a record lives in. A record's
// tier is mutable: working-memory records move to episodic on eviction.
type Tier string

const (
	TierWorking  Tier = "working"
	TierEpisodic Tier = "episodic"
	TierSemantic Tier = "semantic"
)

// Category classifies a record's content and drives its staleness window.
// Immutable after creation.
type Category string

const (
	CategoryIdentity  Category = "identity"
	CategoryValues    Category = "values"
	CategoryGoals     Category = "goals"
	CategoryStatus    Category = "status"
	CategoryTask      Category = "task"
	CategoryKnowledge Category = "knowledge"
)

// ContextCategories is the fixed priority order used for context assembly:
// durable truths before ephemeral ones.
var ContextCategories = []Category{
	CategoryIdentity,
	CategoryValues,
	CategoryGoals,
	CategoryStatus,
	CategoryTask,
}

const defaultStaleDays = 30

// StaleDays returns the number of days after which an unverified record
// of this category needs re-verification.
func (c Category) StaleDays() int {
	switch c {
	case CategoryIdentity:
		return 365 // identity facts rarely change
	case CategoryValues:
		return 180
	case CategoryGoals:
		return 30
	case CategoryStatus:
		return 7
	case CategoryTask:
		return 1
	default:
		return defaultStaleDays
	}
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryIdentity, CategoryValues, CategoryGoals, CategoryStatus, CategoryTask, CategoryKnowledge:
		return true
	}
	return false
}

// Record is the atomic unit of memory. Records are owned exclusively by
// the Manager; callers receive copies.
type Record struct {
	ID           string    `json:"id"`
	Content      string    `json:"content"`
	Tier         Tier      `json:"tier"`
	Category     Category  `json:"category"`
	Importance   float64   `json:"importance"` // [0,1], caller-assigned ranking weight
	Confidence   float64   `json:"confidence"` // [0,1], reset only by explicit refresh
	Source       string    `json:"source,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastVerified time.Time `json:"last_verified"`
}

// IsStale reports whether the record has gone unverified past its
// category's staleness window. Computed against the supplied clock time
// on every call; never cached, since "now" moves.
func (r Record) IsStale(now time.Time) bool {
	daysOld := int(now.Sub(r.LastVerified).Hours() / 24)
	return daysOld > r.Category.StaleDays()
}
