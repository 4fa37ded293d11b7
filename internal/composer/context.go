// Package composer assembles bounded, priority-ordered context blocks
// from semantic memory for injection into a downstream prompt.
package composer

import (
	"sort"
	"strings"
	"time"

	"github.com/bowenhq/bowen/internal/memory"
)

const (
	defaultMaxContextChars = 8000 // ≈ 2000 tokens at 4 chars/token
	maxPerCategory         = 3
	minConfidence          = 0.7
)

// Assembler selects fresh, high-confidence semantic facts and renders
// them in fixed category-priority order under a hard character budget.
type Assembler struct {
	MaxContextChars int
}

// New creates an Assembler with the given character budget for assembled
// context. If maxChars <= 0, the default (8000) is used.
func New(maxChars int) *Assembler {
	if maxChars <= 0 {
		maxChars = defaultMaxContextChars
	}
	return &Assembler{MaxContextChars: maxChars}
}

// Assemble produces the context block: for each category in the fixed
// order identity→values→goals→status→task, it takes the top records from
// the semantic tier that are fresh and confident, at most three per
// category, sorted by (importance, createdAt) descending. Duplicate
// content is dropped. When the joined block would exceed the budget,
// whole items are removed from the tail; the tail holds the lowest
// priority items, so truncation is deterministic lowest-first.
//
// An empty result means "no additional context available", not an error.
func (a *Assembler) Assemble(records []memory.Record, now time.Time) string {
	var selected []string
	seen := make(map[string]bool)

	for _, category := range memory.ContextCategories {
		var candidates []memory.Record
		for _, r := range records {
			if r.Tier != memory.TierSemantic || r.Category != category {
				continue
			}
			if r.IsStale(now) || r.Confidence <= minConfidence {
				continue
			}
			candidates = append(candidates, r)
		}

		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].Importance != candidates[j].Importance {
				return candidates[i].Importance > candidates[j].Importance
			}
			return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
		})

		taken := 0
		for _, r := range candidates {
			if taken == maxPerCategory {
				break
			}
			key := normalizeContent(r.Content)
			if seen[key] {
				continue
			}
			seen[key] = true
			selected = append(selected, r.Content)
			taken++
		}
	}

	// Enforce the budget: drop whole items from the tail until the block
	// fits. Joined length counts the newline separators.
	for len(selected) > 0 && joinedLen(selected) > a.MaxContextChars {
		selected = selected[:len(selected)-1]
	}

	return strings.Join(selected, "\n")
}

func joinedLen(parts []string) int {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	if len(parts) > 1 {
		n += len(parts) - 1
	}
	return n
}

func normalizeContent(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// EstimateTokens provides a rough token count using the 4 chars per
// token heuristic.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
