package memory

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Snapshotter persists and restores the full tier state. Implemented by
// FileStore; tests use an in-memory fake.
type Snapshotter interface {
	Save(s Snapshot) error
	Load() (Snapshot, error)
}

// Snapshot is the serialized form of all three tiers.
type Snapshot struct {
	Working  []Record `json:"working"`
	Episodic []Record `json:"episodic"`
	Semantic []Record `json:"semantic"`
}

// Limits bounds tier growth. Zero values fall back to defaults.
type Limits struct {
	WorkingCapacity   int // max working records before FIFO eviction to episodic
	EpisodicRetention int // max episodic records; oldest dropped first
	SemanticRetention int // max semantic records; least important dropped first
}

const (
	defaultWorkingCapacity   = 10
	defaultEpisodicRetention = 500
	defaultSemanticRetention = 1000
)

func (l Limits) withDefaults() Limits {
	if l.WorkingCapacity <= 0 {
		l.WorkingCapacity = defaultWorkingCapacity
	}
	if l.EpisodicRetention <= 0 {
		l.EpisodicRetention = defaultEpisodicRetention
	}
	if l.SemanticRetention <= 0 {
		l.SemanticRetention = defaultSemanticRetention
	}
	return l
}

// Manager owns the three memory tiers and serializes all mutations.
// Persistence is write-through: every mutation saves the full snapshot.
// Save failures are logged, never propagated; memory is a convenience
// layer and must not take down the host loop.
type Manager struct {
	mu     sync.Mutex
	clock  Clock
	store  Snapshotter
	limits Limits

	working  []Record
	episodic []Record
	semantic []Record
}

// NewManager creates a Manager backed by store. Existing state is loaded
// if present; a store that fails to load yields an empty, usable Manager.
func NewManager(store Snapshotter, limits Limits) *Manager {
	return NewManagerWithClock(store, limits, realClock{})
}

// NewManagerWithClock is NewManager with an injected clock (for testing).
func NewManagerWithClock(store Snapshotter, limits Limits, clock Clock) *Manager {
	m := &Manager{
		clock:  clock,
		store:  store,
		limits: limits.withDefaults(),
	}
	if store != nil {
		snap, err := store.Load()
		if err != nil {
			slog.Warn("memory: could not load persisted state, starting fresh", "error", err)
		} else {
			m.working = snap.Working
			m.episodic = snap.Episodic
			m.semantic = snap.Semantic
		}
	}
	return m
}

func (m *Manager) newRecord(content string, tier Tier, category Category, importance float64, source string) Record {
	now := m.clock.Now()
	if !category.Valid() {
		category = CategoryTask
	}
	return Record{
		ID:           uuid.New().String(),
		Content:      content,
		Tier:         tier,
		Category:     category,
		Importance:   clamp01(importance),
		Confidence:   1.0,
		Source:       source,
		CreatedAt:    now,
		LastVerified: now,
	}
}

// AddWorking stores content in working memory. When the tier exceeds its
// capacity, the oldest record (by insertion order) is re-tagged episodic
// and moved there. Overflow is the normal trigger for eviction, not an
// error.
func (m *Manager) AddWorking(content string, category Category, importance float64, source string) Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.newRecord(content, TierWorking, category, importance, source)
	m.working = append(m.working, rec)

	if len(m.working) > m.limits.WorkingCapacity {
		old := m.working[0]
		m.working = m.working[1:]
		old.Tier = TierEpisodic
		m.episodic = append(m.episodic, old)
		m.enforceEpisodicRetention()
	}

	m.save()
	return rec
}

// AddEpisodic stores an interaction or experience in episodic memory.
func (m *Manager) AddEpisodic(content string, category Category, importance float64, source string) Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.newRecord(content, TierEpisodic, category, importance, source)
	m.episodic = append(m.episodic, rec)
	m.enforceEpisodicRetention()
	m.save()
	return rec
}

// AddSemantic stores a durable fact in semantic memory.
func (m *Manager) AddSemantic(content string, category Category, importance float64, source string) Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.newRecord(content, TierSemantic, category, importance, source)
	m.semantic = append(m.semantic, rec)
	m.enforceSemanticRetention()
	m.save()
	return rec
}

// episodic retention drops oldest records first.
func (m *Manager) enforceEpisodicRetention() {
	if over := len(m.episodic) - m.limits.EpisodicRetention; over > 0 {
		m.episodic = append([]Record(nil), m.episodic[over:]...)
	}
}

// semantic retention drops the least important records first, oldest
// among equals, so long-held durable facts survive churn.
func (m *Manager) enforceSemanticRetention() {
	if len(m.semantic) <= m.limits.SemanticRetention {
		return
	}
	sort.SliceStable(m.semantic, func(i, j int) bool {
		if m.semantic[i].Importance != m.semantic[j].Importance {
			return m.semantic[i].Importance > m.semantic[j].Importance
		}
		return m.semantic[i].CreatedAt.After(m.semantic[j].CreatedAt)
	})
	m.semantic = append([]Record(nil), m.semantic[:m.limits.SemanticRetention]...)
}

// IdentifyStale returns semantic records past their verification window,
// most important first. Drives "what should I re-verify" prompts.
func (m *Manager) IdentifyStale() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	var stale []Record
	for _, r := range m.semantic {
		if r.IsStale(now) {
			stale = append(stale, r)
		}
	}
	sort.SliceStable(stale, func(i, j int) bool {
		return stale[i].Importance > stale[j].Importance
	})
	return stale
}

// Refresh re-verifies the record with the given ID: lastVerified moves to
// now, confidence becomes 1.0 when verified (0.5 otherwise), and content
// is replaced when newContent is non-empty. A missing ID is a no-op;
// the second return reports whether a record was found.
func (m *Manager) Refresh(id string, newContent string, verified bool) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, tier := range [][]Record{m.semantic, m.episodic, m.working} {
		for i := range tier {
			if tier[i].ID != id {
				continue
			}
			if newContent != "" {
				tier[i].Content = newContent
			}
			if verified {
				tier[i].Confidence = 1.0
			} else {
				tier[i].Confidence = 0.5
			}
			tier[i].LastVerified = m.clock.Now()
			m.save()
			return tier[i], true
		}
	}
	return Record{}, false
}

// Records returns a copy of the given tier in insertion order.
func (m *Manager) Records(tier Tier) []Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	var src []Record
	switch tier {
	case TierWorking:
		src = m.working
	case TierEpisodic:
		src = m.episodic
	case TierSemantic:
		src = m.semantic
	}
	out := make([]Record, len(src))
	copy(out, src)
	return out
}

// Counts returns the current size of each tier.
func (m *Manager) Counts() (working, episodic, semantic int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.working), len(m.episodic), len(m.semantic)
}

// WeeklyQuestions generates re-verification prompts: the three most
// important stale facts phrased as "Still true: …?", followed by the
// standing weekly check-in questions.
func (m *Manager) WeeklyQuestions() []string {
	stale := m.IdentifyStale()
	var questions []string
	for i, fact := range stale {
		if i == 3 {
			break
		}
		questions = append(questions, "Still true: "+fact.Content+"?")
	}
	questions = append(questions,
		"What changed this week?",
		"Any goals that shifted?",
		"How are you actually doing?",
		"What should I stop remembering?",
		"What should I start tracking?",
	)
	return questions
}

// save persists the full snapshot. Caller must hold mu.
func (m *Manager) save() {
	if m.store == nil {
		return
	}
	snap := Snapshot{
		Working:  append([]Record(nil), m.working...),
		Episodic: append([]Record(nil), m.episodic...),
		Semantic: append([]Record(nil), m.semantic...),
	}
	if err := m.store.Save(snap); err != nil {
		slog.Error("memory: persisting snapshot failed", "error", err)
	}
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
