// Package api exposes the assistant over a loopback HTTP API and an MCP
// stdio server. All state-changing routes require bearer auth.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/bowenhq/bowen/internal/composer"
	"github.com/bowenhq/bowen/internal/memory"
	"github.com/bowenhq/bowen/internal/proactive"
	"github.com/bowenhq/bowen/internal/profile"
	"github.com/bowenhq/bowen/internal/storage"
	"github.com/bowenhq/bowen/internal/syllabus"
	"github.com/bowenhq/bowen/internal/tracker"
)

const maxRequestBodySize = 1 << 20 // 1MB

// AppDeps holds the wiring for the HTTP API.
type AppDeps struct {
	Memory    *memory.Manager
	Composer  *composer.Assembler
	Tracker   *tracker.Store
	Evaluator *proactive.Evaluator
	Profile   *profile.Manager
	Store     *storage.Store
	Syllabus  *syllabus.Extractor
	Token     string

	// Persona scopes conversation-context reads. Empty matches all.
	Persona string

	// Days ahead a deadline counts as urgent. Defaults to 7.
	UrgentWindowDays int
}

func (d AppDeps) urgentWindow() int {
	if d.UrgentWindowDays <= 0 {
		return 7
	}
	return d.UrgentWindowDays
}

// NewAppHandler builds the router. /health is unauthenticated; every
// other route requires the bearer token.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Get("/context", handleContext(deps))
		r.Get("/questions", handleQuestions(deps))

		r.Post("/memory", handleAddMemory(deps))
		r.Get("/memory", handleListMemory(deps))
		r.Get("/memory/stale", handleStaleMemory(deps))
		r.Post("/memory/{id}/refresh", handleRefreshMemory(deps))

		r.Post("/deadlines", handleAddDeadline(deps))
		r.Get("/deadlines", handleListDeadlines(deps))
		r.Get("/deadlines/urgent", handleUrgentDeadlines(deps))
		r.Get("/deadlines/{key}", handleGetDeadline(deps))
		r.Patch("/deadlines/{key}", handleUpdateDeadline(deps))
		r.Delete("/deadlines/{key}", handleRemoveDeadline(deps))

		r.Post("/goals", handleAddGoal(deps))
		r.Get("/goals", handleListGoals(deps))
		r.Patch("/goals/{key}", handleUpdateGoal(deps))
		r.Post("/goals/{key}/complete", handleCompleteGoal(deps))
		r.Post("/goals/{key}/reset-streak", handleResetStreak(deps))

		r.Get("/briefing", handleBriefing(deps))
		r.Get("/briefing/week", handleWeekOverview(deps))
		r.Get("/alerts", handleAlerts(deps))
		r.Get("/alerts/history", handleAlertHistory(deps))
		r.Get("/recommendations", handleRecommendations(deps))
		r.Get("/priorities", handlePriorities(deps))
		r.Get("/progress", handleProgress(deps))

		r.Get("/interactions", handleListInteractions(deps))
		r.Post("/interactions", handleLogInteraction(deps))

		r.Get("/profile", handleGetProfile(deps))
		r.Patch("/profile", handlePatchProfile(deps))

		r.Post("/syllabus/import", handleSyllabusImport(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleContext(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records := deps.Memory.Records(memory.TierSemantic)
		ctx := deps.Composer.Assemble(records, time.Now().UTC())

		turns := parseIntParam(r, "turns", 5, 50)
		conversation, err := deps.Store.ConversationContext(deps.Persona, turns)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load conversation context: %v", err)
			return
		}
		if conversation == nil {
			conversation = []storage.Interaction{}
		}

		writeJSON(w, map[string]any{
			"context":             ctx,
			"estimated_tokens":    composer.EstimateTokens(ctx),
			"recent_conversation": conversation,
		})
	}
}

func handleQuestions(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qs := deps.Memory.WeeklyQuestions()
		if qs == nil {
			qs = []string{}
		}
		writeJSON(w, map[string]any{"questions": qs})
	}
}

type addMemoryRequest struct {
	Content    string  `json:"content"`
	Tier       string  `json:"tier"`
	Category   string  `json:"category"`
	Importance float64 `json:"importance"`
	Source     string  `json:"source"`
}

func handleAddMemory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addMemoryRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Content == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "content is required")
			return
		}

		category := memory.Category(req.Category)
		if req.Category == "" {
			category = memory.CategoryKnowledge
		} else if !category.Valid() {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown category %q", req.Category)
			return
		}

		var rec memory.Record
		switch memory.Tier(req.Tier) {
		case memory.TierWorking, "":
			rec = deps.Memory.AddWorking(req.Content, category, req.Importance, req.Source)
		case memory.TierEpisodic:
			rec = deps.Memory.AddEpisodic(req.Content, category, req.Importance, req.Source)
		case memory.TierSemantic:
			rec = deps.Memory.AddSemantic(req.Content, category, req.Importance, req.Source)
		default:
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown tier %q", req.Tier)
			return
		}

		writeJSON(w, rec)
	}
}

func handleListMemory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tier := memory.Tier(r.URL.Query().Get("tier"))
		if tier == "" {
			tier = memory.TierSemantic
		}
		switch tier {
		case memory.TierWorking, memory.TierEpisodic, memory.TierSemantic:
		default:
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown tier %q", tier)
			return
		}

		records := deps.Memory.Records(tier)
		if records == nil {
			records = []memory.Record{}
		}
		writeJSON(w, records)
	}
}

func handleStaleMemory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stale := deps.Memory.IdentifyStale()
		if stale == nil {
			stale = []memory.Record{}
		}
		writeJSON(w, stale)
	}
}

type refreshRequest struct {
	Content  string `json:"content"`
	Verified *bool  `json:"verified"`
}

func handleRefreshMemory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var req refreshRequest
		if !decodeBody(w, r, &req) {
			return
		}
		verified := true
		if req.Verified != nil {
			verified = *req.Verified
		}

		rec, ok := deps.Memory.Refresh(id, req.Content, verified)
		if !ok {
			httpError(w, http.StatusNotFound, "not_found", "memory record not found")
			return
		}
		writeJSON(w, rec)
	}
}

type addDeadlineRequest struct {
	Name           string    `json:"name"`
	DueAt          time.Time `json:"due_at"`
	Category       string    `json:"category"`
	Priority       float64   `json:"priority"`
	Description    string    `json:"description"`
	EstimatedHours float64   `json:"estimated_hours"`
	Overwrite      bool      `json:"overwrite"`
}

func handleAddDeadline(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addDeadlineRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Name == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "name is required")
			return
		}
		if req.DueAt.IsZero() {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "due_at is required")
			return
		}

		if req.Overwrite {
			key := deps.Tracker.PutDeadline(tracker.Deadline{
				Name:           req.Name,
				DueAt:          req.DueAt,
				Category:       req.Category,
				Priority:       req.Priority,
				Description:    req.Description,
				EstimatedHours: req.EstimatedHours,
				Status:         tracker.StatusPending,
			})
			writeJSON(w, map[string]string{"key": key, "status": "replaced"})
			return
		}

		key, err := deps.Tracker.AddDeadline(req.Name, req.DueAt, req.Category, req.Priority, req.Description, req.EstimatedHours)
		if errors.Is(err, tracker.ErrExists) {
			httpError(w, http.StatusConflict, "conflict", "deadline %q already exists; set overwrite to replace it", req.Name)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to add deadline: %v", err)
			return
		}
		writeJSON(w, map[string]string{"key": key, "status": "created"})
	}
}

func handleListDeadlines(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ds := deps.Tracker.Deadlines()
		if ds == nil {
			ds = []tracker.Deadline{}
		}
		writeJSON(w, ds)
	}
}

func handleUrgentDeadlines(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days := parseIntParam(r, "days", deps.urgentWindow(), 365)
		ds := deps.Tracker.Urgent(days)
		if ds == nil {
			ds = []tracker.Deadline{}
		}
		writeJSON(w, ds)
	}
}

func handleGetDeadline(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := deps.Tracker.GetDeadline(chi.URLParam(r, "key"))
		if errors.Is(err, tracker.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "deadline not found")
			return
		}
		writeJSON(w, d)
	}
}

type updateDeadlineRequest struct {
	Progress *float64 `json:"progress"`
	Status   *string  `json:"status"`
}

func handleUpdateDeadline(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")

		var req updateDeadlineRequest
		if !decodeBody(w, r, &req) {
			return
		}

		var status *tracker.Status
		if req.Status != nil {
			s := tracker.Status(*req.Status)
			if !s.Valid() {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown status %q", *req.Status)
				return
			}
			status = &s
		}

		err := deps.Tracker.UpdateDeadline(key, req.Progress, status)
		if errors.Is(err, tracker.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "deadline not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to update deadline: %v", err)
			return
		}
		writeJSON(w, map[string]string{"status": "updated"})
	}
}

func handleRemoveDeadline(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := deps.Tracker.RemoveDeadline(chi.URLParam(r, "key"))
		if errors.Is(err, tracker.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "deadline not found")
			return
		}
		writeJSON(w, map[string]string{"status": "deleted"})
	}
}

func handleAddGoal(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var g tracker.Goal
		if !decodeBody(w, r, &g) {
			return
		}
		if g.Name == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "name is required")
			return
		}

		key, err := deps.Tracker.AddGoal(g)
		if errors.Is(err, tracker.ErrExists) {
			httpError(w, http.StatusConflict, "conflict", "goal %q already exists", g.Name)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to add goal: %v", err)
			return
		}
		writeJSON(w, map[string]string{"key": key, "status": "created"})
	}
}

func handleListGoals(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gs := deps.Tracker.Goals()
		if gs == nil {
			gs = []tracker.Goal{}
		}
		writeJSON(w, gs)
	}
}

type updateGoalRequest struct {
	Progress float64 `json:"progress"`
}

func handleUpdateGoal(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")

		var req updateGoalRequest
		if !decodeBody(w, r, &req) {
			return
		}

		err := deps.Tracker.UpdateGoalProgress(key, req.Progress)
		if errors.Is(err, tracker.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "goal not found")
			return
		}
		writeJSON(w, map[string]string{"status": "updated"})
	}
}

func handleCompleteGoal(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, err := deps.Tracker.CompleteDailyGoal(chi.URLParam(r, "key"))
		if errors.Is(err, tracker.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "goal not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to complete goal: %v", err)
			return
		}
		writeJSON(w, g)
	}
}

func handleResetStreak(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := deps.Tracker.ResetStreak(chi.URLParam(r, "key"))
		if errors.Is(err, tracker.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "goal not found")
			return
		}
		writeJSON(w, map[string]string{"status": "reset"})
	}
}

func handleBriefing(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"briefing": deps.Evaluator.MorningBriefing()})
	}
}

func handleWeekOverview(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"overview": deps.Evaluator.WeekOverview()})
	}
}

// handleAlerts evaluates current alerts and records new ones in the
// alert history before returning them. Recording uses the same 24h
// message suppression as the background monitor, so repeated polls do
// not flood the history.
func handleAlerts(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		alerts := deps.Evaluator.CriticalAlerts()
		if alerts == nil {
			alerts = []proactive.Alert{}
		}

		if deps.Store != nil {
			since := time.Now().UTC().Add(-24 * time.Hour)
			if _, err := proactive.RecordAlerts(alerts, deps.Store, since); err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to record alert: %v", err)
				return
			}
		}

		writeJSON(w, alerts)
	}
}

func handleAlertHistory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)
		history, err := deps.Store.RecentAlerts(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list alerts: %v", err)
			return
		}
		if history == nil {
			history = []storage.AlertRecord{}
		}
		writeJSON(w, history)
	}
}

func handleRecommendations(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recs := deps.Evaluator.Recommendations()
		if recs == nil {
			recs = []string{}
		}
		writeJSON(w, map[string]any{"recommendations": recs})
	}
}

func handlePriorities(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items := deps.Evaluator.TodaysPriorities()
		if items == nil {
			items = []proactive.PriorityItem{}
		}
		writeJSON(w, items)
	}
}

func handleProgress(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items := deps.Evaluator.ProgressSummary()
		if items == nil {
			items = []proactive.ProgressItem{}
		}
		writeJSON(w, items)
	}
}

func handleListInteractions(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)
		interactions, err := deps.Store.RecentInteractions(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list interactions: %v", err)
			return
		}
		if interactions == nil {
			interactions = []storage.Interaction{}
		}
		writeJSON(w, interactions)
	}
}

type logInteractionRequest struct {
	Persona        string `json:"persona"`
	UserInput      string `json:"user_input"`
	AssistantReply string `json:"assistant_reply"`
	ContextChars   int    `json:"context_chars"`
}

func handleLogInteraction(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req logInteractionRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.UserInput == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_input is required")
			return
		}

		i := storage.Interaction{
			ID:             ulid.Make().String(),
			CreatedAt:      time.Now().UTC(),
			Persona:        req.Persona,
			UserInput:      req.UserInput,
			AssistantReply: req.AssistantReply,
			ContextChars:   req.ContextChars,
		}
		if err := deps.Store.SaveInteraction(i); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save interaction: %v", err)
			return
		}
		writeJSON(w, map[string]string{"id": i.ID, "status": "saved"})
	}
}

func handleGetProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := deps.Profile.GetProfile()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get profile: %v", err)
			return
		}
		writeJSON(w, p)
	}
}

func handlePatchProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var fields map[string]any
		if !decodeBody(w, r, &fields) {
			return
		}

		for key, value := range fields {
			if err := deps.Profile.SetField(key, value); err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to set field %q: %v", key, err)
				return
			}
		}
		writeJSON(w, map[string]string{"status": "updated"})
	}
}

type syllabusImportRequest struct {
	Dir      string  `json:"dir"`
	Apply    bool    `json:"apply"`
	Category string  `json:"category"`
	Priority float64 `json:"priority"`
}

// handleSyllabusImport extracts deadline candidates from syllabi in a
// directory. With apply set, candidates are added to the tracker;
// existing deadlines are left untouched.
func handleSyllabusImport(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req syllabusImportRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Dir == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "dir is required")
			return
		}

		candidates, err := deps.Syllabus.ImportDir(r.Context(), req.Dir)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "import failed: %v", err)
			return
		}
		if candidates == nil {
			candidates = []syllabus.Candidate{}
		}

		added := 0
		skipped := 0
		if req.Apply {
			priority := req.Priority
			if priority == 0 {
				priority = 0.6
			}
			for _, c := range candidates {
				_, err := deps.Tracker.AddDeadline(c.Name, c.DueAt, req.Category, priority, "Imported from "+c.Source, 0)
				if errors.Is(err, tracker.ErrExists) {
					skipped++
					continue
				}
				if err != nil {
					httpError(w, http.StatusInternalServerError, "api_error", "failed to add %q: %v", c.Name, err)
					return
				}
				added++
			}
		}

		writeJSON(w, map[string]any{
			"candidates": candidates,
			"added":      added,
			"skipped":    skipped,
		})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
