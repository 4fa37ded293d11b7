package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/bowenhq/bowen/internal/memory"
	"github.com/bowenhq/bowen/internal/tracker"
)

// MCPDeps holds dependencies for the MCP server. It reuses the HTTP
// wiring minus the token.
type MCPDeps struct {
	App AppDeps
}

// NewMCPServer creates an MCP server exposing the assistant's memory,
// tracker, and briefing tools over stdio.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"bowen",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("bowen - personal assistant memory: durable facts, deadlines, goals, and daily briefings."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("remember",
			mcp.WithDescription("Store a fact in the assistant's long-term memory."),
			mcp.WithString("content", mcp.Description("The fact to remember"), mcp.Required()),
			mcp.WithString("category", mcp.Description("One of: identity, values, goals, status, task, knowledge")),
			mcp.WithNumber("importance", mcp.Description("Ranking weight in [0,1], default 0.5")),
		),
		mcpRemember(deps),
	)

	s.AddTool(
		mcp.NewTool("recall_context",
			mcp.WithDescription("Return the assembled memory context: fresh, high-confidence facts in priority order."),
		),
		mcpRecallContext(deps),
	)

	s.AddTool(
		mcp.NewTool("add_deadline",
			mcp.WithDescription("Track a new deadline."),
			mcp.WithString("name", mcp.Description("Deadline name"), mcp.Required()),
			mcp.WithString("due_at", mcp.Description("Due date, RFC 3339"), mcp.Required()),
			mcp.WithString("category", mcp.Description("Free-form category, e.g. coursework")),
			mcp.WithNumber("priority", mcp.Description("Priority in [0,1], default 0.5")),
		),
		mcpAddDeadline(deps),
	)

	s.AddTool(
		mcp.NewTool("upcoming_deadlines",
			mcp.WithDescription("List deadlines due within the urgent window."),
			mcp.WithNumber("days", mcp.Description("Window in days (default 7)")),
		),
		mcpUpcomingDeadlines(deps),
	)

	s.AddTool(
		mcp.NewTool("complete_daily_goal",
			mcp.WithDescription("Mark a goal's daily requirement done, extending its streak."),
			mcp.WithString("name", mcp.Description("Goal name"), mcp.Required()),
		),
		mcpCompleteDailyGoal(deps),
	)

	s.AddTool(
		mcp.NewTool("morning_briefing",
			mcp.WithDescription("Generate the morning briefing: priorities, urgent deadlines, progress, and alerts."),
		),
		mcpMorningBriefing(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"user://profile",
			"User Profile",
			mcp.WithResourceDescription("Current user profile as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceProfile(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"bowen://questions",
			"Weekly Questions",
			mcp.WithResourceDescription("Verification questions for stale memory"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceQuestions(deps),
	)

	return s
}

func mcpRemember(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		content, err := req.RequireString("content")
		if err != nil {
			return mcpError("content is required"), nil
		}

		category := memory.Category(req.GetString("category", string(memory.CategoryKnowledge)))
		if !category.Valid() {
			return mcpError(fmt.Sprintf("unknown category %q", category)), nil
		}
		importance := req.GetFloat("importance", 0.5)

		rec := deps.App.Memory.AddSemantic(content, category, importance, "mcp")
		return mcpText(fmt.Sprintf("Remembered %s (%s)", rec.ID, rec.Category)), nil
	}
}

func mcpRecallContext(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		records := deps.App.Memory.Records(memory.TierSemantic)
		text := deps.App.Composer.Assemble(records, time.Now().UTC())
		if text == "" {
			return mcpText("No memory context available yet."), nil
		}
		return mcpText(text), nil
	}
}

func mcpAddDeadline(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := req.RequireString("name")
		if err != nil {
			return mcpError("name is required"), nil
		}
		dueStr, err := req.RequireString("due_at")
		if err != nil {
			return mcpError("due_at is required"), nil
		}
		dueAt, err := time.Parse(time.RFC3339, dueStr)
		if err != nil {
			return mcpError(fmt.Sprintf("invalid due_at %q: use RFC 3339", dueStr)), nil
		}

		category := req.GetString("category", "")
		priority := req.GetFloat("priority", 0.5)

		key, err := deps.App.Tracker.AddDeadline(name, dueAt, category, priority, "", 0)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to add deadline: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Tracking %q (key %s), due %s", name, key, dueAt.Format("Jan 2, 2006"))), nil
	}
}

func mcpUpcomingDeadlines(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		days := req.GetInt("days", deps.App.urgentWindow())
		if days <= 0 {
			days = deps.App.urgentWindow()
		}

		urgent := deps.App.Tracker.Urgent(days)
		if len(urgent) == 0 {
			return mcpText("[]"), nil
		}

		type deadlineResult struct {
			Name     string  `json:"name"`
			DueAt    string  `json:"due_at"`
			Category string  `json:"category,omitempty"`
			Priority float64 `json:"priority"`
			Progress float64 `json:"progress"`
			Status   string  `json:"status"`
		}

		results := make([]deadlineResult, len(urgent))
		for i, d := range urgent {
			results[i] = deadlineResult{
				Name:     d.Name,
				DueAt:    d.DueAt.Format(time.RFC3339),
				Category: d.Category,
				Priority: d.Priority,
				Progress: d.Progress,
				Status:   string(d.Status),
			}
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpCompleteDailyGoal(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := req.RequireString("name")
		if err != nil {
			return mcpError("name is required"), nil
		}

		g, err := deps.App.Tracker.CompleteDailyGoal(tracker.Key(name))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to complete goal: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Done. %q streak is now %d days.", g.Name, g.Streak)), nil
	}
}

func mcpMorningBriefing(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcpText(deps.App.Evaluator.MorningBriefing()), nil
	}
}

func mcpResourceProfile(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		p, err := deps.App.Profile.GetProfile()
		if err != nil {
			return nil, fmt.Errorf("failed to get profile: %w", err)
		}

		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal profile: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpResourceQuestions(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		qs := deps.App.Memory.WeeklyQuestions()
		b, err := json.Marshal(qs)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal questions: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
