package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bowenhq/bowen/internal/config"
)

// --- brief ---

var briefCmd = &cobra.Command{
	Use:   "brief",
	Short: "Print the morning briefing",
	RunE: func(cmd *cobra.Command, args []string) error {
		week, _ := cmd.Flags().GetBool("week")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := "/briefing"
		field := "briefing"
		if week {
			path = "/briefing/week"
			field = "overview"
		}

		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		fmt.Println(result[field])
		return nil
	},
}

func init() {
	briefCmd.Flags().Bool("week", false, "show the week overview instead")
}

// --- remember ---

var rememberCmd = &cobra.Command{
	Use:   "remember <fact>",
	Short: "Store a fact in long-term memory",
	Long: `Store a fact in long-term memory.

Examples:
  bowen remember "Prefers early-morning deep work" --category status
  bowen remember "Wants to work in distributed systems" --category goals --importance 0.9`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content := strings.Join(args, " ")
		category, _ := cmd.Flags().GetString("category")
		importance, _ := cmd.Flags().GetFloat64("importance")
		tier, _ := cmd.Flags().GetString("tier")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]any{
			"content":    content,
			"tier":       tier,
			"category":   category,
			"importance": importance,
			"source":     "cli",
		}
		resp, err := client.post(cmd.Context(), "/memory", req)
		if err != nil {
			return err
		}

		var rec struct {
			ID       string `json:"id"`
			Category string `json:"category"`
		}
		if err := decodeJSON(resp, &rec); err != nil {
			return err
		}

		printSuccess("Remembered %s (%s)", shortID(rec.ID), rec.Category)
		return nil
	},
}

func init() {
	rememberCmd.Flags().String("category", "knowledge", "category: identity, values, goals, status, task, knowledge")
	rememberCmd.Flags().Float64("importance", 0.5, "ranking weight in [0,1]")
	rememberCmd.Flags().String("tier", "semantic", "memory tier: working, episodic, semantic")
}

// --- context ---

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Show the assembled memory context",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/context")
		if err != nil {
			return err
		}

		var result struct {
			Context         string `json:"context"`
			EstimatedTokens int    `json:"estimated_tokens"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if result.Context == "" {
			fmt.Println("No context available yet. Store facts with: bowen remember")
			return nil
		}
		fmt.Println(result.Context)
		fmt.Fprintf(os.Stderr, "\n~%d tokens\n", result.EstimatedTokens)
		return nil
	},
}

// --- stale / refresh / questions ---

var staleCmd = &cobra.Command{
	Use:   "stale",
	Short: "List facts that need re-verification",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/memory/stale")
		if err != nil {
			return err
		}

		var records []struct {
			ID           string `json:"id"`
			Content      string `json:"content"`
			Category     string `json:"category"`
			LastVerified string `json:"last_verified"`
		}
		if err := decodeJSON(resp, &records); err != nil {
			return err
		}

		if len(records) == 0 {
			fmt.Println("Everything is fresh.")
			return nil
		}

		for _, r := range records {
			fmt.Printf("%s  %s  %s\n",
				colorize(colorCyan, shortID(r.ID)),
				colorize(colorBold, "["+r.Category+"]"),
				r.Content,
			)
		}
		return nil
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh <id>",
	Short: "Re-verify a fact, optionally updating its content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, _ := cmd.Flags().GetString("content")
		unverified, _ := cmd.Flags().GetBool("unverified")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]any{
			"content":  content,
			"verified": !unverified,
		}
		resp, err := client.post(cmd.Context(), "/memory/"+args[0]+"/refresh", req)
		if err != nil {
			return err
		}

		var rec struct {
			ID         string  `json:"id"`
			Confidence float64 `json:"confidence"`
		}
		if err := decodeJSON(resp, &rec); err != nil {
			return err
		}

		printSuccess("Refreshed %s (confidence %.1f)", shortID(rec.ID), rec.Confidence)
		return nil
	},
}

func init() {
	refreshCmd.Flags().String("content", "", "replacement content (empty keeps the old text)")
	refreshCmd.Flags().Bool("unverified", false, "mark as updated but not confirmed")
}

var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "Show this week's verification questions",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/questions")
		if err != nil {
			return err
		}

		var result struct {
			Questions []string `json:"questions"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		for i, q := range result.Questions {
			fmt.Printf("%2d. %s\n", i+1, q)
		}
		return nil
	},
}

// --- deadline ---

var deadlineCmd = &cobra.Command{
	Use:   "deadline",
	Short: "Manage deadlines",
}

var deadlineAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Track a new deadline",
	Long: `Track a new deadline.

Examples:
  bowen deadline add "Final Exam" --due 2026-05-08 --category coursework --priority 0.9
  bowen deadline add "Tax return" --due 2026-04-15T17:00:00Z`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.Join(args, " ")
		dueStr, _ := cmd.Flags().GetString("due")
		category, _ := cmd.Flags().GetString("category")
		priority, _ := cmd.Flags().GetFloat64("priority")
		description, _ := cmd.Flags().GetString("description")
		hours, _ := cmd.Flags().GetFloat64("hours")
		overwrite, _ := cmd.Flags().GetBool("overwrite")

		if dueStr == "" {
			return fmt.Errorf("--due is required")
		}
		dueAt, err := parseDue(dueStr)
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]any{
			"name":            name,
			"due_at":          dueAt.Format(time.RFC3339),
			"category":        category,
			"priority":        priority,
			"description":     description,
			"estimated_hours": hours,
			"overwrite":       overwrite,
		}
		resp, err := client.post(cmd.Context(), "/deadlines", req)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Tracking %q, due %s", name, dueAt.Format("Mon Jan 2, 2006"))
		return nil
	},
}

// parseDue accepts a bare date or full RFC 3339 timestamp. Bare dates
// resolve to end of day local time.
func parseDue(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, time.Local); err == nil {
		return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 0, 0, time.Local), nil
	}
	return time.Time{}, fmt.Errorf("invalid --due %q: use YYYY-MM-DD or RFC 3339", s)
}

var deadlineListCmd = &cobra.Command{
	Use:   "list",
	Short: "List deadlines",
	RunE: func(cmd *cobra.Command, args []string) error {
		urgent, _ := cmd.Flags().GetBool("urgent")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := "/deadlines"
		if urgent {
			path = "/deadlines/urgent"
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var deadlines []struct {
			Name     string    `json:"name"`
			DueAt    time.Time `json:"due_at"`
			Category string    `json:"category"`
			Status   string    `json:"status"`
			Progress float64   `json:"progress"`
		}
		if err := decodeJSON(resp, &deadlines); err != nil {
			return err
		}

		if len(deadlines) == 0 {
			fmt.Println("No deadlines.")
			return nil
		}

		now := time.Now()
		for _, d := range deadlines {
			due := d.DueAt.Format("Jan 2")
			if d.DueAt.Before(now) && d.Status != "completed" {
				due = colorize(colorRed, due+" (overdue)")
			}
			label := d.Name
			if d.Category != "" {
				label += " [" + d.Category + "]"
			}
			fmt.Printf("%s  %s  %3.0f%%  %s\n", due, colorize(colorBold, label), d.Progress*100, d.Status)
		}
		return nil
	},
}

var deadlineUpdateCmd = &cobra.Command{
	Use:   "update <key>",
	Short: "Update a deadline's progress or status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]any{}
		if cmd.Flags().Changed("progress") {
			p, _ := cmd.Flags().GetFloat64("progress")
			req["progress"] = p
		}
		if cmd.Flags().Changed("status") {
			s, _ := cmd.Flags().GetString("status")
			req["status"] = s
		}
		if len(req) == 0 {
			return fmt.Errorf("nothing to update: pass --progress and/or --status")
		}

		resp, err := client.patch(cmd.Context(), "/deadlines/"+args[0], req)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Updated %s", args[0])
		return nil
	},
}

var deadlineDoneCmd = &cobra.Command{
	Use:   "done <key>",
	Short: "Mark a deadline completed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]any{"status": "completed", "progress": 1.0}
		resp, err := client.patch(cmd.Context(), "/deadlines/"+args[0], req)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Completed %s", args[0])
		return nil
	},
}

var deadlineRemoveCmd = &cobra.Command{
	Use:   "remove <key>",
	Short: "Remove a deadline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/deadlines/"+args[0])
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Removed %s", args[0])
		return nil
	},
}

func init() {
	deadlineAddCmd.Flags().String("due", "", "due date (YYYY-MM-DD or RFC 3339)")
	deadlineAddCmd.Flags().String("category", "", "free-form category")
	deadlineAddCmd.Flags().Float64("priority", 0.5, "priority in [0,1]")
	deadlineAddCmd.Flags().String("description", "", "description")
	deadlineAddCmd.Flags().Float64("hours", 0, "estimated hours of work")
	deadlineAddCmd.Flags().Bool("overwrite", false, "replace an existing deadline with the same name")
	deadlineListCmd.Flags().Bool("urgent", false, "only deadlines inside the urgent window")
	deadlineUpdateCmd.Flags().Float64("progress", 0, "progress in [0,1]")
	deadlineUpdateCmd.Flags().String("status", "", "status: pending, in_progress, completed")

	deadlineCmd.AddCommand(deadlineAddCmd)
	deadlineCmd.AddCommand(deadlineListCmd)
	deadlineCmd.AddCommand(deadlineUpdateCmd)
	deadlineCmd.AddCommand(deadlineDoneCmd)
	deadlineCmd.AddCommand(deadlineRemoveCmd)
}

// --- goal ---

var goalCmd = &cobra.Command{
	Use:   "goal",
	Short: "Manage goals and streaks",
}

var goalAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a goal",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.Join(args, " ")
		category, _ := cmd.Flags().GetString("category")
		target, _ := cmd.Flags().GetString("target")
		daily, _ := cmd.Flags().GetString("daily")
		description, _ := cmd.Flags().GetString("description")

		req := map[string]any{
			"name":              name,
			"category":          category,
			"description":       description,
			"daily_requirement": daily,
		}
		if target != "" {
			t, err := parseDue(target)
			if err != nil {
				return err
			}
			req["target_date"] = t.Format(time.RFC3339)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/goals", req)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Added goal %q", name)
		return nil
	},
}

var goalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List goals",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/goals")
		if err != nil {
			return err
		}

		var goals []struct {
			Name             string  `json:"name"`
			Category         string  `json:"category"`
			Progress         float64 `json:"progress"`
			DailyRequirement string  `json:"daily_requirement"`
			Streak           int     `json:"streak"`
		}
		if err := decodeJSON(resp, &goals); err != nil {
			return err
		}

		if len(goals) == 0 {
			fmt.Println("No goals.")
			return nil
		}

		for _, g := range goals {
			line := fmt.Sprintf("%s  %3.0f%%", colorize(colorBold, g.Name), g.Progress*100)
			if g.DailyRequirement != "" {
				line += fmt.Sprintf("  (streak %d: %s)", g.Streak, g.DailyRequirement)
			}
			fmt.Println(line)
		}
		return nil
	},
}

var goalDoneCmd = &cobra.Command{
	Use:   "done <key>",
	Short: "Mark today's daily requirement complete",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/goals/"+args[0]+"/complete", nil)
		if err != nil {
			return err
		}

		var g struct {
			Name   string `json:"name"`
			Streak int    `json:"streak"`
		}
		if err := decodeJSON(resp, &g); err != nil {
			return err
		}

		printSuccess("%s: streak is now %d days", g.Name, g.Streak)
		return nil
	},
}

var goalResetStreakCmd = &cobra.Command{
	Use:   "reset-streak <key>",
	Short: "Reset a goal's streak to zero",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/goals/"+args[0]+"/reset-streak", nil)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Streak reset for %s", args[0])
		return nil
	},
}

func init() {
	goalAddCmd.Flags().String("category", "", "free-form category")
	goalAddCmd.Flags().String("target", "", "target date (YYYY-MM-DD)")
	goalAddCmd.Flags().String("daily", "", "daily requirement that feeds the streak")
	goalAddCmd.Flags().String("description", "", "description")

	goalCmd.AddCommand(goalAddCmd)
	goalCmd.AddCommand(goalListCmd)
	goalCmd.AddCommand(goalDoneCmd)
	goalCmd.AddCommand(goalResetStreakCmd)
}

// --- syllabus ---

var syllabusCmd = &cobra.Command{
	Use:   "syllabus",
	Short: "Import deadlines from syllabi",
}

var syllabusImportCmd = &cobra.Command{
	Use:   "import <dir>",
	Short: "Import deadlines from syllabi (PDF or text)",
	Long: `Scan a directory of syllabi for dated deliverables and add them as
deadlines.

Examples:
  bowen syllabus import ~/school/spring
  bowen syllabus import ~/school/spring --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := args[0]
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		category, _ := cmd.Flags().GetString("category")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]any{
			"dir":      dir,
			"apply":    !dryRun,
			"category": category,
		}
		resp, err := client.post(cmd.Context(), "/syllabus/import", req)
		if err != nil {
			return err
		}

		var result struct {
			Candidates []struct {
				Name   string    `json:"name"`
				DueAt  time.Time `json:"due_at"`
				Source string    `json:"source"`
			} `json:"candidates"`
			Added   int `json:"added"`
			Skipped int `json:"skipped"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		for _, c := range result.Candidates {
			fmt.Printf("%s  %s  (%s)\n", c.DueAt.Format("Jan 2"), c.Name, c.Source)
		}
		if dryRun {
			fmt.Printf("\n%d candidate(s) found. Re-run without --dry-run to add them.\n", len(result.Candidates))
		} else {
			printSuccess("Added %d deadline(s), skipped %d existing", result.Added, result.Skipped)
		}
		return nil
	},
}

func init() {
	syllabusImportCmd.Flags().Bool("dry-run", false, "list candidates without adding them")
	syllabusImportCmd.Flags().String("category", "coursework", "category for imported deadlines")
	syllabusCmd.AddCommand(syllabusImportCmd)
}

// --- profile ---

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage user profile",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current profile as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/profile")
		if err != nil {
			return err
		}

		var profile any
		if err := decodeJSON(resp, &profile); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(profile)
	},
}

var profileSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a profile field",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		body := map[string]any{key: value}
		resp, err := client.patch(cmd.Context(), "/profile", body)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileSetCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
