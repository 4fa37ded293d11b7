package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "bowen",
	Short: "bowen - personal assistant memory and context server",
	Long: `bowen keeps a tiered memory of durable facts, tracks deadlines and
goals, and assembles fresh, prioritized context for assistant prompts.

Run "bowen start" to launch the server, then use the other commands to
talk to it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.Version = version

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)

	rootCmd.AddCommand(briefCmd)
	rootCmd.AddCommand(rememberCmd)
	rootCmd.AddCommand(contextCmd)
	rootCmd.AddCommand(staleCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(questionsCmd)

	rootCmd.AddCommand(deadlineCmd)
	rootCmd.AddCommand(goalCmd)
	rootCmd.AddCommand(syllabusCmd)

	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
