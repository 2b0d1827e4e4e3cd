package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "teachback",
	Short: "Learn by teaching an AI student",
	Long: "teachback runs teaching sessions where you explain a topic to an AI persona,\n" +
		"scores each explanation, asks follow-up questions and schedules SM-2 reviews.",
	SilenceUsage: true,
}

// Execute runs the root command with a context cancelled on SIGINT or
// SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	f := rootCmd.PersistentFlags()
	f.String("config", "", "Path to a teachback.yaml config file")
	f.String("db", "", "Path to SQLite database file (overrides TEACHBACK_DB_PATH)")
	f.String("owner", "", "Learner id (overrides TEACHBACK_OWNER)")
	f.String("log-mode", "", "Log encoding: dev or prod")
	f.String("log-level", "", "Log level: debug, info, warn, error")
	f.String("provider", "", "LLM provider: anthropic, openai, gemini, openrouter, mock")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(teachCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}
