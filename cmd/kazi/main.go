// Kazi — conversational todo-list backend with a multilingual agent hierarchy.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "kazi",
	Short: "Kazi — a todo-list backend with a conversational AI assistant.",
	Long: `Kazi is a todo-list backend driven by natural language. An orchestrator
agent routes each message to a language-specific assistant (English or Urdu)
that manages tasks through a shared tool layer, persisted in SQLite or PostgreSQL.`,
	RunE:          runServer, // Default to server mode.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serverCmd, mcpCmd, versionCmd)
	_ = godotenv.Load()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}
