package main

import (
	"fmt"
	"log/slog"
	"os"

	goutils "github.com/jkaninda/go-utils"
	"github.com/spf13/cobra"

	"github.com/jkaninda/kazi/internal/config"
	"github.com/jkaninda/kazi/internal/mcp"
	sqlitestore "github.com/jkaninda/kazi/internal/storage/sqlite"
	"github.com/jkaninda/kazi/internal/tools"
	"github.com/jkaninda/kazi/internal/tools/taskops"
)

var (
	mcpDBPath string
	mcpUserID string
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the task tools over MCP on stdio",
	Long: `Exposes the eight task tools to MCP clients (editors, agents) over
stdin/stdout. All tool calls are scoped to a single user. No LLM provider
is needed — the connected client brings its own model.`,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().StringVar(&mcpDBPath, "db", "", "SQLite database path (default: the server's database)")
	mcpCmd.Flags().StringVar(&mcpUserID, "user", "local", "user ID owning all tasks accessed over this connection")
}

func runMCP(_ *cobra.Command, _ []string) error {
	// Logs must go to stderr — stdout carries the MCP transport.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	dbPath := goutils.Env("KAZI_DB_PATH", mcpDBPath)
	if dbPath == "" {
		dbPath = (&config.Config{}).DatabasePath()
	}

	store, err := sqlitestore.Open(sqlitestore.Config{Path: dbPath}, logger)
	if err != nil {
		return fmt.Errorf("opening database %s: %w", dbPath, err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("closing store", slog.String("error", err.Error()))
		}
	}()

	registry := tools.NewRegistry()
	taskops.RegisterAll(registry, store.Tasks(), logger)
	dispatcher := tools.NewDispatcher(registry, 4)

	return mcp.NewServer(dispatcher, mcpUserID, version, logger).ServeStdio()
}
