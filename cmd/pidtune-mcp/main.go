// pidtune-mcp: PID tuning assistant as an MCP server
//
// Exposes one local tuning session over the stdio transport so an MCP
// client can walk through describe, run, refine.
//
// Usage:
//
//	pidtune-mcp serve      # Start MCP server (stdio transport)
//	pidtune-mcp version
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/ashureev/pidtune/internal/advisory"
	"github.com/ashureev/pidtune/internal/config"
	"github.com/ashureev/pidtune/internal/domain"
	"github.com/ashureev/pidtune/internal/mcptools"
	"github.com/ashureev/pidtune/internal/store"
	"github.com/ashureev/pidtune/internal/tuning"
	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
)

// localUser owns the settings of the single MCP session.
const localUser = "local"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "--help", "-h", "help":
		printUsage()
	case "--version", "-v", "version":
		fmt.Printf("pidtune-mcp v%s\n", mcptools.Version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func run() error {
	// stdout carries the MCP transport.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	fallback := domain.Credentials{APIKey: cfg.Advisory.APIKey, Model: cfg.Advisory.Model}
	creds := advisory.CredentialFunc(func(ctx context.Context) (domain.Credentials, error) {
		return store.LoadCredentials(ctx, repo, localUser, fallback)
	})
	advisor := advisory.NewOpenAIClient(creds, advisory.OpenAIConfig{
		BaseURL:    cfg.Advisory.BaseURL,
		Timeout:    cfg.Advisory.Timeout,
		MaxRetries: cfg.Advisory.MaxRetries,
	}, logger)

	session := tuning.NewSession(tuning.DefaultSessionID, advisor, tuning.Options{
		Logger: logger,
		OnChange: func(snap tuning.Snapshot) {
			slog.Info("Session changed", "stage", snap.Stage, "history_len", snap.HistoryLen)
		},
	})

	s := mcptools.NewServer(session, repo, localUser, fallback)
	slog.Info("MCP server ready", "version", mcptools.Version, "db_path", cfg.DBPath)
	return server.ServeStdio(s)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `pidtune-mcp v%s - PID tuning assistant MCP server

Usage:
  pidtune-mcp serve      Start the MCP server on stdio
  pidtune-mcp version    Print the version

Environment:
  DB_PATH           settings database (default ./data/pidtune.db)
  OPENAI_API_KEY    key used until one is saved with pid_settings
  OPENAI_MODEL      default model
  OPENAI_BASE_URL   chat completion endpoint
`, mcptools.Version)
}
