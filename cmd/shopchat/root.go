package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/capitalize-ai/shop-assistant/internal/app"
	"github.com/capitalize-ai/shop-assistant/internal/config"
	"github.com/capitalize-ai/shop-assistant/pkg/logger"
)

var (
	sessionID      string
	dbPath         string
	storageBackend string
	logFile        string
	version        = "dev"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "shopchat",
	Short: "Chat with the MM Vietnam Shop assistant from a terminal",
	Long: `A terminal client for the MM Vietnam Shop assistant.

It runs the same assistant as the API server. Conversations, the wishlist,
and the cart are kept in a local SQLite file, so a chat can be resumed later.

Configuration comes from the same environment variables as the server
(LLM_PROVIDER, GEMINI_API_KEY, BACKEND_URL, ...).

Quick Start:
  shopchat chat                 # Start or resume the current conversation
  shopchat conversations        # List saved conversations
  shopchat wishlist             # Show the wishlist`,
	Version:      version,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&sessionID, "session", "local", "Session to chat in")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite file holding the session (default $SQLITE_PATH)")
	rootCmd.PersistentFlags().StringVar(&storageBackend, "storage", "", "Storage backend: sqlite, memory, or nats (default $STORAGE_BACKEND)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", filepath.Join(os.TempDir(), "shopchat.log"), "File receiving the structured log")

	rootCmd.AddCommand(chatCmd, conversationsCmd, wishlistCmd)
}

// openApp wires the assistant with flag overrides applied. Logs go to a
// file so they do not interleave with the chat.
func openApp(ctx context.Context) (*app.App, *logger.Logger, error) {
	cfg := config.Load()
	if dbPath != "" {
		cfg.SQLitePath = dbPath
	}
	if storageBackend != "" {
		cfg.StorageBackend = storageBackend
	}

	log, err := logger.NewFile(cfg.LogLevel, logFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Sync()
		return nil, nil, err
	}
	return a, log, nil
}
