package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/Yates-Labs/odyssey/internal/config"
	"github.com/Yates-Labs/odyssey/internal/history"
	"github.com/spf13/cobra"
)

var (
	configFile string
	sessionID  string
	dbPath     string
	ephemeral  bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "odyssey",
	Short: "Odyssey - an interactive space exploration story",
	Long: `Odyssey is a turn-based branching story told by a large language model.

You are a space traveller exploring a new solar system. Each response ends
with a set of options; type what you want to do and the story adapts. The
game ends when the story reaches one of its endings.

Environment variables (read from .env and keys.env as well):
  OPENAI_API_KEY      - required for the OpenAI backends (1 and 2)
  MISTRAL_API_KEY     - required for the Mistral backend (3)
  ODYSSEY_DB_PATH     - history database (default: odyssey.db)
  ODYSSEY_SESSION_ID  - session id (default: misterious_adventurer)
  ODYSSEY_TIMEOUT     - deadline for a single backend call (default: 2m)
  ODYSSEY_LOG_LEVEL   - debug, info, warn or error (default: warn)`,
	Args:          cobra.NoArgs,
	RunE:          runPlay,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session", "", "Session id the history is stored under")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the SQLite history database")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Log turn details to stderr")
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// loadConfig reads configuration and applies command-line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("session") {
		cfg.SessionID = sessionID
	}
	if flags.Changed("db") {
		cfg.DBPath = dbPath
	}
	if flags.Changed("timeout") {
		cfg.Timeout = timeout
	}
	if verbose {
		cfg.LogLevel = slog.LevelDebug
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
}

func openStore(ctx context.Context, cfg *config.Config) (history.Store, error) {
	if ephemeral {
		return history.NewMemoryStore(), nil
	}
	return history.OpenSQLiteStore(ctx, cfg.DBPath)
}
