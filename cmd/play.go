package cmd

import (
	"context"
	"time"

	"github.com/Yates-Labs/odyssey/internal/backend"
	"github.com/Yates-Labs/odyssey/internal/console"
	"github.com/Yates-Labs/odyssey/internal/history"
	"github.com/Yates-Labs/odyssey/internal/orchestrator"
	"github.com/spf13/cobra"
)

var (
	backendToken string
	timeout      time.Duration
)

func init() {
	rootCmd.Flags().StringVar(&backendToken, "backend", "", "Backend to use (1, 2 or 3); skips the menu")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 0, "Deadline for a single backend call (e.g. 90s)")
	rootCmd.Flags().BoolVar(&ephemeral, "ephemeral", false, "Keep the history in memory instead of the database")
}

func runPlay(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	// Fail on a missing secret before connecting to anything.
	if def, ok := backend.Lookup(backendToken); ok {
		if _, err := cfg.Secret(def.SecretEnv); err != nil {
			return err
		}
	}

	// The store is opened only once a backend has been selected, so a
	// configuration error never touches the stored session.
	var store history.Store
	defer func() {
		if store != nil {
			store.Close()
		}
	}()

	rt := &orchestrator.RuntimeContext{
		OpenHistory: func(ctx context.Context) (*history.History, error) {
			s, err := openStore(ctx, cfg)
			if err != nil {
				return nil, err
			}
			store = s
			return history.New(cfg.SessionID, s), nil
		},
		Selector: backend.NewSelector(cfg, nil),
		Console:  console.New(cmd.InOrStdin(), cmd.OutOrStdout()),
		Logger:   logger,
		Backend:  backendToken,
	}

	logger.Debug("starting session", "session", cfg.SessionID, "db", cfg.DBPath, "ephemeral", ephemeral)
	return orchestrator.New(rt).Run(ctx)
}
