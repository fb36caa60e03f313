package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/cwbudde/seqdesign/internal/store"
	"github.com/spf13/cobra"
)

var (
	logLevel  string
	dataDir   string
	storeKind string
	logger    *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "seqdesign",
	Short: "Monte-Carlo sequence design by simulated annealing",
	Long: `seqdesign optimizes multi-chain biological sequences by simulated annealing.
Structure oracles, energy terms and mutation protocols are assembled from a
declarative YAML or JSON run file and can be swapped without code changes.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		var level slog.Level
		switch logLevel {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			level = slog.LevelInfo
		}

		// Logs go to stderr; stdout carries results
		opts := &slog.HandlerOptions{Level: level}
		handler := slog.NewJSONHandler(os.Stderr, opts)
		logger = slog.New(handler)
		slog.SetDefault(logger)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "./data", "Base directory for run storage")
	rootCmd.PersistentFlags().StringVar(&storeKind, "store", store.BackendFS, "Run store backend (fs, sqlite)")
}

// openStore opens the run store selected by --store and --data-dir
func openStore() (store.Store, error) {
	st, err := store.NewStore(storeKind, dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}
	return st, nil
}
