package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cwbudde/seqdesign/internal/config"
	"github.com/cwbudde/seqdesign/internal/registry"
	"github.com/cwbudde/seqdesign/internal/tune"
	"github.com/spf13/cobra"
)

var tuneOpts = tune.DefaultOptions()

var tuneCmd = &cobra.Command{
	Use:   "tune",
	Short: "Search the annealing temperature schedule",
	Long: `Searches t_init and t_final for a run file with the Mayfly optimizer.
Each candidate schedule is scored by the mean best energy of short seeded
trial runs; the best schedule is printed as JSON.`,
	RunE: runTune,
}

func init() {
	tuneCmd.Flags().StringVarP(&configPath, "config", "c", "", "Run file path, YAML or JSON (required)")
	tuneCmd.Flags().StringVar(&outPath, "out", "", "Write result JSON to this file instead of stdout")
	tuneCmd.Flags().IntVar(&tuneOpts.Iterations, "iters", tuneOpts.Iterations, "Mayfly iterations")
	tuneCmd.Flags().IntVar(&tuneOpts.Population, "pop", tuneOpts.Population, fmt.Sprintf("Mayfly population size (>= %d)", tune.MinPopulation))
	tuneCmd.Flags().IntVar(&tuneOpts.Replicas, "replicas", tuneOpts.Replicas, "Seeded trial runs per candidate")
	tuneCmd.Flags().IntVar(&tuneOpts.Workers, "parallel", tuneOpts.Workers, "Trial runs to execute concurrently")
	tuneCmd.Flags().IntVar(&tuneOpts.Steps, "steps", tuneOpts.Steps, "Steps per trial run")
	tuneCmd.Flags().Int64Var(&tuneOpts.Seed, "seed", tuneOpts.Seed, "Seed for the search and the first trial replica")
	tuneCmd.Flags().Float64Var(&tuneOpts.LogTInit[0], "log-t-init-min", tuneOpts.LogTInit[0], "Lower bound of log10(t_init)")
	tuneCmd.Flags().Float64Var(&tuneOpts.LogTInit[1], "log-t-init-max", tuneOpts.LogTInit[1], "Upper bound of log10(t_init)")
	tuneCmd.Flags().Float64Var(&tuneOpts.LogTFinal[0], "log-t-final-min", tuneOpts.LogTFinal[0], "Lower bound of log10(t_final)")
	tuneCmd.Flags().Float64Var(&tuneOpts.LogTFinal[1], "log-t-final-max", tuneOpts.LogTFinal[1], "Upper bound of log10(t_final)")

	tuneCmd.MarkFlagRequired("config")
	rootCmd.AddCommand(tuneCmd)
}

func runTune(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	tuner, err := tune.New(cfg, registry.Default(), tuneOpts)
	if err != nil {
		return fmt.Errorf("invalid tuning options: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := tuner.Run(ctx)
	if err != nil {
		return fmt.Errorf("schedule search failed: %w", err)
	}
	return writeOutput(result)
}
