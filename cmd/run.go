package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwbudde/seqdesign/internal/anneal"
	"github.com/cwbudde/seqdesign/internal/config"
	"github.com/cwbudde/seqdesign/internal/registry"
	"github.com/cwbudde/seqdesign/internal/store"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	configPath     string
	outPath        string
	seed           int64
	replicas       int
	parallel       int
	traceRun       bool
	traceSequences bool
	noSave         bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run annealing from a run file",
	Long: `Loads a run file, assembles its oracles, energy terms, mutation protocols and
minimizer, runs the annealing and prints the result as JSON.

With --replicas N the same run file is executed N times with seeds
seed, seed+1, ..., seed+N-1.`,
	RunE: runAnneal,
}

func init() {
	runCmd.Flags().StringVarP(&configPath, "config", "c", "", "Run file path, YAML or JSON (required)")
	runCmd.Flags().StringVar(&outPath, "out", "", "Write result JSON to this file instead of stdout")
	runCmd.Flags().Int64Var(&seed, "seed", 0, "Override the minimizer seed")
	runCmd.Flags().IntVar(&replicas, "replicas", 1, "Number of independently seeded runs")
	runCmd.Flags().IntVar(&parallel, "parallel", 1, "Replicas to run concurrently")
	runCmd.Flags().BoolVar(&traceRun, "trace", false, "Record a per-step trace under the data directory")
	runCmd.Flags().BoolVar(&traceSequences, "trace-sequences", false, "Include sequences in trace entries")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "Do not store the finished run")

	runCmd.MarkFlagRequired("config")
	rootCmd.AddCommand(runCmd)
}

// runOutput is one finished run as printed by run and runs rerun
type runOutput struct {
	RunID  string         `json:"run_id"`
	Seed   int64          `json:"seed"`
	Saved  bool           `json:"saved"`
	Result *anneal.Result `json:"result"`
}

// replicaOutput summarizes a multi-replica run
type replicaOutput struct {
	Runs []*runOutput `json:"runs"`
	Best int          `json:"best"`
}

// runRequest describes a single execution of a parsed run file
type runRequest struct {
	cfg   *config.Config
	reg   *registry.Registry
	seed  *int64
	store store.Store // nil disables saving

	trace          bool
	traceSequences bool
}

func runAnneal(cmd *cobra.Command, args []string) error {
	if replicas <= 0 {
		return fmt.Errorf("replicas must be positive, got %d", replicas)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	var runStore store.Store
	if !noSave {
		runStore, err = openStore()
		if err != nil {
			return err
		}
		defer runStore.Close()
	}

	var seedOverride *int64
	if cmd != nil && cmd.Flags().Changed("seed") {
		seedOverride = &seed
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := runRequest{
		cfg:            cfg,
		reg:            registry.Default(),
		seed:           seedOverride,
		store:          runStore,
		trace:          traceRun,
		traceSequences: traceSequences,
	}

	if replicas == 1 {
		out, err := executeRun(ctx, req)
		if err != nil {
			return err
		}
		return writeOutput(out)
	}

	out, err := executeReplicas(ctx, req, replicas, parallel)
	if err != nil {
		return err
	}
	return writeOutput(out)
}

// executeReplicas runs n copies of req with consecutive seeds
func executeReplicas(ctx context.Context, req runRequest, n, workers int) (*replicaOutput, error) {
	base, err := baseSeed(req)
	if err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = 1
	}

	slog.Info("Starting replicas", "replicas", n, "parallel", workers, "base_seed", base)

	runs := make([]*runOutput, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range runs {
		replicaSeed := base + int64(i)
		r := req
		r.seed = &replicaSeed
		g.Go(func() error {
			out, err := executeRun(gctx, r)
			if err != nil {
				return fmt.Errorf("replica %d: %w", i, err)
			}
			runs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	best := 0
	for i, out := range runs {
		if out.Result.BestEnergy < runs[best].Result.BestEnergy {
			best = i
		}
	}
	slog.Info("Replicas complete",
		"replicas", n,
		"best_replica", best,
		"best_energy", runs[best].Result.BestEnergy,
		"best_run_id", runs[best].RunID,
	)
	return &replicaOutput{Runs: runs, Best: best}, nil
}

// baseSeed picks the first replica seed: override, then run file, then clock
func baseSeed(req runRequest) (int64, error) {
	if req.seed != nil {
		return *req.seed, nil
	}
	s, ok, err := req.cfg.Seed()
	if err != nil {
		return 0, err
	}
	if ok {
		return s, nil
	}
	return time.Now().UnixNano(), nil
}

// executeRun builds and runs one plan, optionally tracing and saving it
func executeRun(ctx context.Context, req runRequest) (*runOutput, error) {
	runID := uuid.New().String()
	opts := config.BuildOptions{Seed: req.seed}

	var traceErr func() error
	if req.trace {
		tw, err := store.NewTraceWriter(dataDir, runID, false)
		if err != nil {
			return nil, err
		}
		defer tw.Close()
		opts.Observer, traceErr = tw.Observer(req.traceSequences)
	}

	plan, err := req.cfg.Build(req.reg, opts)
	if err != nil {
		return nil, err
	}
	defer plan.Close()

	slog.Info("Starting run", "run_id", runID, "seed", plan.Seed, "steps", plan.Minimizer.Steps())

	start := time.Now()
	result, err := plan.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("run %s failed: %w", runID, err)
	}
	elapsed := time.Since(start)

	if traceErr != nil {
		if err := traceErr(); err != nil {
			return nil, fmt.Errorf("failed to write trace: %w", err)
		}
	}

	hits, misses := plan.CacheStats()
	slog.Info("Run complete",
		"run_id", runID,
		"elapsed", elapsed,
		"best_energy", result.BestEnergy,
		"best_step", result.BestStep,
		"final_energy", result.FinalEnergy,
		"acceptance_rate", result.Stats.AcceptanceRate(),
		"cache_hits", hits,
		"cache_misses", misses,
	)

	out := &runOutput{RunID: runID, Seed: plan.Seed, Result: result}
	if req.store != nil {
		rec := store.NewRecord(runID, plan.Seed, elapsed, req.cfg.RunConfig(plan), result)
		if err := req.store.SaveRun(rec); err != nil {
			return nil, fmt.Errorf("failed to save run: %w", err)
		}
		out.Saved = true
	}
	return out, nil
}

// writeOutput prints v as indented JSON to --out or stdout
func writeOutput(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	data = append(data, '\n')

	if outPath == "" || outPath == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	slog.Info("Wrote result", "path", outPath)
	return nil
}
