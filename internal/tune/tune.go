// Package tune searches for an annealing temperature schedule.
//
// Each candidate (t_init, t_final) is scored by the mean best energy of a few
// short seeded runs of the same configuration. All candidates share the same
// replica seeds so differences in score come from the schedule alone.
package tune

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/cwbudde/seqdesign/internal/config"
	"github.com/cwbudde/seqdesign/internal/registry"
	"golang.org/x/sync/errgroup"
)

// Trial runs are numerous and short; their per-run logs are dropped.
var trialLogger = slog.New(slog.DiscardHandler)

// Options controls a schedule search
type Options struct {
	Iterations int
	Population int
	Replicas   int
	Workers    int

	// Steps is the length of each trial run
	Steps int
	Seed  int64

	// Search bounds in log10 space
	LogTInit  [2]float64
	LogTFinal [2]float64
}

// DefaultOptions returns a small search suitable for cheap oracles
func DefaultOptions() Options {
	return Options{
		Iterations: 10,
		Population: MinPopulation,
		Replicas:   2,
		Workers:    1,
		Steps:      100,
		Seed:       1,
		LogTInit:   [2]float64{-2, 1},
		LogTFinal:  [2]float64{-4, 0},
	}
}

// Validate checks the option ranges
func (o Options) Validate() error {
	switch {
	case o.Iterations <= 0:
		return fmt.Errorf("iterations must be positive, got %d", o.Iterations)
	case o.Population < MinPopulation:
		return fmt.Errorf("population must be at least %d, got %d", MinPopulation, o.Population)
	case o.Replicas <= 0:
		return fmt.Errorf("replicas must be positive, got %d", o.Replicas)
	case o.Steps <= 0:
		return fmt.Errorf("steps must be positive, got %d", o.Steps)
	case o.LogTInit[0] > o.LogTInit[1]:
		return fmt.Errorf("invalid t_init range %v", o.LogTInit)
	case o.LogTFinal[0] > o.LogTFinal[1]:
		return fmt.Errorf("invalid t_final range %v", o.LogTFinal)
	}
	return nil
}

// Result is the best schedule found
type Result struct {
	TInit          float64 `json:"t_init"`
	TFinal         float64 `json:"t_final"`
	MeanBestEnergy float64 `json:"mean_best_energy"`
	Evaluations    int64   `json:"evaluations"`
	Steps          int     `json:"steps"`
}

// Tuner scores schedules for one configuration
type Tuner struct {
	cfg       *config.Config
	reg       *registry.Registry
	opts      Options
	optimizer Optimizer

	evaluations atomic.Int64

	mu  sync.Mutex
	err error
}

// New creates a tuner using Mayfly as the outer optimizer
func New(cfg *config.Config, reg *registry.Registry, opts Options) (*Tuner, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if reg == nil {
		reg = registry.Default()
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Tuner{
		cfg:       cfg,
		reg:       reg,
		opts:      opts,
		optimizer: NewMayfly(opts.Iterations, opts.Population, opts.Seed),
	}, nil
}

// Run searches the schedule space. It stops early with ctx's error when
// ctx is cancelled.
func (t *Tuner) Run(ctx context.Context) (*Result, error) {
	lower := []float64{t.opts.LogTInit[0], t.opts.LogTFinal[0]}
	upper := []float64{t.opts.LogTInit[1], t.opts.LogTFinal[1]}

	slog.Info("Starting schedule search",
		"iterations", t.opts.Iterations,
		"population", t.opts.Population,
		"replicas", t.opts.Replicas,
		"steps", t.opts.Steps,
	)

	best, cost, err := t.optimizer.Run(func(x []float64) float64 {
		return t.objective(ctx, x)
	}, lower, upper)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := t.firstErr(); err != nil {
		return nil, err
	}

	result := &Result{
		TInit:          math.Pow(10, best[0]),
		TFinal:         math.Pow(10, best[1]),
		MeanBestEnergy: cost,
		Evaluations:    t.evaluations.Load(),
		Steps:          t.opts.Steps,
	}
	slog.Info("Schedule search complete",
		"t_init", result.TInit,
		"t_final", result.TFinal,
		"mean_best_energy", result.MeanBestEnergy,
		"evaluations", result.Evaluations,
	)
	return result, nil
}

// objective returns the mean best energy over all replicas, or +Inf once
// the search has been cancelled or a run has failed.
func (t *Tuner) objective(ctx context.Context, x []float64) float64 {
	if ctx.Err() != nil || t.failed() {
		return math.Inf(1)
	}
	t.evaluations.Add(1)

	tInit, tFinal := math.Pow(10, x[0]), math.Pow(10, x[1])
	score, err := t.Score(ctx, tInit, tFinal)
	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			t.fail(err)
		}
		return math.Inf(1)
	}
	slog.Debug("Scored schedule", "t_init", tInit, "t_final", tFinal, "mean_best_energy", score)
	return score
}

// Score runs every replica with the given schedule and returns the mean
// best energy.
func (t *Tuner) Score(ctx context.Context, tInit, tFinal float64) (float64, error) {
	energies := make([]float64, t.opts.Replicas)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.opts.Workers)
	for i := range energies {
		seed := t.opts.Seed + int64(i)
		g.Go(func() error {
			plan, err := t.cfg.Build(t.reg, config.BuildOptions{
				Seed:   &seed,
				Logger: trialLogger,
				MinimizerOverrides: map[string]any{
					"steps":   t.opts.Steps,
					"t_init":  tInit,
					"t_final": tFinal,
				},
			})
			if err != nil {
				return err
			}
			defer plan.Close()

			result, err := plan.Run(gctx)
			if err != nil {
				return fmt.Errorf("replica %d: %w", i, err)
			}
			energies[i] = result.BestEnergy
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	var sum float64
	for _, e := range energies {
		sum += e
	}
	return sum / float64(len(energies)), nil
}

func (t *Tuner) fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err == nil {
		t.err = err
		slog.Error("Trial run failed, aborting search", "error", err)
	}
}

func (t *Tuner) failed() bool {
	return t.firstErr() != nil
}

func (t *Tuner) firstErr() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}
