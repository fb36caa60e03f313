package anneal

import (
	"log/slog"
	"math"
)

// EarlyStopping ends a run once the best energy has stalled.
// A zero Patience disables it and the run lasts exactly the configured steps.
type EarlyStopping struct {
	// Patience is the number of consecutive steps without a significant
	// best-energy improvement before stopping.
	Patience int `json:"patience" yaml:"patience"`

	// MinDelta is the minimum absolute drop in best energy that counts as progress.
	MinDelta float64 `json:"min_delta" yaml:"min_delta"`
}

// Enabled reports whether the rule can ever trigger.
func (e EarlyStopping) Enabled() bool {
	return e.Patience > 0
}

// convergenceTracker watches the best energy step by step.
type convergenceTracker struct {
	logger          *slog.Logger
	config          EarlyStopping
	lastSignificant float64
	staleCount      int
}

func newConvergenceTracker(logger *slog.Logger, config EarlyStopping, initial float64) *convergenceTracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &convergenceTracker{
		logger:          logger,
		config:          config,
		lastSignificant: initial,
	}
}

// Update records the best energy after a step and reports whether to stop.
func (c *convergenceTracker) Update(best float64) bool {
	if !c.config.Enabled() {
		return false
	}

	if c.lastSignificant-best >= math.Max(c.config.MinDelta, 0) && best < c.lastSignificant {
		c.lastSignificant = best
		c.staleCount = 0
		return false
	}

	c.staleCount++
	if c.staleCount >= c.config.Patience {
		c.logger.Info("Convergence detected - stopping early",
			"stale_count", c.staleCount,
			"patience", c.config.Patience,
			"best_energy", best,
		)
		return true
	}
	return false
}
