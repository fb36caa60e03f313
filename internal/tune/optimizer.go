package tune

import (
	"fmt"
	"math/rand"

	"github.com/cwbudde/mayfly"
)

// Optimizer defines a bounded black-box minimizer
type Optimizer interface {
	// Run minimizes eval over the box [lower, upper] and returns the best
	// point with its cost.
	Run(eval func([]float64) float64, lower, upper []float64) ([]float64, float64, error)
}

// MayflyAdapter wraps the Mayfly library to conform to the Optimizer interface
type MayflyAdapter struct {
	maxIters int
	popSize  int
	seed     int64
}

// MinPopulation is the smallest swarm Mayfly accepts
const MinPopulation = 20

// NewMayfly creates a new Mayfly optimizer adapter
func NewMayfly(maxIters, popSize int, seed int64) *MayflyAdapter {
	return &MayflyAdapter{
		maxIters: maxIters,
		popSize:  popSize,
		seed:     seed,
	}
}

// Run executes the Mayfly optimization.
// Mayfly only takes scalar bounds, so the search runs on the unit cube and
// each point is mapped onto the per-dimension box before evaluation.
func (m *MayflyAdapter) Run(eval func([]float64) float64, lower, upper []float64) ([]float64, float64, error) {
	if len(lower) == 0 || len(lower) != len(upper) {
		return nil, 0, fmt.Errorf("bounds must be non-empty and of equal length, got %d and %d", len(lower), len(upper))
	}
	if m.popSize < MinPopulation {
		return nil, 0, fmt.Errorf("population must be at least %d, got %d", MinPopulation, m.popSize)
	}

	config := mayfly.NewDefaultConfig()
	config.ObjectiveFunc = func(u []float64) float64 {
		return eval(scale(u, lower, upper))
	}
	config.ProblemSize = len(lower)
	config.MaxIterations = m.maxIters
	config.NPop = m.popSize
	config.LowerBound = 0
	config.UpperBound = 1
	config.Rand = rand.New(rand.NewSource(m.seed))

	result, err := mayfly.Optimize(config)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to run mayfly: %w", err)
	}

	return scale(result.GlobalBest.Position, lower, upper), result.GlobalBest.Cost, nil
}

// scale maps a point of the unit cube onto [lower, upper], clamping
// coordinates that left the cube.
func scale(u, lower, upper []float64) []float64 {
	x := make([]float64, len(lower))
	for i := range x {
		v := u[i]
		if v < 0 {
			v = 0
		} else if v > 1 {
			v = 1
		}
		x[i] = lower[i] + v*(upper[i]-lower[i])
	}
	return x
}
