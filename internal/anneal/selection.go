package anneal

import "github.com/cwbudde/seqdesign/internal/design"

// selectMutator picks the index of the mutator to use for one step.
// Without weights the draw is uniform.
func selectMutator(rng randSource, freqs []int, n int) int {
	if len(freqs) == 0 {
		return rng.Intn(n)
	}

	total := 0
	for _, f := range freqs {
		total += f
	}

	r := rng.Float64() * float64(total)
	cumulative := 0.0
	for i, f := range freqs {
		cumulative += float64(f)
		if cumulative >= r {
			return i
		}
	}
	// Only reachable through floating point rounding.
	return len(freqs) - 1
}

func validateFreqs(freqs []int) error {
	if freqs == nil {
		return nil
	}
	if len(freqs) == 0 {
		return &design.ConfigError{Field: "proposal_freqs", Reason: "cannot be empty when set"}
	}
	total := 0
	for _, f := range freqs {
		if f < 0 {
			return &design.ConfigError{Field: "proposal_freqs", Reason: "weights cannot be negative"}
		}
		total += f
	}
	if total == 0 {
		return &design.ConfigError{Field: "proposal_freqs", Reason: "weights must sum to a positive value"}
	}
	return nil
}
