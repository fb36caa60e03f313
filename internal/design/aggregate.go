package design

import (
	"context"
	"fmt"
	"log/slog"
)

// AggregateOracles runs every oracle in order and merges their outputs.
// On key collisions the later oracle wins. Oracle errors are returned as-is.
func AggregateOracles(ctx context.Context, seqs Sequences, oracles []Oracle) (Outputs, error) {
	return AggregateOraclesLogged(ctx, slog.Default(), seqs, oracles)
}

// AggregateOraclesLogged is AggregateOracles reporting overwritten keys to logger.
func AggregateOraclesLogged(ctx context.Context, logger *slog.Logger, seqs Sequences, oracles []Oracle) (Outputs, error) {
	if logger == nil {
		logger = slog.Default()
	}
	merged := make(Outputs)
	for i, o := range oracles {
		out, err := o.Compute(ctx, seqs)
		if err != nil {
			return nil, err
		}
		if out == nil {
			return nil, fmt.Errorf("%w: oracle %d (%T) returned no mapping", ErrInvalidOracleOutput, i, o)
		}
		for k, v := range out {
			if _, exists := merged[k]; exists {
				logger.Debug("Oracle output key overwritten", "key", k, "oracle_index", i)
			}
			merged[k] = v
		}
	}
	return merged, nil
}

// AggregateEnergy sums the contributions of all terms.
func AggregateEnergy(outputs Outputs, state State, terms []EnergyTerm) float64 {
	var total float64
	for _, term := range terms {
		total += term.Evaluate(outputs, state)
	}
	return total
}
