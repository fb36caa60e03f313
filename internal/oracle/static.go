package oracle

import (
	"context"

	"github.com/cwbudde/seqdesign/internal/design"
)

// StaticOracle returns the same outputs for every input. Useful for dry runs
// of a configuration without a model backend.
type StaticOracle struct {
	outputs design.Outputs
}

// NewStaticOracle creates an oracle that always reports outputs.
func NewStaticOracle(outputs map[string]any) *StaticOracle {
	out := make(design.Outputs, len(outputs))
	for k, v := range outputs {
		out[k] = v
	}
	return &StaticOracle{outputs: out}
}

// Compute implements design.Oracle. Each call gets its own top-level map.
func (s *StaticOracle) Compute(ctx context.Context, seqs design.Sequences) (design.Outputs, error) {
	out := make(design.Outputs, len(s.outputs))
	for k, v := range s.outputs {
		out[k] = v
	}
	return out, nil
}
