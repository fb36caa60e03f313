// Package oracle provides predictive-model backends that turn chain
// sequences into scored outputs such as pLDDT, pTM and PAE.
package oracle

import (
	"context"
	"fmt"

	"github.com/cwbudde/seqdesign/internal/design"
)

// Output keys shared by the folding backends.
const (
	KeyPLDDT  = "pLDDT"
	KeyPTM    = "pTM"
	KeyPAE    = "PAE"
	KeyCoords = "coords"
)

const hydrophobic = "AILMVFWY"

// Backend names accepted by FoldingOracle.
const (
	BackendStub      = "stub"
	BackendColabFold = "colabfold"
)

// FoldingOracle reports per-chain confidence either from a deterministic
// composition heuristic ("stub") or from ColabFold runs ("colabfold").
type FoldingOracle struct {
	backend   string
	colabfold *ColabFoldRunner
}

// NewFoldingOracle creates a folding oracle for the given backend.
func NewFoldingOracle(backend string, models, recycles int) (*FoldingOracle, error) {
	switch backend {
	case "", BackendStub:
		return &FoldingOracle{backend: BackendStub}, nil
	case BackendColabFold:
		return &FoldingOracle{
			backend:   BackendColabFold,
			colabfold: NewColabFoldRunner(models, recycles),
		}, nil
	default:
		return nil, &design.ConfigError{Field: "backend", Reason: fmt.Sprintf("unsupported value %q", backend)}
	}
}

// Backend returns the active backend name.
func (f *FoldingOracle) Backend() string {
	return f.backend
}

// Compute implements design.Oracle.
func (f *FoldingOracle) Compute(ctx context.Context, seqs design.Sequences) (design.Outputs, error) {
	var plddt map[string]float64
	switch f.backend {
	case BackendColabFold:
		var err error
		plddt, err = f.colabfold.Predict(ctx, seqs)
		if err != nil {
			return nil, err
		}
	default:
		plddt = stubPLDDT(seqs)
	}

	coords := make(map[string]any, len(seqs))
	for name := range seqs {
		coords[name] = nil
	}

	return design.Outputs{
		KeyCoords: coords,
		KeyPLDDT:  plddt,
		KeyPAE:    nil,
		KeyPTM:    0.0,
	}, nil
}

// stubPLDDT maps hydrophobic fraction onto [0.2, 0.9]. Empty chains score 0.
func stubPLDDT(seqs design.Sequences) map[string]float64 {
	plddt := make(map[string]float64, len(seqs))
	for name, seq := range seqs {
		if len(seq) == 0 {
			plddt[name] = 0
			continue
		}
		n := 0
		for i := 0; i < len(seq); i++ {
			if isHydrophobic(seq[i]) {
				n++
			}
		}
		plddt[name] = 0.2 + 0.7*float64(n)/float64(len(seq))
	}
	return plddt
}

func isHydrophobic(c byte) bool {
	for i := 0; i < len(hydrophobic); i++ {
		if hydrophobic[i] == c {
			return true
		}
	}
	return false
}
