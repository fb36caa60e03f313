package mutation

import (
	"math/rand"

	"github.com/cwbudde/seqdesign/internal/design"
	"github.com/cwbudde/seqdesign/internal/oracle"
)

// ConfidenceGuidedMutator picks one chain per proposal, favouring chains
// with low pLDDT (weight 1 - pLDDT), and substitutes a fixed number of
// random positions in it. Without pLDDT every chain is equally likely.
type ConfidenceGuidedMutator struct {
	nMutations int
	alphabet   []rune
	rng        *rand.Rand
}

// NewConfidenceGuidedMutator creates a guided mutator.
func NewConfidenceGuidedMutator(nMutations int, alphabet string, rng *rand.Rand) (*ConfidenceGuidedMutator, error) {
	if nMutations <= 0 {
		return nil, &design.ConfigError{Field: "n_mutations", Reason: "must be positive"}
	}
	if alphabet == "" {
		alphabet = AminoAcids
	}
	return &ConfidenceGuidedMutator{
		nMutations: nMutations,
		alphabet:   []rune(alphabet),
		rng:        orDefault(rng),
	}, nil
}

// Propose implements design.MutationProtocol.
func (m *ConfidenceGuidedMutator) Propose(seqs design.Sequences, outputs design.Outputs) (design.Sequences, error) {
	out := seqs.Clone()
	names := seqs.Chains()
	if len(names) == 0 {
		return out, nil
	}

	target := names[m.pickChain(names, outputs)]
	residues := []rune(out[target])
	if len(residues) == 0 {
		return out, nil
	}
	for i := 0; i < m.nMutations; i++ {
		pos := m.rng.Intn(len(residues))
		residues[pos] = m.alphabet[m.rng.Intn(len(m.alphabet))]
	}
	out[target] = string(residues)
	return out, nil
}

func (m *ConfidenceGuidedMutator) pickChain(names []string, outputs design.Outputs) int {
	plddt, ok := outputs.ChainFloats(oracle.KeyPLDDT)
	if !ok {
		return m.rng.Intn(len(names))
	}

	weights := make([]float64, len(names))
	var total float64
	for i, name := range names {
		p, found := plddt[name]
		if !found {
			p = 0
		}
		w := 1 - p
		if w < 0 {
			w = 0
		}
		weights[i] = w
		total += w
	}
	if total <= 0 {
		return m.rng.Intn(len(names))
	}

	r := m.rng.Float64() * total
	cumulative := 0.0
	for i, w := range weights {
		cumulative += w
		if cumulative > r {
			return i
		}
	}
	return len(names) - 1
}
