// Package mutation provides proposal strategies for the annealer. All
// mutators walk chains in sorted order so that a seeded generator yields
// the same proposals on every run.
package mutation

import (
	"math/rand"
	"time"

	"github.com/cwbudde/seqdesign/internal/design"
)

// AminoAcids is the 20-letter canonical amino acid alphabet.
const AminoAcids = "ACDEFGHIKLMNPQRSTVWY"

// DefaultMutationRate is the per-residue substitution probability.
const DefaultMutationRate = 0.05

// RandomMutator substitutes each residue independently with probability
// PMut, drawing the replacement uniformly from the alphabet. Oracle outputs
// are ignored.
type RandomMutator struct {
	pMut     float64
	alphabet []rune
	rng      *rand.Rand
}

// NewRandomMutator creates a mutator. A nil rng gets a time-seeded source.
func NewRandomMutator(pMut float64, alphabet string, rng *rand.Rand) (*RandomMutator, error) {
	if pMut < 0 || pMut > 1 {
		return nil, &design.ConfigError{Field: "p_mut", Reason: "must be within [0, 1]"}
	}
	if alphabet == "" {
		alphabet = AminoAcids
	}
	return &RandomMutator{
		pMut:     pMut,
		alphabet: []rune(alphabet),
		rng:      orDefault(rng),
	}, nil
}

// Propose implements design.MutationProtocol.
func (m *RandomMutator) Propose(seqs design.Sequences, outputs design.Outputs) (design.Sequences, error) {
	out := make(design.Sequences, len(seqs))
	for _, name := range seqs.Chains() {
		residues := []rune(seqs[name])
		for i := range residues {
			if m.rng.Float64() < m.pMut {
				residues[i] = m.alphabet[m.rng.Intn(len(m.alphabet))]
			}
		}
		out[name] = string(residues)
	}
	return out, nil
}

func orDefault(rng *rand.Rand) *rand.Rand {
	if rng != nil {
		return rng
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}
