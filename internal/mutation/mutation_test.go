package mutation

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/cwbudde/seqdesign/internal/design"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func diffCount(a, b string) int {
	n := 0
	for i := range a {
		if a[i] != b[i] {
			n++
		}
	}
	return n
}

func TestRandomMutator_PreservesChainsAndInput(t *testing.T) {
	m, err := NewRandomMutator(0.5, "", rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	in := design.Sequences{"A": strings.Repeat("G", 50), "B": strings.Repeat("G", 20)}
	out, err := m.Propose(in, nil)
	require.NoError(t, err)

	assert.True(t, in.SameChains(out))
	assert.Equal(t, strings.Repeat("G", 50), in["A"])
	assert.Len(t, out["A"], 50)
	assert.Len(t, out["B"], 20)
	for _, r := range out["A"] {
		assert.Contains(t, AminoAcids, string(r))
	}
}

func TestRandomMutator_Rate(t *testing.T) {
	m, err := NewRandomMutator(0.2, "W", rand.New(rand.NewSource(3)))
	require.NoError(t, err)

	in := design.Sequences{"A": strings.Repeat("A", 10000)}
	out, err := m.Propose(in, nil)
	require.NoError(t, err)

	rate := float64(diffCount(in["A"], out["A"])) / 10000
	assert.InDelta(t, 0.2, rate, 0.02)
}

func TestRandomMutator_ZeroRateIsIdentity(t *testing.T) {
	m, err := NewRandomMutator(0, "", rand.New(rand.NewSource(3)))
	require.NoError(t, err)

	in := design.Sequences{"A": "MKVLA", "B": ""}
	out, err := m.Propose(in, nil)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestRandomMutator_Deterministic(t *testing.T) {
	propose := func() design.Sequences {
		m, err := NewRandomMutator(0.3, "", rand.New(rand.NewSource(77)))
		require.NoError(t, err)
		out, err := m.Propose(design.Sequences{"A": "MKVLAAGG", "B": "WWWWYYYY", "C": "PPPP"}, nil)
		require.NoError(t, err)
		return out
	}
	assert.Equal(t, propose(), propose())
}

func TestRandomMutator_InvalidRate(t *testing.T) {
	_, err := NewRandomMutator(1.5, "", nil)
	assert.ErrorIs(t, err, design.ErrInvalidConfiguration)
}

func TestConfidenceGuided_TargetsLowConfidenceChain(t *testing.T) {
	m, err := NewConfidenceGuidedMutator(1, "W", rand.New(rand.NewSource(5)))
	require.NoError(t, err)

	in := design.Sequences{"A": "AAAA", "B": "AAAA"}
	outputs := design.Outputs{"pLDDT": map[string]float64{"A": 1.0, "B": 0.1}}

	for i := 0; i < 100; i++ {
		out, err := m.Propose(in, outputs)
		require.NoError(t, err)
		assert.Equal(t, "AAAA", out["A"])
		assert.Equal(t, 1, diffCount(in["B"], out["B"]))
	}
	assert.Equal(t, "AAAA", in["B"])
}

func TestConfidenceGuided_UniformWithoutPLDDT(t *testing.T) {
	m, err := NewConfidenceGuidedMutator(1, "W", rand.New(rand.NewSource(9)))
	require.NoError(t, err)

	in := design.Sequences{"A": "AAAA", "B": "AAAA"}
	hitsA := 0
	for i := 0; i < 2000; i++ {
		out, err := m.Propose(in, design.Outputs{})
		require.NoError(t, err)
		if out["A"] != "AAAA" {
			hitsA++
		}
	}
	assert.InDelta(t, 1000, hitsA, 150)
}

func TestConfidenceGuided_InvalidCount(t *testing.T) {
	_, err := NewConfidenceGuidedMutator(0, "", nil)
	assert.ErrorIs(t, err, design.ErrInvalidConfiguration)
}
