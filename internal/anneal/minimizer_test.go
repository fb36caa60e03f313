package anneal

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"testing"

	"github.com/cwbudde/seqdesign/internal/design"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// plddtOracle reports a fixed per-chain confidence.
type plddtOracle struct {
	value float64
	calls int
}

func (o *plddtOracle) Compute(ctx context.Context, seqs design.Sequences) (design.Outputs, error) {
	o.calls++
	plddt := make(map[string]float64, len(seqs))
	for name := range seqs {
		plddt[name] = o.value
	}
	return design.Outputs{"pLDDT": plddt}, nil
}

// countOracle reports how many times a symbol occurs across all chains.
type countOracle struct{ symbol rune }

func (o countOracle) Compute(ctx context.Context, seqs design.Sequences) (design.Outputs, error) {
	n := 0
	for _, seq := range seqs {
		for _, r := range seq {
			if r == o.symbol {
				n++
			}
		}
	}
	return design.Outputs{"count": float64(n)}, nil
}

type failingOracle struct{ err error }

func (o failingOracle) Compute(ctx context.Context, seqs design.Sequences) (design.Outputs, error) {
	return nil, o.err
}

type plddtTerm struct{ weight float64 }

func (p plddtTerm) Evaluate(outputs design.Outputs, state design.State) float64 {
	plddt, ok := outputs.ChainFloats("pLDDT")
	if !ok {
		return 0
	}
	return -plddt["A"] * p.weight
}

type countTerm struct{ weight float64 }

func (c countTerm) Evaluate(outputs design.Outputs, state design.State) float64 {
	v, _ := outputs.Float("count")
	return c.weight * v
}

// onceMutator returns a fixed proposal on its first call and echoes afterwards.
type onceMutator struct {
	proposal design.Sequences
	calls    int
}

func (m *onceMutator) Propose(seqs design.Sequences, outputs design.Outputs) (design.Sequences, error) {
	m.calls++
	if m.calls == 1 {
		return m.proposal.Clone(), nil
	}
	return seqs.Clone(), nil
}

// flipMutator rewrites one random position of chain A to a random symbol.
type flipMutator struct {
	rng      *rand.Rand
	alphabet string
}

func (m flipMutator) Propose(seqs design.Sequences, outputs design.Outputs) (design.Sequences, error) {
	out := seqs.Clone()
	s := []byte(out["A"])
	s[m.rng.Intn(len(s))] = m.alphabet[m.rng.Intn(len(m.alphabet))]
	out["A"] = string(s)
	return out, nil
}

type tagMutator struct{ hits *int }

func (m tagMutator) Propose(seqs design.Sequences, outputs design.Outputs) (design.Sequences, error) {
	*m.hits++
	return seqs.Clone(), nil
}

func TestNew_RejectsNonPositiveSteps(t *testing.T) {
	for _, steps := range []int{0, -3} {
		_, err := New(steps, 1.0, 0.1)
		assert.ErrorIs(t, err, design.ErrInvalidConfiguration, "steps=%d", steps)
	}
}

func TestNew_RejectsBadFreqs(t *testing.T) {
	_, err := New(10, 1, 0.1, WithProposalFreqs([]int{0, 0}))
	assert.ErrorIs(t, err, design.ErrInvalidConfiguration)

	_, err = New(10, 1, 0.1, WithProposalFreqs([]int{1, -1}))
	assert.ErrorIs(t, err, design.ErrInvalidConfiguration)
}

func TestLinearSchedule(t *testing.T) {
	schedule := LinearSchedule(5, 1.0, 0.2)
	require.Len(t, schedule, 5)
	assert.Equal(t, 1.0, schedule[0])
	assert.Equal(t, 0.2, schedule[4])
	for i := 1; i < len(schedule); i++ {
		assert.Less(t, schedule[i], schedule[i-1])
	}

	assert.Equal(t, []float64{0.2}, LinearSchedule(1, 1.0, 0.2))

	rising := LinearSchedule(4, 0.0, 3.0)
	assert.InDeltaSlice(t, []float64{0, 1, 2, 3}, rising, 1e-12)

	m, err := New(7, 2.0, 0.5)
	require.NoError(t, err)
	assert.Equal(t, LinearSchedule(7, 2.0, 0.5), m.Schedule())
}

func TestAccept_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 10000; i++ {
		dE := -rng.Float64() * 100
		if i%10 == 0 {
			dE = 0
		}
		temperature := (rng.Float64() - 0.5) * 10
		assert.True(t, Accept(dE, temperature, rng.Float64()), "dE=%v T=%v", dE, temperature)
	}

	for i := 0; i < 10000; i++ {
		dE := rng.Float64()*100 + 1e-9
		temperature := -rng.Float64() * 10
		if i%10 == 0 {
			temperature = 0
		}
		assert.False(t, Accept(dE, temperature, 0), "dE=%v T=%v", dE, temperature)
	}

	// exp(-1/1) ~ 0.3679
	assert.True(t, Accept(1, 1, 0.36))
	assert.False(t, Accept(1, 1, 0.37))
	// Temperatures below the floor still use the floor.
	assert.False(t, Accept(1, 1e-12, 0))
}

func TestSelectMutator_Weighted(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const draws = 100000
	counts := make([]int, 2)
	for i := 0; i < draws; i++ {
		counts[selectMutator(rng, []int{1, 3}, 2)]++
	}

	freq := float64(counts[1]) / draws
	assert.InDelta(t, 0.75, freq, 0.01)
}

func TestSelectMutator_Uniform(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	counts := make([]int, 4)
	for i := 0; i < 40000; i++ {
		counts[selectMutator(rng, nil, 4)]++
	}
	for _, c := range counts {
		assert.InDelta(t, 10000, c, 600)
	}
}

type fixedRand struct{ f float64 }

func (r fixedRand) Float64() float64 { return r.f }
func (r fixedRand) Intn(n int) int   { return 0 }

func TestSelectMutator_RoundingFallsBackToLast(t *testing.T) {
	// A draw at the very top of the range matches nothing but the last bucket.
	assert.Equal(t, 2, selectMutator(fixedRand{f: math.Nextafter(1, 2)}, []int{1, 1, 1}, 3))
}

func TestRun_SingleStepScenario(t *testing.T) {
	m, err := New(1, 1.0, 0.1, WithSeed(1))
	require.NoError(t, err)

	mut := &onceMutator{proposal: design.Sequences{"A": "AAAC"}}
	res, err := m.Run(context.Background(), System{
		Sequences:   design.Sequences{"A": "AAAA"},
		Oracles:     []design.Oracle{&plddtOracle{value: 0.9}},
		EnergyTerms: []design.EnergyTerm{plddtTerm{weight: 1.0}},
		Mutators:    []design.MutationProtocol{mut},
	})
	require.NoError(t, err)

	assert.InDelta(t, -0.9, res.BestEnergy, 1e-12)
	assert.Equal(t, design.Sequences{"A": "AAAA"}, res.BestSequences)
	assert.Equal(t, 0, res.BestStep)
	// dE == 0 is accepted, so the run ends on the proposal.
	assert.Equal(t, design.Sequences{"A": "AAAC"}, res.FinalSequences)
	assert.InDelta(t, res.BestEnergy, res.FinalEnergy, 1e-12)
	assert.Equal(t, 1, res.Stats.Accepted)
}

func TestRun_BestTracking(t *testing.T) {
	m, err := New(300, 2.0, 0.01, WithSeed(11))
	require.NoError(t, err)

	var accepted []float64
	obs := func(ev StepEvent) {
		if ev.Accepted {
			accepted = append(accepted, ev.Energy)
		}
		assert.LessOrEqual(t, ev.BestEnergy, ev.Energy)
	}
	m.observer = obs

	rng := rand.New(rand.NewSource(3))
	res, err := m.Run(context.Background(), System{
		Sequences:   design.Sequences{"A": "WWWWWWWWWW"},
		Oracles:     []design.Oracle{countOracle{symbol: 'W'}},
		EnergyTerms: []design.EnergyTerm{countTerm{weight: 1}},
		Mutators:    []design.MutationProtocol{flipMutator{rng: rng, alphabet: "AW"}},
	})
	require.NoError(t, err)
	require.NotEmpty(t, accepted)

	minSeen := 10.0 // initial energy
	for _, e := range accepted {
		minSeen = math.Min(minSeen, e)
	}
	assert.Equal(t, minSeen, res.BestEnergy)
	assert.LessOrEqual(t, res.BestEnergy, res.FinalEnergy)
	assert.Equal(t, 300, res.Stats.StepsRun)

	// Best sequences must reproduce the best energy.
	w := 0
	for _, r := range res.BestSequences["A"] {
		if r == 'W' {
			w++
		}
	}
	assert.Equal(t, float64(w), res.BestEnergy)
}

func TestRun_ReproducibleWithSeed(t *testing.T) {
	run := func() *Result {
		m, err := New(100, 1.0, 0.1, WithSeed(99))
		require.NoError(t, err)
		rng := rand.New(rand.NewSource(5))
		res, err := m.Run(context.Background(), System{
			Sequences:   design.Sequences{"A": "WWWWWW"},
			Oracles:     []design.Oracle{countOracle{symbol: 'W'}},
			EnergyTerms: []design.EnergyTerm{countTerm{weight: 1}},
			Mutators:    []design.MutationProtocol{flipMutator{rng: rng, alphabet: "ACW"}},
		})
		require.NoError(t, err)
		return res
	}

	assert.Equal(t, run(), run())
}

func TestRun_NoMutators(t *testing.T) {
	oracle := &plddtOracle{value: 0.5}
	m, err := New(5, 1, 0.1)
	require.NoError(t, err)

	_, err = m.Run(context.Background(), System{
		Sequences: design.Sequences{"A": "AAAA"},
		Oracles:   []design.Oracle{oracle},
	})
	assert.ErrorIs(t, err, design.ErrNoMutatorsConfigured)
	assert.Zero(t, oracle.calls)
}

func TestRun_FreqsLengthMismatch(t *testing.T) {
	m, err := New(5, 1, 0.1, WithProposalFreqs([]int{1, 2, 3}))
	require.NoError(t, err)

	hits := 0
	_, err = m.Run(context.Background(), System{
		Sequences: design.Sequences{"A": "AAAA"},
		Mutators:  []design.MutationProtocol{tagMutator{hits: &hits}, tagMutator{hits: &hits}},
	})
	assert.ErrorIs(t, err, design.ErrInvalidConfiguration)
	assert.Zero(t, hits)
}

func TestNew_EmptyFreqsAreNotUnset(t *testing.T) {
	_, err := New(3, 1, 0.1, WithProposalFreqs([]int{}))
	assert.ErrorIs(t, err, design.ErrInvalidConfiguration)

	m, err := New(3, 1, 0.1, WithProposalFreqs(nil))
	require.NoError(t, err)
	hits := 0
	_, err = m.Run(context.Background(), System{
		Sequences: design.Sequences{"A": "AAAA"},
		Mutators:  []design.MutationProtocol{tagMutator{hits: &hits}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, hits)
}

func TestRun_WeightedMutatorUse(t *testing.T) {
	m, err := New(4000, 1, 0.1, WithSeed(8), WithProposalFreqs([]int{1, 3}))
	require.NoError(t, err)

	var a, b int
	_, err = m.Run(context.Background(), System{
		Sequences: design.Sequences{"A": "AAAA"},
		Mutators:  []design.MutationProtocol{tagMutator{hits: &a}, tagMutator{hits: &b}},
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.75, float64(b)/float64(a+b), 0.03)
}

func TestRun_EmptySequences(t *testing.T) {
	m, err := New(5, 1, 0.1)
	require.NoError(t, err)
	hits := 0
	_, err = m.Run(context.Background(), System{
		Sequences: design.Sequences{},
		Mutators:  []design.MutationProtocol{tagMutator{hits: &hits}},
	})
	assert.ErrorIs(t, err, design.ErrInvalidConfiguration)
}

func TestRun_PropagatesOracleFailure(t *testing.T) {
	boom := errors.Join(design.ErrComputationFailed, errors.New("gpu lost"))
	m, err := New(5, 1, 0.1)
	require.NoError(t, err)
	hits := 0
	res, err := m.Run(context.Background(), System{
		Sequences: design.Sequences{"A": "AAAA"},
		Oracles:   []design.Oracle{failingOracle{err: boom}},
		Mutators:  []design.MutationProtocol{tagMutator{hits: &hits}},
	})
	assert.Nil(t, res)
	assert.Same(t, boom, err)
}

func TestRun_ZeroTemperatureRejectsUphill(t *testing.T) {
	m, err := New(50, 0, 0, WithSeed(2))
	require.NoError(t, err)

	res, err := m.Run(context.Background(), System{
		Sequences:   design.Sequences{"A": "AAAA"},
		Oracles:     []design.Oracle{countOracle{symbol: 'W'}},
		EnergyTerms: []design.EnergyTerm{countTerm{weight: 1}},
		Mutators:    []design.MutationProtocol{flipMutator{rng: rand.New(rand.NewSource(4)), alphabet: "W"}},
	})
	require.NoError(t, err)
	assert.Equal(t, design.Sequences{"A": "AAAA"}, res.FinalSequences)
	assert.Zero(t, res.Stats.Accepted)
}

func TestRun_EarlyStopping(t *testing.T) {
	m, err := New(1000, 1, 0.1, WithSeed(3), WithEarlyStopping(EarlyStopping{Patience: 5}))
	require.NoError(t, err)
	hits := 0
	res, err := m.Run(context.Background(), System{
		Sequences:   design.Sequences{"A": "AAAA"},
		Oracles:     []design.Oracle{&plddtOracle{value: 0.5}},
		EnergyTerms: []design.EnergyTerm{plddtTerm{weight: 1}},
		Mutators:    []design.MutationProtocol{tagMutator{hits: &hits}},
	})
	require.NoError(t, err)
	assert.True(t, res.Stats.StoppedEarly)
	assert.Equal(t, 5, res.Stats.StepsRun)
	assert.Equal(t, 5, hits)
}

func TestRun_LogsThroughInjectedLogger(t *testing.T) {
	var global bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&global, &slog.HandlerOptions{Level: slog.LevelDebug})))
	defer slog.SetDefault(prev)

	var injected bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&injected, &slog.HandlerOptions{Level: slog.LevelDebug}))

	m, err := New(1000, 1, 0.1, WithSeed(3), WithLogger(logger), WithEarlyStopping(EarlyStopping{Patience: 5}))
	require.NoError(t, err)
	hits := 0
	res, err := m.Run(context.Background(), System{
		Sequences: design.Sequences{"A": "AAAA"},
		Oracles: []design.Oracle{
			&plddtOracle{value: 0.5},
			&plddtOracle{value: 0.5},
		},
		EnergyTerms: []design.EnergyTerm{plddtTerm{weight: 1}},
		Mutators:    []design.MutationProtocol{tagMutator{hits: &hits}},
	})
	require.NoError(t, err)
	require.True(t, res.Stats.StoppedEarly)

	assert.Contains(t, injected.String(), "Convergence detected")
	assert.Contains(t, injected.String(), "Oracle output key overwritten")
	assert.Empty(t, global.String())
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m, err := New(100, 1, 0.1, WithObserver(func(ev StepEvent) {
		if ev.Step == 3 {
			cancel()
		}
	}))
	require.NoError(t, err)

	hits := 0
	_, err = m.Run(ctx, System{
		Sequences: design.Sequences{"A": "AAAA"},
		Mutators:  []design.MutationProtocol{tagMutator{hits: &hits}},
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, hits)
}

func TestRun_DoesNotAliasInput(t *testing.T) {
	m, err := New(20, 1, 0.1, WithSeed(1))
	require.NoError(t, err)
	start := design.Sequences{"A": "WWWW"}
	_, err = m.Run(context.Background(), System{
		Sequences:   start,
		Oracles:     []design.Oracle{countOracle{symbol: 'W'}},
		EnergyTerms: []design.EnergyTerm{countTerm{weight: 1}},
		Mutators:    []design.MutationProtocol{flipMutator{rng: rand.New(rand.NewSource(1)), alphabet: "A"}},
	})
	require.NoError(t, err)
	assert.Equal(t, design.Sequences{"A": "WWWW"}, start)
}
