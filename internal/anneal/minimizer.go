package anneal

import (
	"context"
	"log/slog"
	"math/rand"

	"github.com/cwbudde/seqdesign/internal/design"
)

// randSource is the subset of *rand.Rand the minimizer draws from.
type randSource interface {
	Float64() float64
	Intn(n int) int
}

// processRand draws from the shared math/rand source.
type processRand struct{}

func (processRand) Float64() float64 { return rand.Float64() }
func (processRand) Intn(n int) int   { return rand.Intn(n) }

// System bundles the collaborators and starting point of a run.
type System struct {
	Sequences   design.Sequences
	Oracles     []design.Oracle
	EnergyTerms []design.EnergyTerm
	Mutators    []design.MutationProtocol
}

// StepEvent describes one completed iteration.
type StepEvent struct {
	Step           int     `json:"step"`
	Temperature    float64 `json:"temperature"`
	Mutator        int     `json:"mutator"`
	ProposedEnergy float64 `json:"proposed_energy"`
	Energy         float64 `json:"energy"`
	BestEnergy     float64 `json:"best_energy"`
	Accepted       bool    `json:"accepted"`
	Improved       bool    `json:"improved"`

	// Sequences is the current state after the step. Observers must not modify it.
	Sequences design.Sequences `json:"-"`
}

// Observer is called synchronously after every step.
type Observer func(StepEvent)

// Option configures a Minimizer.
type Option func(*Minimizer)

// WithProposalFreqs sets integer weights for mutator selection, one per mutator.
// A nil slice leaves the draw uniform; an empty one is rejected.
func WithProposalFreqs(freqs []int) Option {
	return func(m *Minimizer) {
		if freqs == nil {
			m.freqs = nil
			return
		}
		m.freqs = append(make([]int, 0, len(freqs)), freqs...)
	}
}

// WithSeed makes every draw of the minimizer reproducible.
func WithSeed(seed int64) Option {
	return func(m *Minimizer) {
		m.rng = rand.New(rand.NewSource(seed))
	}
}

// WithRand shares an existing generator, e.g. with seeded mutators.
func WithRand(rng *rand.Rand) Option {
	return func(m *Minimizer) {
		if rng != nil {
			m.rng = rng
		}
	}
}

// WithObserver registers a per-step callback.
func WithObserver(obs Observer) Option {
	return func(m *Minimizer) {
		m.observer = obs
	}
}

// WithEarlyStopping enables stopping on a stalled best energy.
func WithEarlyStopping(es EarlyStopping) Option {
	return func(m *Minimizer) {
		m.stopping = es
	}
}

// WithLogger replaces the default slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Minimizer) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// Minimizer is a Monte Carlo search with linear annealing.
// An instance is not safe for concurrent runs; use one per goroutine.
type Minimizer struct {
	steps    int
	tInit    float64
	tFinal   float64
	schedule []float64
	freqs    []int
	rng      randSource
	observer Observer
	stopping EarlyStopping
	logger   *slog.Logger
}

// New creates a minimizer running the given number of steps.
func New(steps int, tInit, tFinal float64, opts ...Option) (*Minimizer, error) {
	if steps <= 0 {
		return nil, &design.ConfigError{Field: "steps", Reason: "must be positive"}
	}

	m := &Minimizer{
		steps:    steps,
		tInit:    tInit,
		tFinal:   tFinal,
		schedule: LinearSchedule(steps, tInit, tFinal),
		rng:      processRand{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}

	if err := validateFreqs(m.freqs); err != nil {
		return nil, err
	}
	if m.stopping.Patience < 0 {
		return nil, &design.ConfigError{Field: "patience", Reason: "cannot be negative"}
	}
	return m, nil
}

// Steps returns the configured number of iterations.
func (m *Minimizer) Steps() int {
	return m.steps
}

// Schedule returns a copy of the temperature per step.
func (m *Minimizer) Schedule() []float64 {
	return append([]float64(nil), m.schedule...)
}

// Run searches from sys.Sequences and returns the best and final states.
// Collaborator errors abort the run and are returned unmodified.
func (m *Minimizer) Run(ctx context.Context, sys System) (*Result, error) {
	if len(sys.Mutators) == 0 {
		return nil, design.ErrNoMutatorsConfigured
	}
	if m.freqs != nil && len(m.freqs) != len(sys.Mutators) {
		return nil, &design.ConfigError{Field: "proposal_freqs", Reason: "length must match mutator count"}
	}
	if err := sys.Sequences.Validate(); err != nil {
		return nil, err
	}

	current := sys.Sequences.Clone()
	outputs, err := design.AggregateOraclesLogged(ctx, m.logger, current, sys.Oracles)
	if err != nil {
		return nil, err
	}
	energy := design.AggregateEnergy(outputs, design.State{Sequences: current}, sys.EnergyTerms)
	best := bestRecord{sequences: current.Clone(), energy: energy}

	m.logger.Info("Starting annealing run",
		"steps", m.steps,
		"t_init", m.tInit,
		"t_final", m.tFinal,
		"chains", len(current),
		"initial_energy", energy,
	)

	tracker := newConvergenceTracker(m.logger, m.stopping, energy)
	stats := RunStats{}

	for i, temperature := range m.schedule {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		idx := selectMutator(m.rng, m.freqs, len(sys.Mutators))
		proposed, err := sys.Mutators[idx].Propose(current.Clone(), outputs)
		if err != nil {
			return nil, err
		}

		proposedOutputs, err := design.AggregateOraclesLogged(ctx, m.logger, proposed, sys.Oracles)
		if err != nil {
			return nil, err
		}
		proposedEnergy := design.AggregateEnergy(proposedOutputs, design.State{Sequences: proposed}, sys.EnergyTerms)

		dE := proposedEnergy - energy
		accepted := dE <= 0 || Accept(dE, temperature, m.rng.Float64())
		improved := false

		if accepted {
			current, outputs, energy = proposed, proposedOutputs, proposedEnergy
			stats.Accepted++
			if energy < best.energy {
				best = bestRecord{sequences: current.Clone(), energy: energy, step: i + 1}
				improved = true
				stats.Improved++
				m.logger.Debug("New best energy", "step", i+1, "energy", energy, "temperature", temperature)
			}
		}
		stats.StepsRun++

		if m.observer != nil {
			m.observer(StepEvent{
				Step:           i + 1,
				Temperature:    temperature,
				Mutator:        idx,
				ProposedEnergy: proposedEnergy,
				Energy:         energy,
				BestEnergy:     best.energy,
				Accepted:       accepted,
				Improved:       improved,
				Sequences:      current,
			})
		}

		if tracker.Update(best.energy) {
			stats.StoppedEarly = true
			break
		}
	}

	m.logger.Info("Annealing run complete",
		"steps_run", stats.StepsRun,
		"accepted", stats.Accepted,
		"best_energy", best.energy,
		"best_step", best.step,
		"final_energy", energy,
	)

	return &Result{
		BestSequences:  best.sequences,
		BestEnergy:     best.energy,
		BestStep:       best.step,
		FinalSequences: current,
		FinalEnergy:    energy,
		Stats:          stats,
	}, nil
}
