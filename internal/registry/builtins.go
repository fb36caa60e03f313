package registry

import (
	"time"

	"github.com/cwbudde/seqdesign/internal/anneal"
	"github.com/cwbudde/seqdesign/internal/design"
	"github.com/cwbudde/seqdesign/internal/energy"
	"github.com/cwbudde/seqdesign/internal/mutation"
	"github.com/cwbudde/seqdesign/internal/oracle"
)

// Class names accepted in run configurations.
const (
	ClassFoldingOracle     = "FoldingOracle"
	ClassColabDesignOracle = "ColabDesignFoldingOracle"
	ClassStaticOracle      = "StaticOracle"
	ClassPLDDTEnergy       = "PLDDTEnergy"
	ClassPTMEnergy         = "PTMEnergy"
	ClassPAEEnergy         = "PAEEnergy"
	ClassRandomMutator     = "RandomMutator"
	ClassGuidedMutator     = "ConfidenceGuidedMutator"
	ClassSimpleMinimizer   = "SimpleMinimizer"
)

const (
	defaultMinimizerSteps   = 500
	defaultMinimizerTInit   = 1.0
	defaultMinimizerTFinal  = 0.1
	defaultFoldingModels    = 1
	defaultFoldingRecycles  = 1
	defaultEnergyTermWeight = 1.0
	defaultGuidedMutations  = 1
)

// MinimizerParams is the params block of SimpleMinimizer.
type MinimizerParams struct {
	Steps         int     `yaml:"steps"`
	TInit         float64 `yaml:"t_init"`
	TFinal        float64 `yaml:"t_final"`
	ProposalFreqs []int   `yaml:"proposal_freqs"`
	Seed          *int64  `yaml:"seed"`
	Patience      int     `yaml:"patience"`
	MinDelta      float64 `yaml:"min_delta"`
}

// DefaultMinimizerParams returns the values used for omitted keys.
func DefaultMinimizerParams() MinimizerParams {
	return MinimizerParams{
		Steps:  defaultMinimizerSteps,
		TInit:  defaultMinimizerTInit,
		TFinal: defaultMinimizerTFinal,
	}
}

// Options converts the params into minimizer options bound to env.
func (p MinimizerParams) Options(env Env) []anneal.Option {
	opts := []anneal.Option{
		anneal.WithRand(env.Rand),
		anneal.WithObserver(env.Observer),
		anneal.WithLogger(env.Logger),
		anneal.WithEarlyStopping(anneal.EarlyStopping{Patience: p.Patience, MinDelta: p.MinDelta}),
	}
	if p.ProposalFreqs != nil {
		opts = append(opts, anneal.WithProposalFreqs(p.ProposalFreqs))
	}
	return opts
}

func registerBuiltins(r *Registry) error {
	oracles := map[string]Factory[design.Oracle]{
		ClassFoldingOracle:     buildFoldingOracle,
		ClassColabDesignOracle: buildColabDesignOracle,
		ClassStaticOracle:      buildStaticOracle,
	}
	for name, f := range oracles {
		if err := r.Oracles.Register(name, f); err != nil {
			return err
		}
	}

	terms := map[string]Factory[design.EnergyTerm]{
		ClassPLDDTEnergy: buildPLDDTEnergy,
		ClassPTMEnergy:   buildPTMEnergy,
		ClassPAEEnergy:   buildPAEEnergy,
	}
	for name, f := range terms {
		if err := r.EnergyTerms.Register(name, f); err != nil {
			return err
		}
	}

	mutators := map[string]Factory[design.MutationProtocol]{
		ClassRandomMutator: buildRandomMutator,
		ClassGuidedMutator: buildGuidedMutator,
	}
	for name, f := range mutators {
		if err := r.Mutators.Register(name, f); err != nil {
			return err
		}
	}

	return r.Minimizers.Register(ClassSimpleMinimizer, buildSimpleMinimizer)
}

func buildFoldingOracle(p Params, env Env) (design.Oracle, error) {
	params := struct {
		Backend  string `yaml:"backend"`
		Models   int    `yaml:"models"`
		Recycles int    `yaml:"recycles"`
	}{
		Backend:  oracle.BackendStub,
		Models:   defaultFoldingModels,
		Recycles: defaultFoldingRecycles,
	}
	if err := p.Decode(&params); err != nil {
		return nil, err
	}
	return oracle.NewFoldingOracle(params.Backend, params.Models, params.Recycles)
}

func buildColabDesignOracle(p Params, env Env) (design.Oracle, error) {
	params := struct {
		Endpoint    string        `yaml:"endpoint"`
		NumModels   int           `yaml:"num_models"`
		NumRecycles int           `yaml:"num_recycles"`
		ModelName   string        `yaml:"model_name"`
		RandomSeed  *int64        `yaml:"random_seed"`
		Timeout     time.Duration `yaml:"timeout"`
	}{
		NumModels:   defaultFoldingModels,
		NumRecycles: defaultFoldingRecycles,
	}
	if err := p.Decode(&params); err != nil {
		return nil, err
	}
	o, err := oracle.NewColabDesignOracle(params.Endpoint, params.NumModels, params.NumRecycles, params.ModelName, params.Timeout)
	if err != nil {
		return nil, err
	}
	o.RandomSeed = params.RandomSeed
	return o, nil
}

func buildStaticOracle(p Params, env Env) (design.Oracle, error) {
	params := struct {
		Outputs map[string]any `yaml:"outputs"`
	}{}
	if err := p.Decode(&params); err != nil {
		return nil, err
	}
	if params.Outputs == nil {
		return nil, &design.ConfigError{Field: "outputs", Reason: "is required"}
	}
	return oracle.NewStaticOracle(params.Outputs), nil
}

func buildPLDDTEnergy(p Params, env Env) (design.EnergyTerm, error) {
	params := struct {
		Weight float64 `yaml:"weight"`
		Scale  float64 `yaml:"scale"`
	}{Weight: defaultEnergyTermWeight, Scale: 1.0}
	if err := p.Decode(&params); err != nil {
		return nil, err
	}
	return energy.NewPLDDTEnergy(params.Weight, params.Scale), nil
}

func buildPTMEnergy(p Params, env Env) (design.EnergyTerm, error) {
	params := struct {
		Weight float64 `yaml:"weight"`
	}{Weight: defaultEnergyTermWeight}
	if err := p.Decode(&params); err != nil {
		return nil, err
	}
	return energy.NewPTMEnergy(params.Weight), nil
}

func buildPAEEnergy(p Params, env Env) (design.EnergyTerm, error) {
	params := struct {
		Weight float64 `yaml:"weight"`
		Scale  float64 `yaml:"scale"`
	}{Weight: defaultEnergyTermWeight, Scale: energy.DefaultPAEScale}
	if err := p.Decode(&params); err != nil {
		return nil, err
	}
	return energy.NewPAEEnergy(params.Weight, params.Scale), nil
}

func buildRandomMutator(p Params, env Env) (design.MutationProtocol, error) {
	params := struct {
		PMut     float64 `yaml:"p_mut"`
		Alphabet string  `yaml:"alphabet"`
	}{PMut: mutation.DefaultMutationRate, Alphabet: mutation.AminoAcids}
	if err := p.Decode(&params); err != nil {
		return nil, err
	}
	return mutation.NewRandomMutator(params.PMut, params.Alphabet, env.Rand)
}

func buildGuidedMutator(p Params, env Env) (design.MutationProtocol, error) {
	params := struct {
		NMutations int    `yaml:"n_mutations"`
		Alphabet   string `yaml:"alphabet"`
	}{NMutations: defaultGuidedMutations, Alphabet: mutation.AminoAcids}
	if err := p.Decode(&params); err != nil {
		return nil, err
	}
	return mutation.NewConfidenceGuidedMutator(params.NMutations, params.Alphabet, env.Rand)
}

func buildSimpleMinimizer(p Params, env Env) (*anneal.Minimizer, error) {
	params := DefaultMinimizerParams()
	if err := p.Decode(&params); err != nil {
		return nil, err
	}
	return anneal.New(params.Steps, params.TInit, params.TFinal, params.Options(env)...)
}
