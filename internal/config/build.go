package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/cwbudde/seqdesign/internal/anneal"
	"github.com/cwbudde/seqdesign/internal/design"
	"github.com/cwbudde/seqdesign/internal/oracle"
	"github.com/cwbudde/seqdesign/internal/registry"
	"github.com/cwbudde/seqdesign/internal/store"
	"gopkg.in/yaml.v3"
)

// BuildOptions adjusts how a Config is assembled.
type BuildOptions struct {
	// Seed overrides minimizer.params.seed when set.
	Seed *int64

	// MinimizerOverrides replace individual minimizer.params keys, e.g.
	// {"steps": 50} for a short trial run.
	MinimizerOverrides map[string]any

	Observer anneal.Observer
	Logger   *slog.Logger
}

// Plan is an assembled, ready-to-run configuration.
type Plan struct {
	Minimizer *anneal.Minimizer
	System    anneal.System

	// Seed is the seed the run's generator was created with. When neither
	// the config nor the caller supplied one it is derived from the clock
	// and recorded here so the run can be repeated.
	Seed int64

	caches []*oracle.CachedOracle
}

// Run executes the plan.
func (p *Plan) Run(ctx context.Context) (*anneal.Result, error) {
	return p.Minimizer.Run(ctx, p.System)
}

// CacheStats sums hit and miss counts over all cached oracles.
func (p *Plan) CacheStats() (hits, misses int64) {
	for _, c := range p.caches {
		h, m := c.Stats()
		hits += h
		misses += m
	}
	return hits, misses
}

// Close releases oracle caches.
func (p *Plan) Close() error {
	var errs []error
	for _, c := range p.caches {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.caches = nil
	return errors.Join(errs...)
}

// RunConfig describes the plan for persistence alongside its result.
func (c *Config) RunConfig(plan *Plan) store.RunConfig {
	sum := c.Summary()
	rc := store.RunConfig{
		Chains:      sum.Chains,
		Oracles:     sum.Oracles,
		EnergyTerms: sum.EnergyTerms,
		Mutators:    sum.Mutators,
		Minimizer:   sum.Minimizer,
		Source:      string(c.source),
	}
	if plan != nil && plan.Minimizer != nil {
		rc.Steps = plan.Minimizer.Steps()
	}
	return rc
}

// Seed returns the seed configured in minimizer.params, if any.
func (c *Config) Seed() (int64, bool, error) {
	params := registry.DefaultMinimizerParams()
	if err := registry.NewParams(&c.Minimizer.Params).Decode(&params); err != nil {
		return 0, false, err
	}
	if params.Seed == nil {
		return 0, false, nil
	}
	return *params.Seed, true, nil
}

// Build resolves every component through reg. All components share one
// random generator so a seed reproduces the entire run.
func (c *Config) Build(reg *registry.Registry, opts BuildOptions) (*Plan, error) {
	seed, ok, err := c.Seed()
	if err != nil {
		return nil, err
	}
	if opts.Seed != nil {
		seed, ok = *opts.Seed, true
	}
	if !ok {
		seed = time.Now().UnixNano()
	}

	env := registry.Env{
		Rand:     rand.New(rand.NewSource(seed)),
		Observer: opts.Observer,
		Logger:   opts.Logger,
	}
	plan := &Plan{Seed: seed}

	plan.System.Sequences = c.Sequences()

	for i, comp := range c.Oracles {
		o, err := reg.Oracles.Build(comp.Class, registry.NewParams(&comp.Params), env)
		if err != nil {
			plan.Close()
			return nil, componentError("oracles", i, err)
		}
		if comp.CacheSize > 0 {
			cached, err := oracle.NewCachedOracle(o, comp.CacheSize)
			if err != nil {
				plan.Close()
				return nil, componentError("oracles", i, err)
			}
			plan.caches = append(plan.caches, cached)
			o = cached
		}
		slog.Debug("Resolved oracle", "index", i, "module", comp.Module, "class", comp.Class, "cache_size", comp.CacheSize)
		plan.System.Oracles = append(plan.System.Oracles, o)
	}

	for i, comp := range c.EnergyTerms {
		term, err := reg.EnergyTerms.Build(comp.Class, registry.NewParams(&comp.Params), env)
		if err != nil {
			plan.Close()
			return nil, componentError("energy_terms", i, err)
		}
		plan.System.EnergyTerms = append(plan.System.EnergyTerms, term)
	}

	for i, comp := range c.MutationProtocols {
		m, err := reg.Mutators.Build(comp.Class, registry.NewParams(&comp.Params), env)
		if err != nil {
			plan.Close()
			return nil, componentError("mutation_protocols", i, err)
		}
		plan.System.Mutators = append(plan.System.Mutators, m)
	}

	minParams := c.Minimizer.Params
	if len(opts.MinimizerOverrides) > 0 {
		minParams, err = overrideParams(&c.Minimizer.Params, opts.MinimizerOverrides)
		if err != nil {
			plan.Close()
			return nil, err
		}
	}
	minimizer, err := reg.Minimizers.Build(c.Minimizer.Class, registry.NewParams(&minParams), env)
	if err != nil {
		plan.Close()
		return nil, fmt.Errorf("%w: minimizer: %w", design.ErrInvalidConfiguration, err)
	}
	plan.Minimizer = minimizer

	return plan, nil
}

func componentError(section string, index int, err error) error {
	return fmt.Errorf("%w: %s[%d]: %w", design.ErrInvalidConfiguration, section, index, err)
}

func overrideParams(node *yaml.Node, overrides map[string]any) (yaml.Node, error) {
	var values map[string]any
	if node.Kind != 0 {
		if err := node.Decode(&values); err != nil {
			return yaml.Node{}, &design.ConfigError{Field: "minimizer.params", Reason: err.Error()}
		}
	}
	if values == nil {
		values = make(map[string]any, len(overrides))
	}
	for k, v := range overrides {
		values[k] = v
	}

	var out yaml.Node
	if err := out.Encode(values); err != nil {
		return yaml.Node{}, fmt.Errorf("failed to encode minimizer params: %w", err)
	}
	return out, nil
}
