// Package registry maps the class names used in run configurations to
// constructors. Names are resolved once while a run is assembled; the
// annealing loop only ever sees the built interfaces.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"

	"github.com/cwbudde/seqdesign/internal/anneal"
	"github.com/cwbudde/seqdesign/internal/design"
	"gopkg.in/yaml.v3"
)

var (
	ErrComponentExists   = errors.New("component already registered")
	ErrComponentNotFound = errors.New("component not found")
)

// Params holds the raw params block of one component.
type Params struct {
	node *yaml.Node
}

// NewParams wraps a decoded YAML node. A nil node means no params were given.
func NewParams(node *yaml.Node) Params {
	return Params{node: node}
}

// Decode fills v from the params block. Missing params leave v untouched so
// callers can preset defaults.
func (p Params) Decode(v any) error {
	if p.node == nil || p.node.Kind == 0 {
		return nil
	}
	if p.node.Kind == yaml.ScalarNode && p.node.Tag == "!!null" {
		return nil
	}
	if err := p.node.Decode(v); err != nil {
		return &design.ConfigError{Field: "params", Reason: err.Error()}
	}
	return nil
}

// Env carries run-wide resources shared by all constructed components.
type Env struct {
	// Rand is the run's generator. Components that draw randomness must use
	// it so a seed reproduces the whole run.
	Rand *rand.Rand

	Observer anneal.Observer
	Logger   *slog.Logger
}

// Factory builds one component of type T.
type Factory[T any] func(p Params, env Env) (T, error)

// Table is a named set of factories for one component kind.
type Table[T any] struct {
	kind string
	mu   sync.RWMutex
	m    map[string]Factory[T]
}

func newTable[T any](kind string) *Table[T] {
	return &Table[T]{kind: kind, m: make(map[string]Factory[T])}
}

// Register adds a factory under name.
func (t *Table[T]) Register(name string, f Factory[T]) error {
	if name == "" {
		return fmt.Errorf("%s name is required", t.kind)
	}
	if f == nil {
		return fmt.Errorf("%s factory is required", t.kind)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.m[name]; exists {
		return fmt.Errorf("%w: %s %s", ErrComponentExists, t.kind, name)
	}
	t.m[name] = f
	return nil
}

// Build resolves name and constructs the component.
func (t *Table[T]) Build(name string, p Params, env Env) (T, error) {
	t.mu.RLock()
	f, ok := t.m[name]
	t.mu.RUnlock()

	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s %q", ErrComponentNotFound, t.kind, name)
	}
	c, err := f(p, env)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("failed to build %s %s: %w", t.kind, name, err)
	}
	return c, nil
}

// Has reports whether name is registered.
func (t *Table[T]) Has(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.m[name]
	return ok
}

// List returns the registered names in sorted order.
func (t *Table[T]) List() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.m))
	for name := range t.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Registry groups the tables for every configurable component kind.
type Registry struct {
	Oracles     *Table[design.Oracle]
	EnergyTerms *Table[design.EnergyTerm]
	Mutators    *Table[design.MutationProtocol]
	Minimizers  *Table[*anneal.Minimizer]
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		Oracles:     newTable[design.Oracle]("oracle"),
		EnergyTerms: newTable[design.EnergyTerm]("energy term"),
		Mutators:    newTable[design.MutationProtocol]("mutation protocol"),
		Minimizers:  newTable[*anneal.Minimizer]("minimizer"),
	}
}

// Listing is the JSON shape of the registered names.
type Listing struct {
	Oracles     []string `json:"oracles"`
	EnergyTerms []string `json:"energy_terms"`
	Mutators    []string `json:"mutation_protocols"`
	Minimizers  []string `json:"minimizers"`
}

// Describe lists all registered names by kind.
func (r *Registry) Describe() Listing {
	return Listing{
		Oracles:     r.Oracles.List(),
		EnergyTerms: r.EnergyTerms.List(),
		Mutators:    r.Mutators.List(),
		Minimizers:  r.Minimizers.List(),
	}
}

// Default returns a registry holding the built-in components.
func Default() *Registry {
	r := New()
	if err := registerBuiltins(r); err != nil {
		// Built-in names are unique; a failure here is a programming error.
		panic(err)
	}
	return r
}
