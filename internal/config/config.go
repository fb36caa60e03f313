// Package config loads declarative run descriptions and assembles them into
// runnable plans. A description names each collaborator by class and passes
// it a free-form params block:
//
//	initial_sequences: {A: MKVLAAGG}
//	oracles:
//	  - {module: design.oracles, class: FoldingOracle, params: {backend: stub}}
//	energy_terms:
//	  - {class: PLDDTEnergy, params: {weight: 1.0}}
//	mutation_protocols:
//	  - {class: RandomMutator, params: {p_mut: 0.05}}
//	minimizer:
//	  class: SimpleMinimizer
//	  params: {steps: 500, t_init: 1.0, t_final: 0.1, seed: 7}
//
// JSON documents with the same keys are accepted as well.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/cwbudde/seqdesign/internal/design"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Component names one collaborator and its constructor params.
type Component struct {
	// Module is kept for compatibility with existing run files; resolution
	// uses Class only.
	Module string    `yaml:"module,omitempty"`
	Class  string    `yaml:"class" validate:"required"`
	Params yaml.Node `yaml:"params,omitempty"`

	// CacheSize memoizes up to this many oracle results. Oracles only.
	CacheSize int `yaml:"cache_size,omitempty" validate:"gte=0"`
}

// Config is a complete run description.
type Config struct {
	InitialSequences  map[string]string `yaml:"initial_sequences" validate:"required,min=1,dive,keys,required,endkeys,printascii"`
	Oracles           []Component       `yaml:"oracles" validate:"dive"`
	EnergyTerms       []Component       `yaml:"energy_terms" validate:"dive"`
	MutationProtocols []Component       `yaml:"mutation_protocols" validate:"dive"`
	Minimizer         Component         `yaml:"minimizer"`

	source []byte
}

// Parse decodes and validates a YAML or JSON run description.
func Parse(data []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &design.ConfigError{Field: "document", Reason: "is empty"}
		}
		return nil, &design.ConfigError{Field: "document", Reason: err.Error()}
	}
	cfg.source = append([]byte(nil), data...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads and parses the run description at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks structural constraints. Unknown classes and bad params are
// reported by Build.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		for i, o := range c.EnergyTerms {
			if o.CacheSize != 0 {
				return &design.ConfigError{Field: fmt.Sprintf("energy_terms[%d].cache_size", i), Reason: "only applies to oracles"}
			}
		}
		for i, m := range c.MutationProtocols {
			if m.CacheSize != 0 {
				return &design.ConfigError{Field: fmt.Sprintf("mutation_protocols[%d].cache_size", i), Reason: "only applies to oracles"}
			}
		}
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		return &design.ConfigError{Field: field, Reason: "failed " + fe.Tag() + " check"}
	}
	return &design.ConfigError{Field: "document", Reason: err.Error()}
}

// Source returns the document the config was parsed from.
func (c *Config) Source() []byte {
	return c.source
}

// Sequences returns a copy of the initial sequences.
func (c *Config) Sequences() design.Sequences {
	return design.Sequences(c.InitialSequences).Clone()
}

// Summary is a compact description of a run used in listings.
type Summary struct {
	Chains      []string `json:"chains"`
	Oracles     []string `json:"oracles"`
	EnergyTerms []string `json:"energy_terms"`
	Mutators    []string `json:"mutation_protocols"`
	Minimizer   string   `json:"minimizer"`
}

// Summary lists the configured classes.
func (c *Config) Summary() Summary {
	return Summary{
		Chains:      c.Sequences().Chains(),
		Oracles:     classes(c.Oracles),
		EnergyTerms: classes(c.EnergyTerms),
		Mutators:    classes(c.MutationProtocols),
		Minimizer:   c.Minimizer.Class,
	}
}

func classes(components []Component) []string {
	names := make([]string, len(components))
	for i, c := range components {
		names[i] = c.Class
	}
	return names
}
