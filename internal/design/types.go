package design

import (
	"context"
	"sort"
	"strconv"
	"strings"
)

// Sequences maps a chain name to its symbol string.
type Sequences map[string]string

// Clone returns an independent copy of the sequence set.
func (s Sequences) Clone() Sequences {
	out := make(Sequences, len(s))
	for name, seq := range s {
		out[name] = seq
	}
	return out
}

// Chains returns the chain names in sorted order.
func (s Sequences) Chains() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Key returns a canonical encoding of the set, stable across map iteration order.
// Names and sequences are length-prefixed so no two distinct sets share a key.
func (s Sequences) Key() string {
	var b strings.Builder
	for _, name := range s.Chains() {
		seq := s[name]
		b.WriteString(strconv.Itoa(len(name)))
		b.WriteByte(':')
		b.WriteString(name)
		b.WriteString(strconv.Itoa(len(seq)))
		b.WriteByte(':')
		b.WriteString(seq)
	}
	return b.String()
}

// SameChains reports whether both sets carry exactly the same chain names.
func (s Sequences) SameChains(other Sequences) bool {
	if len(s) != len(other) {
		return false
	}
	for name := range s {
		if _, ok := other[name]; !ok {
			return false
		}
	}
	return true
}

// Validate checks that the set is usable as a starting point.
func (s Sequences) Validate() error {
	if len(s) == 0 {
		return &ConfigError{Field: "sequences", Reason: "cannot be empty"}
	}
	for name := range s {
		if name == "" {
			return &ConfigError{Field: "sequences", Reason: "chain name cannot be empty"}
		}
	}
	return nil
}

// State is the read view of the system handed to energy terms.
type State struct {
	Sequences Sequences
}

// Oracle wraps a predictive model: sequences in, named outputs out.
// Any caching or model state is internal to the implementation.
type Oracle interface {
	Compute(ctx context.Context, seqs Sequences) (Outputs, error)
}

// EnergyTerm scores oracle outputs. Implementations apply their own weight,
// return 0 for missing keys, and hold no state across calls.
type EnergyTerm interface {
	Evaluate(outputs Outputs, state State) float64
}

// MutationProtocol proposes a new sequence set. It must not modify seqs and
// must return a set with the same chain names.
type MutationProtocol interface {
	Propose(seqs Sequences, outputs Outputs) (Sequences, error)
}
