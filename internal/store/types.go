package store

import (
	"fmt"
	"math"
	"time"

	"github.com/cwbudde/seqdesign/internal/anneal"
)

// RunConfig describes the configuration a run was started with.
// It is a copy of the config summary so the store does not depend on the
// config package.
type RunConfig struct {
	Chains      []string `json:"chains"`
	Oracles     []string `json:"oracles"`
	EnergyTerms []string `json:"energy_terms"`
	Mutators    []string `json:"mutation_protocols"`
	Minimizer   string   `json:"minimizer"`
	Steps       int      `json:"steps"`

	// Source is the original run description, kept so the run can be repeated.
	Source string `json:"source,omitempty"`
}

// Record is a completed run with everything needed to inspect or repeat it.
type Record struct {
	// ID is the unique identifier for this run
	ID string `json:"id"`

	// Timestamp records when the run finished
	Timestamp time.Time `json:"timestamp"`

	// Seed is the seed the run's generator was created with
	Seed int64 `json:"seed"`

	// DurationSeconds is the wall-clock time of the run
	DurationSeconds float64 `json:"duration_seconds"`

	Config RunConfig      `json:"config"`
	Result *anneal.Result `json:"result"`
}

// RunInfo is the listing view of a record without sequences.
type RunInfo struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Seed       int64     `json:"seed"`
	BestEnergy float64   `json:"best_energy"`
	BestStep   int       `json:"best_step"`
	StepsRun   int       `json:"steps_run"`
	Chains     int       `json:"chains"`
	Minimizer  string    `json:"minimizer"`
}

// NewRecord creates a record for a finished run.
func NewRecord(id string, seed int64, duration time.Duration, config RunConfig, result *anneal.Result) *Record {
	return &Record{
		ID:              id,
		Timestamp:       time.Now(),
		Seed:            seed,
		DurationSeconds: duration.Seconds(),
		Config:          config,
		Result:          result,
	}
}

// ToInfo converts a full Record to RunInfo.
func (r *Record) ToInfo() RunInfo {
	info := RunInfo{
		ID:        r.ID,
		Timestamp: r.Timestamp,
		Seed:      r.Seed,
		Chains:    len(r.Config.Chains),
		Minimizer: r.Config.Minimizer,
	}
	if r.Result != nil {
		info.BestEnergy = r.Result.BestEnergy
		info.BestStep = r.Result.BestStep
		info.StepsRun = r.Result.Stats.StepsRun
	}
	return info
}

// Validate checks if the record has valid data.
func (r *Record) Validate() error {
	if r.ID == "" {
		return &ValidationError{Field: "ID", Reason: "cannot be empty"}
	}
	if r.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	if r.DurationSeconds < 0 {
		return &ValidationError{Field: "DurationSeconds", Reason: "cannot be negative"}
	}
	if r.Config.Minimizer == "" {
		return &ValidationError{Field: "Config.Minimizer", Reason: "cannot be empty"}
	}
	if r.Result == nil {
		return &ValidationError{Field: "Result", Reason: "cannot be nil"}
	}
	if len(r.Result.BestSequences) == 0 {
		return &ValidationError{Field: "Result.BestSequences", Reason: "cannot be empty"}
	}
	if !r.Result.BestSequences.SameChains(r.Result.FinalSequences) {
		return &ValidationError{Field: "Result.FinalSequences", Reason: "chain names differ from best sequences"}
	}
	if r.Result.BestStep < 0 || r.Result.BestStep > r.Result.Stats.StepsRun {
		return &ValidationError{
			Field:  "Result.BestStep",
			Reason: fmt.Sprintf("must be within [0, %d]", r.Result.Stats.StepsRun),
		}
	}
	if r.Result.BestEnergy > r.Result.FinalEnergy {
		return &ValidationError{Field: "Result.BestEnergy", Reason: "cannot exceed final energy"}
	}
	return nil
}

// ValidationError represents a record validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// Reproduces checks whether result matches the stored outcome, as expected
// when a seeded run is repeated with deterministic oracles.
func (r *Record) Reproduces(result *anneal.Result) error {
	if r.Result == nil || result == nil {
		return &CompatibilityError{Field: "Result", Expected: "present", Actual: "missing"}
	}
	if math.Abs(r.Result.BestEnergy-result.BestEnergy) > 1e-12 {
		return &CompatibilityError{
			Field:    "BestEnergy",
			Expected: fmt.Sprintf("%g", r.Result.BestEnergy),
			Actual:   fmt.Sprintf("%g", result.BestEnergy),
		}
	}
	if r.Result.BestStep != result.BestStep {
		return &CompatibilityError{
			Field:    "BestStep",
			Expected: fmt.Sprintf("%d", r.Result.BestStep),
			Actual:   fmt.Sprintf("%d", result.BestStep),
		}
	}
	if r.Result.BestSequences.Key() != result.BestSequences.Key() {
		return &CompatibilityError{
			Field:    "BestSequences",
			Expected: r.Result.BestSequences.Key(),
			Actual:   result.BestSequences.Key(),
		}
	}
	return nil
}

// CompatibilityError reports a mismatch between a stored and a repeated run.
type CompatibilityError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *CompatibilityError) Error() string {
	return "compatibility error: " + e.Field + " mismatch (expected " + e.Expected + ", got " + e.Actual + ")"
}
