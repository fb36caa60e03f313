package design

import "errors"

var (
	// ErrInvalidConfiguration marks a minimizer or run set up with unusable parameters.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrNoMutatorsConfigured is returned when a run starts without any mutation protocol.
	ErrNoMutatorsConfigured = errors.New("no mutators configured")

	// ErrInvalidOracleOutput is returned when an oracle yields no output mapping.
	ErrInvalidOracleOutput = errors.New("invalid oracle output")

	// ErrComputationFailed is wrapped by collaborators whose backing model failed.
	// The minimizer passes these through untouched.
	ErrComputationFailed = errors.New("computation failed")
)

// ConfigError describes which parameter made a configuration invalid.
// Use errors.Is(err, ErrInvalidConfiguration) to detect it.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid configuration: " + e.Field + " " + e.Reason
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfiguration
}
