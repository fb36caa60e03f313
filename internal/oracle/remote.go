package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cwbudde/seqdesign/internal/design"
)

// ColabDesignOracle calls a ColabDesign AlphaFold worker over HTTP. The
// complex is sent as one sequence with chains joined by ':' in sorted
// chain order.
type ColabDesignOracle struct {
	Endpoint    string
	NumModels   int
	NumRecycles int
	ModelName   string
	RandomSeed  *int64
	client      *http.Client
}

// NewColabDesignOracle creates a remote oracle posting to endpoint.
func NewColabDesignOracle(endpoint string, numModels, numRecycles int, modelName string, timeout time.Duration) (*ColabDesignOracle, error) {
	if endpoint == "" {
		return nil, &design.ConfigError{Field: "endpoint", Reason: "cannot be empty"}
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	if modelName == "" {
		modelName = "af2"
	}
	return &ColabDesignOracle{
		Endpoint:    endpoint,
		NumModels:   numModels,
		NumRecycles: numRecycles,
		ModelName:   modelName,
		client:      &http.Client{Timeout: timeout},
	}, nil
}

type predictRequest struct {
	Sequence    string   `json:"sequence"`
	Chains      []string `json:"chains"`
	NumModels   int      `json:"num_models"`
	NumRecycles int      `json:"num_recycles"`
	ModelName   string   `json:"model_name"`
	RandomSeed  *int64   `json:"random_seed,omitempty"`
}

// ComplexSequence joins chains with ':' in sorted chain order.
func ComplexSequence(seqs design.Sequences) string {
	names := seqs.Chains()
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = seqs[name]
	}
	return strings.Join(parts, ":")
}

// Compute implements design.Oracle.
func (c *ColabDesignOracle) Compute(ctx context.Context, seqs design.Sequences) (design.Outputs, error) {
	if len(seqs) == 0 {
		return nil, fmt.Errorf("%w: colabdesign oracle received no chains", design.ErrComputationFailed)
	}

	body, err := json.Marshal(predictRequest{
		Sequence:    ComplexSequence(seqs),
		Chains:      seqs.Chains(),
		NumModels:   c.NumModels,
		NumRecycles: c.NumRecycles,
		ModelName:   c.ModelName,
		RandomSeed:  c.RandomSeed,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", design.ErrComputationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: worker returned %d: %s", design.ErrComputationFailed, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var raw any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: failed to decode worker response: %v", design.ErrComputationFailed, err)
	}
	doc, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: worker response is %T, not an object", design.ErrInvalidOracleOutput, raw)
	}

	return decodePrediction(doc, seqs), nil
}

// decodePrediction maps a worker response onto the shared output keys.
// Mean pLDDT on a 0-100 scale is normalised to [0,1] and assigned to every chain.
func decodePrediction(doc map[string]any, seqs design.Sequences) design.Outputs {
	log, _ := doc["log"].(map[string]any)
	metrics := design.Outputs(log)

	ptm, _ := metrics.Float("ptm")
	mean, _ := metrics.Float("plddt")
	if mean > 1 {
		mean /= 100
	}

	plddt := make(map[string]float64, len(seqs))
	for name := range seqs {
		plddt[name] = mean
	}

	var pae any
	if m, ok := design.Outputs(doc).Matrix("pae"); ok {
		pae = m
	}

	return design.Outputs{
		KeyPLDDT: plddt,
		KeyPTM:   ptm,
		KeyPAE:   pae,
	}
}
