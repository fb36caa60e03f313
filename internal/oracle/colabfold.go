package oracle

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/cwbudde/seqdesign/internal/design"
)

// ColabFoldRunner predicts each chain as a monomer with colabfold_batch and
// reads mean pLDDT back from the B-factor column of the top-ranked PDB.
type ColabFoldRunner struct {
	// Command is the executable to run. Defaults to $COLABFOLD_CMD or colabfold_batch.
	Command  string
	Models   int
	Recycles int
}

// NewColabFoldRunner creates a runner using the command from the environment.
func NewColabFoldRunner(models, recycles int) *ColabFoldRunner {
	cmd := os.Getenv("COLABFOLD_CMD")
	if cmd == "" {
		cmd = "colabfold_batch"
	}
	return &ColabFoldRunner{
		Command:  cmd,
		Models:   models,
		Recycles: recycles,
	}
}

// Predict returns pLDDT in [0,1] per chain.
func (r *ColabFoldRunner) Predict(ctx context.Context, seqs design.Sequences) (map[string]float64, error) {
	bin, err := exec.LookPath(r.Command)
	if err != nil {
		return nil, fmt.Errorf("%w: %q not found on PATH, install ColabFold or set COLABFOLD_CMD: %v",
			design.ErrComputationFailed, r.Command, err)
	}

	work, err := os.MkdirTemp("", "colabfold-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}
	defer os.RemoveAll(work)

	plddt := make(map[string]float64, len(seqs))
	for _, name := range seqs.Chains() {
		fasta := filepath.Join(work, name+".fasta")
		if err := os.WriteFile(fasta, []byte(">"+name+"\n"+seqs[name]+"\n"), 0644); err != nil {
			return nil, fmt.Errorf("failed to write fasta for chain %s: %w", name, err)
		}

		outDir := filepath.Join(work, "out_"+name)
		if err := os.MkdirAll(outDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}

		cmd := exec.CommandContext(ctx, bin,
			"--num-models", strconv.Itoa(r.Models),
			"--num-recycle", strconv.Itoa(r.Recycles),
			fasta, outDir,
		)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			return nil, fmt.Errorf("%w: colabfold on chain %s: %v: %s",
				design.ErrComputationFailed, name, err, strings.TrimSpace(stderr.String()))
		}

		pdbs, _ := filepath.Glob(filepath.Join(outDir, "*.pdb"))
		if len(pdbs) == 0 {
			slog.Warn("ColabFold produced no PDB", "chain", name)
			plddt[name] = 0
			continue
		}
		sort.Strings(pdbs)

		meanB, err := MeanBFactor(pdbs[0])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", design.ErrComputationFailed, err)
		}
		plddt[name] = clamp01(meanB / 100)
	}
	return plddt, nil
}

// MeanBFactor averages the B-factor column (61-66) over ATOM records.
// AlphaFold-family tools store pLDDT there on a 0-100 scale.
func MeanBFactor(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open pdb: %w", err)
	}
	defer f.Close()

	var total float64
	var n int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "ATOM") || len(line) < 66 {
			continue
		}
		b, err := strconv.ParseFloat(strings.TrimSpace(line[60:66]), 64)
		if err != nil {
			continue
		}
		total += b
		n++
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("failed to read pdb: %w", err)
	}
	if n == 0 {
		return 0, nil
	}
	return total / float64(n), nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
