package server

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cwbudde/seqdesign/internal/anneal"
	"github.com/cwbudde/seqdesign/internal/config"
	"github.com/cwbudde/seqdesign/internal/registry"
	"github.com/cwbudde/seqdesign/internal/store"
)

// stubConfig returns a run description using the offline folding backend
func stubConfig(steps int, freqs string) string {
	return fmt.Sprintf(`
initial_sequences:
  A: GGGGGGGG
  B: SSSS
oracles:
  - class: FoldingOracle
    params:
      backend: stub
energy_terms:
  - class: PLDDTEnergy
mutation_protocols:
  - class: RandomMutator
    params:
      p_mut: 0.2
minimizer:
  class: SimpleMinimizer
  params:
    steps: %d
    t_init: 0.5
    t_final: 0.01
    seed: 42
    proposal_freqs: %s
`, steps, freqs)
}

func buildJob(t *testing.T, jm *JobManager, src string) (*Job, *config.Plan) {
	t.Helper()

	cfg, err := config.Parse([]byte(src))
	if err != nil {
		t.Fatalf("Failed to parse config: %v", err)
	}

	reporter := newProgressReporter(jm, time.Millisecond)
	plan, err := cfg.Build(registry.Default(), config.BuildOptions{Observer: reporter.Observe})
	if err != nil {
		t.Fatalf("Failed to build config: %v", err)
	}

	job := jm.CreateJob(cfg.RunConfig(plan), plan.Seed, plan.Minimizer.Steps())
	reporter.jobID = job.ID
	return job, plan
}

func TestRunJob_Success(t *testing.T) {
	jm := NewJobManager()
	st, err := store.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	job, plan := buildJob(t, jm, stubConfig(50, "[1]"))

	if err := runJob(context.Background(), jm, st, job.ID, plan); err != nil {
		t.Fatalf("runJob failed: %v", err)
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateCompleted {
		t.Errorf("Expected completed state, got %s", updated.State)
	}
	if updated.Result == nil {
		t.Fatal("Expected result to be set")
	}
	if updated.Step != 50 {
		t.Errorf("Expected 50 steps, got %d", updated.Step)
	}
	if updated.BestEnergy > updated.Energy {
		t.Errorf("Best energy %f above current %f", updated.BestEnergy, updated.Energy)
	}
	if updated.EndTime == nil {
		t.Error("Expected end time to be set")
	}

	rec, err := st.LoadRun(job.ID)
	if err != nil {
		t.Fatalf("Expected run to be saved: %v", err)
	}
	if rec.Seed != 42 {
		t.Errorf("Expected seed 42, got %d", rec.Seed)
	}
	if rec.Result.BestEnergy != updated.Result.BestEnergy {
		t.Errorf("Saved best energy %f differs from job %f", rec.Result.BestEnergy, updated.Result.BestEnergy)
	}
	if rec.Config.Source == "" {
		t.Error("Expected run source to be saved")
	}

	ev, ok := jm.broadcaster.LastEvent(job.ID)
	if !ok || ev.State != StateCompleted {
		t.Errorf("Expected final completed event, got %+v", ev)
	}
}

func TestRunJob_Failure(t *testing.T) {
	jm := NewJobManager()

	// Two proposal frequencies for one mutator fail when the run starts
	job, plan := buildJob(t, jm, stubConfig(10, "[1, 1]"))

	if err := runJob(context.Background(), jm, nil, job.ID, plan); err == nil {
		t.Fatal("Expected runJob to fail")
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateFailed {
		t.Errorf("Expected failed state, got %s", updated.State)
	}
	if updated.Error == "" {
		t.Error("Error message should be set")
	}
}

func TestRunJob_Cancellation(t *testing.T) {
	jm := NewJobManager()
	job, plan := buildJob(t, jm, stubConfig(2_000_000, "[1]"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runJob(ctx, jm, nil, job.ID, plan)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("runJob did not stop after cancellation")
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateCancelled {
		t.Errorf("Expected cancelled state, got %s", updated.State)
	}
}

func TestRunJob_UnknownJob(t *testing.T) {
	jm := NewJobManager()
	_, plan := buildJob(t, jm, stubConfig(5, "[1]"))

	if err := runJob(context.Background(), jm, nil, "missing", plan); err == nil {
		t.Error("Expected error for unknown job")
	}
}

func TestProgressReporter_Throttles(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(JobConfig{}, 1, 1000)

	ch := jm.broadcaster.Subscribe(job.ID)
	defer jm.broadcaster.Unsubscribe(job.ID, ch)

	reporter := newProgressReporter(jm, time.Hour)
	reporter.jobID = job.ID
	for step := 1; step <= 100; step++ {
		reporter.Observe(anneal.StepEvent{Step: step, Energy: -0.1, BestEnergy: -0.2, Accepted: step%2 == 0})
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.Step != 100 || updated.Accepted != 50 {
		t.Errorf("Expected step 100 with 50 accepted, got %d/%d", updated.Step, updated.Accepted)
	}

	// Burst of one; the remaining events fall inside the interval
	if len(ch) != 1 {
		t.Errorf("Expected 1 broadcast event, got %d", len(ch))
	}
}
