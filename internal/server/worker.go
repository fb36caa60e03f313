package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/seqdesign/internal/anneal"
	"github.com/cwbudde/seqdesign/internal/config"
	"github.com/cwbudde/seqdesign/internal/store"
	"golang.org/x/time/rate"
)

// progressReporter turns step events into job updates and throttled
// broadcasts. The job ID is bound after the job is created.
type progressReporter struct {
	jm      *JobManager
	jobID   string
	limiter *rate.Limiter
}

func newProgressReporter(jm *JobManager, interval time.Duration) *progressReporter {
	return &progressReporter{
		jm:      jm,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Observe is passed to the minimizer as its anneal.Observer.
func (p *progressReporter) Observe(ev anneal.StepEvent) {
	recordStep(ev.Accepted)
	if p.jobID == "" {
		return
	}

	var snapshot Job
	err := p.jm.UpdateJob(p.jobID, func(j *Job) {
		j.Step = ev.Step
		j.Energy = ev.Energy
		j.BestEnergy = ev.BestEnergy
		if ev.Accepted {
			j.Accepted++
		}
		snapshot = *j
	})
	if err != nil {
		return
	}

	if !p.limiter.Allow() {
		return
	}
	p.jm.broadcaster.Broadcast(progressEvent(&snapshot, ev.Temperature))
}

func progressEvent(job *Job, temperature float64) ProgressEvent {
	return ProgressEvent{
		JobID:       job.ID,
		State:       job.State,
		Step:        job.Step,
		TotalSteps:  job.TotalSteps,
		Temperature: temperature,
		Energy:      job.Energy,
		BestEnergy:  job.BestEnergy,
		Accepted:    job.Accepted,
		Timestamp:   time.Now(),
	}
}

// runJob executes an assembled plan in the background.
// If runStore is not nil the completed run is persisted under the job ID.
func runJob(ctx context.Context, jm *JobManager, runStore store.Store, jobID string, plan *config.Plan) error {
	defer plan.Close()

	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateRunning
	})
	if err != nil {
		return err
	}

	jobsActive.Inc()
	defer jobsActive.Dec()

	slog.Info("Starting job", "job_id", jobID, "steps", job.TotalSteps, "seed", job.Seed)

	start := time.Now()
	result, err := plan.Run(ctx)
	elapsed := time.Since(start)
	jobDuration.Observe(elapsed.Seconds())

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			markJobCancelled(jm, jobID)
			return err
		}
		markJobFailed(jm, jobID, err)
		return err
	}

	if runStore != nil {
		rec := store.NewRecord(jobID, plan.Seed, elapsed, job.Config, result)
		if err := runStore.SaveRun(rec); err != nil {
			slog.Error("Failed to save run", "job_id", jobID, "error", err)
		}
	}

	endTime := time.Now()
	var snapshot Job
	err = jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.Result = result
		j.Step = result.Stats.StepsRun
		j.Energy = result.FinalEnergy
		j.BestEnergy = result.BestEnergy
		j.Accepted = result.Stats.Accepted
		j.EndTime = &endTime
		snapshot = *j
	})
	if err != nil {
		return err
	}

	jobsTotal.WithLabelValues(string(StateCompleted)).Inc()
	bestEnergy.Observe(result.BestEnergy)

	slog.Info("Job completed",
		"job_id", jobID,
		"elapsed", elapsed,
		"best_energy", result.BestEnergy,
		"best_step", result.BestStep,
		"acceptance_rate", result.Stats.AcceptanceRate(),
	)

	// Final event is never throttled
	jm.broadcaster.Broadcast(progressEvent(&snapshot, 0))
	return nil
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, jobID string, err error) {
	endTime := time.Now()
	var snapshot Job
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
		snapshot = *j
	})
	jobsTotal.WithLabelValues(string(StateFailed)).Inc()
	jm.broadcaster.Broadcast(progressEvent(&snapshot, 0))
	slog.Error("Job failed", "job_id", jobID, "error", err)
}

// markJobCancelled marks a job as cancelled
func markJobCancelled(jm *JobManager, jobID string) {
	endTime := time.Now()
	var snapshot Job
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		j.EndTime = &endTime
		snapshot = *j
	})
	jobsTotal.WithLabelValues(string(StateCancelled)).Inc()
	jm.broadcaster.Broadcast(progressEvent(&snapshot, 0))
	slog.Info("Job cancelled", "job_id", jobID)
}
