package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// jobsTotal counts finished jobs by final state
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seqdesign_jobs_total",
		Help: "Total finished jobs by final state",
	}, []string{"state"})

	// jobsActive tracks jobs currently running
	jobsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "seqdesign_jobs_active",
		Help: "Number of jobs currently running",
	})

	// stepsTotal counts annealing steps by outcome
	stepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seqdesign_steps_total",
		Help: "Total annealing steps by outcome",
	}, []string{"outcome"})

	// jobDuration tracks wall-clock time of finished jobs
	jobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "seqdesign_job_duration_seconds",
		Help:    "Job duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 10), // 10ms to ~44min
	})

	// bestEnergy records the best energy of each completed job
	bestEnergy = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "seqdesign_best_energy",
		Help:    "Best energy reached by completed jobs",
		Buckets: prometheus.LinearBuckets(-5, 0.5, 20),
	})
)

func recordStep(accepted bool) {
	if accepted {
		stepsTotal.WithLabelValues("accepted").Inc()
		return
	}
	stepsTotal.WithLabelValues("rejected").Inc()
}
