package anneal

import "github.com/cwbudde/seqdesign/internal/design"

// bestRecord is the lowest-energy state seen so far in a run.
type bestRecord struct {
	sequences design.Sequences
	energy    float64
	step      int
}

// Result is the outcome of a run. Its JSON form is consumed by reporting tools.
type Result struct {
	BestSequences  design.Sequences `json:"best_sequences"`
	BestEnergy     float64          `json:"best_energy"`
	BestStep       int              `json:"best_step"`
	FinalSequences design.Sequences `json:"final_sequences"`
	FinalEnergy    float64          `json:"final_energy"`
	Stats          RunStats         `json:"stats"`
}

// RunStats counts what happened during a run.
type RunStats struct {
	StepsRun     int  `json:"steps_run"`
	Accepted     int  `json:"accepted"`
	Improved     int  `json:"improved"`
	StoppedEarly bool `json:"stopped_early"`
}

// AcceptanceRate is the fraction of executed steps that were accepted.
func (s RunStats) AcceptanceRate() float64 {
	if s.StepsRun == 0 {
		return 0
	}
	return float64(s.Accepted) / float64(s.StepsRun)
}
