package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cwbudde/seqdesign/internal/server"
	"github.com/spf13/cobra"
)

var (
	serverURL string
)

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Query server status or specific job",
	Long: `Queries the server for job status information.
If no job-id is provided, lists all jobs.
If job-id is provided, shows detailed status for that job.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.AddCommand(statusCmd)
}

// jobStatus mirrors the server's status response
type jobStatus struct {
	server.Job
	Elapsed        float64 `json:"elapsed"`
	StepsPerSecond float64 `json:"steps_per_second"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return listJobs(fmt.Sprintf("%s/api/v1/jobs", serverURL))
	}
	jobID := args[0]
	return getJobStatus(fmt.Sprintf("%s/api/v1/jobs/%s/status", serverURL, jobID), jobID)
}

func listJobs(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", string(body))
	}

	var jobs []server.Job
	if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if len(jobs) == 0 {
		fmt.Println("No jobs found")
		return nil
	}

	fmt.Printf("Found %d job(s):\n\n", len(jobs))
	for _, job := range jobs {
		fmt.Printf("Job ID: %s\n", job.ID)
		fmt.Printf("  State: %s\n", job.State)
		fmt.Printf("  Chains: %s\n", strings.Join(job.Config.Chains, ", "))
		fmt.Printf("  Progress: %d/%d steps\n", job.Step, job.TotalSteps)
		if job.Step > 0 {
			fmt.Printf("  Best Energy: %.6f\n", job.BestEnergy)
		}
		fmt.Println()
	}

	return nil
}

func getJobStatus(url, jobID string) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("job not found: %s", jobID)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", string(body))
	}

	var status jobStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("Job: %s\n", status.ID)
	fmt.Printf("State: %s\n", status.State)
	fmt.Printf("Seed: %d\n", status.Seed)
	fmt.Println()

	fmt.Println("Configuration:")
	fmt.Printf("  Chains: %s\n", strings.Join(status.Config.Chains, ", "))
	fmt.Printf("  Oracles: %s\n", strings.Join(status.Config.Oracles, ", "))
	fmt.Printf("  Energy Terms: %s\n", strings.Join(status.Config.EnergyTerms, ", "))
	fmt.Printf("  Mutation Protocols: %s\n", strings.Join(status.Config.Mutators, ", "))
	fmt.Printf("  Minimizer: %s (%d steps)\n", status.Config.Minimizer, status.TotalSteps)
	fmt.Println()

	fmt.Println("Progress:")
	fmt.Printf("  Step: %d/%d\n", status.Step, status.TotalSteps)
	fmt.Printf("  Energy: %.6f\n", status.Energy)
	fmt.Printf("  Best Energy: %.6f\n", status.BestEnergy)
	if status.Step > 0 {
		fmt.Printf("  Acceptance: %.1f%%\n", 100*float64(status.Accepted)/float64(status.Step))
	}

	elapsed := time.Duration(status.Elapsed * float64(time.Second))
	fmt.Printf("  Elapsed: %s\n", elapsed.Round(time.Millisecond))
	if status.StepsPerSecond > 0 {
		fmt.Printf("  Throughput: %.1f steps/sec\n", status.StepsPerSecond)
	}

	if status.Result != nil {
		fmt.Println()
		fmt.Println("Best Sequences:")
		for _, chain := range status.Result.BestSequences.Chains() {
			fmt.Printf("  %s: %s\n", chain, status.Result.BestSequences[chain])
		}
		fmt.Printf("  (step %d)\n", status.Result.BestStep)
	}

	if status.Error != "" {
		fmt.Printf("\nError: %s\n", status.Error)
	}

	return nil
}
