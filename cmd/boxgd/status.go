package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/boxgd/internal/server"
)

var serverURL string

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Query server status or specific job",
	Long: `Queries a running boxgd server for job status information.
If no job-id is provided, lists all jobs.
If job-id is provided, shows detailed status for that job.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if len(args) == 0 {
		return listJobs(out, fmt.Sprintf("%s/api/v1/jobs", serverURL))
	}
	jobID := args[0]
	return getJobStatus(out, fmt.Sprintf("%s/api/v1/jobs/%s/status", serverURL, jobID), jobID)
}

func fetchJSON(url string, v any) (int, error) {
	resp, err := http.Get(url)
	if err != nil {
		return 0, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("server returned error: %s", string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.StatusCode, nil
}

func listJobs(out io.Writer, url string) error {
	var jobs []server.Job
	if _, err := fetchJSON(url, &jobs); err != nil {
		return err
	}

	if len(jobs) == 0 {
		fmt.Fprintln(out, "No jobs found")
		return nil
	}

	fmt.Fprintf(out, "Found %d job(s):\n\n", len(jobs))
	for _, job := range jobs {
		fmt.Fprintf(out, "Job ID: %s\n", job.ID)
		fmt.Fprintf(out, "  State: %s\n", job.State)
		fmt.Fprintf(out, "  Problem: %s (%s)\n", job.Config.Problem, job.Config.Algorithm)
		if job.State.Finished() && job.Status != "" {
			fmt.Fprintf(out, "  Result: %s, f(x) = %.6g\n", job.Status, job.Value)
		}
		fmt.Fprintln(out)
	}

	return nil
}

// jobStatusResponse mirrors the status endpoint: the job plus elapsed seconds
type jobStatusResponse struct {
	server.Job
	Elapsed float64 `json:"elapsed"`
}

func getJobStatus(out io.Writer, url, jobID string) error {
	var status jobStatusResponse
	code, err := fetchJSON(url, &status)
	if code == http.StatusNotFound {
		return fmt.Errorf("job not found: %s", jobID)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Job: %s\n", status.ID)
	fmt.Fprintf(out, "State: %s\n", status.State)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Configuration:")
	fmt.Fprintf(out, "  Problem: %s\n", status.Config.Problem)
	fmt.Fprintf(out, "  Algorithm: %s\n", status.Config.Algorithm)
	if status.Config.Start != nil {
		fmt.Fprintf(out, "  Start: %v\n", status.Config.Start)
	}
	if status.Config.Algorithm == "mayfly" {
		fmt.Fprintf(out, "  Population: %d\n", status.Config.PopSize)
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Progress:")
	fmt.Fprintf(out, "  Iterations: %d\n", status.Iterations)
	fmt.Fprintf(out, "  Gradient norm: %.6g\n", status.GradNorm)
	elapsed := time.Duration(status.Elapsed * float64(time.Second))
	fmt.Fprintf(out, "  Elapsed: %s\n", elapsed.Round(time.Millisecond))

	if status.State.Finished() && status.Status != "" {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Result:")
		fmt.Fprintf(out, "  Status: %s (success: %v)\n", status.Status, status.Success)
		fmt.Fprintf(out, "  f(x) = %.10g\n", status.Value)
		fmt.Fprintf(out, "  x    = %v\n", status.X)
		if status.RunID != "" {
			fmt.Fprintf(out, "  Stored as run %s\n", status.RunID)
		}
	}

	if status.Error != "" {
		fmt.Fprintf(out, "\nError: %s\n", status.Error)
	}

	return nil
}
