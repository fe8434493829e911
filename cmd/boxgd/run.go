package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/boxgd/internal/opt"
	"github.com/cwbudde/boxgd/internal/store"
	"github.com/cwbudde/boxgd/internal/testfn"
)

var (
	runOpts     runOptions
	problemName string
	startPoint  []float64
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single optimization",
	Long: `Minimizes a benchmark objective and stores the run record under the
data directory. Available problems: sphere, booth, rosenbrock, beale,
bounded-quadratic.`,
	RunE: runOptimization,
}

func init() {
	runCmd.Flags().StringVar(&problemName, "problem", "sphere", "Benchmark objective")
	runCmd.Flags().Float64SliceVar(&startPoint, "start", nil, "Starting point, comma separated (default: problem start)")
	addOptimizerFlags(runCmd, &runOpts)
	rootCmd.AddCommand(runCmd)
}

func runOptimization(cmd *cobra.Command, args []string) error {
	p, err := testfn.Get(problemName)
	if err != nil {
		return err
	}

	start := p.Start
	if startPoint != nil {
		start = startPoint
	}
	if !p.AcceptsDim(len(start)) {
		return fmt.Errorf("problem %s cannot be evaluated in %d dimensions", p.Name, len(start))
	}

	s, err := buildSettings(cmd, &runOpts, p, len(start))
	if err != nil {
		return err
	}

	_, err = executeRun(cmd.Context(), cmd.OutOrStdout(), &runOpts, p, start, s, "")
	return err
}

// executeRun runs one optimization, stores its record and trace unless
// disabled, and prints a summary. The record is returned even when the
// failure policy turns non-convergence into an error or ctx interrupts the
// run.
func executeRun(ctx context.Context, out io.Writer, o *runOptions, p testfn.Problem, start []float64, s opt.Settings, resumedFrom string) (*store.RunRecord, error) {
	var runStore *store.FSStore
	runID := store.NewRunID()
	if !o.noSave {
		var err error
		runStore, err = store.NewFSStore(o.dataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create run store: %w", err)
		}
	}

	var tracer *store.TraceWriter
	if o.trace && runStore != nil {
		var err error
		tracer, err = store.NewTraceWriter(runStore.BaseDir(), runID, false)
		if err != nil {
			return nil, err
		}
		s.Observer = tracer
	}

	var optimizer opt.Optimizer
	switch o.algo {
	case "mayfly":
		optimizer = opt.NewMayfly(s, o.popSize, o.seed, o.radius)
	default:
		optimizer = opt.NewGradientDescent(s)
	}

	slog.Info("Starting optimization",
		"run_id", runID,
		"problem", p.Name,
		"algo", o.algo,
		"method", s.GD.Method,
		"dim", len(start),
		"bounded", s.ValsBound,
	)

	began := time.Now()
	res, runErr := opt.Run(ctx, optimizer, start, p.Fn, nil)
	elapsed := time.Since(began)

	if tracer != nil {
		if err := tracer.Close(); err != nil {
			slog.Warn("Failed to close trace", "run_id", runID, "error", err)
		}
		if err := tracer.Err(); err != nil {
			slog.Warn("Trace incomplete", "run_id", runID, "error", err)
		}
	}

	var convErr *opt.ConvergenceError
	interrupted := errors.Is(runErr, context.Canceled)
	if res == nil || (runErr != nil && !interrupted && !errors.As(runErr, &convErr)) {
		if tracer != nil {
			discardTrace(runStore, runID)
		}
		return nil, runErr
	}

	record := store.NewRunRecord(runID, start, res, store.RunConfig{
		Problem:     p.Name,
		Algorithm:   o.algo,
		Method:      store.MethodLabel(o.algo, s),
		Dim:         len(start),
		IterMax:     s.IterMax,
		StepSize:    s.GD.StepSize,
		GradTol:     s.GradErrTol,
		Bounded:     s.ValsBound,
		PopSize:     popSizeLabel(o),
		Seed:        seedLabel(o),
		ResumedFrom: resumedFrom,
	})

	if runStore != nil {
		if err := runStore.SaveRun(record); err != nil {
			return record, fmt.Errorf("failed to save run: %w", err)
		}
	}

	slog.Info("Optimization complete",
		"run_id", runID,
		"elapsed", elapsed,
		"status", res.Status,
		"success", res.Success,
		"iterations", res.Iterations,
		"evaluations", res.FuncEvals,
		"value", res.Value,
	)

	printSummary(out, record, runStore != nil)
	return record, runErr
}

func popSizeLabel(o *runOptions) int {
	if o.algo == "mayfly" {
		return o.popSize
	}
	return 0
}

func seedLabel(o *runOptions) int64 {
	if o.algo == "mayfly" {
		return o.seed
	}
	return 0
}

func printSummary(out io.Writer, r *store.RunRecord, saved bool) {
	fmt.Fprintf(out, "Run %s: %s after %d iterations (success: %v)\n", r.RunID, r.Status, r.Iterations, r.Success)
	fmt.Fprintf(out, "  f(x) = %.10g\n", r.Value)
	fmt.Fprintf(out, "  x    = %v\n", r.X)
	if saved {
		fmt.Fprintf(out, "  resume with: boxgd resume %s\n", r.RunID)
	}
}

// discardTrace removes the trace of a run that will not be stored
func discardTrace(runStore *store.FSStore, runID string) {
	if err := store.DeleteTrace(runStore.BaseDir(), runID); err != nil {
		slog.Warn("Failed to delete trace", "run_id", runID, "error", err)
	}
}
