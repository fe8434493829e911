package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/cwbudde/boxgd/internal/opt"
	"github.com/cwbudde/boxgd/internal/store"
)

// progressInterval throttles SSE progress events
var progressInterval = 500 * time.Millisecond

// runJob executes an optimization job in the background. If runStore is not
// nil the finished run is saved there, together with its trace when the job
// asks for one.
func runJob(ctx context.Context, jm *JobManager, runStore *store.FSStore, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	p, start, settings, err := job.Config.resolve()
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	// Check for cancellation before starting
	select {
	case <-ctx.Done():
		markJobCancelled(jm, jobID)
		return ctx.Err()
	default:
	}

	err = jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateRunning
	})
	if err != nil {
		return err
	}

	runID := store.NewRunID()
	observers := opt.MultiObserver{progressObserver(jm, jobID)}

	var tracer *store.TraceWriter
	if runStore != nil && job.Config.Trace {
		tracer, err = store.NewTraceWriter(runStore.BaseDir(), runID, false)
		if err != nil {
			markJobFailed(jm, jobID, err)
			return err
		}
		observers = append(observers, tracer)
	}
	settings.Observer = observers

	slog.Info("Starting job",
		"job_id", jobID,
		"problem", p.Name,
		"algo", job.Config.Algorithm,
		"dim", len(start),
	)

	progressDone := make(chan struct{})
	progressStopped := make(chan struct{})
	go func() {
		defer close(progressStopped)
		monitorProgress(ctx, jm, jobID, progressDone)
	}()

	began := time.Now()
	res, runErr := opt.Run(ctx, job.Config.optimizer(settings), start, p.Fn, nil)
	elapsed := time.Since(began)
	close(progressDone)
	// the final event must not be overtaken by a late progress tick
	<-progressStopped

	if tracer != nil {
		if err := tracer.Close(); err != nil {
			slog.Warn("Failed to close trace", "job_id", jobID, "error", err)
		}
	}

	cancelled := errors.Is(runErr, context.Canceled) || ctx.Err() != nil
	var convErr *opt.ConvergenceError
	if res == nil || (runErr != nil && !cancelled && !errors.As(runErr, &convErr)) {
		if tracer != nil {
			discardTrace(runStore, jobID, runID)
		}
		if res == nil && cancelled {
			markJobCancelled(jm, jobID)
		} else {
			markJobFailed(jm, jobID, runErr)
		}
		return runErr
	}

	record := store.NewRunRecord(runID, start, res, store.RunConfig{
		Problem:   p.Name,
		Algorithm: job.Config.Algorithm,
		Method:    store.MethodLabel(job.Config.Algorithm, settings),
		Dim:       len(start),
		IterMax:   settings.IterMax,
		StepSize:  settings.GD.StepSize,
		GradTol:   settings.GradErrTol,
		Bounded:   settings.ValsBound,
		PopSize:   job.Config.PopSize,
		Seed:      job.Config.Seed,
	})

	saved := false
	if runStore != nil {
		if err := runStore.SaveRun(record); err != nil {
			slog.Error("Failed to save run", "job_id", jobID, "run_id", runID, "error", err)
		} else {
			saved = true
		}
	}

	state := StateCompleted
	if cancelled {
		state = StateCancelled
	}
	endTime := time.Now()
	err = jm.UpdateJob(jobID, func(j *Job) {
		j.State = state
		j.X = record.X
		j.Value = record.Value
		j.GradNorm = record.GradNorm
		j.Iterations = record.Iterations
		j.Status = record.Status
		j.Success = record.Success
		if saved {
			j.RunID = runID
		}
		if convErr != nil {
			j.Error = convErr.Error()
		}
		j.EndTime = &endTime
	})
	if err != nil {
		return err
	}

	slog.Info("Job finished",
		"job_id", jobID,
		"state", state,
		"elapsed", elapsed,
		"status", record.Status,
		"iterations", record.Iterations,
		"value", record.Value,
	)

	jm.publish(jobID)

	return runErr
}

// progressObserver copies the iteration count and gradient norm of every
// trace record into the job.
func progressObserver(jm *JobManager, jobID string) opt.Observer {
	return opt.ObserverFunc(func(rec opt.TraceRecord) {
		jm.UpdateJob(jobID, func(j *Job) {
			j.Iterations = rec.Iteration
			if !math.IsNaN(rec.GradNorm) && !math.IsInf(rec.GradNorm, 0) {
				j.GradNorm = rec.GradNorm
			}
		})
	})
}

// monitorProgress periodically broadcasts progress events during optimization
func monitorProgress(ctx context.Context, jm *JobManager, jobID string, done chan struct{}) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !jm.publish(jobID) {
				return
			}
		}
	}
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, jobID string, err error) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
	})
	slog.Error("Job failed", "job_id", jobID, "error", err)
	jm.publish(jobID)
}

// markJobCancelled marks a job as cancelled
func markJobCancelled(jm *JobManager, jobID string) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		j.EndTime = &endTime
	})
	slog.Info("Job cancelled", "job_id", jobID)
	jm.publish(jobID)
}

func discardTrace(runStore *store.FSStore, jobID, runID string) {
	if err := store.DeleteTrace(runStore.BaseDir(), runID); err != nil {
		slog.Warn("Failed to delete trace", "job_id", jobID, "run_id", runID, "error", err)
	}
}
