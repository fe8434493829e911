package opt

import (
	"errors"
	"fmt"
	"log/slog"
)

var (
	// ErrNonFiniteInput is returned when the initial point contains NaN or Inf.
	ErrNonFiniteInput = errors.New("non-finite initial value")

	// ErrNotConverged is wrapped by *ConvergenceError.
	ErrNotConverged = errors.New("optimizer did not converge")
)

// Status describes why a run stopped
type Status int

const (
	Running Status = iota
	GradientConverged
	SolutionStalled
	IterationLimit
	NonFiniteGradient
	InvalidInput
	Cancelled
)

var statusNames = [...]string{
	Running:           "Running",
	GradientConverged: "GradientConverged",
	SolutionStalled:   "SolutionStalled",
	IterationLimit:    "IterationLimit",
	NonFiniteGradient: "NonFiniteGradient",
	InvalidInput:      "InvalidInput",
	Cancelled:         "Cancelled",
}

func (s Status) String() string {
	if int(s) >= 0 && int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Result is produced once at the end of a run
type Result struct {
	// X is the final point in caller space.
	X []float64
	// Value is the objective at X.
	Value      float64
	Iterations int
	GradNorm   float64
	RelChange  float64
	FuncEvals  int
	Status     Status
	Success    bool
}

// ConvergenceError reports a run that ended without meeting the gradient
// tolerance under the FailRaise policy.
type ConvergenceError struct {
	Status     Status
	Iterations int
	GradNorm   float64
	Tolerance  float64
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("optimizer did not converge: status=%s iterations=%d grad_norm=%g tolerance=%g",
		e.Status, e.Iterations, e.GradNorm, e.Tolerance)
}

func (e *ConvergenceError) Is(target error) bool {
	return target == ErrNotConverged
}

// report decides success for a finished run, evaluates the objective at the
// final point and applies the failure policy.
func report(res *Result, fn ObjectiveFunc, data any, s *Settings) error {
	res.Success = res.GradNorm <= s.GradErrTol && res.Iterations <= s.IterMax &&
		res.Status != NonFiniteGradient && res.Status != InvalidInput
	res.Value = fn(res.X, nil, data)
	res.FuncEvals++

	if res.Success {
		slog.Info("Optimization converged",
			"status", res.Status,
			"iterations", res.Iterations,
			"grad_norm", res.GradNorm,
			"value", res.Value,
		)
		return nil
	}

	slog.Debug("Optimization did not converge",
		"status", res.Status,
		"iterations", res.Iterations,
		"grad_norm", res.GradNorm,
		"tolerance", s.GradErrTol,
	)

	switch s.FailurePolicy {
	case FailWarn:
		slog.Warn("Optimization failed to converge, returning last iterate",
			"status", res.Status,
			"iterations", res.Iterations,
			"iter_max", s.IterMax,
			"grad_norm", res.GradNorm,
			"tolerance", s.GradErrTol,
		)
	case FailRaise:
		return &ConvergenceError{
			Status:     res.Status,
			Iterations: res.Iterations,
			GradNorm:   res.GradNorm,
			Tolerance:  s.GradErrTol,
		}
	}
	return nil
}
