package store

import (
	"fmt"
	"math"
	"time"

	"github.com/cwbudde/boxgd/internal/opt"
)

// RunConfig records how a run was configured, so it can be shown and
// resumed later.
type RunConfig struct {
	Problem   string  `json:"problem"`
	Algorithm string  `json:"algorithm"` // gd, mayfly
	Method    string  `json:"method,omitempty"`
	Dim       int     `json:"dim"`
	IterMax   int     `json:"iterMax"`
	StepSize  float64 `json:"stepSize,omitempty"`
	GradTol   float64 `json:"gradTol,omitempty"`
	Bounded   bool    `json:"bounded,omitempty"`
	PopSize   int     `json:"popSize,omitempty"`
	Seed      int64   `json:"seed,omitempty"`

	// ResumedFrom is the run whose final point was used as the start.
	ResumedFrom string `json:"resumedFrom,omitempty"`
}

// RunRecord is the persisted outcome of one optimization run.
//
// Only the final point is stored, not the optimizer's accumulators. A
// resumed run therefore starts its update rule from scratch at X.
type RunRecord struct {
	RunID string `json:"runId"`

	// Start is the caller-space starting point.
	Start []float64 `json:"start"`

	// X is the final caller-space point.
	X []float64 `json:"x"`

	Value      float64 `json:"value"`
	GradNorm   float64 `json:"gradNorm"`
	Iterations int     `json:"iterations"`
	FuncEvals  int     `json:"funcEvals"`
	Status     string  `json:"status"`
	Success    bool    `json:"success"`

	// Timestamp records when the run finished
	Timestamp time.Time `json:"timestamp"`

	Config RunConfig `json:"config"`
}

// RunInfo contains metadata about a run without the point data.
type RunInfo struct {
	RunID      string    `json:"runId"`
	Problem    string    `json:"problem"`
	Algorithm  string    `json:"algorithm"`
	Method     string    `json:"method,omitempty"`
	Value      float64   `json:"value"`
	Iterations int       `json:"iterations"`
	Status     string    `json:"status"`
	Success    bool      `json:"success"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewRunRecord builds a record from a finished run. Non-finite values
// are not representable in JSON and are stored as -1.
func NewRunRecord(runID string, start []float64, res *opt.Result, config RunConfig) *RunRecord {
	return &RunRecord{
		RunID:      runID,
		Start:      append([]float64(nil), start...),
		X:          append([]float64(nil), res.X...),
		Value:      finiteOr(res.Value, -1),
		GradNorm:   finiteOr(res.GradNorm, -1),
		Iterations: res.Iterations,
		FuncEvals:  res.FuncEvals,
		Status:     res.Status.String(),
		Success:    res.Success,
		Timestamp:  time.Now(),
		Config:     config,
	}
}

// MaxSuffix marks the infinity-norm variants in stored method names
const MaxSuffix = "-max"

// MethodLabel is the stored method name for a run. Only gd runs have one.
func MethodLabel(algo string, s opt.Settings) string {
	if algo != "gd" {
		return ""
	}
	if s.GD.AdaMax && (s.GD.Method == opt.Adam || s.GD.Method == opt.Nadam) {
		return s.GD.Method.String() + MaxSuffix
	}
	return s.GD.Method.String()
}

func finiteOr(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}

// ToInfo converts a full RunRecord to RunInfo (metadata only).
func (r *RunRecord) ToInfo() RunInfo {
	return RunInfo{
		RunID:      r.RunID,
		Problem:    r.Config.Problem,
		Algorithm:  r.Config.Algorithm,
		Method:     r.Config.Method,
		Value:      r.Value,
		Iterations: r.Iterations,
		Status:     r.Status,
		Success:    r.Success,
		Timestamp:  r.Timestamp,
	}
}

// Validate checks if the record has valid data.
func (r *RunRecord) Validate() error {
	if r.RunID == "" {
		return &ValidationError{Field: "RunID", Reason: "cannot be empty"}
	}
	if len(r.X) == 0 {
		return &ValidationError{Field: "X", Reason: "cannot be empty"}
	}
	if r.Config.Dim <= 0 {
		return &ValidationError{Field: "Config.Dim", Reason: "must be positive"}
	}
	if len(r.X) != r.Config.Dim {
		return &ValidationError{
			Field:  "X",
			Reason: fmt.Sprintf("length mismatch: expected %d values, got %d", r.Config.Dim, len(r.X)),
		}
	}
	if len(r.Start) != r.Config.Dim {
		return &ValidationError{
			Field:  "Start",
			Reason: fmt.Sprintf("length mismatch: expected %d values, got %d", r.Config.Dim, len(r.Start)),
		}
	}
	if r.Iterations < 0 {
		return &ValidationError{Field: "Iterations", Reason: "cannot be negative"}
	}
	if r.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	if r.Config.Problem == "" {
		return &ValidationError{Field: "Config.Problem", Reason: "cannot be empty"}
	}
	switch r.Config.Algorithm {
	case "gd", "mayfly":
	default:
		return &ValidationError{Field: "Config.Algorithm", Reason: fmt.Sprintf("unknown algorithm %q", r.Config.Algorithm)}
	}
	if r.Config.IterMax < 0 {
		return &ValidationError{Field: "Config.IterMax", Reason: "cannot be negative"}
	}
	return nil
}

// ValidationError represents a run-record validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// IsCompatible checks if this record can seed a run with the given config.
func (r *RunRecord) IsCompatible(config RunConfig) error {
	if r.Config.Problem != config.Problem {
		return &CompatibilityError{
			Field:    "Problem",
			Expected: r.Config.Problem,
			Actual:   config.Problem,
		}
	}
	if r.Config.Dim != config.Dim {
		return &CompatibilityError{
			Field:    "Dim",
			Expected: fmt.Sprintf("%d", r.Config.Dim),
			Actual:   fmt.Sprintf("%d", config.Dim),
		}
	}
	return nil
}

// CompatibilityError represents a resume compatibility error.
type CompatibilityError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *CompatibilityError) Error() string {
	return "compatibility error: " + e.Field + " mismatch (expected " + e.Expected + ", got " + e.Actual + ")"
}
