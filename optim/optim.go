package optim

import (
	"context"

	"github.com/cwbudde/boxgd/internal/opt"
)

// ObjectiveFunc evaluates the objective at x and, when grad is non-nil,
// stores the gradient in it.
type ObjectiveFunc = opt.ObjectiveFunc

// Settings configures one run.
type Settings = opt.Settings

// GDSettings holds the update rule and its hyperparameters.
type GDSettings = opt.GDSettings

// ClipSettings configures gradient clipping.
type ClipSettings = opt.ClipSettings

// Result describes a finished run.
type Result = opt.Result

// Status describes why a run stopped.
type Status = opt.Status

// Observer receives one TraceRecord per iteration.
type Observer = opt.Observer

// ObserverFunc adapts a function to Observer.
type ObserverFunc = opt.ObserverFunc

// TraceRecord is the per-iteration optimizer state.
type TraceRecord = opt.TraceRecord

// Optimizer is implemented by gradient descent and Mayfly.
type Optimizer = opt.Optimizer

// ContextOptimizer is an Optimizer that stops when its context is cancelled.
type ContextOptimizer = opt.ContextOptimizer

// ConvergenceError is returned under FailRaise.
type ConvergenceError = opt.ConvergenceError

// Method selects the update rule.
type Method = opt.Method

const (
	Basic    = opt.Basic
	Momentum = opt.Momentum
	Nesterov = opt.Nesterov
	AdaGrad  = opt.AdaGrad
	RMSProp  = opt.RMSProp
	Adam     = opt.Adam
	Nadam    = opt.Nadam
	AdaDelta = opt.AdaDelta
)

// FailurePolicy decides what happens when a run does not converge.
type FailurePolicy = opt.FailurePolicy

const (
	FailReturnFalse = opt.FailReturnFalse
	FailWarn        = opt.FailWarn
	FailKeepInitial = opt.FailKeepInitial
	FailRaise       = opt.FailRaise
)

// ClipType selects the magnitude measure used by clipping.
type ClipType = opt.ClipType

const (
	ClipNorm    = opt.ClipNorm
	ClipMaxNorm = opt.ClipMaxNorm
	ClipMinNorm = opt.ClipMinNorm
)

const (
	Running           = opt.Running
	GradientConverged = opt.GradientConverged
	SolutionStalled   = opt.SolutionStalled
	IterationLimit    = opt.IterationLimit
	NonFiniteGradient = opt.NonFiniteGradient
	InvalidInput      = opt.InvalidInput
	Cancelled         = opt.Cancelled
)

var (
	ErrInvalidSettings = opt.ErrInvalidSettings
	ErrNonFiniteInput  = opt.ErrNonFiniteInput
	ErrNotConverged    = opt.ErrNotConverged
)

// DefaultSettings returns the settings used by GD.
func DefaultSettings() Settings {
	return opt.DefaultSettings()
}

// GD minimizes fn from x with default settings and writes the final point
// back into x. It reports whether the gradient tolerance was met.
func GD(x []float64, fn ObjectiveFunc, data any) bool {
	return opt.GD(x, fn, data)
}

// GDWithSettings is GD with explicit settings. A nil s selects the
// defaults.
func GDWithSettings(x []float64, fn ObjectiveFunc, data any, s *Settings) (bool, error) {
	return opt.GDWithSettings(x, fn, data, s)
}

// Minimize runs gradient descent from x0 without modifying it.
func Minimize(x0 []float64, fn ObjectiveFunc, data any, s *Settings) (*Result, error) {
	return opt.Minimize(x0, fn, data, s)
}

// MinimizeContext is Minimize with cancellation. A cancelled run returns
// the last accepted point with status Cancelled and ctx.Err().
func MinimizeContext(ctx context.Context, x0 []float64, fn ObjectiveFunc, data any, s *Settings) (*Result, error) {
	return opt.MinimizeContext(ctx, x0, fn, data, s)
}

// Run minimizes with o, passing ctx through when o supports cancellation.
func Run(ctx context.Context, o Optimizer, x0 []float64, fn ObjectiveFunc, data any) (*Result, error) {
	return opt.Run(ctx, o, x0, fn, data)
}

// NewGradientDescent returns gradient descent as an Optimizer.
func NewGradientDescent(s Settings) Optimizer {
	return opt.NewGradientDescent(s)
}

// NewMayfly returns the derivative-free Mayfly swarm optimizer. s.IterMax
// is the number of swarm iterations; open bound sides are searched within
// radius of the starting point.
func NewMayfly(s Settings, popSize int, seed int64, radius float64) Optimizer {
	return opt.NewMayfly(s, popSize, seed, radius)
}

// DecodeSettings overlays a generic configuration map onto
// DefaultSettings. Method, policy and clip type may be given by name.
func DecodeSettings(input map[string]interface{}) (Settings, error) {
	return opt.DecodeSettings(input)
}
