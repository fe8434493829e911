package opt

import "context"

// Optimizer defines an optimization algorithm interface.
// Implementations share Settings for the iteration cap, bounds and
// failure reporting.
type Optimizer interface {
	// Minimize searches for a local minimum of fn starting from x0.
	// x0 is not modified; the best point is returned in Result.X.
	Minimize(x0 []float64, fn ObjectiveFunc, data any) (*Result, error)
}

// ContextOptimizer is an Optimizer that can stop early when its context
// is cancelled.
type ContextOptimizer interface {
	Optimizer
	MinimizeContext(ctx context.Context, x0 []float64, fn ObjectiveFunc, data any) (*Result, error)
}

// Run minimizes with o, passing ctx through when o supports cancellation.
// Other optimizers run to completion; ctx is then only checked before the
// run starts.
func Run(ctx context.Context, o Optimizer, x0 []float64, fn ObjectiveFunc, data any) (*Result, error) {
	if co, ok := o.(ContextOptimizer); ok {
		return co.MinimizeContext(ctx, x0, fn, data)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return o.Minimize(x0, fn, data)
}

// GradientDescent is the Optimizer backed by Minimize
type GradientDescent struct {
	Settings Settings
}

// NewGradientDescent creates a gradient-descent optimizer
func NewGradientDescent(settings Settings) Optimizer {
	return &GradientDescent{Settings: settings}
}

// Minimize runs gradient descent with the optimizer's settings
func (g *GradientDescent) Minimize(x0 []float64, fn ObjectiveFunc, data any) (*Result, error) {
	return Minimize(x0, fn, data, &g.Settings)
}

// MinimizeContext runs gradient descent until convergence or cancellation
func (g *GradientDescent) MinimizeContext(ctx context.Context, x0 []float64, fn ObjectiveFunc, data any) (*Result, error) {
	return MinimizeContext(ctx, x0, fn, data, &g.Settings)
}
