package opt

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"github.com/cwbudde/mayfly"
)

// defaultSearchRadius sizes the search window around x0 on open sides
const defaultSearchRadius = 10.0

// MayflyAdapter wraps the external Mayfly library to conform to our
// Optimizer interface. It is derivative-free: the objective is always
// called with a nil gradient.
type MayflyAdapter struct {
	settings Settings
	popSize  int
	seed     int64
	radius   float64
}

// NewMayfly creates a new Mayfly optimizer adapter. settings.IterMax is
// the number of Mayfly iterations. Coordinates without a finite bound on a
// side are searched within radius of the starting point on that side.
func NewMayfly(settings Settings, popSize int, seed int64, radius float64) Optimizer {
	if radius <= 0 {
		radius = defaultSearchRadius
	}
	return &MayflyAdapter{
		settings: settings,
		popSize:  popSize,
		seed:     seed,
		radius:   radius,
	}
}

// Minimize executes the Mayfly optimization using the external library.
// The library only supports scalar bounds, so the search runs on the unit
// cube and is mapped linearly onto the per-coordinate window.
func (m *MayflyAdapter) Minimize(x0 []float64, fn ObjectiveFunc, data any) (*Result, error) {
	s := m.settings
	n := len(x0)
	if fn == nil {
		return nil, fmt.Errorf("%w: objective function is nil", ErrInvalidSettings)
	}
	if err := s.Validate(n); err != nil {
		return nil, err
	}
	if m.popSize <= 0 {
		return nil, fmt.Errorf("%w: population size must be positive, got %d", ErrInvalidSettings, m.popSize)
	}
	if !allFinite(x0) {
		slog.Error("mayfly: non-finite initial value(s)", "x0", x0)
		return &Result{X: append([]float64(nil), x0...), Value: math.NaN(), Status: InvalidInput}, ErrNonFiniteInput
	}

	lo, hi := m.window(x0)
	toBox := func(p []float64) []float64 {
		x := make([]float64, n)
		for i := range x {
			u := math.Max(0, math.Min(1, p[i]))
			x[i] = lo[i] + (hi[i]-lo[i])*u
		}
		return x
	}

	evals := 0
	config := mayfly.NewDefaultConfig()
	config.ObjectiveFunc = func(p []float64) float64 {
		evals++
		return fn(toBox(p), nil, data)
	}
	config.ProblemSize = n
	config.MaxIterations = s.IterMax
	config.NPop = m.popSize
	config.LowerBound = 0
	config.UpperBound = 1
	config.Rand = rand.New(rand.NewSource(m.seed))

	result, err := mayfly.Optimize(config)
	if err != nil {
		return nil, fmt.Errorf("mayfly optimization failed: %w", err)
	}

	res := &Result{
		X:          toBox(result.GlobalBest.Position),
		Value:      result.GlobalBest.Cost,
		Iterations: s.IterMax,
		GradNorm:   math.NaN(),
		RelChange:  math.NaN(),
		Status:     IterationLimit,
	}

	// keep the starting point if the swarm never beat it
	if start := fn(x0, nil, data); start < res.Value {
		res.X = append([]float64(nil), x0...)
		res.Value = start
	}
	res.FuncEvals = evals + 1
	res.Success = !math.IsNaN(res.Value) && !math.IsInf(res.Value, 0)

	slog.Info("Mayfly optimization complete",
		"iterations", res.Iterations,
		"evaluations", res.FuncEvals,
		"value", res.Value,
		"success", res.Success,
	)

	if !res.Success && s.FailurePolicy == FailRaise {
		return res, &ConvergenceError{Status: res.Status, Iterations: res.Iterations, GradNorm: res.GradNorm}
	}
	return res, nil
}

// window returns the per-coordinate search interval
func (m *MayflyAdapter) window(x0 []float64) (lo, hi []float64) {
	lo = make([]float64, len(x0))
	hi = make([]float64, len(x0))
	for i, x := range x0 {
		lo[i] = x - m.radius
		hi[i] = x + m.radius
		if m.settings.ValsBound {
			if l := m.settings.LowerBounds[i]; !math.IsInf(l, 0) {
				lo[i] = l
			}
			if u := m.settings.UpperBounds[i]; !math.IsInf(u, 0) {
				hi[i] = u
			}
			if lo[i] >= hi[i] {
				// one-sided bound beyond the default window
				if math.IsInf(m.settings.UpperBounds[i], 0) {
					hi[i] = lo[i] + 2*m.radius
				} else {
					lo[i] = hi[i] - 2*m.radius
				}
			}
		}
	}
	return lo, hi
}
