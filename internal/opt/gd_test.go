package opt

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/boxgd/internal/testfn"
)

// countingObjective wraps fn and records every point it is called with
type countingObjective struct {
	fn    ObjectiveFunc
	calls int
}

func (c *countingObjective) Eval(x, grad []float64, data any) float64 {
	c.calls++
	return c.fn(x, grad, data)
}

func TestGDSphereExample(t *testing.T) {
	x := []float64{1, 1}
	s := DefaultSettings()
	s.GradErrTol = 1e-6

	res, err := Minimize(x, testfn.Sphere, nil, &s)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, GradientConverged, res.Status)
	assert.Equal(t, 67, res.Iterations)
	assert.LessOrEqual(t, res.GradNorm, 1e-6)
	assert.InDelta(t, 0, res.X[0], 1e-6)
	assert.InDelta(t, 0, res.X[1], 1e-6)
	assert.Equal(t, []float64{1, 1}, x, "Minimize must not modify x0")
}

func TestGDWritesResultIntoVector(t *testing.T) {
	x := []float64{1, 1}
	ok := GD(x, testfn.Sphere, nil)

	assert.True(t, ok)
	assert.InDelta(t, 0, x[0], 1e-8)
	assert.InDelta(t, 0, x[1], 1e-8)
}

func TestGDUserDataIsPassedThrough(t *testing.T) {
	center := []float64{3, -2}
	fn := func(x, grad []float64, data any) float64 {
		c := data.([]float64)
		return testfn.Shifted(c)(x, grad, nil)
	}

	x := []float64{0, 0}
	ok := GD(x, fn, center)

	require.True(t, ok)
	assert.InDelta(t, 3, x[0], 1e-7)
	assert.InDelta(t, -2, x[1], 1e-7)
}

func TestGDMethodsConverge(t *testing.T) {
	for _, m := range []Method{Basic, Momentum, Nesterov, AdaGrad, Adam, Nadam} {
		t.Run(m.String(), func(t *testing.T) {
			s := DefaultSettings()
			s.GD.Method = m
			s.GradErrTol = 1e-5
			s.IterMax = 5000

			res, err := Minimize([]float64{1, -0.5}, testfn.Shifted([]float64{0.5, 0.25}), nil, &s)
			require.NoError(t, err)
			assert.True(t, res.Success, "status %s after %d iterations, grad norm %g", res.Status, res.Iterations, res.GradNorm)
			assert.InDelta(t, 0.5, res.X[0], 1e-4)
			assert.InDelta(t, 0.25, res.X[1], 1e-4)
		})
	}
}

func TestGDAdaMaxConverges(t *testing.T) {
	for _, m := range []Method{Adam, Nadam} {
		s := DefaultSettings()
		s.GD.Method = m
		s.GD.AdaMax = true
		s.GradErrTol = 1e-5
		s.IterMax = 5000

		res, err := Minimize([]float64{1, 1}, testfn.Sphere, nil, &s)
		require.NoError(t, err)
		assert.True(t, res.Success, "%s/adamax: status %s grad norm %g", m, res.Status, res.GradNorm)
	}
}

func TestGDRMSPropAndAdaDeltaDescend(t *testing.T) {
	s := DefaultSettings()
	s.GD.Method = RMSProp
	s.IterMax = 500
	res, err := Minimize([]float64{1, 1}, testfn.Sphere, nil, &s)
	require.NoError(t, err)
	assert.Equal(t, GradientConverged, res.Status)
	assert.Less(t, res.Iterations, 500)
	assert.Less(t, res.Value, 1e-12)

	// AdaDelta's effective step starts near sqrt(NormTerm) and grows slowly
	s = DefaultSettings()
	s.GD.Method = AdaDelta
	s.IterMax = 500
	start := []float64{1, 1}
	res, err = Minimize(start, testfn.Sphere, nil, &s)
	require.NoError(t, err)
	assert.Equal(t, IterationLimit, res.Status)
	assert.Equal(t, 500, res.Iterations)
	assert.Less(t, res.Value, testfn.Sphere(start, nil, nil))
}

func TestGDNonFiniteStartSkipsObjective(t *testing.T) {
	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		obj := &countingObjective{fn: testfn.Sphere}
		x := []float64{1, bad}

		ok, err := GDWithSettings(x, obj.Eval, nil, nil)

		assert.False(t, ok)
		assert.ErrorIs(t, err, ErrNonFiniteInput)
		assert.Zero(t, obj.calls)
	}

	obj := &countingObjective{fn: testfn.Sphere}
	assert.False(t, GD([]float64{math.NaN()}, obj.Eval, nil))
	assert.Zero(t, obj.calls)
}

func TestGDZeroIterationCap(t *testing.T) {
	s := DefaultSettings()
	s.IterMax = 0

	x := []float64{1, 1}
	ok, err := GDWithSettings(x, testfn.Sphere, nil, &s)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []float64{1, 1}, x)

	res, err := Minimize([]float64{1, 1}, testfn.Sphere, nil, &s)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Iterations)
	assert.Equal(t, IterationLimit, res.Status)

	s.FailurePolicy = FailRaise
	ok, err = GDWithSettings([]float64{1, 1}, testfn.Sphere, nil, &s)
	assert.False(t, ok)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotConverged))

	var convErr *ConvergenceError
	require.ErrorAs(t, err, &convErr)
	assert.Equal(t, IterationLimit, convErr.Status)
	assert.Equal(t, 0, convErr.Iterations)
}

func TestGDAlreadyConverged(t *testing.T) {
	obj := &countingObjective{fn: testfn.Sphere}
	res, err := Minimize([]float64{0, 0}, obj.Eval, nil, nil)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, 0, res.Iterations)
	assert.Equal(t, GradientConverged, res.Status)
	// one gradient evaluation plus the final value
	assert.Equal(t, 2, obj.calls)
}

func TestGDFailurePolicies(t *testing.T) {
	s := DefaultSettings()
	s.IterMax = 3

	s.FailurePolicy = FailKeepInitial
	x := []float64{1, 1}
	ok, err := GDWithSettings(x, testfn.Sphere, nil, &s)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []float64{1, 1}, x)

	for _, p := range []FailurePolicy{FailReturnFalse, FailWarn} {
		s.FailurePolicy = p
		x := []float64{1, 1}
		ok, err := GDWithSettings(x, testfn.Sphere, nil, &s)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.InDelta(t, 0.512, x[0], 1e-12, "policy %s writes the last iterate", p)
	}
}

func TestGDStallIsNotSuccess(t *testing.T) {
	s := DefaultSettings()
	s.RelSolChangeTol = 0.5
	s.GradErrTol = 1e-12

	res, err := Minimize([]float64{1, 1}, testfn.Sphere, nil, &s)
	require.NoError(t, err)
	assert.Equal(t, SolutionStalled, res.Status)
	assert.Equal(t, 1, res.Iterations)
	assert.False(t, res.Success)
}

func TestGDNonFiniteGradientStops(t *testing.T) {
	fn := func(x, grad []float64, _ any) float64 {
		if grad != nil {
			grad[0] = 1
			if x[0] < 0.85 {
				grad[0] = math.NaN()
			}
		}
		return x[0]
	}

	res, err := Minimize([]float64{1}, fn, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, NonFiniteGradient, res.Status)
	assert.False(t, res.Success)
	assert.Equal(t, 1, res.Iterations)
	assert.InDelta(t, 0.9, res.X[0], 1e-12)
}

func TestGDBoundedInteriorMinimum(t *testing.T) {
	s := DefaultSettings()
	s.ValsBound = true
	s.LowerBounds = []float64{0, 0}
	s.UpperBounds = []float64{1, 1}
	s.GD.StepSize = 1
	s.GradErrTol = 1e-7
	s.IterMax = 5000

	target := testfn.Shifted([]float64{0.3, 0.7})
	fn := func(x, grad []float64, data any) float64 {
		for i, v := range x {
			if !(v > 0 && v < 1) {
				t.Fatalf("objective called outside bounds: x[%d] = %g", i, v)
			}
		}
		return target(x, grad, data)
	}

	res, err := Minimize([]float64{0.5, 0.5}, fn, nil, &s)
	require.NoError(t, err)
	assert.True(t, res.Success, "status %s grad %g", res.Status, res.GradNorm)
	assert.InDelta(t, 0.3, res.X[0], 1e-5)
	assert.InDelta(t, 0.7, res.X[1], 1e-5)
}

func TestGDBoundedMinimumOnBoundary(t *testing.T) {
	p, err := testfn.Get("bounded-quadratic")
	require.NoError(t, err)

	s := DefaultSettings()
	s.ValsBound = true
	s.LowerBounds = p.Lower
	s.UpperBounds = p.Upper

	res, err := Minimize(p.Start, p.Fn, nil, &s)
	require.NoError(t, err)

	assert.True(t, res.X[0] > 0 && res.X[0] < 1)
	assert.True(t, res.X[1] > 0.5)
	assert.InDelta(t, p.Minimizer[0], res.X[0], 1e-2)
	assert.InDelta(t, p.Minimizer[1], res.X[1], 1e-2)
}

func TestGDStartOnBoundIsMovedInside(t *testing.T) {
	inf := math.Inf(1)
	for _, tc := range []struct {
		name         string
		lower, upper float64
		start        float64
	}{
		{"below lower", 0, inf, -3},
		{"on lower", 0, inf, 0},
		{"on upper of box", 0, 10, 10},
		{"above upper of box", 0, 10, 12},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := DefaultSettings()
			s.ValsBound = true
			s.LowerBounds = []float64{tc.lower}
			s.UpperBounds = []float64{tc.upper}

			res, err := Minimize([]float64{tc.start}, testfn.Shifted([]float64{2}), nil, &s)
			require.NoError(t, err)
			assert.Positive(t, res.Iterations, "start must not look converged on the bound")
			assert.Equal(t, GradientConverged, res.Status)
			assert.True(t, res.Success)
			assert.InDelta(t, 2.0, res.X[0], 1e-4)
		})
	}
}

func TestGDAccumulatorsGrowUnderConstantGradient(t *testing.T) {
	grad := []float64{1, -2}

	for _, m := range []Method{AdaGrad, RMSProp, Adam, Nadam, AdaDelta} {
		t.Run(m.String(), func(t *testing.T) {
			var ms, vs [][]float64
			s := DefaultSettings()
			s.GD.Method = m
			s.IterMax = 20
			s.Observer = ObserverFunc(func(rec TraceRecord) {
				if rec.M != nil {
					ms = append(ms, append([]float64(nil), rec.M...))
				}
				vs = append(vs, append([]float64(nil), rec.V...))
			})

			_, err := Minimize([]float64{0, 0}, testfn.Linear(grad), nil, &s)
			require.NoError(t, err)
			require.Len(t, vs, 21)

			for _, series := range [][][]float64{ms, vs} {
				for k := 1; k < len(series); k++ {
					for i := range series[k] {
						assert.GreaterOrEqual(t, math.Abs(series[k][i]), math.Abs(series[k-1][i]),
							"coordinate %d shrank at record %d", i, k)
					}
				}
			}
		})
	}
}

func TestGDClippingBoundsGradient(t *testing.T) {
	s := DefaultSettings()
	s.IterMax = 50
	s.GD.StepSize = 0.01
	s.GD.Clip = ClipSettings{Enabled: true, Type: ClipNorm, NormType: 2, Bound: 1}

	steep := testfn.Scaled([]float64{100, 50})
	var norms []float64
	s.Observer = ObserverFunc(func(rec TraceRecord) {
		if rec.Iteration > 0 {
			norms = append(norms, rec.GradNorm)
		}
	})

	_, err := Minimize([]float64{3, 3}, steep, nil, &s)
	require.NoError(t, err)
	require.NotEmpty(t, norms)
	for _, n := range norms {
		assert.LessOrEqual(t, n, 1+1e-12)
	}
}

func TestGDObserverDoesNotChangeResult(t *testing.T) {
	s := DefaultSettings()
	s.GD.Method = Adam
	s.IterMax = 100

	plain, err := Minimize([]float64{1, 2}, testfn.Booth, nil, &s)
	require.NoError(t, err)

	records := 0
	s.Observer = ObserverFunc(func(TraceRecord) { records++ })
	s.PrintLevel = 4
	traced, err := Minimize([]float64{1, 2}, testfn.Booth, nil, &s)
	require.NoError(t, err)

	assert.Equal(t, plain.X, traced.X)
	assert.Equal(t, plain.Iterations, traced.Iterations)
	assert.Equal(t, plain.Iterations+1, records)
}

func TestGDInvalidSettings(t *testing.T) {
	s := DefaultSettings()
	s.GD.Method = Method(42)

	x := []float64{1}
	ok, err := GDWithSettings(x, testfn.Sphere, nil, &s)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrInvalidSettings)
	assert.Equal(t, []float64{1}, x)

	_, err = Minimize(x, nil, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidSettings)
}

func TestGradientDescentOptimizer(t *testing.T) {
	var o Optimizer = NewGradientDescent(DefaultSettings())
	res, err := o.Minimize([]float64{0, 0}, testfn.Booth, nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.InDelta(t, 1, res.X[0], 1e-6)
	assert.InDelta(t, 3, res.X[1], 1e-6)
	assert.InDelta(t, 0, res.Value, 1e-10)
	assert.Positive(t, res.FuncEvals)
}

func TestGDCancelledBeforeFirstStep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := MinimizeContext(ctx, []float64{1, 1}, testfn.Sphere, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Equal(t, Cancelled, res.Status)
	assert.False(t, res.Success)
	assert.Equal(t, 0, res.Iterations)
	assert.Equal(t, []float64{1, 1}, res.X)
	assert.Equal(t, 2.0, res.Value)
}

func TestGDCancelledMidRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := DefaultSettings()
	s.Observer = ObserverFunc(func(rec TraceRecord) {
		if rec.Iteration == 5 {
			cancel()
		}
	})

	res, err := MinimizeContext(ctx, []float64{1, 1}, testfn.Sphere, nil, &s)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Cancelled, res.Status)
	assert.Equal(t, 5, res.Iterations)
	// five basic steps of size 0.1 on the sphere shrink x by 0.8 each
	assert.InDelta(t, math.Pow(0.8, 5), res.X[0], 1e-12)
	assert.InDelta(t, 2*math.Pow(0.8, 10), res.Value, 1e-12)
}

func TestRunPassesContextToGradientDescent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Run(ctx, NewGradientDescent(DefaultSettings()), []float64{0, 0}, testfn.Booth, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Cancelled, res.Status)

	res, err = Run(context.Background(), NewGradientDescent(DefaultSettings()), []float64{0, 0}, testfn.Booth, nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestRunChecksContextForPlainOptimizers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Run(ctx, NewMayfly(DefaultSettings(), 20, 1, 1), []float64{0, 0}, testfn.Booth, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
}
