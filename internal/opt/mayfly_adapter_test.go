package opt

import (
	"errors"
	"math"
	"testing"
)

// Sphere function: f(x) = sum(x_i^2), minimum at origin
func sphere(x, _ []float64, _ any) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return sum
}

func boxedSettings(iters int, lower, upper []float64) Settings {
	s := DefaultSettings()
	s.IterMax = iters
	s.ValsBound = true
	s.LowerBounds = lower
	s.UpperBounds = upper
	return s
}

func TestMayflyAdapterOnSphere(t *testing.T) {
	dim := 3
	lower := make([]float64, dim)
	upper := make([]float64, dim)
	for i := 0; i < dim; i++ {
		lower[i] = -10
		upper[i] = 10
	}
	optimizer := NewMayfly(boxedSettings(100, lower, upper), 20, 42, 0)

	res, err := optimizer.Minimize([]float64{3, -2, 1}, sphere, nil)
	if err != nil {
		t.Fatalf("Minimize failed: %v", err)
	}

	if len(res.X) != dim {
		t.Fatalf("Expected %d parameters, got %d", dim, len(res.X))
	}
	if !res.Success {
		t.Errorf("Expected success for a finite objective, got status %v", res.Status)
	}

	// Should converge close to zero
	if res.Value > 0.5 {
		t.Errorf("Expected cost near 0, got %f", res.Value)
	}
	for i, v := range res.X {
		if v < -10 || v > 10 {
			t.Errorf("Parameter %d = %f left the bounds", i, v)
		}
	}
	if res.FuncEvals < 100 {
		t.Errorf("Expected at least one evaluation per iteration, got %d", res.FuncEvals)
	}
}

func TestMayflyAdapterDeterministic(t *testing.T) {
	lower := []float64{-5, -5}
	upper := []float64{5, 5}
	x0 := []float64{4, 4}

	// Run twice with same seed (popSize must be >=20 for mayfly v0.1.0)
	res1, err := NewMayfly(boxedSettings(50, lower, upper), 20, 123, 0).Minimize(x0, sphere, nil)
	if err != nil {
		t.Fatalf("Minimize failed: %v", err)
	}
	res2, err := NewMayfly(boxedSettings(50, lower, upper), 20, 123, 0).Minimize(x0, sphere, nil)
	if err != nil {
		t.Fatalf("Minimize failed: %v", err)
	}

	if res1.Value != res2.Value {
		t.Errorf("Non-deterministic: cost1=%f, cost2=%f", res1.Value, res2.Value)
	}
}

func TestMayflyAdapterNeverWorseThanStart(t *testing.T) {
	s := DefaultSettings()
	s.IterMax = 5
	x0 := []float64{0, 0}

	res, err := NewMayfly(s, 20, 7, 1).Minimize(x0, sphere, nil)
	if err != nil {
		t.Fatalf("Minimize failed: %v", err)
	}
	if res.Value > 0 {
		t.Errorf("Expected the optimal start to be kept, got %f", res.Value)
	}
}

func TestMayflyAdapterRejectsBadInput(t *testing.T) {
	s := DefaultSettings()

	if _, err := NewMayfly(s, 0, 1, 0).Minimize([]float64{1}, sphere, nil); !errors.Is(err, ErrInvalidSettings) {
		t.Errorf("Expected ErrInvalidSettings for empty population, got %v", err)
	}
	if _, err := NewMayfly(s, 20, 1, 0).Minimize([]float64{1}, nil, nil); !errors.Is(err, ErrInvalidSettings) {
		t.Errorf("Expected ErrInvalidSettings for nil objective, got %v", err)
	}

	res, err := NewMayfly(s, 20, 1, 0).Minimize([]float64{math.NaN()}, sphere, nil)
	if !errors.Is(err, ErrNonFiniteInput) {
		t.Errorf("Expected ErrNonFiniteInput, got %v", err)
	}
	if res == nil || res.Status != InvalidInput {
		t.Errorf("Expected InvalidInput result, got %+v", res)
	}
}

func TestMayflyWindow(t *testing.T) {
	s := boxedSettings(1, []float64{0, math.Inf(-1), 50}, []float64{1, 2, math.Inf(1)})
	m := NewMayfly(s, 20, 1, 3).(*MayflyAdapter)

	lo, hi := m.window([]float64{0.5, 0, 0})
	want := [][2]float64{{0, 1}, {-3, 2}, {50, 56}}
	for i, w := range want {
		if lo[i] != w[0] || hi[i] != w[1] {
			t.Errorf("Coordinate %d: window [%g, %g], expected [%g, %g]", i, lo[i], hi[i], w[0], w[1])
		}
	}
}
