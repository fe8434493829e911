package testfn

import (
	"math"
	"testing"
)

func numericGradient(fn func(x, grad []float64, data any) float64, x []float64) []float64 {
	const h = 1e-6
	grad := make([]float64, len(x))
	for i := range x {
		xp := append([]float64(nil), x...)
		xm := append([]float64(nil), x...)
		xp[i] += h
		xm[i] -= h
		grad[i] = (fn(xp, nil, nil) - fn(xm, nil, nil)) / (2 * h)
	}
	return grad
}

func TestGradientsMatchFiniteDifferences(t *testing.T) {
	point := []float64{0.7, -0.3}

	for _, name := range Names() {
		p, err := Get(name)
		if err != nil {
			t.Fatalf("Get(%q) failed: %v", name, err)
		}

		grad := make([]float64, p.Dim())
		p.Fn(point, grad, nil)
		want := numericGradient(p.Fn, point)

		for i := range grad {
			if math.Abs(grad[i]-want[i]) > 1e-4*math.Max(1, math.Abs(want[i])) {
				t.Errorf("%s: gradient[%d] = %f, finite difference gives %f", name, i, grad[i], want[i])
			}
		}
	}
}

func TestMinimizerIsStationary(t *testing.T) {
	for _, name := range []string{"sphere", "booth", "rosenbrock", "beale"} {
		p, _ := Get(name)
		grad := make([]float64, p.Dim())
		p.Fn(p.Minimizer, grad, nil)
		for i, g := range grad {
			if math.Abs(g) > 1e-12 {
				t.Errorf("%s: gradient[%d] = %g at minimizer, expected 0", name, i, g)
			}
		}
	}
}

func TestNilGradientIsAccepted(t *testing.T) {
	if v := Sphere([]float64{1, 2}, nil, nil); v != 5 {
		t.Errorf("Expected 5, got %f", v)
	}
	if v := Linear([]float64{1, -1})([]float64{3, 2}, nil, nil); v != 1 {
		t.Errorf("Expected 1, got %f", v)
	}
}

func TestGetReturnsFreshCopy(t *testing.T) {
	p1, _ := Get("sphere")
	p1.Start[0] = 42

	p2, _ := Get("sphere")
	if p2.Start[0] == 42 {
		t.Error("Get should not share starting points between calls")
	}
}

func TestGetUnknown(t *testing.T) {
	if _, err := Get("nope"); err == nil {
		t.Error("Expected error for unknown problem")
	}
}

func TestBoundedProblem(t *testing.T) {
	p, _ := Get("bounded-quadratic")
	if !p.Bounded() {
		t.Fatal("Expected bounded problem")
	}
	if len(p.Lower) != p.Dim() || len(p.Upper) != p.Dim() {
		t.Errorf("Bounds length mismatch: %d/%d for dim %d", len(p.Lower), len(p.Upper), p.Dim())
	}
}

func TestAcceptsDim(t *testing.T) {
	sphere, _ := Get("sphere")
	rosen, _ := Get("rosenbrock")
	booth, _ := Get("booth")

	cases := []struct {
		p    Problem
		n    int
		want bool
	}{
		{sphere, 1, true},
		{sphere, 5, true},
		{rosen, 1, false},
		{rosen, 4, true},
		{booth, 2, true},
		{booth, 3, false},
	}
	for _, c := range cases {
		if got := c.p.AcceptsDim(c.n); got != c.want {
			t.Errorf("%s.AcceptsDim(%d) = %v, expected %v", c.p.Name, c.n, got, c.want)
		}
	}
}
