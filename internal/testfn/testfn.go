// Package testfn provides benchmark objectives with analytic gradients.
package testfn

import (
	"fmt"
	"math"
	"sort"
)

// Problem bundles an objective with a starting point and its known minimizer
type Problem struct {
	Name      string
	Fn        func(x, grad []float64, data any) float64
	Start     []float64
	Minimizer []float64
	// Lower and Upper are nil for unconstrained problems.
	Lower []float64
	Upper []float64
	// MinDim is non-zero for objectives defined in every dimension from
	// MinDim upwards. Start and Minimizer then describe the default only.
	MinDim int
}

// Dim returns the problem dimension
func (p Problem) Dim() int {
	return len(p.Start)
}

// Bounded reports whether the problem carries box constraints
func (p Problem) Bounded() bool {
	return p.Lower != nil
}

// AcceptsDim reports whether Fn can be evaluated in n dimensions
func (p Problem) AcceptsDim(n int) bool {
	if p.MinDim > 0 {
		return n >= p.MinDim
	}
	return n == p.Dim()
}

// Sphere: f(x) = sum(x_i^2), minimum at origin
func Sphere(x, grad []float64, _ any) float64 {
	var sum float64
	for i, v := range x {
		sum += v * v
		if grad != nil {
			grad[i] = 2 * v
		}
	}
	return sum
}

// Booth: f(x) = (x1 + 2 x2 - 7)^2 + (2 x1 + x2 - 5)^2, minimum at (1, 3)
func Booth(x, grad []float64, _ any) float64 {
	a := x[0] + 2*x[1] - 7
	b := 2*x[0] + x[1] - 5
	if grad != nil {
		grad[0] = 2*a + 4*b
		grad[1] = 4*a + 2*b
	}
	return a*a + b*b
}

// Rosenbrock: f(x) = sum(100 (x_{i+1} - x_i^2)^2 + (1 - x_i)^2), minimum at ones
func Rosenbrock(x, grad []float64, _ any) float64 {
	if grad != nil {
		for i := range grad {
			grad[i] = 0
		}
	}
	var sum float64
	for i := 0; i+1 < len(x); i++ {
		a := x[i+1] - x[i]*x[i]
		b := 1 - x[i]
		sum += 100*a*a + b*b
		if grad != nil {
			grad[i] += -400*a*x[i] - 2*b
			grad[i+1] += 200 * a
		}
	}
	return sum
}

// Beale: minimum at (3, 0.5)
func Beale(x, grad []float64, _ any) float64 {
	x1, x2 := x[0], x[1]
	a := 1.5 - x1 + x1*x2
	b := 2.25 - x1 + x1*x2*x2
	c := 2.625 - x1 + x1*x2*x2*x2
	if grad != nil {
		grad[0] = 2*a*(x2-1) + 2*b*(x2*x2-1) + 2*c*(x2*x2*x2-1)
		grad[1] = 2*a*x1 + 4*b*x1*x2 + 6*c*x1*x2*x2
	}
	return a*a + b*b + c*c
}

// Shifted returns the quadratic f(x) = sum((x_i - c_i)^2) centred at c
func Shifted(c []float64) func(x, grad []float64, data any) float64 {
	return func(x, grad []float64, _ any) float64 {
		var sum float64
		for i, v := range x {
			d := v - c[i]
			sum += d * d
			if grad != nil {
				grad[i] = 2 * d
			}
		}
		return sum
	}
}

// Linear returns f(x) = c·x, whose gradient is the constant c
func Linear(c []float64) func(x, grad []float64, data any) float64 {
	return func(x, grad []float64, _ any) float64 {
		var sum float64
		for i, v := range x {
			sum += c[i] * v
			if grad != nil {
				grad[i] = c[i]
			}
		}
		return sum
	}
}

// Scaled returns the ill-conditioned quadratic f(x) = sum(w_i x_i^2)
func Scaled(w []float64) func(x, grad []float64, data any) float64 {
	return func(x, grad []float64, _ any) float64 {
		var sum float64
		for i, v := range x {
			sum += w[i] * v * v
			if grad != nil {
				grad[i] = 2 * w[i] * v
			}
		}
		return sum
	}
}

var registry = map[string]func() Problem{
	"sphere": func() Problem {
		return Problem{Name: "sphere", Fn: Sphere, Start: []float64{1, 1}, Minimizer: []float64{0, 0}, MinDim: 1}
	},
	"booth": func() Problem {
		return Problem{Name: "booth", Fn: Booth, Start: []float64{0, 0}, Minimizer: []float64{1, 3}}
	},
	"rosenbrock": func() Problem {
		return Problem{Name: "rosenbrock", Fn: Rosenbrock, Start: []float64{-1.2, 1}, Minimizer: []float64{1, 1}, MinDim: 2}
	},
	"beale": func() Problem {
		return Problem{Name: "beale", Fn: Beale, Start: []float64{1, 1}, Minimizer: []float64{3, 0.5}}
	},
	// minimizer of the shifted quadratic sits outside the box, so the
	// constrained optimum is on the boundary at (1, 0.5)
	"bounded-quadratic": func() Problem {
		return Problem{
			Name:      "bounded-quadratic",
			Fn:        Shifted([]float64{2, -1}),
			Start:     []float64{0.5, 1},
			Minimizer: []float64{1, 0.5},
			Lower:     []float64{0, 0.5},
			Upper:     []float64{1, math.Inf(1)},
		}
	},
}

// Get returns a fresh copy of the named problem
func Get(name string) (Problem, error) {
	mk, ok := registry[name]
	if !ok {
		return Problem{}, fmt.Errorf("unknown test function %q (available: %v)", name, Names())
	}
	return mk(), nil
}

// Names lists the registered problems in sorted order
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
