package opt

import (
	"gonum.org/v1/gonum/floats"

	"github.com/cwbudde/boxgd/internal/bounds"
)

// ObjectiveFunc evaluates the objective at x. When grad is non-nil it must
// also be filled with the gradient at x. data is passed through untouched.
type ObjectiveFunc func(x []float64, grad []float64, data any) float64

// boxObjective presents the caller's objective in working-space
// coordinates. With a nil box it delegates directly.
type boxObjective struct {
	fn    ObjectiveFunc
	data  any
	box   *bounds.Box
	evals int
}

func newBoxObjective(fn ObjectiveFunc, data any, box *bounds.Box) *boxObjective {
	return &boxObjective{fn: fn, data: data, box: box}
}

// Eval evaluates the objective at the working-space point z and, when grad
// is non-nil, stores the working-space gradient in it.
func (o *boxObjective) Eval(z, grad []float64) float64 {
	o.evals++
	if o.box == nil {
		return o.fn(z, grad, o.data)
	}

	x := o.box.InvTransform(z)
	if grad == nil {
		return o.fn(x, nil, o.data)
	}

	val := o.fn(x, grad, o.data)
	floats.Mul(grad, o.box.JacobianDiag(z))
	return val
}

// toWorking maps a caller-space point into working space
func (o *boxObjective) toWorking(x []float64) []float64 {
	if o.box == nil {
		return append([]float64(nil), x...)
	}
	return o.box.Transform(x)
}

// toCaller maps a working-space point back to caller space
func (o *boxObjective) toCaller(z []float64) []float64 {
	if o.box == nil {
		return append([]float64(nil), z...)
	}
	return o.box.InvTransform(z)
}
