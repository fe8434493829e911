package bounds

import "math"

// Transform maps a point from the bounded space into the unconstrained
// working space. Values on or beyond a bound are pulled to the nearest
// interior value first, so the result is always finite.
func (b *Box) Transform(x []float64) []float64 {
	z := make([]float64, len(x))
	for i, k := range b.Kinds {
		v := b.interior(i, k, x[i])
		switch k {
		case Lower:
			z[i] = math.Log(v - b.Lower[i])
		case Upper:
			z[i] = -math.Log(b.Upper[i] - v)
		case Both:
			z[i] = math.Log(v-b.Lower[i]) - math.Log(b.Upper[i]-v)
		default:
			z[i] = v
		}
	}
	return z
}

// InvTransform maps a working-space point back into the bounded space.
// Every real input, including ±Inf, lands strictly inside the box.
func (b *Box) InvTransform(z []float64) []float64 {
	x := make([]float64, len(z))
	for i, k := range b.Kinds {
		var v float64
		switch k {
		case Lower:
			v = math.Min(b.Lower[i]+math.Exp(z[i]), math.MaxFloat64)
		case Upper:
			v = math.Max(b.Upper[i]-math.Exp(-z[i]), -math.MaxFloat64)
		case Both:
			v = b.between(i, sigmoid(z[i]))
		default:
			x[i] = z[i]
			continue
		}
		x[i] = b.interior(i, k, v)
	}
	return x
}

// JacobianDiag returns d InvTransform / dz evaluated at the working-space
// point z. Multiplying a bounded-space gradient by it elementwise gives the
// working-space gradient.
func (b *Box) JacobianDiag(z []float64) []float64 {
	jac := make([]float64, len(z))
	for i, k := range b.Kinds {
		switch k {
		case Lower:
			jac[i] = math.Exp(z[i])
		case Upper:
			jac[i] = math.Exp(-z[i])
		case Both:
			e := math.Exp(-math.Abs(z[i]))
			jac[i] = (b.Upper[i] - b.Lower[i]) * e / ((1 + e) * (1 + e))
		default:
			jac[i] = 1
		}
	}
	return jac
}

// between returns lower + (upper-lower)*s, falling back to a convex
// combination when the span itself overflows.
func (b *Box) between(i int, s float64) float64 {
	lo, hi := b.Lower[i], b.Upper[i]
	span := hi - lo
	if math.IsInf(span, 0) {
		return lo*(1-s) + hi*s
	}
	return lo + span*s
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
