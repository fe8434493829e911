package opt

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// ClipGradient rescales grad in place so that the measure selected by cfg
// does not exceed cfg.Bound. It is a no-op when clipping is disabled or the
// measure is not finite.
func ClipGradient(grad []float64, cfg ClipSettings) {
	if !cfg.Enabled || len(grad) == 0 {
		return
	}

	norm := clipMeasure(grad, cfg)
	if norm > cfg.Bound && !math.IsInf(norm, 0) {
		floats.Scale(cfg.Bound/norm, grad)
	}
}

func clipMeasure(grad []float64, cfg ClipSettings) float64 {
	switch cfg.Type {
	case ClipMaxNorm:
		return floats.Norm(grad, math.Inf(1))
	case ClipMinNorm:
		least := math.Inf(1)
		for _, g := range grad {
			least = math.Min(least, math.Abs(g))
		}
		return least
	default:
		return floats.Norm(grad, cfg.NormType)
	}
}
