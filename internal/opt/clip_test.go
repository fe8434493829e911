package opt

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/floats"
)

func TestClipDisabledIsNoOp(t *testing.T) {
	g := []float64{30, -40}
	ClipGradient(g, ClipSettings{Enabled: false, Bound: 1})
	assert.Equal(t, []float64{30, -40}, g)
}

func TestClipNorm(t *testing.T) {
	g := []float64{30, -40}
	ClipGradient(g, ClipSettings{Enabled: true, Type: ClipNorm, NormType: 2, Bound: 5})
	assert.InDeltaSlice(t, []float64{3, -4}, g, 1e-12)

	small := []float64{0.3, -0.4}
	ClipGradient(small, ClipSettings{Enabled: true, Type: ClipNorm, NormType: 2, Bound: 5})
	assert.Equal(t, []float64{0.3, -0.4}, small)

	l1 := []float64{3, -1}
	ClipGradient(l1, ClipSettings{Enabled: true, Type: ClipNorm, NormType: 1, Bound: 2})
	assert.InDelta(t, 2, floats.Norm(l1, 1), 1e-12)
}

func TestClipMaxNorm(t *testing.T) {
	g := []float64{10, -2, 4}
	ClipGradient(g, ClipSettings{Enabled: true, Type: ClipMaxNorm, Bound: 1})
	assert.InDeltaSlice(t, []float64{1, -0.2, 0.4}, g, 1e-12)
	assert.LessOrEqual(t, floats.Norm(g, math.Inf(1)), 1.0)
}

func TestClipMinNorm(t *testing.T) {
	g := []float64{10, -4}
	ClipGradient(g, ClipSettings{Enabled: true, Type: ClipMinNorm, Bound: 2})
	assert.InDeltaSlice(t, []float64{5, -2}, g, 1e-12)
}

func TestClipSkipsInfiniteNorm(t *testing.T) {
	g := []float64{math.Inf(1), 1}
	ClipGradient(g, ClipSettings{Enabled: true, Type: ClipNorm, NormType: 2, Bound: 1})
	assert.True(t, math.IsInf(g[0], 1))
	assert.Equal(t, 1.0, g[1])
}
