package bounds

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mixedBox(t *testing.T) *Box {
	t.Helper()
	inf := math.Inf(1)
	box, err := NewBox(
		[]float64{-inf, 1, -inf, -2},
		[]float64{inf, inf, 3, 5},
	)
	require.NoError(t, err)
	return box
}

func TestClassify(t *testing.T) {
	box := mixedBox(t)
	assert.Equal(t, []Kind{None, Lower, Upper, Both}, box.Kinds)
	assert.Equal(t, 4, box.Dim())
	assert.Equal(t, "both", Both.String())
}

func TestNewBoxLengthMismatch(t *testing.T) {
	_, err := NewBox([]float64{0, 0}, []float64{1})
	require.Error(t, err)
}

func TestValidateRejectsInvertedBounds(t *testing.T) {
	box, err := NewBox([]float64{0, 2}, []float64{1, 2})
	require.NoError(t, err)
	require.Error(t, box.Validate())

	box, err = NewBox([]float64{0, 1}, []float64{1, 2})
	require.NoError(t, err)
	require.NoError(t, box.Validate())
}

func TestRoundTrip(t *testing.T) {
	box := mixedBox(t)

	points := [][]float64{
		{0, 1.5, 2.9, 0},
		{-7.25, 100, -40, -1.999},
		{3e3, 1 + 1e-6, 2.5, 4.9},
	}

	for _, x := range points {
		got := box.InvTransform(box.Transform(x))
		for i := range x {
			assert.InDelta(t, x[i], got[i], 1e-9*math.Max(1, math.Abs(x[i])), "coordinate %d of %v", i, x)
		}
	}
}

func TestInvTransformStaysInside(t *testing.T) {
	box := mixedBox(t)

	for _, z := range []float64{-1e6, -800, -40, 0, 40, 800, 1e6, math.Inf(1), math.Inf(-1)} {
		x := box.InvTransform([]float64{0, z, z, z})
		assert.True(t, x[1] > 1, "lower-only z=%g gave %g", z, x[1])
		assert.True(t, x[2] < 3, "upper-only z=%g gave %g", z, x[2])
		assert.True(t, x[3] > -2 && x[3] < 5, "two-sided z=%g gave %g", z, x[3])
		assert.False(t, math.IsNaN(x[3]))
	}
}

func TestTransformOnBoundIsFinite(t *testing.T) {
	box := mixedBox(t)
	z := box.Transform([]float64{0, 1, 3, -2})
	for i, v := range z {
		assert.False(t, math.IsInf(v, 0) || math.IsNaN(v), "coordinate %d: %g", i, v)
	}
}

func TestJacobianMatchesFiniteDifference(t *testing.T) {
	box := mixedBox(t)
	z := []float64{0.3, -0.7, 1.1, 0.4}
	jac := box.JacobianDiag(z)

	const h = 1e-6
	for i := range z {
		zp := append([]float64(nil), z...)
		zm := append([]float64(nil), z...)
		zp[i] += h
		zm[i] -= h
		fd := (box.InvTransform(zp)[i] - box.InvTransform(zm)[i]) / (2 * h)
		assert.InDelta(t, fd, jac[i], 1e-6, "coordinate %d", i)
	}
}

func TestInterior(t *testing.T) {
	box := mixedBox(t)
	x := []float64{-5, 0, 10, 5}
	moved := box.Interior(x)

	assert.Equal(t, 3, moved)
	assert.Equal(t, -5.0, x[0])
	assert.Equal(t, 2.0, x[1])
	assert.Equal(t, 2.0, x[2])
	assert.InDelta(t, 5-7e-3, x[3], 1e-12)
	assert.True(t, box.Contains(x))

	x = []float64{0, 1.5, 2.5, -3}
	assert.Equal(t, 1, box.Interior(x))
	assert.Equal(t, []float64{0, 1.5, 2.5}, x[:3])
	assert.InDelta(t, -2+7e-3, x[3], 1e-12)
}

func TestInteriorKeepsJacobianUsable(t *testing.T) {
	box, err := NewBox([]float64{0, 0}, []float64{math.Inf(1), 10})
	require.NoError(t, err)

	x := []float64{0, 10}
	box.Interior(x)
	for i, j := range box.JacobianDiag(box.Transform(x)) {
		assert.Greater(t, j, 1e-3, "coordinate %d", i)
	}
}

func TestInteriorNarrowSpan(t *testing.T) {
	lo := 1.0
	hi := math.Nextafter(math.Nextafter(lo, 2), 2)
	box, err := NewBox([]float64{lo}, []float64{hi})
	require.NoError(t, err)

	x := []float64{lo}
	box.Interior(x)
	assert.True(t, box.Contains(x))
}
