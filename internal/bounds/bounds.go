package bounds

import (
	"fmt"
	"math"
)

// Kind classifies which sides of a coordinate are bounded
type Kind int

const (
	None  Kind = iota // unbounded
	Lower             // bounded below only
	Upper             // bounded above only
	Both              // bounded on both sides
)

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case Lower:
		return "lower"
	case Upper:
		return "upper"
	case Both:
		return "both"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Box holds per-coordinate lower/upper bounds and their derived kinds.
// A non-finite bound (typically ±Inf) means that side is open.
type Box struct {
	Lower []float64
	Upper []float64
	Kinds []Kind
}

// NewBox classifies each coordinate of lower/upper.
// Both slices must have the same length.
func NewBox(lower, upper []float64) (*Box, error) {
	if len(lower) != len(upper) {
		return nil, fmt.Errorf("bounds length mismatch: lower has %d, upper has %d", len(lower), len(upper))
	}

	return &Box{
		Lower: append([]float64(nil), lower...),
		Upper: append([]float64(nil), upper...),
		Kinds: Classify(lower, upper),
	}, nil
}

// Classify derives the bound kind of each coordinate from the finiteness of its bounds
func Classify(lower, upper []float64) []Kind {
	kinds := make([]Kind, len(lower))
	for i := range lower {
		lo := isFinite(lower[i])
		hi := isFinite(upper[i])
		switch {
		case lo && hi:
			kinds[i] = Both
		case lo:
			kinds[i] = Lower
		case hi:
			kinds[i] = Upper
		default:
			kinds[i] = None
		}
	}
	return kinds
}

// Dim returns the number of coordinates
func (b *Box) Dim() int {
	return len(b.Kinds)
}

// Validate checks that lower < upper wherever both sides are bounded
func (b *Box) Validate() error {
	for i, k := range b.Kinds {
		if k == Both && !(b.Lower[i] < b.Upper[i]) {
			return fmt.Errorf("coordinate %d: lower bound %g is not below upper bound %g", i, b.Lower[i], b.Upper[i])
		}
	}
	return nil
}

// Contains reports whether x lies strictly inside the box
func (b *Box) Contains(x []float64) bool {
	for i, k := range b.Kinds {
		if !b.inside(i, k, x[i]) {
			return false
		}
	}
	return true
}

func (b *Box) inside(i int, k Kind, v float64) bool {
	if (k == Lower || k == Both) && !(v > b.Lower[i]) {
		return false
	}
	if (k == Upper || k == Both) && !(v < b.Upper[i]) {
		return false
	}
	return true
}

// startMargin is how far inside the box Interior places a coordinate, relative
// to the span for two-sided bounds and to the bound's magnitude (at least 1)
// for one-sided ones.
const startMargin = 1e-3

// Interior moves every coordinate of x that lies on or outside the box to
// startMargin inside the violated bound and returns how many moved. A point
// only one ULP inside sits where the Jacobian vanishes and would never move.
func (b *Box) Interior(x []float64) int {
	moved := 0
	for i, k := range b.Kinds {
		if b.inside(i, k, x[i]) {
			continue
		}
		x[i] = b.inset(i, k, x[i])
		moved++
	}
	return moved
}

func (b *Box) inset(i int, k Kind, v float64) float64 {
	lo, hi := b.Lower[i], b.Upper[i]
	switch k {
	case Lower:
		v = lo + math.Max(1, startMargin*math.Abs(lo))
	case Upper:
		v = hi - math.Max(1, startMargin*math.Abs(hi))
	case Both:
		if v <= lo {
			v = b.between(i, startMargin)
		} else {
			v = b.between(i, 1-startMargin)
		}
	}
	// spans too narrow to hold the margin fall back to the nearest interior value
	return b.interior(i, k, v)
}

func (b *Box) interior(i int, k Kind, v float64) float64 {
	switch k {
	case Lower:
		return math.Max(v, math.Nextafter(b.Lower[i], math.Inf(1)))
	case Upper:
		return math.Min(v, math.Nextafter(b.Upper[i], math.Inf(-1)))
	case Both:
		v = math.Max(v, math.Nextafter(b.Lower[i], math.Inf(1)))
		return math.Min(v, math.Nextafter(b.Upper[i], math.Inf(-1)))
	default:
		return v
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
