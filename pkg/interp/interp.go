// Package interp aligns series onto a destination coordinate.
//
// Interpolation is linear in the native coordinate and never extrapolates:
// destination points outside the covered range are NaN. Uncertainties go
// through the same weights, combined in quadrature.
package interp

import (
	"fmt"
	"math"
	"sort"

	"github.com/pkg/errors"
)

var (
	ErrEmptySource    = errors.New("source coordinate is empty")
	ErrConflict       = errors.New("source coordinate repeats with a different value")
	ErrLengthMismatch = errors.New("coordinate and value lengths differ")
)

// AlignmentError reports a series that cannot be aligned.
type AlignmentError struct {
	Series string
	Err    error
}

func (e *AlignmentError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Series == "" {
		return fmt.Sprintf("align: %v", e.Err)
	}

	return fmt.Sprintf("align %q: %v", e.Series, e.Err)
}

func (e *AlignmentError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Err
}

type point struct {
	x, y, s float64
}

// mask drops points whose coordinate, value or uncertainty is NaN and sorts the
// rest by coordinate. Sources concatenated from several steps may arrive out of
// order or interleaved. A repeated coordinate collapses onto its first point
// when the values agree.
func mask(x, y, sigma []float64) ([]point, error) {
	if len(x) != len(y) || (sigma != nil && len(sigma) != len(x)) {
		return nil, errors.Wrapf(ErrLengthMismatch, "%d coordinates, %d values", len(x), len(y))
	}
	pts := make([]point, 0, len(x))
	for i := range x {
		p := point{x: x[i], y: y[i]}
		if sigma != nil {
			p.s = sigma[i]
		}
		if math.IsNaN(p.x) || math.IsNaN(p.y) || math.IsNaN(p.s) {
			continue
		}
		pts = append(pts, p)
	}
	if len(pts) == 0 {
		return nil, ErrEmptySource
	}
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].x < pts[j].x })
	out := pts[:1]
	for _, p := range pts[1:] {
		last := out[len(out)-1]
		if p.x != last.x {
			out = append(out, p)

			continue
		}
		if p.y != last.y || p.s != last.s {
			return nil, errors.Wrapf(ErrConflict, "at %g: %g and %g", p.x, last.y, p.y)
		}
	}

	return out, nil
}

// Linear interpolates (x, y ± sigma) onto dst. sigma may be nil, in which
// case the returned uncertainty is nil too.
func Linear(x, y, sigma, dst []float64) ([]float64, []float64, error) {
	pts, err := mask(x, y, sigma)
	if err != nil {
		return nil, nil, &AlignmentError{Err: err}
	}
	out := make([]float64, len(dst))
	var outSigma []float64
	if sigma != nil {
		outSigma = make([]float64, len(dst))
	}
	xs := make([]float64, len(pts))
	for i, p := range pts {
		xs[i] = p.x
	}
	lo, hi := xs[0], xs[len(xs)-1]

	for i, d := range dst {
		v, s := math.NaN(), math.NaN()
		switch {
		case math.IsNaN(d), d < lo, d > hi:
		default:
			j := sort.SearchFloat64s(xs, d)
			if xs[j] == d {
				v, s = pts[j].y, pts[j].s
			} else {
				p0, p1 := pts[j-1], pts[j]
				w1 := (d - p0.x) / (p1.x - p0.x)
				w0 := 1 - w1
				v = w0*p0.y + w1*p1.y
				s = math.Hypot(w0*p0.s, w1*p1.s)
			}
		}
		out[i] = v
		if outSigma != nil {
			outSigma[i] = s
		}
	}

	return out, outSigma, nil
}

// Exact maps every destination coordinate to the position of the first equal
// source coordinate, or -1. It aligns values that cannot be interpolated,
// such as array cells.
func Exact(x, dst []float64) []int {
	first := make(map[float64]int, len(x))
	for i := len(x) - 1; i >= 0; i-- {
		if !math.IsNaN(x[i]) {
			first[x[i]] = i
		}
	}
	out := make([]int, len(dst))
	for i, d := range dst {
		j, ok := first[d]
		if !ok {
			j = -1
		}
		out[i] = j
	}

	return out
}
