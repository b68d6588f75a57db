// Package quantity implements unit values: magnitudes tagged with a physical
// unit and an optional symmetric uncertainty.
//
// Uncertainty is a companion slice that is nil for exact values. Every
// arithmetic operation handles both cases and propagates uncertainty to first
// order assuming uncorrelated operands.
package quantity

import (
	"math"

	"github.com/pkg/errors"

	"github.com/askiada/dgflow/pkg/units"
)

var ErrShapeMismatch = errors.New("operand lengths cannot be broadcast")

// Quantity is a unit value. Scalar marks single values, as opposed to arrays
// which may happen to hold one element.
type Quantity struct {
	Mag    []float64
	Err    []float64
	Unit   units.Unit
	Scalar bool
}

// New returns an exact array quantity.
func New(mag []float64, unit units.Unit) Quantity {
	return Quantity{Mag: mag, Unit: unit}
}

// NewUncertain returns an array quantity with uncertainties. A nil err yields
// an exact quantity.
func NewUncertain(mag, err []float64, unit units.Unit) Quantity {
	return Quantity{Mag: mag, Err: err, Unit: unit}
}

// Scalar returns an exact scalar quantity.
func Scalar(v float64, unit units.Unit) Quantity {
	return Quantity{Mag: []float64{v}, Unit: unit, Scalar: true}
}

// ScalarErr returns a scalar quantity with uncertainty.
func ScalarErr(v, s float64, unit units.Unit) Quantity {
	return Quantity{Mag: []float64{v}, Err: []float64{s}, Unit: unit, Scalar: true}
}

// Len returns the number of elements.
func (q Quantity) Len() int {
	return len(q.Mag)
}

// HasUncertainty reports whether an uncertainty is attached.
func (q Quantity) HasUncertainty() bool {
	return q.Err != nil
}

// Sigma returns the uncertainty of element i, zero for exact values.
func (q Quantity) Sigma(i int) float64 {
	if q.Err == nil {
		return 0
	}

	return q.Err[i]
}

// At returns element i as a scalar quantity.
func (q Quantity) At(i int) Quantity {
	out := Quantity{Mag: []float64{q.Mag[i]}, Unit: q.Unit, Scalar: true}
	if q.Err != nil {
		out.Err = []float64{q.Err[i]}
	}

	return out
}

// Value returns the first magnitude; meant for scalars.
func (q Quantity) Value() float64 {
	if len(q.Mag) == 0 {
		return math.NaN()
	}

	return q.Mag[0]
}

// Clone returns a deep copy.
func (q Quantity) Clone() Quantity {
	out := q
	out.Mag = append([]float64(nil), q.Mag...)
	if q.Err != nil {
		out.Err = append([]float64(nil), q.Err...)
	}

	return out
}

// StripUncertainty returns the nominal values only.
func (q Quantity) StripUncertainty() Quantity {
	out := q.Clone()
	out.Err = nil

	return out
}

// To converts q into unit.
func (q Quantity) To(reg *units.Registry, unit units.Unit) (Quantity, error) {
	if reg == nil {
		return Quantity{}, units.ErrRegistryRequired
	}
	mag, unc, err := reg.Convert(q.Mag, q.Err, q.Unit, unit)
	if err != nil {
		return Quantity{}, err
	}

	return Quantity{Mag: mag, Err: unc, Unit: unit, Scalar: q.Scalar}, nil
}

// ToString converts q into the unit expression expr.
func (q Quantity) ToString(reg *units.Registry, expr string) (Quantity, error) {
	if reg == nil {
		return Quantity{}, units.ErrRegistryRequired
	}
	u, err := reg.Parse(expr)
	if err != nil {
		return Quantity{}, err
	}

	return q.To(reg, u)
}

// Reduced converts q into the coherent SI unit of its dimension. Dimensionless
// quantities keep scale 1 and lose their symbol.
func (q Quantity) Reduced(reg *units.Registry) (Quantity, error) {
	return q.To(reg, q.Unit.SI())
}

func broadcastLen(a, b Quantity) (int, error) {
	switch {
	case a.Len() == b.Len():
		return a.Len(), nil
	case a.Len() == 1:
		return b.Len(), nil
	case b.Len() == 1:
		return a.Len(), nil
	default:
		return 0, errors.Wrapf(ErrShapeMismatch, "%d vs %d", a.Len(), b.Len())
	}
}

func pick(s []float64, i int) float64 {
	if len(s) == 1 {
		return s[0]
	}

	return s[i]
}

func sigmaAt(q Quantity, i int) float64 {
	if q.Err == nil {
		return 0
	}

	return pick(q.Err, i)
}

// binary applies fn elementwise; fn returns the value and the partial
// derivatives with respect to both operands.
func binary(a, b Quantity, unit units.Unit, fn func(x, y float64) (v, dx, dy float64)) (Quantity, error) {
	n, err := broadcastLen(a, b)
	if err != nil {
		return Quantity{}, err
	}
	out := Quantity{Mag: make([]float64, n), Unit: unit, Scalar: a.Scalar && b.Scalar}
	uncertain := a.HasUncertainty() || b.HasUncertainty()
	if uncertain {
		out.Err = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		x, y := pick(a.Mag, i), pick(b.Mag, i)
		v, dx, dy := fn(x, y)
		out.Mag[i] = v
		if uncertain {
			out.Err[i] = math.Hypot(dx*sigmaAt(a, i), dy*sigmaAt(b, i))
		}
	}

	return out, nil
}

// Add returns a+b in the unit of a.
func (q Quantity) Add(reg *units.Registry, o Quantity) (Quantity, error) {
	conv, err := o.To(reg, q.Unit)
	if err != nil {
		return Quantity{}, errors.Wrap(err, "add")
	}

	return binary(q, conv, q.Unit, func(x, y float64) (float64, float64, float64) {
		return x + y, 1, 1
	})
}

// Sub returns a-b in the unit of a.
func (q Quantity) Sub(reg *units.Registry, o Quantity) (Quantity, error) {
	conv, err := o.To(reg, q.Unit)
	if err != nil {
		return Quantity{}, errors.Wrap(err, "subtract")
	}

	return binary(q, conv, q.Unit, func(x, y float64) (float64, float64, float64) {
		return x - y, 1, -1
	})
}

// Mul returns a·b with the product unit.
func (q Quantity) Mul(o Quantity) (Quantity, error) {
	return binary(q, o, q.Unit.Mul(o.Unit), func(x, y float64) (float64, float64, float64) {
		return x * y, y, x
	})
}

// Div returns a/b with the quotient unit.
func (q Quantity) Div(o Quantity) (Quantity, error) {
	return binary(q, o, q.Unit.Div(o.Unit), func(x, y float64) (float64, float64, float64) {
		return x / y, 1 / y, -x / (y * y)
	})
}

// Scale multiplies by an exact dimensionless factor.
func (q Quantity) Scale(k float64) Quantity {
	out := q.Clone()
	for i := range out.Mag {
		out.Mag[i] *= k
	}
	for i := range out.Err {
		out.Err[i] = math.Abs(out.Err[i] * k)
	}

	return out
}

// Apply maps an elementwise function with derivative deriv, assigning unit
// to the result.
func (q Quantity) Apply(unit units.Unit, fn, deriv func(float64) float64) Quantity {
	out := Quantity{Mag: make([]float64, q.Len()), Unit: unit, Scalar: q.Scalar}
	if q.Err != nil {
		out.Err = make([]float64, q.Len())
	}
	for i, x := range q.Mag {
		out.Mag[i] = fn(x)
		if q.Err != nil {
			out.Err[i] = math.Abs(deriv(x) * q.Err[i])
		}
	}

	return out
}

// Broadcast repeats a scalar n times; arrays are returned unchanged.
func (q Quantity) Broadcast(n int) Quantity {
	if q.Len() != 1 || n == 1 {
		return q
	}
	out := Quantity{Mag: make([]float64, n), Unit: q.Unit}
	if q.Err != nil {
		out.Err = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		out.Mag[i] = q.Mag[0]
		if q.Err != nil {
			out.Err[i] = q.Err[0]
		}
	}

	return out
}
