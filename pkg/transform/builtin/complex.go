package builtin

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"github.com/askiada/dgflow/pkg/quantity"
	"github.com/askiada/dgflow/pkg/transform"
	"github.com/askiada/dgflow/pkg/units"
)

// ToRectangular converts a magnitude and an argument into x and y.
func ToRectangular() transform.Transform {
	return &transform.Func{
		Ref: "complex.to_rectangular",
		Params: []transform.Parameter{
			{Name: "mag", Kind: transform.Value},
			{Name: "arg", Kind: transform.Value, Unit: "rad"},
		},
		Outs: []transform.Output{{Name: "x", Keep: true}, {Name: "y", Keep: true}},
		Fn: func(_ context.Context, args transform.Args) ([]transform.Result, error) {
			opts := outputOption{}
			if err := args.Decode(&opts); err != nil {
				return nil, err
			}
			mag, err := value(args, "mag")
			if err != nil {
				return nil, err
			}
			arg, err := value(args, "arg")
			if err != nil {
				return nil, err
			}
			if arg, err = arg.To(args.Registry, units.Dimensionless); err != nil {
				return nil, err
			}
			cos := arg.Apply(units.Dimensionless, math.Cos, func(v float64) float64 { return -math.Sin(v) })
			sin := arg.Apply(units.Dimensionless, math.Sin, math.Cos)
			x, err := mag.Mul(cos)
			if err != nil {
				return nil, err
			}
			y, err := mag.Mul(sin)
			if err != nil {
				return nil, err
			}

			return []transform.Result{
				{Output: "x", Name: join(opts.Output, "x"), Value: x},
				{Output: "y", Name: join(opts.Output, "y"), Value: y},
			}, nil
		},
	}
}

// ToPolar converts x and y into a dimensionless magnitude and an argument
// in radians.
func ToPolar() transform.Transform {
	return &transform.Func{
		Ref: "complex.to_polar",
		Params: []transform.Parameter{
			{Name: "x", Kind: transform.Value},
			{Name: "y", Kind: transform.Value},
		},
		Outs: []transform.Output{{Name: "mag", Keep: true}, {Name: "arg", Unit: "rad"}},
		Fn: func(_ context.Context, args transform.Args) ([]transform.Result, error) {
			opts := outputOption{}
			if err := args.Decode(&opts); err != nil {
				return nil, err
			}
			x, err := value(args, "x")
			if err != nil {
				return nil, err
			}
			y, err := value(args, "y")
			if err != nil {
				return nil, err
			}
			// magnitudes are taken as plain numbers
			x.Unit, y.Unit = units.Dimensionless, units.Dimensionless

			mag, err := binaryFn(x, y, func(a, b float64) (float64, float64, float64) {
				r := math.Hypot(a, b)
				if r == 0 {
					return 0, 0, 0
				}

				return r, a / r, b / r
			})
			if err != nil {
				return nil, err
			}
			arg, err := binaryFn(x, y, func(a, b float64) (float64, float64, float64) {
				d := a*a + b*b
				if d == 0 {
					return math.Atan2(b, a), 0, 0
				}

				return math.Atan2(b, a), -b / d, a / d
			})
			if err != nil {
				return nil, err
			}
			arg.Unit = units.Dimensionless

			return []transform.Result{
				{Output: "mag", Name: join(opts.Output, "mag"), Value: mag},
				{Output: "arg", Name: join(opts.Output, "arg"), Value: arg},
			}, nil
		},
	}
}

// binaryFn evaluates fn elementwise over two dimensionless quantities,
// propagating uncertainty through the returned partial derivatives.
func binaryFn(a, b quantity.Quantity, fn func(x, y float64) (v, dx, dy float64)) (quantity.Quantity, error) {
	n := a.Len()
	switch {
	case b.Len() == n:
	case n == 1:
		n = b.Len()
	case b.Len() != 1:
		return quantity.Quantity{}, errors.Wrapf(quantity.ErrShapeMismatch, "%d vs %d", a.Len(), b.Len())
	}
	out := quantity.Quantity{Mag: make([]float64, n), Unit: units.Dimensionless, Scalar: a.Scalar && b.Scalar}
	if a.HasUncertainty() || b.HasUncertainty() {
		out.Err = make([]float64, n)
	}
	for i := range out.Mag {
		v, dx, dy := fn(pick(a.Mag, i), pick(b.Mag, i))
		out.Mag[i] = v
		if out.Err != nil {
			out.Err[i] = math.Hypot(dx*sigma(a, i), dy*sigma(b, i))
		}
	}

	return out, nil
}

func sigma(q quantity.Quantity, i int) float64 {
	if q.Err == nil {
		return 0
	}

	return pick(q.Err, i)
}
