package builtin

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"github.com/askiada/dgflow/pkg/quantity"
	"github.com/askiada/dgflow/pkg/transform"
	"github.com/askiada/dgflow/pkg/units"
)

type combineOptions struct {
	FillNaN   bool   `option:"fillnan"`
	Output    string `option:"output"`
	Conflicts string `option:"conflicts"`
	Chemicals bool   `option:"chemicals"`
}

// CombineColumns adds column b to column a, in the unit of a.
func CombineColumns() transform.Transform {
	return &transform.Func{
		Ref: "table.combine_columns",
		Params: []transform.Parameter{
			{Name: "a", Kind: transform.Value},
			{Name: "b", Kind: transform.Value},
		},
		Outs: []transform.Output{{Name: "c", Keep: true}},
		Fn: func(_ context.Context, args transform.Args) ([]transform.Result, error) {
			opts := combineOptions{FillNaN: true, Output: "c"}
			if err := args.Decode(&opts); err != nil {
				return nil, err
			}
			a, err := value(args, "a")
			if err != nil {
				return nil, err
			}
			b, err := value(args, "b")
			if err != nil {
				return nil, err
			}
			if opts.FillNaN {
				a, b = fillNaN(a), fillNaN(b)
			}
			c, err := a.Add(args.Registry, b)
			if err != nil {
				return nil, err
			}

			return []transform.Result{{Output: "c", Name: opts.Output, Value: c}}, nil
		},
	}
}

// CombineNamespaces merges namespace b into namespace a. Keys present in
// both are summed or replaced by b; values of b are converted to the unit of
// the first entry of a.
func CombineNamespaces() transform.Transform {
	return &transform.Func{
		Ref: "table.combine_namespaces",
		Params: []transform.Parameter{
			{Name: "a", Kind: transform.Namespace},
			{Name: "b", Kind: transform.Namespace},
		},
		Outs: []transform.Output{{Name: "c", Keep: true}},
		Fn:   combineNamespaces,
	}
}

func combineNamespaces(_ context.Context, args transform.Args) ([]transform.Result, error) {
	opts := combineOptions{FillNaN: true, Output: "c", Conflicts: "sum"}
	if err := args.Decode(&opts); err != nil {
		return nil, err
	}
	if opts.Chemicals {
		return nil, errors.Wrap(transform.ErrOption, "chemicals: key normalisation is not available")
	}
	if opts.Conflicts != "sum" && opts.Conflicts != "replace" {
		return nil, errors.Wrapf(ErrConflicts, "%q", opts.Conflicts)
	}
	a, _ := args.Namespace("a")
	b, _ := args.Namespace("b")
	if len(a) == 0 {
		return nil, errors.Wrap(ErrEmptyNamespace, "a")
	}
	reg := args.Registry
	unit := a[0].Value.Unit

	var out []transform.Result
	emit := func(key string, q quantity.Quantity) {
		out = append(out, transform.Result{Output: "c", Name: join(opts.Output, key), Value: q})
	}

	for _, e := range a {
		av := e.Value
		bv, both := b.Get(e.Key)
		if !both {
			emit(e.Key, av)

			continue
		}
		if opts.FillNaN {
			av, bv = fillNaN(av), fillNaN(bv)
		}
		var (
			q   quantity.Quantity
			err error
		)
		if opts.Conflicts == "sum" {
			q, err = av.Add(reg, bv)
		} else {
			q, err = bv.To(reg, unit)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "key %q", e.Key)
		}
		emit(e.Key, q)
	}
	for _, e := range b {
		if _, ok := a.Get(e.Key); ok {
			continue
		}
		q, err := e.Value.To(reg, unit)
		if err != nil {
			return nil, errors.Wrapf(err, "key %q", e.Key)
		}
		emit(e.Key, q)
	}

	return out, nil
}

type outputOption struct {
	Output string `option:"output"`
}

// SetUncertainty replaces the uncertainty of a column. With neither abs nor
// rel the column becomes exact; with both the larger one wins per row.
func SetUncertainty() transform.Transform {
	return &transform.Func{
		Ref: "table.set_uncertainty",
		Params: []transform.Parameter{
			{Name: "column", Kind: transform.Value},
			{Name: "abs", Kind: transform.Value, Optional: true},
			{Name: "rel", Kind: transform.Value, Optional: true},
		},
		Outs: []transform.Output{{Name: "output", Keep: true}},
		Fn:   setUncertainty,
	}
}

func setUncertainty(_ context.Context, args transform.Args) ([]transform.Result, error) {
	opts := outputOption{Output: args.Inputs["column"]}
	if err := args.Decode(&opts); err != nil {
		return nil, err
	}
	col, err := value(args, "column")
	if err != nil {
		return nil, err
	}
	absQ, hasAbs := args.Value("abs")
	relQ, hasRel := args.Value("rel")

	out := col.StripUncertainty()
	if hasAbs || hasRel {
		out.Err = make([]float64, out.Len())
	}
	if hasAbs {
		conv, err := absQ.To(args.Registry, col.Unit)
		if err != nil {
			return nil, errors.Wrap(err, "abs")
		}
		for i := range out.Err {
			out.Err[i] = math.Abs(pick(conv.Mag, i))
		}
	}
	if hasRel {
		conv, err := relQ.To(args.Registry, units.Dimensionless)
		if err != nil {
			return nil, errors.Wrap(err, "rel")
		}
		for i := range out.Err {
			out.Err[i] = math.Max(out.Err[i], math.Abs(pick(conv.Mag, i)*out.Mag[i]))
		}
	}

	return []transform.Result{{Output: "output", Name: opts.Output, Value: out}}, nil
}

type linearOptions struct {
	Minimum     string `option:"minimum"`
	Maximum     string `option:"maximum"`
	NonzeroOnly bool   `option:"nonzero_only"`
	Output      string `option:"output"`
}

// ApplyLinear computes slope·x + intercept over a column or every column of
// a namespace, optionally clamped. Zero inputs yield NaN unless nonzero_only
// is disabled.
func ApplyLinear() transform.Transform {
	return &transform.Func{
		Ref: "table.apply_linear",
		Params: []transform.Parameter{
			{Name: "column", Kind: transform.Value, Optional: true},
			{Name: "namespace", Kind: transform.Namespace, Optional: true},
			{Name: "slope", Kind: transform.Value, Optional: true},
			{Name: "intercept", Kind: transform.Value, Optional: true},
		},
		Outs: []transform.Output{{Name: "output", Keep: true}},
		Fn:   applyLinear,
	}
}

func applyLinear(_ context.Context, args transform.Args) ([]transform.Result, error) {
	opts := linearOptions{NonzeroOnly: true, Output: "output"}
	if err := args.Decode(&opts); err != nil {
		return nil, err
	}
	col, hasCol := args.Value("column")
	ns, hasNS := args.Namespace("namespace")
	switch {
	case hasCol && hasNS:
		return nil, errors.Wrap(ErrExclusive, "column and namespace")
	case !hasCol && !hasNS:
		return nil, errors.Wrap(ErrNoInput, "column or namespace")
	}

	line := func(x quantity.Quantity) (quantity.Quantity, error) {
		return linear(args, opts, x)
	}
	if hasCol {
		y, err := line(col)
		if err != nil {
			return nil, err
		}

		return []transform.Result{{Output: "output", Name: opts.Output, Value: y}}, nil
	}

	out := make([]transform.Result, 0, len(ns))
	for _, e := range ns {
		y, err := line(e.Value)
		if err != nil {
			return nil, errors.Wrapf(err, "key %q", e.Key)
		}
		out = append(out, transform.Result{Output: "output", Name: join(opts.Output, e.Key), Value: y})
	}

	return out, nil
}

func linear(args transform.Args, opts linearOptions, x quantity.Quantity) (quantity.Quantity, error) {
	reg := args.Registry
	slope, ok := args.Value("slope")
	if !ok {
		slope = quantity.Scalar(1, units.Dimensionless)
	}

	var (
		y   quantity.Quantity
		err error
	)
	if slope.Unit.IsDimensionless() {
		// keep the unit of x
		var k quantity.Quantity
		if k, err = slope.To(reg, units.Dimensionless); err == nil {
			y, err = x.Mul(k)
		}
	} else {
		if y, err = slope.Mul(x); err == nil {
			y, err = y.Reduced(reg)
		}
	}
	if err != nil {
		return quantity.Quantity{}, err
	}

	if intercept, ok := args.Value("intercept"); ok {
		if intercept.Unit.IsDimensionless() && intercept.Unit.Symbol == "" {
			intercept.Unit = y.Unit
		}
		if y, err = y.Add(reg, intercept); err != nil {
			return quantity.Quantity{}, errors.Wrap(err, "intercept")
		}
	}
	y.Scalar = x.Scalar

	if opts.NonzeroOnly {
		for i := range y.Mag {
			if pick(x.Mag, i) == 0 {
				y.Mag[i] = math.NaN()
			}
		}
	}
	if err := clamp(reg, &y, opts.Minimum, func(v, lim float64) bool { return v < lim }); err != nil {
		return quantity.Quantity{}, errors.Wrap(err, "minimum")
	}
	if err := clamp(reg, &y, opts.Maximum, func(v, lim float64) bool { return v > lim }); err != nil {
		return quantity.Quantity{}, errors.Wrap(err, "maximum")
	}

	return y, nil
}

// clamp pins values beyond the limit to it, as exact values.
func clamp(reg *units.Registry, y *quantity.Quantity, limit string, beyond func(v, lim float64) bool) error {
	if limit == "" {
		return nil
	}
	lq, err := quantity.ParseLiteral(reg, limit, y.Unit)
	if err != nil {
		return err
	}
	lq, err = lq.To(reg, y.Unit)
	if err != nil {
		return err
	}
	lim := lq.Value()
	for i, v := range y.Mag {
		if beyond(v, lim) {
			y.Mag[i] = lim
			if y.Err != nil {
				y.Err[i] = 0
			}
		}
	}

	return nil
}

func pick(s []float64, i int) float64 {
	if len(s) == 1 {
		return s[0]
	}

	return s[i]
}
