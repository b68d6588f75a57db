package builtin

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"github.com/askiada/dgflow/pkg/quantity"
	"github.com/askiada/dgflow/pkg/transform"
	"github.com/askiada/dgflow/pkg/units"
)

// FlowToMolar converts a volumetric flow into molar rates, either from
// concentrations c or from mole fractions x of an ideal gas at Tref and pref.
func FlowToMolar() transform.Transform {
	return &transform.Func{
		Ref: "rates.flow_to_molar",
		Params: []transform.Parameter{
			{Name: "flow", Kind: transform.Value, Unit: "m³/s"},
			{Name: "c", Kind: transform.Namespace, Unit: "mol/m³", Optional: true},
			{Name: "x", Kind: transform.Namespace, Optional: true},
			{Name: "Tref", Kind: transform.Value, Unit: "K", Optional: true},
			{Name: "pref", Kind: transform.Value, Unit: "Pa", Optional: true},
		},
		Outs: []transform.Output{{Name: "output", Unit: "mol/s"}},
		Fn:   flowToMolar,
	}
}

func flowToMolar(_ context.Context, args transform.Args) ([]transform.Result, error) {
	opts := outputOption{Output: "rate"}
	if err := args.Decode(&opts); err != nil {
		return nil, err
	}
	reg := args.Registry
	flow, err := value(args, "flow")
	if err != nil {
		return nil, err
	}
	c, hasC := args.Namespace("c")
	x, hasX := args.Namespace("x")
	switch {
	case hasC && hasX:
		return nil, errors.Wrap(ErrExclusive, "c and x")
	case !hasC && !hasX:
		return nil, errors.Wrap(ErrNoInput, "c or x")
	}

	factor := quantity.Scalar(1, units.Dimensionless)
	entries := c
	if hasX {
		entries = x
		tref, ok := args.Value("Tref")
		if !ok {
			tref = quantity.Scalar(273.15, reg.MustParse("K"))
		}
		if tref, err = tref.ToString(reg, "K"); err != nil {
			return nil, errors.Wrap(err, "Tref")
		}
		pref, ok := args.Value("pref")
		if !ok {
			pref = quantity.Scalar(1, reg.MustParse("atm"))
		}
		gas, err := quantity.Scalar(1, reg.MustParse("molar_gas_constant")).Mul(tref)
		if err != nil {
			return nil, err
		}
		if factor, err = pref.Div(gas); err != nil {
			return nil, err
		}
	}

	out := make([]transform.Result, 0, len(entries))
	for _, e := range entries {
		r, err := flow.Mul(factor)
		if err == nil {
			r, err = r.Mul(e.Value)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "key %q", e.Key)
		}
		out = append(out, transform.Result{Output: "output", Name: join(opts.Output, e.Key), Value: r})
	}

	return out, nil
}

// BatchToMolar derives molar rates from concentrations c in a batch of volume
// V. Without t0 the first row has no rate; with t0 every concentration starts
// at zero at t0.
func BatchToMolar() transform.Transform {
	return &transform.Func{
		Ref: "rates.batch_to_molar",
		Params: []transform.Parameter{
			{Name: "time", Kind: transform.Index, Unit: "s"},
			{Name: "c", Kind: transform.Namespace, Unit: "mol/m³"},
			{Name: "V", Kind: transform.Value, Unit: "m³"},
			{Name: "t0", Kind: transform.Value, Unit: "s", Optional: true},
		},
		Outs: []transform.Output{{Name: "output", Unit: "mol/s"}},
		Fn:   batchToMolar,
	}
}

func batchToMolar(_ context.Context, args transform.Args) ([]transform.Result, error) {
	opts := outputOption{Output: "rate"}
	if err := args.Decode(&opts); err != nil {
		return nil, err
	}
	reg := args.Registry
	ts, err := seconds(args)
	if err != nil {
		return nil, err
	}
	c, ok := args.Namespace("c")
	if !ok {
		return nil, errors.Wrap(ErrNoInput, "c")
	}
	vol, err := value(args, "V")
	if err != nil {
		return nil, err
	}
	if vol, err = vol.ToString(reg, "m³"); err != nil {
		return nil, errors.Wrap(err, "V")
	}
	_, hasT0 := args.Value("t0")

	rows := len(ts) - 1
	out := make([]transform.Result, 0, len(c))
	for _, e := range c {
		conc, err := e.Value.ToString(reg, "mol/m³")
		if err != nil {
			return nil, errors.Wrapf(err, "key %q", e.Key)
		}
		mag := make([]float64, rows)
		var unc []float64
		if conc.HasUncertainty() || vol.HasUncertainty() {
			unc = make([]float64, rows)
		}
		var prev, prevS float64
		for i := 0; i < rows; i++ {
			cur, s := pick(conc.Mag, i), sigma(conc, i)
			if i == 0 && !hasT0 {
				mag[i] = math.NaN()
				if unc != nil {
					unc[i] = math.NaN()
				}
				prev, prevS = cur, s

				continue
			}
			dt := ts[i+1] - ts[i]
			v := pick(vol.Mag, i)
			rate := (cur - prev) / dt
			mag[i] = rate * v
			if unc != nil {
				unc[i] = math.Hypot(v*math.Hypot(s, prevS)/math.Abs(dt), rate*sigma(vol, i))
			}
			prev, prevS = cur, s
		}
		out = append(out, transform.Result{
			Output: "output",
			Name:   join(opts.Output, e.Key),
			Value:  quantity.NewUncertain(mag, unc, reg.MustParse("mol/s")),
		})
	}

	return out, nil
}
