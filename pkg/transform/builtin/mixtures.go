package builtin

import (
	"context"

	"github.com/pkg/errors"

	"github.com/askiada/dgflow/pkg/table"
	"github.com/askiada/dgflow/pkg/transform"
	"github.com/askiada/dgflow/pkg/units"
)

// FlowsToFractions divides each flow of a namespace by the total flow.
// Non-positive totals give NaN. When the total is itself a member of the
// namespace, that member is skipped.
func FlowsToFractions() transform.Transform {
	return &transform.Func{
		Ref: "mixtures.flows_to_fractions",
		Params: []transform.Parameter{
			{Name: "total", Kind: transform.Value, Unit: "m³/s"},
			{Name: "vdot", Kind: transform.Namespace, Unit: "m³/s"},
		},
		Outs: []transform.Output{{Name: "output"}},
		Fn: func(_ context.Context, args transform.Args) ([]transform.Result, error) {
			opts := outputOption{Output: "x"}
			if err := args.Decode(&opts); err != nil {
				return nil, err
			}
			total, err := value(args, "total")
			if err != nil {
				return nil, err
			}
			total = positiveOrNaN(total)
			vdot, _ := args.Namespace("vdot")

			out := make([]transform.Result, 0, len(vdot))
			for _, e := range vdot {
				if args.Inputs["total"] == args.Inputs["vdot"]+table.Sep+e.Key {
					continue
				}
				x, err := e.Value.Div(total)
				if err != nil {
					return nil, errors.Wrapf(err, "key %q", e.Key)
				}
				out = append(out, transform.Result{Output: "output", Name: join(opts.Output, e.Key), Value: x})
			}

			return out, nil
		},
	}
}

type fractionsOptions struct {
	FillNaN bool   `option:"fillnan"`
	Output  string `option:"output"`
}

// FractionsToFlows multiplies each fraction of a namespace by the total
// flow. Missing fractions count as zero unless fillnan is disabled.
func FractionsToFlows() transform.Transform {
	return &transform.Func{
		Ref: "mixtures.fractions_to_flows",
		Params: []transform.Parameter{
			{Name: "total", Kind: transform.Value, Unit: "m³/s"},
			{Name: "x", Kind: transform.Namespace},
		},
		Outs: []transform.Output{{Name: "output", Keep: true}},
		Fn: func(_ context.Context, args transform.Args) ([]transform.Result, error) {
			opts := fractionsOptions{FillNaN: true, Output: "vdot"}
			if err := args.Decode(&opts); err != nil {
				return nil, err
			}
			total, err := value(args, "total")
			if err != nil {
				return nil, err
			}
			total = positiveOrNaN(total)
			fractions, _ := args.Namespace("x")

			out := make([]transform.Result, 0, len(fractions))
			for _, e := range fractions {
				x := e.Value
				if opts.FillNaN {
					x = fillNaN(x)
				}
				if x, err = x.To(args.Registry, units.Dimensionless); err != nil {
					return nil, errors.Wrapf(err, "key %q", e.Key)
				}
				flow, err := total.Mul(x)
				if err != nil {
					return nil, errors.Wrapf(err, "key %q", e.Key)
				}
				flow.Unit = total.Unit
				out = append(out, transform.Result{Output: "output", Name: join(opts.Output, e.Key), Value: flow})
			}

			return out, nil
		},
	}
}
