package builtin

import (
	"context"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/askiada/dgflow/pkg/quantity"
	"github.com/askiada/dgflow/pkg/transform"
)

type impedanceOptions struct {
	Threshold float64 `option:"threshold"`
	Output    string  `option:"output"`
}

// LowestRealImpedance finds the lowest Re(Z) at which the trace crosses the
// real axis, interpolating between the two points around the first sign
// change of -Im(Z). Without a crossing, Re(Z) at the smallest |Im(Z)| is
// returned.
func LowestRealImpedance() transform.Transform {
	return &transform.Func{
		Ref: "impedance.lowest_real_impedance",
		Params: []transform.Parameter{
			{Name: "real", Kind: transform.Series, Unit: "Ω"},
			{Name: "imag", Kind: transform.Series, Unit: "Ω"},
		},
		Outs: []transform.Output{{Name: "output", Keep: true}},
		Fn:   lowestRealImpedance,
	}
}

func lowestRealImpedance(_ context.Context, args transform.Args) ([]transform.Result, error) {
	opts := impedanceOptions{Output: "min Re(Z)"}
	if err := args.Decode(&opts); err != nil {
		return nil, err
	}
	re, err := value(args, "real")
	if err != nil {
		return nil, err
	}
	im, err := value(args, "imag")
	if err != nil {
		return nil, err
	}
	if im, err = im.To(args.Registry, re.Unit); err != nil {
		return nil, err
	}
	if re.Len() != im.Len() {
		return nil, transform.ErrRowMismatch
	}

	idx := make([]int, 0, re.Len())
	for i := range re.Mag {
		if !math.IsNaN(re.Mag[i]) && !math.IsNaN(im.Mag[i]) {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool { return re.Mag[idx[a]] < re.Mag[idx[b]] })

	result := func(v, s float64, exact bool) []transform.Result {
		q := quantity.ScalarErr(v, s, re.Unit)
		if exact {
			q = quantity.Scalar(v, re.Unit)
		}

		return []transform.Result{{Output: "output", Name: opts.Output, Value: q}}
	}
	exact := !re.HasUncertainty()
	if len(idx) == 0 {
		return result(math.NaN(), math.NaN(), exact), nil
	}

	first := im.Mag[idx[0]]
	crossing := -1
	for k, i := range idx {
		if (first > 0 && im.Mag[i] < opts.Threshold) || (first <= 0 && im.Mag[i] > opts.Threshold) {
			crossing = k

			break
		}
	}

	switch crossing {
	case -1:
		logger(args).Warn("no real impedance found, using the point with the smallest imaginary part",
			zap.String("output", opts.Output))
		best := idx[0]
		for _, i := range idx {
			if math.Abs(im.Mag[i]) < math.Abs(im.Mag[best]) {
				best = i
			}
		}

		return result(re.Mag[best], re.Sigma(best), exact), nil
	case 0:
		return result(re.Mag[idx[0]], re.Sigma(idx[0]), exact), nil
	}

	i0, i1 := idx[crossing-1], idx[crossing]
	w := -im.Mag[i0] / (im.Mag[i1] - im.Mag[i0])
	v := re.Mag[i0] + w*(re.Mag[i1]-re.Mag[i0])
	s := math.Hypot((1-w)*re.Sigma(i0), w*re.Sigma(i1))

	return result(v, s, exact), nil
}
