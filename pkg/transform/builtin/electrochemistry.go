package builtin

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"github.com/askiada/dgflow/pkg/quantity"
	"github.com/askiada/dgflow/pkg/transform"
)

// Charge integrates a current over time. Without t0 the first row holds
// zero charge.
func Charge() transform.Transform {
	return &transform.Func{
		Ref: "electrochemistry.charge",
		Params: []transform.Parameter{
			{Name: "time", Kind: transform.Index, Unit: "s"},
			{Name: "I", Kind: transform.Value, Unit: "A"},
			{Name: "t0", Kind: transform.Value, Unit: "s", Optional: true},
		},
		Outs: []transform.Output{{Name: "output", Unit: "C"}},
		Fn:   charge,
	}
}

func charge(_ context.Context, args transform.Args) ([]transform.Result, error) {
	opts := outputOption{Output: "Q"}
	if err := args.Decode(&opts); err != nil {
		return nil, err
	}
	reg := args.Registry
	ts, err := seconds(args)
	if err != nil {
		return nil, err
	}
	current, err := value(args, "I")
	if err != nil {
		return nil, err
	}
	if current, err = current.ToString(reg, "A"); err != nil {
		return nil, err
	}

	n := len(ts) - 1
	mag := make([]float64, n)
	var unc []float64
	if current.HasUncertainty() {
		unc = make([]float64, n)
	}
	var q, v float64
	for i := 0; i < n; i++ {
		dt := ts[i+1] - ts[i]
		q += pick(current.Mag, i) * dt
		mag[i] = q
		if unc != nil {
			s := sigma(current, i) * dt
			v += s * s
			unc[i] = math.Sqrt(v)
		}
	}

	return []transform.Result{{
		Output: "output",
		Name:   opts.Output,
		Value:  quantity.NewUncertain(mag, unc, reg.MustParse("C")),
	}}, nil
}

// AverageCurrent differentiates a charge over time. Without t0 the first row
// holds zero current.
func AverageCurrent() transform.Transform {
	return &transform.Func{
		Ref: "electrochemistry.average_current",
		Params: []transform.Parameter{
			{Name: "time", Kind: transform.Index, Unit: "s"},
			{Name: "Q", Kind: transform.Value, Unit: "C"},
			{Name: "t0", Kind: transform.Value, Unit: "s", Optional: true},
		},
		Outs: []transform.Output{{Name: "output", Unit: "A"}},
		Fn:   averageCurrent,
	}
}

func averageCurrent(_ context.Context, args transform.Args) ([]transform.Result, error) {
	opts := outputOption{Output: "<I>"}
	if err := args.Decode(&opts); err != nil {
		return nil, err
	}
	reg := args.Registry
	ts, err := seconds(args)
	if err != nil {
		return nil, err
	}
	q, err := value(args, "Q")
	if err != nil {
		return nil, err
	}
	if q, err = q.ToString(reg, "C"); err != nil {
		return nil, err
	}
	_, hasT0 := args.Value("t0")

	n := len(ts) - 1
	mag := make([]float64, n)
	var unc []float64
	if q.HasUncertainty() {
		unc = make([]float64, n)
	}
	// without t0 the charge before the first row is the first charge itself
	prevQ, prevS := pick(q.Mag, 0), sigma(q, 0)
	if hasT0 {
		prevQ, prevS = 0, 0
	}
	for i := 0; i < n; i++ {
		dt := ts[i+1] - ts[i]
		cur, s := pick(q.Mag, i), sigma(q, i)
		if i == 0 && !hasT0 {
			mag[i] = 0
		} else {
			mag[i] = (cur - prevQ) / dt
			if unc != nil {
				unc[i] = math.Hypot(s, prevS) / math.Abs(dt)
			}
		}
		prevQ, prevS = cur, s
	}

	return []transform.Result{{
		Output: "output",
		Name:   opts.Output,
		Value:  quantity.NewUncertain(mag, unc, reg.MustParse("A")),
	}}, nil
}

// seconds returns the time coordinate in seconds with the start prepended:
// t0 when bound, the first row otherwise.
func seconds(args transform.Args) ([]float64, error) {
	reg := args.Registry
	tq, err := value(args, "time")
	if err != nil {
		return nil, err
	}
	if tq.Unit.Symbol == "" && tq.Unit.IsDimensionless() {
		tq.Unit = reg.MustParse("s")
	}
	if tq, err = tq.ToString(reg, "s"); err != nil {
		return nil, err
	}
	t0, hasT0 := args.Value("t0")
	if tq.Len() == 1 && !hasT0 {
		return nil, ErrSingleStep
	}
	if tq.Len() == 0 {
		return nil, errors.Wrap(ErrNoInput, "time")
	}

	start := tq.Mag[0]
	if hasT0 {
		if t0, err = t0.ToString(reg, "s"); err != nil {
			return nil, errors.Wrap(err, "t0")
		}
		start = t0.Value()
	}

	return append([]float64{start}, tq.Mag...), nil
}

// Nernst corrects a measured working potential to the applied potential. The
// ohmic drop R|I| always reduces the magnitude of Ewe; the Nernst term comes
// either from pH or from the pair n and Q.
func Nernst() transform.Transform {
	return &transform.Func{
		Ref: "electrochemistry.nernst",
		Params: []transform.Parameter{
			{Name: "Ewe", Kind: transform.Value, Unit: "V"},
			{Name: "R", Kind: transform.Value, Unit: "Ω", Optional: true},
			{Name: "I", Kind: transform.Value, Unit: "A", Optional: true},
			{Name: "Eref", Kind: transform.Value, Unit: "V", Optional: true},
			{Name: "T", Kind: transform.Value, Unit: "K", Optional: true},
			{Name: "n", Kind: transform.Value, Optional: true},
			{Name: "Q", Kind: transform.Value, Optional: true},
			{Name: "pH", Kind: transform.Value, Optional: true},
		},
		Outs: []transform.Output{{Name: "output", Unit: "V"}},
		Fn:   nernst,
	}
}

type nernstInputs struct {
	ewe, r, i, eref, t, n, q, ph quantity.Quantity
	ohmic, quotient, acid        bool
}

func nernstArgs(args transform.Args) (nernstInputs, error) {
	reg := args.Registry
	var in nernstInputs
	var err error
	if in.ewe, err = value(args, "Ewe"); err != nil {
		return in, err
	}
	if in.ewe, err = in.ewe.ToString(reg, "V"); err != nil {
		return in, errors.Wrap(err, "Ewe")
	}
	in.eref = quantity.Scalar(0, reg.MustParse("V"))
	if q, ok := args.Value("Eref"); ok {
		if in.eref, err = q.ToString(reg, "V"); err != nil {
			return in, errors.Wrap(err, "Eref")
		}
	}
	r, hasR := args.Value("R")
	i, hasI := args.Value("I")
	if hasR && hasI {
		in.ohmic = true
		if in.r, err = r.ToString(reg, "Ω"); err != nil {
			return in, errors.Wrap(err, "R")
		}
		if in.i, err = i.ToString(reg, "A"); err != nil {
			return in, errors.Wrap(err, "I")
		}
	}
	in.t = quantity.Scalar(298.15, reg.MustParse("K"))
	if q, ok := args.Value("T"); ok {
		if in.t, err = q.ToString(reg, "K"); err != nil {
			return in, errors.Wrap(err, "T")
		}
	}
	n, hasN := args.Value("n")
	q, hasQ := args.Value("Q")
	ph, hasPH := args.Value("pH")
	switch {
	case hasPH && (hasN || hasQ):
		return in, errors.Wrap(ErrExclusive, "pH and n, Q")
	case hasN != hasQ:
		return in, errors.Wrap(ErrNoInput, "n and Q are bound together")
	}
	for name, d := range map[string]*quantity.Quantity{"n": &n, "Q": &q, "pH": &ph} {
		if d.Mag == nil {
			continue
		}
		if *d, err = d.ToString(reg, ""); err != nil {
			return in, errors.Wrap(err, name)
		}
	}
	in.n, in.q, in.ph = n, q, ph
	in.quotient, in.acid = hasN, hasPH

	return in, nil
}

func nernst(_ context.Context, args transform.Args) ([]transform.Result, error) {
	opts := outputOption{Output: "Eapp"}
	if err := args.Decode(&opts); err != nil {
		return nil, err
	}
	reg := args.Registry
	in, err := nernstArgs(args)
	if err != nil {
		return nil, err
	}
	k, err := quantity.Scalar(1, reg.MustParse("molar_gas_constant")).Div(quantity.Scalar(1, reg.MustParse("faraday_constant")))
	if err == nil {
		k, err = k.ToString(reg, "V/K")
	}
	if err != nil {
		return nil, err
	}
	thermal := k.Value()

	all := []quantity.Quantity{in.ewe, in.eref, in.t}
	if in.ohmic {
		all = append(all, in.r, in.i)
	}
	if in.quotient {
		all = append(all, in.n, in.q)
	}
	if in.acid {
		all = append(all, in.ph)
	}
	rows, uncertain := 1, false
	for _, q := range all {
		if q.Len() > rows {
			rows = q.Len()
		}
		uncertain = uncertain || q.HasUncertainty()
	}

	mag := make([]float64, rows)
	var unc []float64
	if uncertain {
		unc = make([]float64, rows)
	}
	for j := 0; j < rows; j++ {
		ewe := pick(in.ewe.Mag, j)
		e := ewe + pick(in.eref.Mag, j)
		v := sq(sigma(in.ewe, j)) + sq(sigma(in.eref, j))
		if in.ohmic {
			r, i := pick(in.r.Mag, j), pick(in.i.Mag, j)
			sign := 0.0
			switch {
			case ewe > 0:
				sign = 1
			case ewe < 0:
				sign = -1
			}
			e -= sign * r * math.Abs(i)
			v += sq(sign*r*sigma(in.i, j)) + sq(sign*i*sigma(in.r, j))
		}
		temp := pick(in.t.Mag, j)
		switch {
		case in.acid:
			ph := pick(in.ph.Mag, j)
			e += ph * thermal * temp * math.Ln10
			v += sq(thermal*temp*math.Ln10*sigma(in.ph, j)) + sq(ph*thermal*math.Ln10*sigma(in.t, j))
		case in.quotient:
			n, q := pick(in.n.Mag, j), pick(in.q.Mag, j)
			e -= thermal * temp / n * math.Log(q)
			v += sq(thermal*temp/n*sigma(in.q, j)/q) + sq(thermal/n*math.Log(q)*sigma(in.t, j))
		}
		mag[j] = e
		if unc != nil {
			unc[j] = math.Sqrt(v)
		}
	}

	return []transform.Result{{
		Output: "output",
		Name:   opts.Output,
		Value:  quantity.NewUncertain(mag, unc, reg.MustParse("V")),
	}}, nil
}

func sq(v float64) float64 {
	return v * v
}
