package builtin_test

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/dgflow/pkg/quantity"
	"github.com/askiada/dgflow/pkg/transform"
	"github.com/askiada/dgflow/pkg/transform/builtin"
	"github.com/askiada/dgflow/pkg/units"
)

func TestCharge(t *testing.T) {
	t.Parallel()

	reg := units.NewRegistry()
	s := reg.MustParse("s")
	amp := reg.MustParse("A")

	tcs := map[string]struct {
		time  quantity.Quantity
		I     quantity.Quantity
		t0    *quantity.Quantity
		want  []float64
		sigma []float64
		err   error
	}{
		"from first row": {
			time: quantity.New([]float64{0, 10, 20}, s),
			I:    quantity.New([]float64{1, 1, 2}, amp),
			want: []float64{0, 10, 30},
		},
		"with t0": {
			time: quantity.New([]float64{0, 10, 20}, s),
			I:    quantity.New([]float64{1, 1, 2}, amp),
			t0:   ptr(quantity.Scalar(-10, s)),
			want: []float64{10, 20, 40},
		},
		"milliamps over minutes": {
			time: quantity.New([]float64{0, 1, 2}, reg.MustParse("min")),
			I:    quantity.Scalar(500, reg.MustParse("mA")),
			want: []float64{0, 30, 60},
		},
		"uncertainty accumulates": {
			time:  quantity.New([]float64{0, 10, 20}, s),
			I:     quantity.NewUncertain([]float64{1, 1, 1}, []float64{0.1, 0.1, 0.1}, amp),
			want:  []float64{0, 10, 20},
			sigma: []float64{0, 1, math.Sqrt2},
		},
		"single step": {
			time: quantity.New([]float64{0}, s),
			I:    quantity.New([]float64{1}, amp),
			err:  builtin.ErrSingleStep,
		},
	}

	for name, tc := range tcs {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			values := map[string]quantity.Quantity{"time": tc.time, "I": tc.I}
			if tc.t0 != nil {
				values["t0"] = *tc.t0
			}
			res, err := invoke(t, reg, builtin.Charge(), call{values: values})
			if tc.err != nil {
				assert.True(t, errors.Is(err, tc.err), "%v", err)

				return
			}
			require.NoError(t, err)
			got := byName(t, reg, res, "C")["Q"]
			assert.InDeltaSlice(t, tc.want, got.Mag, 1e-9)
			if tc.sigma != nil {
				assert.InDeltaSlice(t, tc.sigma, got.Err, 1e-9)
			}
		})
	}
}

func TestAverageCurrent(t *testing.T) {
	t.Parallel()

	reg := units.NewRegistry()
	s := reg.MustParse("s")
	coulomb := reg.MustParse("C")

	tcs := map[string]struct {
		Q    quantity.Quantity
		t0   *quantity.Quantity
		want []float64
	}{
		"from first row": {Q: quantity.New([]float64{0, 10, 30}, coulomb), want: []float64{0, 1, 2}},
		"with t0":        {Q: quantity.New([]float64{10, 20, 40}, coulomb), t0: ptr(quantity.Scalar(-10, s)), want: []float64{1, 1, 2}},
	}

	for name, tc := range tcs {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			values := map[string]quantity.Quantity{"time": quantity.New([]float64{0, 10, 20}, s), "Q": tc.Q}
			if tc.t0 != nil {
				values["t0"] = *tc.t0
			}
			res, err := invoke(t, reg, builtin.AverageCurrent(), call{values: values, options: map[string]any{"output": "I"}})
			require.NoError(t, err)
			assert.InDeltaSlice(t, tc.want, byName(t, reg, res, "A")["I"].Mag, 1e-9)
		})
	}
}

// TestChargeRoundTrip integrates a current and differentiates it back.
func TestChargeRoundTrip(t *testing.T) {
	t.Parallel()

	reg := units.NewRegistry()
	time := quantity.New([]float64{0, 5, 15, 30}, reg.MustParse("s"))
	current := quantity.New([]float64{0, 2, 4, 1}, reg.MustParse("A"))

	res, err := invoke(t, reg, builtin.Charge(), call{values: map[string]quantity.Quantity{"time": time, "I": current}})
	require.NoError(t, err)
	q := res[0].Value

	res, err = invoke(t, reg, builtin.AverageCurrent(), call{values: map[string]quantity.Quantity{"time": time, "Q": q}})
	require.NoError(t, err)
	assert.InDeltaSlice(t, current.Mag, res[0].Value.Mag, 1e-9)
}

func TestNernst(t *testing.T) {
	t.Parallel()

	reg := units.NewRegistry()
	volt := reg.MustParse("V")
	none := units.Dimensionless
	thermal := 8.314462618 / 96485.33212 * 298.15

	tcs := map[string]struct {
		values map[string]quantity.Quantity
		want   []float64
		sigma  []float64
		err    error
	}{
		"measured only": {
			values: map[string]quantity.Quantity{"Ewe": quantity.New([]float64{0.5, -0.5}, volt)},
			want:   []float64{0.5, -0.5},
		},
		"reference electrode": {
			values: map[string]quantity.Quantity{
				"Ewe":  quantity.New([]float64{0.5, -0.5}, volt),
				"Eref": quantity.Scalar(200, reg.MustParse("mV")),
			},
			want: []float64{0.7, -0.3},
		},
		"ohmic drop against the potential": {
			values: map[string]quantity.Quantity{
				"Ewe": quantity.New([]float64{0.5, -0.5, 0}, volt),
				"R":   quantity.Scalar(10, reg.MustParse("Ω")),
				"I":   quantity.New([]float64{-10, 10, 10}, reg.MustParse("mA")),
			},
			want: []float64{0.4, -0.4, 0},
		},
		"resistance without current": {
			values: map[string]quantity.Quantity{
				"Ewe": quantity.Scalar(0.5, volt),
				"R":   quantity.Scalar(10, reg.MustParse("Ω")),
			},
			want: []float64{0.5},
		},
		"pH": {
			values: map[string]quantity.Quantity{
				"Ewe": quantity.Scalar(0, volt),
				"pH":  quantity.Scalar(7, none),
			},
			want: []float64{7 * thermal * math.Ln10},
		},
		"pH at 50 degC": {
			values: map[string]quantity.Quantity{
				"Ewe": quantity.Scalar(0, volt),
				"pH":  quantity.Scalar(1, none),
				"T":   quantity.Scalar(50, reg.MustParse("degC")),
			},
			want: []float64{thermal / 298.15 * 323.15 * math.Ln10},
		},
		"reaction quotient": {
			values: map[string]quantity.Quantity{
				"Ewe": quantity.Scalar(1, volt),
				"n":   quantity.Scalar(2, none),
				"Q":   quantity.Scalar(10, none),
			},
			want: []float64{1 - thermal/2*math.Ln10},
		},
		"uncertainty adds in quadrature": {
			values: map[string]quantity.Quantity{
				"Ewe":  quantity.ScalarErr(0.5, 0.03, volt),
				"Eref": quantity.ScalarErr(0.2, 0.04, volt),
			},
			want:  []float64{0.7},
			sigma: []float64{0.05},
		},
		"pH with quotient": {
			values: map[string]quantity.Quantity{
				"Ewe": quantity.Scalar(0, volt),
				"pH":  quantity.Scalar(7, none),
				"n":   quantity.Scalar(1, none),
				"Q":   quantity.Scalar(1, none),
			},
			err: builtin.ErrExclusive,
		},
		"n without Q": {
			values: map[string]quantity.Quantity{
				"Ewe": quantity.Scalar(0, volt),
				"n":   quantity.Scalar(1, none),
			},
			err: builtin.ErrNoInput,
		},
		"missing potential": {
			values: map[string]quantity.Quantity{"Eref": quantity.Scalar(0.2, volt)},
			err:    transform.ErrMissingParameter,
		},
	}

	for name, tc := range tcs {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			res, err := invoke(t, reg, builtin.Nernst(), call{values: tc.values})
			if tc.err != nil {
				assert.True(t, errors.Is(err, tc.err), "%v", err)

				return
			}
			require.NoError(t, err)
			got := byName(t, reg, res, "V")["Eapp"]
			assert.InDeltaSlice(t, tc.want, got.Mag, 1e-9)
			if tc.sigma != nil {
				assert.InDeltaSlice(t, tc.sigma, got.Err, 1e-9)
			}
		})
	}
}
