package quantity_test

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/dgflow/pkg/quantity"
	"github.com/askiada/dgflow/pkg/units"
)

func TestAddConvertsSecondOperand(t *testing.T) {
	t.Parallel()

	reg := units.NewRegistry()
	a := quantity.NewUncertain([]float64{1, 2}, []float64{0.4, 0.4}, reg.MustParse("l/h"))
	b := quantity.NewUncertain([]float64{10, 20}, []float64{5, 5}, reg.MustParse("ml/min"))

	sum, err := a.Add(reg, b)
	require.NoError(t, err)
	assert.Equal(t, "l/h", sum.Unit.Symbol)
	assert.InDeltaSlice(t, []float64{1.6, 3.2}, sum.Mag, 1e-12)
	assert.InDeltaSlice(t, []float64{0.5, 0.5}, sum.Err, 1e-12)
}

func TestAddIncommensurable(t *testing.T) {
	t.Parallel()

	reg := units.NewRegistry()
	a := quantity.Scalar(1, reg.MustParse("mol/s"))
	b := quantity.Scalar(1, reg.MustParse("A"))

	_, err := a.Add(reg, b)
	require.Error(t, err)
	assert.True(t, errors.Is(err, units.ErrIncommensurable))

	var uerr *units.UnitError
	assert.True(t, errors.As(err, &uerr))
}

func TestMulDivPropagation(t *testing.T) {
	t.Parallel()

	reg := units.NewRegistry()
	v := quantity.ScalarErr(2, 0.1, reg.MustParse("V"))
	i := quantity.ScalarErr(4, 0.2, reg.MustParse("A"))

	p, err := v.Mul(i)
	require.NoError(t, err)
	assert.True(t, p.Scalar)
	assert.InDelta(t, 8, p.Value(), 1e-12)
	// relative errors 5% each, combined in quadrature
	assert.InDelta(t, 8*math.Sqrt(2)*0.05, p.Err[0], 1e-12)
	assert.True(t, p.Unit.Commensurable(reg.MustParse("W")))

	r, err := v.Div(i)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, r.Value(), 1e-12)
	assert.InDelta(t, 0.5*math.Sqrt(2)*0.05, r.Err[0], 1e-12)
	assert.True(t, r.Unit.Commensurable(reg.MustParse("Ω")))
}

func TestExactOperandsStayExact(t *testing.T) {
	t.Parallel()

	reg := units.NewRegistry()
	a := quantity.New([]float64{1, 2, 3}, reg.MustParse("m"))
	b := quantity.Scalar(2, units.Dimensionless)

	out, err := a.Mul(b)
	require.NoError(t, err)
	assert.False(t, out.HasUncertainty())
	assert.False(t, out.Scalar)
	assert.Equal(t, []float64{2, 4, 6}, out.Mag)
}

func TestBroadcastMismatch(t *testing.T) {
	t.Parallel()

	a := quantity.New([]float64{1, 2, 3}, units.Dimensionless)
	b := quantity.New([]float64{1, 2}, units.Dimensionless)

	_, err := a.Mul(b)
	assert.True(t, errors.Is(err, quantity.ErrShapeMismatch))
}

func TestConversionRoundTrip(t *testing.T) {
	t.Parallel()

	reg := units.NewRegistry()
	orig := quantity.NewUncertain([]float64{0.25, 7, -3}, []float64{0.01, 0.02, 0.03}, reg.MustParse("mmol/min"))

	there, err := orig.ToString(reg, "mol/s")
	require.NoError(t, err)
	back, err := there.To(reg, orig.Unit)
	require.NoError(t, err)
	assert.InDeltaSlice(t, orig.Mag, back.Mag, 1e-12)
	assert.InDeltaSlice(t, orig.Err, back.Err, 1e-12)

	red, err := orig.Reduced(reg)
	require.NoError(t, err)
	assert.Equal(t, "mol/s", red.Unit.Symbol)
	assert.InDelta(t, 0.25e-3/60, red.Mag[0], 1e-15)
}

func TestApply(t *testing.T) {
	t.Parallel()

	q := quantity.ScalarErr(4, 0.4, units.Dimensionless)
	out := q.Apply(units.Dimensionless, math.Sqrt, func(x float64) float64 { return 0.5 / math.Sqrt(x) })
	assert.InDelta(t, 2, out.Value(), 1e-12)
	assert.InDelta(t, 0.1, out.Err[0], 1e-12)
}

func TestParseLiteral(t *testing.T) {
	t.Parallel()

	reg := units.NewRegistry()
	tcs := map[string]struct {
		in      string
		value   float64
		sigma   float64
		hasErr  bool
		unit    string
		wantErr error
	}{
		"plain":        {in: "8.5", value: 8.5},
		"with unit":    {in: "25 degC", value: 25, unit: "degC"},
		"uncertainty":  {in: "8.5+/-0.1", value: 8.5, sigma: 0.1, hasErr: true},
		"plus minus":   {in: "(6.0±0.2) l/h", value: 6, sigma: 0.2, hasErr: true, unit: "l/h"},
		"spaced ascii": {in: "8.5 +/- 0.1", value: 8.5, sigma: 0.1, hasErr: true},
		"spaced sign":  {in: "8.5 ± 0.1", value: 8.5, sigma: 0.1, hasErr: true},
		"spaced unit":  {in: "6.0 ± 0.2 l/h", value: 6, sigma: 0.2, hasErr: true, unit: "l/h"},
		"spaced paren": {in: "(6.0 +/- 0.2) l/h", value: 6, sigma: 0.2, hasErr: true, unit: "l/h"},
		"not a number": {in: "abc", wantErr: quantity.ErrNotLiteral},
		"bad unit":     {in: "1 furlong", wantErr: units.ErrUndefinedUnit},
		"negative err": {in: "1+/--1", wantErr: quantity.ErrNotLiteral},
	}

	for name, tc := range tcs {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			q, err := quantity.ParseLiteral(reg, tc.in, units.Dimensionless)
			if tc.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tc.wantErr), err.Error())

				return
			}
			require.NoError(t, err)
			assert.True(t, q.Scalar)
			assert.Equal(t, tc.value, q.Value())
			assert.Equal(t, tc.hasErr, q.HasUncertainty())
			if tc.hasErr {
				assert.Equal(t, tc.sigma, q.Err[0])
			}
			assert.Equal(t, tc.unit, q.Unit.Symbol)
		})
	}
}
