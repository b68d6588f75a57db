package builtin_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/dgflow/pkg/quantity"
	"github.com/askiada/dgflow/pkg/transform/builtin"
	"github.com/askiada/dgflow/pkg/units"
)

func TestToPolar(t *testing.T) {
	t.Parallel()

	reg := units.NewRegistry()
	res, err := invoke(t, reg, builtin.ToPolar(), call{
		values: map[string]quantity.Quantity{
			"x": quantity.NewUncertain([]float64{3, 0}, []float64{0.3, 0}, reg.MustParse("Ω")),
			"y": quantity.New([]float64{4, -1}, reg.MustParse("Ω")),
		},
		options: map[string]any{"output": "Z"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Z->mag", "Z->arg"}, names(res))

	got := byName(t, reg, res, "")
	assert.InDeltaSlice(t, []float64{5, 1}, got["Z->mag"].Mag, 1e-12)
	assert.InDeltaSlice(t, []float64{math.Atan2(4, 3), -math.Pi / 2}, got["Z->arg"].Mag, 1e-12)
	// d|z|/dx = x/|z|
	assert.InDelta(t, 0.3*3.0/5.0, got["Z->mag"].Err[0], 1e-12)
	assert.True(t, got["Z->mag"].Unit.IsDimensionless())
}

func TestToRectangular(t *testing.T) {
	t.Parallel()

	reg := units.NewRegistry()
	tcs := map[string]struct {
		arg   quantity.Quantity
		wantX float64
		wantY float64
	}{
		"radians": {arg: quantity.Scalar(math.Pi/2, reg.MustParse("rad")), wantX: 0, wantY: 2},
		"degrees": {arg: quantity.Scalar(60, reg.MustParse("deg")), wantX: 1, wantY: math.Sqrt(3)},
	}

	for name, tc := range tcs {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			res, err := invoke(t, reg, builtin.ToRectangular(), call{
				values: map[string]quantity.Quantity{
					"mag": quantity.Scalar(2, reg.MustParse("Ω")),
					"arg": tc.arg,
				},
			})
			require.NoError(t, err)
			assert.Equal(t, []string{"x", "y"}, names(res))

			got := byName(t, reg, res, "Ω")
			assert.InDelta(t, tc.wantX, got["x"].Value(), 1e-12)
			assert.InDelta(t, tc.wantY, got["y"].Value(), 1e-12)
		})
	}
}
