package interp_test

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/dgflow/pkg/interp"
)

func TestLinear(t *testing.T) {
	t.Parallel()

	x := []float64{0, 10, 20}
	y := []float64{0, 100, 300}
	sigma := []float64{3, 4, 0}

	got, gotSigma, err := interp.Linear(x, y, sigma, []float64{-1, 0, 5, 10, 15, 20, 21})
	require.NoError(t, err)

	assert.True(t, math.IsNaN(got[0]))
	assert.Equal(t, 0.0, got[1])
	assert.InDelta(t, 50, got[2], 1e-12)
	assert.Equal(t, 100.0, got[3])
	assert.InDelta(t, 200, got[4], 1e-12)
	assert.Equal(t, 300.0, got[5])
	assert.True(t, math.IsNaN(got[6]))

	assert.InDelta(t, math.Hypot(1.5, 2), gotSigma[2], 1e-12)
	assert.Equal(t, 4.0, gotSigma[3])
	assert.True(t, math.IsNaN(gotSigma[6]))
}

func TestLinearNeverExtrapolates(t *testing.T) {
	t.Parallel()

	x := []float64{100, 101, 102}
	y := []float64{1, 2, 3}
	dst := []float64{0, 50, 99.999, 102.001, 1e9}

	got, sigma, err := interp.Linear(x, y, nil, dst)
	require.NoError(t, err)
	assert.Nil(t, sigma)
	for i, v := range got {
		assert.True(t, math.IsNaN(v), "row %d", i)
	}
}

func TestLinearMasksMissingPoints(t *testing.T) {
	t.Parallel()

	x := []float64{0, 1, 2}
	y := []float64{0, math.NaN(), 2}

	got, _, err := interp.Linear(x, y, nil, []float64{1})
	require.NoError(t, err)
	assert.InDelta(t, 1, got[0], 1e-12)
}

func TestLinearUnorderedSource(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		x, y []float64
	}{
		"reversed":    {x: []float64{20, 10, 0}, y: []float64{300, 100, 0}},
		"interleaved": {x: []float64{10, 0, 20, 5}, y: []float64{100, 0, 300, 50}},
		"duplicate":   {x: []float64{0, 10, 10, 20}, y: []float64{0, 100, 100, 300}},
	}

	for name, tc := range tcs {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, _, err := interp.Linear(tc.x, tc.y, nil, []float64{5, 15})
			require.NoError(t, err)
			assert.InDelta(t, 50, got[0], 1e-12)
			assert.InDelta(t, 200, got[1], 1e-12)
		})
	}
}

func TestLinearErrors(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		x, y, sigma []float64
		want        error
	}{
		"empty":          {want: interp.ErrEmptySource},
		"all missing":    {x: []float64{0, 1}, y: []float64{math.NaN(), math.NaN()}, want: interp.ErrEmptySource},
		"conflict":       {x: []float64{0, 1, 0}, y: []float64{0, 1, 2}, want: interp.ErrConflict},
		"sigma conflict": {x: []float64{0, 1, 0}, y: []float64{0, 1, 0}, sigma: []float64{1, 1, 2}, want: interp.ErrConflict},
		"length":         {x: []float64{0, 1}, y: []float64{0}, want: interp.ErrLengthMismatch},
		"sigma length":   {x: []float64{0, 1}, y: []float64{0, 1}, sigma: []float64{1}, want: interp.ErrLengthMismatch},
	}

	for name, tc := range tcs {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, _, err := interp.Linear(tc.x, tc.y, tc.sigma, []float64{0.5})
			require.Error(t, err)

			var aerr *interp.AlignmentError
			assert.True(t, errors.As(err, &aerr))
			assert.True(t, errors.Is(err, tc.want), err.Error())
		})
	}
}

func TestExact(t *testing.T) {
	t.Parallel()

	got := interp.Exact([]float64{1, 2, 2, 3}, []float64{2, 4, 1, math.NaN()})
	assert.Equal(t, []int{1, -1, 0, -1}, got)
}
