package pivot_test

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/dgflow/pkg/pivot"
	"github.com/askiada/dgflow/pkg/table"
	"github.com/askiada/dgflow/pkg/units"
)

func grouped(t *testing.T) *table.Table {
	t.Helper()

	reg := units.NewRegistry()
	tbl := table.New("raw")
	require.NoError(t, tbl.SetIndex(table.Index{Name: "uts", Values: []float64{0, 1, 2, 3, 4, 5}}))
	require.NoError(t, tbl.Set(table.NewLabelColumn("group", []string{"a", "a", "b", "b", "b", "c"})))
	require.NoError(t, tbl.Set(table.NewScalarColumn("x", reg.MustParse("mA"),
		[]float64{10, 11, 20, 21, 22, 30}, []float64{1, 1, 2, 2, 2, 3})))
	require.NoError(t, tbl.Set(table.NewScalarColumn("y", units.Dimensionless, []float64{0, 0, 0, 0, 0, 0}, nil)))
	require.NoError(t, tbl.Set(table.NewLabelColumn("note", []string{"", "", "", "", "", "hot"})))
	tbl.Record(table.StepRecord{Stage: "extract"})

	return tbl
}

func TestPivotGroupsInFirstAppearanceOrder(t *testing.T) {
	t.Parallel()

	src := grouped(t)
	out, err := pivot.Pivot(src, "piv", pivot.Spec{Using: []string{"group"}, Columns: []string{"x"}})
	require.NoError(t, err)

	require.Equal(t, 3, out.Len())
	assert.Equal(t, []string{"group", "x"}, out.Names())

	x, ok := out.Column("x")
	require.True(t, ok)
	assert.True(t, x.Array)
	assert.Equal(t, "mA", x.Unit.Symbol)
	assert.Equal(t, []float64{10, 11}, x.Cells[0].Mag)
	assert.Equal(t, []float64{20, 21, 22}, x.Cells[1].Mag)
	assert.Equal(t, []float64{30}, x.Cells[2].Mag)
	assert.Equal(t, []float64{2, 2, 2}, x.Cells[1].Err)

	total := 0
	for _, c := range x.Cells {
		total += len(c.Mag)
	}
	assert.Equal(t, src.Len(), total)

	g, _ := out.Column("group")
	assert.True(t, g.Label)
	assert.Equal(t, []string{"a", "b", "c"}, g.Labels())
	assert.Equal(t, []float64{0, 2, 5}, out.Index.Values)
	assert.Len(t, out.Provenance(), 1)
}

func TestPivotTimestampModes(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		mode string
		want []float64
	}{
		"default": {want: []float64{0, 2, 5}},
		"last":    {mode: pivot.TimestampLast, want: []float64{1, 4, 5}},
		"mean":    {mode: pivot.TimestampMean, want: []float64{0.5, 3, 5}},
	}

	for name, tc := range tcs {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			out, err := pivot.Pivot(grouped(t), "piv", pivot.Spec{Using: []string{"group"}, Timestamp: tc.mode})
			require.NoError(t, err)
			assert.Equal(t, tc.want, out.Index.Values)
			assert.Equal(t, []string{"group", "x", "y"}, out.Names())
		})
	}
}

func TestPivotErrors(t *testing.T) {
	t.Parallel()

	src := grouped(t)
	nested, err := pivot.Pivot(src, "piv", pivot.Spec{Using: []string{"group"}})
	require.NoError(t, err)

	tcs := map[string]struct {
		src  *table.Table
		spec pivot.Spec
		want error
	}{
		"no keys":        {src: src, spec: pivot.Spec{}, want: pivot.ErrNoKeys},
		"unknown key":    {src: src, spec: pivot.Spec{Using: []string{"nope"}}, want: table.ErrUnknownColumn},
		"unknown column": {src: src, spec: pivot.Spec{Using: []string{"group"}, Columns: []string{"z"}}, want: table.ErrUnknownColumn},
		"bad timestamp":  {src: src, spec: pivot.Spec{Using: []string{"group"}, Timestamp: "median"}, want: pivot.ErrTimestampOpt},
		"array key":      {src: nested, spec: pivot.Spec{Using: []string{"x"}}, want: pivot.ErrKeyColumn},
		"nested":         {src: nested, spec: pivot.Spec{Using: []string{"group"}}, want: pivot.ErrNestedArray},
		"label column":   {src: src, spec: pivot.Spec{Using: []string{"group"}, Columns: []string{"note"}}, want: pivot.ErrLabels},
	}

	for name, tc := range tcs {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := pivot.Pivot(tc.src, "out", tc.spec)
			assert.True(t, errors.Is(err, tc.want), "%v", err)
		})
	}
}

func TestPivotNumericKeys(t *testing.T) {
	t.Parallel()

	tbl := table.New("raw")
	require.NoError(t, tbl.SetIndex(table.Index{Name: "uts", Values: []float64{0, 1, 2, 3, 4, 5}}))
	require.NoError(t, tbl.Set(table.NewScalarColumn("T", units.Dimensionless,
		[]float64{0, math.Copysign(0, -1), math.NaN(), 1, math.NaN(), 0}, nil)))
	require.NoError(t, tbl.Set(table.NewScalarColumn("x", units.Dimensionless, []float64{1, 2, 3, 4, 5, 6}, nil)))

	out, err := pivot.Pivot(tbl, "piv", pivot.Spec{Using: []string{"T"}})
	require.NoError(t, err)
	require.Equal(t, 3, out.Len())

	x, _ := out.Column("x")
	assert.Equal(t, []float64{1, 2, 6}, x.Cells[0].Mag)
	assert.Equal(t, []float64{3, 5}, x.Cells[1].Mag)
	assert.Equal(t, []float64{4}, x.Cells[2].Mag)
}

func TestPivotLabelsWithSeparators(t *testing.T) {
	t.Parallel()

	tbl := table.New("raw")
	require.NoError(t, tbl.SetIndex(table.Index{Name: "uts", Values: []float64{0, 1, 2}}))
	require.NoError(t, tbl.Set(table.NewLabelColumn("k1", []string{"a:b", "a", "a:b"})))
	require.NoError(t, tbl.Set(table.NewLabelColumn("k2", []string{"c", "b:c", "c"})))

	out, err := pivot.Pivot(tbl, "piv", pivot.Spec{Using: []string{"k1", "k2"}})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Len())
	assert.Equal(t, []float64{0, 1}, out.Index.Values)
}
