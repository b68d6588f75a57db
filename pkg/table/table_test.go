package table_test

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/dgflow/pkg/table"
	"github.com/askiada/dgflow/pkg/units"
)

func newTable(t *testing.T, rows int) *table.Table {
	t.Helper()

	tbl := table.New("t")
	values := make([]float64, rows)
	for i := range values {
		values[i] = float64(i)
	}
	require.NoError(t, tbl.SetIndex(table.Index{Name: table.DefaultIndexName, Values: values}))

	return tbl
}

func TestParseKey(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		in   string
		want table.Key
	}{
		"flat":    {in: "freq", want: table.Key{"freq"}},
		"nested":  {in: "raw->traces->PEIS", want: table.Key{"raw", "traces", "PEIS"}},
		"spaces":  {in: "xout -> CO2", want: table.Key{"xout", "CO2"}},
		"empty":   {in: "", want: nil},
		"unicode": {in: "Re(Z)->Ω", want: table.Key{"Re(Z)", "Ω"}},
	}

	for name, tc := range tcs {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := table.ParseKey(tc.in)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("ParseKey(%q) mismatch (-want +got):\n%s", tc.in, diff)
			}
		})
	}
}

func TestSetAndSelect(t *testing.T) {
	t.Parallel()

	reg := units.NewRegistry()
	tbl := newTable(t, 3)

	require.NoError(t, tbl.Set(table.NewScalarColumn("T", reg.MustParse("K"), []float64{1, 2, 3}, nil)))
	require.NoError(t, tbl.Set(table.NewScalarColumn("xin->CO2", units.Dimensionless, []float64{0.1, 0.2, 0.3}, nil)))
	require.NoError(t, tbl.Set(table.NewScalarColumn("xin->N2", units.Dimensionless, []float64{0.9, 0.8, 0.7}, nil)))

	assert.Equal(t, []string{"T", "xin->CO2", "xin->N2"}, tbl.Names())

	cols, err := tbl.Select("xin")
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, "xin->CO2", cols[0].Name())

	cols, err = tbl.Select("xin->N2")
	require.NoError(t, err)
	require.Len(t, cols, 1)

	_, err = tbl.Select("xout")
	assert.True(t, errors.Is(err, table.ErrUnknownColumn))

	assert.True(t, tbl.IsNamespace("xin"))
	assert.False(t, tbl.IsNamespace("T"))

	err = tbl.Set(table.NewScalarColumn("bad", units.Dimensionless, []float64{1}, nil))
	assert.True(t, errors.Is(err, table.ErrRowCount))
}

func TestReplaceKeepsPosition(t *testing.T) {
	t.Parallel()

	tbl := newTable(t, 2)
	require.NoError(t, tbl.Set(table.NewScalarColumn("a", units.Dimensionless, []float64{1, 2}, nil)))
	require.NoError(t, tbl.Set(table.NewScalarColumn("b", units.Dimensionless, []float64{3, 4}, nil)))
	require.NoError(t, tbl.Set(table.NewScalarColumn("a", units.Dimensionless, []float64{5, 6}, nil)))

	assert.Equal(t, []string{"a", "b"}, tbl.Names())
	c, ok := tbl.Column("a")
	require.True(t, ok)
	q, err := c.Quantity()
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 6}, q.Mag)

	tbl.Delete("a")
	assert.Equal(t, []string{"b"}, tbl.Names())
	_, ok = tbl.Column("b")
	assert.True(t, ok)
}

func TestIndexLockedOnceColumnsExist(t *testing.T) {
	t.Parallel()

	tbl := newTable(t, 2)
	require.NoError(t, tbl.Set(table.NewScalarColumn("a", units.Dimensionless, []float64{1, 2}, nil)))

	err := tbl.SetIndex(table.Index{Values: []float64{1}})
	assert.True(t, errors.Is(err, table.ErrIndexSet))
}

func TestArrayColumn(t *testing.T) {
	t.Parallel()

	tbl := newTable(t, 2)
	c := table.NewArrayColumn("x", units.Dimensionless, [][]float64{{1, 2, 3}, {4}}, nil)
	require.NoError(t, tbl.Set(c))

	_, err := c.Quantity()
	assert.True(t, errors.Is(err, table.ErrArrayColumn))

	row := c.Row(0)
	assert.False(t, row.Scalar)
	assert.Equal(t, 3, row.Len())
	assert.Equal(t, 1, c.Row(1).Len())
}

func TestLabelColumn(t *testing.T) {
	t.Parallel()

	tbl := newTable(t, 3)
	c := table.NewLabelColumn("sample", []string{"a", "b", ""})
	require.NoError(t, tbl.Set(c))

	assert.True(t, c.Label)
	assert.True(t, c.Unit.IsDimensionless())
	assert.Equal(t, []string{"a", "b", ""}, c.Labels())
	assert.True(t, math.IsNaN(c.Cells[0].Mag[0]))

	_, err := c.Quantity()
	assert.True(t, errors.Is(err, table.ErrLabelColumn))

	cp := tbl.Clone("copy")
	got, _ := cp.Column("sample")
	assert.True(t, got.Label)
	assert.Equal(t, c.Labels(), got.Labels())
}

func TestProvenanceIsAppendOnlyCopy(t *testing.T) {
	t.Parallel()

	tbl := newTable(t, 0)
	tbl.Record(table.StepRecord{Stage: "extract", Index: 0})
	tbl.Record(table.StepRecord{Stage: "transform", Index: 1})

	got := tbl.Provenance()
	got[0].Stage = "mutated"

	want := []table.StepRecord{{Stage: "extract", Index: 0}, {Stage: "transform", Index: 1}}
	if diff := cmp.Diff(want, tbl.Provenance()); diff != "" {
		t.Errorf("provenance mismatch (-want +got):\n%s", diff)
	}
}

func TestPolicyExport(t *testing.T) {
	t.Parallel()

	v, ok := table.PolicyAbsolute.Export(10, 0.5)
	assert.True(t, ok)
	assert.Equal(t, 0.5, v)

	v, ok = table.PolicyRelative.Export(-10, 0.5)
	assert.True(t, ok)
	assert.Equal(t, 0.05, v)

	v, ok = table.PolicyRelative.Export(0, 0.5)
	assert.True(t, ok)
	assert.True(t, math.IsNaN(v))

	_, ok = table.PolicyNone.Export(10, 0.5)
	assert.False(t, ok)

	_, err := table.ParsePolicy("fuzzy")
	assert.True(t, errors.Is(err, table.ErrPolicy))
}

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()

	tbl := newTable(t, 1)
	require.NoError(t, tbl.Set(table.NewScalarColumn("a", units.Dimensionless, []float64{1}, []float64{0.1})))

	cp := tbl.Clone("copy")
	c, _ := cp.Column("a")
	c.Cells[0].Mag[0] = 42

	orig, _ := tbl.Column("a")
	assert.Equal(t, 1.0, orig.Cells[0].Mag[0])
	assert.Equal(t, "copy", cp.Name)
}
