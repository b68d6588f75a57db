package extract_test

import (
	"math"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/askiada/dgflow/pkg/extract"
	"github.com/askiada/dgflow/pkg/interp"
	"github.com/askiada/dgflow/pkg/source"
	"github.com/askiada/dgflow/pkg/table"
	"github.com/askiada/dgflow/pkg/units"
)

const doc = `{"steps": [
  {"metadata": {"tag": "a"}, "data": [
    {"uts": 0,  "raw": {"T": {"n": 300.0, "s": 1.0, "u": "K"}, "flow": {"n": 10.0, "s": 0.0, "u": "smL/min"}}},
    {"uts": 10, "raw": {"T": {"n": 310.0, "s": 1.0, "u": "K"}, "flow": {"n": 12.0, "s": 0.0, "u": "smL/min"}}},
    {"uts": 20, "raw": {"T": {"n": 320.0, "s": 1.0, "u": "K"}, "flow": {"n": 14.0, "s": 0.0, "u": "smL/min"}}}
  ]},
  {"metadata": {"tag": "b"}, "data": [
    {"uts": 5,  "xout": {"CO2": {"n": 0.1, "s": 0.01, "u": "-"}, "N2": {"n": 0.9, "s": 0.01, "u": "-"}}, "odd": {"n": 1, "u": "frobs"}},
    {"uts": 15, "xout": {"CO2": {"n": 0.3, "s": 0.01, "u": "-"}, "N2": {"n": 0.7, "s": 0.01, "u": "-"}}, "odd": {"n": 2, "u": "frobs"}}
  ]}
]}`

func setup(t *testing.T) (*units.Registry, *source.Datagram) {
	t.Helper()

	dg, err := source.ReadDatagram(strings.NewReader(doc))
	require.NoError(t, err)

	return units.NewRegistry(), dg
}

func column(t *testing.T, tbl *table.Table, name string) *table.Column {
	t.Helper()

	c, ok := tbl.Column(name)
	require.True(t, ok, "column %q", name)

	return c
}

func TestDirectExtractionTakesSourceIndex(t *testing.T) {
	t.Parallel()

	reg, dg := setup(t)
	dst := table.New("df")

	err := extract.New(reg).Extract(dg, dst, extract.Spec{
		Selector: source.Tags("a"),
		Columns:  []extract.Column{{Key: "raw->T", As: "T"}, {Key: "raw->flow", As: "flow"}},
	})
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 10, 20}, dst.Index.Values)
	assert.Equal(t, table.DefaultIndexName, dst.Index.Name)
	assert.Equal(t, []string{"T", "flow"}, dst.Names())
	assert.Equal(t, "K", column(t, dst, "T").Unit.Symbol)
	assert.Equal(t, "smL/min", column(t, dst, "flow").Unit.Symbol)
}

func TestCumulativeExtraction(t *testing.T) {
	t.Parallel()

	reg, dg := setup(t)
	dst := table.New("df")
	ex := extract.New(reg)

	require.NoError(t, ex.Extract(dg, dst, extract.Spec{
		Selector: source.Tags("a"),
		Columns:  []extract.Column{{Key: "raw->T", As: "T"}},
	}))
	before := append([]float64(nil), dst.Index.Values...)

	require.NoError(t, ex.Extract(dg, dst, extract.Spec{
		Selector: source.Tags("b"),
		Columns:  []extract.Column{{Key: "xout->*", As: "xout"}},
	}))

	assert.Equal(t, before, dst.Index.Values)
	assert.Equal(t, []string{"T", "xout->CO2", "xout->N2"}, dst.Names())

	co2, err := column(t, dst, "xout->CO2").Quantity()
	require.NoError(t, err)
	// rows 0 and 20 lie outside [5, 15]
	assert.True(t, math.IsNaN(co2.Mag[0]))
	assert.InDelta(t, 0.2, co2.Mag[1], 1e-12)
	assert.True(t, math.IsNaN(co2.Mag[2]))
	assert.InDelta(t, math.Hypot(0.005, 0.005), co2.Err[1], 1e-12)

	ns, err := dst.Select("xout")
	require.NoError(t, err)
	assert.Len(t, ns, 2)
}

func TestConstantsBroadcast(t *testing.T) {
	t.Parallel()

	reg := units.NewRegistry()
	dst := table.New("df")
	values := make([]float64, 10)
	for i := range values {
		values[i] = float64(i)
	}
	require.NoError(t, dst.SetIndex(table.Index{Name: "uts", Values: values}))

	err := extract.New(reg).Extract(nil, dst, extract.Spec{
		Constants: []extract.Constant{
			{Value: 8.5, As: "pH"},
			{Value: "6.0+/-0.1", As: "flow", Units: "l/h"},
			{Value: 25, As: "T", Units: "degC"},
		},
	})
	require.NoError(t, err)

	ph := column(t, dst, "pH")
	assert.Equal(t, 10, ph.Len())
	assert.True(t, ph.Unit.IsDimensionless())
	assert.False(t, ph.HasUncertainty())
	for i := 0; i < ph.Len(); i++ {
		assert.Equal(t, []float64{8.5}, ph.Cells[i].Mag)
	}

	flow := column(t, dst, "flow")
	assert.Equal(t, []float64{0.1}, flow.Cells[9].Err)
	assert.Equal(t, "l/h", flow.Unit.Symbol)
	assert.Equal(t, "degC", column(t, dst, "T").Unit.Symbol)
}

func TestExplicitTimestamps(t *testing.T) {
	t.Parallel()

	reg, dg := setup(t)
	dst := table.New("df")

	err := extract.New(reg).Extract(dg, dst, extract.Spec{
		Selector:   source.Tags("a"),
		Timestamps: []float64{5, 15, 25},
		Columns:    []extract.Column{{Key: "raw->T", As: "T"}},
	})
	require.NoError(t, err)

	q, err := column(t, dst, "T").Quantity()
	require.NoError(t, err)
	assert.InDelta(t, 305, q.Mag[0], 1e-12)
	assert.InDelta(t, 315, q.Mag[1], 1e-12)
	assert.True(t, math.IsNaN(q.Mag[2]))

	err = extract.New(reg).Extract(dg, dst, extract.Spec{Timestamps: []float64{1}})
	assert.True(t, errors.Is(err, extract.ErrIndexConflict))
}

func TestCannotDeduceIndex(t *testing.T) {
	t.Parallel()

	err := extract.New(units.NewRegistry()).Extract(nil, table.New("df"), extract.Spec{
		Constants: []extract.Constant{{Value: 1.0, As: "x"}},
	})
	var aerr *interp.AlignmentError
	require.True(t, errors.As(err, &aerr))
	assert.True(t, errors.Is(err, extract.ErrNoIndex))
}

func TestFailureLeavesTableUntouched(t *testing.T) {
	t.Parallel()

	reg, dg := setup(t)
	dst := table.New("df")

	err := extract.New(reg).Extract(dg, dst, extract.Spec{
		Selector: source.Tags("a"),
		Columns:  []extract.Column{{Key: "raw->T", As: "T"}, {Key: "raw->missing", As: "m"}},
	})
	var rerr *source.ResolutionError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, "raw->missing", rerr.Path)
	assert.True(t, dst.Empty())
}

func TestUnknownUnitIsDimensionless(t *testing.T) {
	t.Parallel()

	reg, dg := setup(t)
	core, logs := observer.New(zapcore.WarnLevel)
	dst := table.New("df")

	err := extract.New(reg, extract.WithLogger(zap.New(core))).Extract(dg, dst, extract.Spec{
		Selector: source.Tags("b"),
		Columns:  []extract.Column{{Key: "odd", As: "odd"}},
	})
	require.NoError(t, err)

	c := column(t, dst, "odd")
	assert.True(t, c.Unit.IsDimensionless())
	assert.Equal(t, "frobs", c.Unit.Symbol)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "odd", logs.All()[0].ContextMap()["column"])
}

const stepsDoc = `{"steps": [
  {"metadata": {"tag": "early"}, "data": [
    {"uts": 0,  "T": {"n": 300.0, "s": 1.0, "u": "K"}},
    {"uts": 10, "T": {"n": 310.0, "s": 1.0, "u": "K"}}
  ]},
  {"metadata": {"tag": "late"}, "data": [
    {"uts": 20, "T": {"n": 320.0, "s": 1.0, "u": "K"}},
    {"uts": 30, "T": {"n": 330.0, "s": 1.0, "u": "K"}}
  ]},
  {"metadata": {"tag": "overlap"}, "data": [
    {"uts": 5,  "T": {"n": 305.0, "s": 1.0, "u": "K"}},
    {"uts": 25, "T": {"n": 325.0, "s": 1.0, "u": "K"}}
  ]},
  {"metadata": {"tag": "clash"}, "data": [
    {"uts": 10, "T": {"n": 999.0, "s": 1.0, "u": "K"}}
  ]}
]}`

func TestInterpolateAcrossUnorderedSteps(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		selector source.Selector
	}{
		"listed in time order": {selector: source.Tags("early", "late")},
		"listed in reverse":    {selector: source.Tags("late", "early")},
		"overlapping":          {selector: source.Tags("early", "late", "overlap")},
		"overlap first":        {selector: source.Tags("overlap", "late", "early")},
	}

	for name, tc := range tcs {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			dg, err := source.ReadDatagram(strings.NewReader(stepsDoc))
			require.NoError(t, err)
			dst := table.New("df")
			require.NoError(t, dst.SetIndex(table.Index{Name: "uts", Values: []float64{0, 5, 15, 25}}))

			err = extract.New(units.NewRegistry()).Extract(dg, dst, extract.Spec{
				Selector: tc.selector,
				Columns:  []extract.Column{{Key: "T", As: "T"}},
			})
			require.NoError(t, err)

			q, err := column(t, dst, "T").Quantity()
			require.NoError(t, err)
			assert.InDeltaSlice(t, []float64{300, 305, 315, 325}, q.Mag, 1e-12)
		})
	}
}

func TestInterpolateConflictingSteps(t *testing.T) {
	t.Parallel()

	dg, err := source.ReadDatagram(strings.NewReader(stepsDoc))
	require.NoError(t, err)
	dst := table.New("df")
	require.NoError(t, dst.SetIndex(table.Index{Name: "uts", Values: []float64{0, 5}}))

	err = extract.New(units.NewRegistry()).Extract(dg, dst, extract.Spec{
		Selector: source.Tags("clash", "early"),
		Columns:  []extract.Column{{Key: "T", As: "T"}},
	})
	var aerr *interp.AlignmentError
	require.True(t, errors.As(err, &aerr))
	assert.Equal(t, "T", aerr.Series)
	assert.True(t, errors.Is(err, interp.ErrConflict))
	assert.Empty(t, dst.Columns())
}

func TestLabelsAlignOnExactTimestamps(t *testing.T) {
	t.Parallel()

	doc := `{"steps": [{"data": [{"uts": 0, "sample": "a"}, {"uts": 10, "sample": "b"}]}]}`
	dg, err := source.ReadDatagram(strings.NewReader(doc))
	require.NoError(t, err)
	ex := extract.New(units.NewRegistry())

	direct := table.New("df")
	require.NoError(t, ex.Extract(dg, direct, extract.Spec{Columns: []extract.Column{{Key: "sample", As: "sample"}}}))
	c := column(t, direct, "sample")
	assert.True(t, c.Label)
	assert.Equal(t, []string{"a", "b"}, c.Labels())

	indexed := table.New("df")
	require.NoError(t, indexed.SetIndex(table.Index{Name: "uts", Values: []float64{0, 5, 10}}))
	require.NoError(t, ex.Extract(dg, indexed, extract.Spec{Columns: []extract.Column{{Key: "sample", As: "sample"}}}))
	c = column(t, indexed, "sample")
	assert.True(t, c.Label)
	assert.False(t, c.Array)
	assert.Equal(t, []string{"a", "", "b"}, c.Labels())
}
