package source_test

import (
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/dgflow/pkg/source"
	"github.com/askiada/dgflow/pkg/table"
	"github.com/askiada/dgflow/pkg/units"
)

const datagramDoc = `{
  "metadata": {"provenance": "test"},
  "steps": [
    {
      "metadata": {"tag": "a"},
      "data": [
        {"uts": 0, "raw": {"T": {"n": 300.0, "s": 0.1, "u": "K"}, "label": "x"},
         "derived": {"xout": {"N2": {"n": 0.9, "s": 0.01, "u": "-"}, "CO2": {"n": 0.1, "s": 0.01, "u": "-"}}}},
        {"uts": 10, "raw": {"T": {"n": 310.0, "s": 0.1, "u": "K"}},
         "derived": {"xout": {"N2": {"n": 0.8, "s": 0.01, "u": "-"}, "CO2": {"n": 0.2, "s": 0.01, "u": "-"},
                             "O2": {"inner": {"n": 0.05, "s": 0.0, "u": "-"}}}}}
      ]
    },
    {
      "metadata": {"tag": "b"},
      "data": [
        {"uts": 20, "traces": {"freq": {"n": [1.0, 10.0, 100.0], "s": [0.0, 0.0, 0.0], "u": "Hz"}}},
        {"uts": 30, "traces": {"freq": {"n": [1.0, 10.0], "s": null, "u": "Hz"}}}
      ]
    }
  ]
}`

func loadDatagram(t *testing.T) *source.Datagram {
	t.Helper()

	dg, err := source.ReadDatagram(strings.NewReader(datagramDoc))
	require.NoError(t, err)

	return dg
}

func TestParsePath(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		in       string
		segments []string
		wildcard bool
		wantErr  bool
	}{
		"concrete":        {in: "raw->T", segments: []string{"raw", "T"}},
		"wildcard":        {in: "derived->xout->*", segments: []string{"derived", "xout"}, wildcard: true},
		"bare wildcard":   {in: "*", wildcard: true},
		"inner wildcard":  {in: "a->*->b", wantErr: true},
		"partial pattern": {in: "a->x*", wantErr: true},
		"empty":           {in: "", wantErr: true},
		"empty segment":   {in: "a->->b", wantErr: true},
	}

	for name, tc := range tcs {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			p, err := source.ParsePath(tc.in)
			if tc.wantErr {
				assert.True(t, errors.Is(err, source.ErrBadPath))

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.segments, p.Segments)
			assert.Equal(t, tc.wildcard, p.Wildcard)
			assert.Equal(t, tc.in, p.String())
		})
	}
}

func TestDatagramSeries(t *testing.T) {
	t.Parallel()

	dg := loadDatagram(t)
	assert.Equal(t, []string{"a", "b"}, dg.Tags())

	s, err := dg.Series(source.MustParsePath("raw->T"), source.Tags("a"))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 10}, s.Coord)
	assert.Equal(t, "K", s.Unit)
	assert.False(t, s.Array)
	assert.Equal(t, []float64{310}, s.Cells[1].Mag)
	assert.Equal(t, []float64{0.1}, s.Cells[1].Err)

	ts, err := dg.Timestamps(source.Selector{})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 10, 20, 30}, ts)
}

func TestDatagramMissingValuesAreNaN(t *testing.T) {
	t.Parallel()

	dg := loadDatagram(t)
	s, err := dg.Series(source.MustParsePath("raw->T"), source.Selector{})
	require.NoError(t, err)
	require.Len(t, s.Cells, 4)
	assert.True(t, math.IsNaN(s.Cells[2].Mag[0]))
	assert.True(t, math.IsNaN(s.Cells[3].Mag[0]))
}

func TestDatagramArrays(t *testing.T) {
	t.Parallel()

	dg := loadDatagram(t)
	s, err := dg.Series(source.MustParsePath("traces->freq"), source.Indices(1))
	require.NoError(t, err)
	assert.True(t, s.Array)
	assert.Len(t, s.Cells[0].Mag, 3)
	assert.Len(t, s.Cells[1].Mag, 2)
	assert.Nil(t, s.Cells[1].Err)
}

func TestStepsConcatenateInListedOrder(t *testing.T) {
	t.Parallel()

	dg := loadDatagram(t)
	ts, err := dg.Timestamps(source.Tags("b", "a"))
	require.NoError(t, err)
	assert.Equal(t, []float64{20, 30, 0, 10}, ts)

	ts, err = dg.Timestamps(source.Tags("a", "a"))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 10, 0, 10}, ts)
}

func TestWildcardExpansion(t *testing.T) {
	t.Parallel()

	dg := loadDatagram(t)
	series, err := source.Resolve(dg, source.MustParsePath("derived->xout->*"), source.Tags("a"))
	require.NoError(t, err)

	var keys []string
	for _, s := range series {
		keys = append(keys, s.Key.String())
	}
	want := []string{"N2", "CO2", "O2->inner"}
	if diff := cmp.Diff(want, keys); diff != "" {
		t.Errorf("wildcard keys mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "", series[0].Unit)
	assert.True(t, math.IsNaN(series[2].Cells[0].Mag[0]))
}

func TestResolutionErrors(t *testing.T) {
	t.Parallel()

	dg := loadDatagram(t)
	tcs := map[string]struct {
		path string
		sel  source.Selector
		want error
	}{
		"unknown key":   {path: "raw->P", want: source.ErrNoMatch},
		"namespace":     {path: "raw", want: source.ErrNoMatch},
		"unknown tag":   {path: "raw->T", sel: source.Tags("zz"), want: source.ErrUnknownStep},
		"index range":   {path: "raw->T", sel: source.Indices(2), want: source.ErrIndexRange},
		"empty wildard": {path: "raw->T->*", want: source.ErrNoMatch},
	}

	for name, tc := range tcs {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := source.Resolve(dg, source.MustParsePath(tc.path), tc.sel)
			require.Error(t, err)

			var rerr *source.ResolutionError
			require.True(t, errors.As(err, &rerr))
			assert.Equal(t, tc.path, rerr.Path)
			assert.True(t, errors.Is(err, tc.want), err.Error())
		})
	}
}

func TestTableSource(t *testing.T) {
	t.Parallel()

	reg := units.NewRegistry()
	tbl := table.New("in")
	require.NoError(t, tbl.SetIndex(table.Index{Name: "uts", Values: []float64{1, 2}}))
	require.NoError(t, tbl.Set(table.NewScalarColumn("xout->CO2", units.Dimensionless, []float64{0.1, 0.2}, nil)))
	require.NoError(t, tbl.Set(table.NewScalarColumn("xout->N2", units.Dimensionless, []float64{0.9, 0.8}, nil)))
	require.NoError(t, tbl.Set(table.NewScalarColumn("T", reg.MustParse("degC"), []float64{20, 21}, nil)))

	src := source.FromTable(tbl)
	series, err := source.Resolve(src, source.MustParsePath("xout->*"), source.Selector{})
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, table.Key{"N2"}, series[1].Key)
	assert.Equal(t, []float64{1, 2}, series[1].Coord)

	s, err := src.Series(source.MustParsePath("T"), source.Selector{})
	require.NoError(t, err)
	assert.Equal(t, "degC", s.Unit)

	_, err = src.Series(source.MustParsePath("T"), source.Tags("a"))
	assert.True(t, errors.Is(err, source.ErrNotSupported))
}

func TestCheckDatagram(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		doc   string
		valid bool
	}{
		"valid":       {doc: datagramDoc, valid: true},
		"no steps":    {doc: `{"metadata": {}}`},
		"empty steps": {doc: `{"steps": []}`},
		"empty data":  {doc: `{"steps": [{"data": []}]}`},
		"missing uts": {doc: `{"steps": [{"data": [{"uts": 1}, {"T": 2}]}]}`},
		"string uts":  {doc: `{"steps": [{"data": [{"uts": "now"}]}]}`},
		"not json":    {doc: `{"steps": [`},
	}

	for name, tc := range tcs {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			err := source.CheckDatagram([]byte(tc.doc))
			if tc.valid {
				assert.NoError(t, err)

				return
			}
			assert.True(t, errors.Is(err, source.ErrInvalidDocument))
		})
	}
}

func TestReadDatagramRejectsMalformedLeaves(t *testing.T) {
	t.Parallel()

	_, err := source.ReadDatagram(strings.NewReader(`{"steps": [{"data": [{"uts": 1, "x": {"n": "abc"}}]}]}`))
	assert.True(t, errors.Is(err, source.ErrMalformedLeaf))

	_, err = source.ReadDatagram(strings.NewReader(`{"steps": [{"data": [{"uts": 1, "x": {"n": [1, 2], "s": [1]}}]}]}`))
	assert.True(t, errors.Is(err, source.ErrMalformedLeaf))

	_, err = source.ReadDatagram(strings.NewReader(`[1, 2]`))
	assert.True(t, errors.Is(err, source.ErrInvalidDocument))
}

func TestDatagramLabels(t *testing.T) {
	t.Parallel()

	dg := loadDatagram(t)
	s, err := dg.Series(source.MustParsePath("raw->label"), source.Tags("a"))
	require.NoError(t, err)
	assert.True(t, s.Label)
	assert.Equal(t, "x", s.Cells[0].Label)
	assert.Equal(t, "", s.Cells[1].Label)

	series, err := source.Resolve(dg, source.MustParsePath("raw->*"), source.Tags("a"))
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, "label", series[1].Key.String())
}

func TestReadDatagramLiterals(t *testing.T) {
	t.Parallel()

	doc := "{\"steps\": [{\"data\": [\n\t{\"uts\": 1e1, \"x\": NaN, \"y\": {\"n\": [1, Infinity, null]}, \"ok\": true, \"name\": \"NaN\"}\n]}]}"
	dg, err := source.ReadDatagram(strings.NewReader(doc))
	require.NoError(t, err)

	ts, err := dg.Timestamps(source.Selector{})
	require.NoError(t, err)
	assert.Equal(t, []float64{10}, ts)

	x, err := dg.Series(source.MustParsePath("x"), source.Selector{})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(x.Cells[0].Mag[0]))

	y, err := dg.Series(source.MustParsePath("y"), source.Selector{})
	require.NoError(t, err)
	assert.True(t, math.IsInf(y.Cells[0].Mag[1], 1))
	assert.True(t, math.IsNaN(y.Cells[0].Mag[2]))

	name, err := dg.Series(source.MustParsePath("name"), source.Selector{})
	require.NoError(t, err)
	assert.Equal(t, "NaN", name.Cells[0].Label)

	_, err = dg.Series(source.MustParsePath("ok"), source.Selector{})
	assert.True(t, errors.Is(err, source.ErrNoMatch))
}

func TestMalformedTimestamps(t *testing.T) {
	t.Parallel()

	tcs := map[string]string{
		"empty array": `{"steps": [{"data": [{"uts": []}]}]}`,
		"array":       `{"steps": [{"data": [{"uts": [1, 2]}]}]}`,
		"label":       `{"steps": [{"data": [{"uts": "now"}]}]}`,
	}

	for name, doc := range tcs {
		doc := doc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			dg, err := source.ReadDatagram(strings.NewReader(doc))
			require.NoError(t, err)

			assert.NotPanics(t, func() {
				_, err = dg.Timestamps(source.Selector{})
			})
			var rerr *source.ResolutionError
			require.True(t, errors.As(err, &rerr), "%v", err)
			assert.Equal(t, source.TimestampKey, rerr.Path)
			assert.True(t, errors.Is(err, source.ErrMalformedLeaf))
		})
	}
}

func TestMixedLabelsAndNumbers(t *testing.T) {
	t.Parallel()

	doc := `{"steps": [{"data": [{"uts": 0, "g": "a"}, {"uts": 1, "g": 2}]}]}`
	dg, err := source.ReadDatagram(strings.NewReader(doc))
	require.NoError(t, err)

	_, err = dg.Series(source.MustParsePath("g"), source.Selector{})
	assert.True(t, errors.Is(err, source.ErrMixedKinds))
}
