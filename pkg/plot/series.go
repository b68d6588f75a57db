package plot

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/askiada/dgflow/pkg/table"
)

type trace struct {
	label string
	x     []float64
	y     []float64
	err   []float64
}

func (tr trace) lower() []float64 {
	return tr.shifted(-1)
}

func (tr trace) upper() []float64 {
	return tr.shifted(1)
}

func (tr trace) shifted(sign float64) []float64 {
	out := make([]float64, len(tr.y))
	for i, v := range tr.y {
		out[i] = v
		if tr.err != nil {
			out[i] += sign * tr.err[i]
		}
	}

	return out
}

// finite drops the points where x or y is not a finite number.
func (tr trace) finite() trace {
	out := trace{label: tr.label}
	for i := range tr.y {
		if !isFinite(tr.x[i]) || !isFinite(tr.y[i]) {
			continue
		}
		out.x = append(out.x, tr.x[i])
		out.y = append(out.y, tr.y[i])
		if tr.err != nil {
			out.err = append(out.err, tr.err[i])
		}
	}

	return out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

type seriesData struct {
	traces []trace
	xLabel string
	yLabel string
}

func axisLabel(name, unit string) string {
	if unit == "" {
		return name
	}

	return name + " [" + unit + "]"
}

func column(t *table.Table, name string) (*table.Column, error) {
	c, ok := t.Column(name)
	if !ok {
		return nil, errors.Wrapf(table.ErrUnknownColumn, "%q in table %q", name, t.Name)
	}

	return c, nil
}

// elapsed returns the index in seconds from the first row.
func (p *Plotter) elapsed(t *table.Table) ([]float64, string) {
	values := t.Index.Values
	unit := t.Index.Unit.Symbol
	if sec, err := p.reg.Parse("s"); err == nil && t.Index.Unit.Commensurable(sec) {
		if conv, _, err := p.reg.Convert(values, nil, t.Index.Unit, sec); err == nil {
			values, unit = conv, "s"
		}
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v - values[0]
	}
	name := t.Index.Name
	if name == "" {
		name = table.DefaultIndexName
	}

	return out, axisLabel(name, unit)
}

func scalars(c *table.Column) ([]float64, []float64) {
	mag := make([]float64, c.Len())
	var unc []float64
	if c.HasUncertainty() {
		unc = make([]float64, c.Len())
	}
	for i, cell := range c.Cells {
		mag[i] = cell.Mag[0]
		if unc != nil && cell.Err != nil {
			unc[i] = cell.Err[0]
		}
	}

	return mag, unc
}

func (p *Plotter) resolve(t *table.Table, s Series) (seriesData, error) {
	y, err := column(t, s.Y)
	if err != nil {
		return seriesData{}, err
	}
	if y.Label {
		return seriesData{}, errors.Wrapf(table.ErrLabelColumn, "%q cannot be plotted", s.Y)
	}
	label := s.Label
	if label == "" {
		label = s.Y
	}
	out := seriesData{yLabel: axisLabel(s.Y, y.Unit.Symbol)}

	var x *table.Column
	if s.X != "" {
		if x, err = column(t, s.X); err != nil {
			return seriesData{}, err
		}
		if x.Label {
			return seriesData{}, errors.Wrapf(table.ErrLabelColumn, "%q cannot be plotted", s.X)
		}
		out.xLabel = axisLabel(s.X, x.Unit.Symbol)
	}

	if !y.Array {
		tr := trace{label: label}
		tr.y, tr.err = scalars(y)
		switch {
		case x == nil:
			tr.x, out.xLabel = p.elapsed(t)
		case x.Array:
			return seriesData{}, errors.Wrapf(ErrShape, "%q holds arrays, %q does not", s.X, s.Y)
		default:
			tr.x, _ = scalars(x)
		}
		out.traces = []trace{tr}

		return out, nil
	}

	if x == nil || !x.Array {
		return seriesData{}, errors.Wrapf(ErrShape, "%q holds arrays and needs an array x", s.Y)
	}
	for i := range y.Cells {
		xc, yc := x.Cells[i], y.Cells[i]
		if len(xc.Mag) != len(yc.Mag) {
			return seriesData{}, errors.Wrapf(ErrShape, "row %d has %d x and %d y values", i, len(xc.Mag), len(yc.Mag))
		}
		if len(yc.Mag) == 0 {
			continue
		}
		out.traces = append(out.traces, trace{
			label: fmt.Sprintf("%s [%d]", label, i),
			x:     xc.Mag,
			y:     yc.Mag,
			err:   yc.Err,
		})
	}

	return out, nil
}

// points pads a single point so the chart has a drawable extent.
func points(v []float64) []float64 {
	if len(v) == 1 {
		return []float64{v[0], v[0]}
	}

	return v
}

func chartSeries(s Series, data seriesData, color drawing.Color) ([]chart.Series, error) {
	kind := s.Kind
	switch kind {
	case "":
		kind = Scatter
	case Scatter, Line, Errorbar:
	default:
		return nil, errors.Wrapf(ErrKind, "%q", kind)
	}
	var out []chart.Series
	for _, raw := range data.traces {
		tr := raw.finite()
		if len(tr.y) == 0 {
			continue
		}
		switch kind {
		case Scatter:
			out = append(out, chart.ContinuousSeries{
				Name:    tr.label,
				Style:   chart.Style{StrokeColor: drawing.ColorTransparent, DotColor: color, DotWidth: 3},
				XValues: points(tr.x),
				YValues: points(tr.y),
			})
		case Line:
			out = append(out, chart.ContinuousSeries{
				Name:    tr.label,
				Style:   chart.Style{StrokeColor: color, StrokeWidth: 2},
				XValues: points(tr.x),
				YValues: points(tr.y),
			})
		case Errorbar:
			out = append(out, chart.ContinuousSeries{
				Name:    tr.label,
				Style:   chart.Style{StrokeColor: drawing.ColorTransparent, DotColor: color, DotWidth: 3},
				XValues: points(tr.x),
				YValues: points(tr.y),
			})
			if tr.err == nil {
				continue
			}
			band := chart.Style{StrokeColor: color.WithAlpha(128), StrokeWidth: 1, StrokeDashArray: []float64{4, 2}}
			out = append(out,
				chart.ContinuousSeries{Name: tr.label + " -σ", Style: band, XValues: points(tr.x), YValues: points(tr.lower())},
				chart.ContinuousSeries{Name: tr.label + " +σ", Style: band, XValues: points(tr.x), YValues: points(tr.upper())},
			)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoPoints
	}

	return out, nil
}
