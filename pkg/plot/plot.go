// Package plot renders figures of table columns as PNG images.
//
// A figure is a grid of axes; each axes is drawn with go-chart and pasted
// onto the cells it spans.
package plot

import (
	"bytes"
	"image"
	"image/draw"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"go.uber.org/zap"

	"github.com/askiada/dgflow/pkg/table"
	"github.com/askiada/dgflow/pkg/units"
)

// Series kinds.
const (
	Scatter  = "scatter"
	Line     = "line"
	Errorbar = "errorbar"
)

const (
	DefaultCellWidth  = 640
	DefaultCellHeight = 480
	defaultDPI        = 100
)

var (
	ErrKind     = errors.New("unknown series kind")
	ErrSpan     = errors.New("axes span outside the figure grid")
	ErrShape    = errors.New("x and y do not have the same shape")
	ErrNoPoints = errors.New("series has no finite point")
)

var palette = []drawing.Color{
	chart.ColorBlue,
	chart.ColorRed,
	chart.ColorGreen,
	chart.ColorOrange,
	chart.ColorCyan,
	chart.ColorBlack,
}

// Series is one line of an axes. An empty X uses the table index in
// seconds from the first row.
type Series struct {
	Y     string
	X     string
	Kind  string
	Label string
}

// Axes is one panel. Rows and Cols are [first, last) spans of the grid.
type Axes struct {
	Rows   [2]int
	Cols   [2]int
	Series []Series
	XLabel string
	YLabel string
	XLim   []float64
	YLim   []float64
	Legend bool
	Title  string
}

// Figure is a grid of axes.
type Figure struct {
	NRows int
	NCols int
	Style string
	DPI   int
	Axes  []Axes
}

// Plotter renders figures.
type Plotter struct {
	reg        *units.Registry
	logger     *zap.Logger
	cellWidth  int
	cellHeight int
}

// Option configures a Plotter.
type Option func(p *Plotter)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Plotter) {
		p.logger = l
	}
}

// WithCellSize sets the size in pixels of one grid cell at 100 dpi.
func WithCellSize(width, height int) Option {
	return func(p *Plotter) {
		p.cellWidth, p.cellHeight = width, height
	}
}

// New returns a Plotter.
func New(reg *units.Registry, opts ...Option) *Plotter {
	p := &Plotter{reg: reg, logger: zap.NewNop(), cellWidth: DefaultCellWidth, cellHeight: DefaultCellHeight}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Render draws fig from the columns of t.
func (p *Plotter) Render(t *table.Table, fig Figure) (image.Image, error) {
	nrows, ncols := max(fig.NRows, 1), max(fig.NCols, 1)
	dpi := fig.DPI
	if dpi <= 0 {
		dpi = defaultDPI
	}
	cw, ch := p.cellWidth*dpi/defaultDPI, p.cellHeight*dpi/defaultDPI
	if fig.Style != "" {
		p.logger.Debug("figure style is ignored", zap.String("style", fig.Style))
	}

	canvas := image.NewRGBA(image.Rect(0, 0, ncols*cw, nrows*ch))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)
	for i, ax := range fig.Axes {
		r0, r1 := ax.Rows[0], ax.Rows[1]
		c0, c1 := ax.Cols[0], ax.Cols[1]
		if r1 == 0 && c1 == 0 && r0 == 0 && c0 == 0 {
			r1, c1 = 1, 1
		}
		if r0 < 0 || c0 < 0 || r1 > nrows || c1 > ncols || r0 >= r1 || c0 >= c1 {
			return nil, errors.Wrapf(ErrSpan, "axes %d", i)
		}
		img, err := p.renderAxes(t, ax, (c1-c0)*cw, (r1-r0)*ch, float64(dpi))
		if err != nil {
			return nil, errors.Wrapf(err, "axes %d", i)
		}
		at := image.Pt(c0*cw, r0*ch)
		draw.Draw(canvas, img.Bounds().Add(at), img, img.Bounds().Min, draw.Over)
	}

	return canvas, nil
}

// Save renders fig and writes it as a PNG file at path.
func (p *Plotter) Save(path string, t *table.Table, fig Figure) error {
	img, err := p.Render(t, fig)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "unable to create %q", dir)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "unable to create %q", path)
	}
	if err := WritePNG(f, img); err != nil {
		_ = f.Close()

		return errors.Wrapf(err, "unable to write %q", path)
	}

	return errors.Wrapf(f.Close(), "unable to close %q", path)
}

// WritePNG encodes img.
func WritePNG(w io.Writer, img image.Image) error {
	return errors.Wrap(png.Encode(w, img), "unable to encode png")
}

func (p *Plotter) renderAxes(t *table.Table, ax Axes, width, height int, dpi float64) (image.Image, error) {
	var (
		series       []chart.Series
		xs, ys       []float64
		xName, yName string
	)
	for i, s := range ax.Series {
		data, err := p.resolve(t, s)
		if err != nil {
			return nil, err
		}
		if xName == "" {
			xName, yName = data.xLabel, data.yLabel
		}
		style := palette[i%len(palette)]
		out, err := chartSeries(s, data, style)
		if err != nil {
			return nil, errors.Wrapf(err, "series %q", s.Y)
		}
		series = append(series, out...)
		for _, tr := range data.traces {
			xs = append(xs, tr.x...)
			ys = append(ys, tr.lower()...)
			ys = append(ys, tr.upper()...)
		}
	}
	if ax.XLabel != "" {
		xName = ax.XLabel
	}
	if ax.YLabel != "" {
		yName = ax.YLabel
	}

	c := chart.Chart{
		Title:      ax.Title,
		Width:      width,
		Height:     height,
		DPI:        dpi,
		Background: chart.Style{Padding: chart.Box{Top: 20, Left: 20, Right: 20, Bottom: 20}},
		XAxis:      chart.XAxis{Name: xName, Range: axisRange(xs, ax.XLim)},
		YAxis:      chart.YAxis{Name: yName, Range: axisRange(ys, ax.YLim)},
		Series:     series,
	}
	if ax.Legend {
		c.Elements = []chart.Renderable{chart.Legend(&c)}
	}

	var buf bytes.Buffer
	if err := c.Render(chart.PNG, &buf); err != nil {
		return nil, errors.Wrap(err, "unable to render chart")
	}
	img, err := png.Decode(&buf)
	if err != nil {
		return nil, errors.Wrap(err, "unable to decode chart")
	}

	return img, nil
}

// axisRange spans the finite values, or lim when given. A degenerate range
// is widened so the chart can be drawn.
func axisRange(values, lim []float64) *chart.ContinuousRange {
	if len(lim) == 2 {
		return &chart.ContinuousRange{Min: lim[0], Max: lim[1]}
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	if lo > hi {
		return &chart.ContinuousRange{Min: 0, Max: 1}
	}
	if lo == hi {
		pad := math.Max(math.Abs(lo)*0.05, 0.5)

		return &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
	}

	return &chart.ContinuousRange{Min: lo, Max: hi}
}
