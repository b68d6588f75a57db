package recipe

import (
	"github.com/askiada/dgflow/pkg/extract"
	"github.com/askiada/dgflow/pkg/pivot"
	"github.com/askiada/dgflow/pkg/plot"
	"github.com/askiada/dgflow/pkg/transform"
)

// Spec returns the extraction instruction.
func (e Extract) Spec() extract.Spec {
	spec := extract.Spec{Selector: e.At.Selector()}
	if e.At != nil {
		spec.Timestamps = append([]float64(nil), e.At.Timestamps...)
	}
	for _, c := range e.Columns {
		spec.Columns = append(spec.Columns, extract.Column{Key: c.Key, As: c.As})
	}
	for _, c := range e.Constants {
		spec.Constants = append(spec.Constants, extract.Constant{Value: c.Value, As: c.As, Units: c.Units})
	}

	return spec
}

// Spec returns the pivot instruction.
func (p Pivot) Spec() pivot.Spec {
	return pivot.Spec{
		Using:     append([]string(nil), p.Using...),
		Columns:   append([]string(nil), p.Columns...),
		Timestamp: p.Timestamp,
	}
}

// Bindings returns one binding per using entry.
func (t Transform) Bindings() []transform.Binding {
	out := make([]transform.Binding, len(t.Using))
	for i, u := range t.Using {
		b := make(transform.Binding, len(u))
		for k, v := range u {
			b[k] = v
		}
		out[i] = b
	}

	return out
}

// Figure returns the figure to render.
func (p Plot) Figure() plot.Figure {
	nrows, ncols := p.Grid()
	fig := plot.Figure{NRows: nrows, NCols: ncols, Style: p.Style, Axes: make([]plot.Axes, len(p.AxArgs))}
	if p.Save != nil {
		fig.DPI = p.Save.DPI
	}
	for i, ax := range p.AxArgs {
		r0, r1 := Span(ax.Rows)
		c0, c1 := Span(ax.Cols)
		out := plot.Axes{
			Rows:   [2]int{r0, r1},
			Cols:   [2]int{c0, c1},
			XLabel: ax.XLabel,
			YLabel: ax.YLabel,
			XLim:   ax.XLim,
			YLim:   ax.YLim,
			Legend: ax.Legend,
			Title:  ax.Title,
		}
		for _, s := range ax.Series {
			out.Series = append(out.Series, plot.Series{Y: s.Y, X: s.X, Kind: s.Kind, Label: s.Label})
		}
		fig.Axes[i] = out
	}

	return fig
}
