// Package extract pulls series out of sources and merges them, time-aligned,
// into a destination table.
//
// Extraction is cumulative: a destination that already has rows keeps its
// index, and new columns are interpolated onto it. A fresh destination takes
// its index from explicit timestamps or, failing that, from the source.
package extract

import (
	"math"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/askiada/dgflow/pkg/interp"
	"github.com/askiada/dgflow/pkg/quantity"
	"github.com/askiada/dgflow/pkg/source"
	"github.com/askiada/dgflow/pkg/table"
	"github.com/askiada/dgflow/pkg/units"
)

var (
	ErrNoIndex       = errors.New("cannot deduce index")
	ErrIndexConflict = errors.New("explicit timestamps on an already indexed table")
	ErrNoSource      = errors.New("columns requested without a source")
	ErrConstant      = errors.New("invalid constant")
)

// Column asks for the leaf (or wildcard) Key to be stored under As.
type Column struct {
	Key string
	As  string
}

// Constant is a literal broadcast to every row. Value is a number or a
// string such as "8.5+/-0.1".
type Constant struct {
	Value any
	As    string
	Units string
}

// Spec is one extraction instruction.
type Spec struct {
	Selector   source.Selector
	Timestamps []float64
	Columns    []Column
	Constants  []Constant
}

// Extractor runs extraction instructions against one unit registry.
type Extractor struct {
	reg    *units.Registry
	logger *zap.Logger
}

// Option configures an Extractor.
type Option func(e *Extractor)

// WithLogger sets the logger used for recoverable data problems.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) {
		e.logger = l
	}
}

// New returns an Extractor.
func New(reg *units.Registry, opts ...Option) *Extractor {
	e := &Extractor{reg: reg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Extract merges the columns described by spec into dst. src may be nil for
// constants-only instructions. On error dst is left untouched.
func (e *Extractor) Extract(src source.Source, dst *table.Table, spec Spec) error {
	if e.reg == nil {
		return units.ErrRegistryRequired
	}
	ts, interpolate, err := e.deduceIndex(src, dst, spec)
	if err != nil {
		return err
	}

	cols := make([]*table.Column, 0, len(spec.Columns)+len(spec.Constants))
	for _, c := range spec.Constants {
		col, err := e.constant(c, len(ts))
		if err != nil {
			return err
		}
		cols = append(cols, col)
	}
	if len(spec.Columns) > 0 && src == nil {
		return ErrNoSource
	}
	for _, c := range spec.Columns {
		extracted, err := e.columns(src, c, spec.Selector, ts, interpolate)
		if err != nil {
			return err
		}
		cols = append(cols, extracted...)
	}

	if dst.Len() == 0 && len(dst.Columns()) == 0 {
		idx := table.Index{Name: table.DefaultIndexName, Unit: e.reg.MustParse("s"), Values: ts}
		if err := dst.SetIndex(idx); err != nil {
			return err
		}
	}
	for _, col := range cols {
		if err := dst.Set(col); err != nil {
			return err
		}
	}

	return nil
}

func (e *Extractor) deduceIndex(src source.Source, dst *table.Table, spec Spec) ([]float64, bool, error) {
	switch {
	case spec.Timestamps != nil && dst.Len() > 0:
		return nil, false, &interp.AlignmentError{Err: errors.Wrapf(ErrIndexConflict, "table %q", dst.Name)}
	case spec.Timestamps != nil:
		return append([]float64(nil), spec.Timestamps...), true, nil
	case dst.Len() > 0:
		return dst.Index.Values, true, nil
	case src != nil:
		ts, err := src.Timestamps(spec.Selector)
		if err != nil {
			return nil, false, err
		}

		return ts, false, nil
	default:
		return nil, false, &interp.AlignmentError{Err: ErrNoIndex}
	}
}

func (e *Extractor) constant(c Constant, rows int) (*table.Column, error) {
	unit := units.Dimensionless
	if c.Units != "" {
		u, err := e.reg.Parse(c.Units)
		if err != nil {
			return nil, errors.Wrapf(err, "constant %q", c.As)
		}
		unit = u
	}

	var q quantity.Quantity
	switch v := c.Value.(type) {
	case float64:
		q = quantity.Scalar(v, unit)
	case int:
		q = quantity.Scalar(float64(v), unit)
	case string:
		parsed, err := quantity.ParseLiteral(e.reg, v, unit)
		if err != nil {
			return nil, errors.Wrapf(err, "constant %q", c.As)
		}
		q = parsed
	default:
		return nil, errors.Wrapf(ErrConstant, "constant %q: unsupported value %v", c.As, c.Value)
	}

	return table.ColumnFromQuantity(c.As, q.Broadcast(rows)), nil
}

func (e *Extractor) columns(src source.Source, c Column, sel source.Selector, ts []float64, interpolate bool) ([]*table.Column, error) {
	p, err := source.ParsePath(c.Key)
	if err != nil {
		return nil, err
	}
	series, err := source.Resolve(src, p, sel)
	if err != nil {
		return nil, err
	}

	out := make([]*table.Column, 0, len(series))
	for _, s := range series {
		name := table.ParseKey(c.As).Append(s.Key...).String()
		unit := e.unit(s.Unit, name)

		var col *table.Column
		switch {
		case !interpolate:
			col = &table.Column{Key: table.ParseKey(name), Unit: unit, Array: s.Array, Label: s.Label, Cells: s.Cells}
		case s.Array, s.Label:
			col = alignExact(name, unit, s, ts)
		default:
			col, err = alignLinear(name, unit, s, ts)
			if err != nil {
				return nil, err
			}
		}
		out = append(out, col)
	}

	return out, nil
}

// unit resolves a source unit. Unknown symbols are registered as
// dimensionless so that extraction proceeds.
func (e *Extractor) unit(expr, column string) units.Unit {
	u, err := e.reg.Parse(expr)
	if err == nil {
		return u
	}
	e.logger.Warn("unknown unit, treating as dimensionless",
		zap.String("column", column), zap.String("unit", expr), zap.Error(err))
	e.reg.DefineDimensionless(expr)

	return units.Unit{Symbol: expr, Scale: 1}
}

func alignLinear(name string, unit units.Unit, s source.Series, ts []float64) (*table.Column, error) {
	mag := make([]float64, len(s.Cells))
	var sigma []float64
	for _, c := range s.Cells {
		if c.Err != nil {
			sigma = make([]float64, len(s.Cells))

			break
		}
	}
	for i, c := range s.Cells {
		mag[i] = c.Mag[0]
		if sigma != nil {
			if c.Err != nil {
				sigma[i] = c.Err[0]
			} else if math.IsNaN(c.Mag[0]) {
				sigma[i] = math.NaN()
			}
		}
	}
	v, vs, err := interp.Linear(s.Coord, mag, sigma, ts)
	if err != nil {
		var aerr *interp.AlignmentError
		if errors.As(err, &aerr) {
			aerr.Series = name
		}

		return nil, err
	}

	return table.NewScalarColumn(name, unit, v, vs), nil
}

func alignExact(name string, unit units.Unit, s source.Series, ts []float64) *table.Column {
	col := &table.Column{Key: table.ParseKey(name), Unit: unit, Array: s.Array, Label: s.Label, Cells: make([]table.Cell, len(ts))}
	for i, j := range interp.Exact(s.Coord, ts) {
		if j < 0 {
			col.Cells[i] = table.Cell{Mag: []float64{math.NaN()}}

			continue
		}
		col.Cells[i] = s.Cells[j]
	}

	return col
}
