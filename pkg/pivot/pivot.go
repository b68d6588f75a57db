// Package pivot regroups table rows by the distinct values of key columns.
//
// The output has one row per distinct key tuple, in order of first
// appearance. Aggregated columns hold, per group, the array of the group's
// values in original row order; groups may differ in size and are never
// padded.
package pivot

import (
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/askiada/dgflow/pkg/table"
)

var (
	ErrNoKeys       = errors.New("at least one key column is required")
	ErrKeyColumn    = errors.New("key column must hold scalar cells")
	ErrNestedArray  = errors.New("cannot aggregate a column that already holds arrays")
	ErrLabels       = errors.New("cannot aggregate a label column")
	ErrTimestampOpt = errors.New("timestamp must be one of first, last, mean")
)

// Timestamp modes for the output index.
const (
	TimestampFirst = "first"
	TimestampLast  = "last"
	TimestampMean  = "mean"
)

// Spec is one pivot instruction. A nil Columns aggregates every non-key
// numeric column.
type Spec struct {
	Using     []string
	Columns   []string
	Timestamp string
}

type group struct {
	rows []int
}

// Pivot builds a new table named name from src.
func Pivot(src *table.Table, name string, spec Spec) (*table.Table, error) {
	if len(spec.Using) == 0 {
		return nil, ErrNoKeys
	}
	mode := spec.Timestamp
	if mode == "" {
		mode = TimestampFirst
	}
	if mode != TimestampFirst && mode != TimestampLast && mode != TimestampMean {
		return nil, errors.Wrapf(ErrTimestampOpt, "%q", spec.Timestamp)
	}

	keys := make([]*table.Column, len(spec.Using))
	isKey := make(map[string]bool, len(spec.Using))
	for i, k := range spec.Using {
		c, ok := src.Column(k)
		if !ok {
			return nil, errors.Wrapf(table.ErrUnknownColumn, "key %q", k)
		}
		if c.Array {
			return nil, errors.Wrapf(ErrKeyColumn, "%q", k)
		}
		keys[i] = c
		isKey[c.Name()] = true
	}

	aggregated, err := selectColumns(src, spec.Columns, isKey)
	if err != nil {
		return nil, err
	}

	groups := groupRows(src.Len(), keys)

	out := table.New(name)
	out.Policy = src.Policy
	idx := table.Index{Name: src.Index.Name, Unit: src.Index.Unit, Values: make([]float64, len(groups))}
	for i, g := range groups {
		idx.Values[i] = coordinate(src.Index.Values, g.rows, mode)
	}
	if err := out.SetIndex(idx); err != nil {
		return nil, err
	}

	for _, k := range keys {
		col := &table.Column{Key: k.Key, Unit: k.Unit, Label: k.Label, Cells: make([]table.Cell, len(groups))}
		for i, g := range groups {
			col.Cells[i] = k.Cells[g.rows[0]]
		}
		if err := out.Set(col); err != nil {
			return nil, err
		}
	}
	for _, c := range aggregated {
		if err := out.Set(aggregate(c, groups)); err != nil {
			return nil, err
		}
	}
	for _, rec := range src.Provenance() {
		out.Record(rec)
	}

	return out, nil
}

func selectColumns(src *table.Table, names []string, isKey map[string]bool) ([]*table.Column, error) {
	var cols []*table.Column
	if names == nil {
		cols = src.Columns()
	} else {
		for _, n := range names {
			sel, err := src.Select(n)
			if err != nil {
				return nil, err
			}
			cols = append(cols, sel...)
		}
	}
	out := make([]*table.Column, 0, len(cols))
	for _, c := range cols {
		if isKey[c.Name()] {
			continue
		}
		if c.Array {
			return nil, errors.Wrapf(ErrNestedArray, "%q", c.Name())
		}
		if c.Label {
			if names == nil {
				continue
			}

			return nil, errors.Wrapf(ErrLabels, "%q", c.Name())
		}
		out = append(out, c)
	}

	return out, nil
}

// groupRows assigns rows to key tuples in first-appearance order. Numeric
// keys are compared bitwise after folding -0 onto 0, so that NaN keys form a
// group of their own. Label keys are compared as text.
func groupRows(n int, keys []*table.Column) []*group {
	var (
		order []*group
		index = make(map[string]*group)
		sb    strings.Builder
	)
	for r := 0; r < n; r++ {
		sb.Reset()
		for _, k := range keys {
			if k.Label {
				l := k.Cells[r].Label
				sb.WriteString(strconv.Itoa(len(l)))
				sb.WriteByte(':')
				sb.WriteString(l)

				continue
			}
			v := k.Cells[r].Mag[0]
			switch {
			case math.IsNaN(v):
				v = math.NaN()
			case v == 0:
				v = 0
			}
			bits := math.Float64bits(v)
			for s := 0; s < 64; s += 8 {
				sb.WriteByte(byte(bits >> s))
			}
		}
		id := sb.String()
		g, ok := index[id]
		if !ok {
			g = &group{}
			index[id] = g
			order = append(order, g)
		}
		g.rows = append(g.rows, r)
	}

	return order
}

func coordinate(values []float64, rows []int, mode string) float64 {
	switch mode {
	case TimestampLast:
		return values[rows[len(rows)-1]]
	case TimestampMean:
		sum := 0.0
		for _, r := range rows {
			sum += values[r]
		}

		return sum / float64(len(rows))
	default:
		return values[rows[0]]
	}
}

func aggregate(c *table.Column, groups []*group) *table.Column {
	out := &table.Column{Key: c.Key, Unit: c.Unit, Array: true, Cells: make([]table.Cell, len(groups))}
	uncertain := c.HasUncertainty()
	for i, g := range groups {
		cell := table.Cell{Mag: make([]float64, len(g.rows))}
		if uncertain {
			cell.Err = make([]float64, len(g.rows))
		}
		for j, r := range g.rows {
			cell.Mag[j] = c.Cells[r].Mag[0]
			if uncertain && c.Cells[r].Err != nil {
				cell.Err[j] = c.Cells[r].Err[0]
			}
		}
		out.Cells[i] = cell
	}

	return out
}
