package table

import (
	"math"

	"github.com/pkg/errors"

	"github.com/askiada/dgflow/pkg/quantity"
	"github.com/askiada/dgflow/pkg/units"
)

// Cell is the content of a column at one row: a single magnitude for scalar
// columns, a (possibly empty) array for array columns. Err is nil when the
// value is exact. Cells of a label column carry Label and a NaN magnitude.
type Cell struct {
	Mag   []float64
	Err   []float64
	Label string
}

// Column is a named sequence of cells sharing one unit. A label column holds
// text, such as a sample name or a key for pivoting.
type Column struct {
	Key   Key
	Unit  units.Unit
	Array bool
	Label bool
	Cells []Cell
}

// LabelCell returns the cell holding s.
func LabelCell(s string) Cell {
	return Cell{Mag: []float64{math.NaN()}, Label: s}
}

// NewLabelColumn builds a dimensionless column of text cells.
func NewLabelColumn(name string, labels []string) *Column {
	c := &Column{Key: ParseKey(name), Unit: units.Dimensionless, Label: true, Cells: make([]Cell, len(labels))}
	for i, l := range labels {
		c.Cells[i] = LabelCell(l)
	}

	return c
}

// Labels returns the text of every row.
func (c *Column) Labels() []string {
	out := make([]string, len(c.Cells))
	for i, cell := range c.Cells {
		out[i] = cell.Label
	}

	return out
}

// NewScalarColumn builds a column of scalar cells. err may be nil.
func NewScalarColumn(name string, unit units.Unit, mag, err []float64) *Column {
	c := &Column{Key: ParseKey(name), Unit: unit, Cells: make([]Cell, len(mag))}
	for i, v := range mag {
		c.Cells[i].Mag = []float64{v}
		if err != nil {
			c.Cells[i].Err = []float64{err[i]}
		}
	}

	return c
}

// NewArrayColumn builds a column whose cells are arrays; ragged rows are
// allowed. errs may be nil or hold nil rows.
func NewArrayColumn(name string, unit units.Unit, rows, errs [][]float64) *Column {
	c := &Column{Key: ParseKey(name), Unit: unit, Array: true, Cells: make([]Cell, len(rows))}
	for i, row := range rows {
		c.Cells[i].Mag = row
		if errs != nil {
			c.Cells[i].Err = errs[i]
		}
	}

	return c
}

// ColumnFromQuantity turns a row-aligned quantity into a scalar column.
func ColumnFromQuantity(name string, q quantity.Quantity) *Column {
	return NewScalarColumn(name, q.Unit, q.Mag, q.Err)
}

// Name returns the flat column name.
func (c *Column) Name() string {
	return c.Key.String()
}

// Len returns the row count.
func (c *Column) Len() int {
	return len(c.Cells)
}

// HasUncertainty reports whether any cell carries an uncertainty.
func (c *Column) HasUncertainty() bool {
	for _, cell := range c.Cells {
		if cell.Err != nil {
			return true
		}
	}

	return false
}

// Quantity returns a scalar column as one array quantity, one element per
// row. Missing uncertainties become zero when some rows carry one.
func (c *Column) Quantity() (quantity.Quantity, error) {
	if c.Array {
		return quantity.Quantity{}, errors.Wrap(ErrArrayColumn, c.Name())
	}
	if c.Label {
		return quantity.Quantity{}, errors.Wrap(ErrLabelColumn, c.Name())
	}
	mag := make([]float64, len(c.Cells))
	var unc []float64
	if c.HasUncertainty() {
		unc = make([]float64, len(c.Cells))
	}
	for i, cell := range c.Cells {
		mag[i] = cell.Mag[0]
		if unc != nil && cell.Err != nil {
			unc[i] = cell.Err[0]
		}
	}

	return quantity.NewUncertain(mag, unc, c.Unit), nil
}

// Row returns the cell at row i as a quantity: a scalar for scalar columns,
// an array for array columns.
func (c *Column) Row(i int) quantity.Quantity {
	cell := c.Cells[i]
	q := quantity.NewUncertain(cell.Mag, cell.Err, c.Unit)
	q.Scalar = !c.Array

	return q
}

// Clone returns a deep copy.
func (c *Column) Clone() *Column {
	out := &Column{Key: append(Key(nil), c.Key...), Unit: c.Unit, Array: c.Array, Label: c.Label, Cells: make([]Cell, len(c.Cells))}
	for i, cell := range c.Cells {
		out.Cells[i].Label = cell.Label
		out.Cells[i].Mag = append([]float64(nil), cell.Mag...)
		if cell.Err != nil {
			out.Cells[i].Err = append([]float64(nil), cell.Err...)
		}
	}

	return out
}

// Renamed returns a shallow copy under a new name.
func (c *Column) Renamed(name string) *Column {
	out := *c
	out.Key = ParseKey(name)

	return &out
}
