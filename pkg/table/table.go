// Package table implements the canonical in-memory table: namespaced columns
// of unit values sharing one row index, a unit per column, an uncertainty
// export policy and an append-only provenance log.
package table

import (
	"math"

	"github.com/pkg/errors"

	"github.com/askiada/dgflow/pkg/units"
)

// DefaultIndexName is the time coordinate used by extraction.
const DefaultIndexName = "uts"

// Policy selects how uncertainties are exported.
type Policy string

const (
	PolicyAbsolute Policy = "absolute"
	PolicyRelative Policy = "relative"
	PolicyNone     Policy = "none"
)

// ParsePolicy validates a policy name; the empty string means absolute.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "":
		return PolicyAbsolute, nil
	case PolicyAbsolute, PolicyRelative, PolicyNone:
		return Policy(s), nil
	default:
		return "", errors.Wrapf(ErrPolicy, "%q", s)
	}
}

// Export maps an absolute uncertainty to its exported form. The boolean is
// false when nothing should be written.
func (p Policy) Export(mag, sigma float64) (float64, bool) {
	switch p {
	case PolicyNone:
		return 0, false
	case PolicyRelative:
		if mag == 0 {
			return math.NaN(), true
		}

		return math.Abs(sigma / mag), true
	default:
		return sigma, true
	}
}

// Index is the row coordinate shared by all columns.
type Index struct {
	Name   string
	Unit   units.Unit
	Values []float64
}

// Len returns the number of rows.
func (i Index) Len() int {
	return len(i.Values)
}

// Table is the canonical table. The zero value is not usable; call New.
type Table struct {
	Name   string
	Index  Index
	Policy Policy

	columns    []*Column
	pos        map[string]int
	provenance []StepRecord
}

// New returns an empty table with no rows.
func New(name string) *Table {
	return &Table{
		Name:   name,
		Policy: PolicyAbsolute,
		pos:    make(map[string]int),
	}
}

// Len returns the row count.
func (t *Table) Len() int {
	return t.Index.Len()
}

// Empty reports whether the table has no index and no column.
func (t *Table) Empty() bool {
	return t.Index.Len() == 0 && len(t.columns) == 0
}

// SetIndex sets the row coordinate. It is refused once columns exist, since
// rows are never reordered or shrunk.
func (t *Table) SetIndex(idx Index) error {
	if len(t.columns) > 0 {
		return errors.Wrapf(ErrIndexSet, "table %q", t.Name)
	}
	t.Index = Index{Name: idx.Name, Unit: idx.Unit, Values: append([]float64(nil), idx.Values...)}

	return nil
}

// Set stores c, replacing a column with the same name in place or appending
// a new one.
func (t *Table) Set(c *Column) error {
	if c.Len() != t.Len() {
		return errors.Wrapf(ErrRowCount, "column %q has %d rows, table %q has %d", c.Name(), c.Len(), t.Name, t.Len())
	}
	name := c.Name()
	if i, ok := t.pos[name]; ok {
		t.columns[i] = c

		return nil
	}
	t.pos[name] = len(t.columns)
	t.columns = append(t.columns, c)

	return nil
}

// Delete removes a column by flat name.
func (t *Table) Delete(name string) {
	i, ok := t.pos[name]
	if !ok {
		return
	}
	t.columns = append(t.columns[:i], t.columns[i+1:]...)
	delete(t.pos, name)
	for j := i; j < len(t.columns); j++ {
		t.pos[t.columns[j].Name()] = j
	}
}

// Column returns the column with the exact flat name.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.pos[ParseKey(name).String()]
	if !ok {
		return nil, false
	}

	return t.columns[i], true
}

// Columns returns all columns in insertion order.
func (t *Table) Columns() []*Column {
	return append([]*Column(nil), t.columns...)
}

// Names returns the flat column names in insertion order.
func (t *Table) Names() []string {
	out := make([]string, len(t.columns))
	for i, c := range t.columns {
		out[i] = c.Name()
	}

	return out
}

// Units returns the unit of every column.
func (t *Table) Units() map[string]units.Unit {
	out := make(map[string]units.Unit, len(t.columns))
	for _, c := range t.columns {
		out[c.Name()] = c.Unit
	}

	return out
}

// Namespace returns the columns strictly below prefix, in insertion order.
func (t *Table) Namespace(prefix string) []*Column {
	p := ParseKey(prefix)
	var out []*Column
	for _, c := range t.columns {
		if len(c.Key) > len(p) && c.Key.HasPrefix(p) {
			out = append(out, c)
		}
	}

	return out
}

// IsNamespace reports whether at least one column lives below prefix.
func (t *Table) IsNamespace(prefix string) bool {
	return len(t.Namespace(prefix)) > 0
}

// Select resolves a name as a column or, failing that, as a namespace.
func (t *Table) Select(name string) ([]*Column, error) {
	if c, ok := t.Column(name); ok {
		return []*Column{c}, nil
	}
	if cols := t.Namespace(name); len(cols) > 0 {
		return cols, nil
	}

	return nil, errors.Wrapf(ErrUnknownColumn, "%q in table %q", name, t.Name)
}

// Record appends a provenance entry.
func (t *Table) Record(rec StepRecord) {
	t.provenance = append(t.provenance, rec)
}

// Provenance returns a copy of the provenance log.
func (t *Table) Provenance() []StepRecord {
	return append([]StepRecord(nil), t.provenance...)
}

// Clone returns a deep copy with its own provenance log.
func (t *Table) Clone(name string) *Table {
	out := New(name)
	out.Policy = t.Policy
	out.Index = Index{Name: t.Index.Name, Unit: t.Index.Unit, Values: append([]float64(nil), t.Index.Values...)}
	for _, c := range t.columns {
		out.pos[c.Name()] = len(out.columns)
		out.columns = append(out.columns, c.Clone())
	}
	out.provenance = t.Provenance()

	return out
}
