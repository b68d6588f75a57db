package source

import (
	"github.com/askiada/dgflow/pkg/table"
)

// TableSource exposes a loaded table to extraction. Paths address columns
// by key; a wildcard selects a namespace. Step selectors do not apply.
type TableSource struct {
	t *table.Table
}

var _ Source = (*TableSource)(nil)

// FromTable wraps t; the table is only read.
func FromTable(t *table.Table) *TableSource {
	return &TableSource{t: t}
}

// Table returns the wrapped table.
func (s *TableSource) Table() *table.Table {
	return s.t
}

func (s *TableSource) check(p Path, sel Selector) error {
	if sel.All() {
		return nil
	}

	return &ResolutionError{Path: p.String(), Selector: sel.String(), Err: ErrNotSupported}
}

// Timestamps returns the table index.
func (s *TableSource) Timestamps(sel Selector) ([]float64, error) {
	if err := s.check(Path{}, sel); err != nil {
		return nil, err
	}

	return append([]float64(nil), s.t.Index.Values...), nil
}

// Series returns the column named by p.
func (s *TableSource) Series(p Path, sel Selector) (Series, error) {
	if err := s.check(p, sel); err != nil {
		return Series{}, err
	}
	c, ok := s.t.Column(table.Key(p.Segments).String())
	if !ok {
		return Series{}, &ResolutionError{Path: p.String(), Selector: sel.String(), Err: ErrNoMatch}
	}
	cp := c.Clone()

	return Series{
		Path:  p.String(),
		Coord: append([]float64(nil), s.t.Index.Values...),
		Cells: cp.Cells,
		Array: c.Array,
		Label: c.Label,
		Unit:  c.Unit.Symbol,
	}, nil
}

// Children lists the distinct key segments directly below p.
func (s *TableSource) Children(p Path, sel Selector) ([]string, error) {
	if err := s.check(p, sel); err != nil {
		return nil, err
	}
	prefix := table.Key(p.Segments)
	seen := make(map[string]bool)
	var out []string
	for _, c := range s.t.Columns() {
		if len(c.Key) <= len(prefix) || !c.Key.HasPrefix(prefix) {
			continue
		}
		seg := c.Key[len(prefix)]
		if !seen[seg] {
			seen[seg] = true
			out = append(out, seg)
		}
	}

	return out, nil
}
