package tableio

import (
	"encoding/csv"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/askiada/dgflow/pkg/table"
	"github.com/askiada/dgflow/pkg/units"
)

const plusMinus = "±"

var headerUnit = regexp.MustCompile(`^(.*?)\s*\[([^\[\]]*)\]$`)

func header(name string, u units.Unit) string {
	if u.Symbol == "" {
		return name
	}

	return name + " [" + u.Symbol + "]"
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// formatValue writes mag, followed by the exported uncertainty when there is
// one. Relative uncertainties are written in percent.
func formatValue(mag float64, sigma []float64, j int, policy table.Policy) string {
	s := formatFloat(mag)
	if sigma == nil {
		return s
	}
	e, ok := policy.Export(mag, sigma[j])
	if !ok {
		return s
	}
	if policy == table.PolicyRelative {
		return s + plusMinus + formatFloat(e*100) + "%"
	}

	return s + plusMinus + formatFloat(e)
}

func formatCell(cell table.Cell, col *table.Column, policy table.Policy) string {
	if col.Label {
		return cell.Label
	}
	if !col.Array {
		return formatValue(cell.Mag[0], cell.Err, 0, policy)
	}
	parts := make([]string, len(cell.Mag))
	for j, m := range cell.Mag {
		parts[j] = formatValue(m, cell.Err, j, policy)
	}

	return "[" + strings.Join(parts, " ") + "]"
}

// WriteCSV writes the index then the selected columns, one row per line.
func (c *Codec) WriteCSV(w io.Writer, t *table.Table, opts SaveOptions) error {
	cols, err := selectColumns(t, opts.Columns)
	if err != nil {
		return err
	}
	policy := opts.Policy
	if policy == "" {
		policy = table.PolicyAbsolute
	}

	cw := csv.NewWriter(w)
	head := make([]string, 0, len(cols)+1)
	head = append(head, header(t.Index.Name, t.Index.Unit))
	for _, col := range cols {
		head = append(head, header(col.Name(), col.Unit))
	}
	if err := cw.Write(head); err != nil {
		return errors.Wrap(err, "unable to write header")
	}
	for i := 0; i < t.Len(); i++ {
		rec := make([]string, 0, len(cols)+1)
		rec = append(rec, formatFloat(t.Index.Values[i]))
		for _, col := range cols {
			rec = append(rec, formatCell(col.Cells[i], col, policy))
		}
		if err := cw.Write(rec); err != nil {
			return errors.Wrapf(err, "unable to write row %d", i)
		}
	}
	cw.Flush()

	return errors.Wrap(cw.Error(), "unable to flush csv")
}

func parseValue(s string) (float64, float64, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN(), 0, false, nil
	}
	mag, unc, found := strings.Cut(s, plusMinus)
	if !found {
		mag, unc, found = strings.Cut(s, "+/-")
	}
	m, err := strconv.ParseFloat(strings.TrimSpace(mag), 64)
	if err != nil {
		return 0, 0, false, errors.Wrapf(ErrDocument, "invalid value %q", s)
	}
	if !found {
		return m, 0, false, nil
	}
	unc = strings.TrimSpace(unc)
	relative := strings.HasSuffix(unc, "%")
	e, err := strconv.ParseFloat(strings.TrimSuffix(unc, "%"), 64)
	if err != nil {
		return 0, 0, false, errors.Wrapf(ErrDocument, "invalid uncertainty %q", s)
	}
	if relative {
		e = math.Abs(e / 100 * m)
	}

	return m, e, true, nil
}

func parseCell(s string) (table.Cell, bool, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") {
		m, e, ok, err := parseValue(s)
		if err != nil {
			return table.Cell{}, false, err
		}
		cell := table.Cell{Mag: []float64{m}}
		if ok {
			cell.Err = []float64{e}
		}

		return cell, false, nil
	}
	if !strings.HasSuffix(s, "]") {
		return table.Cell{}, true, errors.Wrapf(ErrDocument, "unterminated array %q", s)
	}
	fields := strings.Fields(s[1 : len(s)-1])
	cell := table.Cell{Mag: make([]float64, len(fields))}
	for j, f := range fields {
		m, e, ok, err := parseValue(f)
		if err != nil {
			return table.Cell{}, true, err
		}
		cell.Mag[j] = m
		if ok {
			if cell.Err == nil {
				cell.Err = make([]float64, len(fields))
			}
			cell.Err[j] = e
		}
	}

	return cell, true, nil
}

// ReadCSV reads a table whose first column is the index. Headers may carry
// a unit as "name [unit]".
func (c *Codec) ReadCSV(r io.Reader, name string) (*table.Table, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, errors.Wrap(ErrDocument, err.Error())
	}
	if len(records) == 0 || len(records[0]) == 0 {
		return nil, errors.Wrap(ErrDocument, "missing header")
	}
	head := records[0]
	rows := records[1:]

	names := make([]string, len(head))
	unitsOf := make([]units.Unit, len(head))
	for j, h := range head {
		names[j] = strings.TrimSpace(h)
		sym := ""
		if m := headerUnit.FindStringSubmatch(names[j]); m != nil {
			names[j], sym = m[1], m[2]
		}
		if unitsOf[j], err = c.reg.Parse(sym); err != nil {
			return nil, errors.Wrapf(err, "column %q", names[j])
		}
	}

	t := table.New(name)
	idx := table.Index{Name: names[0], Unit: unitsOf[0], Values: make([]float64, len(rows))}
	for i, rec := range rows {
		if len(rec) != len(head) {
			return nil, errors.Wrapf(ErrDocument, "row %d has %d fields, expected %d", i, len(rec), len(head))
		}
		v, _, _, err := parseValue(rec[0])
		if err != nil {
			return nil, errors.Wrapf(err, "row %d", i)
		}
		idx.Values[i] = v
	}
	if err := t.SetIndex(idx); err != nil {
		return nil, err
	}

	for j := 1; j < len(head); j++ {
		var col *table.Column
		if isLabelColumn(rows, j) {
			labels := make([]string, len(rows))
			for i, rec := range rows {
				labels[i] = rec[j]
			}
			col = table.NewLabelColumn(names[j], labels)
			col.Unit = unitsOf[j]
		} else {
			col = &table.Column{Key: table.ParseKey(names[j]), Unit: unitsOf[j], Cells: make([]table.Cell, len(rows))}
			for i, rec := range rows {
				cell, array, err := parseCell(rec[j])
				if err != nil {
					return nil, errors.Wrapf(err, "column %q row %d", names[j], i)
				}
				col.Array = col.Array || array
				col.Cells[i] = cell
			}
		}
		if err := t.Set(col); err != nil {
			return nil, err
		}
	}

	return t, nil
}

// isLabelColumn reports whether field j holds text: no cell is an array and
// at least one non-empty cell does not read as a value.
func isLabelColumn(rows [][]string, j int) bool {
	text := false
	for _, rec := range rows {
		s := strings.TrimSpace(rec[j])
		if strings.HasPrefix(s, "[") {
			return false
		}
		if _, _, _, err := parseValue(s); err != nil {
			text = true
		}
	}

	return text
}
