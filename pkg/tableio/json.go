package tableio

import (
	"encoding/json"
	"io"
	"math"
	"strconv"

	"github.com/pkg/errors"

	"github.com/askiada/dgflow/pkg/table"
)

// number is a float64 that encodes NaN and infinities as null.
type number float64

func (n number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}

	return strconv.AppendFloat(nil, f, 'g', -1, 64), nil
}

func (n *number) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*n = number(math.NaN())

		return nil
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return errors.Wrapf(ErrDocument, "invalid number %s", b)
	}
	*n = number(f)

	return nil
}

func numbers(f []float64) []number {
	if f == nil {
		return nil
	}
	out := make([]number, len(f))
	for i, v := range f {
		out[i] = number(v)
	}

	return out
}

func floats(n []number) []float64 {
	if n == nil {
		return nil
	}
	out := make([]float64, len(n))
	for i, v := range n {
		out[i] = float64(v)
	}

	return out
}

type indexDoc struct {
	Name   string   `json:"name"`
	Unit   string   `json:"unit"`
	Values []number `json:"values"`
}

// columnDoc holds every cell as an array; scalar cells have one element.
// Sigma is omitted for exact columns and holds null for exact cells. Label
// columns carry Labels instead of Data.
type columnDoc struct {
	Key    []string   `json:"key"`
	Unit   string     `json:"unit"`
	Array  bool       `json:"array,omitempty"`
	Label  bool       `json:"label,omitempty"`
	Data   [][]number `json:"data,omitempty"`
	Labels []string   `json:"labels,omitempty"`
	Sigma  [][]number `json:"sigma,omitempty"`
}

type tableDoc struct {
	Name        string             `json:"name"`
	Uncertainty table.Policy       `json:"uncertainty"`
	Index       indexDoc           `json:"index"`
	Columns     []columnDoc        `json:"columns"`
	Provenance  []table.StepRecord `json:"provenance,omitempty"`
}

// WriteJSON writes t in the native format.
func (c *Codec) WriteJSON(w io.Writer, t *table.Table, opts SaveOptions) error {
	cols, err := selectColumns(t, opts.Columns)
	if err != nil {
		return err
	}
	policy := opts.Policy
	if policy == "" {
		policy = table.PolicyAbsolute
	}
	doc := tableDoc{
		Name:        t.Name,
		Uncertainty: policy,
		Index:       indexDoc{Name: t.Index.Name, Unit: t.Index.Unit.Symbol, Values: numbers(t.Index.Values)},
		Columns:     make([]columnDoc, 0, len(cols)),
		Provenance:  t.Provenance(),
	}
	for _, col := range cols {
		if col.Label {
			doc.Columns = append(doc.Columns, columnDoc{Key: col.Key, Unit: col.Unit.Symbol, Label: true, Labels: col.Labels()})

			continue
		}
		cd := columnDoc{Key: col.Key, Unit: col.Unit.Symbol, Array: col.Array, Data: make([][]number, col.Len())}
		exported := policy != table.PolicyNone && col.HasUncertainty()
		if exported {
			cd.Sigma = make([][]number, col.Len())
		}
		for i, cell := range col.Cells {
			cd.Data[i] = numbers(cell.Mag)
			if !exported || cell.Err == nil {
				continue
			}
			sig := make([]number, len(cell.Err))
			for j, e := range cell.Err {
				v, _ := policy.Export(cell.Mag[j], e)
				sig[j] = number(v)
			}
			cd.Sigma[i] = sig
		}
		doc.Columns = append(doc.Columns, cd)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return errors.Wrap(err, "unable to encode table")
	}

	return nil
}

// ReadJSON reads a table in the native format. Relative uncertainties are
// converted back to absolute ones.
func (c *Codec) ReadJSON(r io.Reader, name string) (*table.Table, error) {
	var doc tableDoc
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Wrap(ErrDocument, err.Error())
	}
	policy, err := table.ParsePolicy(string(doc.Uncertainty))
	if err != nil {
		return nil, errors.Wrap(ErrDocument, err.Error())
	}

	t := table.New(name)
	idxUnit, err := c.reg.Parse(doc.Index.Unit)
	if err != nil {
		return nil, errors.Wrap(err, "index")
	}
	if err := t.SetIndex(table.Index{Name: doc.Index.Name, Unit: idxUnit, Values: floats(doc.Index.Values)}); err != nil {
		return nil, err
	}
	for _, cd := range doc.Columns {
		col, err := c.columnFromDoc(cd, policy)
		if err != nil {
			return nil, err
		}
		if err := t.Set(col); err != nil {
			return nil, errors.Wrap(ErrDocument, err.Error())
		}
	}
	for _, rec := range doc.Provenance {
		t.Record(rec)
	}

	return t, nil
}

func (c *Codec) columnFromDoc(cd columnDoc, policy table.Policy) (*table.Column, error) {
	key := table.Key(cd.Key)
	if len(key) == 0 {
		return nil, errors.Wrap(ErrDocument, "column without key")
	}
	u, err := c.reg.Parse(cd.Unit)
	if err != nil {
		return nil, errors.Wrapf(err, "column %q", key.String())
	}
	if cd.Label {
		if cd.Array || cd.Data != nil {
			return nil, errors.Wrapf(ErrDocument, "label column %q carries values", key.String())
		}
		col := table.NewLabelColumn(key.String(), cd.Labels)
		col.Key, col.Unit = key, u

		return col, nil
	}
	if cd.Sigma != nil && len(cd.Sigma) != len(cd.Data) {
		return nil, errors.Wrapf(ErrDocument, "column %q has %d sigma rows for %d data rows", key.String(), len(cd.Sigma), len(cd.Data))
	}
	col := &table.Column{Key: key, Unit: u, Array: cd.Array, Cells: make([]table.Cell, len(cd.Data))}
	for i, row := range cd.Data {
		if !cd.Array && len(row) != 1 {
			return nil, errors.Wrapf(ErrDocument, "scalar column %q has %d values at row %d", key.String(), len(row), i)
		}
		col.Cells[i].Mag = floats(row)
		if cd.Sigma == nil || cd.Sigma[i] == nil {
			continue
		}
		if len(cd.Sigma[i]) != len(row) {
			return nil, errors.Wrapf(ErrDocument, "column %q has mismatched sigma at row %d", key.String(), i)
		}
		sig := floats(cd.Sigma[i])
		if policy == table.PolicyRelative {
			for j := range sig {
				sig[j] = math.Abs(sig[j] * float64(row[j]))
			}
		}
		col.Cells[i].Err = sig
	}

	return col, nil
}
