package tableio

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/pkg/errors"
	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
	"go.uber.org/zap"

	"github.com/askiada/dgflow/pkg/table"
)

// UnitsMetadataKey is the footer key holding the unit of every field.
const UnitsMetadataKey = "dgflow.units"

type parquetField struct {
	name   string
	text   bool
	values func(row int) any
}

// fieldName maps a column name onto the characters parquet field names
// accept.
func fieldName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	s := b.String()
	if s == "" || !(s[0] >= 'a' && s[0] <= 'z' || s[0] >= 'A' && s[0] <= 'Z') {
		s = "c" + s
	}

	return s
}

type fieldNames map[string]bool

func (f fieldNames) unique(name string) string {
	base := fieldName(name)
	out := base
	for i := 2; f[strings.ToLower(out)]; i++ {
		out = fmt.Sprintf("%s_%d", base, i)
	}
	f[strings.ToLower(out)] = true

	return out
}

func optional(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}

	return v
}

// WriteParquet writes the index and every selected scalar column as
// optional DOUBLE fields, plus a <name>_sigma field for columns with an
// exported uncertainty. Label columns become UTF8 fields. Array columns are
// skipped.
func (c *Codec) WriteParquet(w io.Writer, t *table.Table, opts SaveOptions) error {
	cols, err := selectColumns(t, opts.Columns)
	if err != nil {
		return err
	}
	policy := opts.Policy
	if policy == "" {
		policy = table.PolicyAbsolute
	}

	seen := fieldNames{}
	unitOf := map[string]string{}
	idxName := t.Index.Name
	if idxName == "" {
		idxName = table.DefaultIndexName
	}
	idxField := seen.unique(idxName)
	unitOf[idxField] = t.Index.Unit.Symbol
	fields := []parquetField{{name: idxField, values: func(row int) any { return optional(t.Index.Values[row]) }}}

	for _, col := range cols {
		if col.Array {
			c.logger.Warn("skipping array column in parquet export", zap.String("table", t.Name), zap.String("column", col.Name()))

			continue
		}
		col := col
		name := seen.unique(col.Name())
		unitOf[name] = col.Unit.Symbol
		if col.Label {
			fields = append(fields, parquetField{name: name, text: true, values: func(row int) any { return col.Cells[row].Label }})

			continue
		}
		fields = append(fields, parquetField{name: name, values: func(row int) any { return optional(col.Cells[row].Mag[0]) }})
		if policy == table.PolicyNone || !col.HasUncertainty() {
			continue
		}
		sigma := seen.unique(col.Name() + "_sigma")
		if policy == table.PolicyAbsolute {
			unitOf[sigma] = col.Unit.Symbol
		}
		fields = append(fields, parquetField{name: sigma, values: func(row int) any {
			cell := col.Cells[row]
			if cell.Err == nil {
				return nil
			}
			v, _ := policy.Export(cell.Mag[0], cell.Err[0])

			return optional(v)
		}})
	}

	schema, err := parquetSchema(fields)
	if err != nil {
		return err
	}
	pfw := writerfile.NewWriterFile(w)
	pw, err := writer.NewJSONWriter(schema, pfw, 4)
	if err != nil {
		return errors.Wrap(err, "unable to create parquet writer")
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	meta, err := json.Marshal(unitOf)
	if err != nil {
		return errors.Wrap(err, "unable to encode units")
	}
	value := string(meta)
	pw.Footer.KeyValueMetadata = append(pw.Footer.KeyValueMetadata, &parquet.KeyValue{Key: UnitsMetadataKey, Value: &value})

	for i := 0; i < t.Len(); i++ {
		row := make(map[string]any, len(fields))
		for _, f := range fields {
			row[f.name] = f.values(i)
		}
		b, err := json.Marshal(row)
		if err != nil {
			_ = pw.WriteStop()

			return errors.Wrapf(err, "unable to encode row %d", i)
		}
		if err := pw.Write(string(b)); err != nil {
			_ = pw.WriteStop()

			return errors.Wrapf(err, "unable to write row %d", i)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return errors.Wrap(err, "unable to finish parquet file")
	}

	return nil
}

func parquetSchema(fields []parquetField) (string, error) {
	defs := make([]map[string]string, 0, len(fields))
	for _, f := range fields {
		tag := fmt.Sprintf("name=%s, type=DOUBLE, repetitiontype=OPTIONAL", f.name)
		if f.text {
			tag = fmt.Sprintf("name=%s, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL", f.name)
		}
		defs = append(defs, map[string]string{"Tag": tag})
	}
	b, err := json.Marshal(map[string]any{
		"Tag":    "name=parquet_go_root, repetitiontype=REQUIRED",
		"Fields": defs,
	})
	if err != nil {
		return "", errors.Wrap(err, "unable to build parquet schema")
	}

	return string(b), nil
}
