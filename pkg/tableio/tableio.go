// Package tableio reads and writes tables.
//
// The native JSON format keeps units, namespaces, uncertainties and
// provenance and round-trips through Load. CSV carries units in the headers
// and uncertainties in the cells. Parquet is write-only.
package tableio

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/askiada/dgflow/pkg/table"
	"github.com/askiada/dgflow/pkg/units"
)

// Formats.
const (
	JSON    = "json"
	CSV     = "csv"
	Parquet = "parquet"
)

var (
	ErrFormat   = errors.New("unsupported table format")
	ErrDocument = errors.New("malformed table document")
)

// SaveOptions selects what is written. A nil Columns writes every column.
type SaveOptions struct {
	Format  string
	Columns []string
	Policy  table.Policy
}

// Codec loads and saves tables against one unit registry.
type Codec struct {
	reg    *units.Registry
	logger *zap.Logger
}

// Option configures a Codec.
type Option func(c *Codec)

// WithLogger sets the logger used to report skipped data.
func WithLogger(l *zap.Logger) Option {
	return func(c *Codec) {
		c.logger = l
	}
}

// New returns a Codec.
func New(reg *units.Registry, opts ...Option) *Codec {
	c := &Codec{reg: reg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// FormatOf infers the format from the file extension.
func FormatOf(path string) (string, error) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case JSON:
		return JSON, nil
	case CSV:
		return CSV, nil
	case Parquet, "pq":
		return Parquet, nil
	default:
		return "", errors.Wrapf(ErrFormat, "cannot infer format of %q", path)
	}
}

// Load reads the table at path and names it name.
func (c *Codec) Load(path, name string) (*table.Table, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open table %q", path)
	}
	defer f.Close()

	var t *table.Table
	switch format {
	case JSON:
		t, err = c.ReadJSON(f, name)
	case CSV:
		t, err = c.ReadCSV(f, name)
	default:
		return nil, errors.Wrapf(ErrFormat, "%s tables cannot be loaded", format)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "unable to load table %q", path)
	}

	return t, nil
}

// Save writes t to path, creating parent directories. The table is written
// to a temporary file renamed into place, so a failed save leaves any
// previous file at path untouched.
func (c *Codec) Save(path string, t *table.Table, opts SaveOptions) (err error) {
	if opts.Format == "" {
		if opts.Format, err = FormatOf(path); err != nil {
			return err
		}
	}
	if opts.Policy == "" {
		opts.Policy = t.Policy
	}
	var write func(f *os.File) error
	switch opts.Format {
	case JSON:
		write = func(f *os.File) error { return c.WriteJSON(f, t, opts) }
	case CSV:
		write = func(f *os.File) error { return c.WriteCSV(f, t, opts) }
	case Parquet:
		write = func(f *os.File) error { return c.WriteParquet(f, t, opts) }
	default:
		return errors.Wrapf(ErrFormat, "%q", opts.Format)
	}
	if _, err := selectColumns(t, opts.Columns); err != nil {
		return errors.Wrapf(err, "unable to save table %q to %q", t.Name, path)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "unable to create %q", dir)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrapf(err, "unable to create %q", path)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(f.Name())
		}
	}()

	if err := write(f); err != nil {
		_ = f.Close()

		return errors.Wrapf(err, "unable to save table %q to %q", t.Name, path)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "unable to close %q", path)
	}
	if err := os.Chmod(f.Name(), 0o644); err != nil {
		return errors.Wrapf(err, "unable to set mode of %q", path)
	}
	if err := os.Rename(f.Name(), path); err != nil {
		return errors.Wrapf(err, "unable to move table into %q", path)
	}

	return nil
}

// selectColumns expands names (columns or namespaces) in order, once each.
func selectColumns(t *table.Table, names []string) ([]*table.Column, error) {
	if names == nil {
		return t.Columns(), nil
	}
	seen := map[string]bool{}
	var out []*table.Column
	for _, n := range names {
		cols, err := t.Select(n)
		if err != nil {
			return nil, err
		}
		for _, c := range cols {
			if seen[c.Name()] {
				continue
			}
			seen[c.Name()] = true
			out = append(out, c)
		}
	}

	return out, nil
}
