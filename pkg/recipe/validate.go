package recipe

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/askiada/dgflow/pkg/pivot"
	"github.com/askiada/dgflow/pkg/table"
)

// Stage names in execution order.
const (
	StageLoad      = "load"
	StageExtract   = "extract"
	StagePivot     = "pivot"
	StageTransform = "transform"
	StagePlot      = "plot"
	StageSave      = "save"
)

// Save types.
const (
	FormatJSON    = "json"
	FormatCSV     = "csv"
	FormatParquet = "parquet"
)

// Plot series kinds.
const (
	KindScatter  = "scatter"
	KindLine     = "line"
	KindErrorbar = "errorbar"
)

// Empty reports whether the recipe has no instruction at all.
func (r *Recipe) Empty() bool {
	return len(r.Load)+len(r.Extract)+len(r.Pivot)+len(r.Transform)+len(r.Plot)+len(r.Save) == 0
}

// Validate checks every instruction and returns the first problem found.
func (r *Recipe) Validate() error {
	if r.Empty() {
		return &SchemaError{Stage: "document", Index: -1, Err: ErrNoStages}
	}
	for i, l := range r.Load {
		if err := l.validate(); err != nil {
			return locate(StageLoad, i, err)
		}
	}
	for i, e := range r.Extract {
		if err := e.validate(); err != nil {
			return locate(StageExtract, i, err)
		}
	}
	for i, p := range r.Pivot {
		if err := p.validate(); err != nil {
			return locate(StagePivot, i, err)
		}
	}
	for i, t := range r.Transform {
		if err := t.validate(); err != nil {
			return locate(StageTransform, i, err)
		}
	}
	for i, p := range r.Plot {
		if err := p.validate(); err != nil {
			return locate(StagePlot, i, err)
		}
	}
	for i, s := range r.Save {
		if err := s.validate(); err != nil {
			return locate(StageSave, i, err)
		}
	}

	return nil
}

// fieldError is a SchemaError not yet located in a stage.
type fieldError struct {
	field string
	err   error
}

func (e *fieldError) Error() string {
	return e.field + ": " + e.err.Error()
}

func invalid(field string, err error) error {
	return &fieldError{field: field, err: err}
}

func locate(stage string, index int, err error) error {
	var fe *fieldError
	if errors.As(err, &fe) {
		return &SchemaError{Stage: stage, Index: index, Field: fe.field, Err: fe.err}
	}

	return &SchemaError{Stage: stage, Index: index, Err: err}
}

func fieldAt(list string, i int, field string) string {
	return list + "[" + strconv.Itoa(i) + "]." + field
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return invalid(field, ErrRequired)
	}

	return nil
}

func oneOf(field, value string, allowed ...string) error {
	if value == "" {
		return nil
	}
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}

	return invalid(field, errors.Wrapf(ErrInvalidValue, "%q, expected one of %s", value, strings.Join(allowed, ", ")))
}

func (l Load) validate() error {
	if err := required("as", l.As); err != nil {
		return err
	}
	if err := required("path", l.Path); err != nil {
		return err
	}

	return oneOf("type", l.Type, TypeDatagram, TypeTable)
}

func (e Extract) validate() error {
	if err := required("into", e.Into); err != nil {
		return err
	}
	if len(e.Columns) == 0 && len(e.Constants) == 0 {
		return invalid("columns", ErrRequired)
	}
	if len(e.Columns) > 0 && e.From == "" {
		return invalid("from", ErrRequired)
	}
	if e.At != nil {
		if err := e.At.validate(); err != nil {
			return err
		}
	}
	for i, c := range e.Columns {
		if err := required(fieldAt("columns", i, "key"), c.Key); err != nil {
			return err
		}
		if err := required(fieldAt("columns", i, "as"), c.As); err != nil {
			return err
		}
	}
	for i, c := range e.Constants {
		if c.Value == nil {
			return invalid(fieldAt("constants", i, "value"), ErrRequired)
		}
		if err := required(fieldAt("constants", i, "as"), c.As); err != nil {
			return err
		}
	}

	return nil
}

func (a *At) validate() error {
	byTag := a.Step != "" || len(a.Steps) > 0
	byIndex := a.Index != nil || len(a.Indices) > 0
	if byTag && byIndex {
		return invalid("at", errors.Wrap(ErrExclusive, "step(s) and index(es)"))
	}
	if a.Step != "" && len(a.Steps) > 0 {
		return invalid("at", errors.Wrap(ErrExclusive, "step and steps"))
	}
	if a.Index != nil && len(a.Indices) > 0 {
		return invalid("at", errors.Wrap(ErrExclusive, "index and indices"))
	}
	for i := 1; i < len(a.Timestamps); i++ {
		if a.Timestamps[i] < a.Timestamps[i-1] {
			return invalid("at.timestamps", errors.Wrap(ErrInvalidValue, "timestamps must be ascending"))
		}
	}

	return nil
}

func (p Pivot) validate() error {
	if err := required("table", p.Table); err != nil {
		return err
	}
	if err := required("as", p.As); err != nil {
		return err
	}
	if len(p.Using) == 0 {
		return invalid("using", ErrRequired)
	}

	return oneOf("timestamp", p.Timestamp, pivot.TimestampFirst, pivot.TimestampLast, pivot.TimestampMean)
}

func (t Transform) validate() error {
	if err := required("table", t.Table); err != nil {
		return err
	}
	if err := required("with", t.With); err != nil {
		return err
	}
	if len(t.Using) == 0 {
		return invalid("using", ErrRequired)
	}

	return nil
}

func (p Plot) validate() error {
	if err := required("table", p.Table); err != nil {
		return err
	}
	if p.NRows < 0 || p.NCols < 0 {
		return invalid("nrows", errors.Wrap(ErrInvalidValue, "grid size must be positive"))
	}
	if len(p.AxArgs) == 0 {
		return invalid("ax_args", ErrRequired)
	}
	nrows, ncols := p.Grid()
	for i, ax := range p.AxArgs {
		if len(ax.Series) == 0 {
			return invalid(fieldAt("ax_args", i, "series"), ErrRequired)
		}
		series := fieldAt("ax_args", i, "series")
		for j, s := range ax.Series {
			if strings.TrimSpace(s.Y) == "" {
				return invalid(series+"["+strconv.Itoa(j)+"].y", ErrRequired)
			}
			if err := oneOf(series+"["+strconv.Itoa(j)+"].kind", s.Kind, KindScatter, KindLine, KindErrorbar); err != nil {
				return err
			}
		}
		if err := checkSpan(fieldAt("ax_args", i, "rows"), ax.Rows, nrows); err != nil {
			return err
		}
		if err := checkSpan(fieldAt("ax_args", i, "cols"), ax.Cols, ncols); err != nil {
			return err
		}
	}
	if p.Save != nil {
		if err := required("save.as", p.Save.As); err != nil {
			return err
		}
	}

	return nil
}

// Grid returns the figure grid size, one cell by default.
func (p Plot) Grid() (int, int) {
	nrows, ncols := p.NRows, p.NCols
	if nrows == 0 {
		nrows = 1
	}
	if ncols == 0 {
		ncols = 1
	}

	return nrows, ncols
}

// Span returns the [first, last) cells covered by a rows or cols entry.
func Span(s []int) (int, int) {
	switch len(s) {
	case 0:
		return 0, 1
	case 1:
		return s[0], s[0] + 1
	default:
		return s[0], s[1]
	}
}

func checkSpan(field string, s []int, n int) error {
	if len(s) > 2 {
		return invalid(field, errors.Wrap(ErrInvalidValue, "span takes at most two values"))
	}
	first, last := Span(s)
	if first < 0 || last > n || first >= last {
		return invalid(field, errors.Wrapf(ErrInvalidValue, "span %v outside a grid of %d", s, n))
	}

	return nil
}

func (s Save) validate() error {
	if err := required("table", s.Table); err != nil {
		return err
	}
	if err := required("as", s.As); err != nil {
		return err
	}
	if err := oneOf("type", s.Type, FormatJSON, FormatCSV, FormatParquet); err != nil {
		return err
	}
	if s.Type == "" {
		if _, err := s.Format(); err != nil {
			return invalid("type", err)
		}
	}
	if _, err := table.ParsePolicy(s.Uncertainty); err != nil {
		return invalid("uncertainty", err)
	}

	return nil
}

// Format returns the save type, inferred from the file extension when not
// given.
func (s Save) Format() (string, error) {
	if s.Type != "" {
		return s.Type, nil
	}
	lower := strings.ToLower(s.As)
	for _, f := range []string{FormatJSON, FormatCSV, FormatParquet} {
		if strings.HasSuffix(lower, "."+f) {
			return f, nil
		}
	}

	return "", errors.Wrapf(ErrInvalidValue, "cannot infer type of %q", s.As)
}

// Policy returns the uncertainty export policy. A false sigma forces none.
func (s Save) Policy() table.Policy {
	if !s.KeepSigma() {
		return table.PolicyNone
	}
	p, err := table.ParsePolicy(s.Uncertainty)
	if err != nil {
		return table.PolicyAbsolute
	}

	return p
}
