// Package recipe holds the typed form of a recipe document and its parser.
//
// A recipe lists, per stage, the instructions to execute. YAML and JSON
// documents are both read with the YAML decoder; unknown keys are rejected.
package recipe

import (
	"bytes"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/askiada/dgflow/pkg/source"
)

// Recipe is a parsed recipe document.
type Recipe struct {
	Version   string      `yaml:"version,omitempty"`
	Load      []Load      `yaml:"load,omitempty"`
	Extract   []Extract   `yaml:"extract,omitempty"`
	Pivot     []Pivot     `yaml:"pivot,omitempty"`
	Transform []Transform `yaml:"transform,omitempty"`
	Plot      []Plot      `yaml:"plot,omitempty"`
	Save      []Save      `yaml:"save,omitempty"`
}

const (
	TypeDatagram = "datagram"
	TypeTable    = "table"
)

// Load reads a datagram or a table from Path and names it As.
type Load struct {
	As    string `yaml:"as"`
	Path  string `yaml:"path"`
	Type  string `yaml:"type,omitempty"`
	Check *bool  `yaml:"check,omitempty"`
}

// Kind returns the load type, datagram by default.
func (l Load) Kind() string {
	if l.Type == "" {
		return TypeDatagram
	}

	return l.Type
}

// Checked reports whether the datagram structure must be validated.
func (l Load) Checked() bool {
	return l.Check == nil || *l.Check
}

// List is a list of strings written either as a sequence or as one
// comma separated scalar.
type List []string

func (l *List) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*l = nil
		for _, part := range strings.Split(node.Value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				*l = append(*l, part)
			}
		}

		return nil
	}
	var out []string
	if err := node.Decode(&out); err != nil {
		return err
	}
	*l = out

	return nil
}

// IntList is List for integers.
type IntList []int

func (l *IntList) UnmarshalYAML(node *yaml.Node) error {
	var raw List
	if err := raw.UnmarshalYAML(node); err != nil {
		return err
	}
	out := make(IntList, 0, len(raw))
	for _, s := range raw {
		v, err := strconv.Atoi(s)
		if err != nil {
			return errors.Wrapf(err, "line %d", node.Line)
		}
		out = append(out, v)
	}
	*l = out

	return nil
}

// At selects the rows of a source.
type At struct {
	Step       string    `yaml:"step,omitempty"`
	Steps      List      `yaml:"steps,omitempty"`
	Index      *int      `yaml:"index,omitempty"`
	Indices    IntList   `yaml:"indices,omitempty"`
	Timestamps []float64 `yaml:"timestamps,omitempty"`
}

// Selector returns the step selector: tags first, then indices.
func (a *At) Selector() source.Selector {
	if a == nil {
		return source.Selector{}
	}
	var sel source.Selector
	tags := append([]string(nil), a.Steps...)
	if a.Step != "" {
		tags = append([]string{a.Step}, tags...)
	}
	for _, tag := range tags {
		sel.Refs = append(sel.Refs, source.StepRef{Tag: tag, ByTag: true})
	}
	idx := append([]int(nil), a.Indices...)
	if a.Index != nil {
		idx = append([]int{*a.Index}, idx...)
	}
	for _, i := range idx {
		sel.Refs = append(sel.Refs, source.StepRef{Index: i})
	}

	return sel
}

// Column copies the series at Key into column As.
type Column struct {
	Key string `yaml:"key"`
	As  string `yaml:"as"`
}

// Constant fills column As with Value on every row.
type Constant struct {
	Value any    `yaml:"value"`
	As    string `yaml:"as"`
	Units string `yaml:"units,omitempty"`
}

// Extract builds or extends table Into from the object From.
type Extract struct {
	Into      string     `yaml:"into"`
	From      string     `yaml:"from,omitempty"`
	At        *At        `yaml:"at,omitempty"`
	Columns   []Column   `yaml:"columns,omitempty"`
	Constants []Constant `yaml:"constants,omitempty"`
}

// Pivot groups the rows of Table by the Using columns into table As.
type Pivot struct {
	Table     string   `yaml:"table"`
	As        string   `yaml:"as"`
	Using     List     `yaml:"using"`
	Columns   []string `yaml:"columns,omitempty"`
	Timestamp string   `yaml:"timestamp,omitempty"`
}

// Transform applies transform With to Table once per binding.
type Transform struct {
	Table string           `yaml:"table"`
	With  string           `yaml:"with"`
	Using []map[string]any `yaml:"using"`
}

// Series is one line of an axes.
type Series struct {
	Y     string `yaml:"y"`
	X     string `yaml:"x,omitempty"`
	Kind  string `yaml:"kind,omitempty"`
	Label string `yaml:"label,omitempty"`
}

// Axes is one panel of a figure. Rows and Cols are [first, last) spans of
// the figure grid; empty spans default to the first cell.
type Axes struct {
	Rows   []int     `yaml:"rows,omitempty"`
	Cols   []int     `yaml:"cols,omitempty"`
	Series []Series  `yaml:"series"`
	XLabel string    `yaml:"xlabel,omitempty"`
	YLabel string    `yaml:"ylabel,omitempty"`
	XLim   []float64 `yaml:"xlim,omitempty"`
	YLim   []float64 `yaml:"ylim,omitempty"`
	Legend bool      `yaml:"legend,omitempty"`
	Title  string    `yaml:"title,omitempty"`
}

// PlotSave names the image file of a figure.
type PlotSave struct {
	As  string `yaml:"as"`
	DPI int    `yaml:"dpi,omitempty"`
}

// Plot draws a figure of Table.
type Plot struct {
	Table  string    `yaml:"table"`
	NRows  int       `yaml:"nrows,omitempty"`
	NCols  int       `yaml:"ncols,omitempty"`
	Style  string    `yaml:"style,omitempty"`
	AxArgs []Axes    `yaml:"ax_args"`
	Save   *PlotSave `yaml:"save,omitempty"`
}

// Save writes Table to As.
type Save struct {
	Table       string   `yaml:"table"`
	As          string   `yaml:"as"`
	Type        string   `yaml:"type,omitempty"`
	Sigma       *bool    `yaml:"sigma,omitempty"`
	Columns     []string `yaml:"columns,omitempty"`
	Uncertainty string   `yaml:"uncertainty,omitempty"`
}

// KeepSigma reports whether uncertainties are written.
func (s Save) KeepSigma() bool {
	return s.Sigma == nil || *s.Sigma
}

// Parse decodes a single recipe document.
func Parse(r io.Reader) (*Recipe, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var rcp Recipe
	if err := dec.Decode(&rcp); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &SchemaError{Stage: "document", Index: -1, Err: ErrEmpty}
		}

		return nil, &SchemaError{Stage: "document", Index: -1, Err: errors.Wrap(ErrMalformed, err.Error())}
	}
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, &SchemaError{Stage: "document", Index: -1, Err: ErrMultipleDocuments}
	}

	return &rcp, nil
}

// ParseFile reads and validates the recipe at path.
func ParseFile(path string) (*Recipe, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read recipe %q", path)
	}
	rcp, err := Parse(bytes.NewReader(b))
	if err != nil {
		return nil, errors.Wrapf(err, "recipe %q", path)
	}
	if err := rcp.Validate(); err != nil {
		return nil, errors.Wrapf(err, "recipe %q", path)
	}

	return rcp, nil
}
