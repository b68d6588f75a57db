// Package source resolves namespace paths against loaded datagrams and tables.
//
// Sources are read-only. A path either names one leaf series or ends with a
// wildcard segment that expands to every leaf below it, nested levels
// flattened into the series key.
package source

import (
	"math"
	"strconv"
	"strings"

	"github.com/askiada/dgflow/pkg/table"
)

// StepRef picks one step of a datagram, by tag or by position.
type StepRef struct {
	Tag   string
	Index int
	ByTag bool
}

// Selector is an ordered list of steps; selected steps are concatenated in
// listed order. The zero value selects every step.
type Selector struct {
	Refs []StepRef
}

// Tags selects steps by tag.
func Tags(tags ...string) Selector {
	sel := Selector{}
	for _, t := range tags {
		sel.Refs = append(sel.Refs, StepRef{Tag: t, ByTag: true})
	}

	return sel
}

// Indices selects steps by position.
func Indices(idx ...int) Selector {
	sel := Selector{}
	for _, i := range idx {
		sel.Refs = append(sel.Refs, StepRef{Index: i})
	}

	return sel
}

// All reports whether the selector picks every step.
func (s Selector) All() bool {
	return len(s.Refs) == 0
}

func (s Selector) String() string {
	if s.All() {
		return "all steps"
	}
	parts := make([]string, len(s.Refs))
	for i, r := range s.Refs {
		if r.ByTag {
			parts[i] = strconv.Quote(r.Tag)
		} else {
			parts[i] = strconv.Itoa(r.Index)
		}
	}

	return "steps [" + strings.Join(parts, ", ") + "]"
}

// Series is one resolved leaf: a cell per timestep with the coordinate of
// that timestep. Missing values are NaN cells. Key is the part of the path
// matched by a wildcard, nil for a concrete path. Label series hold text.
type Series struct {
	Key   table.Key
	Path  string
	Coord []float64
	Cells []table.Cell
	Array bool
	Label bool
	Unit  string
}

// Source is the capability every loaded source provides.
type Source interface {
	// Timestamps returns the coordinates of the selected rows.
	Timestamps(sel Selector) ([]float64, error)
	// Series returns the leaf at a concrete path.
	Series(p Path, sel Selector) (Series, error)
	// Children lists the keys directly below p in first-appearance order;
	// leaves have none.
	Children(p Path, sel Selector) ([]string, error)
}

// Resolve returns the series matched by p, expanding a trailing wildcard.
func Resolve(src Source, p Path, sel Selector) ([]Series, error) {
	if !p.Wildcard {
		s, err := src.Series(p, sel)
		if err != nil {
			return nil, err
		}

		return []Series{s}, nil
	}

	prefix := Path{Segments: p.Segments}
	out, err := expand(src, prefix, prefix, sel)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, &ResolutionError{Path: p.String(), Selector: sel.String(), Err: ErrNoMatch}
	}

	return out, nil
}

func expand(src Source, root, at Path, sel Selector) ([]Series, error) {
	kids, err := src.Children(at, sel)
	if err != nil {
		return nil, err
	}
	var out []Series
	for _, kid := range kids {
		child := at.Child(kid)
		grand, err := src.Children(child, sel)
		if err != nil {
			return nil, err
		}
		if len(grand) > 0 {
			nested, err := expand(src, root, child, sel)
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)

			continue
		}
		s, err := src.Series(child, sel)
		if err != nil {
			return nil, err
		}
		s.Key = table.Key(child.Segments[len(root.Segments):])
		out = append(out, s)
	}

	return out, nil
}

func missingCell() table.Cell {
	return table.Cell{Mag: []float64{math.NaN()}}
}
