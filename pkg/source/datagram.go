package source

import (
	"io"
	"math"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/askiada/dgflow/pkg/table"
)

// TimestampKey is the per-timestep coordinate key of a datagram.
const TimestampKey = "uts"

type leaf struct {
	n     []float64
	s     []float64
	u     string
	array bool
	label *string
}

type node struct {
	keys []string
	kids map[string]*node
	leaf *leaf
}

type step struct {
	tag  string
	data []*node
}

// Datagram is a loaded nested measurement record: an ordered list of tagged
// steps, each an ordered list of timesteps.
type Datagram struct {
	steps []step
}

var _ Source = (*Datagram)(nil)

// ReadDatagram decodes a datagram document, keeping key order.
func ReadDatagram(r io.Reader) (*Datagram, error) {
	doc, err := decodeDocument(r)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidDocument, err.Error())
	}
	if !isMapping(doc) {
		return nil, errors.Wrap(ErrInvalidDocument, "document is not an object")
	}
	rawSteps := field(doc, "steps")
	if !isSequence(rawSteps) {
		return nil, errors.Wrap(ErrInvalidDocument, `missing "steps" array`)
	}

	dg := &Datagram{}
	for i, rs := range rawSteps.Content {
		if !isMapping(rs) {
			return nil, errors.Wrapf(ErrInvalidDocument, "step %d is not an object", i)
		}
		st := step{}
		if tag := field(field(rs, "metadata"), "tag"); isString(tag) {
			st.tag = tag.Value
		}
		if data := field(rs, "data"); isSequence(data) {
			for _, ts := range data.Content {
				n, err := toNode(ts)
				if err != nil {
					return nil, errors.Wrapf(err, "step %d", i)
				}
				st.data = append(st.data, n)
			}
		}
		dg.steps = append(dg.steps, st)
	}

	return dg, nil
}

// Tags lists step tags in document order.
func (d *Datagram) Tags() []string {
	out := make([]string, len(d.steps))
	for i, s := range d.steps {
		out[i] = s.tag
	}

	return out
}

func (d *Datagram) timesteps(sel Selector) ([]*node, error) {
	if sel.All() {
		var out []*node
		for _, s := range d.steps {
			out = append(out, s.data...)
		}

		return out, nil
	}
	var out []*node
	for _, ref := range sel.Refs {
		idx := ref.Index
		if ref.ByTag {
			idx = -1
			for i, s := range d.steps {
				if s.tag == ref.Tag {
					idx = i

					break
				}
			}
			if idx < 0 {
				return nil, &ResolutionError{Selector: sel.String(), Err: errors.Wrapf(ErrUnknownStep, "%q", ref.Tag)}
			}
		} else if idx < 0 || idx >= len(d.steps) {
			return nil, &ResolutionError{
				Selector: sel.String(),
				Err:      errors.Wrapf(ErrIndexRange, "%d not in [0, %d)", idx, len(d.steps)),
			}
		}
		out = append(out, d.steps[idx].data...)
	}

	return out, nil
}

func (n *node) at(segs []string) *node {
	cur := n
	for _, seg := range segs {
		if cur == nil || cur.kids == nil {
			return nil
		}
		cur = cur.kids[seg]
	}

	return cur
}

// Timestamps returns the uts of every selected timestep.
func (d *Datagram) Timestamps(sel Selector) ([]float64, error) {
	s, err := d.Series(Path{Segments: []string{TimestampKey}}, sel)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(s.Cells))
	for i, c := range s.Cells {
		if s.Array || s.Label || len(c.Mag) != 1 {
			return nil, &ResolutionError{
				Path:     TimestampKey,
				Selector: sel.String(),
				Err:      errors.Wrapf(ErrMalformedLeaf, "timestep %d is not a number", i),
			}
		}
		out[i] = c.Mag[0]
	}

	return out, nil
}

// Series gathers the leaf at p across the selected timesteps.
func (d *Datagram) Series(p Path, sel Selector) (Series, error) {
	steps, err := d.timesteps(sel)
	if err != nil {
		setPath(err, p)

		return Series{}, err
	}
	out := Series{Path: p.String(), Coord: make([]float64, len(steps)), Cells: make([]table.Cell, len(steps))}
	found, unitSet, numeric := false, false, false
	for i, ts := range steps {
		out.Coord[i] = math.NaN()
		if u := ts.at([]string{TimestampKey}); u != nil && u.leaf != nil && len(u.leaf.n) == 1 {
			out.Coord[i] = u.leaf.n[0]
		}
		n := ts.at(p.Segments)
		if n == nil || n.leaf == nil {
			out.Cells[i] = missingCell()

			continue
		}
		found = true
		l := n.leaf
		if l.label != nil {
			out.Label = true
			out.Cells[i] = table.LabelCell(*l.label)
		} else {
			numeric = true
			out.Cells[i] = table.Cell{Mag: l.n, Err: l.s}
		}
		if out.Label && numeric {
			return Series{}, &ResolutionError{Path: p.String(), Selector: sel.String(), Err: ErrMixedKinds}
		}
		if l.array {
			out.Array = true
		}
		if l.u == "" {
			continue
		}
		if !unitSet {
			out.Unit, unitSet = l.u, true
		} else if out.Unit != l.u {
			return Series{}, &ResolutionError{
				Path:     p.String(),
				Selector: sel.String(),
				Err:      errors.Wrapf(ErrMixedUnits, "%q and %q", out.Unit, l.u),
			}
		}
	}
	if !found {
		return Series{}, &ResolutionError{Path: p.String(), Selector: sel.String(), Err: ErrNoMatch}
	}

	return out, nil
}

// Children lists the keys below p across the selected timesteps.
func (d *Datagram) Children(p Path, sel Selector) ([]string, error) {
	steps, err := d.timesteps(sel)
	if err != nil {
		setPath(err, p)

		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for _, ts := range steps {
		n := ts.at(p.Segments)
		if n == nil || n.leaf != nil {
			continue
		}
		for _, k := range n.keys {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}

	return out, nil
}

func setPath(err error, p Path) {
	var rerr *ResolutionError
	if errors.As(err, &rerr) && rerr.Path == "" {
		rerr.Path = p.String()
	}
}

// toNode converts a decoded timestep into the navigable tree. Objects with
// an "n" key are value leaves; bare numbers and numeric arrays are exact
// leaves; strings are label leaves. Booleans carry no data and are skipped.
func toNode(v *yaml.Node) (*node, error) {
	switch {
	case isNumber(v), isNull(v):
		return &node{leaf: &leaf{n: []float64{float(v)}}}, nil
	case isString(v):
		text := v.Value

		return &node{leaf: &leaf{label: &text}}, nil
	case isSequence(v):
		vals, err := floats(v)
		if err != nil {
			return nil, err
		}

		return &node{leaf: &leaf{n: vals, array: true}}, nil
	case isMapping(v):
		if field(v, "n") != nil {
			return valueLeaf(v)
		}
		n := &node{kids: make(map[string]*node)}
		for i := 0; i+1 < len(v.Content); i += 2 {
			k, child := v.Content[i].Value, v.Content[i+1]
			if isBool(child) {
				continue
			}
			c, err := toNode(child)
			if err != nil {
				return nil, errors.Wrapf(err, "key %q", k)
			}
			if c == nil {
				continue
			}
			if _, dup := n.kids[k]; !dup {
				n.keys = append(n.keys, k)
			}
			n.kids[k] = c
		}

		return n, nil
	default:
		return nil, nil
	}
}

func valueLeaf(v *yaml.Node) (*node, error) {
	l := &leaf{}
	nv := field(v, "n")
	var err error
	switch {
	case isSequence(nv):
		l.array = true
		if l.n, err = floats(nv); err != nil {
			return nil, err
		}
	case isNumber(nv), isNull(nv):
		l.n = []float64{float(nv)}
	default:
		return nil, errors.Wrap(ErrMalformedLeaf, `"n" must be a number or an array of numbers`)
	}
	if sv := field(v, "s"); sv != nil && !isNull(sv) {
		switch {
		case isSequence(sv):
			if l.s, err = floats(sv); err != nil {
				return nil, err
			}
		case isNumber(sv):
			l.s = []float64{float(sv)}
		default:
			return nil, errors.Wrap(ErrMalformedLeaf, `"s" must be a number or an array of numbers`)
		}
		if len(l.s) != len(l.n) {
			return nil, errors.Wrap(ErrMalformedLeaf, `"s" and "n" lengths differ`)
		}
	}
	if uv := field(v, "u"); isString(uv) {
		switch uv.Value {
		case "-", " ":
		default:
			l.u = uv.Value
		}
	}

	return &node{leaf: l}, nil
}

func floats(v *yaml.Node) ([]float64, error) {
	out := make([]float64, len(v.Content))
	for i, e := range v.Content {
		if !isNumber(e) && !isNull(e) {
			return nil, errors.Wrap(ErrMalformedLeaf, "array holds non-numeric values")
		}
		out[i] = float(e)
	}

	return out, nil
}
