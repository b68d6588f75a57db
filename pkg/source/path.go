package source

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/askiada/dgflow/pkg/table"
)

// Wildcard is the segment expanding to every sibling key.
const Wildcard = "*"

// Path is a parsed namespace path. A wildcard may only be the last segment.
type Path struct {
	Segments []string
	Wildcard bool
}

// ParsePath parses "raw->traces->PEIS->freq" or "derived->xout->*".
func ParsePath(s string) (Path, error) {
	key := table.ParseKey(s)
	if len(key) == 0 {
		return Path{}, errors.Wrap(ErrBadPath, "empty path")
	}
	p := Path{}
	for i, seg := range key {
		switch {
		case seg == Wildcard && i == len(key)-1:
			p.Wildcard = true
		case seg == "":
			return Path{}, errors.Wrapf(ErrBadPath, "%q: empty segment", s)
		case strings.Contains(seg, Wildcard):
			return Path{}, errors.Wrapf(ErrBadPath, "%q: wildcard must be a whole trailing segment", s)
		default:
			p.Segments = append(p.Segments, seg)
		}
	}

	return p, nil
}

// MustParsePath is ParsePath for literals.
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}

	return p
}

// String returns the path in its textual form.
func (p Path) String() string {
	segs := p.Segments
	if p.Wildcard {
		segs = append(append([]string(nil), segs...), Wildcard)
	}

	return strings.Join(segs, table.Sep)
}

// Child returns the concrete path one level below p.
func (p Path) Child(seg string) Path {
	return Path{Segments: append(append([]string(nil), p.Segments...), seg)}
}
