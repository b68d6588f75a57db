package table

import "strings"

// Sep separates namespace segments in column names.
const Sep = "->"

// Key is a parsed, namespaced column name.
type Key []string

// ParseKey splits name on Sep. Surrounding whitespace of each segment is
// dropped; empty segments are kept so that the key round-trips.
func ParseKey(name string) Key {
	if name == "" {
		return nil
	}
	parts := strings.Split(name, Sep)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	return Key(parts)
}

// String joins the segments back into the flat name.
func (k Key) String() string {
	return strings.Join(k, Sep)
}

// HasPrefix reports whether p is a namespace prefix of k (or equal to it).
func (k Key) HasPrefix(p Key) bool {
	if len(p) > len(k) {
		return false
	}
	for i := range p {
		if k[i] != p[i] {
			return false
		}
	}

	return true
}

// Append returns a new key with segs appended.
func (k Key) Append(segs ...string) Key {
	out := make(Key, 0, len(k)+len(segs))
	out = append(out, k...)

	return append(out, segs...)
}

// TrimPrefix returns the segments of k below p.
func (k Key) TrimPrefix(p Key) Key {
	if !k.HasPrefix(p) {
		return k
	}

	return append(Key(nil), k[len(p):]...)
}

// Equal reports segment-wise equality.
func (k Key) Equal(o Key) bool {
	return len(k) == len(o) && k.HasPrefix(o)
}
