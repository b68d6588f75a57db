package transform

import (
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// LegacyPrefix is accepted in front of references and ignored.
const LegacyPrefix = "dgpost.transform."

// Registry maps "module.function" references to transforms.
type Registry struct {
	mu sync.RWMutex
	m  map[string]Transform
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{m: make(map[string]Transform)}
}

// Register adds transforms; a reference can only be registered once.
func (r *Registry) Register(ts ...Transform) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range ts {
		if _, ok := r.m[t.Name()]; ok {
			return errors.Wrapf(ErrDuplicate, "%q", t.Name())
		}
		r.m[t.Name()] = t
	}

	return nil
}

// Lookup resolves a reference.
func (r *Registry) Lookup(ref string) (Transform, error) {
	name := strings.TrimPrefix(strings.TrimSpace(ref), LegacyPrefix)
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.m[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownTransform, "%q", ref)
	}

	return t, nil
}

// Names lists registered references, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.m))
	for k := range r.m {
		out = append(out, k)
	}
	sort.Strings(out)

	return out
}
