// Package transform defines the contract between the table and the library
// of scientific functions, the registry of those functions and the
// dispatcher that binds table columns to their parameters.
//
// A transform never sees the table. The dispatcher resolves every bound
// parameter into a unit value (or a namespace of unit values), invokes the
// transform once per binding and writes the results back, converted into
// the unit the transform declares for each output.
package transform

import (
	"context"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/askiada/dgflow/pkg/quantity"
	"github.com/askiada/dgflow/pkg/units"
)

// Kind tells the dispatcher how to resolve a bound parameter.
type Kind int

const (
	// Value is a single column or literal.
	Value Kind = iota
	// Namespace expands to every column below a prefix.
	Namespace
	// Either is a Value when the binding names a column and a Namespace
	// otherwise.
	Either
	// Series is a whole column. Columns of array cells are passed one row
	// at a time.
	Series
	// Index is the table index, unless the binding names a column.
	Index
)

func (k Kind) String() string {
	switch k {
	case Value:
		return "value"
	case Namespace:
		return "namespace"
	case Either:
		return "either"
	case Series:
		return "series"
	case Index:
		return "index"
	default:
		return "unknown"
	}
}

// Parameter declares one formal parameter. Unit is applied to columns
// without a unit and to unitless literals.
type Parameter struct {
	Name     string
	Kind     Kind
	Unit     string
	Optional bool
}

// Output declares a result role and the unit it is stored in. An empty unit
// stores the result in coherent SI units unless Keep is set, in which case
// the unit returned by the transform is stored as is.
type Output struct {
	Name string
	Unit string
	Keep bool
}

// Result is one value returned by a transform. Output names the declared
// role, Name the destination column.
type Result struct {
	Output string
	Name   string
	Value  quantity.Quantity
}

// Entry is one column of a namespace argument; Key is relative to the
// namespace.
type Entry struct {
	Key   string
	Value quantity.Quantity
}

// NamespaceValue is an ordered namespace argument.
type NamespaceValue []Entry

// Get returns the entry with the given key.
func (n NamespaceValue) Get(key string) (quantity.Quantity, bool) {
	for _, e := range n {
		if e.Key == key {
			return e.Value, true
		}
	}

	return quantity.Quantity{}, false
}

// Keys returns the keys in order.
func (n NamespaceValue) Keys() []string {
	out := make([]string, len(n))
	for i, e := range n {
		out[i] = e.Key
	}

	return out
}

// Args carries the resolved arguments of one invocation.
type Args struct {
	Values     map[string]quantity.Quantity
	Namespaces map[string]NamespaceValue
	// Options holds the binding entries that are not declared parameters,
	// such as the output name.
	Options map[string]any
	// Inputs holds the binding text of every declared parameter.
	Inputs   map[string]string
	Registry *units.Registry
	Logger   *zap.Logger
}

// Value returns a resolved value parameter.
func (a Args) Value(name string) (quantity.Quantity, bool) {
	q, ok := a.Values[name]

	return q, ok
}

// Namespace returns a resolved namespace parameter.
func (a Args) Namespace(name string) (NamespaceValue, bool) {
	ns, ok := a.Namespaces[name]

	return ns, ok
}

// Decode copies Options into the struct pointed to by out, matching
// `option` tags. Unknown options are rejected.
func (a Args) Decode(out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "option",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return errors.Wrap(err, "unable to build option decoder")
	}
	if err := dec.Decode(a.Options); err != nil {
		return errors.Wrap(ErrOption, err.Error())
	}

	return nil
}

// Transform is a scientific function callable from a recipe.
type Transform interface {
	// Name is the "module.function" reference.
	Name() string
	Parameters() []Parameter
	Outputs() []Output
	Invoke(ctx context.Context, args Args) ([]Result, error)
}

// Func adapts a plain function to Transform.
type Func struct {
	Ref    string
	Params []Parameter
	Outs   []Output
	Fn     func(ctx context.Context, args Args) ([]Result, error)
}

var _ Transform = (*Func)(nil)

func (f *Func) Name() string            { return f.Ref }
func (f *Func) Parameters() []Parameter { return f.Params }
func (f *Func) Outputs() []Output       { return f.Outs }

func (f *Func) Invoke(ctx context.Context, args Args) ([]Result, error) {
	return f.Fn(ctx, args)
}
