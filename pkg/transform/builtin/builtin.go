// Package builtin holds the transforms shipped with dgflow.
//
// Every transform is a leaf formula over unit values. Parameters and outputs
// are declared up front so that the dispatcher can resolve bindings and store
// results; options such as the output name are decoded from the remaining
// binding entries.
package builtin

import (
	"math"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/askiada/dgflow/pkg/quantity"
	"github.com/askiada/dgflow/pkg/table"
	"github.com/askiada/dgflow/pkg/transform"
)

var (
	ErrEmptyNamespace = errors.New("namespace has no columns")
	ErrConflicts      = errors.New("unknown conflict resolution")
	ErrExclusive      = errors.New("parameters are mutually exclusive")
	ErrSingleStep     = errors.New("a single timestep requires t0")
	ErrNoInput        = errors.New("no input bound")
)

// Transforms returns every builtin transform.
func Transforms() []transform.Transform {
	return []transform.Transform{
		CombineColumns(),
		CombineNamespaces(),
		SetUncertainty(),
		ApplyLinear(),
		ToPolar(),
		ToRectangular(),
		LowestRealImpedance(),
		Charge(),
		AverageCurrent(),
		Nernst(),
		FlowToMolar(),
		BatchToMolar(),
		FlowsToFractions(),
		FractionsToFlows(),
	}
}

// Register adds the builtin transforms to reg.
func Register(reg *transform.Registry) error {
	return reg.Register(Transforms()...)
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}

	return prefix + table.Sep + key
}

// fillNaN replaces missing magnitudes with exact zeros.
func fillNaN(q quantity.Quantity) quantity.Quantity {
	out := q.Clone()
	for i, v := range out.Mag {
		if math.IsNaN(v) {
			out.Mag[i] = 0
			if out.Err != nil {
				out.Err[i] = 0
			}
		}
	}

	return out
}

// positiveOrNaN masks non-positive magnitudes.
func positiveOrNaN(q quantity.Quantity) quantity.Quantity {
	out := q.Clone()
	for i, v := range out.Mag {
		if !(v > 0) {
			out.Mag[i] = math.NaN()
		}
	}

	return out
}

func value(args transform.Args, name string) (quantity.Quantity, error) {
	q, ok := args.Value(name)
	if !ok {
		return quantity.Quantity{}, errors.Wrap(transform.ErrMissingParameter, name)
	}

	return q, nil
}

func logger(args transform.Args) *zap.Logger {
	if args.Logger == nil {
		return zap.NewNop()
	}

	return args.Logger
}
