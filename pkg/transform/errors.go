package transform

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrUnknownTransform = errors.New("unknown transform")
	ErrDuplicate        = errors.New("transform already registered")
	ErrUnresolved       = errors.New("binding cannot be resolved")
	ErrMissingParameter = errors.New("required parameter not bound")
	ErrAmbiguous        = errors.New("binding names a namespace where a value is expected")
	ErrOutputShape      = errors.New("result length does not match the table")
	ErrUnknownOutput    = errors.New("result for an undeclared output")
	ErrOption           = errors.New("invalid option")
	ErrRowMismatch      = errors.New("array arguments differ in length")
)

// TransformError locates a failure inside a transform step: the step index,
// the binding index within the step's "using" list and, when known, the
// parameter.
type TransformError struct {
	Transform string
	Step      int
	Binding   int
	Parameter string
	Err       error
}

func (e *TransformError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("transform %q step %d binding %d", e.Transform, e.Step, e.Binding)
	if e.Parameter != "" {
		msg += fmt.Sprintf(" parameter %q", e.Parameter)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *TransformError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Err
}
