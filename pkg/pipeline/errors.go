package pipeline

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrRecipeMustBeSet = errors.New("recipe must be set")
	ErrUnknownObject   = errors.New("unknown object")
	ErrNotTable        = errors.New("object is not a table")
)

// StageError is returned by Run when an instruction fails.
type StageError struct {
	Stage string
	Index int
	Err   error
}

func (e *StageError) Error() string {
	if e == nil {
		return "<nil>"
	}

	return fmt.Sprintf("%s[%d]: %v", e.Stage, e.Index, e.Err)
}

func (e *StageError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Err
}
