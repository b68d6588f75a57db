package recipe

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrEmpty             = errors.New("recipe is empty")
	ErrMalformed         = errors.New("malformed recipe")
	ErrMultipleDocuments = errors.New("recipe must hold a single document")
	ErrRequired          = errors.New("field is required")
	ErrInvalidValue      = errors.New("invalid value")
	ErrExclusive         = errors.New("fields are mutually exclusive")
	ErrNoStages          = errors.New("recipe has no stages")
)

// SchemaError locates a recipe problem. Index is -1 for document level
// errors.
type SchemaError struct {
	Stage string
	Index int
	Field string
	Err   error
}

func (e *SchemaError) Error() string {
	loc := e.Stage
	if e.Index >= 0 {
		loc = fmt.Sprintf("%s[%d]", e.Stage, e.Index)
	}
	if e.Field != "" {
		loc += "." + e.Field
	}

	return fmt.Sprintf("%s: %v", loc, e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}
