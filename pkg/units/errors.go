package units

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrUndefinedUnit    = errors.New("undefined unit")
	ErrIncommensurable  = errors.New("incommensurable units")
	ErrMalformedUnit    = errors.New("malformed unit expression")
	ErrLengthMismatch   = errors.New("value and uncertainty lengths differ")
	ErrOffsetCompound   = errors.New("offset unit inside a compound unit")
	ErrRegistryRequired = errors.New("unit registry must be set")
)

// UnitError reports a failed unit operation. Op is the operation ("parse",
// "convert", "add", ...), From and To the unit expressions involved.
type UnitError struct {
	Op   string
	From string
	To   string
	Err  error
}

func (e *UnitError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("unit %s: %q", e.Op, e.From)
	if e.To != "" {
		msg += fmt.Sprintf(" -> %q", e.To)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *UnitError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Err
}
