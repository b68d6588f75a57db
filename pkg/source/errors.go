package source

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrBadPath         = errors.New("malformed path")
	ErrNoMatch         = errors.New("path matches no key")
	ErrUnknownStep     = errors.New("unknown step tag")
	ErrIndexRange      = errors.New("step index out of range")
	ErrNotSupported    = errors.New("selector not supported by source")
	ErrMixedUnits      = errors.New("unit changes between timesteps")
	ErrMixedKinds      = errors.New("labels and numbers mixed between timesteps")
	ErrMalformedLeaf   = errors.New("malformed value")
	ErrInvalidDocument = errors.New("invalid datagram")
)

// ResolutionError reports a path or selector that cannot be matched in a
// source.
type ResolutionError struct {
	Path     string
	Selector string
	Err      error
}

func (e *ResolutionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("resolve %q", e.Path)
	if e.Selector != "" {
		msg += " at " + e.Selector
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *ResolutionError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Err
}
