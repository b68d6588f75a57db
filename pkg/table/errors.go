package table

import "github.com/pkg/errors"

var (
	ErrRowCount      = errors.New("column length does not match the table index")
	ErrUnknownColumn = errors.New("unknown column")
	ErrArrayColumn   = errors.New("column holds array cells")
	ErrLabelColumn   = errors.New("column holds labels, not values")
	ErrIndexSet      = errors.New("index cannot be replaced once columns exist")
	ErrPolicy        = errors.New("unknown uncertainty policy")
)
