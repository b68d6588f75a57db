package pipeline

import (
	"io/fs"

	"github.com/pkg/errors"

	"github.com/askiada/dgflow/pkg/interp"
	"github.com/askiada/dgflow/pkg/recipe"
	"github.com/askiada/dgflow/pkg/source"
	"github.com/askiada/dgflow/pkg/tableio"
	"github.com/askiada/dgflow/pkg/transform"
	"github.com/askiada/dgflow/pkg/units"
)

// Kind classifies the cause of a failed run.
type Kind string

const (
	KindSchema     Kind = "schema"
	KindTransform  Kind = "transform"
	KindResolution Kind = "resolution"
	KindAlignment  Kind = "alignment"
	KindUnit       Kind = "unit"
	KindIO         Kind = "io"
	KindInternal   Kind = "internal"
)

// KindOf returns the kind of the first classified error in the chain of err,
// or the empty kind for a nil error. Transform failures are reported as
// such even when caused by a unit error.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}

	var (
		schemaErr     *recipe.SchemaError
		transformErr  *transform.TransformError
		resolutionErr *source.ResolutionError
		alignmentErr  *interp.AlignmentError
		unitErr       *units.UnitError
		pathErr       *fs.PathError
	)

	switch {
	case errors.As(err, &schemaErr):
		return KindSchema
	case errors.As(err, &transformErr):
		return KindTransform
	case errors.As(err, &resolutionErr), errors.Is(err, ErrUnknownObject), errors.Is(err, ErrNotTable):
		return KindResolution
	case errors.As(err, &alignmentErr):
		return KindAlignment
	case errors.As(err, &unitErr):
		return KindUnit
	case errors.As(err, &pathErr),
		errors.Is(err, fs.ErrNotExist),
		errors.Is(err, tableio.ErrFormat),
		errors.Is(err, tableio.ErrDocument),
		errors.Is(err, source.ErrInvalidDocument):
		return KindIO
	default:
		return KindInternal
	}
}
