package quantity

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/askiada/dgflow/pkg/units"
)

var ErrNotLiteral = errors.New("not a quantity literal")

// separator matches an uncertainty separator with the spaces around it.
var separator = regexp.MustCompile(`\s*(\+/-|±)\s*`)

// ParseLiteral reads a scalar written as "<value>[+/-<sigma>] [unit]", for
// example "8.5", "25 degC", "8.5 +/- 0.1" or "(6.0±0.2) l/h". When the
// literal carries no unit, defaultUnit is used.
func ParseLiteral(reg *units.Registry, s string, defaultUnit units.Unit) (Quantity, error) {
	if reg == nil {
		return Quantity{}, units.ErrRegistryRequired
	}
	text := separator.ReplaceAllString(strings.TrimSpace(s), "$1")
	if text == "" {
		return Quantity{}, errors.Wrap(ErrNotLiteral, "empty")
	}

	var numeric, unitExpr string
	if strings.HasPrefix(text, "(") {
		end := strings.Index(text, ")")
		if end < 0 {
			return Quantity{}, errors.Wrapf(ErrNotLiteral, "%q: missing ')'", s)
		}
		numeric, unitExpr = text[1:end], text[end+1:]
	} else {
		numeric, unitExpr, _ = strings.Cut(text, " ")
	}

	value, sigma, uncertain, err := splitUncertainty(numeric)
	if err != nil {
		return Quantity{}, errors.Wrapf(err, "%q", s)
	}

	unit := defaultUnit
	if strings.TrimSpace(unitExpr) != "" {
		unit, err = reg.Parse(unitExpr)
		if err != nil {
			return Quantity{}, err
		}
	}
	if uncertain {
		return ScalarErr(value, sigma, unit), nil
	}

	return Scalar(value, unit), nil
}

func splitUncertainty(numeric string) (float64, float64, bool, error) {
	var (
		nominal, sigma string
		uncertain      bool
	)
	for _, sep := range []string{"+/-", "±"} {
		if a, b, ok := strings.Cut(numeric, sep); ok {
			nominal, sigma, uncertain = a, b, true

			break
		}
	}
	if !uncertain {
		nominal = numeric
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(nominal), 64)
	if err != nil {
		return 0, 0, false, errors.Wrap(ErrNotLiteral, "bad value")
	}
	if !uncertain {
		return v, 0, false, nil
	}
	s, err := strconv.ParseFloat(strings.TrimSpace(sigma), 64)
	if err != nil || s < 0 {
		return 0, 0, false, errors.Wrap(ErrNotLiteral, "bad uncertainty")
	}

	return v, s, true, nil
}
