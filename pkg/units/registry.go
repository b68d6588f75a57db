package units

import (
	"math"
	"sort"
	"strings"
	"sync"
)

var (
	dimLength      = Dimension{1, 0, 0, 0, 0, 0, 0}
	dimMass        = Dimension{0, 1, 0, 0, 0, 0, 0}
	dimTime        = Dimension{0, 0, 1, 0, 0, 0, 0}
	dimCurrent     = Dimension{0, 0, 0, 1, 0, 0, 0}
	dimTemperature = Dimension{0, 0, 0, 0, 1, 0, 0}
	dimAmount      = Dimension{0, 0, 0, 0, 0, 1, 0}
	dimLuminosity  = Dimension{0, 0, 0, 0, 0, 0, 1}
)

var prefixes = map[string]float64{
	"Y": 1e24, "Z": 1e21, "E": 1e18, "P": 1e15, "T": 1e12, "G": 1e9, "M": 1e6,
	"k": 1e3, "h": 1e2, "da": 1e1, "d": 1e-1, "c": 1e-2, "m": 1e-3,
	"µ": 1e-6, "μ": 1e-6, "u": 1e-6, "n": 1e-9, "p": 1e-12, "f": 1e-15, "a": 1e-18,
}

// prefixOrder lists prefixes longest first so that "da" wins over "d".
var prefixOrder = func() []string {
	out := make([]string, 0, len(prefixes))
	for p := range prefixes {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}

		return out[i] < out[j]
	})

	return out
}()

// Registry resolves unit expressions and converts between units. A registry
// is built once per run and passed to every component that handles units.
type Registry struct {
	mu    sync.RWMutex
	defs  map[string]Unit
	cache map[string]Unit
}

// NewRegistry returns a registry with the SI units and the laboratory units
// used by the transform library.
func NewRegistry() *Registry {
	r := &Registry{
		defs:  make(map[string]Unit),
		cache: make(map[string]Unit),
	}
	r.defineDefaults()

	return r
}

// Define adds (or replaces) a named unit given as a scale of an existing
// unit expression, e.g. Define("smL", 1, "mL").
func (r *Registry) Define(symbol string, scale float64, of string) error {
	base, err := r.Parse(of)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[symbol] = Unit{Symbol: symbol, Scale: scale * base.scale(), Dim: base.Dim}
	r.cache = make(map[string]Unit)

	return nil
}

// DefineDimensionless registers symbol as a dimensionless unit with scale 1.
func (r *Registry) DefineDimensionless(symbol string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[symbol] = Unit{Symbol: symbol, Scale: 1}
	r.cache = make(map[string]Unit)
}

// Parse resolves a unit expression such as "mol/s", "m³/s", "kΩ" or
// "J/(mol*K)". The empty string, "-" and "dimensionless" are dimensionless.
func (r *Registry) Parse(expr string) (Unit, error) {
	trimmed := strings.TrimSpace(expr)
	switch trimmed {
	case "", "-", "1", "dimensionless":
		return Dimensionless, nil
	}

	r.mu.RLock()
	u, ok := r.cache[trimmed]
	r.mu.RUnlock()
	if ok {
		return u, nil
	}

	u, err := newParser(r, trimmed).parse()
	if err != nil {
		return Unit{}, &UnitError{Op: "parse", From: expr, Err: err}
	}
	u.Symbol = trimmed

	r.mu.Lock()
	r.cache[trimmed] = u
	r.mu.Unlock()

	return u, nil
}

// MustParse is Parse for unit literals known to be valid.
func (r *Registry) MustParse(expr string) Unit {
	u, err := r.Parse(expr)
	if err != nil {
		panic(err)
	}

	return u
}

// lookup resolves a single unit symbol, trying SI prefixes when there is no
// exact definition.
func (r *Registry) lookup(sym string) (Unit, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if u, ok := r.defs[sym]; ok {
		return u, true
	}
	for _, p := range prefixOrder {
		if !strings.HasPrefix(sym, p) || len(sym) == len(p) {
			continue
		}
		base, ok := r.defs[sym[len(p):]]
		if !ok || base.Offset != 0 {
			continue
		}

		return Unit{Symbol: sym, Scale: prefixes[p] * base.scale(), Dim: base.Dim}, true
	}

	return Unit{}, false
}

// Factor returns the multiplicative factor converting values in from to
// values in to. Affine units are only accepted when both offsets match.
func (r *Registry) Factor(from, to Unit) (float64, error) {
	if !from.Commensurable(to) {
		return 0, &UnitError{Op: "convert", From: from.Symbol, To: to.Symbol, Err: ErrIncommensurable}
	}

	return from.scale() / to.scale(), nil
}

// Convert converts magnitudes and (optional) uncertainties from one unit to
// another. Uncertainties only scale; offsets apply to magnitudes.
func (r *Registry) Convert(mag, unc []float64, from, to Unit) ([]float64, []float64, error) {
	if unc != nil && len(unc) != len(mag) {
		return nil, nil, &UnitError{Op: "convert", From: from.Symbol, To: to.Symbol, Err: ErrLengthMismatch}
	}
	factor, err := r.Factor(from, to)
	if err != nil {
		return nil, nil, err
	}
	outMag := make([]float64, len(mag))
	for i, v := range mag {
		outMag[i] = (v*from.scale() + from.Offset - to.Offset) / to.scale()
	}
	if unc == nil {
		return outMag, nil, nil
	}
	outUnc := make([]float64, len(unc))
	for i, s := range unc {
		outUnc[i] = math.Abs(s * factor)
	}

	return outMag, outUnc, nil
}

// ConvertString parses both expressions and converts.
func (r *Registry) ConvertString(mag, unc []float64, from, to string) ([]float64, []float64, error) {
	fu, err := r.Parse(from)
	if err != nil {
		return nil, nil, err
	}
	tu, err := r.Parse(to)
	if err != nil {
		return nil, nil, err
	}

	return r.Convert(mag, unc, fu, tu)
}

func (r *Registry) set(symbol string, scale float64, dim Dimension) {
	r.defs[symbol] = Unit{Symbol: symbol, Scale: scale, Dim: dim}
}

func (r *Registry) alias(symbol, of string) {
	u := r.defs[of]
	u.Symbol = symbol
	r.defs[symbol] = u
}

func (r *Registry) defineDefaults() {
	r.set("m", 1, dimLength)
	r.set("g", 1e-3, dimMass)
	r.set("s", 1, dimTime)
	r.set("A", 1, dimCurrent)
	r.set("K", 1, dimTemperature)
	r.set("mol", 1, dimAmount)
	r.set("cd", 1, dimLuminosity)

	force := Dimension{1, 1, -2, 0, 0, 0, 0}
	energy := Dimension{2, 1, -2, 0, 0, 0, 0}
	power := Dimension{2, 1, -3, 0, 0, 0, 0}
	charge := Dimension{0, 0, 1, 1, 0, 0, 0}
	voltage := Dimension{2, 1, -3, -1, 0, 0, 0}

	r.set("Hz", 1, Dimension{0, 0, -1, 0, 0, 0, 0})
	r.set("N", 1, force)
	r.set("Pa", 1, Dimension{-1, 1, -2, 0, 0, 0, 0})
	r.set("J", 1, energy)
	r.set("W", 1, power)
	r.set("C", 1, charge)
	r.set("V", 1, voltage)
	r.set("Ω", 1, Dimension{2, 1, -3, -2, 0, 0, 0})
	r.alias("ohm", "Ω")
	r.alias("Ohm", "Ω")
	r.set("S", 1, Dimension{-2, -1, 3, 2, 0, 0, 0})
	r.set("F", 1, Dimension{-2, -1, 4, 2, 0, 0, 0})

	r.set("L", 1e-3, Dimension{3, 0, 0, 0, 0, 0, 0})
	r.alias("l", "L")
	r.set("smL", 1e-6, Dimension{3, 0, 0, 0, 0, 0, 0})
	r.set("Å", 1e-10, dimLength)
	r.set("min", 60, dimTime)
	r.set("h", 3600, dimTime)
	r.alias("hour", "h")
	r.set("day", 86400, dimTime)
	r.set("atm", 101325, Dimension{-1, 1, -2, 0, 0, 0, 0})
	r.set("bar", 1e5, Dimension{-1, 1, -2, 0, 0, 0, 0})
	r.set("Torr", 101325.0/760, Dimension{-1, 1, -2, 0, 0, 0, 0})
	r.set("psi", 6894.757293168, Dimension{-1, 1, -2, 0, 0, 0, 0})
	r.set("eV", 1.602176634e-19, energy)
	r.defs["degC"] = Unit{Symbol: "degC", Scale: 1, Offset: 273.15, Dim: dimTemperature}
	r.alias("°C", "degC")
	r.alias("celsius", "degC")

	r.set("elementary_charge", 1.602176634e-19, charge)
	r.set("avogadro_constant", 6.02214076e23, Dimension{0, 0, 0, 0, 0, -1, 0})
	r.set("molar_gas_constant", 8.314462618, Dimension{2, 1, -2, 0, -1, -1, 0})
	r.set("faraday_constant", 96485.33212, Dimension{0, 0, 1, 1, 0, -1, 0})

	r.set("%", 1e-2, Dimension{})
	r.alias("percent", "%")
	r.set("ppm", 1e-6, Dimension{})
	r.set("ppb", 1e-9, Dimension{})
	r.set("rad", 1, Dimension{})
	r.alias("radian", "rad")
	r.alias("radians", "rad")
	r.set("deg", math.Pi/180, Dimension{})
	r.alias("degree", "deg")
	r.alias("degrees", "deg")
	r.alias("°", "deg")
	r.set("RIU", 1, Dimension{})
}
