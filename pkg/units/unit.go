package units

import (
	"math"
	"strconv"
	"strings"
)

// Dimension holds the exponents of the SI base quantities in the order
// length, mass, time, current, temperature, amount, luminosity.
type Dimension [7]int8

var baseSymbols = [7]string{"m", "kg", "s", "A", "K", "mol", "cd"}

// Dimensionless reports whether all exponents are zero.
func (d Dimension) Dimensionless() bool {
	return d == Dimension{}
}

func (d Dimension) add(o Dimension, sign int8) Dimension {
	var out Dimension
	for i := range d {
		out[i] = d[i] + sign*o[i]
	}

	return out
}

// Unit is a physical unit: a scale (and, for affine temperature scales, an
// offset) relative to the coherent SI unit of its dimension.
type Unit struct {
	Symbol string
	Scale  float64
	Offset float64
	Dim    Dimension
}

// Dimensionless is the unit of pure numbers.
var Dimensionless = Unit{Scale: 1}

// String returns the unit symbol.
func (u Unit) String() string {
	return u.Symbol
}

// IsDimensionless reports whether the unit carries no dimension. Scaled
// dimensionless units such as "%" are still dimensionless.
func (u Unit) IsDimensionless() bool {
	return u.Dim.Dimensionless()
}

// Commensurable reports whether values in u can be converted to v.
func (u Unit) Commensurable(v Unit) bool {
	return u.Dim == v.Dim
}

// Mul returns the product unit u·v.
func (u Unit) Mul(v Unit) Unit {
	return Unit{
		Symbol: joinSymbols(u.Symbol, "*", v.Symbol),
		Scale:  u.scale() * v.scale(),
		Dim:    u.Dim.add(v.Dim, 1),
	}
}

// Div returns the quotient unit u/v.
func (u Unit) Div(v Unit) Unit {
	return Unit{
		Symbol: joinSymbols(u.Symbol, "/", v.Symbol),
		Scale:  u.scale() / v.scale(),
		Dim:    u.Dim.add(v.Dim, -1),
	}
}

// Pow returns u raised to an integer power.
func (u Unit) Pow(n int) Unit {
	if n == 1 {
		return u
	}
	var dim Dimension
	for i := range u.Dim {
		dim[i] = u.Dim[i] * int8(n)
	}
	sym := ""
	if u.Symbol != "" && n != 0 {
		sym = wrap(u.Symbol) + "^" + strconv.Itoa(n)
	}

	return Unit{Symbol: sym, Scale: math.Pow(u.scale(), float64(n)), Dim: dim}
}

// SI returns the coherent SI unit of the same dimension, spelled in base units.
func (u Unit) SI() Unit {
	var num, den []string
	for i, e := range u.Dim {
		switch {
		case e == 1:
			num = append(num, baseSymbols[i])
		case e > 1:
			num = append(num, baseSymbols[i]+"^"+strconv.Itoa(int(e)))
		case e == -1:
			den = append(den, baseSymbols[i])
		case e < -1:
			den = append(den, baseSymbols[i]+"^"+strconv.Itoa(int(-e)))
		}
	}
	sym := strings.Join(num, "*")
	if len(den) > 0 {
		if sym == "" {
			sym = "1"
		}
		sym += "/" + strings.Join(den, "/")
	}

	return Unit{Symbol: sym, Scale: 1, Dim: u.Dim}
}

// scale treats the zero value as the dimensionless unit.
func (u Unit) scale() float64 {
	if u.Scale == 0 {
		return 1
	}

	return u.Scale
}

func joinSymbols(a, op, b string) string {
	switch {
	case a == "" && b == "":
		return ""
	case b == "":
		return a
	case a == "" && op == "*":
		return b
	case a == "":
		return "1/" + wrap(b)
	case op == "/":
		return a + "/" + wrap(b)
	default:
		if strings.Contains(b, "/") {
			b = "(" + b + ")"
		}

		return a + op + b
	}
}

func wrap(sym string) string {
	if strings.ContainsAny(sym, "*/^ ") {
		return "(" + sym + ")"
	}

	return sym
}
