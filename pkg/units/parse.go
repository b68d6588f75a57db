package units

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokNumber
	tokMul
	tokDiv
	tokPow
	tokLParen
	tokRParen
	tokSuper
)

type token struct {
	kind tokenKind
	text string
	exp  int
}

var superscripts = map[rune]rune{
	'⁰': '0', '¹': '1', '²': '2', '³': '3', '⁴': '4',
	'⁵': '5', '⁶': '6', '⁷': '7', '⁸': '8', '⁹': '9', '⁻': '-',
}

func isIdentRune(c rune) bool {
	return unicode.IsLetter(c) || c == '_' || c == '%' || c == '°' || c == 'Ω' || c == 'µ' || c == 'Å'
}

// tokenize splits a unit expression. Whitespace between two operands is an
// implicit multiplication ("mol s" == "mol*s").
func tokenize(expr string) ([]token, error) {
	var (
		out   []token
		space bool
	)
	runes := []rune(expr)
	operandEnd := func() bool {
		if len(out) == 0 {
			return false
		}
		k := out[len(out)-1].kind

		return k == tokIdent || k == tokNumber || k == tokRParen || k == tokSuper
	}
	push := func(t token) {
		startsOperand := t.kind == tokIdent || t.kind == tokNumber || t.kind == tokLParen
		if space && startsOperand && operandEnd() {
			out = append(out, token{kind: tokMul, text: "*"})
		}
		space = false
		out = append(out, t)
	}

	for i := 0; i < len(runes); {
		c := runes[i]
		switch {
		case unicode.IsSpace(c):
			space = true
			i++
		case c == '*' && i+1 < len(runes) && runes[i+1] == '*':
			push(token{kind: tokPow, text: "**"})
			i += 2
		case c == '*' || c == '·' || c == '⋅':
			push(token{kind: tokMul, text: "*"})
			i++
		case c == '/':
			push(token{kind: tokDiv, text: "/"})
			i++
		case c == '^':
			push(token{kind: tokPow, text: "^"})
			i++
		case c == '(':
			push(token{kind: tokLParen, text: "("})
			i++
		case c == ')':
			push(token{kind: tokRParen, text: ")"})
			i++
		case superscripts[c] != 0:
			j := i
			var b strings.Builder
			for j < len(runes) && superscripts[runes[j]] != 0 {
				b.WriteRune(superscripts[runes[j]])
				j++
			}
			n, err := strconv.Atoi(b.String())
			if err != nil {
				return nil, errors.Wrapf(ErrMalformedUnit, "bad superscript exponent %q", string(runes[i:j]))
			}
			push(token{kind: tokSuper, exp: n})
			i = j
		case unicode.IsDigit(c) || c == '.' || c == '-' || c == '+':
			j := i + 1
			for j < len(runes) && (unicode.IsDigit(runes[j]) || runes[j] == '.' || runes[j] == 'e' || runes[j] == 'E' ||
				((runes[j] == '-' || runes[j] == '+') && (runes[j-1] == 'e' || runes[j-1] == 'E'))) {
				j++
			}
			push(token{kind: tokNumber, text: string(runes[i:j])})
			i = j
		case isIdentRune(c):
			j := i + 1
			for j < len(runes) && (isIdentRune(runes[j]) || unicode.IsDigit(runes[j])) {
				j++
			}
			push(token{kind: tokIdent, text: string(runes[i:j])})
			i = j
		default:
			return nil, errors.Wrapf(ErrMalformedUnit, "unexpected character %q", c)
		}
	}

	return out, nil
}

type parser struct {
	reg    *Registry
	expr   string
	tokens []token
	pos    int
	err    error
}

func newParser(reg *Registry, expr string) *parser {
	toks, err := tokenize(expr)

	return &parser{reg: reg, expr: expr, tokens: toks, err: err}
}

func (p *parser) parse() (Unit, error) {
	if p.err != nil {
		return Unit{}, p.err
	}
	u, err := p.product()
	if err != nil {
		return Unit{}, err
	}
	if p.pos != len(p.tokens) {
		return Unit{}, errors.Wrapf(ErrMalformedUnit, "unexpected %q", p.tokens[p.pos].text)
	}

	return u, nil
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.tokens) {
		return token{}, false
	}

	return p.tokens[p.pos], true
}

// product := power (('*' | '/') power)*, left associative.
func (p *parser) product() (Unit, error) {
	acc, err := p.power()
	if err != nil {
		return Unit{}, err
	}
	for {
		t, ok := p.peek()
		if !ok || (t.kind != tokMul && t.kind != tokDiv) {
			return acc, nil
		}
		p.pos++
		rhs, err := p.power()
		if err != nil {
			return Unit{}, err
		}
		if acc.Offset != 0 || rhs.Offset != 0 {
			return Unit{}, ErrOffsetCompound
		}
		if t.kind == tokMul {
			acc = acc.Mul(rhs)
		} else {
			acc = acc.Div(rhs)
		}
	}
}

// power := operand (('^' | '**') int | superscript)?
func (p *parser) power() (Unit, error) {
	base, err := p.operand()
	if err != nil {
		return Unit{}, err
	}
	t, ok := p.peek()
	if !ok {
		return base, nil
	}
	switch t.kind {
	case tokSuper:
		p.pos++
		if base.Offset != 0 {
			return Unit{}, ErrOffsetCompound
		}

		return base.Pow(t.exp), nil
	case tokPow:
		p.pos++
		n, ok := p.peek()
		if !ok || n.kind != tokNumber {
			return Unit{}, errors.Wrap(ErrMalformedUnit, "exponent expected")
		}
		p.pos++
		exp, err := strconv.Atoi(n.text)
		if err != nil {
			return Unit{}, errors.Wrapf(ErrMalformedUnit, "non-integer exponent %q", n.text)
		}
		if base.Offset != 0 {
			return Unit{}, ErrOffsetCompound
		}

		return base.Pow(exp), nil
	default:
		return base, nil
	}
}

func (p *parser) operand() (Unit, error) {
	t, ok := p.peek()
	if !ok {
		return Unit{}, errors.Wrap(ErrMalformedUnit, "operand expected")
	}
	p.pos++
	switch t.kind {
	case tokIdent:
		u, found := p.reg.lookup(t.text)
		if !found {
			return Unit{}, errors.Wrapf(ErrUndefinedUnit, "%q", t.text)
		}

		return u, nil
	case tokNumber:
		v, err := strconv.ParseFloat(t.text, 64)
		if err != nil || v == 0 {
			return Unit{}, errors.Wrapf(ErrMalformedUnit, "bad factor %q", t.text)
		}

		return Unit{Symbol: "", Scale: v}, nil
	case tokLParen:
		u, err := p.product()
		if err != nil {
			return Unit{}, err
		}
		closing, ok := p.peek()
		if !ok || closing.kind != tokRParen {
			return Unit{}, errors.Wrap(ErrMalformedUnit, "missing ')'")
		}
		p.pos++

		return u, nil
	default:
		return Unit{}, errors.Wrapf(ErrMalformedUnit, "unexpected %q", t.text)
	}
}
