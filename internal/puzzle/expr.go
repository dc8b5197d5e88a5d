// Package puzzle generates five-digit arithmetic puzzles and checks answers
// against them. Expressions are evaluated by a small recursive-descent parser
// over the restricted grammar
//
//	expr    := term (('+' | '-') term)*
//	term    := unary (('×' | '*' | '÷' | '/') unary)*
//	unary   := '√' unary | primary
//	primary := digit | '(' expr ')'
//
// Operands are single digits. Whitespace is ignored.
package puzzle

import (
	"errors"
	"fmt"
	"math"

	"github.com/playperu/digitduel/internal/digitduel"
)

var (
	ErrSyntax       = errors.New("syntax error")
	ErrDivideByZero = errors.New("division by zero")
	ErrNegativeRoot = errors.New("square root of a negative number")
)

const epsilon = 1e-9

// Expr is a parsed and evaluated expression together with the digits and
// operators it used, in source order.
type Expr struct {
	Value     float64
	Digits    []int
	Operators []digitduel.Operator
}

// Integer reports whether the value is a whole number and returns it.
func (e Expr) Integer() (int, bool) {
	return asInt(e.Value)
}

func asInt(v float64) (int, bool) {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	r := math.Round(v)
	if math.Abs(v-r) > epsilon {
		return 0, false
	}
	return int(r), true
}

// Parse evaluates s under the restricted grammar.
func Parse(s string) (Expr, error) {
	p := &parser{src: []rune(s)}
	v, err := p.expr()
	if err != nil {
		return Expr{}, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return Expr{}, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, p.src[p.pos], p.pos)
	}
	return Expr{Value: v, Digits: p.digits, Operators: p.ops}, nil
}

type parser struct {
	src    []rune
	pos    int
	digits []int
	ops    []digitduel.Operator
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *parser) peek() (rune, bool) {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0, false
	}
	return p.src[p.pos], true
}

func (p *parser) expr() (float64, error) {
	left, err := p.term()
	if err != nil {
		return 0, err
	}
	for {
		r, ok := p.peek()
		if !ok || (r != '+' && r != '-') {
			return left, nil
		}
		p.pos++
		right, err := p.term()
		if err != nil {
			return 0, err
		}
		if r == '+' {
			p.ops = append(p.ops, digitduel.OpAdd)
			left += right
		} else {
			p.ops = append(p.ops, digitduel.OpSub)
			left -= right
		}
	}
}

func (p *parser) term() (float64, error) {
	left, err := p.unary()
	if err != nil {
		return 0, err
	}
	for {
		r, ok := p.peek()
		if !ok {
			return left, nil
		}
		switch r {
		case '×', '*':
			p.pos++
			right, err := p.unary()
			if err != nil {
				return 0, err
			}
			p.ops = append(p.ops, digitduel.OpMul)
			left *= right
		case '÷', '/':
			p.pos++
			right, err := p.unary()
			if err != nil {
				return 0, err
			}
			if math.Abs(right) < epsilon {
				return 0, ErrDivideByZero
			}
			p.ops = append(p.ops, digitduel.OpDiv)
			left /= right
		default:
			return left, nil
		}
	}
}

func (p *parser) unary() (float64, error) {
	r, ok := p.peek()
	if ok && r == '√' {
		p.pos++
		v, err := p.unary()
		if err != nil {
			return 0, err
		}
		if v < 0 {
			return 0, ErrNegativeRoot
		}
		p.ops = append(p.ops, digitduel.OpSqrt)
		return math.Sqrt(v), nil
	}
	return p.primary()
}

func (p *parser) primary() (float64, error) {
	r, ok := p.peek()
	if !ok {
		return 0, fmt.Errorf("%w: unexpected end of input", ErrSyntax)
	}
	switch {
	case r >= '0' && r <= '9':
		p.pos++
		d := int(r - '0')
		p.digits = append(p.digits, d)
		return float64(d), nil
	case r == '(':
		p.pos++
		v, err := p.expr()
		if err != nil {
			return 0, err
		}
		if c, ok := p.peek(); !ok || c != ')' {
			return 0, fmt.Errorf("%w: missing closing parenthesis", ErrSyntax)
		}
		p.pos++
		return v, nil
	default:
		return 0, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, r, p.pos)
	}
}
