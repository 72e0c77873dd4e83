package transform

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

var (
	errEmptyExpression = errors.New("empty expression")
	errDivisionByZero  = errors.New("division by zero")
)

// Evaluate computes an arithmetic expression of numbers, identifiers,
// + - * / and parentheses. Identifiers resolve through vars.
//
//	expr    = term { ("+" | "-") term }
//	term    = unary { ("*" | "/") unary }
//	unary   = ("+" | "-") unary | primary
//	primary = number | identifier | "(" expr ")"
func Evaluate(expression string, vars map[string]float64) (float64, error) {
	p := &parser{src: expression, vars: vars}
	p.skipSpace()
	if p.done() {
		return 0, errEmptyExpression
	}

	v, err := p.expr()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if !p.done() {
		return 0, fmt.Errorf("unexpected %q at offset %d", p.src[p.pos], p.pos)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("result is not finite")
	}
	return v, nil
}

type parser struct {
	src  string
	pos  int
	vars map[string]float64
}

func (p *parser) done() bool { return p.pos >= len(p.src) }

func (p *parser) skipSpace() {
	for !p.done() {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r', '\f', '\v':
			p.pos++
		default:
			return
		}
	}
}

// accept consumes c if it is the next non-space byte.
func (p *parser) accept(c byte) bool {
	p.skipSpace()
	if !p.done() && p.src[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expr() (float64, error) {
	left, err := p.term()
	if err != nil {
		return 0, err
	}
	for {
		switch {
		case p.accept('+'):
			right, err := p.term()
			if err != nil {
				return 0, err
			}
			left += right
		case p.accept('-'):
			right, err := p.term()
			if err != nil {
				return 0, err
			}
			left -= right
		default:
			return left, nil
		}
	}
}

func (p *parser) term() (float64, error) {
	left, err := p.unary()
	if err != nil {
		return 0, err
	}
	for {
		switch {
		case p.accept('*'):
			right, err := p.unary()
			if err != nil {
				return 0, err
			}
			left *= right
		case p.accept('/'):
			right, err := p.unary()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, errDivisionByZero
			}
			left /= right
		default:
			return left, nil
		}
	}
}

func (p *parser) unary() (float64, error) {
	switch {
	case p.accept('-'):
		v, err := p.unary()
		return -v, err
	case p.accept('+'):
		return p.unary()
	}
	return p.primary()
}

func (p *parser) primary() (float64, error) {
	p.skipSpace()
	if p.done() {
		return 0, errors.New("unexpected end of expression")
	}

	c := p.src[p.pos]
	switch {
	case c == '(':
		p.pos++
		v, err := p.expr()
		if err != nil {
			return 0, err
		}
		if !p.accept(')') {
			return 0, fmt.Errorf("missing closing parenthesis at offset %d", p.pos)
		}
		return v, nil
	case isDigit(c) || c == '.':
		return p.number()
	case isIdentStart(c):
		return p.identifier()
	}
	return 0, fmt.Errorf("unexpected %q at offset %d", c, p.pos)
}

func (p *parser) number() (float64, error) {
	start := p.pos
	for !p.done() && (isDigit(p.src[p.pos]) || p.src[p.pos] == '.') {
		p.pos++
	}
	v, err := strconv.ParseFloat(p.src[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", p.src[start:p.pos])
	}
	return v, nil
}

func (p *parser) identifier() (float64, error) {
	start := p.pos
	for !p.done() && (isIdentStart(p.src[p.pos]) || isDigit(p.src[p.pos])) {
		p.pos++
	}
	name := p.src[start:p.pos]
	v, ok := p.vars[name]
	if !ok {
		return 0, fmt.Errorf("unknown identifier %q", name)
	}
	return v, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
