package tools

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/nextlevelbuilder/agentloop/internal/store"
)

// Calculator evaluates arithmetic over digits, + - * / ( ) and '.'.
type Calculator struct{}

func NewCalculator() *Calculator { return &Calculator{} }

func (c *Calculator) Name() string { return "calculator" }
func (c *Calculator) Description() string {
	return "Evaluates an arithmetic expression using + - * / and parentheses."
}
func (c *Calculator) ReturnType() store.ParamType { return store.ParamObject }
func (c *Calculator) Parameters() []store.ParamSpec {
	return []store.ParamSpec{
		{Name: "expression", Type: store.ParamString, Required: true, Description: "Arithmetic expression, e.g. (2 + 3) * 4"},
	}
}

func (c *Calculator) Execute(_ context.Context, args map[string]any) (any, error) {
	expr, _ := args["expression"].(string)
	cleaned := sanitizeExpression(expr)
	if strings.TrimSpace(cleaned) == "" {
		return nil, validationErr(c.Name(), "expression is empty")
	}
	result, err := evalExpression(cleaned)
	if err != nil {
		return nil, validationErr(c.Name(), "%v", err)
	}
	return map[string]any{
		"expression": expr,
		"result":     result,
	}, nil
}

// sanitizeExpression drops every character outside the arithmetic alphabet.
func sanitizeExpression(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9',
			r == '+', r == '-', r == '*', r == '/',
			r == '(', r == ')', r == '.',
			r == ' ', r == '\t', r == '\n', r == '\r':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// evalExpression evaluates s, which must be consumed in full. Sanitizing
// leaves call fragments behind ("alert(1)" becomes "(1)"), so parenthesised
// groups trailing a complete expression are checked for balance and then
// discarded. Any other leftover is an error.
func evalExpression(s string) (float64, error) {
	p := &exprParser{src: s}
	v, err := p.expr()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case 0:
			if math.IsInf(v, 0) || math.IsNaN(v) {
				return 0, errNotFinite
			}
			return v, nil
		case '(':
			if err := p.skipGroup(); err != nil {
				return 0, err
			}
		default:
			return 0, errUnexpectedSymbol
		}
	}
}

type exprError string

func (e exprError) Error() string { return string(e) }

const (
	errDivisionByZero   = exprError("division by zero")
	errNotFinite        = exprError("result is not a finite number")
	errUnexpectedEnd    = exprError("unexpected end of expression")
	errUnbalanced       = exprError("unbalanced parentheses")
	errMalformedNumber  = exprError("malformed number")
	errUnexpectedSymbol = exprError("unexpected symbol")
)

type exprParser struct {
	src string
	pos int
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.src) && strings.IndexByte(" \t\n\r", p.src[p.pos]) >= 0 {
		p.pos++
	}
}

func (p *exprParser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

// expr := term (('+' | '-') term)*
func (p *exprParser) expr() (float64, error) {
	v, err := p.term()
	if err != nil {
		return 0, err
	}
	for {
		op := p.peek()
		if op != '+' && op != '-' {
			return v, nil
		}
		p.pos++
		rhs, err := p.term()
		if err != nil {
			return 0, err
		}
		if op == '+' {
			v += rhs
		} else {
			v -= rhs
		}
	}
}

// term := unary (('*' | '/') unary)*
func (p *exprParser) term() (float64, error) {
	v, err := p.unary()
	if err != nil {
		return 0, err
	}
	for {
		op := p.peek()
		if op != '*' && op != '/' {
			return v, nil
		}
		p.pos++
		rhs, err := p.unary()
		if err != nil {
			return 0, err
		}
		if op == '*' {
			v *= rhs
		} else {
			if rhs == 0 {
				return 0, errDivisionByZero
			}
			v /= rhs
		}
	}
}

// unary := ('+' | '-') unary | primary
func (p *exprParser) unary() (float64, error) {
	switch p.peek() {
	case '-':
		p.pos++
		v, err := p.unary()
		return -v, err
	case '+':
		p.pos++
		return p.unary()
	}
	return p.primary()
}

// primary := number | '(' expr ')'
func (p *exprParser) primary() (float64, error) {
	c := p.peek()
	switch {
	case c == 0:
		return 0, errUnexpectedEnd
	case c == '(':
		p.pos++
		v, err := p.expr()
		if err != nil {
			return 0, err
		}
		if p.peek() != ')' {
			return 0, errUnbalanced
		}
		p.pos++
		return v, nil
	case c == '.' || (c >= '0' && c <= '9'):
		return p.number()
	}
	return 0, errUnexpectedSymbol
}

// skipGroup consumes "()" or "(" expr ")".
func (p *exprParser) skipGroup() error {
	p.pos++
	if p.peek() == ')' {
		p.pos++
		return nil
	}
	if _, err := p.expr(); err != nil {
		return err
	}
	if p.peek() != ')' {
		return errUnbalanced
	}
	p.pos++
	return nil
}

func (p *exprParser) number() (float64, error) {
	start := p.pos
	seenDot := false
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '.' {
			if seenDot {
				break
			}
			seenDot = true
		} else if c < '0' || c > '9' {
			break
		}
		p.pos++
	}
	v, err := strconv.ParseFloat(p.src[start:p.pos], 64)
	if err != nil {
		return 0, errMalformedNumber
	}
	return v, nil
}
