// Package calc evaluates arithmetic expressions with a closed recursive-descent grammar.
//
// Grammar:
//
//	expr    = term { ("+" | "-") term }
//	term    = unary { ("*" | "/") unary }
//	unary   = ("+" | "-") unary | power
//	power   = primary [ "^" unary ]
//	primary = number | "(" expr ")"
//
// "^" is right-associative and binds tighter than a leading sign, so -2^2 is -4.
package calc

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	ErrEmptyExpression  = errors.New("empty expression")
	ErrInvalidCharacter = errors.New("invalid character")
	ErrSyntax           = errors.New("syntax error")
	ErrDivisionByZero   = errors.New("division by zero")
	ErrNonFinite        = errors.New("result is not a finite number")
	ErrMisplacedComma   = errors.New("comma is only allowed as a thousands separator")
)

// maxDepth bounds parenthesis and sign nesting.
const maxDepth = 256

// EvaluationError is returned for any expression that cannot be evaluated.
type EvaluationError struct {
	Expression string
	Cause      error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluate %q: %v", e.Expression, e.Cause)
}

func (e *EvaluationError) Unwrap() error {
	return e.Cause
}

var normalizer = strings.NewReplacer("×", "*", "÷", "/", "**", "^")

var thousands = regexp.MustCompile(`^\d{1,3}(,\d{3})+$`)

// Normalize rewrites the alternative operator spellings into the grammar's operators.
func Normalize(expr string) string {
	return normalizer.Replace(expr)
}

// Evaluator is a stateless arithmetic evaluator.
type Evaluator struct{}

// NewEvaluator returns an evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate computes the value of expr.
func (Evaluator) Evaluate(expr string) (float64, error) {
	return Evaluate(expr)
}

// Evaluate computes the value of expr.
func Evaluate(expr string) (float64, error) {
	fail := func(cause error) (float64, error) {
		return 0, &EvaluationError{Expression: expr, Cause: cause}
	}

	src := Normalize(expr)
	if strings.TrimSpace(src) == "" {
		return fail(ErrEmptyExpression)
	}
	for _, r := range src {
		if !allowed(r) {
			return fail(fmt.Errorf("%w %q", ErrInvalidCharacter, r))
		}
	}

	p := &parser{src: src}
	v, err := p.parseExpr()
	if err != nil {
		return fail(err)
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return fail(fmt.Errorf("%w: unexpected %q at offset %d", ErrSyntax, p.src[p.pos], p.pos))
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fail(ErrNonFinite)
	}
	return v, nil
}

func allowed(r rune) bool {
	switch {
	case r >= '0' && r <= '9':
		return true
	case strings.ContainsRune(".+-*/^(),", r):
		return true
	case r == ' ' || r == '\t' || r == '\n' || r == '\r':
		return true
	}
	return false
}

type parser struct {
	src   string
	pos   int
	depth int
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

// peek returns the next non-space byte, or 0 at end of input.
func (p *parser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > maxDepth {
		return fmt.Errorf("%w: nesting too deep", ErrSyntax)
	}
	return nil
}

func (p *parser) leave() { p.depth-- }

func (p *parser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '+':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left += right
		case '-':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left -= right
		default:
			return left, nil
		}
	}
}

func (p *parser) parseTerm() (float64, error) {
	left, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '*':
			p.pos++
			right, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			left *= right
		case '/':
			p.pos++
			right, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, ErrDivisionByZero
			}
			left /= right
		default:
			return left, nil
		}
	}
}

func (p *parser) parseUnary() (float64, error) {
	switch p.peek() {
	case '+', '-':
		neg := p.src[p.pos] == '-'
		p.pos++
		if err := p.enter(); err != nil {
			return 0, err
		}
		defer p.leave()
		v, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		if neg {
			return -v, nil
		}
		return v, nil
	}
	return p.parsePower()
}

func (p *parser) parsePower() (float64, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return 0, err
	}
	if p.peek() != '^' {
		return base, nil
	}
	p.pos++
	if err := p.enter(); err != nil {
		return 0, err
	}
	defer p.leave()
	exp, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	if base == 0 && exp < 0 {
		return 0, ErrDivisionByZero
	}
	v := math.Pow(base, exp)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrNonFinite
	}
	return v, nil
}

func (p *parser) parsePrimary() (float64, error) {
	c := p.peek()
	switch {
	case c == '(':
		p.pos++
		if err := p.enter(); err != nil {
			return 0, err
		}
		defer p.leave()
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if p.peek() != ')' {
			return 0, fmt.Errorf("%w: missing closing parenthesis", ErrSyntax)
		}
		p.pos++
		return v, nil
	case c == '.' || (c >= '0' && c <= '9'):
		return p.parseNumber()
	case c == 0:
		return 0, fmt.Errorf("%w: unexpected end of expression", ErrSyntax)
	case c == ',':
		return 0, ErrMisplacedComma
	default:
		return 0, fmt.Errorf("%w: unexpected %q at offset %d", ErrSyntax, c, p.pos)
	}
}

func (p *parser) parseNumber() (float64, error) {
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if (c >= '0' && c <= '9') || c == ',' {
			p.pos++
			continue
		}
		break
	}
	intPart := p.src[start:p.pos]
	if strings.Contains(intPart, ",") {
		if !thousands.MatchString(intPart) {
			return 0, ErrMisplacedComma
		}
		intPart = strings.ReplaceAll(intPart, ",", "")
	}

	lit := intPart
	if p.pos < len(p.src) && p.src[p.pos] == '.' {
		fracStart := p.pos
		p.pos++
		for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
			p.pos++
		}
		lit += p.src[fracStart:p.pos]
	}
	if lit == "" || lit == "." {
		return 0, fmt.Errorf("%w: malformed number at offset %d", ErrSyntax, start)
	}
	if p.pos < len(p.src) && (p.src[p.pos] == '.' || p.src[p.pos] == ',') {
		return 0, fmt.Errorf("%w: malformed number at offset %d", ErrSyntax, start)
	}

	v, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	return v, nil
}

// Format renders a result the shortest way that round-trips.
func Format(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
