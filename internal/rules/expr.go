// Package rules evaluates decision rules against feature snapshots. Rule
// conditions are written in a small expression language: numeric literals,
// feature identifiers, comparisons, boolean connectives, and arithmetic.
// Expressions are compiled once and evaluated against variable maps; there
// is no function call surface and no side effects.
package rules

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

type lexer struct {
	input string
	pos   int
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.input) && unicode.IsSpace(rune(l.input[l.pos])) {
		l.pos++
	}
	if l.pos >= len(l.input) {
		return token{kind: tokEOF, pos: l.pos}, nil
	}

	start := l.pos
	c := l.input[l.pos]

	switch {
	case c == '(':
		l.pos++
		return token{kind: tokLParen, text: "(", pos: start}, nil
	case c == ')':
		l.pos++
		return token{kind: tokRParen, text: ")", pos: start}, nil
	case c >= '0' && c <= '9' || c == '.':
		for l.pos < len(l.input) && (l.input[l.pos] >= '0' && l.input[l.pos] <= '9' || l.input[l.pos] == '.' || l.input[l.pos] == '_') {
			l.pos++
		}
		return token{kind: tokNumber, text: l.input[start:l.pos], pos: start}, nil
	case unicode.IsLetter(rune(c)) || c == '_':
		for l.pos < len(l.input) && (unicode.IsLetter(rune(l.input[l.pos])) || unicode.IsDigit(rune(l.input[l.pos])) || l.input[l.pos] == '_') {
			l.pos++
		}
		word := l.input[start:l.pos]
		switch strings.ToLower(word) {
		case "and", "or", "not":
			return token{kind: tokOp, text: strings.ToLower(word), pos: start}, nil
		}
		return token{kind: tokIdent, text: word, pos: start}, nil
	default:
		for _, op := range []string{"<=", ">=", "==", "!=", "&&", "||", "<", ">", "!", "+", "-", "*", "/"} {
			if strings.HasPrefix(l.input[l.pos:], op) {
				l.pos += len(op)
				text := op
				switch op {
				case "&&":
					text = "and"
				case "||":
					text = "or"
				case "!":
					text = "not"
				}
				return token{kind: tokOp, text: text, pos: start}, nil
			}
		}
		return token{}, fmt.Errorf("unexpected character %q at position %d", c, start)
	}
}

// value is the result of evaluating a subexpression: either a number or a
// boolean, never both.
type value struct {
	num    float64
	truth  bool
	isBool bool
}

type node interface {
	eval(vars map[string]float64) (value, error)
}

type numberNode struct{ v float64 }

func (n numberNode) eval(map[string]float64) (value, error) {
	return value{num: n.v}, nil
}

type identNode struct{ name string }

func (n identNode) eval(vars map[string]float64) (value, error) {
	v, ok := vars[n.name]
	if !ok {
		return value{}, fmt.Errorf("unknown identifier %q", n.name)
	}
	return value{num: v}, nil
}

type unaryNode struct {
	op      string
	operand node
}

func (n unaryNode) eval(vars map[string]float64) (value, error) {
	v, err := n.operand.eval(vars)
	if err != nil {
		return value{}, err
	}
	switch n.op {
	case "not":
		if !v.isBool {
			return value{}, fmt.Errorf("not requires a boolean operand")
		}
		return value{truth: !v.truth, isBool: true}, nil
	case "-":
		if v.isBool {
			return value{}, fmt.Errorf("cannot negate a boolean")
		}
		return value{num: -v.num}, nil
	}
	return value{}, fmt.Errorf("unknown unary operator %q", n.op)
}

type binaryNode struct {
	op          string
	left, right node
}

func (n binaryNode) eval(vars map[string]float64) (value, error) {
	l, err := n.left.eval(vars)
	if err != nil {
		return value{}, err
	}
	r, err := n.right.eval(vars)
	if err != nil {
		return value{}, err
	}

	switch n.op {
	case "and", "or":
		if !l.isBool || !r.isBool {
			return value{}, fmt.Errorf("%s requires boolean operands", n.op)
		}
		if n.op == "and" {
			return value{truth: l.truth && r.truth, isBool: true}, nil
		}
		return value{truth: l.truth || r.truth, isBool: true}, nil
	case "<", "<=", ">", ">=", "==", "!=":
		if l.isBool || r.isBool {
			return value{}, fmt.Errorf("comparison %s requires numeric operands", n.op)
		}
		var t bool
		switch n.op {
		case "<":
			t = l.num < r.num
		case "<=":
			t = l.num <= r.num
		case ">":
			t = l.num > r.num
		case ">=":
			t = l.num >= r.num
		case "==":
			t = l.num == r.num
		case "!=":
			t = l.num != r.num
		}
		return value{truth: t, isBool: true}, nil
	case "+", "-", "*", "/":
		if l.isBool || r.isBool {
			return value{}, fmt.Errorf("arithmetic %s requires numeric operands", n.op)
		}
		switch n.op {
		case "+":
			return value{num: l.num + r.num}, nil
		case "-":
			return value{num: l.num - r.num}, nil
		case "*":
			return value{num: l.num * r.num}, nil
		case "/":
			if r.num == 0 {
				return value{}, fmt.Errorf("division by zero")
			}
			return value{num: l.num / r.num}, nil
		}
	}
	return value{}, fmt.Errorf("unknown operator %q", n.op)
}

// binding powers, loosest first
var bindingPower = map[string]int{
	"or":  10,
	"and": 20,
	"<":   30, "<=": 30, ">": 30, ">=": 30, "==": 30, "!=": 30,
	"+": 40, "-": 40,
	"*": 50, "/": 50,
}

type parser struct {
	lex *lexer
	cur token
}

func (p *parser) advance() error {
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.cur = t
	return nil
}

func (p *parser) parseExpr(minBP int) (node, error) {
	left, err := p.parsePrefix()
	if err != nil {
		return nil, err
	}

	for p.cur.kind == tokOp {
		bp, ok := bindingPower[p.cur.text]
		if !ok || bp < minBP {
			break
		}
		op := p.cur.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseExpr(bp + 1)
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parsePrefix() (node, error) {
	switch {
	case p.cur.kind == tokNumber:
		text := strings.ReplaceAll(p.cur.text, "_", "")
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q at position %d", p.cur.text, p.cur.pos)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return numberNode{v: v}, nil
	case p.cur.kind == tokIdent:
		n := identNode{name: p.cur.text}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return n, nil
	case p.cur.kind == tokOp && (p.cur.text == "not" || p.cur.text == "-"):
		op := p.cur.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		// "not" binds looser than comparisons so `not x > 5` reads as
		// `not (x > 5)`; unary minus binds tightest.
		prefixBP := 60
		if op == "not" {
			prefixBP = 25
		}
		operand, err := p.parseExpr(prefixBP)
		if err != nil {
			return nil, err
		}
		return unaryNode{op: op, operand: operand}, nil
	case p.cur.kind == tokLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		if p.cur.kind != tokRParen {
			return nil, fmt.Errorf("expected ) at position %d", p.cur.pos)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return inner, nil
	default:
		return nil, fmt.Errorf("unexpected token %q at position %d", p.cur.text, p.cur.pos)
	}
}

// Program is a compiled rule condition, safe for concurrent evaluation.
type Program struct {
	source string
	root   node
}

// Compile parses a condition expression. The result can be evaluated any
// number of times against different variable maps.
func Compile(expression string) (*Program, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, fmt.Errorf("empty expression")
	}
	p := &parser{lex: &lexer{input: expression}}
	if err := p.advance(); err != nil {
		return nil, err
	}
	root, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if p.cur.kind != tokEOF {
		return nil, fmt.Errorf("unexpected trailing token %q at position %d", p.cur.text, p.cur.pos)
	}
	return &Program{source: expression, root: root}, nil
}

// Eval runs the compiled condition. The result must be boolean; a numeric
// top-level expression is a type error.
func (prog *Program) Eval(vars map[string]float64) (bool, error) {
	v, err := prog.root.eval(vars)
	if err != nil {
		return false, fmt.Errorf("evaluating %q: %w", prog.source, err)
	}
	if !v.isBool {
		return false, fmt.Errorf("evaluating %q: condition is not boolean", prog.source)
	}
	return v.truth, nil
}
