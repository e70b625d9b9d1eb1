package algebra

import (
	"fmt"
	"math"
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
	tokComma
)

type token struct {
	kind tokenKind
	text string
	num  float64
	pos  int
}

var unaryFuncs = map[string]UnaryOp{
	"sqrt": OpSqrt,
	"cbrt": OpCbrt,
	"sin":  OpSin,
	"cos":  OpCos,
	"tan":  OpTan,
	"abs":  OpAbs,
	"fact": OpFactorial,
	"ln":   OpLn,
	"log":  OpLn,
	"exp":  OpExp,
}

var binaryFuncs = map[string]BinaryOp{
	"pow":   OpPow,
	"hypot": OpHypot,
}

// Parse reads an algebra function in the notation produced by Expr.String.
// It also accepts "Math." prefixed function names, π/pi/e constants, ^ for
// powers and the × ÷ card symbols.
func Parse(input string) (Expr, error) {
	tokens, err := tokenize(input)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, fmt.Errorf("unexpected %q at %d", tok.text, tok.pos)
	}
	return expr, nil
}

func tokenize(input string) ([]token, error) {
	runes := []rune(input)
	tokens := make([]token, 0, len(runes))
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case unicode.IsDigit(r) || r == '.':
			start := i
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.') {
				i++
			}
			text := string(runes[start:i])
			v, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, fmt.Errorf("bad number %q at %d", text, start)
			}
			tokens = append(tokens, token{kind: tokNumber, text: text, num: v, pos: start})
		case unicode.IsLetter(r) || r == 'π':
			start := i
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '.') {
				i++
			}
			text := strings.TrimPrefix(string(runes[start:i]), "Math.")
			tokens = append(tokens, token{kind: tokIdent, text: text, pos: start})
		case r == '(':
			tokens = append(tokens, token{kind: tokLParen, text: "(", pos: i})
			i++
		case r == ')':
			tokens = append(tokens, token{kind: tokRParen, text: ")", pos: i})
			i++
		case r == ',':
			tokens = append(tokens, token{kind: tokComma, text: ",", pos: i})
			i++
		case strings.ContainsRune("+-*/%^×÷", r):
			text := string(r)
			switch r {
			case '×':
				text = "*"
			case '÷':
				text = "/"
			}
			tokens = append(tokens, token{kind: tokOp, text: text, pos: i})
			i++
		default:
			return nil, fmt.Errorf("unexpected character %q at %d", r, i)
		}
	}
	return append(tokens, token{kind: tokEOF, pos: len(runes)}), nil
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) expect(kind tokenKind, text string) error {
	tok := p.next()
	if tok.kind != kind {
		return fmt.Errorf("expected %q at %d, got %q", text, tok.pos, tok.text)
	}
	return nil
}

// expr := term (("+" | "-") term)*
func (p *parser) parseExpr() (Expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.kind != tokOp || (tok.text != "+" && tok.text != "-") {
			return left, nil
		}
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: BinaryOp(tok.text), Left: left, Right: right}
	}
}

// term := unary (("*" | "/" | "%") unary)*
func (p *parser) parseTerm() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.kind != tokOp || (tok.text != "*" && tok.text != "/" && tok.text != "%") {
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: BinaryOp(tok.text), Left: left, Right: right}
	}
}

// unary := ("-" | "+") unary | power
func (p *parser) parseUnary() (Expr, error) {
	tok := p.peek()
	if tok.kind == tokOp && (tok.text == "-" || tok.text == "+") {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if tok.text == "+" {
			return operand, nil
		}
		if c, ok := operand.(Constant); ok {
			return Constant{Value: -c.Value}, nil
		}
		return Unary{Op: OpNeg, Child: operand}, nil
	}
	return p.parsePower()
}

// power := primary ("^" unary)?
func (p *parser) parsePower() (Expr, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind == tokOp && tok.text == "^" {
		p.next()
		exponent, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Binary{Op: OpPow, Left: base, Right: exponent}, nil
	}
	return base, nil
}

func (p *parser) parsePrimary() (Expr, error) {
	tok := p.next()
	switch tok.kind {
	case tokNumber:
		return Constant{Value: tok.num}, nil
	case tokLParen:
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokRParen, ")"); err != nil {
			return nil, err
		}
		return inner, nil
	case tokIdent:
		return p.parseIdent(tok)
	default:
		return nil, fmt.Errorf("unexpected %q at %d", tok.text, tok.pos)
	}
}

func (p *parser) parseIdent(tok token) (Expr, error) {
	name := tok.text
	switch name {
	case "x":
		return Variable{}, nil
	case "π", "pi", "PI":
		return Constant{Value: math.Pi}, nil
	case "e", "E":
		return Constant{Value: math.E}, nil
	}

	if op, ok := unaryFuncs[name]; ok {
		args, err := p.parseArgs(1)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return Unary{Op: op, Child: args[0]}, nil
	}
	if op, ok := binaryFuncs[name]; ok {
		args, err := p.parseArgs(2)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return Binary{Op: op, Left: args[0], Right: args[1]}, nil
	}
	return nil, fmt.Errorf("unknown identifier %q at %d", name, tok.pos)
}

func (p *parser) parseArgs(n int) ([]Expr, error) {
	if err := p.expect(tokLParen, "("); err != nil {
		return nil, err
	}
	args := make([]Expr, 0, n)
	for i := 0; i < n; i++ {
		if i > 0 {
			if err := p.expect(tokComma, ","); err != nil {
				return nil, err
			}
		}
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	if err := p.expect(tokRParen, ")"); err != nil {
		return nil, err
	}
	return args, nil
}
