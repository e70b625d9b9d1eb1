// Package algebra holds the Algebra Deck function as an expression tree over
// the single free variable x. Trees are built symbolically from card plays and
// evaluated recursively; no expression is ever executed as code.
package algebra

import (
	"fmt"
	"math"

	"github.com/mathcards/grinddeck-server/internal/game/numeric"
)

// Expr is a node of an algebra function: a variable leaf, a constant leaf, a
// unary operation or a binary operation.
type Expr interface {
	// Eval computes the node with x bound to the given value. Results may be
	// NaN or Inf; callers decide how to treat them.
	Eval(x float64) float64
	String() string
	isExpr()
}

// UnaryOp names a single-operand operation.
type UnaryOp string

const (
	OpNeg       UnaryOp = "neg"
	OpSqrt      UnaryOp = "sqrt"
	OpCbrt      UnaryOp = "cbrt"
	OpSin       UnaryOp = "sin"
	OpCos       UnaryOp = "cos"
	OpTan       UnaryOp = "tan"
	OpAbs       UnaryOp = "abs"
	OpFactorial UnaryOp = "fact"
	OpLn        UnaryOp = "ln"
	OpExp       UnaryOp = "exp"
)

// BinaryOp names a two-operand operation.
type BinaryOp string

const (
	OpAdd   BinaryOp = "+"
	OpSub   BinaryOp = "-"
	OpMul   BinaryOp = "*"
	OpDiv   BinaryOp = "/"
	OpMod   BinaryOp = "%"
	OpPow   BinaryOp = "pow"
	OpHypot BinaryOp = "hypot"
)

// Variable is the free variable x.
type Variable struct{}

// Constant is a folded numeric leaf.
type Constant struct {
	Value float64
}

// Unary applies Op to Child.
type Unary struct {
	Op    UnaryOp
	Child Expr
}

// Binary applies Op to Left and Right.
type Binary struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
}

func (Variable) isExpr() {}
func (Constant) isExpr() {}
func (Unary) isExpr()    {}
func (Binary) isExpr()   {}

// Identity is the function f(x) = x every activated Algebra Deck starts from.
func Identity() Expr {
	return Variable{}
}

func (Variable) Eval(x float64) float64 { return x }

func (Variable) String() string { return "x" }

func (c Constant) Eval(float64) float64 { return c.Value }

func (c Constant) String() string { return numeric.Format(c.Value) }

func (u Unary) Eval(x float64) float64 {
	v := u.Child.Eval(x)
	switch u.Op {
	case OpNeg:
		return -v
	case OpSqrt:
		return math.Sqrt(v)
	case OpCbrt:
		return math.Cbrt(v)
	case OpSin:
		return math.Sin(v)
	case OpCos:
		return math.Cos(v)
	case OpTan:
		return math.Tan(v)
	case OpAbs:
		return math.Abs(v)
	case OpFactorial:
		return numeric.Factorial(v)
	case OpLn:
		return math.Log(v)
	case OpExp:
		return math.Exp(v)
	default:
		return math.NaN()
	}
}

func (u Unary) String() string {
	if u.Op == OpNeg {
		return fmt.Sprintf("(-%s)", u.Child)
	}
	return fmt.Sprintf("%s(%s)", u.Op, u.Child)
}

func (b Binary) Eval(x float64) float64 {
	l, r := b.Left.Eval(x), b.Right.Eval(x)
	switch b.Op {
	case OpAdd:
		return l + r
	case OpSub:
		return l - r
	case OpMul:
		return l * r
	case OpDiv:
		return l / r
	case OpMod:
		return math.Mod(l, r)
	case OpPow:
		return math.Pow(l, r)
	case OpHypot:
		return math.Sqrt(l*l + r*r)
	default:
		return math.NaN()
	}
}

func (b Binary) String() string {
	switch b.Op {
	case OpPow, OpHypot:
		return fmt.Sprintf("%s(%s, %s)", b.Op, b.Left, b.Right)
	default:
		return fmt.Sprintf("(%s %s %s)", b.Left, b.Op, b.Right)
	}
}

// Evaluate computes f at x. Non-finite results fall back to x itself; finite
// results are rounded to three decimals.
func Evaluate(f Expr, x float64) float64 {
	if f == nil {
		return numeric.Round3(x)
	}
	v := f.Eval(x)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return x
	}
	return numeric.Round3(v)
}

// EvaluateExpression parses a textual algebra function, substitutes x and
// evaluates it. Any parse fault yields 0.
func EvaluateExpression(expression string, x float64) float64 {
	f, err := Parse(expression)
	if err != nil {
		return 0
	}
	return Evaluate(f, x)
}

// ContainsVariable reports whether x occurs anywhere in f.
func ContainsVariable(f Expr) bool {
	switch n := f.(type) {
	case Variable:
		return true
	case Unary:
		return ContainsVariable(n.Child)
	case Binary:
		return ContainsVariable(n.Left) || ContainsVariable(n.Right)
	default:
		return false
	}
}
