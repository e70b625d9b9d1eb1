package algebra

import (
	"fmt"

	"github.com/mathcards/grinddeck-server/internal/game/cards"
)

// ApplyArithmetic wraps f with an arithmetic card and the second card's value.
func ApplyArithmetic(f Expr, op cards.ArithmeticOperator, value float64) (Expr, error) {
	var bop BinaryOp
	switch op {
	case cards.OpAdd:
		bop = OpAdd
	case cards.OpSubtract:
		bop = OpSub
	case cards.OpMultiply:
		bop = OpMul
	case cards.OpDivide:
		bop = OpDiv
	default:
		return nil, fmt.Errorf("unknown arithmetic operator %q", op)
	}
	return Binary{Op: bop, Left: f, Right: Constant{Value: value}}, nil
}

// ApplyFunction wraps f with a function card. Binary operators use second as
// their right operand and leave f unchanged when it is missing. Trig operators
// take their argument in radians, unlike the Grind Deck evaluator.
func ApplyFunction(f Expr, op cards.FunctionOperator, second ...float64) (Expr, error) {
	unary := func(u UnaryOp) (Expr, error) { return Unary{Op: u, Child: f}, nil }
	binary := func(b BinaryOp) (Expr, error) {
		if len(second) == 0 {
			return f, nil
		}
		return Binary{Op: b, Left: f, Right: Constant{Value: second[0]}}, nil
	}

	switch op {
	case cards.FnSqrt:
		return unary(OpSqrt)
	case cards.FnCbrt:
		return unary(OpCbrt)
	case cards.FnSin:
		return unary(OpSin)
	case cards.FnCos:
		return unary(OpCos)
	case cards.FnTan:
		return unary(OpTan)
	case cards.FnAbs:
		return unary(OpAbs)
	case cards.FnFactorial:
		return unary(OpFactorial)
	case cards.FnLn:
		return unary(OpLn)
	case cards.FnExp:
		return unary(OpExp)
	case cards.FnReciprocal:
		return Binary{Op: OpDiv, Left: Constant{Value: 1}, Right: f}, nil
	case cards.FnSquare:
		return Binary{Op: OpPow, Left: f, Right: Constant{Value: 2}}, nil
	case cards.FnCube:
		return Binary{Op: OpPow, Left: f, Right: Constant{Value: 3}}, nil
	case cards.FnPercent:
		return Binary{Op: OpMul, Left: f, Right: Constant{Value: 100}}, nil
	case cards.FnPower:
		return binary(OpPow)
	case cards.FnPyth:
		return binary(OpHypot)
	case cards.FnModulus:
		return binary(OpMod)
	default:
		return nil, fmt.Errorf("unknown function operator %q", op)
	}
}
