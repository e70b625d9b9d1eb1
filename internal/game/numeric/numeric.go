// Package numeric evaluates arithmetic operators, mathematical functions and
// constants with the game's difficulty-aware rounding rules.
//
// A Grind Deck value of 0 is treated as "uninitialized": arithmetic replaces
// it with the second operand, binary functions replace it with their second
// operand and unary functions keep it at 0.
//
// The evaluator never reports NaN or Inf as an error. The only failure is
// division by zero.
package numeric

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/mathcards/grinddeck-server/internal/game/cards"
	"github.com/shopspring/decimal"
)

// ErrDivisionByZero is returned for ÷ with a zero divisor.
var ErrDivisionByZero = errors.New("division by zero is not allowed")

var half = decimal.NewFromFloat(0.5)

// Round3 rounds v to three decimal places, ties toward +Inf on the scaled
// float product. Non-finite values pass through.
func Round3(v float64) float64 {
	scaled := v * 1000
	if math.IsNaN(scaled) || math.IsInf(scaled, 0) {
		return v
	}
	return decimal.NewFromFloat(scaled).Add(half).Floor().Shift(-3).InexactFloat64()
}

// Format renders a value the way move descriptions show it.
func Format(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ApplyArithmetic computes a op b. Under the basic tier division keeps only the
// floored quotient; everything else rounds to three decimals.
func ApplyArithmetic(a, b float64, op cards.ArithmeticOperator, difficulty cards.Difficulty) (float64, error) {
	round := func(v float64) float64 {
		if difficulty == cards.DifficultyBasic && op == cards.OpDivide {
			return math.Floor(v)
		}
		return Round3(v)
	}

	if a == 0 {
		return round(b), nil
	}

	switch op {
	case cards.OpAdd:
		return round(a + b), nil
	case cards.OpSubtract:
		return round(a - b), nil
	case cards.OpMultiply:
		return round(a * b), nil
	case cards.OpDivide:
		if b == 0 {
			return 0, ErrDivisionByZero
		}
		return round(a / b), nil
	default:
		return 0, fmt.Errorf("unknown arithmetic operator %q", op)
	}
}

// ApplyFunction applies a function operator to value. Binary operators take
// their second operand from second; when it is missing value is returned.
func ApplyFunction(value float64, op cards.FunctionOperator, second ...float64) float64 {
	secondValue, hasSecond := 0.0, len(second) > 0
	if hasSecond {
		secondValue = second[0]
	}

	if value == 0 {
		if hasSecond && (op == cards.FnPower || op == cards.FnPyth) {
			return Round3(secondValue)
		}
		return 0
	}

	switch op {
	case cards.FnSqrt:
		if value < 0 {
			return value
		}
		return Round3(math.Sqrt(value))
	case cards.FnCbrt:
		return Round3(math.Cbrt(value))
	case cards.FnSin:
		return Round3(math.Sin(degreesToRadians(value)))
	case cards.FnCos:
		return Round3(math.Cos(degreesToRadians(value)))
	case cards.FnTan:
		return Round3(math.Tan(degreesToRadians(value)))
	case cards.FnReciprocal:
		return Round3(1 / value)
	case cards.FnPower:
		if !hasSecond {
			return value
		}
		return Round3(math.Pow(value, secondValue))
	case cards.FnAbs:
		return Round3(math.Abs(value))
	case cards.FnPyth:
		if !hasSecond {
			return value
		}
		return Round3(math.Sqrt(value*value + secondValue*secondValue))
	case cards.FnFactorial:
		return Factorial(value)
	case cards.FnSquare:
		return Round3(value * value)
	case cards.FnCube:
		return Round3(value * value * value)
	case cards.FnModulus:
		if !hasSecond || secondValue == 0 {
			return value
		}
		return Round3(math.Mod(Round3(value), secondValue))
	case cards.FnLn:
		if value <= 0 {
			return value
		}
		return Round3(math.Log(value))
	case cards.FnPercent:
		return Round3(value * 100)
	case cards.FnExp:
		return Round3(math.Exp(value))
	default:
		return Round3(value)
	}
}

// Factorial is the iterative product n·(n-1)·…·1 of the rounded integer part of
// value. The result is not rounded; non-positive input yields 1.
func Factorial(value float64) float64 {
	n := math.Round(value)
	result := 1.0
	for i := n; i > 0; i-- {
		result *= i
	}
	return result
}

// ConstantValue returns π or e rounded to three decimals, 0 for unknown symbols.
func ConstantValue(c cards.Constant) float64 {
	switch c {
	case cards.ConstPi:
		return Round3(math.Pi)
	case cards.ConstE:
		return Round3(math.E)
	default:
		return 0
	}
}

// CardValue is the numeric value of a number-like card.
func CardValue(c cards.Card) (float64, bool) {
	switch c.Kind {
	case cards.KindNumber, cards.KindNegative:
		return float64(c.Value), true
	case cards.KindZero:
		return 0, true
	case cards.KindConstant:
		return ConstantValue(c.Constant), true
	default:
		return 0, false
	}
}

func degreesToRadians(v float64) float64 {
	return v * (math.Pi / 180)
}
