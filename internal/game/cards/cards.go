package cards

import (
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"
)

// Kind identifies the variant of a card.
type Kind string

const (
	KindNumber     Kind = "number"
	KindZero       Kind = "zero"
	KindNegative   Kind = "negative"
	KindArithmetic Kind = "arithmetic"
	KindFunction   Kind = "function"
	KindConstant   Kind = "constant"
	KindVariable   Kind = "variable"
)

// ArithmeticOperator is one of the four binary arithmetic operators.
type ArithmeticOperator string

const (
	OpAdd      ArithmeticOperator = "+"
	OpSubtract ArithmeticOperator = "-"
	OpMultiply ArithmeticOperator = "×"
	OpDivide   ArithmeticOperator = "÷"
)

// ArithmeticOperators lists the arithmetic operators in deck order.
var ArithmeticOperators = []ArithmeticOperator{OpAdd, OpSubtract, OpMultiply, OpDivide}

// FunctionOperator is a unary or binary mathematical function.
type FunctionOperator string

const (
	FnSqrt       FunctionOperator = "√"
	FnCbrt       FunctionOperator = "∛"
	FnSin        FunctionOperator = "sin"
	FnCos        FunctionOperator = "cos"
	FnTan        FunctionOperator = "tan"
	FnReciprocal FunctionOperator = "1/x"
	FnPower      FunctionOperator = "x^y"
	FnAbs        FunctionOperator = "mod"
	FnPyth       FunctionOperator = "pyth"
	FnFactorial  FunctionOperator = "!"
	FnSquare     FunctionOperator = "x^2"
	FnCube       FunctionOperator = "x^3"
	FnModulus    FunctionOperator = "modulus"
	FnPercent    FunctionOperator = "%"
	FnLn         FunctionOperator = "ln"
	FnExp        FunctionOperator = "exp"
)

// FunctionOperators is the full set dealt into regeneration decks and used for
// synthesized function cards. Modulus is declared but never dealt.
var FunctionOperators = []FunctionOperator{
	FnSqrt, FnCbrt, FnSin, FnCos, FnTan, FnReciprocal, FnPower, FnAbs, FnPyth,
	FnFactorial, FnSquare, FnCube, FnLn, FnPercent, FnExp,
}

// IsBinary reports whether the operator needs a second number-like operand.
func (op FunctionOperator) IsBinary() bool {
	switch op {
	case FnPower, FnPyth, FnModulus:
		return true
	default:
		return false
	}
}

// Valid reports whether op is a known function operator.
func (op FunctionOperator) Valid() bool {
	if op == FnModulus {
		return true
	}
	for _, known := range FunctionOperators {
		if known == op {
			return true
		}
	}
	return false
}

// Constant is a named mathematical constant.
type Constant string

const (
	ConstPi Constant = "π"
	ConstE  Constant = "e"
)

// Constants lists the dealable constants.
var Constants = []Constant{ConstPi, ConstE}

// VariableSymbol is the only free variable in the game.
const VariableSymbol = "x"

// Card is an immutable value object. Identity is the ID, never the payload.
type Card struct {
	ID         string             `json:"id"`
	Kind       Kind               `json:"type"`
	Value      int                `json:"value,omitempty"`
	Arithmetic ArithmeticOperator `json:"arithmetic,omitempty"`
	Function   FunctionOperator   `json:"function,omitempty"`
	Constant   Constant           `json:"constant,omitempty"`
	Symbol     string             `json:"symbol,omitempty"`
}

// NewNumber creates a positive number card.
func NewNumber(value int) Card {
	return Card{ID: uuid.NewString(), Kind: KindNumber, Value: value}
}

// NewZero creates a zero card.
func NewZero() Card {
	return Card{ID: uuid.NewString(), Kind: KindZero}
}

// NewNegative creates a negative number card. value must already be negative.
func NewNegative(value int) Card {
	return Card{ID: uuid.NewString(), Kind: KindNegative, Value: value}
}

// NewArithmetic creates an arithmetic operator card.
func NewArithmetic(op ArithmeticOperator) Card {
	return Card{ID: uuid.NewString(), Kind: KindArithmetic, Arithmetic: op}
}

// NewFunction creates a function card.
func NewFunction(op FunctionOperator) Card {
	return Card{ID: uuid.NewString(), Kind: KindFunction, Function: op}
}

// NewConstant creates a constant card.
func NewConstant(c Constant) Card {
	return Card{ID: uuid.NewString(), Kind: KindConstant, Constant: c}
}

// NewVariable creates the variable card "x".
func NewVariable() Card {
	return Card{ID: uuid.NewString(), Kind: KindVariable, Symbol: VariableSymbol}
}

// IsNumberLike reports whether the card can seed the Grind Deck or serve as a
// second operand.
func (c Card) IsNumberLike() bool {
	switch c.Kind {
	case KindNumber, KindZero, KindNegative, KindConstant:
		return true
	default:
		return false
	}
}

// Label is a short human-readable rendering of the card face.
func (c Card) Label() string {
	switch c.Kind {
	case KindNumber, KindNegative:
		return fmt.Sprintf("%d", c.Value)
	case KindZero:
		return "0"
	case KindArithmetic:
		return string(c.Arithmetic)
	case KindFunction:
		return string(c.Function)
	case KindConstant:
		return string(c.Constant)
	case KindVariable:
		return c.Symbol
	default:
		return "?"
	}
}

// Random synthesizes a fresh card of the given kind. Used when the deck cannot
// satisfy a hand-balance repair and when a feature unlock injects a card.
func Random(r *rand.Rand, kind Kind) Card {
	switch kind {
	case KindNumber:
		return NewNumber(r.IntN(9) + 1)
	case KindZero:
		return NewZero()
	case KindNegative:
		return NewNegative(-(r.IntN(9) + 1))
	case KindArithmetic:
		return NewArithmetic(ArithmeticOperators[r.IntN(len(ArithmeticOperators))])
	case KindFunction:
		return NewFunction(FunctionOperators[r.IntN(len(FunctionOperators))])
	case KindConstant:
		return NewConstant(Constants[r.IntN(len(Constants))])
	default:
		return NewVariable()
	}
}

// Remove returns cards without the card whose ID matches, and whether it was found.
// The input slice is never modified.
func Remove(cards []Card, id string) ([]Card, bool) {
	out := make([]Card, 0, len(cards))
	found := false
	for _, c := range cards {
		if !found && c.ID == id {
			found = true
			continue
		}
		out = append(out, c)
	}
	return out, found
}

// Find returns the card with the given ID.
func Find(cards []Card, id string) (Card, bool) {
	for _, c := range cards {
		if c.ID == id {
			return c, true
		}
	}
	return Card{}, false
}
