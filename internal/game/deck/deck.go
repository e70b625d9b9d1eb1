// Package deck builds difficulty-gated card decks and keeps the player's hand
// topped up and balanced from them.
package deck

import (
	"math/rand/v2"

	"github.com/mathcards/grinddeck-server/internal/game/cards"
)

// Multiplicities describes how many copies of each card family go into a deck.
type Multiplicities struct {
	Numbers       int // copies of each value 1..9
	Arithmetic    int // copies of each operator
	Zeros         int
	Negatives     int // copies of each value -1..-9
	Functions     int // copies of each common function operator
	HardFunctions int // copies of x^y, ! and exp
	Constants     int // copies of π and e
}

var (
	// InitialMultiplicities is used for the deck dealt at game start.
	InitialMultiplicities = Multiplicities{
		Numbers:       3,
		Arithmetic:    3,
		Zeros:         1,
		Negatives:     2,
		Functions:     2,
		HardFunctions: 1,
		Constants:     1,
	}

	// RegenMultiplicities is used whenever the deck runs short mid-game.
	RegenMultiplicities = Multiplicities{
		Numbers:       2,
		Arithmetic:    2,
		Zeros:         1,
		Negatives:     1,
		Functions:     1,
		HardFunctions: 1,
		Constants:     1,
	}
)

// commonFunctions and hardFunctions together make up cards.FunctionOperators.
var commonFunctions = []cards.FunctionOperator{
	cards.FnSqrt, cards.FnCbrt, cards.FnSin, cards.FnCos, cards.FnTan, cards.FnReciprocal,
	cards.FnAbs, cards.FnPyth, cards.FnSquare, cards.FnCube, cards.FnLn, cards.FnPercent,
}

var hardFunctions = []cards.FunctionOperator{cards.FnPower, cards.FnFactorial, cards.FnExp}

// Composition returns the unshuffled deck for a tier. Negatives join from the
// negative tier, functions from the functions tier and constants from decimals.
func Composition(difficulty cards.Difficulty, m Multiplicities) []cards.Card {
	deck := make([]cards.Card, 0, 96)

	for v := 1; v <= 9; v++ {
		for i := 0; i < m.Numbers; i++ {
			deck = append(deck, cards.NewNumber(v))
		}
	}
	for _, op := range cards.ArithmeticOperators {
		for i := 0; i < m.Arithmetic; i++ {
			deck = append(deck, cards.NewArithmetic(op))
		}
	}
	for i := 0; i < m.Zeros; i++ {
		deck = append(deck, cards.NewZero())
	}

	if difficulty.AtLeast(cards.DifficultyNegative) {
		for v := 1; v <= 9; v++ {
			for i := 0; i < m.Negatives; i++ {
				deck = append(deck, cards.NewNegative(-v))
			}
		}
	}

	if difficulty.AtLeast(cards.DifficultyFunctions) {
		for _, op := range commonFunctions {
			for i := 0; i < m.Functions; i++ {
				deck = append(deck, cards.NewFunction(op))
			}
		}
		for _, op := range hardFunctions {
			for i := 0; i < m.HardFunctions; i++ {
				deck = append(deck, cards.NewFunction(op))
			}
		}
	}

	if difficulty.AtLeast(cards.DifficultyDecimals) {
		for _, c := range cards.Constants {
			for i := 0; i < m.Constants; i++ {
				deck = append(deck, cards.NewConstant(c))
			}
		}
	}

	return deck
}

// Shuffle returns a Fisher–Yates permutation of deck. The input is not modified.
func Shuffle(r *rand.Rand, deck []cards.Card) []cards.Card {
	out := make([]cards.Card, len(deck))
	copy(out, deck)
	for i := len(out) - 1; i > 0; i-- {
		j := r.IntN(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// GenerateInitial builds and shuffles the deck dealt at game start.
func GenerateInitial(r *rand.Rand, difficulty cards.Difficulty) []cards.Card {
	return Shuffle(r, Composition(difficulty, InitialMultiplicities))
}

// Generate builds and shuffles a thinner regeneration deck.
func Generate(r *rand.Rand, difficulty cards.Difficulty) []cards.Card {
	return Shuffle(r, Composition(difficulty, RegenMultiplicities))
}

// Draw takes up to n cards from the front of deck. A short deck yields fewer
// cards; callers detect that by comparing len(drawn) with n.
func Draw(deck []cards.Card, n int) (drawn, remaining []cards.Card) {
	if n <= 0 {
		return nil, deck
	}
	if n > len(deck) {
		n = len(deck)
	}
	drawn = make([]cards.Card, n)
	copy(drawn, deck[:n])
	remaining = make([]cards.Card, len(deck)-n)
	copy(remaining, deck[n:])
	return drawn, remaining
}
