package rules

import (
	"testing"

	"github.com/mathcards/grinddeck-server/internal/game/cards"
	"github.com/mathcards/grinddeck-server/internal/game/numeric"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockGameStateAccessor implements GameStateAccessor for testing
type mockGameStateAccessor struct {
	hand          map[string]cards.Card
	grindStarted  bool
	algebraActive bool
	target        TargetDeck
}

func newMockGameStateAccessor(hand ...cards.Card) *mockGameStateAccessor {
	m := &mockGameStateAccessor{hand: make(map[string]cards.Card)}
	for _, c := range hand {
		m.hand[c.ID] = c
	}
	return m
}

func (m *mockGameStateAccessor) FindHandCard(cardID string) (cards.Card, bool) {
	c, ok := m.hand[cardID]
	return c, ok
}

func (m *mockGameStateAccessor) GrindStarted() bool      { return m.grindStarted }
func (m *mockGameStateAccessor) AlgebraActive() bool     { return m.algebraActive }
func (m *mockGameStateAccessor) ActiveTarget() TargetDeck { return m.target }

func TestCheckSeed(t *testing.T) {
	five := cards.NewNumber(5)
	pi := cards.NewConstant(cards.ConstPi)
	plus := cards.NewArithmetic(cards.OpAdd)
	state := newMockGameStateAccessor(five, pi, plus)
	lc := NewLegalityChecker(state)

	res := lc.CheckSeed(five.ID, MoveNumber)
	require.True(t, res.Legal, res.Reason)
	assert.True(t, res.Plan.Seed)
	assert.Equal(t, TargetGrind, res.Plan.Target)
	assert.Equal(t, []cards.Card{five}, res.Plan.Cards())

	assert.True(t, lc.CheckSeed(pi.ID, MoveConstant).Legal)
	assert.True(t, lc.CheckSeed(pi.ID, MoveNumber).Legal)
	assert.False(t, lc.CheckSeed(five.ID, MoveConstant).Legal)
	assert.False(t, lc.CheckSeed(plus.ID, MoveNumber).Legal)
	assert.False(t, lc.CheckSeed("missing", MoveNumber).Legal)

	state.grindStarted = true
	res = lc.CheckSeed(five.ID, MoveNumber)
	assert.False(t, res.Legal)
	assert.Nil(t, res.Fault)

	state.grindStarted = false
	state.algebraActive = true
	assert.False(t, lc.CheckSeed(five.ID, MoveNumber).Legal)
}

func TestCheckArithmetic(t *testing.T) {
	plus := cards.NewArithmetic(cards.OpAdd)
	div := cards.NewArithmetic(cards.OpDivide)
	three := cards.NewNumber(3)
	zero := cards.NewZero()
	sqrt := cards.NewFunction(cards.FnSqrt)
	state := newMockGameStateAccessor(plus, div, three, zero, sqrt)
	lc := NewLegalityChecker(state)

	res := lc.CheckArithmetic(plus.ID, three.ID)
	assert.False(t, res.Legal, "nothing to operate on before the seed")

	state.grindStarted = true
	res = lc.CheckArithmetic(plus.ID, three.ID)
	require.True(t, res.Legal, res.Reason)
	assert.Equal(t, TargetGrind, res.Plan.Target)
	assert.Equal(t, []cards.Card{plus, three}, res.Plan.Cards())

	assert.False(t, lc.CheckArithmetic(plus.ID, "").Legal)
	assert.False(t, lc.CheckArithmetic(plus.ID, plus.ID).Legal)
	assert.False(t, lc.CheckArithmetic(plus.ID, sqrt.ID).Legal)
	assert.False(t, lc.CheckArithmetic(three.ID, plus.ID).Legal)

	res = lc.CheckArithmetic(div.ID, zero.ID)
	assert.False(t, res.Legal)
	assert.ErrorIs(t, res.Fault, numeric.ErrDivisionByZero)
}

func TestCheckArithmeticRouting(t *testing.T) {
	plus := cards.NewArithmetic(cards.OpAdd)
	two := cards.NewNumber(2)
	state := newMockGameStateAccessor(plus, two)
	lc := NewLegalityChecker(state)

	// algebra selected but not active routes to grind
	state.target = TargetAlgebra
	state.grindStarted = true
	assert.Equal(t, TargetGrind, lc.CheckArithmetic(plus.ID, two.ID).Plan.Target)

	// algebra target works even before the grind is seeded
	state.grindStarted = false
	state.algebraActive = true
	res := lc.CheckArithmetic(plus.ID, two.ID)
	require.True(t, res.Legal, res.Reason)
	assert.Equal(t, TargetAlgebra, res.Plan.Target)

	// no target falls back to grind, which is empty
	state.target = TargetNone
	assert.False(t, lc.CheckArithmetic(plus.ID, two.ID).Legal)
}

func TestCheckFunction(t *testing.T) {
	sqrt := cards.NewFunction(cards.FnSqrt)
	pow := cards.NewFunction(cards.FnPower)
	two := cards.NewNumber(2)
	state := newMockGameStateAccessor(sqrt, pow, two)
	state.grindStarted = true
	lc := NewLegalityChecker(state)

	res := lc.CheckFunction(sqrt.ID, two.ID)
	require.True(t, res.Legal, res.Reason)
	assert.Nil(t, res.Plan.Second, "unary functions ignore the second card")

	assert.False(t, lc.CheckFunction(pow.ID, "").Legal)
	res = lc.CheckFunction(pow.ID, two.ID)
	require.True(t, res.Legal, res.Reason)
	require.NotNil(t, res.Plan.Second)
	assert.Equal(t, two.ID, res.Plan.Second.ID)

	assert.False(t, lc.CheckFunction(two.ID, "").Legal)
}

func TestCheckInitiate(t *testing.T) {
	plus := cards.NewArithmetic(cards.OpAdd)
	pow := cards.NewFunction(cards.FnPower)
	one := cards.NewNumber(1)
	state := newMockGameStateAccessor(plus, pow, one)
	lc := NewLegalityChecker(state)

	assert.False(t, lc.CheckInitiate(plus.ID).Legal)

	state.grindStarted = true
	res := lc.CheckInitiate(plus.ID)
	require.True(t, res.Legal, res.Reason)
	assert.Equal(t, MoveArithmetic, res.Plan.Kind)

	res = lc.CheckInitiate(pow.ID)
	require.True(t, res.Legal, res.Reason)
	assert.Equal(t, MoveFunction, res.Plan.Kind)

	assert.False(t, lc.CheckInitiate(one.ID).Legal)
}

func TestCheckVariable(t *testing.T) {
	x := cards.NewVariable()
	one := cards.NewNumber(1)
	state := newMockGameStateAccessor(x, one)
	lc := NewLegalityChecker(state)

	res := lc.CheckVariable(x.ID)
	require.True(t, res.Legal, res.Reason)
	assert.Equal(t, TargetAlgebra, res.Plan.Target)

	assert.False(t, lc.CheckVariable(one.ID).Legal)

	state.algebraActive = true
	assert.False(t, lc.CheckVariable(x.ID).Legal)
}

func TestCheckApplyAlgebra(t *testing.T) {
	state := newMockGameStateAccessor()
	lc := NewLegalityChecker(state)

	assert.False(t, lc.CheckApplyAlgebra().Legal)

	state.algebraActive = true
	assert.False(t, lc.CheckApplyAlgebra().Legal)

	state.grindStarted = true
	res := lc.CheckApplyAlgebra()
	assert.True(t, res.Legal)
	assert.Empty(t, res.Plan.Cards())
}

func TestParseTargetDeck(t *testing.T) {
	for in, want := range map[string]TargetDeck{"": TargetNone, "null": TargetNone, "grind": TargetGrind, "algebra": TargetAlgebra} {
		got, ok := ParseTargetDeck(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got)
	}
	_, ok := ParseTargetDeck("discard")
	assert.False(t, ok)
}
