package rules

import (
	"github.com/mathcards/grinddeck-server/internal/game/cards"
	"github.com/mathcards/grinddeck-server/internal/game/numeric"
)

// TargetDeck routes arithmetic and function plays.
type TargetDeck string

const (
	TargetNone    TargetDeck = ""
	TargetGrind   TargetDeck = "grind"
	TargetAlgebra TargetDeck = "algebra"
)

// ParseTargetDeck accepts "grind", "algebra" or "" (and "null") for no target.
func ParseTargetDeck(s string) (TargetDeck, bool) {
	switch s {
	case "", "null":
		return TargetNone, true
	case string(TargetGrind):
		return TargetGrind, true
	case string(TargetAlgebra):
		return TargetAlgebra, true
	default:
		return TargetNone, false
	}
}

// MoveKind names the type of a move.
type MoveKind string

const (
	MoveNumber     MoveKind = "number"
	MoveArithmetic MoveKind = "arithmetic"
	MoveFunction   MoveKind = "function"
	MoveConstant   MoveKind = "constant"
	MoveVariable   MoveKind = "variable"
	MoveAlgebra    MoveKind = "algebra"
)

// GameStateAccessor provides the state needed for move legality checks.
type GameStateAccessor interface {
	// FindHandCard finds a card by ID in the player's hand
	FindHandCard(cardID string) (cards.Card, bool)
	// GrindStarted reports whether the Grind Deck has been seeded
	GrindStarted() bool
	// AlgebraActive reports whether a Variable card has activated the Algebra Deck
	AlgebraActive() bool
	// ActiveTarget returns the player's current routing choice
	ActiveTarget() TargetDeck
}

// MovePlan is a move that passed every legality check, resolved to concrete cards.
type MovePlan struct {
	Kind   MoveKind
	Card   cards.Card
	Second *cards.Card
	// Target is where the move lands. Seeds and the algebra application always
	// land on the Grind Deck; a Variable card lands on the Algebra Deck.
	Target TargetDeck
	// Seed is set when a number-like card starts the Grind Deck.
	Seed bool
}

// Cards returns the cards consumed by the move.
func (p MovePlan) Cards() []cards.Card {
	if p.Kind == MoveAlgebra {
		return nil
	}
	if p.Second != nil {
		return []cards.Card{p.Card, *p.Second}
	}
	return []cards.Card{p.Card}
}

// LegalityResult represents the result of a legality check.
type LegalityResult struct {
	Legal   bool
	Reason  string
	Details map[string]string
	// Fault is set when the move is rejected by an evaluator fault rather
	// than by the rules, e.g. numeric.ErrDivisionByZero.
	Fault error
	Plan  MovePlan
}

// LegalityChecker validates moves before any state is touched.
type LegalityChecker struct {
	gameState GameStateAccessor
}

// NewLegalityChecker creates a new legality checker.
func NewLegalityChecker(gameState GameStateAccessor) *LegalityChecker {
	return &LegalityChecker{gameState: gameState}
}

func illegal(reason string, details map[string]string) LegalityResult {
	return LegalityResult{Legal: false, Reason: reason, Details: details}
}

func legal(plan MovePlan) LegalityResult {
	return LegalityResult{Legal: true, Reason: "All legality checks passed", Plan: plan}
}

// Route resolves where an arithmetic or function play lands. The Algebra Deck
// is only used when it is both selected and active; everything else goes to
// the Grind Deck.
func (lc *LegalityChecker) Route() TargetDeck {
	if lc.gameState.ActiveTarget() == TargetAlgebra && lc.gameState.AlgebraActive() {
		return TargetAlgebra
	}
	return TargetGrind
}

func (lc *LegalityChecker) handCard(cardID string) (cards.Card, LegalityResult, bool) {
	card, ok := lc.gameState.FindHandCard(cardID)
	if !ok {
		return cards.Card{}, illegal("Card not in hand", map[string]string{"card_id": cardID}), false
	}
	return card, LegalityResult{}, true
}

func (lc *LegalityChecker) secondCard(firstID, secondID string) (cards.Card, LegalityResult, bool) {
	if secondID == "" {
		return cards.Card{}, illegal("Second number-like card required", map[string]string{"card_id": firstID}), false
	}
	if secondID == firstID {
		return cards.Card{}, illegal("A card cannot be its own operand", map[string]string{"card_id": firstID}), false
	}
	second, res, ok := lc.handCard(secondID)
	if !ok {
		return second, res, false
	}
	if !second.IsNumberLike() {
		return second, illegal("Second card is not number-like", map[string]string{
			"card_id": secondID,
			"type":    string(second.Kind),
		}), false
	}
	return second, LegalityResult{}, true
}

// CheckSeed validates playing a number-like card on its own. This is only
// legal while the Grind Deck is empty and no Algebra Deck is active.
func (lc *LegalityChecker) CheckSeed(cardID string, kind MoveKind) LegalityResult {
	card, res, ok := lc.handCard(cardID)
	if !ok {
		return res
	}
	if !card.IsNumberLike() {
		return illegal("Card is not number-like", map[string]string{"card_id": cardID, "type": string(card.Kind)})
	}
	if kind == MoveConstant && card.Kind != cards.KindConstant {
		return illegal("Card is not a constant", map[string]string{"card_id": cardID, "type": string(card.Kind)})
	}
	if lc.gameState.GrindStarted() || lc.gameState.AlgebraActive() {
		return illegal("Number-like card can only complete a pending operation", map[string]string{"card_id": cardID})
	}
	return legal(MovePlan{Kind: kind, Card: card, Target: TargetGrind, Seed: true})
}

func (lc *LegalityChecker) checkOperand(cardID string) LegalityResult {
	target := lc.Route()
	if target == TargetGrind && !lc.gameState.GrindStarted() {
		return illegal("Nothing to operate on", map[string]string{"card_id": cardID})
	}
	return LegalityResult{Legal: true, Plan: MovePlan{Target: target}}
}

// CheckInitiate validates selecting an arithmetic or function card as the
// first half of a move, before its operand is known.
func (lc *LegalityChecker) CheckInitiate(cardID string) LegalityResult {
	card, res, ok := lc.handCard(cardID)
	if !ok {
		return res
	}
	kind := MoveArithmetic
	switch card.Kind {
	case cards.KindArithmetic:
	case cards.KindFunction:
		kind = MoveFunction
	default:
		return illegal("Card does not start an operation", map[string]string{"card_id": cardID, "type": string(card.Kind)})
	}
	route := lc.checkOperand(cardID)
	if !route.Legal {
		return route
	}
	return legal(MovePlan{Kind: kind, Card: card, Target: route.Plan.Target})
}

// CheckArithmetic validates an arithmetic card paired with a number-like card.
func (lc *LegalityChecker) CheckArithmetic(cardID, secondID string) LegalityResult {
	card, res, ok := lc.handCard(cardID)
	if !ok {
		return res
	}
	if card.Kind != cards.KindArithmetic {
		return illegal("Card is not an arithmetic card", map[string]string{"card_id": cardID, "type": string(card.Kind)})
	}
	route := lc.checkOperand(cardID)
	if !route.Legal {
		return route
	}
	second, res, ok := lc.secondCard(cardID, secondID)
	if !ok {
		return res
	}
	if card.Arithmetic == cards.OpDivide {
		if v, _ := numeric.CardValue(second); v == 0 {
			res := illegal("Division by zero", map[string]string{"card_id": cardID, "second_card_id": secondID})
			res.Fault = numeric.ErrDivisionByZero
			return res
		}
	}
	return legal(MovePlan{Kind: MoveArithmetic, Card: card, Second: &second, Target: route.Plan.Target})
}

// CheckFunction validates a function card. Binary operators need a
// number-like second card; unary operators ignore secondID.
func (lc *LegalityChecker) CheckFunction(cardID, secondID string) LegalityResult {
	card, res, ok := lc.handCard(cardID)
	if !ok {
		return res
	}
	if card.Kind != cards.KindFunction {
		return illegal("Card is not a function card", map[string]string{"card_id": cardID, "type": string(card.Kind)})
	}
	route := lc.checkOperand(cardID)
	if !route.Legal {
		return route
	}
	plan := MovePlan{Kind: MoveFunction, Card: card, Target: route.Plan.Target}
	if card.Function.IsBinary() {
		second, res, ok := lc.secondCard(cardID, secondID)
		if !ok {
			return res
		}
		plan.Second = &second
	}
	return legal(plan)
}

// CheckVariable validates a Variable card. Only one activation may be live.
func (lc *LegalityChecker) CheckVariable(cardID string) LegalityResult {
	card, res, ok := lc.handCard(cardID)
	if !ok {
		return res
	}
	if card.Kind != cards.KindVariable {
		return illegal("Card is not a variable card", map[string]string{"card_id": cardID, "type": string(card.Kind)})
	}
	if lc.gameState.AlgebraActive() {
		return illegal("Algebra Deck already active", map[string]string{"card_id": cardID})
	}
	return legal(MovePlan{Kind: MoveVariable, Card: card, Target: TargetAlgebra})
}

// CheckApplyAlgebra validates applying the Algebra Function to the Grind Deck.
func (lc *LegalityChecker) CheckApplyAlgebra() LegalityResult {
	if !lc.gameState.AlgebraActive() {
		return illegal("Algebra Deck not active", nil)
	}
	if !lc.gameState.GrindStarted() {
		return illegal("Grind Deck has no value to substitute", nil)
	}
	return legal(MovePlan{Kind: MoveAlgebra, Target: TargetGrind})
}
