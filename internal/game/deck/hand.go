package deck

import (
	"math/rand/v2"

	"github.com/mathcards/grinddeck-server/internal/game/cards"
)

// Report lists what a balance or replenish pass did to the hand.
type Report struct {
	Drawn       []cards.Card // cards drawn off the top of the deck
	Moved       []cards.Card // cards pulled out of the deck to repair balance
	Synthesized []cards.Card // cards created because the deck had none
	Regenerated int          // regeneration decks appended
}

// Changed reports whether the pass touched the hand at all.
func (r Report) Changed() bool {
	return len(r.Drawn) > 0 || len(r.Moved) > 0 || len(r.Synthesized) > 0
}

func (r *Report) merge(other Report) {
	r.Drawn = append(r.Drawn, other.Drawn...)
	r.Moved = append(r.Moved, other.Moved...)
	r.Synthesized = append(r.Synthesized, other.Synthesized...)
	r.Regenerated += other.Regenerated
}

// Dealer manages the deck/hand pair of one game. It never mutates the slices
// it is given; every method returns fresh hand and deck slices.
type Dealer struct {
	rng        *rand.Rand
	difficulty cards.Difficulty
}

// NewDealer creates a dealer for the given tier.
func NewDealer(r *rand.Rand, difficulty cards.Difficulty) *Dealer {
	return &Dealer{rng: r, difficulty: difficulty}
}

// Difficulty returns the tier the dealer deals for.
func (d *Dealer) Difficulty() cards.Difficulty {
	return d.difficulty
}

// Initial returns a freshly shuffled starting deck.
func (d *Dealer) Initial() []cards.Card {
	return GenerateInitial(d.rng, d.difficulty)
}

// Regen returns a freshly shuffled regeneration deck.
func (d *Dealer) Regen() []cards.Card {
	return Generate(d.rng, d.difficulty)
}

// Synthesize creates a random card of the given kind.
func (d *Dealer) Synthesize(kind cards.Kind) cards.Card {
	return cards.Random(d.rng, kind)
}

// Balance repairs the hand so it always holds at least one number-like card and,
// at the functions tier, one function and one arithmetic card; at every other
// tier it needs two arithmetic cards. Missing cards are pulled from the deck
// first and synthesized only when the deck has none.
func (d *Dealer) Balance(hand, deck []cards.Card) ([]cards.Card, []cards.Card, Report) {
	hand = clone(hand)
	deck = clone(deck)
	var report Report

	need := func(match func(cards.Card) bool, want int, kind cards.Kind) {
		for count(hand, match) < want {
			idx := index(deck, match)
			if idx >= 0 {
				card := deck[idx]
				deck = append(deck[:idx], deck[idx+1:]...)
				hand = append(hand, card)
				report.Moved = append(report.Moved, card)
				continue
			}
			card := d.Synthesize(kind)
			hand = append(hand, card)
			report.Synthesized = append(report.Synthesized, card)
		}
	}

	need(cards.Card.IsNumberLike, 1, cards.KindNumber)
	if d.difficulty == cards.DifficultyFunctions {
		need(isKind(cards.KindFunction), 1, cards.KindFunction)
		need(isKind(cards.KindArithmetic), 1, cards.KindArithmetic)
	} else {
		need(isKind(cards.KindArithmetic), 2, cards.KindArithmetic)
	}

	return hand, deck, report
}

// Fill tops the hand up to capacity from the front of the deck. When the deck
// cannot cover the shortfall a regeneration deck is appended behind the
// remaining cards, so nothing already in the deck is lost.
func (d *Dealer) Fill(hand, deck []cards.Card, capacity int) ([]cards.Card, []cards.Card, Report) {
	var report Report
	shortfall := capacity - len(hand)
	if shortfall <= 0 {
		return hand, deck, report
	}

	deck = clone(deck)
	for len(deck) < shortfall {
		deck = append(deck, d.Regen()...)
		report.Regenerated++
	}

	drawn, remaining := Draw(deck, shortfall)
	report.Drawn = drawn
	return append(clone(hand), drawn...), remaining, report
}

// Replenish runs a balance pass and then fills the hand to capacity.
func (d *Dealer) Replenish(hand, deck []cards.Card, capacity int) ([]cards.Card, []cards.Card, Report) {
	hand, deck, report := d.Balance(hand, deck)
	hand, deck, fill := d.Fill(hand, deck, capacity)
	report.merge(fill)
	return hand, deck, report
}

// DrawOne draws a single card into the hand unless it is already at capacity,
// regenerating an empty deck first, and then balances the hand.
func (d *Dealer) DrawOne(hand, deck []cards.Card, capacity int) ([]cards.Card, []cards.Card, Report) {
	var report Report
	if len(hand) >= capacity {
		return hand, deck, report
	}
	if len(deck) == 0 {
		deck = d.Regen()
		report.Regenerated++
	}
	drawn, remaining := Draw(deck, 1)
	report.Drawn = drawn
	hand = append(clone(hand), drawn...)

	hand, remaining, balance := d.Balance(hand, remaining)
	report.merge(balance)
	return hand, remaining, report
}

// Deal draws the opening hand from a fresh initial deck and balances it.
func (d *Dealer) Deal(capacity int) ([]cards.Card, []cards.Card, Report) {
	drawn, remaining := Draw(d.Initial(), capacity)
	hand, remaining, report := d.Balance(drawn, remaining)
	report.Drawn = drawn
	return hand, remaining, report
}

func isKind(kind cards.Kind) func(cards.Card) bool {
	return func(c cards.Card) bool { return c.Kind == kind }
}

func count(cs []cards.Card, match func(cards.Card) bool) int {
	n := 0
	for _, c := range cs {
		if match(c) {
			n++
		}
	}
	return n
}

func index(cs []cards.Card, match func(cards.Card) bool) int {
	for i, c := range cs {
		if match(c) {
			return i
		}
	}
	return -1
}

func clone(cs []cards.Card) []cards.Card {
	out := make([]cards.Card, len(cs))
	copy(out, cs)
	return out
}
