package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mathcards/grinddeck-server/internal/game/cards"
	"github.com/mathcards/grinddeck-server/internal/game/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type mapKV struct {
	mu     sync.Mutex
	values map[string]string
	err    error
}

func newMapKV() *mapKV {
	return &mapKV{values: make(map[string]string)}
}

func (kv *mapKV) Get(_ context.Context, key string) (string, bool, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if kv.err != nil {
		return "", false, kv.err
	}
	v, ok := kv.values[key]
	return v, ok, nil
}

func (kv *mapKV) Set(_ context.Context, key, value string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if kv.err != nil {
		return kv.err
	}
	kv.values[key] = value
	return nil
}

type recordingHistory struct {
	mu        sync.Mutex
	summaries []Summary
}

func (h *recordingHistory) Record(_ context.Context, summary Summary) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.summaries = append(h.summaries, summary)
	return nil
}

func (h *recordingHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.summaries)
}

func newTestEngine(t *testing.T, cfg Config, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{
		WithLogger(zaptest.NewLogger(t)),
		WithSeed(42),
	}, opts...)
	e, err := StartGame(context.Background(), cfg, opts...)
	require.NoError(t, err)
	return e
}

// setHand replaces the hand so a test controls exactly which cards are held.
func setHand(e *Engine, hand ...cards.Card) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.hand = hand
}

func collect(bus *rules.EventBus, eventType rules.EventType) func() []rules.Event {
	var mu sync.Mutex
	var got []rules.Event
	bus.SubscribeTyped(eventType, func(evt rules.Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, evt)
	})
	return func() []rules.Event {
		mu.Lock()
		defer mu.Unlock()
		return append([]rules.Event(nil), got...)
	}
}

func countKind(hand []cards.Card, match func(cards.Card) bool) int {
	n := 0
	for _, c := range hand {
		if match(c) {
			n++
		}
	}
	return n
}

func TestStartGameDealsBalancedHand(t *testing.T) {
	kv := newMapKV()
	kv.values[DefaultKeyPrefix+KeyHighScore] = "250"
	e := newTestEngine(t, Config{Difficulty: cards.DifficultyBasic}, WithKeyValueStore(kv, ""))

	hand := e.Hand()
	assert.GreaterOrEqual(t, len(hand), rules.BaseHandSize)
	assert.GreaterOrEqual(t, countKind(hand, cards.Card.IsNumberLike), 1)
	assert.GreaterOrEqual(t, countKind(hand, func(c cards.Card) bool { return c.Kind == cards.KindArithmetic }), 2)

	assert.Equal(t, rules.BaseHandSize, e.HandCapacity())
	assert.Equal(t, float64(250), e.HighScore())
	assert.Zero(t, e.Score())
	assert.Equal(t, "basic", kv.values[DefaultKeyPrefix+KeyDifficulty])
	assert.Equal(t, rules.ModeUnlimited, e.Session().Mode)
	assert.Equal(t, "x", e.AlgebraFunction().String())
	assert.Equal(t, rules.TargetNone, e.ActiveTarget())
}

func TestStartGameRejectsBadConfig(t *testing.T) {
	_, err := StartGame(context.Background(), Config{Difficulty: "impossible"})
	assert.Error(t, err)

	_, err = StartGame(context.Background(), Config{Difficulty: cards.DifficultyBasic, Mode: rules.ModeTimeLimited})
	assert.Error(t, err)
}

func TestBasicArithmetic(t *testing.T) {
	e := newTestEngine(t, Config{Difficulty: cards.DifficultyBasic})
	ctx := context.Background()

	five, plus, three := cards.NewNumber(5), cards.NewArithmetic(cards.OpAdd), cards.NewNumber(3)
	setHand(e, five, plus, three)

	require.NoError(t, e.PlayNumberCard(ctx, five.ID))
	assert.Equal(t, float64(5), e.GrindValue())
	assert.Zero(t, e.Score(), "seeding does not score")

	require.NoError(t, e.PlayArithmeticCard(ctx, plus.ID, three.ID))
	assert.Equal(t, float64(8), e.GrindValue())
	assert.Equal(t, float64(8), e.Score())
	assert.Len(t, e.GrindDeck(), 3)

	moves := e.Moves()
	require.Len(t, moves, 2)
	assert.Equal(t, "Started with 5", moves[0].Description)
	assert.Equal(t, rules.MoveArithmetic, moves[1].Type)
	assert.Equal(t, "5 + 3 = 8", moves[1].Description)
	require.NotNil(t, moves[1].ResultValue)
	assert.Equal(t, float64(8), *moves[1].ResultValue)

	_, held := cards.Find(e.Hand(), plus.ID)
	assert.False(t, held)
	assert.GreaterOrEqual(t, len(e.Hand()), rules.BaseHandSize, "hand is replenished after a move")
	assert.Equal(t, 3, e.Session().CardsPlayed)
}

func TestBasicDivisionFloors(t *testing.T) {
	e := newTestEngine(t, Config{Difficulty: cards.DifficultyBasic})
	ctx := context.Background()

	seven, div, two := cards.NewNumber(7), cards.NewArithmetic(cards.OpDivide), cards.NewNumber(2)
	setHand(e, seven, div, two)

	require.NoError(t, e.PlayNumberCard(ctx, seven.ID))
	require.NoError(t, e.PlayArithmeticCard(ctx, div.ID, two.ID))
	assert.Equal(t, float64(3), e.GrindValue())
}

func TestDivisionByZeroLeavesStateUntouched(t *testing.T) {
	e := newTestEngine(t, Config{Difficulty: cards.DifficultyBasic})
	ctx := context.Background()

	seven, div, zero := cards.NewNumber(7), cards.NewArithmetic(cards.OpDivide), cards.NewZero()
	setHand(e, seven, div, zero)
	require.NoError(t, e.PlayNumberCard(ctx, seven.ID))

	before := e.View()
	err := e.PlayArithmeticCard(ctx, div.ID, zero.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDivisionByZero)

	after := e.View()
	assert.Equal(t, before.Hand, after.Hand)
	assert.Equal(t, before.GrindValue, after.GrindValue)
	assert.Equal(t, before.MoveCount, after.MoveCount)
	assert.Equal(t, before.Session.CardsPlayed, after.Session.CardsPlayed)
}

func TestIllegalMovesAreRejected(t *testing.T) {
	e := newTestEngine(t, Config{Difficulty: cards.DifficultyBasic})
	ctx := context.Background()

	five, six, plus := cards.NewNumber(5), cards.NewNumber(6), cards.NewArithmetic(cards.OpAdd)
	setHand(e, five, six, plus)

	assert.ErrorIs(t, e.PlayArithmeticCard(ctx, plus.ID, six.ID), ErrIllegalMove, "nothing to operate on")
	assert.ErrorIs(t, e.PlayNumberCard(ctx, "missing"), ErrIllegalMove)

	require.NoError(t, e.PlayNumberCard(ctx, five.ID))
	assert.ErrorIs(t, e.PlayNumberCard(ctx, six.ID), ErrIllegalMove, "seed only on an empty grind")
	assert.ErrorIs(t, e.PlayArithmeticCard(ctx, plus.ID, plus.ID), ErrIllegalMove)
	assert.Len(t, e.Moves(), 1)
}

func TestNonFiniteResultIsRejected(t *testing.T) {
	e := newTestEngine(t, Config{Difficulty: cards.DifficultyDecimals})
	ctx := context.Background()

	neg, pow, pi := cards.NewNegative(-8), cards.NewFunction(cards.FnPower), cards.NewConstant(cards.ConstPi)
	setHand(e, neg, pow, pi)
	require.NoError(t, e.PlayNumberCard(ctx, neg.ID))

	err := e.PlayFunctionCard(ctx, pow.ID, pi.ID)
	assert.ErrorIs(t, err, ErrNonFiniteResult)
	assert.Equal(t, float64(-8), e.GrindValue())
}

func TestFunctionDescriptions(t *testing.T) {
	e := newTestEngine(t, Config{Difficulty: cards.DifficultyFunctions})
	ctx := context.Background()

	nine, sqrt, pow, two := cards.NewNumber(9), cards.NewFunction(cards.FnSqrt), cards.NewFunction(cards.FnPower), cards.NewNumber(2)
	setHand(e, nine, sqrt, pow, two)

	require.NoError(t, e.PlayNumberCard(ctx, nine.ID))
	require.NoError(t, e.PlayFunctionCard(ctx, sqrt.ID, two.ID))
	assert.Equal(t, float64(3), e.GrindValue())
	_, held := cards.Find(e.Hand(), two.ID)
	assert.True(t, held, "unary functions leave the second card in hand")

	assert.ErrorIs(t, e.PlayFunctionCard(ctx, pow.ID, ""), ErrIllegalMove)
	require.NoError(t, e.PlayFunctionCard(ctx, pow.ID, two.ID))
	assert.Equal(t, float64(9), e.GrindValue())

	moves := e.Moves()
	require.Len(t, moves, 3)
	assert.Equal(t, "√(9) = 3", moves[1].Description)
	assert.Equal(t, "x^y(3, 2) = 9", moves[2].Description)
	assert.Equal(t, 4, e.Session().CardsPlayed)
}

func TestScoreIsMonotonic(t *testing.T) {
	e := newTestEngine(t, Config{Difficulty: cards.DifficultyBasic})
	ctx := context.Background()

	nine, times, two, minus, fifteen := cards.NewNumber(9), cards.NewArithmetic(cards.OpMultiply), cards.NewNumber(2),
		cards.NewArithmetic(cards.OpSubtract), cards.NewNumber(15)
	setHand(e, nine, times, two, minus, fifteen)

	require.NoError(t, e.PlayNumberCard(ctx, nine.ID))
	require.NoError(t, e.PlayArithmeticCard(ctx, times.ID, two.ID))
	assert.Equal(t, float64(18), e.Score())

	require.NoError(t, e.PlayArithmeticCard(ctx, minus.ID, fifteen.ID))
	assert.Equal(t, float64(3), e.GrindValue())
	assert.Equal(t, float64(18), e.Score())
}

func TestHighScoreIsPersisted(t *testing.T) {
	kv := newMapKV()
	kv.values["test_"+KeyHighScore] = "10"
	e := newTestEngine(t, Config{Difficulty: cards.DifficultyBasic}, WithKeyValueStore(kv, "test_"))
	ctx := context.Background()

	highs := collect(e.Events(), rules.EventHighScore)

	five, plus, three, times, four := cards.NewNumber(5), cards.NewArithmetic(cards.OpAdd), cards.NewNumber(3),
		cards.NewArithmetic(cards.OpMultiply), cards.NewNumber(4)
	setHand(e, five, plus, three, times, four)

	require.NoError(t, e.PlayNumberCard(ctx, five.ID))
	require.NoError(t, e.PlayArithmeticCard(ctx, plus.ID, three.ID))
	assert.Equal(t, float64(10), e.HighScore())
	assert.Equal(t, "10", kv.values["test_"+KeyHighScore])
	assert.Empty(t, highs())

	require.NoError(t, e.PlayArithmeticCard(ctx, times.ID, four.ID))
	assert.Equal(t, float64(32), e.HighScore())
	assert.Equal(t, "32", kv.values["test_"+KeyHighScore])
	assert.Len(t, highs(), 1)
}

func TestKeyValueFailuresDoNotStopPlay(t *testing.T) {
	kv := newMapKV()
	kv.err = errors.New("disk full")
	e := newTestEngine(t, Config{Difficulty: cards.DifficultyBasic}, WithKeyValueStore(kv, ""))
	ctx := context.Background()

	five, plus, three := cards.NewNumber(5), cards.NewArithmetic(cards.OpAdd), cards.NewNumber(3)
	setHand(e, five, plus, three)
	require.NoError(t, e.PlayNumberCard(ctx, five.ID))
	require.NoError(t, e.PlayArithmeticCard(ctx, plus.ID, three.ID))
	assert.Equal(t, float64(8), e.HighScore())
}

func TestDeckLimitedEndsAfterLimit(t *testing.T) {
	history := &recordingHistory{}
	e := newTestEngine(t, Config{Difficulty: cards.DifficultyBasic, Mode: rules.ModeDeckLimited, Limit: 5},
		WithHistory(history))
	ctx := context.Background()

	one, plus, two, plus2, three, plus3, four := cards.NewNumber(1), cards.NewArithmetic(cards.OpAdd), cards.NewNumber(2),
		cards.NewArithmetic(cards.OpAdd), cards.NewNumber(3), cards.NewArithmetic(cards.OpAdd), cards.NewNumber(4)
	setHand(e, one, plus, two, plus2, three, plus3, four)

	require.NoError(t, e.PlayNumberCard(ctx, one.ID))
	require.NoError(t, e.PlayArithmeticCard(ctx, plus.ID, two.ID))
	left, ok := e.RemainingCards()
	require.True(t, ok)
	assert.Equal(t, 2, left)
	assert.False(t, e.Ended())

	require.NoError(t, e.PlayArithmeticCard(ctx, plus2.ID, three.ID))
	require.True(t, e.Ended())
	assert.Equal(t, rules.ReasonDeckFinished, e.Session().Reason)
	assert.Equal(t, float64(6), e.Score())

	err := e.PlayArithmeticCard(ctx, plus3.ID, four.ID)
	assert.ErrorIs(t, err, ErrGameEnded)
	assert.Equal(t, float64(6), e.Score())

	require.Equal(t, 1, history.Len())
	sum := history.summaries[0]
	assert.Equal(t, 5, sum.CardsPlayed)
	assert.Equal(t, 5, sum.DeckLimit)
	assert.Equal(t, rules.ReasonDeckFinished, sum.EndReason)
	assert.Equal(t, GameMode, sum.GameMode)
	assert.Len(t, sum.Moves, 3)
}

func TestReachScoreEnds(t *testing.T) {
	e := newTestEngine(t, Config{Difficulty: cards.DifficultyBasic, Mode: rules.ModeReachScore, Limit: 100})
	ctx := context.Background()

	ten, times, ten2 := cards.NewNumber(10), cards.NewArithmetic(cards.OpMultiply), cards.NewNumber(10)
	setHand(e, ten, times, ten2)

	require.NoError(t, e.PlayNumberCard(ctx, ten.ID))
	require.NoError(t, e.PlayArithmeticCard(ctx, times.ID, ten2.ID))
	require.True(t, e.Ended())
	assert.Equal(t, rules.ReasonScoreReached, e.Session().Reason)

	sum := e.Summary()
	require.NotEmpty(t, sum.Moves)
	last := sum.Moves[len(sum.Moves)-1]
	require.NotNil(t, last.ResultValue)
	assert.GreaterOrEqual(t, *last.ResultValue, float64(100))
	assert.Equal(t, 100, sum.TargetScore)
}

func TestTimeLimitedEndsOnTick(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(t, Config{Difficulty: cards.DifficultyBasic, Mode: rules.ModeTimeLimited, Limit: 60},
		WithClock(clock.Now))
	ctx := context.Background()
	ticks := collect(e.Events(), rules.EventTick)
	ended := collect(e.Events(), rules.EventGameEnded)

	clock.Advance(59 * time.Second)
	assert.False(t, e.Tick(ctx))
	left, ok := e.RemainingTime()
	require.True(t, ok)
	assert.Equal(t, 1, left)

	clock.Advance(time.Second)
	assert.True(t, e.Tick(ctx))
	assert.Equal(t, rules.ReasonTimeUp, e.Session().Reason)
	assert.Len(t, ticks(), 2)
	assert.Len(t, ended(), 1)

	assert.True(t, e.Tick(ctx))
	assert.Len(t, ended(), 1, "the end is only published once")
	assert.ErrorIs(t, e.DrawCard(ctx), ErrGameEnded)

	clock.Advance(time.Hour)
	assert.Equal(t, 60, e.Summary().TimePlayed)
}

func TestEndGameIsIdempotent(t *testing.T) {
	history := &recordingHistory{}
	e := newTestEngine(t, Config{Difficulty: cards.DifficultyBasic}, WithHistory(history))
	ctx := context.Background()

	require.NoError(t, e.EndGame(ctx))
	assert.ErrorIs(t, e.EndGame(ctx), ErrGameEnded)
	assert.Equal(t, rules.ReasonManualEnd, e.Session().Reason)
	assert.Equal(t, 1, history.Len())
}

func TestZeroUnlockInjectsCard(t *testing.T) {
	e := newTestEngine(t, Config{Difficulty: cards.DifficultyBasic})
	ctx := context.Background()
	injected := collect(e.Events(), rules.EventCardInjected)

	fifty, plus, fifty2 := cards.NewNumber(50), cards.NewArithmetic(cards.OpAdd), cards.NewNumber(50)
	setHand(e, fifty, plus, fifty2)

	assert.False(t, e.CanUnlock(rules.FeatureZero))
	require.NoError(t, e.PlayNumberCard(ctx, fifty.ID))
	require.NoError(t, e.PlayArithmeticCard(ctx, plus.ID, fifty2.ID))

	assert.True(t, e.Progress().Zero)
	assert.False(t, e.Progress().Negative, "negative is gated by tier")
	require.Len(t, injected(), 1)
	zero, ok := cards.Find(e.Hand(), injected()[0].CardIDs[0])
	require.True(t, ok)
	assert.Equal(t, cards.KindZero, zero.Kind)
	assert.Equal(t, rules.BaseHandSize, e.HandCapacity())
}

func TestUnlockDroppedWhenHandFull(t *testing.T) {
	e := newTestEngine(t, Config{Difficulty: cards.DifficultyBasic})
	ctx := context.Background()
	dropped := collect(e.Events(), rules.EventCardDropped)
	injected := collect(e.Events(), rules.EventCardInjected)

	fifty, plus, fifty2 := cards.NewNumber(50), cards.NewArithmetic(cards.OpAdd), cards.NewNumber(50)
	hand := []cards.Card{fifty, plus, fifty2}
	for i := 0; i < 7; i++ {
		hand = append(hand, cards.NewArithmetic(cards.OpSubtract))
	}
	setHand(e, hand...)

	require.NoError(t, e.PlayNumberCard(ctx, fifty.ID))
	require.NoError(t, e.PlayArithmeticCard(ctx, plus.ID, fifty2.ID))

	assert.True(t, e.Progress().Zero)
	assert.Len(t, dropped(), 1)
	assert.Empty(t, injected())
}

func TestFunctionsUnlockRaisesCapacity(t *testing.T) {
	e := newTestEngine(t, Config{Difficulty: cards.DifficultyFunctions})
	ctx := context.Background()
	unlocked := collect(e.Events(), rules.EventFeatureUnlocked)

	five, times, twohundred := cards.NewNumber(5), cards.NewArithmetic(cards.OpMultiply), cards.NewNumber(200)
	setHand(e, five, times, twohundred)

	require.NoError(t, e.PlayNumberCard(ctx, five.ID))
	require.NoError(t, e.PlayArithmeticCard(ctx, times.ID, twohundred.ID))

	assert.Equal(t, rules.ExpandedHandSize, e.HandCapacity())
	assert.GreaterOrEqual(t, len(e.Hand()), rules.ExpandedHandSize)

	var features []string
	for _, evt := range unlocked() {
		features = append(features, evt.Data)
	}
	assert.Equal(t, []string{"zero", "negative", "functions"}, features)
	assert.Equal(t, rules.Progress{Zero: true, Negative: true, Functions: true}, e.Progress())
}

func TestAlgebraDeckFlow(t *testing.T) {
	e := newTestEngine(t, Config{Difficulty: cards.DifficultyAlgebra})
	ctx := context.Background()

	four, x, plus, three := cards.NewNumber(4), cards.NewVariable(), cards.NewArithmetic(cards.OpAdd), cards.NewNumber(3)
	times, two := cards.NewArithmetic(cards.OpMultiply), cards.NewNumber(2)
	setHand(e, four, x, plus, three, times, two)

	require.NoError(t, e.PlayNumberCard(ctx, four.ID))
	require.NoError(t, e.PlayVariableCard(ctx, x.ID))
	assert.True(t, e.AlgebraActive())
	assert.Equal(t, rules.TargetAlgebra, e.ActiveTarget())

	require.NoError(t, e.PlayArithmeticCard(ctx, plus.ID, three.ID))
	require.NoError(t, e.PlayArithmeticCard(ctx, times.ID, two.ID))
	assert.Equal(t, "((x + 3) * 2)", e.AlgebraFunction().String())
	assert.Equal(t, float64(4), e.GrindValue(), "algebra plays leave the grind alone")
	assert.Zero(t, e.Score())
	assert.Len(t, e.AlgebraDeck(), 5)
	assert.Equal(t, 1, e.Session().CardsPlayed)

	require.NoError(t, e.ApplyAlgebraFunction(ctx))
	assert.Equal(t, float64(14), e.GrindValue())
	assert.Equal(t, float64(14), e.Score())
	assert.False(t, e.AlgebraActive())
	assert.Equal(t, rules.TargetGrind, e.ActiveTarget())
	assert.Equal(t, "x", e.AlgebraFunction().String())
	assert.Empty(t, e.AlgebraDeck())

	moves := e.Moves()
	last := moves[len(moves)-1]
	assert.Equal(t, rules.MoveAlgebra, last.Type)
	assert.Equal(t, "Applied f(x) = ((x + 3) * 2) to 4 = 14", last.Description)

	assert.ErrorIs(t, e.ApplyAlgebraFunction(ctx), ErrIllegalMove)
	assert.Equal(t, float64(14), e.GrindValue())
	assert.Len(t, e.Moves(), len(moves))
}

func TestAlgebraTargetWithoutVariableRoutesToGrind(t *testing.T) {
	e := newTestEngine(t, Config{Difficulty: cards.DifficultyAlgebra})
	ctx := context.Background()

	four, plus, three := cards.NewNumber(4), cards.NewArithmetic(cards.OpAdd), cards.NewNumber(3)
	setHand(e, four, plus, three)

	require.NoError(t, e.SetActiveTargetDeck(ctx, rules.TargetAlgebra))
	require.NoError(t, e.PlayNumberCard(ctx, four.ID))
	require.NoError(t, e.PlayArithmeticCard(ctx, plus.ID, three.ID))
	assert.Equal(t, float64(7), e.GrindValue())
	assert.Error(t, e.SetActiveTargetDeck(ctx, "discard"))
}

func TestSecondVariableIsRejected(t *testing.T) {
	e := newTestEngine(t, Config{Difficulty: cards.DifficultyAlgebra})
	ctx := context.Background()

	x, y := cards.NewVariable(), cards.NewVariable()
	setHand(e, x, y)

	require.NoError(t, e.PlayVariableCard(ctx, x.ID))
	assert.ErrorIs(t, e.PlayVariableCard(ctx, y.ID), ErrIllegalMove)
	moves := e.Moves()
	require.Len(t, moves, 1)
	assert.Nil(t, moves[0].ResultValue)
}

func TestSelectFlow(t *testing.T) {
	e := newTestEngine(t, Config{Difficulty: cards.DifficultyBasic})
	ctx := context.Background()
	selected := collect(e.Events(), rules.EventCardSelected)

	five, plus, three := cards.NewNumber(5), cards.NewArithmetic(cards.OpAdd), cards.NewNumber(3)
	setHand(e, five, plus, three)

	assert.ErrorIs(t, e.Select(ctx, plus.ID), ErrIllegalMove, "nothing to operate on yet")

	require.NoError(t, e.Select(ctx, five.ID))
	assert.Equal(t, float64(5), e.GrindValue())

	require.NoError(t, e.Select(ctx, plus.ID))
	assert.Equal(t, plus.ID, e.Pending())
	require.NoError(t, e.Select(ctx, plus.ID))
	assert.Empty(t, e.Pending())

	require.NoError(t, e.Select(ctx, plus.ID))
	require.NoError(t, e.Select(ctx, three.ID))
	assert.Equal(t, float64(8), e.GrindValue())
	assert.Empty(t, e.Pending())
	assert.Len(t, selected(), 2)

	require.NoError(t, e.Deselect(ctx))
}

func TestDrawCard(t *testing.T) {
	e := newTestEngine(t, Config{Difficulty: cards.DifficultyBasic})
	ctx := context.Background()

	assert.ErrorIs(t, e.DrawCard(ctx), ErrHandFull)

	five, plus := cards.NewNumber(5), cards.NewArithmetic(cards.OpAdd)
	setHand(e, five, plus, cards.NewArithmetic(cards.OpSubtract))
	deckBefore := e.DeckSize()
	require.NoError(t, e.DrawCard(ctx))
	assert.Len(t, e.Hand(), 4)
	assert.Equal(t, deckBefore-1, e.DeckSize())
}

func TestEventsArePublishedAfterUnlock(t *testing.T) {
	e := newTestEngine(t, Config{Difficulty: cards.DifficultyBasic})
	ctx := context.Background()

	var seen float64
	e.Events().SubscribeTyped(rules.EventScoreChanged, func(rules.Event) {
		seen = e.Score()
	})

	five, plus, three := cards.NewNumber(5), cards.NewArithmetic(cards.OpAdd), cards.NewNumber(3)
	setHand(e, five, plus, three)
	require.NoError(t, e.PlayNumberCard(ctx, five.ID))
	require.NoError(t, e.PlayArithmeticCard(ctx, plus.ID, three.ID))
	assert.Equal(t, float64(8), seen)
}

func TestViewSnapshot(t *testing.T) {
	e := newTestEngine(t, Config{Difficulty: cards.DifficultyBasic, Mode: rules.ModeDeckLimited, Limit: 20})
	v := e.View()
	assert.Equal(t, e.ID(), v.ID)
	assert.Nil(t, v.RemainingTime)
	require.NotNil(t, v.RemainingCards)
	assert.Equal(t, 20, *v.RemainingCards)
	assert.Equal(t, "x", v.AlgebraFunction)
}
