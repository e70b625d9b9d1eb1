package game

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mathcards/grinddeck-server/internal/game/algebra"
	"github.com/mathcards/grinddeck-server/internal/game/cards"
	"github.com/mathcards/grinddeck-server/internal/game/deck"
	"github.com/mathcards/grinddeck-server/internal/game/numeric"
	"github.com/mathcards/grinddeck-server/internal/game/rules"
	"go.uber.org/zap"
)

// gameState holds the mutable state of one game. It is only touched with
// Engine.mu held and implements rules.GameStateAccessor.
type gameState struct {
	deck     []cards.Card
	hand     []cards.Card
	capacity int

	grind      []cards.Card
	grindValue float64

	algebraCards  []cards.Card
	algebraFn     algebra.Expr
	algebraActive bool
	target        rules.TargetDeck

	score     float64
	highScore float64
	moves     []Move
	pending   string
	session   rules.Session
}

func (s *gameState) FindHandCard(cardID string) (cards.Card, bool) {
	return cards.Find(s.hand, cardID)
}

func (s *gameState) GrindStarted() bool { return len(s.grind) > 0 }

func (s *gameState) AlgebraActive() bool { return s.algebraActive }

func (s *gameState) ActiveTarget() rules.TargetDeck { return s.target }

// Option configures an Engine.
type Option func(*Engine)

// WithID fixes the game id instead of generating one.
func WithID(id string) Option {
	return func(e *Engine) {
		if id != "" {
			e.id = id
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock overrides time.Now, mostly for tests.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithRand sets the randomness source used for shuffling and synthesis.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) {
		e.rng = r
	}
}

// WithSeed makes shuffles and synthesized cards reproducible.
func WithSeed(seed uint64) Option {
	return func(e *Engine) {
		e.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithEventBus publishes engine events on a shared bus.
func WithEventBus(bus *rules.EventBus) Option {
	return func(e *Engine) {
		e.bus = bus
	}
}

// WithKeyValueStore persists the high score and difficulty under prefix.
// An empty prefix uses DefaultKeyPrefix.
func WithKeyValueStore(kv KeyValueStore, prefix string) Option {
	return func(e *Engine) {
		e.kv = kv
		if prefix != "" {
			e.keyPrefix = prefix
		}
	}
}

// WithHistory records the summary of the game once it ends.
func WithHistory(history HistoryRecorder) Option {
	return func(e *Engine) {
		e.history = history
	}
}

// WithEndHook registers a callback run with the final summary. Hooks run with
// the engine locked and must not call back into it.
func WithEndHook(hook func(Summary)) Option {
	return func(e *Engine) {
		if hook != nil {
			e.onEnd = append(e.onEnd, hook)
		}
	}
}

// Engine runs one solo game. All methods are safe for concurrent use.
type Engine struct {
	mu sync.Mutex

	id        string
	config    Config
	logger    *zap.Logger
	clock     func() time.Time
	rng       *rand.Rand
	bus       *rules.EventBus
	kv        KeyValueStore
	keyPrefix string
	history   HistoryRecorder
	onEnd     []func(Summary)

	dealer   *deck.Dealer
	legality *rules.LegalityChecker
	unlocks  *rules.UnlockTracker
	state    *gameState

	events   []rules.Event
	recorded bool
}

// StartGame validates cfg, deals the opening hand and returns a running engine.
func StartGame(ctx context.Context, cfg Config, opts ...Option) (*Engine, error) {
	if !cfg.Difficulty.Valid() {
		return nil, fmt.Errorf("invalid difficulty %q", cfg.Difficulty)
	}

	e := &Engine{
		id:        uuid.NewString(),
		clock:     time.Now,
		keyPrefix: DefaultKeyPrefix,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if e.bus == nil {
		e.bus = rules.NewEventBus()
	}

	session, err := rules.NewSession(cfg.Mode, cfg.Limit, e.clock())
	if err != nil {
		return nil, err
	}
	cfg.Mode, cfg.Limit = session.Mode, session.Limit
	e.config = cfg

	e.dealer = deck.NewDealer(e.rng, cfg.Difficulty)
	e.unlocks = rules.NewUnlockTracker(cfg.Difficulty)

	s := &gameState{
		capacity:  rules.BaseHandSize,
		algebraFn: algebra.Identity(),
		target:    rules.TargetNone,
		session:   session,
	}
	hand, remaining, report := e.dealer.Deal(s.capacity)
	s.hand, s.deck = hand, remaining
	e.state = s
	e.legality = rules.NewLegalityChecker(s)

	s.highScore = e.loadHighScore(ctx)
	e.storeValue(ctx, KeyDifficulty, string(cfg.Difficulty))

	e.emit(e.event(rules.EventGameStarted, nil, string(cfg.Mode)))
	e.reportDeal(report)

	if e.logger != nil {
		e.logger.Info("started game",
			zap.String("game_id", e.id),
			zap.String("difficulty", string(cfg.Difficulty)),
			zap.String("solo_mode", string(cfg.Mode)),
			zap.Int("limit", cfg.Limit),
			zap.Int("hand", len(s.hand)),
			zap.Int("deck", len(s.deck)),
		)
	}

	e.publish()
	return e, nil
}

// ID returns the game id.
func (e *Engine) ID() string {
	return e.id
}

// Config returns the normalized configuration the game was started with.
func (e *Engine) Config() Config {
	return e.config
}

// Events returns the bus events are published on.
func (e *Engine) Events() *rules.EventBus {
	return e.bus
}

// exec runs fn under the lock and publishes the events it queued once the lock
// is released, so listeners may query the engine.
func (e *Engine) exec(fn func(s *gameState) error) error {
	e.mu.Lock()
	err := fn(e.state)
	events := e.events
	e.events = nil
	e.mu.Unlock()

	e.bus.PublishBatch(events)
	return err
}

func (e *Engine) publish() {
	e.mu.Lock()
	events := e.events
	e.events = nil
	e.mu.Unlock()
	e.bus.PublishBatch(events)
}

func (e *Engine) event(eventType rules.EventType, cs []cards.Card, data string) rules.Event {
	ids := make([]string, 0, len(cs))
	for _, c := range cs {
		ids = append(ids, c.ID)
	}
	evt := rules.NewEvent(eventType, e.id, ids...)
	evt.Timestamp = e.clock()
	evt.Data = data
	return evt
}

func (e *Engine) valueEvent(eventType rules.EventType, value float64) rules.Event {
	evt := rules.NewEventWithValue(eventType, e.id, value)
	evt.Timestamp = e.clock()
	return evt
}

func (e *Engine) emit(evt rules.Event) {
	e.events = append(e.events, evt)
}

func (e *Engine) open(s *gameState) error {
	if s.session.Ended {
		return ErrGameEnded
	}
	return nil
}

func (e *Engine) reject(res rules.LegalityResult) error {
	if e.logger != nil {
		e.logger.Debug("move rejected",
			zap.String("game_id", e.id),
			zap.String("reason", res.Reason),
			zap.Any("details", res.Details),
		)
	}
	if res.Fault != nil {
		return fmt.Errorf("%s: %w", res.Reason, res.Fault)
	}
	return fmt.Errorf("%s: %w", res.Reason, ErrIllegalMove)
}

// DrawCard draws one card into the hand, regenerating an empty deck first.
func (e *Engine) DrawCard(ctx context.Context) error {
	return e.exec(func(s *gameState) error {
		if err := e.open(s); err != nil {
			return err
		}
		if len(s.hand) >= s.capacity {
			return fmt.Errorf("draw with %d of %d cards: %w", len(s.hand), s.capacity, ErrHandFull)
		}
		hand, remaining, report := e.dealer.DrawOne(s.hand, s.deck, s.capacity)
		s.hand, s.deck = hand, remaining
		e.reportDeal(report)
		return nil
	})
}

// PlayNumberCard seeds the Grind Deck with a number, zero, negative or
// constant card.
func (e *Engine) PlayNumberCard(ctx context.Context, cardID string) error {
	return e.exec(func(s *gameState) error {
		return e.playSeed(ctx, s, cardID, rules.MoveNumber)
	})
}

// PlayConstantCard seeds the Grind Deck with a constant card.
func (e *Engine) PlayConstantCard(ctx context.Context, cardID string) error {
	return e.exec(func(s *gameState) error {
		return e.playSeed(ctx, s, cardID, rules.MoveConstant)
	})
}

// PlayArithmeticCard combines the routed deck with a number-like card.
func (e *Engine) PlayArithmeticCard(ctx context.Context, cardID, secondCardID string) error {
	return e.exec(func(s *gameState) error {
		return e.playArithmetic(ctx, s, cardID, secondCardID)
	})
}

// PlayFunctionCard applies a function to the routed deck. secondCardID is only
// read for binary functions.
func (e *Engine) PlayFunctionCard(ctx context.Context, cardID, secondCardID string) error {
	return e.exec(func(s *gameState) error {
		return e.playFunction(ctx, s, cardID, secondCardID)
	})
}

// PlayVariableCard activates the Algebra Deck with f(x) = x.
func (e *Engine) PlayVariableCard(ctx context.Context, cardID string) error {
	return e.exec(func(s *gameState) error {
		return e.playVariable(ctx, s, cardID)
	})
}

func (e *Engine) playSeed(ctx context.Context, s *gameState, cardID string, kind rules.MoveKind) error {
	if err := e.open(s); err != nil {
		return err
	}
	res := e.legality.CheckSeed(cardID, kind)
	if !res.Legal {
		return e.reject(res)
	}

	card := res.Plan.Card
	value, _ := numeric.CardValue(card)
	s.hand, _ = cards.Remove(s.hand, card.ID)
	s.grind = append(s.grind, card)
	s.grindValue = value
	s.session.AddCards(1)

	moveType := rules.MoveNumber
	if card.Kind == cards.KindConstant {
		moveType = rules.MoveConstant
	}
	e.recordMove(s, moveType, []cards.Card{card}, &value, fmt.Sprintf("Started with %s", numeric.Format(value)))
	e.emit(e.event(rules.EventCardPlayed, []cards.Card{card}, string(rules.TargetGrind)))

	e.afterMove(ctx, s, false)
	return nil
}

func (e *Engine) playArithmetic(ctx context.Context, s *gameState, cardID, secondCardID string) error {
	if err := e.open(s); err != nil {
		return err
	}
	res := e.legality.CheckArithmetic(cardID, secondCardID)
	if !res.Legal {
		return e.reject(res)
	}

	plan := res.Plan
	op := plan.Card.Arithmetic
	operand, _ := numeric.CardValue(*plan.Second)

	if plan.Target == rules.TargetAlgebra {
		fn, err := algebra.ApplyArithmetic(s.algebraFn, op, operand)
		if err != nil {
			return fmt.Errorf("%v: %w", err, ErrIllegalMove)
		}
		e.commitAlgebra(s, plan, fn)
		e.afterMove(ctx, s, false)
		return nil
	}

	value, err := numeric.ApplyArithmetic(s.grindValue, operand, op, e.config.Difficulty)
	if err != nil {
		if errors.Is(err, numeric.ErrDivisionByZero) {
			return fmt.Errorf("%s %s %s: %w", numeric.Format(s.grindValue), op, numeric.Format(operand), err)
		}
		return fmt.Errorf("%v: %w", err, ErrIllegalMove)
	}
	if err := finite(value); err != nil {
		return err
	}

	desc := fmt.Sprintf("%s %s %s = %s", numeric.Format(s.grindValue), op, numeric.Format(operand), numeric.Format(value))
	e.commitGrind(ctx, s, plan, rules.MoveArithmetic, value, desc)
	e.afterMove(ctx, s, true)
	return nil
}

func (e *Engine) playFunction(ctx context.Context, s *gameState, cardID, secondCardID string) error {
	if err := e.open(s); err != nil {
		return err
	}
	res := e.legality.CheckFunction(cardID, secondCardID)
	if !res.Legal {
		return e.reject(res)
	}

	plan := res.Plan
	op := plan.Card.Function
	var second []float64
	if plan.Second != nil {
		v, _ := numeric.CardValue(*plan.Second)
		second = append(second, v)
	}

	if plan.Target == rules.TargetAlgebra {
		fn, err := algebra.ApplyFunction(s.algebraFn, op, second...)
		if err != nil {
			return fmt.Errorf("%v: %w", err, ErrIllegalMove)
		}
		e.commitAlgebra(s, plan, fn)
		e.afterMove(ctx, s, false)
		return nil
	}

	value := numeric.ApplyFunction(s.grindValue, op, second...)
	if err := finite(value); err != nil {
		return err
	}

	desc := fmt.Sprintf("%s(%s) = %s", op, numeric.Format(s.grindValue), numeric.Format(value))
	if len(second) > 0 {
		desc = fmt.Sprintf("%s(%s, %s) = %s", op, numeric.Format(s.grindValue), numeric.Format(second[0]), numeric.Format(value))
	}
	e.commitGrind(ctx, s, plan, rules.MoveFunction, value, desc)
	e.afterMove(ctx, s, true)
	return nil
}

func (e *Engine) playVariable(ctx context.Context, s *gameState, cardID string) error {
	if err := e.open(s); err != nil {
		return err
	}
	res := e.legality.CheckVariable(cardID)
	if !res.Legal {
		return e.reject(res)
	}

	card := res.Plan.Card
	s.hand, _ = cards.Remove(s.hand, card.ID)
	s.algebraCards = []cards.Card{card}
	s.algebraFn = algebra.Identity()
	s.algebraActive = true
	s.target = rules.TargetAlgebra

	e.recordMove(s, rules.MoveVariable, []cards.Card{card}, nil, "Activated the Algebra Deck with f(x) = x")
	e.emit(e.event(rules.EventAlgebraActivated, []cards.Card{card}, s.algebraFn.String()))
	e.emit(e.event(rules.EventTargetChanged, nil, string(s.target)))

	e.afterMove(ctx, s, false)
	return nil
}

func finite(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%v: %w", v, ErrNonFiniteResult)
	}
	return nil
}

// commitGrind moves the plan's cards onto the Grind Deck and scores value.
func (e *Engine) commitGrind(ctx context.Context, s *gameState, plan rules.MovePlan, kind rules.MoveKind, value float64, desc string) {
	played := plan.Cards()
	for _, c := range played {
		s.hand, _ = cards.Remove(s.hand, c.ID)
	}
	s.grind = append(s.grind, played...)
	s.grindValue = value
	s.session.AddCards(len(played))

	e.recordMove(s, kind, played, &value, desc)
	e.emit(e.event(rules.EventCardPlayed, played, string(rules.TargetGrind)))
	e.raiseScore(ctx, s, value)
}

// commitAlgebra moves the plan's cards onto the Algebra Deck. Algebra plays
// neither score nor count toward deck limits.
func (e *Engine) commitAlgebra(s *gameState, plan rules.MovePlan, fn algebra.Expr) {
	played := plan.Cards()
	for _, c := range played {
		s.hand, _ = cards.Remove(s.hand, c.ID)
	}
	s.algebraCards = append(s.algebraCards, played...)
	s.algebraFn = fn

	e.emit(e.event(rules.EventCardPlayed, played, string(rules.TargetAlgebra)))
	e.emit(e.event(rules.EventAlgebraUpdated, played, fn.String()))
}

func (e *Engine) recordMove(s *gameState, kind rules.MoveKind, played []cards.Card, result *float64, desc string) {
	move := Move{
		ID:          uuid.NewString(),
		Type:        kind,
		Timestamp:   e.clock(),
		Cards:       slices.Clone(played),
		ResultValue: result,
		Description: desc,
	}
	s.moves = append(s.moves, move)

	evt := e.event(rules.EventMoveRecorded, played, string(kind))
	evt.Description = desc
	if result != nil {
		evt.Value = *result
	}
	e.emit(evt)
}

func (e *Engine) raiseScore(ctx context.Context, s *gameState, value float64) {
	if value > s.score {
		s.score = value
		e.emit(e.valueEvent(rules.EventScoreChanged, s.score))
	}
	if s.score > s.highScore {
		s.highScore = s.score
		e.storeValue(ctx, KeyHighScore, numeric.Format(s.highScore))
		e.emit(e.valueEvent(rules.EventHighScore, s.highScore))
	}
}

// afterMove runs progression, hand replenishment and the end check, in that
// order, after every committed move.
func (e *Engine) afterMove(ctx context.Context, s *gameState, scored bool) {
	if scored {
		e.checkUnlocks(s)
	}
	hand, remaining, report := e.dealer.Replenish(s.hand, s.deck, s.capacity)
	s.hand, s.deck = hand, remaining
	e.reportDeal(report)

	if s.pending != "" {
		if _, ok := s.FindHandCard(s.pending); !ok {
			s.pending = ""
		}
	}
	e.checkEnd(ctx, s)
}

func (e *Engine) checkUnlocks(s *gameState) {
	fired := e.unlocks.Check(s.score)
	if len(fired) == 0 {
		return
	}
	if e.unlocks.Progress().HandCapacity() > s.capacity {
		s.capacity = e.unlocks.Progress().HandCapacity()
		e.emit(e.valueEvent(rules.EventHandCapacityRaised, float64(s.capacity)))
	}

	for _, feature := range fired {
		e.emit(e.event(rules.EventFeatureUnlocked, nil, string(feature)))
		unlock, _ := rules.UnlockFor(feature)

		if len(s.hand) >= s.capacity {
			evt := e.event(rules.EventCardDropped, nil, string(feature))
			evt.Metadata["kind"] = string(unlock.Kind)
			e.emit(evt)
			if e.logger != nil {
				e.logger.Info("unlocked feature with full hand",
					zap.String("game_id", e.id),
					zap.String("feature", string(feature)),
				)
			}
			continue
		}

		card := e.dealer.Synthesize(unlock.Kind)
		s.hand = append(s.hand, card)
		e.emit(e.event(rules.EventCardInjected, []cards.Card{card}, string(feature)))
		if e.logger != nil {
			e.logger.Info("unlocked feature",
				zap.String("game_id", e.id),
				zap.String("feature", string(feature)),
				zap.String("card_id", card.ID),
				zap.Float64("score", s.score),
			)
		}
	}
}

func (e *Engine) reportDeal(report deck.Report) {
	if len(report.Drawn) > 0 {
		e.emit(e.event(rules.EventCardDrawn, report.Drawn, ""))
	}
	if repaired := append(slices.Clone(report.Moved), report.Synthesized...); len(repaired) > 0 {
		evt := e.event(rules.EventHandRepaired, repaired, "")
		evt.Metadata["moved"] = strconv.Itoa(len(report.Moved))
		evt.Metadata["synthesized"] = strconv.Itoa(len(report.Synthesized))
		e.emit(evt)
	}
	if report.Regenerated > 0 {
		e.emit(e.valueEvent(rules.EventDeckRegenerated, float64(report.Regenerated)))
		if e.logger != nil {
			e.logger.Debug("regenerated deck",
				zap.String("game_id", e.id),
				zap.Int("count", report.Regenerated),
			)
		}
	}
}

// SetActiveTargetDeck chooses where arithmetic and function plays land.
// Selecting the Algebra Deck before it is active is allowed; plays keep
// landing on the Grind Deck until a Variable card is played.
func (e *Engine) SetActiveTargetDeck(ctx context.Context, target rules.TargetDeck) error {
	return e.exec(func(s *gameState) error {
		if err := e.open(s); err != nil {
			return err
		}
		switch target {
		case rules.TargetNone, rules.TargetGrind, rules.TargetAlgebra:
		default:
			return fmt.Errorf("unknown target deck %q: %w", target, ErrIllegalMove)
		}
		if s.target == target {
			return nil
		}
		s.target = target
		e.emit(e.event(rules.EventTargetChanged, nil, string(target)))
		return nil
	})
}

// ApplyAlgebraFunction substitutes the Grind value into the Algebra Function,
// scores the result and resets the Algebra Deck. It is rejected when the
// Algebra Deck is inactive, so a second call is a no-op.
func (e *Engine) ApplyAlgebraFunction(ctx context.Context) error {
	return e.exec(func(s *gameState) error {
		if err := e.open(s); err != nil {
			return err
		}
		res := e.legality.CheckApplyAlgebra()
		if !res.Legal {
			return e.reject(res)
		}

		fn := s.algebraFn
		prev := s.grindValue
		value := algebra.Evaluate(fn, prev)
		s.grindValue = value

		desc := fmt.Sprintf("Applied f(x) = %s to %s = %s", fn, numeric.Format(prev), numeric.Format(value))
		e.recordMove(s, rules.MoveAlgebra, nil, &value, desc)
		e.raiseScore(ctx, s, value)

		applied := s.algebraCards
		s.algebraCards = nil
		s.algebraFn = algebra.Identity()
		s.algebraActive = false
		s.target = rules.TargetGrind

		evt := e.event(rules.EventAlgebraApplied, applied, fn.String())
		evt.Value = value
		e.emit(evt)
		e.emit(e.event(rules.EventTargetChanged, nil, string(s.target)))

		if e.logger != nil {
			e.logger.Debug("applied algebra function",
				zap.String("game_id", e.id),
				zap.String("function", fn.String()),
				zap.Float64("x", prev),
				zap.Float64("result", value),
			)
		}

		e.afterMove(ctx, s, true)
		return nil
	})
}

// Select drives the two-step selection flow. Selecting a number-like card
// with nothing pending seeds the Grind Deck, an arithmetic or binary function
// card becomes pending, and a unary function or Variable card plays at once.
// With a card pending, selecting it again clears it and selecting a
// number-like card completes the move.
func (e *Engine) Select(ctx context.Context, cardID string) error {
	return e.exec(func(s *gameState) error {
		if err := e.open(s); err != nil {
			return err
		}
		card, ok := s.FindHandCard(cardID)
		if !ok {
			return fmt.Errorf("card %s not in hand: %w", cardID, ErrIllegalMove)
		}
		if s.pending == "" {
			return e.selectFirst(ctx, s, card)
		}
		if cardID == s.pending {
			e.clearPending(s)
			return nil
		}
		if !card.IsNumberLike() {
			return fmt.Errorf("card %s cannot complete a pending operation: %w", cardID, ErrIllegalMove)
		}

		first, _ := s.FindHandCard(s.pending)
		var err error
		if first.Kind == cards.KindFunction {
			err = e.playFunction(ctx, s, first.ID, card.ID)
		} else {
			err = e.playArithmetic(ctx, s, first.ID, card.ID)
		}
		if err != nil {
			return err
		}
		s.pending = ""
		return nil
	})
}

func (e *Engine) selectFirst(ctx context.Context, s *gameState, card cards.Card) error {
	switch {
	case card.IsNumberLike():
		return e.playSeed(ctx, s, card.ID, rules.MoveNumber)
	case card.Kind == cards.KindVariable:
		return e.playVariable(ctx, s, card.ID)
	case card.Kind == cards.KindFunction && !card.Function.IsBinary():
		return e.playFunction(ctx, s, card.ID, "")
	}

	res := e.legality.CheckInitiate(card.ID)
	if !res.Legal {
		return e.reject(res)
	}
	s.pending = card.ID
	e.emit(e.event(rules.EventCardSelected, []cards.Card{card}, string(res.Plan.Target)))
	return nil
}

// Deselect clears the pending card, if any.
func (e *Engine) Deselect(ctx context.Context) error {
	return e.exec(func(s *gameState) error {
		e.clearPending(s)
		return nil
	})
}

func (e *Engine) clearPending(s *gameState) {
	if s.pending == "" {
		return
	}
	id := s.pending
	s.pending = ""
	evt := e.event(rules.EventSelectionClear, nil, "")
	evt.CardIDs = []string{id}
	e.emit(evt)
}

// Tick re-evaluates the session end condition against the clock and reports
// whether the game has ended.
func (e *Engine) Tick(ctx context.Context) bool {
	var ended bool
	_ = e.exec(func(s *gameState) error {
		if s.session.Ended {
			ended = true
			return nil
		}
		if left, ok := s.session.RemainingTime(e.clock()); ok {
			e.emit(e.valueEvent(rules.EventTick, float64(left)))
		}
		e.checkEnd(ctx, s)
		ended = s.session.Ended
		return nil
	})
	return ended
}

// EndGame ends the session manually.
func (e *Engine) EndGame(ctx context.Context) error {
	return e.exec(func(s *gameState) error {
		if err := e.open(s); err != nil {
			return err
		}
		s.session.End(e.clock(), rules.ReasonManualEnd)
		e.finish(ctx, s)
		return nil
	})
}

func (e *Engine) checkEnd(ctx context.Context, s *gameState) {
	if _, due := s.session.Check(e.clock(), s.score); due {
		e.finish(ctx, s)
	}
}

// finish runs once per game after the session flips to ended.
func (e *Engine) finish(ctx context.Context, s *gameState) {
	s.pending = ""
	evt := e.event(rules.EventGameEnded, nil, string(s.session.Reason))
	evt.Value = s.score
	e.emit(evt)

	if e.logger != nil {
		e.logger.Info("game ended",
			zap.String("game_id", e.id),
			zap.String("reason", string(s.session.Reason)),
			zap.Float64("score", s.score),
			zap.Int("cards_played", s.session.CardsPlayed),
			zap.Int("moves", len(s.moves)),
		)
	}

	if e.recorded {
		return
	}
	e.recorded = true
	summary := e.summary(s)
	if e.history != nil {
		if err := e.history.Record(ctx, summary); err != nil && e.logger != nil {
			e.logger.Warn("failed to record game history",
				zap.String("game_id", e.id),
				zap.Error(err),
			)
		}
	}
	for _, hook := range e.onEnd {
		hook(summary)
	}
}

func (e *Engine) loadHighScore(ctx context.Context) float64 {
	if e.kv == nil {
		return 0
	}
	raw, ok, err := e.kv.Get(ctx, e.keyPrefix+KeyHighScore)
	if err != nil {
		if e.logger != nil {
			e.logger.Warn("failed to load high score", zap.String("game_id", e.id), zap.Error(err))
		}
		return 0
	}
	if !ok {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		if e.logger != nil {
			e.logger.Warn("ignoring malformed high score", zap.String("game_id", e.id), zap.String("value", raw))
		}
		return 0
	}
	return v
}

func (e *Engine) storeValue(ctx context.Context, key, value string) {
	if e.kv == nil {
		return
	}
	if err := e.kv.Set(ctx, e.keyPrefix+key, value); err != nil && e.logger != nil {
		e.logger.Warn("failed to persist value",
			zap.String("game_id", e.id),
			zap.String("key", e.keyPrefix+key),
			zap.Error(err),
		)
	}
}

func (e *Engine) summary(s *gameState) Summary {
	session := s.session
	sum := Summary{
		ID:          e.id,
		Date:        session.StartedAt,
		EndedAt:     session.EndedAt,
		Difficulty:  e.config.Difficulty,
		GameMode:    GameMode,
		SoloMode:    session.Mode,
		Score:       s.score,
		FinalValue:  s.grindValue,
		TimePlayed:  session.Elapsed(e.clock()),
		CardsPlayed: session.CardsPlayed,
		MoveCount:   len(s.moves),
		EndReason:   session.Reason,
		Moves:       slices.Clone(s.moves),
	}
	switch session.Mode {
	case rules.ModeTimeLimited:
		sum.TimeLimit = session.Limit
	case rules.ModeDeckLimited:
		sum.DeckLimit = session.Limit
	case rules.ModeReachScore:
		sum.TargetScore = session.Limit
	}
	return sum
}

func (e *Engine) read(fn func(s *gameState)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.state)
}

// Hand returns a copy of the current hand.
func (e *Engine) Hand() []cards.Card {
	var out []cards.Card
	e.read(func(s *gameState) { out = slices.Clone(s.hand) })
	return out
}

// HandCapacity returns the current hand size limit.
func (e *Engine) HandCapacity() int {
	var out int
	e.read(func(s *gameState) { out = s.capacity })
	return out
}

// DeckSize returns the number of cards left in the draw deck.
func (e *Engine) DeckSize() int {
	var out int
	e.read(func(s *gameState) { out = len(s.deck) })
	return out
}

// GrindValue returns the current Grind Deck value.
func (e *Engine) GrindValue() float64 {
	var out float64
	e.read(func(s *gameState) { out = s.grindValue })
	return out
}

// GrindDeck returns the cards played onto the Grind Deck.
func (e *Engine) GrindDeck() []cards.Card {
	var out []cards.Card
	e.read(func(s *gameState) { out = slices.Clone(s.grind) })
	return out
}

// AlgebraFunction returns the current Algebra Function.
func (e *Engine) AlgebraFunction() algebra.Expr {
	var out algebra.Expr
	e.read(func(s *gameState) { out = s.algebraFn })
	return out
}

// AlgebraDeck returns the cards played onto the Algebra Deck.
func (e *Engine) AlgebraDeck() []cards.Card {
	var out []cards.Card
	e.read(func(s *gameState) { out = slices.Clone(s.algebraCards) })
	return out
}

// AlgebraActive reports whether a Variable card is live.
func (e *Engine) AlgebraActive() bool {
	var out bool
	e.read(func(s *gameState) { out = s.algebraActive })
	return out
}

// ActiveTarget returns the selected target deck.
func (e *Engine) ActiveTarget() rules.TargetDeck {
	var out rules.TargetDeck
	e.read(func(s *gameState) { out = s.target })
	return out
}

// Pending returns the id of the card awaiting an operand, or "".
func (e *Engine) Pending() string {
	var out string
	e.read(func(s *gameState) { out = s.pending })
	return out
}

// Score returns the best Grind value reached this game.
func (e *Engine) Score() float64 {
	var out float64
	e.read(func(s *gameState) { out = s.score })
	return out
}

// HighScore returns the best score across games.
func (e *Engine) HighScore() float64 {
	var out float64
	e.read(func(s *gameState) { out = s.highScore })
	return out
}

// Session returns a copy of the solo session state.
func (e *Engine) Session() rules.Session {
	var out rules.Session
	e.read(func(s *gameState) { out = s.session })
	return out
}

// Ended reports whether the session has ended.
func (e *Engine) Ended() bool {
	return e.Session().Ended
}

// Moves returns a copy of the move log.
func (e *Engine) Moves() []Move {
	var out []Move
	e.read(func(s *gameState) { out = slices.Clone(s.moves) })
	return out
}

// RemainingTime returns seconds left for time_limited games.
func (e *Engine) RemainingTime() (int, bool) {
	session := e.Session()
	return session.RemainingTime(e.clock())
}

// RemainingCards returns cards left for deck_limited games.
func (e *Engine) RemainingCards() (int, bool) {
	return e.Session().RemainingCards()
}

// Progress returns the unlock flags.
func (e *Engine) Progress() rules.Progress {
	var out rules.Progress
	e.read(func(*gameState) { out = e.unlocks.Progress() })
	return out
}

// CanUnlock reports whether feature's score and tier gates are met right now.
func (e *Engine) CanUnlock(feature rules.Feature) bool {
	var out bool
	e.read(func(s *gameState) { out = rules.CanUnlock(feature, s.score, e.config.Difficulty) })
	return out
}

// Summary builds the game summary as it stands now.
func (e *Engine) Summary() Summary {
	var out Summary
	e.read(func(s *gameState) { out = e.summary(s) })
	return out
}

// View returns a consistent snapshot of the whole game.
func (e *Engine) View() View {
	var v View
	e.read(func(s *gameState) {
		now := e.clock()
		v = View{
			ID:              e.id,
			Difficulty:      e.config.Difficulty,
			Hand:            slices.Clone(s.hand),
			HandCapacity:    s.capacity,
			DeckSize:        len(s.deck),
			GrindDeck:       slices.Clone(s.grind),
			GrindValue:      s.grindValue,
			AlgebraActive:   s.algebraActive,
			AlgebraDeck:     slices.Clone(s.algebraCards),
			AlgebraFunction: s.algebraFn.String(),
			ActiveTarget:    s.target,
			Pending:         s.pending,
			Score:           s.score,
			HighScore:       s.highScore,
			Progress:        e.unlocks.Progress(),
			Session:         s.session,
			MoveCount:       len(s.moves),
		}
		if left, ok := s.session.RemainingTime(now); ok {
			v.RemainingTime = &left
		}
		if left, ok := s.session.RemainingCards(); ok {
			v.RemainingCards = &left
		}
	})
	return v
}
