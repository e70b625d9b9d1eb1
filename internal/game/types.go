package game

import (
	"context"
	"errors"
	"time"

	"github.com/mathcards/grinddeck-server/internal/game/cards"
	"github.com/mathcards/grinddeck-server/internal/game/numeric"
	"github.com/mathcards/grinddeck-server/internal/game/rules"
)

var (
	// ErrIllegalMove wraps every rules rejection.
	ErrIllegalMove = errors.New("illegal move")
	// ErrDivisionByZero is returned when ÷ is paired with a zero-valued card.
	ErrDivisionByZero = numeric.ErrDivisionByZero
	// ErrGameEnded is returned for any command after the session ended.
	ErrGameEnded = errors.New("game has ended")
	// ErrGameNotFound is returned by the Manager for unknown ids.
	ErrGameNotFound = errors.New("game not found")
	// ErrHandFull is returned when drawing into a full hand.
	ErrHandFull = errors.New("hand is full")
	// ErrNonFiniteResult is returned when a Grind Deck move would produce
	// NaN or ±Inf; the move is aborted like any other evaluator failure.
	ErrNonFiniteResult = errors.New("result is not a finite number")
)

// Storage keys written through KeyValueStore, relative to the key prefix.
const (
	KeyHighScore  = "highScore"
	KeyDifficulty = "difficulty"
)

// DefaultKeyPrefix namespaces the engine's keys in a shared store.
const DefaultKeyPrefix = "mathCardGame_"

// KeyValueStore persists the high score and the last chosen difficulty.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// HistoryRecorder receives one finalized summary per completed game.
type HistoryRecorder interface {
	Record(ctx context.Context, summary Summary) error
}

// Move is an immutable log entry.
type Move struct {
	ID          string         `json:"id"`
	Type        rules.MoveKind `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	Cards       []cards.Card   `json:"cards"`
	ResultValue *float64       `json:"result_value,omitempty"`
	Description string         `json:"description"`
}

// Config selects the tier and solo sub-mode of a new game. Limit is seconds,
// cards or a target score depending on Mode.
type Config struct {
	Difficulty cards.Difficulty `json:"difficulty"`
	Mode       rules.SoloMode   `json:"solo_mode,omitempty"`
	Limit      int              `json:"limit,omitempty"`
}

// GameMode is always "solo"; multiplayer modes are never implemented.
const GameMode = "solo"

// Summary is the finalized record handed to the history collaborator.
type Summary struct {
	ID          string           `json:"id"`
	Date        time.Time        `json:"date"`
	EndedAt     time.Time        `json:"ended_at"`
	Difficulty  cards.Difficulty `json:"difficulty"`
	GameMode    string           `json:"game_mode"`
	SoloMode    rules.SoloMode   `json:"solo_game_mode"`
	Score       float64          `json:"score"`
	FinalValue  float64          `json:"final_value"`
	TimePlayed  int              `json:"time_played"`
	CardsPlayed int              `json:"cards_played"`
	MoveCount   int              `json:"move_count"`
	EndReason   rules.EndReason  `json:"game_end_reason"`
	TimeLimit   int              `json:"time_limit,omitempty"`
	DeckLimit   int              `json:"deck_limit,omitempty"`
	TargetScore int              `json:"target_score,omitempty"`
	Moves       []Move           `json:"moves"`
}

// View is a read-only snapshot of an engine for callers and transports.
type View struct {
	ID              string           `json:"id"`
	Difficulty      cards.Difficulty `json:"difficulty"`
	Hand            []cards.Card     `json:"hand"`
	HandCapacity    int              `json:"hand_capacity"`
	DeckSize        int              `json:"deck_size"`
	GrindDeck       []cards.Card     `json:"grind_deck"`
	GrindValue      float64          `json:"grind_value"`
	AlgebraActive   bool             `json:"algebra_active"`
	AlgebraDeck     []cards.Card     `json:"algebra_deck"`
	AlgebraFunction string           `json:"algebra_function"`
	ActiveTarget    rules.TargetDeck `json:"active_target"`
	Pending         string           `json:"pending_card_id,omitempty"`
	Score           float64          `json:"score"`
	HighScore       float64          `json:"high_score"`
	Progress        rules.Progress   `json:"progress"`
	Session         rules.Session    `json:"session"`
	RemainingTime   *int             `json:"remaining_time,omitempty"`
	RemainingCards  *int             `json:"remaining_cards,omitempty"`
	MoveCount       int              `json:"move_count"`
}
