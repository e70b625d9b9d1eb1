// Package storage holds the persistence collaborators of the game engine: the
// match history store and the key-value store for the high score and the
// last chosen difficulty.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/mathcards/grinddeck-server/internal/game"
	"go.uber.org/zap"
)

// DefaultMaxSessions is how many summaries a history keeps.
const DefaultMaxSessions = 100

var (
	// ErrNotFound is returned by Get for unknown ids.
	ErrNotFound = errors.New("history entry not found")
	// ErrChecksumMismatch is returned when a stored summary no longer matches
	// the checksum written with it.
	ErrChecksumMismatch = errors.New("history checksum mismatch")
)

// Stats aggregates the stored history.
type Stats struct {
	TotalGames      int     `json:"total_games"`
	TotalTimePlayed int     `json:"total_time_played"`
	HighestScore    float64 `json:"highest_score"`
}

// History keeps the most recent game summaries, newest first.
type History interface {
	game.HistoryRecorder
	Recent(ctx context.Context, limit int) ([]game.Summary, error)
	Get(ctx context.Context, id string) (game.Summary, error)
	Stats(ctx context.Context) (Stats, error)
	Clear(ctx context.Context) error
	Close() error
}

// OpenHistory opens the history store named by driver.
func OpenHistory(ctx context.Context, driver, dsn string, maxSessions int, logger *zap.Logger) (History, error) {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	switch driver {
	case "sqlite":
		h, err := NewSQLiteHistory(dsn, maxSessions, logger)
		if err != nil {
			return nil, err
		}
		if err := h.Migrate(); err != nil {
			h.Close()
			return nil, err
		}
		return h, nil
	case "postgres":
		h, err := NewPostgresHistory(ctx, dsn, maxSessions, logger)
		if err != nil {
			return nil, err
		}
		if err := h.Migrate(ctx); err != nil {
			h.Close()
			return nil, err
		}
		return h, nil
	case "memory":
		return NewMemoryHistory(maxSessions), nil
	default:
		return nil, fmt.Errorf("unknown history driver %q", driver)
	}
}

// encodeSummary returns the gob payload and checksum stored for a summary.
func encodeSummary(summary game.Summary) ([]byte, string, error) {
	payload, err := summary.SerializeToBytes()
	if err != nil {
		return nil, "", err
	}
	checksum, err := summary.ComputeChecksum()
	if err != nil {
		return nil, "", err
	}
	return payload, checksum.Hash, nil
}

func decodeSummary(payload []byte, checksum string) (game.Summary, error) {
	summary, err := game.DeserializeSummary(payload)
	if err != nil {
		return game.Summary{}, err
	}
	ok, err := summary.VerifyChecksum(checksum)
	if err != nil {
		return game.Summary{}, err
	}
	if !ok {
		return game.Summary{}, fmt.Errorf("game %s: %w", summary.ID, ErrChecksumMismatch)
	}
	return summary, nil
}
