package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mathcards/grinddeck-server/internal/game"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteHistory stores summaries in a SQLite database.
type SQLiteHistory struct {
	db          *sql.DB
	maxSessions int
	logger      *zap.Logger
}

// NewSQLiteHistory opens the database at path. Use ":memory:" in tests.
func NewSQLiteHistory(path string, maxSessions int, logger *zap.Logger) (*SQLiteHistory, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one connection so that ":memory:" is a single database
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLiteHistory{db: db, maxSessions: maxSessions, logger: logger}, nil
}

func (h *SQLiteHistory) Close() error {
	return h.db.Close()
}

// Migrate creates the history table.
func (h *SQLiteHistory) Migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS game_history (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			played_at INTEGER NOT NULL,
			difficulty TEXT NOT NULL,
			solo_mode TEXT NOT NULL,
			score REAL NOT NULL,
			time_played INTEGER NOT NULL,
			checksum TEXT NOT NULL,
			payload BLOB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_game_history_score ON game_history(score)`,
	}
	for _, m := range migrations {
		if _, err := h.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Record inserts summary as the newest row and prunes the oldest rows past
// the session limit.
func (h *SQLiteHistory) Record(ctx context.Context, summary game.Summary) error {
	payload, checksum, err := encodeSummary(summary)
	if err != nil {
		return err
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM game_history WHERE id = ?`, summary.ID); err != nil {
		return fmt.Errorf("replace history row: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO game_history (id, played_at, difficulty, solo_mode, score, time_played, checksum, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		summary.ID, summary.Date.Unix(), string(summary.Difficulty), string(summary.SoloMode),
		summary.Score, summary.TimePlayed, checksum, payload,
	)
	if err != nil {
		return fmt.Errorf("insert history row: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		DELETE FROM game_history
		WHERE seq NOT IN (SELECT seq FROM game_history ORDER BY seq DESC LIMIT ?)`,
		h.maxSessions,
	)
	if err != nil {
		return fmt.Errorf("prune history: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	if pruned, _ := res.RowsAffected(); pruned > 0 {
		h.logger.Debug("pruned game history", zap.Int64("rows", pruned))
	}
	return nil
}

// Recent returns up to limit summaries, newest first. A limit of zero or
// less returns everything.
func (h *SQLiteHistory) Recent(ctx context.Context, limit int) ([]game.Summary, error) {
	if limit <= 0 {
		limit = h.maxSessions
	}
	rows, err := h.db.QueryContext(ctx,
		`SELECT payload, checksum FROM game_history ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []game.Summary
	for rows.Next() {
		var payload []byte
		var checksum string
		if err := rows.Scan(&payload, &checksum); err != nil {
			return nil, err
		}
		summary, err := decodeSummary(payload, checksum)
		if err != nil {
			h.logger.Warn("skipping unreadable history row", zap.Error(err))
			continue
		}
		out = append(out, summary)
	}
	return out, rows.Err()
}

func (h *SQLiteHistory) Get(ctx context.Context, id string) (game.Summary, error) {
	var payload []byte
	var checksum string
	err := h.db.QueryRowContext(ctx,
		`SELECT payload, checksum FROM game_history WHERE id = ?`, id).Scan(&payload, &checksum)
	if errors.Is(err, sql.ErrNoRows) {
		return game.Summary{}, fmt.Errorf("game %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return game.Summary{}, err
	}
	return decodeSummary(payload, checksum)
}

func (h *SQLiteHistory) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := h.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(time_played), 0), COALESCE(MAX(score), 0)
		FROM game_history`).Scan(&stats.TotalGames, &stats.TotalTimePlayed, &stats.HighestScore)
	return stats, err
}

func (h *SQLiteHistory) Clear(ctx context.Context) error {
	_, err := h.db.ExecContext(ctx, `DELETE FROM game_history`)
	return err
}
