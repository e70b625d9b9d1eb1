package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mathcards/grinddeck-server/internal/game"
	"go.uber.org/zap"
)

// PostgresHistory stores summaries in PostgreSQL.
type PostgresHistory struct {
	pool        *pgxpool.Pool
	maxSessions int
	logger      *zap.Logger
}

// NewPostgresHistory connects to dsn and pings the server.
func NewPostgresHistory(ctx context.Context, dsn string, maxSessions int, logger *zap.Logger) (*PostgresHistory, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresHistory{pool: pool, maxSessions: maxSessions, logger: logger}, nil
}

func (h *PostgresHistory) Close() error {
	h.pool.Close()
	return nil
}

// Migrate creates the history table.
func (h *PostgresHistory) Migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS game_history (
			seq BIGSERIAL PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			played_at TIMESTAMPTZ NOT NULL,
			difficulty TEXT NOT NULL,
			solo_mode TEXT NOT NULL,
			score DOUBLE PRECISION NOT NULL,
			time_played INTEGER NOT NULL,
			checksum TEXT NOT NULL,
			payload BYTEA NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_game_history_score ON game_history(score)`,
	}
	for _, m := range migrations {
		if _, err := h.pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func (h *PostgresHistory) Record(ctx context.Context, summary game.Summary) error {
	payload, checksum, err := encodeSummary(summary)
	if err != nil {
		return err
	}

	tx, err := h.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM game_history WHERE id = $1`, summary.ID); err != nil {
		return fmt.Errorf("replace history row: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO game_history (id, played_at, difficulty, solo_mode, score, time_played, checksum, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		summary.ID, summary.Date, string(summary.Difficulty), string(summary.SoloMode),
		summary.Score, summary.TimePlayed, checksum, payload,
	)
	if err != nil {
		return fmt.Errorf("insert history row: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		DELETE FROM game_history
		WHERE seq NOT IN (SELECT seq FROM game_history ORDER BY seq DESC LIMIT $1)`,
		h.maxSessions,
	)
	if err != nil {
		return fmt.Errorf("prune history: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	if tag.RowsAffected() > 0 {
		h.logger.Debug("pruned game history", zap.Int64("rows", tag.RowsAffected()))
	}
	return nil
}

func (h *PostgresHistory) Recent(ctx context.Context, limit int) ([]game.Summary, error) {
	if limit <= 0 {
		limit = h.maxSessions
	}
	rows, err := h.pool.Query(ctx,
		`SELECT payload, checksum FROM game_history ORDER BY seq DESC LIMIT $1`, limit)
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

func (h *PostgresHistory) Get(ctx context.Context, id string) (game.Summary, error) {
	var payload []byte
	var checksum string
	err := h.pool.QueryRow(ctx,
		`SELECT payload, checksum FROM game_history WHERE id = $1`, id).Scan(&payload, &checksum)
	if errors.Is(err, pgx.ErrNoRows) {
		return game.Summary{}, fmt.Errorf("game %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return game.Summary{}, err
	}
	return decodeSummary(payload, checksum)
}

func (h *PostgresHistory) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := h.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(time_played), 0), COALESCE(MAX(score), 0)
		FROM game_history`).Scan(&stats.TotalGames, &stats.TotalTimePlayed, &stats.HighestScore)
	return stats, err
}

func (h *PostgresHistory) Clear(ctx context.Context) error {
	_, err := h.pool.Exec(ctx, `DELETE FROM game_history`)
	return err
}
