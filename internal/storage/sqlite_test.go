package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func openSQLite(t *testing.T, maxSessions int) *SQLiteHistory {
	t.Helper()
	h, err := NewSQLiteHistory(":memory:", maxSessions, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, h.Migrate())
	t.Cleanup(func() { h.Close() })
	return h
}

func TestSQLiteHistory(t *testing.T) {
	historyContract(t, func(t *testing.T, maxSessions int) History {
		return openSQLite(t, maxSessions)
	})
}

func TestSQLiteHistoryDetectsTampering(t *testing.T) {
	h := openSQLite(t, 10)
	ctx := context.Background()
	require.NoError(t, h.Record(ctx, summary("a", 12, 30)))
	require.NoError(t, h.Record(ctx, summary("b", 20, 30)))

	_, err := h.db.Exec(`UPDATE game_history SET checksum = 'bad' WHERE id = ?`, "a")
	require.NoError(t, err)

	_, err = h.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrChecksumMismatch)

	all, err := h.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 1, "tampered rows are skipped")
	assert.Equal(t, "b", all[0].ID)
}

func TestSQLiteHistoryPersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	h, err := OpenHistory(ctx, "sqlite", path, 10, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, h.Record(ctx, summary("a", 12, 30)))
	require.NoError(t, h.Close())

	h, err = OpenHistory(ctx, "sqlite", path, 10, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer h.Close()

	got, err := h.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 12.0, got.Score)
}
