package storage

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/mathcards/grinddeck-server/internal/game"
)

// MemoryHistory is a History that lives only as long as the process.
type MemoryHistory struct {
	mu          sync.RWMutex
	summaries   []game.Summary
	maxSessions int
}

// NewMemoryHistory creates an empty in-memory history.
func NewMemoryHistory(maxSessions int) *MemoryHistory {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	return &MemoryHistory{maxSessions: maxSessions}
}

// Record stores summary as the newest entry, replacing an entry with the same id.
func (h *MemoryHistory) Record(_ context.Context, summary game.Summary) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.summaries = slices.DeleteFunc(h.summaries, func(s game.Summary) bool { return s.ID == summary.ID })
	h.summaries = append([]game.Summary{summary}, h.summaries...)
	if len(h.summaries) > h.maxSessions {
		h.summaries = h.summaries[:h.maxSessions]
	}
	return nil
}

func (h *MemoryHistory) Recent(_ context.Context, limit int) ([]game.Summary, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if limit <= 0 || limit > len(h.summaries) {
		limit = len(h.summaries)
	}
	return slices.Clone(h.summaries[:limit]), nil
}

func (h *MemoryHistory) Get(_ context.Context, id string) (game.Summary, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, s := range h.summaries {
		if s.ID == id {
			return s, nil
		}
	}
	return game.Summary{}, fmt.Errorf("game %s: %w", id, ErrNotFound)
}

func (h *MemoryHistory) Stats(_ context.Context) (Stats, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := Stats{TotalGames: len(h.summaries)}
	for _, s := range h.summaries {
		stats.TotalTimePlayed += s.TimePlayed
		stats.HighestScore = max(stats.HighestScore, s.Score)
	}
	return stats, nil
}

func (h *MemoryHistory) Clear(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.summaries = nil
	return nil
}

func (h *MemoryHistory) Close() error { return nil }
