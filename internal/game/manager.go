package game

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mathcards/grinddeck-server/internal/game/rules"
	"go.uber.org/zap"
)

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithEngineOptions applies opts to every engine the manager starts.
func WithEngineOptions(opts ...Option) ManagerOption {
	return func(m *Manager) {
		m.engineOpts = append(m.engineOpts, opts...)
	}
}

// WithRetention keeps ended games around for ttl before eviction. Zero keeps
// them until removed.
func WithRetention(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		m.retention = ttl
	}
}

// WithManagerClock overrides time.Now for the manager and its engines.
func WithManagerClock(clock func() time.Time) ManagerOption {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// Manager owns the running games of a server and a shared event bus.
type Manager struct {
	mu         sync.RWMutex
	games      map[string]*Engine
	logger     *zap.Logger
	bus        *rules.EventBus
	clock      func() time.Time
	retention  time.Duration
	engineOpts []Option
}

// NewManager creates an empty manager.
func NewManager(logger *zap.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		games:  make(map[string]*Engine),
		logger: logger,
		bus:    rules.NewEventBus(),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Events returns the bus every managed engine publishes on.
func (m *Manager) Events() *rules.EventBus {
	return m.bus
}

// StartGame starts and registers a new game.
func (m *Manager) StartGame(ctx context.Context, cfg Config) (*Engine, error) {
	opts := append([]Option{
		WithLogger(m.logger),
		WithEventBus(m.bus),
		WithClock(m.clock),
	}, m.engineOpts...)

	e, err := StartGame(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.games[e.ID()] = e
	m.mu.Unlock()
	return e, nil
}

// Get returns the game with id.
func (m *Manager) Get(id string) (*Engine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.games[id]
	if !ok {
		return nil, fmt.Errorf("game %s: %w", id, ErrGameNotFound)
	}
	return e, nil
}

// Remove forgets a game. Running games are not ended.
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.games[id]; !ok {
		return false
	}
	delete(m.games, id)
	return true
}

// Restart ends the game with id if needed and starts a new one with the same
// configuration. The new game gets a new id.
func (m *Manager) Restart(ctx context.Context, id string) (*Engine, error) {
	old, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	if !old.Ended() {
		if err := old.EndGame(ctx); err != nil {
			return nil, err
		}
	}
	m.Remove(id)
	return m.StartGame(ctx, old.Config())
}

// Len returns the number of managed games.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.games)
}

// List returns the ids of managed games in sorted order.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.games))
	for id := range m.games {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (m *Manager) snapshot() []*Engine {
	m.mu.RLock()
	defer m.mu.RUnlock()

	engines := make([]*Engine, 0, len(m.games))
	for _, e := range m.games {
		engines = append(engines, e)
	}
	return engines
}

// Tick advances the clock of every running game and returns how many ended
// on this tick.
func (m *Manager) Tick(ctx context.Context) int {
	ended := 0
	for _, e := range m.snapshot() {
		if e.Ended() {
			continue
		}
		if e.Tick(ctx) {
			ended++
		}
	}
	return ended
}

// Evict removes games that ended more than the retention period ago.
func (m *Manager) Evict() int {
	if m.retention <= 0 {
		return 0
	}
	cutoff := m.clock().Add(-m.retention)

	var stale []string
	for _, e := range m.snapshot() {
		session := e.Session()
		if session.Ended && session.EndedAt.Before(cutoff) {
			stale = append(stale, e.ID())
		}
	}
	for _, id := range stale {
		m.Remove(id)
	}
	if len(stale) > 0 && m.logger != nil {
		m.logger.Debug("evicted ended games", zap.Int("count", len(stale)))
	}
	return len(stale)
}

// Run ticks every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Tick(ctx)
			m.Evict()
		}
	}
}
