// Package server exposes the game manager over a chi HTTP API and a gorilla
// websocket command channel.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mathcards/grinddeck-server/internal/config"
	"github.com/mathcards/grinddeck-server/internal/game"
	"github.com/mathcards/grinddeck-server/internal/game/cards"
	"github.com/mathcards/grinddeck-server/internal/storage"
	"go.uber.org/zap"
)

// Server handles HTTP and websocket requests for a game manager.
type Server struct {
	manager           *game.Manager
	history           storage.History
	replays           *game.ReplayRecorder
	hub               *Hub
	logger            *zap.Logger
	requestTimeout    time.Duration
	wsPath            string
	defaultDifficulty cards.Difficulty
}

// New creates a server. history and replays may be nil, in which case the
// history routes answer 404.
func New(cfg *config.Config, manager *game.Manager, history storage.History, replays *game.ReplayRecorder, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		manager:           manager,
		history:           history,
		replays:           replays,
		logger:            logger,
		requestTimeout:    cfg.Server.HTTP.RequestTimeout,
		wsPath:            cfg.Server.WebSocket.Path,
		defaultDifficulty: cfg.Game.DefaultDifficulty,
	}
	if s.requestTimeout <= 0 {
		s.requestTimeout = 30 * time.Second
	}
	if s.wsPath == "" {
		s.wsPath = "/ws"
	}
	if !s.defaultDifficulty.Valid() {
		s.defaultDifficulty = cards.DifficultyBasic
	}
	s.hub = NewHub(manager.Events(), cfg.Server.WebSocket.WriteTimeout, logger)
	return s
}

// Hub returns the websocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Close disconnects every websocket client.
func (s *Server) Close() {
	s.hub.Close()
}

// Routes sets up the HTTP routes.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/health"))

	r.Get(s.wsPath, s.handleWebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(s.requestTimeout))

		r.Route("/games", func(r chi.Router) {
			r.Get("/", s.handleListGames)
			r.Post("/", s.handleStartGame)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetGame)
				r.Delete("/", s.handleDeleteGame)
				r.Post("/draw", s.handleCommand(cmdDraw))
				r.Post("/play/{kind}", s.handlePlay)
				r.Post("/select", s.handleCommand(cmdSelect))
				r.Post("/deselect", s.handleCommand(cmdDeselect))
				r.Put("/target", s.handleCommand(cmdSetTarget))
				r.Post("/algebra/apply", s.handleCommand(cmdApplyAlgebra))
				r.Post("/end", s.handleCommand(cmdEnd))
				r.Post("/restart", s.handleRestart)
				r.Get("/moves", s.handleMoves)
				r.Get("/unlocks/{feature}", s.handleUnlock)
			})
		})

		r.Route("/history", func(r chi.Router) {
			r.Get("/", s.handleListHistory)
			r.Delete("/", s.handleClearHistory)
			r.Get("/stats", s.handleHistoryStats)
			r.Get("/{id}", s.handleGetHistory)
			r.Get("/{id}/replay", s.handleReplay)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// requestLogger logs one line per request through zap.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			logger.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
