package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mathcards/grinddeck-server/internal/game"
	"github.com/mathcards/grinddeck-server/internal/game/cards"
	"github.com/mathcards/grinddeck-server/internal/game/rules"
	"go.uber.org/zap"
)

type startGameRequest struct {
	Difficulty cards.Difficulty `json:"difficulty"`
	SoloMode   rules.SoloMode   `json:"solo_mode,omitempty"`
	Limit      int              `json:"limit,omitempty"`
}

// decodeBody decodes an optional JSON body into v.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("invalid JSON body: %v: %w", err, errBadRequest)
}

func (s *Server) engine(w http.ResponseWriter, r *http.Request) (*game.Engine, bool) {
	e, err := s.manager.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err, nil)
		return nil, false
	}
	return e, true
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"games": s.manager.List()})
}

func (s *Server) handleStartGame(w http.ResponseWriter, r *http.Request) {
	var req startGameRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err, nil)
		return
	}
	if req.Difficulty == "" {
		req.Difficulty = s.defaultDifficulty
	}
	mode, err := rules.ParseSoloMode(string(req.SoloMode))
	if err != nil {
		s.writeError(w, fmt.Errorf("%v: %w", err, errBadRequest), nil)
		return
	}

	e, err := s.manager.StartGame(r.Context(), game.Config{
		Difficulty: req.Difficulty,
		Mode:       mode,
		Limit:      req.Limit,
	})
	if err != nil {
		s.writeError(w, fmt.Errorf("%v: %w", err, errBadRequest), nil)
		return
	}
	writeJSON(w, http.StatusCreated, e.View())
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	e, ok := s.engine(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, e.View())
}

// handleDeleteGame ends the game if it is still running and forgets it.
func (s *Server) handleDeleteGame(w http.ResponseWriter, r *http.Request) {
	e, ok := s.engine(w, r)
	if !ok {
		return
	}
	if !e.Ended() {
		if err := e.EndGame(r.Context()); err != nil {
			s.logger.Warn("failed to end deleted game", zap.String("game_id", e.ID()), zap.Error(err))
		}
	}
	s.manager.Remove(e.ID())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCommand(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.runCommand(w, r, name)
	}
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	name, ok := playCommands[chi.URLParam(r, "kind")]
	if !ok {
		s.writeError(w, fmt.Errorf("unknown card kind %q: %w", chi.URLParam(r, "kind"), errBadRequest), nil)
		return
	}
	s.runCommand(w, r, name)
}

func (s *Server) runCommand(w http.ResponseWriter, r *http.Request, name string) {
	e, ok := s.engine(w, r)
	if !ok {
		return
	}
	var req commandRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err, nil)
		return
	}

	if err := dispatch(r.Context(), e, name, req); err != nil {
		view := e.View()
		s.writeError(w, err, &view)
		return
	}
	view := e.View()
	s.hub.BroadcastState(view)
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	next, err := s.manager.Restart(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, next.View())
}

func (s *Server) handleMoves(w http.ResponseWriter, r *http.Request) {
	e, ok := s.engine(w, r)
	if !ok {
		return
	}
	moves := e.Moves()
	if moves == nil {
		moves = []game.Move{}
	}
	writeJSON(w, http.StatusOK, moves)
}

type unlockResponse struct {
	Feature  rules.Feature `json:"feature"`
	Unlocked bool          `json:"unlocked"`
	Eligible bool          `json:"eligible"`
}

// handleUnlock reports whether a feature is unlocked and whether the current
// score and tier would unlock it.
func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	e, ok := s.engine(w, r)
	if !ok {
		return
	}
	feature, err := rules.ParseFeature(chi.URLParam(r, "feature"))
	if err != nil {
		s.writeError(w, fmt.Errorf("%v: %w", err, errBadRequest), nil)
		return
	}
	writeJSON(w, http.StatusOK, unlockResponse{
		Feature:  feature,
		Unlocked: e.Progress().Has(feature),
		Eligible: e.CanUnlock(feature),
	})
}
