package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/mathcards/grinddeck-server/internal/game"
	"github.com/mathcards/grinddeck-server/internal/storage"
)

var errHistoryDisabled = fmt.Errorf("history is disabled: %w", storage.ErrNotFound)

type replayResponse struct {
	GameID  string             `json:"game_id"`
	Size    int                `json:"size"`
	Summary game.Summary       `json:"summary"`
	Frames  []game.ReplayFrame `json:"frames,omitempty"`
	Frame   *game.ReplayFrame  `json:"frame,omitempty"`
}

func queryInt(r *http.Request, key string) (int, bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false, fmt.Errorf("%s must be a non-negative integer: %w", key, errBadRequest)
	}
	return n, true, nil
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, errHistoryDisabled, nil)
		return
	}
	limit, _, err := queryInt(r, "limit")
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	summaries, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	if summaries == nil {
		summaries = []game.Summary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleHistoryStats(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, errHistoryDisabled, nil)
		return
	}
	stats, err := s.history.Stats(r.Context())
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, errHistoryDisabled, nil)
		return
	}
	summary, err := s.history.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, errHistoryDisabled, nil)
		return
	}
	if err := s.history.Clear(r.Context()); err != nil {
		s.writeError(w, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReplay returns every frame of a finished game, or the single frame
// named by ?step=.
func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	step, hasStep, err := queryInt(r, "step")
	if err != nil {
		s.writeError(w, err, nil)
		return
	}

	replay, err := s.replay(r, id)
	if err != nil {
		s.writeError(w, err, nil)
		return
	}

	resp := replayResponse{GameID: replay.GameID, Size: replay.Size(), Summary: replay.Summary}
	if hasStep {
		resp.Frame = replay.FrameAt(step)
		if resp.Frame == nil {
			s.writeError(w, fmt.Errorf("step %d out of range [0, %d): %w", step, replay.Size(), errBadRequest), nil)
			return
		}
	} else {
		resp.Frames = replay.Frames
	}
	writeJSON(w, http.StatusOK, resp)
}

// replay looks the game up in the recorder first and rebuilds it from the
// history store otherwise.
func (s *Server) replay(r *http.Request, id string) (*game.Replay, error) {
	if s.replays != nil {
		replay, err := s.replays.GetReplay(id)
		if err == nil {
			return replay, nil
		}
		if !errors.Is(err, game.ErrGameNotFound) {
			return nil, err
		}
	}
	if s.history == nil {
		return nil, fmt.Errorf("no replay for game %s: %w", id, game.ErrGameNotFound)
	}
	summary, err := s.history.Get(r.Context(), id)
	if err != nil {
		return nil, err
	}
	return game.NewReplay(summary), nil
}
