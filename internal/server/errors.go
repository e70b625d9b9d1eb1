package server

import (
	"errors"
	"net/http"

	"github.com/mathcards/grinddeck-server/internal/game"
	"github.com/mathcards/grinddeck-server/internal/storage"
	"go.uber.org/zap"
)

var errBadRequest = errors.New("bad request")

// errorResponse is the body of every failed request. State is set for
// rejected game commands and holds the unchanged game.
type errorResponse struct {
	Error  string     `json:"error"`
	Reason string     `json:"reason"`
	State  *game.View `json:"state,omitempty"`
}

// classify maps an error to an HTTP status and a short reason code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, game.ErrGameNotFound), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, game.ErrDivisionByZero):
		return http.StatusUnprocessableEntity, "division_by_zero"
	case errors.Is(err, game.ErrNonFiniteResult):
		return http.StatusUnprocessableEntity, "non_finite_result"
	case errors.Is(err, game.ErrHandFull):
		return http.StatusUnprocessableEntity, "hand_full"
	case errors.Is(err, game.ErrGameEnded):
		return http.StatusUnprocessableEntity, "game_ended"
	case errors.Is(err, game.ErrIllegalMove):
		return http.StatusUnprocessableEntity, "illegal_move"
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "bad_request"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error, state *game.View) {
	status, reason := classify(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Reason: reason, State: state})
}
