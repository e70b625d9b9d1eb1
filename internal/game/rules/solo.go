package rules

import (
	"fmt"
	"time"
)

// SoloMode is the solo sub-mode that decides when a session ends.
type SoloMode string

const (
	ModeUnlimited   SoloMode = "unlimited"
	ModeTimeLimited SoloMode = "time_limited"
	ModeDeckLimited SoloMode = "deck_limited"
	ModeReachScore  SoloMode = "reach_score"
)

// ParseSoloMode validates a mode name. An empty name means unlimited.
func ParseSoloMode(s string) (SoloMode, error) {
	switch SoloMode(s) {
	case "":
		return ModeUnlimited, nil
	case ModeUnlimited, ModeTimeLimited, ModeDeckLimited, ModeReachScore:
		return SoloMode(s), nil
	default:
		return "", fmt.Errorf("unknown solo mode %q", s)
	}
}

// EndReason records why a session ended.
type EndReason string

const (
	ReasonTimeUp       EndReason = "time_up"
	ReasonDeckFinished EndReason = "deck_finished"
	ReasonScoreReached EndReason = "score_reached"
	ReasonManualEnd    EndReason = "manual_end"
)

// Session is the solo controller state of one game. Limit is seconds for
// time_limited, cards for deck_limited and a score for reach_score.
type Session struct {
	Mode        SoloMode  `json:"mode"`
	Limit       int       `json:"limit,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CardsPlayed int       `json:"cards_played"`
	Ended       bool      `json:"ended"`
	EndedAt     time.Time `json:"ended_at,omitempty"`
	Reason      EndReason `json:"reason,omitempty"`
}

// NewSession validates the mode/limit pair and starts the clock.
func NewSession(mode SoloMode, limit int, start time.Time) (Session, error) {
	if mode == "" {
		mode = ModeUnlimited
	}
	switch mode {
	case ModeUnlimited:
		limit = 0
	case ModeTimeLimited, ModeDeckLimited, ModeReachScore:
		if limit <= 0 {
			return Session{}, fmt.Errorf("solo mode %s needs a positive limit, got %d", mode, limit)
		}
	default:
		return Session{}, fmt.Errorf("unknown solo mode %q", mode)
	}
	return Session{Mode: mode, Limit: limit, StartedAt: start}, nil
}

// Elapsed is the number of whole seconds since the session started, frozen at
// the end time once the session has ended.
func (s Session) Elapsed(now time.Time) int {
	if s.Ended {
		now = s.EndedAt
	}
	d := now.Sub(s.StartedAt)
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}

// RemainingTime returns the seconds left in a time_limited session.
func (s Session) RemainingTime(now time.Time) (int, bool) {
	if s.Mode != ModeTimeLimited {
		return 0, false
	}
	return max(0, s.Limit-s.Elapsed(now)), true
}

// RemainingCards returns the cards left in a deck_limited session.
func (s Session) RemainingCards() (int, bool) {
	if s.Mode != ModeDeckLimited {
		return 0, false
	}
	return max(0, s.Limit-s.CardsPlayed), true
}

// Due returns the end reason that applies at now for score, if any.
// It never reports a reason for a session that has already ended.
func (s Session) Due(now time.Time, score float64) (EndReason, bool) {
	if s.Ended {
		return "", false
	}
	switch s.Mode {
	case ModeTimeLimited:
		if s.Elapsed(now) >= s.Limit {
			return ReasonTimeUp, true
		}
	case ModeDeckLimited:
		if s.CardsPlayed >= s.Limit {
			return ReasonDeckFinished, true
		}
	case ModeReachScore:
		if score >= float64(s.Limit) {
			return ReasonScoreReached, true
		}
	}
	return "", false
}

// Check ends the session if a condition is due and returns the reason.
func (s *Session) Check(now time.Time, score float64) (EndReason, bool) {
	reason, due := s.Due(now, score)
	if !due {
		return "", false
	}
	s.End(now, reason)
	return reason, true
}

// End moves the session to its terminal state. Only the first call counts.
func (s *Session) End(now time.Time, reason EndReason) bool {
	if s.Ended {
		return false
	}
	s.Ended = true
	s.EndedAt = now
	s.Reason = reason
	return true
}

// AddCards counts cards consumed by a move.
func (s *Session) AddCards(n int) {
	s.CardsPlayed += n
}
