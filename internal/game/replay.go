package game

import (
	"compress/gzip"
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mathcards/grinddeck-server/internal/game/rules"
	"go.uber.org/zap"
)

// ReplayFrame is the board after one move of a finished game.
type ReplayFrame struct {
	Index      int
	Move       Move
	GrindValue float64
	Score      float64
}

// Replay steps through the move log of a finished game.
type Replay struct {
	GameID       string
	Summary      Summary
	Frames       []ReplayFrame
	CurrentIndex int
	mu           sync.RWMutex
}

// NewReplay rebuilds the frames of a game from its summary. The Grind value of
// a frame is the last result so far; variable plays carry no result and keep it.
func NewReplay(summary Summary) *Replay {
	header := summary
	header.Moves = nil
	r := &Replay{
		GameID:  summary.ID,
		Summary: header,
		Frames:  make([]ReplayFrame, 0, len(summary.Moves)),
	}

	var grind, score float64
	for i, move := range summary.Moves {
		if move.ResultValue != nil {
			grind = *move.ResultValue
			if scores(move.Type) && grind > score {
				score = grind
			}
		}
		r.Frames = append(r.Frames, ReplayFrame{Index: i, Move: move, GrindValue: grind, Score: score})
	}
	return r
}

func scores(kind rules.MoveKind) bool {
	switch kind {
	case rules.MoveArithmetic, rules.MoveFunction, rules.MoveAlgebra:
		return true
	default:
		return false
	}
}

// Moves returns the move log the replay was built from.
func (r *Replay) Moves() []Move {
	r.mu.RLock()
	defer r.mu.RUnlock()

	moves := make([]Move, 0, len(r.Frames))
	for _, f := range r.Frames {
		moves = append(moves, f.Move)
	}
	return moves
}

// Start rewinds to the first frame.
func (r *Replay) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.CurrentIndex = 0
}

// Next returns the current frame and advances, or nil at the end.
func (r *Replay) Next() *ReplayFrame {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.CurrentIndex < len(r.Frames) {
		frame := r.Frames[r.CurrentIndex]
		r.CurrentIndex++
		return &frame
	}
	return nil
}

// Previous steps back one frame and returns it, or nil at the start.
func (r *Replay) Previous() *ReplayFrame {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.CurrentIndex > 0 {
		r.CurrentIndex--
		frame := r.Frames[r.CurrentIndex]
		return &frame
	}
	return nil
}

// Skip moves by count frames, clamped to the recorded range.
func (r *Replay) Skip(count int) *ReplayFrame {
	r.mu.Lock()
	defer r.mu.Unlock()

	newIndex := r.CurrentIndex + count
	if newIndex >= len(r.Frames) {
		newIndex = len(r.Frames) - 1
	}
	if newIndex < 0 {
		newIndex = 0
	}

	r.CurrentIndex = newIndex
	if r.CurrentIndex < len(r.Frames) {
		frame := r.Frames[r.CurrentIndex]
		return &frame
	}
	return nil
}

// Size returns the number of frames.
func (r *Replay) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.Frames)
}

// FrameAt returns the frame at index.
func (r *Replay) FrameAt(index int) *ReplayFrame {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if index >= 0 && index < len(r.Frames) {
		frame := r.Frames[index]
		return &frame
	}
	return nil
}

func replayPath(directory, gameID string) string {
	return filepath.Join(directory, fmt.Sprintf("%s.replay", gameID))
}

// SaveToFile writes the replay to <directory>/<game id>.replay as gzipped gob.
func (r *Replay) SaveToFile(directory string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := os.MkdirAll(directory, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(replayPath(directory, r.GameID))
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	gzipWriter := gzip.NewWriter(file)
	defer gzipWriter.Close()

	encoder := gob.NewEncoder(gzipWriter)
	metadata := replayMetadata{
		GameID:     r.GameID,
		Timestamp:  time.Now(),
		Version:    1,
		FrameCount: len(r.Frames),
	}
	if err := encoder.Encode(&metadata); err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := encoder.Encode(&r.Summary); err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	for i := range r.Frames {
		if err := encoder.Encode(&r.Frames[i]); err != nil {
			return fmt.Errorf("failed to encode frame %d: %w", i, err)
		}
	}
	return nil
}

// LoadReplayFromFile reads a replay written by SaveToFile.
func LoadReplayFromFile(directory, gameID string) (*Replay, error) {
	file, err := os.Open(replayPath(directory, gameID))
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	gzipReader, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	decoder := gob.NewDecoder(gzipReader)

	var metadata replayMetadata
	if err := decoder.Decode(&metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	if metadata.Version != 1 {
		return nil, fmt.Errorf("unsupported replay version: %d", metadata.Version)
	}

	replay := &Replay{GameID: metadata.GameID}
	if err := decoder.Decode(&replay.Summary); err != nil {
		return nil, fmt.Errorf("failed to decode summary: %w", err)
	}
	for i := 0; i < metadata.FrameCount; i++ {
		var frame ReplayFrame
		if err := decoder.Decode(&frame); err != nil {
			return nil, fmt.Errorf("failed to decode frame %d: %w", i, err)
		}
		replay.Frames = append(replay.Frames, frame)
	}
	return replay, nil
}

type replayMetadata struct {
	GameID     string
	Timestamp  time.Time
	Version    int
	FrameCount int
}

// ReplayRecorder keeps replays of finished games and writes them to disk when
// a save directory is configured.
type ReplayRecorder struct {
	logger  *zap.Logger
	mu      sync.RWMutex
	replays map[string]*Replay
	saveDir string
}

// NewReplayRecorder creates a recorder. An empty saveDir keeps replays in
// memory only.
func NewReplayRecorder(logger *zap.Logger, saveDir string) *ReplayRecorder {
	return &ReplayRecorder{
		logger:  logger,
		replays: make(map[string]*Replay),
		saveDir: saveDir,
	}
}

// Record builds a replay from summary and saves it.
func (rr *ReplayRecorder) Record(summary Summary) error {
	replay := NewReplay(summary)

	rr.mu.Lock()
	rr.replays[summary.ID] = replay
	rr.mu.Unlock()

	if rr.saveDir == "" {
		return nil
	}
	if err := replay.SaveToFile(rr.saveDir); err != nil {
		return fmt.Errorf("failed to save replay: %w", err)
	}
	if rr.logger != nil {
		rr.logger.Info("saved replay to disk",
			zap.String("game_id", summary.ID),
			zap.Int("frame_count", replay.Size()),
			zap.String("directory", rr.saveDir),
		)
	}
	return nil
}

// Hook adapts Record for WithEndHook, logging failures.
func (rr *ReplayRecorder) Hook() func(Summary) {
	return func(summary Summary) {
		if err := rr.Record(summary); err != nil && rr.logger != nil {
			rr.logger.Warn("failed to record replay",
				zap.String("game_id", summary.ID),
				zap.Error(err),
			)
		}
	}
}

// GetReplay returns a replay held in memory, falling back to disk.
func (rr *ReplayRecorder) GetReplay(gameID string) (*Replay, error) {
	rr.mu.RLock()
	replay, ok := rr.replays[gameID]
	rr.mu.RUnlock()
	if ok {
		return replay, nil
	}
	if rr.saveDir == "" {
		return nil, fmt.Errorf("no replay for game %s: %w", gameID, ErrGameNotFound)
	}
	return rr.LoadReplay(gameID)
}

// LoadReplay loads a replay from disk.
func (rr *ReplayRecorder) LoadReplay(gameID string) (*Replay, error) {
	replay, err := LoadReplayFromFile(rr.saveDir, gameID)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("no replay for game %s: %w", gameID, ErrGameNotFound)
		}
		return nil, err
	}
	if rr.logger != nil {
		rr.logger.Debug("loaded replay from disk",
			zap.String("game_id", gameID),
			zap.Int("frame_count", replay.Size()),
		)
	}
	return replay, nil
}

// ClearReplay drops a replay from memory. Files on disk are kept.
func (rr *ReplayRecorder) ClearReplay(gameID string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	delete(rr.replays, gameID)
}
