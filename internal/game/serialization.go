package game

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mathcards/grinddeck-server/internal/game/numeric"
)

// SerializationChecksum is a deterministic fingerprint of a finished game,
// stored next to history rows and compared when they are read back.
type SerializationChecksum struct {
	Hash    string // SHA-256 of the deterministic representation
	Version int
}

// ComputeChecksum hashes the summary. Timestamps are excluded so that a game
// re-encoded on another machine keeps its checksum.
func (s Summary) ComputeChecksum() (*SerializationChecksum, error) {
	hash := sha256.New()
	if _, err := hash.Write([]byte(s.buildDeterministicRepresentation())); err != nil {
		return nil, fmt.Errorf("failed to compute hash: %w", err)
	}
	return &SerializationChecksum{
		Hash:    hex.EncodeToString(hash.Sum(nil)),
		Version: 1,
	}, nil
}

func (s Summary) buildDeterministicRepresentation() string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "GAME:%s|%s|%s|%s|%s\n", s.ID, s.Difficulty, s.GameMode, s.SoloMode, s.EndReason)
	fmt.Fprintf(&buf, "RESULT:%s|%s|%d|%d|%d\n",
		numeric.Format(s.Score),
		numeric.Format(s.FinalValue),
		s.TimePlayed,
		s.CardsPlayed,
		s.MoveCount,
	)
	fmt.Fprintf(&buf, "LIMITS:%d|%d|%d\n", s.TimeLimit, s.DeckLimit, s.TargetScore)

	// move order matters, so it is kept as recorded
	for i, move := range s.Moves {
		result := "-"
		if move.ResultValue != nil {
			result = numeric.Format(*move.ResultValue)
		}
		fmt.Fprintf(&buf, "MOVE:%d|%s|%s|%s|%s\n", i, move.ID, move.Type, result, move.Description)

		ids := make([]string, 0, len(move.Cards))
		for _, c := range move.Cards {
			ids = append(ids, c.ID+"="+c.Label())
		}
		buf.WriteString("  CARDS:")
		buf.WriteString(strings.Join(ids, ","))
		buf.WriteString("\n")
	}

	return buf.String()
}

// VerifyChecksum reports whether the summary still hashes to expected.
func (s Summary) VerifyChecksum(expected string) (bool, error) {
	computed, err := s.ComputeChecksum()
	if err != nil {
		return false, fmt.Errorf("failed to compute checksum: %w", err)
	}
	return computed.Hash == expected, nil
}

// SerializeToBytes gob-encodes the summary.
func (s Summary) SerializeToBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, fmt.Errorf("failed to encode summary: %w", err)
	}
	return buf.Bytes(), nil
}

// DeserializeSummary decodes bytes written by SerializeToBytes.
func DeserializeSummary(data []byte) (Summary, error) {
	var s Summary
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return Summary{}, fmt.Errorf("failed to decode summary: %w", err)
	}
	return s, nil
}

// ValidateSerializationRoundtrip checks that encoding and decoding the
// summary preserves its checksum.
func ValidateSerializationRoundtrip(s Summary) error {
	original, err := s.ComputeChecksum()
	if err != nil {
		return fmt.Errorf("failed to compute original checksum: %w", err)
	}

	data, err := s.SerializeToBytes()
	if err != nil {
		return fmt.Errorf("failed to serialize: %w", err)
	}

	decoded, err := DeserializeSummary(data)
	if err != nil {
		return fmt.Errorf("failed to deserialize: %w", err)
	}

	roundtrip, err := decoded.ComputeChecksum()
	if err != nil {
		return fmt.Errorf("failed to compute deserialized checksum: %w", err)
	}
	if original.Hash != roundtrip.Hash {
		return fmt.Errorf("checksum mismatch after roundtrip: original=%s, deserialized=%s",
			original.Hash, roundtrip.Hash)
	}
	return nil
}
