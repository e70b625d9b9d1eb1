package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeChecksum(t *testing.T) {
	checksum, err := createTestSummary().ComputeChecksum()
	require.NoError(t, err)
	assert.Len(t, checksum.Hash, 64)
	assert.Equal(t, 1, checksum.Version)
}

func TestDeterministicChecksum(t *testing.T) {
	summary := createTestSummary()
	first, err := summary.ComputeChecksum()
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := summary.ComputeChecksum()
		require.NoError(t, err)
		assert.Equal(t, first.Hash, again.Hash)
	}
}

func TestChecksumStableAcrossIdenticalSummaries(t *testing.T) {
	assert.Equal(t, mustChecksum(t, createTestSummary()), mustChecksum(t, createTestSummary()))
}

func TestChecksumIgnoresTimestamp(t *testing.T) {
	a := createTestSummary()
	b := createTestSummary()
	for i := range b.Moves {
		b.Moves[i].Timestamp = b.Moves[i].Timestamp.Add(time.Hour)
	}
	b.Date = b.Date.Add(time.Hour)
	b.EndedAt = b.EndedAt.Add(time.Hour)

	ca, err := a.ComputeChecksum()
	require.NoError(t, err)
	cb, err := b.ComputeChecksum()
	require.NoError(t, err)
	assert.Equal(t, ca.Hash, cb.Hash)
}

func TestChecksumDetectsChanges(t *testing.T) {
	original := createTestSummary()
	ok, err := original.VerifyChecksum(mustChecksum(t, original))
	require.NoError(t, err)
	assert.True(t, ok)

	score := createTestSummary()
	score.Score = 9
	assert.NotEqual(t, mustChecksum(t, original), mustChecksum(t, score))

	moves := createTestSummary()
	moves.Moves[1].Description = "5 + 3 = 9"
	assert.NotEqual(t, mustChecksum(t, original), mustChecksum(t, moves))

	card := createTestSummary()
	card.Moves[1].Cards[1].Value = 4
	assert.NotEqual(t, mustChecksum(t, original), mustChecksum(t, card))

	reordered := createTestSummary()
	reordered.Moves[0], reordered.Moves[1] = reordered.Moves[1], reordered.Moves[0]
	assert.NotEqual(t, mustChecksum(t, original), mustChecksum(t, reordered))

	ok, err = score.VerifyChecksum(mustChecksum(t, original))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSerializeDeserialize(t *testing.T) {
	summary := createTestSummary()
	data, err := summary.SerializeToBytes()
	require.NoError(t, err)

	decoded, err := DeserializeSummary(data)
	require.NoError(t, err)
	assert.Equal(t, summary.ID, decoded.ID)
	assert.Equal(t, summary.Score, decoded.Score)
	require.Len(t, decoded.Moves, 4)
	assert.Nil(t, decoded.Moves[2].ResultValue)
	assert.Equal(t, float64(8), *decoded.Moves[1].ResultValue)
	assert.True(t, summary.Date.Equal(decoded.Date))

	_, err = DeserializeSummary([]byte("not gob"))
	assert.Error(t, err)
}

func TestValidateSerializationRoundtrip(t *testing.T) {
	assert.NoError(t, ValidateSerializationRoundtrip(createTestSummary()))
	assert.NoError(t, ValidateSerializationRoundtrip(Summary{}))
}

func mustChecksum(t *testing.T, s Summary) string {
	t.Helper()
	c, err := s.ComputeChecksum()
	require.NoError(t, err)
	return c.Hash
}
