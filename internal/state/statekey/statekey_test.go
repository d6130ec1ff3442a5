package statekey

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/disciplinator/disciplinator/internal/crypto"
)

func TestNewChallenge(t *testing.T) {
	alice := crypto.DeriveIdentity([]byte("alice"))
	bob := crypto.DeriveIdentity([]byte("bob"))

	tests := []struct {
		name        string
		a, b        Key
		expectEqual bool
	}{
		{"same participant and sequence", NewChallenge(alice, 7), NewChallenge(alice, 7), true},
		{"different sequence", NewChallenge(alice, 7), NewChallenge(alice, 8), false},
		{"different participant", NewChallenge(alice, 7), NewChallenge(bob, 7), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectEqual, tt.a == tt.b)
		})
	}
}

func TestParseKey(t *testing.T) {
	k := NewChallenge(crypto.DeriveIdentity([]byte("carol")), 0)

	parsed, err := ParseKey(k.String())
	require.NoError(t, err)
	assert.Equal(t, k, parsed)

	_, err = ParseKey("abcd")
	assert.Error(t, err)

	_, err = ParseKey("zz")
	assert.Error(t, err)
}

func TestSessionKeysAreOrderedWithinRange(t *testing.T) {
	k := NewChallenge(crypto.DeriveIdentity([]byte("dave")), 3)
	start, end := SessionRange(k)

	prev := start
	for i := uint32(0); i < 300; i++ {
		key := Session(k, i)
		assert.Equal(t, ChapterSession, key[0])
		assert.True(t, bytes.Compare(key, prev) >= 0, "session %d out of order", i)
		assert.True(t, bytes.Compare(key, end) < 0, "session %d outside range", i)
		prev = key
	}

	other := Session(NewChallenge(crypto.DeriveIdentity([]byte("erin")), 3), 0)
	inside := bytes.Compare(other, start) >= 0 && bytes.Compare(other, end) < 0
	assert.False(t, inside)
}

func TestEpochFinalizationRange(t *testing.T) {
	k := NewChallenge(crypto.DeriveIdentity([]byte("frank")), 1)

	start, end := EpochFinalizationRange(2, 4)
	for epoch, want := range map[uint64]bool{1: false, 2: true, 3: true, 4: true, 5: false} {
		key := EpochFinalization(epoch, k)
		inside := bytes.Compare(key, start) >= 0 && bytes.Compare(key, end) < 0
		assert.Equal(t, want, inside, "epoch %d", epoch)
	}

	_, end = EpochFinalizationRange(0, math.MaxUint64)
	assert.Equal(t, []byte{ChapterEpochFinalization + 1}, end)
}

func TestPrefixRange(t *testing.T) {
	start, end := prefixRange([]byte{0x01, 0xff, 0xff})
	assert.Equal(t, []byte{0x01, 0xff, 0xff}, start)
	assert.Equal(t, []byte{0x02}, end)

	_, end = prefixRange([]byte{0xff})
	assert.Nil(t, end)
}

func TestChaptersAreDistinct(t *testing.T) {
	k := NewChallenge(crypto.DeriveIdentity([]byte("gina")), 0)
	id := crypto.DeriveIdentity([]byte("gina"))

	keys := [][]byte{
		Config(), RewardState(), Challenge(k), Session(k, 0), GracePeriod(k, 0),
		Finalization(k), EpochFinalization(1, k), UserStats(id), EpochSummary(1), EpochScore(1, id),
	}
	seen := map[byte]bool{}
	for _, key := range keys {
		assert.False(t, seen[key[0]], "chapter %d reused", key[0])
		assert.Less(t, key[0], LedgerChapterBase)
		seen[key[0]] = true
	}
}
