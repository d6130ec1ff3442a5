package statekey

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"

	"github.com/disciplinator/disciplinator/internal/crypto"
)

// Chapters are the first byte of every storage key and keep each record kind
// in its own contiguous key range.
const (
	ChapterConfig uint8 = iota + 1
	ChapterRewardState
	ChapterChallenge
	ChapterSession
	ChapterGracePeriod
	ChapterFinalization
	ChapterEpochFinalization
	ChapterUserStats
	ChapterEpochSummary
	ChapterEpochScore
)

// LedgerChapterBase is the first chapter reserved for the value ledger when it
// shares a key-value store with the protocol records.
const LedgerChapterBase uint8 = 0x80

// Key identifies a challenge. It is derived from the participant and the
// protocol-wide challenge sequence number, so the same pair always maps to the
// same record and a second creation is detectable.
type Key [crypto.HashSize]byte

// NewChallenge derives the key of the challenge created by participant as the
// seq-th challenge of the protocol.
func NewChallenge(participant crypto.Identity, seq uint64) Key {
	var s [8]byte
	binary.LittleEndian.PutUint64(s[:], seq)
	return Key(crypto.HashData([]byte("challenge"), participant[:], s[:]))
}

// ParseKey decodes the hex form of a Key.
func ParseKey(s string) (Key, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Key{}, fmt.Errorf("parse challenge key: %w", err)
	}
	if len(b) != len(Key{}) {
		return Key{}, fmt.Errorf("parse challenge key: want %d bytes, got %d", len(Key{}), len(b))
	}
	return Key(b), nil
}

func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// MarshalText implements encoding.TextMarshaler.
func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Key) UnmarshalText(text []byte) error {
	parsed, err := ParseKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

func Config() []byte {
	return []byte{ChapterConfig}
}

func RewardState() []byte {
	return []byte{ChapterRewardState}
}

func Challenge(k Key) []byte {
	return compose(ChapterChallenge, k[:])
}

// Session is the key of the session stored at the given zero-based index,
// which equals the challenge's completed session count before the increment.
// Indexes are big-endian so sessions iterate in submission order.
func Session(k Key, index uint32) []byte {
	return compose(ChapterSession, k[:], be32(index))
}

func SessionRange(k Key) (start, end []byte) {
	return prefixRange(compose(ChapterSession, k[:]))
}

// GracePeriod is the key of the audit record for the index-th grace period
// (zero-based) used by a challenge.
func GracePeriod(k Key, index uint8) []byte {
	return compose(ChapterGracePeriod, k[:], []byte{index})
}

func GracePeriodRange(k Key) (start, end []byte) {
	return prefixRange(compose(ChapterGracePeriod, k[:]))
}

func Finalization(k Key) []byte {
	return compose(ChapterFinalization, k[:])
}

// EpochFinalization is the secondary index entry that files a challenge's
// finalization under the reward epoch it was finalized in.
func EpochFinalization(epoch uint64, k Key) []byte {
	return compose(ChapterEpochFinalization, be64(epoch), k[:])
}

// EpochFinalizationRange covers every index entry of the epochs in [from, to].
func EpochFinalizationRange(from, to uint64) (start, end []byte) {
	start = compose(ChapterEpochFinalization, be64(from))
	if to == math.MaxUint64 {
		return start, []byte{ChapterEpochFinalization + 1}
	}
	return start, compose(ChapterEpochFinalization, be64(to+1))
}

func UserStats(user crypto.Identity) []byte {
	return compose(ChapterUserStats, user[:])
}

func EpochSummary(epoch uint64) []byte {
	return compose(ChapterEpochSummary, be64(epoch))
}

func EpochScore(epoch uint64, participant crypto.Identity) []byte {
	return compose(ChapterEpochScore, be64(epoch), participant[:])
}

func EpochScoreRange(epoch uint64) (start, end []byte) {
	return prefixRange(compose(ChapterEpochScore, be64(epoch)))
}

func compose(chapter uint8, parts ...[]byte) []byte {
	n := 1
	for _, p := range parts {
		n += len(p)
	}
	key := make([]byte, 0, n)
	key = append(key, chapter)
	for _, p := range parts {
		key = append(key, p...)
	}
	return key
}

// prefixRange returns the half-open range of keys starting with prefix.
func prefixRange(prefix []byte) (start, end []byte) {
	end = make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return prefix, end[:i+1]
		}
	}
	return prefix, nil
}

func be32(v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return b[:]
}

func be64(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}
