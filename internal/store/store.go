package store

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/disciplinator/disciplinator/internal/crypto"
	"github.com/disciplinator/disciplinator/internal/state"
	"github.com/disciplinator/disciplinator/internal/state/statekey"
	"github.com/disciplinator/disciplinator/pkg/db"
	"github.com/disciplinator/disciplinator/pkg/db/pebble"
	"github.com/disciplinator/disciplinator/pkg/serialization"
)

// Store keeps the protocol records in a key-value store. Reads go straight to
// the underlying store, writes are staged in a Txn and land atomically.
type Store struct {
	db     db.KVStore
	ser    *serialization.Serializer
	closed atomic.Bool
}

// New creates an entity store on top of kv. The key-value store may be shared
// with other components, so closing the Store does not close kv.
func New(kv db.KVStore) (*Store, error) {
	ser, err := serialization.NewCanonical()
	if err != nil {
		return nil, err
	}
	return &Store{db: kv, ser: ser}, nil
}

func (s *Store) Config() (state.ProtocolConfig, error) {
	return get[state.ProtocolConfig](s, statekey.Config())
}

func (s *Store) RewardState() (state.RewardState, error) {
	return get[state.RewardState](s, statekey.RewardState())
}

func (s *Store) Challenge(k state.ChallengeKey) (state.Challenge, error) {
	return get[state.Challenge](s, statekey.Challenge(k))
}

// Sessions returns the sessions of a challenge in submission order.
func (s *Store) Sessions(k state.ChallengeKey) ([]state.Session, error) {
	start, end := statekey.SessionRange(k)
	return scan[state.Session](s, start, end)
}

// GracePeriods returns the grace period audit entries of a challenge in the
// order they were used.
func (s *Store) GracePeriods(k state.ChallengeKey) ([]state.GracePeriodRecord, error) {
	start, end := statekey.GracePeriodRange(k)
	return scan[state.GracePeriodRecord](s, start, end)
}

func (s *Store) Finalization(k state.ChallengeKey) (state.FinalizationRecord, error) {
	return get[state.FinalizationRecord](s, statekey.Finalization(k))
}

// FinalizationsInEpochs returns the finalization records filed under the
// epochs in [from, to], ordered by epoch.
func (s *Store) FinalizationsInEpochs(from, to uint64) ([]state.FinalizationRecord, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}
	if from > to {
		return nil, nil
	}

	start, end := statekey.EpochFinalizationRange(from, to)
	iter, err := s.db.NewIterator(start, end)
	if err != nil {
		return nil, fmt.Errorf("create iterator: %w", err)
	}
	defer iter.Close()

	var records []state.FinalizationRecord
	for iter.Next() {
		// The index entry's value is the challenge key.
		value, err := iter.Value()
		if err != nil {
			return nil, fmt.Errorf("read epoch index: %w", err)
		}
		var k state.ChallengeKey
		if len(value) != len(k) {
			return nil, fmt.Errorf("corrupt epoch index entry %x", iter.Key())
		}
		copy(k[:], value)

		record, err := s.Finalization(k)
		if err != nil {
			return nil, fmt.Errorf("resolve epoch index entry for %s: %w", k, err)
		}
		records = append(records, record)
	}
	return records, nil
}

// UserStats returns the stats of a participant. A participant that never
// created a challenge has none and ErrNotFound is returned.
func (s *Store) UserStats(user crypto.Identity) (state.UserStats, error) {
	return get[state.UserStats](s, statekey.UserStats(user))
}

func (s *Store) EpochSummary(epoch uint64) (state.EpochSummary, error) {
	return get[state.EpochSummary](s, statekey.EpochSummary(epoch))
}

func (s *Store) EpochScore(epoch uint64, participant crypto.Identity) (state.EpochScore, error) {
	return get[state.EpochScore](s, statekey.EpochScore(epoch, participant))
}

func (s *Store) EpochScores(epoch uint64) ([]state.EpochScore, error) {
	start, end := statekey.EpochScoreRange(epoch)
	return scan[state.EpochScore](s, start, end)
}

// Close marks the store closed. Further reads and transactions fail with
// ErrStoreClosed.
func (s *Store) Close() error {
	s.closed.Store(true)
	return nil
}

func get[T any](s *Store, key []byte) (T, error) {
	var v T
	if s.closed.Load() {
		return v, ErrStoreClosed
	}

	b, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return v, ErrNotFound
		}
		return v, fmt.Errorf("get record: %w", err)
	}
	if err := s.ser.Decode(b, &v); err != nil {
		return v, fmt.Errorf("decode %T: %w", v, err)
	}
	return v, nil
}

func scan[T any](s *Store, start, end []byte) ([]T, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}

	iter, err := s.db.NewIterator(start, end)
	if err != nil {
		return nil, fmt.Errorf("create iterator: %w", err)
	}
	defer iter.Close()

	var out []T
	for iter.Next() {
		b, err := iter.Value()
		if err != nil {
			return nil, fmt.Errorf("read iterator value: %w", err)
		}
		var v T
		if err := s.ser.Decode(b, &v); err != nil {
			return nil, fmt.Errorf("decode %T: %w", v, err)
		}
		out = append(out, v)
	}
	return out, nil
}
