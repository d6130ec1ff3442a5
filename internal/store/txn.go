package store

import (
	"fmt"

	"github.com/disciplinator/disciplinator/internal/state"
	"github.com/disciplinator/disciplinator/internal/state/statekey"
	"github.com/disciplinator/disciplinator/pkg/db"
	"github.com/disciplinator/disciplinator/pkg/log"
)

// Txn stages record writes in a single batch. Nothing is visible to readers
// until Commit, and a discarded Txn leaves the store untouched.
type Txn struct {
	s      *Store
	batch  db.Batch
	staged map[string]struct{}
	done   bool
}

// Begin starts a write transaction.
func (s *Store) Begin() (*Txn, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}
	return &Txn{
		s:      s,
		batch:  s.db.NewBatch(),
		staged: make(map[string]struct{}),
	}, nil
}

func (t *Txn) CreateConfig(c state.ProtocolConfig) error {
	return t.create(statekey.Config(), c)
}

func (t *Txn) PutConfig(c state.ProtocolConfig) error {
	return t.put(statekey.Config(), c)
}

func (t *Txn) CreateRewardState(r state.RewardState) error {
	return t.create(statekey.RewardState(), r)
}

func (t *Txn) PutRewardState(r state.RewardState) error {
	return t.put(statekey.RewardState(), r)
}

func (t *Txn) CreateChallenge(c state.Challenge) error {
	return t.create(statekey.Challenge(c.ID), c)
}

func (t *Txn) PutChallenge(c state.Challenge) error {
	return t.put(statekey.Challenge(c.ID), c)
}

// CreateSession stores a session under its zero-based index, so the n-th
// session of a challenge can only ever be written once.
func (t *Txn) CreateSession(s state.Session) error {
	if s.SessionNumber == 0 {
		return fmt.Errorf("session numbers start at 1")
	}
	return t.create(statekey.Session(s.Challenge, s.SessionNumber-1), s)
}

func (t *Txn) CreateGracePeriod(r state.GracePeriodRecord) error {
	return t.create(statekey.GracePeriod(r.Challenge, r.Index), r)
}

// CreateFinalization stores the record and files it in the epoch index.
func (t *Txn) CreateFinalization(r state.FinalizationRecord) error {
	if err := t.create(statekey.Finalization(r.Challenge), r); err != nil {
		return err
	}
	return t.createRaw(statekey.EpochFinalization(r.Epoch, r.Challenge), r.Challenge[:])
}

// PutFinalization overwrites an existing record. The epoch index is left
// alone: a record never changes epoch.
func (t *Txn) PutFinalization(r state.FinalizationRecord) error {
	return t.put(statekey.Finalization(r.Challenge), r)
}

func (t *Txn) PutUserStats(u state.UserStats) error {
	return t.put(statekey.UserStats(u.User), u)
}

func (t *Txn) CreateEpochSummary(e state.EpochSummary) error {
	return t.create(statekey.EpochSummary(e.Epoch), e)
}

func (t *Txn) CreateEpochScore(e state.EpochScore) error {
	return t.create(statekey.EpochScore(e.Epoch, e.Participant), e)
}

// Commit applies every staged write atomically.
func (t *Txn) Commit() error {
	if t.done {
		return ErrTxnDone
	}
	t.done = true
	defer t.batch.Close()

	if t.s.closed.Load() {
		return ErrStoreClosed
	}
	if err := t.batch.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	log.Store.Debug().Int("records", len(t.staged)).Msg("committed transaction")
	return nil
}

// Discard drops every staged write. It is safe to call after Commit.
func (t *Txn) Discard() {
	if t.done {
		return
	}
	t.done = true
	t.batch.Close()
}

func (t *Txn) create(key []byte, v any) error {
	b, err := t.s.ser.Encode(v)
	if err != nil {
		return fmt.Errorf("encode %T: %w", v, err)
	}
	return t.createRaw(key, b)
}

func (t *Txn) createRaw(key, value []byte) error {
	if t.done {
		return ErrTxnDone
	}
	if _, ok := t.staged[string(key)]; ok {
		return fmt.Errorf("%w: %x", ErrAlreadyExists, key)
	}
	exists, err := t.s.db.Has(key)
	if err != nil {
		return fmt.Errorf("check key: %w", err)
	}
	if exists {
		return fmt.Errorf("%w: %x", ErrAlreadyExists, key)
	}
	return t.stage(key, value)
}

func (t *Txn) put(key []byte, v any) error {
	if t.done {
		return ErrTxnDone
	}
	b, err := t.s.ser.Encode(v)
	if err != nil {
		return fmt.Errorf("encode %T: %w", v, err)
	}
	return t.stage(key, b)
}

func (t *Txn) stage(key, value []byte) error {
	if err := t.batch.Put(key, value); err != nil {
		return fmt.Errorf("stage write: %w", err)
	}
	t.staged[string(key)] = struct{}{}
	return nil
}
