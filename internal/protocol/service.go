// Package protocol runs the commitment-staking protocol: challenge lifecycle,
// settlement and reward epochs on top of an entity store and a value ledger.
//
// Every operation reads the records it needs, computes the new values in
// memory, stages the writes in one store transaction and only then moves
// value. A failed transfer or commit undoes the transfers already made, so an
// operation either fully applies or leaves no trace.
package protocol

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/disciplinator/disciplinator/internal/chaintime"
	"github.com/disciplinator/disciplinator/internal/crypto"
	"github.com/disciplinator/disciplinator/internal/events"
	"github.com/disciplinator/disciplinator/internal/ledger"
	"github.com/disciplinator/disciplinator/internal/state"
	"github.com/disciplinator/disciplinator/internal/stats"
	"github.com/disciplinator/disciplinator/internal/store"
	"github.com/disciplinator/disciplinator/pkg/log"
)

// Custodial accounts owned by the protocol.
var (
	VaultIdentity        = crypto.DeriveIdentity([]byte("vault"))
	RewardsVaultIdentity = crypto.DeriveIdentity([]byte("vault_rewards"))
	ReserveVaultIdentity = crypto.DeriveIdentity([]byte("vault_reserve"))
)

// Ledger is the value transfer capability the Service needs.
type Ledger interface {
	ledger.Ledger
	OpenAccount(ctx context.Context, owner, asset crypto.Identity) error
}

// Service exposes the protocol operations. Operations are serialized.
type Service struct {
	mu     sync.Mutex
	store  *store.Store
	ledger Ledger
	clock  chaintime.Clock
	sink   events.Sink
	log    zerolog.Logger
}

// New creates a Service. A nil sink discards events.
func New(st *store.Store, l Ledger, clock chaintime.Clock, sink events.Sink) *Service {
	if sink == nil {
		sink = events.Discard{}
	}
	return &Service{
		store:  st,
		ledger: l,
		clock:  clock,
		sink:   sink,
		log:    log.Protocol,
	}
}

func (s *Service) Config(ctx context.Context) (state.ProtocolConfig, error) {
	if err := ctx.Err(); err != nil {
		return state.ProtocolConfig{}, err
	}
	return s.config()
}

func (s *Service) RewardState(ctx context.Context) (state.RewardState, error) {
	if err := ctx.Err(); err != nil {
		return state.RewardState{}, err
	}
	return s.store.RewardState()
}

func (s *Service) Challenge(ctx context.Context, key state.ChallengeKey) (state.Challenge, error) {
	if err := ctx.Err(); err != nil {
		return state.Challenge{}, err
	}
	return s.challenge(key)
}

func (s *Service) Sessions(ctx context.Context, key state.ChallengeKey) ([]state.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.store.Sessions(key)
}

func (s *Service) GracePeriods(ctx context.Context, key state.ChallengeKey) ([]state.GracePeriodRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.store.GracePeriods(key)
}

func (s *Service) Finalization(ctx context.Context, key state.ChallengeKey) (state.FinalizationRecord, error) {
	if err := ctx.Err(); err != nil {
		return state.FinalizationRecord{}, err
	}
	return s.store.Finalization(key)
}

func (s *Service) UserStats(ctx context.Context, user crypto.Identity) (state.UserStats, error) {
	if err := ctx.Err(); err != nil {
		return state.UserStats{}, err
	}
	return s.store.UserStats(user)
}

func (s *Service) EpochSummary(ctx context.Context, epoch uint64) (state.EpochSummary, error) {
	if err := ctx.Err(); err != nil {
		return state.EpochSummary{}, err
	}
	return s.store.EpochSummary(epoch)
}

func (s *Service) config() (state.ProtocolConfig, error) {
	cfg, err := s.store.Config()
	if errors.Is(err, store.ErrNotFound) {
		return cfg, ErrNotInitialized
	}
	return cfg, err
}

func (s *Service) challenge(key state.ChallengeKey) (state.Challenge, error) {
	c, err := s.store.Challenge(key)
	if errors.Is(err, store.ErrNotFound) {
		return c, fmt.Errorf("%w: %s", ErrChallengeNotFound, key)
	}
	return c, err
}

// userStats returns the participant's stats, or fresh ones if there are none.
func (s *Service) userStats(user crypto.Identity) (state.UserStats, bool, error) {
	u, err := s.store.UserStats(user)
	if errors.Is(err, store.ErrNotFound) {
		return stats.New(user), false, nil
	}
	return u, err == nil, err
}

// transfer is one leg of value movement made by an operation.
type transfer struct {
	from, to crypto.Identity
	amount   uint64
}

// commit applies the transfers in order and then commits txn. If a transfer
// or the commit fails, the transfers already applied are reversed.
func (s *Service) commit(ctx context.Context, txn *store.Txn, asset crypto.Identity, transfers ...transfer) error {
	var applied []transfer
	for _, t := range transfers {
		if t.amount == 0 {
			continue
		}
		if err := s.ledger.Transfer(ctx, t.from, t.to, t.amount, asset); err != nil {
			s.revert(ctx, asset, applied)
			return fmt.Errorf("transfer %d from %s to %s: %w", t.amount, t.from, t.to, err)
		}
		applied = append(applied, t)
	}
	if err := txn.Commit(); err != nil {
		s.revert(ctx, asset, applied)
		return err
	}
	return nil
}

func (s *Service) revert(ctx context.Context, asset crypto.Identity, applied []transfer) {
	ctx = context.WithoutCancel(ctx)
	for i := len(applied) - 1; i >= 0; i-- {
		t := applied[i]
		if err := s.ledger.Transfer(ctx, t.to, t.from, t.amount, asset); err != nil {
			s.log.Error().Err(err).
				Stringer("from", t.to).
				Stringer("to", t.from).
				Uint64("amount", t.amount).
				Msg("failed to reverse transfer")
		}
	}
}

// requireBalance fails closed when owner cannot cover amount.
func (s *Service) requireBalance(ctx context.Context, owner crypto.Identity, amount uint64) error {
	balance, err := s.ledger.Balance(ctx, owner)
	if err != nil {
		return fmt.Errorf("balance of %s: %w", owner, err)
	}
	if balance < amount {
		return fmt.Errorf("%w: %s holds %d, needs %d", ledger.ErrInsufficientFunds, owner, balance, amount)
	}
	return nil
}

func (s *Service) emit(ctx context.Context, e events.Event, at chaintime.Timestamp) {
	env := events.NewEnvelope(e, at)
	if err := s.sink.Emit(context.WithoutCancel(ctx), env); err != nil {
		s.log.Warn().Err(err).Str("kind", e.Kind()).Str("event_id", env.ID.String()).Msg("event sink failed")
	}
}

func (s *Service) rejected(op string, err error) error {
	s.log.Debug().Err(err).Str("op", op).Stringer("kind", Classify(err)).Msg("rejected")
	return err
}
