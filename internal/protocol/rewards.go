package protocol

import (
	"context"
	"errors"
	"fmt"

	"github.com/disciplinator/disciplinator/internal/crypto"
	"github.com/disciplinator/disciplinator/internal/events"
	"github.com/disciplinator/disciplinator/internal/ledger"
	"github.com/disciplinator/disciplinator/internal/rewards"
	"github.com/disciplinator/disciplinator/internal/state"
	"github.com/disciplinator/disciplinator/internal/stats"
	"github.com/disciplinator/disciplinator/internal/store"
)

// DistributeRewards releases every epoch up to and including epoch. The
// reward pool contributions of the finalizations filed under those epochs
// move to the rewards vault and the eligible participants' scores are
// snapshotted for claims.
func (s *Service) DistributeRewards(ctx context.Context, signer crypto.Identity, epoch uint64) (rewards.Distribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.distribute(ctx, signer, epoch)
	if err != nil {
		return rewards.Distribution{}, s.rejected("distribute rewards", err)
	}

	s.emit(ctx, events.RewardsDistributed{
		Epoch:         d.Epoch,
		Available:     d.Available,
		Swept:         d.Swept,
		Pool:          d.Pool,
		TotalScore:    d.TotalScore,
		Participants:  uint32(len(d.Scores)),
		NextEpochTime: d.NextEpochTime,
	}, s.clock.Now())
	s.log.Info().
		Uint64("epoch", d.Epoch).
		Uint64("available", d.Available).
		Uint64("swept", d.Swept).
		Uint64("pool", d.Pool).
		Uint64("total_score", d.TotalScore).
		Int("participants", len(d.Scores)).
		Msg("rewards distributed")
	return d, nil
}

func (s *Service) distribute(ctx context.Context, signer crypto.Identity, epoch uint64) (rewards.Distribution, error) {
	if err := ctx.Err(); err != nil {
		return rewards.Distribution{}, err
	}
	cfg, err := s.config()
	if err != nil {
		return rewards.Distribution{}, err
	}
	if signer != cfg.Authority {
		return rewards.Distribution{}, fmt.Errorf("%w: %s", ErrUnauthorizedAuthority, signer)
	}
	rs, err := s.store.RewardState()
	if err != nil {
		return rewards.Distribution{}, err
	}
	now := s.clock.Now()
	if err := rewards.CheckDistribution(rs, epoch, now); err != nil {
		return rewards.Distribution{}, err
	}

	vault, err := s.ledger.Balance(ctx, cfg.Vault)
	if err != nil {
		return rewards.Distribution{}, err
	}
	reserve, err := s.ledger.Balance(ctx, cfg.ReserveVault)
	if err != nil {
		return rewards.Distribution{}, err
	}
	pool, err := s.ledger.Balance(ctx, cfg.RewardsVault)
	if err != nil {
		return rewards.Distribution{}, err
	}

	open, err := rs.OpenEpoch()
	if err != nil {
		return rewards.Distribution{}, err
	}
	records, err := s.store.FinalizationsInEpochs(open, epoch)
	if err != nil {
		return rewards.Distribution{}, err
	}
	swept, flagged, err := rewards.Sweep(records)
	if err != nil {
		return rewards.Distribution{}, err
	}
	if swept > vault {
		return rewards.Distribution{}, fmt.Errorf("%w: vault holds %d, sweep needs %d", ledger.ErrInsufficientFunds, vault, swept)
	}
	if pool, err = add(pool, swept, "reward pool"); err != nil {
		return rewards.Distribution{}, err
	}

	var participants []state.UserStats
	for _, id := range rewards.Participants(flagged) {
		u, err := s.store.UserStats(id)
		if err != nil {
			return rewards.Distribution{}, fmt.Errorf("stats of %s: %w", id, err)
		}
		participants = append(participants, u)
	}
	scores, total, err := rewards.Scores(epoch, participants)
	if err != nil {
		return rewards.Distribution{}, err
	}

	available := rewards.Available(vault, reserve)
	next, err := rewards.Advance(rs, epoch, now, available)
	if err != nil {
		return rewards.Distribution{}, err
	}

	d := rewards.Distribution{
		Epoch:         epoch,
		Available:     available,
		Swept:         swept,
		Pool:          pool,
		TotalScore:    total,
		Scores:        scores,
		Finalizations: flagged,
		NextEpochTime: next.NextEpochTime,
	}

	txn, err := s.store.Begin()
	if err != nil {
		return rewards.Distribution{}, err
	}
	defer txn.Discard()
	for _, r := range flagged {
		if err := txn.PutFinalization(r); err != nil {
			return rewards.Distribution{}, err
		}
	}
	for _, score := range scores {
		if err := txn.CreateEpochScore(score); err != nil {
			return rewards.Distribution{}, err
		}
	}
	if err := txn.CreateEpochSummary(d.Summary(now)); err != nil {
		return rewards.Distribution{}, err
	}
	if err := txn.PutRewardState(next); err != nil {
		return rewards.Distribution{}, err
	}

	sweep := transfer{from: cfg.Vault, to: cfg.RewardsVault, amount: swept}
	if err := s.commit(ctx, txn, cfg.Asset, sweep); err != nil {
		return rewards.Distribution{}, err
	}
	return d, nil
}

// ClaimRewards pays participant its share of the last processed epoch's pool.
// A participant may claim once per epoch and the amount may be zero.
func (s *Service) ClaimRewards(ctx context.Context, participant crypto.Identity) (rewards.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	claim, err := s.claim(ctx, participant)
	if err != nil {
		return rewards.Claim{}, s.rejected("claim rewards", err)
	}

	s.emit(ctx, events.RewardsClaimed{
		Participant:      participant,
		Epoch:            claim.Epoch,
		Amount:           claim.Amount,
		PerformanceScore: claim.PerformanceScore,
	}, s.clock.Now())
	s.log.Info().
		Stringer("participant", participant).
		Uint64("epoch", claim.Epoch).
		Uint64("amount", claim.Amount).
		Uint64("score", claim.PerformanceScore).
		Msg("rewards claimed")
	return claim, nil
}

func (s *Service) claim(ctx context.Context, participant crypto.Identity) (rewards.Claim, error) {
	if err := ctx.Err(); err != nil {
		return rewards.Claim{}, err
	}
	cfg, err := s.config()
	if err != nil {
		return rewards.Claim{}, err
	}
	rs, err := s.store.RewardState()
	if err != nil {
		return rewards.Claim{}, err
	}
	u, err := s.store.UserStats(participant)
	if errors.Is(err, store.ErrNotFound) {
		return rewards.Claim{}, fmt.Errorf("%w: no history", rewards.ErrNotEligibleForRewards)
	}
	if err != nil {
		return rewards.Claim{}, err
	}
	if err := rewards.CheckClaim(u, rs); err != nil {
		return rewards.Claim{}, err
	}

	epoch := rs.LastEpochProcessed
	var snapshot, total, pool uint64
	score, err := s.store.EpochScore(epoch, participant)
	switch {
	case err == nil:
		snapshot = score.Score
	case !errors.Is(err, store.ErrNotFound):
		return rewards.Claim{}, err
	}
	summary, err := s.store.EpochSummary(epoch)
	switch {
	case err == nil:
		total, pool = summary.TotalScore, summary.Pool
	case !errors.Is(err, store.ErrNotFound):
		return rewards.Claim{}, err
	}

	amount := rewards.ClaimAmount(pool, snapshot, total)
	balance, err := s.ledger.Balance(ctx, cfg.RewardsVault)
	if err != nil {
		return rewards.Claim{}, err
	}
	if amount > balance {
		return rewards.Claim{}, fmt.Errorf("%w: vault holds %d, claim is %d", rewards.ErrInsufficientRewards, balance, amount)
	}

	updated, err := stats.ApplyClaim(u, amount, epoch)
	if err != nil {
		return rewards.Claim{}, err
	}

	txn, err := s.store.Begin()
	if err != nil {
		return rewards.Claim{}, err
	}
	defer txn.Discard()
	if err := txn.PutUserStats(updated); err != nil {
		return rewards.Claim{}, err
	}
	payout := transfer{from: cfg.RewardsVault, to: participant, amount: amount}
	if err := s.commit(ctx, txn, cfg.Asset, payout); err != nil {
		return rewards.Claim{}, err
	}

	return rewards.Claim{
		Participant:      participant,
		Epoch:            epoch,
		Amount:           amount,
		EpochScore:       snapshot,
		PerformanceScore: stats.PerformanceScore(u),
	}, nil
}
