package protocol

import (
	"context"
	"fmt"

	"github.com/disciplinator/disciplinator/internal/chaintime"
	"github.com/disciplinator/disciplinator/internal/crypto"
	"github.com/disciplinator/disciplinator/internal/events"
	"github.com/disciplinator/disciplinator/internal/safemath"
	"github.com/disciplinator/disciplinator/internal/settlement"
	"github.com/disciplinator/disciplinator/internal/state"
	"github.com/disciplinator/disciplinator/internal/state/statekey"
	"github.com/disciplinator/disciplinator/internal/stats"
	"github.com/disciplinator/disciplinator/internal/verifying"
)

const (
	MinSessions     = 1
	MaxSessions     = 365
	MinDurationDays = 7
	MaxDurationDays = 365

	MaxGracePeriods = 3
	// MaxReasonLength bounds a grace period reason, in bytes.
	MaxReasonLength = 256
)

type CreateParams struct {
	Deposit       uint64
	TotalSessions uint32
	DurationDays  uint32
	// Verifier may be nil, but no session can be marked without one.
	Verifier *crypto.Identity
	Type     state.ChallengeType
}

// CreateChallenge escrows the deposit and starts a challenge for participant.
func (s *Service) CreateChallenge(ctx context.Context, participant crypto.Identity, p CreateParams) (state.ChallengeKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.createChallenge(ctx, participant, p)
	if err != nil {
		return state.ChallengeKey{}, s.rejected("create challenge", err)
	}

	s.emit(ctx, events.ChallengeCreated{
		Challenge:            c.ID,
		Participant:          participant,
		Deposit:              c.DepositAmount,
		TotalSessions:        c.TotalSessions,
		DurationDays:         p.DurationDays,
		Type:                 c.Type.String(),
		Verifier:             c.Verifier,
		StartTime:            c.StartTime,
		EndTime:              c.EndTime,
		MinimumIntervalHours: c.MinimumIntervalHours,
	}, c.StartTime)
	s.log.Info().
		Stringer("challenge", c.ID).
		Stringer("participant", participant).
		Uint64("deposit", c.DepositAmount).
		Uint32("sessions", c.TotalSessions).
		Uint16("interval_hours", c.MinimumIntervalHours).
		Msg("challenge created")
	return c.ID, nil
}

func (s *Service) createChallenge(ctx context.Context, participant crypto.Identity, p CreateParams) (state.Challenge, error) {
	if err := ctx.Err(); err != nil {
		return state.Challenge{}, err
	}
	cfg, err := s.config()
	if err != nil {
		return state.Challenge{}, err
	}
	if cfg.Paused {
		return state.Challenge{}, ErrProtocolPaused
	}
	if p.Deposit < cfg.MinDeposit {
		return state.Challenge{}, fmt.Errorf("%w: %d < %d", ErrDepositTooSmall, p.Deposit, cfg.MinDeposit)
	}
	if p.Deposit > cfg.MaxDeposit {
		return state.Challenge{}, fmt.Errorf("%w: %d > %d", ErrDepositTooLarge, p.Deposit, cfg.MaxDeposit)
	}
	if p.TotalSessions < MinSessions || p.TotalSessions > MaxSessions {
		return state.Challenge{}, fmt.Errorf("%w: got %d", ErrInvalidSessionCount, p.TotalSessions)
	}
	if p.DurationDays < MinDurationDays || p.DurationDays > MaxDurationDays {
		return state.Challenge{}, fmt.Errorf("%w: got %d", ErrInvalidDuration, p.DurationDays)
	}
	if !p.Type.IsValid() {
		return state.Challenge{}, fmt.Errorf("%w: %s", ErrInvalidChallengeType, p.Type)
	}

	now := s.clock.Now()
	end, err := now.AddDays(p.DurationDays)
	if err != nil {
		return state.Challenge{}, err
	}

	seq := cfg.TotalChallenges
	if cfg.TotalChallenges, err = add(cfg.TotalChallenges, 1, "total challenges"); err != nil {
		return state.Challenge{}, err
	}
	if cfg.TotalVolume, err = add(cfg.TotalVolume, p.Deposit, "total volume"); err != nil {
		return state.Challenge{}, err
	}

	c := state.Challenge{
		ID:                   statekey.NewChallenge(participant, seq),
		Participant:          participant,
		DepositAmount:        p.Deposit,
		TotalSessions:        p.TotalSessions,
		StartTime:            now,
		EndTime:              end,
		Status:               state.StatusActive,
		Verifier:             p.Verifier,
		Type:                 p.Type,
		MinimumIntervalHours: verifying.MinimumIntervalHours(p.DurationDays, p.TotalSessions),
		MaxGracePeriods:      MaxGracePeriods,
		Sequence:             seq,
	}

	u, exists, err := s.userStats(participant)
	if err != nil {
		return state.Challenge{}, err
	}

	txn, err := s.store.Begin()
	if err != nil {
		return state.Challenge{}, err
	}
	defer txn.Discard()
	if err := txn.CreateChallenge(c); err != nil {
		return state.Challenge{}, err
	}
	if err := txn.PutConfig(cfg); err != nil {
		return state.Challenge{}, err
	}
	if !exists {
		if err := txn.PutUserStats(u); err != nil {
			return state.Challenge{}, err
		}
	}

	escrow := transfer{from: participant, to: cfg.Vault, amount: p.Deposit}
	if err := s.commit(ctx, txn, cfg.Asset, escrow); err != nil {
		return state.Challenge{}, err
	}
	return c, nil
}

// MarkSessionComplete records a verified session. signer must be the
// challenge's verifier.
func (s *Service) MarkSessionComplete(ctx context.Context, signer crypto.Identity, key state.ChallengeKey, proofRef string, meta state.SessionMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, session, err := s.markSession(ctx, signer, key, proofRef, meta)
	if err != nil {
		return s.rejected("mark session", err)
	}

	s.emit(ctx, events.SessionCompleted{
		Challenge:     key,
		SessionNumber: session.SessionNumber,
		Verifier:      signer,
		ProofRef:      proofRef,
		Timestamp:     session.Timestamp,
		Remaining:     c.SessionsRemaining(),
	}, session.Timestamp)
	s.log.Debug().
		Stringer("challenge", key).
		Uint32("session", session.SessionNumber).
		Uint32("total", c.TotalSessions).
		Msg("session completed")
	if c.SessionsRemaining() == 0 {
		s.log.Info().Stringer("challenge", key).Msg("all sessions completed, challenge ready to finalize")
	}
	return nil
}

func (s *Service) markSession(ctx context.Context, signer crypto.Identity, key state.ChallengeKey, proofRef string, meta state.SessionMetadata) (state.Challenge, state.Session, error) {
	if err := ctx.Err(); err != nil {
		return state.Challenge{}, state.Session{}, err
	}
	c, err := s.challenge(key)
	if err != nil {
		return state.Challenge{}, state.Session{}, err
	}

	sub := verifying.Submission{Signer: signer, ProofRef: proofRef, Metadata: meta, Now: s.clock.Now()}
	if err := verifying.ValidateSession(c, sub); err != nil {
		return state.Challenge{}, state.Session{}, err
	}
	c, session := verifying.Apply(c, sub)

	u, _, err := s.userStats(c.Participant)
	if err != nil {
		return state.Challenge{}, state.Session{}, err
	}
	if u, err = stats.ApplySession(u, sub.Now); err != nil {
		return state.Challenge{}, state.Session{}, err
	}

	txn, err := s.store.Begin()
	if err != nil {
		return state.Challenge{}, state.Session{}, err
	}
	defer txn.Discard()
	if err := txn.PutChallenge(c); err != nil {
		return state.Challenge{}, state.Session{}, err
	}
	if err := txn.CreateSession(session); err != nil {
		return state.Challenge{}, state.Session{}, err
	}
	if err := txn.PutUserStats(u); err != nil {
		return state.Challenge{}, state.Session{}, err
	}
	if err := txn.Commit(); err != nil {
		return state.Challenge{}, state.Session{}, err
	}
	return c, session, nil
}

// FinalizeChallenge settles a challenge once it has ended or every session is
// done. The refund goes to the participant and the fee to the treasury, the
// reward pool and charity portions stay in the vault.
func (s *Service) FinalizeChallenge(ctx context.Context, signer crypto.Identity, key state.ChallengeKey) (settlement.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, result, err := s.finalize(ctx, signer, key)
	if err != nil {
		return settlement.Result{}, s.rejected("finalize", err)
	}

	s.emit(ctx, events.ChallengeFinalized{
		Challenge:        key,
		Participant:      record.Participant,
		Outcome:          result.Outcome.String(),
		CompletionRateBP: result.CompletionRateBP,
		Refund:           result.Refund,
		Penalty:          result.Penalty,
		Fee:              result.Fee,
		RewardPool:       result.RewardPool,
		Charity:          result.Charity,
		Epoch:            record.Epoch,
	}, record.Timestamp)
	s.log.Info().
		Stringer("challenge", key).
		Stringer("outcome", result.Outcome).
		Uint16("completion_bp", result.CompletionRateBP).
		Uint64("refund", result.Refund).
		Uint64("penalty", result.Penalty).
		Uint64("epoch", record.Epoch).
		Msg("challenge finalized")
	return result, nil
}

func (s *Service) finalize(ctx context.Context, signer crypto.Identity, key state.ChallengeKey) (state.FinalizationRecord, settlement.Result, error) {
	if err := ctx.Err(); err != nil {
		return state.FinalizationRecord{}, settlement.Result{}, err
	}
	c, err := s.challenge(key)
	if err != nil {
		return state.FinalizationRecord{}, settlement.Result{}, err
	}
	if signer != c.Participant {
		return state.FinalizationRecord{}, settlement.Result{}, fmt.Errorf("%w: %s", ErrUnauthorizedParticipant, signer)
	}
	if c.Status != state.StatusActive {
		return state.FinalizationRecord{}, settlement.Result{}, fmt.Errorf("%w: status %s", state.ErrChallengeNotActive, c.Status)
	}
	now := s.clock.Now()
	if now.Before(c.EndTime) && c.CompletedSessions < c.TotalSessions {
		return state.FinalizationRecord{}, settlement.Result{}, fmt.Errorf("%w: %d of %d sessions, ends %s",
			ErrCannotFinalizeYet, c.CompletedSessions, c.TotalSessions, c.EndTime)
	}

	cfg, err := s.config()
	if err != nil {
		return state.FinalizationRecord{}, settlement.Result{}, err
	}
	rs, err := s.store.RewardState()
	if err != nil {
		return state.FinalizationRecord{}, settlement.Result{}, err
	}

	result, err := settlement.Settle(c.DepositAmount, c.CompletedSessions, c.TotalSessions, cfg.FeePct, cfg.RewardPct)
	if err != nil {
		return state.FinalizationRecord{}, settlement.Result{}, err
	}
	c.Status = result.Outcome

	u, _, err := s.userStats(c.Participant)
	if err != nil {
		return state.FinalizationRecord{}, settlement.Result{}, err
	}
	u, err = stats.ApplyFinalization(u, stats.Settlement{
		Outcome: result.Outcome,
		Deposit: c.DepositAmount,
		Refund:  result.Refund,
		Penalty: result.Penalty,
	})
	if err != nil {
		return state.FinalizationRecord{}, settlement.Result{}, err
	}
	epoch, err := rs.OpenEpoch()
	if err != nil {
		return state.FinalizationRecord{}, settlement.Result{}, err
	}
	record := result.Record(c, now, epoch)

	txn, err := s.store.Begin()
	if err != nil {
		return state.FinalizationRecord{}, settlement.Result{}, err
	}
	defer txn.Discard()
	if err := txn.PutChallenge(c); err != nil {
		return state.FinalizationRecord{}, settlement.Result{}, err
	}
	if err := txn.PutUserStats(u); err != nil {
		return state.FinalizationRecord{}, settlement.Result{}, err
	}
	if err := txn.CreateFinalization(record); err != nil {
		return state.FinalizationRecord{}, settlement.Result{}, err
	}

	if err := s.requireBalance(ctx, cfg.Vault, result.Outflow()); err != nil {
		return state.FinalizationRecord{}, settlement.Result{}, err
	}
	var legs []transfer
	for _, leg := range result.Legs(c.Participant, cfg.Treasury) {
		legs = append(legs, transfer{from: cfg.Vault, to: leg.To, amount: leg.Amount})
	}
	if err := s.commit(ctx, txn, cfg.Asset, legs...); err != nil {
		return state.FinalizationRecord{}, settlement.Result{}, err
	}
	return record, result, nil
}

// UseGracePeriod extends the challenge deadline by three days. A challenge
// gets at most MaxGracePeriods extensions over its lifetime.
func (s *Service) UseGracePeriod(ctx context.Context, signer crypto.Identity, key state.ChallengeKey, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, record, err := s.useGracePeriod(ctx, signer, key, reason)
	if err != nil {
		return s.rejected("use grace period", err)
	}

	remaining := c.MaxGracePeriods - c.GracePeriodsUsed
	s.emit(ctx, events.GracePeriodUsed{
		Challenge:  key,
		Reason:     reason,
		NewEndTime: c.EndTime,
		Remaining:  remaining,
	}, record.UsedAt)
	s.log.Info().
		Stringer("challenge", key).
		Stringer("new_end_time", c.EndTime).
		Uint8("remaining", remaining).
		Msg("grace period used")
	return nil
}

func (s *Service) useGracePeriod(ctx context.Context, signer crypto.Identity, key state.ChallengeKey, reason string) (state.Challenge, state.GracePeriodRecord, error) {
	if err := ctx.Err(); err != nil {
		return state.Challenge{}, state.GracePeriodRecord{}, err
	}
	c, err := s.challenge(key)
	if err != nil {
		return state.Challenge{}, state.GracePeriodRecord{}, err
	}
	if signer != c.Participant {
		return state.Challenge{}, state.GracePeriodRecord{}, fmt.Errorf("%w: %s", ErrUnauthorizedParticipant, signer)
	}
	if c.Status != state.StatusActive {
		return state.Challenge{}, state.GracePeriodRecord{}, fmt.Errorf("%w: status %s", state.ErrChallengeNotActive, c.Status)
	}
	if c.GracePeriodsUsed >= c.MaxGracePeriods {
		return state.Challenge{}, state.GracePeriodRecord{}, fmt.Errorf("%w: used %d", ErrNoGracePeriodsLeft, c.GracePeriodsUsed)
	}
	now := s.clock.Now()
	if !now.Before(c.EndTime) {
		return state.Challenge{}, state.GracePeriodRecord{}, fmt.Errorf("%w: ended at %s", state.ErrChallengeExpired, c.EndTime)
	}
	if len(reason) > MaxReasonLength {
		return state.Challenge{}, state.GracePeriodRecord{}, fmt.Errorf("%w: %d bytes", ErrReasonTooLong, len(reason))
	}

	end, err := c.EndTime.Add(chaintime.GracePeriodExtension)
	if err != nil {
		return state.Challenge{}, state.GracePeriodRecord{}, err
	}
	record := state.GracePeriodRecord{
		Challenge:  key,
		Index:      c.GracePeriodsUsed,
		UsedAt:     now,
		Reason:     reason,
		NewEndTime: end,
	}
	c.EndTime = end
	c.GracePeriodsUsed++

	txn, err := s.store.Begin()
	if err != nil {
		return state.Challenge{}, state.GracePeriodRecord{}, err
	}
	defer txn.Discard()
	if err := txn.PutChallenge(c); err != nil {
		return state.Challenge{}, state.GracePeriodRecord{}, err
	}
	if err := txn.CreateGracePeriod(record); err != nil {
		return state.Challenge{}, state.GracePeriodRecord{}, err
	}
	if err := txn.Commit(); err != nil {
		return state.Challenge{}, state.GracePeriodRecord{}, err
	}
	return c, record, nil
}

func add(a, b uint64, field string) (uint64, error) {
	c, ok := safemath.Add(a, b)
	if !ok {
		return 0, fmt.Errorf("%w: %s", safemath.ErrOverflow, field)
	}
	return c, nil
}
