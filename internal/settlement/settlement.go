package settlement

import (
	"fmt"

	"github.com/disciplinator/disciplinator/internal/chaintime"
	"github.com/disciplinator/disciplinator/internal/crypto"
	"github.com/disciplinator/disciplinator/internal/safemath"
	"github.com/disciplinator/disciplinator/internal/state"
)

const (
	// BasisPoints is a 100% completion rate.
	BasisPoints = 10000
	// PartialThresholdBP is the lowest completion rate that still counts as
	// a partial completion.
	PartialThresholdBP = 8000
)

// Result is the settlement of one challenge. Refund and Penalty always add up
// to the deposit, and Fee, RewardPool and Charity always add up to Penalty.
type Result struct {
	Refund           uint64
	Penalty          uint64
	Fee              uint64
	RewardPool       uint64
	Charity          uint64
	CompletionRateBP uint16
	Outcome          state.ChallengeStatus
}

// ValidateSplit checks the protocol's penalty split.
func ValidateSplit(feePct, rewardPct, charityPct uint8) error {
	if uint16(feePct)+uint16(rewardPct)+uint16(charityPct) != 100 {
		return fmt.Errorf("%w: %d+%d+%d", ErrInvalidPercentageDistribution, feePct, rewardPct, charityPct)
	}
	return nil
}

// Settle computes the refund and the split of the penalty. Every division
// truncates and every multiplication is checked, an overflow fails with
// safemath.ErrOverflow. Charity takes the rounding remainder.
func Settle(deposit uint64, completed, total uint32, feePct, rewardPct uint8) (Result, error) {
	if total == 0 || completed > total {
		return Result{}, fmt.Errorf("%w: %d of %d", ErrInvalidSessionCount, completed, total)
	}
	if uint16(feePct)+uint16(rewardPct) > 100 {
		return Result{}, fmt.Errorf("%w: fee %d reward %d", ErrInvalidPercentageDistribution, feePct, rewardPct)
	}

	scaled, ok := safemath.Mul(deposit, uint64(completed))
	if !ok {
		return Result{}, fmt.Errorf("%w: refund of %d for %d sessions", safemath.ErrOverflow, deposit, completed)
	}
	refund := scaled / uint64(total)
	penalty := deposit - refund

	rate := uint64(completed) * BasisPoints / uint64(total)

	feeScaled, ok := safemath.Mul(penalty, uint64(feePct))
	if !ok {
		return Result{}, fmt.Errorf("%w: fee on penalty %d", safemath.ErrOverflow, penalty)
	}
	rewardScaled, ok := safemath.Mul(penalty, uint64(rewardPct))
	if !ok {
		return Result{}, fmt.Errorf("%w: reward pool on penalty %d", safemath.ErrOverflow, penalty)
	}
	fee := feeScaled / 100
	reward := rewardScaled / 100

	return Result{
		Refund:           refund,
		Penalty:          penalty,
		Fee:              fee,
		RewardPool:       reward,
		Charity:          penalty - fee - reward,
		CompletionRateBP: uint16(rate),
		Outcome:          OutcomeFor(uint16(rate)),
	}, nil
}

// OutcomeFor maps a completion rate to the final challenge status.
func OutcomeFor(rateBP uint16) state.ChallengeStatus {
	switch {
	case rateBP >= BasisPoints:
		return state.StatusCompleted
	case rateBP >= PartialThresholdBP:
		return state.StatusPartiallyCompleted
	default:
		return state.StatusFailed
	}
}

// Leg is one transfer out of the vault.
type Leg struct {
	To     crypto.Identity
	Amount uint64
}

// Legs returns the transfers finalization makes immediately: the refund to the
// participant and the fee to the treasury. Zero amounts are skipped. The
// reward pool and charity portions stay in the vault.
func (r Result) Legs(participant, treasury crypto.Identity) []Leg {
	var legs []Leg
	if r.Refund > 0 {
		legs = append(legs, Leg{To: participant, Amount: r.Refund})
	}
	if r.Fee > 0 {
		legs = append(legs, Leg{To: treasury, Amount: r.Fee})
	}
	return legs
}

// Outflow is the total the legs take from the vault.
func (r Result) Outflow() uint64 {
	return r.Refund + r.Fee
}

// Record builds the finalization record for challenge c filed under epoch.
func (r Result) Record(c state.Challenge, now chaintime.Timestamp, epoch uint64) state.FinalizationRecord {
	return state.FinalizationRecord{
		Challenge:              c.ID,
		Participant:            c.Participant,
		Outcome:                r.Outcome,
		CompletionRateBP:       r.CompletionRateBP,
		Refund:                 r.Refund,
		PenaltyAmount:          r.Penalty,
		FeeAmount:              r.Fee,
		RewardPoolContribution: r.RewardPool,
		CharityAmount:          r.Charity,
		Timestamp:              now,
		Epoch:                  epoch,
	}
}
