package rewards

import (
	"fmt"

	"github.com/disciplinator/disciplinator/internal/chaintime"
	"github.com/disciplinator/disciplinator/internal/crypto"
	"github.com/disciplinator/disciplinator/internal/safemath"
	"github.com/disciplinator/disciplinator/internal/state"
	"github.com/disciplinator/disciplinator/internal/stats"
)

// EpochLength is the distribution cadence.
const EpochLength = chaintime.Week

// Distribution is the outcome of releasing one epoch.
type Distribution struct {
	Epoch uint64
	// Available is the vault balance above the reserve when the epoch was
	// released.
	Available uint64
	// Swept is what moved from the vault into the rewards vault: the reward
	// pool contributions of the epoch's finalizations.
	Swept uint64
	// Pool is the rewards vault balance after the sweep, the amount claims
	// against this epoch are proportioned from.
	Pool          uint64
	TotalScore    uint64
	Scores        []state.EpochScore
	Finalizations []state.FinalizationRecord
	NextEpochTime chaintime.Timestamp
}

// Summary returns the persisted form of d.
func (d Distribution) Summary(now chaintime.Timestamp) state.EpochSummary {
	return state.EpochSummary{
		Epoch:         d.Epoch,
		DistributedAt: now,
		Available:     d.Available,
		Swept:         d.Swept,
		Pool:          d.Pool,
		TotalScore:    d.TotalScore,
		Participants:  uint32(len(d.Scores)),
		Finalizations: uint32(len(d.Finalizations)),
	}
}

// Claim is the outcome of a participant's claim.
type Claim struct {
	Participant crypto.Identity
	Epoch       uint64
	Amount      uint64
	// EpochScore is the snapshot the amount was proportioned by.
	EpochScore uint64
	// PerformanceScore is computed from the participant's current stats.
	PerformanceScore uint64
}

// CheckDistribution reports whether epoch may be released at now.
func CheckDistribution(rs state.RewardState, epoch uint64, now chaintime.Timestamp) error {
	if epoch <= rs.LastEpochProcessed {
		return fmt.Errorf("%w: epoch %d, last processed %d", ErrEpochAlreadyProcessed, epoch, rs.LastEpochProcessed)
	}
	if now.Before(rs.NextEpochTime) {
		return fmt.Errorf("%w: next epoch at %s", ErrEpochNotReady, rs.NextEpochTime)
	}
	return nil
}

// Available is the vault balance above the reserve, floored at zero.
func Available(vault, reserve uint64) uint64 {
	return safemath.SaturatingSub(vault, reserve)
}

// Sweep sums the reward pool contributions of the records not yet rewarded
// and returns the records flagged as rewarded.
func Sweep(records []state.FinalizationRecord) (uint64, []state.FinalizationRecord, error) {
	var (
		total   uint64
		flagged []state.FinalizationRecord
	)
	for _, r := range records {
		if r.Rewarded {
			continue
		}
		sum, ok := safemath.Add(total, r.RewardPoolContribution)
		if !ok {
			return 0, nil, fmt.Errorf("%w: swept reward pool", safemath.ErrOverflow)
		}
		total = sum
		r.Rewarded = true
		flagged = append(flagged, r)
	}
	return total, flagged, nil
}

// Participants returns the distinct participants of records in first-seen
// order.
func Participants(records []state.FinalizationRecord) []crypto.Identity {
	seen := make(map[crypto.Identity]struct{}, len(records))
	var out []crypto.Identity
	for _, r := range records {
		if _, ok := seen[r.Participant]; ok {
			continue
		}
		seen[r.Participant] = struct{}{}
		out = append(out, r.Participant)
	}
	return out
}

// Scores snapshots the performance score of every participant eligible for
// rewards and returns the snapshots with their sum.
func Scores(epoch uint64, participants []state.UserStats) ([]state.EpochScore, uint64, error) {
	var (
		scores []state.EpochScore
		total  uint64
	)
	for _, u := range participants {
		if u.PerfectCompletions == 0 {
			continue
		}
		score := stats.PerformanceScore(u)
		sum, ok := safemath.Add(total, score)
		if !ok {
			return nil, 0, fmt.Errorf("%w: total epoch score", safemath.ErrOverflow)
		}
		total = sum
		scores = append(scores, state.EpochScore{Epoch: epoch, Participant: u.User, Score: score})
	}
	return scores, total, nil
}

// Advance closes epoch: the next one opens EpochLength after now.
func Advance(rs state.RewardState, epoch uint64, now chaintime.Timestamp, available uint64) (state.RewardState, error) {
	next, err := now.Add(EpochLength)
	if err != nil {
		return rs, fmt.Errorf("next epoch time: %w", err)
	}
	total, ok := safemath.Add(rs.TotalDistributed, available)
	if !ok {
		return rs, fmt.Errorf("%w: total distributed", safemath.ErrOverflow)
	}
	rs.LastEpochProcessed = epoch
	rs.NextEpochTime = next
	rs.TotalDistributed = total
	return rs, nil
}

// CheckClaim enforces one claim per participant per processed epoch for
// participants with at least one perfect completion.
func CheckClaim(u state.UserStats, rs state.RewardState) error {
	if u.PerfectCompletions == 0 {
		return fmt.Errorf("%w: no perfect completions", ErrNotEligibleForRewards)
	}
	if u.LastClaimEpoch >= rs.LastEpochProcessed {
		return fmt.Errorf("%w: epoch %d", ErrAlreadyClaimedThisEpoch, rs.LastEpochProcessed)
	}
	return nil
}

// ClaimAmount proportions pool by score over total. It is zero when there is
// no score to share or the product does not fit in 64 bits.
func ClaimAmount(pool, score, total uint64) uint64 {
	if total == 0 {
		return 0
	}
	scaled, ok := safemath.Mul(pool, score)
	if !ok {
		return 0
	}
	return scaled / total
}
