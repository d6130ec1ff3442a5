// Package stats keeps the per-participant aggregates that drive streaks and
// the performance score.
package stats

import (
	"fmt"

	"github.com/disciplinator/disciplinator/internal/chaintime"
	"github.com/disciplinator/disciplinator/internal/crypto"
	"github.com/disciplinator/disciplinator/internal/safemath"
	"github.com/disciplinator/disciplinator/internal/state"
)

const (
	perfectCompletionPoints = 100
	bestStreakPoints        = 10
	noFailureBonus          = 50
)

// New returns empty stats for a participant's first challenge.
func New(user crypto.Identity) state.UserStats {
	return state.UserStats{User: user}
}

// ApplySession counts one more verified session.
func ApplySession(u state.UserStats, now chaintime.Timestamp) (state.UserStats, error) {
	n, ok := safemath.Add(u.TotalSessionsCompleted, 1)
	if !ok {
		return u, fmt.Errorf("%w: total sessions completed", safemath.ErrOverflow)
	}
	u.TotalSessionsCompleted = n
	u.LastActivity = now
	return u, nil
}

// Settlement is what a finalization contributes to the stats.
type Settlement struct {
	Outcome state.ChallengeStatus
	Deposit uint64
	Refund  uint64
	Penalty uint64
}

// ApplyFinalization applies exactly one outcome update plus the totals.
// A partial completion keeps the streak going but only a full completion can
// raise the best streak.
func ApplyFinalization(u state.UserStats, s Settlement) (state.UserStats, error) {
	var err error
	add32 := func(field string, v *uint32) {
		if err != nil {
			return
		}
		n, ok := safemath.Add(*v, 1)
		if !ok {
			err = fmt.Errorf("%w: %s", safemath.ErrOverflow, field)
			return
		}
		*v = n
	}
	add64 := func(field string, v *uint64, amount uint64) {
		if err != nil {
			return
		}
		n, ok := safemath.Add(*v, amount)
		if !ok {
			err = fmt.Errorf("%w: %s", safemath.ErrOverflow, field)
			return
		}
		*v = n
	}

	add32("total challenges", &u.TotalChallenges)
	add64("total deposited", &u.TotalDeposited, s.Deposit)
	add64("total refunded", &u.TotalRefunded, s.Refund)
	add64("total penalties", &u.TotalPenalties, s.Penalty)

	switch s.Outcome {
	case state.StatusCompleted:
		add32("challenges completed", &u.ChallengesCompleted)
		add32("perfect completions", &u.PerfectCompletions)
		add32("current streak", &u.CurrentStreak)
		u.BestStreak = max(u.BestStreak, u.CurrentStreak)
	case state.StatusPartiallyCompleted:
		add32("challenges partial", &u.ChallengesPartial)
		add32("current streak", &u.CurrentStreak)
	case state.StatusFailed:
		add32("challenges failed", &u.ChallengesFailed)
		u.CurrentStreak = 0
	default:
		return u, fmt.Errorf("no stats update for outcome %s", s.Outcome)
	}
	return u, err
}

// ApplyClaim records a reward claim against epoch.
func ApplyClaim(u state.UserStats, amount, epoch uint64) (state.UserStats, error) {
	total, ok := safemath.Add(u.TotalRewardsClaimed, amount)
	if !ok {
		return u, fmt.Errorf("%w: total rewards claimed", safemath.ErrOverflow)
	}
	u.TotalRewardsClaimed = total
	u.LastClaimEpoch = epoch
	return u, nil
}

// PerformanceScore weighs perfect completions, the best streak and a clean
// record. The inputs are 32-bit so the sum cannot overflow 64 bits.
func PerformanceScore(u state.UserStats) uint64 {
	score := uint64(u.PerfectCompletions)*perfectCompletionPoints + uint64(u.BestStreak)*bestStreakPoints
	if u.ChallengesFailed == 0 {
		score += noFailureBonus
	}
	return score
}
