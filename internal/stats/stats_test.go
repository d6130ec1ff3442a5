package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/disciplinator/disciplinator/internal/crypto"
	"github.com/disciplinator/disciplinator/internal/safemath"
	"github.com/disciplinator/disciplinator/internal/state"
)

var user = crypto.DeriveIdentity([]byte("user"))

func finalize(t *testing.T, u state.UserStats, outcome state.ChallengeStatus) state.UserStats {
	t.Helper()
	u, err := ApplyFinalization(u, Settlement{Outcome: outcome, Deposit: 10, Refund: 8, Penalty: 2})
	require.NoError(t, err)
	return u
}

func TestNew(t *testing.T) {
	u := New(user)
	assert.Equal(t, state.UserStats{User: user}, u)

	u = finalize(t, u, state.StatusCompleted)
	assert.Equal(t, user, u.User)
	assert.Equal(t, uint32(1), u.TotalChallenges)
}

func TestApplyFinalization(t *testing.T) {
	tests := []struct {
		name     string
		outcomes []state.ChallengeStatus
		check    func(t *testing.T, u state.UserStats)
	}{
		{
			name:     "completed",
			outcomes: []state.ChallengeStatus{state.StatusCompleted},
			check: func(t *testing.T, u state.UserStats) {
				assert.Equal(t, uint32(1), u.ChallengesCompleted)
				assert.Equal(t, uint32(1), u.PerfectCompletions)
				assert.Equal(t, uint32(1), u.CurrentStreak)
				assert.Equal(t, uint32(1), u.BestStreak)
			},
		},
		{
			name:     "partial keeps the streak but not the best streak",
			outcomes: []state.ChallengeStatus{state.StatusPartiallyCompleted, state.StatusPartiallyCompleted},
			check: func(t *testing.T, u state.UserStats) {
				assert.Equal(t, uint32(2), u.ChallengesPartial)
				assert.Equal(t, uint32(2), u.CurrentStreak)
				assert.Zero(t, u.BestStreak)
				assert.Zero(t, u.PerfectCompletions)
			},
		},
		{
			name:     "failure resets the streak",
			outcomes: []state.ChallengeStatus{state.StatusCompleted, state.StatusCompleted, state.StatusFailed},
			check: func(t *testing.T, u state.UserStats) {
				assert.Equal(t, uint32(1), u.ChallengesFailed)
				assert.Zero(t, u.CurrentStreak)
				assert.Equal(t, uint32(2), u.BestStreak)
			},
		},
		{
			name: "best streak is a high water mark",
			outcomes: []state.ChallengeStatus{
				state.StatusCompleted, state.StatusCompleted, state.StatusCompleted,
				state.StatusFailed,
				state.StatusCompleted,
			},
			check: func(t *testing.T, u state.UserStats) {
				assert.Equal(t, uint32(1), u.CurrentStreak)
				assert.Equal(t, uint32(3), u.BestStreak)
			},
		},
		{
			name: "partial then completed raises best streak",
			outcomes: []state.ChallengeStatus{
				state.StatusPartiallyCompleted, state.StatusCompleted,
			},
			check: func(t *testing.T, u state.UserStats) {
				assert.Equal(t, uint32(2), u.CurrentStreak)
				assert.Equal(t, uint32(2), u.BestStreak)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := New(user)
			for _, outcome := range tt.outcomes {
				u = finalize(t, u, outcome)
			}
			n := uint64(len(tt.outcomes))
			assert.Equal(t, uint32(n), u.TotalChallenges)
			assert.Equal(t, 10*n, u.TotalDeposited)
			assert.Equal(t, 8*n, u.TotalRefunded)
			assert.Equal(t, 2*n, u.TotalPenalties)
			tt.check(t, u)
		})
	}
}

func TestApplyFinalizationErrors(t *testing.T) {
	_, err := ApplyFinalization(New(user), Settlement{Outcome: state.StatusActive})
	assert.Error(t, err)

	u := New(user)
	u.TotalDeposited = math.MaxUint64
	_, err = ApplyFinalization(u, Settlement{Outcome: state.StatusCompleted, Deposit: 1})
	assert.ErrorIs(t, err, safemath.ErrOverflow)
}

func TestApplySession(t *testing.T) {
	u, err := ApplySession(New(user), 99)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), u.TotalSessionsCompleted)
	assert.EqualValues(t, 99, u.LastActivity)

	u.TotalSessionsCompleted = math.MaxUint32
	_, err = ApplySession(u, 100)
	assert.ErrorIs(t, err, safemath.ErrOverflow)
}

func TestApplyClaim(t *testing.T) {
	u, err := ApplyClaim(New(user), 500, 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), u.TotalRewardsClaimed)
	assert.Equal(t, uint64(3), u.LastClaimEpoch)

	u.TotalRewardsClaimed = math.MaxUint64
	_, err = ApplyClaim(u, 1, 4)
	assert.ErrorIs(t, err, safemath.ErrOverflow)
}

func TestPerformanceScore(t *testing.T) {
	tests := []struct {
		name  string
		stats state.UserStats
		want  uint64
	}{
		{"new participant", New(user), 50},
		{"one perfect", state.UserStats{PerfectCompletions: 1, BestStreak: 1}, 160},
		{"with failures", state.UserStats{PerfectCompletions: 2, BestStreak: 2, ChallengesFailed: 1}, 220},
		{"max inputs", state.UserStats{PerfectCompletions: math.MaxUint32, BestStreak: math.MaxUint32}, math.MaxUint32*110 + 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PerformanceScore(tt.stats))
		})
	}
}
