package state

import (
	"fmt"

	"github.com/disciplinator/disciplinator/internal/chaintime"
	"github.com/disciplinator/disciplinator/internal/crypto"
	"github.com/disciplinator/disciplinator/internal/safemath"
	"github.com/disciplinator/disciplinator/internal/state/statekey"
)

// ChallengeKey identifies a challenge record.
type ChallengeKey = statekey.Key

// ProtocolConfig holds the global parameters of the protocol. It is created
// once by initialization and afterwards only the pause flag and the two
// counters change.
type ProtocolConfig struct {
	Authority crypto.Identity `cbor:"1,keyasint"`
	Treasury  crypto.Identity `cbor:"2,keyasint"`
	Asset     crypto.Identity `cbor:"3,keyasint"`

	// FeePct, RewardPct and CharityPct always sum to 100.
	FeePct     uint8 `cbor:"4,keyasint"`
	RewardPct  uint8 `cbor:"5,keyasint"`
	CharityPct uint8 `cbor:"6,keyasint"`

	MinDeposit uint64 `cbor:"7,keyasint"`
	MaxDeposit uint64 `cbor:"8,keyasint"`
	Paused     bool   `cbor:"9,keyasint"`

	TotalChallenges uint64 `cbor:"10,keyasint"`
	TotalVolume     uint64 `cbor:"11,keyasint"`

	// Custodial accounts owned by the protocol.
	Vault        crypto.Identity `cbor:"12,keyasint"`
	RewardsVault crypto.Identity `cbor:"13,keyasint"`
	ReserveVault crypto.Identity `cbor:"14,keyasint"`
}

// Challenge is a participant's deposit-backed commitment to complete
// TotalSessions sessions before EndTime.
type Challenge struct {
	ID                ChallengeKey        `cbor:"1,keyasint"`
	Participant       crypto.Identity     `cbor:"2,keyasint"`
	DepositAmount     uint64              `cbor:"3,keyasint"`
	TotalSessions     uint32              `cbor:"4,keyasint"`
	CompletedSessions uint32              `cbor:"5,keyasint"`
	StartTime         chaintime.Timestamp `cbor:"6,keyasint"`
	EndTime           chaintime.Timestamp `cbor:"7,keyasint"`
	// LastSessionTime is zero until the first session is marked.
	LastSessionTime      chaintime.Timestamp `cbor:"8,keyasint"`
	Status               ChallengeStatus     `cbor:"9,keyasint"`
	Verifier             *crypto.Identity    `cbor:"10,keyasint,omitempty"`
	Type                 ChallengeType       `cbor:"11,keyasint"`
	MinimumIntervalHours uint16              `cbor:"12,keyasint"`
	GracePeriodsUsed     uint8               `cbor:"13,keyasint"`
	MaxGracePeriods      uint8               `cbor:"14,keyasint"`
	Sequence             uint64              `cbor:"15,keyasint"`
}

// SessionsRemaining returns how many sessions are still to be marked.
func (c Challenge) SessionsRemaining() uint32 {
	if c.CompletedSessions >= c.TotalSessions {
		return 0
	}
	return c.TotalSessions - c.CompletedSessions
}

// SessionMetadata carries the optional, type specific details of a session.
type SessionMetadata struct {
	DurationMinutes *uint16 `cbor:"1,keyasint,omitempty"`
	Location        *string `cbor:"2,keyasint,omitempty"`
	Notes           *string `cbor:"3,keyasint,omitempty"`
}

// Minutes returns the reported duration, zero when none was given.
func (m SessionMetadata) Minutes() uint16 {
	if m.DurationMinutes == nil {
		return 0
	}
	return *m.DurationMinutes
}

// Session is the immutable record of one verified session.
type Session struct {
	Challenge ChallengeKey `cbor:"1,keyasint"`
	// SessionNumber is 1-based and equals CompletedSessions after the increment.
	SessionNumber uint32              `cbor:"2,keyasint"`
	Timestamp     chaintime.Timestamp `cbor:"3,keyasint"`
	ProofRef      string              `cbor:"4,keyasint"`
	VerifiedBy    crypto.Identity     `cbor:"5,keyasint"`
	Metadata      SessionMetadata     `cbor:"6,keyasint"`
}

// UserStats aggregates a participant's history across all challenges.
type UserStats struct {
	User                   crypto.Identity     `cbor:"1,keyasint"`
	TotalChallenges        uint32              `cbor:"2,keyasint"`
	ChallengesCompleted    uint32              `cbor:"3,keyasint"`
	ChallengesPartial      uint32              `cbor:"4,keyasint"`
	ChallengesFailed       uint32              `cbor:"5,keyasint"`
	PerfectCompletions     uint32              `cbor:"6,keyasint"`
	TotalSessionsCompleted uint32              `cbor:"7,keyasint"`
	TotalDeposited         uint64              `cbor:"8,keyasint"`
	TotalRefunded          uint64              `cbor:"9,keyasint"`
	TotalPenalties         uint64              `cbor:"10,keyasint"`
	TotalRewardsClaimed    uint64              `cbor:"11,keyasint"`
	CurrentStreak          uint32              `cbor:"12,keyasint"`
	BestStreak             uint32              `cbor:"13,keyasint"`
	LastActivity           chaintime.Timestamp `cbor:"14,keyasint"`
	LastClaimEpoch         uint64              `cbor:"15,keyasint"`
}

// FinalizationRecord is written once per challenge at finalization. Only the
// Rewarded flag changes afterwards, when the record's epoch is distributed.
type FinalizationRecord struct {
	Challenge              ChallengeKey        `cbor:"1,keyasint"`
	Participant            crypto.Identity     `cbor:"2,keyasint"`
	Outcome                ChallengeStatus     `cbor:"3,keyasint"`
	CompletionRateBP       uint16              `cbor:"4,keyasint"`
	Refund                 uint64              `cbor:"5,keyasint"`
	PenaltyAmount          uint64              `cbor:"6,keyasint"`
	FeeAmount              uint64              `cbor:"7,keyasint"`
	RewardPoolContribution uint64              `cbor:"8,keyasint"`
	CharityAmount          uint64              `cbor:"9,keyasint"`
	Timestamp              chaintime.Timestamp `cbor:"10,keyasint"`
	Epoch                  uint64              `cbor:"11,keyasint"`
	Rewarded               bool                `cbor:"12,keyasint"`
}

// RewardState is the singleton tracking epoch distribution.
type RewardState struct {
	LastEpochProcessed uint64              `cbor:"1,keyasint"`
	NextEpochTime      chaintime.Timestamp `cbor:"2,keyasint"`
	TotalDistributed   uint64              `cbor:"3,keyasint"`
}

// OpenEpoch is the epoch new finalizations are filed under. It fails once
// the last epoch number has been processed.
func (r RewardState) OpenEpoch() (uint64, error) {
	epoch, ok := safemath.Add(r.LastEpochProcessed, 1)
	if !ok {
		return 0, fmt.Errorf("%w: open epoch", safemath.ErrOverflow)
	}
	return epoch, nil
}

// GracePeriodRecord is the audit entry of one grace period use.
type GracePeriodRecord struct {
	Challenge  ChallengeKey        `cbor:"1,keyasint"`
	Index      uint8               `cbor:"2,keyasint"`
	UsedAt     chaintime.Timestamp `cbor:"3,keyasint"`
	Reason     string              `cbor:"4,keyasint"`
	NewEndTime chaintime.Timestamp `cbor:"5,keyasint"`
}

// EpochSummary is written when an epoch is distributed. Pool and TotalScore
// fix the denominator every claim against the epoch uses.
type EpochSummary struct {
	Epoch         uint64              `cbor:"1,keyasint"`
	DistributedAt chaintime.Timestamp `cbor:"2,keyasint"`
	Available     uint64              `cbor:"3,keyasint"`
	Swept         uint64              `cbor:"4,keyasint"`
	Pool          uint64              `cbor:"5,keyasint"`
	TotalScore    uint64              `cbor:"6,keyasint"`
	Participants  uint32              `cbor:"7,keyasint"`
	Finalizations uint32              `cbor:"8,keyasint"`
}

// EpochScore is a participant's performance score snapshot for an epoch.
type EpochScore struct {
	Epoch       uint64          `cbor:"1,keyasint"`
	Participant crypto.Identity `cbor:"2,keyasint"`
	Score       uint64          `cbor:"3,keyasint"`
}
