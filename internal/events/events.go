// Package events defines the lifecycle events the protocol emits and the
// sinks that observe them. Sinks never feed back into protocol decisions.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/disciplinator/disciplinator/internal/chaintime"
	"github.com/disciplinator/disciplinator/internal/crypto"
	"github.com/disciplinator/disciplinator/internal/state"
)

const (
	KindChallengeCreated   = "challenge_created"
	KindSessionCompleted   = "session_completed"
	KindChallengeFinalized = "challenge_finalized"
	KindGracePeriodUsed    = "grace_period_used"
	KindRewardsDistributed = "rewards_distributed"
	KindRewardsClaimed     = "rewards_claimed"
	KindProtocolPaused     = "protocol_paused"
	KindProtocolUnpaused   = "protocol_unpaused"
)

type Event interface {
	Kind() string
}

// ChallengeEvent is implemented by events about a single challenge.
type ChallengeEvent interface {
	Event
	ChallengeID() state.ChallengeKey
}

// Envelope wraps an event with a unique id and the protocol time it happened.
type Envelope struct {
	ID    uuid.UUID
	At    chaintime.Timestamp
	Event Event
}

func NewEnvelope(e Event, at chaintime.Timestamp) Envelope {
	return Envelope{ID: uuid.New(), At: at, Event: e}
}

// Sink receives events after the operation producing them has committed.
type Sink interface {
	Emit(ctx context.Context, env Envelope) error
}

// Discard drops every event.
type Discard struct{}

func (Discard) Emit(context.Context, Envelope) error { return nil }

type ChallengeCreated struct {
	Challenge            state.ChallengeKey  `json:"challenge"`
	Participant          crypto.Identity     `json:"participant"`
	Deposit              uint64              `json:"deposit"`
	TotalSessions        uint32              `json:"total_sessions"`
	DurationDays         uint32              `json:"duration_days"`
	Type                 string              `json:"type"`
	Verifier             *crypto.Identity    `json:"verifier,omitempty"`
	StartTime            chaintime.Timestamp `json:"start_time"`
	EndTime              chaintime.Timestamp `json:"end_time"`
	MinimumIntervalHours uint16              `json:"minimum_interval_hours"`
}

func (ChallengeCreated) Kind() string                      { return KindChallengeCreated }
func (e ChallengeCreated) ChallengeID() state.ChallengeKey { return e.Challenge }

type SessionCompleted struct {
	Challenge     state.ChallengeKey  `json:"challenge"`
	SessionNumber uint32              `json:"session_number"`
	Verifier      crypto.Identity     `json:"verifier"`
	ProofRef      string              `json:"proof_ref"`
	Timestamp     chaintime.Timestamp `json:"timestamp"`
	Remaining     uint32              `json:"remaining"`
}

func (SessionCompleted) Kind() string                      { return KindSessionCompleted }
func (e SessionCompleted) ChallengeID() state.ChallengeKey { return e.Challenge }

type ChallengeFinalized struct {
	Challenge        state.ChallengeKey `json:"challenge"`
	Participant      crypto.Identity    `json:"participant"`
	Outcome          string             `json:"outcome"`
	CompletionRateBP uint16             `json:"completion_rate_bp"`
	Refund           uint64             `json:"refund"`
	Penalty          uint64             `json:"penalty"`
	Fee              uint64             `json:"fee"`
	RewardPool       uint64             `json:"reward_pool"`
	Charity          uint64             `json:"charity"`
	Epoch            uint64             `json:"epoch"`
}

func (ChallengeFinalized) Kind() string                      { return KindChallengeFinalized }
func (e ChallengeFinalized) ChallengeID() state.ChallengeKey { return e.Challenge }

type GracePeriodUsed struct {
	Challenge  state.ChallengeKey  `json:"challenge"`
	Reason     string              `json:"reason"`
	NewEndTime chaintime.Timestamp `json:"new_end_time"`
	Remaining  uint8               `json:"remaining"`
}

func (GracePeriodUsed) Kind() string                      { return KindGracePeriodUsed }
func (e GracePeriodUsed) ChallengeID() state.ChallengeKey { return e.Challenge }

type RewardsDistributed struct {
	Epoch         uint64              `json:"epoch"`
	Available     uint64              `json:"available"`
	Swept         uint64              `json:"swept"`
	Pool          uint64              `json:"pool"`
	TotalScore    uint64              `json:"total_score"`
	Participants  uint32              `json:"participants"`
	NextEpochTime chaintime.Timestamp `json:"next_epoch_time"`
}

func (RewardsDistributed) Kind() string { return KindRewardsDistributed }

type RewardsClaimed struct {
	Participant      crypto.Identity `json:"participant"`
	Epoch            uint64          `json:"epoch"`
	Amount           uint64          `json:"amount"`
	PerformanceScore uint64          `json:"performance_score"`
}

func (RewardsClaimed) Kind() string { return KindRewardsClaimed }

type ProtocolPaused struct {
	Authority crypto.Identity `json:"authority"`
}

func (ProtocolPaused) Kind() string { return KindProtocolPaused }

type ProtocolUnpaused struct {
	Authority crypto.Identity `json:"authority"`
}

func (ProtocolUnpaused) Kind() string { return KindProtocolUnpaused }

// emitTimeout bounds how long a slow sink may hold up the caller.
const emitTimeout = 5 * time.Second
