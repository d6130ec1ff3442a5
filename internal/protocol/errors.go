package protocol

import (
	"errors"

	"github.com/disciplinator/disciplinator/internal/chaintime"
	"github.com/disciplinator/disciplinator/internal/ledger"
	"github.com/disciplinator/disciplinator/internal/rewards"
	"github.com/disciplinator/disciplinator/internal/safemath"
	"github.com/disciplinator/disciplinator/internal/settlement"
	"github.com/disciplinator/disciplinator/internal/state"
	"github.com/disciplinator/disciplinator/internal/store"
	"github.com/disciplinator/disciplinator/internal/verifying"
)

var (
	ErrAlreadyInitialized      = errors.New("protocol already initialized")
	ErrNotInitialized          = errors.New("protocol not initialized")
	ErrProtocolPaused          = errors.New("protocol is paused")
	ErrInvalidDecimals         = errors.New("asset must have 6 decimals")
	ErrInvalidDepositBounds    = errors.New("minimum deposit exceeds maximum deposit")
	ErrDepositTooSmall         = errors.New("deposit below minimum")
	ErrDepositTooLarge         = errors.New("deposit above maximum")
	ErrInvalidSessionCount     = errors.New("total sessions must be between 1 and 365")
	ErrInvalidDuration         = errors.New("duration must be between 7 and 365 days")
	ErrInvalidChallengeType    = errors.New("unknown challenge type")
	ErrReasonTooLong           = errors.New("grace period reason too long")
	ErrChallengeNotFound       = errors.New("challenge not found")
	ErrCannotFinalizeYet       = errors.New("challenge cannot be finalized yet")
	ErrNoGracePeriodsLeft      = errors.New("no grace periods left")
	ErrUnauthorizedParticipant = errors.New("signer is not the challenge participant")
	ErrUnauthorizedAuthority   = errors.New("signer is not the protocol authority")
)

// Kind is the class of a rejected operation.
type Kind uint8

const (
	KindInternal Kind = iota
	// KindPolicy rejects the input itself. Retrying only helps with different input.
	KindPolicy
	// KindState rejects the operation for the current state of an entity.
	KindState
	KindAuthorization
	KindArithmetic
	KindResource
)

func (k Kind) String() string {
	switch k {
	case KindPolicy:
		return "policy"
	case KindState:
		return "state"
	case KindAuthorization:
		return "authorization"
	case KindArithmetic:
		return "arithmetic"
	case KindResource:
		return "resource"
	default:
		return "internal"
	}
}

var kinds = []struct {
	kind Kind
	errs []error
}{
	{KindAuthorization, []error{
		verifying.ErrUnauthorizedVerifier,
		ErrUnauthorizedParticipant,
		ErrUnauthorizedAuthority,
	}},
	{KindArithmetic, []error{
		safemath.ErrOverflow,
		chaintime.ErrTimeOverflow,
		ledger.ErrBalanceOverflow,
	}},
	{KindResource, []error{
		ledger.ErrInsufficientFunds,
		ledger.ErrAssetMismatch,
		ledger.ErrAccountNotFound,
		ledger.ErrUnknownAsset,
		rewards.ErrInsufficientRewards,
	}},
	{KindPolicy, []error{
		settlement.ErrInvalidPercentageDistribution,
		ErrInvalidDecimals,
		ErrInvalidDepositBounds,
		ErrDepositTooSmall,
		ErrDepositTooLarge,
		ErrInvalidSessionCount,
		ErrInvalidDuration,
		ErrInvalidChallengeType,
		ErrReasonTooLong,
		verifying.ErrInvalidProofRef,
		verifying.ErrInvalidSessionDuration,
		verifying.ErrSessionTooSoon,
	}},
	{KindState, []error{
		ErrAlreadyInitialized,
		ErrNotInitialized,
		ErrProtocolPaused,
		ErrChallengeNotFound,
		ErrCannotFinalizeYet,
		ErrNoGracePeriodsLeft,
		state.ErrChallengeNotActive,
		state.ErrChallengeExpired,
		state.ErrAllSessionsCompleted,
		verifying.ErrNoVerifierSet,
		rewards.ErrEpochAlreadyProcessed,
		rewards.ErrEpochNotReady,
		rewards.ErrNotEligibleForRewards,
		rewards.ErrAlreadyClaimedThisEpoch,
		store.ErrNotFound,
		store.ErrAlreadyExists,
	}},
}

// Classify maps an error returned by the Service to its Kind. Errors outside
// the taxonomy are KindInternal.
func Classify(err error) Kind {
	if err == nil {
		return KindInternal
	}
	for _, group := range kinds {
		for _, target := range group.errs {
			if errors.Is(err, target) {
				return group.kind
			}
		}
	}
	return KindInternal
}
