package rewards

import "errors"

var (
	ErrEpochAlreadyProcessed   = errors.New("epoch already processed")
	ErrEpochNotReady           = errors.New("epoch not ready for distribution")
	ErrNotEligibleForRewards   = errors.New("not eligible for rewards")
	ErrAlreadyClaimedThisEpoch = errors.New("already claimed this epoch")
	ErrInsufficientRewards     = errors.New("insufficient rewards in vault")
)
