package state

import "errors"

// Lifecycle errors shared by every operation on a challenge.
var (
	ErrChallengeNotActive   = errors.New("challenge is not active")
	ErrChallengeExpired     = errors.New("challenge has expired")
	ErrAllSessionsCompleted = errors.New("all sessions already completed")
)
