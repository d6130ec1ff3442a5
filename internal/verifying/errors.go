package verifying

import "errors"

var (
	ErrNoVerifierSet          = errors.New("no verifier set for challenge")
	ErrUnauthorizedVerifier   = errors.New("signer is not the challenge verifier")
	ErrInvalidProofRef        = errors.New("invalid proof reference")
	ErrSessionTooSoon         = errors.New("session submitted before minimum interval")
	ErrInvalidSessionDuration = errors.New("session duration below type minimum")
)
