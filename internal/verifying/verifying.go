package verifying

import (
	"fmt"
	"strings"

	"github.com/disciplinator/disciplinator/internal/chaintime"
	"github.com/disciplinator/disciplinator/internal/crypto"
	"github.com/disciplinator/disciplinator/internal/state"
)

const (
	// ProofRefLength and ProofRefPrefix describe a CIDv0 content address.
	ProofRefLength = 46
	ProofRefPrefix = "Qm"

	proofAlphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

	MinIntervalHours = 12
	MaxIntervalHours = 48
)

// Submission is a verifier's claim that one session of a challenge happened.
type Submission struct {
	Signer   crypto.Identity
	ProofRef string
	Metadata state.SessionMetadata
	Now      chaintime.Timestamp
}

// ValidateSession checks a submission against the challenge. Checks run in a
// fixed order and the first failure is returned.
func ValidateSession(c state.Challenge, sub Submission) error {
	if c.Status != state.StatusActive {
		return fmt.Errorf("%w: status %s", state.ErrChallengeNotActive, c.Status)
	}
	if !sub.Now.Before(c.EndTime) {
		return fmt.Errorf("%w: ended at %s", state.ErrChallengeExpired, c.EndTime)
	}
	if c.CompletedSessions >= c.TotalSessions {
		return state.ErrAllSessionsCompleted
	}
	if c.Verifier == nil {
		return ErrNoVerifierSet
	}
	if *c.Verifier != sub.Signer {
		return fmt.Errorf("%w: %s", ErrUnauthorizedVerifier, sub.Signer)
	}
	if err := ValidateProofRef(sub.ProofRef); err != nil {
		return err
	}
	if c.CompletedSessions > 0 {
		hours := sub.Now.HoursSince(c.LastSessionTime)
		if hours < int64(c.MinimumIntervalHours) {
			return fmt.Errorf("%w: %d of %d hours elapsed", ErrSessionTooSoon, hours, c.MinimumIntervalHours)
		}
	}
	return ValidateMetadata(c.Type, sub.Metadata)
}

// Apply returns the challenge with the submission counted and the session
// record to append. The submission must have passed ValidateSession.
func Apply(c state.Challenge, sub Submission) (state.Challenge, state.Session) {
	c.CompletedSessions++
	c.LastSessionTime = sub.Now
	return c, state.Session{
		Challenge:     c.ID,
		SessionNumber: c.CompletedSessions,
		Timestamp:     sub.Now,
		ProofRef:      sub.ProofRef,
		VerifiedBy:    sub.Signer,
		Metadata:      sub.Metadata,
	}
}

// ValidateProofRef accepts base58 CIDv0 strings: 46 characters, "Qm" prefix,
// nothing outside the bitcoin base58 alphabet.
func ValidateProofRef(ref string) error {
	if len(ref) != ProofRefLength {
		return fmt.Errorf("%w: length %d, want %d", ErrInvalidProofRef, len(ref), ProofRefLength)
	}
	if !strings.HasPrefix(ref, ProofRefPrefix) {
		return fmt.Errorf("%w: missing %q prefix", ErrInvalidProofRef, ProofRefPrefix)
	}
	var bad rune
	if i := strings.IndexFunc(ref, func(r rune) bool {
		bad = r
		return !strings.ContainsRune(proofAlphabet, r)
	}); i >= 0 {
		return fmt.Errorf("%w: character %q at %d", ErrInvalidProofRef, bad, i)
	}
	return nil
}

// MinimumSessionMinutes is the shortest session a challenge type accepts.
func MinimumSessionMinutes(t state.ChallengeType) uint16 {
	switch t {
	case state.TypeFitness:
		return 20
	case state.TypeEducation:
		return 30
	case state.TypeMeditation:
		return 10
	default:
		return 0
	}
}

// ValidateMetadata applies the type specific duration rule. A missing
// duration counts as zero minutes.
func ValidateMetadata(t state.ChallengeType, m state.SessionMetadata) error {
	minimum := MinimumSessionMinutes(t)
	if m.Minutes() < minimum {
		return fmt.Errorf("%w: %s needs %d minutes, got %d", ErrInvalidSessionDuration, t, minimum, m.Minutes())
	}
	return nil
}

// MinimumIntervalHours spreads the challenge window evenly over its sessions
// and clamps the result to [MinIntervalHours, MaxIntervalHours].
func MinimumIntervalHours(durationDays, totalSessions uint32) uint16 {
	if totalSessions == 0 {
		return MaxIntervalHours
	}
	hours := uint64(durationDays) * 24 / uint64(totalSessions)
	return uint16(min(max(hours, MinIntervalHours), MaxIntervalHours))
}
