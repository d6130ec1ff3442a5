package verifying

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/disciplinator/disciplinator/internal/chaintime"
	"github.com/disciplinator/disciplinator/internal/crypto"
	"github.com/disciplinator/disciplinator/internal/state"
)

const validProof = "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"

var (
	verifier = crypto.DeriveIdentity([]byte("verifier"))
	start    = chaintime.Timestamp(1_700_000_000)
)

func minutes(m uint16) state.SessionMetadata {
	return state.SessionMetadata{DurationMinutes: &m}
}

func activeChallenge() state.Challenge {
	v := verifier
	return state.Challenge{
		Participant:          crypto.DeriveIdentity([]byte("participant")),
		DepositAmount:        10_000_000,
		TotalSessions:        10,
		StartTime:            start,
		EndTime:              start + 30*chaintime.Timestamp(chaintime.Day),
		Status:               state.StatusActive,
		Verifier:             &v,
		Type:                 state.TypeFitness,
		MinimumIntervalHours: 48,
		MaxGracePeriods:      3,
	}
}

func submission(now chaintime.Timestamp) Submission {
	return Submission{Signer: verifier, ProofRef: validProof, Metadata: minutes(30), Now: now}
}

func TestValidateProofRef(t *testing.T) {
	tests := []struct {
		name    string
		ref     string
		wantErr bool
	}{
		{"valid", validProof, false},
		{"too short", validProof[:45], true},
		{"too long", validProof + "a", true},
		{"empty", "", true},
		{"wrong prefix", "Qn" + validProof[2:], true},
		{"contains zero", validProof[:45] + "0", true},
		{"contains capital O", validProof[:45] + "O", true},
		{"contains capital I", validProof[:45] + "I", true},
		{"contains lower l", validProof[:45] + "l", true},
		{"contains non ascii", validProof[:44] + "é", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateProofRef(tt.ref)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidProofRef)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateProofRefReportsRune(t *testing.T) {
	// "é" is two bytes, so the ref keeps its byte length.
	ref := validProof[:44] + "é"
	require.Len(t, ref, ProofRefLength)

	err := ValidateProofRef(ref)
	require.ErrorIs(t, err, ErrInvalidProofRef)
	assert.Contains(t, err.Error(), `'é' at 44`)
}

func TestMinimumIntervalHours(t *testing.T) {
	tests := []struct {
		days, sessions uint32
		want           uint16
	}{
		{365, 365, 24},
		{7, 1, 48},
		{30, 10, 48},
		{7, 365, 12},
		{7, 14, 12},
		{30, 20, 36},
		{365, 1, 48},
		{0, 0, 48},
	}

	for _, tt := range tests {
		got := MinimumIntervalHours(tt.days, tt.sessions)
		assert.Equal(t, tt.want, got, "days=%d sessions=%d", tt.days, tt.sessions)
		assert.GreaterOrEqual(t, got, uint16(MinIntervalHours))
		assert.LessOrEqual(t, got, uint16(MaxIntervalHours))
	}
}

func TestMinimumIntervalHoursAlwaysClamped(t *testing.T) {
	for days := uint32(7); days <= 365; days += 17 {
		for sessions := uint32(1); sessions <= 365; sessions += 13 {
			got := MinimumIntervalHours(days, sessions)
			require.GreaterOrEqual(t, got, uint16(MinIntervalHours))
			require.LessOrEqual(t, got, uint16(MaxIntervalHours))
		}
	}
}

func TestValidateMetadata(t *testing.T) {
	tests := []struct {
		typ     state.ChallengeType
		meta    state.SessionMetadata
		wantErr bool
	}{
		{state.TypeFitness, minutes(20), false},
		{state.TypeFitness, minutes(19), true},
		{state.TypeEducation, minutes(30), false},
		{state.TypeEducation, minutes(29), true},
		{state.TypeMeditation, minutes(10), false},
		{state.TypeMeditation, minutes(9), true},
		{state.TypeMeditation, state.SessionMetadata{}, true},
		{state.TypeCustom, state.SessionMetadata{}, false},
		{state.TypeCustom, minutes(0), false},
	}

	for _, tt := range tests {
		err := ValidateMetadata(tt.typ, tt.meta)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidSessionDuration, "type %s", tt.typ)
		} else {
			assert.NoError(t, err, "type %s", tt.typ)
		}
	}
}

func TestValidateSession(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *state.Challenge, sub *Submission)
		wantErr error
	}{
		{
			name:   "first session skips the interval check",
			mutate: func(c *state.Challenge, sub *Submission) {},
		},
		{
			name: "not active",
			mutate: func(c *state.Challenge, sub *Submission) {
				c.Status = state.StatusFailed
			},
			wantErr: state.ErrChallengeNotActive,
		},
		{
			name: "expired at end time",
			mutate: func(c *state.Challenge, sub *Submission) {
				sub.Now = c.EndTime
			},
			wantErr: state.ErrChallengeExpired,
		},
		{
			name: "all sessions completed",
			mutate: func(c *state.Challenge, sub *Submission) {
				c.CompletedSessions = c.TotalSessions
			},
			wantErr: state.ErrAllSessionsCompleted,
		},
		{
			name: "no verifier",
			mutate: func(c *state.Challenge, sub *Submission) {
				c.Verifier = nil
			},
			wantErr: ErrNoVerifierSet,
		},
		{
			name: "wrong signer",
			mutate: func(c *state.Challenge, sub *Submission) {
				sub.Signer = c.Participant
			},
			wantErr: ErrUnauthorizedVerifier,
		},
		{
			name: "bad proof",
			mutate: func(c *state.Challenge, sub *Submission) {
				sub.ProofRef = strings.Repeat("Q", 46)
			},
			wantErr: ErrInvalidProofRef,
		},
		{
			name: "too short for fitness",
			mutate: func(c *state.Challenge, sub *Submission) {
				sub.Metadata = minutes(5)
			},
			wantErr: ErrInvalidSessionDuration,
		},
		{
			name: "exactly at the interval boundary",
			mutate: func(c *state.Challenge, sub *Submission) {
				c.CompletedSessions = 1
				c.LastSessionTime = start
				sub.Now = start + 48*chaintime.Timestamp(chaintime.Hour)
			},
		},
		{
			name: "one second before the interval boundary",
			mutate: func(c *state.Challenge, sub *Submission) {
				c.CompletedSessions = 1
				c.LastSessionTime = start
				sub.Now = start + 48*chaintime.Timestamp(chaintime.Hour) - 1
			},
			wantErr: ErrSessionTooSoon,
		},
		{
			name: "interval is checked before metadata",
			mutate: func(c *state.Challenge, sub *Submission) {
				c.CompletedSessions = 1
				c.LastSessionTime = start
				sub.Now = start + 1
				sub.Metadata = state.SessionMetadata{}
			},
			wantErr: ErrSessionTooSoon,
		},
		{
			name: "status is checked before expiry",
			mutate: func(c *state.Challenge, sub *Submission) {
				c.Status = state.StatusCompleted
				sub.Now = c.EndTime + 1
			},
			wantErr: state.ErrChallengeNotActive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := activeChallenge()
			sub := submission(start + 1)
			tt.mutate(&c, &sub)

			err := ValidateSession(c, sub)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestApply(t *testing.T) {
	c := activeChallenge()
	sub := submission(start + 100)

	next, session := Apply(c, sub)
	assert.Equal(t, uint32(1), next.CompletedSessions)
	assert.Equal(t, sub.Now, next.LastSessionTime)
	assert.Equal(t, uint32(1), session.SessionNumber)
	assert.Equal(t, verifier, session.VerifiedBy)
	assert.Equal(t, validProof, session.ProofRef)

	// The input is not modified.
	assert.Zero(t, c.CompletedSessions)
}
