package protocol

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/disciplinator/disciplinator/internal/chaintime"
	"github.com/disciplinator/disciplinator/internal/crypto"
	"github.com/disciplinator/disciplinator/internal/events"
	"github.com/disciplinator/disciplinator/internal/ledger"
	"github.com/disciplinator/disciplinator/internal/rewards"
	"github.com/disciplinator/disciplinator/internal/safemath"
	"github.com/disciplinator/disciplinator/internal/settlement"
	"github.com/disciplinator/disciplinator/internal/state"
	"github.com/disciplinator/disciplinator/internal/store"
	"github.com/disciplinator/disciplinator/internal/verifying"
	"github.com/disciplinator/disciplinator/pkg/db/pebble"
)

const (
	validProof     = "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"
	start          = chaintime.Timestamp(1_700_000_000)
	initialBalance = 50_000_000_000
)

var (
	authority = crypto.DeriveIdentity([]byte("authority"))
	treasury  = crypto.DeriveIdentity([]byte("treasury"))
	alice     = crypto.DeriveIdentity([]byte("alice"))
	bob       = crypto.DeriveIdentity([]byte("bob"))
	verifier  = crypto.DeriveIdentity([]byte("verifier"))
	usdc      = ledger.Asset{ID: crypto.DeriveIdentity([]byte("usdc")), Decimals: 6}
)

type fixture struct {
	svc    *Service
	store  *store.Store
	ledger *ledger.KV
	clock  *chaintime.ManualClock
	events *events.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := newUninitialized(t)
	_, err := f.svc.Initialize(context.Background(), authority, InitParams{
		FeePct:     10,
		RewardPct:  60,
		CharityPct: 30,
		Treasury:   treasury,
		Asset:      usdc.ID,
	})
	require.NoError(t, err)
	f.events.Reset()
	return f
}

func newUninitialized(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	kv, err := pebble.NewKVStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	st, err := store.New(kv)
	require.NoError(t, err)
	l, err := ledger.NewKV(kv)
	require.NoError(t, err)

	require.NoError(t, l.RegisterAsset(ctx, usdc))
	for _, owner := range []crypto.Identity{treasury, alice, bob} {
		require.NoError(t, l.OpenAccount(ctx, owner, usdc.ID))
	}
	require.NoError(t, l.Mint(ctx, alice, initialBalance))
	require.NoError(t, l.Mint(ctx, bob, initialBalance))

	f := &fixture{
		store:  st,
		ledger: l,
		clock:  chaintime.NewManualClock(start),
		events: &events.Recorder{},
	}
	f.svc = New(st, l, f.clock, f.events)
	return f
}

func (f *fixture) balance(t *testing.T, owner crypto.Identity) uint64 {
	t.Helper()
	b, err := f.ledger.Balance(context.Background(), owner)
	require.NoError(t, err)
	return b
}

func (f *fixture) at(d chaintime.Seconds) {
	f.clock.Set(start + chaintime.Timestamp(d))
}

func (f *fixture) create(t *testing.T, participant crypto.Identity, p CreateParams) state.ChallengeKey {
	t.Helper()
	key, err := f.svc.CreateChallenge(context.Background(), participant, p)
	require.NoError(t, err)
	return key
}

func (f *fixture) mark(t *testing.T, key state.ChallengeKey) {
	t.Helper()
	require.NoError(t, f.svc.MarkSessionComplete(context.Background(), verifier, key, validProof, duration(45)))
}

func (f *fixture) challenge(t *testing.T, key state.ChallengeKey) state.Challenge {
	t.Helper()
	c, err := f.svc.Challenge(context.Background(), key)
	require.NoError(t, err)
	return c
}

func duration(m uint16) state.SessionMetadata {
	return state.SessionMetadata{DurationMinutes: &m}
}

func withVerifier() *crypto.Identity {
	v := verifier
	return &v
}

func defaultParams() CreateParams {
	return CreateParams{
		Deposit:       10_000_000,
		TotalSessions: 10,
		DurationDays:  30,
		Verifier:      withVerifier(),
		Type:          state.TypeFitness,
	}
}

func TestInitialize(t *testing.T) {
	ctx := context.Background()
	valid := InitParams{FeePct: 10, RewardPct: 60, CharityPct: 30, Treasury: treasury, Asset: usdc.ID}

	t.Run("defaults and custodial accounts", func(t *testing.T) {
		f := newUninitialized(t)
		cfg, err := f.svc.Initialize(ctx, authority, valid)
		require.NoError(t, err)

		assert.Equal(t, DefaultMinDeposit, cfg.MinDeposit)
		assert.Equal(t, DefaultMaxDeposit, cfg.MaxDeposit)
		assert.False(t, cfg.Paused)
		assert.Zero(t, cfg.TotalChallenges)

		stored, err := f.svc.Config(ctx)
		require.NoError(t, err)
		assert.Equal(t, cfg, stored)

		for _, owner := range []crypto.Identity{VaultIdentity, RewardsVaultIdentity, ReserveVaultIdentity} {
			assert.Zero(t, f.balance(t, owner))
		}

		rs, err := f.svc.RewardState(ctx)
		require.NoError(t, err)
		assert.Zero(t, rs.LastEpochProcessed)
		assert.Equal(t, start, rs.NextEpochTime)
	})

	t.Run("runs once", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Initialize(ctx, authority, valid)
		assert.ErrorIs(t, err, ErrAlreadyInitialized)
		assert.Equal(t, KindState, Classify(err))
	})

	tests := []struct {
		name    string
		mutate  func(p *InitParams)
		wantErr error
	}{
		{"split over 100", func(p *InitParams) { p.CharityPct = 31 }, settlement.ErrInvalidPercentageDistribution},
		{"split under 100", func(p *InitParams) { p.FeePct = 0 }, settlement.ErrInvalidPercentageDistribution},
		{"inverted bounds", func(p *InitParams) { p.MinDeposit, p.MaxDeposit = 10, 5 }, ErrInvalidDepositBounds},
		{"unknown asset", func(p *InitParams) { p.Asset = crypto.Identity{1} }, ledger.ErrUnknownAsset},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newUninitialized(t)
			p := valid
			tt.mutate(&p)
			_, err := f.svc.Initialize(ctx, authority, p)
			assert.ErrorIs(t, err, tt.wantErr)

			_, err = f.svc.Config(ctx)
			assert.ErrorIs(t, err, ErrNotInitialized)
		})
	}

	t.Run("asset decimals", func(t *testing.T) {
		f := newUninitialized(t)
		nine := ledger.Asset{ID: crypto.DeriveIdentity([]byte("nine")), Decimals: 9}
		require.NoError(t, f.ledger.RegisterAsset(ctx, nine))

		p := valid
		p.Asset = nine.ID
		_, err := f.svc.Initialize(ctx, authority, p)
		assert.ErrorIs(t, err, ErrInvalidDecimals)
		assert.Equal(t, KindPolicy, Classify(err))
	})

	t.Run("operations before initialization", func(t *testing.T) {
		f := newUninitialized(t)
		_, err := f.svc.CreateChallenge(ctx, alice, defaultParams())
		assert.ErrorIs(t, err, ErrNotInitialized)
		assert.ErrorIs(t, f.svc.PauseProtocol(ctx, authority), ErrNotInitialized)
	})
}

func TestPause(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	key := f.create(t, alice, defaultParams())

	err := f.svc.PauseProtocol(ctx, alice)
	assert.ErrorIs(t, err, ErrUnauthorizedAuthority)
	assert.Equal(t, KindAuthorization, Classify(err))

	require.NoError(t, f.svc.PauseProtocol(ctx, authority))
	cfg, err := f.svc.Config(ctx)
	require.NoError(t, err)
	assert.True(t, cfg.Paused)

	_, err = f.svc.CreateChallenge(ctx, bob, defaultParams())
	assert.ErrorIs(t, err, ErrProtocolPaused)
	assert.Equal(t, uint64(initialBalance), f.balance(t, bob))

	// In-flight challenges keep running.
	f.mark(t, key)
	require.NoError(t, f.svc.UseGracePeriod(ctx, alice, key, "travel"))
	f.at(40 * chaintime.Day)
	_, err = f.svc.FinalizeChallenge(ctx, alice, key)
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.UnpauseProtocol(ctx, bob), ErrUnauthorizedAuthority)
	require.NoError(t, f.svc.UnpauseProtocol(ctx, authority))
	f.create(t, bob, defaultParams())

	var kinds []string
	for _, e := range f.events.Events() {
		kinds = append(kinds, e.Kind())
	}
	assert.Equal(t, []string{
		events.KindChallengeCreated,
		events.KindProtocolPaused,
		events.KindSessionCompleted,
		events.KindGracePeriodUsed,
		events.KindChallengeFinalized,
		events.KindProtocolUnpaused,
		events.KindChallengeCreated,
	}, kinds)
}

type failingSink struct{}

func (failingSink) Emit(context.Context, events.Envelope) error { return errors.New("sink down") }

func TestSinkFailureDoesNotFailOperation(t *testing.T) {
	f := newFixture(t)
	f.svc.sink = failingSink{}

	key, err := f.svc.CreateChallenge(context.Background(), alice, defaultParams())
	require.NoError(t, err)
	assert.Equal(t, state.StatusActive, f.challenge(t, key).Status)
}

func TestContextCancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.CreateChallenge(ctx, alice, defaultParams())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, KindInternal, Classify(err))
}

func TestClassify(t *testing.T) {
	wrap := func(err error) error { return fmt.Errorf("outer: %w", err) }

	tests := []struct {
		err  error
		want Kind
	}{
		{wrap(settlement.ErrInvalidPercentageDistribution), KindPolicy},
		{wrap(ErrDepositTooSmall), KindPolicy},
		{wrap(ErrDepositTooLarge), KindPolicy},
		{wrap(ErrInvalidSessionCount), KindPolicy},
		{wrap(ErrInvalidDuration), KindPolicy},
		{wrap(ErrInvalidChallengeType), KindPolicy},
		{wrap(verifying.ErrInvalidProofRef), KindPolicy},
		{wrap(verifying.ErrInvalidSessionDuration), KindPolicy},
		{wrap(verifying.ErrSessionTooSoon), KindPolicy},
		{wrap(state.ErrChallengeNotActive), KindState},
		{wrap(state.ErrChallengeExpired), KindState},
		{wrap(state.ErrAllSessionsCompleted), KindState},
		{wrap(ErrCannotFinalizeYet), KindState},
		{wrap(ErrNoGracePeriodsLeft), KindState},
		{wrap(rewards.ErrEpochNotReady), KindState},
		{wrap(rewards.ErrEpochAlreadyProcessed), KindState},
		{wrap(rewards.ErrAlreadyClaimedThisEpoch), KindState},
		{wrap(verifying.ErrUnauthorizedVerifier), KindAuthorization},
		{wrap(ErrUnauthorizedParticipant), KindAuthorization},
		{wrap(ErrUnauthorizedAuthority), KindAuthorization},
		{wrap(safemath.ErrOverflow), KindArithmetic},
		{wrap(chaintime.ErrTimeOverflow), KindArithmetic},
		{wrap(ledger.ErrInsufficientFunds), KindResource},
		{wrap(rewards.ErrInsufficientRewards), KindResource},
		{errors.New("disk on fire"), KindInternal},
		{nil, KindInternal},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.err), "%v", tt.err)
	}
	assert.Equal(t, "arithmetic", KindArithmetic.String())
}
