package protocol

import (
	"context"
	"errors"
	"fmt"

	"github.com/disciplinator/disciplinator/internal/crypto"
	"github.com/disciplinator/disciplinator/internal/events"
	"github.com/disciplinator/disciplinator/internal/ledger"
	"github.com/disciplinator/disciplinator/internal/settlement"
	"github.com/disciplinator/disciplinator/internal/state"
)

const (
	// RequiredDecimals is the precision deposits are denominated in.
	RequiredDecimals = 6

	DefaultMinDeposit uint64 = 5_000_000      // 5 units
	DefaultMaxDeposit uint64 = 10_000_000_000 // 10,000 units
)

type InitParams struct {
	FeePct     uint8
	RewardPct  uint8
	CharityPct uint8
	Treasury   crypto.Identity
	Asset      crypto.Identity
	// Zero deposit bounds take the defaults.
	MinDeposit uint64
	MaxDeposit uint64
}

// Initialize creates the protocol configuration, the reward state and the
// custodial accounts. It succeeds once.
func (s *Service) Initialize(ctx context.Context, authority crypto.Identity, p InitParams) (state.ProtocolConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.initialize(ctx, authority, p)
	if err != nil {
		return cfg, s.rejected("initialize", err)
	}
	s.log.Info().
		Stringer("authority", authority).
		Stringer("asset", p.Asset).
		Uint8("fee_pct", cfg.FeePct).
		Uint8("reward_pct", cfg.RewardPct).
		Uint8("charity_pct", cfg.CharityPct).
		Msg("protocol initialized")
	return cfg, nil
}

func (s *Service) initialize(ctx context.Context, authority crypto.Identity, p InitParams) (state.ProtocolConfig, error) {
	if err := ctx.Err(); err != nil {
		return state.ProtocolConfig{}, err
	}
	if _, err := s.config(); err == nil {
		return state.ProtocolConfig{}, ErrAlreadyInitialized
	} else if !errors.Is(err, ErrNotInitialized) {
		return state.ProtocolConfig{}, err
	}

	if err := settlement.ValidateSplit(p.FeePct, p.RewardPct, p.CharityPct); err != nil {
		return state.ProtocolConfig{}, err
	}
	if p.MinDeposit == 0 {
		p.MinDeposit = DefaultMinDeposit
	}
	if p.MaxDeposit == 0 {
		p.MaxDeposit = DefaultMaxDeposit
	}
	if p.MinDeposit > p.MaxDeposit {
		return state.ProtocolConfig{}, fmt.Errorf("%w: %d > %d", ErrInvalidDepositBounds, p.MinDeposit, p.MaxDeposit)
	}
	asset, err := s.ledger.Asset(ctx, p.Asset)
	if err != nil {
		return state.ProtocolConfig{}, err
	}
	if asset.Decimals != RequiredDecimals {
		return state.ProtocolConfig{}, fmt.Errorf("%w: got %d", ErrInvalidDecimals, asset.Decimals)
	}

	cfg := state.ProtocolConfig{
		Authority:    authority,
		Treasury:     p.Treasury,
		Asset:        p.Asset,
		FeePct:       p.FeePct,
		RewardPct:    p.RewardPct,
		CharityPct:   p.CharityPct,
		MinDeposit:   p.MinDeposit,
		MaxDeposit:   p.MaxDeposit,
		Vault:        VaultIdentity,
		RewardsVault: RewardsVaultIdentity,
		ReserveVault: ReserveVaultIdentity,
	}

	txn, err := s.store.Begin()
	if err != nil {
		return state.ProtocolConfig{}, err
	}
	defer txn.Discard()
	if err := txn.CreateConfig(cfg); err != nil {
		return state.ProtocolConfig{}, err
	}
	if err := txn.CreateRewardState(state.RewardState{NextEpochTime: s.clock.Now()}); err != nil {
		return state.ProtocolConfig{}, err
	}

	// Empty accounts left behind by an earlier failed attempt are reused.
	for _, owner := range []crypto.Identity{cfg.Vault, cfg.RewardsVault, cfg.ReserveVault} {
		if err := s.ledger.OpenAccount(ctx, owner, cfg.Asset); err != nil && !errors.Is(err, ledger.ErrAccountExists) {
			return state.ProtocolConfig{}, fmt.Errorf("open custodial account %s: %w", owner, err)
		}
	}
	if err := txn.Commit(); err != nil {
		return state.ProtocolConfig{}, err
	}
	return cfg, nil
}

// PauseProtocol stops challenge creation. Running challenges are unaffected.
func (s *Service) PauseProtocol(ctx context.Context, signer crypto.Identity) error {
	return s.setPaused(ctx, signer, true)
}

func (s *Service) UnpauseProtocol(ctx context.Context, signer crypto.Identity) error {
	return s.setPaused(ctx, signer, false)
}

func (s *Service) setPaused(ctx context.Context, signer crypto.Identity, paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	op := "unpause"
	if paused {
		op = "pause"
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	cfg, err := s.config()
	if err != nil {
		return s.rejected(op, err)
	}
	if signer != cfg.Authority {
		return s.rejected(op, fmt.Errorf("%w: %s", ErrUnauthorizedAuthority, signer))
	}

	cfg.Paused = paused
	txn, err := s.store.Begin()
	if err != nil {
		return err
	}
	defer txn.Discard()
	if err := txn.PutConfig(cfg); err != nil {
		return err
	}
	if err := txn.Commit(); err != nil {
		return err
	}

	now := s.clock.Now()
	if paused {
		s.emit(ctx, events.ProtocolPaused{Authority: signer}, now)
	} else {
		s.emit(ctx, events.ProtocolUnpaused{Authority: signer}, now)
	}
	s.log.Info().Bool("paused", paused).Msg("protocol pause flag changed")
	return nil
}
