package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/disciplinator/disciplinator/internal/crypto"
	"github.com/disciplinator/disciplinator/internal/safemath"
	"github.com/disciplinator/disciplinator/internal/state/statekey"
	"github.com/disciplinator/disciplinator/pkg/db"
	"github.com/disciplinator/disciplinator/pkg/db/pebble"
	"github.com/disciplinator/disciplinator/pkg/log"
	"github.com/disciplinator/disciplinator/pkg/serialization"
)

// Ledger moves value between custodial balances. Transfer is atomic: it
// either debits the source and credits the destination or changes nothing.
type Ledger interface {
	Transfer(ctx context.Context, from, to crypto.Identity, amount uint64, asset crypto.Identity) error
	Balance(ctx context.Context, owner crypto.Identity) (uint64, error)
	Asset(ctx context.Context, id crypto.Identity) (Asset, error)
}

const (
	prefixAsset = statekey.LedgerChapterBase + iota
	prefixAccount
)

// Asset describes a fungible token.
type Asset struct {
	ID       crypto.Identity `cbor:"1,keyasint"`
	Decimals uint8           `cbor:"2,keyasint"`
}

// Account is a balance of a single asset held by an owner.
type Account struct {
	Owner   crypto.Identity `cbor:"1,keyasint"`
	Asset   crypto.Identity `cbor:"2,keyasint"`
	Balance uint64          `cbor:"3,keyasint"`
}

// KV is a Ledger kept in a key-value store. Every owner holds at most one
// account.
type KV struct {
	db  db.KVStore
	ser *serialization.Serializer
	mu  sync.Mutex
}

var _ Ledger = (*KV)(nil)

func NewKV(kv db.KVStore) (*KV, error) {
	ser, err := serialization.NewCanonical()
	if err != nil {
		return nil, err
	}
	return &KV{db: kv, ser: ser}, nil
}

func (l *KV) RegisterAsset(ctx context.Context, a Asset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	key := makeKey(prefixAsset, a.ID[:])
	exists, err := l.db.Has(key)
	if err != nil {
		return fmt.Errorf("check asset: %w", err)
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrAssetExists, a.ID)
	}
	return l.put(key, a)
}

func (l *KV) Asset(ctx context.Context, id crypto.Identity) (Asset, error) {
	if err := ctx.Err(); err != nil {
		return Asset{}, err
	}
	var a Asset
	if err := l.get(makeKey(prefixAsset, id[:]), &a); err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return Asset{}, fmt.Errorf("%w: %s", ErrUnknownAsset, id)
		}
		return Asset{}, err
	}
	return a, nil
}

// OpenAccount creates an empty account for owner holding asset.
func (l *KV) OpenAccount(ctx context.Context, owner, asset crypto.Identity) error {
	if _, err := l.Asset(ctx, asset); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	key := makeKey(prefixAccount, owner[:])
	exists, err := l.db.Has(key)
	if err != nil {
		return fmt.Errorf("check account: %w", err)
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrAccountExists, owner)
	}
	return l.put(key, Account{Owner: owner, Asset: asset})
}

func (l *KV) Account(ctx context.Context, owner crypto.Identity) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	return l.account(owner)
}

func (l *KV) Balance(ctx context.Context, owner crypto.Identity) (uint64, error) {
	acc, err := l.Account(ctx, owner)
	if err != nil {
		return 0, err
	}
	return acc.Balance, nil
}

// Mint credits amount of the account's own asset to owner.
func (l *KV) Mint(ctx context.Context, owner crypto.Identity, amount uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, err := l.account(owner)
	if err != nil {
		return err
	}
	balance, ok := safemath.Add(acc.Balance, amount)
	if !ok {
		return fmt.Errorf("%w: mint %d to %s", ErrBalanceOverflow, amount, owner)
	}
	acc.Balance = balance
	if err := l.put(makeKey(prefixAccount, owner[:]), acc); err != nil {
		return err
	}
	log.Ledger.Debug().Stringer("owner", owner).Uint64("amount", amount).Msg("minted")
	return nil
}

// Transfer debits from and credits to in one batch. Both accounts must hold
// asset and the source must cover amount.
func (l *KV) Transfer(ctx context.Context, from, to crypto.Identity, amount uint64, asset crypto.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	src, err := l.account(from)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	dst, err := l.account(to)
	if err != nil {
		return fmt.Errorf("destination: %w", err)
	}
	if src.Asset != asset || dst.Asset != asset {
		return fmt.Errorf("%w: transfer of %s between %s and %s accounts", ErrAssetMismatch, asset, src.Asset, dst.Asset)
	}
	if amount == 0 || from == to {
		return nil
	}
	if src.Balance < amount {
		return fmt.Errorf("%w: %s holds %d, needs %d", ErrInsufficientFunds, from, src.Balance, amount)
	}
	credited, ok := safemath.Add(dst.Balance, amount)
	if !ok {
		return fmt.Errorf("%w: credit %d to %s", ErrBalanceOverflow, amount, to)
	}
	src.Balance -= amount
	dst.Balance = credited

	batch := l.db.NewBatch()
	defer batch.Close()
	for _, acc := range []Account{src, dst} {
		b, err := l.ser.Encode(acc)
		if err != nil {
			return fmt.Errorf("encode account: %w", err)
		}
		if err := batch.Put(makeKey(prefixAccount, acc.Owner[:]), b); err != nil {
			return fmt.Errorf("stage account: %w", err)
		}
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("commit transfer: %w", err)
	}

	log.Ledger.Debug().
		Stringer("from", from).
		Stringer("to", to).
		Uint64("amount", amount).
		Msg("transferred")
	return nil
}

func (l *KV) account(owner crypto.Identity) (Account, error) {
	var acc Account
	if err := l.get(makeKey(prefixAccount, owner[:]), &acc); err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, owner)
		}
		return Account{}, err
	}
	return acc, nil
}

func (l *KV) get(key []byte, v any) error {
	b, err := l.db.Get(key)
	if err != nil {
		return err
	}
	if err := l.ser.Decode(b, v); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	return nil
}

func (l *KV) put(key []byte, v any) error {
	b, err := l.ser.Encode(v)
	if err != nil {
		return fmt.Errorf("encode %T: %w", v, err)
	}
	return l.db.Put(key, b)
}

// makeKey creates a key from a prefix and an owner or asset id
func makeKey(prefix byte, id []byte) []byte {
	key := make([]byte, 1+len(id))
	key[0] = prefix
	copy(key[1:], id)
	return key
}
