package ledger

import "errors"

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAssetMismatch     = errors.New("asset mismatch")
	ErrAccountNotFound   = errors.New("account not found")
	ErrAccountExists     = errors.New("account already exists")
	ErrUnknownAsset      = errors.New("unknown asset")
	ErrAssetExists       = errors.New("asset already registered")
	ErrBalanceOverflow   = errors.New("balance overflow")
)
