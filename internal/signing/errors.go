package signing

import "errors"

var (
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrInvalidPrivateKey = errors.New("invalid private key")
	ErrOperationMismatch = errors.New("signed operation does not match")
)
