// Package signing authenticates operation requests before they reach the
// protocol. A request carries the signer, the operation name and its
// canonically encoded parameters, signed over a domain separated digest.
package signing

import (
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/disciplinator/disciplinator/internal/crypto"
	"github.com/disciplinator/disciplinator/internal/crypto/ed25519"
	"github.com/disciplinator/disciplinator/pkg/serialization"
)

const domain = "disciplinator/request/v1"

// Request is a signed operation.
type Request struct {
	Signer    crypto.Identity `cbor:"1,keyasint"`
	Operation string          `cbor:"2,keyasint"`
	Payload   []byte          `cbor:"3,keyasint"`
	Signature []byte          `cbor:"4,keyasint"`
}

// Signer signs requests with one key.
type Signer struct {
	key ed25519.PrivateKey
	id  crypto.Identity
	ser *serialization.Serializer
}

func NewSigner(key ed25519.PrivateKey) (*Signer, error) {
	id, err := ed25519.IdentityOf(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	ser, err := serialization.NewCanonical()
	if err != nil {
		return nil, err
	}
	return &Signer{key: key, id: id, ser: ser}, nil
}

// ParseSigner decodes a base58 private key.
func ParseSigner(s string) (*Signer, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	return NewSigner(ed25519.PrivateKey(b))
}

func (s *Signer) Identity() crypto.Identity {
	return s.id
}

// Sign encodes params and signs them under op.
func (s *Signer) Sign(op string, params any) (Request, error) {
	payload, err := s.ser.Encode(params)
	if err != nil {
		return Request{}, fmt.Errorf("encode %s params: %w", op, err)
	}
	digest := digest(op, payload)
	return Request{
		Signer:    s.id,
		Operation: op,
		Payload:   payload,
		Signature: ed25519.Sign(s.key, digest[:]),
	}, nil
}

// Open verifies r as a request for op and decodes its parameters. It returns
// the authenticated signer.
func Open[T any](r Request, op string) (crypto.Identity, T, error) {
	var params T
	if r.Operation != op {
		return crypto.Identity{}, params, fmt.Errorf("%w: got %q, want %q", ErrOperationMismatch, r.Operation, op)
	}
	digest := digest(r.Operation, r.Payload)
	if !ed25519.VerifyIdentity(r.Signer, digest[:], r.Signature) {
		return crypto.Identity{}, params, fmt.Errorf("%w: %s by %s", ErrInvalidSignature, op, r.Signer)
	}
	ser, err := serialization.NewCanonical()
	if err != nil {
		return crypto.Identity{}, params, err
	}
	if err := ser.Decode(r.Payload, &params); err != nil {
		return crypto.Identity{}, params, fmt.Errorf("decode %s params: %w", op, err)
	}
	return r.Signer, params, nil
}

func digest(op string, payload []byte) crypto.Hash {
	return crypto.HashData([]byte(domain), []byte{0}, []byte(op), []byte{0}, payload)
}
