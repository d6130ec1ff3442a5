package crypto

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"io"

	"github.com/mr-tron/base58"
)

var ErrInvalidIdentity = errors.New("invalid identity")

// Identity is the 32 byte ed25519 public key of a participant, verifier,
// authority or custodial account owner. Signature checks happen in the host,
// the protocol only compares identities.
type Identity [IdentitySize]byte

// IdentityFromPublicKey converts an ed25519 public key into an Identity.
func IdentityFromPublicKey(pub ed25519.PublicKey) (Identity, error) {
	if len(pub) != ed25519.PublicKeySize {
		return Identity{}, fmt.Errorf("%w: public key has %d bytes", ErrInvalidIdentity, len(pub))
	}
	var id Identity
	copy(id[:], pub)
	return id, nil
}

// GenerateIdentity creates a fresh ed25519 key pair and returns its Identity.
func GenerateIdentity(rand io.Reader) (Identity, ed25519.PrivateKey, error) {
	pub, prv, err := ed25519.GenerateKey(rand)
	if err != nil {
		return Identity{}, nil, err
	}
	id, err := IdentityFromPublicKey(pub)
	return id, prv, err
}

// DeriveIdentity returns a deterministic, keyless identity for program-owned
// accounts such as vaults.
func DeriveIdentity(seeds ...[]byte) Identity {
	return Identity(HashData(seeds...))
}

// ParseIdentity decodes the base58 text form of an Identity.
func ParseIdentity(s string) (Identity, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}
	if len(b) != IdentitySize {
		return Identity{}, fmt.Errorf("%w: decoded %d bytes", ErrInvalidIdentity, len(b))
	}
	return Identity(b), nil
}

func (id Identity) String() string {
	return base58.Encode(id[:])
}

func (id Identity) IsZero() bool {
	return id == Identity{}
}

// MarshalText implements encoding.TextMarshaler.
func (id Identity) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *Identity) UnmarshalText(text []byte) error {
	parsed, err := ParseIdentity(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
