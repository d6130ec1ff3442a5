// Package ed25519 signs with the standard library and verifies with ZIP-215
// rules, so every implementation accepts the same set of signatures.
package ed25519

import (
	"crypto/ed25519"
	"fmt"
	"io"

	"github.com/hdevalence/ed25519consensus"

	"github.com/disciplinator/disciplinator/internal/crypto"
)

type (
	PublicKey  = ed25519.PublicKey
	PrivateKey = ed25519.PrivateKey
)

const (
	PublicKeySize  = ed25519.PublicKeySize
	PrivateKeySize = ed25519.PrivateKeySize
	SignatureSize  = ed25519.SignatureSize
	SeedSize       = ed25519.SeedSize
)

// GenerateKey uses the standard library's key generation.
func GenerateKey(rand io.Reader) (PublicKey, PrivateKey, error) {
	return ed25519.GenerateKey(rand)
}

func NewKeyFromSeed(seed []byte) PrivateKey {
	return ed25519.NewKeyFromSeed(seed)
}

func Sign(privateKey PrivateKey, message []byte) []byte {
	return ed25519.Sign(privateKey, message)
}

// Verify checks sig with ZIP-215 verification.
func Verify(publicKey PublicKey, message, sig []byte) bool {
	return len(publicKey) == PublicKeySize && ed25519consensus.Verify(publicKey, message, sig)
}

// IdentityOf returns the Identity of a private key.
func IdentityOf(key PrivateKey) (crypto.Identity, error) {
	if len(key) != PrivateKeySize {
		return crypto.Identity{}, fmt.Errorf("%w: private key has %d bytes", crypto.ErrInvalidIdentity, len(key))
	}
	return crypto.IdentityFromPublicKey(key.Public().(PublicKey))
}

// VerifyIdentity checks that id signed message.
func VerifyIdentity(id crypto.Identity, message, sig []byte) bool {
	return Verify(PublicKey(id[:]), message, sig)
}
