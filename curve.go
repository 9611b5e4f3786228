package wastore

import (
	"crypto/ed25519"
	"crypto/rand"

	"golang.org/x/crypto/curve25519"

	"github.com/wastore/wastore/waerr"
)

// Curve is the cryptography collaborator. The store only composes its
// outputs: fresh Diffie-Hellman key pairs and signatures over serialized
// public keys. Inject an implementation backed by libsignal for full
// XEd25519 compatibility; DefaultCurve is sufficient for storage round-trips.
type Curve interface {
	GenerateKeyPair() (*KeyPair, error)
	Sign(privateKey, data []byte) ([]byte, error)
}

// DefaultCurve returns the built-in provider: X25519 key pairs with Ed25519
// signatures derived from the private scalar as seed.
func DefaultCurve() Curve { return defaultCurve{} }

type defaultCurve struct{}

func (defaultCurve) GenerateKeyPair() (*KeyPair, error) {
	priv := make([]byte, 32)
	if _, err := rand.Read(priv); err != nil {
		return nil, &waerr.ValidationError{Msg: "key generation failed", Cause: err}
	}
	// Clamp per RFC 7748.
	priv[0] &= 248
	priv[31] &= 127
	priv[31] |= 64

	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return nil, &waerr.ValidationError{Msg: "key generation failed", Cause: err}
	}
	return &KeyPair{Public: pub, Private: priv}, nil
}

func (defaultCurve) Sign(privateKey, data []byte) ([]byte, error) {
	if len(privateKey) != 32 {
		return nil, waerr.Validationf("private key must be 32 bytes, got %d", len(privateKey))
	}
	key := ed25519.NewKeyFromSeed(privateKey)
	return ed25519.Sign(key, data), nil
}
