package wastore

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/wastore/wastore/waerr"
	"github.com/wastore/wastore/wire"
)

// keyVersionDJB is the Signal key-type byte prepended to serialized
// Curve25519 public keys.
const keyVersionDJB = 0x05

// KeyPair is a Diffie-Hellman key pair as produced by the Curve collaborator.
type KeyPair struct {
	Public  wire.Buffer `json:"public"`
	Private wire.Buffer `json:"private"`
}

// SignedPreKey is a key pair signed by the identity key, with its numeric id
// and creation timestamp in milliseconds.
type SignedPreKey struct {
	KeyPair     *KeyPair    `json:"keyPair"`
	Signature   wire.Buffer `json:"signature"`
	KeyID       uint32      `json:"keyId"`
	TimestampMS int64       `json:"timestampMs"`
}

// AccountSettings holds per-account behavior toggles synced with the creds.
type AccountSettings struct {
	UnarchiveChats bool `json:"unarchiveChats"`
}

// Credentials is the singleton bundle of long-lived identity and registration
// material for one session. The identity, noise, ephemeral, and signed
// pre-key pairs are immutable for the life of the bundle; the counters are
// monotonically non-decreasing and mutated in place by the owning
// application as protocol events occur.
type Credentials struct {
	NoiseKey                 *KeyPair          `json:"noiseKey"`
	PairingEphemeralKeyPair  *KeyPair          `json:"pairingEphemeralKeyPair"`
	SignedIdentityKey        *KeyPair          `json:"signedIdentityKey"`
	SignedPreKey             *SignedPreKey     `json:"signedPreKey"`
	RegistrationID           uint32            `json:"registrationId"`
	AdvSecretKey             string            `json:"advSecretKey"`
	ProcessedHistoryMessages []json.RawMessage `json:"processedHistoryMessages"`
	NextPreKeyID             uint32            `json:"nextPreKeyId"`
	FirstUnuploadedPreKeyID  uint32            `json:"firstUnuploadedPreKeyId"`
	AccountSyncCounter       uint32            `json:"accountSyncCounter"`
	AccountSettings          AccountSettings   `json:"accountSettings"`
	DeviceID                 string            `json:"deviceId"`
	PhoneID                  string            `json:"phoneId"`
	IdentityID               wire.Buffer       `json:"identityId"`
	Registered               bool              `json:"registered"`
	BackupToken              wire.Buffer       `json:"backupToken"`

	// Populated after registration/pairing.
	PairingCode  string      `json:"pairingCode,omitempty"`
	LastPropHash string      `json:"lastPropHash,omitempty"`
	RoutingInfo  wire.Buffer `json:"routingInfo,omitempty"`
}

// NewCredentials bootstraps a fresh, internally consistent credential bundle.
// Pure construction, no I/O. Every call produces independent key material;
// any generation failure aborts with a ValidationError and no partial bundle.
func NewCredentials(curve Curve) (*Credentials, error) {
	identity, err := curve.GenerateKeyPair()
	if err != nil {
		return nil, &waerr.ValidationError{Msg: "bootstrap: identity key", Cause: err}
	}
	noise, err := curve.GenerateKeyPair()
	if err != nil {
		return nil, &waerr.ValidationError{Msg: "bootstrap: noise key", Cause: err}
	}
	ephemeral, err := curve.GenerateKeyPair()
	if err != nil {
		return nil, &waerr.ValidationError{Msg: "bootstrap: pairing ephemeral key", Cause: err}
	}
	signedPreKey, err := signKeyPair(curve, identity, 1)
	if err != nil {
		return nil, err
	}

	return &Credentials{
		NoiseKey:                 noise,
		PairingEphemeralKeyPair:  ephemeral,
		SignedIdentityKey:        identity,
		SignedPreKey:             signedPreKey,
		RegistrationID:           generateRegistrationID(),
		AdvSecretKey:             base64.StdEncoding.EncodeToString(randomBytes(32)),
		ProcessedHistoryMessages: []json.RawMessage{},
		NextPreKeyID:             1,
		FirstUnuploadedPreKeyID:  1,
		AccountSyncCounter:       0,
		AccountSettings:          AccountSettings{UnarchiveChats: false},
		DeviceID:                 uuid.NewString(),
		PhoneID:                  uuid.NewString(),
		IdentityID:               randomBytes(20),
		Registered:               false,
		BackupToken:              randomBytes(20),
	}, nil
}

// signKeyPair generates a pre-key pair and signs its Signal-serialized public
// key under the identity private key.
func signKeyPair(curve Curve, identity *KeyPair, keyID uint32) (*SignedPreKey, error) {
	pair, err := curve.GenerateKeyPair()
	if err != nil {
		return nil, &waerr.ValidationError{Msg: "bootstrap: signed pre-key", Cause: err}
	}
	serialized, err := serializePublicKey(pair.Public)
	if err != nil {
		return nil, err
	}
	sig, err := curve.Sign(identity.Private, serialized)
	if err != nil {
		return nil, &waerr.ValidationError{Msg: "bootstrap: pre-key signature", Cause: err}
	}
	return &SignedPreKey{
		KeyPair:     pair,
		Signature:   sig,
		KeyID:       keyID,
		TimestampMS: time.Now().UnixMilli(),
	}, nil
}

// serializePublicKey returns the 33-byte Signal form of a public key,
// prepending the version byte when the key is a raw 32-byte Curve25519 point.
func serializePublicKey(pub []byte) ([]byte, error) {
	switch len(pub) {
	case 32:
		out := make([]byte, 0, 33)
		out = append(out, keyVersionDJB)
		return append(out, pub...), nil
	case 33:
		if pub[0] != keyVersionDJB {
			return nil, waerr.Validationf("public key has unknown version byte 0x%02x", pub[0])
		}
		return pub, nil
	default:
		return nil, waerr.Validationf("public key must be 32 or 33 bytes, got %d", len(pub))
	}
}

// generateRegistrationID returns a masked 14-bit random registration ID.
func generateRegistrationID() uint32 {
	var buf [4]byte
	rand.Read(buf[:])
	return binary.BigEndian.Uint32(buf[:]) & 0x3FFF
}

func randomBytes(n int) []byte {
	buf := make([]byte, n)
	rand.Read(buf)
	return buf
}
