package wastore

import (
	"bytes"
	"errors"
	"testing"

	"github.com/wastore/wastore/waerr"
)

func TestNewCredentialsShape(t *testing.T) {
	creds, err := NewCredentials(DefaultCurve())
	if err != nil {
		t.Fatal(err)
	}

	for name, kp := range map[string]*KeyPair{
		"identity":  creds.SignedIdentityKey,
		"noise":     creds.NoiseKey,
		"ephemeral": creds.PairingEphemeralKeyPair,
	} {
		if kp == nil {
			t.Fatalf("%s key pair missing", name)
		}
		if len(kp.Public) != 32 || len(kp.Private) != 32 {
			t.Errorf("%s key pair has wrong lengths: %d/%d", name, len(kp.Public), len(kp.Private))
		}
	}

	spk := creds.SignedPreKey
	if spk == nil || spk.KeyPair == nil {
		t.Fatal("signed pre-key missing")
	}
	if spk.KeyID != 1 {
		t.Errorf("signed pre-key id: got %d, want 1", spk.KeyID)
	}
	if len(spk.Signature) == 0 {
		t.Error("signed pre-key has no signature")
	}
	if spk.TimestampMS == 0 {
		t.Error("signed pre-key has no timestamp")
	}

	if creds.RegistrationID > 0x3FFF {
		t.Errorf("registration id %d exceeds 14 bits", creds.RegistrationID)
	}
	if creds.AdvSecretKey == "" {
		t.Error("advSecretKey empty")
	}
	if creds.NextPreKeyID != 1 || creds.FirstUnuploadedPreKeyID != 1 {
		t.Errorf("counters: next=%d firstUnuploaded=%d", creds.NextPreKeyID, creds.FirstUnuploadedPreKeyID)
	}
	if creds.Registered {
		t.Error("fresh bundle must not be registered")
	}
	if creds.DeviceID == "" || creds.PhoneID == "" {
		t.Error("device/phone identifiers missing")
	}
	if len(creds.IdentityID) != 20 || len(creds.BackupToken) != 20 {
		t.Errorf("token lengths: identity=%d backup=%d", len(creds.IdentityID), len(creds.BackupToken))
	}
}

func TestNewCredentialsIndependent(t *testing.T) {
	a, err := NewCredentials(DefaultCurve())
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewCredentials(DefaultCurve())
	if err != nil {
		t.Fatal(err)
	}

	pairs := [][2][]byte{
		{a.SignedIdentityKey.Public, b.SignedIdentityKey.Public},
		{a.NoiseKey.Public, b.NoiseKey.Public},
		{a.PairingEphemeralKeyPair.Public, b.PairingEphemeralKeyPair.Public},
		{a.SignedPreKey.KeyPair.Public, b.SignedPreKey.KeyPair.Public},
		{a.IdentityID, b.IdentityID},
		{a.BackupToken, b.BackupToken},
	}
	for i, p := range pairs {
		if bytes.Equal(p[0], p[1]) {
			t.Errorf("pair %d: two bootstraps share key material", i)
		}
	}
	if a.AdvSecretKey == b.AdvSecretKey {
		t.Error("advSecretKey reused across bootstraps")
	}
	if a.DeviceID == b.DeviceID {
		t.Error("deviceId reused across bootstraps")
	}
}

// brokenCurve fails after a configurable number of successful key pairs.
type brokenCurve struct {
	remaining int
}

func (c *brokenCurve) GenerateKeyPair() (*KeyPair, error) {
	if c.remaining <= 0 {
		return nil, errors.New("entropy exhausted")
	}
	c.remaining--
	return DefaultCurve().GenerateKeyPair()
}

func (c *brokenCurve) Sign(priv, data []byte) ([]byte, error) {
	return DefaultCurve().Sign(priv, data)
}

func TestNewCredentialsGenerationFailure(t *testing.T) {
	for failAt := 0; failAt < 4; failAt++ {
		creds, err := NewCredentials(&brokenCurve{remaining: failAt})
		if err == nil {
			t.Fatalf("failAt=%d: expected error", failAt)
		}
		if creds != nil {
			t.Errorf("failAt=%d: partial bundle returned", failAt)
		}
		var verr *waerr.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("failAt=%d: expected ValidationError, got %T", failAt, err)
		}
	}
}

func TestSerializePublicKey(t *testing.T) {
	raw := bytes.Repeat([]byte{7}, 32)
	out, err := serializePublicKey(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 33 || out[0] != keyVersionDJB {
		t.Fatalf("serialized form: %x", out[:4])
	}
	if !bytes.Equal(out[1:], raw) {
		t.Error("key bytes mangled")
	}

	// Already-serialized input passes through.
	again, err := serializePublicKey(out)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(again, out) {
		t.Error("33-byte form not preserved")
	}

	if _, err := serializePublicKey(raw[:16]); err == nil {
		t.Error("expected error for short key")
	}
	bad := bytes.Clone(out)
	bad[0] = 0x07
	if _, err := serializePublicKey(bad); err == nil {
		t.Error("expected error for unknown version byte")
	}
}

func TestDefaultCurveSign(t *testing.T) {
	kp, err := DefaultCurve().GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	sig, err := DefaultCurve().Sign(kp.Private, []byte("payload"))
	if err != nil {
		t.Fatal(err)
	}
	if len(sig) != 64 {
		t.Errorf("signature length: got %d, want 64", len(sig))
	}
	if _, err := DefaultCurve().Sign([]byte("short"), []byte("payload")); err == nil {
		t.Error("expected error for short private key")
	}
}
