package curve

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestGenerateKeyPair(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}

	if len(kp.PublicText()) != EncodedKeySize {
		t.Errorf("public text length = %d, want %d", len(kp.PublicText()), EncodedKeySize)
	}
	if len(kp.SecretText()) != EncodedKeySize {
		t.Errorf("secret text length = %d, want %d", len(kp.SecretText()), EncodedKeySize)
	}

	pub, err := PublicFromSecret(kp.Secret)
	if err != nil {
		t.Fatalf("PublicFromSecret failed: %v", err)
	}
	if pub != kp.Public {
		t.Error("derived public key does not match generated key")
	}
}

func TestGenerateKeyPairDeterministicReader(t *testing.T) {
	seed := bytes.Repeat([]byte{0x42}, KeySize)

	a, err := generateKeyPair(bytes.NewReader(seed))
	if err != nil {
		t.Fatalf("generateKeyPair failed: %v", err)
	}
	b, err := generateKeyPair(bytes.NewReader(seed))
	if err != nil {
		t.Fatalf("generateKeyPair failed: %v", err)
	}
	if a.Public != b.Public {
		t.Error("same seed produced different public keys")
	}

	if _, err := generateKeyPair(bytes.NewReader(seed[:10])); err == nil {
		t.Error("expected error for short random source")
	}
}

func TestParseKey(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}

	k, err := ParseKey(kp.PublicText())
	if err != nil {
		t.Fatalf("ParseKey failed: %v", err)
	}
	if k != kp.Public {
		t.Error("parsed key differs from original")
	}

	for _, bad := range []string{"", "short", kp.PublicText()[:39] + "\""} {
		if _, err := ParseKey(bad); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("ParseKey(%q) error = %v, want ErrInvalidKey", bad, err)
		}
	}
}

func TestKeyFromBytes(t *testing.T) {
	if _, err := KeyFromBytes(make([]byte, 31)); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("KeyFromBytes(31 bytes) error = %v, want ErrInvalidKey", err)
	}
	k, err := KeyFromBytes(bytes.Repeat([]byte{1}, KeySize))
	if err != nil {
		t.Fatalf("KeyFromBytes failed: %v", err)
	}
	if k[0] != 1 || k[KeySize-1] != 1 {
		t.Error("KeyFromBytes did not copy input")
	}
}

func TestVouch(t *testing.T) {
	server, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}
	client, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}
	other, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}

	nonce, sealed, err := SealVouch(server.Public, client.Secret)
	if err != nil {
		t.Fatalf("SealVouch failed: %v", err)
	}

	if err := OpenVouch(sealed, nonce[:], client.Public, server.Secret); err != nil {
		t.Errorf("OpenVouch failed for the right keys: %v", err)
	}

	// Claiming another client's public key must fail.
	if err := OpenVouch(sealed, nonce[:], other.Public, server.Secret); !errors.Is(err, ErrVouchRejected) {
		t.Errorf("OpenVouch with wrong client key = %v, want ErrVouchRejected", err)
	}

	// A vouch addressed to another server must fail.
	nonce, sealed, err = SealVouch(other.Public, client.Secret)
	if err != nil {
		t.Fatalf("SealVouch failed: %v", err)
	}
	if err := OpenVouch(sealed, nonce[:], client.Public, server.Secret); !errors.Is(err, ErrVouchRejected) {
		t.Errorf("OpenVouch for another server = %v, want ErrVouchRejected", err)
	}

	if err := OpenVouch(sealed, nonce[:5], client.Public, server.Secret); !errors.Is(err, ErrVouchRejected) {
		t.Errorf("OpenVouch with short nonce = %v, want ErrVouchRejected", err)
	}
}

func TestKeyTextReferenceVector(t *testing.T) {
	var k Key
	copy(k[:], []byte{0x86, 0x4F, 0xD2, 0x6F, 0xB5, 0x59, 0xF7, 0x5B})

	want := "HelloWorld" + strings.Repeat("0", 30)
	if got := k.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	back, err := ParseKey(want)
	if err != nil {
		t.Fatalf("ParseKey failed: %v", err)
	}
	if back != k {
		t.Errorf("ParseKey = %x, want %x", back, k)
	}
}
