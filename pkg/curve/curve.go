// Package curve provides the key material of the CURVE mechanism.
//
// Keys are 32-byte Curve25519 values. Their printable form is the 40-character
// Z85 encoding used in socket options and configuration files.
package curve

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/tilinna/z85"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"
)

const (
	// KeySize is the size of a raw public or secret key.
	KeySize = 32

	// EncodedKeySize is the length of a Z85-encoded key.
	EncodedKeySize = 40

	// NonceSize is the size of a vouch nonce.
	NonceSize = 24
)

// Key errors.
var (
	// ErrInvalidKey indicates key text that does not decode to a 32-byte key.
	ErrInvalidKey = errors.New("invalid curve key")

	// ErrVouchRejected indicates a vouch that does not open with the given keys.
	ErrVouchRejected = errors.New("vouch rejected")
)

// Key is a raw Curve25519 key.
type Key [KeySize]byte

// String returns the Z85 text of the key.
func (k Key) String() string {
	var text [EncodedKeySize]byte
	_, _ = z85.Encode(text[:], k[:])
	return string(text[:])
}

// KeyPair holds a public key and its secret key.
type KeyPair struct {
	Public Key
	Secret Key
}

// GenerateKeyPair creates a new random key pair.
func GenerateKeyPair() (*KeyPair, error) {
	return generateKeyPair(rand.Reader)
}

func generateKeyPair(r io.Reader) (*KeyPair, error) {
	var kp KeyPair
	if _, err := io.ReadFull(r, kp.Secret[:]); err != nil {
		return nil, fmt.Errorf("failed to read random secret: %w", err)
	}
	pub, err := PublicFromSecret(kp.Secret)
	if err != nil {
		return nil, err
	}
	kp.Public = pub
	return &kp, nil
}

// PublicText returns the Z85 text of the public key.
func (kp *KeyPair) PublicText() string {
	return kp.Public.String()
}

// SecretText returns the Z85 text of the secret key.
func (kp *KeyPair) SecretText() string {
	return kp.Secret.String()
}

// PublicFromSecret derives the public key belonging to secret.
func PublicFromSecret(secret Key) (Key, error) {
	var pub Key
	out, err := curve25519.X25519(secret[:], curve25519.Basepoint)
	if err != nil {
		return pub, fmt.Errorf("failed to derive public key: %w", err)
	}
	copy(pub[:], out)
	return pub, nil
}

// ParseKey decodes a 40-character Z85 key.
func ParseKey(text string) (Key, error) {
	var k Key
	if len(text) != EncodedKeySize {
		return k, fmt.Errorf("%w: length %d, want %d", ErrInvalidKey, len(text), EncodedKeySize)
	}
	if _, err := z85.Decode(k[:], []byte(text)); err != nil {
		return Key{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return k, nil
}

// KeyFromBytes copies a raw 32-byte key.
func KeyFromBytes(raw []byte) (Key, error) {
	var k Key
	if len(raw) != KeySize {
		return k, fmt.Errorf("%w: %d bytes, want %d", ErrInvalidKey, len(raw), KeySize)
	}
	copy(k[:], raw)
	return k, nil
}

// SealVouch proves possession of clientSecret to the holder of the server
// secret key. The sealed box carries the server public key so the server
// can check the client addressed it.
func SealVouch(serverPublic, clientSecret Key) (nonce [NonceSize]byte, sealed []byte, err error) {
	if _, err = io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nonce, nil, fmt.Errorf("failed to read nonce: %w", err)
	}
	peer := [KeySize]byte(serverPublic)
	priv := [KeySize]byte(clientSecret)
	sealed = box.Seal(nil, serverPublic[:], &nonce, &peer, &priv)
	return nonce, sealed, nil
}

// OpenVouch verifies a vouch sealed by SealVouch.
func OpenVouch(sealed []byte, nonce []byte, clientPublic, serverSecret Key) error {
	if len(nonce) != NonceSize {
		return fmt.Errorf("%w: nonce size %d", ErrVouchRejected, len(nonce))
	}
	var n [NonceSize]byte
	copy(n[:], nonce)

	peer := [KeySize]byte(clientPublic)
	priv := [KeySize]byte(serverSecret)
	plain, ok := box.Open(nil, sealed, &n, &peer, &priv)
	if !ok {
		return ErrVouchRejected
	}

	serverPublic, err := PublicFromSecret(serverSecret)
	if err != nil {
		return err
	}
	if len(plain) != KeySize || Key(plain) != serverPublic {
		return fmt.Errorf("%w: vouch addressed to another server", ErrVouchRejected)
	}
	return nil
}
