// Package secrets seals account credentials before they reach the database.
package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

// Box seals and opens secrets with a key derived from a passphrase
type Box struct {
	key [32]byte
}

// NewBox derives the sealing key from passphrase
func NewBox(passphrase string) *Box {
	return &Box{key: blake2b.Sum256([]byte(passphrase))}
}

// Seal encrypts plaintext with a random nonce and returns it base64 encoded
func (b *Box) Seal(plaintext string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &b.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal
func (b *Box) Open(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode sealed secret: %w", err)
	}
	if len(raw) < nonceSize {
		return "", fmt.Errorf("sealed secret too short")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &b.key)
	if !ok {
		return "", fmt.Errorf("failed to open sealed secret")
	}
	return string(plain), nil
}

// Fingerprint returns a keyed hash of a secret, stable across seals, for equality lookups
func (b *Box) Fingerprint(secret string) string {
	h, _ := blake2b.New256(b.key[:])
	h.Write([]byte(secret))
	return hex.EncodeToString(h.Sum(nil))
}
