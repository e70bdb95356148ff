// Package cryptutil encrypts derived private keys at rest, using
// golang.org/x/crypto's chacha20poly1305 and hkdf subpackages.
package cryptutil

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// AEAD seals/opens private key material with a key derived from the
// operator-supplied master encryption key via HKDF-SHA256, so the raw
// master key is never used directly as a cipher key.
type AEAD struct {
	aead cipherAEAD
}

type cipherAEAD interface {
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	NonceSize() int
}

// NewAEAD derives a 256-bit ChaCha20-Poly1305 key from masterKey via
// HKDF, labeled so it can never collide with a key derived for a
// different purpose from the same master secret.
func NewAEAD(masterKey []byte) (*AEAD, error) {
	kdf := hkdf.New(sha256.New, masterKey, nil, []byte("wopay-private-key-at-rest-v1"))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive encryption key: %w", err)
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("construct aead cipher: %w", err)
	}
	return &AEAD{aead: aead}, nil
}

// Seal encrypts plaintext, prefixing a fresh random nonce to the
// returned ciphertext.
func (a *AEAD) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, a.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return a.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open reverses Seal: it expects the nonce prefixed to ciphertext.
func (a *AEAD) Open(ciphertext []byte) ([]byte, error) {
	nonceSize := a.aead.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext shorter than nonce")
	}
	nonce, sealed := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := a.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}
