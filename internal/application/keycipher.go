package application

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// ErrInvalidEncoding is returned by Internalize for any value that was
// not produced by a prior Externalize call: truncated, edited, or
// foreign input all fail deterministically.
var ErrInvalidEncoding = errors.New("invalid key encoding")

// KeyCipher is the reversible transform between the stored key secret
// and the externally shown representation. The raw secret never
// appears in a URL or page; only the externalized form travels over
// the wire, so casual copy/paste or log leakage does not expose the
// store identity. Known limitation, documented rather than fixed: the
// transform is decryptable, so anyone holding the verification-side
// key material can recover raw secrets.
type KeyCipher struct {
	aead cipher.AEAD // nil when the cipher is disabled.
}

// NewKeyCipher creates a KeyCipher. key must be 32 bytes for
// AES-256-GCM, or nil to disable the transform entirely, in which case
// Externalize and Internalize are identity functions.
func NewKeyCipher(key []byte) (*KeyCipher, error) {
	if key == nil {
		return &KeyCipher{}, nil
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}

	return &KeyCipher{aead: aead}, nil
}

// Externalize encrypts a key secret for display. The result is
// base64url over nonce || ciphertext || tag, safe for query strings.
func (c *KeyCipher) Externalize(secret string) (string, error) {
	if c.aead == nil {
		return secret, nil
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	// Seal appends the ciphertext to nonce, producing: nonce || ciphertext || tag.
	sealed := c.aead.Seal(nonce, nonce, []byte(secret), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Internalize reverses Externalize. Any tampering fails with
// ErrInvalidEncoding; it never returns partial or wrong data.
func (c *KeyCipher) Internalize(external string) (string, error) {
	if c.aead == nil {
		return external, nil
	}

	data, err := base64.RawURLEncoding.DecodeString(external)
	if err != nil {
		return "", ErrInvalidEncoding
	}

	nonceSize := c.aead.NonceSize()
	if len(data) < nonceSize {
		return "", ErrInvalidEncoding
	}

	nonce, sealed := data[:nonceSize], data[nonceSize:]
	secret, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrInvalidEncoding
	}

	return string(secret), nil
}
