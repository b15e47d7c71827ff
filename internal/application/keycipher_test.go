package application

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyCipher_RoundTrip(t *testing.T) {
	cipher, err := NewKeyCipher(make([]byte, 32))
	require.NoError(t, err)

	external, err := cipher.Externalize("the-secret")
	require.NoError(t, err)
	assert.NotEqual(t, "the-secret", external)

	secret, err := cipher.Internalize(external)
	require.NoError(t, err)
	assert.Equal(t, "the-secret", secret)
}

func TestKeyCipher_ExternalFormIsURLSafe(t *testing.T) {
	cipher, err := NewKeyCipher(make([]byte, 32))
	require.NoError(t, err)

	external, err := cipher.Externalize("the-secret")
	require.NoError(t, err)

	assert.NotContains(t, external, "+")
	assert.NotContains(t, external, "/")
	assert.NotContains(t, external, "=")
}

func TestKeyCipher_TamperingDetected(t *testing.T) {
	cipher, err := NewKeyCipher(make([]byte, 32))
	require.NoError(t, err)

	external, err := cipher.Externalize("the-secret")
	require.NoError(t, err)

	// Flip one character of the ciphertext.
	tail := external[len(external)-1]
	flipped := "A"
	if tail == 'A' {
		flipped = "B"
	}
	tampered := external[:len(external)-1] + flipped

	_, err = cipher.Internalize(tampered)
	assert.ErrorIs(t, err, ErrInvalidEncoding)
}

func TestKeyCipher_TruncatedAndForeignInput(t *testing.T) {
	cipher, err := NewKeyCipher(make([]byte, 32))
	require.NoError(t, err)

	for _, input := range []string{
		"",
		"AAAA",
		"not base64url at all %%",
		strings.Repeat("A", 200),
	} {
		_, err := cipher.Internalize(input)
		assert.ErrorIs(t, err, ErrInvalidEncoding, "input %q", input)
	}
}

func TestKeyCipher_WrongKeyFails(t *testing.T) {
	keyA := make([]byte, 32)
	keyB := make([]byte, 32)
	keyB[0] = 1

	cipherA, err := NewKeyCipher(keyA)
	require.NoError(t, err)
	cipherB, err := NewKeyCipher(keyB)
	require.NoError(t, err)

	external, err := cipherA.Externalize("the-secret")
	require.NoError(t, err)

	_, err = cipherB.Internalize(external)
	assert.ErrorIs(t, err, ErrInvalidEncoding)
}

func TestKeyCipher_DisabledIsIdentity(t *testing.T) {
	cipher, err := NewKeyCipher(nil)
	require.NoError(t, err)

	external, err := cipher.Externalize("the-secret")
	require.NoError(t, err)
	assert.Equal(t, "the-secret", external)

	secret, err := cipher.Internalize("the-secret")
	require.NoError(t, err)
	assert.Equal(t, "the-secret", secret)
}

func TestKeyCipher_RejectsBadKeySize(t *testing.T) {
	_, err := NewKeyCipher(make([]byte, 31))
	assert.Error(t, err)
}
