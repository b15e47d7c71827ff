package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/keygate/internal/domain/model"
)

func seedKey(t *testing.T, keys *fakeKeyStore, secret string, now time.Time) model.Key {
	t.Helper()

	key := model.Key{
		Secret:         secret,
		Owner:          "identity-a",
		CreatedAt:      now,
		ExpiresAt:      now.Add(24 * time.Hour),
		NextIssuanceAt: now.Add(6 * time.Hour),
	}
	require.NoError(t, keys.Save(context.Background(), key))
	return key
}

func newRedeemServiceAt(t *testing.T, keys *fakeKeyStore, cipher *KeyCipher, at time.Time) *RedeemService {
	t.Helper()

	if cipher == nil {
		var err error
		cipher, err = NewKeyCipher(nil)
		require.NoError(t, err)
	}

	svc := NewRedeemService(keys, cipher)
	svc.now = func() time.Time { return at }
	return svc
}

func TestRedeemService_ValidThenUsed(t *testing.T) {
	keys := newFakeKeyStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	key := seedKey(t, keys, "secret-1", now)
	svc := newRedeemServiceAt(t, keys, nil, now.Add(time.Hour))
	ctx := context.Background()

	result, err := svc.Redeem(ctx, "secret-1")
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, key.ExpiresAt, result.ExpiresAt)

	// Second presentation of the same key.
	result, err = svc.Redeem(ctx, "secret-1")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, ReasonAlreadyUsed, result.Reason)
}

func TestRedeemService_UnknownKey(t *testing.T) {
	keys := newFakeKeyStore()
	svc := newRedeemServiceAt(t, keys, nil, time.Now().UTC())

	result, err := svc.Redeem(context.Background(), "no-such-key")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, ReasonNotFound, result.Reason)
}

func TestRedeemService_ExpiredKey(t *testing.T) {
	keys := newFakeKeyStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seedKey(t, keys, "secret-1", now)
	svc := newRedeemServiceAt(t, keys, nil, now.Add(25*time.Hour))

	result, err := svc.Redeem(context.Background(), "secret-1")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, ReasonExpired, result.Reason)
}

func TestRedeemService_CipheredKeyRoundTrip(t *testing.T) {
	keys := newFakeKeyStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seedKey(t, keys, "secret-1", now)

	cipher, err := NewKeyCipher(make([]byte, 32))
	require.NoError(t, err)
	svc := newRedeemServiceAt(t, keys, cipher, now.Add(time.Hour))

	external, err := cipher.Externalize("secret-1")
	require.NoError(t, err)

	result, err := svc.Redeem(context.Background(), external)
	require.NoError(t, err)
	assert.True(t, result.Valid)

	// The raw store secret is not redeemable when the cipher is on.
	result, err = svc.Redeem(context.Background(), "secret-1")
	require.NoError(t, err)
	assert.Equal(t, ReasonInvalidEncoding, result.Reason)
}

func TestRedeemService_TamperedExternalValue(t *testing.T) {
	keys := newFakeKeyStore()
	cipher, err := NewKeyCipher(make([]byte, 32))
	require.NoError(t, err)
	svc := newRedeemServiceAt(t, keys, cipher, time.Now().UTC())

	result, err := svc.Redeem(context.Background(), "!!not-base64url!!")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, ReasonInvalidEncoding, result.Reason)
}

func TestRedeemService_ConcurrentSingleWinner(t *testing.T) {
	keys := newFakeKeyStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seedKey(t, keys, "secret-1", now)
	svc := newRedeemServiceAt(t, keys, nil, now.Add(time.Hour))

	const workers = 16
	results := make([]RedeemResult, workers)

	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := svc.Redeem(context.Background(), "secret-1")
			assert.NoError(t, err)
			results[i] = result
		}()
	}
	wg.Wait()

	var wins int
	for _, result := range results {
		if result.Valid {
			wins++
		} else {
			assert.Equal(t, ReasonAlreadyUsed, result.Reason)
		}
	}
	assert.Equal(t, 1, wins)
}

func TestRedeemService_StoreFailureSurfaces(t *testing.T) {
	keys := newFakeKeyStore()
	svc := newRedeemServiceAt(t, keys, nil, time.Now().UTC())
	svc.keys = failingKeyStore{}

	_, err := svc.Redeem(context.Background(), "secret-1")
	assert.Error(t, err)
}

// failingKeyStore simulates an unreachable backing store.
type failingKeyStore struct{}

func (failingKeyStore) Save(context.Context, model.Key) error { return errors.New("store down") }
func (failingKeyStore) GetBySecret(context.Context, string) (*model.Key, error) {
	return nil, errors.New("store down")
}
func (failingKeyStore) FindLatestByOwner(context.Context, string) (*model.Key, error) {
	return nil, errors.New("store down")
}
func (failingKeyStore) Redeem(context.Context, string, time.Time) (*model.Key, error) {
	return nil, errors.New("store down")
}
