package application

import (
	"context"
	"sync"
	"time"

	"github.com/ericfisherdev/keygate/internal/domain/model"
	"github.com/ericfisherdev/keygate/internal/domain/port/driven"
)

// fakeKeyStore is an in-memory KeyStore with the same atomicity
// contract as the real adapters, so the services can be exercised
// without a database.
type fakeKeyStore struct {
	mu   sync.Mutex
	keys map[string]model.Key

	saveErr error
}

func newFakeKeyStore() *fakeKeyStore {
	return &fakeKeyStore{keys: make(map[string]model.Key)}
}

func (f *fakeKeyStore) Save(_ context.Context, key model.Key) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.saveErr != nil {
		return f.saveErr
	}
	if _, ok := f.keys[key.Secret]; ok {
		return driven.ErrDuplicateSecret
	}
	f.keys[key.Secret] = key
	return nil
}

func (f *fakeKeyStore) GetBySecret(_ context.Context, secret string) (*model.Key, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key, ok := f.keys[secret]
	if !ok {
		return nil, driven.ErrKeyNotFound
	}
	return &key, nil
}

func (f *fakeKeyStore) FindLatestByOwner(_ context.Context, owner string) (*model.Key, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var latest *model.Key
	for _, key := range f.keys {
		if key.Owner != owner {
			continue
		}
		if latest == nil || key.CreatedAt.After(latest.CreatedAt) {
			k := key
			latest = &k
		}
	}
	if latest == nil {
		return nil, driven.ErrKeyNotFound
	}
	return latest, nil
}

func (f *fakeKeyStore) Redeem(_ context.Context, secret string, now time.Time) (*model.Key, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key, ok := f.keys[secret]
	switch {
	case !ok:
		return nil, driven.ErrKeyNotFound
	case key.Redeemed:
		return nil, driven.ErrKeyAlreadyRedeemed
	case key.Expired(now):
		return nil, driven.ErrKeyExpired
	}

	key.Redeemed = true
	key.RedeemedAt = now
	f.keys[secret] = key
	return &key, nil
}

type fakeSessionStore struct {
	mu       sync.Mutex
	bindings map[string]model.SessionBinding
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{bindings: make(map[string]model.SessionBinding)}
}

func (f *fakeSessionStore) Bind(_ context.Context, binding model.SessionBinding) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.bindings[binding.SessionID] = binding
	return nil
}

func (f *fakeSessionStore) Get(_ context.Context, sessionID string) (*model.SessionBinding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	binding, ok := f.bindings[sessionID]
	if !ok {
		return nil, driven.ErrSessionNotFound
	}
	return &binding, nil
}

type fakeGateTokenStore struct {
	mu     sync.Mutex
	tokens map[string]model.GateToken

	saveErr error
}

func newFakeGateTokenStore() *fakeGateTokenStore {
	return &fakeGateTokenStore{tokens: make(map[string]model.GateToken)}
}

func (f *fakeGateTokenStore) Save(_ context.Context, token model.GateToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.saveErr != nil {
		return f.saveErr
	}
	f.tokens[token.Value] = token
	return nil
}

func (f *fakeGateTokenStore) Consume(_ context.Context, value string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	token, ok := f.tokens[value]
	switch {
	case !ok:
		return driven.ErrGateTokenNotFound
	case token.Used:
		return driven.ErrGateTokenUsed
	case token.Expired(now):
		return driven.ErrGateTokenExpired
	}

	token.Used = true
	f.tokens[value] = token
	return nil
}

type fakeLinkGate struct {
	gotURL string
	result string
	err    error
}

func (f *fakeLinkGate) Shorten(_ context.Context, returnURL string) (string, error) {
	f.gotURL = returnURL
	if f.err != nil {
		return "", f.err
	}
	return f.result, nil
}
