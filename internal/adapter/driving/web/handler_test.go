package web

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/keygate/internal/adapter/driven/flatfile"
	"github.com/ericfisherdev/keygate/internal/application"
	"github.com/ericfisherdev/keygate/internal/domain/model"
)

type captureGate struct {
	returnURL string
}

func (g *captureGate) Shorten(_ context.Context, returnURL string) (string, error) {
	g.returnURL = returnURL
	return "https://gate.example/abc", nil
}

type webFixture struct {
	handler http.Handler
	store   *flatfile.Store
	gateSvc *application.GateService
	gate    *captureGate
	fp      *application.Fingerprinter
}

func newWebFixture(t *testing.T, notice NoticeHTML) *webFixture {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	store := flatfile.NewStore(filepath.Join(t.TempDir(), "keygate.json"), logger)

	cipher, err := application.NewKeyCipher(nil)
	require.NoError(t, err)

	binder := application.NewSessionBinder(store.Sessions(), []byte("0123456789abcdef0123456789abcdef"), 24*time.Hour)
	issueSvc := application.NewIssueService(store.Keys(), binder, 24*time.Hour, 6*time.Hour)
	gate := &captureGate{}
	gateSvc := application.NewGateService(store.GateTokens(), gate, "https://keys.example.com", 10*time.Minute)
	fp := application.NewFingerprinter(true)

	h := NewHandler(issueSvc, gateSvc, binder, cipher, fp, notice, logger)
	mux := http.NewServeMux()
	RegisterRoutes(mux, h)

	return &webFixture{handler: mux, store: store, gateSvc: gateSvc, gate: gate, fp: fp}
}

// passGate runs the Begin leg and returns the correlation token a real
// visitor would carry back.
func (f *webFixture) passGate(t *testing.T) string {
	t.Helper()

	_, err := f.gateSvc.Begin(context.Background())
	require.NoError(t, err)

	parsed, err := url.Parse(f.gate.returnURL)
	require.NoError(t, err)
	token := parsed.Query().Get("token")
	require.NotEmpty(t, token)
	return token
}

func (f *webFixture) get(t *testing.T, target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("User-Agent", "test-agent")
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

// identity mirrors what the handler derives for httptest requests.
func (f *webFixture) identity() string {
	return f.fp.Derive("192.0.2.1:1234", "", "test-agent")
}

func TestGenKey_IssuesKey(t *testing.T) {
	f := newWebFixture(t, "")
	token := f.passGate(t)

	rec := f.get(t, "/genkey?token="+token)

	require.Equal(t, http.StatusOK, rec.Code)

	key, err := f.store.Keys().FindLatestByOwner(context.Background(), f.identity())
	require.NoError(t, err)
	assert.Contains(t, rec.Body.String(), key.Secret)

	// The session cookie is set on first visit.
	var sessionSet bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie {
			sessionSet = true
			assert.True(t, c.HttpOnly)
		}
	}
	assert.True(t, sessionSet)
}

func TestGenKey_ReloadShowsSameKey(t *testing.T) {
	f := newWebFixture(t, "")
	token := f.passGate(t)

	first := f.get(t, "/genkey?token="+token)
	require.Equal(t, http.StatusOK, first.Code)

	cookies := first.Result().Cookies()
	require.NotEmpty(t, cookies)

	// Same URL again: the token is consumed, but the session still
	// resolves to the key.
	second := f.get(t, "/genkey?token="+token, cookies...)
	require.Equal(t, http.StatusOK, second.Code)

	key, err := f.store.Keys().FindLatestByOwner(context.Background(), f.identity())
	require.NoError(t, err)
	assert.Contains(t, second.Body.String(), key.Secret)
}

func TestGenKey_UsedTokenWithoutKey(t *testing.T) {
	f := newWebFixture(t, "")
	token := f.passGate(t)

	require.NoError(t, f.gateSvc.Complete(context.Background(), token))

	rec := f.get(t, "/genkey?token="+token)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGenKey_UnknownToken(t *testing.T) {
	f := newWebFixture(t, "")

	rec := f.get(t, "/genkey?token=forged")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGenKey_MissingToken(t *testing.T) {
	f := newWebFixture(t, "")

	rec := f.get(t, "/genkey")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGenKey_ExpiredToken(t *testing.T) {
	f := newWebFixture(t, "")

	past := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, f.store.GateTokens().Save(context.Background(), model.GateToken{
		Value:     "stale",
		CreatedAt: past.Add(-10 * time.Minute),
		ExpiresAt: past,
	}))

	rec := f.get(t, "/genkey?token=stale")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "expired")
}

func TestGenKey_CooldownPage(t *testing.T) {
	f := newWebFixture(t, "")
	ctx := context.Background()

	// The identity redeemed a key moments ago; the cooldown still holds.
	now := time.Now().UTC()
	require.NoError(t, f.store.Keys().Save(ctx, model.Key{
		Secret:         "prior-secret",
		Owner:          f.identity(),
		CreatedAt:      now.Add(-time.Hour),
		ExpiresAt:      now.Add(23 * time.Hour),
		NextIssuanceAt: now.Add(5 * time.Hour),
	}))
	_, err := f.store.Keys().Redeem(ctx, "prior-secret", now)
	require.NoError(t, err)

	token := f.passGate(t)
	rec := f.get(t, "/genkey?token="+token)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "300 minutes")
}

func TestGenKey_NoticeRendered(t *testing.T) {
	f := newWebFixture(t, RenderMarkdown("**read this** first"))
	token := f.passGate(t)

	rec := f.get(t, "/genkey?token="+token)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<strong>read this</strong>")
}

func TestIndex(t *testing.T) {
	f := newWebFixture(t, "")

	rec := f.get(t, "/")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "keygate online")
	assert.Contains(t, rec.Body.String(), "/start")
}
