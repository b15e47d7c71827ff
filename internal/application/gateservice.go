package application

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/keygate/internal/domain/model"
	"github.com/ericfisherdev/keygate/internal/domain/port/driven"
)

// GateService runs the hand-off around the external link gate: it mints
// the correlation token before the redirect and consumes it exactly
// once when the client returns.
type GateService struct {
	tokens   driven.GateTokenStore
	gate     driven.LinkGate
	baseURL  string
	tokenTTL time.Duration
	now      func() time.Time
}

// NewGateService creates a GateService. baseURL is this service's own
// externally reachable address, used to build the post-gate return URL.
func NewGateService(tokens driven.GateTokenStore, gate driven.LinkGate, baseURL string, tokenTTL time.Duration) *GateService {
	return &GateService{
		tokens:   tokens,
		gate:     gate,
		baseURL:  baseURL,
		tokenTTL: tokenTTL,
		now:      time.Now,
	}
}

// Begin mints a correlation token, registers it, and asks the gate for
// the URL the client must be sent through. The gate gets one attempt;
// its failure surfaces as driven.ErrGateUnavailable.
func (s *GateService) Begin(ctx context.Context) (string, error) {
	now := s.now().UTC()
	token := model.GateToken{
		Value:     uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(s.tokenTTL),
	}

	if err := s.tokens.Save(ctx, token); err != nil {
		return "", fmt.Errorf("persist gate token: %w", err)
	}

	returnURL := fmt.Sprintf("%s/genkey?token=%s", s.baseURL, url.QueryEscape(token.Value))

	gated, err := s.gate.Shorten(ctx, returnURL)
	if err != nil {
		return "", err
	}
	return gated, nil
}

// Complete consumes the correlation token the client brought back.
// Exactly one return visit per token may proceed to issuance; the
// store's Consume makes the flip atomic.
func (s *GateService) Complete(ctx context.Context, token string) error {
	return s.tokens.Consume(ctx, token, s.now().UTC())
}
