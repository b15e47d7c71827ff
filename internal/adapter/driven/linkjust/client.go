// Package linkjust implements the LinkGate port against a
// linkjust-style URL shortener API.
package linkjust

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ericfisherdev/keygate/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.LinkGate = (*Client)(nil)

// Client implements the driven.LinkGate port. The gate is treated as
// an unreliable upstream: one attempt per user action, a bounded
// timeout, and a hard failure on anything but a success response.
type Client struct {
	httpClient *http.Client
	apiURL     string
	apiKey     string
}

// NewClient creates a gate client for the given API endpoint. The API
// key comes from configuration, never from source.
func NewClient(apiURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		apiURL:     apiURL,
		apiKey:     apiKey,
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client.
// This constructor is intended for testing, allowing injection of an
// httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, apiURL, apiKey string) *Client {
	return &Client{
		httpClient: httpClient,
		apiURL:     apiURL,
		apiKey:     apiKey,
	}
}

// shortenResponse is the gate API's JSON answer.
type shortenResponse struct {
	Status       string `json:"status"`
	ShortenedURL string `json:"shortenedUrl"`
	Message      string `json:"message"`
}

// Shorten submits the return URL and yields the gated URL the client
// must be redirected through. All failure modes collapse into
// driven.ErrGateUnavailable with the cause attached.
func (c *Client) Shorten(ctx context.Context, returnURL string) (string, error) {
	q := url.Values{}
	q.Set("api", c.apiKey)
	q.Set("url", returnURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", driven.ErrGateUnavailable, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", driven.ErrGateUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: unexpected status %d", driven.ErrGateUnavailable, resp.StatusCode)
	}

	var parsed shortenResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", driven.ErrGateUnavailable, err)
	}

	if parsed.Status != "success" || parsed.ShortenedURL == "" {
		return "", fmt.Errorf("%w: gate answered %q: %s", driven.ErrGateUnavailable, parsed.Status, parsed.Message)
	}

	return parsed.ShortenedURL, nil
}
