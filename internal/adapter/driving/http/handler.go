// Package httphandler is the HTTP driving adapter serving the JSON API
// and the gate entry redirect.
package httphandler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/ericfisherdev/keygate/internal/application"
)

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	gateSvc   *application.GateService
	redeemSvc *application.RedeemService
	logger    *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(gateSvc *application.GateService, redeemSvc *application.RedeemService, logger *slog.Logger) *Handler {
	return &Handler{
		gateSvc:   gateSvc,
		redeemSvc: redeemSvc,
		logger:    logger,
	}
}

// RegisterAPIRoutes registers the API and entry routes on the provided mux.
func RegisterAPIRoutes(mux *http.ServeMux, h *Handler) {
	mux.HandleFunc("GET /start", h.Start)
	mux.HandleFunc("GET /api/v1/redeem", h.Redeem)
	mux.HandleFunc("GET /api/v1/health", h.Health)
}

// Start begins a key request: it registers a fresh correlation token and
// redirects the client through the external link gate. The gate gets one
// attempt; when it fails the client gets a 502, not a retry loop.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	gated, err := h.gateSvc.Begin(r.Context())
	if err != nil {
		h.logger.Error("gate hand-off failed", "error", err)
		writeError(w, http.StatusBadGateway, "upstream gate unavailable")
		return
	}

	http.Redirect(w, r, gated, http.StatusFound)
}

// Redeem validates and consumes a key on behalf of the downstream
// application. Per-key failures are 4xx with a stable reason code; only
// a store fault produces a 500.
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	external := r.URL.Query().Get("key")
	if external == "" {
		writeError(w, http.StatusBadRequest, "missing key parameter")
		return
	}

	result, err := h.redeemSvc.Redeem(r.Context(), external)
	if err != nil {
		h.logger.Error("redeem failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, redeemStatus(result), toRedeemResponse(result))
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// redeemStatus maps a redemption outcome to its HTTP status code.
func redeemStatus(result application.RedeemResult) int {
	switch {
	case result.Valid:
		return http.StatusOK
	case result.Reason == application.ReasonInvalidEncoding:
		return http.StatusBadRequest
	case result.Reason == application.ReasonNotFound:
		return http.StatusNotFound
	default:
		// already_used and expired are both refusals of a real key.
		return http.StatusForbidden
	}
}
