// Package web is the HTML driving adapter: the post-gate key page and
// the index.
package web

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ericfisherdev/keygate/internal/application"
	"github.com/ericfisherdev/keygate/internal/domain/model"
	"github.com/ericfisherdev/keygate/internal/domain/port/driven"
)

// sessionCookie names the cookie holding the signed session token.
const sessionCookie = "keygate_session"

// Handler serves the HTML pages. binder may be nil when session binding
// is disabled; the key page then relies on the fingerprint alone.
type Handler struct {
	issueSvc *application.IssueService
	gateSvc  *application.GateService
	binder   *application.SessionBinder
	cipher   *application.KeyCipher
	fp       *application.Fingerprinter
	notice   NoticeHTML
	logger   *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	issueSvc *application.IssueService,
	gateSvc *application.GateService,
	binder *application.SessionBinder,
	cipher *application.KeyCipher,
	fp *application.Fingerprinter,
	notice NoticeHTML,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		issueSvc: issueSvc,
		gateSvc:  gateSvc,
		binder:   binder,
		cipher:   cipher,
		fp:       fp,
		notice:   notice,
		logger:   logger,
	}
}

// RegisterRoutes registers the HTML routes on the provided mux.
func RegisterRoutes(mux *http.ServeMux, h *Handler) {
	mux.HandleFunc("GET /genkey", h.GenKey)
	mux.HandleFunc("GET /{$}", h.Index)
}

// Index renders the minimal landing page.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, "index.tmpl", nil)
}

// GenKey is the post-gate return leg. The correlation token is consumed
// exactly once; a consumed token can still re-display a key the visitor
// already holds (page reloads), but never opens issuance.
func (h *Handler) GenKey(w http.ResponseWriter, r *http.Request) {
	identity := h.fp.Derive(r.RemoteAddr, r.Header.Get("X-Forwarded-For"), r.Header.Get("User-Agent"))
	sessionID := h.sessionID(w, r)

	token := r.URL.Query().Get("token")
	if token == "" {
		h.renderDenied(w, "This page can only be reached through the key request link.")
		return
	}

	var key *model.Key
	err := h.gateSvc.Complete(r.Context(), token)
	switch {
	case err == nil:
		key, err = h.issueSvc.Issue(r.Context(), identity, sessionID)
		if err != nil {
			h.issueFailed(w, err)
			return
		}
	case errors.Is(err, driven.ErrGateTokenUsed):
		existing, ok := h.issueSvc.Existing(r.Context(), identity, sessionID)
		if !ok {
			h.renderDenied(w, "This key link has already been used. Start over to request a key.")
			return
		}
		key = existing
	case errors.Is(err, driven.ErrGateTokenExpired):
		h.renderDenied(w, "This key link has expired. Start over to request a key.")
		return
	case errors.Is(err, driven.ErrGateTokenNotFound):
		h.renderDenied(w, "This page can only be reached through the key request link.")
		return
	default:
		h.logger.Error("gate token consume failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	external, err := h.cipher.Externalize(key.Secret)
	if err != nil {
		h.logger.Error("externalize key failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.render(w, http.StatusOK, "key.tmpl", keyPage{
		Key:       external,
		ExpiresAt: key.ExpiresAt.UTC().Format(time.RFC1123),
		Notice:    h.notice,
	})
}

// issueFailed maps issuance failures: cooldown gets a 429 page with the
// remaining wait, everything else is a fault.
func (h *Handler) issueFailed(w http.ResponseWriter, err error) {
	var rateLimited *application.RateLimitedError
	if errors.As(err, &rateLimited) {
		h.render(w, http.StatusTooManyRequests, "ratelimited.tmpl", rateLimitedPage{
			Minutes: rateLimited.RetryAfterMinutes(),
		})
		return
	}

	h.logger.Error("key issuance failed", "error", err)
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// sessionID resolves the visitor's session, minting one (and setting
// the cookie) when the presented token is absent or invalid. Returns ""
// when session binding is disabled.
func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) string {
	if h.binder == nil {
		return ""
	}

	if cookie, err := r.Cookie(sessionCookie); err == nil {
		if sessionID, err := h.binder.ParseToken(cookie.Value); err == nil {
			return sessionID
		}
	}

	sessionID, err := application.NewSessionID()
	if err != nil {
		h.logger.Error("mint session id failed", "error", err)
		return ""
	}
	token, err := h.binder.IssueToken(sessionID)
	if err != nil {
		h.logger.Error("sign session token failed", "error", err)
		return ""
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sessionID
}

func (h *Handler) renderDenied(w http.ResponseWriter, message string) {
	h.render(w, http.StatusForbidden, "denied.tmpl", deniedPage{Message: message})
}

func (h *Handler) render(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTemplates.ExecuteTemplate(w, name, data); err != nil {
		h.logger.Error("render page failed", "template", name, "error", err)
	}
}

// keyPage is the template data for the key display page.
type keyPage struct {
	Key       string
	ExpiresAt string
	Notice    NoticeHTML
}

type deniedPage struct {
	Message string
}

type rateLimitedPage struct {
	Minutes int
}
