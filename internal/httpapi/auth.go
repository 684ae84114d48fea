package httpapi

import (
	"crypto/rand"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/promptvault/promptvault/internal/authn"
)

// stateTTL bounds how long a login attempt may sit between the redirect to
// the provider and the callback.
const stateTTL = 10 * time.Minute

type stateEntry struct {
	returnTo  string
	expiresAt time.Time
}

// stateStore tracks outstanding login states. Single-use: a state is
// consumed on first lookup.
type stateStore struct {
	mu      sync.Mutex
	entries map[string]stateEntry
}

func newStateStore() *stateStore {
	return &stateStore{entries: map[string]stateEntry{}}
}

func (s *stateStore) put(state, returnTo string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for k, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, k)
		}
	}
	s.entries[state] = stateEntry{returnTo: returnTo, expiresAt: now.Add(stateTTL)}
}

func (s *stateStore) consume(state string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[state]
	if !ok {
		return "", false
	}
	delete(s.entries, state)
	if time.Now().After(e.expiresAt) {
		return "", false
	}
	return e.returnTo, true
}

func newState() string {
	b := make([]byte, 24)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// sanitizeReturnTo restricts the post-login redirect to a same-origin path.
func sanitizeReturnTo(v string) string {
	if v == "" || !strings.HasPrefix(v, "/") || strings.HasPrefix(v, "//") {
		return "/"
	}
	return v
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if h.idp == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "login is not configured")
		return
	}
	state := newState()
	h.states.put(state, sanitizeReturnTo(r.URL.Query().Get("return_to")))
	http.Redirect(w, r, h.idp.AuthCodeURL(state), http.StatusFound)
}

func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.idp == nil || h.cookies == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "login is not configured")
		return
	}

	returnTo, ok := h.states.consume(r.URL.Query().Get("state"))
	if !ok {
		h.log.InfoContext(ctx, "auth.callback.bad_state")
		writeJSONError(w, http.StatusBadRequest, "invalid or expired login state")
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		writeJSONError(w, http.StatusBadRequest, "missing authorization code")
		return
	}

	token, err := h.idp.Exchange(ctx, code)
	if err != nil {
		h.log.ErrorContext(ctx, "auth.callback.exchange.fail", slog.String("err", err.Error()))
		writeJSONError(w, http.StatusBadGateway, "code exchange failed")
		return
	}

	encoded, err := h.cookies.Encode(token)
	if err != nil {
		h.log.ErrorContext(ctx, "auth.callback.cookie.fail", slog.String("err", err.Error()))
		writeJSONError(w, http.StatusInternalServerError, "failed to establish session")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     authn.SessionCookieName,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, returnTo, http.StatusFound)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.cookies != nil && h.idp != nil {
		if c, err := r.Cookie(authn.SessionCookieName); err == nil && c.Value != "" {
			if token, err := h.cookies.Decode(c.Value); err == nil {
				if err := h.idp.Revoke(ctx, token); err != nil {
					h.log.InfoContext(ctx, "auth.logout.revoke.fail", slog.String("err", err.Error()))
				}
			}
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     authn.SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
	w.WriteHeader(http.StatusNoContent)
}

// handleMintWidgetToken issues a short-lived widget token for the caller.
// Requires authentication like any other API route; a widget token is also
// an acceptable credential here, which lets a widget renew itself.
func (h *Handler) handleMintWidgetToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.widget == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "widget tokens are not configured")
		return
	}
	id := identity(r)
	token, err := h.widget.Issue(id.ID)
	if err != nil {
		h.log.ErrorContext(ctx, "widget.mint.fail", slog.String("err", err.Error()))
		writeJSONError(w, http.StatusInternalServerError, "failed to issue widget token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":     token,
		"expiresAt": time.Now().Add(authn.WidgetTokenTTL).UTC().Format(time.RFC3339),
	})
}
