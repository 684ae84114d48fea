// Package httpapi is the REST surface of the backend: prompt CRUD,
// import/export, preferences, drafts, the login flow against the identity
// provider, and widget-token minting. Authentication is delegated entirely
// to the authn middleware; handlers read the verified identity from the
// request context.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/elnormous/contenttype"
	"github.com/google/uuid"

	"github.com/promptvault/promptvault/internal/authn"
	"github.com/promptvault/promptvault/internal/drafts"
	"github.com/promptvault/promptvault/internal/idp"
	"github.com/promptvault/promptvault/internal/logctx"
	"github.com/promptvault/promptvault/internal/prompts"
)

var jsonMediaType = contenttype.NewMediaType("application/json")

// Config assembles the handler's collaborators. Drafts and Widget are
// optional; their endpoints degrade to 503 when absent.
type Config struct {
	Log         *slog.Logger
	Auth        *authn.Authenticator
	Store       prompts.Store
	Drafts      *drafts.Store
	IDP         *idp.Client
	Cookies *authn.CookieVerifier
	Widget  *authn.WidgetCodec
}

// Handler serves the REST API.
type Handler struct {
	mux     *http.ServeMux
	log     *slog.Logger
	store   prompts.Store
	drafts  *drafts.Store
	idp     *idp.Client
	cookies *authn.CookieVerifier
	widget  *authn.WidgetCodec
	states  *stateStore
}

// New builds the REST handler and its route table.
func New(cfg Config) *Handler {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	h := &Handler{
		log:     log,
		store:   cfg.Store,
		drafts:  cfg.Drafts,
		idp:     cfg.IDP,
		cookies: cfg.Cookies,
		widget:  cfg.Widget,
		states:  newStateStore(),
	}

	protect := cfg.Auth.Middleware()
	protected := func(fn http.HandlerFunc) http.Handler {
		return protect(withIdentityLog(fn))
	}

	mux := http.NewServeMux()
	mux.Handle("GET /api/prompts", protected(h.handleListPrompts))
	mux.Handle("POST /api/prompts", protected(h.handleCreatePrompt))
	mux.Handle("GET /api/prompts/export", protected(h.handleExportPrompts))
	mux.Handle("POST /api/prompts/import", protected(h.handleImportPrompts))
	mux.Handle("GET /api/prompts/{id}", protected(h.handleGetPrompt))
	mux.Handle("PUT /api/prompts/{id}", protected(h.handleUpdatePrompt))
	mux.Handle("DELETE /api/prompts/{id}", protected(h.handleDeletePrompt))

	mux.Handle("GET /api/preferences", protected(h.handleGetPreferences))
	mux.Handle("PUT /api/preferences", protected(h.handlePutPreferences))

	mux.Handle("GET /api/draft", protected(h.handleGetDraft))
	mux.Handle("PUT /api/draft", protected(h.handlePutDraft))
	mux.Handle("DELETE /api/draft", protected(h.handleDeleteDraft))

	mux.Handle("POST /api/widget-token", protected(h.handleMintWidgetToken))

	mux.HandleFunc("GET /auth/login", h.handleLogin)
	mux.HandleFunc("GET /auth/callback", h.handleCallback)
	mux.HandleFunc("POST /auth/logout", h.handleLogout)

	h.mux = mux
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r.WithContext(logctx.WithRequestData(r.Context(), &logctx.RequestData{
		RequestID:  uuid.NewString(),
		Method:     r.Method,
		UserAgent:  r.UserAgent(),
		RemoteAddr: r.RemoteAddr,
		Path:       r.URL.Path,
	})))
}

// withIdentityLog mirrors the verified identity into the logging context.
// Runs inside the auth middleware, so the identity is always present.
func withIdentityLog(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := authn.IdentityFromContext(r.Context()); ok {
			scheme := "session"
			if id.SessionID == "" {
				scheme = "widget"
			}
			r = r.WithContext(logctx.WithIdentityData(r.Context(), &logctx.IdentityData{
				UserID:    id.ID,
				SessionID: id.SessionID,
				Scheme:    scheme,
			}))
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSONBody enforces an application/json content type and decodes the
// body into dst. Writes the error response itself on failure.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	ctype, err := contenttype.GetMediaType(r)
	if err != nil || !ctype.Matches(jsonMediaType) {
		writeJSONError(w, http.StatusUnsupportedMediaType, "content-type must be application/json")
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// identity fetches the verified identity; the middleware guarantees it on
// protected routes.
func identity(r *http.Request) *authn.Identity {
	id, _ := authn.IdentityFromContext(r.Context())
	return id
}
