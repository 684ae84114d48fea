// Package wellknown publishes the OAuth protected-resource metadata document
// that lets automated clients discover where to obtain a token. The document
// is static configuration surfaced as JSON; it is never request-dependent.
package wellknown

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Path is the well-known location of the protected-resource metadata.
const Path = "/.well-known/oauth-protected-resource"

// DefaultScopes advertised when the deployment does not override them.
var DefaultScopes = []string{"openid", "profile", "email"}

// ProtectedResourceMetadata is the served document (RFC 9728 subset).
type ProtectedResourceMetadata struct {
	Resource             string   `json:"resource"`
	AuthorizationServers []string `json:"authorization_servers"`
	ScopesSupported      []string `json:"scopes_supported"`
}

// Handler serves the metadata document with a one-hour cache directive.
//
// When either the resource URL or the authorization-server URL is missing,
// the handler fails closed with a 500 instead of serving a partial or
// guessed document — an automated client must never receive a document it
// could act on incorrectly. This is the one authentication-adjacent failure
// that is a deployment defect rather than a caller error.
type Handler struct {
	doc ProtectedResourceMetadata
	log *slog.Logger
}

// NewHandler builds the publisher. Scopes default to DefaultScopes when nil.
func NewHandler(resource, authorizationServer string, scopes []string, log *slog.Logger) *Handler {
	if scopes == nil {
		scopes = DefaultScopes
	}
	if log == nil {
		log = slog.Default()
	}
	doc := ProtectedResourceMetadata{
		Resource:        resource,
		ScopesSupported: scopes,
	}
	if authorizationServer != "" {
		doc.AuthorizationServers = []string{authorizationServer}
	}
	return &Handler{doc: doc, log: log}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization")
		w.Header().Set("Access-Control-Max-Age", "600")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Vary", "Origin")
	w.Header().Set("Content-Type", "application/json")

	if h.doc.Resource == "" || len(h.doc.AuthorizationServers) == 0 {
		h.log.ErrorContext(r.Context(), "wellknown.misconfigured")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "protected resource metadata is not configured"})
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=3600")
	if err := json.NewEncoder(w).Encode(h.doc); err != nil {
		h.log.ErrorContext(r.Context(), "wellknown.encode.fail", slog.String("err", err.Error()))
	}
}
