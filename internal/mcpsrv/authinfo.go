package mcpsrv

import (
	"context"
	"net/http"
	"time"

	"github.com/promptvault/promptvault/internal/authn"
)

// AuthExtra carries the identity fields tool handlers care about.
type AuthExtra struct {
	UserID    string
	Email     string
	SessionID string
}

// AuthInfo is the per-call authentication context threaded into the MCP
// transport. Pure data assembly over an already-verified identity; it is
// never built before the authenticator has succeeded.
type AuthInfo struct {
	Token     string
	Scopes    []string
	ExpiresAt time.Time
	Extra     AuthExtra
}

type authInfoContextKey struct{}

// AuthInfoFromContext reads the per-call AuthInfo inside a tool handler.
func AuthInfoFromContext(ctx context.Context) (*AuthInfo, bool) {
	ai, ok := ctx.Value(authInfoContextKey{}).(*AuthInfo)
	if !ok || ai == nil {
		return nil, false
	}
	return ai, true
}

// httpContextFunc bridges the request identity placed in the context by the
// authenticator middleware into the transport's per-call context. The
// middleware runs first on this path, so an absent identity means an
// unauthenticated request already rejected upstream; nothing is attached.
func (s *Server) httpContextFunc(ctx context.Context, r *http.Request) context.Context {
	id, ok := authn.IdentityFromContext(r.Context())
	if !ok {
		return ctx
	}
	return context.WithValue(ctx, authInfoContextKey{}, &AuthInfo{
		Token:     id.Token,
		Scopes:    append([]string(nil), s.scopes...),
		ExpiresAt: id.ExpiresAt,
		Extra: AuthExtra{
			UserID:    id.ID,
			Email:     id.Email,
			SessionID: id.SessionID,
		},
	})
}
