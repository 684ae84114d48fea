package authn

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

type middlewareConfig struct {
	resourceMetadataURL string
}

// MiddlewareOption configures the HTTP middleware.
type MiddlewareOption func(*middlewareConfig)

// WithResourceMetadataURL marks the wrapped routes as protocol-path routes:
// every 401 they produce carries a WWW-Authenticate challenge pointing
// automated clients at the protected-resource metadata document. REST routes
// omit the option and their 401s stay header-free.
func WithResourceMetadataURL(u string) MiddlewareOption {
	return func(c *middlewareConfig) { c.resourceMetadataURL = u }
}

// Middleware authenticates every request and attaches the resulting Identity
// to the request context. Failures short-circuit with a 401 and a minimal
// JSON body; internal error detail never reaches the caller beyond the three
// fixed messages.
func (a *Authenticator) Middleware(opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := &middlewareConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			id, err := a.Authenticate(ctx, r)
			if err != nil {
				if errors.Is(err, ErrUpstreamUnavailable) {
					// Operational failure, not caller misbehavior. Still a
					// 401: the system fails closed when it cannot verify.
					a.log.ErrorContext(ctx, "auth.upstream.fail", slog.String("err", err.Error()))
				} else {
					a.log.InfoContext(ctx, "auth.check.fail", slog.String("err", err.Error()))
				}
				writeAuthError(w, err, cfg.resourceMetadataURL)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, id)))
		})
	}
}

// writeAuthError emits the 401 with one of the three fixed messages. The
// challenge header, when configured, is present on every such 401, not only
// the first.
func writeAuthError(w http.ResponseWriter, err error, resourceMetadataURL string) {
	if resourceMetadataURL != "" {
		w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Bearer resource_metadata="%s"`, resourceMetadataURL))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": Message(err)})
}
