package authn

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
)

// Authenticator is the combined decision procedure: given a request, it
// resolves one of {widget identity, session identity, unauthenticated} in a
// single pass. Each request's decision is independent; there is no
// session-level mutable state and no memory of prior failures.
type Authenticator struct {
	widget   *WidgetCodec
	sessions *SessionValidator
	cookies  *CookieVerifier
	log      *slog.Logger
}

// AuthenticatorOption configures an Authenticator.
type AuthenticatorOption func(*Authenticator)

// WithWidgetCodec enables the widget token path. When absent, widget-shaped
// bearer tokens are rejected generically and session-only paths are
// unaffected.
func WithWidgetCodec(codec *WidgetCodec) AuthenticatorOption {
	return func(a *Authenticator) { a.widget = codec }
}

// WithCookieVerifier enables the signed-cookie fallback credential source.
func WithCookieVerifier(cookies *CookieVerifier) AuthenticatorOption {
	return func(a *Authenticator) { a.cookies = cookies }
}

// WithLogger sets the slog logger. Defaults to slog.Default.
func WithLogger(log *slog.Logger) AuthenticatorOption {
	return func(a *Authenticator) { a.log = log }
}

// NewAuthenticator builds the combined authenticator around a session
// validator; the widget codec and cookie verifier are optional.
func NewAuthenticator(sessions *SessionValidator, opts ...AuthenticatorOption) (*Authenticator, error) {
	if sessions == nil {
		return nil, fmt.Errorf("authn: session validator is required")
	}
	a := &Authenticator{sessions: sessions, log: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// peekIssuer decodes the issuer claim without verifying the signature.
//
// Not trust-bearing: the peek only selects which verifier runs and grants no
// access by itself. An attacker-chosen issuer claim steers the token into
// the widget codec, where it still fails full signature verification.
func peekIssuer(raw string) string {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return ""
	}
	iss, err := claims.GetIssuer()
	if err != nil {
		return ""
	}
	return iss
}

// Authenticate resolves the request's identity.
//
// A bearer token whose issuer claim names the widget issuer is handed to the
// widget codec and any failure there is terminal: it must not be silently
// retried as a session token, even when a valid session cookie is also
// present, because the caller has declared its authentication scheme.
// Otherwise the bearer token — or, failing that, the signed-cookie value —
// goes down the session validation path. No credential at all rejects with
// ErrMissingCredential.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) (*Identity, error) {
	cred, ok := ExtractCredential(r, a.cookies)
	if !ok {
		return nil, ErrMissingCredential
	}

	if cred.Source == SourceBearer && peekIssuer(cred.Raw) == WidgetIssuer {
		if a.widget == nil {
			return nil, fmt.Errorf("%w: widget tokens not configured", ErrInvalidToken)
		}
		claims, err := a.widget.Verify(cred.Raw)
		if err != nil {
			return nil, err
		}
		id := &Identity{ID: claims.UserID, Token: cred.Raw}
		if claims.ExpiresAt != nil {
			id.ExpiresAt = claims.ExpiresAt.Time
		}
		return id, nil
	}

	claims, err := a.sessions.Verify(ctx, cred.Raw)
	if err != nil {
		return nil, err
	}
	return &Identity{
		ID:        claims.Subject,
		Email:     claims.Email,
		SessionID: claims.SessionID,
		ExpiresAt: claims.ExpiresAt,
		Token:     cred.Raw,
	}, nil
}
