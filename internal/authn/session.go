package authn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the closed claim shape decoded from a verified session
// token. Subject, Email and SessionID are all required; a session token
// missing any of them is invalid regardless of signature validity.
type SessionClaims struct {
	Subject   string
	Email     string
	SessionID string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// SessionValidator verifies tokens issued by the external identity provider
// against the provider's published signing keys.
type SessionValidator struct {
	issuer   string
	jwksURL  string
	audience string
	keys     *KeyCache
	leeway   time.Duration
	now      func() time.Time
}

// SessionOption configures a SessionValidator.
type SessionOption func(*SessionValidator)

// WithAudience additionally enforces the aud claim (typically the OAuth
// client id registered with the provider).
func WithAudience(aud string) SessionOption {
	return func(v *SessionValidator) { v.audience = aud }
}

// WithLeeway sets clock-skew tolerance for time-based claims.
func WithLeeway(d time.Duration) SessionOption {
	return func(v *SessionValidator) { v.leeway = d }
}

// WithSessionClock injects the time source used for claim validation.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(v *SessionValidator) { v.now = now }
}

// NewSessionValidator builds a validator for the given issuer whose signing
// keys are published at jwksURL. Key material flows through the shared
// KeyCache; this validator performs no fetching of its own per call.
func NewSessionValidator(issuer, jwksURL string, keys *KeyCache, opts ...SessionOption) (*SessionValidator, error) {
	if issuer == "" {
		return nil, errors.New("authn: issuer is required")
	}
	if jwksURL == "" {
		return nil, errors.New("authn: jwks url is required")
	}
	if keys == nil {
		return nil, errors.New("authn: key cache is required")
	}
	v := &SessionValidator{
		issuer:  issuer,
		jwksURL: jwksURL,
		keys:    keys,
		leeway:  60 * time.Second,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Verify checks the token's signature against the provider's current keys
// and returns the decoded claims. A key-fetch failure rejects the request
// (fail closed); it never degrades to an unauthenticated bypass.
func (v *SessionValidator) Verify(ctx context.Context, raw string) (*SessionClaims, error) {
	if raw == "" {
		return nil, ErrMissingCredential
	}

	kf, err := v.keys.Keyfunc(ctx, v.jwksURL)
	if err != nil {
		return nil, err
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(v.issuer),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}
	parsed, err := jwt.NewParser(opts...).Parse(raw, kf)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, fmt.Errorf("%w: session token: %v", ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, fmt.Errorf("%w: session token", ErrTokenExpired)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return nil, fmt.Errorf("%w: session token", ErrWrongIssuer)
	default:
		return nil, fmt.Errorf("%w: session token: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: session token: unexpected claims type", ErrInvalidToken)
	}
	return decodeSessionClaims(claims)
}

// decodeSessionClaims maps verified claims into the closed SessionClaims
// shape. Trusted-input step: it performs no cryptographic check of its own
// and must only ever run after signature verification has succeeded. A
// missing required field is a decode failure, not a zero-value read.
func decodeSessionClaims(claims jwt.MapClaims) (*SessionClaims, error) {
	b, err := json.Marshal(map[string]any(claims))
	if err != nil {
		return nil, fmt.Errorf("%w: session claims: %v", ErrInvalidClaims, err)
	}
	var p struct {
		Subject   string  `json:"sub"`
		Email     string  `json:"email"`
		SessionID string  `json:"session_id"`
		ExpiresAt float64 `json:"exp"`
		IssuedAt  float64 `json:"iat"`
	}
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("%w: session claims: %v", ErrInvalidClaims, err)
	}
	if p.Subject == "" {
		return nil, fmt.Errorf("%w: session claims: missing sub", ErrInvalidClaims)
	}
	if p.Email == "" {
		return nil, fmt.Errorf("%w: session claims: missing email", ErrInvalidClaims)
	}
	if p.SessionID == "" {
		return nil, fmt.Errorf("%w: session claims: missing session_id", ErrInvalidClaims)
	}
	sc := &SessionClaims{
		Subject:   p.Subject,
		Email:     p.Email,
		SessionID: p.SessionID,
	}
	if p.ExpiresAt != 0 {
		sc.ExpiresAt = time.Unix(int64(p.ExpiresAt), 0)
	}
	if p.IssuedAt != 0 {
		sc.IssuedAt = time.Unix(int64(p.IssuedAt), 0)
	}
	return sc, nil
}
