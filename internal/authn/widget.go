package authn

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// WidgetIssuer is the reserved issuer string for self-signed widget tokens.
// A bearer token claiming any other issuer never reaches the widget codec.
const WidgetIssuer = "widget"

// WidgetTokenTTL bounds the lifetime of an issued widget token.
const WidgetTokenTTL = 4 * time.Hour

// WidgetClaims is the closed claim shape of a widget token.
type WidgetClaims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// WidgetCodec issues and verifies the short-lived symmetric tokens used by
// embedded widget surfaces. The scheme is fully owned by the backend: tokens
// are HS256-signed with a secret no other party holds.
type WidgetCodec struct {
	secret []byte
	now    func() time.Time
}

// WidgetOption configures a WidgetCodec.
type WidgetOption func(*WidgetCodec)

// WithWidgetClock injects the time source used for issuance and expiry
// checks. Tests use this to exercise expiry without wall-clock waits.
func WithWidgetClock(now func() time.Time) WidgetOption {
	return func(c *WidgetCodec) { c.now = now }
}

// NewWidgetCodec builds a codec over the widget-signing secret. Returns an
// error on an empty secret so a misconfigured deployment fails at startup,
// not at first verification.
func NewWidgetCodec(secret []byte, opts ...WidgetOption) (*WidgetCodec, error) {
	if len(secret) == 0 {
		return nil, errors.New("authn: widget signing secret is required")
	}
	c := &WidgetCodec{secret: secret, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Issue mints a widget token for the given user identifier.
func (c *WidgetCodec) Issue(userID string) (string, error) {
	if userID == "" {
		return "", errors.New("authn: user id is required")
	}
	now := c.now()
	claims := &WidgetClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    WidgetIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(WidgetTokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Verify checks a raw widget token and returns its claims.
//
// Checks run in order and short-circuit on first failure: presence,
// signature/structure, expiry, issuer, userId. Only expiry gets a distinct
// error; issuer and claim failures return the same generic error as a bad
// signature so the validator cannot be fingerprinted by probing.
func (c *WidgetCodec) Verify(raw string) (*WidgetClaims, error) {
	if raw == "" {
		return nil, ErrMissingCredential
	}

	claims := &WidgetClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	_, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, fmt.Errorf("%w: widget token: %v", ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, fmt.Errorf("%w: widget token", ErrTokenExpired)
	default:
		return nil, fmt.Errorf("%w: widget token: %v", ErrInvalidToken, err)
	}

	if claims.Issuer != WidgetIssuer {
		// Same outward error as a structural failure. Internally this is a
		// wrong-issuer condition; see Message for the collapse.
		return nil, fmt.Errorf("%w: widget token", ErrInvalidToken)
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: widget token", ErrInvalidToken)
	}
	return claims, nil
}
