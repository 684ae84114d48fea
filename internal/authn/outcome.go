package authn

import (
	"errors"
	"time"
)

// Sentinel errors forming the closed failure taxonomy of the authenticator.
// Internal code distinguishes all of them; the HTTP boundary collapses them
// to one of three caller-visible messages (see Message).
var (
	// ErrMissingCredential: no bearer header and no (valid) session cookie.
	ErrMissingCredential = errors.New("authn: missing credential")
	// ErrMalformedCredential: wrong scheme, empty token, or unparseable
	// credential structure.
	ErrMalformedCredential = errors.New("authn: malformed credential")
	// ErrInvalidSignature: cryptographic verification failed, either token kind.
	ErrInvalidSignature = errors.New("authn: invalid signature")
	// ErrInvalidToken: structurally broken token, issuer mismatch, or any
	// other failure deliberately indistinguishable from a bad signature.
	ErrInvalidToken = errors.New("authn: invalid token")
	// ErrTokenExpired: valid in every other respect, past its expiry.
	ErrTokenExpired = errors.New("authn: token expired")
	// ErrInvalidClaims: valid signature, missing or empty required claim.
	ErrInvalidClaims = errors.New("authn: invalid claims")
	// ErrWrongIssuer: valid signature, issuer mismatch.
	ErrWrongIssuer = errors.New("authn: wrong issuer")
	// ErrUpstreamUnavailable: the identity provider's key endpoint failed or
	// timed out. Not attributable to the caller; still fails closed.
	ErrUpstreamUnavailable = errors.New("authn: upstream unavailable")
)

// The fixed caller-visible messages. WrongIssuer and InvalidClaims fold into
// the generic invalid-token message on purpose: a more specific message would
// let a probing client distinguish "your token is garbage" from "your token
// is the wrong kind".
const (
	MsgNotAuthenticated = "Not authenticated"
	MsgInvalidToken     = "Invalid token"
	MsgTokenExpired     = "Token expired"
)

// Message maps an authentication failure to its caller-visible message.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrMissingCredential):
		return MsgNotAuthenticated
	case errors.Is(err, ErrTokenExpired):
		return MsgTokenExpired
	default:
		return MsgInvalidToken
	}
}

// Identity is the normalized output of authentication, created once per
// request and immutable afterward. It is scoped to the request context and
// never cached across requests.
type Identity struct {
	// ID is the stable user identifier: the widget payload's userId or the
	// session token's subject.
	ID string
	// Email and SessionID are populated only on the session path.
	Email     string
	SessionID string
	// ExpiresAt is the verified credential's expiry.
	ExpiresAt time.Time
	// Token retains the raw credential for requests that must forward it
	// upstream. It has already been verified by the time it is stored here.
	Token string
}
