package authn

import (
	"net/http"
	"strings"

	"github.com/gorilla/securecookie"
)

// CredentialSource identifies where a raw credential was pulled from.
type CredentialSource int

const (
	SourceBearer CredentialSource = iota
	SourceCookie
)

func (s CredentialSource) String() string {
	if s == SourceCookie {
		return "cookie"
	}
	return "bearer"
}

// Credential is a raw token plus its provenance. Produced per-request and
// never persisted.
type Credential struct {
	Raw    string
	Source CredentialSource
}

// SessionCookieName is the cookie carrying the signed session token for
// browser clients.
const SessionCookieName = "pv_session"

// CookieVerifier checks the integrity envelope around the session cookie's
// value. This is the server's own request-integrity mechanism, unrelated to
// the session token's signature.
type CookieVerifier struct {
	sc *securecookie.SecureCookie
}

// NewCookieVerifier builds a verifier over the cookie-signing secret.
// Sign-only: the cookie value is authenticated, not encrypted.
func NewCookieVerifier(secret []byte) *CookieVerifier {
	return &CookieVerifier{sc: securecookie.New(secret, nil)}
}

// Encode wraps a session token for storage in the cookie.
func (v *CookieVerifier) Encode(token string) (string, error) {
	return v.sc.Encode(SessionCookieName, token)
}

// Decode verifies the cookie envelope and returns the embedded token.
func (v *CookieVerifier) Decode(value string) (string, error) {
	var token string
	if err := v.sc.Decode(SessionCookieName, value, &token); err != nil {
		return "", err
	}
	return token, nil
}

const bearerPrefix = "Bearer "

// ExtractCredential pulls a raw credential out of the request. Pure function
// of the request: no side effects, no token semantics.
//
// The Authorization header is checked first and must be exactly
// "Bearer <token>" with a non-empty token; any other scheme, a bare
// "Bearer", or an empty token is treated as no header credential. A present
// well-formed bearer strictly wins over the cookie so automated clients can
// deterministically override a stale browser session. The cookie value must
// pass signature verification before its payload is treated as a candidate
// token.
func ExtractCredential(r *http.Request, cookies *CookieVerifier) (Credential, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		if strings.HasPrefix(h, bearerPrefix) {
			tok := h[len(bearerPrefix):]
			if tok != "" && !strings.ContainsAny(tok, " \t") {
				return Credential{Raw: tok, Source: SourceBearer}, true
			}
		}
	}
	if cookies != nil {
		if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
			if tok, err := cookies.Decode(c.Value); err == nil && tok != "" {
				return Credential{Raw: tok, Source: SourceCookie}, true
			}
		}
	}
	return Credential{}, false
}
