package authn

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
)

// Shared fixtures for the authn tests: an RSA signing key, a JWKS endpoint
// serving its public half, and helpers to mint session-shaped tokens.

func genRSA(t *testing.T) (*rsa.PrivateKey, string, []byte) {
	t.Helper()
	pk, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	kid := "test-key"
	jwk := jose.JSONWebKey{Key: &pk.PublicKey, KeyID: kid, Algorithm: "RS256", Use: "sig"}
	set := struct {
		Keys []jose.JSONWebKey `json:"keys"`
	}{Keys: []jose.JSONWebKey{jwk}}
	b, err := json.Marshal(set)
	if err != nil {
		t.Fatalf("marshal jwks: %v", err)
	}
	return pk, kid, b
}

func newJWKSServer(t *testing.T, keysJSON []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(keysJSON)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func signRS256(t *testing.T, pk *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	s, err := tok.SignedString(pk)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func sessionClaims(issuer string, now time.Time) jwt.MapClaims {
	return jwt.MapClaims{
		"iss":        issuer,
		"sub":        "user-123",
		"email":      "user@example.com",
		"session_id": "sess-abc",
		"exp":        now.Add(time.Hour).Unix(),
		"iat":        now.Unix(),
	}
}

func newTestValidator(t *testing.T, issuer, jwksURL string, opts ...SessionOption) *SessionValidator {
	t.Helper()
	v, err := NewSessionValidator(issuer, jwksURL, NewKeyCache(), opts...)
	if err != nil {
		t.Fatalf("new validator: %v", err)
	}
	return v
}
