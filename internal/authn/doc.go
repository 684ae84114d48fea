// Package authn decides, for every inbound request, whether the caller is
// who they claim to be and attaches a normalized identity to the request.
//
// Two credential schemes are accepted. Widget tokens are short-lived HS256
// JWTs the backend issues to its own embedded widget surfaces and verifies
// against a symmetric secret it alone holds. Session tokens are RS256 JWTs
// issued by the external identity provider and verified against the
// provider's published JWKS, fetched through a TTL-bounded key cache.
//
// The combined Authenticator routes each request to exactly one verifier: a
// bearer token whose (unverified) issuer claim names the widget issuer is
// handled by the widget codec and is terminal — it never falls through to
// session validation, even when a session cookie is also present. The issuer
// peek is not trust-bearing; it only selects which verifier runs and grants
// nothing by itself.
//
// Failures collapse to a closed set of sentinel errors. At the HTTP boundary
// every kind surfaces as a 401 with one of three fixed messages so that a
// probing client cannot distinguish "wrong kind of token" from "garbage".
package authn
