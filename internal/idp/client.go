// Package idp wraps the external identity provider. The backend only ever
// asks it for three things: OIDC discovery metadata (the JWKS location for
// the session validator and the authorization-server URL for the discovery
// document), an authorization-code exchange during login, and best-effort
// token revocation on logout. The provider's own login ceremony is its
// business.
package idp

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// Client is a thin OIDC client over the hosted identity provider.
type Client struct {
	provider     *oidc.Provider
	verifier     *oidc.IDTokenVerifier
	oauth2Config oauth2.Config

	issuer        string
	jwksURL       string
	revocationURL string
}

// Config for the Client.
type Config struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// Scopes defaults to openid/profile/email.
	Scopes []string
}

// New performs OIDC discovery against the issuer and builds the client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Issuer == "" {
		return nil, fmt.Errorf("idp: issuer is required")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("idp: client id is required")
	}
	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("idp: discovery failed: %w", err)
	}

	var meta struct {
		JwksURI       string `json:"jwks_uri"`
		RevocationURL string `json:"revocation_endpoint"`
	}
	if err := provider.Claims(&meta); err != nil {
		return nil, fmt.Errorf("idp: invalid discovery metadata: %w", err)
	}
	if meta.JwksURI == "" {
		return nil, fmt.Errorf("idp: discovery incomplete: missing jwks_uri")
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}

	return &Client{
		provider: provider,
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		oauth2Config: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       scopes,
		},
		issuer:        cfg.Issuer,
		jwksURL:       meta.JwksURI,
		revocationURL: meta.RevocationURL,
	}, nil
}

// Issuer returns the provider's issuer URL.
func (c *Client) Issuer() string { return c.issuer }

// JWKSURL returns the provider's key-publishing endpoint, discovered once at
// startup. The session validator's key cache fetches from here.
func (c *Client) JWKSURL() string { return c.jwksURL }

// AuthCodeURL returns the provider's authorization URL for the given state.
func (c *Client) AuthCodeURL(state string) string {
	return c.oauth2Config.AuthCodeURL(state)
}

// Exchange trades an authorization code for the provider's token response
// and returns the raw session token (the id_token).
func (c *Client) Exchange(ctx context.Context, code string) (string, error) {
	tok, err := c.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("idp: code exchange failed: %w", err)
	}
	raw, ok := tok.Extra("id_token").(string)
	if !ok || raw == "" {
		return "", fmt.Errorf("idp: no id_token in token response")
	}
	// Verify before handing the token back; a provider response that fails
	// its own verification is treated as an exchange failure.
	if _, err := c.verifier.Verify(ctx, raw); err != nil {
		return "", fmt.Errorf("idp: id_token verification failed: %w", err)
	}
	return raw, nil
}

// Revoke best-effort revokes a session token at the provider's revocation
// endpoint. Callers treat errors as advisory; logout proceeds regardless.
func (c *Client) Revoke(ctx context.Context, raw string) error {
	if c.revocationURL == "" {
		return nil
	}
	form := url.Values{
		"token":           {raw},
		"token_type_hint": {"access_token"},
		"client_id":       {c.oauth2Config.ClientID},
	}
	if c.oauth2Config.ClientSecret != "" {
		form.Set("client_secret", c.oauth2Config.ClientSecret)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.revocationURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("idp: build revocation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("idp: revocation request: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("idp: revocation endpoint returned %d", resp.StatusCode)
	}
	return nil
}
