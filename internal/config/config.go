// Package config loads the process configuration from the environment.
// Defaults live in struct tags; Load returns an error for anything marked
// required so a misconfigured deployment fails at startup.
package config

import (
	"fmt"

	"github.com/joeshaw/envdecode"
)

// Config is the full configuration surface of the backend.
type Config struct {
	// ListenAddr for the HTTP server. ENV: LISTEN_ADDR
	ListenAddr string `env:"LISTEN_ADDR,default=:8080"`
	// PublicURL is the externally visible base URL of this deployment.
	// ENV: PUBLIC_URL
	PublicURL string `env:"PUBLIC_URL,default=http://localhost:8080"`

	// ResourceURL is the resource identifier published in the
	// protected-resource metadata document. Empty means unconfigured; the
	// discovery endpoint then fails closed. ENV: MCP_RESOURCE_URL
	ResourceURL string `env:"MCP_RESOURCE_URL"`
	// AuthorizationServerURL published in the discovery document. Falls back
	// to the identity provider issuer when empty. ENV: AUTHORIZATION_SERVER_URL
	AuthorizationServerURL string `env:"AUTHORIZATION_SERVER_URL"`

	// WidgetSigningSecret signs widget tokens. Optional: when absent the
	// widget path is disabled and session-only traffic is unaffected.
	// ENV: WIDGET_SIGNING_SECRET
	WidgetSigningSecret string `env:"WIDGET_SIGNING_SECRET"`
	// CookieSigningSecret authenticates the session cookie envelope.
	// ENV: COOKIE_SIGNING_SECRET
	CookieSigningSecret string `env:"COOKIE_SIGNING_SECRET,required"`

	IDP    IDPConfig
	Store  StoreConfig
	Drafts DraftsConfig
}

// IDPConfig describes the external identity provider.
type IDPConfig struct {
	// Issuer URL used for OIDC discovery. ENV: IDP_ISSUER
	Issuer string `env:"IDP_ISSUER,required"`
	// ClientID registered with the provider. ENV: IDP_CLIENT_ID
	ClientID string `env:"IDP_CLIENT_ID,required"`
	// ClientSecret for the code exchange. ENV: IDP_CLIENT_SECRET
	ClientSecret string `env:"IDP_CLIENT_SECRET"`
	// RedirectURL of the login callback. ENV: IDP_REDIRECT_URL
	RedirectURL string `env:"IDP_REDIRECT_URL"`
}

// StoreConfig describes the hosted document database.
type StoreConfig struct {
	// FirestoreProject selects the Firestore project. Empty falls back to
	// the in-memory store (local development). ENV: FIRESTORE_PROJECT
	FirestoreProject string `env:"FIRESTORE_PROJECT"`
}

// DraftsConfig describes the ephemeral draft store.
type DraftsConfig struct {
	// RedisAddr like "localhost:6379". ENV: REDIS_ADDR
	RedisAddr string `env:"REDIS_ADDR,default=localhost:6379"`
	// KeyPrefix for all draft keys. ENV: DRAFTS_KEY_PREFIX
	KeyPrefix string `env:"DRAFTS_KEY_PREFIX,default=pv:drafts:"`
}

// Load populates Config from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.AuthorizationServerURL == "" {
		cfg.AuthorizationServerURL = cfg.IDP.Issuer
	}
	return &cfg, nil
}
