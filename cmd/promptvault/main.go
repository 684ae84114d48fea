// Command promptvault runs the prompt-library backend: the REST API, the
// MCP tool endpoint, and the protected-resource discovery document, all on
// one listener.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/promptvault/promptvault/internal/authn"
	"github.com/promptvault/promptvault/internal/config"
	"github.com/promptvault/promptvault/internal/drafts"
	"github.com/promptvault/promptvault/internal/httpapi"
	"github.com/promptvault/promptvault/internal/idp"
	"github.com/promptvault/promptvault/internal/logctx"
	"github.com/promptvault/promptvault/internal/mcpsrv"
	"github.com/promptvault/promptvault/internal/prompts"
	"github.com/promptvault/promptvault/internal/wellknown"
)

func main() {
	log := slog.New(logctx.Handler{Handler: slog.NewJSONHandler(os.Stdout, nil)})
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, log); err != nil {
		log.Error("exit", slog.String("err", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, log *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	idpClient, err := idp.New(ctx, idp.Config{
		Issuer:       cfg.IDP.Issuer,
		ClientID:     cfg.IDP.ClientID,
		ClientSecret: cfg.IDP.ClientSecret,
		RedirectURL:  cfg.IDP.RedirectURL,
	})
	if err != nil {
		return err
	}

	keys := authn.NewKeyCache()
	sessions, err := authn.NewSessionValidator(
		idpClient.Issuer(),
		idpClient.JWKSURL(),
		keys,
		authn.WithAudience(cfg.IDP.ClientID),
	)
	if err != nil {
		return err
	}

	cookies := authn.NewCookieVerifier([]byte(cfg.CookieSigningSecret))

	authOpts := []authn.AuthenticatorOption{
		authn.WithCookieVerifier(cookies),
		authn.WithLogger(log),
	}
	var widget *authn.WidgetCodec
	if cfg.WidgetSigningSecret != "" {
		widget, err = authn.NewWidgetCodec([]byte(cfg.WidgetSigningSecret))
		if err != nil {
			return err
		}
		authOpts = append(authOpts, authn.WithWidgetCodec(widget))
	} else {
		log.Warn("widget signing secret not set; widget tokens disabled")
	}
	auth, err := authn.NewAuthenticator(sessions, authOpts...)
	if err != nil {
		return err
	}

	var store prompts.Store
	if cfg.Store.FirestoreProject != "" {
		fsClient, err := firestore.NewClient(ctx, cfg.Store.FirestoreProject)
		if err != nil {
			return fmt.Errorf("firestore: %w", err)
		}
		defer fsClient.Close()
		store = prompts.NewFirestoreStore(fsClient)
	} else {
		log.Warn("firestore project not set; using in-memory prompt store")
		store = prompts.NewMemoryStore()
	}

	var draftStore *drafts.Store
	if ds, err := drafts.New(drafts.Config{
		RedisAddr: cfg.Drafts.RedisAddr,
		KeyPrefix: cfg.Drafts.KeyPrefix,
	}); err != nil {
		log.Warn("draft store unavailable", slog.String("err", err.Error()))
	} else {
		draftStore = ds
		defer draftStore.Close()
	}

	api := httpapi.New(httpapi.Config{
		Log:     log,
		Auth:    auth,
		Store:   store,
		Drafts:  draftStore,
		IDP:     idpClient,
		Cookies: cookies,
		Widget:  widget,
	})

	resourceMetadataURL := cfg.PublicURL + wellknown.Path
	protocol := auth.Middleware(authn.WithResourceMetadataURL(resourceMetadataURL))

	mcpServer := mcpsrv.New(store,
		mcpsrv.WithLogger(log),
		mcpsrv.WithAdvertisedScopes(wellknown.DefaultScopes),
	)

	mux := http.NewServeMux()
	mux.Handle(wellknown.Path, wellknown.NewHandler(cfg.ResourceURL, cfg.AuthorizationServerURL, nil, log))
	mux.Handle(mcpsrv.EndpointPath, protocol(mcpServer.Handler()))
	mux.Handle("/", api)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", slog.String("addr", cfg.ListenAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
