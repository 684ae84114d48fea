// Package logctx enriches slog records with request- and identity-scoped
// attributes carried in the context, so handlers can log terse event names
// and still produce fully attributed records.
package logctx

import (
	"context"
	"log/slog"
)

type Handler struct {
	slog.Handler
}

func (h Handler) Handle(ctx context.Context, r slog.Record) error {
	if rd, ok := ctx.Value(requestDataKey{}).(*RequestData); ok {
		r.AddAttrs(slog.Group("req",
			slog.String("id", rd.RequestID),
			slog.String("method", rd.Method),
			slog.String("user_agent", rd.UserAgent),
			slog.String("remote_addr", rd.RemoteAddr),
			slog.String("path", rd.Path),
		))
	}

	if id, ok := ctx.Value(identityDataKey{}).(*IdentityData); ok {
		r.AddAttrs(slog.Group("identity",
			slog.String("user_id", id.UserID),
			slog.String("session_id", id.SessionID),
			slog.String("scheme", id.Scheme),
		))
	}

	return h.Handler.Handle(ctx, r)
}

type requestDataKey struct{}

type RequestData struct {
	RequestID  string
	Method     string
	UserAgent  string
	RemoteAddr string
	Path       string
}

func WithRequestData(ctx context.Context, data *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, data)
}

type identityDataKey struct{}

// IdentityData mirrors the authenticated identity for logging. Scheme is
// "widget" or "session".
type IdentityData struct {
	UserID    string
	SessionID string
	Scheme    string
}

func WithIdentityData(ctx context.Context, data *IdentityData) context.Context {
	return context.WithValue(ctx, identityDataKey{}, data)
}
