package correlation

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// Header names accepted at the ingress boundary. Only these keys are ever
// carried across step boundaries; arbitrary payload data never rides along.
const (
	HeaderRequestID  = "X-Request-Id"
	HeaderOriginHost = "X-Origin-Host"
	HeaderOriginUser = "X-Origin-User"
)

// Keys is the allow-listed correlation data attached to every boundary call.
type Keys struct {
	RequestID  string
	OriginHost string
	OriginUser string
}

type contextKey struct{}

// NewContext returns a child context carrying the correlation keys.
func NewContext(ctx context.Context, keys Keys) context.Context {
	return context.WithValue(ctx, contextKey{}, keys)
}

// FromContext returns the correlation keys carried by ctx, if any.
func FromContext(ctx context.Context) (Keys, bool) {
	keys, ok := ctx.Value(contextKey{}).(Keys)
	return keys, ok
}

// FromRequest applies the allow-list filter to the incoming request headers.
// Unknown X- headers are dropped here, once, at the boundary.
func FromRequest(r *http.Request) Keys {
	return Keys{
		RequestID:  strings.TrimSpace(r.Header.Get(HeaderRequestID)),
		OriginHost: strings.TrimSpace(r.Header.Get(HeaderOriginHost)),
		OriginUser: strings.TrimSpace(r.Header.Get(HeaderOriginUser)),
	}
}

// LogHandler is a slog.Handler that appends the correlation keys carried by
// the context to every record, so each boundary call logs who asked for it.
type LogHandler struct {
	slog.Handler
}

// NewLogHandler decorates h with correlation attributes.
func NewLogHandler(h slog.Handler) *LogHandler {
	return &LogHandler{Handler: h}
}

func (h *LogHandler) Handle(ctx context.Context, r slog.Record) error {
	if keys, ok := FromContext(ctx); ok {
		if keys.RequestID != "" {
			r.AddAttrs(slog.String("request_id", keys.RequestID))
		}
		if keys.OriginHost != "" {
			r.AddAttrs(slog.String("origin_host", keys.OriginHost))
		}
		if keys.OriginUser != "" {
			r.AddAttrs(slog.String("origin_user", keys.OriginUser))
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LogHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *LogHandler) WithGroup(name string) slog.Handler {
	return &LogHandler{Handler: h.Handler.WithGroup(name)}
}
