package core

import (
	"context"
	"log/slog"
)

type requestIDKey struct{}

// WithRequestID attaches the X-Request-ID of the current call.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id set by WithRequestID, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestIDAttr is the request id in ctx as a log attribute.
func RequestIDAttr(ctx context.Context) slog.Attr {
	return slog.String("request_id", RequestID(ctx))
}
