package logging

import (
	"context"

	"go.uber.org/zap"
)

type requestIDKey struct{}

// RequestIDField is the log field name used for request correlation.
const RequestIDField = "request_id"

// WithRequestID returns a copy of ctx carrying the request id. An empty id
// leaves ctx unchanged.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request id stored by WithRequestID, or "".
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// ContextFields returns the correlation fields carried by ctx. Work started
// by the poller has none.
func ContextFields(ctx context.Context) []zap.Field {
	if id := RequestIDFromContext(ctx); id != "" {
		return []zap.Field{zap.String(RequestIDField, id)}
	}
	return nil
}
