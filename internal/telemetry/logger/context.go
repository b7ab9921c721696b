package logger

import (
	"context"
	"log/slog"
)

type scopeKey struct{}

// scope is the request-scoped logging state carried by a context.
type scope struct {
	base      *slog.Logger // nil means slog.Default()
	requestID string
}

func scopeOf(ctx context.Context) scope {
	s, _ := ctx.Value(scopeKey{}).(scope)
	return s
}

// WithLogger makes l the logger L returns for ctx.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	s := scopeOf(ctx)
	s.base = l
	return context.WithValue(ctx, scopeKey{}, s)
}

// WithRequestID tags ctx with the request's id.
func WithRequestID(ctx context.Context, id string) context.Context {
	s := scopeOf(ctx)
	s.requestID = id
	return context.WithValue(ctx, scopeKey{}, s)
}

// RequestIDFromContext returns the id set by WithRequestID, or "".
func RequestIDFromContext(ctx context.Context) string {
	return scopeOf(ctx).requestID
}

// L returns the context's logger, or slog.Default(), with a request_id
// attribute when ctx carries one.
func L(ctx context.Context) *slog.Logger {
	s := scopeOf(ctx)
	l := s.base
	if l == nil {
		l = slog.Default()
	}
	if s.requestID != "" {
		l = l.With("request_id", s.requestID)
	}
	return l
}
