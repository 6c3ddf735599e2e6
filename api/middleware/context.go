package middleware

import (
	"context"

	"github.com/traverseglobe/quotation-backend/internal/quotation"
)

type contextKey string

const (
	ctxSessionID contextKey = "session_id"
	ctxContainer contextKey = "quotation_container"
)

func SessionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxSessionID).(string); ok {
		return v
	}
	return ""
}

// ContainerFromContext returns the quotation resolved by the Session middleware.
func ContainerFromContext(ctx context.Context) *quotation.Container {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxContainer).(*quotation.Container); ok {
		return v
	}
	return nil
}

// WithSession injects the session identifier and its container for downstream handlers.
func WithSession(ctx context.Context, sessionID string, c *quotation.Container) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxSessionID, sessionID)
	return context.WithValue(ctx, ctxContainer, c)
}
