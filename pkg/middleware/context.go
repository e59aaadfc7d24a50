package middleware

import (
	"context"
)

type contextKeyType string

const (
	userIDKey   contextKeyType = "user_id"
	apiKeyIDKey contextKeyType = "api_key_id"
)

// WithUserID stores the authenticated user ID in the request context.
// Auth middlewares call this so downstream handlers and the request
// logger can pick the identity up.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserIDFromContext returns the authenticated user ID, or "" if the
// request is unauthenticated.
func UserIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}

// WithAPIKeyID stores the ID of the API key that authenticated the request.
func WithAPIKeyID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, apiKeyIDKey, id)
}

// APIKeyIDFromContext returns the authenticating API key ID, or 0.
func APIKeyIDFromContext(ctx context.Context) int64 {
	if id, ok := ctx.Value(apiKeyIDKey).(int64); ok {
		return id
	}
	return 0
}
