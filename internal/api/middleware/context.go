package middleware

import (
	"context"
	"net/http"
)

type contextKey string

const clientKeyKey contextKey = "client_key"

func setClientKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, clientKeyKey, key)
}

// ClientKey returns the caller identity set by Authenticate.
func ClientKey(r *http.Request) (string, bool) {
	key, ok := r.Context().Value(clientKeyKey).(string)
	return key, ok && key != ""
}

// WithClientKey sets the caller identity directly (for testing).
func WithClientKey(ctx context.Context, key string) context.Context {
	return setClientKey(ctx, key)
}
