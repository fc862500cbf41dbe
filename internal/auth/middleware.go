package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const tokenKey contextKey = "session_token"

// CookieName is the cookie carrying the session token.
const CookieName = "session"

// ExtractToken reads the session token from the session cookie or a
// Bearer Authorization header.
func ExtractToken(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	return ""
}

// Middleware puts the request's session token into the context. Resolving it
// is left to the booking service, so an absent token is not rejected here.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithToken(r.Context(), ExtractToken(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey, token)
}

func Token(ctx context.Context) string {
	if tok, ok := ctx.Value(tokenKey).(string); ok {
		return tok
	}
	return ""
}
