package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pairchat/server/internal/auth"
)

type contextKey string

const userIDKey contextKey = "user_id"

// Auth validates the session cookie and stores the resolved user id in the
// request context. Handlers behind it never re-derive identity themselves.
func Auth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(auth.CookieName)
			if err != nil {
				unauthorized(w)
				return
			}

			userID, err := auth.VerifyToken(cookie.Value, secret)
			if err != nil {
				unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID returns the authenticated user id placed in the context by Auth.
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}

// WithUserID returns a context carrying the authenticated user id, as Auth
// installs it after verifying the session cookie.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"code":    "unauthenticated",
		"message": "Missing or invalid session",
	})
}
