package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/hugh/referral-hub/internal/auth"
	"github.com/hugh/referral-hub/internal/database/models"
)

type contextKey string

const userKey contextKey = "user"

// SessionCookieName is the cookie that carries the session token.
const SessionCookieName = "session"

// Auth resolves the session token to a live user through the guard and
// stores the user on the request context. Requests without a resolvable
// session get a 401.
func Auth(guard auth.Guard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := SessionToken(r)
			if token == "" {
				writeUnauthorized(w)
				return
			}

			user, err := guard.Resolve(r.Context(), token)
			if err != nil {
				writeUnauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionToken extracts the session token from the request: the session
// cookie first (browser clients), then a Bearer token (API clients).
func SessionToken(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return ""
}

// GetUser returns the authenticated user from the context, or nil when
// the request did not pass through Auth.
func GetUser(ctx context.Context) *models.User {
	if user, ok := ctx.Value(userKey).(*models.User); ok {
		return user
	}
	return nil
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
}
