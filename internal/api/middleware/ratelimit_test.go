package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hugh/referral-hub/internal/api/middleware"
	"github.com/hugh/referral-hub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimit(t *testing.T) {
	t.Run("allows up to the limit then rejects", func(t *testing.T) {
		handler := middleware.RateLimit(2, 60)(okHandler())

		for i := 0; i < 2; i++ {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = "10.0.0.1:1234"
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			require.Equal(t, http.StatusOK, rr.Code)
		}

		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusTooManyRequests, rr.Code)
		assert.NotEmpty(t, rr.Header().Get("Retry-After"))
		assert.Equal(t, "2", rr.Header().Get("X-RateLimit-Limit"))
	})

	t.Run("limits are per client IP", func(t *testing.T) {
		handler := middleware.RateLimit(1, 60)(okHandler())

		first := httptest.NewRequest("GET", "/", nil)
		first.RemoteAddr = "10.0.0.1:1234"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, first)
		require.Equal(t, http.StatusOK, rr.Code)

		other := httptest.NewRequest("GET", "/", nil)
		other.RemoteAddr = "10.0.0.2:1234"
		rr = httptest.NewRecorder()
		handler.ServeHTTP(rr, other)
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}

func TestRateLimitByUser(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()

	// Second authenticated member sharing the client IP
	otherUser := testutil.CreateTestUser(t, tc.DB)
	otherToken, err := tc.Sessions.Create(context.Background(), otherUser.ID)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(tc.Sessions))
		r.Use(middleware.RateLimitByUser(1, 60))
		r.Get("/protected", func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})

	send := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/protected", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: token})
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		return rr
	}

	t.Run("budget is keyed on the user, not the shared IP", func(t *testing.T) {
		require.Equal(t, http.StatusOK, send(tc.Token).Code)
		assert.Equal(t, http.StatusTooManyRequests, send(tc.Token).Code)

		// Same IP, different member: separate budget
		assert.Equal(t, http.StatusOK, send(otherToken).Code)
	})
}
