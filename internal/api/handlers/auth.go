package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hugh/referral-hub/internal/api/dto"
	"github.com/hugh/referral-hub/internal/api/middleware"
	"github.com/hugh/referral-hub/internal/auth"
)

type AuthHandler struct {
	authService *auth.Service
	sessions    *auth.SessionStore
}

func NewAuthHandler(authService *auth.Service, sessions *auth.SessionStore) *AuthHandler {
	return &AuthHandler{authService: authService, sessions: sessions}
}

// IssueCode handles POST /api/v1/auth/code
func (h *AuthHandler) IssueCode(w http.ResponseWriter, r *http.Request) {
	var req dto.IssueCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	if err := h.authService.IssueCode(r.Context(), req.Email); err != nil {
		switch {
		case errors.Is(err, auth.ErrIdentityNotFound):
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "No community member found for this email"})
		case errors.Is(err, auth.ErrDeliveryFailed):
			writeJSON(w, http.StatusBadGateway, dto.ErrorResponse{Error: "Failed to deliver login code"})
		default:
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to issue login code"})
		}
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Login code sent"})
}

// VerifyCode handles POST /api/v1/auth/verify
func (h *AuthHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req dto.VerifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	user, token, err := h.authService.RedeemCode(r.Context(), req.Email, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidOrExpiredCode):
			writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Invalid or expired login code"})
		default:
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Login failed"})
		}
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.sessions.TTL().Seconds()),
	})

	writeJSON(w, http.StatusOK, dto.AuthResponse{User: dto.UserToDTO(user)})
}

// Logout handles POST /api/v1/auth/logout. The route sits behind Auth,
// so the token is known to resolve; Destroy stays idempotent anyway.
// The clearing cookie carries the same attributes as the set-cookie so
// browsers treat it as the same cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := middleware.SessionToken(r); token != "" {
		_ = h.sessions.Destroy(r.Context(), token)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Logged out"})
}

// Me handles GET /api/v1/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Unauthorized"})
		return
	}

	writeJSON(w, http.StatusOK, dto.UserToDTO(user))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
