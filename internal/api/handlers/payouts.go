package handlers

import (
	"errors"
	"net/http"

	"github.com/hugh/referral-hub/internal/api/dto"
	"github.com/hugh/referral-hub/internal/api/middleware"
	"github.com/hugh/referral-hub/internal/payouts"
)

type PayoutHandler struct {
	service *payouts.Service
}

func NewPayoutHandler(service *payouts.Service) *PayoutHandler {
	return &PayoutHandler{service: service}
}

// Ensure handles POST /api/v1/payouts/account
func (h *PayoutHandler) Ensure(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	status, err := h.service.EnsureAccount(r.Context(), user)
	if err != nil {
		switch {
		case errors.Is(err, payouts.ErrAlreadyLinked):
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "A payout account is already linked"})
		default:
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create payout account"})
		}
		return
	}

	writeJSON(w, http.StatusCreated, status)
}

// Status handles GET /api/v1/payouts/account
func (h *PayoutHandler) Status(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	status, err := h.service.Status(r.Context(), user)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to fetch payout account status"})
		return
	}

	writeJSON(w, http.StatusOK, status)
}
