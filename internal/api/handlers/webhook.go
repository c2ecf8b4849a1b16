package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/hugh/referral-hub/internal/api/dto"
	"github.com/hugh/referral-hub/internal/payouts"
)

// maxWebhookBody caps webhook payloads; Stripe events are a few KB.
const maxWebhookBody = 64 * 1024

type WebhookHandler struct {
	service *payouts.Service
	logger  *slog.Logger
}

func NewWebhookHandler(service *payouts.Service, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{service: service, logger: logger}
}

// HandleStripe handles POST /api/v1/webhooks/stripe. Signature
// verification happens before any event processing; unhandled event
// types are acknowledged so Stripe stops redelivering them.
func (h *WebhookHandler) HandleStripe(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Failed to read request body"})
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if err := h.service.HandleEvent(r.Context(), payload, signature); err != nil {
		switch {
		case errors.Is(err, payouts.ErrInvalidSignature):
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid webhook signature"})
		default:
			h.logger.Error("webhook processing failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Webhook processing failed"})
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
