package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hugh/referral-hub/internal/api/dto"
	"github.com/hugh/referral-hub/internal/api/middleware"
	"github.com/hugh/referral-hub/internal/api/validation"
	"github.com/hugh/referral-hub/internal/database/models"
	"github.com/hugh/referral-hub/internal/referrals"
)

type ReferralHandler struct {
	service *referrals.Service
}

func NewReferralHandler(service *referrals.Service) *ReferralHandler {
	return &ReferralHandler{service: service}
}

// ReferralResponse represents a referral in API responses
type ReferralResponse struct {
	ID            string  `json:"id"`
	ReceiverEmail string  `json:"receiver_email"`
	ReceiverName  string  `json:"receiver_name,omitempty"`
	LeadCompany   string  `json:"lead_company"`
	LeadEmail     string  `json:"lead_email"`
	DealValue     float64 `json:"deal_value"`
	Stage         string  `json:"stage"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

func referralToResponse(referral *models.Referral) ReferralResponse {
	resp := ReferralResponse{
		ID:          referral.ID.String(),
		LeadCompany: referral.LeadCompany,
		LeadEmail:   referral.LeadEmail,
		DealValue:   referral.DealValue,
		Stage:       string(referral.Stage),
		CreatedAt:   referral.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   referral.UpdatedAt.Format(time.RFC3339),
	}
	if referral.Receiver != nil {
		resp.ReceiverEmail = referral.Receiver.Email
		resp.ReceiverName = referral.Receiver.Name
	}
	return resp
}

// List handles GET /api/v1/referrals
func (h *ReferralHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	list, err := h.service.ListByIntroducer(r.Context(), user.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list referrals"})
		return
	}

	response := make([]ReferralResponse, len(list))
	for i := range list {
		response[i] = referralToResponse(&list[i])
	}

	writeJSON(w, http.StatusOK, response)
}

// Create handles POST /api/v1/referrals
func (h *ReferralHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	var req dto.CreateReferralRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	referral, err := h.service.Create(r.Context(), user, referrals.CreateInput{
		ReceiverEmail: req.ReceiverEmail,
		LeadCompany:   validation.SanitizeString(strings.TrimSpace(req.LeadCompany)),
		LeadEmail:     req.LeadEmail,
		DealValue:     req.DealValue,
	})

	if err != nil {
		switch {
		case errors.Is(err, referrals.ErrReceiverNotFound):
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Receiver not found in community directory"})
		case errors.Is(err, referrals.ErrDuplicateLead):
			writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "A referral for this lead was already submitted recently"})
		case errors.Is(err, referrals.ErrSelfReferral):
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "You cannot refer a lead to yourself"})
		case errors.Is(err, referrals.ErrLeadEmailTaken):
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Lead email must differ from introducer and receiver"})
		default:
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create referral"})
		}
		return
	}

	writeJSON(w, http.StatusCreated, referralToResponse(referral))
}

// UpdateStage handles PUT /api/v1/referrals/{id}/stage
func (h *ReferralHandler) UpdateStage(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid referral ID"})
		return
	}

	var req dto.UpdateStageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	referral, err := h.service.Transition(r.Context(), id, user.ID, models.DealStage(req.Stage))
	if err != nil {
		switch {
		case errors.Is(err, referrals.ErrNotFound):
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Referral not found"})
		case errors.Is(err, referrals.ErrInvalidStage):
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid deal stage"})
		default:
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update referral"})
		}
		return
	}

	writeJSON(w, http.StatusOK, referralToResponse(referral))
}
