package dto

import (
	"strings"

	"github.com/hugh/referral-hub/internal/api/validation"
	"github.com/hugh/referral-hub/internal/database/models"
)

type CreateReferralRequest struct {
	ReceiverEmail string  `json:"receiver_email"`
	LeadCompany   string  `json:"lead_company"`
	LeadEmail     string  `json:"lead_email"`
	DealValue     float64 `json:"deal_value"`
}

func (r CreateReferralRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.ReceiverEmail == "" {
		errors["receiver_email"] = "Receiver email is required"
	} else if !validation.IsValidEmail(r.ReceiverEmail) {
		errors["receiver_email"] = "Receiver email format is invalid"
	}
	if strings.TrimSpace(r.LeadCompany) == "" {
		errors["lead_company"] = "Lead company is required"
	} else if len(strings.TrimSpace(r.LeadCompany)) < 2 {
		errors["lead_company"] = "Lead company must be at least 2 characters"
	}
	if r.LeadEmail == "" {
		errors["lead_email"] = "Lead email is required"
	} else if !validation.IsValidEmail(r.LeadEmail) {
		errors["lead_email"] = "Lead email format is invalid"
	}
	if r.DealValue <= 0 {
		errors["deal_value"] = "Deal value must be greater than zero"
	}

	return errors
}

type UpdateStageRequest struct {
	Stage string `json:"stage"`
}

func (r UpdateStageRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Stage == "" {
		errors["stage"] = "Stage is required"
	} else if !models.DealStage(r.Stage).Valid() {
		errors["stage"] = "Stage must be one of: new, contacted, won"
	}

	return errors
}
