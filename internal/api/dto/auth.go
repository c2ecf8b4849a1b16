package dto

import (
	"github.com/hugh/referral-hub/internal/api/validation"
	"github.com/hugh/referral-hub/internal/database/models"
)

type IssueCodeRequest struct {
	Email string `json:"email"`
}

func (r IssueCodeRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Email == "" {
		errors["email"] = "Email is required"
	} else if !validation.IsValidEmail(r.Email) {
		errors["email"] = "Email format is invalid"
	}

	return errors
}

type VerifyCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (r VerifyCodeRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Email == "" {
		errors["email"] = "Email is required"
	} else if !validation.IsValidEmail(r.Email) {
		errors["email"] = "Email format is invalid"
	}
	if r.Code == "" {
		errors["code"] = "Code is required"
	} else if !validation.IsValidLoginCode(r.Code) {
		errors["code"] = "Code must be 6 digits"
	}

	return errors
}

type UserDTO struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	Name             string `json:"name"`
	AvatarURL        string `json:"avatar_url,omitempty"`
	CircleMemberID   string `json:"circle_member_id,omitempty"`
	KYCStatus        string `json:"kyc_status"`
	HasPayoutAccount bool   `json:"has_payout_account"`
}

type AuthResponse struct {
	User UserDTO `json:"user"`
}

func UserToDTO(user *models.User) UserDTO {
	return UserDTO{
		ID:               user.ID.String(),
		Email:            user.Email,
		Name:             user.Name,
		AvatarURL:        user.AvatarURL,
		CircleMemberID:   user.CircleMemberID,
		KYCStatus:        string(user.KYCStatus),
		HasPayoutAccount: user.StripeConnectID != "",
	}
}
