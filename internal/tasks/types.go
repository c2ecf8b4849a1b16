package tasks

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task type names
const (
	TypeReferralCreated = "notify:referral_created"
)

// ReferralCreatedPayload carries everything the worker needs to render
// and deliver the receiver's DM without touching the database.
type ReferralCreatedPayload struct {
	ReferralID      uuid.UUID `json:"referral_id"`
	MemberID        string    `json:"member_id"`
	IntroducerName  string    `json:"introducer_name"`
	IntroducerEmail string    `json:"introducer_email"`
	LeadCompany     string    `json:"lead_company"`
	LeadEmail       string    `json:"lead_email"`
	DealValue       float64   `json:"deal_value"`
}

func NewReferralCreatedTask(payload ReferralCreatedPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeReferralCreated, data), nil
}
