package models

import "github.com/google/uuid"

// DealStage is a referral's position in the sales pipeline.
type DealStage string

const (
	StageNew       DealStage = "new"
	StageContacted DealStage = "contacted"
	StageWon       DealStage = "won"
)

func (s DealStage) Valid() bool {
	switch s {
	case StageNew, StageContacted, StageWon:
		return true
	}
	return false
}

type Referral struct {
	Base
	IntroducerUserID uuid.UUID `gorm:"type:uuid;index;not null" json:"introducer_user_id"`
	ReceiverUserID   uuid.UUID `gorm:"type:uuid;index;not null" json:"receiver_user_id"`
	LeadCompany      string    `gorm:"not null" json:"lead_company"`
	LeadEmail        string    `gorm:"index;not null" json:"lead_email"`
	DealValue        float64   `gorm:"not null" json:"deal_value"`
	Stage            DealStage `gorm:"default:'new'" json:"stage"`

	// Relationships
	Introducer *User `gorm:"foreignKey:IntroducerUserID" json:"introducer,omitempty"`
	Receiver   *User `gorm:"foreignKey:ReceiverUserID" json:"receiver,omitempty"`
}

func (Referral) TableName() string {
	return "referrals"
}
