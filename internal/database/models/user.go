package models

// KYCStatus is the payout-eligibility state derived from the payment
// processor's identity-verification requirements.
type KYCStatus string

const (
	KYCNotStarted KYCStatus = "not_started"
	KYCInProgress KYCStatus = "in_progress"
	KYCVerified   KYCStatus = "verified"
	KYCFailed     KYCStatus = "failed"
)

type User struct {
	Base
	Email          string `gorm:"uniqueIndex;not null" json:"email"`
	Name           string `json:"name"`
	AvatarURL      string `json:"avatar_url,omitempty"`
	CircleMemberID string `gorm:"index" json:"circle_member_id,omitempty"`

	// Payout account linkage, set once by EnsureAccount
	StripeConnectID string    `gorm:"index" json:"-"`
	KYCStatus       KYCStatus `gorm:"default:'not_started'" json:"kyc_status"`

	// Pending one-time login code. At most one per user; a new
	// issue overwrites the previous one.
	LoginCode        string `json:"-"`
	LoginCodeExpires int64  `json:"-"`
}

func (User) TableName() string {
	return "users"
}
