package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is a server-side authenticated session keyed by an opaque
// token. Sessions are never updated after creation; expiry is absolute.
type Session struct {
	Token     string    `gorm:"primaryKey" json:"-"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (Session) TableName() string {
	return "sessions"
}
