package auth

import (
	"context"

	"github.com/hugh/referral-hub/internal/database/models"
)

// Authenticator defines the one-time-code login operations.
type Authenticator interface {
	IssueCode(ctx context.Context, email string) error
	RedeemCode(ctx context.Context, email, code string) (*models.User, string, error)
}

// Guard resolves a session token to a live user. Every protected
// operation routes through it.
type Guard interface {
	Resolve(ctx context.Context, token string) (*models.User, error)
}

// Compile-time interface satisfaction checks
var (
	_ Authenticator = (*Service)(nil)
	_ Guard         = (*SessionStore)(nil)
)
