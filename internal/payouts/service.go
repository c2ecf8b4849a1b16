// Package payouts owns a user's payout-account linkage and the KYC
// status derived from the payment processor's account events.
package payouts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hugh/referral-hub/internal/database/models"
	"gorm.io/gorm"
)

var (
	ErrAlreadyLinked    = errors.New("user already has a linked payout account")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

type Service struct {
	db            *gorm.DB
	processor     ProcessorClient
	webhookSecret string
	baseURL       string
	logger        *slog.Logger
}

func NewService(db *gorm.DB, processor ProcessorClient, webhookSecret, baseURL string, logger *slog.Logger) *Service {
	return &Service{
		db:            db,
		processor:     processor,
		webhookSecret: webhookSecret,
		baseURL:       baseURL,
		logger:        logger,
	}
}

// AccountStatus is the payout-account view returned to the user.
type AccountStatus struct {
	HasAccount    bool             `json:"has_account"`
	AccountID     string           `json:"account_id,omitempty"`
	OnboardingURL string           `json:"onboarding_url,omitempty"`
	KYCStatus     models.KYCStatus `json:"kyc_status"`
}

// EnsureAccount links a payout account to the user. Creation is a
// two-step operation (create upstream, persist the reference); if the
// persist fails the upstream account is deleted best-effort so it does
// not orphan. A user can only ever hold one linkage; the AlreadyLinked
// guard enforces that before anything is created upstream.
func (s *Service) EnsureAccount(ctx context.Context, user *models.User) (*AccountStatus, error) {
	if user.StripeConnectID != "" {
		return nil, ErrAlreadyLinked
	}

	accountID, err := s.processor.CreateAccount(ctx, user.Email, user.ID)
	if err != nil {
		return nil, fmt.Errorf("creating payout account: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("stripe_connect_id", accountID).Error; err != nil {
		if delErr := s.processor.DeleteAccount(ctx, accountID); delErr != nil {
			s.logger.Error("failed to delete orphaned payout account",
				"account_id", accountID, "error", delErr)
		}
		return nil, fmt.Errorf("persisting account linkage: %w", err)
	}
	user.StripeConnectID = accountID

	url, err := s.processor.CreateOnboardingLink(ctx, accountID, s.baseURL, s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("creating onboarding link: %w", err)
	}

	s.logger.Info("payout account linked", "user_id", user.ID, "account_id", accountID)

	return &AccountStatus{
		HasAccount:    true,
		AccountID:     accountID,
		OnboardingURL: url,
		KYCStatus:     user.KYCStatus,
	}, nil
}

// Status reports the user's payout-account state, with a fresh
// onboarding link when an account exists (links are single-use).
func (s *Service) Status(ctx context.Context, user *models.User) (*AccountStatus, error) {
	if user.StripeConnectID == "" {
		return &AccountStatus{HasAccount: false, KYCStatus: user.KYCStatus}, nil
	}

	url, err := s.processor.CreateOnboardingLink(ctx, user.StripeConnectID, s.baseURL, s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("creating onboarding link: %w", err)
	}

	return &AccountStatus{
		HasAccount:    true,
		AccountID:     user.StripeConnectID,
		OnboardingURL: url,
		KYCStatus:     user.KYCStatus,
	}, nil
}
