package payouts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hugh/referral-hub/internal/database/models"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"gorm.io/gorm"
)

// DeriveKYCStatus maps an account's outstanding-requirements snapshot
// to a KYC status. The mapping is total, with strict precedence:
// FAILED (anything past due, errored or disabled) over VERIFIED (all
// requirement sets empty) over IN_PROGRESS. Verification demands an
// explicit all-clear snapshot, so an absent requirements object stays
// in progress. Because the mapping always works from the full snapshot,
// reprocessing the same event (or processing events out of order)
// converges on the same answer.
func DeriveKYCStatus(req *stripe.AccountRequirements) models.KYCStatus {
	if req == nil {
		return models.KYCInProgress
	}
	if len(req.PastDue) > 0 || len(req.Errors) > 0 || req.DisabledReason != "" {
		return models.KYCFailed
	}
	if len(req.CurrentlyDue) == 0 && len(req.EventuallyDue) == 0 {
		return models.KYCVerified
	}
	return models.KYCInProgress
}

// HandleEvent verifies and processes one webhook delivery. Verification
// fails closed: nothing is read from an unverified payload. Unhandled
// event types and events for accounts we did not create are accepted
// and ignored, so the processor never retries them.
func (s *Service) HandleEvent(ctx context.Context, payload []byte, signature string) error {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		s.logger.Warn("webhook signature verification failed", "error", err)
		return ErrInvalidSignature
	}

	switch event.Type {
	case "account.updated":
		return s.reconcileAccount(ctx, &event)
	default:
		s.logger.Debug("ignoring webhook event", "type", event.Type)
		return nil
	}
}

func (s *Service) reconcileAccount(ctx context.Context, event *stripe.Event) error {
	var account stripe.Account
	if err := json.Unmarshal(event.Data.Raw, &account); err != nil {
		return fmt.Errorf("decoding account payload: %w", err)
	}

	// Accounts without our linkage metadata are not ours to reconcile.
	rawUserID := account.Metadata["user_id"]
	if rawUserID == "" {
		return nil
	}
	userID, err := uuid.Parse(rawUserID)
	if err != nil {
		s.logger.Warn("webhook account has malformed user_id metadata",
			"account_id", account.ID, "user_id", rawUserID)
		return nil
	}

	status := DeriveKYCStatus(account.Requirements)

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn("webhook account references unknown user",
				"account_id", account.ID, "user_id", userID)
			return nil
		}
		return err
	}

	prev := user.KYCStatus
	if prev == status {
		// Redelivery or no-op update; nothing to write.
		return nil
	}

	if err := s.db.WithContext(ctx).Model(&user).
		Update("kyc_status", status).Error; err != nil {
		return fmt.Errorf("updating kyc status: %w", err)
	}

	s.logger.Info("kyc status reconciled",
		"user_id", userID,
		"from", prev,
		"to", status,
	)
	return nil
}
