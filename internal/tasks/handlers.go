package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/hugh/referral-hub/internal/circle"
)

type Handler struct {
	directory circle.Directory
	logger    *slog.Logger
}

func NewHandler(directory circle.Directory, logger *slog.Logger) *Handler {
	return &Handler{directory: directory, logger: logger}
}

func (h *Handler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeReferralCreated, h.HandleReferralCreated)
}

// HandleReferralCreated delivers the receiver's new-referral DM. A
// delivery failure returns an error so asynq retries with backoff; the
// referral itself was committed long before this runs.
func (h *Handler) HandleReferralCreated(ctx context.Context, t *asynq.Task) error {
	var payload ReferralCreatedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	body := renderReferralDM(payload)
	if err := h.directory.SendDirectMessage(ctx, payload.MemberID, body); err != nil {
		h.logger.Warn("referral notification delivery failed",
			"referral_id", payload.ReferralID,
			"member_id", payload.MemberID,
			"error", err,
		)
		return fmt.Errorf("sending referral notification: %w", err)
	}

	h.logger.Info("referral notification delivered",
		"referral_id", payload.ReferralID,
		"member_id", payload.MemberID,
	)
	return nil
}

func renderReferralDM(p ReferralCreatedPayload) string {
	from := p.IntroducerName
	if from == "" {
		from = p.IntroducerEmail
	}

	return fmt.Sprintf(`🎯 New Referral Opportunity!

You've received a new referral from %s.

**Lead Details:**
• Company: %s
• Email: %s
• Deal Value: $%.0f

This referral has been added to your pipeline. You can view and manage it in the deals section.

Best of luck with this opportunity! 🚀`, from, p.LeadCompany, p.LeadEmail, p.DealValue)
}
