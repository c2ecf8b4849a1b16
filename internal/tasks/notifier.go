package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/hugh/referral-hub/internal/circle"
	"github.com/hugh/referral-hub/internal/referrals"
)

// QueueNotifier hands receiver notifications to the background worker.
type QueueNotifier struct {
	client *asynq.Client
	logger *slog.Logger
}

func NewQueueNotifier(client *asynq.Client, logger *slog.Logger) *QueueNotifier {
	return &QueueNotifier{client: client, logger: logger}
}

var _ referrals.Notifier = (*QueueNotifier)(nil)

func (n *QueueNotifier) ReferralCreated(ctx context.Context, notification referrals.Notification) error {
	task, err := NewReferralCreatedTask(ReferralCreatedPayload{
		ReferralID:      notification.ReferralID,
		MemberID:        notification.MemberID,
		IntroducerName:  notification.IntroducerName,
		IntroducerEmail: notification.IntroducerEmail,
		LeadCompany:     notification.LeadCompany,
		LeadEmail:       notification.LeadEmail,
		DealValue:       notification.DealValue,
	})
	if err != nil {
		return fmt.Errorf("building notification task: %w", err)
	}

	info, err := n.client.EnqueueContext(ctx, task, asynq.Queue("default"), asynq.MaxRetry(5))
	if err != nil {
		return fmt.Errorf("enqueueing notification: %w", err)
	}

	n.logger.Debug("referral notification enqueued",
		"referral_id", notification.ReferralID,
		"task_id", info.ID,
	)
	return nil
}

// DirectNotifier sends the DM inline. Used when no queue is configured;
// delivery is still best-effort from the caller's point of view.
type DirectNotifier struct {
	directory circle.Directory
	logger    *slog.Logger
}

func NewDirectNotifier(directory circle.Directory, logger *slog.Logger) *DirectNotifier {
	return &DirectNotifier{directory: directory, logger: logger}
}

var _ referrals.Notifier = (*DirectNotifier)(nil)

func (n *DirectNotifier) ReferralCreated(ctx context.Context, notification referrals.Notification) error {
	body := renderReferralDM(ReferralCreatedPayload{
		ReferralID:      notification.ReferralID,
		MemberID:        notification.MemberID,
		IntroducerName:  notification.IntroducerName,
		IntroducerEmail: notification.IntroducerEmail,
		LeadCompany:     notification.LeadCompany,
		LeadEmail:       notification.LeadEmail,
		DealValue:       notification.DealValue,
	})
	return n.directory.SendDirectMessage(ctx, notification.MemberID, body)
}
