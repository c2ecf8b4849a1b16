// Package referrals owns the referral record and its pipeline stage.
package referrals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/referral-hub/internal/auth"
	"github.com/hugh/referral-hub/internal/circle"
	"github.com/hugh/referral-hub/internal/database/models"
	"gorm.io/gorm"
)

var (
	ErrNotFound         = errors.New("referral not found")
	ErrDuplicateLead    = errors.New("a referral with this lead email already exists within the last 30 days")
	ErrReceiverNotFound = errors.New("receiver not found in community directory")
	ErrSelfReferral     = errors.New("introducer and receiver must be different members")
	ErrLeadEmailTaken   = errors.New("lead email must differ from introducer and receiver emails")
	ErrInvalidStage     = errors.New("invalid deal stage")
)

// dedupWindow is how long a lead email blocks re-submission.
const dedupWindow = 30 * 24 * time.Hour

// Notification describes the best-effort DM sent to a referral's
// receiver after creation.
type Notification struct {
	ReferralID      uuid.UUID
	MemberID        string
	IntroducerName  string
	IntroducerEmail string
	LeadCompany     string
	LeadEmail       string
	DealValue       float64
}

// Notifier delivers receiver notifications. Delivery is best-effort:
// the service logs failures and never propagates them.
type Notifier interface {
	ReferralCreated(ctx context.Context, n Notification) error
}

type Service struct {
	db        *gorm.DB
	directory circle.Directory
	notifier  Notifier
	logger    *slog.Logger
}

func NewService(db *gorm.DB, directory circle.Directory, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{db: db, directory: directory, notifier: notifier, logger: logger}
}

type CreateInput struct {
	ReceiverEmail string
	LeadCompany   string
	LeadEmail     string
	DealValue     float64
}

// Create persists a new referral at stage NEW. The receiver is resolved
// (or first created) through the same directory-verification path as
// login. The receiver DM is best-effort; the referral succeeds even if
// notification fails.
func (s *Service) Create(ctx context.Context, introducer *models.User, input CreateInput) (*models.Referral, error) {
	receiverEmail := auth.NormalizeEmail(input.ReceiverEmail)
	leadEmail := auth.NormalizeEmail(input.LeadEmail)

	if receiverEmail == introducer.Email {
		return nil, ErrSelfReferral
	}
	if leadEmail == introducer.Email || leadEmail == receiverEmail {
		return nil, ErrLeadEmailTaken
	}

	// Dedup window: the same lead may only be submitted once per 30 days,
	// regardless of who submits it.
	since := time.Now().Add(-dedupWindow)
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Referral{}).
		Where("lead_email = ? AND created_at >= ?", leadEmail, since).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("checking for duplicate lead: %w", err)
	}
	if count > 0 {
		return nil, ErrDuplicateLead
	}

	member, err := s.directory.FindMemberByEmail(ctx, receiverEmail)
	if err != nil {
		return nil, fmt.Errorf("verifying receiver: %w", err)
	}
	if member == nil {
		return nil, ErrReceiverNotFound
	}

	receiver, err := s.ensureReceiver(ctx, member)
	if err != nil {
		return nil, err
	}

	referral := models.Referral{
		IntroducerUserID: introducer.ID,
		ReceiverUserID:   receiver.ID,
		LeadCompany:      input.LeadCompany,
		LeadEmail:        leadEmail,
		DealValue:        input.DealValue,
		Stage:            models.StageNew,
	}
	if err := s.db.WithContext(ctx).Create(&referral).Error; err != nil {
		return nil, fmt.Errorf("creating referral: %w", err)
	}
	referral.Introducer = introducer
	referral.Receiver = receiver

	s.notifyReceiver(ctx, &referral, member.ID)

	s.logger.Info("referral created",
		"referral_id", referral.ID,
		"introducer_id", introducer.ID,
		"receiver_id", receiver.ID,
	)

	return &referral, nil
}

// Transition moves a referral to the target stage. The lookup is scoped
// to the acting introducer, so a non-owner gets the same ErrNotFound as
// a missing record. A failed transition leaves stored state unchanged.
func (s *Service) Transition(ctx context.Context, id, actorID uuid.UUID, target models.DealStage) (*models.Referral, error) {
	if !target.Valid() {
		return nil, ErrInvalidStage
	}

	var referral models.Referral
	err := s.db.WithContext(ctx).
		Preload("Introducer").
		Preload("Receiver").
		Where("id = ? AND introducer_user_id = ?", id, actorID).
		First(&referral).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := validateTransition(referral.Stage, target); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(&referral).Update("stage", target).Error; err != nil {
		return nil, fmt.Errorf("updating stage: %w", err)
	}
	referral.Stage = target

	s.logger.Info("referral stage updated", "referral_id", referral.ID, "stage", target)
	return &referral, nil
}

// ListByIntroducer returns the introducer's referrals, newest first,
// with both parties preloaded for the pipeline view.
func (s *Service) ListByIntroducer(ctx context.Context, userID uuid.UUID) ([]models.Referral, error) {
	var referrals []models.Referral
	err := s.db.WithContext(ctx).
		Preload("Introducer").
		Preload("Receiver").
		Where("introducer_user_id = ?", userID).
		Order("created_at DESC").
		Find(&referrals).Error
	if err != nil {
		return nil, fmt.Errorf("listing referrals: %w", err)
	}
	return referrals, nil
}

// validateTransition is the hook for stage-ordering rules. The pipeline
// deliberately allows moving a deal to any column, including backwards;
// the hook exists so an ordering rule can slot in later.
func validateTransition(from, to models.DealStage) error {
	return nil
}

func (s *Service) ensureReceiver(ctx context.Context, member *circle.Member) (*models.User, error) {
	email := auth.NormalizeEmail(member.Email)

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user = models.User{
		Email:          email,
		Name:           member.Name,
		AvatarURL:      member.AvatarURL,
		CircleMemberID: member.ID,
		KYCStatus:      models.KYCNotStarted,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("creating receiver user: %w", err)
	}
	return &user, nil
}

func (s *Service) notifyReceiver(ctx context.Context, referral *models.Referral, memberID string) {
	if s.notifier == nil {
		return
	}

	n := Notification{
		ReferralID:      referral.ID,
		MemberID:        memberID,
		IntroducerName:  referral.Introducer.Name,
		IntroducerEmail: referral.Introducer.Email,
		LeadCompany:     referral.LeadCompany,
		LeadEmail:       referral.LeadEmail,
		DealValue:       referral.DealValue,
	}
	if err := s.notifier.ReferralCreated(ctx, n); err != nil {
		s.logger.Warn("receiver notification failed",
			"referral_id", referral.ID,
			"error", err,
		)
	}
}
