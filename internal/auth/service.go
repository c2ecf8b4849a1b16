package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/hugh/referral-hub/internal/circle"
	"github.com/hugh/referral-hub/internal/database/models"
	"gorm.io/gorm"
)

var (
	ErrIdentityNotFound     = errors.New("no matching community member")
	ErrInvalidOrExpiredCode = errors.New("invalid or expired login code")
	ErrDeliveryFailed       = errors.New("failed to deliver login code")
	ErrUnauthenticated      = errors.New("unauthenticated")
)

const loginCodeTTL = 10 * time.Minute

// Service implements passwordless login: a 6-digit one-time code is
// DMed to a verified community member and exchanged for a session.
type Service struct {
	db        *gorm.DB
	directory circle.Directory
	sessions  *SessionStore
	logger    *slog.Logger
}

func NewService(db *gorm.DB, directory circle.Directory, sessions *SessionStore, logger *slog.Logger) *Service {
	return &Service{db: db, directory: directory, sessions: sessions, logger: logger}
}

// IssueCode verifies the email against the community directory, stores a
// fresh one-time code on the user (overwriting any pending one) and DMs
// it to the member. The code is persisted before delivery, so a retry
// after ErrDeliveryFailed simply overwrites it.
func (s *Service) IssueCode(ctx context.Context, email string) error {
	email = NormalizeEmail(email)

	member, err := s.directory.FindMemberByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("directory lookup: %w", err)
	}
	if member == nil {
		return ErrIdentityNotFound
	}

	user, err := s.EnsureUser(ctx, member)
	if err != nil {
		return err
	}

	code, err := generateLoginCode()
	if err != nil {
		return fmt.Errorf("generating login code: %w", err)
	}

	expires := time.Now().Add(loginCodeTTL).Unix()
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]interface{}{
			"login_code":         code,
			"login_code_expires": expires,
		}).Error; err != nil {
		return fmt.Errorf("storing login code: %w", err)
	}

	if err := s.directory.SendDirectMessage(ctx, user.CircleMemberID, "Your one-time login code is: "+code); err != nil {
		s.logger.Warn("login code delivery failed", "user_id", user.ID, "error", err)
		return ErrDeliveryFailed
	}

	s.logger.Info("login code issued", "user_id", user.ID)
	return nil
}

// RedeemCode exchanges a valid one-time code for a session. Codes are
// single-use: the clear is guarded on the stored code value, so of two
// concurrent redemptions only the first can succeed.
func (s *Service) RedeemCode(ctx context.Context, email, code string) (*models.User, string, error) {
	email = NormalizeEmail(email)
	if code == "" {
		return nil, "", ErrInvalidOrExpiredCode
	}

	var user models.User
	err := s.db.WithContext(ctx).
		Where("email = ? AND login_code = ?", email, code).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrInvalidOrExpiredCode
		}
		return nil, "", err
	}

	if time.Now().Unix() >= user.LoginCodeExpires {
		return nil, "", ErrInvalidOrExpiredCode
	}

	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND login_code = ?", user.ID, code).
		Updates(map[string]interface{}{
			"login_code":         "",
			"login_code_expires": 0,
		})
	if res.Error != nil {
		return nil, "", res.Error
	}
	if res.RowsAffected == 0 {
		// Another redemption cleared the code first.
		return nil, "", ErrInvalidOrExpiredCode
	}

	user.LoginCode = ""
	user.LoginCodeExpires = 0

	token, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		return nil, "", err
	}

	s.logger.Info("login code redeemed", "user_id", user.ID)
	return &user, token, nil
}

// EnsureUser returns the user for a directory member, creating one on
// first contact. Users exist only for verified community members.
func (s *Service) EnsureUser(ctx context.Context, member *circle.Member) (*models.User, error) {
	email := NormalizeEmail(member.Email)

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
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.logger.Info("user created from directory member", "user_id", user.ID, "member_id", member.ID)
	return &user, nil
}

// NormalizeEmail lowercases and trims an email address. Emails are
// stored and compared in normalized form everywhere.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// generateLoginCode returns a uniformly random 6-digit code.
func generateLoginCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+100000, 10), nil
}
