package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/referral-hub/internal/database/models"
	"gorm.io/gorm"
)

const (
	defaultSessionTTL = 48 * time.Hour
	sessionTokenBytes = 32
)

// SessionStore persists authenticated sessions keyed by an opaque
// random token. There is no sliding expiry: a session lives exactly TTL
// from creation. Expired rows are removed lazily when observed.
type SessionStore struct {
	db  *gorm.DB
	ttl time.Duration
}

func NewSessionStore(db *gorm.DB, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &SessionStore{db: db, ttl: ttl}
}

func (s *SessionStore) TTL() time.Duration {
	return s.ttl
}

// Create mints a session for the user and returns its token.
func (s *SessionStore) Create(ctx context.Context, userID uuid.UUID) (string, error) {
	token, err := generateSessionToken()
	if err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}

	session := models.Session{
		Token:     token,
		UserID:    userID,
		ExpiresAt: time.Now().Add(s.ttl),
	}
	if err := s.db.WithContext(ctx).Create(&session).Error; err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}

	return token, nil
}

// Resolve maps a session token to its live user. Expired sessions are
// deleted as a side effect of being read.
func (s *SessionStore) Resolve(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	var session models.Session
	err := s.db.WithContext(ctx).
		Preload("User").
		First(&session, "token = ?", token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}

	if !time.Now().Before(session.ExpiresAt) {
		// Lazy expiry: drop the row now that it has been observed.
		if err := s.db.WithContext(ctx).Delete(&models.Session{}, "token = ?", token).Error; err != nil {
			return nil, err
		}
		return nil, ErrUnauthenticated
	}

	if session.User == nil {
		return nil, ErrUnauthenticated
	}
	return session.User, nil
}

// Destroy deletes a session. Destroying an absent token is not an
// error; logout is idempotent.
func (s *SessionStore) Destroy(ctx context.Context, token string) error {
	return s.db.WithContext(ctx).Delete(&models.Session{}, "token = ?", token).Error
}

func generateSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
