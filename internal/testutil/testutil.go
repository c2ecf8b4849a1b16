package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/referral-hub/internal/auth"
	"github.com/hugh/referral-hub/internal/circle"
	"github.com/hugh/referral-hub/internal/database/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB creates an in-memory SQLite database for testing
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	// Run migrations
	err = db.AutoMigrate(
		&models.User{},
		&models.Session{},
		&models.Referral{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// NewTestLogger returns a logger that discards all output
func NewTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// CreateTestUser creates a test user with a unique email
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	return CreateTestUserWithEmail(t, db, "test-"+uuid.New().String()[:8]+"@example.com")
}

// CreateTestUserWithEmail creates a test user with the given email
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	user := &models.User{
		Base: models.Base{
			ID: uuid.New(),
		},
		Email:          email,
		Name:           "Test User",
		CircleMemberID: uuid.New().String()[:8],
		KYCStatus:      models.KYCNotStarted,
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}

	return user
}

// CreateTestReferral creates a referral between two users
func CreateTestReferral(t *testing.T, db *gorm.DB, introducerID, receiverID uuid.UUID, leadEmail string, stage models.DealStage) *models.Referral {
	t.Helper()

	referral := &models.Referral{
		Base: models.Base{
			ID: uuid.New(),
		},
		IntroducerUserID: introducerID,
		ReceiverUserID:   receiverID,
		LeadCompany:      "Test Company",
		LeadEmail:        leadEmail,
		DealValue:        5000,
		Stage:            stage,
	}

	if err := db.Create(referral).Error; err != nil {
		t.Fatalf("failed to create test referral: %v", err)
	}

	return referral
}

// SentMessage records a direct message delivered through FakeDirectory
type SentMessage struct {
	MemberID string
	Body     string
}

// FakeDirectory is an in-memory circle.Directory for tests
type FakeDirectory struct {
	mu       sync.Mutex
	Members  map[string]*circle.Member // keyed by lowercase email
	SendErr  error
	FindErr  error
	Messages []SentMessage
}

func NewFakeDirectory() *FakeDirectory {
	return &FakeDirectory{Members: make(map[string]*circle.Member)}
}

// AddMember registers a directory member and returns it
func (d *FakeDirectory) AddMember(email, name string) *circle.Member {
	d.mu.Lock()
	defer d.mu.Unlock()

	member := &circle.Member{
		ID:    uuid.New().String()[:8],
		Email: email,
		Name:  name,
	}
	d.Members[email] = member
	return member
}

func (d *FakeDirectory) FindMemberByEmail(ctx context.Context, email string) (*circle.Member, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.FindErr != nil {
		return nil, d.FindErr
	}
	return d.Members[email], nil
}

func (d *FakeDirectory) SendDirectMessage(ctx context.Context, memberID, body string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.SendErr != nil {
		return d.SendErr
	}
	d.Messages = append(d.Messages, SentMessage{MemberID: memberID, Body: body})
	return nil
}

// LastMessage returns the most recently sent message, if any
func (d *FakeDirectory) LastMessage() (SentMessage, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.Messages) == 0 {
		return SentMessage{}, false
	}
	return d.Messages[len(d.Messages)-1], true
}

// AuthenticatedRequest creates an HTTP request carrying the session cookie
func AuthenticatedRequest(t *testing.T, method, path string, body interface{}, token string) *http.Request {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "session", Value: token})
	}

	return req
}

// UnauthenticatedRequest creates an HTTP request without a session
func UnauthenticatedRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	return AuthenticatedRequest(t, method, path, body, "")
}

// AssertStatus checks if the response has the expected status code
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rr.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, rr.Code, rr.Body.String())
	}
}

// ParseJSONResponse parses the response body into the given struct
func ParseJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response body: %v. Body: %s", err, rr.Body.String())
	}
}

// ExpireSession backdates a session so the next resolve observes it expired
func ExpireSession(t *testing.T, db *gorm.DB, token string, by time.Duration) {
	t.Helper()

	res := db.Model(&models.Session{}).
		Where("token = ?", token).
		Update("expires_at", time.Now().Add(-by))
	if res.Error != nil {
		t.Fatalf("failed to expire session: %v", res.Error)
	}
	if res.RowsAffected == 0 {
		t.Fatalf("no session found for token %q", token)
	}
}

// BackdateReferral rewrites a referral's creation timestamp
func BackdateReferral(t *testing.T, db *gorm.DB, id uuid.UUID, createdAt time.Time) {
	t.Helper()

	if err := db.Model(&models.Referral{}).
		Where("id = ?", id).
		Update("created_at", createdAt).Error; err != nil {
		t.Fatalf("failed to backdate referral: %v", err)
	}
}

// TestSetup holds the common test dependencies
type TestSetup struct {
	DB        *gorm.DB
	Sessions  *auth.SessionStore
	Directory *FakeDirectory
	User      *models.User
	Token     string
}

// NewTestContext creates a complete test setup with DB, directory,
// session store, a user and a live session token
func NewTestContext(t *testing.T) *TestSetup {
	t.Helper()

	db := SetupTestDB(t)
	sessions := auth.NewSessionStore(db, 48*time.Hour)
	directory := NewFakeDirectory()
	user := CreateTestUser(t, db)

	token, err := sessions.Create(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("failed to create test session: %v", err)
	}

	return &TestSetup{
		DB:        db,
		Sessions:  sessions,
		Directory: directory,
		User:      user,
		Token:     token,
	}
}

// Cleanup closes the test database
func (ts *TestSetup) Cleanup() {
	if ts.DB != nil {
		sqlDB, err := ts.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}

// UniqueEmail returns a fresh address for tests that need several users
func UniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%s@example.com", prefix, uuid.New().String()[:8])
}
