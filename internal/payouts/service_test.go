package payouts_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/hugh/referral-hub/internal/database/models"
	"github.com/hugh/referral-hub/internal/payouts"
	"github.com/hugh/referral-hub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProcessor is an in-memory ProcessorClient
type fakeProcessor struct {
	mu        sync.Mutex
	created   int
	deleted   []string
	createErr error
	linkErr   error
}

func (p *fakeProcessor) CreateAccount(ctx context.Context, email string, userID uuid.UUID) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.createErr != nil {
		return "", p.createErr
	}
	p.created++
	return fmt.Sprintf("acct_fake_%d", p.created), nil
}

func (p *fakeProcessor) CreateOnboardingLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error) {
	if p.linkErr != nil {
		return "", p.linkErr
	}
	return "https://connect.example.com/onboard/" + accountID, nil
}

func (p *fakeProcessor) DeleteAccount(ctx context.Context, accountID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.deleted = append(p.deleted, accountID)
	return nil
}

func TestService_EnsureAccount(t *testing.T) {
	ctx := context.Background()

	t.Run("creates and links an account", func(t *testing.T) {
		tc := testutil.NewTestContext(t)
		defer tc.Cleanup()
		processor := &fakeProcessor{}
		service := payouts.NewService(tc.DB, processor, webhookSecret, "http://localhost:8080", testutil.NewTestLogger())

		status, err := service.EnsureAccount(ctx, tc.User)
		require.NoError(t, err)

		assert.True(t, status.HasAccount)
		assert.Equal(t, "acct_fake_1", status.AccountID)
		assert.Contains(t, status.OnboardingURL, "acct_fake_1")
		assert.Equal(t, models.KYCNotStarted, status.KYCStatus)

		var stored models.User
		require.NoError(t, tc.DB.First(&stored, "id = ?", tc.User.ID).Error)
		assert.Equal(t, "acct_fake_1", stored.StripeConnectID)
	})

	t.Run("second link attempt fails without touching upstream", func(t *testing.T) {
		tc := testutil.NewTestContext(t)
		defer tc.Cleanup()
		processor := &fakeProcessor{}
		service := payouts.NewService(tc.DB, processor, webhookSecret, "http://localhost:8080", testutil.NewTestLogger())

		_, err := service.EnsureAccount(ctx, tc.User)
		require.NoError(t, err)

		_, err = service.EnsureAccount(ctx, tc.User)
		assert.ErrorIs(t, err, payouts.ErrAlreadyLinked)
		assert.Equal(t, 1, processor.created)
	})

	t.Run("upstream failure surfaces", func(t *testing.T) {
		tc := testutil.NewTestContext(t)
		defer tc.Cleanup()
		processor := &fakeProcessor{createErr: errors.New("processor down")}
		service := payouts.NewService(tc.DB, processor, webhookSecret, "http://localhost:8080", testutil.NewTestLogger())

		_, err := service.EnsureAccount(ctx, tc.User)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, payouts.ErrAlreadyLinked)
	})

	t.Run("persist failure deletes the orphaned upstream account", func(t *testing.T) {
		tc := testutil.NewTestContext(t)
		defer tc.Cleanup()
		processor := &fakeProcessor{}
		service := payouts.NewService(tc.DB, processor, webhookSecret, "http://localhost:8080", testutil.NewTestLogger())

		// Force the linkage write to fail.
		require.NoError(t, tc.DB.Migrator().DropTable(&models.User{}))

		_, err := service.EnsureAccount(ctx, tc.User)
		require.Error(t, err)
		assert.Equal(t, []string{"acct_fake_1"}, processor.deleted)
	})
}

func TestService_Status(t *testing.T) {
	ctx := context.Background()

	t.Run("no account", func(t *testing.T) {
		tc := testutil.NewTestContext(t)
		defer tc.Cleanup()
		service := payouts.NewService(tc.DB, &fakeProcessor{}, webhookSecret, "http://localhost:8080", testutil.NewTestLogger())

		status, err := service.Status(ctx, tc.User)
		require.NoError(t, err)
		assert.False(t, status.HasAccount)
		assert.Empty(t, status.OnboardingURL)
		assert.Equal(t, models.KYCNotStarted, status.KYCStatus)
	})

	t.Run("linked account gets a fresh onboarding link", func(t *testing.T) {
		tc := testutil.NewTestContext(t)
		defer tc.Cleanup()
		service := payouts.NewService(tc.DB, &fakeProcessor{}, webhookSecret, "http://localhost:8080", testutil.NewTestLogger())

		tc.User.StripeConnectID = "acct_existing"
		tc.User.KYCStatus = models.KYCInProgress

		status, err := service.Status(ctx, tc.User)
		require.NoError(t, err)
		assert.True(t, status.HasAccount)
		assert.Equal(t, "acct_existing", status.AccountID)
		assert.Contains(t, status.OnboardingURL, "acct_existing")
		assert.Equal(t, models.KYCInProgress, status.KYCStatus)
	})
}
