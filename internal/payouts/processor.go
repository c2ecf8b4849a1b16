package payouts

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// ProcessorClient is the payment-processor collaborator. Payouts are
// handled by Stripe Connect in production; tests substitute a fake.
type ProcessorClient interface {
	CreateAccount(ctx context.Context, email string, userID uuid.UUID) (string, error)
	CreateOnboardingLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error)
	DeleteAccount(ctx context.Context, accountID string) error
}

// StripeClient implements ProcessorClient against the Stripe API.
type StripeClient struct {
	api *client.API
}

func NewStripeClient(secretKey string) *StripeClient {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeClient{api: api}
}

var _ ProcessorClient = (*StripeClient)(nil)

// CreateAccount creates an express Connect account tagged with the user
// id; the tag is how webhook events find their way back to the user.
func (c *StripeClient) CreateAccount(ctx context.Context, email string, userID uuid.UUID) (string, error) {
	params := &stripe.AccountParams{
		Type:  stripe.String(string(stripe.AccountTypeExpress)),
		Email: stripe.String(email),
	}
	params.Context = ctx
	params.AddMetadata("user_id", userID.String())

	account, err := c.api.Accounts.New(params)
	if err != nil {
		return "", fmt.Errorf("creating connect account: %w", err)
	}
	return account.ID, nil
}

func (c *StripeClient) CreateOnboardingLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error) {
	params := &stripe.AccountLinkParams{
		Account:    stripe.String(accountID),
		RefreshURL: stripe.String(refreshURL),
		ReturnURL:  stripe.String(returnURL),
		Type:       stripe.String(string(stripe.AccountLinkTypeAccountOnboarding)),
	}
	params.Context = ctx

	link, err := c.api.AccountLinks.New(params)
	if err != nil {
		return "", fmt.Errorf("creating onboarding link: %w", err)
	}
	return link.URL, nil
}

func (c *StripeClient) DeleteAccount(ctx context.Context, accountID string) error {
	params := &stripe.AccountParams{}
	params.Context = ctx

	if _, err := c.api.Accounts.Del(accountID, params); err != nil {
		return fmt.Errorf("deleting connect account: %w", err)
	}
	return nil
}
