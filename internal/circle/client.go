// Package circle wraps the Circle community admin API. The tracker uses
// it as its membership directory: login is restricted to community
// members, and one-time codes and referral notifications are delivered
// as direct messages.
package circle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hugh/referral-hub/pkg/config"
)

// Member is a community member as reported by the directory.
type Member struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Directory is the membership-directory collaborator. Implementations
// must return (nil, nil) from FindMemberByEmail when no member matches;
// errors are reserved for transport failures.
type Directory interface {
	FindMemberByEmail(ctx context.Context, email string) (*Member, error)
	SendDirectMessage(ctx context.Context, memberID, body string) error
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(cfg *config.CircleConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

var _ Directory = (*Client)(nil)

type searchResponse struct {
	Data []apiMember `json:"data"`
}

type apiMember struct {
	ID        json.Number `json:"id"`
	Email     string      `json:"email"`
	Name      string      `json:"name"`
	AvatarURL string      `json:"avatar_url"`
}

// FindMemberByEmail searches the community member directory. The search
// endpoint matches loosely, so only the first result is used, mirroring
// how Circle's admin UI resolves an email query.
func (c *Client) FindMemberByEmail(ctx context.Context, email string) (*Member, error) {
	endpoint := fmt.Sprintf("%s/community_members/search/?query=%s", c.baseURL, url.QueryEscape(email))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building member search request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("searching community members: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("member search returned status %d", resp.StatusCode)
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding member search response: %w", err)
	}

	if len(result.Data) == 0 {
		return nil, nil
	}

	m := result.Data[0]
	return &Member{
		ID:        m.ID.String(),
		Email:     m.Email,
		Name:      m.Name,
		AvatarURL: m.AvatarURL,
	}, nil
}

// SendDirectMessage delivers a DM to a community member.
func (c *Client) SendDirectMessage(ctx context.Context, memberID, body string) error {
	payload, err := json.Marshal(map[string]string{
		"member_id": memberID,
		"body":      body,
	})
	if err != nil {
		return fmt.Errorf("encoding direct message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building direct message request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending direct message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("direct message returned status %d", resp.StatusCode)
	}

	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
}
