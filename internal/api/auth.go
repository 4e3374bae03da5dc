package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// AuthURL fetches the provider authorization URL for a connect attempt.
// The backend generates the OAuth state; the client never handles tokens.
func (c *Client) AuthURL(ctx context.Context, provider string) (string, error) {
	var resp authURLResponse

	path := "/email/auth-url/" + url.PathEscape(provider)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp, false); err != nil {
		return "", err
	}

	if resp.AuthURL == "" {
		return "", fmt.Errorf("api: backend returned empty auth url for provider %q", provider)
	}

	return resp.AuthURL, nil
}

// Accounts lists all connected mail accounts.
func (c *Client) Accounts(ctx context.Context) ([]Account, error) {
	var accounts []Account
	if err := c.do(ctx, http.MethodGet, "/email/accounts", nil, &accounts, false); err != nil {
		return nil, err
	}

	return accounts, nil
}
