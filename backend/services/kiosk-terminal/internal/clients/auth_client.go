package clients

import (
	"context"
	"errors"
	"net/http"
)

// AuthClient logs the terminal in.
type AuthClient struct {
	base *BaseClient
}

// NewAuthClient returns client.
func NewAuthClient(baseURL string, httpClient HTTPDoer) *AuthClient {
	return &AuthClient{base: NewBaseClient(baseURL, httpClient, nil)}
}

// Login exchanges terminal credentials for a bearer token.
func (c *AuthClient) Login(ctx context.Context, terminalID, password string) (string, error) {
	in := map[string]string{"terminalId": terminalID, "password": password}
	var out struct {
		Token     string `json:"token"`
		TokenType string `json:"tokenType"`
	}
	if err := c.base.doJSON(ctx, http.MethodPost, "/api/auth/login", in, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", errors.New("clients: login returned empty token")
	}
	return out.Token, nil
}
