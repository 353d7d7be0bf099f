package clients

import (
	"context"
	"net/http"

	"kioskpos/backend/services/kiosk-terminal/internal/models"
)

const sessionPath = "/api/customer-session"

// SessionClient calls the customer session endpoints.
type SessionClient struct {
	base *BaseClient
}

// NewSessionClient returns client.
func NewSessionClient(baseURL string, httpClient HTTPDoer, creds *Credentials) *SessionClient {
	return &SessionClient{base: NewBaseClient(baseURL, httpClient, creds)}
}

// Get returns the terminal session, or nil when there is none.
func (c *SessionClient) Get(ctx context.Context) (*models.Session, error) {
	return c.session(ctx, http.MethodGet, nil)
}

// Create starts a session. ErrConflict matches when one already exists.
func (c *SessionClient) Create(ctx context.Context) (*models.Session, error) {
	return c.session(ctx, http.MethodPost, nil)
}

// Renew slides the session expiry. ErrNoSession matches when there is no live session.
func (c *SessionClient) Renew(ctx context.Context) (*models.Session, error) {
	return c.session(ctx, http.MethodPut, nil)
}

// StoreOrder replaces the cart with items.
func (c *SessionClient) StoreOrder(ctx context.Context, items []models.ItemInput) (*models.Session, error) {
	if items == nil {
		items = []models.ItemInput{}
	}
	return c.session(ctx, http.MethodPatch, map[string]interface{}{"items": items})
}

// Remove deletes the session.
func (c *SessionClient) Remove(ctx context.Context) error {
	return c.base.doJSON(ctx, http.MethodDelete, sessionPath, nil, nil)
}

func (c *SessionClient) session(ctx context.Context, method string, in interface{}) (*models.Session, error) {
	var out *models.Session
	if err := c.base.doJSON(ctx, method, sessionPath, in, &out); err != nil {
		return nil, err
	}
	return out, nil
}
