package clients

import (
	"context"
	"net/http"

	"kioskpos/backend/services/kiosk-terminal/internal/models"
)

const orderPath = "/api/customer-session/order"

// OrderClient places and discards the session order.
type OrderClient struct {
	base *BaseClient
}

// NewOrderClient returns client.
func NewOrderClient(baseURL string, httpClient HTTPDoer, creds *Credentials) *OrderClient {
	return &OrderClient{base: NewBaseClient(baseURL, httpClient, creds)}
}

// Place locks the cart and starts checkout.
func (c *OrderClient) Place(ctx context.Context) (*models.Session, error) {
	var out *models.Session
	if err := c.base.doJSON(ctx, http.MethodPost, orderPath, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Discard drops the unpaid order and makes the cart editable again.
func (c *OrderClient) Discard(ctx context.Context) (*models.Session, error) {
	var out *models.Session
	if err := c.base.doJSON(ctx, http.MethodDelete, orderPath, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
