package clients

import (
	"context"
	"net/http"
	"net/url"

	"kioskpos/backend/services/kiosk-terminal/internal/models"
)

// PaymentClient fetches payment references.
type PaymentClient struct {
	base *BaseClient
}

// NewPaymentClient returns client.
func NewPaymentClient(baseURL string, httpClient HTTPDoer, creds *Credentials) *PaymentClient {
	return &PaymentClient{base: NewBaseClient(baseURL, httpClient, creds)}
}

// QR issues a payment reference for the placed order.
func (c *PaymentClient) QR(ctx context.Context, provider string) (*models.PaymentQR, error) {
	var out models.PaymentQR
	if err := c.base.doJSON(ctx, http.MethodGet, "/api/payment/"+url.PathEscape(provider)+"/qr", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
