package clients

import (
	"context"
	"net/http"

	"kioskpos/backend/services/kiosk-terminal/internal/models"
)

// CatalogClient reads the menu.
type CatalogClient struct {
	base *BaseClient
}

// NewCatalogClient returns client.
func NewCatalogClient(baseURL string, httpClient HTTPDoer, creds *Credentials) *CatalogClient {
	return &CatalogClient{base: NewBaseClient(baseURL, httpClient, creds)}
}

// List returns orderable items.
func (c *CatalogClient) List(ctx context.Context) ([]models.CatalogItem, error) {
	var out []models.CatalogItem
	if err := c.base.doJSON(ctx, http.MethodGet, "/api/catalog", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
