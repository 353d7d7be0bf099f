package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"kioskpos/backend/services/kiosk-api/internal/models"
)

// CatalogService lists orderable items.
type CatalogService interface {
	Catalog(ctx context.Context) ([]models.OrderableItem, error)
}

// NewCatalogHandler handles GET /api/catalog.
func NewCatalogHandler(catalog CatalogService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := catalog.Catalog(r.Context())
		if err != nil {
			writeServiceError(w, logger, "list catalog", err)
			return
		}
		if items == nil {
			items = []models.OrderableItem{}
		}
		writeJSON(w, http.StatusOK, items)
	}
}
