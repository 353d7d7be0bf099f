package repository

import (
	"context"
	"database/sql"

	"kioskpos/backend/services/kiosk-api/internal/models"
)

// CatalogRepository reads orderable items. Catalog maintenance lives in the back-office.
type CatalogRepository struct {
	db *sql.DB
}

// NewCatalogRepository returns repository.
func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// List returns active items in display order.
func (r *CatalogRepository) List(ctx context.Context) ([]models.OrderableItem, error) {
	const query = `
		SELECT id, name, category, price
		FROM orderable_items
		WHERE active
		ORDER BY position, id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.OrderableItem
	for rows.Next() {
		var item models.OrderableItem
		if err := rows.Scan(&item.ID, &item.Name, &item.Category, &item.Price); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// GetByIDs returns active items keyed by id. Unknown or inactive ids are absent from the map.
func (r *CatalogRepository) GetByIDs(ctx context.Context, ids []int64) (map[int64]models.OrderableItem, error) {
	result := make(map[int64]models.OrderableItem, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	const query = `
		SELECT id, name, category, price
		FROM orderable_items
		WHERE active AND id = ANY($1)
	`
	rows, err := r.db.QueryContext(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item models.OrderableItem
		if err := rows.Scan(&item.ID, &item.Name, &item.Category, &item.Price); err != nil {
			return nil, err
		}
		result[item.ID] = item
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
