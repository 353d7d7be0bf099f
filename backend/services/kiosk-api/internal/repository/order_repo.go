package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"kioskpos/backend/services/kiosk-api/internal/models"
)

var (
	// ErrOrderNotFound indicates missing order.
	ErrOrderNotFound = errors.New("order not found")
	// ErrStatusConflict indicates the order is not in the expected status.
	ErrStatusConflict = errors.New("order status conflict")
)

// OrderRepository persists placed orders.
type OrderRepository struct {
	db *sql.DB
}

// NewOrderRepository returns repository.
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts the order with its items and fills ID and timestamps.
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const insertOrder = `
		INSERT INTO orders (terminal_id, session_id, status, total_price, placed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW(), NOW())
		RETURNING id, placed_at, created_at, updated_at
	`
	var placedAt time.Time
	err = tx.QueryRowContext(ctx, insertOrder,
		order.TerminalID,
		order.SessionID,
		string(order.Status),
		order.TotalPrice,
	).Scan(&order.ID, &placedAt, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	order.PlacedAt = &placedAt

	const insertItem = `
		INSERT INTO order_items (order_id, line, item_id, name, amount, price)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for i, item := range order.Items {
		if _, err := tx.ExecContext(ctx, insertItem, order.ID, i, item.ItemID, item.Name, item.Amount, item.Price); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	return tx.Commit()
}

// Get returns an order with items.
func (r *OrderRepository) Get(ctx context.Context, id int64) (*models.Order, error) {
	const query = `
		SELECT id, terminal_id, session_id, status, total_price, placed_at, created_at, updated_at
		FROM orders
		WHERE id = $1
	`
	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	items, err := r.itemsFor(ctx, []int64{order.ID})
	if err != nil {
		return nil, err
	}
	order.Items = items[order.ID]
	return order, nil
}

// Status returns the current status of an order and when it last changed.
func (r *OrderRepository) Status(ctx context.Context, id int64) (models.OrderStatus, time.Time, error) {
	const query = `SELECT status, updated_at FROM orders WHERE id = $1`
	var (
		status    string
		updatedAt time.Time
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(&status, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", time.Time{}, ErrOrderNotFound
	}
	if err != nil {
		return "", time.Time{}, err
	}
	return models.OrderStatus(status), updatedAt, nil
}

// UpdateStatus moves an order from one status to another, returning the change time.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id int64, from, to models.OrderStatus) (time.Time, error) {
	const query = `
		UPDATE orders
		SET status = $3,
		    updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING updated_at
	`
	var updatedAt time.Time
	err := r.db.QueryRowContext(ctx, query, id, string(from), string(to)).Scan(&updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		if _, _, statusErr := r.Status(ctx, id); errors.Is(statusErr, ErrOrderNotFound) {
			return time.Time{}, ErrOrderNotFound
		}
		return time.Time{}, ErrStatusConflict
	}
	if err != nil {
		return time.Time{}, err
	}
	return updatedAt, nil
}

// DeletePending removes an order that has not been paid for.
func (r *OrderRepository) DeletePending(ctx context.Context, id int64) error {
	const query = `DELETE FROM orders WHERE id = $1 AND status = $2`
	result, err := r.db.ExecContext(ctx, query, id, string(models.OrderStatusPending))
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, _, statusErr := r.Status(ctx, id); errors.Is(statusErr, ErrOrderNotFound) {
			return ErrOrderNotFound
		}
		return ErrStatusConflict
	}
	return nil
}

// ListByStatus returns orders in any of the statuses, oldest first, with items.
func (r *OrderRepository) ListByStatus(ctx context.Context, statuses []models.OrderStatus, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	const query = `
		SELECT id, terminal_id, session_id, status, total_price, placed_at, created_at, updated_at
		FROM orders
		WHERE status = ANY($1)
		ORDER BY placed_at
		LIMIT $2
	`
	orders, err := r.queryOrders(ctx, query, names, limit)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]int64, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}
	items, err := r.itemsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

// ListStalePending returns PENDING orders placed before the cutoff, without items.
func (r *OrderRepository) ListStalePending(ctx context.Context, placedBefore time.Time) ([]models.Order, error) {
	const query = `
		SELECT id, terminal_id, session_id, status, total_price, placed_at, created_at, updated_at
		FROM orders
		WHERE status = $1 AND placed_at < $2
		ORDER BY placed_at
	`
	return r.queryOrders(ctx, query, string(models.OrderStatusPending), placedBefore)
}

func (r *OrderRepository) queryOrders(ctx context.Context, query string, args ...interface{}) ([]models.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *OrderRepository) itemsFor(ctx context.Context, orderIDs []int64) (map[int64][]models.OrderItem, error) {
	const query = `
		SELECT order_id, item_id, name, amount, price
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, line
	`
	rows, err := r.db.QueryContext(ctx, query, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[int64][]models.OrderItem, len(orderIDs))
	for rows.Next() {
		var (
			orderID int64
			item    models.OrderItem
		)
		if err := rows.Scan(&orderID, &item.ItemID, &item.Name, &item.Amount, &item.Price); err != nil {
			return nil, err
		}
		result[orderID] = append(result[orderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var (
		order    models.Order
		status   string
		placedAt time.Time
	)
	if err := row.Scan(
		&order.ID,
		&order.TerminalID,
		&order.SessionID,
		&status,
		&order.TotalPrice,
		&placedAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	); err != nil {
		return nil, err
	}
	order.Status = models.OrderStatus(status)
	order.PlacedAt = &placedAt
	return &order, nil
}
