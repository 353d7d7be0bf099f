package service

import (
	"context"
	"errors"
	"time"

	"kioskpos/backend/services/kiosk-api/internal/models"
)

var (
	// ErrNoSession is returned when the terminal has no live session.
	ErrNoSession = errors.New("session: no session found")
	// ErrSessionExists is returned when creating a session while one exists.
	ErrSessionExists = errors.New("session: already exists")
	// ErrOrderLocked is returned when editing an order after checkout started.
	ErrOrderLocked = errors.New("order: locked for checkout")
	// ErrOrderNotPlaced is returned when an operation needs a placed order.
	ErrOrderNotPlaced = errors.New("order: not placed")
	// ErrEmptyOrder is returned when placing an order without items.
	ErrEmptyOrder = errors.New("order: no items")
	// ErrUnknownItem is returned when a cart line references an unknown catalog item.
	ErrUnknownItem = errors.New("order: unknown item")
	// ErrInvalidItems is returned when cart lines fail validation.
	ErrInvalidItems = errors.New("order: invalid items")
	// ErrInvalidTransition is returned for status changes that would go backwards or skip.
	ErrInvalidTransition = errors.New("order: invalid status transition")
	// ErrOrderNotFound is returned when the order does not exist.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrUnknownProvider is returned for disabled payment providers.
	ErrUnknownProvider = errors.New("payment: unknown provider")
	// ErrReferenceNotFound is returned for unknown or settled payment references.
	ErrReferenceNotFound = errors.New("payment: reference not found")
	// ErrUnknownEvent is returned for unsupported provider callback events.
	ErrUnknownEvent = errors.New("payment: unknown event")
)

// SessionStore is the session storage contract used by the services.
type SessionStore interface {
	Get(ctx context.Context, terminalID string) (*models.CustomerSession, error)
	Create(ctx context.Context, session *models.CustomerSession) (bool, error)
	Save(ctx context.Context, session *models.CustomerSession) error
	Delete(ctx context.Context, terminalID string) (bool, error)
}

// CatalogReader reads orderable items.
type CatalogReader interface {
	List(ctx context.Context) ([]models.OrderableItem, error)
	GetByIDs(ctx context.Context, ids []int64) (map[int64]models.OrderableItem, error)
}

// OrderStore persists placed orders.
type OrderStore interface {
	Create(ctx context.Context, order *models.Order) error
	Get(ctx context.Context, id int64) (*models.Order, error)
	Status(ctx context.Context, id int64) (models.OrderStatus, time.Time, error)
	UpdateStatus(ctx context.Context, id int64, from, to models.OrderStatus) (time.Time, error)
	DeletePending(ctx context.Context, id int64) error
	ListByStatus(ctx context.Context, statuses []models.OrderStatus, limit int) ([]models.Order, error)
	ListStalePending(ctx context.Context, placedBefore time.Time) ([]models.Order, error)
}

// PaymentReferences stores issued payment references.
type PaymentReferences interface {
	Save(ctx context.Context, ref models.PaymentReference) error
	Get(ctx context.Context, reference string) (*models.PaymentReference, error)
	Delete(ctx context.Context, reference string) error
}

// EventPublisher fans order status changes out to boards.
type EventPublisher interface {
	Publish(event models.BoardEvent)
}

type noopPublisher struct{}

func (noopPublisher) Publish(models.BoardEvent) {}
