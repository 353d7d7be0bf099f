package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"kioskpos/backend/services/kiosk-api/internal/models"
	"kioskpos/backend/services/kiosk-api/internal/repository"
)

// BoardStatuses are the statuses shown on kitchen/cashier boards.
var BoardStatuses = []models.OrderStatus{
	models.OrderStatusPaid,
	models.OrderStatusInProgress,
	models.OrderStatusReady,
}

// OrdersService converts session carts into persisted orders and moves them along.
type OrdersService struct {
	sessions  *SessionsService
	store     SessionStore
	orders    OrderStore
	publisher EventPublisher
	clock     clockwork.Clock
	logger    *zap.Logger
}

// NewOrdersService builds service.
func NewOrdersService(sessions *SessionsService, store SessionStore, orders OrderStore, publisher EventPublisher, logger *zap.Logger) *OrdersService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &OrdersService{
		sessions:  sessions,
		store:     store,
		orders:    orders,
		publisher: publisher,
		clock:     sessions.clock,
		logger:    logger,
	}
}

// Place persists the session's cart as a PENDING order and locks it for checkout. Placing an
// already placed order returns the session unchanged.
func (s *OrdersService) Place(ctx context.Context, terminalID string) (*models.CustomerSession, error) {
	session, err := s.sessions.loadLive(ctx, terminalID)
	if err != nil {
		return nil, err
	}
	if session.Order == nil || len(session.Order.Items) == 0 {
		return nil, ErrEmptyOrder
	}
	if session.Order.Placed() {
		return session, nil
	}

	order := *session.Order
	order.TerminalID = terminalID
	order.SessionID = session.ID
	order.Status = models.OrderStatusPending
	if err := s.orders.Create(ctx, &order); err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}

	session.Order.ID = order.ID
	session.Order.PlacedAt = order.PlacedAt
	session.Order.Status = order.Status
	session.Order.UpdatedAt = order.UpdatedAt
	if err := s.store.Save(ctx, session); err != nil {
		return nil, err
	}

	s.logger.Info("order placed",
		zap.String("terminal_id", terminalID),
		zap.Int64("order_id", order.ID),
		zap.String("total", order.TotalPrice.StringFixed(2)),
	)
	s.publisher.Publish(models.BoardEvent{OrderID: order.ID, Status: order.Status, UpdatedAt: order.UpdatedAt})
	return session, nil
}

// Discard deletes the unpaid placed order and makes the cart editable again.
func (s *OrdersService) Discard(ctx context.Context, terminalID string) (*models.CustomerSession, error) {
	session, err := s.sessions.loadLive(ctx, terminalID)
	if err != nil {
		return nil, err
	}
	if !session.Order.Placed() {
		return nil, ErrOrderNotPlaced
	}

	err = s.orders.DeletePending(ctx, session.Order.ID)
	switch {
	case err == nil, errors.Is(err, repository.ErrOrderNotFound):
	case errors.Is(err, repository.ErrStatusConflict):
		return nil, ErrOrderLocked
	default:
		return nil, err
	}

	orderID := session.Order.ID
	session.Order.ID = 0
	session.Order.PlacedAt = nil
	session.Order.Status = models.OrderStatusPending
	session.Order.UpdatedAt = s.clock.Now().UTC()
	if err := s.store.Save(ctx, session); err != nil {
		return nil, err
	}
	s.logger.Info("order discarded", zap.String("terminal_id", terminalID), zap.Int64("order_id", orderID))
	return session, nil
}

// Advance moves a paid order one step along the kitchen flow.
func (s *OrdersService) Advance(ctx context.Context, orderID int64, to models.OrderStatus) (*models.BoardEvent, error) {
	current, _, err := s.orders.Status(ctx, orderID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	next, ok := current.Next()
	if !ok || next != to {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, to)
	}
	return s.transition(ctx, orderID, current, to)
}

// Board lists orders visible on kitchen/cashier boards.
func (s *OrdersService) Board(ctx context.Context) ([]models.Order, error) {
	return s.orders.ListByStatus(ctx, BoardStatuses, 100)
}

// Get returns a persisted order.
func (s *OrdersService) Get(ctx context.Context, orderID int64) (*models.Order, error) {
	order, err := s.orders.Get(ctx, orderID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, ErrOrderNotFound
	}
	return order, err
}

func (s *OrdersService) transition(ctx context.Context, orderID int64, from, to models.OrderStatus) (*models.BoardEvent, error) {
	updatedAt, err := s.orders.UpdateStatus(ctx, orderID, from, to)
	switch {
	case errors.Is(err, repository.ErrOrderNotFound):
		return nil, ErrOrderNotFound
	case errors.Is(err, repository.ErrStatusConflict):
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	case err != nil:
		return nil, err
	}

	event := models.BoardEvent{OrderID: orderID, Status: to, UpdatedAt: updatedAt}
	s.logger.Info("order status changed", zap.Int64("order_id", orderID), zap.Stringer("from", from), zap.Stringer("to", to))
	s.publisher.Publish(event)
	return &event, nil
}
