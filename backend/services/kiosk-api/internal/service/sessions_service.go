package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"kioskpos/backend/services/kiosk-api/internal/models"
	redisstore "kioskpos/backend/services/kiosk-api/internal/redis"
	"kioskpos/backend/services/kiosk-api/internal/repository"
)

// ItemInput is one requested cart line.
type ItemInput struct {
	ItemID int64 `json:"itemId" validate:"required,gt=0"`
	Amount int   `json:"amount" validate:"required,gt=0,lte=99"`
}

// SessionsService owns customer sessions of kiosk terminals.
type SessionsService struct {
	sessions SessionStore
	catalog  CatalogReader
	orders   OrderStore
	lifetime time.Duration
	clock    clockwork.Clock
	validate *validator.Validate
	logger   *zap.Logger
}

// NewSessionsService builds service.
func NewSessionsService(
	sessions SessionStore,
	catalog CatalogReader,
	orders OrderStore,
	lifetime time.Duration,
	clock clockwork.Clock,
	logger *zap.Logger,
) *SessionsService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &SessionsService{
		sessions: sessions,
		catalog:  catalog,
		orders:   orders,
		lifetime: lifetime,
		clock:    clock,
		validate: validator.New(),
		logger:   logger,
	}
}

// Get returns the terminal's session, or nil when there is none. Expired sessions are still
// returned (flagged) until storage drops them.
func (s *SessionsService) Get(ctx context.Context, terminalID string) (*models.CustomerSession, error) {
	session, err := s.load(ctx, terminalID)
	if errors.Is(err, ErrNoSession) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Create starts a new session for the terminal.
func (s *SessionsService) Create(ctx context.Context, terminalID string) (*models.CustomerSession, error) {
	now := s.clock.Now().UTC()
	session := &models.CustomerSession{
		ID:         uuid.NewString(),
		TerminalID: terminalID,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.lifetime),
	}

	created, err := s.sessions.Create(ctx, session)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, ErrSessionExists
	}

	s.logger.Info("session created", zap.String("terminal_id", terminalID), zap.String("session_id", session.ID))
	session.Stamp(now)
	return session, nil
}

// Renew slides the expiry of a live session.
func (s *SessionsService) Renew(ctx context.Context, terminalID string) (*models.CustomerSession, error) {
	session, err := s.loadLive(ctx, terminalID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	session.ExpiresAt = now.Add(s.lifetime)
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	session.Stamp(now)
	return session, nil
}

// StoreOrder replaces the cart with items, pricing them from the catalog. An empty list clears
// the order.
func (s *SessionsService) StoreOrder(ctx context.Context, terminalID string, items []ItemInput) (*models.CustomerSession, error) {
	for i := range items {
		if err := s.validate.Struct(items[i]); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidItems, i, err)
		}
	}

	session, err := s.loadLive(ctx, terminalID)
	if err != nil {
		return nil, err
	}
	if session.Order.Placed() {
		return nil, ErrOrderLocked
	}

	now := s.clock.Now().UTC()
	if len(items) == 0 {
		session.Order = nil
	} else {
		lines, err := s.price(ctx, items)
		if err != nil {
			return nil, err
		}
		order := session.Order
		if order == nil {
			order = &models.Order{CreatedAt: now}
		}
		order.Items = lines
		order.Status = models.OrderStatusPending
		order.UpdatedAt = now
		order.Recalculate()
		session.Order = order
	}

	session.ExpiresAt = now.Add(s.lifetime)
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	session.Stamp(now)
	return session, nil
}

// Remove deletes the session and any unpaid placed order. Removing a missing session is a no-op.
func (s *SessionsService) Remove(ctx context.Context, terminalID string) error {
	session, err := s.sessions.Get(ctx, terminalID)
	if err != nil && !errors.Is(err, redisstore.ErrNotFound) {
		return err
	}
	if session != nil && session.Order.Placed() && session.Order.ID != 0 {
		err := s.orders.DeletePending(ctx, session.Order.ID)
		switch {
		case err == nil:
			s.logger.Info("discarded unpaid order with session", zap.Int64("order_id", session.Order.ID))
		case errors.Is(err, repository.ErrOrderNotFound), errors.Is(err, repository.ErrStatusConflict):
		default:
			return err
		}
	}

	if _, err := s.sessions.Delete(ctx, terminalID); err != nil {
		return err
	}
	s.logger.Info("session removed", zap.String("terminal_id", terminalID))
	return nil
}

// Catalog lists orderable items.
func (s *SessionsService) Catalog(ctx context.Context) ([]models.OrderableItem, error) {
	return s.catalog.List(ctx)
}

func (s *SessionsService) price(ctx context.Context, items []ItemInput) ([]models.OrderItem, error) {
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ItemID)
	}
	catalog, err := s.catalog.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	lines := make([]models.OrderItem, 0, len(items))
	for _, item := range items {
		entry, ok := catalog[item.ItemID]
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrUnknownItem, item.ItemID)
		}
		lines = append(lines, models.OrderItem{
			ItemID: entry.ID,
			Name:   entry.Name,
			Amount: item.Amount,
			Price:  entry.Price.Mul(decimal.NewFromInt(int64(item.Amount))),
		})
	}
	return lines, nil
}

// load reads the session and syncs the placed order status from the order store.
func (s *SessionsService) load(ctx context.Context, terminalID string) (*models.CustomerSession, error) {
	session, err := s.sessions.Get(ctx, terminalID)
	if errors.Is(err, redisstore.ErrNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}

	if session.Order.Placed() && session.Order.ID != 0 {
		status, updatedAt, err := s.orders.Status(ctx, session.Order.ID)
		switch {
		case err == nil:
			session.Order.Status = status
			session.Order.UpdatedAt = updatedAt
		case errors.Is(err, repository.ErrOrderNotFound):
			// swept or discarded elsewhere, the cart becomes editable again
			session.Order.ID = 0
			session.Order.PlacedAt = nil
			session.Order.Status = models.OrderStatusPending
		default:
			return nil, err
		}
	}

	session.Stamp(s.clock.Now())
	return session, nil
}

func (s *SessionsService) loadLive(ctx context.Context, terminalID string) (*models.CustomerSession, error) {
	session, err := s.load(ctx, terminalID)
	if err != nil {
		return nil, err
	}
	if session.Expired {
		return nil, ErrNoSession
	}
	return session, nil
}
