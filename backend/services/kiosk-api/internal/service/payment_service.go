package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"kioskpos/backend/services/kiosk-api/internal/models"
	redisstore "kioskpos/backend/services/kiosk-api/internal/redis"
)

// Provider callback events.
const (
	PaymentEventScanned   = "scanned"
	PaymentEventConfirmed = "confirmed"
)

// PaymentService issues scannable payment references and applies provider callbacks.
type PaymentService struct {
	sessions   *SessionsService
	orders     *OrdersService
	references PaymentReferences
	providers  []string
	qrSize     int
	logger     *zap.Logger
}

// NewPaymentService builds service.
func NewPaymentService(sessions *SessionsService, orders *OrdersService, references PaymentReferences, providers []string, qrSize int, logger *zap.Logger) *PaymentService {
	if qrSize <= 0 {
		qrSize = 256
	}
	return &PaymentService{
		sessions:   sessions,
		orders:     orders,
		references: references,
		providers:  providers,
		qrSize:     qrSize,
		logger:     logger,
	}
}

// IssueReference creates a reference for the placed order of the terminal's session.
func (s *PaymentService) IssueReference(ctx context.Context, terminalID, provider string) (*models.PaymentReference, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if !s.enabled(provider) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}

	session, err := s.sessions.loadLive(ctx, terminalID)
	if err != nil {
		return nil, err
	}
	if !session.Order.Placed() {
		return nil, ErrOrderNotPlaced
	}
	if session.Order.Status != models.OrderStatusPending {
		return nil, fmt.Errorf("%w: order is %s", ErrInvalidTransition, session.Order.Status)
	}

	amount := session.Order.TotalPrice.StringFixed(2)
	ref := models.PaymentReference{
		Reference:  uuid.NewString(),
		Provider:   provider,
		OrderID:    session.Order.ID,
		TerminalID: terminalID,
		Amount:     amount,
	}
	ref.Payload = payload(ref)

	png, err := qrcode.Encode(ref.Payload, qrcode.Medium, s.qrSize)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}

	if err := s.references.Save(ctx, ref); err != nil {
		return nil, err
	}
	ref.QRPNG = base64.StdEncoding.EncodeToString(png)

	s.logger.Info("payment reference issued",
		zap.String("provider", provider),
		zap.String("reference", ref.Reference),
		zap.Int64("order_id", ref.OrderID),
	)
	return &ref, nil
}

// Callback applies a provider event: scanned moves PENDING to APPROVING, confirmed moves the
// order to PAID.
func (s *PaymentService) Callback(ctx context.Context, provider, reference, event string) (*models.BoardEvent, error) {
	ref, err := s.references.Get(ctx, reference)
	if errors.Is(err, redisstore.ErrNotFound) {
		return nil, ErrReferenceNotFound
	}
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(ref.Provider, provider) {
		return nil, ErrReferenceNotFound
	}

	current, _, err := s.orders.orders.Status(ctx, ref.OrderID)
	if err != nil {
		return nil, err
	}

	var to models.OrderStatus
	switch event {
	case PaymentEventScanned:
		if current != models.OrderStatusPending {
			return nil, fmt.Errorf("%w: scanned while %s", ErrInvalidTransition, current)
		}
		to = models.OrderStatusApproving
	case PaymentEventConfirmed:
		if current != models.OrderStatusPending && current != models.OrderStatusApproving {
			return nil, fmt.Errorf("%w: confirmed while %s", ErrInvalidTransition, current)
		}
		to = models.OrderStatusPaid
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}

	result, err := s.orders.transition(ctx, ref.OrderID, current, to)
	if err != nil {
		return nil, err
	}
	if to == models.OrderStatusPaid {
		if err := s.references.Delete(ctx, reference); err != nil {
			s.logger.Warn("failed to drop settled payment reference", zap.String("reference", reference), zap.Error(err))
		}
	}
	return result, nil
}

// Providers lists enabled payment providers.
func (s *PaymentService) Providers() []string {
	return append([]string(nil), s.providers...)
}

func (s *PaymentService) enabled(provider string) bool {
	for _, p := range s.providers {
		if strings.EqualFold(p, provider) {
			return true
		}
	}
	return false
}

func payload(ref models.PaymentReference) string {
	q := url.Values{}
	q.Set("amount", ref.Amount)
	q.Set("order", fmt.Sprint(ref.OrderID))
	return fmt.Sprintf("kioskpay://%s/%s?%s", ref.Provider, ref.Reference, q.Encode())
}
