package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"kioskpos/backend/services/kiosk-terminal/internal/clients"
	"kioskpos/backend/services/kiosk-terminal/internal/models"
)

var prices = map[int64]decimal.Decimal{
	1: decimal.RequireFromString("12.90"),
	2: decimal.RequireFromString("6.50"),
	3: decimal.RequireFromString("3.00"),
}

// backend is an in-memory kiosk-api: sessions expire on the fake clock and stay observable as
// expired until removed.
type backend struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	lifetime time.Duration
	session  *models.Session
	seq      int
	calls    map[string]int
	statuses []models.OrderStatus
	gates    map[string]chan struct{}
	getErr   error
	qrErr    error
	// removeFails is how many upcoming removals fail before reaching the session
	removeFails int
}

func newBackend(clock clockwork.Clock) *backend {
	return &backend{
		clock:    clock,
		lifetime: 2 * time.Minute,
		calls:    make(map[string]int),
		gates:    make(map[string]chan struct{}),
	}
}

func apiError(status int, code string) error {
	return &clients.APIError{Status: status, Code: code, Message: code}
}

func (b *backend) count(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

// gate blocks the next call of op until it is released or its context ends.
func (b *backend) gate(op string) chan struct{} {
	ch := make(chan struct{})
	b.mu.Lock()
	b.gates[op] = ch
	b.mu.Unlock()
	return ch
}

// script queues order statuses applied one per GET while the order is placed.
func (b *backend) script(statuses ...models.OrderStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statuses = append(b.statuses, statuses...)
}

func (b *backend) setStatus(status models.OrderStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.session.Order.Status = status
}

func (b *backend) setLifetime(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lifetime = d
}

func (b *backend) setGetErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.getErr = err
}

func (b *backend) failRemovals(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeFails = n
}

// drop forgets the session server-side, as a lapsed redis key would.
func (b *backend) drop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.session = nil
}

func (b *backend) enter(ctx context.Context, op string) error {
	b.mu.Lock()
	b.calls[op]++
	gate := b.gates[op]
	delete(b.gates, op)
	b.mu.Unlock()

	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// viewLocked is the session as the server reports it.
func (b *backend) viewLocked() *models.Session {
	if b.session == nil {
		return nil
	}
	out := *b.session
	remaining := out.ExpiresAt.Sub(b.clock.Now())
	if remaining <= 0 {
		out.Expired = true
		out.ExpiresInSeconds = 0
	} else {
		out.ExpiresInSeconds = int(remaining / time.Second)
	}
	if b.session.Order != nil {
		order := *b.session.Order
		order.Items = append([]models.OrderItem(nil), order.Items...)
		out.Order = &order
	}
	return &out
}

func (b *backend) liveLocked() bool {
	return b.session != nil && b.clock.Now().Before(b.session.ExpiresAt)
}

func (b *backend) Get(ctx context.Context) (*models.Session, error) {
	if err := b.enter(ctx, "get"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.getErr != nil {
		return nil, b.getErr
	}
	if b.session != nil && b.session.Order.Placed() && len(b.statuses) > 0 {
		b.session.Order.Status = b.statuses[0]
		b.statuses = b.statuses[1:]
	}
	return b.viewLocked(), nil
}

func (b *backend) Create(ctx context.Context) (*models.Session, error) {
	if err := b.enter(ctx, "create"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session != nil {
		return nil, apiError(409, "SESSION_EXISTS")
	}
	b.seq++
	now := b.clock.Now()
	b.session = &models.Session{ID: fmt.Sprintf("s-%d", b.seq), CreatedAt: now, ExpiresAt: now.Add(b.lifetime)}
	return b.viewLocked(), nil
}

func (b *backend) Renew(ctx context.Context) (*models.Session, error) {
	if err := b.enter(ctx, "renew"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.liveLocked() {
		return nil, apiError(400, "NO_SESSION")
	}
	b.session.ExpiresAt = b.clock.Now().Add(b.lifetime)
	return b.viewLocked(), nil
}

func (b *backend) StoreOrder(ctx context.Context, items []models.ItemInput) (*models.Session, error) {
	if err := b.enter(ctx, "store"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.liveLocked() {
		return nil, apiError(400, "NO_SESSION")
	}
	if b.session.Order.Placed() {
		return nil, apiError(409, "ORDER_LOCKED")
	}
	b.session.ExpiresAt = b.clock.Now().Add(b.lifetime)
	if len(items) == 0 {
		b.session.Order = nil
		return b.viewLocked(), nil
	}
	order := &models.Order{Status: models.OrderStatusPending}
	for _, item := range items {
		price, ok := prices[item.ItemID]
		if !ok {
			return nil, apiError(400, "UNKNOWN_ITEM")
		}
		line := price.Mul(decimal.NewFromInt(int64(item.Amount)))
		order.Items = append(order.Items, models.OrderItem{ItemID: item.ItemID, Amount: item.Amount, Price: line})
		order.TotalPrice = order.TotalPrice.Add(line)
	}
	b.session.Order = order
	return b.viewLocked(), nil
}

func (b *backend) Remove(ctx context.Context) error {
	if err := b.enter(ctx, "remove"); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.removeFails > 0 {
		b.removeFails--
		return errUnreachable
	}
	b.session = nil
	return nil
}

func (b *backend) Place(ctx context.Context) (*models.Session, error) {
	if err := b.enter(ctx, "place"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.liveLocked() {
		return nil, apiError(400, "NO_SESSION")
	}
	if b.session.Order == nil {
		return nil, apiError(400, "EMPTY_ORDER")
	}
	if !b.session.Order.Placed() {
		now := b.clock.Now()
		b.session.Order.ID = int64(100 + b.seq)
		b.session.Order.PlacedAt = &now
		b.session.Order.Status = models.OrderStatusPending
	}
	return b.viewLocked(), nil
}

func (b *backend) Discard(ctx context.Context) (*models.Session, error) {
	if err := b.enter(ctx, "discard"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.liveLocked() {
		return nil, apiError(400, "NO_SESSION")
	}
	if !b.session.Order.Placed() {
		return nil, apiError(409, "ORDER_NOT_PLACED")
	}
	if b.session.Order.Status.Settled() {
		return nil, apiError(409, "ORDER_LOCKED")
	}
	b.session.Order.ID = 0
	b.session.Order.PlacedAt = nil
	return b.viewLocked(), nil
}

func (b *backend) QR(ctx context.Context, provider string) (*models.PaymentQR, error) {
	if err := b.enter(ctx, "qr"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.qrErr != nil {
		return nil, b.qrErr
	}
	if b.session == nil || !b.session.Order.Placed() {
		return nil, apiError(409, "ORDER_NOT_PLACED")
	}
	ref := fmt.Sprintf("ref-%d", b.calls["qr"])
	return &models.PaymentQR{
		Provider:  provider,
		Reference: ref,
		Payload:   "kioskpay://" + provider + "/" + ref,
		Amount:    b.session.Order.TotalPrice.StringFixed(2),
	}, nil
}

func (b *backend) List(ctx context.Context) ([]models.CatalogItem, error) {
	if err := b.enter(ctx, "catalog"); err != nil {
		return nil, err
	}
	return []models.CatalogItem{
		{ID: 1, Name: "Ramen", Category: "mains", Price: prices[1]},
		{ID: 2, Name: "Gyoza", Category: "sides", Price: prices[2]},
		{ID: 3, Name: "Green tea", Category: "drinks", Price: prices[3]},
	}, nil
}

var errUnreachable = errors.New("connection refused")
