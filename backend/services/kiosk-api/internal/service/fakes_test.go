package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"kioskpos/backend/services/kiosk-api/internal/models"
	redisstore "kioskpos/backend/services/kiosk-api/internal/redis"
	"kioskpos/backend/services/kiosk-api/internal/repository"
)

type memorySessions struct {
	mu   sync.Mutex
	data map[string]models.CustomerSession
}

func newMemorySessions() *memorySessions {
	return &memorySessions{data: make(map[string]models.CustomerSession)}
}

func (m *memorySessions) Get(_ context.Context, terminalID string) (*models.CustomerSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.data[terminalID]
	if !ok {
		return nil, redisstore.ErrNotFound
	}
	return cloneSession(s), nil
}

func (m *memorySessions) Create(_ context.Context, session *models.CustomerSession) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[session.TerminalID]; ok {
		return false, nil
	}
	m.data[session.TerminalID] = *cloneSession(*session)
	return true, nil
}

func (m *memorySessions) Save(_ context.Context, session *models.CustomerSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[session.TerminalID] = *cloneSession(*session)
	return nil
}

func (m *memorySessions) Delete(_ context.Context, terminalID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[terminalID]
	delete(m.data, terminalID)
	return ok, nil
}

func cloneSession(s models.CustomerSession) *models.CustomerSession {
	if s.Order != nil {
		order := *s.Order
		order.Items = append([]models.OrderItem(nil), s.Order.Items...)
		s.Order = &order
	}
	return &s
}

type memoryCatalog struct {
	items map[int64]models.OrderableItem
}

func newMemoryCatalog() *memoryCatalog {
	return &memoryCatalog{items: map[int64]models.OrderableItem{
		1: {ID: 1, Name: "Ramen", Category: "mains", Price: decimal.RequireFromString("12.90")},
		2: {ID: 2, Name: "Gyoza", Category: "sides", Price: decimal.RequireFromString("6.50")},
		3: {ID: 3, Name: "Tea", Category: "drinks", Price: decimal.RequireFromString("3.00")},
	}}
}

func (c *memoryCatalog) List(context.Context) ([]models.OrderableItem, error) {
	var out []models.OrderableItem
	for _, item := range c.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *memoryCatalog) GetByIDs(_ context.Context, ids []int64) (map[int64]models.OrderableItem, error) {
	out := make(map[int64]models.OrderableItem)
	for _, id := range ids {
		if item, ok := c.items[id]; ok {
			out[id] = item
		}
	}
	return out, nil
}

type memoryOrders struct {
	mu     sync.Mutex
	nextID int64
	data   map[int64]models.Order
	now    func() time.Time
}

func newMemoryOrders(now func() time.Time) *memoryOrders {
	return &memoryOrders{data: make(map[int64]models.Order), now: now}
}

func (m *memoryOrders) Create(_ context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	now := m.now()
	order.ID = m.nextID
	order.PlacedAt = &now
	order.CreatedAt = now
	order.UpdatedAt = now
	m.data[order.ID] = *order
	return nil
}

func (m *memoryOrders) Get(_ context.Context, id int64) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.data[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return &o, nil
}

func (m *memoryOrders) Status(_ context.Context, id int64) (models.OrderStatus, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.data[id]
	if !ok {
		return "", time.Time{}, repository.ErrOrderNotFound
	}
	return o.Status, o.UpdatedAt, nil
}

func (m *memoryOrders) UpdateStatus(_ context.Context, id int64, from, to models.OrderStatus) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.data[id]
	if !ok {
		return time.Time{}, repository.ErrOrderNotFound
	}
	if o.Status != from {
		return time.Time{}, repository.ErrStatusConflict
	}
	o.Status = to
	o.UpdatedAt = m.now()
	m.data[id] = o
	return o.UpdatedAt, nil
}

func (m *memoryOrders) DeletePending(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.data[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	if o.Status != models.OrderStatusPending {
		return repository.ErrStatusConflict
	}
	delete(m.data, id)
	return nil
}

func (m *memoryOrders) ListByStatus(_ context.Context, statuses []models.OrderStatus, limit int) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Order
	for _, o := range m.data {
		for _, s := range statuses {
			if o.Status == s {
				out = append(out, o)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryOrders) ListStalePending(_ context.Context, placedBefore time.Time) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Order
	for _, o := range m.data {
		if o.Status == models.OrderStatusPending && o.PlacedAt.Before(placedBefore) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.BoardEvent
}

func (p *recordingPublisher) Publish(event models.BoardEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) statuses() []models.OrderStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.OrderStatus, len(p.events))
	for i, e := range p.events {
		out[i] = e.Status
	}
	return out
}

type memoryReferences struct {
	mu   sync.Mutex
	data map[string]models.PaymentReference
}

func newMemoryReferences() *memoryReferences {
	return &memoryReferences{data: make(map[string]models.PaymentReference)}
}

func (m *memoryReferences) Save(_ context.Context, ref models.PaymentReference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[ref.Reference] = ref
	return nil
}

func (m *memoryReferences) Get(_ context.Context, reference string) (*models.PaymentReference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref, ok := m.data[reference]
	if !ok {
		return nil, redisstore.ErrNotFound
	}
	return &ref, nil
}

func (m *memoryReferences) Delete(_ context.Context, reference string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, reference)
	return nil
}
