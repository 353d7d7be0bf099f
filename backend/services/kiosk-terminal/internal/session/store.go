package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"kioskpos/backend/services/kiosk-terminal/internal/cancel"
	"kioskpos/backend/services/kiosk-terminal/internal/clients"
	"kioskpos/backend/services/kiosk-terminal/internal/models"
)

// ErrConflict is returned by Create when the terminal already has a session.
var ErrConflict = clients.ErrConflict

// SessionAPI is the session endpoint set.
type SessionAPI interface {
	Get(ctx context.Context) (*models.Session, error)
	Create(ctx context.Context) (*models.Session, error)
	Renew(ctx context.Context) (*models.Session, error)
	StoreOrder(ctx context.Context, items []models.ItemInput) (*models.Session, error)
	Remove(ctx context.Context) error
}

// OrderAPI is the order placement endpoint set.
type OrderAPI interface {
	Place(ctx context.Context) (*models.Session, error)
	Discard(ctx context.Context) (*models.Session, error)
}

// Snapshot is one committed view of the terminal session. Session is nil when there is none.
type Snapshot struct {
	Version   uint64
	Session   *models.Session
	Committed time.Time
}

// Store owns the session snapshot. Every mutation goes through the API and commits the server's
// answer; there is no way to set the snapshot directly.
type Store struct {
	sessions SessionAPI
	orders   OrderAPI
	registry *cancel.Registry
	clock    clockwork.Clock
	logger   *zap.Logger

	mu     sync.Mutex
	snap   Snapshot
	nextID int
	subs   map[int]*subscription
}

// NewStore builds store with an empty snapshot.
func NewStore(sessions SessionAPI, orders OrderAPI, registry *cancel.Registry, clock clockwork.Clock, logger *zap.Logger) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if registry == nil {
		registry = cancel.NewRegistry()
	}
	return &Store{
		sessions: sessions,
		orders:   orders,
		registry: registry,
		clock:    clock,
		logger:   logger,
		subs:     make(map[int]*subscription),
	}
}

// Snapshot returns the latest committed snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Refresh reloads the session. No session commits nil.
func (s *Store) Refresh(ctx context.Context) (Snapshot, error) {
	return s.run(ctx, cancel.KeySessionGet, s.sessions.Get)
}

// Create starts a session. ErrConflict is surfaced as is and never retried.
func (s *Store) Create(ctx context.Context) (Snapshot, error) {
	return s.run(ctx, cancel.KeySessionCreate, s.sessions.Create)
}

// Renew slides the expiry. When the server reports no session the snapshot becomes nil without error.
func (s *Store) Renew(ctx context.Context) (Snapshot, error) {
	return s.run(ctx, cancel.KeySessionRenew, s.sessions.Renew)
}

// StoreOrder replaces the whole cart with items.
func (s *Store) StoreOrder(ctx context.Context, items []models.ItemInput) (Snapshot, error) {
	return s.run(ctx, cancel.KeySessionStoreOrder, func(ctx context.Context) (*models.Session, error) {
		return s.sessions.StoreOrder(ctx, items)
	})
}

// PlaceOrder locks the cart and starts checkout.
func (s *Store) PlaceOrder(ctx context.Context) (Snapshot, error) {
	return s.run(ctx, cancel.KeyOrderPlace, s.orders.Place)
}

// DiscardOrder drops the placed order and returns to editing.
func (s *Store) DiscardOrder(ctx context.Context) (Snapshot, error) {
	return s.run(ctx, cancel.KeyOrderDiscard, s.orders.Discard)
}

// Remove clears the snapshot and deletes the server session. The snapshot is cleared even when the
// server call fails; the error is still returned for logging.
func (s *Store) Remove(ctx context.Context) error {
	for _, key := range []string{
		cancel.KeySessionGet,
		cancel.KeySessionCreate,
		cancel.KeySessionRenew,
		cancel.KeySessionStoreOrder,
		cancel.KeyOrderPlace,
		cancel.KeyOrderDiscard,
	} {
		s.registry.Cancel(key)
	}

	ctx, tok := s.registry.Begin(ctx, cancel.KeySessionRemove)
	defer tok.Done()

	s.commit(nil)
	if err := s.sessions.Remove(ctx); err != nil {
		return tok.Guard(err)
	}
	return nil
}

// Close stops all subscriptions and supersedes in-flight requests.
func (s *Store) Close() {
	s.registry.CancelAll()
	s.mu.Lock()
	subs := s.subs
	s.subs = make(map[int]*subscription)
	s.mu.Unlock()
	for _, sub := range subs {
		sub.stop()
	}
}

func (s *Store) run(ctx context.Context, key string, call func(context.Context) (*models.Session, error)) (Snapshot, error) {
	ctx, tok := s.registry.Begin(ctx, key)
	defer tok.Done()

	s.mu.Lock()
	issued := s.snap.Version
	s.mu.Unlock()

	session, err := call(ctx)

	s.mu.Lock()
	// a read never overrides a commit made while it was in flight, nor brings back a removed session
	stale := key == cancel.KeySessionGet &&
		(s.snap.Version != issued || s.registry.Outstanding(cancel.KeySessionRemove))
	if stale || !tok.Current() {
		snap := s.snap
		s.mu.Unlock()
		s.logger.Debug("dropping superseded response", zap.String("key", tok.Key()))
		return snap, cancel.ErrSuperseded
	}
	if err != nil && !errors.Is(err, clients.ErrNoSession) {
		snap := s.snap
		s.mu.Unlock()
		return snap, err
	}
	if err != nil {
		session = nil
	}
	snap := s.commitLocked(session)
	s.mu.Unlock()
	return snap, nil
}

func (s *Store) commit(session *models.Session) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitLocked(session)
}

func (s *Store) commitLocked(session *models.Session) Snapshot {
	s.snap = Snapshot{
		Version:   s.snap.Version + 1,
		Session:   session,
		Committed: s.clock.Now(),
	}
	for _, sub := range s.subs {
		sub.push(s.snap)
	}
	return s.snap
}
