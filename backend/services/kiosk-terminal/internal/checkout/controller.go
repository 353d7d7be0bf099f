// Package checkout drives the customer session on a kiosk terminal. Every committed snapshot and
// every poll is folded through the expiry and payment derivations into a poll period, scheduled
// removals and at most one navigation.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"kioskpos/backend/services/kiosk-terminal/internal/cancel"
	"kioskpos/backend/services/kiosk-terminal/internal/expiry"
	"kioskpos/backend/services/kiosk-terminal/internal/models"
	"kioskpos/backend/services/kiosk-terminal/internal/navigation"
	"kioskpos/backend/services/kiosk-terminal/internal/payment"
	"kioskpos/backend/services/kiosk-terminal/internal/poller"
	"kioskpos/backend/services/kiosk-terminal/internal/session"
)

// ErrInvalidAmount is returned for item amounts the cart cannot hold.
var ErrInvalidAmount = errors.New("checkout: invalid amount")

// Catalog lists orderable items.
type Catalog interface {
	List(ctx context.Context) ([]models.CatalogItem, error)
}

// View is what the customer sees after a derivation.
type View struct {
	Version   uint64
	Route     string
	Phase     payment.Phase
	Prompt    expiry.Prompt
	Countdown int
	Period    time.Duration
	Session   *models.Session
	QR        *models.PaymentQR
	QRError   string
	SyncError string
}

// Options tune the controller.
type Options struct {
	Provider        string
	PaymentDeadline time.Duration
	// OnView receives every derived view in order. It runs under the derivation lock and must not
	// call back into the controller.
	OnView func(View)
	// OnNavigate receives every route change. Same restriction as OnView.
	OnNavigate func(from, to string)
}

// Controller orchestrates a terminal's customer session.
type Controller struct {
	store   *session.Store
	fetcher *payment.Fetcher
	catalog Catalog
	logger  *zap.Logger
	opts    Options

	poller   *poller.Poller
	removal  *poller.Delay
	deadline *poller.Delay
	nav      *navigation.Navigator
	latch    expiry.Latch

	ctx         context.Context
	stop        context.CancelFunc
	unsubscribe func()
	wg          sync.WaitGroup

	mu           sync.Mutex
	closed       bool
	derived      uint64
	sessionID    string
	failed       bool
	removalPhase payment.Phase
	deadlineFor  string
	qr           *models.PaymentQR
	qrErr        string
	syncErr      string
	view         View

	editMu   sync.Mutex
	draft    []models.ItemInput
	drafting bool
	editSeq  uint64

	menuMu sync.Mutex
	menu   []models.CatalogItem
}

// NewController wires the controller and subscribes it to store.
func NewController(store *session.Store, fetcher *payment.Fetcher, catalog Catalog, clock clockwork.Clock, logger *zap.Logger, opts Options) *Controller {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if opts.Provider == "" {
		opts.Provider = "blik"
	}
	if opts.OnView == nil {
		opts.OnView = func(View) {}
	}

	ctx, stop := context.WithCancel(context.Background())
	c := &Controller{
		store:    store,
		fetcher:  fetcher,
		catalog:  catalog,
		logger:   logger.Named("checkout"),
		opts:     opts,
		removal:  poller.NewDelay(clock),
		deadline: poller.NewDelay(clock),
		ctx:      ctx,
		stop:     stop,
	}
	c.poller = poller.New(clock, c.tick)
	c.nav = navigation.NewNavigator(c.navigated)
	c.view = View{Route: navigation.RouteStart, Prompt: expiry.PromptStartOrdering}
	c.unsubscribe = store.Subscribe(c.derive)
	return c
}

// Run loads the current session and keeps the controller going until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.Resume(ctx); err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Warn("initial session load failed", zap.Error(err))
	}
	<-ctx.Done()
	return nil
}

// Close stops timers, drops subscriptions and waits for background removals.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.poller.Stop()
	c.removal.Cancel()
	c.deadline.Cancel()
	c.unsubscribe()
	c.stop()
	c.store.Close()
	c.wg.Wait()
}

// View returns the view of the latest committed snapshot, deriving it first when the subscription
// has not caught up yet.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	if latest := c.store.Snapshot(); latest.Version > c.derived {
		c.deriveLocked(latest)
	}
	return c.view
}

// Resume reloads the session from the server.
func (c *Controller) Resume(ctx context.Context) error {
	_, err := c.store.Refresh(ctx)
	return c.settle(err)
}

// Start opens a session. session.ErrConflict is returned when one is already open.
func (c *Controller) Start(ctx context.Context) error {
	_, err := c.store.Create(ctx)
	return c.settle(err)
}

// StillHere confirms presence and slides the session expiry.
func (c *Controller) StillHere(ctx context.Context) error {
	_, err := c.store.Renew(ctx)
	return c.settle(err)
}

// Menu returns the catalog, cached after the first successful load.
func (c *Controller) Menu(ctx context.Context) ([]models.CatalogItem, error) {
	c.menuMu.Lock()
	defer c.menuMu.Unlock()
	if c.menu != nil {
		return c.menu, nil
	}
	items, err := c.catalog.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load menu: %w", err)
	}
	c.menu = items
	return items, nil
}

// AddItem adds amount of item to the cart.
func (c *Controller) AddItem(ctx context.Context, itemID int64, amount int) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return c.edit(ctx, func(items []models.ItemInput) []models.ItemInput {
		for i := range items {
			if items[i].ItemID == itemID {
				items[i].Amount += amount
				return items
			}
		}
		return append(items, models.ItemInput{ItemID: itemID, Amount: amount})
	})
}

// SetItem sets the amount of item in the cart. Zero removes it.
func (c *Controller) SetItem(ctx context.Context, itemID int64, amount int) error {
	if amount < 0 {
		return ErrInvalidAmount
	}
	return c.edit(ctx, func(items []models.ItemInput) []models.ItemInput {
		out := items[:0]
		found := false
		for _, item := range items {
			if item.ItemID == itemID {
				found = true
				if amount == 0 {
					continue
				}
				item.Amount = amount
			}
			out = append(out, item)
		}
		if !found && amount > 0 {
			out = append(out, models.ItemInput{ItemID: itemID, Amount: amount})
		}
		return out
	})
}

// Checkout places the order and mounts the payment step.
func (c *Controller) Checkout(ctx context.Context) error {
	snap, err := c.store.PlaceOrder(ctx)
	if err = c.settle(err); err != nil {
		return err
	}
	if !snap.Session.Checkout() {
		return nil
	}
	return c.MountPayment(ctx)
}

// MountPayment fetches the payment QR for the configured provider. A failed fetch is shown inline
// and leaves the phase and polling untouched.
func (c *Controller) MountPayment(ctx context.Context) error {
	qr, err := c.fetcher.Fetch(ctx, c.opts.Provider)
	if errors.Is(err, cancel.ErrSuperseded) {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	latest := c.store.Snapshot()
	c.deriveLocked(latest)
	if !latest.Session.Checkout() {
		if err != nil {
			c.logger.Debug("payment qr failed after leaving checkout", zap.String("provider", c.opts.Provider), zap.Error(err))
		}
		return nil
	}
	if err != nil {
		c.qrErr = "payment code unavailable, try again"
		c.publishLocked()
		return fmt.Errorf("fetch payment qr: %w", err)
	}
	c.qr = qr
	c.qrErr = ""
	c.publishLocked()
	return nil
}

// Back discards the placed order and returns the customer to the cart.
func (c *Controller) Back(ctx context.Context) error {
	c.fetcher.Abort(c.opts.Provider)
	c.nav.BeginManual()
	_, err := c.store.DiscardOrder(ctx)
	err = c.settle(err)
	route := ""
	if err == nil && c.store.Snapshot().Session != nil {
		route = navigation.RouteOrder
	}
	c.nav.EndManual(route)
	c.derive(c.store.Snapshot())
	return err
}

// Cancel closes the session on customer request. Every call with a session reaches the server,
// so a cancel that failed can be repeated once the session is back.
func (c *Controller) Cancel(ctx context.Context) error {
	if c.store.Snapshot().Session == nil {
		return nil
	}
	return c.settle(c.store.Remove(ctx))
}

// FailPayment marks the running payment as failed. It has no effect outside checkout or once the
// order is settled, and reports whether it took effect.
func (c *Controller) FailPayment() bool {
	s := c.store.Snapshot().Session
	if !s.Checkout() || s.Order.Status.Settled() {
		return false
	}

	c.mu.Lock()
	if c.sessionID != s.ID || c.failed {
		c.mu.Unlock()
		return false
	}
	c.failed = true
	c.mu.Unlock()

	c.logger.Info("payment failed", zap.String("session_id", s.ID))
	c.derive(c.store.Snapshot())
	return true
}

func (c *Controller) edit(ctx context.Context, change func([]models.ItemInput) []models.ItemInput) error {
	c.editMu.Lock()
	base := c.draft
	if !c.drafting {
		base = c.store.Snapshot().Session.Items()
	}
	items := change(append([]models.ItemInput(nil), base...))
	c.draft = items
	c.drafting = true
	c.editSeq++
	seq := c.editSeq
	c.editMu.Unlock()

	_, err := c.store.StoreOrder(ctx, items)

	c.editMu.Lock()
	if seq == c.editSeq {
		c.draft = nil
		c.drafting = false
	}
	c.editMu.Unlock()
	return c.settle(err)
}

func (c *Controller) settle(err error) error {
	if errors.Is(err, cancel.ErrSuperseded) {
		return nil
	}
	return err
}

func (c *Controller) tick() {
	_, err := c.store.Refresh(c.ctx)
	if err == nil || errors.Is(err, cancel.ErrSuperseded) || errors.Is(err, context.Canceled) {
		return
	}
	c.logger.Warn("session refresh failed", zap.Error(err))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.syncErr = "connection problem, retrying"
	c.publishLocked()
}

func (c *Controller) derive(snap session.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deriveLocked(snap)
}

// deriveLocked folds snap into timers, removals and navigation. Snapshots older than the last
// derived one are ignored.
func (c *Controller) deriveLocked(snap session.Snapshot) {
	if c.closed || snap.Version < c.derived {
		return
	}
	if snap.Version > c.derived {
		c.syncErr = ""
	}
	c.derived = snap.Version

	s := snap.Session
	c.trackLocked(s)

	dec := expiry.Evaluate(s)
	view := View{
		Version:   snap.Version,
		Session:   s,
		Prompt:    dec.Prompt,
		Countdown: dec.Countdown,
		Period:    dec.Period,
	}

	var res payment.Resolution
	if s.Checkout() {
		res = payment.Resolve(s.Order, c.failed)
		view.Phase = res.Phase
		view.Period = res.Period
		c.scheduleRemovalLocked(s.ID, res)
		c.armDeadlineLocked(s.ID, res.Phase)
	} else {
		c.leaveCheckoutLocked()
	}

	switch {
	case view.Phase == payment.PhaseSuccess:
		view.Prompt = expiry.PromptNone
	case dec.Remove:
		view.Period = 0
		c.removeLocked(s.ID)
	}

	c.poller.SetPeriod(view.Period)
	c.nav.Apply(navigation.Inputs{
		HasSession: s != nil,
		Expired:    s != nil && s.Expired,
		Checkout:   s.Checkout(),
	}.FromResolution(res))

	c.view = view
	c.publishLocked()
}

func (c *Controller) publishLocked() {
	c.view.Route = c.nav.Current()
	c.view.QR = c.qr
	c.view.QRError = c.qrErr
	c.view.SyncError = c.syncErr
	c.opts.OnView(c.view)
}

// trackLocked resets per-session state when the session changes.
func (c *Controller) trackLocked(s *models.Session) {
	id := sessionID(s)
	if id == c.sessionID {
		return
	}
	c.sessionID = id
	c.failed = false
	c.qr = nil
	c.qrErr = ""
	c.removal.Cancel()
	c.removalPhase = payment.PhaseNone
	c.deadline.Cancel()
	c.deadlineFor = ""
}

func (c *Controller) leaveCheckoutLocked() {
	c.failed = false
	c.qr = nil
	c.qrErr = ""
	if c.removalPhase != payment.PhaseNone {
		c.removal.Cancel()
		c.removalPhase = payment.PhaseNone
	}
	c.deadline.Cancel()
	c.deadlineFor = ""
}

func (c *Controller) scheduleRemovalLocked(id string, res payment.Resolution) {
	if res.RemoveAfter <= 0 {
		if c.removalPhase != payment.PhaseNone {
			c.removal.Cancel()
			c.removalPhase = payment.PhaseNone
		}
		return
	}
	if c.removalPhase == res.Phase {
		return
	}
	c.removalPhase = res.Phase
	c.removal.Schedule(res.RemoveAfter, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.removeLocked(id)
	})
}

func (c *Controller) armDeadlineLocked(id string, phase payment.Phase) {
	switch phase {
	case payment.PhasePending, payment.PhaseWaiting:
		if c.opts.PaymentDeadline <= 0 || c.deadlineFor == id {
			return
		}
		c.deadlineFor = id
		c.deadline.Schedule(c.opts.PaymentDeadline, func() { c.FailPayment() })
	default:
		c.deadline.Cancel()
	}
}

// removeLocked deletes the session id once, in the background.
func (c *Controller) removeLocked(id string) {
	if c.closed || !c.latch.First(id) {
		return
	}
	c.logger.Info("removing session", zap.String("session_id", id))
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		err := c.store.Remove(c.ctx)
		if err == nil || errors.Is(err, cancel.ErrSuperseded) || errors.Is(err, context.Canceled) {
			return
		}
		c.logger.Warn("session removal failed", zap.String("session_id", id), zap.Error(err))

		// the server still holds the session: let the next snapshot of it trigger removal again
		c.mu.Lock()
		defer c.mu.Unlock()
		c.latch.Reset(id)
		if latest := c.store.Snapshot(); sessionID(latest.Session) == id {
			c.deriveLocked(latest)
		}
	}()
}

func (c *Controller) navigated(from, to string) {
	c.logger.Debug("navigate", zap.String("from", from), zap.String("to", to))
	if c.opts.OnNavigate != nil {
		c.opts.OnNavigate(from, to)
	}
}

func sessionID(s *models.Session) string {
	if s == nil {
		return ""
	}
	return s.ID
}
