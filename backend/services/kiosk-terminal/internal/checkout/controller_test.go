package checkout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"kioskpos/backend/services/kiosk-terminal/internal/cancel"
	"kioskpos/backend/services/kiosk-terminal/internal/expiry"
	"kioskpos/backend/services/kiosk-terminal/internal/models"
	"kioskpos/backend/services/kiosk-terminal/internal/navigation"
	"kioskpos/backend/services/kiosk-terminal/internal/payment"
	"kioskpos/backend/services/kiosk-terminal/internal/session"
)

const waitFor = 2 * time.Second

type fakeClock interface {
	clockwork.Clock
	Advance(d time.Duration)
}

type hop struct{ from, to string }

type harness struct {
	clock fakeClock
	api   *backend
	ctrl  *Controller
	logs  *observer.ObservedLogs

	mu   sync.Mutex
	hops []hop
}

func newHarness(t *testing.T, deadline time.Duration) *harness {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	h := &harness{clock: clock, api: newBackend(clock)}

	registry := cancel.NewRegistry()
	core, logs := observer.New(zap.DebugLevel)
	h.logs = logs
	logger := zap.New(core)
	store := session.NewStore(h.api, h.api, registry, clock, logger)
	h.ctrl = NewController(store, payment.NewFetcher(h.api, registry), h.api, clock, logger, Options{
		Provider:        "blik",
		PaymentDeadline: deadline,
		OnNavigate: func(from, to string) {
			h.mu.Lock()
			h.hops = append(h.hops, hop{from, to})
			h.mu.Unlock()
		},
	})
	t.Cleanup(h.ctrl.Close)
	return h
}

func (h *harness) view() View {
	return h.ctrl.View()
}

func (h *harness) navigations() []hop {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]hop(nil), h.hops...)
}

func (h *harness) resetNavigations() {
	h.mu.Lock()
	h.hops = nil
	h.mu.Unlock()
}

// waitView blocks until the derived view satisfies cond.
func (h *harness) waitView(t *testing.T, cond func(View) bool) View {
	t.Helper()
	require.Eventually(t, func() bool { return cond(h.view()) }, waitFor, time.Millisecond)
	return h.view()
}

// poll advances the clock by the active period and waits for the resulting commit.
func (h *harness) poll(t *testing.T) View {
	t.Helper()
	before := h.view()
	require.NotZero(t, before.Period, "polling is disabled")
	h.clock.Advance(before.Period)
	return h.waitView(t, func(v View) bool { return v.Version > before.Version })
}

// startCheckout opens a session with one item and places it.
func (h *harness) startCheckout(t *testing.T) View {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, h.ctrl.Start(ctx))
	require.NoError(t, h.ctrl.AddItem(ctx, 1, 2))
	require.NoError(t, h.ctrl.Checkout(ctx))
	return h.waitView(t, func(v View) bool {
		return v.Route == payment.RoutePending && v.QR != nil
	})
}

func TestStartOpensEmptySession(t *testing.T) {
	h := newHarness(t, 0)

	v := h.view()
	assert.Equal(t, navigation.RouteStart, v.Route)
	assert.Equal(t, expiry.PromptStartOrdering, v.Prompt)

	require.NoError(t, h.ctrl.Start(context.Background()))
	v = h.waitView(t, func(v View) bool { return v.Session != nil })

	assert.Nil(t, v.Session.Order)
	assert.False(t, v.Session.Expired)
	assert.Equal(t, navigation.RouteOrder, v.Route)
	assert.Equal(t, expiry.BrowsePeriod, v.Period)
	assert.Equal(t, expiry.PromptNone, v.Prompt)
	assert.Equal(t, []hop{{navigation.RouteStart, navigation.RouteOrder}}, h.navigations())
}

func TestStartConflictIsSurfaced(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	require.NoError(t, h.ctrl.Start(ctx))

	err := h.ctrl.Start(ctx)
	assert.ErrorIs(t, err, session.ErrConflict)
	assert.Equal(t, 2, h.api.count("create"))
}

func TestNearExpiryTightensPolling(t *testing.T) {
	h := newHarness(t, 0)
	h.api.setLifetime(45 * time.Second)
	require.NoError(t, h.ctrl.Start(context.Background()))

	v := h.waitView(t, func(v View) bool { return v.Session != nil })
	assert.Equal(t, 45, v.Session.ExpiresInSeconds)
	assert.Equal(t, 30*time.Second, v.Period)

	v = h.poll(t)
	assert.Equal(t, 15, v.Session.ExpiresInSeconds)
	assert.Equal(t, time.Second, v.Period)
	assert.Equal(t, expiry.PromptStillThere, v.Prompt)
	assert.Equal(t, 15, v.Countdown)
	assert.Zero(t, h.api.count("renew"))

	require.NoError(t, h.ctrl.StillHere(context.Background()))
	v = h.waitView(t, func(v View) bool { return v.Prompt == expiry.PromptNone })
	assert.Equal(t, 30*time.Second, v.Period)
}

func TestPollPeriodFollowsRemainingLifetime(t *testing.T) {
	h := newHarness(t, 0)
	h.api.setLifetime(40 * time.Second)
	require.NoError(t, h.ctrl.Start(context.Background()))
	h.waitView(t, func(v View) bool { return v.Session != nil })

	for i := 0; i < 20; i++ {
		v := h.poll(t)
		if v.Session == nil || v.Session.Expired {
			break
		}
		if v.Session.ExpiresInSeconds < 30 {
			assert.Equal(t, time.Second, v.Period, "remaining %d", v.Session.ExpiresInSeconds)
		} else {
			assert.Equal(t, 30*time.Second, v.Period, "remaining %d", v.Session.ExpiresInSeconds)
		}
	}
}

func TestExpiredSessionIsRemovedOnce(t *testing.T) {
	h := newHarness(t, 0)
	h.api.setLifetime(32 * time.Second)
	require.NoError(t, h.ctrl.Start(context.Background()))
	h.waitView(t, func(v View) bool { return v.Session != nil })

	for i := 0; i < 10; i++ {
		v := h.poll(t)
		if v.Period == 0 {
			break
		}
	}

	v := h.waitView(t, func(v View) bool { return v.Session == nil })
	assert.Equal(t, navigation.RouteStart, v.Route)
	assert.Zero(t, v.Period)
	assert.Equal(t, 1, h.api.count("remove"))

	h.clock.Advance(time.Minute)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, h.api.count("remove"))
}

func TestRenewWithoutSessionDisablesPolling(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	require.NoError(t, h.ctrl.Start(ctx))
	h.waitView(t, func(v View) bool { return v.Period == expiry.BrowsePeriod })

	h.api.drop()
	require.NoError(t, h.ctrl.StillHere(ctx))

	v := h.waitView(t, func(v View) bool { return v.Session == nil })
	assert.Zero(t, v.Period)
	assert.Equal(t, navigation.RouteStart, v.Route)
	assert.Equal(t, expiry.PromptStartOrdering, v.Prompt)
	assert.Empty(t, v.SyncError)
}

func TestRapidCartEditsKeepLastList(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	require.NoError(t, h.ctrl.Start(ctx))

	h.api.gate("store")
	first := make(chan error, 1)
	go func() { first <- h.ctrl.AddItem(ctx, 1, 1) }()
	require.Eventually(t, func() bool { return h.api.count("store") == 1 }, waitFor, time.Millisecond)

	require.NoError(t, h.ctrl.AddItem(ctx, 2, 1))
	require.NoError(t, <-first)

	v := h.waitView(t, func(v View) bool { return v.Session != nil && v.Session.Order != nil })
	assert.Equal(t, []models.ItemInput{{ItemID: 1, Amount: 1}, {ItemID: 2, Amount: 1}}, v.Session.Items())
	assert.Equal(t, v.Session.Items(), h.ctrl.store.Snapshot().Session.Items())
}

func TestCartEditsReplaceWholeList(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	require.NoError(t, h.ctrl.Start(ctx))

	require.NoError(t, h.ctrl.AddItem(ctx, 1, 1))
	require.NoError(t, h.ctrl.AddItem(ctx, 1, 2))
	require.NoError(t, h.ctrl.AddItem(ctx, 3, 1))
	assert.Equal(t, []models.ItemInput{{ItemID: 1, Amount: 3}, {ItemID: 3, Amount: 1}}, h.ctrl.store.Snapshot().Session.Items())

	require.NoError(t, h.ctrl.SetItem(ctx, 1, 1))
	require.NoError(t, h.ctrl.SetItem(ctx, 3, 0))
	assert.Equal(t, []models.ItemInput{{ItemID: 1, Amount: 1}}, h.ctrl.store.Snapshot().Session.Items())

	require.NoError(t, h.ctrl.SetItem(ctx, 1, 0))
	assert.Nil(t, h.ctrl.store.Snapshot().Session.Order)

	assert.ErrorIs(t, h.ctrl.AddItem(ctx, 1, 0), ErrInvalidAmount)
	assert.ErrorIs(t, h.ctrl.SetItem(ctx, 1, -1), ErrInvalidAmount)
}

func TestPaymentStatusesNavigateTwice(t *testing.T) {
	h := newHarness(t, 0)
	v := h.startCheckout(t)
	assert.Equal(t, payment.PhasePending, v.Phase)
	assert.Equal(t, time.Second, v.Period)
	assert.Equal(t, "25.80", v.QR.Amount)
	h.resetNavigations()

	statuses := []models.OrderStatus{
		models.OrderStatusPending,
		models.OrderStatusPending,
		models.OrderStatusApproving,
		models.OrderStatusPaid,
	}
	h.api.script(statuses...)
	for _, status := range statuses {
		v = h.poll(t)
		assert.Equal(t, status, v.Session.Order.Status)
	}

	assert.Equal(t, []hop{
		{payment.RoutePending, payment.RouteWaiting},
		{payment.RouteWaiting, payment.RouteSuccess},
	}, h.navigations())
	assert.Equal(t, payment.PhaseSuccess, v.Phase)
	assert.Equal(t, payment.SuccessPeriod, v.Period)
}

func TestSuccessStaysUntilAutoRemoval(t *testing.T) {
	h := newHarness(t, 0)
	h.startCheckout(t)
	h.api.script(models.OrderStatusPaid)
	v := h.poll(t)
	require.Equal(t, payment.RouteSuccess, v.Route)

	for i := 0; i < 3; i++ {
		v = h.poll(t)
		assert.Equal(t, payment.RouteSuccess, v.Route)
		assert.Equal(t, expiry.PromptNone, v.Prompt)
	}
	assert.Zero(t, h.api.count("remove"))

	h.clock.Advance(payment.SuccessRemoveAfter)
	v = h.waitView(t, func(v View) bool { return v.Session == nil })
	assert.Equal(t, navigation.RouteStart, v.Route)
	assert.Equal(t, 1, h.api.count("remove"))
}

func TestPaymentDeadlineFailsAndRemoves(t *testing.T) {
	h := newHarness(t, 90*time.Second)
	h.startCheckout(t)
	h.resetNavigations()

	h.clock.Advance(90 * time.Second)
	v := h.waitView(t, func(v View) bool { return v.Phase == payment.PhaseFailed })
	assert.Zero(t, v.Period)
	assert.Equal(t, payment.RoutePending, v.Route)
	assert.Empty(t, h.navigations())

	h.clock.Advance(payment.FailedRemoveAfter)
	v = h.waitView(t, func(v View) bool { return v.Session == nil })
	assert.Equal(t, navigation.RouteStart, v.Route)
	assert.Equal(t, 1, h.api.count("remove"))
}

func TestLatePaidOverridesFailure(t *testing.T) {
	h := newHarness(t, 0)
	h.startCheckout(t)

	require.True(t, h.ctrl.FailPayment())
	assert.False(t, h.ctrl.FailPayment())
	h.waitView(t, func(v View) bool { return v.Phase == payment.PhaseFailed })

	h.api.setStatus(models.OrderStatusPaid)
	require.NoError(t, h.ctrl.Resume(context.Background()))
	v := h.waitView(t, func(v View) bool { return v.Phase == payment.PhaseSuccess })
	assert.Equal(t, payment.RouteSuccess, v.Route)
	assert.False(t, h.ctrl.FailPayment())

	h.clock.Advance(payment.FailedRemoveAfter)
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, h.api.count("remove"))
}

func TestFailPaymentOutsideCheckout(t *testing.T) {
	h := newHarness(t, 0)
	assert.False(t, h.ctrl.FailPayment())

	require.NoError(t, h.ctrl.Start(context.Background()))
	assert.False(t, h.ctrl.FailPayment())
}

func TestQRFailureIsInline(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	h.api.qrErr = errUnreachable
	require.NoError(t, h.ctrl.Start(ctx))
	require.NoError(t, h.ctrl.AddItem(ctx, 2, 1))

	err := h.ctrl.Checkout(ctx)
	assert.ErrorIs(t, err, errUnreachable)

	v := h.waitView(t, func(v View) bool { return v.QRError != "" })
	assert.Equal(t, payment.PhasePending, v.Phase)
	assert.Equal(t, time.Second, v.Period)
	assert.Equal(t, payment.RoutePending, v.Route)
	assert.Nil(t, v.QR)

	h.api.mu.Lock()
	h.api.qrErr = nil
	h.api.mu.Unlock()
	require.NoError(t, h.ctrl.MountPayment(ctx))
	v = h.view()
	assert.Empty(t, v.QRError)
	require.NotNil(t, v.QR)
	assert.Equal(t, "blik", v.QR.Provider)
}

func TestQRFailureAfterLeavingCheckoutIsLogged(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	require.NoError(t, h.ctrl.Start(ctx))
	require.NoError(t, h.ctrl.AddItem(ctx, 1, 1))

	gate := h.api.gate("qr")
	done := make(chan error, 1)
	go func() { done <- h.ctrl.Checkout(ctx) }()
	require.Eventually(t, func() bool { return h.api.count("qr") == 1 }, waitFor, time.Millisecond)

	require.NoError(t, h.ctrl.Cancel(ctx))
	h.api.mu.Lock()
	h.api.qrErr = errUnreachable
	h.api.mu.Unlock()
	close(gate)

	require.NoError(t, <-done)
	v := h.view()
	assert.Nil(t, v.Session)
	assert.Empty(t, v.QRError)

	entries := h.logs.FilterMessage("payment qr failed after leaving checkout").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.DebugLevel, entries[0].Level)
	assert.Equal(t, errUnreachable.Error(), entries[0].ContextMap()["error"])
}

func TestBackReturnsToCart(t *testing.T) {
	h := newHarness(t, 90*time.Second)
	h.startCheckout(t)
	h.resetNavigations()

	require.NoError(t, h.ctrl.Back(context.Background()))
	v := h.waitView(t, func(v View) bool {
		return v.Session != nil && !v.Session.Checkout() && v.Route == navigation.RouteOrder
	})
	assert.Equal(t, payment.PhaseNone, v.Phase)
	assert.Nil(t, v.QR)
	assert.Equal(t, []hop{{payment.RoutePending, navigation.RouteOrder}}, h.navigations())

	h.clock.Advance(90 * time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.NotEqual(t, payment.PhaseFailed, h.view().Phase)
}

func TestCancelRemovesOnce(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	require.NoError(t, h.ctrl.Start(ctx))

	require.NoError(t, h.ctrl.Cancel(ctx))
	require.NoError(t, h.ctrl.Cancel(ctx))
	v := h.waitView(t, func(v View) bool { return v.Session == nil })
	assert.Equal(t, navigation.RouteStart, v.Route)
	assert.Equal(t, 1, h.api.count("remove"))
}

func TestCancelAfterFailedRemovalReachesServer(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	require.NoError(t, h.ctrl.Start(ctx))
	id := h.waitView(t, func(v View) bool { return v.Session != nil }).Session.ID

	h.api.failRemovals(1)
	assert.ErrorIs(t, h.ctrl.Cancel(ctx), errUnreachable)
	assert.Nil(t, h.view().Session)

	// the server kept the session: starting again conflicts and resuming brings it back
	assert.ErrorIs(t, h.ctrl.Start(ctx), session.ErrConflict)
	require.NoError(t, h.ctrl.Resume(ctx))
	v := h.waitView(t, func(v View) bool { return v.Session != nil })
	require.Equal(t, id, v.Session.ID)

	require.NoError(t, h.ctrl.Cancel(ctx))
	assert.Equal(t, 2, h.api.count("remove"))
	assert.Nil(t, h.view().Session)

	require.NoError(t, h.ctrl.Start(ctx))
	assert.NotEqual(t, id, h.waitView(t, func(v View) bool { return v.Session != nil }).Session.ID)
}

func TestExpiredSessionRemovedAfterFailedRemoval(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	require.NoError(t, h.ctrl.Start(ctx))
	h.waitView(t, func(v View) bool { return v.Session != nil })

	h.api.failRemovals(1)
	h.clock.Advance(3 * time.Minute)
	require.NoError(t, h.ctrl.Resume(ctx))
	require.Eventually(t, func() bool { return h.api.count("remove") == 1 }, waitFor, time.Millisecond)

	// the expired session is still on the server; seeing it again removes it
	require.Eventually(t, func() bool {
		_ = h.ctrl.Resume(ctx)
		return h.api.count("remove") == 2
	}, waitFor, 5*time.Millisecond)

	v := h.waitView(t, func(v View) bool { return v.Session == nil })
	assert.Equal(t, navigation.RouteStart, v.Route)
	assert.Zero(t, v.Period)

	require.NoError(t, h.ctrl.Resume(ctx))
	assert.Nil(t, h.view().Session)
	assert.Equal(t, 2, h.api.count("remove"))
}

func TestRefreshErrorKeepsSnapshot(t *testing.T) {
	h := newHarness(t, 0)
	require.NoError(t, h.ctrl.Start(context.Background()))
	before := h.waitView(t, func(v View) bool { return v.Session != nil })

	h.api.setGetErr(errUnreachable)
	h.clock.Advance(before.Period)
	v := h.waitView(t, func(v View) bool { return v.SyncError != "" })
	assert.Equal(t, before.Version, v.Version)
	assert.Equal(t, before.Session.ID, v.Session.ID)
	assert.Equal(t, before.Period, v.Period)

	h.api.setGetErr(nil)
	h.clock.Advance(before.Period)
	h.waitView(t, func(v View) bool { return v.SyncError == "" && v.Version > before.Version })
}

func TestMenuIsCached(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()

	items, err := h.ctrl.Menu(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 3)

	_, err = h.ctrl.Menu(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, h.api.count("catalog"))
}
