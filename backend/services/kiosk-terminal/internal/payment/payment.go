package payment

import (
	"context"
	"time"

	"kioskpos/backend/services/kiosk-terminal/internal/cancel"
	"kioskpos/backend/services/kiosk-terminal/internal/models"
)

// Phase is the payment step shown to the customer.
type Phase string

// Phases.
const (
	PhaseNone    Phase = ""
	PhasePending Phase = "pending"
	PhaseWaiting Phase = "waiting"
	PhaseSuccess Phase = "success"
	PhaseFailed  Phase = "failed"
)

// Payment routes.
const (
	RoutePending = "payment/"
	RouteWaiting = "payment/process/waiting"
	RouteSuccess = "payment/process/success"
)

const (
	// ActivePeriod is the refresh period while waiting for the customer to pay.
	ActivePeriod = time.Second
	// SuccessPeriod is the refresh period on the success screen.
	SuccessPeriod = 15 * time.Second
	// SuccessRemoveAfter closes the session after a successful payment.
	SuccessRemoveAfter = 60 * time.Second
	// FailedRemoveAfter closes the session after a failed payment.
	FailedRemoveAfter = 10 * time.Second
)

// Resolution is the phase derived from the observed order. An empty Route keeps the current one.
type Resolution struct {
	Phase       Phase
	Route       string
	Period      time.Duration
	RemoveAfter time.Duration
}

// Resolve maps the observed order status and the failure signal to a phase. A settled order always
// resolves to success, so a late failure signal cannot pull the customer off the success screen.
// Absence of PAID alone never means failure.
func Resolve(order *models.Order, failed bool) Resolution {
	var status models.OrderStatus
	if order != nil {
		status = order.Status
	}

	switch {
	case status.Settled():
		return Resolution{Phase: PhaseSuccess, Route: RouteSuccess, Period: SuccessPeriod, RemoveAfter: SuccessRemoveAfter}
	case failed:
		return Resolution{Phase: PhaseFailed, RemoveAfter: FailedRemoveAfter}
	case status == models.OrderStatusApproving:
		return Resolution{Phase: PhaseWaiting, Route: RouteWaiting, Period: ActivePeriod}
	default:
		return Resolution{Phase: PhasePending, Route: RoutePending, Period: ActivePeriod}
	}
}

// IsRoute reports whether route belongs to the payment step.
func IsRoute(route string) bool {
	switch route {
	case RoutePending, RouteWaiting, RouteSuccess:
		return true
	}
	return false
}

// QRSource issues payment references.
type QRSource interface {
	QR(ctx context.Context, provider string) (*models.PaymentQR, error)
}

// Fetcher fetches QR codes with one outstanding request per provider.
type Fetcher struct {
	source   QRSource
	registry *cancel.Registry
}

// NewFetcher builds fetcher.
func NewFetcher(source QRSource, registry *cancel.Registry) *Fetcher {
	return &Fetcher{source: source, registry: registry}
}

// Fetch returns a QR for provider. A newer fetch for the same provider makes this one return
// cancel.ErrSuperseded.
func (f *Fetcher) Fetch(ctx context.Context, provider string) (*models.PaymentQR, error) {
	ctx, tok := f.registry.Begin(ctx, cancel.KeyPaymentQR(provider))
	defer tok.Done()

	qr, err := f.source.QR(ctx, provider)
	if err = tok.Guard(err); err != nil {
		return nil, err
	}
	return qr, nil
}

// Abort supersedes an outstanding fetch for provider.
func (f *Fetcher) Abort(provider string) {
	f.registry.Cancel(cancel.KeyPaymentQR(provider))
}
