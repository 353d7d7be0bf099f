package navigation

import (
	"sync"

	"kioskpos/backend/services/kiosk-terminal/internal/payment"
)

// Routes outside the payment step.
const (
	RouteStart = "/"
	RouteOrder = "order"
)

// Inputs is the state the canonical route is derived from. Target is the payment route resolved for
// the order during checkout; empty keeps the current route.
type Inputs struct {
	HasSession bool
	Expired    bool
	Checkout   bool
	Phase      payment.Phase
	Target     string
	Current    string
}

// FromResolution fills the payment part of in from res.
func (in Inputs) FromResolution(res payment.Resolution) Inputs {
	in.Phase = res.Phase
	in.Target = res.Route
	return in
}

// Canonical returns the route the terminal should show.
func Canonical(in Inputs) string {
	// success is only left through session removal
	if in.Phase == payment.PhaseSuccess && in.HasSession && in.Target != "" {
		return in.Target
	}
	if !in.HasSession || in.Expired {
		return RouteStart
	}
	if !in.Checkout {
		if in.Current == RouteStart || in.Current == "" || payment.IsRoute(in.Current) {
			return RouteOrder
		}
		return in.Current
	}
	if in.Target == "" {
		return in.Current
	}
	return in.Target
}

// Navigator holds the current route and moves it to the canonical one.
type Navigator struct {
	mu       sync.Mutex
	current  string
	manual   int
	navigate func(from, to string)
}

// NewNavigator starts at RouteStart. navigate is called for every route change, under the
// navigator lock, so it must not call back into the navigator.
func NewNavigator(navigate func(from, to string)) *Navigator {
	if navigate == nil {
		navigate = func(string, string) {}
	}
	return &Navigator{current: RouteStart, navigate: navigate}
}

// Current returns the current route.
func (n *Navigator) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// Apply navigates to the canonical route for in, ignoring in.Current. It does nothing while a
// manual navigation is in flight or when already there, and reports whether it navigated.
func (n *Navigator) Apply(in Inputs) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.manual > 0 {
		return false
	}
	in.Current = n.current
	to := Canonical(in)
	if to == n.current {
		return false
	}
	from := n.current
	n.current = to
	n.navigate(from, to)
	return true
}

// BeginManual marks a customer-initiated navigation as in flight.
func (n *Navigator) BeginManual() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.manual++
}

// EndManual finishes a customer-initiated navigation. An empty route leaves the current one.
func (n *Navigator) EndManual(route string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.manual > 0 {
		n.manual--
	}
	if route != "" && route != n.current {
		from := n.current
		n.current = route
		n.navigate(from, route)
	}
}
