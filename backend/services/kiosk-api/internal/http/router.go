package httpserver

import (
	"net/http"
	"sort"
	"strings"

	"kioskpos/backend/services/kiosk-api/internal/config"
	"kioskpos/backend/services/kiosk-api/internal/http/handlers"
	"kioskpos/backend/services/kiosk-api/internal/http/middleware"
)

// RouterDeps collects handler dependencies.
type RouterDeps struct {
	SessionHandlers *handlers.SessionHandlers
	PaymentHandlers *handlers.PaymentHandlers
	BoardHandlers   *handlers.BoardHandlers
	LoginHandler    http.HandlerFunc
	CatalogHandler  http.HandlerFunc
	HealthHandler   http.HandlerFunc
	BoardSocket     http.HandlerFunc
	Tokens          middleware.TokenValidator
}

// NewRouter wires HTTP routes with middleware.
func NewRouter(deps RouterDeps) http.Handler {
	mux := http.NewServeMux()

	kiosk := func(handler http.HandlerFunc) http.Handler {
		return middleware.Chain(handler, middleware.AuthMiddleware(deps.Tokens, config.RoleKiosk))
	}
	board := func(handler http.HandlerFunc) http.Handler {
		return middleware.Chain(handler, middleware.AuthMiddleware(deps.Tokens, config.RoleBoard))
	}
	anyTerminal := func(handler http.HandlerFunc) http.Handler {
		return middleware.Chain(handler, middleware.AuthMiddleware(deps.Tokens))
	}

	mux.Handle("/health", method(http.MethodGet, deps.HealthHandler))
	mux.Handle("/api/auth/login", method(http.MethodPost, deps.LoginHandler))
	mux.Handle("/api/catalog", method(http.MethodGet, anyTerminal(deps.CatalogHandler)))

	s := deps.SessionHandlers
	mux.Handle("/api/customer-session", methods(map[string]http.Handler{
		http.MethodGet:    kiosk(s.Get),
		http.MethodPost:   kiosk(s.Create),
		http.MethodPut:    kiosk(s.Renew),
		http.MethodPatch:  kiosk(s.StoreOrder),
		http.MethodDelete: kiosk(s.Remove),
	}))
	mux.Handle("/api/customer-session/order", methods(map[string]http.Handler{
		http.MethodPost:   kiosk(s.PlaceOrder),
		http.MethodDelete: kiosk(s.DiscardOrder),
	}))

	mux.Handle("/api/payment/{provider}/qr", method(http.MethodGet, kiosk(deps.PaymentHandlers.QR)))
	mux.Handle("/api/payment/{provider}/callback", method(http.MethodPost, http.HandlerFunc(deps.PaymentHandlers.Callback)))

	mux.Handle("/api/board", method(http.MethodGet, board(deps.BoardHandlers.List)))
	mux.Handle("/api/orders/{id}/status", method(http.MethodPatch, board(deps.BoardHandlers.Advance)))
	mux.Handle("/ws/board", method(http.MethodGet, board(deps.BoardSocket)))

	return mux
}

func method(expected string, handler http.Handler) http.Handler {
	return methods(map[string]http.Handler{expected: handler})
}

func methods(byMethod map[string]http.Handler) http.Handler {
	allowed := make([]string, 0, len(byMethod))
	for m := range byMethod {
		allowed = append(allowed, m)
	}
	sort.Strings(allowed)
	allow := strings.Join(allowed, ", ")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler, ok := byMethod[r.Method]
		if !ok {
			w.Header().Set("Allow", allow)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
