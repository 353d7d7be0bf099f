package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"kioskpos/backend/services/kiosk-api/internal/models"
	"kioskpos/backend/services/kiosk-api/internal/service"
)

// SessionService is what session handlers need from the service layer.
type SessionService interface {
	Get(ctx context.Context, terminalID string) (*models.CustomerSession, error)
	Create(ctx context.Context, terminalID string) (*models.CustomerSession, error)
	Renew(ctx context.Context, terminalID string) (*models.CustomerSession, error)
	StoreOrder(ctx context.Context, terminalID string, items []service.ItemInput) (*models.CustomerSession, error)
	Remove(ctx context.Context, terminalID string) error
}

// OrderPlacer places and discards the session order.
type OrderPlacer interface {
	Place(ctx context.Context, terminalID string) (*models.CustomerSession, error)
	Discard(ctx context.Context, terminalID string) (*models.CustomerSession, error)
}

// SessionHandlers serves /api/customer-session.
type SessionHandlers struct {
	sessions SessionService
	orders   OrderPlacer
	logger   *zap.Logger
}

// NewSessionHandlers returns handler.
func NewSessionHandlers(sessions SessionService, orders OrderPlacer, logger *zap.Logger) *SessionHandlers {
	return &SessionHandlers{sessions: sessions, orders: orders, logger: logger}
}

// Get handles GET /api/customer-session. No session is answered with a JSON null.
func (h *SessionHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := terminalID(w, r)
	if !ok {
		return
	}
	session, err := h.sessions.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "get session", err)
		return
	}
	if session == nil {
		writeRaw(w, http.StatusOK, []byte("null"))
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// Create handles POST /api/customer-session.
func (h *SessionHandlers) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := terminalID(w, r)
	if !ok {
		return
	}
	session, err := h.sessions.Create(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "create session", err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

// Renew handles PUT /api/customer-session.
func (h *SessionHandlers) Renew(w http.ResponseWriter, r *http.Request) {
	id, ok := terminalID(w, r)
	if !ok {
		return
	}
	session, err := h.sessions.Renew(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "renew session", err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// StoreOrder handles PATCH /api/customer-session with {"items":[{"itemId":1,"amount":2}]}.
func (h *SessionHandlers) StoreOrder(w http.ResponseWriter, r *http.Request) {
	type request struct {
		Items []service.ItemInput `json:"items"`
	}

	id, ok := terminalID(w, r)
	if !ok {
		return
	}
	var req request
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid JSON body")
		return
	}
	session, err := h.sessions.StoreOrder(r.Context(), id, req.Items)
	if err != nil {
		writeServiceError(w, h.logger, "store order", err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// Remove handles DELETE /api/customer-session.
func (h *SessionHandlers) Remove(w http.ResponseWriter, r *http.Request) {
	id, ok := terminalID(w, r)
	if !ok {
		return
	}
	if err := h.sessions.Remove(r.Context(), id); err != nil {
		writeServiceError(w, h.logger, "remove session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PlaceOrder handles POST /api/customer-session/order.
func (h *SessionHandlers) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := terminalID(w, r)
	if !ok {
		return
	}
	session, err := h.orders.Place(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "place order", err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// DiscardOrder handles DELETE /api/customer-session/order.
func (h *SessionHandlers) DiscardOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := terminalID(w, r)
	if !ok {
		return
	}
	session, err := h.orders.Discard(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "discard order", err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}
