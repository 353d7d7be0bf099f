package handlers

import (
	"context"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"kioskpos/backend/services/kiosk-api/internal/models"
)

// BoardService lists and advances kitchen orders.
type BoardService interface {
	Board(ctx context.Context) ([]models.Order, error)
	Advance(ctx context.Context, orderID int64, to models.OrderStatus) (*models.BoardEvent, error)
}

// BoardHandlers serves kitchen/cashier board endpoints.
type BoardHandlers struct {
	orders BoardService
	logger *zap.Logger
}

// NewBoardHandlers returns handler.
func NewBoardHandlers(orders BoardService, logger *zap.Logger) *BoardHandlers {
	return &BoardHandlers{orders: orders, logger: logger}
}

// List handles GET /api/board.
func (h *BoardHandlers) List(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.Board(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "list board", err)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

// Advance handles PATCH /api/orders/{id}/status with {"status":"IN_PROGRESS"}.
func (h *BoardHandlers) Advance(w http.ResponseWriter, r *http.Request) {
	type request struct {
		Status models.OrderStatus `json:"status"`
	}

	orderID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || orderID <= 0 {
		writeError(w, http.StatusBadRequest, "INVALID_ORDER_ID", "invalid order id")
		return
	}
	var req request
	if err := decodeJSON(r, &req); err != nil || !req.Status.Valid() {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "status is required")
		return
	}

	event, err := h.orders.Advance(r.Context(), orderID, req.Status)
	if err != nil {
		writeServiceError(w, h.logger, "advance order", err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}
