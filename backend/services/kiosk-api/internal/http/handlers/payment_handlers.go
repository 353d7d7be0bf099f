package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"kioskpos/backend/services/kiosk-api/internal/models"
)

// PaymentService issues references and applies provider callbacks.
type PaymentService interface {
	IssueReference(ctx context.Context, terminalID, provider string) (*models.PaymentReference, error)
	Callback(ctx context.Context, provider, reference, event string) (*models.BoardEvent, error)
}

// PaymentHandlers serves /api/payment.
type PaymentHandlers struct {
	payments PaymentService
	logger   *zap.Logger
}

// NewPaymentHandlers returns handler.
func NewPaymentHandlers(payments PaymentService, logger *zap.Logger) *PaymentHandlers {
	return &PaymentHandlers{payments: payments, logger: logger}
}

// QR handles GET /api/payment/{provider}/qr.
func (h *PaymentHandlers) QR(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Provider  string `json:"provider"`
		Reference string `json:"reference"`
		Payload   string `json:"payload"`
		Amount    string `json:"amount"`
		QRPNG     string `json:"qrPng"`
	}

	id, ok := terminalID(w, r)
	if !ok {
		return
	}
	ref, err := h.payments.IssueReference(r.Context(), id, r.PathValue("provider"))
	if err != nil {
		writeServiceError(w, h.logger, "issue payment reference", err)
		return
	}
	writeJSON(w, http.StatusOK, response{
		Provider:  ref.Provider,
		Reference: ref.Reference,
		Payload:   ref.Payload,
		Amount:    ref.Amount,
		QRPNG:     ref.QRPNG,
	})
}

// Callback handles POST /api/payment/{provider}/callback.
func (h *PaymentHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	type request struct {
		Reference string `json:"reference"`
		Event     string `json:"event"`
	}

	var req request
	if err := decodeJSON(r, &req); err != nil || req.Reference == "" {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "reference and event are required")
		return
	}
	provider := r.PathValue("provider")
	event, err := h.payments.Callback(r.Context(), provider, req.Reference, req.Event)
	if err != nil {
		writeServiceError(w, h.logger, "payment callback", err)
		return
	}
	h.logger.Info("payment callback applied",
		zap.String("provider", provider),
		zap.String("event", req.Event),
		zap.Int64("order_id", event.OrderID),
	)
	writeJSON(w, http.StatusOK, event)
}
