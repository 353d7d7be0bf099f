package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"kioskpos/backend/services/kiosk-api/internal/http/middleware"
	"kioskpos/backend/services/kiosk-api/internal/service"
)

const maxBodyBytes = 64 * 1024

// errorResponse is the JSON error body.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_, _ = w.Write(body)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

type errorMapping struct {
	err    error
	status int
	code   string
}

var serviceErrors = []errorMapping{
	{service.ErrNoSession, http.StatusBadRequest, "NO_SESSION"},
	{service.ErrSessionExists, http.StatusConflict, "SESSION_EXISTS"},
	{service.ErrOrderLocked, http.StatusConflict, "ORDER_LOCKED"},
	{service.ErrOrderNotPlaced, http.StatusConflict, "ORDER_NOT_PLACED"},
	{service.ErrEmptyOrder, http.StatusBadRequest, "EMPTY_ORDER"},
	{service.ErrUnknownItem, http.StatusBadRequest, "UNKNOWN_ITEM"},
	{service.ErrInvalidItems, http.StatusBadRequest, "INVALID_ITEMS"},
	{service.ErrInvalidTransition, http.StatusConflict, "INVALID_TRANSITION"},
	{service.ErrOrderNotFound, http.StatusNotFound, "ORDER_NOT_FOUND"},
	{service.ErrUnknownProvider, http.StatusNotFound, "UNKNOWN_PROVIDER"},
	{service.ErrReferenceNotFound, http.StatusNotFound, "REFERENCE_NOT_FOUND"},
	{service.ErrUnknownEvent, http.StatusBadRequest, "UNKNOWN_EVENT"},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
}

// writeServiceError maps service sentinels to HTTP responses. Unknown errors are logged and hidden.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, op string, err error) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			writeError(w, m.status, m.code, err.Error())
			return
		}
	}
	logger.Error(op+" failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
}

func terminalID(w http.ResponseWriter, r *http.Request) (string, bool) {
	t, ok := middleware.TerminalFromContext(r.Context())
	if !ok || t.ID == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return "", false
	}
	return t.ID, true
}
