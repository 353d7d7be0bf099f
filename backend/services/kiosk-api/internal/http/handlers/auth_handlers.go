package handlers

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Authenticator exchanges terminal credentials for a token and role.
type Authenticator interface {
	Login(ctx context.Context, terminalID, password string) (string, string, error)
}

// NewLoginHandler handles POST /api/auth/login.
func NewLoginHandler(auth Authenticator, logger *zap.Logger) http.HandlerFunc {
	type request struct {
		TerminalID string `json:"terminalId"`
		Password   string `json:"password"`
	}
	type response struct {
		Token     string `json:"token"`
		TokenType string `json:"tokenType"`
		Role      string `json:"role"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid JSON body")
			return
		}

		req.TerminalID = strings.TrimSpace(req.TerminalID)
		if req.TerminalID == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", "terminalId and password are required")
			return
		}

		token, role, err := auth.Login(r.Context(), req.TerminalID, req.Password)
		if err != nil {
			writeServiceError(w, logger, "login", err)
			return
		}

		writeJSON(w, http.StatusOK, response{
			Token:     token,
			TokenType: "Bearer",
			Role:      role,
		})
	}
}
