package middleware

import (
	"context"
	"net/http"
	"strings"

	"kioskpos/backend/services/kiosk-api/internal/service"
)

type contextKey string

const terminalKey contextKey = "terminal"

// TokenValidator decodes terminal tokens.
type TokenValidator interface {
	ValidateToken(token string) (*service.Claims, error)
}

// Terminal is the authenticated caller.
type Terminal struct {
	ID   string
	Role string
}

// AuthMiddleware validates bearer tokens and requires one of roles. Websocket clients that cannot
// set headers may pass the token in the "token" query parameter.
func AuthMiddleware(tokens TokenValidator, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := bearerToken(r)
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			claims, err := tokens.ValidateToken(tokenStr)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			if !allowed(claims.Role, roles) {
				writeAuthError(w, http.StatusForbidden, "role not allowed")
				return
			}

			ctx := WithTerminal(r.Context(), Terminal{ID: claims.TerminalID, Role: claims.Role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		token := strings.TrimSpace(r.URL.Query().Get("token"))
		return token, token != ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func allowed(role string, roles []string) bool {
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	code := "UNAUTHORIZED"
	if status == http.StatusForbidden {
		code = "FORBIDDEN"
	}
	_, _ = w.Write([]byte(`{"error":"` + message + `","code":"` + code + `"}`))
}

// TerminalFromContext retrieves the authenticated terminal from request context.
func TerminalFromContext(ctx context.Context) (Terminal, bool) {
	t, ok := ctx.Value(terminalKey).(Terminal)
	return t, ok
}

// WithTerminal stores a terminal in ctx.
func WithTerminal(ctx context.Context, t Terminal) context.Context {
	return context.WithValue(ctx, terminalKey, t)
}
