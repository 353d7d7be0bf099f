package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"go.uber.org/zap"

	"kioskpos/backend/services/kiosk-api/internal/config"
)

// ErrInvalidCredentials represents login failure.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// Claims represents the JWT payload of a terminal.
type Claims struct {
	TerminalID string `json:"terminal_id"`
	Role       string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService handles JWT creation and validation.
type TokenService struct {
	secret    []byte
	expiresIn time.Duration
}

// NewTokenService returns configured token service.
func NewTokenService(secret string, expiresIn time.Duration) *TokenService {
	if expiresIn <= 0 {
		expiresIn = time.Hour
	}
	return &TokenService{secret: []byte(secret), expiresIn: expiresIn}
}

// GenerateToken issues a JWT for a terminal.
func (t *TokenService) GenerateToken(terminalID, role string) (string, error) {
	if terminalID == "" {
		return "", errors.New("token: terminal id is required")
	}

	now := time.Now().UTC()
	claims := Claims{
		TerminalID: terminalID,
		Role:       role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   terminalID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.expiresIn)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// ValidateToken verifies and decodes a JWT.
func (t *TokenService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("token: unexpected signing method")
		}
		return t.secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid && claims.TerminalID != "" {
		return claims, nil
	}

	return nil, errors.New("token: invalid claims")
}

// AuthService exchanges terminal credentials for tokens.
type AuthService struct {
	terminals map[string]config.Terminal
	tokenizer *TokenService
	logger    *zap.Logger
}

// NewAuthService builds AuthService.
func NewAuthService(terminals []config.Terminal, tokenizer *TokenService, logger *zap.Logger) *AuthService {
	byID := make(map[string]config.Terminal, len(terminals))
	for _, t := range terminals {
		byID[t.ID] = t
	}
	return &AuthService{terminals: byID, tokenizer: tokenizer, logger: logger}
}

// Login authenticates a terminal and produces a JWT.
func (s *AuthService) Login(ctx context.Context, terminalID, password string) (string, string, error) {
	terminalID = strings.TrimSpace(terminalID)
	if terminalID == "" || password == "" {
		return "", "", ErrInvalidCredentials
	}

	terminal, ok := s.terminals[terminalID]
	if !ok {
		return "", "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(terminal.PasswordHash), []byte(password)); err != nil {
		return "", "", ErrInvalidCredentials
	}

	token, err := s.tokenizer.GenerateToken(terminal.ID, terminal.Role)
	if err != nil {
		return "", "", err
	}

	s.logger.Info("terminal logged in", zap.String("terminal_id", terminal.ID), zap.String("role", terminal.Role))
	return token, terminal.Role, nil
}
