package models

import (
	"time"
)

// CustomerSession is the ephemeral cart bound to one kiosk terminal interaction.
type CustomerSession struct {
	ID               string    `json:"id"`
	TerminalID       string    `json:"terminalId"`
	CreatedAt        time.Time `json:"createdAt"`
	ExpiresAt        time.Time `json:"expiresAt"`
	ExpiresInSeconds int       `json:"expiresInSeconds"`
	Expired          bool      `json:"expired"`
	Order            *Order    `json:"order,omitempty"`
}

// Stamp fills the derived expiry fields relative to now.
func (s *CustomerSession) Stamp(now time.Time) {
	remaining := s.ExpiresAt.Sub(now)
	if remaining <= 0 {
		s.ExpiresInSeconds = 0
		s.Expired = true
		return
	}
	s.ExpiresInSeconds = int(remaining / time.Second)
	s.Expired = false
}

// PaymentReference is a scannable reference issued for a placed order.
type PaymentReference struct {
	Reference  string `json:"reference"`
	Provider   string `json:"provider"`
	OrderID    int64  `json:"orderId"`
	TerminalID string `json:"terminalId"`
	Amount     string `json:"amount"`
	Payload    string `json:"payload"`
	QRPNG      string `json:"qrPng,omitempty"`
}
