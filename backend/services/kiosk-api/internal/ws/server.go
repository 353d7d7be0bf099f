package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"kioskpos/backend/services/kiosk-api/internal/models"
)

// Message types sent to boards.
const (
	MessageTypeSnapshot = "snapshot"
	MessageTypeStatus   = "status"
)

// Message is the envelope written to board sockets.
type Message struct {
	Type   string             `json:"type"`
	Orders []models.Order     `json:"orders,omitempty"`
	Event  *models.BoardEvent `json:"event,omitempty"`
}

// SnapshotFunc returns the orders currently shown on boards.
type SnapshotFunc func(ctx context.Context) ([]models.Order, error)

// Server upgrades board HTTP connections to WebSockets.
type Server struct {
	hub          *Hub
	snapshot     SnapshotFunc
	logger       *zap.Logger
	writeTimeout time.Duration
	upgrader     websocket.Upgrader
}

// NewServer builds ws server.
func NewServer(hub *Hub, snapshot SnapshotFunc, writeTimeout time.Duration, logger *zap.Logger) *Server {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &Server{
		hub:          hub,
		snapshot:     snapshot,
		logger:       logger,
		writeTimeout: writeTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleWS is HTTP handler for /ws/board endpoint.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	var initial []byte
	if s.snapshot != nil {
		orders, err := s.snapshot(r.Context())
		if err != nil {
			s.logger.Error("failed to load board snapshot", zap.Error(err))
			http.Error(w, "board unavailable", http.StatusServiceUnavailable)
			return
		}
		initial, err = json.Marshal(Message{Type: MessageTypeSnapshot, Orders: orders})
		if err != nil {
			http.Error(w, "board unavailable", http.StatusInternalServerError)
			return
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	connection := NewConnection(uuid.NewString(), conn, s.writeTimeout, s.logger, func(id string) {
		s.hub.Remove(id)
		cancel()
	})
	if initial != nil {
		connection.Send(initial)
	}
	s.hub.Add(connection)

	go connection.Start(ctx)
	s.logger.Info("board connected", zap.String("conn_id", connection.ID()), zap.String("remote", r.RemoteAddr))
}
