package ws

import (
	"github.com/rs/zerolog"
)

// Service owns the hub and handler for one echo chat room.
type Service struct {
	hub     *Hub
	handler *Handler
}

// NewService creates a Service storing messages in store and answering
// history requests with up to historyLimit entries.
func NewService(store HistoryStore, historyLimit int, logger zerolog.Logger) *Service {
	hub := NewHub()
	return &Service{
		hub:     hub,
		handler: NewHandler(hub, store, historyLimit, logger),
	}
}

// Handler returns the WebSocket handler.
func (s *Service) Handler() *Handler {
	return s.handler
}

// ClientCount returns the number of connected clients.
func (s *Service) ClientCount() int {
	return s.hub.ClientCount()
}

// Close closes all WebSocket connections.
func (s *Service) Close() {
	s.hub.Close()
}
