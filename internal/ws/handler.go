package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/echo-chat/backend/internal/model"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024

	// Time allowed for a store operation.
	storeTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HistoryStore persists messages and serves the newest ones.
type HistoryStore interface {
	Create(ctx context.Context, msg *model.StoredMessage) error
	RecentTexts(ctx context.Context, limit int) ([]string, error)
}

// Handler handles WebSocket connections for the echo chat.
type Handler struct {
	hub          *Hub
	store        HistoryStore
	historyLimit int
	logger       zerolog.Logger
}

// NewHandler creates a new WebSocket handler.
func NewHandler(hub *Hub, store HistoryStore, historyLimit int, logger zerolog.Logger) *Handler {
	return &Handler{
		hub:          hub,
		store:        store,
		historyLimit: historyLimit,
		logger:       logger.With().Str("component", "ws").Logger(),
	}
}

// HandleConnection upgrades the request and starts the client's pumps.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := NewClient(conn)
	h.hub.Register(client)
	h.logger.Debug().Str("client", client.ID()).Str("remote", r.RemoteAddr).Msg("client connected")

	go h.writePump(client)
	go h.readPump(client)

	return nil
}

// handleText processes one text frame from a client.
func (h *Handler) handleText(client *Client, text string) {
	if text == model.HistoryToken {
		h.sendHistory(client)
		return
	}
	if text == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	msg := &model.StoredMessage{
		ID:        uuid.New().String(),
		ClientID:  client.ID(),
		Text:      text,
		CreatedAt: time.Now(),
	}
	if err := h.store.Create(ctx, msg); err != nil {
		h.logger.Error().Err(err).Str("client", client.ID()).Msg("failed to store message")
	}

	h.hub.Broadcast([]byte(Reverse(text)))
}

// sendHistory answers a history request with a JSON array of texts.
func (h *Handler) sendHistory(client *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	texts, err := h.store.RecentTexts(ctx, h.historyLimit)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to load history")
		texts = nil
	}
	if texts == nil {
		texts = []string{}
	}

	data, err := json.Marshal(texts)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to marshal history")
		return
	}
	client.Send(data)
}

// readPump pumps frames from the WebSocket connection to the handler.
func (h *Handler) readPump(client *Client) {
	defer func() {
		h.hub.Unregister(client)
		client.Conn().Close()
		h.logger.Debug().Str("client", client.ID()).Msg("client disconnected")
	}()

	client.Conn().SetReadLimit(maxMessageSize)
	client.Conn().SetReadDeadline(time.Now().Add(pongWait))
	client.Conn().SetPongHandler(func(string) error {
		client.Conn().SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := client.Conn().ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Str("client", client.ID()).Msg("websocket error")
			}
			break
		}

		if messageType != websocket.TextMessage {
			h.logger.Debug().Int("type", messageType).Msg("ignoring non-text frame")
			continue
		}

		h.handleText(client, string(message))
	}
}

// writePump pumps queued frames to the WebSocket connection.
func (h *Handler) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn().Close()
	}()

	for {
		select {
		case message, ok := <-client.SendChan():
			client.Conn().SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				client.Conn().WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			// Each queued frame goes out as its own WebSocket message
			if err := client.Conn().WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			client.Conn().SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn().WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Reverse reverses s rune by rune.
func Reverse(s string) string {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}

// SetCheckOrigin sets a custom origin checker for the WebSocket upgrader.
func SetCheckOrigin(fn func(r *http.Request) bool) {
	upgrader.CheckOrigin = fn
}

// OriginChecker accepts requests whose Origin header is in allowed.
// An empty list or a "*" entry accepts every origin. Requests without an
// Origin header come from non-browser clients and are always accepted.
func OriginChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		o = strings.TrimSpace(o)
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		if o != "" {
			set[strings.ToLower(o)] = struct{}{}
		}
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.ToLower(origin)]
		return ok
	}
}
