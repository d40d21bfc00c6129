package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
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

	// Outbound frames queued per handle.
	sendBufferSize = 256
)

// WebSocketOpener opens gorilla/websocket connections.
type WebSocketOpener struct {
	Dialer *websocket.Dialer
	Header http.Header
	logger zerolog.Logger
}

// NewWebSocketOpener creates a WebSocketOpener using the default dialer.
func NewWebSocketOpener(logger zerolog.Logger) *WebSocketOpener {
	return &WebSocketOpener{
		Dialer: websocket.DefaultDialer,
		logger: logger.With().Str("component", "transport").Logger(),
	}
}

// Open validates the address and starts dialing in the background.
func (o *WebSocketOpener) Open(address string, obs Observer) (Handle, error) {
	u, err := url.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidAddress, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidAddress)
	}

	dialer := o.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &wsHandle{
		address: address,
		logger:  o.logger.With().Str("address", address).Logger(),
		obs:     obs,
		cancel:  cancel,
		send:    make(chan []byte, sendBufferSize),
		done:    make(chan struct{}),
	}

	go h.run(ctx, dialer, o.Header)

	return h, nil
}

// wsHandle is a Handle backed by a gorilla/websocket connection.
type wsHandle struct {
	address string
	logger  zerolog.Logger
	cancel  context.CancelFunc
	send    chan []byte
	done    chan struct{}

	mu        sync.Mutex
	obs       Observer
	conn      *websocket.Conn
	open      bool
	closing   bool
	closeCode int

	finishOnce sync.Once
}

func (h *wsHandle) run(ctx context.Context, dialer *websocket.Dialer, header http.Header) {
	conn, resp, err := dialer.DialContext(ctx, h.address, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		h.emitErrored(fmt.Errorf("dial failed: %w", err))
		h.finish(CloseAbnormal, false)
		return
	}

	h.mu.Lock()
	if h.closing {
		// Abandoned while dialing.
		h.mu.Unlock()
		conn.Close()
		h.finish(CloseAbnormal, false)
		return
	}
	h.conn = conn
	h.open = true
	h.mu.Unlock()

	h.logger.Debug().Msg("connection opened")
	h.emitOpened()

	go h.writePump(conn)
	code, clean := h.readPump(conn)

	close(h.done)
	conn.Close()
	h.finish(code, clean)
}

// readPump delivers inbound frames until the connection fails or closes and
// returns the close code to report.
func (h *wsHandle) readPump(conn *websocket.Conn) (int, bool) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return closeErr.Code, closeErr.Code != CloseAbnormal
			}

			h.mu.Lock()
			closing, code := h.closing, h.closeCode
			h.mu.Unlock()
			if closing {
				// We sent the close frame but the peer never answered.
				return code, false
			}

			h.emitErrored(fmt.Errorf("read failed: %w", err))
			return CloseAbnormal, false
		}

		h.emitMessage(message)
	}
}

// writePump writes queued frames and keepalive pings.
func (h *wsHandle) writePump(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message := <-h.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				h.emitErrored(fmt.Errorf("write failed: %w", err))
				// Unblocks readPump, which reports the close.
				conn.Close()
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		case <-h.done:
			return
		}
	}
}

// Send queues a text frame for the write pump.
func (h *wsHandle) Send(payload string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.open || h.closing {
		return ErrNotOpen
	}

	select {
	case h.send <- []byte(payload):
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close starts the closing handshake, or abandons the dial if the handle
// is not open yet. The close frame is written in the background so a
// stalled peer cannot block the caller.
func (h *wsHandle) Close(code int) {
	h.mu.Lock()
	if h.closing {
		h.mu.Unlock()
		return
	}
	h.closing = true
	h.closeCode = code
	conn, open := h.conn, h.open
	h.mu.Unlock()

	h.cancel()
	if !open {
		return
	}

	go func() {
		deadline := time.Now().Add(writeWait)
		msg := websocket.FormatCloseMessage(code, "")
		if err := conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
			conn.Close()
			return
		}
		conn.SetReadDeadline(deadline)
	}()
}

// Detach removes the observer.
func (h *wsHandle) Detach() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.obs = nil
}

func (h *wsHandle) finish(code int, clean bool) {
	h.finishOnce.Do(func() {
		h.mu.Lock()
		h.open = false
		h.mu.Unlock()
		h.cancel()

		h.logger.Debug().Int("code", code).Bool("clean", clean).Msg("connection closed")
		if obs := h.observer(); obs != nil {
			obs.Closed(code, clean)
		}
	})
}

func (h *wsHandle) observer() Observer {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.obs
}

func (h *wsHandle) emitOpened() {
	if obs := h.observer(); obs != nil {
		obs.Opened()
	}
}

func (h *wsHandle) emitMessage(data []byte) {
	if obs := h.observer(); obs != nil {
		obs.Message(data)
	}
}

func (h *wsHandle) emitErrored(err error) {
	h.logger.Debug().Err(err).Msg("connection error")
	if obs := h.observer(); obs != nil {
		obs.Errored(err)
	}
}
