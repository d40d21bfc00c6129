// Package chatclient exposes the echo chat client core for external use.
package chatclient

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/echo-chat/backend/internal/router"
	"github.com/echo-chat/backend/internal/supervisor"
	"github.com/echo-chat/backend/internal/transport"
)

// Re-export types from the internal packages for external use
type (
	Status      = supervisor.Status
	State       = supervisor.State
	Kind        = supervisor.Kind
	Policy      = supervisor.Policy
	Option      = supervisor.Option
	Result      = router.Result
	Handlers    = router.Handlers
	Recorder    = router.Recorder
	Opener      = transport.Opener
	RouteKind   = router.Kind
	RetryBudget = supervisor.RetryBudget
)

// Connection states.
const (
	StateIdle       = supervisor.StateIdle
	StateConnecting = supervisor.StateConnecting
	StateOpen       = supervisor.StateOpen
	StateClosed     = supervisor.StateClosedClean
	StateRetrying   = supervisor.StateRetrying
	StateFailed     = supervisor.StateFailed
)

// Route kinds.
const (
	RouteHistory = router.KindHistory
	RouteMessage = router.KindMessage
)

var (
	WithClock  = supervisor.WithClock
	WithPolicy = supervisor.WithPolicy
	WithLogger = supervisor.WithLogger
)

// Config configures a Client.
type Config struct {
	// Opener defaults to a gorilla/websocket opener.
	Opener Opener
	// Recorder receives every frame sent and received. May be nil.
	Recorder Recorder
	// LiveCapacity bounds the live message list.
	LiveCapacity int
	Logger       zerolog.Logger
	Options      []Option
}

// Client bundles a connection supervisor with a message router.
type Client struct {
	*supervisor.Supervisor
	Router *router.Router

	sub    *supervisor.Subscription
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// New creates a Client for url. Call Start to connect.
func New(url string, cfg Config) *Client {
	opener := cfg.Opener
	if opener == nil {
		opener = transport.NewWebSocketOpener(cfg.Logger)
	}
	opts := append([]Option{supervisor.WithLogger(cfg.Logger)}, cfg.Options...)

	sup := supervisor.New(url, opener, opts...)
	return &Client{
		Supervisor: sup,
		Router:     router.New(cfg.LiveCapacity, cfg.Recorder, cfg.Logger),
		sub:        sup.Subscribe(),
		done:       make(chan struct{}),
	}
}

// Start routes events to h in a background goroutine and connects.
func (c *Client) Start(ctx context.Context, h Handlers) {
	ctx, c.cancel = context.WithCancel(ctx)
	go func() {
		defer close(c.done)
		c.Router.Run(ctx, c.sub.Events(), h)
	}()
	c.Connect()
}

// Say sends text and records it in the live list when the send succeeds.
func (c *Client) Say(text string) bool {
	if !c.Send(text) {
		return false
	}
	c.Router.RecordSent(text)
	return true
}

// Close shuts the supervisor down and waits for the event loop to drain.
func (c *Client) Close() {
	c.once.Do(func() {
		c.Shutdown()
		if c.cancel == nil {
			return
		}
		<-c.done
		c.cancel()
	})
}
