// Package transport provides the physical connection handle used by the
// connection supervisor.
//
// A Handle represents exactly one connection attempt. It reports its life
// through an Observer: Opened at most once, any number of Message and
// Errored calls, and exactly one Closed, which is always the terminal
// signal. Errored never ends an attempt on its own.
package transport

import (
	"errors"

	"github.com/gorilla/websocket"
)

// Close codes understood by the supervisor.
const (
	CloseNormal    = websocket.CloseNormalClosure
	CloseGoingAway = websocket.CloseGoingAway
	CloseAbnormal  = websocket.CloseAbnormalClosure
)

var (
	// ErrInvalidAddress is returned by Open when the address cannot be dialed.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrNotOpen is returned by Send before the handle is open or after it closed.
	ErrNotOpen = errors.New("connection is not open")

	// ErrSendBufferFull is returned by Send when the outbound queue is full.
	ErrSendBufferFull = errors.New("send buffer full")
)

// IsCleanClose reports whether a close code is a normal termination that
// does not warrant reconnecting.
func IsCleanClose(code int) bool {
	return code == CloseNormal || code == CloseGoingAway
}

// Observer receives the transitions of one Handle.
type Observer interface {
	Opened()
	Message(data []byte)
	Errored(err error)
	Closed(code int, wasClean bool)
}

// Handle is one physical connection attempt.
type Handle interface {
	// Send queues a text frame. It fails with ErrNotOpen unless the handle is open.
	Send(payload string) error

	// Close closes the handle with the given code. It returns without
	// waiting for the peer. Closing twice is a no-op.
	Close(code int)

	// Detach removes the observer; no callback is delivered afterwards.
	Detach()
}

// Opener starts connection attempts.
//
// Open must return without waiting for the connection and must not call
// the observer before it returns. An error from Open means no attempt was
// started and no callback will follow.
type Opener interface {
	Open(address string, obs Observer) (Handle, error)
}
