package supervisor

import (
	"github.com/benbjohnson/clock"

	"github.com/echo-chat/backend/internal/transport"
)

// Session is one connection attempt, from Connect to the terminal close of
// its handle.
type Session struct {
	Address string
	Attempt uint64

	handle  transport.Handle
	timeout *clock.Timer

	// hasConnected selects the retry budget on failure. It is set when the
	// handle opens and is inherited by the Session a reconnect timer creates.
	hasConnected bool
	closed       bool
}

// matches reports whether a callback tagged with address and attempt
// belongs to this Session.
func (s *Session) matches(address string, attempt uint64) bool {
	return s != nil && s.Address == address && s.Attempt == attempt
}

func (s *Session) stopTimeout() {
	if s.timeout != nil {
		s.timeout.Stop()
		s.timeout = nil
	}
}

// release detaches and closes the handle. Safe to call more than once.
func (s *Session) release(code int) {
	s.stopTimeout()
	if s.handle != nil {
		s.handle.Detach()
		s.handle.Close(code)
		s.handle = nil
	}
	s.closed = true
}

// RetryBudget counts retries for the two failure branches.
type RetryBudget struct {
	// Initial counts retries before the first successful open.
	Initial int
	// Drop counts retries after an open connection was lost.
	Drop int
}

// Reset zeroes both counters.
func (b *RetryBudget) Reset() {
	b.Initial = 0
	b.Drop = 0
}
