package supervisor

import (
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/echo-chat/backend/internal/model"
	"github.com/echo-chat/backend/internal/transport"
)

// Supervisor manages the connection to a single server address.
type Supervisor struct {
	address string
	opener  transport.Opener
	clock   clock.Clock
	policy  Policy
	logger  zerolog.Logger

	mu         sync.Mutex
	status     Status
	session    *Session
	attempts   uint64
	budget     RetryBudget
	connecting bool
	mounted    bool

	reconnectTimer *clock.Timer
	reconnectGen   uint64

	subs   map[int]*Subscription
	nextID int
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithClock sets the clock used for the connection timeout and reconnect timers.
func WithClock(c clock.Clock) Option {
	return func(s *Supervisor) {
		s.clock = c
	}
}

// WithPolicy overrides the retry policy.
func WithPolicy(p Policy) Option {
	return func(s *Supervisor) {
		s.policy = p
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Supervisor) {
		s.logger = l
	}
}

// New creates a Supervisor for address. It does not connect until Connect is called.
func New(address string, opener transport.Opener, opts ...Option) *Supervisor {
	s := &Supervisor{
		address: address,
		opener:  opener,
		clock:   clock.New(),
		policy:  DefaultPolicy(),
		logger:  zerolog.Nop(),
		mounted: true,
		subs:    make(map[int]*Subscription),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "supervisor").Str("address", address).Logger()
	return s
}

// Address returns the server address.
func (s *Supervisor) Address() string {
	return s.address
}

// Status returns the current snapshot.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Budget returns the current retry counters.
func (s *Supervisor) Budget() RetryBudget {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.budget
}

// Connect starts a new connection attempt, superseding any previous one.
// It is a no-op while an attempt is already in progress or after Shutdown.
func (s *Supervisor) Connect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectLocked(true)
}

// Retry is the manual reconnect action: it resets both retry budgets and
// connects as if for the first time, clearing the reported error. When no
// attempt can start the status is left as it was.
func (s *Supervisor) Retry() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.mounted || s.connecting {
		return
	}
	s.logger.Info().Msg("manual retry")
	s.budget.Reset()
	s.connectLocked(false)
}

// Send sends a text frame. It returns false and records an error when the
// connection is not open or the transport rejects the frame. After Shutdown
// it returns false without recording anything.
func (s *Supervisor) Send(payload string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.mounted {
		return false
	}
	if s.status.State != StateOpen || s.session == nil || s.session.handle == nil {
		s.setStatusLocked(s.status.State, KindSendFailure, msgNotConnected, s.status.Attempt)
		return false
	}

	if err := s.session.handle.Send(payload); err != nil {
		s.logger.Warn().Err(err).Msg("send failed")
		s.setStatusLocked(s.status.State, KindSendFailure, fmt.Sprintf("Failed to send message: %v", err), s.status.Attempt)
		return false
	}
	return true
}

// RequestHistory asks the server for a history snapshot.
func (s *Supervisor) RequestHistory() bool {
	return s.Send(model.HistoryToken)
}

// Shutdown cancels all timers, detaches and closes the current handle and
// moves the Supervisor to StateIdle for good. Subscriptions are closed after
// the final status is delivered.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.mounted {
		return
	}
	s.mounted = false
	s.connecting = false
	s.stopReconnectLocked()

	if s.session != nil {
		s.session.release(transport.CloseNormal)
		s.session = nil
	}

	s.logger.Info().Msg("shut down")
	s.setStatusLocked(StateIdle, KindNone, "", 0)

	s.endSubscriptionsLocked()
}

func (s *Supervisor) connectLocked(inherit bool) {
	if !s.mounted {
		return
	}
	if s.address == "" {
		s.logger.Warn().Msg("no address to connect to")
		return
	}
	if s.connecting {
		s.logger.Debug().Msg("already attempting to connect")
		return
	}

	s.connecting = true
	s.stopReconnectLocked()

	hasConnected := false
	if prev := s.session; prev != nil {
		if inherit {
			hasConnected = prev.hasConnected
		}
		prev.release(transport.CloseNormal)
	}

	s.attempts++
	sess := &Session{
		Address:      s.address,
		Attempt:      s.attempts,
		hasConnected: hasConnected,
	}
	s.session = sess
	if inherit {
		s.setStatusLocked(StateConnecting, s.status.Kind, s.status.Error, s.status.Attempt)
	} else {
		s.setStatusLocked(StateConnecting, KindNone, "", 0)
	}

	s.logger.Info().Uint64("attempt", sess.Attempt).Msg("attempting connection")

	handle, err := s.opener.Open(sess.Address, &sessionObserver{
		sup:     s,
		address: sess.Address,
		attempt: sess.Attempt,
	})
	if err != nil {
		s.logger.Error().Err(err).Uint64("attempt", sess.Attempt).Msg("failed to create connection")
		s.connecting = false
		sess.closed = true
		s.failLocked(sess, KindTransportConstruction)
		return
	}
	sess.handle = handle

	address, attempt := sess.Address, sess.Attempt
	sess.timeout = s.clock.AfterFunc(s.policy.ConnectionTimeout, func() {
		s.handleTimeout(address, attempt)
	})
}

// currentLocked reports whether a callback tagged with address and attempt
// may still change state.
func (s *Supervisor) currentLocked(address string, attempt uint64) bool {
	return s.mounted && s.session.matches(address, attempt) && !s.session.closed
}

func (s *Supervisor) handleOpened(address string, attempt uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.currentLocked(address, attempt) {
		s.logger.Debug().Uint64("attempt", attempt).Msg("ignoring stale open")
		return
	}

	sess := s.session
	sess.stopTimeout()
	sess.hasConnected = true
	s.connecting = false
	s.budget.Reset()

	s.logger.Info().Uint64("attempt", attempt).Msg("connected")
	s.setStatusLocked(StateOpen, KindNone, "", 0)
}

func (s *Supervisor) handleClosed(address string, attempt uint64, code int, wasClean bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.currentLocked(address, attempt) {
		s.logger.Debug().Uint64("attempt", attempt).Int("code", code).Msg("ignoring stale close")
		return
	}

	sess := s.session
	sess.stopTimeout()
	sess.handle = nil
	sess.closed = true
	s.connecting = false

	log := s.logger.With().Uint64("attempt", attempt).Int("code", code).Bool("clean", wasClean).Logger()

	if transport.IsCleanClose(code) {
		log.Info().Msg("connection closed")
		s.setStatusLocked(StateClosedClean, KindNone, "", 0)
		return
	}

	log.Warn().Msg("connection closed unexpectedly")
	s.failLocked(sess, KindInitialConnectionFailure)
}

func (s *Supervisor) handleErrored(address string, attempt uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.currentLocked(address, attempt) {
		return
	}

	// The close that follows decides what happens next.
	s.logger.Warn().Err(err).Uint64("attempt", attempt).Msg("connection error")
	s.connecting = false
}

func (s *Supervisor) handleMessage(address string, attempt uint64, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.currentLocked(address, attempt) {
		return
	}
	s.publishLocked(Event{Kind: EventFrame, Frame: data})
}

func (s *Supervisor) handleTimeout(address string, attempt uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.currentLocked(address, attempt) || s.status.State != StateConnecting {
		return
	}

	s.logger.Warn().Uint64("attempt", attempt).Dur("timeout", s.policy.ConnectionTimeout).Msg("connection attempt timed out")
	s.connecting = false
	sess := s.session
	sess.release(transport.CloseNormal)
	s.failLocked(sess, KindInitialConnectionFailure)
}

// failLocked applies the retry budget matching the session's history.
// initialKind is reported when the session never opened.
func (s *Supervisor) failLocked(sess *Session, initialKind Kind) {
	if sess.hasConnected {
		if s.budget.Drop < s.policy.MaxRetries {
			s.budget.Drop++
			s.logger.Info().Int("retry", s.budget.Drop).Dur("delay", s.policy.RetryInterval).Msg("connection lost, retrying")
			s.setStatusLocked(StateRetrying, KindDroppedConnection, dropRetryMessage(s.budget.Drop, s.policy.MaxRetries), s.budget.Drop)
			s.scheduleReconnectLocked(s.policy.RetryInterval)
			return
		}
		s.logger.Warn().Int("retries", s.budget.Drop).Msg("giving up after connection loss")
		s.setStatusLocked(StateFailed, KindDroppedConnection, msgDropFailed, s.budget.Drop)
		return
	}

	if s.budget.Initial < s.policy.InitialConnectionRetries {
		s.budget.Initial++
		s.logger.Info().Int("retry", s.budget.Initial).Dur("delay", s.policy.InitialRetryDelay).Msg("initial connection failed, retrying")
		s.setStatusLocked(StateRetrying, initialKind, initialRetryMessage(s.budget.Initial, s.policy.InitialConnectionRetries), s.budget.Initial)
		s.scheduleReconnectLocked(s.policy.InitialRetryDelay)
		return
	}
	s.logger.Warn().Int("retries", s.budget.Initial).Msg("giving up on initial connection")
	s.setStatusLocked(StateFailed, initialKind, msgInitialFailed, s.budget.Initial)
}

func (s *Supervisor) scheduleReconnectLocked(delay time.Duration) {
	s.stopReconnectLocked()
	gen := s.reconnectGen
	s.reconnectTimer = s.clock.AfterFunc(delay, func() {
		s.reconnect(gen)
	})
}

func (s *Supervisor) reconnect(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.mounted || gen != s.reconnectGen {
		return
	}
	s.reconnectTimer = nil
	s.connectLocked(true)
}

// stopReconnectLocked cancels the pending reconnect. Bumping the generation
// also neutralizes a timer that already fired but has not taken the lock.
func (s *Supervisor) stopReconnectLocked() {
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
	s.reconnectGen++
}

func (s *Supervisor) setStatusLocked(state State, kind Kind, msg string, attempt int) {
	prev := s.status
	s.status = Status{
		State:   state,
		Error:   msg,
		Kind:    kind,
		Attempt: attempt,
	}
	if prev.State != state {
		s.logger.Debug().Stringer("from", prev.State).Stringer("to", state).Msg("state changed")
	}
	s.publishLocked(Event{Kind: EventStatus, Status: s.status})
}

// sessionObserver tags transport callbacks with the session that produced them.
type sessionObserver struct {
	sup     *Supervisor
	address string
	attempt uint64
}

func (o *sessionObserver) Opened() {
	o.sup.handleOpened(o.address, o.attempt)
}

func (o *sessionObserver) Message(data []byte) {
	o.sup.handleMessage(o.address, o.attempt, data)
}

func (o *sessionObserver) Errored(err error) {
	o.sup.handleErrored(o.address, o.attempt, err)
}

func (o *sessionObserver) Closed(code int, wasClean bool) {
	o.sup.handleClosed(o.address, o.attempt, code, wasClean)
}
