package supervisor

import (
	"fmt"
	"time"
)

// Retry policy defaults.
const (
	ConnectionTimeout        = 5 * time.Second
	InitialConnectionRetries = 3
	InitialRetryDelay        = 1 * time.Second
	MaxRetries               = 3
	RetryInterval            = 5 * time.Second
)

// Status texts shown to the user.
const (
	msgNotConnected  = "Cannot send message: No connection to server"
	msgInitialFailed = "Unable to establish connection. Please check your internet connection and try again."
	msgDropFailed    = "Connection lost. Please refresh the page to reconnect."
)

func initialRetryMessage(attempt, limit int) string {
	return fmt.Sprintf("Connecting... (Attempt %d/%d)", attempt, limit)
}

func dropRetryMessage(attempt, limit int) string {
	return fmt.Sprintf("Connection lost. Retrying... (%d/%d)", attempt, limit)
}

// State is the connection state of a Supervisor.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosedClean
	StateRetrying
	StateFailed
)

// String returns the string representation of a State.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosedClean:
		return "closed"
	case StateRetrying:
		return "retrying"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Kind classifies the error currently reported in a Status.
type Kind int

const (
	KindNone Kind = iota
	KindInitialConnectionFailure
	KindDroppedConnection
	KindSendFailure
	KindTransportConstruction
)

// String returns the string representation of a Kind.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindInitialConnectionFailure:
		return "initial_connection_failure"
	case KindDroppedConnection:
		return "dropped_connection"
	case KindSendFailure:
		return "send_failure"
	case KindTransportConstruction:
		return "transport_construction"
	default:
		return "unknown"
	}
}

// Status is an immutable snapshot of a Supervisor.
type Status struct {
	State State
	// Error is the human-readable message, empty when there is none.
	Error string
	Kind  Kind
	// Attempt is the retry counter of the budget in effect.
	Attempt int
}

// Connected reports whether the snapshot is in StateOpen.
func (s Status) Connected() bool {
	return s.State == StateOpen
}

// Policy holds the timeouts and retry budgets of a Supervisor.
type Policy struct {
	ConnectionTimeout        time.Duration
	InitialConnectionRetries int
	InitialRetryDelay        time.Duration
	MaxRetries               int
	RetryInterval            time.Duration
}

// DefaultPolicy returns the fixed policy used by the client.
func DefaultPolicy() Policy {
	return Policy{
		ConnectionTimeout:        ConnectionTimeout,
		InitialConnectionRetries: InitialConnectionRetries,
		InitialRetryDelay:        InitialRetryDelay,
		MaxRetries:               MaxRetries,
		RetryInterval:            RetryInterval,
	}
}
