package channel

import (
	"fmt"
	"strings"
	"time"
)

// State is the lifecycle state of a Connection.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateBackoff
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateBackoff:
		return "backoff"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// DeliveryMode selects what happens to a frame whose write fails.
type DeliveryMode int

const (
	// AtLeastOnce re-enqueues failed frames at the tail of the queue.
	// The peer may see duplicates if the failure was a false negative.
	AtLeastOnce DeliveryMode = iota

	// AtMostOnce drops failed frames.
	AtMostOnce
)

func (m DeliveryMode) String() string {
	switch m {
	case AtLeastOnce:
		return "at-least-once"
	case AtMostOnce:
		return "at-most-once"
	default:
		return "unknown"
	}
}

// ParseDeliveryMode parses "at-least-once" or "at-most-once".
// The empty string selects AtLeastOnce.
func ParseDeliveryMode(s string) (DeliveryMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "at-least-once", "at_least_once":
		return AtLeastOnce, nil
	case "at-most-once", "at_most_once":
		return AtMostOnce, nil
	}
	return AtLeastOnce, fmt.Errorf("unknown delivery mode %q", s)
}

// Config configures a Connection.
type Config struct {
	ReconnectDelay    time.Duration // First backoff delay after a failed handshake
	MaxReconnectDelay time.Duration // Backoff ceiling
	HandshakeTimeout  time.Duration // Dial + upgrade timeout
	WriteTimeout      time.Duration // Write deadline per frame
	PingInterval      time.Duration // Keepalive ping period (0 disables)
	PingTimeout       time.Duration // Max wait for a pong before the socket is considered dead
	PollInterval      time.Duration // Sender's bounded wait on an empty queue
	RetryInterval     time.Duration // Sender's wait while not connected
	DrainTimeout      time.Duration // How long Disconnect lets the sender flush the queue
	Delivery          DeliveryMode
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		HandshakeTimeout:  10 * time.Second,
		WriteTimeout:      5 * time.Second,
		PingInterval:      20 * time.Second,
		PingTimeout:       20 * time.Second,
		PollInterval:      1 * time.Second,
		RetryInterval:     100 * time.Millisecond,
		DrainTimeout:      2 * time.Second,
		Delivery:          AtLeastOnce,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = d.ReconnectDelay
	}
	if c.MaxReconnectDelay <= 0 {
		c.MaxReconnectDelay = d.MaxReconnectDelay
	}
	if c.MaxReconnectDelay < c.ReconnectDelay {
		c.MaxReconnectDelay = c.ReconnectDelay
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = d.HandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.PingInterval < 0 {
		c.PingInterval = 0
	}
	if c.PingInterval > 0 && c.PingTimeout <= 0 {
		c.PingTimeout = d.PingTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = d.RetryInterval
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = d.DrainTimeout
	}
	return c
}

// Stats is a point-in-time snapshot of a Connection.
type Stats struct {
	State             State
	QueueLen          int
	FramesSent        int64
	FramesReceived    int64
	FramesDropped     int64 // Failed sends under AtMostOnce, plus frames left at shutdown
	SendFailures      int64
	DecodeFailures    int64
	HandlerFailures   int64
	Unhandled         int64 // Valid frames with no registered callback
	Handshakes        int64
	HandshakeFailures int64
	Backoff           time.Duration // Delay used after the most recent failed handshake
}
