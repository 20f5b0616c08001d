package channel

import (
	"sync"
	"time"
)

// Backoff computes reconnect delays. The k-th consecutive failure yields
// min(initial * 2^(k-1), max). Reset returns to the initial delay and is
// called after every successful handshake.
type Backoff struct {
	mu       sync.Mutex
	initial  time.Duration
	max      time.Duration
	next     time.Duration
	failures int
}

// NewBackoff creates a Backoff starting at initial and capped at max.
func NewBackoff(initial, max time.Duration) *Backoff {
	if initial <= 0 {
		initial = time.Second
	}
	if max < initial {
		max = initial
	}
	return &Backoff{initial: initial, max: max, next: initial}
}

// Next records a failure and returns the delay to wait before retrying.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	delay := b.next
	b.failures++

	if b.next < b.max {
		b.next *= 2
		if b.next > b.max {
			b.next = b.max
		}
	}
	return delay
}

// Reset clears the failure count.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next = b.initial
	b.failures = 0
}

// Failures returns the number of consecutive failures since the last Reset.
func (b *Backoff) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}
