package channel

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
)

// bridge is the sole owner of a Connection's socket. The sender goroutine
// writes through it and the receiver goroutine reads through it; neither
// touches the socket directly.
//
// onChange runs under mu whenever a socket is installed or removed, so the
// owner's view of "connected" never outlives the socket.
type bridge struct {
	dialer   Dialer
	cfg      Config
	logger   *slog.Logger
	onChange func(connected bool)

	mu     sync.RWMutex
	sock   Socket
	closed bool

	// Write serialization
	writeMu sync.Mutex
}

func newBridge(dialer Dialer, cfg Config, logger *slog.Logger, onChange func(connected bool)) *bridge {
	if onChange == nil {
		onChange = func(bool) {}
	}
	return &bridge{
		dialer:   dialer,
		cfg:      cfg,
		logger:   logger,
		onChange: onChange,
	}
}

// Handshake dials a new socket, replacing (and closing) any current one.
func (b *bridge) Handshake(ctx context.Context, url string, header http.Header) error {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return &HandshakeError{URL: url, Err: ErrClosed}
	}

	dialCtx, cancel := context.WithTimeout(ctx, b.cfg.HandshakeTimeout)
	defer cancel()

	sock, err := b.dialer.Dial(dialCtx, url, header)
	if err != nil {
		return &HandshakeError{URL: url, Err: err}
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sock.Close()
		return &HandshakeError{URL: url, Err: ErrClosed}
	}
	prev := b.sock
	b.sock = sock
	b.onChange(true)
	b.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	return nil
}

// Send writes one frame. A failed write retires the socket it went to, since
// gorilla write errors are permanent; the receiver's read then fails and it
// redials.
func (b *bridge) Send(frame []byte) error {
	sock := b.current()
	if sock == nil {
		return &SendError{Err: ErrNotConnected}
	}

	b.writeMu.Lock()
	err := sock.WriteFrame(frame)
	b.writeMu.Unlock()

	if err != nil {
		b.retire(sock)
		return &SendError{Err: err}
	}
	return nil
}

// Receive blocks for the next frame. Only the receiver goroutine calls it.
func (b *bridge) Receive() ([]byte, error) {
	sock := b.current()
	if sock == nil {
		return nil, &ReceiveError{Err: ErrNotConnected}
	}

	frame, err := sock.ReadFrame()
	if err != nil {
		return nil, &ReceiveError{Err: err}
	}
	return frame, nil
}

// Drop closes the current socket after a failure. The bridge stays usable
// for the next Handshake.
func (b *bridge) Drop() {
	b.mu.Lock()
	sock := b.sock
	b.clearLocked()
	b.mu.Unlock()

	if sock != nil {
		if err := sock.Close(); err != nil {
			b.logger.Debug("close failed socket", "error", err)
		}
	}
}

// retire drops sock if it is still the current socket. A socket that has
// already been replaced is left to whoever replaced it.
func (b *bridge) retire(sock Socket) {
	b.mu.Lock()
	current := b.sock == sock
	if current {
		b.clearLocked()
	}
	b.mu.Unlock()

	if current {
		if err := sock.Close(); err != nil {
			b.logger.Debug("close failed socket", "error", err)
		}
	}
}

func (b *bridge) clearLocked() {
	if b.sock != nil {
		b.sock = nil
		b.onChange(false)
	}
}

// Close closes the current socket and rejects further handshakes.
func (b *bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	sock := b.sock
	b.clearLocked()
	b.mu.Unlock()

	if sock != nil {
		return sock.Close()
	}
	return nil
}

// Connected reports whether a socket is installed.
func (b *bridge) Connected() bool {
	return b.current() != nil
}

func (b *bridge) current() Socket {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sock
}
