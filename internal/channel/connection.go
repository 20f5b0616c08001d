package channel

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Connection is a self-healing duplex channel to one URL.
//
// Lifecycle: New → SetHeader* → Connect → ... → Disconnect → Wait.
// A Connection cannot be restarted after Disconnect.
type Connection struct {
	url      string
	cfg      Config
	delivery *DeliveryMode
	logger   *slog.Logger
	dialer   Dialer
	metrics  *connMetrics

	headerMu sync.RWMutex
	header   http.Header

	queue    *Queue[[]byte]
	registry *Registry
	bridge   *bridge
	backoff  *Backoff

	state atomic.Int32

	// Lifecycle
	startMu  sync.Mutex
	started  bool
	stopping atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc
	group    errgroup.Group
	done     chan struct{}

	// Counters
	framesSent        atomic.Int64
	framesReceived    atomic.Int64
	framesDropped     atomic.Int64
	sendFailures      atomic.Int64
	decodeFailures    atomic.Int64
	handlerFailures   atomic.Int64
	unhandled         atomic.Int64
	handshakes        atomic.Int64
	handshakeFailures atomic.Int64
	lastBackoff       atomic.Int64
}

// Option configures a Connection.
type Option func(*Connection)

// WithConfig sets the connection tunables. Zero fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(c *Connection) {
		c.cfg = cfg.withDefaults()
	}
}

// WithDelivery sets the outbound delivery mode. It takes precedence over
// Config.Delivery regardless of option order.
func WithDelivery(mode DeliveryMode) Option {
	return func(c *Connection) {
		c.delivery = &mode
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Connection) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDialer replaces the WebSocket dialer.
func WithDialer(d Dialer) Option {
	return func(c *Connection) {
		c.dialer = d
	}
}

// WithMetrics reports to shared Prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(c *Connection) {
		if m != nil {
			c.metrics = m.forURL(c.url)
		}
	}
}

// WithHeader seeds the handshake headers.
func WithHeader(h http.Header) Option {
	return func(c *Connection) {
		for name, values := range h {
			for _, v := range values {
				c.header.Add(name, v)
			}
		}
	}
}

// New creates an idle Connection to a ws:// or wss:// URL.
func New(rawURL string, opts ...Option) (*Connection, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse channel url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("channel url %q: scheme must be ws or wss", rawURL)
	}

	c := &Connection{
		url:      rawURL,
		cfg:      DefaultConfig(),
		logger:   slog.Default(),
		header:   http.Header{},
		queue:    NewQueue[[]byte](64),
		registry: NewRegistry(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.delivery != nil {
		c.cfg.Delivery = *c.delivery
	}

	c.logger = c.logger.With("url", rawURL)
	if c.dialer == nil {
		c.dialer = NewWebSocketDialer(c.cfg, c.logger)
	}
	if c.metrics == nil {
		c.metrics = NewMetrics(nil).forURL(rawURL)
	}
	c.bridge = newBridge(c.dialer, c.cfg, c.logger, c.socketChanged)
	c.backoff = NewBackoff(c.cfg.ReconnectDelay, c.cfg.MaxReconnectDelay)

	return c, nil
}

// URL returns the target address.
func (c *Connection) URL() string {
	return c.url
}

// SetHeader sets a handshake header. It applies to handshakes that start
// after the call; an open channel is not affected.
func (c *Connection) SetHeader(name, value string) {
	c.headerMu.Lock()
	defer c.headerMu.Unlock()
	c.header.Set(name, value)
}

func (c *Connection) headerSnapshot() http.Header {
	c.headerMu.RLock()
	defer c.headerMu.RUnlock()
	return c.header.Clone()
}

// Connect starts the sender and receiver goroutines. The first handshake
// happens in the background; Connect does not wait for it.
//
// The goroutines outlive ctx only until it is cancelled: cancelling ctx has
// the same effect as Disconnect.
func (c *Connection) Connect(ctx context.Context) error {
	c.startMu.Lock()
	defer c.startMu.Unlock()

	if c.stopping.Load() {
		return ErrClosed
	}
	if c.started {
		return ErrAlreadyStarted
	}
	c.started = true

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.setState(StateConnecting)

	c.group.Go(c.receiveLoop)
	c.group.Go(c.sendLoop)

	go func() {
		c.group.Wait()
		close(c.done)
	}()

	// Parent cancellation counts as a disconnect.
	go func() {
		<-c.ctx.Done()
		c.stopping.Store(true)
	}()

	c.logger.Info("channel started", "delivery", c.cfg.Delivery)
	return nil
}

// Send enqueues an outbound message. It never blocks on the network and
// gives no delivery guarantee; see DeliveryMode.
func (c *Connection) Send(msg any) error {
	if c.stopping.Load() {
		return ErrClosed
	}

	frame, err := Encode(msg)
	if err != nil {
		return err
	}

	if !c.queue.Push(frame) {
		return ErrClosed
	}
	c.metrics.queueDepth.Set(float64(c.queue.Len()))
	return nil
}

// RegisterCallback installs h for frames whose type is tag, replacing any
// previous handler. Frames already received are not replayed.
func (c *Connection) RegisterCallback(tag string, h Handler) {
	c.registry.Register(tag, h)
}

// Disconnect stops reconnection and asks the workers to shut down. It
// returns immediately; use Wait to block until they have exited.
//
// The sender gets up to DrainTimeout to flush queued frames over an open
// socket before the socket is closed.
func (c *Connection) Disconnect() {
	if c.stopping.Swap(true) {
		return
	}

	c.startMu.Lock()
	started := c.started
	c.startMu.Unlock()

	c.logger.Info("channel disconnecting", "queued", c.queue.Len())

	if !started {
		c.queue.Close()
		c.bridge.Close()
		c.setState(StateClosed)
		close(c.done)
		return
	}
	c.cancel()
}

// Wait blocks until both workers have exited or ctx is done.
func (c *Connection) Wait(ctx context.Context) error {
	c.startMu.Lock()
	started := c.started
	c.startMu.Unlock()

	if !started && !c.stopping.Load() {
		return nil
	}

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the workers have exited.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// State returns the current lifecycle state.
func (c *Connection) State() State {
	return State(c.state.Load())
}

// IsConnected reports whether the channel currently has an open socket.
func (c *Connection) IsConnected() bool {
	return c.State() == StateConnected
}

// Stats returns a snapshot of connection counters.
func (c *Connection) Stats() Stats {
	return Stats{
		State:             c.State(),
		QueueLen:          c.queue.Len(),
		FramesSent:        c.framesSent.Load(),
		FramesReceived:    c.framesReceived.Load(),
		FramesDropped:     c.framesDropped.Load(),
		SendFailures:      c.sendFailures.Load(),
		DecodeFailures:    c.decodeFailures.Load(),
		HandlerFailures:   c.handlerFailures.Load(),
		Unhandled:         c.unhandled.Load(),
		Handshakes:        c.handshakes.Load(),
		HandshakeFailures: c.handshakeFailures.Load(),
		Backoff:           time.Duration(c.lastBackoff.Load()),
	}
}

func (c *Connection) setState(s State) {
	prev := State(c.state.Swap(int32(s)))
	if prev != s {
		c.metrics.state.Set(float64(s))
		c.logger.Debug("state change", "from", prev, "to", s)
	}
}

// socketChanged keeps StateConnected in step with the bridge. It runs under
// the bridge lock.
func (c *Connection) socketChanged(connected bool) {
	if connected {
		c.setState(StateConnected)
		return
	}
	if c.state.CompareAndSwap(int32(StateConnected), int32(StateConnecting)) {
		c.metrics.state.Set(float64(StateConnecting))
		c.logger.Debug("state change", "from", StateConnected, "to", StateConnecting)
	}
}

// running reports whether the owner still wants the channel kept alive.
// Only the worker goroutines call it.
func (c *Connection) running() bool {
	return !c.stopping.Load() && c.ctx.Err() == nil
}
