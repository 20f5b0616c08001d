package channel

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Socket is one open duplex connection. ReadFrame is called from a single
// goroutine; WriteFrame calls are serialized by the caller; Close may be
// called from any goroutine.
type Socket interface {
	WriteFrame(frame []byte) error
	ReadFrame() ([]byte, error)
	Close() error
}

// Dialer opens Sockets.
type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header) (Socket, error)
}

// DialerFunc is a function adapter for Dialer.
type DialerFunc func(ctx context.Context, url string, header http.Header) (Socket, error)

func (f DialerFunc) Dial(ctx context.Context, url string, header http.Header) (Socket, error) {
	return f(ctx, url, header)
}

// wsDialer dials gorilla/websocket connections.
type wsDialer struct {
	cfg    Config
	dialer websocket.Dialer
	logger *slog.Logger
}

// NewWebSocketDialer returns the default Dialer.
func NewWebSocketDialer(cfg Config, logger *slog.Logger) Dialer {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	return &wsDialer{
		cfg: cfg,
		dialer: websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		logger: logger,
	}
}

// NewWebSocketDialerWithBase is NewWebSocketDialer with TLS and proxy
// settings taken from base.
func NewWebSocketDialerWithBase(cfg Config, base *websocket.Dialer, logger *slog.Logger) Dialer {
	d := NewWebSocketDialer(cfg, logger).(*wsDialer)
	if base != nil {
		d.dialer = *base
		if d.dialer.HandshakeTimeout == 0 {
			d.dialer.HandshakeTimeout = d.cfg.HandshakeTimeout
		}
	}
	return d
}

func (d *wsDialer) Dial(ctx context.Context, url string, header http.Header) (Socket, error) {
	conn, resp, err := d.dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			d.logger.Debug("websocket upgrade rejected",
				"url", url,
				"status", resp.StatusCode,
			)
		}
		return nil, err
	}

	s := &wsSocket{
		conn:   conn,
		cfg:    d.cfg,
		logger: d.logger,
		done:   make(chan struct{}),
	}
	s.start()

	d.logger.Debug("websocket connected", "url", url)
	return s, nil
}

// wsSocket wraps a gorilla connection with keepalive pings.
type wsSocket struct {
	conn   *websocket.Conn
	cfg    Config
	logger *slog.Logger

	done      chan struct{}
	closeOnce sync.Once
}

func (s *wsSocket) start() {
	if s.cfg.PingInterval <= 0 {
		return
	}

	// Any inbound traffic or pong keeps the read deadline moving; a peer
	// that stops answering pings fails the next read.
	s.extendReadDeadline()
	s.conn.SetPongHandler(func(string) error {
		s.extendReadDeadline()
		return nil
	})
	s.conn.SetPingHandler(func(data string) error {
		s.extendReadDeadline()
		return s.conn.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(time.Second),
		)
	})

	go s.pingLoop()
}

func (s *wsSocket) extendReadDeadline() {
	s.conn.SetReadDeadline(time.Now().Add(s.cfg.PingInterval + s.cfg.PingTimeout))
}

func (s *wsSocket) pingLoop() {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(s.cfg.WriteTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				s.logger.Debug("failed to send ping", "error", err)
				return
			}
		}
	}
}

func (s *wsSocket) WriteFrame(frame []byte) error {
	s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, frame)
}

func (s *wsSocket) ReadFrame() ([]byte, error) {
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	if s.cfg.PingInterval > 0 {
		s.extendReadDeadline()
	}
	return data, nil
}

func (s *wsSocket) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		err = s.conn.Close()
	})
	return err
}
