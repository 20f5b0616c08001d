package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/rednet-io/rednet-go/internal/channel"
	"github.com/rednet-io/rednet-go/internal/config"
)

// ConnectWebSocket opens (or returns the already open) duplex channel on
// path. The channel carries the client's current headers and keeps
// reconnecting until DisconnectWebSocket or Close.
func (c *Client) ConnectWebSocket(path string) (*channel.Connection, error) {
	c.socketsMu.Lock()
	defer c.socketsMu.Unlock()

	if conn, ok := c.sockets[path]; ok {
		if conn.State() != channel.StateClosed {
			return conn, nil
		}
		delete(c.sockets, path)
	}

	wsURL, err := (&config.Config{BaseURL: c.baseURL, APIPrefix: c.prefix}).WebSocketURL(path)
	if err != nil {
		return nil, fmt.Errorf("channel url: %w", err)
	}

	opts := []channel.Option{
		channel.WithConfig(c.channelCfg),
		channel.WithLogger(c.logger.With("channel", path)),
		channel.WithHeader(c.headerSnapshot()),
		channel.WithMetrics(c.channelMetrics),
	}
	switch {
	case c.channelDialer != nil:
		opts = append(opts, channel.WithDialer(c.channelDialer))
	case c.tlsConfig != nil:
		base := &websocket.Dialer{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: c.tlsConfig,
		}
		opts = append(opts, channel.WithDialer(channel.NewWebSocketDialerWithBase(c.channelCfg, base, c.logger)))
	}

	conn, err := channel.New(wsURL, opts...)
	if err != nil {
		return nil, err
	}
	if err := conn.Connect(c.ctx); err != nil {
		return nil, fmt.Errorf("connect channel: %w", err)
	}

	c.sockets[path] = conn
	c.logger.Info("channel opened", "path", path, "url", wsURL)
	return conn, nil
}

// DisconnectWebSocket closes the channel on path, if any. It does not wait
// for the channel's workers to exit; use the returned connection's Wait.
func (c *Client) DisconnectWebSocket(path string) *channel.Connection {
	c.socketsMu.Lock()
	conn, ok := c.sockets[path]
	delete(c.sockets, path)
	c.socketsMu.Unlock()

	if !ok {
		return nil
	}
	conn.Disconnect()
	c.logger.Info("channel closed", "path", path)
	return conn
}

// WebSocket returns the open channel on path, or nil.
func (c *Client) WebSocket(path string) *channel.Connection {
	c.socketsMu.Lock()
	defer c.socketsMu.Unlock()
	return c.sockets[path]
}

// Close disconnects every channel and releases idle HTTP connections.
func (c *Client) Close() {
	c.socketsMu.Lock()
	conns := make([]*channel.Connection, 0, len(c.sockets))
	for path, conn := range c.sockets {
		conns = append(conns, conn)
		delete(c.sockets, path)
	}
	c.socketsMu.Unlock()

	for _, conn := range conns {
		conn.Disconnect()
	}
	c.cancel()
	c.httpClient.CloseIdleConnections()
}
