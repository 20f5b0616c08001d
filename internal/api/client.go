package api

import (
	"context"
	"crypto/tls"
	"log/slog"
	"maps"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rednet-io/rednet-go/internal/channel"
	"github.com/rednet-io/rednet-go/internal/config"
)

// Client provides access to the Rednet REST API and owns the duplex
// channels opened through it.
type Client struct {
	baseURL    string
	prefix     string
	httpClient *http.Client
	logger     *slog.Logger

	headersMu sync.RWMutex
	headers   map[string]string

	maxRetries    int
	retryBackoff  time.Duration
	backoffFactor float64
	maxDelay      time.Duration
	retryStatus   map[int]bool

	// Channels
	tlsConfig      *tls.Config
	channelCfg     channel.Config
	channelDialer  channel.Dialer
	channelMetrics *channel.Metrics

	socketsMu sync.Mutex
	sockets   map[string]*channel.Connection
	ctx       context.Context
	cancel    context.CancelFunc
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new REST API client for baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: slog.Default(),
		headers: map[string]string{
			"User-Agent": config.DefaultUserAgent,
		},
		maxRetries:    config.DefaultMaxAttempts,
		retryBackoff:  config.DefaultRetryDelay,
		backoffFactor: config.DefaultRetryBackoff,
		maxDelay:      config.DefaultRetryMaxDelay,
		retryStatus:   statusSet(config.DefaultRetryStatusCodes),
		channelCfg:    channel.DefaultConfig(),
		sockets:       make(map[string]*channel.Connection),
		ctx:           ctx,
		cancel:        cancel,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// NewFromConfig creates a client from a validated configuration.
func NewFromConfig(cfg *config.Config, opts ...ClientOption) (*Client, error) {
	tlsCfg, err := cfg.TLSConfig()
	if err != nil {
		return nil, err
	}

	maxRetries := cfg.Retry.MaxAttempts
	if !cfg.Retry.IsEnabled() {
		maxRetries = 0
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   cfg.Timeout.Connect.D(),
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.TLSHandshakeTimeout = cfg.Timeout.Connect.D()
	transport.ResponseHeaderTimeout = cfg.Timeout.Read.D()
	transport.IdleConnTimeout = cfg.Timeout.Pool.D()
	transport.TLSClientConfig = tlsCfg

	base := []ClientOption{
		WithPrefix(cfg.APIPrefix),
		WithHTTPClient(&http.Client{Transport: transport}),
		WithHeaders(cfg.Headers()),
		WithRetries(maxRetries, cfg.Retry.Delay.D()),
		WithRetryPolicy(cfg.Retry.Backoff, cfg.Retry.MaxDelay.D(), cfg.Retry.StatusCodes),
		WithChannelConfig(cfg.ChannelOptions()),
		WithTLSConfig(tlsCfg),
	}
	return NewClient(cfg.BaseURL, append(base, opts...)...), nil
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithRetryPolicy sets the backoff multiplier, the delay ceiling and the
// statuses that are retried.
func WithRetryPolicy(factor float64, maxDelay time.Duration, statusCodes []int) ClientOption {
	return func(c *Client) {
		if factor >= 1 {
			c.backoffFactor = factor
		}
		if maxDelay > 0 {
			c.maxDelay = maxDelay
		}
		if statusCodes != nil {
			c.retryStatus = statusSet(statusCodes)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithPrefix sets the path prefix inserted between the base URL and
// every endpoint path.
func WithPrefix(prefix string) ClientOption {
	return func(c *Client) {
		c.prefix = prefix
	}
}

// WithHeaders merges headers into the defaults.
func WithHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		maps.Copy(c.headers, headers)
	}
}

// WithTLSConfig sets the TLS configuration used for channel handshakes.
func WithTLSConfig(tlsCfg *tls.Config) ClientOption {
	return func(c *Client) {
		c.tlsConfig = tlsCfg
	}
}

// WithChannelConfig sets the tunables of channels opened by the client.
func WithChannelConfig(cfg channel.Config) ClientOption {
	return func(c *Client) {
		c.channelCfg = cfg
	}
}

// WithChannelDialer replaces the dialer used for channels.
func WithChannelDialer(d channel.Dialer) ClientOption {
	return func(c *Client) {
		c.channelDialer = d
	}
}

// WithChannelMetrics reports channel activity to m.
func WithChannelMetrics(m *channel.Metrics) ClientOption {
	return func(c *Client) {
		c.channelMetrics = m
	}
}

// AddHeader sets a header on subsequent requests and channel handshakes.
// Channels that are already open pick it up on their next reconnect.
func (c *Client) AddHeader(name, value string) {
	c.headersMu.Lock()
	c.headers[name] = value
	c.headersMu.Unlock()

	c.socketsMu.Lock()
	defer c.socketsMu.Unlock()
	for _, conn := range c.sockets {
		conn.SetHeader(name, value)
	}
}

// Header returns the current value of a default header.
func (c *Client) Header(name string) string {
	c.headersMu.RLock()
	defer c.headersMu.RUnlock()
	return c.headers[name]
}

func (c *Client) headerSnapshot() http.Header {
	c.headersMu.RLock()
	defer c.headersMu.RUnlock()

	h := make(http.Header, len(c.headers))
	for k, v := range c.headers {
		h.Set(k, v)
	}
	return h
}

// URL returns the absolute URL for an endpoint path.
func (c *Client) URL(path string) string {
	return c.baseURL + c.prefix + path
}

func statusSet(codes []int) map[int]bool {
	set := make(map[int]bool, len(codes))
	for _, code := range codes {
		set[code] = true
	}
	return set
}
