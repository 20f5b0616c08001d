package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root client configuration.
type Config struct {
	BaseURL        string            `yaml:"base_url"`
	APIPrefix      string            `yaml:"api_prefix"`
	Token          string            `yaml:"token,omitempty"`
	TokenType      string            `yaml:"token_type"`
	UserAgent      string            `yaml:"user_agent"`
	DefaultHeaders map[string]string `yaml:"default_headers,omitempty"`
	SSL            SSLConfig         `yaml:"ssl"`
	Timeout        TimeoutConfig     `yaml:"timeout"`
	Retry          RetryConfig       `yaml:"retry"`
	Channel        ChannelConfig     `yaml:"channel"`
	Archive        ArchiveConfig     `yaml:"archive"`
	Metrics        MetricsConfig     `yaml:"metrics"`
}

// SSLConfig holds TLS settings for REST and channel connections.
type SSLConfig struct {
	Verify     *bool  `yaml:"verify,omitempty"` // nil means verify
	CAFile     string `yaml:"ca_file,omitempty"`
	ClientCert string `yaml:"client_cert,omitempty"`
	ClientKey  string `yaml:"client_key,omitempty"`
}

// VerifyPeer reports whether server certificates are checked.
func (s SSLConfig) VerifyPeer() bool {
	return s.Verify == nil || *s.Verify
}

// TimeoutConfig holds HTTP timeouts.
type TimeoutConfig struct {
	Connect Duration `yaml:"connect"`
	Read    Duration `yaml:"read"`
	Write   Duration `yaml:"write"`
	Pool    Duration `yaml:"pool"`
}

// RetryConfig holds REST retry settings.
type RetryConfig struct {
	Enabled     *bool    `yaml:"enabled,omitempty"` // nil means enabled
	MaxAttempts int      `yaml:"max_attempts"`
	Delay       Duration `yaml:"delay"`
	Backoff     float64  `yaml:"backoff"`
	MaxDelay    Duration `yaml:"max_delay"`
	StatusCodes []int    `yaml:"status_codes"`
}

// IsEnabled reports whether failed requests are retried.
func (r RetryConfig) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// ChannelConfig holds duplex channel tunables.
type ChannelConfig struct {
	ReconnectDelay    Duration `yaml:"reconnect_delay"`
	MaxReconnectDelay Duration `yaml:"max_reconnect_delay"`
	HandshakeTimeout  Duration `yaml:"handshake_timeout"`
	WriteTimeout      Duration `yaml:"write_timeout"`
	PingInterval      Duration `yaml:"ping_interval"`
	DrainTimeout      Duration `yaml:"drain_timeout"`
	Delivery          string   `yaml:"delivery"`
}

// ArchiveConfig holds the optional Postgres frame archive.
type ArchiveConfig struct {
	Database DBConfig     `yaml:"database"`
	Writer   WriterConfig `yaml:"writer"`
}

// Enabled reports whether an archive database is configured.
func (a ArchiveConfig) Enabled() bool {
	return a.Database.Host != ""
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// WriterConfig holds archive batch writer settings.
type WriterConfig struct {
	BatchSize     int      `yaml:"batch_size"`
	FlushInterval Duration `yaml:"flush_interval"`
	BufferSize    int      `yaml:"buffer_size"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
	Path string `yaml:"path"`
}

// Headers returns the headers sent with every request and handshake:
// User-Agent, the default headers, and Authorization when a token is set.
func (c *Config) Headers() map[string]string {
	headers := make(map[string]string, len(c.DefaultHeaders)+2)
	headers["User-Agent"] = c.UserAgent
	for k, v := range c.DefaultHeaders {
		headers[k] = v
	}
	if c.Token != "" {
		headers["Authorization"] = c.TokenType + " " + c.Token
	}
	return headers
}

// URL joins the base URL, API prefix and path.
func (c *Config) URL(path string) string {
	return strings.TrimRight(c.BaseURL, "/") + c.APIPrefix + path
}

// WebSocketURL returns the channel address for path: the REST URL with
// http mapped to ws and https to wss.
func (c *Config) WebSocketURL(path string) (string, error) {
	u, err := url.Parse(c.URL(path))
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("base url scheme %q not supported", u.Scheme)
	}
	return u.String(), nil
}

// Duration is a time.Duration that unmarshals from "1m30s" style strings
// or from a number of seconds.
type Duration time.Duration

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", node.Line)
	}

	var secs float64
	if err := node.Decode(&secs); err == nil {
		*d = Duration(secs * float64(time.Second))
		return nil
	}

	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q", node.Line, node.Value)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}
