package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultBaseURL           = "http://localhost:3000"
	DefaultTokenType         = "Bearer"
	DefaultUserAgent         = "RednetAPI/1.0"
	DefaultConnectTimeout    = 5 * time.Second
	DefaultReadTimeout       = 30 * time.Second
	DefaultWriteTimeout      = 30 * time.Second
	DefaultPoolTimeout       = 30 * time.Second
	DefaultMaxAttempts       = 3
	DefaultRetryDelay        = 1 * time.Second
	DefaultRetryBackoff      = 2.0
	DefaultRetryMaxDelay     = 30 * time.Second
	DefaultReconnectDelay    = 1 * time.Second
	DefaultMaxReconnectDelay = 30 * time.Second
	DefaultHandshakeTimeout  = 10 * time.Second
	DefaultChannelWrite      = 5 * time.Second
	DefaultPingInterval      = 20 * time.Second
	DefaultDrainTimeout      = 2 * time.Second
	DefaultDelivery          = "at-least-once"
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 4
	DefaultMinConns          = 1
	DefaultBatchSize         = 500
	DefaultFlushInterval     = 1 * time.Second
	DefaultBufferSize        = 10000
	DefaultMetricsPath       = "/metrics"
)

// DefaultRetryStatusCodes are the HTTP statuses that trigger a retry.
var DefaultRetryStatusCodes = []int{408, 429, 500, 502, 503, 504}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.TokenType == "" {
		c.TokenType = DefaultTokenType
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}

	// Timeouts
	setDuration(&c.Timeout.Connect, DefaultConnectTimeout)
	setDuration(&c.Timeout.Read, DefaultReadTimeout)
	setDuration(&c.Timeout.Write, DefaultWriteTimeout)
	setDuration(&c.Timeout.Pool, DefaultPoolTimeout)

	// Retry
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = DefaultMaxAttempts
	}
	setDuration(&c.Retry.Delay, DefaultRetryDelay)
	if c.Retry.Backoff == 0 {
		c.Retry.Backoff = DefaultRetryBackoff
	}
	setDuration(&c.Retry.MaxDelay, DefaultRetryMaxDelay)
	if c.Retry.StatusCodes == nil {
		c.Retry.StatusCodes = append([]int(nil), DefaultRetryStatusCodes...)
	}

	// Channel
	setDuration(&c.Channel.ReconnectDelay, DefaultReconnectDelay)
	setDuration(&c.Channel.MaxReconnectDelay, DefaultMaxReconnectDelay)
	setDuration(&c.Channel.HandshakeTimeout, DefaultHandshakeTimeout)
	setDuration(&c.Channel.WriteTimeout, DefaultChannelWrite)
	setDuration(&c.Channel.PingInterval, DefaultPingInterval)
	setDuration(&c.Channel.DrainTimeout, DefaultDrainTimeout)
	if c.Channel.Delivery == "" {
		c.Channel.Delivery = DefaultDelivery
	}

	// Archive
	applyDBDefaults(&c.Archive.Database)
	if c.Archive.Writer.BatchSize == 0 {
		c.Archive.Writer.BatchSize = DefaultBatchSize
	}
	setDuration(&c.Archive.Writer.FlushInterval, DefaultFlushInterval)
	if c.Archive.Writer.BufferSize == 0 {
		c.Archive.Writer.BufferSize = DefaultBufferSize
	}

	// Metrics
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}

func setDuration(d *Duration, def time.Duration) {
	if *d == 0 {
		*d = Duration(def)
	}
}
