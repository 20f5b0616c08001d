package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/rednet-io/rednet-go/internal/channel"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base_url is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("base_url host is required")
	}

	if c.Token != "" && c.TokenType == "" {
		return errors.New("token_type is required when token is set")
	}

	if (c.SSL.ClientCert == "") != (c.SSL.ClientKey == "") {
		return errors.New("ssl.client_cert and ssl.client_key must be set together")
	}

	if c.Retry.MaxAttempts < 0 {
		return errors.New("retry.max_attempts must be >= 0")
	}
	if c.Retry.Backoff < 1 {
		return fmt.Errorf("retry.backoff must be >= 1, got %g", c.Retry.Backoff)
	}
	for _, code := range c.Retry.StatusCodes {
		if code < 100 || code > 599 {
			return fmt.Errorf("retry.status_codes: invalid status %d", code)
		}
	}

	if c.Channel.ReconnectDelay < 0 {
		return errors.New("channel.reconnect_delay must be >= 0")
	}
	if c.Channel.MaxReconnectDelay < c.Channel.ReconnectDelay {
		return fmt.Errorf("channel.max_reconnect_delay (%s) cannot be less than reconnect_delay (%s)",
			c.Channel.MaxReconnectDelay.D(), c.Channel.ReconnectDelay.D())
	}
	if _, err := channel.ParseDeliveryMode(c.Channel.Delivery); err != nil {
		return fmt.Errorf("channel.delivery: %w", err)
	}

	if c.Archive.Enabled() {
		if err := c.Archive.Database.validate("archive.database"); err != nil {
			return err
		}
		if c.Archive.Writer.BatchSize < 1 {
			return errors.New("archive.writer.batch_size must be >= 1")
		}
		if c.Archive.Writer.BufferSize < 1 {
			return errors.New("archive.writer.buffer_size must be >= 1")
		}
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
