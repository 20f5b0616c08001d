package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix prefixes every environment variable FromEnv reads.
const EnvPrefix = "REDNET_API_"

const headerEnvPrefix = EnvPrefix + "HEADER_"

// FromEnv builds a configuration from REDNET_API_* environment variables
// and applies defaults. REDNET_API_HEADER_X_TRACE_ID=abc adds the default
// header "x-trace-id: abc".
func FromEnv() (*Config, error) {
	return fromLookup(os.LookupEnv, os.Environ())
}

// ApplyEnv overrides fields of c with any REDNET_API_* variables that are set.
func (c *Config) ApplyEnv() error {
	return c.applyLookup(os.LookupEnv, os.Environ())
}

func fromLookup(lookup func(string) (string, bool), environ []string) (*Config, error) {
	cfg := &Config{}
	if err := cfg.applyLookup(lookup, environ); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyLookup(lookup func(string) (string, bool), environ []string) error {
	e := envReader{lookup: lookup}

	e.str("URL", &c.BaseURL)
	e.str("PREFIX", &c.APIPrefix)
	e.str("TOKEN", &c.Token)
	e.str("TOKEN_TYPE", &c.TokenType)
	e.str("USER_AGENT", &c.UserAgent)

	e.flag("SSL_VERIFY", &c.SSL.Verify)
	e.str("SSL_CA_FILE", &c.SSL.CAFile)
	e.str("SSL_CLIENT_CERT", &c.SSL.ClientCert)
	e.str("SSL_CLIENT_KEY", &c.SSL.ClientKey)

	e.seconds("TIMEOUT_CONNECT", &c.Timeout.Connect)
	e.seconds("TIMEOUT_READ", &c.Timeout.Read)
	e.seconds("TIMEOUT_WRITE", &c.Timeout.Write)
	e.seconds("TIMEOUT_POOL", &c.Timeout.Pool)

	e.flag("RETRY_ENABLED", &c.Retry.Enabled)
	e.integer("RETRY_MAX_ATTEMPTS", &c.Retry.MaxAttempts)
	e.seconds("RETRY_DELAY", &c.Retry.Delay)
	e.float("RETRY_BACKOFF", &c.Retry.Backoff)
	e.seconds("RETRY_MAX_DELAY", &c.Retry.MaxDelay)

	e.seconds("CHANNEL_RECONNECT_DELAY", &c.Channel.ReconnectDelay)
	e.seconds("CHANNEL_MAX_RECONNECT_DELAY", &c.Channel.MaxReconnectDelay)
	e.str("CHANNEL_DELIVERY", &c.Channel.Delivery)

	if e.err != nil {
		return e.err
	}

	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, headerEnvPrefix) {
			continue
		}
		header := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(name, headerEnvPrefix)), "_", "-")
		if header == "" {
			continue
		}
		if c.DefaultHeaders == nil {
			c.DefaultHeaders = make(map[string]string)
		}
		c.DefaultHeaders[header] = value
	}
	return nil
}

// envReader collects the first parse error.
type envReader struct {
	lookup func(string) (string, bool)
	err    error
}

func (e *envReader) get(key string) (string, bool) {
	if e.err != nil {
		return "", false
	}
	v, ok := e.lookup(EnvPrefix + key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

// flag treats anything but "false" as true.
func (e *envReader) flag(key string, dst **bool) {
	if v, ok := e.get(key); ok {
		b := !strings.EqualFold(v, "false")
		*dst = &b
	}
}

func (e *envReader) integer(key string, dst *int) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.err = fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		return
	}
	*dst = n
}

func (e *envReader) float(key string, dst *float64) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.err = fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		return
	}
	*dst = f
}

// seconds accepts a number of seconds or a Go duration string.
func (e *envReader) seconds(key string, dst *Duration) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		*dst = Duration(f * float64(time.Second))
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.err = fmt.Errorf("%s%s: invalid duration %q", EnvPrefix, key, v)
		return
	}
	*dst = Duration(d)
}
