package config

import (
	"github.com/rednet-io/rednet-go/internal/channel"
)

// ChannelOptions converts the channel section into connection tunables.
// The config must have passed Validate.
func (c *Config) ChannelOptions() channel.Config {
	cfg := channel.DefaultConfig()
	cfg.ReconnectDelay = c.Channel.ReconnectDelay.D()
	cfg.MaxReconnectDelay = c.Channel.MaxReconnectDelay.D()
	cfg.HandshakeTimeout = c.Channel.HandshakeTimeout.D()
	cfg.WriteTimeout = c.Channel.WriteTimeout.D()
	cfg.PingInterval = c.Channel.PingInterval.D()
	cfg.DrainTimeout = c.Channel.DrainTimeout.D()
	if mode, err := channel.ParseDeliveryMode(c.Channel.Delivery); err == nil {
		cfg.Delivery = mode
	}
	return cfg
}
