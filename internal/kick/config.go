package kick

import (
	"fmt"
	"net/http"
	"time"
)

// Default values for optional configuration fields.
const (
	DefaultPusherKey            = "32cbd69e4b950bf97679"
	DefaultPusherCluster        = "us2"
	DefaultPusherVersion        = "8.4.0-rc2"
	DefaultMaxReconnectAttempts = 10
	DefaultReconnectInterval    = 1 * time.Second
	DefaultMaxReconnectInterval = 30 * time.Second
	DefaultHeartbeatInterval    = 30 * time.Second
	DefaultSocketBufferSize     = 1000
)

// Config configures a chat client for one channel.
type Config struct {
	// Channel is the channel slug to join. Required.
	Channel string

	// WSURL overrides the pub/sub endpoint. When empty the URL is built
	// from PusherKey and PusherCluster.
	WSURL string

	// PusherKey is the application key of the pub/sub service.
	PusherKey string

	// PusherCluster is the service cluster (e.g., "us2").
	PusherCluster string

	// Header carries extra handshake headers (User-Agent, Origin).
	Header http.Header

	// AutoReconnect re-establishes the session after unexpected closes.
	AutoReconnect bool

	// MaxReconnectAttempts caps automatic reconnection attempts.
	MaxReconnectAttempts int

	// ReconnectInterval is the base backoff delay.
	ReconnectInterval time.Duration

	// MaxReconnectInterval caps the backoff delay.
	MaxReconnectInterval time.Duration

	// HeartbeatInterval paces the application-level liveness probe.
	// Zero disables the heartbeat.
	HeartbeatInterval time.Duration

	// PlainEmote rewrites emote markup in chat message content to the
	// emote's plain-text name before dispatch.
	PlainEmote bool

	// OnError receives every surfaced client error.
	OnError func(*ClientError)

	// OnStateChange observes every connection state transition.
	OnStateChange func(old, new ConnectionState)
}

// DefaultConfig returns a config with production defaults for everything
// except the channel name.
func DefaultConfig() Config {
	return Config{
		PusherKey:            DefaultPusherKey,
		PusherCluster:        DefaultPusherCluster,
		AutoReconnect:        true,
		MaxReconnectAttempts: DefaultMaxReconnectAttempts,
		ReconnectInterval:    DefaultReconnectInterval,
		MaxReconnectInterval: DefaultMaxReconnectInterval,
		HeartbeatInterval:    DefaultHeartbeatInterval,
	}
}

// applyDefaults fills zero-valued fields that have no meaningful zero.
// HeartbeatInterval is left alone: zero means disabled.
func (c *Config) applyDefaults() {
	if c.PusherKey == "" {
		c.PusherKey = DefaultPusherKey
	}
	if c.PusherCluster == "" {
		c.PusherCluster = DefaultPusherCluster
	}
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.ReconnectInterval == 0 {
		c.ReconnectInterval = DefaultReconnectInterval
	}
	if c.MaxReconnectInterval == 0 {
		c.MaxReconnectInterval = DefaultMaxReconnectInterval
	}
}

// validate checks the configuration before first use.
func (c *Config) validate() error {
	if c.Channel == "" {
		return fmt.Errorf("channel is required")
	}
	if c.ReconnectInterval < 0 || c.MaxReconnectInterval < 0 || c.HeartbeatInterval < 0 {
		return fmt.Errorf("intervals must not be negative")
	}
	if c.MaxReconnectInterval < c.ReconnectInterval {
		return fmt.Errorf("maxReconnectInterval (%s) cannot be below reconnectInterval (%s)",
			c.MaxReconnectInterval, c.ReconnectInterval)
	}
	if c.MaxReconnectAttempts < 0 {
		return fmt.Errorf("maxReconnectAttempts must not be negative")
	}
	return nil
}

// endpoint returns the WebSocket URL for the configured cluster.
func (c *Config) endpoint() string {
	if c.WSURL != "" {
		return c.WSURL
	}
	return fmt.Sprintf(
		"wss://ws-%s.pusher.com/app/%s?protocol=7&client=js&version=%s&flash=false",
		c.PusherCluster, c.PusherKey, DefaultPusherVersion,
	)
}
