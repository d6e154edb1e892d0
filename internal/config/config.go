package config

import "time"

// FeedConfig is the root configuration for a chatfeed instance.
type FeedConfig struct {
	Instance InstanceConfig `yaml:"instance"`
	Channel  ChannelConfig  `yaml:"channel"`
	Pusher   PusherConfig   `yaml:"pusher"`
	Resolver ResolverConfig `yaml:"resolver"`
	Client   ClientConfig   `yaml:"client"`
	Database DatabaseConfig `yaml:"database"`
	Archiver ArchiverConfig `yaml:"archiver"`
	Health   HealthConfig   `yaml:"health"`
}

// InstanceConfig identifies this feed instance.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// ChannelConfig selects the chatroom to join.
type ChannelConfig struct {
	Name       string `yaml:"name"`
	PlainEmote bool   `yaml:"plain_emote"`
}

// PusherConfig holds pub/sub endpoint settings.
type PusherConfig struct {
	Key     string `yaml:"key"`
	Cluster string `yaml:"cluster"`
	WSURL   string `yaml:"ws_url"` // Full endpoint override; usually empty
}

// ResolverConfig holds channel lookup settings.
type ResolverConfig struct {
	BaseURL    string        `yaml:"base_url"`
	UserAgent  string        `yaml:"user_agent"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// ClientConfig holds connection lifecycle settings.
type ClientConfig struct {
	AutoReconnect        *bool         `yaml:"auto_reconnect"` // Default true
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	ReconnectInterval    time.Duration `yaml:"reconnect_interval"`
	MaxReconnectInterval time.Duration `yaml:"max_reconnect_interval"`
	HeartbeatInterval    time.Duration `yaml:"heartbeat_interval"` // 0 disables
}

// DatabaseConfig holds the archive database connection.
type DatabaseConfig struct {
	Postgres DBConfig `yaml:"postgres"`
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

// ArchiverConfig holds batch writer settings.
type ArchiverConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// HealthConfig holds the health/stats endpoint settings.
type HealthConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}
