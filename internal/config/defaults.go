package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultResolverBaseURL     = "https://kick.com"
	DefaultResolverTimeout     = 30 * time.Second
	DefaultResolverMaxRetries  = 3
	DefaultMaxReconnects       = 10
	DefaultReconnectInterval   = 1 * time.Second
	DefaultMaxReconnectDelay   = 30 * time.Second
	DefaultHeartbeatInterval   = 30 * time.Second
	DefaultDBPort              = 5432
	DefaultDBSSLMode           = "prefer"
	DefaultMaxConns            = 10
	DefaultMinConns            = 2
	DefaultArchiverBatchSize   = 500
	DefaultArchiverFlushPeriod = 1 * time.Second
	DefaultArchiverBufferSize  = 10000
	DefaultHealthPort          = 8080
	DefaultHealthPath          = "/healthz"
)

func (c *FeedConfig) applyDefaults() {
	// Resolver defaults
	if c.Resolver.BaseURL == "" {
		c.Resolver.BaseURL = DefaultResolverBaseURL
	}
	if c.Resolver.Timeout == 0 {
		c.Resolver.Timeout = DefaultResolverTimeout
	}
	if c.Resolver.MaxRetries == 0 {
		c.Resolver.MaxRetries = DefaultResolverMaxRetries
	}

	// Client defaults
	if c.Client.AutoReconnect == nil {
		yes := true
		c.Client.AutoReconnect = &yes
	}
	if c.Client.MaxReconnectAttempts == 0 {
		c.Client.MaxReconnectAttempts = DefaultMaxReconnects
	}
	if c.Client.ReconnectInterval == 0 {
		c.Client.ReconnectInterval = DefaultReconnectInterval
	}
	if c.Client.MaxReconnectInterval == 0 {
		c.Client.MaxReconnectInterval = DefaultMaxReconnectDelay
	}
	// HeartbeatInterval is left alone: zero means disabled, and the default
	// only applies when the key is absent entirely, which yaml cannot
	// distinguish. Config files disable it with an explicit -1s.
	if c.Client.HeartbeatInterval == 0 {
		c.Client.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.Client.HeartbeatInterval < 0 {
		c.Client.HeartbeatInterval = 0
	}

	// Database defaults
	applyDBDefaults(&c.Database.Postgres)

	// Archiver defaults
	if c.Archiver.BatchSize == 0 {
		c.Archiver.BatchSize = DefaultArchiverBatchSize
	}
	if c.Archiver.FlushInterval == 0 {
		c.Archiver.FlushInterval = DefaultArchiverFlushPeriod
	}
	if c.Archiver.BufferSize == 0 {
		c.Archiver.BufferSize = DefaultArchiverBufferSize
	}

	// Health defaults
	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}
	if c.Health.Path == "" {
		c.Health.Path = DefaultHealthPath
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
