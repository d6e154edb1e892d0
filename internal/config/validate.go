package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *FeedConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}
	if c.Channel.Name == "" {
		return errors.New("channel.name is required")
	}

	if c.Client.MaxReconnectAttempts < 0 {
		return errors.New("client.max_reconnect_attempts must be >= 0")
	}
	if c.Client.ReconnectInterval <= 0 {
		return errors.New("client.reconnect_interval must be positive")
	}
	if c.Client.MaxReconnectInterval < c.Client.ReconnectInterval {
		return fmt.Errorf("client.max_reconnect_interval (%s) cannot be below reconnect_interval (%s)",
			c.Client.MaxReconnectInterval, c.Client.ReconnectInterval)
	}

	if c.Archiver.Enabled {
		if err := c.Database.Postgres.validate("database.postgres"); err != nil {
			return err
		}
		if c.Archiver.BatchSize < 1 {
			return errors.New("archiver.batch_size must be >= 1")
		}
		if c.Archiver.BufferSize < 1 {
			return errors.New("archiver.buffer_size must be >= 1")
		}
	}

	if c.Health.Port < 1 || c.Health.Port > 65535 {
		return fmt.Errorf("health.port must be between 1 and 65535, got %d", c.Health.Port)
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
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
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
