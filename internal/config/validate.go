package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if err := c.Database.validate("database"); err != nil {
		return err
	}

	if c.Hub.GraceWindow <= 0 {
		return errors.New("hub.grace_window must be positive")
	}
	if c.Hub.SweepInterval <= 0 {
		return errors.New("hub.sweep_interval must be positive")
	}

	if c.Scheduler.Workers < 1 {
		return fmt.Errorf("scheduler.workers must be >= 1, got %d", c.Scheduler.Workers)
	}
	if c.Scheduler.RestartBudget < 0 {
		return fmt.Errorf("scheduler.restart_budget must be >= 0, got %d", c.Scheduler.RestartBudget)
	}

	if c.Transport.SendBuffer < 1 {
		return errors.New("transport.send_buffer must be >= 1")
	}
	if c.Transport.MaxMessageSize < 1 {
		return errors.New("transport.max_message_size must be >= 1")
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
