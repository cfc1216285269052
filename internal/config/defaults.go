package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultAddr            = ":8090"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultDBPort          = 5432
	DefaultDBSSLMode       = "prefer"
	DefaultMaxConns        = 10
	DefaultMinConns        = 2
	DefaultGraceWindow     = 30 * time.Second
	DefaultSweepInterval   = 1 * time.Second
	DefaultWorkers         = 4
	DefaultRestartBudget   = 8
	DefaultWriteTimeout    = 5 * time.Second
	DefaultPingInterval    = 30 * time.Second
	DefaultPongTimeout     = 60 * time.Second
	DefaultSendBuffer      = 256
	DefaultMaxMessageSize  = 64 * 1024
)

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	if c.Hub.GraceWindow == 0 {
		c.Hub.GraceWindow = DefaultGraceWindow
	}
	if c.Hub.SweepInterval == 0 {
		c.Hub.SweepInterval = DefaultSweepInterval
	}

	if c.Scheduler.Workers == 0 {
		c.Scheduler.Workers = DefaultWorkers
	}
	if c.Scheduler.RestartBudget == 0 {
		c.Scheduler.RestartBudget = DefaultRestartBudget
	}

	if c.Transport.WriteTimeout == 0 {
		c.Transport.WriteTimeout = DefaultWriteTimeout
	}
	if c.Transport.PingInterval == 0 {
		c.Transport.PingInterval = DefaultPingInterval
	}
	if c.Transport.PongTimeout == 0 {
		c.Transport.PongTimeout = DefaultPongTimeout
	}
	if c.Transport.SendBuffer == 0 {
		c.Transport.SendBuffer = DefaultSendBuffer
	}
	if c.Transport.MaxMessageSize == 0 {
		c.Transport.MaxMessageSize = DefaultMaxMessageSize
	}
}
