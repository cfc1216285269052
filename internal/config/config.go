package config

import "time"

// Config is the root configuration for a relayd instance.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DBConfig        `yaml:"database"`
	Hub       HubConfig       `yaml:"hub"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Transport TransportConfig `yaml:"transport"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DBConfig holds PostgreSQL settings for the roster database.
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

// HubConfig holds room lifecycle timing.
type HubConfig struct {
	GraceWindow   time.Duration `yaml:"grace_window"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// SchedulerConfig holds worker pool sizing.
type SchedulerConfig struct {
	Workers       int `yaml:"workers"`
	RestartBudget int `yaml:"restart_budget"`
}

// TransportConfig holds per-stream websocket settings.
type TransportConfig struct {
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	PongTimeout    time.Duration `yaml:"pong_timeout"`
	SendBuffer     int           `yaml:"send_buffer"`
	MaxMessageSize int64         `yaml:"max_message_size"`
}
