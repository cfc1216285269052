package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
server:
  addr: ":9000"
database:
  host: localhost
  port: 5432
  name: relay_db
  user: relay
  password: relaypass
hub:
  grace_window: 45s
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Addr != ":9000" {
		t.Errorf("Server.Addr = %q, want %q", cfg.Server.Addr, ":9000")
	}
	if cfg.Database.Host != "localhost" {
		t.Errorf("Database.Host = %q, want %q", cfg.Database.Host, "localhost")
	}
	if cfg.Hub.GraceWindow != 45*time.Second {
		t.Errorf("Hub.GraceWindow = %v, want 45s", cfg.Hub.GraceWindow)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "secret123")

	yaml := `
database:
  host: localhost
  name: relay_db
  user: relay
  password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Password != "secret123" {
		t.Errorf("Database.Password = %q, want %q", cfg.Database.Password, "secret123")
	}
}

func TestLoadAndValidateAppliesDefaults(t *testing.T) {
	yaml := `
database:
  host: localhost
  name: relay_db
  user: relay
  password: relaypass
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadAndValidate(path)
	if err != nil {
		t.Fatalf("LoadAndValidate failed: %v", err)
	}

	if cfg.Server.Addr != DefaultAddr {
		t.Errorf("Server.Addr = %q, want default %q", cfg.Server.Addr, DefaultAddr)
	}
	if cfg.Database.Port != DefaultDBPort {
		t.Errorf("Database.Port = %d, want default %d", cfg.Database.Port, DefaultDBPort)
	}
	if cfg.Hub.GraceWindow != DefaultGraceWindow {
		t.Errorf("Hub.GraceWindow = %v, want default %v", cfg.Hub.GraceWindow, DefaultGraceWindow)
	}
	if cfg.Hub.SweepInterval != DefaultSweepInterval {
		t.Errorf("Hub.SweepInterval = %v, want default %v", cfg.Hub.SweepInterval, DefaultSweepInterval)
	}
	if cfg.Scheduler.Workers != DefaultWorkers {
		t.Errorf("Scheduler.Workers = %d, want default %d", cfg.Scheduler.Workers, DefaultWorkers)
	}
	if cfg.Transport.SendBuffer != DefaultSendBuffer {
		t.Errorf("Transport.SendBuffer = %d, want default %d", cfg.Transport.SendBuffer, DefaultSendBuffer)
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		Database:  DBConfig{Host: "localhost", Name: "db", User: "user", MaxConns: 10, MinConns: 2},
		Hub:       HubConfig{GraceWindow: 30 * time.Second, SweepInterval: time.Second},
		Scheduler: SchedulerConfig{Workers: 4},
		Transport: TransportConfig{SendBuffer: 256, MaxMessageSize: 1024},
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: "",
		},
		{
			name:    "missing database host",
			mutate:  func(c *Config) { c.Database.Host = "" },
			wantErr: "database.host is required",
		},
		{
			name:    "min_conns exceeds max_conns",
			mutate:  func(c *Config) { c.Database.MinConns = 20 },
			wantErr: "database.min_conns (20) cannot exceed max_conns (10)",
		},
		{
			name:    "zero workers",
			mutate:  func(c *Config) { c.Scheduler.Workers = 0 },
			wantErr: "scheduler.workers must be >= 1, got 0",
		},
		{
			name:    "negative grace window",
			mutate:  func(c *Config) { c.Hub.GraceWindow = -time.Second },
			wantErr: "hub.grace_window must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
