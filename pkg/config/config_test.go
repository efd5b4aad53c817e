package config

import (
	"testing"
	"time"
)

func TestConfig_Validate(t *testing.T) {
	base := func() *Config {
		return &Config{
			GatewayPort:           8080,
			SandboxPort:           80,
			IdleTimeout:           600 * time.Second,
			LongPollBound:         90 * time.Second,
			LongPollInterval:      500 * time.Millisecond,
			ReaperPeriod:          60 * time.Second,
			SandboxWatchTimeout:   60 * time.Second,
			ProxyTimeout:          60 * time.Second,
			WorkerCreateRateQPS:   5,
			WorkerCreateRateBurst: 10,
			Namespace:             "default",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "invalid gateway port - too low",
			mutate:  func(c *Config) { c.GatewayPort = 0 },
			wantErr: true,
		},
		{
			name:    "invalid gateway port - too high",
			mutate:  func(c *Config) { c.GatewayPort = 70000 },
			wantErr: true,
		},
		{
			name:    "invalid sandbox port",
			mutate:  func(c *Config) { c.SandboxPort = -1 },
			wantErr: true,
		},
		{
			name:    "non-positive idle timeout",
			mutate:  func(c *Config) { c.IdleTimeout = 0 },
			wantErr: true,
		},
		{
			name:    "non-positive long poll bound",
			mutate:  func(c *Config) { c.LongPollBound = 0 },
			wantErr: true,
		},
		{
			name:    "non-positive reaper period",
			mutate:  func(c *Config) { c.ReaperPeriod = 0 },
			wantErr: true,
		},
		{
			name:    "non-positive sandbox watch timeout",
			mutate:  func(c *Config) { c.SandboxWatchTimeout = 0 },
			wantErr: true,
		},
		{
			name:    "non-positive worker rate QPS",
			mutate:  func(c *Config) { c.WorkerCreateRateQPS = 0 },
			wantErr: true,
		},
		{
			name:    "non-positive worker rate burst",
			mutate:  func(c *Config) { c.WorkerCreateRateBurst = 0 },
			wantErr: true,
		},
		{
			name:    "empty namespace",
			mutate:  func(c *Config) { c.Namespace = "" },
			wantErr: true,
		},
		{
			name: "ClickHouse enabled without address",
			mutate: func(c *Config) {
				c.ClickHouseEnabled = true
				c.ClickHouseAddr = ""
			},
			wantErr: true,
		},
		{
			name: "ClickHouse enabled without database",
			mutate: func(c *Config) {
				c.ClickHouseEnabled = true
				c.ClickHouseAddr = "localhost:9000"
				c.ClickHouseDatabase = ""
			},
			wantErr: true,
		},
		{
			name: "ClickHouse invalid batch size",
			mutate: func(c *Config) {
				c.ClickHouseEnabled = true
				c.ClickHouseAddr = "localhost:9000"
				c.ClickHouseDatabase = "sessionpod"
				c.ClickHouseBatchSize = 0
			},
			wantErr: true,
		},
		{
			name: "valid ClickHouse config",
			mutate: func(c *Config) {
				c.ClickHouseEnabled = true
				c.ClickHouseAddr = "localhost:9000"
				c.ClickHouseDatabase = "sessionpod"
				c.ClickHouseBatchSize = 100
				c.ClickHouseFlushInterval = 10 * time.Second
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig() should be valid, got error: %v", err)
	}

	if cfg.GatewayPort != 8080 {
		t.Errorf("Expected GatewayPort = 8080, got %d", cfg.GatewayPort)
	}

	if cfg.IdleTimeout != 600*time.Second {
		t.Errorf("Expected IdleTimeout = 600s, got %v", cfg.IdleTimeout)
	}

	if cfg.LongPollBound != 90*time.Second {
		t.Errorf("Expected LongPollBound = 90s, got %v", cfg.LongPollBound)
	}

	if cfg.ReaperPeriod != 60*time.Second {
		t.Errorf("Expected ReaperPeriod = 60s, got %v", cfg.ReaperPeriod)
	}

	if cfg.EnableMetrics != true {
		t.Error("Expected EnableMetrics = true")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("GATEWAY_PORT", "9000")
	t.Setenv("SESSION_IDLE_TIMEOUT_SECONDS", "120")
	t.Setenv("USER_POD_NAMESPACE", "sandboxes")

	cfg := LoadFromEnv()

	if cfg.GatewayPort != 9000 {
		t.Errorf("Expected GatewayPort = 9000, got %d", cfg.GatewayPort)
	}
	if cfg.IdleTimeout != 120*time.Second {
		t.Errorf("Expected IdleTimeout = 120s, got %v", cfg.IdleTimeout)
	}
	if cfg.Namespace != "sandboxes" {
		t.Errorf("Expected Namespace = sandboxes, got %q", cfg.Namespace)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("LoadFromEnv() result should be valid, got error: %v", err)
	}
}
