package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds configuration shared across the gateway, worker, and reaper
// binaries. Each binary reads only the fields it needs.
type Config struct {
	// State store (Redis) configuration
	StoreAddr     string
	StorePassword string
	StoreDB       int

	// Message broker (RabbitMQ) configuration
	QueueHost     string
	QueueUser     string
	QueuePassword string

	// Orchestrator (Kubernetes) configuration
	Namespace   string
	SandboxImage string
	SandboxPort  int32
	K8sClientQPS   float32
	K8sClientBurst int

	// Session lifecycle configuration
	IdleTimeout         time.Duration
	LongPollBound       time.Duration
	LongPollInterval    time.Duration
	ReaperPeriod        time.Duration
	SandboxWatchTimeout time.Duration

	// Gateway configuration
	GatewayPort   int
	ProxyTimeout  time.Duration

	// Worker configuration
	WorkerCreateRateQPS   float64
	WorkerCreateRateBurst int

	// Operator-style feature flags
	EnableMetrics bool
	MetricsAddr   string
	ProbeAddr     string

	// ClickHouse audit configuration
	ClickHouseEnabled       bool
	ClickHouseAddr          string
	ClickHouseDatabase      string
	ClickHouseUsername      string
	ClickHousePassword      string
	ClickHouseBatchSize     int
	ClickHouseFlushInterval time.Duration

	// Tracing
	OTelServiceName string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		StoreAddr:     "redis-master:6379",
		StorePassword: "",
		StoreDB:       0,

		QueueHost:     "rabbitmq-service",
		QueueUser:     "admin",
		QueuePassword: "admin",

		Namespace:      "default",
		SandboxImage:   "httpd:2.4-alpine",
		SandboxPort:    80,
		K8sClientQPS:   50,
		K8sClientBurst: 100,

		IdleTimeout:         600 * time.Second,
		LongPollBound:       90 * time.Second,
		LongPollInterval:    500 * time.Millisecond,
		ReaperPeriod:        60 * time.Second,
		SandboxWatchTimeout: 60 * time.Second,

		GatewayPort:  8080,
		ProxyTimeout: 60 * time.Second,

		WorkerCreateRateQPS:   5,
		WorkerCreateRateBurst: 10,

		EnableMetrics: true,
		MetricsAddr:   ":9090",
		ProbeAddr:     ":8081",

		ClickHouseEnabled:       false,
		ClickHouseAddr:          "localhost:9000",
		ClickHouseDatabase:      "sessionpod",
		ClickHouseUsername:      "default",
		ClickHousePassword:      "",
		ClickHouseBatchSize:     100,
		ClickHouseFlushInterval: 10 * time.Second,

		OTelServiceName: "sessionpod",
	}
}

// LoadFromEnv loads configuration from environment variables, falling back
// to DefaultConfig for anything unset.
func LoadFromEnv() *Config {
	cfg := DefaultConfig()

	if v := os.Getenv("REDIS_HOST"); v != "" {
		cfg.StoreAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.StorePassword = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.StoreDB = n
		}
	}

	if v := os.Getenv("RABBITMQ_HOST"); v != "" {
		cfg.QueueHost = v
	}
	if v := os.Getenv("RABBITMQ_USER"); v != "" {
		cfg.QueueUser = v
	}
	if v := os.Getenv("RABBITMQ_PASSWORD"); v != "" {
		cfg.QueuePassword = v
	}

	if v := os.Getenv("USER_POD_NAMESPACE"); v != "" {
		cfg.Namespace = v
	}
	if v := os.Getenv("SANDBOX_IMAGE"); v != "" {
		cfg.SandboxImage = v
	}
	if v := os.Getenv("SANDBOX_PORT"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			cfg.SandboxPort = int32(n)
		}
	}
	if v := os.Getenv("K8S_CLIENT_QPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.K8sClientQPS = float32(f)
		}
	}
	if v := os.Getenv("K8S_CLIENT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.K8sClientBurst = n
		}
	}

	if v := os.Getenv("SESSION_IDLE_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.IdleTimeout = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("GATEWAY_LONG_POLL_SECONDS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.LongPollBound = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("REAPER_PERIOD_SECONDS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.ReaperPeriod = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("SANDBOX_WATCH_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.SandboxWatchTimeout = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("GATEWAY_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.GatewayPort = n
		}
	}
	if v := os.Getenv("GATEWAY_PROXY_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.ProxyTimeout = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("WORKER_CREATE_RATE_QPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.WorkerCreateRateQPS = f
		}
	}
	if v := os.Getenv("WORKER_CREATE_RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.WorkerCreateRateBurst = n
		}
	}

	if v := os.Getenv("ENABLE_METRICS"); v == "false" {
		cfg.EnableMetrics = false
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("PROBE_ADDR"); v != "" {
		cfg.ProbeAddr = v
	}

	if v := os.Getenv("CLICKHOUSE_ENABLED"); v == "true" {
		cfg.ClickHouseEnabled = true
	}
	if v := os.Getenv("CLICKHOUSE_ADDR"); v != "" {
		cfg.ClickHouseAddr = v
	}
	if v := os.Getenv("CLICKHOUSE_DATABASE"); v != "" {
		cfg.ClickHouseDatabase = v
	}
	if v := os.Getenv("CLICKHOUSE_USERNAME"); v != "" {
		cfg.ClickHouseUsername = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		cfg.ClickHousePassword = v
	}
	if v := os.Getenv("CLICKHOUSE_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ClickHouseBatchSize = n
		}
	}
	if v := os.Getenv("CLICKHOUSE_FLUSH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ClickHouseFlushInterval = d
		}
	}

	if v := os.Getenv("OTEL_SERVICE_NAME"); v != "" {
		cfg.OTelServiceName = v
	}

	return cfg
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.GatewayPort < 1 || c.GatewayPort > 65535 {
		return fmt.Errorf("invalid gateway port: %d (must be 1-65535)", c.GatewayPort)
	}

	if c.SandboxPort < 1 || c.SandboxPort > 65535 {
		return fmt.Errorf("invalid sandbox port: %d (must be 1-65535)", c.SandboxPort)
	}

	if c.IdleTimeout <= 0 {
		return fmt.Errorf("session idle timeout must be positive: %v", c.IdleTimeout)
	}

	if c.LongPollBound <= 0 {
		return fmt.Errorf("gateway long poll bound must be positive: %v", c.LongPollBound)
	}

	if c.LongPollInterval <= 0 {
		return fmt.Errorf("gateway long poll interval must be positive: %v", c.LongPollInterval)
	}

	if c.ReaperPeriod <= 0 {
		return fmt.Errorf("reaper period must be positive: %v", c.ReaperPeriod)
	}

	if c.SandboxWatchTimeout <= 0 {
		return fmt.Errorf("sandbox watch timeout must be positive: %v", c.SandboxWatchTimeout)
	}

	if c.ProxyTimeout <= 0 {
		return fmt.Errorf("gateway proxy timeout must be positive: %v", c.ProxyTimeout)
	}

	if c.WorkerCreateRateQPS <= 0 {
		return fmt.Errorf("worker create rate QPS must be positive: %v", c.WorkerCreateRateQPS)
	}

	if c.WorkerCreateRateBurst < 1 {
		return fmt.Errorf("worker create rate burst must be positive: %d", c.WorkerCreateRateBurst)
	}

	if c.Namespace == "" {
		return fmt.Errorf("namespace must not be empty")
	}

	if c.ClickHouseEnabled {
		if c.ClickHouseAddr == "" {
			return fmt.Errorf("ClickHouse address is required when ClickHouse is enabled")
		}
		if c.ClickHouseDatabase == "" {
			return fmt.Errorf("ClickHouse database name is required when ClickHouse is enabled")
		}
		if c.ClickHouseBatchSize < 1 {
			return fmt.Errorf("ClickHouse batch size must be positive: %d", c.ClickHouseBatchSize)
		}
		if c.ClickHouseFlushInterval <= 0 {
			return fmt.Errorf("ClickHouse flush interval must be positive: %v", c.ClickHouseFlushInterval)
		}
	}

	return nil
}
