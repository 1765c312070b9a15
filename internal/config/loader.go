package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "taskbridge.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "TASKBRIDGE_PORT")
	setString(&cfg.Server.CORSOrigin, "TASKBRIDGE_CORS_ORIGIN")

	// NATS
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.User, "NATS_USER")
	setString(&cfg.NATS.Password, "NATS_PASSWORD")
	setString(&cfg.NATS.Stream, "TASKBRIDGE_NATS_STREAM")
	setString(&cfg.NATS.Subject, "TASKBRIDGE_NATS_SUBJECT")
	setString(&cfg.NATS.Durable, "TASKBRIDGE_NATS_DURABLE")
	setDuration(&cfg.NATS.AckWait, "TASKBRIDGE_NATS_ACK_WAIT")
	setDuration(&cfg.NATS.ConnectBackoff, "TASKBRIDGE_CONNECT_BACKOFF")
	setDuration(&cfg.NATS.ConsumeBackoff, "TASKBRIDGE_CONSUME_BACKOFF")

	// Remote agents
	setStringMap(cfg.Remote.AgentURLs, "TASKBRIDGE_AGENT_URLS")
	setMapEntry(cfg.Remote.AgentURLs, "translator", "TRANSLATOR_AGENT_URL")
	setMapEntry(cfg.Remote.AgentURLs, "ppt_generator", "PPT_AGENT_URL")
	setDuration(&cfg.Remote.Timeout, "TASKBRIDGE_REMOTE_TIMEOUT")
	setString(&cfg.Remote.Language, "TASKBRIDGE_REMOTE_LANGUAGE")
	setString(&cfg.Remote.FenceBegin, "TASKBRIDGE_FENCE_BEGIN")
	setString(&cfg.Remote.FenceEnd, "TASKBRIDGE_FENCE_END")
	setInt(&cfg.Remote.ExcerptLen, "TASKBRIDGE_EXCERPT_LEN")

	setInt(&cfg.Breaker.MaxFailures, "TASKBRIDGE_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "TASKBRIDGE_BREAKER_TIMEOUT")

	setInt(&cfg.Scheduler.QueueSize, "TASKBRIDGE_SCHED_QUEUE_SIZE")
	setInt(&cfg.Scheduler.MaxParallel, "TASKBRIDGE_SCHED_MAX_PARALLEL")

	// Postgres
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "TASKBRIDGE_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "TASKBRIDGE_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "TASKBRIDGE_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "TASKBRIDGE_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "TASKBRIDGE_PG_HEALTH_CHECK")
	setDuration(&cfg.Postgres.QueryTimeout, "TASKBRIDGE_PG_QUERY_TIMEOUT")

	// Cache
	setInt64(&cfg.Cache.L1MaxSizeMB, "TASKBRIDGE_CACHE_L1_SIZE_MB")
	setDuration(&cfg.Cache.TTL, "TASKBRIDGE_CACHE_TTL")

	setString(&cfg.Logging.Level, "TASKBRIDGE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "TASKBRIDGE_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "TASKBRIDGE_LOG_ASYNC")

	setBool(&cfg.OTEL.Enabled, "TASKBRIDGE_OTEL_ENABLED")
	setString(&cfg.OTEL.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.OTEL.ServiceName, "OTEL_SERVICE_NAME")
	setBool(&cfg.OTEL.Insecure, "TASKBRIDGE_OTEL_INSECURE")

	setBool(&cfg.MCP.Enabled, "TASKBRIDGE_MCP_ENABLED")
	setString(&cfg.MCP.APIKey, "TASKBRIDGE_MCP_API_KEY")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	if cfg.NATS.Stream == "" || cfg.NATS.Subject == "" {
		return errors.New("nats.stream and nats.subject are required")
	}
	if cfg.NATS.ConnectBackoff <= 0 || cfg.NATS.ConsumeBackoff <= 0 {
		return errors.New("nats backoff intervals must be > 0")
	}
	if cfg.Remote.Timeout <= 0 {
		return errors.New("remote.timeout must be > 0")
	}
	if cfg.Remote.FenceBegin == "" || cfg.Remote.FenceEnd == "" {
		return errors.New("remote fence markers are required")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Scheduler.QueueSize < 1 {
		return errors.New("scheduler.queue_size must be >= 1")
	}
	if cfg.Scheduler.MaxParallel < 1 {
		return errors.New("scheduler.max_parallel must be >= 1")
	}
	if cfg.Postgres.DSN != "" && cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// setStringMap merges "name=value,name=value" pairs into dst.
func setStringMap(dst map[string]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	for _, pair := range strings.Split(v, ",") {
		name, val, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || name == "" || val == "" {
			continue
		}
		dst[name] = val
	}
}

func setMapEntry(dst map[string]string, name, key string) {
	if v := os.Getenv(key); v != "" {
		dst[name] = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
