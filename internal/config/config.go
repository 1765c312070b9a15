// Package config provides hierarchical configuration loading for taskbridge.
// Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Config holds all runtime configuration for the taskbridge service.
type Config struct {
	Server    Server    `yaml:"server"`
	NATS      NATS      `yaml:"nats"`
	Remote    Remote    `yaml:"remote"`
	Breaker   Breaker   `yaml:"breaker"`
	Scheduler Scheduler `yaml:"scheduler"`
	Postgres  Postgres  `yaml:"postgres"`
	Cache     Cache     `yaml:"cache"`
	Logging   Logging   `yaml:"logging"`
	OTEL      OTEL      `yaml:"otel"`
	MCP       MCP       `yaml:"mcp"`
}

// Server holds HTTP server configuration.
type Server struct {
	Port       string `yaml:"port"`
	CORSOrigin string `yaml:"cors_origin"`
}

// NATS holds JetStream connection and consumer configuration.
type NATS struct {
	URL            string        `yaml:"url"`
	User           string        `yaml:"user"`
	Password       string        `yaml:"password"`
	Stream         string        `yaml:"stream"`          // durable stream name (default: "TOOLS")
	Subject        string        `yaml:"subject"`         // tool request subject (default: "tools.request")
	Durable        string        `yaml:"durable"`         // durable consumer name
	AckWait        time.Duration `yaml:"ack_wait"`        // redelivery window for unacked messages
	ConnectBackoff time.Duration `yaml:"connect_backoff"` // wait after connection-level errors (default: 5s)
	ConsumeBackoff time.Duration `yaml:"consume_backoff"` // wait after unexpected consume errors (default: 10s)
}

// Remote holds remote agent delegation configuration.
type Remote struct {
	AgentURLs  map[string]string `yaml:"agent_urls"` // tool name -> agent card base URL
	Timeout    time.Duration     `yaml:"timeout"`
	Language   string            `yaml:"language"`
	FenceBegin string            `yaml:"fence_begin"`
	FenceEnd   string            `yaml:"fence_end"`
	ExcerptLen int               `yaml:"excerpt_len"` // runes of offending text kept in failure messages
}

// Breaker holds circuit breaker configuration for remote endpoints.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Scheduler holds task execution scheduler configuration.
type Scheduler struct {
	QueueSize   int `yaml:"queue_size"`
	MaxParallel int `yaml:"max_parallel"`
}

// Postgres holds the optional PostgreSQL configuration backing local tools.
// An empty DSN disables the translator tool.
type Postgres struct {
	DSN             string        `yaml:"dsn"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
	HealthCheck     time.Duration `yaml:"health_check"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`
}

// Cache holds the L1 cache configuration for poll responses.
type Cache struct {
	L1MaxSizeMB int64         `yaml:"l1_max_size_mb"`
	TTL         time.Duration `yaml:"ttl"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
	Async   bool   `yaml:"async"`
}

// OTEL holds OpenTelemetry export configuration.
type OTEL struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
	Insecure    bool   `yaml:"insecure"`
}

// MCP holds MCP server configuration.
type MCP struct {
	Enabled bool   `yaml:"enabled"`
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	APIKey  string `yaml:"api_key"` // empty disables auth
}

// Defaults returns a Config with sensible default values for local development.
func Defaults() Config {
	return Config{
		Server: Server{
			Port:       "10072",
			CORSOrigin: "*",
		},
		NATS: NATS{
			URL:            "nats://localhost:4222",
			Stream:         "TOOLS",
			Subject:        "tools.request",
			Durable:        "taskbridge",
			AckWait:        30 * time.Second,
			ConnectBackoff: 5 * time.Second,
			ConsumeBackoff: 10 * time.Second,
		},
		Remote: Remote{
			AgentURLs:  map[string]string{},
			Timeout:    120 * time.Second,
			Language:   "chinese",
			FenceBegin: "```JSONCARD",
			FenceEnd:   "```",
			ExcerptLen: 200,
		},
		Breaker: Breaker{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		},
		Scheduler: Scheduler{
			QueueSize:   256,
			MaxParallel: 32,
		},
		Postgres: Postgres{
			MaxConns:        5,
			MinConns:        1,
			MaxConnLifetime: time.Hour,
			MaxConnIdleTime: 10 * time.Minute,
			HealthCheck:     time.Minute,
			QueryTimeout:    10 * time.Second,
		},
		Cache: Cache{
			L1MaxSizeMB: 16,
			TTL:         10 * time.Minute,
		},
		Logging: Logging{
			Level:   "info",
			Service: "taskbridge",
		},
		OTEL: OTEL{
			Endpoint:    "localhost:4317",
			ServiceName: "taskbridge",
			Insecure:    true,
		},
		MCP: MCP{
			Enabled: true,
			Name:    "taskbridge",
			Version: "0.1.0",
		},
	}
}
