package config

import (
	"time"

	"github.com/astralfield/realtime/internal/logging"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `json:"server" yaml:"server" envPrefix:"SERVER_"`
	Hub       HubConfig       `json:"hub" yaml:"hub" envPrefix:"HUB_"`
	Auth      AuthConfig      `json:"auth" yaml:"auth" envPrefix:"AUTH_"`
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit" envPrefix:"RATE_LIMIT_"`
	Bus       BusConfig       `json:"bus" yaml:"bus" envPrefix:"BUS_"`
	Notify    NotifyConfig    `json:"notify" yaml:"notify" envPrefix:"NOTIFY_"`
	Persist   PersistConfig   `json:"persist" yaml:"persist" envPrefix:"PERSIST_"`
	Logging   logging.Config  `json:"logging" yaml:"logging" envPrefix:"LOG_"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `json:"host" yaml:"host" env:"HOST"`
	Port         int           `json:"port" yaml:"port" env:"PORT"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	IdleTimeout  time.Duration `json:"idle_timeout" yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
}

// HubConfig governs connection handling and fanout.
type HubConfig struct {
	NodeID           string        `json:"node_id" yaml:"node_id" env:"NODE_ID"`
	MaxConnections   int           `json:"max_connections" yaml:"max_connections" env:"MAX_CONNECTIONS"`
	SendBufferSize   int           `json:"send_buffer_size" yaml:"send_buffer_size" env:"SEND_BUFFER_SIZE"`
	HandshakeTimeout time.Duration `json:"handshake_timeout" yaml:"handshake_timeout" env:"HANDSHAKE_TIMEOUT"`
	WriteTimeout     time.Duration `json:"write_timeout" yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ReadTimeout      time.Duration `json:"read_timeout" yaml:"read_timeout" env:"READ_TIMEOUT"`
	PingInterval     time.Duration `json:"ping_interval" yaml:"ping_interval" env:"PING_INTERVAL"`
	MaxMessageSize   int64         `json:"max_message_size" yaml:"max_message_size" env:"MAX_MESSAGE_SIZE"`
	// CriticalSendWait bounds how long a critical event may block on a
	// full send buffer before the connection is treated as a slow consumer.
	CriticalSendWait time.Duration `json:"critical_send_wait" yaml:"critical_send_wait" env:"CRITICAL_SEND_WAIT"`
}

// AuthConfig configures handshake token verification.
type AuthConfig struct {
	JWTSecret string `json:"jwt_secret" yaml:"jwt_secret" env:"JWT_SECRET"`
}

// RateLimitConfig configures per-connection admission control.
type RateLimitConfig struct {
	Window    time.Duration `json:"window" yaml:"window" env:"WINDOW"`
	MaxEvents int           `json:"max_events" yaml:"max_events" env:"MAX_EVENTS"`
}

// BusConfig selects and configures the cluster bus adapter.
type BusConfig struct {
	Kind          string        `json:"kind" yaml:"kind" env:"KIND"` // memory | redis | nats
	TopicPrefix   string        `json:"topic_prefix" yaml:"topic_prefix" env:"TOPIC_PREFIX"`
	RedisAddr     string        `json:"redis_addr" yaml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword string        `json:"redis_password" yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int           `json:"redis_db" yaml:"redis_db" env:"REDIS_DB"`
	NATSURL       string        `json:"nats_url" yaml:"nats_url" env:"NATS_URL"`
	ReconnectMin  time.Duration `json:"reconnect_min" yaml:"reconnect_min" env:"RECONNECT_MIN"`
	ReconnectMax  time.Duration `json:"reconnect_max" yaml:"reconnect_max" env:"RECONNECT_MAX"`
}

// NotifyConfig configures the notification delivery pipeline.
type NotifyConfig struct {
	Interval    time.Duration   `json:"interval" yaml:"interval" env:"INTERVAL"`
	MaxAttempts int             `json:"max_attempts" yaml:"max_attempts" env:"MAX_ATTEMPTS"`
	Backoff     []time.Duration `json:"backoff" yaml:"backoff" env:"BACKOFF"`
	Retention   time.Duration   `json:"retention" yaml:"retention" env:"RETENTION"`
	BufferSize  int             `json:"buffer_size" yaml:"buffer_size" env:"BUFFER_SIZE"`
}

// PersistConfig configures the durable-storage collaborator.
type PersistConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled" env:"ENABLED"`
	PostgresURL string `json:"postgres_url" yaml:"postgres_url" env:"POSTGRES_URL"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "localhost",
			Port:         3000,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Hub: HubConfig{
			NodeID:           "",
			MaxConnections:   10000,
			SendBufferSize:   256,
			HandshakeTimeout: 10 * time.Second,
			WriteTimeout:     10 * time.Second,
			ReadTimeout:      60 * time.Second,
			PingInterval:     25 * time.Second,
			MaxMessageSize:   512 * 1024,
			CriticalSendWait: 500 * time.Millisecond,
		},
		Auth: AuthConfig{},
		RateLimit: RateLimitConfig{
			Window:    time.Minute,
			MaxEvents: 100,
		},
		Bus: BusConfig{
			Kind:         "memory",
			TopicPrefix:  "realtime",
			RedisAddr:    "localhost:6379",
			NATSURL:      "nats://localhost:4222",
			ReconnectMin: time.Second,
			ReconnectMax: time.Minute,
		},
		Notify: NotifyConfig{
			Interval:    time.Second,
			MaxAttempts: 5,
			Backoff: []time.Duration{
				time.Second,
				5 * time.Second,
				15 * time.Second,
				30 * time.Second,
				time.Minute,
			},
			Retention:  time.Hour,
			BufferSize: 10000,
		},
		Persist: PersistConfig{
			Enabled: false,
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return NewConfigError("server.port", "invalid port number")
	}

	if c.Hub.SendBufferSize <= 0 {
		return NewConfigError("hub.send_buffer_size", "must be positive")
	}

	if c.Hub.HandshakeTimeout <= 0 {
		return NewConfigError("hub.handshake_timeout", "must be positive")
	}

	if c.Auth.JWTSecret == "" {
		return NewConfigError("auth.jwt_secret", "required")
	}

	if c.RateLimit.Window <= 0 || c.RateLimit.MaxEvents <= 0 {
		return NewConfigError("rate_limit", "window and max_events must be positive")
	}

	switch c.Bus.Kind {
	case "memory", "redis", "nats":
	default:
		return NewConfigError("bus.kind", "must be one of memory, redis, nats")
	}

	if c.Notify.MaxAttempts <= 0 {
		return NewConfigError("notify.max_attempts", "must be positive")
	}

	if c.Persist.Enabled && c.Persist.PostgresURL == "" {
		return NewConfigError("persist.postgres_url", "required when persistence is enabled")
	}

	return nil
}
