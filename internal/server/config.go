// Package server provides configuration helpers that define runtime defaults,
// layered loading, and sanitisation for the relay service.
package server

import (
	"fmt"
	"os"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"gopkg.in/yaml.v3"
)

// Config holds the server configuration. Values are layered: defaults, then an
// optional YAML file, then environment variables.
type Config struct {
	Addr             string        `env:"SERVER_ADDR" yaml:"addr"`
	AllowedOrigins   string        `env:"ALLOWED_ORIGINS" yaml:"allowed_origins"`
	MaxMessageSize   int64         `env:"MAX_MESSAGE_SIZE" yaml:"max_message_size"`
	SendBufferSize   int           `env:"SEND_BUFFER_SIZE" yaml:"send_buffer_size"`
	HandshakeTimeout time.Duration `env:"HANDSHAKE_TIMEOUT" yaml:"handshake_timeout"`
	PingInterval     time.Duration `env:"PING_INTERVAL" yaml:"ping_interval"`
	PongWait         time.Duration `env:"PONG_WAIT" yaml:"pong_wait"`
	WriteWait        time.Duration `env:"WRITE_WAIT" yaml:"write_wait"`
	ShutdownTimeout  time.Duration `env:"SHUTDOWN_TIMEOUT" yaml:"shutdown_timeout"`
	LogLevel         string        `env:"LOG_LEVEL" yaml:"log_level"`
}

func defaultConfig() Config {
	return Config{
		Addr:            ":3030",
		AllowedOrigins:  "http://localhost:3030",
		MaxMessageSize:  4096,
		SendBufferSize:  256,
		PingInterval:    54 * time.Second,
		PongWait:        60 * time.Second,
		WriteWait:       10 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		LogLevel:        "INFO",
	}
}

// NewConfig creates a Config populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// LoadConfig builds a Config from defaults, the YAML file at path (skipped
// when path is empty), and the process environment, in that order.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		if err := loadYAML(path, &cfg); err != nil {
			return nil, err
		}
	}

	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	sanitized := sanitizeConfig(cfg)
	return &sanitized, nil
}

func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	// Expand ${VAR} environment variables
	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}
	return nil
}

func sanitizeConfig(cfg Config) Config {
	defaults := defaultConfig()

	if cfg.Addr == "" {
		cfg.Addr = defaults.Addr
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaults.MaxMessageSize
	}
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = defaults.SendBufferSize
	}
	if cfg.HandshakeTimeout < 0 {
		cfg.HandshakeTimeout = 0
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = defaults.PongWait
	}
	// Pings must go out before the peer's read deadline lapses
	if cfg.PingInterval <= 0 || cfg.PingInterval >= cfg.PongWait {
		cfg.PingInterval = cfg.PongWait * 9 / 10
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = defaults.WriteWait
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = defaults.LogLevel
	}
	return cfg
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
