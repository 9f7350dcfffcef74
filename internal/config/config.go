package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the system-wide settings root.
type Config struct {
	Store   *StoreConfig   `json:"store"`
	HTTP    *HTTPConfig    `json:"http"`
	Gateway *GatewayConfig `json:"gateway"`
}

// StoreConfig holds document store settings.
type StoreConfig struct {
	Path         string        `json:"path"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// HTTPConfig holds the HTTP listener settings. There is no write timeout:
// the listener serves long-lived WebSockets, which a server write timeout
// would sever.
type HTTPConfig struct {
	Port        int           `json:"port"`
	Host        string        `json:"host"`
	ReadTimeout time.Duration `json:"read_timeout"`
}

// GatewayConfig holds WebSocket gateway settings. OwnerLabel is the display
// name written on rooms created through this server.
type GatewayConfig struct {
	OwnerLabel   string        `json:"owner_label"`
	PingInterval time.Duration `json:"ping_interval"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	BufferSize   int           `json:"buffer_size"`
}

// DefaultConfig returns classroom-sized defaults.
func DefaultConfig() *Config {
	return &Config{
		Store: &StoreConfig{
			Path:         "./data/liveclass.db",
			WriteTimeout: 30 * time.Second,
		},
		HTTP: &HTTPConfig{
			Port:        8080,
			Host:        "0.0.0.0",
			ReadTimeout: 30 * time.Second,
		},
		Gateway: &GatewayConfig{
			OwnerLabel:   "Professor",
			PingInterval: 30 * time.Second,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 10 * time.Second,
			BufferSize:   100,
		},
	}
}

// Validate rejects configurations that would fail at runtime.
func (c *Config) Validate() error {
	if c.Store == nil {
		return fmt.Errorf("store configuration is required")
	}

	if c.Store.Path == "" {
		return fmt.Errorf("store path cannot be empty")
	}

	if c.Store.WriteTimeout <= 0 {
		return fmt.Errorf("store write timeout must be positive")
	}

	if c.HTTP == nil {
		return fmt.Errorf("HTTP configuration is required")
	}

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}

	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}

	if c.HTTP.ReadTimeout <= 0 {
		return fmt.Errorf("HTTP read timeout must be positive")
	}

	if c.Gateway == nil {
		return fmt.Errorf("gateway configuration is required")
	}

	if c.Gateway.OwnerLabel == "" {
		return fmt.Errorf("gateway owner label cannot be empty")
	}

	if c.Gateway.PingInterval <= 0 {
		return fmt.Errorf("gateway ping interval must be positive")
	}

	if c.Gateway.ReadTimeout <= 0 {
		return fmt.Errorf("gateway read timeout must be positive")
	}

	if c.Gateway.WriteTimeout <= 0 {
		return fmt.Errorf("gateway write timeout must be positive")
	}

	if c.Gateway.BufferSize <= 0 {
		return fmt.Errorf("gateway buffer size must be positive")
	}

	return nil
}

// Load builds the runtime configuration: defaults, then a .env file when
// present, then LIVECLASS_* environment variables. Missing .env is not an
// error; explicit environment always wins because godotenv never
// overwrites set variables.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env: %v\n", err)
	}

	config := DefaultConfig()

	if path := os.Getenv("LIVECLASS_STORE_PATH"); path != "" {
		config.Store.Path = path
	}

	if timeout := os.Getenv("LIVECLASS_STORE_WRITE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Store.WriteTimeout = d
		}
	}

	if port := os.Getenv("LIVECLASS_HTTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.HTTP.Port = p
		}
	}

	if host := os.Getenv("LIVECLASS_HTTP_HOST"); host != "" {
		config.HTTP.Host = host
	}

	if readTimeout := os.Getenv("LIVECLASS_HTTP_READ_TIMEOUT"); readTimeout != "" {
		if d, err := time.ParseDuration(readTimeout); err == nil {
			config.HTTP.ReadTimeout = d
		}
	}

	if label := os.Getenv("LIVECLASS_OWNER_LABEL"); label != "" {
		config.Gateway.OwnerLabel = label
	}

	if interval := os.Getenv("LIVECLASS_GATEWAY_PING_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			config.Gateway.PingInterval = d
		}
	}

	if readTimeout := os.Getenv("LIVECLASS_GATEWAY_READ_TIMEOUT"); readTimeout != "" {
		if d, err := time.ParseDuration(readTimeout); err == nil {
			config.Gateway.ReadTimeout = d
		}
	}

	if writeTimeout := os.Getenv("LIVECLASS_GATEWAY_WRITE_TIMEOUT"); writeTimeout != "" {
		if d, err := time.ParseDuration(writeTimeout); err == nil {
			config.Gateway.WriteTimeout = d
		}
	}

	if bufferSize := os.Getenv("LIVECLASS_GATEWAY_BUFFER_SIZE"); bufferSize != "" {
		if size, err := strconv.Atoi(bufferSize); err == nil {
			config.Gateway.BufferSize = size
		}
	}

	return config
}
