package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Auth          AuthConfig
	Host          HostConfig
	Provisioning  ProvisioningConfig
	FreeTier      FreeTierConfig
	Terminal      TerminalConfig
	Observability ObservabilityConfig
	RateLimit     RateLimitConfig
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	CORSOrigins  []string

	// RequestTimeout bounds one API request, including the host calls of a
	// synchronous create or terminate.
	RequestTimeout time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver          string // postgres, memory
	Host            string
	Port            string
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	SeedFile        string // fixtures loaded into the memory driver at startup
}

// AuthConfig holds bearer token verification settings
type AuthConfig struct {
	JWTSecret string
	Issuer    string
	Audience  string
	TokenTTL  time.Duration
}

// HostConfig holds the virtualization host control channel settings
type HostConfig struct {
	Driver         string // ssh, noop
	Address        string
	Port           int
	User           string
	KeyPath        string
	KnownHostsPath string
	DialTimeout    time.Duration
	DialAttempts   int
	CommandTimeout time.Duration
	ImageCatalog   string
	ShellUser      string
}

// ProvisioningConfig holds orchestrator execution settings
type ProvisioningConfig struct {
	Mode        string // sync, detached
	MaxBulk     int
	Concurrency int
}

// FreeTierConfig describes the complimentary instance shape
type FreeTierConfig struct {
	Image string
	Plan  string
	CPU   int
	RAM   int
	Disk  int
}

// TerminalConfig holds interactive shell settings
type TerminalConfig struct {
	Cols           int
	Rows           int
	Term           string
	AllowedOrigins []string
}

// ObservabilityConfig holds logging and tracing configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string
	OTELEnabled    bool
	ServiceName    string
	ServiceVersion string
}

const (
	hostCallsPerRequest = 8
	requestSlack        = 30 * time.Second
)

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:        getEnv("SERVER_HOST", "0.0.0.0"),
			Port:        getEnv("SERVER_PORT", "4000"),
			ReadTimeout: parseDuration("SERVER_READ_TIMEOUT", "15s"),
			IdleTimeout: parseDuration("SERVER_IDLE_TIMEOUT", "60s"),
			CORSOrigins: parseList("CORS_ORIGIN"),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("STORE_DRIVER", "postgres"),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "cybercode"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "cybercode_db"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    parseInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    parseInt("DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: parseDuration("DB_CONN_MAX_LIFETIME", "5m"),
			SeedFile:        getEnv("STORE_SEED_FILE", ""),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			Issuer:    getEnv("JWT_ISSUER", ""),
			Audience:  getEnv("JWT_AUDIENCE", ""),
			TokenTTL:  parseDuration("JWT_TTL", "168h"),
		},
		Host: HostConfig{
			Driver:         getEnv("HOST_DRIVER", "ssh"),
			Address:        getEnv("HOST_ADDRESS", ""),
			Port:           parseInt("HOST_PORT", 22),
			User:           getEnv("HOST_USER", "c3cloud"),
			KeyPath:        getEnv("HOST_KEY_PATH", ""),
			KnownHostsPath: getEnv("HOST_KNOWN_HOSTS", ""),
			DialTimeout:    parseDuration("HOST_DIAL_TIMEOUT", "5s"),
			DialAttempts:   parseInt("HOST_DIAL_ATTEMPTS", 3),
			CommandTimeout: parseDuration("HOST_COMMAND_TIMEOUT", "60s"),
			ImageCatalog:   getEnv("HOST_IMAGE_CATALOG", ""),
			ShellUser:      getEnv("HOST_SHELL_USER", "c3user"),
		},
		Provisioning: ProvisioningConfig{
			Mode:        getEnv("PROVISION_MODE", "sync"),
			MaxBulk:     parseInt("PROVISION_MAX_BULK", 5),
			Concurrency: parseInt("PROVISION_CONCURRENCY", 4),
		},
		FreeTier: FreeTierConfig{
			Image: getEnv("FREE_TIER_IMAGE", "ubuntu-22.04"),
			Plan:  getEnv("FREE_TIER_PLAN", "student"),
			CPU:   parseInt("FREE_TIER_CPU", 1),
			RAM:   parseInt("FREE_TIER_RAM", 1),
			Disk:  parseInt("FREE_TIER_DISK", 2),
		},
		Terminal: TerminalConfig{
			Cols:           parseInt("TERMINAL_COLS", 120),
			Rows:           parseInt("TERMINAL_ROWS", 30),
			Term:           getEnv("TERMINAL_TERM", "xterm-color"),
			AllowedOrigins: parseList("TERMINAL_ALLOWED_ORIGINS"),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			OTELEnabled:    parseBool("OTEL_ENABLED", false),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "cybercode-cloud"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "0.1.0"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: float64(parseInt("RATELIMIT_RPS", 10)),
			Burst:             parseInt("RATELIMIT_BURST", 20),
		},
	}

	// A launch issues several host commands in a row, each bounded by
	// HOST_COMMAND_TIMEOUT; the request and write deadlines sit above that.
	budget := hostCallsPerRequest*cfg.Host.CommandTimeout + requestSlack
	cfg.Server.RequestTimeout = parseDuration("SERVER_REQUEST_TIMEOUT", budget.String())
	cfg.Server.WriteTimeout = parseDuration("SERVER_WRITE_TIMEOUT", (cfg.Server.RequestTimeout + requestSlack).String())

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	switch c.Database.Driver {
	case "postgres":
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required")
		}
	case "memory":
	default:
		return fmt.Errorf("STORE_DRIVER must be postgres or memory, got %q", c.Database.Driver)
	}

	switch c.Host.Driver {
	case "ssh":
		if c.Host.Address == "" {
			return fmt.Errorf("HOST_ADDRESS is required")
		}
		if c.Host.KeyPath == "" {
			return fmt.Errorf("HOST_KEY_PATH is required")
		}
		if c.Host.KnownHostsPath == "" {
			return fmt.Errorf("HOST_KNOWN_HOSTS is required")
		}
	case "noop":
	default:
		return fmt.Errorf("HOST_DRIVER must be ssh or noop, got %q", c.Host.Driver)
	}
	if c.Host.CommandTimeout <= 0 {
		return fmt.Errorf("HOST_COMMAND_TIMEOUT must be positive")
	}
	if c.Server.RequestTimeout <= c.Host.CommandTimeout {
		return fmt.Errorf("SERVER_REQUEST_TIMEOUT must exceed HOST_COMMAND_TIMEOUT")
	}
	if c.Server.WriteTimeout <= c.Server.RequestTimeout {
		return fmt.Errorf("SERVER_WRITE_TIMEOUT must exceed SERVER_REQUEST_TIMEOUT")
	}

	if c.Provisioning.Mode != "sync" && c.Provisioning.Mode != "detached" {
		return fmt.Errorf("PROVISION_MODE must be sync or detached, got %q", c.Provisioning.Mode)
	}
	if c.Provisioning.MaxBulk < 1 {
		return fmt.Errorf("PROVISION_MAX_BULK must be at least 1")
	}
	if c.Provisioning.Concurrency < 1 {
		return fmt.Errorf("PROVISION_CONCURRENCY must be at least 1")
	}

	if c.FreeTier.CPU < 1 || c.FreeTier.RAM < 1 || c.FreeTier.Disk < 1 {
		return fmt.Errorf("free tier sizes must be positive")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func parseBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	d, err := time.ParseDuration(value)
	if err != nil {
		d, _ = time.ParseDuration(defaultValue)
	}
	return d
}

func parseList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
