package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the complete application configuration.
// Configuration is loaded from a JSON file with environment overrides
// for sensitive values.
type Config struct {
	Server     ServerConfig     `json:"server"`
	Database   DatabaseConfig   `json:"database"`
	Auth       AuthConfig       `json:"auth"`
	Simulation SimulationConfig `json:"simulation"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// Port is the HTTP server port (default: 8080)
	Port string `json:"port"`

	// Host is the server bind address (default: "0.0.0.0")
	Host string `json:"host"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	// Host is the database server hostname
	Host string `json:"host"`

	// Port is the database server port
	Port int `json:"port"`

	// Database is the database name
	Database string `json:"database"`

	// Username for database authentication
	Username string `json:"username"`

	// Password for database authentication (should be loaded from environment)
	Password string `json:"password"`

	// SSLMode for PostgreSQL connections (disable, require, verify-ca, verify-full)
	SSLMode string `json:"ssl_mode"`

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int `json:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int `json:"max_idle_conns"`
}

// AuthConfig contains token issuing settings.
type AuthConfig struct {
	// JWTSecret signs session tokens. Load from SKYLANE_JWT_SECRET in
	// production; the default is only for development.
	JWTSecret string `json:"jwt_secret"`

	// TokenDurationHours is how long issued tokens stay valid
	TokenDurationHours int `json:"token_duration_hours"`
}

// SimulationConfig contains telemetry simulation parameters.
type SimulationConfig struct {
	// SpeedMPS is the simulated ground speed in meters per second
	SpeedMPS float64 `json:"speed_mps"`

	// TelemetryIntervalSeconds is the delay between telemetry samples
	TelemetryIntervalSeconds float64 `json:"telemetry_interval_seconds"`
}

// Load reads configuration from a JSON file.
// If the file doesn't exist, returns a default configuration.
func Load(path string) (*Config, error) {
	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvironmentOverrides()
		return cfg, nil
	}

	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvironmentOverrides()

	return &cfg, nil
}

// Save writes the configuration to a JSON file.
func (c *Config) Save(path string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Marshal to JSON with indentation
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
			Host: "0.0.0.0",
		},
		Database: DatabaseConfig{
			Host:         "localhost",
			Port:         5432,
			Database:     "skylane",
			Username:     "skylane",
			SSLMode:      "disable",
			MaxOpenConns: 25,
			MaxIdleConns: 5,
		},
		Auth: AuthConfig{
			JWTSecret:          "dev-secret-change-in-production",
			TokenDurationHours: 24,
		},
		Simulation: SimulationConfig{
			SpeedMPS:                 20.0,
			TelemetryIntervalSeconds: 1.0,
		},
	}
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
// This allows sensitive data like passwords to be kept out of config files.
func (c *Config) applyEnvironmentOverrides() {
	if port := os.Getenv("SKYLANE_PORT"); port != "" {
		c.Server.Port = port
	}
	if dbPassword := os.Getenv("SKYLANE_DB_PASSWORD"); dbPassword != "" {
		c.Database.Password = dbPassword
	}
	if secret := os.Getenv("SKYLANE_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
}
