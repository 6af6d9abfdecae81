package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// TestDefaultConfig verifies that DefaultConfig returns valid defaults.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Port != "8080" {
		t.Errorf("Expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Expected default host 0.0.0.0, got %s", cfg.Server.Host)
	}

	if cfg.Database.Port != 5432 {
		t.Errorf("Expected default postgres port 5432, got %d", cfg.Database.Port)
	}
	if cfg.Database.Database != "skylane" {
		t.Errorf("Expected database skylane, got %s", cfg.Database.Database)
	}
	if cfg.Database.MaxOpenConns <= 0 {
		t.Error("Expected a positive connection pool size")
	}

	if cfg.Auth.JWTSecret == "" {
		t.Error("Expected a non-empty development JWT secret")
	}
	if cfg.Auth.TokenDurationHours != 24 {
		t.Errorf("Expected 24 hour tokens, got %d", cfg.Auth.TokenDurationHours)
	}

	if cfg.Simulation.SpeedMPS != 20.0 {
		t.Errorf("Expected 20 m/s simulation speed, got %v", cfg.Simulation.SpeedMPS)
	}
	if cfg.Simulation.TelemetryIntervalSeconds != 1.0 {
		t.Errorf("Expected 1s telemetry interval, got %v", cfg.Simulation.TelemetryIntervalSeconds)
	}
}

// TestLoadMissingFile verifies defaults are returned when the config file
// doesn't exist.
func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load() error for a missing file: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Expected default port for a missing file, got %s", cfg.Server.Port)
	}
}

// TestLoadFromFile verifies parsing a config file.
func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"server": {"port": "9090", "host": "127.0.0.1"},
		"database": {"host": "db.internal", "port": 5433, "database": "skylane_test"},
		"auth": {"jwt_secret": "file-secret", "token_duration_hours": 2},
		"simulation": {"speed_mps": 40, "telemetry_interval_seconds": 0.5}
	}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Database.Host != "db.internal" {
		t.Errorf("Expected host db.internal, got %s", cfg.Database.Host)
	}
	if cfg.Auth.JWTSecret != "file-secret" {
		t.Errorf("Expected jwt secret from file, got %s", cfg.Auth.JWTSecret)
	}
	if cfg.Simulation.SpeedMPS != 40 {
		t.Errorf("Expected speed 40, got %v", cfg.Simulation.SpeedMPS)
	}
	if cfg.Simulation.TelemetryIntervalSeconds != 0.5 {
		t.Errorf("Expected interval 0.5, got %v", cfg.Simulation.TelemetryIntervalSeconds)
	}
}

// TestLoadInvalidJSON verifies a malformed file is an error, not a
// silent fall back to defaults.
func TestLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() accepted malformed JSON")
	}
}

// TestEnvironmentOverrides verifies env vars win over file values.
func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("SKYLANE_PORT", "7070")
	t.Setenv("SKYLANE_DB_PASSWORD", "env-password")
	t.Setenv("SKYLANE_JWT_SECRET", "env-secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("Expected env port 7070, got %s", cfg.Server.Port)
	}
	if cfg.Database.Password != "env-password" {
		t.Errorf("Expected env password, got %s", cfg.Database.Password)
	}
	if cfg.Auth.JWTSecret != "env-secret" {
		t.Errorf("Expected env secret, got %s", cfg.Auth.JWTSecret)
	}
}

// TestSaveAndReload verifies a saved config round-trips.
func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := DefaultConfig()
	cfg.Server.Port = "8181"
	cfg.Database.Database = "skylane_saved"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	// The saved file is valid JSON with the expected shape.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read saved config: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Saved config is not valid JSON: %v", err)
	}
	for _, key := range []string{"server", "database", "auth", "simulation"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("Saved config missing %q section", key)
		}
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if loaded.Server.Port != "8181" {
		t.Errorf("Round-trip port = %s, want 8181", loaded.Server.Port)
	}
	if loaded.Database.Database != "skylane_saved" {
		t.Errorf("Round-trip database = %s, want skylane_saved", loaded.Database.Database)
	}
}
