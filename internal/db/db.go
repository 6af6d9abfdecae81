// Package db provides PostgreSQL persistence for Skylane.
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/skylane-uas/skylane/pkg/config"
)

//go:embed schema.sql
var schemaSQL embed.FS

// DB wraps a database connection with helper methods.
type DB struct {
	*sql.DB
	config config.DatabaseConfig
}

// Connect establishes a connection to the PostgreSQL database.
func Connect(cfg config.DatabaseConfig) (*DB, error) {
	// Build connection string
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.Username,
		cfg.Password,
		cfg.Database,
		cfg.SSLMode,
	)

	// Open connection
	sqlDB, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{
		DB:     sqlDB,
		config: cfg,
	}

	return db, nil
}

// InitSchema creates or updates the database schema.
// This should be called once at application startup.
func (db *DB) InitSchema(ctx context.Context) error {
	// Read schema SQL
	schemaBytes, err := schemaSQL.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}

	// Execute schema
	if _, err := db.ExecContext(ctx, string(schemaBytes)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

// GetStats returns datastore statistics for the system status endpoint.
func (db *DB) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var pendingCount int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM flight_plans WHERE status = 'PENDING' AND deleted_at IS NULL`,
	).Scan(&pendingCount)
	if err != nil {
		return nil, err
	}
	stats["pending_flight_plans"] = pendingCount

	var activeCount int
	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM flight_plans WHERE status = 'ACTIVE' AND deleted_at IS NULL`,
	).Scan(&activeCount)
	if err != nil {
		return nil, err
	}
	stats["active_flights"] = activeCount

	var zoneCount int
	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM restricted_zones WHERE is_active = TRUE`,
	).Scan(&zoneCount)
	if err != nil {
		return nil, err
	}
	stats["active_restricted_zones"] = zoneCount

	return stats, nil
}
