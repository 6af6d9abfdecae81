package db

import (
	"context"
	"log"
	"time"

	"github.com/skylane-uas/skylane/pkg/config"
)

// ReconnectWithRetry attempts to connect to the database with exponential
// backoff. This provides resilience against the database coming up after
// the server (common under container orchestration).
//
// maxRetries of 0 retries forever.
func ReconnectWithRetry(cfg config.DatabaseConfig, maxRetries int, initialDelay time.Duration) (*DB, error) {
	delay := initialDelay
	attempt := 0

	for {
		attempt++

		log.Printf("Database connection attempt %d...", attempt)

		db, err := Connect(cfg)
		if err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			pingErr := db.PingContext(ctx)
			cancel()

			if pingErr == nil {
				log.Println("✓ Database connected")
				return db, nil
			}

			db.Close()
			err = pingErr
		}

		if maxRetries > 0 && attempt >= maxRetries {
			log.Printf("Failed to connect after %d attempts", attempt)
			return nil, err
		}

		log.Printf("Connection failed: %v (retry in %v)", err, delay)
		time.Sleep(delay)

		// Exponential backoff with cap at 60 seconds
		delay *= 2
		if delay > 60*time.Second {
			delay = 60 * time.Second
		}
	}
}

// HealthCheck reports whether the database is reachable and answering
// queries. Used by the health endpoint.
func HealthCheck(db *DB) bool {
	if db == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		log.Printf("Health check failed - ping error: %v", err)
		return false
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		log.Printf("Health check failed - query error: %v", err)
		return false
	}

	return result == 1
}
