package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/unklstewy/opensky-overlay/pkg/config"
)

// ReconnectWithRetry connects to the database with exponential backoff.
// This provides resilience against temporary database outages at startup.
//
// Parameters:
//   - cfg: Database configuration
//   - maxRetries: Maximum number of connection attempts (0 = until ctx ends)
//   - initialDelay: Initial wait time between attempts
func ReconnectWithRetry(ctx context.Context, cfg config.DatabaseConfig, maxRetries int, initialDelay time.Duration, logger zerolog.Logger) (*DB, error) {
	delay := initialDelay
	attempt := 0

	for {
		attempt++
		logger.Debug().Int("attempt", attempt).Msg("connecting to database")

		db, err := Connect(cfg)
		if err == nil {
			if attempt > 1 {
				logger.Info().Int("attempts", attempt).Msg("database reconnected")
			}
			return db, nil
		}

		if maxRetries > 0 && attempt >= maxRetries {
			return nil, fmt.Errorf("failed to connect after %d attempts: %w", attempt, err)
		}

		logger.Warn().Err(err).Dur("retry_in", delay).Msg("database connection failed")
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("database reconnect cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}

		// Exponential backoff with cap at 60 seconds
		delay *= 2
		if delay > 60*time.Second {
			delay = 60 * time.Second
		}
	}
}

// EnsureConnection checks the connection and reconnects if it is gone.
// Returns the active connection, either the original or a new one.
func EnsureConnection(ctx context.Context, db *DB, cfg config.DatabaseConfig, logger zerolog.Logger) (*DB, error) {
	if db == nil {
		return ReconnectWithRetry(ctx, cfg, 3, time.Second, logger)
	}

	if err := HealthCheck(ctx, db); err != nil {
		logger.Warn().Err(err).Msg("database connection lost, reconnecting")
		db.Close()
		return ReconnectWithRetry(ctx, cfg, 3, time.Second, logger)
	}
	return db, nil
}

// HealthCheck pings the database and runs a trivial query.
func HealthCheck(ctx context.Context, db *DB) error {
	if db == nil {
		return fmt.Errorf("no database connection")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	if result != 1 {
		return fmt.Errorf("unexpected health check result: %d", result)
	}
	return nil
}

// connectionErrors are message fragments of transient connection failures.
var connectionErrors = []string{
	"connection refused",
	"broken pipe",
	"no connection",
	"connection reset",
	"eof",
	"timeout",
	"bad connection",
}

// IsConnectionError reports whether err looks like a lost connection rather
// than a query error.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range connectionErrors {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// WithRetry executes a database operation, retrying connection failures.
// Other errors are returned immediately.
func WithRetry(ctx context.Context, operation func() error, maxRetries int, logger zerolog.Logger) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsConnectionError(err) {
			return err
		}

		if attempt < maxRetries {
			wait := time.Duration(attempt+1) * time.Second
			logger.Warn().Err(err).
				Int("attempt", attempt+1).
				Int("max_attempts", maxRetries+1).
				Dur("retry_in", wait).
				Msg("database operation failed")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
	}

	return lastErr
}
