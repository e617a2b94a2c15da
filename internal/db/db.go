package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/unklstewy/opensky-overlay/pkg/config"
)

//go:embed schema.sql
var schemaSQL embed.FS

// DB wraps a database connection with helper methods.
type DB struct {
	*sql.DB
	config config.DatabaseConfig
}

// connectionString builds the lib/pq keyword/value DSN.
func connectionString(cfg config.DatabaseConfig) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.Username,
		cfg.Password,
		cfg.Database,
		cfg.SSLMode,
	)
}

// Connect establishes a connection to the PostgreSQL database.
func Connect(cfg config.DatabaseConfig) (*DB, error) {
	sqlDB, err := sql.Open("postgres", connectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{
		DB:     sqlDB,
		config: cfg,
	}, nil
}

// InitSchema creates the tables if they do not exist.
// This should be called once at application startup.
func (db *DB) InitSchema(ctx context.Context) error {
	schemaBytes, err := schemaSQL.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}

	if _, err := db.ExecContext(ctx, string(schemaBytes)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

// CleanupOldData removes history rows and latest rows older than maxAge.
// Should be called periodically to prevent unbounded growth.
func (db *DB) CleanupOldData(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)

	res, err := db.ExecContext(ctx,
		`DELETE FROM state_vector_history WHERE received_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old history: %w", err)
	}
	removed, _ := res.RowsAffected()

	res, err = db.ExecContext(ctx,
		`DELETE FROM state_vectors WHERE received_at < $1`,
		cutoff,
	)
	if err != nil {
		return removed, fmt.Errorf("failed to delete stale state vectors: %w", err)
	}
	n, _ := res.RowsAffected()

	return removed + n, nil
}

// Stats is a summary of stored rows.
type Stats struct {
	Aircraft     int64     `json:"aircraft"`
	HistoryRows  int64     `json:"history_rows"`
	LastReceived time.Time `json:"last_received"`
}

// GetStats returns database statistics.
func (db *DB) GetStats(ctx context.Context) (Stats, error) {
	var stats Stats
	var last sql.NullTime

	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*), MAX(received_at) FROM state_vectors`,
	).Scan(&stats.Aircraft, &last)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count state vectors: %w", err)
	}
	if last.Valid {
		stats.LastReceived = last.Time
	}

	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM state_vector_history`,
	).Scan(&stats.HistoryRows)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count history: %w", err)
	}

	return stats, nil
}
