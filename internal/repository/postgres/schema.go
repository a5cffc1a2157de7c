package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// EnsureSchema creates the waypoint tables when they don't exist yet. The
// daemon owns its schema; there is no external migration step.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS visits (
			id BIGSERIAL PRIMARY KEY,
			visit_id TEXT NOT NULL UNIQUE,
			url TEXT NOT NULL,
			reason TEXT NOT NULL,
			duration_minutes INT NOT NULL,
			visited_at TIMESTAMPTZ NOT NULL,
			reflection TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS watched_sites (
			position INT NOT NULL,
			site TEXT PRIMARY KEY
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}
