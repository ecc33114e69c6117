package database

import (
	"context"
	"fmt"
	"strings"
)

// Schema statements use {{ts}} for the dialect's timestamp type and {{text}} for its long text type.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS settings (
		config_key VARCHAR(64) PRIMARY KEY,
		api_key VARCHAR(512) NOT NULL,
		resume_context {{text}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS rate_limits (
		client_key VARCHAR(255) PRIMARY KEY,
		request_count INTEGER NOT NULL,
		window_start BIGINT NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ratelimit_config (
		config_key VARCHAR(64) PRIMARY KEY,
		rate VARCHAR(32) NOT NULL,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS cors_config (
		config_key VARCHAR(64) PRIMARY KEY,
		allowed_origins {{text}} NOT NULL,
		allow_credentials BOOLEAN NOT NULL,
		max_age INTEGER NOT NULL,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,
}

// Migrate creates the tables the service needs. It is idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range db.schema() {
		if _, err := db.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return db.ensureWindowIndex(ctx)
}

func (db *DB) schema() []string {
	ts, text := "TIMESTAMP", "TEXT"
	switch db.dialect {
	case DialectPostgres:
		ts = "TIMESTAMPTZ"
	case DialectMySQL:
		ts = "DATETIME(6)"
		text = "MEDIUMTEXT"
	}
	r := strings.NewReplacer("{{ts}}", ts, "{{text}}", text)

	out := make([]string, len(schemaStatements))
	for i, stmt := range schemaStatements {
		out[i] = r.Replace(stmt)
	}
	return out
}

// ensureWindowIndex indexes window_start for pruning. MySQL has no CREATE INDEX IF NOT EXISTS.
func (db *DB) ensureWindowIndex(ctx context.Context) error {
	if db.dialect != DialectMySQL {
		_, err := db.DB.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_rate_limits_window_start ON rate_limits (window_start)`)
		if err != nil {
			return fmt.Errorf("migrate: create window index: %w", err)
		}
		return nil
	}

	var n int
	err := db.DB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM information_schema.statistics
		WHERE table_schema = DATABASE() AND table_name = 'rate_limits' AND index_name = 'idx_rate_limits_window_start'
	`).Scan(&n)
	if err != nil {
		return fmt.Errorf("migrate: inspect window index: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := db.DB.ExecContext(ctx, `CREATE INDEX idx_rate_limits_window_start ON rate_limits (window_start)`); err != nil {
		return fmt.Errorf("migrate: create window index: %w", err)
	}
	return nil
}
