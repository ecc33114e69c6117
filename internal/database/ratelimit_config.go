package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benvon/portfolio-chat/internal/models"
	"github.com/benvon/portfolio-chat/internal/validation"
)

const defaultRatelimitConfigKey = "default"

// RatelimitConfigRepository handles the per-IP burst rate in the database.
type RatelimitConfigRepository struct {
	db *DB
}

// NewRatelimitConfigRepository creates a new ratelimit config repository.
func NewRatelimitConfigRepository(db *DB) *RatelimitConfigRepository {
	return &RatelimitConfigRepository{db: db}
}

// Get retrieves the burst rate config, or nil, nil when unset.
func (r *RatelimitConfigRepository) Get(ctx context.Context) (*models.RatelimitConfig, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT config_key, rate, created_at, updated_at
		FROM ratelimit_config WHERE config_key = ?
	`, defaultRatelimitConfigKey)
	c := &models.RatelimitConfig{}
	err := row.Scan(&c.ConfigKey, &c.Rate, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ratelimit config: %w", err)
	}
	return c, nil
}

// Set upserts the burst rate. Rate format: e.g. "5-S", "100-M".
func (r *RatelimitConfigRepository) Set(ctx context.Context, c *models.RatelimitConfig) error {
	rate := strings.TrimSpace(c.Rate)
	if err := validation.ValidateBurstRate(rate); err != nil {
		return err
	}
	now := time.Now().UTC()
	query := r.db.upsertSQL("ratelimit_config", "config_key",
		[]string{"config_key", "rate", "created_at", "updated_at"},
		[]string{"rate", "updated_at"},
	)
	if _, err := r.db.ExecContext(ctx, query, defaultRatelimitConfigKey, rate, now, now); err != nil {
		return fmt.Errorf("set ratelimit config: %w", err)
	}
	return nil
}
