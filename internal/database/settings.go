package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benvon/portfolio-chat/internal/models"
)

// SettingsRepository reads and writes the externally owned chat settings record.
type SettingsRepository struct {
	db *DB
}

// NewSettingsRepository creates a new settings repository.
func NewSettingsRepository(db *DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetAppConfig returns the settings record, or nil, nil when none has been written yet.
func (r *SettingsRepository) GetAppConfig(ctx context.Context) (*models.AppConfig, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT config_key, api_key, resume_context, updated_at
		FROM settings WHERE config_key = ?
	`, models.AppConfigKey)
	c := &models.AppConfig{}
	err := row.Scan(&c.ConfigKey, &c.APIKey, &c.ResumeContext, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get app config: %w", err)
	}
	return c, nil
}

// SetAPIKey stores the upstream API key, creating the record if needed. An empty key clears it.
func (r *SettingsRepository) SetAPIKey(ctx context.Context, apiKey string) error {
	query := r.db.upsertSQL("settings", "config_key",
		[]string{"config_key", "api_key", "resume_context", "updated_at"},
		[]string{"api_key", "updated_at"},
	)
	if _, err := r.db.ExecContext(ctx, query, models.AppConfigKey, strings.TrimSpace(apiKey), "", time.Now().UTC()); err != nil {
		return fmt.Errorf("set api key: %w", err)
	}
	return nil
}

// SetResumeContext stores the resume text embedded in every system prompt.
func (r *SettingsRepository) SetResumeContext(ctx context.Context, resume string) error {
	query := r.db.upsertSQL("settings", "config_key",
		[]string{"config_key", "api_key", "resume_context", "updated_at"},
		[]string{"resume_context", "updated_at"},
	)
	if _, err := r.db.ExecContext(ctx, query, models.AppConfigKey, "", resume, time.Now().UTC()); err != nil {
		return fmt.Errorf("set resume context: %w", err)
	}
	return nil
}
