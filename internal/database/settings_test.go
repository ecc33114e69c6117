package database

import (
	"context"
	"testing"
)

func TestSettingsRepository_MissingRecord(t *testing.T) {
	t.Parallel()
	repo := NewSettingsRepository(newTestDB(t))

	cfg, err := repo.GetAppConfig(context.Background())
	if err != nil {
		t.Fatalf("GetAppConfig() error = %v", err)
	}
	if cfg != nil {
		t.Errorf("GetAppConfig() = %+v, want nil before any write", cfg)
	}
	if cfg.HasAPIKey() {
		t.Error("nil config must not report an API key")
	}
}

func TestSettingsRepository_SetFieldsIndependently(t *testing.T) {
	t.Parallel()
	repo := NewSettingsRepository(newTestDB(t))
	ctx := context.Background()

	if err := repo.SetResumeContext(ctx, "Ten years of backend work."); err != nil {
		t.Fatalf("SetResumeContext() error = %v", err)
	}
	cfg, err := repo.GetAppConfig(ctx)
	if err != nil || cfg == nil {
		t.Fatalf("GetAppConfig() = %v, %v", cfg, err)
	}
	if cfg.HasAPIKey() {
		t.Error("resume-only record must not report an API key")
	}

	if err := repo.SetAPIKey(ctx, "  key-123  "); err != nil {
		t.Fatalf("SetAPIKey() error = %v", err)
	}
	cfg, err = repo.GetAppConfig(ctx)
	if err != nil {
		t.Fatalf("GetAppConfig() error = %v", err)
	}
	if cfg.APIKey != "key-123" {
		t.Errorf("APIKey = %q, want trimmed key-123", cfg.APIKey)
	}
	if cfg.ResumeContext != "Ten years of backend work." {
		t.Errorf("ResumeContext = %q, setting the key must not clear it", cfg.ResumeContext)
	}
	if cfg.ConfigKey != "config" {
		t.Errorf("ConfigKey = %q, want config", cfg.ConfigKey)
	}
	if cfg.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should be set")
	}

	if err := repo.SetAPIKey(ctx, ""); err != nil {
		t.Fatalf("SetAPIKey(\"\") error = %v", err)
	}
	cfg, _ = repo.GetAppConfig(ctx)
	if cfg.HasAPIKey() {
		t.Error("clearing the key should leave no API key")
	}
}
