package database

import (
	"context"

	"github.com/benvon/portfolio-chat/internal/models"
	"github.com/benvon/portfolio-chat/internal/ratelimit"
)

// SettingsRepositoryInterface defines the settings operations the chat proxy and CLI depend on
// This interface enables better testability by allowing mock implementations
type SettingsRepositoryInterface interface {
	GetAppConfig(ctx context.Context) (*models.AppConfig, error)
	SetAPIKey(ctx context.Context, apiKey string) error
	SetResumeContext(ctx context.Context, resume string) error
}

// RatelimitConfigRepositoryInterface defines the burst rate operations used by the reloader
type RatelimitConfigRepositoryInterface interface {
	Get(ctx context.Context) (*models.RatelimitConfig, error)
	Set(ctx context.Context, c *models.RatelimitConfig) error
}

// CorsConfigRepositoryInterface defines the CORS operations used by the reloader
type CorsConfigRepositoryInterface interface {
	Get(ctx context.Context) (*models.CorsConfig, error)
}

// Ensure concrete types implement the interfaces
var (
	_ SettingsRepositoryInterface        = (*SettingsRepository)(nil)
	_ RatelimitConfigRepositoryInterface = (*RatelimitConfigRepository)(nil)
	_ CorsConfigRepositoryInterface      = (*CorsConfigRepository)(nil)
	_ ratelimit.Store                    = (*RateLimitStore)(nil)
	_ ratelimit.Pruner                   = (*RateLimitStore)(nil)
)
