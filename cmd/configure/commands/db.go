package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/benvon/portfolio-chat/internal/config"
	"github.com/benvon/portfolio-chat/internal/database"
)

// openDB loads configuration and opens the migrated database. The returned func closes it.
func openDB(ctx context.Context) (*config.Config, *database.DB, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	db, err := database.New(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
	}
	if err := db.Migrate(ctx); err != nil {
		closeDB()
		return nil, nil, nil, fmt.Errorf("migrate database: %w", err)
	}
	return cfg, db, closeDB, nil
}
