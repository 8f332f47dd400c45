package store

import (
	"context"
	"fmt"

	"github.com/xiaot623/gogo/researchbot/internal/config"
)

// Open builds the store selected by the database configuration.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return NewSQLiteStore(cfg.URL)
	case "postgres":
		return NewPostgresStore(ctx, cfg.URL)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
