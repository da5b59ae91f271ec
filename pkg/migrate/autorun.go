package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/db"
	"github.com/angelmondragon/storefront/pkg/logger"
)

// MaybeRun brings the SQL local store up to date with the embedded
// migrations when STOREFRONT_DB_AUTO_MIGRATE is set (the default).
func MaybeRun(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if client == nil || !cfg.DB.AutoMigrate {
		return nil
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	migrator, err := New(sqlDB, client.Dialect(), DefaultDir)
	if err != nil {
		return err
	}
	applied, err := migrator.Up(ctx)
	if err != nil {
		return err
	}
	if applied > 0 {
		logg.Info(logg.WithFields(ctx, map[string]any{"dialect": client.Dialect(), "applied": applied}), "local store schema migrated")
	}
	return nil
}
