package migrate

import (
	"context"
	"fmt"

	"github.com/norberto-e-888/pos-app/pkg/config"
	"github.com/norberto-e-888/pos-app/pkg/db"
	"github.com/norberto-e-888/pos-app/pkg/db/models"
	"github.com/norberto-e-888/pos-app/pkg/logger"
)

// MaybeRunDev brings the schema up to date on boot when running in dev with
// POS_AUTO_MIGRATE set. Postgres gets the embedded goose files. sqlite gets
// gorm AutoMigrate over the models.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "dialect": client.Dialect()})

	if client.Dialect() == db.DialectSQLite {
		logg.Info(ctx, "auto-migrating sqlite schema from models")
		if err := client.DB().WithContext(ctx).AutoMigrate(models.All()...); err != nil {
			return fmt.Errorf("sqlite auto-migrate: %w", err)
		}
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	logg.Info(ctx, "applying embedded migrations")
	if err := Run(ctx, sqlDB, Embedded(), "up"); err != nil {
		return err
	}
	logg.Info(ctx, "migrations applied")
	return nil
}
