package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"gorm.io/gorm"
)

// MaybeRunDev migrates the schema at startup in dev when STOREFRONT_AUTO_MIGRATE
// is set. sqlite has no goose dialect here, so it is built from the models.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	if cfg.FeatureFlags.UseSQLite {
		if err := AutoMigrateModels(client.DB()); err != nil {
			return err
		}
		logg.Info(logg.WithField(ctx, "env", cfg.App.Env), "sqlite schema migrated from models")
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}
	m, err := New(sqlDB)
	if err != nil {
		return err
	}
	applied, err := m.Up(ctx)
	if err != nil {
		return err
	}
	logg.Info(logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "applied": applied}), "dev migrations applied")
	return nil
}

// AutoMigrateModels creates or updates every pipeline table from its model.
func AutoMigrateModels(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db is required")
	}
	if err := conn.AutoMigrate(
		&models.StoreSettings{},
		&models.User{},
		&models.Product{},
		&models.Order{},
		&models.SalesCounter{},
		&models.CountedOrder{},
		&models.OutboxEvent{},
		&models.OutboxDLQ{},
	); err != nil {
		return fmt.Errorf("auto migrate models: %w", err)
	}
	return nil
}
