package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"crabber/internal/cache"
	"crabber/internal/config"
	"crabber/internal/database"
	"crabber/internal/middleware"
	"crabber/internal/models"
	"crabber/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedPreset names a demo preset applied to an empty development database.
	SeedPreset string
}

// InitRuntime connects to DB and Redis and optionally seeds demo data.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Init Redis (may result in nil client if unreachable)
	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if err := seedDevelopment(context.Background(), cfg, db, opts.SeedPreset); err != nil {
		return nil, nil, fmt.Errorf("failed to seed development data: %w", err)
	}

	return db, r, nil
}

func seedDevelopment(ctx context.Context, cfg *config.Config, db *gorm.DB, preset string) error {
	if preset == "" || cfg.Env != "development" {
		return nil
	}

	var crabs int64
	if err := db.WithContext(ctx).Model(&models.Crab{}).Count(&crabs).Error; err != nil {
		return err
	}
	if crabs > 0 {
		middleware.Logger.Info("skipping demo seed, database is not empty", slog.Int64("crabs", crabs))
		return nil
	}

	presets, err := seed.BuiltinPresets()
	if err != nil {
		return err
	}
	p, ok := presets[preset]
	if !ok {
		return fmt.Errorf("unknown seed preset %q", preset)
	}
	_, err = seed.NewSeeder(db, 1, cfg.MoltCharLimit).Apply(ctx, p)
	return err
}
