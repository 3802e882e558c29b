// Package bootstrap wires the process-wide runtime: database, Redis and the
// optional development fixture.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"circles/internal/cache"
	"circles/internal/config"
	"circles/internal/database"
	"circles/internal/middleware"
	"circles/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// ApplyFixture loads cfg.SeedFixture, when set, after the schema is ready.
	ApplyFixture bool
}

// InitRuntime connects to the database and Redis. Redis is optional: when it
// is unconfigured the returned client is nil, and when it is unreachable the
// client is kept so it can recover once Redis comes back.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	rdb := connectRedis(ctx, cfg.RedisURL)

	if opts.ApplyFixture && cfg.SeedFixture != "" {
		if err := applyFixture(ctx, cfg, db); err != nil {
			if rdb != nil {
				_ = rdb.Close()
			}
			if sqlDB, dbErr := db.DB(); dbErr == nil {
				_ = sqlDB.Close()
			}
			return nil, nil, err
		}
	}

	return db, rdb, nil
}

func connectRedis(ctx context.Context, url string) *redis.Client {
	if url == "" {
		middleware.Logger.Warn("REDIS_URL not set; session cache disabled")
		return nil
	}
	rdb, err := cache.NewClient(ctx, url)
	if err != nil {
		if rdb == nil {
			middleware.Logger.Error("Invalid Redis configuration; session cache disabled", slog.String("error", err.Error()))
			return nil
		}
		middleware.Logger.Warn("Redis unreachable; continuing without session cache", slog.String("error", err.Error()))
		return rdb
	}
	middleware.Logger.Info("Redis connected")
	return rdb
}

func applyFixture(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if cfg.IsProduction() {
		middleware.Logger.Warn("Ignoring SEED_FIXTURE in production", slog.String("fixture", cfg.SeedFixture))
		return nil
	}
	fx, err := seed.LoadFixtureFile(cfg.SeedFixture)
	if err != nil {
		return fmt.Errorf("load seed fixture: %w", err)
	}
	res, err := seed.NewSeeder(db).ApplyFixture(ctx, fx)
	if err != nil {
		return fmt.Errorf("apply seed fixture: %w", err)
	}
	middleware.Logger.Info("Seed fixture applied",
		slog.String("fixture", cfg.SeedFixture),
		slog.String("created", res.String()),
	)
	return nil
}
