// Command sessionsweep deletes expired login sessions once and exits.
// Run it from cron when the API's built-in sweeper is disabled.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"circles/internal/cache"
	"circles/internal/config"
	"circles/internal/database"
	"circles/internal/repository"
	"circles/internal/service"

	"github.com/joho/godotenv"
)

func main() {
	timeout := flag.Duration("timeout", 5*time.Minute, "Give up after this long")
	flag.Parse()

	_ = godotenv.Load(".env.local")
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// Cached sessions expire on their own TTL, so the sweep skips Redis.
	sessions := repository.NewSessionRepository(db, cache.New(nil))
	deleted, err := service.NewSessionSweeper(sessions, cfg.SessionSweepBatchSize).SweepOnce(ctx)
	if err != nil {
		log.Fatalf("Session sweep failed: %v", err)
	}
	log.Printf("Deleted %d expired sessions", deleted)
}
