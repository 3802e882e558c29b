// Command seed fills the database with a YAML fixture or generated data.
package main

import (
	"context"
	"flag"
	"log"

	"circles/internal/config"
	"circles/internal/database"
	"circles/internal/seed"

	"github.com/joho/godotenv"
)

func main() {
	fixture := flag.String("fixture", "", "YAML fixture to apply instead of generated data")
	numUsers := flag.Int("users", seed.DefaultOptions.Users, "Number of users to generate")
	numCircles := flag.Int("circles", seed.DefaultOptions.Circles, "Number of circles to generate")
	members := flag.Int("members", seed.DefaultOptions.MembersPerCircle, "Members added to each circle")
	posts := flag.Int("posts", seed.DefaultOptions.PostsPerCircle, "Posts per circle")
	public := flag.Int("public-posts", seed.DefaultOptions.PublicPosts, "Posts outside any circle")
	randSeed := flag.Int64("seed", 0, "Random seed for reproducible data (0 picks one)")
	clean := flag.Bool("clean", false, "Delete all users, circles and posts first")
	flag.Parse()

	_ = godotenv.Load(".env.local")
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatalf("Refusing to seed a %s database", cfg.Env)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	ctx := context.Background()
	s := seed.NewSeeder(db)

	var res seed.Result
	if *fixture != "" {
		fx, err := seed.LoadFixtureFile(*fixture)
		if err != nil {
			log.Fatalf("Failed to load fixture: %v", err)
		}
		if *clean {
			if err := s.Clear(ctx); err != nil {
				log.Fatalf("Cleanup failed: %v", err)
			}
		}
		res, err = s.ApplyFixture(ctx, fx)
		if err != nil {
			log.Fatalf("Fixture seeding failed: %v", err)
		}
	} else {
		res, err = s.Seed(ctx, seed.Options{
			Users:            *numUsers,
			Circles:          *numCircles,
			MembersPerCircle: *members,
			PostsPerCircle:   *posts,
			PublicPosts:      *public,
			RandSeed:         *randSeed,
			Clean:            *clean,
		})
		if err != nil {
			log.Fatalf("Seeding failed: %v", err)
		}
	}

	log.Printf("Created %s", res)
	log.Printf("Seeded users without a password use %q", seed.DefaultPassword)
}
