// Command main runs the database seeder.
package main

import (
	"context"
	"flag"
	"log"

	"cozytiny/internal/bootstrap"
	"cozytiny/internal/config"
	"cozytiny/internal/models"
	"cozytiny/internal/seed"
)

func main() {
	numPosts := flag.Int("posts", 20, "Number of random posts to create")
	shouldClean := flag.Bool("clean", false, "Delete all posts and steps before seeding")
	fixtures := flag.String("fixtures", "", "Fixtures YAML file (defaults to the bundled set)")
	skipFixtures := flag.Bool("no-fixtures", false, "Skip fixture posts")
	randSeed := flag.Int64("seed", 0, "Random seed for generated posts (0 picks one)")
	flag.Parse()

	log.Println("Database Seeder")
	log.Printf("Target: %d random posts, clean=%v\n", *numPosts, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{ApplySchema: true})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	defer func() { _ = rt.Close(ctx) }()

	s := seed.NewSeeder(rt.DB, models.NewCategorySet(cfg.CategoryList()))
	res, err := s.Run(ctx, seed.Options{
		NumPosts:     *numPosts,
		ShouldClean:  *shouldClean,
		FixturesPath: *fixtures,
		SkipFixtures: *skipFixtures,
		RandSeed:     *randSeed,
	})
	if err != nil {
		_ = rt.Close(ctx)
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Done: %d fixtures (%d already present), %d random posts", res.Fixtures, res.Skipped, res.Random)
}
