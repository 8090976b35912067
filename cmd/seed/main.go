// Command seed fills the configured database with demo data.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"crabber/internal/config"
	"crabber/internal/database"
	"crabber/internal/seed"
)

func main() {
	preset := flag.String("preset", "small", "preset to apply")
	file := flag.String("presets", "", "YAML file with extra presets")
	clean := flag.Bool("clean", false, "delete all data before seeding")
	randSeed := flag.Int64("rand", 1, "random seed")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	presets, err := seed.BuiltinPresets()
	if err != nil {
		log.Fatalf("Failed to load presets: %v", err)
	}
	if *file != "" {
		f, err := os.Open(*file)
		if err != nil {
			log.Fatalf("Failed to open presets: %v", err)
		}
		extra, err := seed.LoadPresets(f)
		_ = f.Close()
		if err != nil {
			log.Fatalf("Failed to load presets: %v", err)
		}
		for name, p := range extra {
			presets[name] = p
		}
	}
	p, ok := presets[*preset]
	if !ok {
		names := make([]string, 0, len(presets))
		for name := range presets {
			names = append(names, name)
		}
		sort.Strings(names)
		log.Fatalf("Unknown preset %q (available: %v)", *preset, names)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = database.Close(db) }()

	ctx := context.Background()
	s := seed.NewSeeder(db, *randSeed, cfg.MoltCharLimit)
	if *clean {
		if err := s.ClearAll(ctx); err != nil {
			log.Fatalf("Failed to clear database: %v", err)
		}
	}

	res, err := s.Apply(ctx, p)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	fmt.Printf("Seeded %d crabs, %d molts (%d replies), %d follows, %d likes\n",
		res.Crabs, res.Molts, res.Replies, res.Follows, res.Likes)
	fmt.Printf("Every crab's password is %q\n", seed.DemoPassword)
}
