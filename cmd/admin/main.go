// Package main provides moderation and maintenance utilities for Crabber.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"crabber/internal/config"
	"crabber/internal/database"
	"crabber/internal/feed"
	"crabber/internal/models"
	"crabber/internal/notify"
	"crabber/internal/repository"
	"crabber/internal/service"

	"gorm.io/gorm"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  go run ./cmd/admin ban <username>        - Ban a crab")
	fmt.Println("  go run ./cmd/admin unban <username>      - Lift a ban")
	fmt.Println("  go run ./cmd/admin reset-card <url>      - Queue a card for fetching again")
	fmt.Println("  go run ./cmd/admin migrate               - Apply schema migrations")
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = database.Close(db) }()

	ctx := context.Background()
	command := os.Args[1]
	arg := func() string {
		if len(os.Args) < 3 {
			usage()
		}
		return os.Args[2]
	}

	switch command {
	case "ban":
		ban(ctx, crabService(db), arg())
	case "unban":
		unban(ctx, crabService(db), arg())
	case "reset-card":
		resetCard(ctx, repository.NewCardRepository(db), arg())
	case "migrate":
		if err := database.Migrate(db); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		fmt.Println("Schema is up to date")
	default:
		fmt.Printf("Unknown command: %s\n", command)
		usage()
	}
}

func crabService(db *gorm.DB) *service.CrabService {
	return service.NewCrabService(
		repository.NewCrabRepository(db),
		repository.NewRelationRepository(db),
		feed.NewEngine(db),
		notify.NewEngine(db),
		false,
	)
}

func ban(ctx context.Context, crabs *service.CrabService, username string) {
	crab, err := crabs.Ban(ctx, username)
	if models.IsNotFound(err) {
		fmt.Printf("Crab %s not found\n", username)
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("Failed to ban crab: %v", err)
	}
	fmt.Printf("Banned %s (ID: %d)\n", crab.Username, crab.ID)
}

func unban(ctx context.Context, crabs *service.CrabService, username string) {
	crab, err := crabs.Unban(ctx, username)
	switch {
	case models.IsNotFound(err):
		fmt.Printf("Crab %s not found\n", username)
		os.Exit(1)
	case errors.Is(err, service.ErrNotBanned):
		fmt.Printf("Crab %s is not banned\n", username)
		return
	case err != nil:
		log.Fatalf("Failed to unban crab: %v", err)
	}
	fmt.Printf("Unbanned %s (ID: %d)\n", crab.Username, crab.ID)
}

func resetCard(ctx context.Context, cards repository.CardRepository, url string) {
	err := cards.Reset(ctx, url)
	if models.IsNotFound(err) {
		fmt.Printf("No card for %s\n", url)
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("Failed to reset card: %v", err)
	}
	fmt.Printf("Card for %s will be fetched on the next run\n", url)
}
