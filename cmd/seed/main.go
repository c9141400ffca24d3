package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"paperfolio/internal/auth"
	"paperfolio/internal/config"
	"paperfolio/internal/db"
	"paperfolio/internal/models"
	"paperfolio/internal/quote"
)

const (
	demoUsername = "demo"
	demoPassword = `demo1!pass`
)

// Seed the database with a demo trader holding a starter position.
func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	database, err := db.NewDB(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(ctx)

	if err := database.Migrate(ctx); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	// Idempotent: bail out if the demo user already exists.
	if _, err := database.GetUserByUsername(ctx, demoUsername); err == nil {
		fmt.Printf("User %q already exists. No need to seed.\n", demoUsername)
		os.Exit(0)
	} else if !errors.Is(err, models.ErrUserNotFound) {
		log.Fatalf("Failed to check for demo user: %v", err)
	}

	hash, err := auth.HashPassword(demoPassword)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	user, err := database.CreateUser(ctx, demoUsername, hash)
	if err != nil {
		log.Fatalf("Failed to create demo user: %v", err)
	}

	quotes := quote.DefaultStatic()
	for _, seed := range []struct {
		symbol string
		shares int64
	}{
		{"AAPL", 10},
		{"MSFT", 5},
	} {
		q, err := quotes.Lookup(ctx, seed.symbol)
		if err != nil {
			log.Fatalf("Failed to quote %s: %v", seed.symbol, err)
		}
		if _, err := database.ExecuteBuy(ctx, user.ID, q.Symbol, seed.shares, q.Price); err != nil {
			log.Fatalf("Failed to seed %s position: %v", seed.symbol, err)
		}
		fmt.Printf("Bought %d %s @ %s for %s\n", seed.shares, q.Symbol, q.Price, demoUsername)
	}

	fmt.Printf("Seeded user %q (password %q)\n", demoUsername, demoPassword)
}
