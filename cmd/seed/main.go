package main

import (
	"context"
	"flag"
	"log"

	"github.com/joho/godotenv"

	"github.com/dealerreach/backend/config"
	"github.com/dealerreach/backend/pkg/store"
	"github.com/dealerreach/backend/pkg/testdata"
)

// Seeds fake leads into every segment for local development.
func main() {
	count := flag.Int("count", 50, "leads per segment")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on OS environment variables")
	}

	cfg := config.Load()
	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	total, err := testdata.SeedAllSegments(context.Background(), db, *count)
	if err != nil {
		log.Fatalf("failed to seed leads: %v", err)
	}
	log.Printf("seeded %d leads", total)
}
