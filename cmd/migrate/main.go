package main

import (
	"context"
	"log"
	"os"

	"github.com/safar/order-engine/internal/config"
	"github.com/safar/order-engine/internal/database"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: migrate [up|down]")
	}

	direction, err := database.ParseDirection(os.Args[1])
	if err != nil {
		log.Fatal(err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		log.Fatalf("Connect to database: %v", err)
	}
	defer db.Close()

	versions, err := database.Migrate(context.Background(), db, direction)
	if err != nil {
		log.Fatalf("Run migrations: %v", err)
	}

	for _, v := range versions {
		log.Printf("Ran migration: %s %s", v, direction)
	}
	log.Printf("Successfully ran %d migration(s) %s", len(versions), direction)
}
