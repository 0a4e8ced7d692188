package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"didauday/internal/database"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Seeds the catalog from an inventory yaml into a fresh database.
// Intended for local setups and staging resets; the API binary does
// the same on boot when tables are empty.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		seedPath = flag.String("inventory", "configs/inventory.yaml", "path to inventory.yaml")
		dbPath   = flag.String("db", "./data/didauday.db", "path to sqlite db")
	)
	flag.Parse()

	data, err := os.ReadFile(*seedPath)
	if err != nil {
		return fmt.Errorf("read inventory: %w", err)
	}
	var seed database.InventorySeed
	if err = yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse inventory: %w", err)
	}
	if len(seed.Tours)+len(seed.Hotels)+len(seed.Flights) == 0 {
		return fmt.Errorf("no inventory in yaml")
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.SeedInventory(ctx, &seed); err != nil {
		return fmt.Errorf("seed inventory: %w", err)
	}

	logger.Info().
		Int("tours", len(seed.Tours)).
		Int("hotels", len(seed.Hotels)).
		Int("rooms", len(seed.Rooms)).
		Int("flights", len(seed.Flights)).
		Msg("inventory seeded")
	return nil
}
