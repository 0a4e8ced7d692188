package database

import (
	"context"
	"fmt"

	"didauday/internal/models"
)

// InventorySeed is the startup catalog loaded from configs/inventory.yaml.
type InventorySeed struct {
	Profiles []models.Profile `yaml:"profiles"`
	Tours    []models.Tour    `yaml:"tours"`
	Hotels   []models.Hotel   `yaml:"hotels"`
	Rooms    []models.Room    `yaml:"rooms"`
	Flights  []models.Flight  `yaml:"flights"`
}

// SeedInventory loads the catalog into empty tables. Non-empty tables
// are left alone, so a restart never duplicates or resets live
// capacity counters.
func (db *DB) SeedInventory(ctx context.Context, seed *InventorySeed) error {
	if seed == nil {
		return nil
	}

	if empty, err := db.tableEmpty(ctx, "profiles"); err != nil {
		return err
	} else if empty {
		for i := range seed.Profiles {
			if err := db.CreateProfile(ctx, &seed.Profiles[i]); err != nil {
				return err
			}
		}
	}

	if empty, err := db.tableEmpty(ctx, "tours"); err != nil {
		return err
	} else if empty {
		for i := range seed.Tours {
			if err := db.CreateTour(ctx, &seed.Tours[i]); err != nil {
				return err
			}
		}
	}

	if empty, err := db.tableEmpty(ctx, "hotels"); err != nil {
		return err
	} else if empty {
		for i := range seed.Hotels {
			if err := db.CreateHotel(ctx, &seed.Hotels[i]); err != nil {
				return err
			}
		}
		for i := range seed.Rooms {
			if err := db.CreateRoom(ctx, &seed.Rooms[i]); err != nil {
				return err
			}
		}
	}

	if empty, err := db.tableEmpty(ctx, "flights"); err != nil {
		return err
	} else if empty {
		for i := range seed.Flights {
			if err := db.CreateFlight(ctx, &seed.Flights[i]); err != nil {
				return err
			}
		}
	}

	db.log.Info().
		Int("profiles", len(seed.Profiles)).
		Int("tours", len(seed.Tours)).
		Int("hotels", len(seed.Hotels)).
		Int("rooms", len(seed.Rooms)).
		Int("flights", len(seed.Flights)).
		Msg("inventory seed processed")
	return nil
}

func (db *DB) tableEmpty(ctx context.Context, table string) (bool, error) {
	var count int
	if err := db.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return count == 0, nil
}
