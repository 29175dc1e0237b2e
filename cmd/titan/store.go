package main

import (
	"context"
	"fmt"

	"github.com/AaronLay10/TitanMedia/internal/config"
	"github.com/AaronLay10/TitanMedia/internal/events"
	"github.com/AaronLay10/TitanMedia/internal/storage/postgres"
	"github.com/AaronLay10/TitanMedia/internal/storage/sqlite"
	"github.com/AaronLay10/TitanMedia/internal/studio"
)

// collectionStore is a studio.Store the CLI can health-check and close.
type collectionStore interface {
	studio.Store
	Ping(ctx context.Context) error
	Close() error
}

// openStore opens the configured store. It returns nil for driver "none".
// With Postgres, events are persisted to the same database.
func openStore(cfg *config.StudioConfig) (collectionStore, error) {
	switch cfg.StoreDriver() {
	case "none":
		return nil, nil
	case "sqlite", "sqlite-pure":
		driver := sqlite.DriverCgo
		if cfg.StoreDriver() == "sqlite-pure" {
			driver = sqlite.DriverPure
		}
		st, err := sqlite.Open(cfg.StorePath(), driver)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "postgres":
		pg, err := postgres.New(cfg.StudioID())
		if err != nil {
			return nil, err
		}
		events.SetAppender(pg)
		return pg, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver())
	}
}

// requireStore opens the store for the offline commands.
func requireStore(cfg *config.StudioConfig) (collectionStore, error) {
	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, fmt.Errorf("no store configured (store.driver is %q)", cfg.StoreDriver())
	}
	return st, nil
}
