package main

import (
	"errors"
	"flag"
	"log"

	"github.com/deliverytech/api/internal/config"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	down := flag.Bool("down", false, "Roll back all migrations instead of applying them")
	steps := flag.Int("steps", 0, "Apply (or with -down, roll back) only this many migrations")
	flag.Parse()

	cfg := config.Load()

	m, err := migrate.New(cfg.MigrationsPath, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to create migrator: %v", err)
	}
	defer m.Close()

	switch {
	case *steps > 0 && *down:
		err = m.Steps(-*steps)
	case *steps > 0:
		err = m.Steps(*steps)
	case *down:
		err = m.Down()
	default:
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("Migration failed: %v", err)
	}

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		log.Println("Database has no migrations applied")
	case err != nil:
		log.Fatalf("Unable to read migration version: %v", err)
	default:
		log.Printf("Database at migration version %d (dirty=%t)", version, dirty)
	}
}
