package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/config"
	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/database"
	"github.com/kpiwatch-ops/kpiwatch-backend-go/pkg/logger"
)

func main() {
	var (
		direction = flag.String("direction", "up", "Migration direction: up or down")
		steps     = flag.Int("steps", 0, "Number of migrations to apply (0 = all)")
	)
	flag.Parse()

	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	db, err := database.Initialize(cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("Failed to open database")
	}
	defer db.Close()

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		log.WithError(err).Fatal("Failed to create migration driver")
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cfg.Database.MigrationsPath),
		"sqlite",
		driver,
	)
	if err != nil {
		log.WithError(err).Fatal("Failed to create migration instance")
	}

	switch *direction {
	case "up":
		if *steps > 0 {
			err = m.Steps(*steps)
		} else {
			err = m.Up()
		}
	case "down":
		if *steps > 0 {
			err = m.Steps(-*steps)
		} else {
			err = m.Down()
		}
	default:
		log.WithField("direction", *direction).Error("Unknown direction, use up or down")
		os.Exit(1)
	}

	if err != nil && err != migrate.ErrNoChange {
		log.WithError(err).Fatal("Migration failed")
	}

	version, dirty, verr := m.Version()
	if verr != nil && verr != migrate.ErrNilVersion {
		log.WithError(verr).Warn("Could not read migration version")
	}

	log.WithFields(map[string]interface{}{
		"direction": *direction,
		"version":   version,
		"dirty":     dirty,
	}).Info("Migrations complete")
}
