package main

import (
	"os"
	"strconv"

	"tourneyhost/internal/config"
	"tourneyhost/internal/db"
	"tourneyhost/internal/logging"

	log "github.com/sirupsen/logrus"
)

const usage = "usage: migrate up | down <steps> | status"

func main() {
	cfg := config.Load()
	logging.Setup(cfg.LogLevel, cfg.IsProduction())

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "up":
		if err := db.MigrateUp(cfg.DatabaseURL); err != nil {
			log.WithError(err).Fatal("migrate up failed")
		}
		log.Info("migrations applied")
	case "down":
		steps := 1
		if len(os.Args) > 2 {
			n, err := strconv.Atoi(os.Args[2])
			if err != nil || n <= 0 {
				log.Fatal(usage)
			}
			steps = n
		}
		if err := db.MigrateDown(cfg.DatabaseURL, steps); err != nil {
			log.WithError(err).Fatal("migrate down failed")
		}
		log.WithField("steps", steps).Info("migrations rolled back")
	case "status":
		version, dirty, ok, err := db.MigrateStatus(cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("migrate status failed")
		}
		if !ok {
			log.Info("no migrations applied")
			return
		}
		log.WithFields(log.Fields{"version": version, "dirty": dirty}).Info("migration status")
	default:
		log.Fatal(usage)
	}
}
