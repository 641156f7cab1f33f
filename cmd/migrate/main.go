package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"loanflow/internal/platform/logger"
)

func main() {
	var databaseURL, migrationsPath, command string
	flag.StringVar(&databaseURL, "database", os.Getenv("DATABASE_URL"), "Database URL")
	flag.StringVar(&migrationsPath, "path", "migrations", "Path to migrations directory")
	flag.StringVar(&command, "command", "up", "Migration command: up, down, version, force")
	flag.Parse()

	log := logger.New(slog.LevelInfo)
	if databaseURL == "" {
		log.Error("database URL is required; use -database or DATABASE_URL")
		os.Exit(2)
	}

	m, err := migrate.New(fmt.Sprintf("file://%s", migrationsPath), databaseURL)
	if err != nil {
		log.Error("failed to create migration instance", "error", err)
		os.Exit(1)
	}
	defer m.Close()

	switch command {
	case "up":
		err = m.Up()
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("database is up to date")
			return
		}
	case "down":
		err = m.Down()
		if errors.Is(err, migrate.ErrNoChange) {
			err = nil
		}
	case "version":
		version, dirty, verr := m.Version()
		if verr == nil {
			log.Info("current version", "version", version, "dirty", dirty)
		}
		err = verr
	case "force":
		version, perr := strconv.Atoi(flag.Arg(0))
		if perr != nil {
			log.Error("force requires a version number", "arg", flag.Arg(0))
			os.Exit(2)
		}
		err = m.Force(version)
	default:
		log.Error("unknown command; use up, down, version or force", "command", command)
		os.Exit(2)
	}
	if err != nil {
		log.Error("migration failed", "command", command, "error", err)
		os.Exit(1)
	}
	log.Info("migration command completed", "command", command, "path", migrationsPath)
}
