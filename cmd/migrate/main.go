package main

import (
	"errors"
	"flag"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/liamcoop/marches/internal/config"
	"github.com/liamcoop/marches/internal/logger"
	"github.com/liamcoop/marches/migrations"
)

func main() {
	var configFile string
	var databaseURL string
	var migrationsPath string
	var command string

	flag.StringVar(&configFile, "config", "", "Path to a YAML configuration file (optional)")
	flag.StringVar(&databaseURL, "database", "", "Database URL (defaults to database.url / DATABASE_URL)")
	flag.StringVar(&migrationsPath, "path", "", "Directory of migrations to use instead of the embedded ones")
	flag.StringVar(&command, "command", "up", "Migration command: up, down, steps, version, force")
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		logger.Fatal("Failed to load configuration", "error", err)
	}
	if databaseURL == "" {
		databaseURL = cfg.Database.URL
	}
	if databaseURL == "" {
		logger.Fatal("Database URL is required. Use -database flag or DATABASE_URL environment variable")
	}

	m, err := newMigrate(migrationsPath, databaseURL)
	if err != nil {
		logger.Fatal("Failed to create migration instance", "error", err)
	}
	defer m.Close()

	switch command {
	case "up":
		logger.Info("Running migrations up...")
		err = m.Up()
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("No migrations to run (database is up to date)")
			return
		}
		if err != nil {
			logger.Fatal("Failed to run migrations", "error", err)
		}
		logger.Info("Migrations completed successfully")

	case "down":
		logger.Info("Rolling back migrations...")
		err = m.Down()
		if err != nil && !errors.Is(err, migrate.ErrNoChange) {
			logger.Fatal("Failed to rollback migrations", "error", err)
		}
		logger.Info("Rollback completed successfully")

	case "steps":
		n, err := intArg("steps")
		if err != nil {
			logger.Fatal("Invalid step count", "error", err)
		}
		if err := m.Steps(n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			logger.Fatal("Failed to apply steps", "steps", n, "error", err)
		}
		logger.Info("Steps applied", "steps", n)

	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			logger.Info("No migration applied yet")
			return
		}
		if err != nil {
			logger.Fatal("Failed to get version", "error", err)
		}
		logger.Info("Current version", "version", version, "dirty", dirty)

	case "force":
		version, err := intArg("force")
		if err != nil {
			logger.Fatal("Invalid version number", "error", err)
		}
		if err := m.Force(version); err != nil {
			logger.Fatal("Failed to force version", "error", err)
		}
		logger.Info("Forced version", "version", version)

	default:
		logger.Fatal(fmt.Sprintf("Unknown command: %s (use: up, down, steps, version, force)", command))
	}
}

// newMigrate reads migrations from path when set, otherwise from the
// migrations embedded in the binary
func newMigrate(path, databaseURL string) (*migrate.Migrate, error) {
	if path != "" {
		logger.Info("Using migrations from directory", "path", path)
		return migrate.New(fmt.Sprintf("file://%s", path), databaseURL)
	}

	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	return migrate.NewWithSourceInstance("iofs", src, databaseURL)
}

func intArg(command string) (int, error) {
	if len(flag.Args()) < 1 {
		return 0, fmt.Errorf("%s command requires a number: -command %s <n>", command, command)
	}
	var n int
	if _, err := fmt.Sscanf(flag.Arg(0), "%d", &n); err != nil {
		return 0, err
	}
	return n, nil
}
