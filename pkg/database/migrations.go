package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

// RunMigrations applies pending migrations from migrationsPath (defaults
// to "migrations"). It is idempotent; an up-to-date database is not an
// error. A dirty version means a previous run died mid-migration and
// needs manual repair before the engine can start.
func RunMigrations(db *sql.DB, migrationsPath string, logger *zap.Logger) error {
	if migrationsPath == "" {
		migrationsPath = "migrations"
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			logger.Warn("Failed to close migration source", zap.Error(srcErr))
		}
		if dbErr != nil {
			logger.Warn("Failed to close migration database", zap.Error(dbErr))
		}
	}()

	if version, dirty, vErr := m.Version(); vErr == nil && dirty {
		return fmt.Errorf("database is dirty at migration version %d; repair it before starting", version)
	}

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("Profile schema up-to-date", zap.String("path", migrationsPath))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	newVersion, _, _ := m.Version()
	logger.Info("Applied profile schema migrations",
		zap.String("path", migrationsPath),
		zap.Uint("version", newVersion))
	return nil
}
