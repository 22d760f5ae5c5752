package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"epub-reader/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenDatabase opens the configured gorm dialect.
func OpenDatabase(cfg domain.Config, appLogger domain.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.GetDatabaseDriver() {
	case "postgres":
		if cfg.GetDatabaseDSN() == "" {
			return nil, fmt.Errorf("DATABASE_DSN must be provided for the postgres driver")
		}
		dialector = postgres.Open(cfg.GetDatabaseDSN())
	case "sqlite", "":
		path := cfg.GetDatabasePath()
		if dir := filepath.Dir(path); dir != "" && dir != "." && path != ":memory:" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dialector = sqlite.Open(path)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.GetDatabaseDriver())
	}

	logLevel := logger.Error
	if cfg.GetLogLevel() == "debug" {
		logLevel = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying SQL database: %w", err)
	}
	if cfg.GetDatabaseDriver() == "postgres" {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(50)
	} else {
		// sqlite serializes writers; one connection avoids SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	appLogger.Info("Database opened", "driver", cfg.GetDatabaseDriver())
	return db, nil
}

// Migrate creates missing tables, columns and indexes. AutoMigrate never
// drops anything, so running it on every start is safe.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migration failed: %w", err)
	}
	return nil
}

// Ping verifies the database connection is working
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying SQL database: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
