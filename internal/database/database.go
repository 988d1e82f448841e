package database

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"mithai/internal/models"
)

// Open connects to the configured relational store and migrates the schema.
// Supported drivers are "sqlite" (embedded file or in-memory DSN) and "postgres".
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == "sqlite" {
		if err := tuneSQLite(db); err != nil {
			return nil, err
		}
	}

	if err := db.AutoMigrate(&models.User{}, &models.Sweet{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return db, nil
}

// tuneSQLite funnels every statement through a single connection. SQLite
// allows one writer at a time, so this turns lock contention into queueing
// instead of SQLITE_BUSY errors.
func tuneSQLite(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	// journal_mode is not supported for in-memory databases; ignore failures.
	_ = db.Exec("PRAGMA journal_mode=WAL").Error
	if err := db.Exec("PRAGMA busy_timeout=5000").Error; err != nil {
		return fmt.Errorf("failed to set busy_timeout: %w", err)
	}
	return nil
}

// Ping checks that the store answers.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
