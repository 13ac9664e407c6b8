// Package database opens the GORM connection and migrates the schema.
package database

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"selfcheckout/internal/logging"
	"selfcheckout/internal/models"
)

// sqlitePrefix selects the SQLite driver, e.g. "sqlite:checkout.db".
const sqlitePrefix = "sqlite:"

// Open connects to dsn, creating the PostgreSQL database if it does not exist yet,
// and migrates all tables.
func Open(dsn string, log *logging.Logger) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger:         logger.Default.LogMode(gormLevel(log)),
		TranslateError: true,
	}

	var dialector gorm.Dialector
	if path, ok := strings.CutPrefix(dsn, sqlitePrefix); ok {
		dialector = sqlite.Open(path)
	} else {
		if err := ensureDatabase(dsn); err != nil {
			return nil, fmt.Errorf("failed to ensure database: %w", err)
		}
		dialector = postgres.Open(dsn)
	}

	conn, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if dialector.Name() == "postgres" {
		sqlDB, err := conn.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := Migrate(conn); err != nil {
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return conn, nil
}

// Migrate creates or updates the tables for every persisted model.
func Migrate(conn *gorm.DB) error {
	migrations := []any{
		&models.Product{},
		&models.User{},
		&models.Order{},
		&models.OrderItem{},
	}
	for _, m := range migrations {
		if err := conn.AutoMigrate(m); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying connection pool.
func Close(conn *gorm.DB) error {
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func gormLevel(log *logging.Logger) logger.LogLevel {
	if log == nil {
		return logger.Silent
	}
	switch log.Level() {
	case logging.LevelDebug:
		return logger.Info
	case logging.LevelInfo, logging.LevelWarn:
		return logger.Warn
	case logging.LevelError:
		return logger.Error
	default:
		return logger.Silent
	}
}

func ensureDatabase(dsn string) error {
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return nil
	}

	parsed, err := url.Parse(dsn)
	if err != nil {
		return err
	}

	dbName := strings.TrimPrefix(parsed.Path, "/")
	if dbName == "" || dbName == "postgres" {
		return nil
	}

	parsed.Path = "/postgres"
	sqlDB, err := sql.Open("postgres", parsed.String())
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return err
	}

	var exists bool
	if err := sqlDB.QueryRow("SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", dbName).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return nil
	}

	_, err = sqlDB.Exec("CREATE DATABASE " + pq.QuoteIdentifier(dbName))
	return err
}
