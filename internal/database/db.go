package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultFileName is the SQLite file created inside the data directory
const DefaultFileName = "history.db"

// DefaultPath returns the SQLite file path inside dataDir
func DefaultPath(dataDir string) string {
	return filepath.Join(dataDir, DefaultFileName)
}

// NewID returns a short random identifier for a new row
func NewID() string {
	return uuid.NewString()[:8]
}

// IsPostgresDSN reports whether dsn points at a Postgres server rather than a
// SQLite file
func IsPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Open connects to the investigation store. A postgres:// DSN selects
// Postgres; anything else is treated as a SQLite file path, whose parent
// directory is created if needed.
func Open(dsn string, gormLogger logger.Interface) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database DSN is empty")
	}
	if gormLogger == nil {
		gormLogger = logger.Default.LogMode(logger.Warn)
	}
	cfg := &gorm.Config{Logger: gormLogger}

	if IsPostgresDSN(dsn) {
		db, err := gorm.Open(postgres.Open(dsn), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		log.Info().Str("driver", "postgres").Msg("Database connection established")
		return db, nil
	}

	if dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(sqliteDSN(dsn)), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", dsn, err)
	}

	// The store has a single writer; one connection also keeps :memory:
	// databases from splitting across pooled connections.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	log.Info().Str("driver", "sqlite").Str("path", dsn).Msg("Database connection established")
	return db, nil
}

// sqliteDSN adds connection parameters to a SQLite file path
func sqliteDSN(path string) string {
	if path == ":memory:" || strings.Contains(path, "?") {
		return path
	}
	return path + "?_busy_timeout=5000&_foreign_keys=on"
}

// AutoMigrate creates or updates all store tables and indexes
func AutoMigrate(db *gorm.DB) error {
	log.Debug().Msg("Running database migrations...")

	err := db.AutoMigrate(
		&Investigation{},
		&Finding{},
		&KnownPattern{},
		&DiscoveredService{},
		&DiscoveredDependency{},
		&SuggestedKnownIssue{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Debug().Msg("Database migrations completed successfully")
	return nil
}

// Close closes the underlying connection pool
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
