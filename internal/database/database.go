package database

import (
	"fmt"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/harborline/storefront/internal/commerce"
	"github.com/harborline/storefront/internal/identity"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	connectAttempts = 5
	connectBackoff  = 500 * time.Millisecond
)

// connectWithRetry retries the initial connect a bounded number of times with
// linearly growing backoff. Only the connect is retried; migration failures
// are terminal.
func connectWithRetry(open func() (*gorm.DB, error), attempts int, backoff time.Duration) (*gorm.DB, error) {
	var db *gorm.DB
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		db, err = open()
		if err == nil {
			return db, nil
		}
		if attempt < attempts {
			time.Sleep(time.Duration(attempt) * backoff)
		}
	}
	return nil, fmt.Errorf("database connect failed after %d attempts: %w", attempts, err)
}

// Config selects and configures the backing store.
type Config struct {
	// Driver is "sqlite" or "postgres".
	Driver string
	// Path is the sqlite database file.
	Path string
	// DSN is the postgres connection string.
	DSN string
}

// Open establishes the store connection and performs schema migrations.
// Unique-constraint violations are translated to gorm.ErrDuplicatedKey so the
// upsert and conflict paths stay driver-independent.
func Open(cfg Config, logger *zap.Logger) (*gorm.DB, error) {
	gormConfig := &gorm.Config{TranslateError: true}

	var db *gorm.DB
	var err error
	switch cfg.Driver {
	case "sqlite", "":
		if cfg.Path == "" {
			return nil, fmt.Errorf("database path is required")
		}
		db, err = gorm.Open(sqlite.Open(cfg.Path), gormConfig)
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("database dsn is required")
		}
		// The server often races its database at startup; the sqlite path is a
		// local file and fails fast instead.
		db, err = connectWithRetry(func() (*gorm.DB, error) {
			return gorm.Open(postgres.Open(cfg.DSN), gormConfig)
		}, connectAttempts, connectBackoff)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Driver != "postgres" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
		// Cascade deletes depend on foreign key enforcement.
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, err
		}
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized",
			zap.String("driver", cfg.Driver),
			zap.String("path", cfg.Path))
	}

	return db, nil
}

// Migrate creates or updates the schema for every owned table. The catalog
// lives in the external document store and is deliberately absent here.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&identity.User{},
		&identity.Profile{},
		&identity.Address{},
		&commerce.Wishlist{},
		&commerce.CartLine{},
		&commerce.Favorite{},
		&commerce.Review{},
	)
}
