// Package database provides GORM-backed persistence plumbing shared by all stores.
package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// ErrUnsupportedDriver indicates the database URL scheme is not supported.
var ErrUnsupportedDriver = errors.New("unsupported database driver")

// Database abstracts a GORM-managed database connection.
type Database interface {
	// Session returns a request-scoped GORM session.
	Session(ctx context.Context) *gorm.DB

	// GORM returns the raw GORM handle (migrations, raw SQL).
	GORM() *gorm.DB

	// IsPostgres reports whether the underlying driver is PostgreSQL.
	IsPostgres() bool

	// IsSQLite reports whether the underlying driver is SQLite.
	IsSQLite() bool

	// ConfigurePool tunes the underlying sql.DB connection pool.
	ConfigurePool(maxOpen, maxIdle int, maxLifetime time.Duration) error

	// Close releases the connection pool.
	Close() error
}

type gormDatabase struct {
	db       *gorm.DB
	postgres bool
}

// NewDatabase opens a database connection from a URL.
// Supported schemes: sqlite:///path, postgres:// and postgresql://.
func NewDatabase(ctx context.Context, url string) (Database, error) {
	dialector, err := parseDialector(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: queryLogger{},
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	d := &gormDatabase{
		db:       db,
		postgres: dialector.Name() == "postgres",
	}

	if d.IsSQLite() {
		// Serialized writes plus WAL keep SQLite honest under the
		// one-writer-per-document contract.
		if err := db.WithContext(ctx).Exec("PRAGMA journal_mode=WAL").Error; err != nil {
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
		if err := db.WithContext(ctx).Exec("PRAGMA busy_timeout=5000").Error; err != nil {
			return nil, fmt.Errorf("set busy timeout: %w", err)
		}
	}

	return d, nil
}

func parseDialector(url string) (gorm.Dialector, error) {
	switch {
	case strings.HasPrefix(url, "sqlite:///"):
		path := strings.TrimPrefix(url, "sqlite:///")
		if path == ":memory:" {
			// Shared cache keeps all connections on the same in-memory database.
			path = "file::memory:?cache=shared"
		}
		return sqlite.Open(path), nil
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return postgres.Open(url), nil
	default:
		return nil, ErrUnsupportedDriver
	}
}

// Session returns a request-scoped GORM session.
func (d *gormDatabase) Session(ctx context.Context) *gorm.DB {
	return d.db.WithContext(ctx)
}

// GORM returns the raw GORM handle.
func (d *gormDatabase) GORM() *gorm.DB {
	return d.db
}

// IsPostgres reports whether the underlying driver is PostgreSQL.
func (d *gormDatabase) IsPostgres() bool {
	return d.postgres
}

// IsSQLite reports whether the underlying driver is SQLite.
func (d *gormDatabase) IsSQLite() bool {
	return !d.postgres
}

// ConfigurePool tunes the underlying sql.DB connection pool.
func (d *gormDatabase) ConfigurePool(maxOpen, maxIdle int, maxLifetime time.Duration) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("access sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(maxLifetime)
	return nil
}

// Close releases the connection pool.
func (d *gormDatabase) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("access sql.DB: %w", err)
	}
	return sqlDB.Close()
}
