package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store is the durable credential store. It persists admin accounts,
// level-wide daily limits and admin session tokens in a relational
// database (SQLite by default, PostgreSQL or MySQL when configured).
type Store struct {
	db      *sqlx.DB
	dialect dialect
}

// StoreConfig selects and tunes the database behind a Store.
type StoreConfig struct {
	Driver          string
	DSN             string
	DataDir         string // sqlite only, used when DSN is empty
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration // ignored for sqlite, where the single connection holds the database
}

// NewStore creates a SQLite-backed store in dataDir. Pass empty string for
// in-memory.
func NewStore(dataDir string) (*Store, error) {
	return Open(context.Background(), StoreConfig{Driver: "sqlite", DataDir: dataDir})
}

// Open connects to the configured database and applies pending migrations.
func Open(ctx context.Context, cfg StoreConfig) (*Store, error) {
	d, err := lookupDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}

	dsn := cfg.DSN
	if d.name == "sqlite" && dsn == "" {
		if cfg.DataDir == "" {
			dsn = ":memory:?_pragma=foreign_keys(1)"
		} else {
			if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
			dsn = filepath.Join(cfg.DataDir, "warden.db") + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
		}
	}
	if dsn == "" {
		return nil, fmt.Errorf("store driver %s requires a dsn", d.name)
	}
	dsn, err = d.normalizeDSN(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.ConnectContext(ctx, d.driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", d.name, err)
	}

	if d.name == "sqlite" {
		db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes
	} else {
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		}
	}

	s := &Store{db: db, dialect: d}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s store: %w", d.name, err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Driver returns the configured engine name.
func (s *Store) Driver() string {
	return s.dialect.name
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
