package config

import (
	"context"
	"errors"
	"fmt"
	"strings"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// dialect captures the per-engine differences the store cares about: DDL
// types, schema introspection, id retrieval and constraint error detection.
type dialect struct {
	name       string // config-facing name: sqlite, postgres, mysql
	driverName string // database/sql driver name

	idColumn   string
	boolType   string
	timeType   string
	textType   string
	blobType   string
	returnsIDs bool // INSERT ... RETURNING id instead of LastInsertId

	tableExistsQuery  string
	columnExistsQuery string
}

var dialects = map[string]dialect{
	"sqlite": {
		name:              "sqlite",
		driverName:        "sqlite",
		idColumn:          "id INTEGER PRIMARY KEY AUTOINCREMENT",
		boolType:          "BOOLEAN",
		timeType:          "DATETIME",
		textType:          "VARCHAR(320)",
		blobType:          "TEXT",
		tableExistsQuery:  "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?",
		columnExistsQuery: "SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?",
	},
	"postgres": {
		name:       "postgres",
		driverName: "pgx",
		idColumn:   "id BIGSERIAL PRIMARY KEY",
		boolType:   "BOOLEAN",
		timeType:   "TIMESTAMPTZ",
		textType:   "VARCHAR(320)",
		blobType:   "TEXT",
		returnsIDs: true,
		tableExistsQuery: `SELECT COUNT(*) FROM information_schema.tables
			WHERE table_schema = current_schema() AND table_name = ?`,
		columnExistsQuery: `SELECT COUNT(*) FROM information_schema.columns
			WHERE table_schema = current_schema() AND table_name = ? AND column_name = ?`,
	},
	"mysql": {
		name:       "mysql",
		driverName: "mysql",
		idColumn:   "id BIGINT AUTO_INCREMENT PRIMARY KEY",
		boolType:   "BOOLEAN",
		timeType:   "DATETIME(6)",
		textType:   "VARCHAR(320)",
		blobType:   "TEXT",
		tableExistsQuery: `SELECT COUNT(*) FROM information_schema.tables
			WHERE table_schema = DATABASE() AND table_name = ?`,
		columnExistsQuery: `SELECT COUNT(*) FROM information_schema.columns
			WHERE table_schema = DATABASE() AND table_name = ? AND column_name = ?`,
	},
}

func lookupDialect(name string) (dialect, error) {
	if name == "" {
		name = "sqlite"
	}
	if name == "postgresql" || name == "pgx" {
		name = "postgres"
	}
	d, ok := dialects[name]
	if !ok {
		return dialect{}, fmt.Errorf("unsupported store driver %q (want sqlite, postgres or mysql)", name)
	}
	return d, nil
}

// normalizeDSN adjusts a DSN so scanning behaves the same across engines.
// MySQL needs parseTime for DATETIME columns and clientFoundRows so that an
// UPDATE matching a row with unchanged values still reports it.
func (d dialect) normalizeDSN(dsn string) (string, error) {
	if d.name != "mysql" {
		return dsn, nil
	}
	cfg, err := mysqldriver.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.ClientFoundRows = true
	return cfg.FormatDSN(), nil
}

// isUniqueViolation reports whether err is a unique or primary key
// constraint failure.
func (d dialect) isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// insertID runs an INSERT and returns the generated id.
func (d dialect) insertID(ctx context.Context, db *sqlx.DB, query string, args ...any) (int64, error) {
	query = db.Rebind(query)
	if d.returnsIDs {
		var id int64
		if err := db.QueryRowxContext(ctx, query+" RETURNING id", args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (d dialect) tableExists(ctx context.Context, db *sqlx.DB, table string) (bool, error) {
	var n int
	if err := db.GetContext(ctx, &n, db.Rebind(d.tableExistsQuery), table); err != nil {
		return false, fmt.Errorf("introspect table %s: %w", table, err)
	}
	return n > 0, nil
}

func (d dialect) columnExists(ctx context.Context, db *sqlx.DB, table, column string) (bool, error) {
	var n int
	if err := db.GetContext(ctx, &n, db.Rebind(d.columnExistsQuery), table, column); err != nil {
		return false, fmt.Errorf("introspect column %s.%s: %w", table, column, err)
	}
	return n > 0, nil
}
