package config

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// migration is one forward-only schema step. applied inspects the live
// schema so a step runs at most once no matter how often Migrate is called.
type migration struct {
	name    string
	applied func(ctx context.Context, d dialect, db *sqlx.DB) (bool, error)
	stmts   func(d dialect) []string
}

// MigrationState reports whether a named migration is present in the schema.
type MigrationState struct {
	Name    string `json:"name"`
	Applied bool   `json:"applied"`
}

func tableCreated(table string) func(context.Context, dialect, *sqlx.DB) (bool, error) {
	return func(ctx context.Context, d dialect, db *sqlx.DB) (bool, error) {
		return d.tableExists(ctx, db, table)
	}
}

func columnAdded(table, column string) func(context.Context, dialect, *sqlx.DB) (bool, error) {
	return func(ctx context.Context, d dialect, db *sqlx.DB) (bool, error) {
		return d.columnExists(ctx, db, table, column)
	}
}

func addColumn(table, column, typ string) func(d dialect) []string {
	return func(d dialect) []string {
		return []string{fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, typ)}
	}
}

var migrations = []migration{
	{
		name:    "create_admin_users",
		applied: tableCreated("admin_users"),
		stmts: func(d dialect) []string {
			return []string{
				fmt.Sprintf(`CREATE TABLE admin_users (
					%s,
					email %s NOT NULL UNIQUE,
					password_hash %s,
					level INTEGER NOT NULL DEFAULT 4,
					active %s NOT NULL DEFAULT TRUE,
					read_only %s NOT NULL DEFAULT FALSE,
					block_privilege %s NOT NULL DEFAULT FALSE,
					analytics_privilege %s NOT NULL DEFAULT FALSE,
					manage_admins_privilege %s NOT NULL DEFAULT FALSE,
					created_at %s NOT NULL
				)`, d.idColumn, d.textType, d.textType, d.boolType, d.boolType,
					d.boolType, d.boolType, d.boolType, d.timeType),
			}
		},
	},
	{
		name:    "add_admin_password_reset_token",
		applied: columnAdded("admin_users", "password_reset_token"),
		stmts: func(d dialect) []string {
			return addColumn("admin_users", "password_reset_token", d.textType)(d)
		},
	},
	{
		name:    "add_admin_password_reset_sent_at",
		applied: columnAdded("admin_users", "password_reset_sent_at"),
		stmts: func(d dialect) []string {
			return addColumn("admin_users", "password_reset_sent_at", d.timeType)(d)
		},
	},
	{
		name:    "add_admin_company",
		applied: columnAdded("admin_users", "company"),
		stmts: func(d dialect) []string {
			return addColumn("admin_users", "company", d.textType)(d)
		},
	},
	{
		name:    "add_admin_forms",
		applied: columnAdded("admin_users", "forms"),
		stmts: func(d dialect) []string {
			return addColumn("admin_users", "forms", d.blobType)(d)
		},
	},
	{
		name:    "add_admin_fetch_motivations_privilege",
		applied: columnAdded("admin_users", "fetch_motivations_privilege"),
		stmts: func(d dialect) []string {
			return addColumn("admin_users", "fetch_motivations_privilege", d.boolType+" NOT NULL DEFAULT FALSE")(d)
		},
	},
	{
		name:    "add_admin_daily_limit_config",
		applied: columnAdded("admin_users", "daily_limit_config"),
		stmts: func(d dialect) []string {
			return addColumn("admin_users", "daily_limit_config", d.blobType)(d)
		},
	},
	{
		name:    "create_admin_level_daily_limits",
		applied: tableCreated("admin_level_daily_limits"),
		stmts: func(d dialect) []string {
			return []string{
				`CREATE TABLE admin_level_daily_limits (
					level INTEGER NOT NULL,
					category VARCHAR(32) NOT NULL,
					alert_threshold INTEGER NOT NULL,
					block_threshold INTEGER NOT NULL,
					PRIMARY KEY (level, category)
				)`,
			}
		},
	},
	{
		name:    "create_admin_session_tokens",
		applied: tableCreated("admin_session_tokens"),
		stmts: func(d dialect) []string {
			return []string{
				fmt.Sprintf(`CREATE TABLE admin_session_tokens (
					token_key VARCHAR(64) PRIMARY KEY,
					token VARCHAR(64) NOT NULL,
					username %s NOT NULL,
					ip VARCHAR(64) NOT NULL,
					level INTEGER NOT NULL,
					extra %s NOT NULL,
					expires_at BIGINT NOT NULL
				)`, d.textType, d.blobType),
				`CREATE INDEX idx_admin_session_tokens_expires ON admin_session_tokens(expires_at)`,
			}
		},
	},
}

// Migrate applies every migration not yet reflected in the schema, in order.
// It is safe to call repeatedly.
func (s *Store) Migrate(ctx context.Context) error {
	for _, m := range migrations {
		done, err := m.applied(ctx, s.dialect, s.db)
		if err != nil {
			return fmt.Errorf("migration %s: %w", m.name, err)
		}
		if done {
			continue
		}
		for _, stmt := range m.stmts(s.dialect) {
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migration %s failed: %w\nSQL: %s", m.name, err, stmt)
			}
		}
	}
	return nil
}

// MigrationStatus reports, in order, which migrations the schema reflects.
func (s *Store) MigrationStatus(ctx context.Context) ([]MigrationState, error) {
	states := make([]MigrationState, 0, len(migrations))
	for _, m := range migrations {
		done, err := m.applied(ctx, s.dialect, s.db)
		if err != nil {
			return nil, fmt.Errorf("migration %s: %w", m.name, err)
		}
		states = append(states, MigrationState{Name: m.name, Applied: done})
	}
	return states, nil
}
