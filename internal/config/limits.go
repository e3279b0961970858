package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/faucetdb/warden/internal/model"
)

// ---------------------------------------------------------------------------
// Level daily limits
// ---------------------------------------------------------------------------

const levelLimitColumns = "level, category, alert_threshold, block_threshold"

// GetLevelDailyLimit returns the level-wide thresholds for one category.
func (s *Store) GetLevelDailyLimit(ctx context.Context, level int, category model.DailyLimitCategory) (*model.LevelDailyLimit, error) {
	var l model.LevelDailyLimit
	q := "SELECT " + levelLimitColumns + " FROM admin_level_daily_limits WHERE level = ? AND category = ?"
	if err := s.db.GetContext(ctx, &l, s.db.Rebind(q), level, string(category)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get level daily limit: %w", err)
	}
	return &l, nil
}

func (s *Store) listLevelDailyLimits(ctx context.Context, where string, args ...any) ([]model.LevelDailyLimit, error) {
	q := "SELECT " + levelLimitColumns + " FROM admin_level_daily_limits"
	if where != "" {
		q += " WHERE " + where
	}
	q += " ORDER BY level, category"

	limits := []model.LevelDailyLimit{}
	if err := s.db.SelectContext(ctx, &limits, s.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("list level daily limits: %w", err)
	}
	return limits, nil
}

// ListLevelDailyLimits returns every configured level default.
func (s *Store) ListLevelDailyLimits(ctx context.Context) ([]model.LevelDailyLimit, error) {
	return s.listLevelDailyLimits(ctx, "")
}

// ListLevelDailyLimitsByLevel returns the defaults configured for one level.
func (s *Store) ListLevelDailyLimitsByLevel(ctx context.Context, level int) ([]model.LevelDailyLimit, error) {
	return s.listLevelDailyLimits(ctx, "level = ?", level)
}

// ListLevelDailyLimitsByCategory returns the defaults for one category
// across all levels.
func (s *Store) ListLevelDailyLimitsByCategory(ctx context.Context, category model.DailyLimitCategory) ([]model.LevelDailyLimit, error) {
	return s.listLevelDailyLimits(ctx, "category = ?", string(category))
}

// CreateLevelDailyLimit inserts a level default. An existing row for the same
// (level, category) yields ErrDuplicate.
func (s *Store) CreateLevelDailyLimit(ctx context.Context, l model.LevelDailyLimit) error {
	const q = `INSERT INTO admin_level_daily_limits (level, category, alert_threshold, block_threshold)
		VALUES (:level, :category, :alert_threshold, :block_threshold)`
	if _, err := s.db.NamedExecContext(ctx, q, l); err != nil {
		if s.dialect.isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert level daily limit: %w", err)
	}
	return nil
}

// UpdateLevelDailyLimit overwrites the thresholds of an existing level default.
func (s *Store) UpdateLevelDailyLimit(ctx context.Context, l model.LevelDailyLimit) error {
	const q = `UPDATE admin_level_daily_limits
		SET alert_threshold = :alert_threshold, block_threshold = :block_threshold
		WHERE level = :level AND category = :category`
	result, err := s.db.NamedExecContext(ctx, q, l)
	if err != nil {
		return fmt.Errorf("update level daily limit: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update level daily limit rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteLevelDailyLimits removes every category default for a level and
// returns how many rows went away.
func (s *Store) DeleteLevelDailyLimits(ctx context.Context, level int) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		s.db.Rebind("DELETE FROM admin_level_daily_limits WHERE level = ?"), level)
	if err != nil {
		return 0, fmt.Errorf("delete level daily limits: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete level daily limits rows affected: %w", err)
	}
	return n, nil
}
