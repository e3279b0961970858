package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/faucetdb/warden/internal/config"
	"github.com/faucetdb/warden/internal/model"
)

// LevelLimitRepository persists level-wide daily limit defaults. A lookup
// miss is reported with config.ErrNotFound.
type LevelLimitRepository interface {
	GetLevelDailyLimit(ctx context.Context, level int, category model.DailyLimitCategory) (*model.LevelDailyLimit, error)
	ListLevelDailyLimits(ctx context.Context) ([]model.LevelDailyLimit, error)
	ListLevelDailyLimitsByLevel(ctx context.Context, level int) ([]model.LevelDailyLimit, error)
	ListLevelDailyLimitsByCategory(ctx context.Context, category model.DailyLimitCategory) ([]model.LevelDailyLimit, error)
	CreateLevelDailyLimit(ctx context.Context, l model.LevelDailyLimit) error
	UpdateLevelDailyLimit(ctx context.Context, l model.LevelDailyLimit) error
	DeleteLevelDailyLimits(ctx context.Context, level int) (int64, error)
}

// DailyLimits manages the two-tier daily limit configuration: a default per
// (level, category) and an optional override on each admin.
type DailyLimits struct {
	repo     LevelLimitRepository
	admins   *AdminDirectory
	readOnly bool
	logger   *slog.Logger
}

// NewDailyLimits creates a DailyLimits over repo. Admin overrides are read
// and cleared through admins.
func NewDailyLimits(repo LevelLimitRepository, admins *AdminDirectory, logger *slog.Logger) *DailyLimits {
	if logger == nil {
		logger = slog.Default()
	}
	return &DailyLimits{
		repo:     repo,
		admins:   admins,
		readOnly: isReadOnly(repo),
		logger:   logger,
	}
}

func parseCategory(category string) (model.DailyLimitCategory, error) {
	c, ok := model.ParseDailyLimitCategory(category)
	if !ok {
		return "", userErrorf("invalid daily limit category %q", category)
	}
	return c, nil
}

func checkThresholds(u model.DailyLimitUpdate) error {
	if u.Alert != nil && *u.Alert < 0 {
		return userErrorf("alert must be a non-negative integer, got %d", *u.Alert)
	}
	if u.Block != nil && *u.Block < 0 {
		return userErrorf("block must be a non-negative integer, got %d", *u.Block)
	}
	return nil
}

// ValidateDailyLimitConfigShape checks an admin override before it is
// stored. Every key must name a known category and every entry must carry
// non-negative alert and block values. An empty map yields nil.
func ValidateDailyLimitConfigShape(in map[string]model.DailyLimitUpdate) (model.DailyLimitOverrides, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(model.DailyLimitOverrides, len(in))
	for name, u := range in {
		c, err := parseCategory(name)
		if err != nil {
			return nil, err
		}
		if !u.Complete() {
			return nil, userErrorf("daily limit config for %q requires both alert and block", name)
		}
		if err := checkThresholds(u); err != nil {
			return nil, err
		}
		out[c] = u.Merge(model.DailyLimitConfig{})
	}
	return out, nil
}

// SetLevelDailyLimit creates or updates the default for (level, category).
// Creating requires both thresholds; an update merges whichever are given.
// The read-then-write is not atomic, so a concurrent create surfaces as a
// store error.
func (l *DailyLimits) SetLevelDailyLimit(ctx context.Context, level int, category string, update model.DailyLimitUpdate) (bool, error) {
	if err := validateLevel(level); err != nil {
		return false, err
	}
	c, err := parseCategory(category)
	if err != nil {
		return false, err
	}
	if update.Empty() {
		return false, userErrorf("alert or block is required")
	}
	if err := checkThresholds(update); err != nil {
		return false, err
	}
	if l.readOnly {
		return false, ErrUnsupported
	}

	existing, err := l.repo.GetLevelDailyLimit(ctx, level, c)
	switch {
	case errors.Is(err, config.ErrNotFound):
		if !update.Complete() {
			return false, userErrorf("both alert and block are required when creating the %s limit for level %d", c, level)
		}
		row := model.LevelDailyLimit{Level: level, Category: c, Alert: *update.Alert, Block: *update.Block}
		if err := l.repo.CreateLevelDailyLimit(ctx, row); err != nil {
			return false, fmt.Errorf("create level daily limit: %w", err)
		}
		l.logger.Info("level daily limit created", "level", level, "category", c, "alert", row.Alert, "block", row.Block)
	case err != nil:
		return false, fmt.Errorf("get level daily limit: %w", err)
	default:
		merged := update.Merge(existing.Config())
		row := model.LevelDailyLimit{Level: level, Category: c, Alert: merged.Alert, Block: merged.Block}
		if err := l.repo.UpdateLevelDailyLimit(ctx, row); err != nil {
			return false, fmt.Errorf("update level daily limit: %w", err)
		}
		l.logger.Info("level daily limit updated", "level", level, "category", c, "alert", row.Alert, "block", row.Block)
	}
	return true, nil
}

// GetLevelDailyLimit returns the default for (level, category), or nil.
func (l *DailyLimits) GetLevelDailyLimit(ctx context.Context, level int, category string) (*model.DailyLimitConfig, error) {
	c, err := parseCategory(category)
	if err != nil {
		return nil, err
	}
	row, err := l.repo.GetLevelDailyLimit(ctx, level, c)
	if errors.Is(err, config.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get level daily limit: %w", err)
	}
	cfg := row.Config()
	return &cfg, nil
}

// GetLevelDailyLimitsByLevel returns every category default for level, or
// nil when none is configured.
func (l *DailyLimits) GetLevelDailyLimitsByLevel(ctx context.Context, level int) (model.DailyLimitOverrides, error) {
	rows, err := l.repo.ListLevelDailyLimitsByLevel(ctx, level)
	if err != nil {
		return nil, fmt.Errorf("list level daily limits: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	out := make(model.DailyLimitOverrides, len(rows))
	for _, r := range rows {
		out[r.Category] = r.Config()
	}
	return out, nil
}

// GetLevelDailyLimitsByCategory returns the defaults for category keyed by
// level.
func (l *DailyLimits) GetLevelDailyLimitsByCategory(ctx context.Context, category string) (map[int]model.DailyLimitConfig, error) {
	c, err := parseCategory(category)
	if err != nil {
		return nil, err
	}
	rows, err := l.repo.ListLevelDailyLimitsByCategory(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("list level daily limits: %w", err)
	}
	out := make(map[int]model.DailyLimitConfig, len(rows))
	for _, r := range rows {
		out[r.Level] = r.Config()
	}
	return out, nil
}

// ListLevelDailyLimits returns every configured default ordered by level
// then category.
func (l *DailyLimits) ListLevelDailyLimits(ctx context.Context) ([]model.LevelDailyLimit, error) {
	rows, err := l.repo.ListLevelDailyLimits(ctx)
	if err != nil {
		return nil, fmt.Errorf("list level daily limits: %w", err)
	}
	return rows, nil
}

// RemoveLevelDailyLimits deletes all category defaults for level and
// returns how many were removed.
func (l *DailyLimits) RemoveLevelDailyLimits(ctx context.Context, level int) (int64, error) {
	if err := validateLevel(level); err != nil {
		return 0, err
	}
	if l.readOnly {
		return 0, ErrUnsupported
	}
	n, err := l.repo.DeleteLevelDailyLimits(ctx, level)
	if err != nil {
		return 0, fmt.Errorf("remove level daily limits: %w", err)
	}
	l.logger.Info("level daily limits removed", "level", level, "count", n)
	return n, nil
}

// GetEffectiveAdminDailyLimitConfig resolves the limits that apply to an
// admin: its own override when non-empty, else its level defaults, else nil.
func (l *DailyLimits) GetEffectiveAdminDailyLimitConfig(ctx context.Context, email string) (model.DailyLimitOverrides, error) {
	admin, err := l.admins.GetAdminOrThrow(ctx, email, true)
	if err != nil {
		return nil, err
	}
	if len(admin.DailyLimitConfig) > 0 {
		return admin.DailyLimitConfig, nil
	}
	return l.GetLevelDailyLimitsByLevel(ctx, admin.Level)
}

// ClearAdminDailyLimitOverride removes an admin's own override so that its
// level defaults apply again.
func (l *DailyLimits) ClearAdminDailyLimitOverride(ctx context.Context, email string) (bool, error) {
	if l.admins.ReadOnly() {
		return false, ErrUnsupported
	}
	admin, err := l.admins.GetAdminOrThrow(ctx, email, true)
	if err != nil {
		return false, err
	}
	none := model.DailyLimitOverrides{}
	if err := l.admins.apply(ctx, admin, model.AdminChanges{DailyLimitConfig: &none}); err != nil {
		return false, err
	}
	l.logger.Info("admin daily limit override cleared", "email", admin.Email)
	return true, nil
}
