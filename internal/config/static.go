package config

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/faucetdb/warden/internal/model"
)

// StaticAdmins serves the admin allowlist from the configuration file. It
// is used when no durable store is configured and rejects every write with
// ErrReadOnly.
type StaticAdmins struct {
	admins []model.AdminUser
}

// NewStaticAdmins builds the allowlist, assigning ids in file order.
func NewStaticAdmins(entries []AdminYAML) (*StaticAdmins, error) {
	loaded := time.Now().UTC()
	seen := make(map[string]bool, len(entries))
	admins := make([]model.AdminUser, 0, len(entries))

	for i, e := range entries {
		email := strings.ToLower(strings.TrimSpace(e.Email))
		if email == "" {
			return nil, fmt.Errorf("admins[%d]: email is required", i)
		}
		if seen[email] {
			return nil, fmt.Errorf("admins[%d]: duplicate email %q", i, email)
		}
		seen[email] = true
		if e.Level < model.LevelSuperAdmin || e.Level > model.MaxLevel {
			return nil, fmt.Errorf("admins[%d]: level %d out of range", i, e.Level)
		}

		var overrides model.DailyLimitOverrides
		for name, th := range e.DailyLimitConfig {
			cat, ok := model.ParseDailyLimitCategory(name)
			if !ok {
				return nil, fmt.Errorf("admins[%d]: unknown daily limit category %q", i, name)
			}
			if th.Alert < 0 || th.Block < 0 {
				return nil, fmt.Errorf("admins[%d]: negative daily limit for %q", i, name)
			}
			if overrides == nil {
				overrides = model.DailyLimitOverrides{}
			}
			overrides[cat] = model.DailyLimitConfig{Alert: th.Alert, Block: th.Block}
		}

		active := true
		if e.Active != nil {
			active = *e.Active
		}
		admins = append(admins, model.AdminUser{
			ID:                        int64(i + 1),
			Email:                     email,
			PasswordHash:              e.PasswordHash,
			Level:                     e.Level,
			Active:                    active,
			ReadOnly:                  e.ReadOnly,
			BlockPrivilege:            e.BlockPrivilege,
			AnalyticsPrivilege:        e.AnalyticsPrivilege,
			ManageAdminsPrivilege:     e.ManageAdminsPrivilege,
			FetchMotivationsPrivilege: e.FetchMotivationsPrivilege,
			Company:                   e.Company,
			Forms:                     e.Forms,
			DailyLimitConfig:          overrides,
			Timestamp:                 loaded,
		})
	}
	return &StaticAdmins{admins: admins}, nil
}

func (s *StaticAdmins) find(match func(*model.AdminUser) bool, activeOnly bool) (*model.AdminUser, error) {
	for i := range s.admins {
		a := &s.admins[i]
		if !match(a) || (activeOnly && !a.Active) {
			continue
		}
		cp := *a
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (s *StaticAdmins) GetAdminByEmail(_ context.Context, email string, activeOnly bool) (*model.AdminUser, error) {
	email = strings.ToLower(email)
	return s.find(func(a *model.AdminUser) bool { return a.Email == email }, activeOnly)
}

func (s *StaticAdmins) GetAdminByID(_ context.Context, id int64, activeOnly bool) (*model.AdminUser, error) {
	return s.find(func(a *model.AdminUser) bool { return a.ID == id }, activeOnly)
}

func (s *StaticAdmins) ListAdmins(_ context.Context, activeOnly bool) ([]model.AdminUser, error) {
	out := make([]model.AdminUser, 0, len(s.admins))
	for _, a := range s.admins {
		if activeOnly && !a.Active {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (s *StaticAdmins) ListAdminEmails(_ context.Context, activeOnly bool, company string) ([]string, error) {
	emails := []string{}
	for _, a := range s.admins {
		if activeOnly && !a.Active {
			continue
		}
		if company != "" && a.Company != company {
			continue
		}
		emails = append(emails, a.Email)
	}
	sort.Strings(emails)
	return emails, nil
}

func (s *StaticAdmins) CreateAdmin(context.Context, *model.AdminUser) error {
	return ErrReadOnly
}

func (s *StaticAdmins) UpdateAdmin(context.Context, int64, model.AdminChanges) error {
	return ErrReadOnly
}

func (s *StaticAdmins) DeleteAdmin(context.Context, int64) (bool, error) {
	return false, ErrReadOnly
}

func (s *StaticAdmins) DeleteAdminByEmail(context.Context, string) (bool, error) {
	return false, ErrReadOnly
}

// ReadOnly reports that the allowlist cannot be mutated.
func (s *StaticAdmins) ReadOnly() bool { return true }

// StaticLevelLimits serves level daily limit defaults from the
// configuration file. Writes fail with ErrReadOnly.
type StaticLevelLimits struct {
	limits []model.LevelDailyLimit
}

// NewStaticLevelLimits validates and indexes the configured defaults.
func NewStaticLevelLimits(entries []LevelLimitYAML) (*StaticLevelLimits, error) {
	limits := make([]model.LevelDailyLimit, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for i, e := range entries {
		cat, ok := model.ParseDailyLimitCategory(e.Category)
		if !ok {
			return nil, fmt.Errorf("level_daily_limits[%d]: unknown category %q", i, e.Category)
		}
		if e.Level < model.LevelSuperAdmin || e.Level > model.MaxLevel {
			return nil, fmt.Errorf("level_daily_limits[%d]: level %d out of range", i, e.Level)
		}
		if e.Alert < 0 || e.Block < 0 {
			return nil, fmt.Errorf("level_daily_limits[%d]: thresholds must be non-negative", i)
		}
		key := fmt.Sprintf("%d/%s", e.Level, cat)
		if seen[key] {
			return nil, fmt.Errorf("level_daily_limits[%d]: duplicate entry for level %d %s", i, e.Level, cat)
		}
		seen[key] = true
		limits = append(limits, model.LevelDailyLimit{Level: e.Level, Category: cat, Alert: e.Alert, Block: e.Block})
	}
	sort.Slice(limits, func(i, j int) bool {
		if limits[i].Level != limits[j].Level {
			return limits[i].Level < limits[j].Level
		}
		return limits[i].Category < limits[j].Category
	})
	return &StaticLevelLimits{limits: limits}, nil
}

func (s *StaticLevelLimits) filter(keep func(model.LevelDailyLimit) bool) []model.LevelDailyLimit {
	out := []model.LevelDailyLimit{}
	for _, l := range s.limits {
		if keep(l) {
			out = append(out, l)
		}
	}
	return out
}

func (s *StaticLevelLimits) GetLevelDailyLimit(_ context.Context, level int, category model.DailyLimitCategory) (*model.LevelDailyLimit, error) {
	for _, l := range s.limits {
		if l.Level == level && l.Category == category {
			cp := l
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *StaticLevelLimits) ListLevelDailyLimits(context.Context) ([]model.LevelDailyLimit, error) {
	return s.filter(func(model.LevelDailyLimit) bool { return true }), nil
}

func (s *StaticLevelLimits) ListLevelDailyLimitsByLevel(_ context.Context, level int) ([]model.LevelDailyLimit, error) {
	return s.filter(func(l model.LevelDailyLimit) bool { return l.Level == level }), nil
}

func (s *StaticLevelLimits) ListLevelDailyLimitsByCategory(_ context.Context, category model.DailyLimitCategory) ([]model.LevelDailyLimit, error) {
	return s.filter(func(l model.LevelDailyLimit) bool { return l.Category == category }), nil
}

func (s *StaticLevelLimits) CreateLevelDailyLimit(context.Context, model.LevelDailyLimit) error {
	return ErrReadOnly
}

func (s *StaticLevelLimits) UpdateLevelDailyLimit(context.Context, model.LevelDailyLimit) error {
	return ErrReadOnly
}

func (s *StaticLevelLimits) DeleteLevelDailyLimits(context.Context, int) (int64, error) {
	return 0, ErrReadOnly
}

// ReadOnly reports that the defaults cannot be mutated.
func (s *StaticLevelLimits) ReadOnly() bool { return true }
