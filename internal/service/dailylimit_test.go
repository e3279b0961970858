package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/faucetdb/warden/internal/config"
	"github.com/faucetdb/warden/internal/model"
)

func newTestLimits(t *testing.T) (*DailyLimits, *AdminDirectory) {
	t.Helper()
	d, store := newTestDirectory(t)
	return NewDailyLimits(store, d, nil), d
}

func limit(alert, block int) model.DailyLimitUpdate {
	return model.DailyLimitUpdate{Alert: intPtr(alert), Block: intPtr(block)}
}

func TestSetLevelDailyLimitCreateThenMerge(t *testing.T) {
	l, _ := newTestLimits(t)
	ctx := context.Background()

	ok, err := l.SetLevelDailyLimit(ctx, 0, "opened", limit(0, 0))
	if err != nil || !ok {
		t.Fatalf("create: got (%v, %v)", ok, err)
	}
	if _, err := l.SetLevelDailyLimit(ctx, 0, "opened", model.DailyLimitUpdate{Alert: intPtr(10)}); err != nil {
		t.Fatalf("update alert: %v", err)
	}

	got, err := l.GetLevelDailyLimit(ctx, 0, "opened")
	if err != nil {
		t.Fatalf("GetLevelDailyLimit: %v", err)
	}
	if want := (model.DailyLimitConfig{Alert: 10, Block: 0}); got == nil || *got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}

	if _, err := l.SetLevelDailyLimit(ctx, 0, "opened", model.DailyLimitUpdate{Block: intPtr(20)}); err != nil {
		t.Fatalf("update block: %v", err)
	}
	got, _ = l.GetLevelDailyLimit(ctx, 0, "opened")
	if want := (model.DailyLimitConfig{Alert: 10, Block: 20}); *got != want {
		t.Errorf("got %+v, want %+v", *got, want)
	}
}

func TestSetLevelDailyLimitCreateRequiresBoth(t *testing.T) {
	l, _ := newTestLimits(t)
	ctx := context.Background()

	_, err := l.SetLevelDailyLimit(ctx, 1, "displayed", model.DailyLimitUpdate{Alert: intPtr(3)})
	if !errors.Is(err, ErrUser) {
		t.Fatalf("expected ErrUser, got %v", err)
	}
	if got, _ := l.GetLevelDailyLimit(ctx, 1, "displayed"); got != nil {
		t.Errorf("partial create stored a row: %+v", got)
	}
}

func TestSetLevelDailyLimitValidation(t *testing.T) {
	l, _ := newTestLimits(t)
	tests := []struct {
		name     string
		level    int
		category string
		update   model.DailyLimitUpdate
		contains string
	}{
		{"level too high", 5, "opened", limit(1, 1), "5"},
		{"negative level", -1, "opened", limit(1, 1), "-1"},
		{"unknown category", 1, "clicked", limit(1, 1), "clicked"},
		{"negative alert", 1, "opened", limit(-1, 1), "alert"},
		{"negative block", 1, "opened", limit(1, -3), "block"},
		{"empty update", 1, "opened", model.DailyLimitUpdate{}, "required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.SetLevelDailyLimit(context.Background(), tt.level, tt.category, tt.update)
			if !errors.Is(err, ErrUser) {
				t.Fatalf("expected ErrUser, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("error %q does not mention %q", err, tt.contains)
			}
		})
	}
}

func TestLevelDailyLimitQueries(t *testing.T) {
	l, _ := newTestLimits(t)
	ctx := context.Background()

	if m, err := l.GetLevelDailyLimitsByLevel(ctx, 2); err != nil || m != nil {
		t.Fatalf("empty level: got (%v, %v), want (nil, nil)", m, err)
	}

	l.SetLevelDailyLimit(ctx, 2, "opened", limit(1, 2))
	l.SetLevelDailyLimit(ctx, 2, "displayed", limit(3, 4))
	l.SetLevelDailyLimit(ctx, 3, "opened", limit(5, 6))

	byLevel, err := l.GetLevelDailyLimitsByLevel(ctx, 2)
	if err != nil {
		t.Fatalf("GetLevelDailyLimitsByLevel: %v", err)
	}
	if len(byLevel) != 2 || byLevel[model.CategoryDisplayed] != (model.DailyLimitConfig{Alert: 3, Block: 4}) {
		t.Errorf("by level: got %+v", byLevel)
	}

	byCat, err := l.GetLevelDailyLimitsByCategory(ctx, "opened")
	if err != nil {
		t.Fatalf("GetLevelDailyLimitsByCategory: %v", err)
	}
	if len(byCat) != 2 || byCat[3] != (model.DailyLimitConfig{Alert: 5, Block: 6}) {
		t.Errorf("by category: got %+v", byCat)
	}

	all, err := l.ListLevelDailyLimits(ctx)
	if err != nil {
		t.Fatalf("ListLevelDailyLimits: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("got %d limits, want 3", len(all))
	}

	n, err := l.RemoveLevelDailyLimits(ctx, 2)
	if err != nil {
		t.Fatalf("RemoveLevelDailyLimits: %v", err)
	}
	if n != 2 {
		t.Errorf("removed %d, want 2", n)
	}
	if m, _ := l.GetLevelDailyLimitsByLevel(ctx, 2); m != nil {
		t.Errorf("level 2 still has limits: %+v", m)
	}
	if got, _ := l.GetLevelDailyLimit(ctx, 3, "opened"); got == nil {
		t.Error("level 3 limit removed")
	}
}

func TestEffectiveAdminDailyLimitConfig(t *testing.T) {
	l, d := newTestLimits(t)
	ctx := context.Background()

	l.SetLevelDailyLimit(ctx, 2, "opened", limit(10, 20))
	mustAddAdmin(t, d, model.AdminInput{Email: "default@example.com", Level: intPtr(2)})
	mustAddAdmin(t, d, model.AdminInput{
		Email: "custom@example.com", Level: intPtr(2),
		DailyLimitConfig: map[string]model.DailyLimitUpdate{"opened": limit(1, 2)},
	})
	mustAddAdmin(t, d, model.AdminInput{Email: "none@example.com", Level: intPtr(4)})

	got, err := l.GetEffectiveAdminDailyLimitConfig(ctx, "default@example.com")
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	if got[model.CategoryOpened] != (model.DailyLimitConfig{Alert: 10, Block: 20}) {
		t.Errorf("level default: got %+v", got)
	}

	got, _ = l.GetEffectiveAdminDailyLimitConfig(ctx, "custom@example.com")
	if got[model.CategoryOpened] != (model.DailyLimitConfig{Alert: 1, Block: 2}) {
		t.Errorf("override: got %+v", got)
	}

	got, err = l.GetEffectiveAdminDailyLimitConfig(ctx, "none@example.com")
	if err != nil || got != nil {
		t.Errorf("no limits: got (%v, %v), want (nil, nil)", got, err)
	}

	if _, err := l.GetEffectiveAdminDailyLimitConfig(ctx, "ghost@example.com"); !errors.Is(err, ErrAccountNotFoundOrInactive) {
		t.Errorf("expected ErrAccountNotFoundOrInactive, got %v", err)
	}
}

func TestClearAdminDailyLimitOverride(t *testing.T) {
	l, d := newTestLimits(t)
	ctx := context.Background()

	l.SetLevelDailyLimit(ctx, 1, "displayed", limit(7, 8))
	mustAddAdmin(t, d, model.AdminInput{
		Email: "clear@example.com", Level: intPtr(1),
		DailyLimitConfig: map[string]model.DailyLimitUpdate{"displayed": limit(1, 1)},
	})

	ok, err := l.ClearAdminDailyLimitOverride(ctx, "clear@example.com")
	if err != nil || !ok {
		t.Fatalf("ClearAdminDailyLimitOverride: got (%v, %v)", ok, err)
	}
	admin, _ := d.GetAdmin(ctx, "clear@example.com", true)
	if len(admin.DailyLimitConfig) != 0 {
		t.Errorf("override not cleared: %+v", admin.DailyLimitConfig)
	}
	got, _ := l.GetEffectiveAdminDailyLimitConfig(ctx, "clear@example.com")
	if got[model.CategoryDisplayed] != (model.DailyLimitConfig{Alert: 7, Block: 8}) {
		t.Errorf("effective after clear: got %+v", got)
	}

	if _, err := l.ClearAdminDailyLimitOverride(ctx, "ghost@example.com"); !errors.Is(err, ErrAccountNotFoundOrInactive) {
		t.Errorf("expected ErrAccountNotFoundOrInactive, got %v", err)
	}
}

func TestValidateDailyLimitConfigShape(t *testing.T) {
	tests := []struct {
		name    string
		in      map[string]model.DailyLimitUpdate
		wantErr bool
	}{
		{"nil", nil, false},
		{"valid", map[string]model.DailyLimitUpdate{"opened": limit(0, 5), "displayed": limit(1, 1)}, false},
		{"unknown key", map[string]model.DailyLimitUpdate{"bogus": limit(1, 1)}, true},
		{"missing block", map[string]model.DailyLimitUpdate{"opened": {Alert: intPtr(1)}}, true},
		{"negative", map[string]model.DailyLimitUpdate{"opened": limit(1, -1)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := ValidateDailyLimitConfigShape(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUser) {
					t.Errorf("expected ErrUser, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(out) != len(tt.in) {
				t.Errorf("got %d entries, want %d", len(out), len(tt.in))
			}
		})
	}
}

func TestConfigModeDailyLimits(t *testing.T) {
	admins, err := config.NewStaticAdmins([]config.AdminYAML{{Email: "a@example.com", Level: 1}})
	if err != nil {
		t.Fatalf("NewStaticAdmins: %v", err)
	}
	limits, err := config.NewStaticLevelLimits([]config.LevelLimitYAML{{Level: 1, Category: "opened", Alert: 3, Block: 6}})
	if err != nil {
		t.Fatalf("NewStaticLevelLimits: %v", err)
	}
	l := NewDailyLimits(limits, NewAdminDirectory(admins, nil, nil), nil)
	ctx := context.Background()

	got, err := l.GetEffectiveAdminDailyLimitConfig(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("GetEffectiveAdminDailyLimitConfig: %v", err)
	}
	if got[model.CategoryOpened] != (model.DailyLimitConfig{Alert: 3, Block: 6}) {
		t.Errorf("got %+v", got)
	}

	if _, err := l.SetLevelDailyLimit(ctx, 1, "opened", limit(1, 1)); !errors.Is(err, ErrUnsupported) {
		t.Errorf("set: expected ErrUnsupported, got %v", err)
	}
	if _, err := l.RemoveLevelDailyLimits(ctx, 1); !errors.Is(err, ErrUnsupported) {
		t.Errorf("remove: expected ErrUnsupported, got %v", err)
	}
	if _, err := l.ClearAdminDailyLimitOverride(ctx, "a@example.com"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("clear: expected ErrUnsupported, got %v", err)
	}
}
